package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightgenie/internal/assistant"
	"github.com/KaramelBytes/insightgenie/internal/session"
)

const sales = "region,product,revenue\nNorth,A,100\nSouth,B,200\nNorth,B,50\nEast,A,400\n"

type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newClient(t *testing.T, a *assistant.Assistant) *client {
	t.Helper()
	srv, err := New(session.NewManager(0, 0), a, Config{MaxUploadMB: 1})
	require.NoError(t, err)
	return &client{t: t, srv: srv}
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.srv.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postJSON(path string, body any) *httptest.ResponseRecorder {
	b, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) upload(name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUploadAndProfile(t *testing.T) {
	c := newClient(t, nil)
	rec := c.upload("sales.csv", sales)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[profileResponse](t, rec)
	assert.Equal(t, "sales.csv", up.Name)
	assert.Equal(t, 4, up.Profile.Rows)
	assert.Equal(t, []string{"revenue"}, up.Profile.Numerical)

	rec = c.get("/api/profile")
	require.Equal(t, http.StatusOK, rec.Code)
	prof := decode[profileResponse](t, rec)
	require.Len(t, prof.Stats, 1)
	assert.Equal(t, 187.5, prof.Stats[0].Mean)
}

func TestUploadRejectsUnsupportedFormatWithoutCommitting(t *testing.T) {
	c := newClient(t, nil)
	rec := c.upload("notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "unsupported file format")
	assert.Equal(t, http.StatusConflict, c.get("/api/profile").Code)

	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)
	assert.Equal(t, http.StatusBadRequest, c.upload("notes.pdf", "x").Code)
	rec = c.get("/api/profile")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sales.csv", decode[profileResponse](t, rec).Name)
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newClient(t, nil)
	require.Equal(t, http.StatusOK, a.upload("sales.csv", sales).Code)

	b := &client{t: t, srv: a.srv}
	assert.Equal(t, http.StatusConflict, b.get("/api/profile").Code)
}

func TestAsk(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	rec := c.postJSON("/api/ask", questionRequest{Question: "What is the average revenue?"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[askResponse](t, rec)
	assert.Equal(t, "statistic", got.Type)
	require.Len(t, got.Values, 1)
	assert.Equal(t, 187.5, got.Values[0].Mean)

	rec = c.postJSON("/api/ask", questionRequest{Question: "hello there"})
	assert.Equal(t, "error", decode[askResponse](t, rec).Type)

	rec = c.postJSON("/api/ask", questionRequest{Question: "revenue"})
	got = decode[askResponse](t, rec)
	assert.Equal(t, "visualization", got.Type)
	assert.Contains(t, string(got.SVG), "<svg")

	assert.Equal(t, http.StatusBadRequest, c.postJSON("/api/ask", questionRequest{}).Code)
}

func TestChatDegradedAndClear(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	rec := c.postJSON("/api/chat", questionRequest{Question: "Which region sells most?"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[chatResponse](t, rec)
	assert.Equal(t, assistant.MsgUnavailable, got.Answer)
	assert.Equal(t, 2, got.Turns)

	rec = c.send(httptest.NewRequest(http.MethodDelete, "/api/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.postJSON("/api/chat", questionRequest{Question: "again"})
	assert.Equal(t, 2, decode[chatResponse](t, rec).Turns)
}

func TestChatWithModelKeepsHistory(t *testing.T) {
	var prompts []string
	gen := genFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "1. **Group** by region\n\nAnswer: East", nil
	})
	c := newClient(t, assistant.New(gen))
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	c.postJSON("/api/chat", questionRequest{Question: "first"})
	rec := c.postJSON("/api/chat", questionRequest{Question: "second"})
	got := decode[chatResponse](t, rec)
	assert.Equal(t, 4, got.Turns)
	assert.Contains(t, string(got.HTML), `class="reply-heading"`)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "USER: first ASSISTANT: 1. **Group** by region")
}

func TestCleaningEndpoints(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", "region,revenue\nNorth,1\nSouth,\nEast,2\nWest,3\nA,4\nB,5\nC,1000\n").Code)

	rec := c.postJSON("/api/clean", cleanRequest{Method: "drop"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cleaned := decode[cleanResponse](t, rec)
	assert.Equal(t, 6, cleaned.Profile.Rows)
	assert.Equal(t, 1, cleaned.Result.RowsDropped)

	rec = c.postJSON("/api/outliers", outlierRequest{Column: "revenue"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Handled 1 outliers in revenue", decode[cleanResponse](t, rec).Message)

	rec = c.postJSON("/api/normalize", normalizeRequest{Method: "minmax"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, c.postJSON("/api/clean", cleanRequest{Method: "bogus"}).Code)
	assert.Equal(t, http.StatusBadRequest, c.postJSON("/api/outliers", outlierRequest{Column: "region"}).Code)
}

func TestExport(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	rec := c.get("/api/export?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="cleaned_sales.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "region,product,revenue\n"))

	rec = c.get("/api/export?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	assert.Equal(t, http.StatusBadRequest, c.get("/api/export?format=pdf").Code)
}

func TestVisualizations(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	rec := c.get("/api/visualizations")
	require.Equal(t, http.StatusOK, rec.Code)
	auto := decode[[]chartResponse](t, rec)
	require.NotEmpty(t, auto)
	assert.Equal(t, "Distribution of revenue", auto[0].Chart.Title)

	rec = c.postJSON("/api/visualizations", map[string]any{"kind": "bar", "x": "region", "y": "revenue", "aggregate": "mean"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[chartResponse](t, rec).Chart.Bars, 3)

	rec = c.postJSON("/api/visualizations", map[string]any{"kind": "scatter", "x": "revenue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportDownload(t *testing.T) {
	c := newClient(t, nil)
	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)

	rec := c.get("/report?title=Q1+Sales&insights=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="Q1_Sales.html"`, rec.Header().Get("Content-Disposition"))

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "Q1 Sales", strings.TrimSpace(doc.Find("h1").First().Text()))
	assert.Equal(t, 1, doc.Find("#overview").Length())
	assert.Equal(t, 1, doc.Find("#visualizations").Length())
	assert.Zero(t, doc.Find("#insights").Length())
	assert.Zero(t, doc.Find("#executive-summary").Length())
}

func TestIndexPage(t *testing.T) {
	c := newClient(t, nil)
	doc, err := goquery.NewDocumentFromReader(c.get("/").Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#upload").Length())
	assert.Zero(t, doc.Find("#overview").Length())
	assert.Contains(t, doc.Find(".warning").Text(), "not available")

	require.Equal(t, http.StatusOK, c.upload("sales.csv", sales).Code)
	c.postJSON("/api/chat", questionRequest{Question: "<b>hi</b>"})
	doc, err = goquery.NewDocumentFromReader(c.get("/").Body)
	require.NoError(t, err)
	assert.Contains(t, doc.Find("#overview h2").Text(), "sales.csv")
	assert.Equal(t, 4, doc.Find("table.sample tbody tr").Length())
	assert.NotZero(t, doc.Find(".chart svg").Length())
	assert.Equal(t, "<b>hi</b>", doc.Find(".msg.user").Text())
}
