package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/log"
	"github.com/KaramelBytes/insightgenie/internal/query"
	"github.com/KaramelBytes/insightgenie/internal/report"
	"github.com/KaramelBytes/insightgenie/internal/session"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

func joinNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

type chatLine struct {
	Role chat.Role
	HTML template.HTML
}

type indexView struct {
	Loaded      bool
	Name        string
	Profile     *analysis.Profile
	Sample      *dataset.Table
	Insights    []string
	Charts      []viz.Visualization
	Chat        []chatLine
	AIAvailable bool
	MaxUploadMB int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexView{AIAvailable: s.assistant.Available(), MaxUploadMB: s.maxUpload >> 20}
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return nil
		}
		charts, err := ss.Visualizations()
		if err != nil {
			return err
		}
		ins, err := ss.Insights()
		if err != nil {
			return err
		}
		data.Loaded = true
		data.Name = ss.Name()
		data.Profile = ss.Profile()
		data.Sample = ss.Table().Head(5)
		data.Charts = charts
		data.Insights = analysis.Texts(ins)
		for _, m := range ss.History().Messages() {
			line := chatLine{Role: m.Role, HTML: template.HTML(template.HTMLEscapeString(m.Content))}
			if m.Role == chat.RoleAssistant {
				line.HTML = chat.Format(m.Content)
			}
			data.Chat = append(data.Chat, line)
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, "index.html", data)
}

type profileResponse struct {
	Name    string                 `json:"name"`
	Profile *analysis.Profile      `json:"profile"`
	Stats   []analysis.ColumnStats `json:"stats"`
}

func newProfileResponse(ss *session.Session) profileResponse {
	return profileResponse{
		Name:    ss.Name(),
		Profile: ss.Profile(),
		Stats:   analysis.Describe(ss.Table(), ss.Profile()),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("File too large or malformed (limit %d MB)", s.maxUpload>>20))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	t, err := dataset.Load(file, header.Filename)
	if err != nil {
		var ife *dataset.InputFormatError
		if errors.As(err, &ife) {
			writeError(w, http.StatusBadRequest, ife.Error())
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error loading file: %v", err))
		return
	}
	var resp profileResponse
	err = s.do(r, func(ss *session.Session) error {
		if err := ss.Load(t); err != nil {
			return err
		}
		resp = newProfileResponse(ss)
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	log.Info("dataset uploaded", zap.String("name", t.Name), zap.Int("rows", t.NumRows()), zap.Int("cols", t.NumCols()))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var resp profileResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		resp = newProfileResponse(ss)
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type insightsResponse struct {
	Insights []string `json:"insights"`
	Source   string   `json:"source"`
}

// handleInsights serves heuristic insights, or model-written ones with ?ai=1.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	useAI, _ := strconv.ParseBool(r.URL.Query().Get("ai"))
	var resp insightsResponse
	err := s.do(r, func(ss *session.Session) error {
		if useAI && s.assistant.Available() {
			if !ss.Loaded() {
				return session.ErrNoDataset
			}
			resp = insightsResponse{Insights: s.assistant.Insights(r.Context(), ss.Table(), ss.Profile()), Source: "ai"}
			return nil
		}
		ins, err := ss.Insights()
		if err != nil {
			return err
		}
		resp = insightsResponse{Insights: analysis.Texts(ins), Source: "heuristic"}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type chartResponse struct {
	Chart viz.Visualization `json:"chart"`
	SVG   template.HTML     `json:"svg"`
}

func charts(vs []viz.Visualization) []chartResponse {
	out := make([]chartResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, chartResponse{Chart: v, SVG: viz.SVG(v)})
	}
	return out
}

func (s *Server) handleVisualizations(w http.ResponseWriter, r *http.Request) {
	var out []chartResponse
	err := s.do(r, func(ss *session.Session) error {
		vs, err := ss.Visualizations()
		if err != nil {
			return err
		}
		out = charts(vs)
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCustomVisualization(w http.ResponseWriter, r *http.Request) {
	var req viz.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var out chartResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		v, err := viz.Build(ss.Table(), req)
		if err != nil {
			return err
		}
		out = chartResponse{Chart: v, SVG: viz.SVG(v)}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type cleanRequest struct {
	Method  string   `json:"method"`
	Value   string   `json:"value,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

type cleanResponse struct {
	Message string                `json:"message"`
	Result  *analysis.CleanResult `json:"result,omitempty"`
	Profile *analysis.Profile     `json:"profile"`
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	method, err := analysis.ParseCleanMethod(req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var resp cleanResponse
	err = s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		out, res, err := analysis.Clean(ss.Table(), analysis.CleanOptions{Method: method, Value: req.Value, Columns: req.Columns})
		if err != nil {
			return err
		}
		if err := ss.Replace(out); err != nil {
			return err
		}
		resp = cleanResponse{
			Message: fmt.Sprintf("Dropped %d rows, filled %d cells", res.RowsDropped, res.CellsFilled),
			Result:  &res,
			Profile: ss.Profile(),
		}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type outlierRequest struct {
	Column string `json:"column"`
}

func (s *Server) handleOutliers(w http.ResponseWriter, r *http.Request) {
	var req outlierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var resp cleanResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		out, res, err := analysis.CapOutliers(ss.Table(), req.Column)
		if err != nil {
			return err
		}
		if err := ss.Replace(out); err != nil {
			return err
		}
		resp = cleanResponse{Message: res.String(), Profile: ss.Profile()}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type normalizeRequest struct {
	Method  string   `json:"method"`
	Columns []string `json:"columns,omitempty"`
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	method := analysis.NormalizeMethod(strings.ToLower(req.Method))
	if method == "" {
		method = analysis.NormalizeMinMax
	}
	var resp cleanResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		out, err := analysis.Normalize(ss.Table(), req.Columns, method)
		if err != nil {
			return err
		}
		if err := ss.Replace(out); err != nil {
			return err
		}
		resp = cleanResponse{Message: fmt.Sprintf("Applied %s normalization", method), Profile: ss.Profile()}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q (want csv or xlsx)", format))
		return
	}
	var buf bytes.Buffer
	var name string
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		name = exportName(ss.Name(), format)
		if format == "xlsx" {
			return ss.Table().WriteXLSX(&buf)
		}
		return ss.Table().WriteCSV(&buf)
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	ct := "text/csv; charset=utf-8"
	if format == "xlsx" {
		ct = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func exportName(name, ext string) string {
	base := name
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "data"
	}
	return "cleaned_" + base + "." + ext
}

type questionRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Type    string             `json:"type"`
	Message string             `json:"message"`
	Values  []query.ColumnMean `json:"values,omitempty"`
	Chart   *viz.Visualization `json:"chart,omitempty"`
	SVG     template.HTML      `json:"svg,omitempty"`
	Table   *dataset.Table     `json:"table,omitempty"`
}

func newAskResponse(res query.Result) askResponse {
	out := askResponse{Type: res.Type(), Message: res.Message()}
	switch v := res.(type) {
	case query.Statistic:
		out.Values = v.Values
	case query.Visualization:
		out.Chart = &v.Chart
		out.SVG = viz.SVG(v.Chart)
	case query.TableSlice:
		out.Table = v.Table
	}
	return out
}

func readQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return "", false
	}
	return q, true
}

// handleAsk answers with the rule-based interpreter only.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	var resp askResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		resp = newAskResponse(query.Interpret(q, ss.Table(), ss.Profile()))
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatResponse struct {
	Answer string        `json:"answer"`
	HTML   template.HTML `json:"html"`
	Turns  int           `json:"turns"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	var resp chatResponse
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		h := ss.History()
		prior := h.Messages()
		h.Append(chat.RoleUser, q)
		answer := s.assistant.Answer(r.Context(), q, ss.Table(), ss.Profile(), prior)
		h.Append(chat.RoleAssistant, answer)
		resp = chatResponse{Answer: answer, HTML: chat.Format(answer), Turns: h.Len()}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	err := s.do(r, func(ss *session.Session) error {
		ss.History().Clear()
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var qs []string
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		qs = s.assistant.SuggestedQuestions(r.Context(), ss.Profile())
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"questions": qs})
}

// sectionsFromQuery reads include toggles; absent parameters default to on.
func sectionsFromQuery(r *http.Request) report.Sections {
	on := func(name string) bool {
		v := r.URL.Query().Get(name)
		if v == "" {
			return true
		}
		b, err := strconv.ParseBool(v)
		return err != nil || b
	}
	return report.Sections{
		Summary:         on("summary"),
		Visualizations:  on("visualizations"),
		Insights:        on("insights"),
		Recommendations: on("recommendations"),
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		title = report.DefaultTitle
	}
	sections := sectionsFromQuery(r)
	var doc []byte
	err := s.do(r, func(ss *session.Session) error {
		if !ss.Loaded() {
			return session.ErrNoDataset
		}
		charts, err := ss.Visualizations()
		if err != nil {
			return err
		}
		ins, err := ss.Insights()
		if err != nil {
			return err
		}
		in := report.Input{
			Table:          ss.Table(),
			Profile:        ss.Profile(),
			Visualizations: charts,
			Insights:       analysis.Texts(ins),
			Title:          title,
			GeneratedAt:    time.Now(),
		}
		if s.assistant.Available() {
			in.Summary, in.Recommendations, err = s.assistant.Narrative(r.Context(), in.Table, in.Profile, in.Insights,
				sections.Summary, sections.Recommendations)
			if err != nil {
				return err
			}
		}
		doc, err = report.Compose(in.Filter(sections))
		return err
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(title)))
	_, _ = w.Write(doc)
}
