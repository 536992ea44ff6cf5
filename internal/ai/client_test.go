package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

const geminiPath = "/models/gemini-test:generateContent"

func geminiText(s string) GenerateContentResponse {
	return GenerateContentResponse{Candidates: []Candidate{{
		Content:      Content{Role: "model", Parts: []Part{{Text: s}}},
		FinishReason: "STOP",
	}}}
}

// testServerSequence answers with statuses in order, repeating the last one.
func testServerSequence(t *testing.T, path string, statuses []int, headers []http.Header, bodyOK any) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code": st, "message": "upstream said no", "status": "UNAVAILABLE",
		}})
	}))
	return srv, &idx
}

func geminiClient(url string, retries int, base, maxDelay time.Duration) *GeminiClient {
	return NewGeminiClient(RuntimeConfig{
		APIKey: "test", Model: "gemini-test", BaseURL: url,
		HTTPTimeout: 2 * time.Second, RetryMax: retries, BaseDelay: base, MaxDelay: maxDelay,
	})
}

func TestGeminiRetriesOn429(t *testing.T) {
	srv, calls := testServerSequence(t, geminiPath, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, geminiText("ok"))
	defer srv.Close()

	c := geminiClient(srv.URL, 3, 10*time.Millisecond, 100*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := c.Generate(ctx, "hi")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected text: %q", out)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	srv, _ := testServerSequence(t, geminiPath, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, geminiText("ok"))
	defer srv.Close()

	c := geminiClient(srv.URL, 3, time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.Generate(ctx, "hi"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond { // allow some scheduling variance
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestRetriesExhaustedOnServerError(t *testing.T) {
	srv, calls := testServerSequence(t, geminiPath, []int{503}, nil, nil)
	defer srv.Close()

	c := geminiClient(srv.URL, 3, time.Millisecond, 5*time.Millisecond)
	_, err := c.Generate(context.Background(), "hi")
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Code != "UNAVAILABLE" {
		t.Fatalf("expected status kept as code, got %q", se.Code)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": 400, "status": "INVALID_ARGUMENT"}})
	}))
	defer srv.Close()

	c := geminiClient(srv.URL, 1, time.Millisecond, time.Millisecond)
	_, err := c.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	var br *BadRequestError
	if !errors.As(err, &br) {
		t.Fatalf("expected BadRequestError, got %T", err)
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		msg    string
		check  func(error) bool
	}{
		{"unauthorized", 401, "nope", func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{"invalid key", 400, "API key not valid. Please pass a valid API key.", func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{"model", 404, "models/gemini-test is not found for API version v1beta", func(err error) bool { var e *ModelNotFoundError; return errors.As(err, &e) }},
		{"quota", 402, "billing account required", func(err error) bool { var e *QuotaExceededError; return errors.As(err, &e) }},
		{"rate", 429, "slow down", func(err error) bool { var e *RateLimitError; return errors.As(err, &e) && e.RetryAfter == 2*time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": tc.msg}})
			}))
			defer srv.Close()
			c := geminiClient(srv.URL, 1, time.Millisecond, time.Millisecond)
			_, err := c.Generate(context.Background(), "hi")
			if !tc.check(err) {
				t.Fatalf("unexpected classification: %T: %v", err, err)
			}
		})
	}
}

func TestGeminiRequestShape(t *testing.T) {
	var got GenerateContentRequest
	var key string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != geminiPath {
			http.NotFound(w, r)
			return
		}
		key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(GenerateContentResponse{Candidates: []Candidate{{
			Content: Content{Parts: []Part{{Text: "a"}, {Text: "b"}}},
		}}})
	}))
	defer srv.Close()

	c := NewGeminiClient(RuntimeConfig{APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL + "/", Temperature: 0.4, MaxOutputTokens: 64})
	out, err := c.Generate(context.Background(), "describe the data")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "ab" {
		t.Fatalf("expected joined parts, got %q", out)
	}
	if key != "secret" {
		t.Fatalf("expected api key header, got %q", key)
	}
	if len(got.Contents) != 1 || got.Contents[0].Parts[0].Text != "describe the data" {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	if len(got.SafetySettings) != 4 || got.SafetySettings[0].Threshold != "BLOCK_MEDIUM_AND_ABOVE" {
		t.Fatalf("unexpected safety settings: %+v", got.SafetySettings)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.MaxOutputTokens != 64 || *got.GenerationConfig.Temperature != 0.4 {
		t.Fatalf("unexpected generation config: %+v", got.GenerationConfig)
	}
}

func TestGeminiContentFiltered(t *testing.T) {
	for _, body := range []GenerateContentResponse{
		{Candidates: []Candidate{{FinishReason: "RECITATION"}}},
		{PromptFeedback: &PromptFeedback{BlockReason: "SAFETY"}},
	} {
		srv, _ := testServerSequence(t, geminiPath, []int{200}, nil, body)
		c := geminiClient(srv.URL, 1, time.Millisecond, time.Millisecond)
		_, err := c.Generate(context.Background(), "hi")
		srv.Close()
		var cf *ContentFilteredError
		if !errors.As(err, &cf) {
			t.Fatalf("expected ContentFilteredError, got %T: %v", err, err)
		}
	}
	if !(&ContentFilteredError{Reason: "RECITATION"}).IsRecitation() {
		t.Fatalf("RECITATION should report recitation")
	}
}

func TestOpenRouterGenerate(t *testing.T) {
	okBody := ChatResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv, _ := testServerSequence(t, "/chat/completions", []int{500, 200}, nil, okBody)
	defer srv.Close()

	c := NewOpenRouterClient(RuntimeConfig{APIKey: "k", BaseURL: srv.URL, RetryMax: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	if c.Model() != DefaultOpenRouterModel {
		t.Fatalf("expected default model, got %q", c.Model())
	}
	out, err := c.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected text %q", out)
	}
}

func TestUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := geminiClient("http://"+addr, 1, time.Millisecond, time.Millisecond)
	_, err = c.Generate(context.Background(), "hi")
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	srv, _ := testServerSequence(t, geminiPath, []int{503}, []http.Header{{"Retry-After": {"30"}}}, nil)
	defer srv.Close()

	c := geminiClient(srv.URL, 5, time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Generate(ctx, "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("retry wait ignored context")
	}
}

func TestNewAndProbe(t *testing.T) {
	if _, err := New(ProviderGemini, RuntimeConfig{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("missing key should be unavailable, got %v", err)
	}
	if _, err := New("nope", RuntimeConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	g, err := New("", RuntimeConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := g.(*GeminiClient); !ok {
		t.Fatalf("default provider should be gemini, got %T", g)
	}

	srv, _ := testServerSequence(t, geminiPath, []int{401}, nil, nil)
	defer srv.Close()
	err = Probe(context.Background(), geminiClient(srv.URL, 1, time.Millisecond, time.Millisecond))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("failed probe should wrap ErrUnavailable, got %v", err)
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("probe should keep the cause, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if s, err := parseRetryAfterSeconds("3"); err != nil || s != 3 {
		t.Fatalf("got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatalf("expected error")
	}
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	if s, err := parseRetryAfterSeconds(past); err != nil || s != 0 {
		t.Fatalf("past date should clamp to 0, got %d, %v", s, err)
	}
}

func TestWithJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := withJitter(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %v", d)
		}
	}
}

func TestPromptBudget(t *testing.T) {
	if got := PromptBudget("gemini-pro", 100000); got != 30720 {
		t.Fatalf("expected clamp to window, got %d", got)
	}
	if got := PromptBudget("gemini-pro", 6000); got != 6000 {
		t.Fatalf("expected limit kept, got %d", got)
	}
	if got := PromptBudget("unknown", 6000); got != 6000 {
		t.Fatalf("unknown model should keep limit, got %d", got)
	}
}
