package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/insightgenie/internal/log"
)

const errorBodyLimit = 8 << 10

// retrier performs one logical HTTP call with bounded retries on 429, 5xx
// and transient network errors.
type retrier struct {
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetrier(cfg RuntimeConfig) retrier {
	cfg = cfg.withDefaults()
	return retrier{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		maxAttempts: cfg.RetryMax,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

// do sends the request built by build and decodes a 2xx JSON body into out.
// It returns the provider request ID when one is present.
func (r retrier) do(ctx context.Context, build func(context.Context) (*http.Request, error), out any) (string, error) {
	backoff := r.baseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := build(ctx)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = &UnreachableError{Host: req.URL.Host, Err: err}
			if isRetryableNetErr(err) && attempt < r.maxAttempts {
				log.Warn("llm request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
				if err := sleepCtx(ctx, r.capped(withJitter(backoff))); err != nil {
					return "", err
				}
				backoff *= 2
				continue
			}
			return "", lastErr
		}

		reqID := extractRequestID(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return reqID, fmt.Errorf("decode response: %w", err)
			}
			return reqID, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		apiErr := decodeAPIError(resp.StatusCode, body)
		apiErr.RequestID = reqID
		lastErr = classifyAPIError(apiErr, resp)
		if !retryableStatus(resp.StatusCode) || attempt >= r.maxAttempts {
			return reqID, lastErr
		}

		wait := r.capped(withJitter(backoff))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := parseRetryAfterSeconds(ra); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		log.Warn("llm provider returned retryable status",
			zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt), zap.Duration("wait", wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", lastErr
}

func (r retrier) capped(d time.Duration) time.Duration {
	if r.maxDelay > 0 && d > r.maxDelay {
		return r.maxDelay
	}
	return d
}

func retryableStatus(sc int) bool {
	return sc == http.StatusTooManyRequests || (sc >= 500 && sc <= 599)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decodeAPIError reads both {"error":{...}} envelopes and flat bodies. Gemini
// sends a numeric code plus a status string; the status is kept as Code.
func decodeAPIError(status int, body []byte) *APIError {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: status, Raw: raw}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	if msg, ok := src["message"].(string); ok {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	if apiErr.Code == "" {
		if st, ok := src["status"].(string); ok {
			apiErr.Code = st
		}
	}
	if apiErr.Message == "" && raw == nil && len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyAPIError maps an APIError to the typed errors callers branch on.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	msg := apiErr.Message
	code := apiErr.Code
	if sc == http.StatusUnauthorized || sc == http.StatusForbidden {
		return &AuthError{APIError: apiErr}
	}
	if sc == http.StatusTooManyRequests {
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	}
	if sc == http.StatusNotFound {
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") || containsFold(msg, "is not found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	}
	if sc == http.StatusBadRequest {
		// Gemini rejects bad keys with 400 INVALID_ARGUMENT.
		if containsFold(msg, "api key not valid") || code == "API_KEY_INVALID" {
			return &AuthError{APIError: apiErr}
		}
		return &BadRequestError{APIError: apiErr}
	}
	if code == "quota_exceeded" || containsAnyFold(msg, "quota", "billing", "limit exceeded") {
		return &QuotaExceededError{APIError: apiErr}
	}
	if sc >= 500 && sc <= 599 {
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Goog-Request-Id", "Openrouter-Request-ID", "X-Cloud-Trace-Context"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
