// Package assistant builds dataset-aware prompts for the language model and
// falls back to heuristic answers when the model is unavailable or fails.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/insightgenie/internal/ai"
	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/log"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

// User-facing fallback texts.
const (
	MsgNotInitialized    = "Model not initialized. Please check your API key."
	MsgSummaryFailed     = "Could not generate summary. Please check the data format."
	MsgUnavailable       = "The AI assistant is not available. Please check your API key in the .env file."
	MsgNoRecommendations = "No recommendations available."
	MsgEmptyAnswer       = "I couldn't generate a response. Please try rephrasing your question in a more analytical way."
	MsgFiltered          = "I couldn't generate a complete answer. Please try rephrasing your question to be more specific about the data analysis you need."
	MsgRecitation        = `I can't provide a specific answer as the data may contain copyrighted material.

Try reformulating your question to be more general or analytical rather than asking for specific copyrighted content. For example:
- Ask for statistical analysis of the data
- Request grouping or aggregation of values
- Ask for correlations between columns
- Request insights or patterns in the data`
)

const (
	maxSentenceInsights = 5
	maxQuestions        = 5
)

// Assistant answers with a Generator when one is available.
type Assistant struct {
	gen         ai.Generator
	reason      error
	promptLimit int
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithPromptLimit caps answer prompts at roughly n tokens. Zero disables it.
func WithPromptLimit(n int) Option {
	return func(a *Assistant) { a.promptLimit = n }
}

// New wraps gen. A nil gen yields a degraded assistant.
func New(gen ai.Generator, opts ...Option) *Assistant {
	a := &Assistant{gen: gen}
	if gen == nil {
		a.reason = ai.ErrUnavailable
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Degraded returns an assistant that only produces heuristic answers.
func Degraded(reason error, opts ...Option) *Assistant {
	a := New(nil, opts...)
	if reason != nil {
		a.reason = reason
	}
	return a
}

// Connect builds the configured runtime and probes it once. Any failure
// produces a degraded assistant rather than an error.
func Connect(ctx context.Context, provider string, cfg ai.RuntimeConfig, opts ...Option) *Assistant {
	g, err := ai.New(provider, cfg)
	if err != nil {
		log.Warn("language model disabled", zap.String("provider", provider), zap.Error(err))
		return Degraded(err, opts...)
	}
	if err := ai.Probe(ctx, g); err != nil {
		log.Warn("language model connectivity check failed", zap.String("provider", provider), zap.Error(err))
		return Degraded(err, opts...)
	}
	log.Info("language model ready", zap.String("provider", provider), zap.String("model", cfg.Model))
	return New(g, opts...)
}

// Available reports whether a model backs the assistant.
func (a *Assistant) Available() bool { return a != nil && a.gen != nil }

// Reason explains why the assistant is degraded, nil when available.
func (a *Assistant) Reason() error {
	if a.Available() {
		return nil
	}
	if a == nil || a.reason == nil {
		return ai.ErrUnavailable
	}
	return a.reason
}

// Summary describes the dataset in a few sentences.
func (a *Assistant) Summary(ctx context.Context, t *dataset.Table, p *analysis.Profile) string {
	if !a.Available() {
		return MsgNotInitialized
	}
	out, err := a.gen.Generate(ctx, summaryPrompt(t, p))
	if err != nil || strings.TrimSpace(out) == "" {
		log.Error("generate summary", zap.Error(err))
		return MsgSummaryFailed
	}
	return strings.TrimSpace(out)
}

// Insights asks the model for prose insights, falling back to heuristics.
func (a *Assistant) Insights(ctx context.Context, t *dataset.Table, p *analysis.Profile) []string {
	if !a.Available() {
		return FallbackInsights(t, p)
	}
	out, err := a.gen.Generate(ctx, insightsPrompt(t, p))
	if err != nil {
		log.Error("generate insights", zap.Error(err))
		return FallbackInsights(t, p)
	}
	points := splitInsights(out)
	if len(points) == 0 {
		return FallbackInsights(t, p)
	}
	return points
}

// Answer responds to a question using the dataset context and prior turns.
func (a *Assistant) Answer(ctx context.Context, question string, t *dataset.Table, p *analysis.Profile, history []chat.Message) string {
	if !a.Available() {
		return MsgUnavailable
	}
	tail := answerInstructions(question, history)
	body := answerContext(t, p)
	if a.promptLimit > 0 {
		budget := a.promptLimit - utils.CountTokens(tail)
		if budget < 1 {
			budget = 1
		}
		body = utils.TruncateToTokenLimit(body, budget)
	}
	out, err := a.gen.Generate(ctx, body+tail)
	if err != nil {
		log.Error("answer question", zap.Error(err))
		var cf *ai.ContentFilteredError
		if errors.As(err, &cf) {
			if cf.IsRecitation() {
				return MsgRecitation
			}
			return MsgFiltered
		}
		return fmt.Sprintf("I encountered an error analyzing your data: %v. Please try a different question or check if your dataset is properly formatted.", err)
	}
	if strings.TrimSpace(out) == "" {
		return MsgEmptyAnswer
	}
	return out
}

// SuggestedQuestions proposes follow-up questions about the dataset.
func (a *Assistant) SuggestedQuestions(ctx context.Context, p *analysis.Profile) []string {
	if !a.Available() {
		return FallbackQuestions(p)
	}
	out, err := a.gen.Generate(ctx, questionsPrompt(p))
	if err != nil {
		log.Error("suggest questions", zap.Error(err))
		return FallbackQuestions(p)
	}
	qs := points(out)
	if len(qs) == 0 {
		return FallbackQuestions(p)
	}
	return qs[:min(maxQuestions, len(qs))]
}

// Recommendations derives next steps from the profile and the top insights.
// A degraded assistant returns none.
func (a *Assistant) Recommendations(ctx context.Context, p *analysis.Profile, insights []string) []string {
	if !a.Available() {
		return nil
	}
	out, err := a.gen.Generate(ctx, recommendationsPrompt(p, insights))
	if err != nil {
		log.Error("generate recommendations", zap.Error(err))
		return []string{MsgNoRecommendations}
	}
	recs := points(out)
	if len(recs) == 0 {
		return []string{MsgNoRecommendations}
	}
	return recs
}

// Narrative produces the report summary and recommendations concurrently.
// Disabled parts come back empty.
func (a *Assistant) Narrative(ctx context.Context, t *dataset.Table, p *analysis.Profile, insights []string, summary, recommendations bool) (string, []string, error) {
	var sum string
	var recs []string
	g, gctx := errgroup.WithContext(ctx)
	if summary {
		g.Go(func() error {
			sum = a.Summary(gctx, t, p)
			return gctx.Err()
		})
	}
	if recommendations {
		g.Go(func() error {
			recs = a.Recommendations(gctx, p, insights)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, fmt.Errorf("report narrative: %w", err)
	}
	return sum, recs, nil
}

// FallbackInsights states basic facts about the dataset without a model.
func FallbackInsights(t *dataset.Table, p *analysis.Profile) []string {
	out := []string{fmt.Sprintf("This dataset contains %d rows and %d columns.", p.Rows, p.Columns)}
	if p.MissingValuesPct > 0 {
		out = append(out, fmt.Sprintf("The dataset has %v%% missing values.", p.MissingValuesPct))
	} else {
		out = append(out, "The dataset has no missing values.")
	}
	for _, c := range firstCols(p.Numerical, 3) {
		if s, ok := analysis.ColumnSummary(t, c); ok {
			out = append(out, fmt.Sprintf("The column '%s' has values ranging from %.2f to %.2f, with an average of %.2f.", c, s.Min, s.Max, s.Mean))
		}
	}
	for _, c := range firstCols(p.Categorical, 3) {
		i := t.ColumnIndex(c)
		vc := t.ValueCounts(i)
		present := len(t.Present(i))
		if len(vc) == 0 || present == 0 {
			continue
		}
		pct := float64(vc[0].Count) / float64(present) * 100
		out = append(out, fmt.Sprintf("The most common value in '%s' is '%s', representing %.1f%% of the data.", c, vc[0].Value, pct))
	}
	return out
}

// FallbackQuestions proposes questions from the profile alone.
func FallbackQuestions(p *analysis.Profile) []string {
	qs := []string{"What insights can you find in this data?"}
	nums := firstCols(p.Numerical, 2)
	for _, c := range nums {
		qs = append(qs, fmt.Sprintf("What is the average %s?", c))
	}
	if len(nums) >= 2 {
		qs = append(qs, fmt.Sprintf("Is there a relationship between %s and %s?", nums[0], nums[1]))
	}
	for _, c := range firstCols(p.Categorical, 1) {
		qs = append(qs, fmt.Sprintf("What are the most common %s values?", c))
	}
	qs = append(qs, "What are the key patterns in this dataset?")
	return qs[:min(maxQuestions, len(qs))]
}

var bulletRe = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)

// points returns non-empty lines with list markers removed.
func points(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// splitInsights splits by lines when the reply has several, otherwise by
// sentences keeping at most five.
func splitInsights(text string) []string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "\n") {
		return points(text)
	}
	out := sentences(text)
	return out[:min(maxSentenceInsights, len(out))]
}

// sentences splits after '.', '!' or '?' when followed by whitespace.
func sentences(text string) []string {
	var out []string
	r := []rune(text)
	start := 0
	for i := 0; i < len(r); i++ {
		if (r[i] == '.' || r[i] == '!' || r[i] == '?') && i+1 < len(r) && unicode.IsSpace(r[i+1]) {
			if s := strings.TrimSpace(string(r[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(r[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
