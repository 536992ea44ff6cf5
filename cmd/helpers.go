package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/insightgenie/internal/ai"
	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/assistant"
	cfgpkg "github.com/KaramelBytes/insightgenie/internal/config"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// runtimeConfig maps the global configuration onto gateway settings.
func runtimeConfig(c *cfgpkg.Global) (string, ai.RuntimeConfig) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if c == nil {
		return ai.ProviderGemini, rc
	}
	if c.HTTPTimeoutSec > 0 {
		rc.HTTPTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
	}
	if c.RetryMaxAttempts > 0 {
		rc.RetryMax = c.RetryMaxAttempts
	}
	if c.RetryBaseDelayMs > 0 {
		rc.BaseDelay = time.Duration(c.RetryBaseDelayMs) * time.Millisecond
	}
	if c.RetryMaxDelayMs > 0 {
		rc.MaxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
	}
	if c.HasAPIKey() {
		rc.APIKey = strings.TrimSpace(c.APIKey)
	}
	rc.Model = c.Model
	rc.BaseURL = c.BaseURL
	rc.Temperature = c.Temperature
	rc.MaxOutputTokens = c.MaxOutputTokens

	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	switch provider {
	case "", "google", "gemini":
		provider = ai.ProviderGemini
	case "openrouter":
		provider = ai.ProviderOpenRouter
	}
	return provider, rc
}

// connectAssistant returns a model-backed assistant, or a degraded one with a
// warning when no credential is configured or the probe fails.
func connectAssistant(ctx context.Context, quiet bool) *assistant.Assistant {
	provider, rc := runtimeConfig(cfg)
	limit := 0
	if cfg != nil {
		limit = ai.PromptBudget(rc.Model, cfg.PromptTokenLimit)
	}
	a := assistant.Connect(ctx, provider, rc, assistant.WithPromptLimit(limit))
	if !a.Available() && !quiet {
		fmt.Fprintf(os.Stderr, "⚠ Warning: AI assistant unavailable (%v); using heuristic answers\n", a.Reason())
	}
	return a
}

func histogramBins() int {
	if cfg != nil && cfg.HistogramBins > 0 {
		return cfg.HistogramBins
	}
	return 0
}

// loadDataset reads and profiles a dataset file.
func loadDataset(path string) (*dataset.Table, *analysis.Profile, error) {
	t, err := dataset.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := analysis.NewProfile(t)
	if err != nil {
		return nil, nil, fmt.Errorf("profile %s: %w", filepath.Base(path), err)
	}
	return t, p, nil
}

// expandInputs resolves globs and literal paths, dropping duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniquePath returns dir/base+suffix, or dir/base__N+suffix when taken.
func uniquePath(dir, base, suffix string) string {
	out := filepath.Join(dir, base+suffix)
	if _, err := os.Stat(out); err != nil {
		return out
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, idx, suffix))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
