// Package ai is the gateway to hosted language models. Every runtime turns a
// prompt into text and reports failures with the typed errors in errors.go.
package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider identifiers accepted in configuration.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// ProbePrompt is sent once at startup to verify the key and model.
const ProbePrompt = "Hello"

// RuntimeFactory builds a Generator from the shared config below.
type RuntimeFactory func(RuntimeConfig) Generator

// RuntimeConfig carries the knobs shared by runtimes.
type RuntimeConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	Temperature     float64
	MaxOutputTokens int

	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	return c
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// Providers lists the registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the runtime for provider. A missing key yields ErrUnavailable.
func New(provider string, cfg RuntimeConfig) (Generator, error) {
	if provider == "" {
		provider = ProviderGemini
	}
	f, ok := registry[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", provider, strings.Join(Providers(), ", "))
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: no API key configured: %w", provider, ErrUnavailable)
	}
	return f(cfg.withDefaults()), nil
}

// Probe checks connectivity with a trivial prompt. Any failure is reported
// as ErrUnavailable wrapping the cause.
func Probe(ctx context.Context, g Generator) error {
	if g == nil {
		return ErrUnavailable
	}
	if _, err := g.Generate(ctx, ProbePrompt); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func init() {
	RegisterRuntime(ProviderGemini, func(c RuntimeConfig) Generator { return NewGeminiClient(c) })
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Generator { return NewOpenRouterClient(c) })
}
