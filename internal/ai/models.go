package ai

import (
	"encoding/json"
	"os"
	"sort"
)

// ModelInfo is catalog metadata used to size prompts.
type ModelInfo struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextTokens int    `json:"context_tokens"` // approximate input window
}

var models = map[string]ModelInfo{
	"gemini-1.5-flash-latest": {Name: "gemini-1.5-flash-latest", Provider: ProviderGemini, ContextTokens: 1048576},
	"gemini-1.5-pro-latest":   {Name: "gemini-1.5-pro-latest", Provider: ProviderGemini, ContextTokens: 2097152},
	"gemini-2.0-flash":        {Name: "gemini-2.0-flash", Provider: ProviderGemini, ContextTokens: 1048576},
	"gemini-2.0-flash-lite":   {Name: "gemini-2.0-flash-lite", Provider: ProviderGemini, ContextTokens: 1048576},
	"gemini-pro":              {Name: "gemini-pro", Provider: ProviderGemini, ContextTokens: 30720},

	"google/gemini-flash-1.5":   {Name: "google/gemini-flash-1.5", Provider: ProviderOpenRouter, ContextTokens: 1000000},
	"openai/gpt-4o-mini":        {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"deepseek/deepseek-r1:free": {Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"meta-llama/llama-3.1-8b-instruct": {
		Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072,
	},
}

// LookupModel returns catalog metadata for name.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// Models lists catalog entries for provider (all when empty), sorted by name.
func Models(provider string) []ModelInfo {
	var out []ModelInfo
	for _, m := range models {
		if provider == "" || m.Provider == provider {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadCatalogFromJSON reads a map[string]ModelInfo from path.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeCatalog adds or overrides catalog entries.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
		}
		models[k] = v
	}
}

// PromptBudget clamps a configured prompt token limit to the model window.
func PromptBudget(model string, limit int) int {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return limit
	}
	if limit <= 0 || limit > mi.ContextTokens {
		return mi.ContextTokens
	}
	return limit
}
