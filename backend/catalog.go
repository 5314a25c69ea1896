package backend

import "strings"

// ModelInfo is one catalog entry.
type ModelInfo struct {
	ID                string   `json:"id"`
	Provider          string   `json:"provider"`
	DisplayName       string   `json:"display_name"`
	ContextWindow     int      `json:"context_window"`
	MaxOutput         int      `json:"max_output,omitempty"`
	SupportsTools     bool     `json:"supports_tools"`
	SupportsReasoning bool     `json:"supports_reasoning"`
	Aliases           []string `json:"aliases,omitempty"`
}

// Models lists known models, newest first within each provider.
var Models = []ModelInfo{
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: 32768,
		SupportsTools: true, SupportsReasoning: true,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384,
		SupportsTools: true, SupportsReasoning: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: 32768,
		SupportsTools: true, SupportsReasoning: true,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: 16384,
		SupportsTools: true, SupportsReasoning: true,
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: 16384,
		SupportsTools: true,
	},
	{
		ID: "gemini-3-pro-preview", Provider: "gemini", DisplayName: "Gemini 3 Pro (Preview)",
		ContextWindow: 1048576, MaxOutput: 65536,
		SupportsTools: true, SupportsReasoning: true,
		Aliases: []string{"gemini-pro", "gemini-3-pro"},
	},
}

// LookupModel finds a model by id or alias, case-insensitively.
func LookupModel(id string) *ModelInfo {
	if id == "" {
		return nil
	}
	for i := range Models {
		if strings.EqualFold(Models[i].ID, id) {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if strings.EqualFold(alias, id) {
				return &Models[i]
			}
		}
	}
	return nil
}

// ModelsFor returns the catalog entries for a provider, or all of them when
// provider is empty.
func ModelsFor(provider string) []ModelInfo {
	var out []ModelInfo
	for _, m := range Models {
		if provider == "" || m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModelFor returns the newest tool-capable model of a provider.
func DefaultModelFor(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider && Models[i].SupportsTools {
			return &Models[i]
		}
	}
	return nil
}
