package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Model represents an LLM model with its properties
type Model struct {
	Provider     Provider     `json:"provider"`
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	Family       ModelFamily  `json:"family"`
	ContextSize  int          `json:"context_size"`
	InputCost    float64      `json:"input_cost"`  // USD per 1M input tokens
	OutputCost   float64      `json:"output_cost"` // USD per 1M output tokens
	Capabilities Capabilities `json:"capabilities"`
}

// Provider represents LLM providers
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider accepts the provider names used in configuration.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google", "googlegenai":
		return ProviderGemini, nil
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	}
	return "", fmt.Errorf("unknown provider: %q", s)
}

// ModelFamily represents model families/series
type ModelFamily string

const (
	FamilyGemini25 ModelFamily = "gemini-2.5"
	FamilyGemini20 ModelFamily = "gemini-2.0"
	FamilyGPT41    ModelFamily = "gpt-4.1"
	FamilyGPT4o    ModelFamily = "gpt-4o"
	FamilyClaude4  ModelFamily = "claude-4"
	FamilyClaude35 ModelFamily = "claude-3.5"
)

// Capabilities represents what a model can do
type Capabilities struct {
	FunctionCalling bool `json:"function_calling"`
	Thinking        bool `json:"thinking"`
	Grounding       bool `json:"grounding"`
	Vision          bool `json:"vision"`
	JSON            bool `json:"json"`
	Streaming       bool `json:"streaming"`
}

const (
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25Pro       = "gemini-2.5-pro"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
	ModelGemini20Flash     = "gemini-2.0-flash"

	ModelGPT41     = "gpt-4.1"
	ModelGPT41Mini = "gpt-4.1-mini"
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"

	ModelClaudeSonnet4  = "claude-sonnet-4-20250514"
	ModelClaudeOpus4    = "claude-opus-4-20250514"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
)

// Embedding models.
const (
	ModelGeminiEmbedding      = "text-embedding-004"
	ModelOpenAIEmbeddingSmall = "text-embedding-3-small"
)

var geminiCaps = Capabilities{FunctionCalling: true, Thinking: true, Grounding: true, Vision: true, JSON: true, Streaming: true}
var openaiCaps = Capabilities{FunctionCalling: true, Vision: true, JSON: true, Streaming: true}
var claudeCaps = Capabilities{FunctionCalling: true, Vision: true, Streaming: true}

// AvailableModels is the catalog of chat models the clients know about.
var AvailableModels = map[string]Model{
	ModelGemini25Flash: {
		Provider: ProviderGemini, Name: ModelGemini25Flash, DisplayName: "Gemini 2.5 Flash",
		Family: FamilyGemini25, ContextSize: 1048576, InputCost: 0.30, OutputCost: 2.50,
		Capabilities: geminiCaps,
	},
	ModelGemini25Pro: {
		Provider: ProviderGemini, Name: ModelGemini25Pro, DisplayName: "Gemini 2.5 Pro",
		Family: FamilyGemini25, ContextSize: 1048576, InputCost: 1.25, OutputCost: 10.0,
		Capabilities: geminiCaps,
	},
	ModelGemini25FlashLite: {
		Provider: ProviderGemini, Name: ModelGemini25FlashLite, DisplayName: "Gemini 2.5 Flash-Lite",
		Family: FamilyGemini25, ContextSize: 1048576, InputCost: 0.10, OutputCost: 0.40,
		Capabilities: geminiCaps,
	},
	ModelGemini20Flash: {
		Provider: ProviderGemini, Name: ModelGemini20Flash, DisplayName: "Gemini 2.0 Flash",
		Family: FamilyGemini20, ContextSize: 1048576, InputCost: 0.10, OutputCost: 0.40,
		Capabilities: Capabilities{FunctionCalling: true, Grounding: true, Vision: true, JSON: true, Streaming: true},
	},
	ModelGPT41: {
		Provider: ProviderOpenAI, Name: ModelGPT41, DisplayName: "GPT-4.1",
		Family: FamilyGPT41, ContextSize: 1047576, InputCost: 2.0, OutputCost: 8.0,
		Capabilities: openaiCaps,
	},
	ModelGPT41Mini: {
		Provider: ProviderOpenAI, Name: ModelGPT41Mini, DisplayName: "GPT-4.1 Mini",
		Family: FamilyGPT41, ContextSize: 1047576, InputCost: 0.40, OutputCost: 1.60,
		Capabilities: openaiCaps,
	},
	ModelGPT4o: {
		Provider: ProviderOpenAI, Name: ModelGPT4o, DisplayName: "GPT-4o",
		Family: FamilyGPT4o, ContextSize: 128000, InputCost: 2.50, OutputCost: 10.0,
		Capabilities: openaiCaps,
	},
	ModelGPT4oMini: {
		Provider: ProviderOpenAI, Name: ModelGPT4oMini, DisplayName: "GPT-4o Mini",
		Family: FamilyGPT4o, ContextSize: 128000, InputCost: 0.15, OutputCost: 0.60,
		Capabilities: openaiCaps,
	},
	ModelClaudeSonnet4: {
		Provider: ProviderAnthropic, Name: ModelClaudeSonnet4, DisplayName: "Claude Sonnet 4",
		Family: FamilyClaude4, ContextSize: 200000, InputCost: 3.0, OutputCost: 15.0,
		Capabilities: Capabilities{FunctionCalling: true, Thinking: true, Vision: true, Streaming: true},
	},
	ModelClaudeOpus4: {
		Provider: ProviderAnthropic, Name: ModelClaudeOpus4, DisplayName: "Claude Opus 4",
		Family: FamilyClaude4, ContextSize: 200000, InputCost: 15.0, OutputCost: 75.0,
		Capabilities: Capabilities{FunctionCalling: true, Thinking: true, Vision: true, Streaming: true},
	},
	ModelClaude35Sonnet: {
		Provider: ProviderAnthropic, Name: ModelClaude35Sonnet, DisplayName: "Claude 3.5 Sonnet",
		Family: FamilyClaude35, ContextSize: 200000, InputCost: 3.0, OutputCost: 15.0,
		Capabilities: claudeCaps,
	},
	ModelClaude35Haiku: {
		Provider: ProviderAnthropic, Name: ModelClaude35Haiku, DisplayName: "Claude 3.5 Haiku",
		Family: FamilyClaude35, ContextSize: 200000, InputCost: 0.80, OutputCost: 4.0,
		Capabilities: claudeCaps,
	},
}

// GetModel returns model metadata for a given model name
func GetModel(name string) (Model, error) {
	model, exists := AvailableModels[name]
	if !exists {
		return Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return model, nil
}

// ProviderForModel resolves the provider of a model, falling back to name
// prefixes for models missing from the catalog.
func ProviderForModel(name string) (Provider, bool) {
	if m, ok := AvailableModels[name]; ok {
		return m.Provider, true
	}
	switch {
	case strings.HasPrefix(name, "gemini"):
		return ProviderGemini, true
	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"), strings.HasPrefix(name, "o4"):
		return ProviderOpenAI, true
	case strings.HasPrefix(name, "claude"):
		return ProviderAnthropic, true
	}
	return "", false
}

// GetModelsByProvider returns the provider's models sorted by name.
func GetModelsByProvider(provider Provider) []Model {
	var models []Model
	for _, model := range AvailableModels {
		if model.Provider == provider {
			models = append(models, model)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// GetCheapestModel returns the cheapest model for a provider
func GetCheapestModel(provider Provider) (Model, error) {
	models := GetModelsByProvider(provider)
	if len(models) == 0 {
		return Model{}, fmt.Errorf("no models found for provider: %s", provider)
	}
	cheapest := models[0]
	for _, model := range models[1:] {
		if model.InputCost+model.OutputCost < cheapest.InputCost+cheapest.OutputCost {
			cheapest = model
		}
	}
	return cheapest, nil
}

// ValidateModel checks if a model name is valid
func ValidateModel(name string) error {
	_, err := GetModel(name)
	return err
}

func (m Model) String() string {
	return fmt.Sprintf("%s (%s) - %s", m.DisplayName, m.Name, m.Provider)
}

// EstimateCost estimates the cost for given token counts
func (m Model) EstimateCost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)/1000000)*m.InputCost + (float64(outputTokens)/1000000)*m.OutputCost
}
