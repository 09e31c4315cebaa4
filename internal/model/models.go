// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"slices"
	"strings"
)

// =============================================================================
// PROVIDERS
// =============================================================================

// ModelProvider identifies who serves the generation model.
type ModelProvider string

const (
	ProviderOpenAI      ModelProvider = "openai"
	ProviderAnthropic   ModelProvider = "anthropic"
	ProviderOllama      ModelProvider = "ollama"
	ProviderVLLM        ModelProvider = "vllm"
	ProviderHuggingFace ModelProvider = "huggingface"
)

// Providers lists every provider in display order.
var Providers = []ModelProvider{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderOllama,
	ProviderVLLM,
	ProviderHuggingFace,
}

// ModelOptions is the fixed set of model names offered per provider.
var ModelOptions = map[ModelProvider][]string{
	ProviderOpenAI:      {"gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"},
	ProviderAnthropic:   {"claude-3-opus", "claude-3-sonnet", "claude-2.1"},
	ProviderOllama:      {"llama2", "mistral", "mixtral", "codellama"},
	ProviderVLLM:        {"llama2-70b", "mixtral-8x7b", "phi-2"},
	ProviderHuggingFace: {"mistralai/mixtral-8x7b", "meta-llama/llama-2-70b"},
}

// defaultEndpoints are suggested for self-hosted providers.
var defaultEndpoints = map[ModelProvider]string{
	ProviderOllama:      "http://localhost:11434",
	ProviderVLLM:        "http://localhost:8000/v1",
	ProviderHuggingFace: "https://api-inference.huggingface.co/models",
}

// Valid reports whether p is a known provider.
func (p ModelProvider) Valid() bool {
	_, ok := ModelOptions[p]
	return ok
}

// UsesEndpoint reports whether the provider takes a custom endpoint.
// Hosted APIs (openai, anthropic) do not.
func (p ModelProvider) UsesEndpoint() bool {
	return p.Valid() && p != ProviderOpenAI && p != ProviderAnthropic
}

// DisplayName returns a human-readable provider name.
func (p ModelProvider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderOllama:
		return "Ollama"
	case ProviderVLLM:
		return "vLLM"
	case ProviderHuggingFace:
		return "Hugging Face"
	default:
		return string(p)
	}
}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(s string) (ModelProvider, error) {
	p := ModelProvider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q (want one of %s)", s, joinProviders())
	}
	return p, nil
}

func joinProviders() string {
	names := make([]string, len(Providers))
	for i, p := range Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// =============================================================================
// MODEL CONFIG
// =============================================================================

// Parameter bounds for ModelConfig.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 32000
	MinPenalty     = -2.0
	MaxPenalty     = 2.0
)

// ModelConfig selects the generation model and its sampling parameters.
// Values are replaced whole; callers never patch a shared instance.
type ModelConfig struct {
	Provider         ModelProvider `json:"provider" toml:"provider"`
	ModelName        string        `json:"modelName" toml:"model_name"`
	Endpoint         string        `json:"endpoint,omitempty" toml:"endpoint"`
	Temperature      float64       `json:"temperature" toml:"temperature"`
	MaxTokens        int           `json:"maxTokens" toml:"max_tokens"`
	TopP             float64       `json:"topP" toml:"top_p"`
	FrequencyPenalty float64       `json:"frequencyPenalty" toml:"frequency_penalty"`
	PresencePenalty  float64       `json:"presencePenalty" toml:"presence_penalty"`
}

// DefaultModelConfig returns the configuration used when none is set.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:    ProviderOpenAI,
		ModelName:   "gpt-4-turbo",
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        1,
	}
}

// WithProvider returns a copy switched to p, using p's first model and
// default endpoint. The receiver is left untouched.
func (c ModelConfig) WithProvider(p ModelProvider) ModelConfig {
	next := c
	next.Provider = p
	if models := ModelOptions[p]; len(models) > 0 {
		next.ModelName = models[0]
	}
	next.Endpoint = defaultEndpoints[p]
	return next
}

// WithModel returns a copy using the named model.
func (c ModelConfig) WithModel(name string) ModelConfig {
	next := c
	next.ModelName = name
	return next
}

// Validate checks enum membership and numeric ranges.
func (c ModelConfig) Validate() error {
	if !c.Provider.Valid() {
		return fmt.Errorf("model.provider %q: unknown provider", c.Provider)
	}
	if !slices.Contains(ModelOptions[c.Provider], c.ModelName) {
		return fmt.Errorf("model.model_name %q: not offered by %s", c.ModelName, c.Provider)
	}
	if c.Endpoint != "" && !c.Provider.UsesEndpoint() {
		return fmt.Errorf("model.endpoint: %s does not take a custom endpoint", c.Provider)
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("model.temperature %v: must be in [%v,%v]", c.Temperature, MinTemperature, MaxTemperature)
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("model.max_tokens %d: must be in [%d,%d]", c.MaxTokens, MinMaxTokens, MaxMaxTokens)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("model.top_p %v: must be in [0,1]", c.TopP)
	}
	if c.FrequencyPenalty < MinPenalty || c.FrequencyPenalty > MaxPenalty {
		return fmt.Errorf("model.frequency_penalty %v: must be in [%v,%v]", c.FrequencyPenalty, MinPenalty, MaxPenalty)
	}
	if c.PresencePenalty < MinPenalty || c.PresencePenalty > MaxPenalty {
		return fmt.Errorf("model.presence_penalty %v: must be in [%v,%v]", c.PresencePenalty, MinPenalty, MaxPenalty)
	}
	return nil
}

// Label renders "provider/model" for the status bar.
func (c ModelConfig) Label() string {
	return string(c.Provider) + "/" + c.ModelName
}

// =============================================================================
// RAG STRATEGY
// =============================================================================

// RAGStrategy selects how the backend retrieves context.
type RAGStrategy string

const (
	StrategyBasic   RAGStrategy = "basic"
	StrategyHybrid  RAGStrategy = "hybrid"
	StrategyDynamic RAGStrategy = "dynamic"
	StrategyVisual  RAGStrategy = "visual"
	StrategyGraph   RAGStrategy = "graph"
)

// Strategies lists every strategy in display order.
var Strategies = []RAGStrategy{
	StrategyBasic,
	StrategyHybrid,
	StrategyDynamic,
	StrategyVisual,
	StrategyGraph,
}

var strategyDescriptions = map[RAGStrategy]string{
	StrategyBasic:   "Simple vector similarity search with chunking",
	StrategyHybrid:  "Combines dense and sparse retrieval methods",
	StrategyDynamic: "Adaptive retrieval based on query complexity",
	StrategyVisual:  "Includes image analysis and visual context",
	StrategyGraph:   "Knowledge graph-based document relationships",
}

// Valid reports whether s is a known strategy.
func (s RAGStrategy) Valid() bool {
	_, ok := strategyDescriptions[s]
	return ok
}

// Description returns the one-line explanation shown next to the strategy.
func (s RAGStrategy) Description() string {
	return strategyDescriptions[s]
}

// ParseStrategy resolves a strategy name case-insensitively.
func ParseStrategy(s string) (RAGStrategy, error) {
	st := RAGStrategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown strategy %q", s)
	}
	return st, nil
}

// =============================================================================
// RAG CONFIG
// =============================================================================

// Top-K bounds for the hybrid strategy.
const (
	MinTopK = 1
	MaxTopK = 100
)

// RAGConfig tunes retrieval. TopK and UseHybridSearch only apply to the
// hybrid strategy.
type RAGConfig struct {
	Strategy        RAGStrategy `json:"strategy" toml:"strategy"`
	ChunkSize       int         `json:"chunkSize" toml:"chunk_size"`
	Overlap         int         `json:"overlap" toml:"overlap"`
	TopK            int         `json:"topK" toml:"top_k"`
	Reranker        string      `json:"reranker,omitempty" toml:"reranker,omitempty"`
	UseHybridSearch bool        `json:"useHybridSearch" toml:"use_hybrid_search"`
	VisualAnalysis  bool        `json:"visualAnalysis" toml:"visual_analysis"`
	GraphAnalysis   bool        `json:"graphAnalysis" toml:"graph_analysis"`
}

// DefaultRAGConfig returns the configuration used when none is set.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Strategy:  StrategyBasic,
		ChunkSize: 512,
		Overlap:   50,
		TopK:      5,
	}
}

// WithStrategy returns a copy using s.
func (c RAGConfig) WithStrategy(s RAGStrategy) RAGConfig {
	next := c
	next.Strategy = s
	return next
}

// ExposesHybridOptions reports whether TopK and UseHybridSearch are in play.
func (c RAGConfig) ExposesHybridOptions() bool {
	return c.Strategy == StrategyHybrid
}

// Validate checks enum membership and numeric ranges.
func (c RAGConfig) Validate() error {
	if !c.Strategy.Valid() {
		return fmt.Errorf("rag.strategy %q: unknown strategy", c.Strategy)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("rag.chunk_size %d: must be >= 1", c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("rag.overlap %d: must be in [0,chunk_size)", c.Overlap)
	}
	if c.TopK < MinTopK || c.TopK > MaxTopK {
		return fmt.Errorf("rag.top_k %d: must be in [%d,%d]", c.TopK, MinTopK, MaxTopK)
	}
	return nil
}

// Label renders the strategy for the status bar.
func (c RAGConfig) Label() string {
	if c.ExposesHybridOptions() {
		label := fmt.Sprintf("%s k=%d", c.Strategy, c.TopK)
		if c.UseHybridSearch {
			label += " bm25+dense"
		}
		return label
	}
	return string(c.Strategy)
}
