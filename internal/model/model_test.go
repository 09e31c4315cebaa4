// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestStatus_CanAdvance(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNone, StatusThinking, true},
		{StatusNone, StatusComplete, true},
		{StatusNone, StatusError, true},
		{StatusThinking, StatusComplete, true},
		{StatusThinking, StatusError, true},
		{StatusThinking, StatusThinking, false},
		{StatusComplete, StatusThinking, false},
		{StatusComplete, StatusError, false},
		{StatusError, StatusComplete, false},
		{StatusThinking, StatusNone, false},
		{StatusNone, Status("bogus"), false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := tc.from.CanAdvance(tc.to); got != tc.want {
				t.Errorf("CanAdvance(%q -> %q) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestMessage_AdvanceNeverGoesBack(t *testing.T) {
	msg := NewAgentMessage("retriever", "search", "looking")
	require.Equal(t, StatusThinking, msg.Status)

	assert.True(t, msg.Advance(StatusComplete))
	assert.False(t, msg.Advance(StatusThinking))
	assert.False(t, msg.Advance(StatusError))
	assert.Equal(t, StatusComplete, msg.Status)
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewUserMessage("hi").ID
		if seen[id] {
			t.Fatalf("duplicate id %q after %d messages", id, i)
		}
		seen[id] = true
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("héllo   wörld\nsecond line that is long")
	assert.Equal(t, "héllo wörld...", msg.Preview(14))
	assert.Equal(t, "héllo wörld second line that is long", msg.Preview(100))
}

// =============================================================================
// METADATA TESTS
// =============================================================================

func TestNewAssistantMessage_ExtractsCodeBlocks(t *testing.T) {
	content := "Here you go:\n\n```python\nprint(\"Hello World!\")\n```\n\nand\n\n```\nplain\n```"
	msg := NewAssistantMessage(content, nil)

	require.NotNil(t, msg.Metadata)
	require.Len(t, msg.Metadata.CodeBlocks, 2)
	assert.Equal(t, "python", msg.Metadata.CodeBlocks[0].Language)
	assert.Equal(t, `print("Hello World!")`, msg.Metadata.CodeBlocks[0].Code)
	assert.Equal(t, "", msg.Metadata.CodeBlocks[1].Language)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, StatusComplete, msg.Status)
}

func TestNewAssistantMessage_KeepsExplicitBlocks(t *testing.T) {
	md := &Metadata{CodeBlocks: []CodeBlock{{Language: "go", Code: "x := 1"}}}
	msg := NewAssistantMessage("```python\nignored\n```", md)
	require.Len(t, msg.Metadata.CodeBlocks, 1)
	assert.Equal(t, "go", msg.Metadata.CodeBlocks[0].Language)
}

func TestNewAssistantMessage_NoMetadataForPlainText(t *testing.T) {
	msg := NewAssistantMessage("just text", nil)
	assert.Nil(t, msg.Metadata)
}

func TestMetadata_Validate(t *testing.T) {
	bad := 1.5
	tests := []struct {
		name    string
		md      *Metadata
		wantErr bool
	}{
		{"nil", nil, false},
		{"empty", &Metadata{}, false},
		{"good citation", &Metadata{Citations: []Citation{{PageNumber: 1, Confidence: 0.9}}}, false},
		{"page zero", &Metadata{Citations: []Citation{{PageNumber: 0, Confidence: 0.9}}}, true},
		{"confidence out of range", &Metadata{Confidence: &bad}, true},
		{"relevance out of range", &Metadata{Metrics: &PerformanceMetrics{RelevanceScore: -0.1}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.md.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "0ms"},
		{245, "245ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{1534, "1.53s"},
	}
	for _, tc := range tests {
		if got := FormatMillis(tc.ms); got != tc.want {
			t.Errorf("FormatMillis(%v) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestPerformanceMetrics_Summary(t *testing.T) {
	p := PerformanceMetrics{RetrievalTime: 120, ProcessingTime: 2500, TokensUsed: 321, RelevanceScore: 0.873}
	assert.Equal(t, "retrieval 120ms | processing 2.50s | 321 tokens | relevance 87.3%", p.Summary())
}

// =============================================================================
// DOCUMENT TESTS
// =============================================================================

func TestDocument_Validate(t *testing.T) {
	assert.NoError(t, Document{ID: "1", PageNumber: 1, Score: 0.95}.Validate())
	assert.NoError(t, Document{ID: "1", PageNumber: 3, Score: 0}.Validate())
	assert.Error(t, Document{ID: "1", PageNumber: 0, Score: 0.5}.Validate())
	assert.Error(t, Document{ID: "1", PageNumber: 2, Score: 1.01}.Validate())

	err := ValidateDocuments([]Document{{ID: "a", PageNumber: 1}, {ID: "b", PageNumber: -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents[1]")
}

func TestDocument_PageLink(t *testing.T) {
	d := Document{PageNumber: 4, PDFURL: "https://example.com/doc1.pdf"}
	assert.Equal(t, "https://example.com/doc1.pdf#page=4", d.PageLink())

	d.PDFURL = "https://example.com/doc1.pdf#page=1"
	assert.Equal(t, "https://example.com/doc1.pdf#page=4", d.PageLink())

	assert.Equal(t, "", Document{PageNumber: 1}.PageLink())
	assert.Equal(t, "Score: 85.0%", Document{Score: 0.85}.ScoreLabel())
}

// =============================================================================
// AGENT STEP TESTS
// =============================================================================

func TestAgentStep_Update(t *testing.T) {
	step := AgentStep{ID: "s1", AgentName: "retriever", Status: StepRunning}

	assert.False(t, step.Update(AgentStep{Status: StepRunning}))
	assert.True(t, step.Update(AgentStep{Status: StepComplete, Duration: 120}))
	assert.Equal(t, 120.0, step.Duration)
	assert.False(t, step.Update(AgentStep{Status: StepError}))
	assert.Equal(t, StepComplete, step.Status)
}

func TestAgentStep_Validate(t *testing.T) {
	assert.NoError(t, AgentStep{ID: "1", Status: StepRunning}.Validate())
	assert.Error(t, AgentStep{Status: StepRunning}.Validate())
	assert.Error(t, AgentStep{ID: "1", Status: "paused"}.Validate())
	assert.Error(t, AgentStep{ID: "1", Status: StepComplete, Metrics: &StepMetrics{Confidence: 2}}.Validate())
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestModelOptions_EveryProviderHasModels(t *testing.T) {
	for _, p := range Providers {
		if len(ModelOptions[p]) == 0 {
			t.Errorf("provider %q has no models", p)
		}
	}
	assert.Len(t, ModelOptions, len(Providers))
}

func TestModelConfig_WithProvider(t *testing.T) {
	base := DefaultModelConfig()
	next := base.WithProvider(ProviderOllama)

	assert.Equal(t, ProviderOpenAI, base.Provider, "receiver must not change")
	assert.Equal(t, ProviderOllama, next.Provider)
	assert.Equal(t, "llama2", next.ModelName)
	assert.NotEmpty(t, next.Endpoint)
	require.NoError(t, next.Validate())

	back := next.WithProvider(ProviderAnthropic)
	assert.Empty(t, back.Endpoint)
	require.NoError(t, back.Validate())
}

func TestModelConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ModelConfig)
		wantErr string
	}{
		{"default", func(*ModelConfig) {}, ""},
		{"unknown provider", func(c *ModelConfig) { c.Provider = "cohere" }, "provider"},
		{"model from other provider", func(c *ModelConfig) { c.ModelName = "mistral" }, "model_name"},
		{"endpoint on hosted provider", func(c *ModelConfig) { c.Endpoint = "http://x" }, "endpoint"},
		{"temperature high", func(c *ModelConfig) { c.Temperature = 2.1 }, "temperature"},
		{"temperature edge", func(c *ModelConfig) { c.Temperature = 2 }, ""},
		{"max tokens zero", func(c *ModelConfig) { c.MaxTokens = 0 }, "max_tokens"},
		{"max tokens high", func(c *ModelConfig) { c.MaxTokens = 32001 }, "max_tokens"},
		{"top p", func(c *ModelConfig) { c.TopP = 1.2 }, "top_p"},
		{"frequency penalty", func(c *ModelConfig) { c.FrequencyPenalty = -2.5 }, "frequency_penalty"},
		{"presence penalty", func(c *ModelConfig) { c.PresencePenalty = 3 }, "presence_penalty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" HuggingFace ")
	require.NoError(t, err)
	assert.Equal(t, ProviderHuggingFace, p)
	assert.True(t, p.UsesEndpoint())
	assert.False(t, ProviderOpenAI.UsesEndpoint())

	_, err = ParseProvider("bard")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "openai"))
}

func TestRAGConfig_RerankerIsAName(t *testing.T) {
	b, err := json.Marshal(DefaultRAGConfig())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "reranker", "unset reranker is omitted")

	rc := DefaultRAGConfig()
	rc.Reranker = "cohere-rerank-v3"
	b, err = json.Marshal(rc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"reranker":"cohere-rerank-v3"`)

	var back RAGConfig
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, rc, back)
}

func TestRAGConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RAGConfig)
		wantErr bool
	}{
		{"default", func(*RAGConfig) {}, false},
		{"unknown strategy", func(c *RAGConfig) { c.Strategy = "fuzzy" }, true},
		{"top k zero", func(c *RAGConfig) { c.TopK = 0 }, true},
		{"top k max", func(c *RAGConfig) { c.TopK = 100 }, false},
		{"top k over", func(c *RAGConfig) { c.TopK = 101 }, true},
		{"overlap exceeds chunk", func(c *RAGConfig) { c.Overlap = 512 }, true},
		{"chunk zero", func(c *RAGConfig) { c.ChunkSize = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultRAGConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRAGStrategy_Descriptions(t *testing.T) {
	for _, s := range Strategies {
		assert.NotEmpty(t, s.Description(), "strategy %q", s)
	}
	assert.Equal(t, "Combines dense and sparse retrieval methods", StrategyHybrid.Description())

	cfg := DefaultRAGConfig()
	assert.False(t, cfg.ExposesHybridOptions())
	hybrid := cfg.WithStrategy(StrategyHybrid)
	hybrid.UseHybridSearch = true
	assert.Equal(t, StrategyBasic, cfg.Strategy)
	assert.Equal(t, "hybrid k=5 bm25+dense", hybrid.Label())
}

func TestTitleFrom(t *testing.T) {
	msgs := []Message{
		NewMessage(RoleAssistant, "Hello!"),
		NewUserMessage("What does chapter two say about caching?"),
	}
	assert.Equal(t, "What does chapter two say about caching?", TitleFrom(msgs))
	assert.Equal(t, "Untitled", TitleFrom(nil))
}
