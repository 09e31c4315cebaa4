// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// newTestHistory opens a file-backed store with a controllable clock.
func newTestHistory(t *testing.T, max int) (*History, *time.Time) {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"), max)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	return h, &now
}

func msgAt(m model.Message, ts time.Time) model.Message {
	m.Timestamp = ts
	return m
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_RoundTrip(t *testing.T) {
	h, now := newTestHistory(t, 0)
	ctx := context.Background()
	mc := model.DefaultModelConfig().WithProvider(model.ProviderOllama)
	rc := model.DefaultRAGConfig().WithStrategy(model.StrategyHybrid)

	id, err := h.Begin(ctx, mc, rc)
	require.NoError(t, err)

	confidence := 0.8
	answer := model.NewAssistantMessage("See page 3.\n\n```go\nfmt.Println(1)\n```", &model.Metadata{
		Citations:  []model.Citation{{Text: "quote", PageNumber: 3, PDFURL: "a.pdf", Confidence: 0.9}},
		Confidence: &confidence,
	})
	msgs := []model.Message{
		msgAt(model.NewMessage(model.RoleAssistant, "Hello!"), *now),
		msgAt(model.NewUserMessage("What is on page 3?"), now.Add(time.Second)),
		msgAt(answer, now.Add(2*time.Second)),
	}
	for _, m := range msgs {
		require.NoError(t, h.Append(ctx, id, m))
	}

	tr, err := h.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, tr.ID)
	assert.Equal(t, "What is on page 3?", tr.Title)
	assert.Equal(t, mc, tr.Model)
	assert.Equal(t, rc, tr.RAG)
	require.Len(t, tr.Messages, 3)
	for i, m := range tr.Messages {
		assert.Equal(t, msgs[i].ID, m.ID)
		assert.Equal(t, msgs[i].Role, m.Role)
		assert.Equal(t, msgs[i].Content, m.Content)
		assert.True(t, msgs[i].Timestamp.Equal(m.Timestamp))
	}
	require.NotNil(t, tr.Messages[2].Metadata)
	assert.Equal(t, answer.Metadata, tr.Messages[2].Metadata)
	assert.Nil(t, tr.Messages[1].Metadata)
}

func TestHistory_AppendUpdatesStatusInPlace(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	ctx := context.Background()
	id, err := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
	require.NoError(t, err)

	agent := model.NewAgentMessage("retriever", "search", "Searching...")
	require.NoError(t, h.Append(ctx, id, agent))
	require.NoError(t, h.Append(ctx, id, model.NewUserMessage("later")))

	agent.Content = "content must not change"
	agent.Advance(model.StatusComplete)
	agent.Metadata = &model.Metadata{CodeBlocks: []model.CodeBlock{{Language: "sql", Code: "SELECT 1"}}}
	require.NoError(t, h.Append(ctx, id, agent))

	tr, err := h.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, tr.Messages, 2, "upsert must not add a row")
	assert.Equal(t, agent.ID, tr.Messages[0].ID, "position is kept")
	assert.Equal(t, "Searching...", tr.Messages[0].Content)
	assert.Equal(t, model.StatusComplete, tr.Messages[0].Status)
	assert.Equal(t, "retriever", tr.Messages[0].AgentName)
	require.NotNil(t, tr.Messages[0].Metadata)
	assert.Equal(t, "SELECT 1", tr.Messages[0].Metadata.CodeBlocks[0].Code)
}

func TestHistory_TitleFromFirstUserMessageOnly(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	ctx := context.Background()
	id, _ := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())

	require.NoError(t, h.Append(ctx, id, model.NewUserMessage(strings.Repeat("long question ", 10))))
	require.NoError(t, h.Append(ctx, id, model.NewUserMessage("second")))

	metas, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.True(t, strings.HasPrefix(metas[0].Title, "long question"))
	assert.LessOrEqual(t, len([]rune(metas[0].Title)), 50)
	assert.Equal(t, 2, metas[0].MessageCount)
}

func TestHistory_ListNewestFirstAndPrune(t *testing.T) {
	h, now := newTestHistory(t, 2)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		*now = now.Add(time.Minute)
		id, err := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	metas, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, ids[2], metas[0].ID)
	assert.Equal(t, ids[1], metas[1].ID)

	_, err = h.Load(ctx, ids[0])
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestHistory_ResolvePrefix(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	ctx := context.Background()
	id, _ := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())

	got, err := h.Resolve(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = h.Resolve(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = h.Resolve(ctx, "%")
	assert.ErrorIs(t, err, ErrConversationNotFound, "LIKE wildcards are literal")
	_, err = h.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	// A one-character prefix shared by two ids is ambiguous.
	other, _ := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
	if id[0] == other[0] {
		_, err = h.Resolve(ctx, id[:1])
		assert.ErrorIs(t, err, ErrAmbiguousID)
	}
}

func TestHistory_UnknownConversation(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	ctx := context.Background()

	err := h.Append(ctx, "missing", model.NewUserMessage("x"))
	assert.ErrorIs(t, err, ErrConversationNotFound)
	err = h.UpdateConfig(ctx, "missing", model.DefaultModelConfig(), model.DefaultRAGConfig())
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, h.Delete(ctx, "missing"), ErrConversationNotFound)
}

func TestHistory_UpdateConfigAndDelete(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	ctx := context.Background()
	id, _ := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
	require.NoError(t, h.Append(ctx, id, model.NewUserMessage("q")))

	rc := model.DefaultRAGConfig().WithStrategy(model.StrategyGraph)
	require.NoError(t, h.UpdateConfig(ctx, id, model.DefaultModelConfig(), rc))
	tr, err := h.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyGraph, tr.RAG.Strategy)

	require.NoError(t, h.Delete(ctx, id))
	metas, err := h.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestHistory_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	h, err := Open(path, 0)
	require.NoError(t, err)
	id, err := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
	require.NoError(t, err)
	require.NoError(t, h.Append(ctx, id, model.NewUserMessage("persist me")))
	require.NoError(t, h.Close())

	h, err = Open(path, 0)
	require.NoError(t, err)
	defer h.Close()
	tr, err := h.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "persist me", tr.Messages[0].Content)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "No conversations found.", FormatList(nil))

	out := FormatList([]model.TranscriptMeta{{
		ID:           "0123456789abcdef",
		Title:        "What does chapter two say about retrieval?",
		UpdatedAt:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		MessageCount: 4,
	}})
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "2025-03-01 09:30")
	assert.Contains(t, out, "What does chapter two say about r...")
}
