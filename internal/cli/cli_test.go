// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/transport/transporttest"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// =============================================================================
// HELPERS
// =============================================================================

// isolate points the config directory at a fresh temp dir and clears the
// variables that would override it.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	for _, key := range []string{
		"RAGCHAT_TRANSPORT", "RAGCHAT_URL", "RAGCHAT_MAX_RETRIES", "RAGCHAT_UPLOAD_TIMEOUT",
		"RAGCHAT_PROVIDER", "RAGCHAT_MODEL", "RAGCHAT_ENDPOINT", "RAGCHAT_STRATEGY",
		"RAGCHAT_TOP_K", "RAGCHAT_LOG_LEVEL", "RAGCHAT_HISTORY",
	} {
		t.Setenv(key, "")
	}
	config.ResetGlobalForTesting()
	return home
}

// runCLI executes one command line and returns stdout and stderr.
func runCLI(t *testing.T, factory TransportFactory, args ...string) (string, string, error) {
	t.Helper()
	a := newApp()
	if factory != nil {
		a.newTransport = factory
	}
	root := newRootCommand(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), errOut.String(), err
}

// recorderFactory hands out rec for every session.
func recorderFactory(rec *transporttest.Recorder) TransportFactory {
	return func(*config.Config, transport.Options) (transport.Transport, error) {
		return rec, nil
	}
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0644))
	return path
}

// =============================================================================
// VERSION AND CONFIG
// =============================================================================

func TestVersion(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ragchat "+Version+"\n"))
	assert.Contains(t, out, "commit:")
}

func TestConfigPathHonorsHome(t *testing.T) {
	home := isolate(t)
	out, _, err := runCLI(t, nil, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml")+"\n", out)

	out, _, err = runCLI(t, nil, "--config", "/tmp/other.json", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.json\n", out)
}

func TestConfigInitAndValidate(t *testing.T) {
	home := isolate(t)

	out, _, err := runCLI(t, nil, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	_, _, err = runCLI(t, nil, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, _, err = runCLI(t, nil, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n\n[ui]\ntheme = \"neon\"\n"), 0644))

	out, _, err := runCLI(t, nil, "config", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 problem(s)")
	assert.Contains(t, out, "logging.level")
	assert.Contains(t, out, "ui.theme")

	_, _, err = runCLI(t, nil, "config", "validate", filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "no config file")
}

func TestConfigShowAppliesFlags(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, nil, "--transport", "mock", "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `kind = "mock"`)
	assert.Contains(t, out, `level = "debug"`)

	_, _, err = runCLI(t, nil, "--transport", "pigeon", "config", "show")
	assert.ErrorIs(t, err, transport.ErrUnknownKind)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[transport]\nkind = \"http\"\n"), 0644))
	t.Setenv("RAGCHAT_TRANSPORT", "mock")

	out, _, err := runCLI(t, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `kind = "mock"`)
}

// =============================================================================
// ASK
// =============================================================================

func TestAskWithMockBackend(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, nil, "--transport", "mock", "ask", "What", "is", "RAG?")
	require.NoError(t, err)
	assert.Contains(t, out, `This is a mock response to: "What is RAG?"`)
	assert.NotContains(t, out, "\x1b[", "piped output is not styled")

	// The question was saved.
	out, _, err = runCLI(t, nil, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "What is RAG?")
}

func TestAskJSON(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, nil, "--transport", "mock", "--no-history", "ask", "--json", "hello")
	require.NoError(t, err)

	var res askResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, transport.MockAnswer("hello"), res.Answer)
	assert.Len(t, res.Steps, 2)

	out, _, err = runCLI(t, nil, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations found.")
}

func TestAskSendsOverriddenSettings(t *testing.T) {
	isolate(t)
	rec := transporttest.NewRecorder()
	go func() {
		for !rec.Handled(transport.ChannelMessage) || len(rec.SentOn(transport.ChannelQuery)) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		rec.Emit(transport.ChannelMessage, transport.MessagePayload{Content: "42"})
	}()

	out, _, err := runCLI(t, recorderFactory(rec), "--no-history", "ask", "--strategy", "hybrid", "-k", "9", "question")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	cfgs := rec.SentOn(transport.ChannelConfig)
	require.Len(t, cfgs, 1)
	var p session.ConfigPayload
	require.NoError(t, json.Unmarshal(cfgs[0].Data, &p))
	assert.Equal(t, model.StrategyHybrid, p.RAG.Strategy)
	assert.Equal(t, 9, p.RAG.TopK)

	sent := rec.Sent()
	assert.Equal(t, transport.ChannelConfig, sent[0].Channel, "config precedes the query")
	assert.Equal(t, transport.ChannelQuery, sent[1].Channel)
}

func TestAskRejectsTopKOutsideHybrid(t *testing.T) {
	isolate(t)
	rec := transporttest.NewRecorder()
	_, _, err := runCLI(t, recorderFactory(rec), "--no-history", "ask", "--top-k", "3", "q")
	assert.ErrorContains(t, err, "hybrid strategy only")
	assert.Empty(t, rec.SentOn(transport.ChannelQuery))
}

func TestAskReportsBackendError(t *testing.T) {
	isolate(t)
	rec := transporttest.NewRecorder()
	go func() {
		for !rec.Handled(transport.ChannelError) || len(rec.SentOn(transport.ChannelQuery)) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		rec.Emit(transport.ChannelError, transport.ErrorPayload{Message: "index unavailable"})
	}()

	out, _, err := runCLI(t, recorderFactory(rec), "--no-history", "ask", "q")
	assert.EqualError(t, err, "index unavailable")
	assert.Empty(t, out)
}

func TestAskTimesOut(t *testing.T) {
	isolate(t)
	rec := transporttest.NewRecorder()
	_, _, err := runCLI(t, recorderFactory(rec), "--no-history", "ask", "--timeout", "50ms", "q")
	assert.ErrorContains(t, err, "no answer within 50ms")
}

// =============================================================================
// UPLOAD
// =============================================================================

func TestUploadWithMockBackend(t *testing.T) {
	isolate(t)
	path := writePDF(t, t.TempDir(), "report.pdf")

	out, errOut, err := runCLI(t, nil, "--transport", "mock", "--no-history", "upload", path)
	require.NoError(t, err)
	assert.Contains(t, out, session.UploadSucceeded)
	assert.Contains(t, errOut, "Uploading report.pdf")
}

func TestUploadFailure(t *testing.T) {
	isolate(t)
	rec := transporttest.NewRecorder()
	go func() {
		for !rec.Handled(transport.ChannelUploadFailed) || len(rec.Uploads()) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		rec.Emit(transport.ChannelUploadFailed, transport.ErrorPayload{Error: "encrypted PDF"})
	}()

	path := writePDF(t, t.TempDir(), "locked.pdf")
	_, _, err := runCLI(t, recorderFactory(rec), "--no-history", "upload", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encrypted PDF")
}

func TestUploadRejectsNonPDF(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	rec := transporttest.NewRecorder()
	_, _, err := runCLI(t, recorderFactory(rec), "upload", path)
	assert.ErrorIs(t, err, upload.ErrNotPDF)
	assert.Empty(t, rec.Uploads())
}

// =============================================================================
// HISTORY
// =============================================================================

func seedHistory(t *testing.T, home string) string {
	t.Helper()
	h, err := storage.Open(filepath.Join(home, "history.db"), 0)
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()
	id, err := h.Begin(ctx, model.DefaultModelConfig(), model.DefaultRAGConfig())
	require.NoError(t, err)
	require.NoError(t, h.Append(ctx, id, model.NewUserMessage("Summarise chapter 2")))
	require.NoError(t, h.Append(ctx, id, model.NewAssistantMessage("Chapter 2 covers indexing.", &model.Metadata{
		Citations: []model.Citation{{Text: "indexing", PageNumber: 7, PDFURL: "book.pdf", Confidence: 0.9}},
	})))
	return id
}

func TestHistoryShowExportDelete(t *testing.T) {
	home := isolate(t)
	id := seedHistory(t, home)

	out, _, err := runCLI(t, nil, "history", "show", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "[You] Summarise chapter 2")
	assert.Contains(t, out, "[Assistant] Chapter 2 covers indexing.")
	assert.Contains(t, out, "[p.7] 90.0% indexing")

	out, _, err = runCLI(t, nil, "history", "export", id[:8], "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "Summarise chapter 2")
	assert.Contains(t, out, "book.pdf#page=7")

	dir := t.TempDir()
	out, _, err = runCLI(t, nil, "history", "export", id, "-f", "json", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to")
	matches, err := filepath.Glob(filepath.Join(dir, "ragchat_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var tr model.Transcript
	require.NoError(t, json.Unmarshal(data, &tr))
	assert.Equal(t, id, tr.ID)
	assert.Len(t, tr.Messages, 2)

	_, _, err = runCLI(t, nil, "history", "export", id, "-f", "pdf")
	assert.ErrorContains(t, err, "unknown export format")

	out, _, err = runCLI(t, nil, "history", "delete", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	out, _, err = runCLI(t, nil, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations found.")

	_, _, err = runCLI(t, nil, "history", "show", id)
	assert.True(t, errors.Is(err, storage.ErrConversationNotFound))
}

// =============================================================================
// RECORDER
// =============================================================================

func TestRecorderBeginsLazilyAndFollowsConfig(t *testing.T) {
	h, err := storage.Open(filepath.Join(t.TempDir(), "h.db"), 0)
	require.NoError(t, err)

	rec := newRecorder(h, model.DefaultModelConfig(), model.DefaultRAGConfig(), zap.NewNop())
	hybrid := model.DefaultRAGConfig().WithStrategy(model.StrategyHybrid)
	rec.ConfigChanged(model.DefaultModelConfig(), hybrid)
	assert.Empty(t, rec.ID(), "no row before the first message")

	rec.Persist(model.NewUserMessage("first"))
	require.NotEmpty(t, rec.ID())

	tr, err := h.Load(context.Background(), rec.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StrategyHybrid, tr.RAG.Strategy)

	graph := model.DefaultRAGConfig().WithStrategy(model.StrategyGraph)
	rec.ConfigChanged(model.DefaultModelConfig(), graph)
	tr, err = h.Load(context.Background(), rec.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StrategyGraph, tr.RAG.Strategy)
	require.NoError(t, rec.Close())

	var none *recorder
	none.Persist(model.NewUserMessage("dropped"))
	none.ConfigChanged(model.DefaultModelConfig(), graph)
	assert.Empty(t, none.ID())
	assert.NoError(t, none.Close())
}

// =============================================================================
// REPL
// =============================================================================

// scriptedReader replays lines. before, when set for a line, runs first.
type scriptedReader struct {
	lines   []string
	before  map[int]func()
	history []string
	i       int
}

func (s *scriptedReader) Prompt(string) (string, error) {
	if s.i >= len(s.lines) {
		return "", io.EOF
	}
	if f := s.before[s.i]; f != nil {
		f()
	}
	line := s.lines[s.i]
	s.i++
	return line, nil
}

func (s *scriptedReader) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func TestREPLConversation(t *testing.T) {
	mock := transport.NewMock(transport.Options{})
	t.Cleanup(func() { mock.Close() })

	changed, notify := notifier()
	store := session.New(mock, session.Config{Greeting: "Hi there", OnChange: notify})
	store.Attach(mock, session.Direct)
	require.NoError(t, mock.Connect(context.Background()))

	var out bytes.Buffer
	r := &repl{
		store:   store,
		changed: changed,
		print:   newPrinter(&out, "dark", false),
		collect: upload.Collect,
		logger:  zap.NewNop(),
	}
	in := &scriptedReader{
		lines: []string{"/strategy hybrid", "/topk 7", "/topk many", "", "What is RAG?", "/docs", "/bogus", "/quit", "never read"},
		before: map[int]func(){
			5: func() {
				require.Eventually(t, func() bool { return len(store.Documents()) == 2 }, 2*time.Second, 10*time.Millisecond)
			},
		},
	}

	require.NoError(t, r.run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "[Assistant] Hi there")
	assert.Contains(t, text, "Using openai/gpt-4-turbo, hybrid k=7")
	assert.Contains(t, text, `top-k "many": not a number`)
	assert.Contains(t, text, "✓ retriever: Searching indexed pages (120ms)")
	assert.Contains(t, text, `This is a mock response to: "What is RAG?"`)
	assert.Contains(t, text, "Documents (2)")
	assert.Contains(t, text, "Page 1  Score: 95.0%")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Equal(t, 1, strings.Count(text, "Hi there"), "messages print once")

	assert.Equal(t, 8, in.i, "loop stops at /quit")
	assert.NotContains(t, in.history, "")
	assert.Equal(t, hybridK(7), store.Snapshot().RAG)
}

func hybridK(k int) model.RAGConfig {
	rc := model.DefaultRAGConfig().WithStrategy(model.StrategyHybrid)
	rc.TopK = k
	return rc
}

func TestREPLUpload(t *testing.T) {
	rec := transporttest.NewRecorder()
	changed, notify := notifier()
	store := session.New(rec, session.Config{OnChange: notify})
	store.Attach(rec, session.Direct)
	require.NoError(t, rec.Connect(context.Background()))

	go func() {
		for len(rec.Uploads()) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		rec.Emit(transport.ChannelUploadComplete, struct{}{})
	}()

	var out bytes.Buffer
	r := &repl{
		store:   store,
		changed: changed,
		print:   newPrinter(&out, "dark", false),
		collect: func(paths []string) ([]upload.File, error) {
			return []upload.File{upload.FromBytes(paths[0], []byte("%PDF"))}, nil
		},
		logger: zap.NewNop(),
	}
	require.NoError(t, r.run(context.Background(), &scriptedReader{lines: []string{"/upload a.pdf", "/upload"}}))

	text := out.String()
	assert.Contains(t, text, "Uploading a.pdf")
	assert.Contains(t, text, session.UploadSucceeded)
	assert.Contains(t, text, "usage: /upload")
	assert.False(t, store.AwaitingUpload())
}

// =============================================================================
// RENDERING
// =============================================================================

func TestPlainMessage(t *testing.T) {
	msg := model.NewAssistantMessage("Revenue rose.", &model.Metadata{
		Citations: []model.Citation{{Text: "Q3\nrevenue", PageNumber: 4, PDFURL: "r.pdf", Confidence: 0.87}},
		Metrics:   &model.PerformanceMetrics{RetrievalTime: 120, ProcessingTime: 800, TokensUsed: 300, RelevanceScore: 0.9},
	})
	got := plainMessage(msg)
	assert.True(t, strings.HasPrefix(got, "[Assistant] Revenue rose.\nSources:\n"))
	assert.Contains(t, got, "  [p.4] 87.0% Q3 revenue\n        r.pdf#page=4")
	assert.Contains(t, got, "300 tokens")

	assert.Equal(t, "[Error] boom", plainMessage(model.NewErrorMessage("boom")))
}

func TestLastAnswer(t *testing.T) {
	q := model.NewUserMessage("q")
	agent := model.NewAgentMessage("retriever", "search", "...")
	a := model.NewAssistantMessage("a", nil)

	got, ok := lastAnswer([]model.Message{q, a, agent})
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	_, ok = lastAnswer([]model.Message{a, q, agent})
	assert.False(t, ok, "answers before the last question do not count")
}
