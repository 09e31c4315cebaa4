// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// Simulated backend latencies.
const (
	MockQueryDelay  = 1000 * time.Millisecond
	MockUploadDelay = 1500 * time.Millisecond
)

const mockImageURL = "https://images.unsplash.com/photo-1706880095428-cf2f7901c5a3?w=500&auto=format"

// MockDocuments are the pages the simulator returns for every query.
var MockDocuments = []model.Document{
	{ID: "1", PageNumber: 1, ImageURL: mockImageURL, Score: 0.95, PDFURL: "https://example.com/doc1.pdf"},
	{ID: "2", PageNumber: 2, ImageURL: mockImageURL, Score: 0.85, PDFURL: "https://example.com/doc1.pdf"},
}

// MockAnswer is the simulator's reply to text.
func MockAnswer(text string) string {
	return fmt.Sprintf("This is a mock response to: \"%s\"\n\n```python\nprint(\"Hello World!\")\n```", text)
}

// Mock is an in-process backend for local development. It is always
// connected once Connect is called and answers on the configured clock.
type Mock struct {
	opts   Options
	disp   *dispatcher
	stats  counters
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	timers  map[uint64]Timer
	nextID  uint64
	started bool
	closed  bool
}

// NewMock creates a simulator transport.
func NewMock(opts Options) *Mock {
	opts = opts.withDefaults()
	t := &Mock{
		opts:   opts,
		logger: opts.Logger.With(zap.String("transport", string(KindMock))),
	}
	t.disp = newDispatcher(opts.Handlers, opts.QueueSize, &t.stats, t.logger)
	return t
}

// Connect marks the simulator connected.
func (t *Mock) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	t.disp.start()
	t.setState(Connecting)
	t.setState(Connected)
	t.logger.Info("CONNECTED")
	return nil
}

// On registers the handler for ch.
func (t *Mock) On(ch Channel, h Handler) {
	t.disp.on(ch, h)
}

// Send schedules the simulated reply for query and upload events.
func (t *Mock) Send(ch Channel, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ch, err)
	}
	if t.State() != Connected {
		t.stats.dropped.Add(1)
		return nil
	}

	switch ch {
	case ChannelQuery:
		var q QueryPayload
		if err := json.Unmarshal(b, &q); err != nil {
			t.logger.Warn("SEND_DECODE", zap.String("channel", string(ch)), zap.Error(err))
			return fmt.Errorf("encode %s payload: %w", ch, err)
		}
		t.stats.sent.Add(1)
		t.after(MockQueryDelay, func() { t.replyQuery(q.Text) })
	case ChannelUpload:
		t.stats.sent.Add(1)
		t.after(MockUploadDelay, func() { t.emit(ChannelUploadComplete, struct{}{}) })
	default:
		t.stats.sent.Add(1)
		t.logger.Debug("SEND_IGNORED", zap.String("channel", string(ch)))
	}
	return nil
}

// UploadFiles sends only the file names, as the simulator never stores content.
func (t *Mock) UploadFiles(files []upload.File) error {
	return t.Send(ChannelUpload, map[string][]string{"files": upload.Names(files)})
}

// State returns the current state.
func (t *Mock) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns the running counters.
func (t *Mock) Stats() Stats {
	return t.stats.snapshot()
}

// Pending reports how many simulated replies are still scheduled.
func (t *Mock) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Close cancels pending replies.
func (t *Mock) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for _, tm := range t.timers {
		tm.Stop()
	}
	t.timers = nil
	t.mu.Unlock()

	t.setState(Disconnected)
	t.disp.stop()
	return nil
}

func (t *Mock) after(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.timers == nil {
		t.timers = make(map[uint64]Timer)
	}
	t.nextID++
	id := t.nextID
	t.timers[id] = t.opts.Clock.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})
}

func (t *Mock) replyQuery(text string) {
	now := t.opts.Clock.Now()
	steps := []model.AgentStep{
		{ID: model.NewID(), AgentName: "retriever", Action: "Searching indexed pages", Status: model.StepComplete, Timestamp: now, Duration: 120},
		{ID: model.NewID(), AgentName: "generator", Action: "Drafting answer", Status: model.StepComplete, Timestamp: now, Duration: 640},
	}
	for _, s := range steps {
		t.emit(ChannelAgentStep, s)
	}
	t.emit(ChannelMessage, MessagePayload{Content: MockAnswer(text)})
	t.emit(ChannelDocuments, MockDocuments)
}

func (t *Mock) emit(ch Channel, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Error("EMIT_ENCODE", zap.String("channel", string(ch)), zap.Error(err))
		return
	}
	t.disp.push(Frame{Type: ch, Data: data})
}

func (t *Mock) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()
	if t.opts.OnState != nil {
		t.opts.OnState(s)
	}
}
