// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transporttest provides a manual clock and a recording transport
// for tests of code that sits on top of a transport.
package transporttest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// =============================================================================
// FAKE CLOCK
// =============================================================================

// FakeClock only moves when Advance is called.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeClock starts a clock at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f for d after the current fake time.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) transport.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every timer that came due, in
// deadline order, on the caller's goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	keep := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns how many timers are waiting.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// NextDelay returns how far away the earliest pending timer is.
func (c *FakeClock) NextDelay() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best time.Duration
	found := false
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if d := t.at.Sub(c.now); !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

// =============================================================================
// RECORDER
// =============================================================================

// Sent is one outbound event captured by a Recorder.
type Sent struct {
	Channel transport.Channel
	Data    json.RawMessage
}

// Recorder is an in-memory transport. Outbound events are captured and
// inbound events are injected with Emit, which runs the handler on the
// caller's goroutine.
type Recorder struct {
	mu       sync.Mutex
	handlers transport.Handlers
	sent     []Sent
	uploads  [][]upload.File
	state    transport.State
	stats    transport.Stats
	closed   bool
}

// NewRecorder returns a disconnected recorder.
func NewRecorder() *Recorder {
	return &Recorder{handlers: make(transport.Handlers)}
}

var _ transport.Transport = (*Recorder)(nil)

// Connect marks the recorder connected.
func (r *Recorder) Connect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return transport.ErrClosed
	}
	r.state = transport.Connected
	return nil
}

// On registers the handler for ch.
func (r *Recorder) On(ch transport.Channel, h transport.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, ch)
		return
	}
	r.handlers[ch] = h
}

// Send captures the event, or counts it dropped while disconnected.
func (r *Recorder) Send(ch transport.Channel, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != transport.Connected {
		r.stats.Dropped++
		return nil
	}
	r.stats.Sent++
	r.sent = append(r.sent, Sent{Channel: ch, Data: data})
	return nil
}

// UploadFiles captures the files and records an upload event.
func (r *Recorder) UploadFiles(files []upload.File) error {
	r.mu.Lock()
	r.uploads = append(r.uploads, files)
	r.mu.Unlock()
	return r.Send(transport.ChannelUpload, map[string][]string{"files": upload.Names(files)})
}

// State returns the current state.
func (r *Recorder) State() transport.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState forces a state, for testing send-while-disconnected paths.
func (r *Recorder) SetState(s transport.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Stats returns the counters.
func (r *Recorder) Stats() transport.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.state = transport.Disconnected
	return nil
}

// Emit delivers payload to the handler for ch. It reports whether a handler
// was registered.
func (r *Recorder) Emit(ch transport.Channel, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return r.EmitRaw(ch, data)
}

// EmitRaw delivers raw JSON to the handler for ch.
func (r *Recorder) EmitRaw(ch transport.Channel, data []byte) bool {
	r.mu.Lock()
	h := r.handlers[ch]
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Sent returns a copy of every captured event.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentOn returns captured events for one channel.
func (r *Recorder) SentOn(ch transport.Channel) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.Channel == ch {
			out = append(out, s)
		}
	}
	return out
}

// Uploads returns every file batch passed to UploadFiles.
func (r *Recorder) Uploads() [][]upload.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]upload.File(nil), r.uploads...)
}

// Handled reports whether a handler is registered for ch.
func (r *Recorder) Handled(ch transport.Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[ch] != nil
}
