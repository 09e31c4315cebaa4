// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat-tui/internal/transport"
)

// collector records every payload delivered to the channels it watches.
type collector struct {
	mu     sync.Mutex
	events []received
}

type received struct {
	Channel transport.Channel
	Data    string
}

func (c *collector) handler(ch transport.Channel) transport.Handler {
	return func(data json.RawMessage) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, received{Channel: ch, Data: string(data)})
	}
}

func (c *collector) watch(t transport.Transport, channels ...transport.Channel) {
	for _, ch := range channels {
		t.On(ch, c.handler(ch))
	}
}

func (c *collector) snapshot() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]received(nil), c.events...)
}

func (c *collector) waitFor(t *testing.T, n int) []received {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.snapshot()) >= n },
		2*time.Second, 5*time.Millisecond, "want %d events", n)
	return c.snapshot()
}

func channels(events []received) []transport.Channel {
	out := make([]transport.Channel, len(events))
	for i, e := range events {
		out[i] = e.Channel
	}
	return out
}

// stateLog records OnState callbacks.
type stateLog struct {
	mu     sync.Mutex
	states []transport.State
}

func (s *stateLog) record(st transport.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *stateLog) all() []transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.State(nil), s.states...)
}

// =============================================================================
// FRAME TESTS
// =============================================================================

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    transport.Channel
		wantErr bool
	}{
		{"message", `{"type":"message","data":{"content":"hi"}}`, transport.ChannelMessage, false},
		{"no data", `{"type":"upload_complete"}`, transport.ChannelUploadComplete, false},
		{"not json", `{"type":`, "", true},
		{"missing type", `{"data":{}}`, "", true},
		{"blank type", `{"type":"  ","data":{}}`, "", true},
		{"array", `[1,2]`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := transport.DecodeFrame([]byte(tc.raw))
			if tc.wantErr {
				var fe *transport.FrameError
				require.Error(t, err)
				assert.True(t, errors.As(err, &fe))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.Type)
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	b, err := transport.EncodeFrame(transport.ChannelQuery, transport.QueryPayload{Text: "what is RAG?"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"query","data":{"text":"what is RAG?"}}`, string(b))

	_, err = transport.EncodeFrame(transport.ChannelQuery, func() {})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]transport.Kind{
		"websocket": transport.KindWebSocket,
		"WS":        transport.KindWebSocket,
		" http ":    transport.KindHTTP,
		"mock":      transport.KindMock,
	} {
		got, err := transport.ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := transport.ParseKind("grpc")
	assert.True(t, errors.Is(err, transport.ErrUnknownKind))

	_, err = transport.New("grpc", "", transport.Endpoints{}, transport.Options{})
	assert.True(t, errors.Is(err, transport.ErrUnknownKind))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", transport.Disconnected.String())
	assert.Equal(t, "connecting", transport.Connecting.String())
	assert.Equal(t, "connected", transport.Connected.String())
	assert.Equal(t, "unknown", transport.State(9).String())
}

func TestErrorPayload_Text(t *testing.T) {
	assert.Equal(t, "a", transport.ErrorPayload{Message: "a", Error: "b"}.Text())
	assert.Equal(t, "b", transport.ErrorPayload{Error: "b"}.Text())
}
