// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/transport/transporttest"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// wsServer runs one script per accepted connection, in order.
type wsServer struct {
	*httptest.Server

	mu      sync.Mutex
	scripts []func(*websocket.Conn)
	conns   int
	inbox   chan string
}

func newWSServer(t *testing.T, scripts ...func(*websocket.Conn)) *wsServer {
	t.Helper()
	s := &wsServer{scripts: scripts, inbox: make(chan string, 16)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		idx := s.conns
		s.conns++
		s.mu.Unlock()

		if idx < len(s.scripts) {
			s.scripts[idx](conn)
			return
		}
		// Past the scripts: echo inbound frames into the inbox until closed.
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.inbox <- string(data)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// writeFrame runs on the server goroutine, so failures surface as missing
// events on the client side rather than through t.
func writeFrame(conn *websocket.Conn, raw string) {
	conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

// holdOpen blocks until the peer goes away.
func holdOpen(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWebSocket_DeliversInOrderAndDropsUnknown(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, `{"type":"message","data":{"content":"one"}}`)
		writeFrame(conn, `{"type":"telemetry","data":{"cpu":1}}`)
		writeFrame(conn, `not json at all`)
		writeFrame(conn, `{"type":"documents","data":[]}`)
		writeFrame(conn, `{"type":"message","data":{"content":"two"}}`)
		holdOpen(conn)
	})

	c := &collector{}
	ws := transport.NewWebSocket(srv.url(), transport.Options{})
	defer ws.Close()
	c.watch(ws, transport.ChannelMessage, transport.ChannelDocuments)

	require.NoError(t, ws.Connect(context.Background()))
	events := c.waitFor(t, 3)

	assert.Equal(t, []transport.Channel{
		transport.ChannelMessage, transport.ChannelDocuments, transport.ChannelMessage,
	}, channels(events))
	assert.JSONEq(t, `{"content":"one"}`, events[0].Data)
	assert.JSONEq(t, `{"content":"two"}`, events[2].Data)

	require.Eventually(t, func() bool { return ws.Stats().Unhandled == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), ws.Stats().Malformed)
	assert.Equal(t, transport.Connected, ws.State())
}

func TestWebSocket_HandlerReplacement(t *testing.T) {
	release := make(chan struct{})
	srv := newWSServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, `{"type":"message","data":{"content":"first"}}`)
		<-release
		writeFrame(conn, `{"type":"message","data":{"content":"second"}}`)
		holdOpen(conn)
	})

	first, second := &collector{}, &collector{}
	ws := transport.NewWebSocket(srv.url(), transport.Options{
		Handlers: transport.Handlers{transport.ChannelMessage: first.handler(transport.ChannelMessage)},
	})
	defer ws.Close()
	require.NoError(t, ws.Connect(context.Background()))
	first.waitFor(t, 1)

	ws.On(transport.ChannelMessage, second.handler(transport.ChannelMessage))
	close(release)
	got := second.waitFor(t, 1)

	assert.JSONEq(t, `{"content":"second"}`, got[0].Data)
	assert.Len(t, first.snapshot(), 1, "replaced handler must not fire again")
}

func TestWebSocket_SendWhileDisconnectedIsDropped(t *testing.T) {
	ws := transport.NewWebSocket("ws://127.0.0.1:1", transport.Options{})
	defer ws.Close()

	require.NoError(t, ws.Send(transport.ChannelQuery, transport.QueryPayload{Text: "hi"}))
	assert.Equal(t, int64(1), ws.Stats().Dropped)
	assert.Equal(t, int64(0), ws.Stats().Sent)
	assert.Equal(t, transport.Disconnected, ws.State())
}

func TestWebSocket_SendReachesServer(t *testing.T) {
	srv := newWSServer(t)
	ws := transport.NewWebSocket(srv.url(), transport.Options{})
	defer ws.Close()
	require.NoError(t, ws.Connect(context.Background()))

	require.NoError(t, ws.Send(transport.ChannelQuery, transport.QueryPayload{Text: "what is on page 2?"}))
	require.NoError(t, ws.UploadFiles([]upload.File{upload.FromBytes("a.pdf", []byte("pdf"))}))

	select {
	case got := <-srv.inbox:
		assert.JSONEq(t, `{"type":"query","data":{"text":"what is on page 2?"}}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("query frame never arrived")
	}
	select {
	case got := <-srv.inbox:
		assert.Contains(t, got, `"type":"upload"`)
		assert.Contains(t, got, `"name":"a.pdf"`)
		assert.Contains(t, got, `"data":"cGRm"`)
	case <-time.After(2 * time.Second):
		t.Fatal("upload frame never arrived")
	}
}

func TestWebSocket_ConnectIsIdempotent(t *testing.T) {
	srv := newWSServer(t)
	ws := transport.NewWebSocket(srv.url(), transport.Options{})
	defer ws.Close()

	require.NoError(t, ws.Connect(context.Background()))
	require.NoError(t, ws.Connect(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, srv.connections())
}

func TestWebSocket_ReconnectsAfterDrop(t *testing.T) {
	srv := newWSServer(t,
		func(conn *websocket.Conn) {
			writeFrame(conn, `{"type":"message","data":{"content":"before"}}`)
			conn.Close()
		},
		func(conn *websocket.Conn) {
			writeFrame(conn, `{"type":"message","data":{"content":"after"}}`)
			holdOpen(conn)
		},
	)

	clock := transporttest.NewFakeClock(time.Unix(0, 0))
	states := &stateLog{}
	c := &collector{}
	ws := transport.NewWebSocket(srv.url(), transport.Options{Clock: clock, OnState: states.record})
	defer ws.Close()
	c.watch(ws, transport.ChannelMessage)

	require.NoError(t, ws.Connect(context.Background()))
	c.waitFor(t, 1)

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, transport.Disconnected, ws.State())
	delay, ok := clock.NextDelay()
	require.True(t, ok)
	assert.Equal(t, transport.DefaultReconnectDelay, delay)

	// Sends during the outage are dropped, not queued.
	require.NoError(t, ws.Send(transport.ChannelQuery, transport.QueryPayload{Text: "lost"}))
	assert.Equal(t, int64(1), ws.Stats().Dropped)

	clock.Advance(time.Second)
	events := c.waitFor(t, 2)

	assert.Len(t, events, 2, "no duplicates after reconnect")
	assert.JSONEq(t, `{"content":"before"}`, events[0].Data)
	assert.JSONEq(t, `{"content":"after"}`, events[1].Data)
	assert.Equal(t, transport.Connected, ws.State())
	assert.Equal(t, int64(1), ws.Stats().Reconnects)
	assert.Equal(t, []transport.State{
		transport.Connecting, transport.Connected,
		transport.Disconnected,
		transport.Connecting, transport.Connected,
	}, states.all())
}

func TestWebSocket_StopsAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	clock := transporttest.NewFakeClock(time.Unix(0, 0))
	ws := transport.NewWebSocket(url, transport.Options{Clock: clock, MaxRetries: 2})
	defer ws.Close()

	assert.Error(t, ws.Connect(context.Background()))
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 0, clock.Pending(), "retry budget spent")
	assert.Equal(t, int64(2), ws.Stats().Reconnects)
	assert.Equal(t, transport.Disconnected, ws.State())
}

func TestWebSocket_CloseStopsReconnect(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) { conn.Close() })
	clock := transporttest.NewFakeClock(time.Unix(0, 0))
	ws := transport.NewWebSocket(srv.url(), transport.Options{Clock: clock})

	require.NoError(t, ws.Connect(context.Background()))
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())
	assert.Equal(t, 0, clock.Pending())
	assert.ErrorIs(t, ws.Connect(context.Background()), transport.ErrClosed)
	assert.Equal(t, transport.Disconnected, ws.State())
}
