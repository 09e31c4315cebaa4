// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/upload"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 * 1024 * 1024
)

// WebSocket is the realtime transport. A dropped connection is retried
// after a fixed delay until Close or MaxRetries consecutive failures.
type WebSocket struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	disp   *dispatcher
	stats  counters
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	out     chan []byte
	retries int
	timer   Timer
	started bool
	closed  bool
}

// NewWebSocket creates a websocket transport for url. Nothing is dialled
// until Connect.
func NewWebSocket(url string, opts Options) *WebSocket {
	opts = opts.withDefaults()
	t := &WebSocket{
		url:  url,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.DialTimeout,
		},
		logger: opts.Logger.With(zap.String("transport", string(KindWebSocket))),
	}
	t.disp = newDispatcher(opts.Handlers, opts.QueueSize, &t.stats, t.logger)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Connect dials the backend. A failed first dial still leaves the reconnect
// loop running; the error is returned for the caller to report.
func (t *WebSocket) Connect(ctx context.Context) error {
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
	return t.dial(ctx)
}

// On registers the handler for ch.
func (t *WebSocket) On(ch Channel, h Handler) {
	t.disp.on(ch, h)
}

// Send queues payload for the writer goroutine, or drops it when there is no
// open connection.
func (t *WebSocket) Send(ch Channel, payload any) error {
	b, err := EncodeFrame(ch, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Connected || t.out == nil {
		t.stats.dropped.Add(1)
		t.logger.Debug("SEND_DROPPED", zap.String("channel", string(ch)), zap.Stringer("state", t.state))
		return nil
	}
	select {
	case t.out <- b:
		t.stats.sent.Add(1)
	default:
		t.stats.dropped.Add(1)
		t.logger.Warn("SEND_BUFFER_FULL", zap.String("channel", string(ch)))
	}
	return nil
}

// UploadFiles sends the files base64-encoded on the upload channel.
func (t *WebSocket) UploadFiles(files []upload.File) error {
	payload, err := upload.EncodeFrame(files)
	if err != nil {
		return err
	}
	return t.Send(ChannelUpload, payload)
}

// State returns the current connection state.
func (t *WebSocket) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns the running counters.
func (t *WebSocket) Stats() Stats {
	return t.stats.snapshot()
}

// Close stops reconnecting and closes the connection.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	conn := t.conn
	t.conn = nil
	if t.out != nil {
		close(t.out)
		t.out = nil
	}
	t.mu.Unlock()

	t.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	t.setState(Disconnected)
	t.disp.stop()
	t.logger.Info("TRANSPORT_CLOSED")
	return err
}

// =============================================================================
// CONNECTION LIFECYCLE
// =============================================================================

func (t *WebSocket) dial(ctx context.Context) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.setState(Connecting)
	t.logger.Info("DIAL", zap.String("url", t.url))

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	defer cancel()
	conn, _, err := t.dialer.DialContext(dialCtx, t.url, t.opts.Header)
	if err != nil {
		t.logger.Warn("DIAL_FAILED", zap.String("url", t.url), zap.Error(err))
		t.setState(Disconnected)
		t.scheduleReconnect()
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	out := make(chan []byte, t.opts.SendBuffer)
	t.conn = conn
	t.out = out
	t.retries = 0
	t.mu.Unlock()

	t.setState(Connected)
	t.logger.Info("CONNECTED", zap.String("url", t.url))

	go t.writeLoop(conn, out)
	go t.readLoop(conn)
	return nil
}

func (t *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.connectionLost(conn, err)
			return
		}
		f, err := DecodeFrame(data)
		if err != nil {
			t.stats.malformed.Add(1)
			t.logger.Warn("FRAME_MALFORMED", zap.Error(err))
			continue
		}
		if !t.disp.push(f) {
			return
		}
	}
}

// writeLoop is the only goroutine that writes to conn.
func (t *WebSocket) writeLoop(conn *websocket.Conn, out <-chan []byte) {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				t.logger.Warn("WRITE_FAILED", zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// connectionLost tears down conn if it is still current and schedules the
// next attempt. Stale connections are ignored.
func (t *WebSocket) connectionLost(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	if t.out != nil {
		close(t.out)
		t.out = nil
	}
	closed := t.closed
	t.mu.Unlock()

	conn.Close()
	if closed {
		return
	}
	t.logger.Warn("CONNECTION_LOST", zap.Error(cause))
	t.setState(Disconnected)
	t.scheduleReconnect()
}

func (t *WebSocket) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.opts.MaxRetries > 0 && t.retries >= t.opts.MaxRetries {
		t.logger.Error("RECONNECT_ABANDONED", zap.Int("attempts", t.retries))
		return
	}
	t.retries++
	t.stats.reconnects.Add(1)
	t.logger.Info("RECONNECT_SCHEDULED",
		zap.Duration("delay", t.opts.ReconnectDelay),
		zap.Int("attempt", t.retries))
	t.timer = t.opts.Clock.AfterFunc(t.opts.ReconnectDelay, func() {
		t.dial(t.ctx)
	})
}

func (t *WebSocket) setState(s State) {
	t.mu.Lock()
	if t.state == s || (t.closed && s != Disconnected) {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()
	if t.opts.OnState != nil {
		t.opts.OnState(s)
	}
}

func (t *WebSocket) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
