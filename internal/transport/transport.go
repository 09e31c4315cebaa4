// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// =============================================================================
// CHANNELS
// =============================================================================

// Channel names a logical stream of events over one connection.
type Channel string

const (
	// Client to server.
	ChannelQuery  Channel = "query"
	ChannelUpload Channel = "upload"
	ChannelConfig Channel = "config"

	// Server to client.
	ChannelMessage        Channel = "message"
	ChannelDocuments      Channel = "documents"
	ChannelUploadComplete Channel = "upload_complete"
	ChannelUploadFailed   Channel = "upload_failed"
	ChannelAgentStep      Channel = "agent_step"
	ChannelAgentMessage   Channel = "agent_message"
	ChannelError          Channel = "error"
)

// QueryPayload is the body of a query event.
type QueryPayload struct {
	Text string `json:"text"`
}

// MessagePayload is the body of a message event.
type MessagePayload struct {
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ErrorPayload is the body of error and upload_failed events.
type ErrorPayload struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns whichever of the two fields the backend filled in.
func (p ErrorPayload) Text() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Error
}

// =============================================================================
// FRAMES
// =============================================================================

// Frame is the wire envelope: {"type": <channel>, "data": <payload>}.
type Frame struct {
	Type Channel         `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FrameError reports an inbound frame that could not be decoded.
type FrameError struct {
	Raw []byte
	Err error
}

func (e *FrameError) Error() string {
	raw := string(e.Raw)
	if len(raw) > 80 {
		raw = raw[:77] + "..."
	}
	return fmt.Sprintf("malformed frame %q: %v", raw, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// DecodeFrame parses one inbound frame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, &FrameError{Raw: b, Err: err}
	}
	if strings.TrimSpace(string(f.Type)) == "" {
		return Frame{}, &FrameError{Raw: b, Err: errors.New("missing type")}
	}
	return f, nil
}

// EncodeFrame builds the wire form of an outbound event.
func EncodeFrame(ch Channel, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ch, err)
	}
	return json.Marshal(Frame{Type: ch, Data: data})
}

// =============================================================================
// HANDLERS
// =============================================================================

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Handlers is a dispatch table with exactly one handler per channel.
type Handlers map[Channel]Handler

// Clone returns a copy safe to hand to another owner.
func (h Handlers) Clone() Handlers {
	out := make(Handlers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// =============================================================================
// STATE
// =============================================================================

// State is the connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Stats are running counters for one transport.
type Stats struct {
	Sent       int64
	Dropped    int64
	Received   int64
	Unhandled  int64
	Malformed  int64
	Reconnects int64
}

type counters struct {
	sent, dropped, received, unhandled, malformed, reconnects atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Received:   c.received.Load(),
		Unhandled:  c.unhandled.Load(),
		Malformed:  c.malformed.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// =============================================================================
// TRANSPORT INTERFACE
// =============================================================================

var (
	// ErrClosed is returned when connecting a transport that was closed.
	ErrClosed = errors.New("transport closed")

	// ErrUnknownKind is returned for an unrecognised transport kind.
	ErrUnknownKind = errors.New("unknown transport kind")
)

// Transport is the client's only path to the backend.
type Transport interface {
	// Connect establishes the connection and starts delivering inbound
	// events. Calling it again is a no-op.
	Connect(ctx context.Context) error

	// On registers the handler for a channel, replacing any previous one.
	On(ch Channel, h Handler)

	// Send transmits payload on ch. While not connected the event is
	// dropped. The error reports only encoding failures.
	Send(ch Channel, payload any) error

	// UploadFiles submits files for ingestion.
	UploadFiles(files []upload.File) error

	State() State
	Stats() Stats

	// Close tears the transport down. It is not reusable afterwards.
	Close() error
}

// Kind selects a transport implementation.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindHTTP      Kind = "http"
	KindMock      Kind = "mock"
)

// ParseKind resolves a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWebSocket, KindHTTP, KindMock:
		return k, nil
	case "ws":
		return KindWebSocket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Default option values.
const (
	DefaultReconnectDelay = time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultQueueSize      = 256
	DefaultSendBuffer     = 64
)

// Options configures any transport. Zero values take defaults.
type Options struct {
	// Handlers seeds the dispatch table.
	Handlers Handlers

	// ReconnectDelay is the fixed wait before each reconnect attempt.
	ReconnectDelay time.Duration

	// MaxRetries caps consecutive failed reconnects. 0 means unlimited.
	MaxRetries int

	DialTimeout  time.Duration
	PingInterval time.Duration

	// QueueSize bounds inbound frames waiting for dispatch.
	QueueSize int

	// SendBuffer bounds outbound frames waiting for the writer.
	SendBuffer int

	Header     http.Header
	HTTPClient *http.Client
	Clock      Clock
	Logger     *zap.Logger

	// OnState is called after every state change, off the caller's goroutine.
	OnState func(State)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New builds the transport for kind. url is used by the websocket kind and
// endpoints by the HTTP kind.
func New(kind Kind, url string, endpoints Endpoints, opts Options) (Transport, error) {
	switch kind {
	case KindWebSocket:
		return NewWebSocket(url, opts), nil
	case KindHTTP:
		return NewHTTP(endpoints, opts), nil
	case KindMock:
		return NewMock(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
