// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// maxResponseSize bounds JSON response bodies (10MB).
const maxResponseSize = 10 * 1024 * 1024

// SSE markers that end an answer stream.
const (
	sseEndEvent  = "end"
	sseDoneEvent = "done"
	sseDoneData  = "[DONE]"
)

// Endpoints are the four URLs of the HTTP backend.
type Endpoints struct {
	Upload string `toml:"upload_url" json:"upload_url"`
	Query  string `toml:"query_url" json:"query_url"`
	Chunks string `toml:"chunks_url" json:"chunks_url"`
	Answer string `toml:"answer_url" json:"answer_url"`
}

// DefaultEndpoints returns the backend's standard local ports.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Upload: "http://127.0.0.1:49203",
		Query:  "http://127.0.0.1:49200",
		Chunks: "http://127.0.0.1:49301",
		Answer: "http://127.0.0.1:49202",
	}
}

// chunkPreview is one page preview returned by the chunks endpoint.
type chunkPreview struct {
	PageNumber int      `json:"pageNumber"`
	ImageURL   string   `json:"imageUrl"`
	Relevance  float64  `json:"relevance"`
	PDFURL     string   `json:"pdfUrl"`
	Highlights []string `json:"highlights,omitempty"`
}

type chunksResponse struct {
	Images map[string][]chunkPreview `json:"images"`
}

type queryRequest struct {
	Queries map[string]string `json:"queries"`
}

// HTTP talks to a backend that exposes separate query, chunks and answer
// endpoints. Each query runs as one request/stream cycle whose results are
// published as documents and message events.
type HTTP struct {
	endpoints Endpoints
	opts      Options
	client    *http.Client
	disp      *dispatcher
	stats     counters
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
}

// NewHTTP creates an HTTP transport for the given endpoints.
func NewHTTP(endpoints Endpoints, opts Options) *HTTP {
	opts = opts.withDefaults()
	t := &HTTP{
		endpoints: endpoints,
		opts:      opts,
		client:    opts.HTTPClient,
		logger:    opts.Logger.With(zap.String("transport", string(KindHTTP))),
	}
	t.disp = newDispatcher(opts.Handlers, opts.QueueSize, &t.stats, t.logger)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Connect marks the transport ready. There is no persistent connection.
func (t *HTTP) Connect(ctx context.Context) error {
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
	return nil
}

// On registers the handler for ch.
func (t *HTTP) On(ch Channel, h Handler) {
	t.disp.on(ch, h)
}

// Send runs the request cycle for ch in the background. Only query has an
// HTTP route; other channels are dropped.
func (t *HTTP) Send(ch Channel, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ch, err)
	}
	if t.State() != Connected {
		t.stats.dropped.Add(1)
		t.logger.Debug("SEND_DROPPED", zap.String("channel", string(ch)))
		return nil
	}

	switch ch {
	case ChannelQuery:
		var q QueryPayload
		if err := json.Unmarshal(b, &q); err != nil {
			return fmt.Errorf("encode %s payload: %w", ch, err)
		}
		if !t.spawn(func() { t.runQuery(q.Text) }) {
			t.stats.dropped.Add(1)
			return nil
		}
		t.stats.sent.Add(1)
	default:
		t.stats.dropped.Add(1)
		t.logger.Debug("SEND_NO_ROUTE", zap.String("channel", string(ch)))
	}
	return nil
}

// UploadFiles posts the files as a multipart form.
func (t *HTTP) UploadFiles(files []upload.File) error {
	if t.State() != Connected {
		t.stats.dropped.Add(1)
		return nil
	}
	var body bytes.Buffer
	contentType, err := upload.WriteMultipart(&body, upload.MultipartField, files)
	if err != nil {
		return err
	}
	ok := t.spawn(func() {
		if err := t.postUpload(&body, contentType); err != nil {
			t.logger.Warn("UPLOAD_FAILED", zap.Error(err))
			t.emit(ChannelUploadFailed, ErrorPayload{Error: err.Error()})
			return
		}
		t.emit(ChannelUploadComplete, struct{}{})
	})
	if !ok {
		t.stats.dropped.Add(1)
		return nil
	}
	t.stats.sent.Add(1)
	return nil
}

// State returns the current state.
func (t *HTTP) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns the running counters.
func (t *HTTP) Stats() Stats {
	return t.stats.snapshot()
}

// Close cancels in-flight requests and stops delivery.
func (t *HTTP) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.setState(Disconnected)
	t.disp.stop()
	return nil
}

// =============================================================================
// REQUEST CYCLE
// =============================================================================

// spawn runs fn in a tracked goroutine. It refuses once Close has begun,
// so wg.Add never races wg.Wait.
func (t *HTTP) spawn(fn func()) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		fn()
	}()
	return true
}

func (t *HTTP) emit(ch Channel, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Error("EMIT_ENCODE", zap.String("channel", string(ch)), zap.Error(err))
		return
	}
	t.disp.push(Frame{Type: ch, Data: data})
}

func (t *HTTP) runQuery(text string) {
	ctx := t.ctx
	if err := t.postQuery(ctx, text); err != nil {
		t.fail("query", err)
		return
	}

	docs, err := t.fetchChunks(ctx)
	if err != nil {
		t.fail("chunks", err)
		return
	}
	t.emit(ChannelDocuments, docs)

	answer, err := t.streamAnswer(ctx)
	if err != nil {
		t.fail("answer", err)
		return
	}
	t.emit(ChannelMessage, MessagePayload{Content: answer})
}

func (t *HTTP) fail(stage string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	t.logger.Warn("QUERY_FAILED", zap.String("stage", stage), zap.Error(err))
	t.emit(ChannelError, ErrorPayload{Message: fmt.Sprintf("Query failed (%s): %v", stage, err)})
}

func (t *HTTP) postQuery(ctx context.Context, text string) error {
	body, err := json.Marshal(queryRequest{Queries: map[string]string{"0": text}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoints.Query, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return checkStatus(resp)
}

func (t *HTTP) fetchChunks(ctx context.Context) ([]model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoints.Chunks, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var cr chunksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	previews := cr.Images["0"]
	docs := make([]model.Document, 0, len(previews))
	for i, p := range previews {
		docs = append(docs, model.Document{
			ID:         strconv.Itoa(i + 1),
			PageNumber: p.PageNumber,
			ImageURL:   p.ImageURL,
			Score:      p.Relevance,
			PDFURL:     p.PDFURL,
		})
	}
	return docs, nil
}

// streamAnswer concatenates the data of every SSE event. An explicit end
// marker or a clean EOF resolves the answer; a read error mid-stream
// resolves with whatever arrived.
func (t *HTTP) streamAnswer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoints.Answer, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var answer strings.Builder
	reader := NewSSEReader(resp.Body)
	for {
		event, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return answer.String(), nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.logger.Warn("ANSWER_STREAM_INTERRUPTED",
				zap.Int("partial_bytes", answer.Len()),
				zap.Error(err))
			return answer.String(), nil
		}
		if event == sseEndEvent || event == sseDoneEvent || string(data) == sseDoneData {
			return answer.String(), nil
		}
		if event == "error" {
			return "", fmt.Errorf("answer stream: %s", data)
		}
		answer.Write(data)
	}
}

func (t *HTTP) postUpload(body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, t.endpoints.Upload, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status)
	}
	return nil
}

func (t *HTTP) setState(s State) {
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
