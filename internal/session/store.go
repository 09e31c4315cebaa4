// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// DefaultGreeting opens every new session.
const DefaultGreeting = "Hello! I'm your AI assistant. You can ask me questions about your documents or upload a PDF to analyze."

// UploadSucceeded is the confirmation appended on upload_complete.
const UploadSucceeded = "Documents uploaded successfully"

// Sender is the outbound half of a transport.
type Sender interface {
	Send(ch transport.Channel, payload any) error
	UploadFiles(files []upload.File) error
}

// Config configures a Store. Zero values take defaults.
type Config struct {
	// Greeting, when set, is the first assistant message.
	Greeting string

	// UploadTimeout clears a stuck awaiting-upload flag. 0 disables it.
	UploadTimeout time.Duration

	Model model.ModelConfig
	RAG   model.RAGConfig

	Clock  transport.Clock
	Logger *zap.Logger

	// Persist receives every appended message and every later status change.
	Persist func(model.Message)

	// OnChange runs after every state change, outside the store lock.
	OnChange func()

	// OnConfig receives every accepted config replacement.
	OnConfig func(model.ModelConfig, model.RAGConfig)
}

// Snapshot is a copy of the store state safe to read without locking.
type Snapshot struct {
	Messages         []model.Message
	Documents        []model.Document
	Steps            []model.AgentStep
	AwaitingResponse bool
	AwaitingUpload   bool
	Model            model.ModelConfig
	RAG              model.RAGConfig
}

// Store is the session state. Methods are safe for concurrent use, but
// events only reach it through the Poster given to Attach, so a view that
// posts onto its own loop sees every change in order.
type Store struct {
	mu sync.Mutex

	messages  []model.Message
	documents []model.Document
	steps     []model.AgentStep

	awaitingResponse bool
	awaitingUpload   bool
	uploadGen        int
	uploadTimer      transport.Timer

	modelCfg model.ModelConfig
	ragCfg   model.RAGConfig

	sender Sender
	post   Poster
	cfg    Config
	logger *zap.Logger
}

// New creates a store that sends through sender.
func New(sender Sender, cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = transport.RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Model == (model.ModelConfig{}) {
		cfg.Model = model.DefaultModelConfig()
	}
	if cfg.RAG == (model.RAGConfig{}) {
		cfg.RAG = model.DefaultRAGConfig()
	}
	s := &Store{
		sender:   sender,
		post:     Direct,
		cfg:      cfg,
		logger:   cfg.Logger.With(zap.String("component", "session")),
		modelCfg: cfg.Model,
		ragCfg:   cfg.RAG,
	}
	if cfg.Greeting != "" {
		s.messages = append(s.messages, model.NewMessage(model.RoleAssistant, cfg.Greeting))
	}
	return s
}

// =============================================================================
// USER INTENTS
// =============================================================================

// Submit appends a user message and sends it as a query. Blank input and
// input typed while an answer is pending are rejected without any change.
func (s *Store) Submit(text string) bool {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.awaitingResponse {
		s.mu.Unlock()
		s.logger.Debug("SUBMIT_REJECTED", zap.String("reason", "awaiting response"))
		return false
	}
	msg := model.NewUserMessage(text)
	s.messages = append(s.messages, msg)
	s.awaitingResponse = true
	s.steps = nil
	s.mu.Unlock()

	s.persist(msg)
	s.changed()
	if err := s.sender.Send(transport.ChannelQuery, transport.QueryPayload{Text: text}); err != nil {
		s.logger.Error("QUERY_SEND_FAILED", zap.Error(err))
	}
	return true
}

// UploadFiles marks an upload in flight and hands the files to the
// transport. An empty selection does nothing.
func (s *Store) UploadFiles(files []upload.File) bool {
	if len(files) == 0 {
		return false
	}

	s.mu.Lock()
	s.awaitingUpload = true
	s.uploadGen++
	gen := s.uploadGen
	s.armUploadTimerLocked(gen)
	s.mu.Unlock()
	s.changed()

	if err := s.sender.UploadFiles(files); err != nil {
		s.logger.Warn("UPLOAD_ENCODE_FAILED", zap.Error(err))
		s.finishUpload(gen, model.NewErrorMessage(fmt.Sprintf("Upload failed: %v", err)))
	}
	return true
}

// SetConfig replaces the model and retrieval configuration and pushes it to
// the backend. Invalid values are rejected and nothing changes.
func (s *Store) SetConfig(mc model.ModelConfig, rc model.RAGConfig) error {
	if err := mc.Validate(); err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.modelCfg == mc && s.ragCfg == rc {
		s.mu.Unlock()
		return nil
	}
	s.modelCfg = mc
	s.ragCfg = rc
	s.mu.Unlock()

	if s.cfg.OnConfig != nil {
		s.cfg.OnConfig(mc, rc)
	}
	s.changed()
	return s.sender.Send(transport.ChannelConfig, ConfigPayload{Model: mc, RAG: rc})
}

// ConfigPayload is the body of a config event.
type ConfigPayload struct {
	Model model.ModelConfig `json:"model"`
	RAG   model.RAGConfig   `json:"rag"`
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages:         append([]model.Message(nil), s.messages...),
		Documents:        append([]model.Document(nil), s.documents...),
		Steps:            append([]model.AgentStep(nil), s.steps...),
		AwaitingResponse: s.awaitingResponse,
		AwaitingUpload:   s.awaitingUpload,
		Model:            s.modelCfg,
		RAG:              s.ragCfg,
	}
}

// Messages returns a copy of the log.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// Documents returns a copy of the latest retrieval result.
func (s *Store) Documents() []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Document(nil), s.documents...)
}

// AwaitingResponse reports whether a query is unanswered.
func (s *Store) AwaitingResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingResponse
}

// AwaitingUpload reports whether an upload is unconfirmed.
func (s *Store) AwaitingUpload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingUpload
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) armUploadTimerLocked(gen int) {
	if s.uploadTimer != nil {
		s.uploadTimer.Stop()
		s.uploadTimer = nil
	}
	if s.cfg.UploadTimeout <= 0 {
		return
	}
	post := s.post
	timeout := s.cfg.UploadTimeout
	s.uploadTimer = s.cfg.Clock.AfterFunc(timeout, func() {
		post(func() {
			s.logger.Warn("UPLOAD_TIMEOUT", zap.Duration("after", timeout))
			s.finishUpload(gen, model.NewErrorMessage(
				fmt.Sprintf("Upload not confirmed after %s", timeout)))
		})
	})
}

// finishUpload clears the flag for upload gen and appends msg. Stale
// generations are ignored.
func (s *Store) finishUpload(gen int, msg model.Message) {
	s.mu.Lock()
	if gen != s.uploadGen || !s.awaitingUpload {
		s.mu.Unlock()
		return
	}
	s.awaitingUpload = false
	if s.uploadTimer != nil {
		s.uploadTimer.Stop()
		s.uploadTimer = nil
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.persist(msg)
	s.changed()
}

func (s *Store) persist(msg model.Message) {
	if s.cfg.Persist != nil {
		s.cfg.Persist(msg)
	}
}

func (s *Store) changed() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange()
	}
}
