// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/transport"
)

// Poster runs apply on the goroutine that owns the view.
type Poster func(apply func())

// Direct applies events on the delivering goroutine.
func Direct(apply func()) { apply() }

// Subscriber is the inbound half of a transport.
type Subscriber interface {
	On(ch transport.Channel, h transport.Handler)
}

// InboundChannels are the events a store consumes.
var InboundChannels = []transport.Channel{
	transport.ChannelMessage,
	transport.ChannelDocuments,
	transport.ChannelUploadComplete,
	transport.ChannelUploadFailed,
	transport.ChannelAgentStep,
	transport.ChannelAgentMessage,
	transport.ChannelError,
}

// ErrUnknownChannel is returned by Apply for channels the store ignores.
var ErrUnknownChannel = errors.New("session: no reducer for channel")

// Attach registers a handler on every inbound channel. Payloads are decoded
// on the transport goroutine; the resulting change runs through post.
// Malformed payloads are logged and dropped.
func (s *Store) Attach(sub Subscriber, post Poster) {
	if post == nil {
		post = Direct
	}
	s.mu.Lock()
	s.post = post
	s.mu.Unlock()

	for _, ch := range InboundChannels {
		ch := ch
		sub.On(ch, func(data json.RawMessage) {
			apply, err := s.decode(ch, data)
			if err != nil {
				s.logger.Warn("EVENT_DROPPED", zap.String("channel", string(ch)), zap.Error(err))
				return
			}
			post(apply)
		})
	}
}

// Apply decodes and applies one event synchronously.
func (s *Store) Apply(ch transport.Channel, data json.RawMessage) error {
	apply, err := s.decode(ch, data)
	if err != nil {
		return err
	}
	apply()
	return nil
}

// =============================================================================
// PAYLOADS
// =============================================================================

type messagePayload struct {
	Content  string          `json:"content"`
	Metadata *model.Metadata `json:"metadata,omitempty"`
}

type agentMessagePayload struct {
	ID          string          `json:"id"`
	AgentName   string          `json:"agentName"`
	AgentAction string          `json:"agentAction"`
	Content     string          `json:"content"`
	Status      model.Status    `json:"status,omitempty"`
	Metadata    *model.Metadata `json:"metadata,omitempty"`
}

func (s *Store) decode(ch transport.Channel, data json.RawMessage) (func(), error) {
	switch ch {
	case transport.ChannelMessage:
		var p messagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if err := p.Metadata.Validate(); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return func() { s.applyMessage(p) }, nil

	case transport.ChannelDocuments:
		var docs []model.Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		if err := model.ValidateDocuments(docs); err != nil {
			return nil, err
		}
		return func() { s.applyDocuments(docs) }, nil

	case transport.ChannelUploadComplete:
		return func() { s.applyUploadResult(model.NewSystemMessage(UploadSucceeded)) }, nil

	case transport.ChannelUploadFailed:
		text := decodeErrorText(data, "upload rejected")
		return func() {
			s.applyUploadResult(model.NewErrorMessage("Upload failed: " + text))
		}, nil

	case transport.ChannelError:
		text := decodeErrorText(data, "backend error")
		return func() { s.applyError(text) }, nil

	case transport.ChannelAgentStep:
		var step model.AgentStep
		if err := json.Unmarshal(data, &step); err != nil {
			return nil, fmt.Errorf("decode agent step: %w", err)
		}
		if step.Status == "" {
			step.Status = model.StepRunning
		}
		if err := step.Validate(); err != nil {
			return nil, err
		}
		if step.Timestamp.IsZero() {
			step.Timestamp = s.cfg.Clock.Now()
		}
		return func() { s.applyAgentStep(step) }, nil

	case transport.ChannelAgentMessage:
		var p agentMessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode agent message: %w", err)
		}
		if !p.Status.Valid() {
			return nil, fmt.Errorf("decode agent message: unknown status %q", p.Status)
		}
		if err := p.Metadata.Validate(); err != nil {
			return nil, fmt.Errorf("decode agent message: %w", err)
		}
		return func() { s.applyAgentMessage(p) }, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownChannel, ch)
}

func decodeErrorText(data json.RawMessage, fallback string) string {
	var p transport.ErrorPayload
	if err := json.Unmarshal(data, &p); err == nil && p.Text() != "" {
		return p.Text()
	}
	return fallback
}

// =============================================================================
// REDUCERS
// =============================================================================

func (s *Store) applyMessage(p messagePayload) {
	msg := model.NewAssistantMessage(p.Content, p.Metadata)
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.awaitingResponse = false
	s.mu.Unlock()

	s.persist(msg)
	s.changed()
}

// applyDocuments replaces the whole set in received order.
func (s *Store) applyDocuments(docs []model.Document) {
	s.mu.Lock()
	s.documents = append([]model.Document(nil), docs...)
	s.mu.Unlock()
	s.changed()
}

func (s *Store) applyUploadResult(msg model.Message) {
	s.mu.Lock()
	s.awaitingUpload = false
	s.uploadGen++
	if s.uploadTimer != nil {
		s.uploadTimer.Stop()
		s.uploadTimer = nil
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.persist(msg)
	s.changed()
}

func (s *Store) applyError(text string) {
	msg := model.NewErrorMessage(text)
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.awaitingResponse = false
	s.mu.Unlock()

	s.persist(msg)
	s.changed()
}

// applyAgentStep appends a new step or advances a known one.
func (s *Store) applyAgentStep(step model.AgentStep) {
	s.mu.Lock()
	changed := true
	found := false
	for i := range s.steps {
		if s.steps[i].ID == step.ID {
			changed = s.steps[i].Update(step)
			found = true
			break
		}
	}
	if !found {
		s.steps = append(s.steps, step)
	}
	s.mu.Unlock()

	if changed {
		s.changed()
	}
}

// applyAgentMessage appends an agent message, or attaches status and
// metadata to the one with the same id. Role and content never change.
// An id already held by a non-agent message is replaced with a fresh one.
func (s *Store) applyAgentMessage(p agentMessagePayload) {
	s.mu.Lock()
	clash := false
	if p.ID != "" {
		for i := range s.messages {
			m := &s.messages[i]
			if m.ID != p.ID {
				continue
			}
			if m.Role != model.RoleAgent {
				clash = true
				break
			}
			wasTerminal := m.Status.Terminal()
			updated := false
			if p.Status != model.StatusNone {
				updated = m.Advance(p.Status)
			}
			if p.Metadata != nil && !wasTerminal {
				m.Metadata = p.Metadata
				updated = true
			}
			snapshot := *m
			s.mu.Unlock()
			if updated {
				s.persist(snapshot)
				s.changed()
			}
			return
		}
	}

	msg := model.NewAgentMessage(p.AgentName, p.AgentAction, p.Content)
	if p.ID != "" && !clash {
		msg.ID = p.ID
	}
	if p.Status != model.StatusNone && p.Status != model.StatusThinking {
		msg.Advance(p.Status)
	}
	msg.Metadata = p.Metadata
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if clash {
		s.logger.Debug("AGENT_MESSAGE_ID_TAKEN", zap.String("id", p.ID), zap.String("assigned", msg.ID))
	}
	s.persist(msg)
	s.changed()
}
