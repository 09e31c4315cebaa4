// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAgent     Role = "agent"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleAgent:
		return "Agent"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a message. The zero value means the
// message carries no status at all.
type Status string

const (
	StatusNone     Status = ""
	StatusThinking Status = "thinking"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusThinking, StatusComplete, StatusError:
		return true
	}
	return false
}

// CanAdvance reports whether moving from s to next goes forward.
// Statuses move none -> thinking -> complete|error and never back.
func (s Status) CanAdvance(next Status) bool {
	if !next.Valid() || next == StatusNone || s.Terminal() {
		return false
	}
	if s == StatusThinking {
		return next.Terminal()
	}
	return true
}

// =============================================================================
// METADATA TYPES
// =============================================================================

// Citation ties part of an answer to a source page.
type Citation struct {
	Text       string  `json:"text"`
	PageNumber int     `json:"pageNumber"`
	PDFURL     string  `json:"pdfUrl"`
	Confidence float64 `json:"confidence"`
}

// Validate checks page number and confidence bounds.
func (c Citation) Validate() error {
	if c.PageNumber < 1 {
		return fmt.Errorf("citation page number %d: must be >= 1", c.PageNumber)
	}
	if !inUnit(c.Confidence) {
		return fmt.Errorf("citation confidence %v: must be in [0,1]", c.Confidence)
	}
	return nil
}

// CodeBlock is a fenced code snippet attached to a message.
type CodeBlock struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

// PerformanceMetrics reports backend timing for one answer.
// Times are milliseconds.
type PerformanceMetrics struct {
	RetrievalTime  float64 `json:"retrievalTime"`
	ProcessingTime float64 `json:"processingTime"`
	TokensUsed     int     `json:"tokensUsed"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Metadata is optional enrichment attached to assistant and agent messages.
type Metadata struct {
	Citations  []Citation          `json:"citations,omitempty"`
	CodeBlocks []CodeBlock         `json:"codeBlocks,omitempty"`
	Metrics    *PerformanceMetrics `json:"metrics,omitempty"`
	Confidence *float64            `json:"confidence,omitempty"`
}

// Validate checks every bounded field in the metadata.
func (md *Metadata) Validate() error {
	if md == nil {
		return nil
	}
	for _, c := range md.Citations {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if md.Confidence != nil && !inUnit(*md.Confidence) {
		return fmt.Errorf("confidence %v: must be in [0,1]", *md.Confidence)
	}
	if md.Metrics != nil && !inUnit(md.Metrics.RelevanceScore) {
		return fmt.Errorf("relevance score %v: must be in [0,1]", md.Metrics.RelevanceScore)
	}
	return nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in the chat log.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is markdown.
	Content string `json:"content"`

	Status Status `json:"status,omitempty"`

	// For agent messages
	AgentName   string `json:"agentName,omitempty"`
	AgentAction string `json:"agentAction,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message. Code blocks are pulled
// out of fenced markdown when the metadata carries none.
func NewAssistantMessage(content string, md *Metadata) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Status = StatusComplete
	if md == nil {
		md = &Metadata{}
	}
	if len(md.CodeBlocks) == 0 {
		md.CodeBlocks = ExtractCodeBlocks(content)
	}
	if len(md.Citations) > 0 || len(md.CodeBlocks) > 0 || md.Metrics != nil || md.Confidence != nil {
		msg.Metadata = md
	}
	return msg
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewErrorMessage creates a system message in the error state.
func NewErrorMessage(content string) Message {
	msg := NewMessage(RoleSystem, content)
	msg.Status = StatusError
	return msg
}

// NewAgentMessage creates an agent message that is still working.
func NewAgentMessage(agent, action, content string) Message {
	msg := NewMessage(RoleAgent, content)
	msg.AgentName = agent
	msg.AgentAction = action
	msg.Status = StatusThinking
	return msg
}

// NewID returns a fresh unique identity for messages and conversations.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Advance moves the message to next if the transition goes forward.
// It reports whether the status changed.
func (m *Message) Advance(next Status) bool {
	if !m.Status.CanAdvance(next) {
		return false
	}
	m.Status = next
	return true
}

// IsPending reports whether an agent is still working on the message.
func (m Message) IsPending() bool {
	return m.Status == StatusThinking
}

// Preview returns a truncated single-line preview of the content.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatMillis renders a millisecond duration as "123ms" or "1.23s".
func FormatMillis(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

// FormatPercent renders a score in [0,1] as a percentage with one decimal.
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// Summary renders the metrics as a one-line status string.
func (p PerformanceMetrics) Summary() string {
	return fmt.Sprintf("retrieval %s | processing %s | %d tokens | relevance %s",
		FormatMillis(p.RetrievalTime),
		FormatMillis(p.ProcessingTime),
		p.TokensUsed,
		FormatPercent(p.RelevanceScore))
}

var fencePattern = regexp.MustCompile("(?s)```([\\w+#.-]*)[ \\t]*\\n(.*?)```")

// ExtractCodeBlocks returns the fenced code blocks in markdown, in order.
func ExtractCodeBlocks(markdown string) []CodeBlock {
	matches := fencePattern.FindAllStringSubmatch(markdown, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, CodeBlock{
			Language: strings.ToLower(m[1]),
			Code:     strings.TrimRight(m[2], "\n"),
		})
	}
	return blocks
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
