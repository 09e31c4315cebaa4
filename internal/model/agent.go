// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// StepStatus is the state of one pipeline step.
type StepStatus string

const (
	StepRunning  StepStatus = "running"
	StepComplete StepStatus = "complete"
	StepError    StepStatus = "error"
)

// Terminal reports whether the step has finished.
func (s StepStatus) Terminal() bool {
	return s == StepComplete || s == StepError
}

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	return s == StepRunning || s.Terminal()
}

// StepMetrics are optional numbers reported with a step.
type StepMetrics struct {
	Confidence float64 `json:"confidence,omitempty"`
	Latency    float64 `json:"latency,omitempty"`
	TokensUsed int     `json:"tokensUsed,omitempty"`
}

// AgentStep records one step the backend pipeline took for a query.
type AgentStep struct {
	ID        string       `json:"id"`
	AgentName string       `json:"agentName"`
	Action    string       `json:"action"`
	Status    StepStatus   `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Duration  float64      `json:"duration,omitempty"`
	Metrics   *StepMetrics `json:"metrics,omitempty"`
}

// Validate checks that the step can be recorded.
func (s AgentStep) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("agent step: missing id")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("agent step %q: unknown status %q", s.ID, s.Status)
	}
	if s.Metrics != nil && !inUnit(s.Metrics.Confidence) {
		return fmt.Errorf("agent step %q: confidence %v must be in [0,1]", s.ID, s.Metrics.Confidence)
	}
	return nil
}

// Update applies a later report of the same step. A finished step does not
// change again; it reports whether anything changed.
func (s *AgentStep) Update(next AgentStep) bool {
	if s.Status.Terminal() || next.Status == StepRunning {
		return false
	}
	s.Status = next.Status
	if next.Duration > 0 {
		s.Duration = next.Duration
	}
	if next.Metrics != nil {
		s.Metrics = next.Metrics
	}
	return true
}

// Icon returns a single-glyph marker for the step's status.
func (s AgentStep) Icon() string {
	switch s.Status {
	case StepComplete:
		return "✓"
	case StepError:
		return "✗"
	default:
		return "…"
	}
}
