// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// AGENT PROGRESS
// =============================================================================

// AgentProgress shows the pipeline steps reported for the current query.
type AgentProgress struct {
	Steps []model.AgentStep
	Width int
	theme *styles.Theme
}

// NewAgentProgress creates an empty progress list.
func NewAgentProgress(theme *styles.Theme) *AgentProgress {
	return &AgentProgress{Width: 80, theme: theme}
}

// SetSteps replaces the steps.
func (a *AgentProgress) SetSteps(steps []model.AgentStep) {
	a.Steps = steps
}

// Done reports whether every step has finished.
func (a *AgentProgress) Done() bool {
	for _, s := range a.Steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// View renders one line per step, or nothing without steps.
func (a *AgentProgress) View() string {
	if len(a.Steps) == 0 {
		return ""
	}
	lines := make([]string, 0, len(a.Steps))
	for _, s := range a.Steps {
		text := s.Icon() + " " + s.AgentName + ": " + s.Action
		if s.Duration > 0 {
			text += " (" + model.FormatMillis(s.Duration) + ")"
		}
		if s.Metrics != nil && s.Metrics.Confidence > 0 {
			text += " " + model.FormatPercent(s.Metrics.Confidence)
		}
		lines = append(lines, a.stepStyle(s.Status).Render(util.TruncateWidth(text, a.Width-2)))
	}
	return strings.Join(lines, "\n")
}

func (a *AgentProgress) stepStyle(s model.StepStatus) lipgloss.Style {
	switch s {
	case model.StepComplete:
		return a.theme.StepComplete
	case model.StepError:
		return a.theme.StepError
	default:
		return a.theme.StepRunning
	}
}
