// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// MESSAGE VIEW
// =============================================================================

// MessageView renders chat log entries as bubbles.
type MessageView struct {
	ShowTimestamp bool
	ShowMetrics   bool

	theme *styles.Theme
	md    *MarkdownRenderer
}

// NewMessageView creates a message renderer.
func NewMessageView(theme *styles.Theme, md *MarkdownRenderer) *MessageView {
	return &MessageView{
		ShowTimestamp: true,
		ShowMetrics:   true,
		theme:         theme,
		md:            md,
	}
}

// bubbleChrome is the horizontal space used by margins, border and padding.
const bubbleChrome = 8

// Render renders msg within width columns.
func (v *MessageView) Render(msg model.Message, width int) string {
	inner := width - bubbleChrome
	if inner < 20 {
		inner = 20
	}

	var parts []string
	parts = append(parts, v.header(msg))
	parts = append(parts, v.md.Render(msg.ID, msg.Content, inner))

	if md := msg.Metadata; md != nil {
		for _, cb := range md.CodeBlocks {
			// Fenced blocks in the content are already rendered by glamour.
			if strings.Contains(msg.Content, strings.TrimSpace(cb.Code)) {
				continue
			}
			block := NewCodeBlock(v.theme, cb)
			block.MaxWidth = inner
			parts = append(parts, block.Render())
		}
		if len(md.Citations) > 0 {
			parts = append(parts, v.citations(md.Citations, inner))
		}
		if v.ShowMetrics {
			if line := metricsLine(md); line != "" {
				parts = append(parts, v.theme.Metrics.Render(util.TruncateWidth(line, inner)))
			}
		}
	}

	return v.bubble(msg).Render(strings.Join(parts, "\n"))
}

func (v *MessageView) header(msg model.Message) string {
	label := RoleLabel(msg)
	if msg.Role == model.RoleAgent {
		label = statusIcon(msg.Status) + " " + label
	}
	out := v.theme.RoleLabel.Render(label)
	if v.ShowTimestamp && !msg.Timestamp.IsZero() {
		out += " " + v.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}
	return out
}

func (v *MessageView) bubble(msg model.Message) lipgloss.Style {
	if msg.Status == model.StatusError {
		return v.theme.ErrorBubble
	}
	switch msg.Role {
	case model.RoleUser:
		return v.theme.UserBubble
	case model.RoleAgent:
		return v.theme.AgentBubble
	case model.RoleSystem:
		return v.theme.SystemBubble
	default:
		return v.theme.AssistantBubble
	}
}

func (v *MessageView) citations(cs []model.Citation, width int) string {
	lines := []string{v.theme.RoleLabel.Render("Sources")}
	for _, c := range cs {
		line := fmt.Sprintf("[p.%d] %s %s", c.PageNumber, model.FormatPercent(c.Confidence),
			util.SingleLine(c.Text))
		lines = append(lines, v.theme.Citation.Render(util.TruncateWidth(line, width-2)))
		if c.PDFURL != "" {
			link := model.Document{PageNumber: c.PageNumber, PDFURL: c.PDFURL}.PageLink()
			lines = append(lines, v.theme.Citation.Render(v.theme.Link.Render(util.TruncateWidth(link, width-2))))
		}
	}
	return strings.Join(lines, "\n")
}

// RoleLabel names the author of msg: the agent and its action for agent
// messages, otherwise the role's display name.
func RoleLabel(msg model.Message) string {
	if msg.Role == model.RoleAgent && msg.AgentName != "" {
		if msg.AgentAction == "" {
			return msg.AgentName
		}
		return msg.AgentName + ": " + msg.AgentAction
	}
	if msg.Status == model.StatusError {
		return "Error"
	}
	return msg.Role.DisplayName()
}

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusComplete:
		return styles.StatusIndicators.Success
	case model.StatusError:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Pending
	}
}

func metricsLine(md *model.Metadata) string {
	var stats []string
	if md.Metrics != nil {
		stats = append(stats, md.Metrics.Summary())
	}
	if md.Confidence != nil {
		stats = append(stats, "confidence "+model.FormatPercent(*md.Confidence))
	}
	return strings.Join(stats, " | ")
}
