// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom line: connection state, model, strategy and any
// work still pending.
type StatusBar struct {
	State            transport.State
	ModelLabel       string
	StrategyLabel    string
	AwaitingResponse bool
	AwaitingUpload   bool
	DocumentCount    int
	Width            int
	ShowShortcuts    bool
	theme            *styles.Theme
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		State:         transport.Disconnected,
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the status bar for the current width.
func (s *StatusBar) View() string {
	sep := s.theme.Muted.Render(" | ")

	parts := []string{s.stateBadge()}
	if s.Width >= 60 {
		if s.ModelLabel != "" {
			parts = append(parts, s.ModelLabel)
		}
		if s.StrategyLabel != "" {
			parts = append(parts, s.StrategyLabel)
		}
	}
	if s.AwaitingResponse {
		parts = append(parts, s.theme.Pending.Render("waiting for answer"))
	}
	if s.AwaitingUpload {
		parts = append(parts, s.theme.Pending.Render("uploading"))
	}
	if s.DocumentCount > 0 && s.Width >= 60 {
		parts = append(parts, strconv.Itoa(s.DocumentCount)+" docs")
	}
	left := strings.Join(parts, sep)

	if s.ShowShortcuts && s.Width >= 100 {
		right := s.shortcut("ctrl+d", "docs") + "  " + s.shortcut("/help", "commands") + "  " +
			s.shortcut("ctrl+c", "quit")
		gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
		if gap > 0 {
			left += strings.Repeat(" ", gap) + right
		}
	}

	return s.theme.StatusBar.Width(s.Width).MaxWidth(s.Width).MaxHeight(1).Render(left)
}

func (s *StatusBar) stateBadge() string {
	switch s.State {
	case transport.Connected:
		return s.theme.Connected.Render(styles.StatusIndicators.Active + " connected")
	case transport.Connecting:
		return s.theme.Connecting.Render(styles.StatusIndicators.Pending + " connecting")
	default:
		return s.theme.Disconnected.Render(styles.StatusIndicators.Error + " disconnected")
	}
}

func (s *StatusBar) shortcut(key, desc string) string {
	return s.theme.ShortcutKey.Render(key) + " " + s.theme.ShortcutDesc.Render(desc)
}
