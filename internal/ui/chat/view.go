// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// docPanelWidth is the document panel width when it fits.
const docPanelWidth = 36

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting ragchat..."
	}

	body := m.viewport.View()
	if m.docsVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.docs.View())
	}

	parts := []string{m.headerView(), body}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	parts = append(parts, m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	parts = append(parts, m.status.View())
	return strings.Join(parts, "\n")
}

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("ragchat")
	if m.title != "ragchat" {
		title += " " + m.theme.HeaderSubtitle.Render(m.title)
	}
	return m.theme.Header.Width(m.width).MaxHeight(1).Render(title)
}

// docsVisible reports whether the panel is open and the terminal is wide
// enough to show it beside the log.
func (m Model) docsVisible() bool {
	return m.showDocs && m.width-docPanelWidth >= 40
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes every region from the terminal size.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	m.status.SetWidth(m.width)
	m.input.Width = m.width - 6

	const header, input, status = 1, 2, 1
	notice := 0
	if m.notice != "" {
		notice = lipgloss.Height(m.notice)
	}
	h := m.height - header - input - status - notice
	if h < 3 {
		h = 3
	}

	w := m.width
	if m.docsVisible() {
		w -= docPanelWidth
		m.docs.SetSize(docPanelWidth, h)
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

// renderLog rebuilds the viewport content. The view follows new messages
// unless the user has scrolled up.
func (m *Model) renderLog() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0

	var blocks []string
	for _, msg := range m.snap.Messages {
		blocks = append(blocks, m.messages.Render(msg, m.viewport.Width))
	}
	if p := m.progressView(); p != "" {
		blocks = append(blocks, p)
	}
	if s := m.spinner.View(); s != "" {
		blocks = append(blocks, s)
	}

	m.viewport.SetContent(strings.Join(blocks, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) progressView() string {
	m.progress.Width = m.viewport.Width
	return m.progress.View()
}
