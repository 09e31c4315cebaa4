// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// DOCUMENT PANEL
// =============================================================================

// DocumentPanel lists the pages retrieved for the latest query, in the
// order the backend sent them.
type DocumentPanel struct {
	Documents []model.Document
	Width     int
	Height    int
	theme     *styles.Theme
}

// NewDocumentPanel creates an empty panel.
func NewDocumentPanel(theme *styles.Theme) *DocumentPanel {
	return &DocumentPanel{Width: 36, Height: 20, theme: theme}
}

// SetDocuments replaces the panel contents.
func (p *DocumentPanel) SetDocuments(docs []model.Document) {
	p.Documents = docs
}

// SetSize sets the outer size of the panel.
func (p *DocumentPanel) SetSize(width, height int) {
	p.Width = width
	p.Height = height
}

// View renders the panel. Entries that do not fit the height are
// summarised in a final "+N more" line.
func (p *DocumentPanel) View() string {
	inner := p.Width - 4
	if inner < 12 {
		inner = 12
	}

	lines := []string{p.theme.DocTitle.Render("Documents (" + strconv.Itoa(len(p.Documents)) + ")")}
	if len(p.Documents) == 0 {
		lines = append(lines, p.theme.Muted.Render("No documents retrieved yet."))
	}

	budget := p.Height - 3 // border and title
	for i, d := range p.Documents {
		entry := p.entry(d, inner)
		if budget > 0 && len(lines)+len(entry) > budget {
			lines = append(lines, p.theme.Muted.Render("+"+strconv.Itoa(len(p.Documents)-i)+" more"))
			break
		}
		lines = append(lines, entry...)
	}

	return p.theme.DocPanel.Width(p.Width - 2).Render(strings.Join(lines, "\n"))
}

func (p *DocumentPanel) entry(d model.Document, width int) []string {
	head := p.theme.DocPage.Render("Page "+strconv.Itoa(d.PageNumber)) + "  " +
		p.theme.DocScore.Render(d.ScoreLabel())
	out := []string{head}
	if link := d.PageLink(); link != "" {
		out = append(out, p.theme.Link.Render(util.TruncateWidth(link, width)))
	}
	if d.ImageURL != "" {
		out = append(out, p.theme.Muted.Render(util.TruncateWidth(d.ImageURL, width)))
	}
	return out
}
