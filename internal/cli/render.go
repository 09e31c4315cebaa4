// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// printer writes session output for the line-oriented commands. On a
// terminal it draws the same message bubbles as the TUI; elsewhere it
// writes plain text.
type printer struct {
	w     io.Writer
	view  *components.MessageView
	width int
}

func newPrinter(w io.Writer, themeName string, showMetrics bool) *printer {
	p := &printer{w: w, width: terminalWidth(w)}
	if !isTerminal(w) {
		return p
	}
	theme := styles.NewTheme(themeName)
	md, err := components.NewMarkdownRenderer(theme.GlamourStyle(), components.DefaultMarkdownCacheSize)
	if err != nil {
		return p
	}
	p.view = components.NewMessageView(theme, md)
	p.view.ShowMetrics = showMetrics
	return p
}

// Message writes one message.
func (p *printer) Message(msg model.Message) {
	if p.view != nil {
		fmt.Fprintln(p.w, p.view.Render(msg, p.width))
		return
	}
	fmt.Fprintln(p.w, plainMessage(msg))
}

// Step writes one agent step line.
func (p *printer) Step(step model.AgentStep) {
	fmt.Fprintln(p.w, stepLine(step))
}

// Documents writes the retrieved page list.
func (p *printer) Documents(docs []model.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(p.w, "No documents retrieved yet.")
		return
	}
	fmt.Fprintf(p.w, "Documents (%d)\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(p.w, "  Page %d  %s  %s\n", d.PageNumber, d.ScoreLabel(), d.PageLink())
	}
}

// Notice writes a one-line status message.
func (p *printer) Notice(s string) {
	fmt.Fprintln(p.w, s)
}

// plainMessage renders msg without styling.
func plainMessage(msg model.Message) string {
	out := fmt.Sprintf("[%s] %s", components.RoleLabel(msg), msg.Content)
	if md := plainMetadata(msg.Metadata); md != "" {
		out += "\n" + md
	}
	return out
}

// plainMetadata renders the citations and metrics of md.
func plainMetadata(md *model.Metadata) string {
	if md == nil {
		return ""
	}
	var lines []string
	if len(md.Citations) > 0 {
		lines = append(lines, "Sources:")
		for _, c := range md.Citations {
			lines = append(lines, fmt.Sprintf("  [p.%d] %s %s", c.PageNumber, model.FormatPercent(c.Confidence), util.SingleLine(c.Text)))
			if c.PDFURL != "" {
				lines = append(lines, "        "+model.Document{PageNumber: c.PageNumber, PDFURL: c.PDFURL}.PageLink())
			}
		}
	}
	if md.Metrics != nil {
		lines = append(lines, md.Metrics.Summary())
	}
	return strings.Join(lines, "\n")
}

func stepLine(s model.AgentStep) string {
	line := fmt.Sprintf("  %s %s: %s", s.Icon(), s.AgentName, s.Action)
	if s.Duration > 0 {
		line += " (" + model.FormatMillis(s.Duration) + ")"
	}
	return line
}

// lastAnswer returns the newest assistant answer or error after the last
// user message.
func lastAnswer(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		switch {
		case m.Role == model.RoleUser:
			return model.Message{}, false
		case m.Role == model.RoleAssistant, m.Status == model.StatusError:
			return m, true
		}
	}
	return model.Message{}, false
}
