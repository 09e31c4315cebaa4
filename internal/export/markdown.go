// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(tr *model.Transcript) ([]byte, error) {
	if tr == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if len(tr.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(tr.Title))
		fmt.Fprintf(&sb, "model: %s\n", tr.Model.Label())
		fmt.Fprintf(&sb, "strategy: %s\n", tr.RAG.Label())
		fmt.Fprintf(&sb, "date: %s\n", tr.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(tr.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: ragchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(tr.Title))

	for i, msg := range tr.Messages {
		label := roleLabel(msg)
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Format("15:04:05"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if e.options.IncludeMetadata && msg.Metadata != nil {
			if extra := formatMetadata(msg.Metadata); extra != "" {
				sb.WriteString(extra)
				sb.WriteString("\n")
			}
		}

		if i < len(tr.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(msg model.Message) string {
	label := "[" + msg.Role.DisplayName() + "]"
	if msg.Role == model.RoleAgent && msg.AgentName != "" {
		label = fmt.Sprintf("[%s: %s]", msg.AgentName, msg.AgentAction)
	}
	if msg.Status == model.StatusError {
		label += " (error)"
	}
	return label
}

// formatMetadata renders citations and metrics. Code blocks are already
// part of the content.
func formatMetadata(md *model.Metadata) string {
	var sb strings.Builder
	if len(md.Citations) > 0 {
		sb.WriteString("**Sources**\n\n")
		for _, c := range md.Citations {
			fmt.Fprintf(&sb, "- [page %d](%s#page=%d) (%s): %s\n",
				c.PageNumber, c.PDFURL, c.PageNumber, model.FormatPercent(c.Confidence),
				strings.TrimSpace(c.Text))
		}
		sb.WriteString("\n")
	}
	var stats []string
	if md.Metrics != nil {
		stats = append(stats, md.Metrics.Summary())
	}
	if md.Confidence != nil {
		stats = append(stats, "confidence "+model.FormatPercent(*md.Confidence))
	}
	if len(stats) > 0 {
		fmt.Fprintf(&sb, "<sub>%s</sub>\n", strings.Join(stats, " | "))
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	).Replace(s)
}

// escapeYAML quotes values that YAML would otherwise misread.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.NewReplacer(
			"\\", "\\\\",
			"\"", "\\\"",
			"\n", "\\n",
			"\r", "\\r",
		).Replace(s)
		return "\"" + s + "\""
	}
	return s
}
