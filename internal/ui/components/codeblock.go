// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock renders one code snippet attached to a message.
type CodeBlock struct {
	Block    model.CodeBlock
	MaxWidth int
	theme    *styles.Theme
}

// NewCodeBlock creates a new code block.
func NewCodeBlock(theme *styles.Theme, block model.CodeBlock) CodeBlock {
	return CodeBlock{Block: block, MaxWidth: 80, theme: theme}
}

// Render renders the code block with line numbers and a language badge.
func (c CodeBlock) Render() string {
	code := strings.TrimRight(c.Block.Code, "\n")
	lines := strings.Split(highlightCode(code, c.Block.Language, c.theme.IsDark), "\n")

	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = c.theme.CodeLineNum.Render(strconv.Itoa(i+1)) + line
	}

	var header string
	if c.Block.Language != "" {
		header = c.theme.CodeLangBadge.Render(c.Block.Language) + "\n"
	}

	maxWidth := c.MaxWidth - 4
	if maxWidth < 20 {
		maxWidth = 20
	}
	block := c.theme.CodeBlock.MaxWidth(maxWidth).Render(header + strings.Join(rendered, "\n"))

	if c.Block.Explanation != "" {
		block += "\n" + c.theme.Muted.Render(c.Block.Explanation)
	}
	return block
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// highlightCode returns code with ANSI highlighting. Unknown languages are
// guessed from the code; on any failure the code comes back unchanged.
func highlightCode(code, language string, dark bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "github"
	if dark {
		styleName = "monokai"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
