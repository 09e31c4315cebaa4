// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the rendering pieces of the ragchat TUI.

Components are plain renderers: they take model values and a width and
return strings. State lives in the session store; the chat model decides
when to redraw.

# Key Types

  - MarkdownRenderer (markdown.go) - glamour rendering with an LRU cache
    keyed by message id and width
  - MessageView (message.go) - message bubbles with citations and metrics
  - CodeBlock (codeblock.go) - chroma-highlighted code from message metadata
  - DocumentPanel (documents.go) - retrieved pages with score and link
  - AgentProgress (progress.go) - pipeline steps for the current query
  - StatusBar (statusbar.go) - connection, model, strategy, pending work
  - Spinner (spinner.go) - thinking indicator

# Usage

	theme := styles.NewTheme("auto")
	md, _ := components.NewMarkdownRenderer(theme.GlamourStyle(), 256)
	view := components.NewMessageView(theme, md)
	for _, msg := range snap.Messages {
		b.WriteString(view.Render(msg, width))
	}
*/
package components
