// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMarkdownCacheSize bounds the number of rendered messages kept.
const DefaultMarkdownCacheSize = 256

// maxRenderers bounds the per-width glamour renderers kept across resizes.
const maxRenderers = 8

type renderKey struct {
	id    string
	width int
}

// MarkdownRenderer renders message content with glamour. Message content
// never changes once logged, so output is cached by message id and width.
type MarkdownRenderer struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	cache     *lru.Cache[renderKey, string]
}

// NewMarkdownRenderer creates a renderer using a glamour standard style
// ("dark", "light", "notty", "ascii").
func NewMarkdownRenderer(style string, cacheSize int) (*MarkdownRenderer, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultMarkdownCacheSize
	}
	cache, err := lru.New[renderKey, string](cacheSize)
	if err != nil {
		return nil, err
	}
	if style == "" {
		style = "dark"
	}
	return &MarkdownRenderer{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     cache,
	}, nil
}

// Render returns content rendered for width columns. An empty id bypasses
// the cache. When glamour fails the raw content is returned.
func (r *MarkdownRenderer) Render(id, content string, width int) string {
	if width < 20 {
		width = 20
	}
	key := renderKey{id: id, width: width}
	if id != "" {
		if out, ok := r.cache.Get(key); ok {
			return out
		}
	}

	out := content
	if tr, err := r.renderer(width); err == nil {
		if rendered, err := tr.Render(content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}

	if id != "" {
		r.cache.Add(key, out)
	}
	return out
}

// Len returns the number of cached renders.
func (r *MarkdownRenderer) Len() int {
	return r.cache.Len()
}

// Purge drops every cached render, e.g. after a theme change.
func (r *MarkdownRenderer) Purge() {
	r.cache.Purge()
}

func (r *MarkdownRenderer) renderer(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.renderers[width]; ok {
		return tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	if len(r.renderers) >= maxRenderers {
		r.renderers = make(map[int]*glamour.TermRenderer)
	}
	r.renderers[width] = tr
	return tr, nil
}
