// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ragchat TUI.

All colors use Lip Gloss AdaptiveColor, so one palette serves dark and light
terminals. The theme decides which side of each pair is used.

# Color System (colors.go)

  - Purple - assistant messages and the document panel
  - Cyan - commands and user highlights
  - Emerald - connected state, high relevance scores
  - Amber - reconnecting, pending uploads, system notices
  - Rose - errors and the disconnected state

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme) // "dark", "light" or "auto"
	theme.SetSize(width, height)
	switch theme.GetLayoutMode() {
	case styles.LayoutNarrow:
		// hide the document panel
	}

GlamourStyle returns the matching glamour standard style name so rendered
markdown follows the same background.
*/
package styles
