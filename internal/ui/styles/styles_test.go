// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitNames(t *testing.T) {
	dark := NewTheme("dark")
	assert.Equal(t, ThemeDark, dark.Name)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme(" LIGHT ")
	assert.Equal(t, ThemeLight, light.Name)
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestNewTheme_UnknownFallsBackToAuto(t *testing.T) {
	th := NewTheme("solarized")
	assert.Equal(t, ThemeAuto, th.Name)
	assert.Contains(t, []string{"dark", "light"}, th.GlamourStyle())
}

func TestLayoutMode(t *testing.T) {
	th := NewTheme("dark")
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tt := range tests {
		th.SetSize(tt.width, 30)
		assert.Equal(t, tt.want, th.GetLayoutMode(), "width %d", tt.width)
	}
	assert.Equal(t, "narrow", LayoutNarrow.String())
	assert.Equal(t, "wide", LayoutWide.String())
}

func TestRenderHelpersKeepIndicators(t *testing.T) {
	assert.True(t, strings.Contains(RenderSuccess("done"), "[OK] done"))
	assert.True(t, strings.Contains(RenderError("failed"), "[X] failed"))
	assert.True(t, strings.Contains(RenderWarning("slow"), "[!] slow"))
	assert.True(t, strings.Contains(RenderInfo("note"), "[i] note"))
	assert.Contains(t, RenderLink("page 3"), "page 3")
}
