// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}
	if got := theme.ListSelected.Render("chat"); !strings.Contains(got, "chat") {
		t.Errorf("ListSelected dropped its text: %q", got)
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme()
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
	for _, tc := range tests {
		theme.SetSize(tc.width, 24)
		if got := theme.GetLayoutMode(); got != tc.want {
			t.Errorf("width %d: GetLayoutMode() = %v, want %v", tc.width, got, tc.want)
		}
	}
}

func TestRenderHelpersCarryMarkers(t *testing.T) {
	if got := RenderError("boom"); !strings.Contains(got, StatusIndicators.Error) {
		t.Errorf("RenderError missing marker: %q", got)
	}
	if got := RenderSuccess("saved"); !strings.Contains(got, StatusIndicators.Success) {
		t.Errorf("RenderSuccess missing marker: %q", got)
	}
	if got := RenderPending(""); !strings.Contains(got, StatusIndicators.Pending) {
		t.Errorf("RenderPending missing marker: %q", got)
	}
}
