// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the proxima TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection; the Theme records the termenv color profile it was built for.

# Colors

  - Purple: AI turns and the active tab
  - Cyan: user turns, focus and key hints
  - Emerald: confirmed items and tool output
  - Amber: pending items and streams in flight
  - Rose: errors and removed items

Every status color is paired with an ASCII marker from StatusIndicators.

# Usage

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	line := theme.ListSelected.Render(label)
*/
package styles
