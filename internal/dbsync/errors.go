// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import "errors"

var (
	// ErrDanglingCursor is returned by Cursors.Validate.
	ErrDanglingCursor = errors.New("cursor refers to a missing entity")

	// ErrUnexpectedReply is returned when the remote store answers an Add
	// with something other than AddedItem.
	ErrUnexpectedReply = errors.New("unexpected reply")
)
