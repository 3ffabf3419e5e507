// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import "errors"

var (
	// ErrUnknownCategory is returned when a category name or value is not recognised.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrMalformedID is returned when an id string cannot be parsed.
	ErrMalformedID = errors.New("malformed item id")

	// ErrUnknownKind is returned when a tagged envelope names an unknown variant.
	ErrUnknownKind = errors.New("unknown variant")

	// ErrNotFound is returned when an id does not address an entity.
	ErrNotFound = errors.New("item not found")

	// ErrDensity is returned by Ledger.Check when a slot's own id disagrees
	// with its index.
	ErrDensity = errors.New("ledger is not dense")
)
