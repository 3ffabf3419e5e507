// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for proxima.
//
// Configuration is read from ~/.proxima/config.toml, filled with defaults
// and then overridden from PROXIMA_* environment variables.
//
// # Key Types
//
//   - Config: client, development server and UI settings
//   - ValidateErrors: every problem found by Validate
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	err = config.Watch(ctx, path, func(c *config.Config) { config.SetGlobal(c) })
package config
