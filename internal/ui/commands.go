// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// SettingPrefix starts a setting command on the Configs tab. Anything else
// typed there names a new configuration.
const SettingPrefix = "set "

// ErrUnknownSetting is returned for a setting command that cannot be parsed.
var ErrUnknownSetting = errors.New("unknown setting")

// settingNames maps the words accepted after SettingPrefix to setting kinds.
var settingNames = map[string]database.SettingKind{
	"temperature":    database.SettingTemperature,
	"temp":           database.SettingTemperature,
	"system":         database.SettingSystemPrompt,
	"preprompt":      database.SettingPrePrompt,
	"preprompt-last": database.SettingPrePromptBeforeLatest,
	"context":        database.SettingMaxContextLength,
	"tokens":         database.SettingResponseTokenLimit,
	"tool":           database.SettingTool,
	"access-mode":    database.SettingAccessMode,
}

// parseSetting parses "KIND VALUE", e.g. "temperature 70", "tool search" or
// "system You are terse.".
func parseSetting(s string) (database.ChatSetting, error) {
	name, value, _ := strings.Cut(strings.TrimSpace(s), " ")
	kind, ok := settingNames[strings.ToLower(name)]
	if !ok {
		return database.ChatSetting{}, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return database.ChatSetting{}, fmt.Errorf("setting %s needs a value", kind)
	}

	switch kind {
	case database.SettingSystemPrompt, database.SettingPrePrompt, database.SettingPrePromptBeforeLatest:
		return database.PromptSetting(kind, value), nil
	case database.SettingTool:
		return database.ToolSetting(value), nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return database.ChatSetting{}, fmt.Errorf("setting %s needs a non-negative number, got %q", kind, value)
	}
	return database.ChatSetting{Kind: kind, Value: n}, nil
}
