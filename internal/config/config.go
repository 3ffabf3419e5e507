// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for proxima.
package config

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete proxima configuration.
type Config struct {
	Version string `toml:"version"`

	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
	UI     UIConfig     `toml:"ui"`
}

// ClientConfig is how the client reaches the backend.
type ClientConfig struct {
	ServerURL          string  `toml:"server_url"`
	Pseudonym          string  `toml:"pseudonym"`
	Password           string  `toml:"password"`
	Stream             bool    `toml:"stream"`
	RequestTimeoutSecs int     `toml:"request_timeout_secs"`
	MaxRetries         int     `toml:"max_retries"`
	RateLimit          float64 `toml:"rate_limit"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr          string  `toml:"addr"`
	DBPath        string  `toml:"db_path"`
	JWTSecret     string  `toml:"jwt_secret"`
	TokenTTLHours int     `toml:"token_ttl_hours"`
	StreamDelayMs int     `toml:"stream_delay_ms"`
	RateLimit     float64 `toml:"rate_limit"`
	RateBurst     int     `toml:"rate_burst"`
}

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	// Glamour style for transcripts: "dark", "light", "notty" or "auto".
	Theme string `toml:"theme"`

	// Chroma style for tool payloads.
	CodeStyle string `toml:"code_style"`

	ShowTimestamps bool `toml:"show_timestamps"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dbPath := "proxima.db"
	if dir, err := ConfigDir(); err == nil {
		dbPath = filepath.Join(dir, "proxima.db")
	}
	return &Config{
		Version: "1",
		Client: ClientConfig{
			ServerURL:          "http://127.0.0.1:8787",
			Stream:             true,
			RequestTimeoutSecs: 60,
			MaxRetries:         3,
			RateLimit:          10,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8787",
			DBPath:        dbPath,
			TokenTTLHours: 24,
			StreamDelayMs: 30,
			RateLimit:     20,
			RateBurst:     50,
		},
		UI: UIConfig{
			Theme:     "auto",
			CodeStyle: "monokai",
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.Version == "" {
		cfg.Version = d.Version
	}
	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = d.Client.ServerURL
	}
	if cfg.Client.RequestTimeoutSecs == 0 {
		cfg.Client.RequestTimeoutSecs = d.Client.RequestTimeoutSecs
	}
	if cfg.Client.MaxRetries == 0 {
		cfg.Client.MaxRetries = d.Client.MaxRetries
	}
	if cfg.Client.RateLimit == 0 {
		cfg.Client.RateLimit = d.Client.RateLimit
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = d.Server.DBPath
	}
	if cfg.Server.TokenTTLHours == 0 {
		cfg.Server.TokenTTLHours = d.Server.TokenTTLHours
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = d.Server.RateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
	if cfg.UI.CodeStyle == "" {
		cfg.UI.CodeStyle = d.UI.CodeStyle
	}
}

// RequestTimeout returns the client request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeoutSecs) * time.Second
}

// TokenTTL returns the lifetime of issued session tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Server.TokenTTLHours) * time.Hour
}

// StreamDelay returns the pause between pushed stream events.
func (c *Config) StreamDelay() time.Duration {
	return time.Duration(c.Server.StreamDelayMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the proxima configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".proxima"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions narrows the file to 0600; it holds a password.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.proxima/config.toml, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		glog.Warningf("[config] could not ensure secure permissions on %s: %v", path, err)
	}

	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		glog.Warningf("[config] unknown key %q in %s", key.String(), path)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# proxima configuration file")
	fmt.Fprintln(&buf, "# Generated by proxima - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Client.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "client.server_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Client.ServerURL),
		})
	}
	if c.Client.RequestTimeoutSecs < 1 || c.Client.RequestTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "client.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Client.RequestTimeoutSecs),
		})
	}
	if c.Client.MaxRetries < 1 || c.Client.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "client.max_retries",
			Message: fmt.Sprintf("must be between 1 and 10, got %d", c.Client.MaxRetries),
		})
	}
	if c.Client.RateLimit <= 0 {
		errs = append(errs, ValidationError{Field: "client.rate_limit", Message: "must be positive"})
	}

	if _, _, err := splitAddr(c.Server.Addr); err != nil {
		errs = append(errs, ValidationError{Field: "server.addr", Message: err.Error()})
	}
	if c.Server.TokenTTLHours < 1 {
		errs = append(errs, ValidationError{Field: "server.token_ttl_hours", Message: "must be at least 1"})
	}
	if c.Server.StreamDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "server.stream_delay_ms", Message: "must not be negative"})
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "rate and burst must be positive"})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return "", 0, fmt.Errorf("invalid address '%s', must be host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in '%s'", addr)
	}
	return host, port, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PROXIMA_SERVER_URL: overrides client.server_url
//   - PROXIMA_PSEUDONYM: overrides client.pseudonym
//   - PROXIMA_PASSWORD: overrides client.password
//   - PROXIMA_DB_PATH: overrides server.db_path
//   - PROXIMA_JWT_SECRET: overrides server.jwt_secret
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PROXIMA_SERVER_URL"); v != "" {
		c.Client.ServerURL = v
	}
	if v := os.Getenv("PROXIMA_PSEUDONYM"); v != "" {
		c.Client.Pseudonym = v
	}
	if v := os.Getenv("PROXIMA_PASSWORD"); v != "" {
		c.Client.Password = v
	}
	if v := os.Getenv("PROXIMA_DB_PATH"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("PROXIMA_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
}

// Secret returns the token signing key. Without a configured secret a random
// one is generated, so tokens do not survive a server restart.
func (c *Config) Secret() []byte {
	if c.Server.JWTSecret != "" {
		return []byte(c.Server.JWTSecret)
	}
	b := make([]byte, 32)
	rand.Read(b)
	glog.Warningf("[config] server.jwt_secret not set, using an ephemeral secret")
	return []byte(hex.EncodeToString(b))
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// String renders the configuration as TOML with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.Client.Password != "" {
		masked.Client.Password = "********"
	}
	if masked.Server.JWTSecret != "" {
		masked.Server.JWTSecret = "********"
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// =============================================================================
// WATCHING
// =============================================================================

// Watch calls fn with the reloaded configuration whenever the file at path
// is written, until ctx is done. Invalid edits are logged and skipped.
// The parent directory is watched so editors that replace the file by
// rename are seen too.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		clean := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != clean || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				cfg, err := LoadFromPath(path)
				if err != nil {
					glog.Warningf("[config] ignoring change to %s: %v", path, err)
					continue
				}
				glog.V(2).Infof("[config] reloaded %s", path)
				fn(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				glog.Warningf("[config] watcher error: %v", err)
			}
		}
	}()
	return nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			glog.Warningf("[config] %v (using defaults)", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
