// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/peterh/liner"

	"github.com/jeranaias/proxima-tui/internal/config"
	"github.com/jeranaias/proxima-tui/internal/push"
	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/session"
	"github.com/jeranaias/proxima-tui/internal/state"
)

// ErrNoCredentials is returned when a pseudonym or password is missing and
// there is no terminal to ask for it.
var ErrNoCredentials = errors.New("pseudonym and password are required")

// conn is an authenticated, loaded client.
type conn struct {
	cfg    *config.Config
	client *remote.Client
	store  *state.Store
	sess   *session.Session
}

// connect authenticates against the configured backend and loads the
// ledger. The store lives until ctx is done.
func connect(ctx context.Context, cfg *config.Config) (*conn, error) {
	if err := askCredentials(cfg); err != nil {
		return nil, err
	}

	burst := int(cfg.Client.RateLimit)
	if burst < 1 {
		burst = 1
	}
	client := remote.NewClient(cfg.Client.ServerURL).
		WithTimeout(cfg.RequestTimeout()).
		WithMaxRetries(cfg.Client.MaxRetries).
		WithRateLimit(cfg.Client.RateLimit, burst)

	auth, err := client.Auth(ctx, cfg.Client.Pseudonym, cfg.Client.Password)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(ctx, state.New(cfg.Client.Pseudonym), state.Options{})
	sess := session.New(store, client, auth.DeviceID)
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}
	glog.V(2).Infof("[cli] connected to %s as device %d", cfg.Client.ServerURL, auth.DeviceID)
	return &conn{cfg: cfg, client: client, store: store, sess: sess}, nil
}

// listen runs the push channel in the background until ctx is done.
func (c *conn) listen(ctx context.Context) {
	pc := push.NewClient(c.cfg.Client.ServerURL, c.client.Token, push.DefaultSettings())
	go func() {
		if err := pc.Run(ctx, c.sess.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("[cli] push channel stopped: %v", err)
		}
	}()
}

// askCredentials fills a missing pseudonym or password from the terminal.
func askCredentials(cfg *config.Config) error {
	if cfg.Client.Pseudonym != "" && cfg.Client.Password != "" {
		return nil
	}
	if !DetectTerminal().Interactive {
		return ErrNoCredentials
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if cfg.Client.Pseudonym == "" {
		name, err := line.Prompt("Pseudonym: ")
		if err != nil {
			return fmt.Errorf("failed to read pseudonym: %w", err)
		}
		cfg.Client.Pseudonym = strings.TrimSpace(name)
	}
	if cfg.Client.Password == "" {
		pw, err := line.PasswordPrompt("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Client.Password = pw
	}
	if cfg.Client.Pseudonym == "" || cfg.Client.Password == "" {
		return ErrNoCredentials
	}
	return nil
}
