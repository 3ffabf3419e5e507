// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

// ErrNoToken is returned when the token source has nothing to offer yet.
var ErrNoToken = errors.New("push: no session token")

// Settings tunes the connection.
type Settings struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReconnectTimeout time.Duration
	MaxReconnect     time.Duration
}

// DefaultSettings returns the settings used by the client.
func DefaultSettings() Settings {
	return Settings{
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectTimeout: time.Second,
		MaxReconnect:     30 * time.Second,
	}
}

// Handler receives every event read from the socket. Delivery is
// at-least-once across reconnects; consumers dedupe by token.
type Handler func(stream.Event)

// Client keeps a push connection to the backend open.
type Client struct {
	baseURL  string
	token    func() string
	dialer   *websocket.Dialer
	settings Settings
}

// NewClient creates a client for the backend at baseURL. token is consulted
// on every (re)connect so a refreshed session is picked up.
func NewClient(baseURL string, token func() string, settings Settings) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: settings.WriteTimeout},
		settings: settings,
	}
}

// URL returns the websocket address for the current token.
func (c *Client) URL() (string, error) {
	u, err := url.Parse(c.baseURL + remote.PathEvents)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	token := c.token()
	if token == "" {
		return "", ErrNoToken
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens one connection.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := c.URL()
	if err != nil {
		return nil, err
	}
	ws, resp, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push: dial failed: %w", err)
	}
	return ws, nil
}

// Run delivers events to handler until ctx is cancelled, reconnecting with
// exponential backoff whenever the socket drops.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	backoff := c.settings.ReconnectTimeout
	for {
		ws, err := c.Dial(ctx)
		if err == nil {
			glog.V(2).Infof("[push] connected")
			backoff = c.settings.ReconnectTimeout
			err = c.session(ctx, ws, handler)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		glog.Infof("[push] connection lost: %v (retry in %v)", err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.settings.MaxReconnect {
			backoff = c.settings.MaxReconnect
		}
	}
}

// session pumps one connection until it fails or ctx ends.
func (c *Client) session(ctx context.Context, ws *websocket.Conn, handler Handler) error {
	handleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ws.Close()

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(c.settings.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-handleCtx.Done():
				// Unblocks the reader below.
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.settings.WriteTimeout))
				ws.Close()
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.settings.WriteTimeout)); err != nil {
					glog.V(2).Infof("[push] ping failed: %v", err)
					cancel()
				}
			}
		}
	}()

	for {
		ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		var ev stream.Event
		if err := ws.ReadJSON(&ev); err != nil {
			return err
		}
		glog.V(2).Infof("[push] <- %s", ev)
		handler(ev)
	}
}
