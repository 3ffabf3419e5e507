// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/proxima-tui/internal/stream"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBufSize = 256
)

// Hub fans stream events out to every websocket a user has open.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[string]map[*client]struct{}
	mu       sync.Mutex
}

type client struct {
	conn *websocket.Conn
	send chan stream.Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Connections returns how many sockets pseudonym has open.
func (h *Hub) Connections(pseudonym string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[pseudonym])
}

// Publish queues ev for every socket of pseudonym. Slow sockets drop events.
func (h *Hub) Publish(pseudonym string, ev stream.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[pseudonym] {
		select {
		case c.send <- ev:
		default:
			glog.Warningf("[server] dropping %s for slow client of %s", ev, pseudonym)
		}
	}
}

// Serve upgrades the request and pumps events until the socket closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, pseudonym string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("[server] websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan stream.Event, sendBufSize)}

	h.mu.Lock()
	if h.clients[pseudonym] == nil {
		h.clients[pseudonym] = make(map[*client]struct{})
	}
	h.clients[pseudonym][c] = struct{}{}
	total := len(h.clients[pseudonym])
	h.mu.Unlock()
	glog.V(2).Infof("[server] push client connected user=%s total=%d", pseudonym, total)

	done := make(chan struct{})
	go h.writePump(c, done)
	h.readPump(c)
	close(done)

	h.mu.Lock()
	delete(h.clients[pseudonym], c)
	if len(h.clients[pseudonym]) == 0 {
		delete(h.clients, pseudonym)
	}
	h.mu.Unlock()
	conn.Close()
	glog.V(2).Infof("[server] push client disconnected user=%s", pseudonym)
}

// readPump only services control frames; clients never send data.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
