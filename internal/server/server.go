// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the development backend listens.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize bounds every JSON body.
	MaxRequestBodySize = 4 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	// Secret signs session tokens. Required.
	Secret []byte

	// TokenTTL defaults to DefaultTokenTTL.
	TokenTTL time.Duration

	// Responder defaults to EchoResponder.
	Responder Responder

	// StreamDelay is the pause between pushed stream events.
	StreamDelay time.Duration

	// RateLimiter defaults to DefaultRateLimiter.
	RateLimiter *RateLimiter
}

// Server is the development backend: authoritative storage, a stand-in AI
// endpoint and the push channel.
type Server struct {
	store       *storage.Store
	tokens      *TokenIssuer
	hub         *Hub
	responder   Responder
	limiter     *RateLimiter
	streamDelay atomic.Int64

	router *http.ServeMux
	server *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server over store.
func NewServer(store *storage.Store, opts Options) *Server {
	if opts.Responder == nil {
		opts.Responder = EchoResponder{}
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = DefaultRateLimiter()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:       store,
		tokens:      NewTokenIssuer(opts.Secret, opts.TokenTTL),
		hub:         NewHub(),
		responder:   opts.Responder,
		limiter:     opts.RateLimiter,
		router:      http.NewServeMux(),
		ctx:         ctx,
		cancel:      cancel,
	}
	s.SetStreamDelay(opts.StreamDelay)
	s.setupRoutes()
	return s
}

// SetStreamDelay changes the pause between pushed stream events. Streams
// already being published keep their delay.
func (s *Server) SetStreamDelay(d time.Duration) {
	s.streamDelay.Store(int64(d))
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST "+remote.PathAuth, s.handleAuth)
	s.router.HandleFunc("POST "+remote.PathDB, s.handleDB)
	s.router.HandleFunc("POST "+remote.PathAI, s.handleAI)
	s.router.HandleFunc("GET "+remote.PathEvents, s.handleEvents)
	s.router.HandleFunc("GET "+remote.PathHealth, s.handleHealth)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(s.limiter),
	)(s.router)
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleAuth logs a user in, registering the pseudonym on first use, and
// assigns the caller a new device.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req remote.AuthPayload
	if !s.decode(w, r, &req) {
		return
	}
	req.Pseudonym = strings.TrimSpace(req.Pseudonym)
	if req.Pseudonym == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "pseudonym and password are required")
		return
	}

	ctx := r.Context()
	err := s.store.CreateUser(ctx, req.Pseudonym, req.Password)
	switch {
	case err == nil:
		glog.Infof("[server] registered %s", req.Pseudonym)
	case errors.Is(err, storage.ErrUserExists):
		if err := s.store.Authenticate(ctx, req.Pseudonym, req.Password); err != nil {
			if errors.Is(err, storage.ErrBadCredentials) {
				s.writeError(w, http.StatusUnauthorized, "bad credentials")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	device, err := s.store.RegisterDevice(ctx, req.Pseudonym, r.UserAgent())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := s.tokens.Issue(req.Pseudonym, device)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, remote.AuthResponse{SessionToken: token, DeviceID: device})
}

// handleDB runs one database request against the caller's ledger.
func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	var req remote.DBPayload
	if !s.decode(w, r, &req) {
		return
	}
	claims, ok := s.verify(w, req.AuthKey)
	if !ok {
		return
	}
	reply := s.store.Handle(r.Context(), claims.Pseudonym(), req.Request)
	glog.V(2).Infof("[server] %s %s -> %s", claims.Pseudonym(), req.Request, reply.Kind)
	s.writeJSON(w, http.StatusOK, remote.DBResponse{Reply: reply})
}

// handleAI answers a chat either inline or, when streaming, through the
// push channel.
func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	var req remote.AIPayload
	if !s.decode(w, r, &req) {
		return
	}
	claims, ok := s.verify(w, req.AuthKey)
	if !ok {
		return
	}

	parts := s.responder.Respond(r.Context(), req.Request)
	var reply remote.AIReply
	switch {
	case req.Request.Stream:
		events := streamEvents(req.Request.Chat, parts)
		go s.publishStream(s.ctx, claims.Pseudonym(), events)
		reply = remote.AIReply{Kind: remote.AIStreaming}
	case len(parts) == 1:
		reply = remote.AIReply{Kind: remote.AIBlock, Part: &parts[0]}
	default:
		c := model.NewContext(parts...)
		reply = remote.AIReply{Kind: remote.AIMultiTurnBlock, Context: &c}
	}
	s.writeJSON(w, http.StatusOK, remote.AIResponse{Reply: reply})
}

// handleEvents upgrades to the push websocket. The token travels in the
// query string because browsers cannot set headers on websocket requests.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.verify(w, r.URL.Query().Get("token"))
	if !ok {
		return
	}
	s.hub.Serve(w, r, claims.Pseudonym())
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	glog.Infof("[server] listening addr=%s version=%s", addr, Version)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops pending streams and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	glog.Infof("[server] shutting down")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) verify(w http.ResponseWriter, token string) (*Claims, bool) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return claims, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, remote.ErrorResponse{Error: message})
}
