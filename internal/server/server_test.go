// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/storage"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "proxima.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewServer(store, Options{
		Secret:      []byte("test-secret"),
		RateLimiter: NewRateLimiter(1000, 1000),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, ts
}

func login(t *testing.T, ts *httptest.Server) *remote.Client {
	t.Helper()
	c := remote.NewClient(ts.URL)
	_, err := c.Auth(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	return c
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestServer_AuthRegistersThenLogsIn(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	first, err := remote.NewClient(ts.URL).Auth(ctx, "alice", "hunter2")
	require.NoError(t, err)
	second, err := remote.NewClient(ts.URL).Auth(ctx, "alice", "hunter2")
	require.NoError(t, err)

	assert.NotEmpty(t, first.SessionToken)
	assert.Equal(t, 0, first.DeviceID)
	assert.Equal(t, 1, second.DeviceID)
}

func TestServer_AuthWrongPassword(t *testing.T) {
	_, ts := newTestServer(t)
	login(t, ts)

	_, err := remote.NewClient(ts.URL).Auth(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, remote.ErrAuthFailed)
}

func TestServer_AuthRejectsEmptyCredentials(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+remote.PathAuth, "application/json", strings.NewReader(`{"pseudonym":" "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DBRequiresToken(t *testing.T) {
	_, ts := newTestServer(t)
	c := remote.NewClient(ts.URL).WithToken("garbage")

	_, err := c.Do(context.Background(), database.GetAllRequest())
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
}

// =============================================================================
// DATABASE TESTS
// =============================================================================

func TestServer_DBRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	c := login(t, ts)
	ctx := context.Background()

	reply, err := c.Do(ctx, database.AddRequest(database.NewTag("work", "", nil)))
	require.NoError(t, err)
	assert.Equal(t, database.TagID(0), reply.ID)

	reply, err = c.Do(ctx, database.GetAllRequest())
	require.NoError(t, err)
	require.NotNil(t, reply.All)
	assert.Equal(t, "work", reply.All.Tag(0).Name)
	assert.Equal(t, 1, reply.All.Len(database.CategoryDevice))

	_, err = c.Do(ctx, database.GetRequest(database.TagID(3)))
	var re *database.RemoteError
	assert.ErrorAs(t, err, &re)
}

// =============================================================================
// AI TESTS
// =============================================================================

func TestServer_AIBlock(t *testing.T) {
	_, ts := newTestServer(t)
	c := login(t, ts)

	reply, err := c.Respond(context.Background(), remote.AIRequest{
		Context: model.NewContext(model.NewUserPart("hello")),
	})
	require.NoError(t, err)
	require.Equal(t, remote.AIBlock, reply.Kind)
	assert.Equal(t, "Echo: hello", reply.Part.Text())
}

func TestServer_AIMultiTurnBlock(t *testing.T) {
	_, ts := newTestServer(t)
	c := login(t, ts)

	reply, err := c.Respond(context.Background(), remote.AIRequest{
		Context: model.NewContext(model.NewUserPart("/tool calc 1+1")),
	})
	require.NoError(t, err)
	require.Equal(t, remote.AIMultiTurnBlock, reply.Kind)
	turns := reply.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, model.DataToolCall, turns[0].Data[0].Kind)
	assert.Equal(t, model.PositionTool, turns[1].Position)
}

func TestServer_AIStreamingPushesEvents(t *testing.T) {
	srv, ts := newTestServer(t)
	c := login(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + remote.PathEvents + "?token=" + c.Token()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the hub to register the socket before asking for a reply.
	require.Eventually(t, func() bool {
		return srv.Hub().Connections("alice") == 1
	}, time.Second, 10*time.Millisecond)

	reply, err := c.Respond(context.Background(), remote.AIRequest{
		Chat:    2,
		Context: model.NewContext(model.NewUserPart("a b")),
		Stream:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, remote.AIStreaming, reply.Kind)

	var got bytes.Buffer
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 3; i++ {
		var ev stream.Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, 2, ev.Chat)
		if i == 0 {
			assert.Equal(t, stream.KindStart, ev.Kind)
			assert.Equal(t, model.PositionAI, ev.Position)
		} else {
			assert.Equal(t, stream.KindContinue, ev.Kind)
		}
		got.WriteString(ev.Data.Text)
	}
	assert.Equal(t, "Echo: a b", got.String())
}

func TestServer_EventsRequireToken(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + remote.PathEvents
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + remote.PathHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// STREAM SPLITTING TESTS
// =============================================================================

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"Echo: a b", []string{"Echo:", " a", " b"}},
		{" lead", []string{" lead"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, splitWords(tc.in), "splitWords(%q)", tc.in)
	}
}

func TestStreamEvents_OneStartPerTurn(t *testing.T) {
	parts := []model.Part{
		model.NewPart(model.PositionAI, model.ToolCall("calc", "{}")),
		model.NewPart(model.PositionAI, model.Text("x y")),
	}
	events := streamEvents(7, parts)
	require.Len(t, events, 3)
	assert.Equal(t, stream.KindStart, events[0].Kind)
	assert.Equal(t, stream.KindStart, events[1].Kind)
	assert.Equal(t, stream.KindContinue, events[2].Kind)
	assert.Less(t, events[0].Token, events[2].Token)
}
