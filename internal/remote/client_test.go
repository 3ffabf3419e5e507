// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authedClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(server.URL + "/").WithToken("tok").WithRateLimit(1000, 1000)
}

func TestClient_Auth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathAuth, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		var p AuthPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		if p.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{SessionToken: "tok-" + p.Pseudonym, DeviceID: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Auth(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Empty(t, client.Token())

	resp, err := client.Auth(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", resp.SessionToken)
	assert.Equal(t, "tok-alice", client.Token())
	assert.Equal(t, 2, client.DeviceID())
}

func TestClient_DoRequiresToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.Do(context.Background(), database.GetAllRequest())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.Respond(context.Background(), AIRequest{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_DoAdd(t *testing.T) {
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathDB, r.URL.Path)
		var p DBPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "tok", p.AuthKey)
		assert.Equal(t, database.RequestAdd, p.Request.Kind)
		assert.Equal(t, "work", p.Request.Item.Label())
		writeJSON(w, http.StatusOK, DBResponse{Reply: database.AddedItem(database.TagID(4))})
	})

	reply, err := client.Do(context.Background(), database.AddRequest(database.NewTag("work", "", nil)))
	require.NoError(t, err)
	assert.Equal(t, database.ReplyAddedItem, reply.Kind)
	assert.Equal(t, database.TagID(4), reply.ID)
}

func TestClient_DoErrorReply(t *testing.T) {
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, DBResponse{Reply: database.ErrorReply("no such item")})
	})

	reply, err := client.Do(context.Background(), database.GetRequest(database.ChatID(9)))
	var remoteErr *database.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, database.ReplyError, reply.Kind)
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, DBResponse{Reply: database.ReturnedItem(&database.Tag{Pos: 1, Name: "t"})})
	})

	reply, err := client.Do(context.Background(), database.GetRequest(database.TagID(1)))
	require.NoError(t, err)
	assert.Equal(t, "t", reply.Item.Label())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryAdd(t *testing.T) {
	var calls atomic.Int32
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "boom"})
	})

	_, err := client.Do(context.Background(), database.AddRequest(&database.Tag{}))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "boom", se.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_UnauthorizedSession(t *testing.T) {
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "expired"})
	})
	_, err := client.Do(context.Background(), database.GetAllRequest())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_Respond(t *testing.T) {
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathAI, r.URL.Path)
		var p AIPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, 3, p.Request.Chat)
		part := model.NewPart(model.PositionAI, model.Text("echo: "+p.Request.Context.Last().Text()))
		writeJSON(w, http.StatusOK, AIResponse{Reply: AIReply{Kind: AIBlock, Part: &part}})
	})

	reply, err := client.Respond(context.Background(), AIRequest{
		Chat:    3,
		Context: model.NewContext(model.NewUserPart("hi")),
	})
	require.NoError(t, err)
	turns := reply.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "echo: hi", turns[0].Text())
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	client := authedClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, database.GetAllRequest())
	assert.Error(t, err)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, retryBaseDelay, calculateBackoff(1))
	assert.Equal(t, 2*retryBaseDelay, calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, calculateBackoff(40))
}

func TestAIReply_Turns(t *testing.T) {
	ctx := model.NewContext(model.NewPart(model.PositionTool, model.ToolResult("calc", "4")), model.NewPart(model.PositionAI, model.Text("4")))
	assert.Len(t, AIReply{Kind: AIMultiTurnBlock, Context: &ctx}.Turns(), 2)
	assert.Empty(t, AIReply{Kind: AIStreaming}.Turns())
}
