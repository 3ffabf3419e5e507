// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/model"
)

func TestRequest_AddCarriesItemEnvelope(t *testing.T) {
	tag := NewTag("work", "office", IntPtr(1))
	tag.Pos = 2

	b, err := json.Marshal(AddRequest(tag))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"kind":"add","item":{"category":"tag","value":{"pos":2,"name":"work","description":"office","parent":1}}}`,
		string(b))

	var got Request
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, RequestAdd, got.Kind)
	assert.Equal(t, tag, got.Item)
}

func TestRequest_DecodeChatWithSettings(t *testing.T) {
	chat := NewChat(0, model.NewContext(model.NewUserPart("hello")))
	chat.LatestUsedConfig = NewChatConfig("cfg", 0)
	chat.LatestUsedConfig.Upsert(-1, PromptSetting(SettingSystemPrompt, "be brief"))

	b, err := json.Marshal(UpdateRequest(chat))
	require.NoError(t, err)

	var got Request
	require.NoError(t, json.Unmarshal(b, &got))
	decoded, ok := got.Item.(*Chat)
	require.True(t, ok)
	assert.Equal(t, "hello", decoded.Context.Parts[0].Text())
	assert.True(t, decoded.AccessModes.Contains(0))
	assert.Equal(t, "be brief", decoded.LatestUsedConfig.Settings[0].Prompt.Text())
}

func TestRequest_Errors(t *testing.T) {
	var r Request
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"kind":"explode"}`), &r), ErrUnknownKind)
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"get"}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"add"}`), &r))

	_, err := json.Marshal(Request{Kind: RequestAdd})
	assert.Error(t, err)
}

func TestReply_Variants(t *testing.T) {
	l := NewLedger("bob")
	l.AppendRaw(NewTag("x", "", nil))

	for _, reply := range []Reply{
		AddedItem(ChatID(5)),
		ReturnedItem(&Folder{Pos: 1, Name: "docs"}),
		Ack(),
		AllItems(l),
		ErrorReply("boom"),
	} {
		b, err := json.Marshal(reply)
		require.NoError(t, err)

		var got Reply
		require.NoError(t, json.Unmarshal(b, &got), string(b))
		assert.Equal(t, reply.Kind, got.Kind)
	}

	var got Reply
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"reply_all","all":{"tags":[{"pos":0,"name":"x"}],"user":{"pseudonym":"bob"}}}`), &got))
	assert.Equal(t, "x", got.All.Tag(0).Name)
	assert.NoError(t, got.All.Check())
}

func TestReply_Err(t *testing.T) {
	assert.NoError(t, Ack().Err())

	var remote *RemoteError
	require.ErrorAs(t, ErrorReply("denied").Err(), &remote)
	assert.Equal(t, "denied", remote.Message)
}

func TestRequest_Idempotent(t *testing.T) {
	assert.True(t, GetRequest(ChatID(1)).Idempotent())
	assert.True(t, GetAllRequest().Idempotent())
	assert.False(t, AddRequest(&Tag{}).Idempotent())
	assert.Equal(t, "remove(chat(2))", RemoveRequest(ChatID(2)).String())
}
