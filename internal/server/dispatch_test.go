package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/cache"
	"quic-chat-system/internal/database"
	"quic-chat-system/internal/protocol"
	"quic-chat-system/internal/service"
)

type dispatchEnv struct {
	dispatcher *Dispatcher
	registry   *Registry
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()

	store := database.NewMemStore()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	registry := NewRegistry()

	dispatcher := NewDispatcher(
		service.NewAuthService(store, tokens),
		service.NewFriendService(store, tokens),
		service.NewChatService(store, tokens, cache.NewMemoryCache()),
		tokens,
		registry,
	)
	return &dispatchEnv{dispatcher: dispatcher, registry: registry}
}

func command(t *testing.T, cmdType protocol.CommandType, payload any) protocol.Command {
	t.Helper()
	cmd, err := protocol.NewCommand(cmdType, payload)
	require.NoError(t, err)
	return cmd
}

// dispatch runs a request against the given session, which may be nil.
func (e *dispatchEnv) dispatch(t *testing.T, jwt *string, cmd protocol.Command, sess *session) (protocol.Response, []int64) {
	t.Helper()
	return e.dispatcher.Dispatch(context.Background(), &protocol.Request{JWT: jwt, Command: cmd}, sess)
}

// registerUser drives a full Register through the dispatcher.
func (e *dispatchEnv) registerUser(t *testing.T, username string, sess *session) (string, int64) {
	t.Helper()

	resp, _ := e.dispatch(t, nil,
		command(t, protocol.CmdRegister, protocol.AuthPayload{Username: username, Password: "pw1"}), sess)
	require.True(t, resp.Success, "register failed: %v", resp.Message)
	require.NotNil(t, resp.JWT)

	var data protocol.RegisterData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return *resp.JWT, data.UserID
}

func TestDispatchRequiresToken(t *testing.T) {
	env := newDispatchEnv(t)

	resp, notify := env.dispatch(t, nil, command(t, protocol.CmdGetFriends, nil), nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "No token provided", *resp.Message)
	assert.Nil(t, resp.Data)
	assert.Empty(t, notify)
}

func TestDispatchRejectsInvalidToken(t *testing.T) {
	env := newDispatchEnv(t)
	bad := "not-a-token"

	resp, _ := env.dispatch(t, &bad, command(t, protocol.CmdGetFriends, nil), nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Contains(t, *resp.Message, "Invalid Token")
}

func TestDispatchUnknownCommand(t *testing.T) {
	env := newDispatchEnv(t)
	token, _ := env.registerUser(t, "alice", nil)

	resp, _ := env.dispatch(t, &token, protocol.Command{Type: "Frobnicate"}, nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Contains(t, *resp.Message, "Invalid request")
	assert.Contains(t, *resp.Message, "Frobnicate")
}

func TestDispatchRegisterBindsPushStream(t *testing.T) {
	env := newDispatchEnv(t)
	push := &recordWriter{}
	sess := &session{connID: "conn-a", push: push}

	_, userID := env.registerUser(t, "alice", sess)
	assert.True(t, env.registry.IsOnline(userID))
}

func TestDispatchLoginReplacesPushEntry(t *testing.T) {
	env := newDispatchEnv(t)

	first := &recordWriter{}
	_, userID := env.registerUser(t, "alice", &session{connID: "conn-a", push: first})

	second := &recordWriter{}
	resp, _ := env.dispatch(t, nil,
		command(t, protocol.CmdLogin, protocol.AuthPayload{Username: "alice", Password: "pw1"}),
		&session{connID: "conn-b", push: second})
	require.True(t, resp.Success)

	// A push after the second login lands only on the new connection.
	require.NoError(t, env.registry.Push(userID, []byte("frame")))
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())
}

func TestDispatchLogoutEvictsBeforeResponding(t *testing.T) {
	env := newDispatchEnv(t)
	sess := &session{connID: "conn-a", push: &recordWriter{}}
	token, userID := env.registerUser(t, "alice", sess)

	resp, notify := env.dispatch(t, &token,
		command(t, protocol.CmdLogout, protocol.LogoutPayload{Username: "alice"}), sess)
	require.True(t, resp.Success)
	assert.Empty(t, notify)
	assert.False(t, env.registry.IsOnline(userID))
}

func TestDispatchSendMessageNotifiesChatMembers(t *testing.T) {
	env := newDispatchEnv(t)

	aliceToken, aliceID := env.registerUser(t, "alice", nil)
	_, bobID := env.registerUser(t, "bob", nil)

	resp, notify := env.dispatch(t, &aliceToken,
		command(t, protocol.CmdCreateChat, protocol.CreateChatPayload{MemberIDs: []int64{bobID}}), nil)
	require.True(t, resp.Success)
	assert.ElementsMatch(t, []int64{aliceID, bobID}, notify)

	// Find the chat id via GetChats.
	resp, _ = env.dispatch(t, &aliceToken,
		command(t, protocol.CmdGetChats, protocol.GetChatsPayload{Page: 0, PageSize: 10}), nil)
	require.True(t, resp.Success)
	var chats protocol.ChatsData
	require.NoError(t, json.Unmarshal(resp.Data, &chats))
	require.Len(t, chats.Chats, 1)

	resp, notify = env.dispatch(t, &aliceToken,
		command(t, protocol.CmdSendMessage,
			protocol.SendMessagePayload{ChatID: chats.Chats[0].ID, Content: "hi"}), nil)
	require.True(t, resp.Success)
	assert.ElementsMatch(t, []int64{aliceID, bobID}, notify)
}

func TestDispatchDomainErrorEnvelope(t *testing.T) {
	env := newDispatchEnv(t)
	token, _ := env.registerUser(t, "alice", nil)

	resp, notify := env.dispatch(t, &token,
		command(t, protocol.CmdSendFriendRequest,
			protocol.SendFriendRequestPayload{ReceiverUsername: "nobody"}), nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "User not found", *resp.Message)
	assert.Nil(t, resp.Data)
	assert.Nil(t, resp.JWT)
	assert.Empty(t, notify)
}

func TestDispatchFriendFlowEndToEnd(t *testing.T) {
	env := newDispatchEnv(t)

	aliceToken, aliceID := env.registerUser(t, "alice", nil)
	bobToken, _ := env.registerUser(t, "bob", nil)

	resp, notify := env.dispatch(t, &aliceToken,
		command(t, protocol.CmdSendFriendRequest,
			protocol.SendFriendRequestPayload{ReceiverUsername: "bob"}), nil)
	require.True(t, resp.Success)
	require.Len(t, notify, 1)

	resp, _ = env.dispatch(t, &bobToken, command(t, protocol.CmdGetFriendRequests, nil), nil)
	require.True(t, resp.Success)
	var requests protocol.FriendRequestsData
	require.NoError(t, json.Unmarshal(resp.Data, &requests))
	require.Len(t, requests.Incoming, 1)
	assert.Equal(t, "alice", requests.Incoming[0].Username)

	resp, _ = env.dispatch(t, &bobToken,
		command(t, protocol.CmdAcceptFriendRequest,
			protocol.AcceptFriendRequestPayload{SenderID: aliceID}), nil)
	require.True(t, resp.Success)

	for _, token := range []string{aliceToken, bobToken} {
		resp, _ = env.dispatch(t, &token, command(t, protocol.CmdGetFriends, nil), nil)
		require.True(t, resp.Success)
		var friends protocol.FriendsData
		require.NoError(t, json.Unmarshal(resp.Data, &friends))
		assert.Len(t, friends.Users, 1)
	}
}

func TestDispatchGetUnreadMessageCount(t *testing.T) {
	env := newDispatchEnv(t)

	aliceToken, _ := env.registerUser(t, "alice", nil)
	bobToken, bobID := env.registerUser(t, "bob", nil)

	resp, _ := env.dispatch(t, &aliceToken,
		command(t, protocol.CmdCreateChat, protocol.CreateChatPayload{MemberIDs: []int64{bobID}}), nil)
	require.True(t, resp.Success)

	resp, _ = env.dispatch(t, &aliceToken,
		command(t, protocol.CmdGetChats, protocol.GetChatsPayload{Page: 0, PageSize: 10}), nil)
	var chats protocol.ChatsData
	require.NoError(t, json.Unmarshal(resp.Data, &chats))
	chatID := chats.Chats[0].ID

	for i := 0; i < 3; i++ {
		resp, _ = env.dispatch(t, &aliceToken,
			command(t, protocol.CmdSendMessage,
				protocol.SendMessagePayload{ChatID: chatID, Content: "hi"}), nil)
		require.True(t, resp.Success)
	}

	resp, _ = env.dispatch(t, &bobToken, command(t, protocol.CmdGetUnreadMessageCount, nil), nil)
	require.True(t, resp.Success)
	var count protocol.CountData
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, uint64(3), count.Count)

	resp, _ = env.dispatch(t, &bobToken,
		command(t, protocol.CmdMarkMessagesRead, protocol.MarkMessagesReadPayload{ChatID: chatID}), nil)
	require.True(t, resp.Success)

	resp, _ = env.dispatch(t, &bobToken, command(t, protocol.CmdGetUnreadMessageCount, nil), nil)
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, uint64(0), count.Count)
}

func TestDispatchMalformedPayload(t *testing.T) {
	env := newDispatchEnv(t)
	token, _ := env.registerUser(t, "alice", nil)

	resp, _ := env.dispatch(t, &token,
		protocol.Command{Type: protocol.CmdSendMessage, Data: json.RawMessage(`"not an object"`)}, nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Contains(t, *resp.Message, "Invalid request")
}
