package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/cache"
	"quic-chat-system/internal/database"
)

// testEnv wires the services over the in-memory store, the way the server
// wires them over PostgreSQL.
type testEnv struct {
	store   *database.MemStore
	tokens  *auth.TokenIssuer
	auth    *AuthService
	friends *FriendService
	chats   *ChatService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := database.NewMemStore()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	return &testEnv{
		store:   store,
		tokens:  tokens,
		auth:    NewAuthService(store, tokens),
		friends: NewFriendService(store, tokens),
		chats:   NewChatService(store, tokens, cache.NewMemoryCache()),
	}
}

// register creates a user and returns their token and id.
func (e *testEnv) register(t *testing.T, username string) (string, int64) {
	t.Helper()

	result, err := e.auth.Register(context.Background(), username, "password1")
	require.NoError(t, err)
	return result.Token, result.UserID
}
