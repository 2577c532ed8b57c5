package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

func strPtr(s string) *string { return &s }

// createOneOnOne makes a direct chat between the token holder and otherID
// and returns its id via the creator's chat list.
func createOneOnOne(t *testing.T, env *testEnv, token string, otherID int64) int64 {
	t.Helper()
	ctx := context.Background()

	_, err := env.chats.CreateChat(ctx, token, nil, false, []int64{otherID})
	require.NoError(t, err)

	chats, err := env.chats.GetChats(ctx, token, 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, chats)
	return chats[0].ID
}

func TestCreateChatDuplicateOneOnOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	bobToken, bobID := env.register(t, "bob")

	_, err := env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{bobID})
	require.NoError(t, err)

	_, err = env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{bobID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindChatAlreadyExists))
	assert.Equal(t, "Chat already exists", err.Error())

	// The pair is duplicate from either side.
	info, err := env.auth.GetInfo(ctx, aliceToken)
	require.NoError(t, err)
	_, err = env.chats.CreateChat(ctx, bobToken, nil, false, []int64{info.ID})
	assert.True(t, errors.Is(err, errors.KindChatAlreadyExists))
}

func TestCreateChatDuplicateGroupName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	_, carolID := env.register(t, "carol")

	_, err := env.chats.CreateChat(ctx, aliceToken, strPtr("study"), true, []int64{bobID, carolID})
	require.NoError(t, err)

	_, err = env.chats.CreateChat(ctx, aliceToken, strPtr("study"), true, []int64{bobID, carolID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindChatAlreadyExists))

	// A different name is fine.
	_, err = env.chats.CreateChat(ctx, aliceToken, strPtr("homework"), true, []int64{bobID})
	assert.NoError(t, err)
}

func TestCreateChatAddsCreator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, aliceID := env.register(t, "alice")
	_, bobID := env.register(t, "bob")

	members, err := env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{bobID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{aliceID, bobID}, members)
}

func TestChatDisplayNameIsOtherMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	bobToken, bobID := env.register(t, "bob")

	createOneOnOne(t, env, aliceToken, bobID)

	aliceChats, err := env.chats.GetChats(ctx, aliceToken, 0, 10)
	require.NoError(t, err)
	require.Len(t, aliceChats, 1)
	assert.Equal(t, "bob", aliceChats[0].ChatName)

	bobChats, err := env.chats.GetChats(ctx, bobToken, 0, 10)
	require.NoError(t, err)
	require.Len(t, bobChats, 1)
	assert.Equal(t, "alice", bobChats[0].ChatName)
}

func TestGroupDisplayNameJoinsOtherMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	_, carolID := env.register(t, "carol")

	// A group without a name falls back to the other members' usernames.
	_, err := env.chats.CreateChat(ctx, aliceToken, nil, true, []int64{bobID, carolID})
	require.NoError(t, err)

	chats, err := env.chats.GetChats(ctx, aliceToken, 0, 10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "bob, carol", chats[0].ChatName)
}

func TestSendAndGetMessagesScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, aliceID := env.register(t, "alice")
	bobToken, bobID := env.register(t, "bob")

	chatID := createOneOnOne(t, env, aliceToken, bobID)

	for i := 1; i <= 3; i++ {
		_, err := env.chats.SendMessage(ctx, aliceToken, chatID, fmt.Sprintf("hi %d", i))
		require.NoError(t, err)
	}

	// Page 0 at size 2 is the newest two messages, ascending within the
	// page.
	page, err := env.chats.GetChatMessages(ctx, bobToken, chatID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "hi 2", page.Messages[0].Content)
	assert.Equal(t, "hi 3", page.Messages[1].Content)
	assert.Equal(t, aliceID, page.Messages[0].SenderID)
	assert.Equal(t, "alice", page.Messages[0].SenderUsername)

	pages, err := env.chats.GetChatPages(ctx, bobToken, chatID, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), pages)

	// Bob has three unread; Alice, as the sender, none.
	bobUnread, err := env.chats.GetUnreadMessageCount(ctx, bobToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), bobUnread)

	aliceUnread, err := env.chats.GetUnreadMessageCount(ctx, aliceToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), aliceUnread)

	require.NoError(t, env.chats.MarkMessagesRead(ctx, bobToken, chatID))

	bobUnread, err = env.chats.GetUnreadMessageCount(ctx, bobToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bobUnread)

	// Marking again is a no-op.
	require.NoError(t, env.chats.MarkMessagesRead(ctx, bobToken, chatID))
	bobUnread, err = env.chats.GetUnreadMessageCount(ctx, bobToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bobUnread)
}

func TestPaginationRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	chatID := createOneOnOne(t, env, aliceToken, bobID)

	const n = 5
	const pageSize = 2
	for i := 1; i <= n; i++ {
		_, err := env.chats.SendMessage(ctx, aliceToken, chatID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	numPages, err := env.chats.GetChatPages(ctx, aliceToken, chatID, pageSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), numPages)

	// Walking pages oldest-to-newest (num_pages-1 … 0) reconstructs the
	// full ascending order.
	var all []models.Message
	for page := int(numPages) - 1; page >= 0; page-- {
		p, err := env.chats.GetChatMessages(ctx, aliceToken, chatID, uint64(page), pageSize)
		require.NoError(t, err)
		all = append(all, p.Messages...)
	}

	require.Len(t, all, n)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("msg %d", i+1), m.Content)
	}
}

func TestGetChatMessagesEmptyChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	chatID := createOneOnOne(t, env, aliceToken, bobID)

	page, err := env.chats.GetChatMessages(ctx, aliceToken, chatID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	pages, err := env.chats.GetChatPages(ctx, aliceToken, chatID, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pages)
}

func TestGetChatMessagesClampsPastLastPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	chatID := createOneOnOne(t, env, aliceToken, bobID)

	for i := 1; i <= 3; i++ {
		_, err := env.chats.SendMessage(ctx, aliceToken, chatID, fmt.Sprintf("hi %d", i))
		require.NoError(t, err)
	}

	// Way past the end clamps to the oldest page.
	page, err := env.chats.GetChatMessages(ctx, aliceToken, chatID, 99, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hi 1", page.Messages[0].Content)
}

func TestChatAccessForbiddenForNonMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	malloryToken, _ := env.register(t, "mallory")

	chatID := createOneOnOne(t, env, aliceToken, bobID)

	_, err := env.chats.GetChatMessages(ctx, malloryToken, chatID, 0, 10)
	assert.True(t, errors.Is(err, errors.KindForbidden))
	assert.Equal(t, "Forbidden", err.Error())

	_, err = env.chats.SendMessage(ctx, malloryToken, chatID, "let me in")
	assert.True(t, errors.Is(err, errors.KindForbidden))

	err = env.chats.MarkMessagesRead(ctx, malloryToken, chatID)
	assert.True(t, errors.Is(err, errors.KindForbidden))

	_, err = env.chats.GetChatPages(ctx, malloryToken, chatID, 10)
	assert.True(t, errors.Is(err, errors.KindForbidden))
}

func TestUnreadMonotonicity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	bobToken, bobID := env.register(t, "bob")
	chatID := createOneOnOne(t, env, aliceToken, bobID)

	for i := 1; i <= 4; i++ {
		_, err := env.chats.SendMessage(ctx, aliceToken, chatID, "ping")
		require.NoError(t, err)

		// Each send by another member raises Bob's unread count by
		// exactly one, through the cached path as well.
		unread, err := env.chats.GetUnreadChatMessageCount(ctx, bobToken, chatID)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), unread)

		global, err := env.chats.GetUnreadMessageCount(ctx, bobToken)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), global)
	}

	require.NoError(t, env.chats.MarkMessagesRead(ctx, bobToken, chatID))
	unread, err := env.chats.GetUnreadChatMessageCount(ctx, bobToken, chatID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), unread)
}

func TestGetChatsOrdersByLastActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	_, bobID := env.register(t, "bob")
	_, carolID := env.register(t, "carol")

	_, err := env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{bobID})
	require.NoError(t, err)
	_, err = env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{carolID})
	require.NoError(t, err)

	// With no messages the newer chat (higher id) leads.
	chats, err := env.chats.GetChats(ctx, aliceToken, 0, 10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "carol", chats[0].ChatName)

	// A message in the older chat moves it to the front.
	bobChat := chats[1].ID
	_, err = env.chats.SendMessage(ctx, aliceToken, bobChat, "hello bob")
	require.NoError(t, err)

	chats, err = env.chats.GetChats(ctx, aliceToken, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "bob", chats[0].ChatName)
}

func TestGetChatsPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken, _ := env.register(t, "alice")
	for i := 0; i < 5; i++ {
		_, otherID := env.register(t, fmt.Sprintf("user%d", i))
		_, err := env.chats.CreateChat(ctx, aliceToken, nil, false, []int64{otherID})
		require.NoError(t, err)
	}

	count, err := env.chats.GetChatsPages(ctx, aliceToken, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
