package database

import (
	"context"
	"time"

	"quic-chat-system/internal/models"
)

// Store is the persistence gateway. It is the sole mutator of persisted
// state; services never see SQL. Operations that touch multiple rows
// (chat creation, message send with its self-read, mutual accept, block
// cleanup) are atomic inside the implementation, so no partial effect can
// escape a failed call.
//
// Two implementations exist: *DB over PostgreSQL, and *MemStore, the
// in-memory variant used by the test suites and local development.
type Store interface {
	// Users
	InsertUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error

	// Friendships. Pairs are stored as two directed rows created and
	// deleted together.
	FriendshipExists(ctx context.Context, a, b int64) (bool, error)
	InsertFriendshipPair(ctx context.Context, a, b int64) error
	DeleteFriendshipPair(ctx context.Context, a, b int64) error
	ListFriends(ctx context.Context, userID int64) ([]models.User, error)

	// Friend requests
	FindPendingRequest(ctx context.Context, senderID, receiverID int64) (*models.FriendRequest, error)
	InsertFriendRequest(ctx context.Context, senderID, receiverID int64) error
	// AcceptPendingRequest flips the pending row to accepted and creates
	// both friendship rows in one transaction.
	AcceptPendingRequest(ctx context.Context, senderID, receiverID int64) error
	// DeletePendingRequest removes the pending row for the ordered pair.
	DeletePendingRequest(ctx context.Context, senderID, receiverID int64) error
	ListIncomingPending(ctx context.Context, userID int64) ([]models.User, error)
	ListOutgoingPending(ctx context.Context, userID int64) ([]models.User, error)

	// Blocks. ApplyBlock records the block and deletes friendships and
	// requests in both directions atomically.
	BlockExistsBetween(ctx context.Context, a, b int64) (bool, error)
	ApplyBlock(ctx context.Context, userID, blockedID int64) error

	// Chats. CreateChat inserts the chat row and one member row per id in
	// one transaction.
	CreateChat(ctx context.Context, name *string, isGroup bool, memberIDs []int64, now time.Time) (*models.Chat, error)
	GroupChatNameExists(ctx context.Context, name string) (bool, error)
	// OneOnOneExists reports whether a non-group chat with exactly the
	// member pair {a, b} exists.
	OneOnOneExists(ctx context.Context, a, b int64) (bool, error)
	// ListChatsForUserPaged orders by last-activity descending: the latest
	// message timestamp, falling back to the chat's creation time, with
	// chat id descending as the tie-break.
	ListChatsForUserPaged(ctx context.Context, userID int64, page, pageSize uint64) ([]models.Chat, error)
	CountChatsForUser(ctx context.Context, userID int64) (uint64, error)

	// Chat members
	IsChatMember(ctx context.Context, chatID, userID int64) (bool, error)
	ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error)
	// ListOtherUsernames returns the usernames of every member except
	// currentUserID, ordered by user id ascending.
	ListOtherUsernames(ctx context.Context, chatID, currentUserID int64) ([]string, error)

	// Messages. InsertMessage also inserts the sender's read receipt in
	// the same transaction so the sender never counts the message as
	// unread.
	InsertMessage(ctx context.Context, chatID, senderID int64, senderUsername, content string, now time.Time) (*models.Message, error)
	// ListMessagesDescending returns a window of the chat's messages
	// ordered by timestamp descending (id descending on ties), so offset 0
	// starts at the newest message. Callers render pages oldest-first by
	// reversing the window.
	ListMessagesDescending(ctx context.Context, chatID int64, offset, limit uint64) ([]models.Message, error)
	CountMessages(ctx context.Context, chatID int64) (uint64, error)
	ListMessageIDs(ctx context.Context, chatID int64) ([]int64, error)
	CountUnreadInChat(ctx context.Context, chatID, userID int64) (uint64, error)
	CountUnreadForUser(ctx context.Context, userID int64) (uint64, error)

	// Reads. InsertReads is idempotent: already-present rows are skipped.
	InsertReads(ctx context.Context, userID int64, messageIDs []int64, now time.Time) error
	ListReadMessageIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error)
	ReadExists(ctx context.Context, userID, messageID int64) (bool, error)
}
