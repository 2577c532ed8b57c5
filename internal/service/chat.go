package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/cache"
	"quic-chat-system/internal/database"
	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
	"quic-chat-system/internal/validation"
)

// ChatService carries chat creation, message send, pagination, and unread
// tracking. Global unread counts are served through the cache; the cache is
// invalidated by the two mutations that change them.
type ChatService struct {
	store  database.Store
	tokens *auth.TokenIssuer
	cache  cache.Service
}

// NewChatService creates a new chat service.
func NewChatService(store database.Store, tokens *auth.TokenIssuer, c cache.Service) *ChatService {
	return &ChatService{store: store, tokens: tokens, cache: c}
}

// SendResult carries the stored message and the full member set of its
// chat; the dispatcher uses the member set for push fan-out.
type SendResult struct {
	Message   *models.Message
	MemberIDs []int64
}

// ChatMessagesPage is one page of a chat's messages, ascending within the
// page.
type ChatMessagesPage struct {
	ChatID   int64
	Messages []models.Message
}

// CreateChat creates a chat with the authenticated user plus memberIDs as
// members. Duplicate group names and duplicate one-on-one pairs are
// rejected. Returns the final member set for push fan-out.
func (s *ChatService) CreateChat(ctx context.Context, token string, name *string, isGroup bool, memberIDs []int64) ([]int64, error) {
	creatorID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	members := make([]int64, 0, len(memberIDs)+1)
	seen := map[int64]bool{}
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if !seen[creatorID] {
		members = append(members, creatorID)
	}

	if isGroup && name != nil && *name != "" {
		exists, err := s.store.GroupChatNameExists(ctx, *name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.New(errors.KindChatAlreadyExists)
		}
	}
	if !isGroup && len(members) == 2 {
		exists, err := s.store.OneOnOneExists(ctx, members[0], members[1])
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.New(errors.KindChatAlreadyExists)
		}
	}

	chat, err := s.store.CreateChat(ctx, name, isGroup, members, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	slog.Debug("Chat created", "chat_id", chat.ID, "is_group", isGroup, "members", len(members))
	return members, nil
}

// SendMessage stores a message with a server-assigned timestamp and the
// sender's read receipt, then invalidates the unread counters of the other
// members.
func (s *ChatService) SendMessage(ctx context.Context, token string, chatID int64, content string) (*SendResult, error) {
	senderID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, err
	}

	member, err := s.store.IsChatMember(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errors.New(errors.KindForbidden)
	}

	sender, err := s.store.FindUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.InsertMessage(ctx, chatID, senderID, sender.Username, content, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	memberIDs, err := s.store.ListChatMemberIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != senderID {
			keys = append(keys, cache.UnreadKey(id))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("Unread cache invalidation failed", "error", err)
	}

	return &SendResult{Message: msg, MemberIDs: memberIDs}, nil
}

// GetChats returns one page of the user's chats ordered by last activity
// descending, each with its display name and unread count.
func (s *ChatService) GetChats(ctx context.Context, token string, page, pageSize uint64) ([]models.ChatSummary, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePageSize(pageSize); err != nil {
		return nil, err
	}

	chats, err := s.store.ListChatsForUserPaged(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		name := chat.Name
		if name == "" {
			others, err := s.store.ListOtherUsernames(ctx, chat.ID, userID)
			if err != nil {
				return nil, err
			}
			name = strings.Join(others, ", ")
		}

		unread, err := s.store.CountUnreadInChat(ctx, chat.ID, userID)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, models.ChatSummary{
			ID:          chat.ID,
			ChatName:    name,
			UnreadCount: int64(unread),
		})
	}

	return summaries, nil
}

// pageWindow clamps the requested page and computes the page count. Pages
// are anchored at the newest message: page 0 is the newest pageSize
// messages, and only the oldest page may run short. offset indexes into
// the descending message order.
func pageWindow(total, page, pageSize uint64) (offset uint64, numPages uint64) {
	if total == 0 {
		return 0, 0
	}
	numPages = (total + pageSize - 1) / pageSize
	if page > numPages-1 {
		page = numPages - 1
	}
	return page * pageSize, numPages
}

// GetChatMessages returns one page of the chat's messages. Page 0 is the
// newest window; within the window messages are reversed back to ascending
// so the client renders oldest-to-newest top-to-bottom.
func (s *ChatService) GetChatMessages(ctx context.Context, token string, chatID int64, page, pageSize uint64) (*ChatMessagesPage, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePageSize(pageSize); err != nil {
		return nil, err
	}

	member, err := s.store.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errors.New(errors.KindForbidden)
	}

	total, err := s.store.CountMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &ChatMessagesPage{ChatID: chatID, Messages: []models.Message{}}, nil
	}

	offset, _ := pageWindow(total, page, pageSize)
	window, err := s.store.ListMessagesDescending(ctx, chatID, offset, pageSize)
	if err != nil {
		return nil, err
	}

	// The window arrives newest-first; flip it so the page reads
	// oldest-to-newest.
	messages := make([]models.Message, len(window))
	for i, m := range window {
		messages[len(window)-1-i] = m
	}

	return &ChatMessagesPage{ChatID: chatID, Messages: messages}, nil
}

// GetChatPages returns the number of pages the chat's messages split into
// at the given page size.
func (s *ChatService) GetChatPages(ctx context.Context, token string, chatID int64, pageSize uint64) (uint64, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return 0, err
	}
	if err := validation.ValidatePageSize(pageSize); err != nil {
		return 0, err
	}

	member, err := s.store.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, errors.New(errors.KindForbidden)
	}

	total, err := s.store.CountMessages(ctx, chatID)
	if err != nil {
		return 0, err
	}

	_, numPages := pageWindow(total, 0, pageSize)
	return numPages, nil
}

// GetChatsPages returns the number of pages the user's chat list splits
// into at the given page size.
func (s *ChatService) GetChatsPages(ctx context.Context, token string, pageSize uint64) (uint64, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return 0, err
	}
	if err := validation.ValidatePageSize(pageSize); err != nil {
		return 0, err
	}

	total, err := s.store.CountChatsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	_, numPages := pageWindow(total, 0, pageSize)
	return numPages, nil
}

// MarkMessagesRead inserts read receipts for every message in the chat the
// user has not read yet. Calling it again is a no-op.
func (s *ChatService) MarkMessagesRead(ctx context.Context, token string, chatID int64) error {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	member, err := s.store.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.New(errors.KindForbidden)
	}

	all, err := s.store.ListMessageIDs(ctx, chatID)
	if err != nil {
		return err
	}
	read, err := s.store.ListReadMessageIDs(ctx, userID, all)
	if err != nil {
		return err
	}

	readSet := make(map[int64]bool, len(read))
	for _, id := range read {
		readSet[id] = true
	}
	unread := make([]int64, 0, len(all)-len(read))
	for _, id := range all {
		if !readSet[id] {
			unread = append(unread, id)
		}
	}

	if len(unread) == 0 {
		return nil
	}

	if err := s.store.InsertReads(ctx, userID, unread, time.Now().UTC()); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, cache.UnreadKey(userID)); err != nil {
		slog.Warn("Unread cache invalidation failed", "error", err)
	}
	return nil
}

// GetUnreadMessageCount sums unread messages across every chat the user
// belongs to. The count is served from the cache when present.
func (s *ChatService) GetUnreadMessageCount(ctx context.Context, token string) (uint64, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return 0, err
	}

	key := cache.UnreadKey(userID)
	var cached uint64
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	count, err := s.store.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, key, count, cache.DefaultTTL); err != nil {
		slog.Warn("Unread cache write failed", "error", err)
	}
	return count, nil
}

// GetUnreadChatMessageCount counts unread messages in a single chat.
func (s *ChatService) GetUnreadChatMessageCount(ctx context.Context, token string, chatID int64) (uint64, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return 0, err
	}

	member, err := s.store.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, errors.New(errors.KindForbidden)
	}

	return s.store.CountUnreadInChat(ctx, chatID, userID)
}
