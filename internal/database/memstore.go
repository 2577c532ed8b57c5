package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// MemStore is the in-memory Store implementation. It backs the test suites
// and local development runs where no PostgreSQL instance is available; a
// single mutex stands in for the transactions of the SQL implementation.
type MemStore struct {
	mu sync.Mutex

	nextUserID int64
	nextChatID int64
	nextMsgID  int64

	users       map[int64]*models.User
	usersByName map[string]int64

	requests    []models.FriendRequest
	friendships map[[2]int64]bool
	blocks      map[[2]int64]bool

	chats       map[int64]*models.Chat
	chatMembers map[int64][]int64 // chat id → member ids in insertion order
	messages    map[int64][]models.Message
	reads       map[[2]int64]time.Time // {message id, user id} → read_at
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextUserID:  1,
		nextChatID:  1,
		nextMsgID:   1,
		users:       make(map[int64]*models.User),
		usersByName: make(map[string]int64),
		friendships: make(map[[2]int64]bool),
		blocks:      make(map[[2]int64]bool),
		chats:       make(map[int64]*models.Chat),
		chatMembers: make(map[int64][]int64),
		messages:    make(map[int64][]models.Message),
		reads:       make(map[[2]int64]time.Time),
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *MemStore) InsertUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByName[username]; taken {
		return nil, errors.New(errors.KindUserAlreadyExists)
	}

	user := &models.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.nextUserID++
	s.users[user.ID] = user
	s.usersByName[username] = user.ID

	u := *user
	return &u, nil
}

func (s *MemStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByName[username]
	if !ok {
		return nil, errors.New(errors.KindUserNotFound)
	}
	u := *s.users[id]
	return &u, nil
}

func (s *MemStore) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, errors.New(errors.KindUserNotFound)
	}
	u := *user
	return &u, nil
}

func (s *MemStore) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByName[username]
	if !ok {
		return errors.New(errors.KindUserNotFound)
	}
	s.users[id].PasswordHash = passwordHash
	return nil
}

// ---------------------------------------------------------------------------
// Friendships
// ---------------------------------------------------------------------------

func (s *MemStore) FriendshipExists(ctx context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friendships[[2]int64{a, b}] || s.friendships[[2]int64{b, a}], nil
}

func (s *MemStore) InsertFriendshipPair(ctx context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[[2]int64{a, b}] = true
	s.friendships[[2]int64{b, a}] = true
	return nil
}

func (s *MemStore) DeleteFriendshipPair(ctx context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friendships, [2]int64{a, b})
	delete(s.friendships, [2]int64{b, a})
	return nil
}

func (s *MemStore) ListFriends(ctx context.Context, userID int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	friends := []models.User{}
	for pair := range s.friendships {
		if pair[0] == userID {
			if u, ok := s.users[pair[1]]; ok {
				friends = append(friends, models.User{ID: u.ID, Username: u.Username})
			}
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].ID < friends[j].ID })
	return friends, nil
}

// ---------------------------------------------------------------------------
// Friend requests
// ---------------------------------------------------------------------------

func (s *MemStore) FindPendingRequest(ctx context.Context, senderID, receiverID int64) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.requests {
		r := s.requests[i]
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == models.StatusPending {
			req := r
			return &req, nil
		}
	}
	return nil, nil
}

func (s *MemStore) InsertFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (s *MemStore) AcceptPendingRequest(ctx context.Context, senderID, receiverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.requests {
		r := &s.requests[i]
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == models.StatusPending {
			r.Status = models.StatusAccepted
			s.friendships[[2]int64{senderID, receiverID}] = true
			s.friendships[[2]int64{receiverID, senderID}] = true
			return nil
		}
	}
	return errors.New(errors.KindUserNotFound)
}

func (s *MemStore) DeletePendingRequest(ctx context.Context, senderID, receiverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.requests[:0]
	for _, r := range s.requests {
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == models.StatusPending {
			continue
		}
		kept = append(kept, r)
	}
	s.requests = kept
	return nil
}

func (s *MemStore) ListIncomingPending(ctx context.Context, userID int64) ([]models.User, error) {
	return s.listPending(userID, true)
}

func (s *MemStore) ListOutgoingPending(ctx context.Context, userID int64) ([]models.User, error) {
	return s.listPending(userID, false)
}

func (s *MemStore) listPending(userID int64, incoming bool) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := []models.User{}
	for _, r := range s.requests {
		if r.Status != models.StatusPending {
			continue
		}
		var otherID int64
		if incoming && r.ReceiverID == userID {
			otherID = r.SenderID
		} else if !incoming && r.SenderID == userID {
			otherID = r.ReceiverID
		} else {
			continue
		}
		if u, ok := s.users[otherID]; ok {
			users = append(users, models.User{ID: u.ID, Username: u.Username})
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func (s *MemStore) BlockExistsBetween(ctx context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[[2]int64{a, b}] || s.blocks[[2]int64{b, a}], nil
}

func (s *MemStore) ApplyBlock(ctx context.Context, userID, blockedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[[2]int64{userID, blockedID}] = true
	delete(s.friendships, [2]int64{userID, blockedID})
	delete(s.friendships, [2]int64{blockedID, userID})

	kept := s.requests[:0]
	for _, r := range s.requests {
		between := (r.SenderID == userID && r.ReceiverID == blockedID) ||
			(r.SenderID == blockedID && r.ReceiverID == userID)
		if between {
			continue
		}
		kept = append(kept, r)
	}
	s.requests = kept
	return nil
}

// ---------------------------------------------------------------------------
// Chats
// ---------------------------------------------------------------------------

func (s *MemStore) CreateChat(ctx context.Context, name *string, isGroup bool, memberIDs []int64, now time.Time) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &models.Chat{
		ID:        s.nextChatID,
		IsGroup:   isGroup,
		CreatedAt: now,
	}
	if name != nil {
		chat.Name = *name
	}
	s.nextChatID++
	s.chats[chat.ID] = chat
	s.chatMembers[chat.ID] = append([]int64{}, memberIDs...)

	c := *chat
	return &c, nil
}

func (s *MemStore) GroupChatNameExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		if c.IsGroup && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) OneOnOneExists(ctx context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		if c.IsGroup {
			continue
		}
		members := s.chatMembers[id]
		if len(members) != 2 {
			continue
		}
		if (members[0] == a && members[1] == b) || (members[0] == b && members[1] == a) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ListChatsForUserPaged(ctx context.Context, userID int64, page, pageSize uint64) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type keyed struct {
		chat     models.Chat
		activity time.Time
	}
	entries := []keyed{}
	for id, c := range s.chats {
		if !s.isMemberLocked(id, userID) {
			continue
		}
		activity := c.CreatedAt
		msgs := s.messages[id]
		if len(msgs) > 0 {
			for _, m := range msgs {
				if m.Timestamp.After(activity) {
					activity = m.Timestamp
				}
			}
		}
		entries = append(entries, keyed{chat: *c, activity: activity})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].activity.Equal(entries[j].activity) {
			return entries[i].activity.After(entries[j].activity)
		}
		return entries[i].chat.ID > entries[j].chat.ID
	})

	start := page * pageSize
	if start >= uint64(len(entries)) {
		return []models.Chat{}, nil
	}
	end := start + pageSize
	if end > uint64(len(entries)) {
		end = uint64(len(entries))
	}

	out := make([]models.Chat, 0, end-start)
	for _, e := range entries[start:end] {
		out = append(out, e.chat)
	}
	return out, nil
}

func (s *MemStore) CountChatsForUser(ctx context.Context, userID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for id := range s.chats {
		if s.isMemberLocked(id, userID) {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) isMemberLocked(chatID, userID int64) bool {
	for _, id := range s.chatMembers[chatID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *MemStore) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMemberLocked(chatID, userID), nil
}

func (s *MemStore) ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append([]int64{}, s.chatMembers[chatID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemStore) ListOtherUsernames(ctx context.Context, chatID, currentUserID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append([]int64{}, s.chatMembers[chatID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := []string{}
	for _, id := range ids {
		if id == currentUserID {
			continue
		}
		if u, ok := s.users[id]; ok {
			names = append(names, u.Username)
		}
	}
	return names, nil
}

// ---------------------------------------------------------------------------
// Messages and reads
// ---------------------------------------------------------------------------

func (s *MemStore) InsertMessage(ctx context.Context, chatID, senderID int64, senderUsername, content string, now time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:             s.nextMsgID,
		ChatID:         chatID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		Content:        content,
		Timestamp:      now,
	}
	s.nextMsgID++
	s.messages[chatID] = append(s.messages[chatID], msg)
	s.reads[[2]int64{msg.ID, senderID}] = now

	m := msg
	return &m, nil
}

// sortedMessagesLocked returns the chat's messages ordered by timestamp
// ascending, id ascending on ties.
func (s *MemStore) sortedMessagesLocked(chatID int64) []models.Message {
	msgs := append([]models.Message{}, s.messages[chatID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (s *MemStore) ListMessagesDescending(ctx context.Context, chatID int64, offset, limit uint64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asc := s.sortedMessagesLocked(chatID)
	desc := make([]models.Message, len(asc))
	for i, m := range asc {
		desc[len(asc)-1-i] = m
	}

	if offset >= uint64(len(desc)) {
		return []models.Message{}, nil
	}
	end := offset + limit
	if end > uint64(len(desc)) {
		end = uint64(len(desc))
	}
	return append([]models.Message{}, desc[offset:end]...), nil
}

func (s *MemStore) CountMessages(ctx context.Context, chatID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.messages[chatID])), nil
}

func (s *MemStore) ListMessageIDs(ctx context.Context, chatID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.messages[chatID]))
	for _, m := range s.messages[chatID] {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *MemStore) CountUnreadInChat(ctx context.Context, chatID, userID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, m := range s.messages[chatID] {
		if _, read := s.reads[[2]int64{m.ID, userID}]; !read {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) CountUnreadForUser(ctx context.Context, userID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for chatID, msgs := range s.messages {
		if !s.isMemberLocked(chatID, userID) {
			continue
		}
		for _, m := range msgs {
			if _, read := s.reads[[2]int64{m.ID, userID}]; !read {
				count++
			}
		}
	}
	return count, nil
}

func (s *MemStore) InsertReads(ctx context.Context, userID int64, messageIDs []int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range messageIDs {
		key := [2]int64{id, userID}
		if _, exists := s.reads[key]; !exists {
			s.reads[key] = now
		}
	}
	return nil
}

func (s *MemStore) ListReadMessageIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	for _, id := range messageIDs {
		if _, read := s.reads[[2]int64{id, userID}]; read {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) ReadExists(ctx context.Context, userID, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, read := s.reads[[2]int64{messageID, userID}]
	return read, nil
}
