package service

import (
	"context"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/database"
	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// FriendService drives the friendship state machine: requests, accepts,
// declines, removals, and blocks. Every operation acts with the
// authenticated user as the sender, receiver, or holder — callers can never
// act on arbitrary pairs.
type FriendService struct {
	store  database.Store
	tokens *auth.TokenIssuer
}

// NewFriendService creates a new friendship service.
func NewFriendService(store database.Store, tokens *auth.TokenIssuer) *FriendService {
	return &FriendService{store: store, tokens: tokens}
}

// FriendRequests pairs the pending requests pointing at a user with those
// the user has sent.
type FriendRequests struct {
	Incoming []models.User
	Outgoing []models.User
}

// SendFriendRequest creates a pending request toward receiverUsername. A
// block in either direction fails the call; an identical pending request is
// a no-op; a reverse pending request is treated as a mutual accept.
// Returns the receiver's id so the dispatcher can wake them.
func (s *FriendService) SendFriendRequest(ctx context.Context, token, receiverUsername string) (int64, error) {
	senderID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return 0, err
	}

	receiver, err := s.store.FindUserByUsername(ctx, receiverUsername)
	if err != nil {
		return 0, err
	}

	if receiver.ID == senderID {
		return 0, errors.Newf(errors.KindRequestInvalid, "cannot send a friend request to yourself")
	}

	blocked, err := s.store.BlockExistsBetween(ctx, senderID, receiver.ID)
	if err != nil {
		return 0, err
	}
	if blocked {
		return 0, errors.New(errors.KindActionBlocked)
	}

	friends, err := s.store.FriendshipExists(ctx, senderID, receiver.ID)
	if err != nil {
		return 0, err
	}
	if friends {
		return 0, errors.New(errors.KindAlreadyFriends)
	}

	// An identical pending request already exists: nothing to do.
	existing, err := s.store.FindPendingRequest(ctx, senderID, receiver.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return receiver.ID, nil
	}

	// A reverse pending request means both sides want the friendship;
	// treat the send as a mutual accept.
	reverse, err := s.store.FindPendingRequest(ctx, receiver.ID, senderID)
	if err != nil {
		return 0, err
	}
	if reverse != nil {
		if err := s.store.AcceptPendingRequest(ctx, receiver.ID, senderID); err != nil {
			return 0, err
		}
		return receiver.ID, nil
	}

	if err := s.store.InsertFriendRequest(ctx, senderID, receiver.ID); err != nil {
		return 0, err
	}
	return receiver.ID, nil
}

// AcceptFriendRequest accepts the pending request from senderID to the
// authenticated user.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, token string, senderID int64) error {
	receiverID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	pending, err := s.store.FindPendingRequest(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	if pending == nil {
		return errors.New(errors.KindUserNotFound)
	}

	return s.store.AcceptPendingRequest(ctx, senderID, receiverID)
}

// DeclineFriendRequest deletes the pending request from senderID to the
// authenticated user.
func (s *FriendService) DeclineFriendRequest(ctx context.Context, token string, senderID int64) error {
	receiverID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	return s.store.DeletePendingRequest(ctx, senderID, receiverID)
}

// CancelFriendRequest deletes the pending request the authenticated user
// sent to receiverID.
func (s *FriendService) CancelFriendRequest(ctx context.Context, token string, receiverID int64) error {
	senderID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	return s.store.DeletePendingRequest(ctx, senderID, receiverID)
}

// GetFriendRequests lists pending requests in both directions for the
// authenticated user.
func (s *FriendService) GetFriendRequests(ctx context.Context, token string) (*FriendRequests, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	incoming, err := s.store.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	outgoing, err := s.store.ListOutgoingPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &FriendRequests{Incoming: incoming, Outgoing: outgoing}, nil
}

// RemoveFriend deletes the friendship between the authenticated user and
// friendID.
func (s *FriendService) RemoveFriend(ctx context.Context, token string, friendID int64) error {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	exists, err := s.store.FriendshipExists(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New(errors.KindUserNotFound)
	}

	return s.store.DeleteFriendshipPair(ctx, userID, friendID)
}

// BlockUser records a block and erases any friendship and pending requests
// between the two users.
func (s *FriendService) BlockUser(ctx context.Context, token string, blockedID int64) error {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}

	if blockedID == userID {
		return errors.Newf(errors.KindRequestInvalid, "cannot block yourself")
	}

	if _, err := s.store.FindUserByID(ctx, blockedID); err != nil {
		return err
	}

	return s.store.ApplyBlock(ctx, userID, blockedID)
}

// GetFriends lists the authenticated user's friends.
func (s *FriendService) GetFriends(ctx context.Context, token string) ([]models.User, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	return s.store.ListFriends(ctx, userID)
}
