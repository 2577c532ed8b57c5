// Package service holds the business rules for auth, friendships, and
// chats. Services validate the caller's token, consume the persistence
// gateway, and return domain errors; they never touch the wire format.
package service

import (
	"context"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/database"
	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
	"quic-chat-system/internal/validation"
)

// AuthService handles registration, login, and profile updates.
type AuthService struct {
	store  database.Store
	tokens *auth.TokenIssuer
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{store: store, tokens: tokens}
}

// AuthResult carries a fresh token and the id it validates to.
type AuthResult struct {
	Token  string
	UserID int64
}

// Register creates an account and logs the new user in.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.InsertUser(ctx, username, hash)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, UserID: user.ID}, nil
}

// Login authenticates a user. A wrong password and an unknown username
// produce the identical UserNotFound error so the response never reveals
// which factor failed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errors.KindUserNotFound) {
			return nil, errors.New(errors.KindUserNotFound)
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.KindUserNotFound)
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, UserID: user.ID}, nil
}

// UpdatePassword re-hashes and persists a new password for the token's
// user.
func (s *AuthService) UpdatePassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.store.UpdatePasswordHash(ctx, user.Username, hash)
}

// GetInfo returns the token holder's id and username.
func (s *AuthService) GetInfo(ctx context.Context, token string) (*models.PublicUser, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	pub := user.Public()
	return &pub, nil
}
