package database

import (
	"context"
	"database/sql"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// FriendshipExists reports whether a friendship row exists in either
// direction.
func (db *DB) FriendshipExists(ctx context.Context, a, b int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM friends
			WHERE (user_id = $1 AND friend_id = $2)
			   OR (user_id = $2 AND friend_id = $1)
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, a, b).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}

// InsertFriendshipPair creates both directed rows atomically.
func (db *DB) InsertFriendshipPair(ctx context.Context, a, b int64) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertFriendshipPairTx(ctx, tx, a, b)
	})
}

func insertFriendshipPairTx(ctx context.Context, tx *sql.Tx, a, b int64) error {
	for _, pair := range [][2]int64{{a, b}, {b, a}} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO friends (user_id, friend_id) VALUES ($1, $2)`,
			pair[0], pair[1])
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}
	}
	return nil
}

// DeleteFriendshipPair removes both directed rows atomically.
func (db *DB) DeleteFriendshipPair(ctx context.Context, a, b int64) error {
	query := `
		DELETE FROM friends
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)`

	if _, err := db.ExecContext(ctx, query, a, b); err != nil {
		return errors.Wrap(err, errors.KindDatabase)
	}
	return nil
}

// ListFriends returns the users the given user is friends with.
func (db *DB) ListFriends(ctx context.Context, userID int64) ([]models.User, error) {
	query := `
		SELECT u.id, u.username
		FROM friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.id ASC`

	return db.listUsersByQuery(ctx, query, userID)
}

// FindPendingRequest returns the pending request for the ordered pair, or
// nil when none exists.
func (db *DB) FindPendingRequest(ctx context.Context, senderID, receiverID int64) (*models.FriendRequest, error) {
	query := `
		SELECT sender_id, receiver_id, status, created_at
		FROM friend_requests
		WHERE sender_id = $1 AND receiver_id = $2 AND status = $3
		LIMIT 1`

	req := &models.FriendRequest{}
	err := db.QueryRowContext(ctx, query, senderID, receiverID, models.StatusPending).
		Scan(&req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	return req, nil
}

// InsertFriendRequest creates a pending request for the ordered pair.
func (db *DB) InsertFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	query := `
		INSERT INTO friend_requests (sender_id, receiver_id, status)
		VALUES ($1, $2, $3)`

	if _, err := db.ExecContext(ctx, query, senderID, receiverID, models.StatusPending); err != nil {
		return errors.Wrap(err, errors.KindDatabase)
	}
	return nil
}

// AcceptPendingRequest flips the pending row to accepted and creates both
// friendship rows in one transaction. The accepted row remains as a
// historical record; the friendship rows are the authoritative state.
func (db *DB) AcceptPendingRequest(ctx context.Context, senderID, receiverID int64) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE friend_requests
			SET status = $3
			WHERE sender_id = $1 AND receiver_id = $2 AND status = $4`,
			senderID, receiverID, models.StatusAccepted, models.StatusPending)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}
		if affected == 0 {
			return errors.New(errors.KindUserNotFound)
		}

		return insertFriendshipPairTx(ctx, tx, senderID, receiverID)
	})
}

// DeletePendingRequest removes the pending row for the ordered pair.
func (db *DB) DeletePendingRequest(ctx context.Context, senderID, receiverID int64) error {
	query := `
		DELETE FROM friend_requests
		WHERE sender_id = $1 AND receiver_id = $2 AND status = $3`

	if _, err := db.ExecContext(ctx, query, senderID, receiverID, models.StatusPending); err != nil {
		return errors.Wrap(err, errors.KindDatabase)
	}
	return nil
}

// ListIncomingPending returns the senders of pending requests addressed to
// userID.
func (db *DB) ListIncomingPending(ctx context.Context, userID int64) ([]models.User, error) {
	query := `
		SELECT u.id, u.username
		FROM friend_requests fr
		JOIN users u ON u.id = fr.sender_id
		WHERE fr.receiver_id = $1 AND fr.status = $2
		ORDER BY u.id ASC`

	return db.listUsersByQuery(ctx, query, userID, models.StatusPending)
}

// ListOutgoingPending returns the receivers of pending requests sent by
// userID.
func (db *DB) ListOutgoingPending(ctx context.Context, userID int64) ([]models.User, error) {
	query := `
		SELECT u.id, u.username
		FROM friend_requests fr
		JOIN users u ON u.id = fr.receiver_id
		WHERE fr.sender_id = $1 AND fr.status = $2
		ORDER BY u.id ASC`

	return db.listUsersByQuery(ctx, query, userID, models.StatusPending)
}

// BlockExistsBetween reports whether a block row exists in either
// direction.
func (db *DB) BlockExistsBetween(ctx context.Context, a, b int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM blocked_users
			WHERE (user_id = $1 AND blocked_id = $2)
			   OR (user_id = $2 AND blocked_id = $1)
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, a, b).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}

// ApplyBlock records the block and deletes friendships and friend requests
// in both directions, all in one transaction.
func (db *DB) ApplyBlock(ctx context.Context, userID, blockedID int64) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blocked_users (user_id, blocked_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			userID, blockedID)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM friends
			WHERE (user_id = $1 AND friend_id = $2)
			   OR (user_id = $2 AND friend_id = $1)`,
			userID, blockedID)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM friend_requests
			WHERE (sender_id = $1 AND receiver_id = $2)
			   OR (sender_id = $2 AND receiver_id = $1)`,
			userID, blockedID)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		return nil
	})
}
