package database

import (
	"context"
	"database/sql"
	"time"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// InsertMessage inserts the message and the sender's read receipt in one
// transaction so a concurrent unread count never sees the sender's own
// message as unread.
func (db *DB) InsertMessage(ctx context.Context, chatID, senderID int64, senderUsername, content string, now time.Time) (*models.Message, error) {
	msg := &models.Message{
		ChatID:         chatID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		Content:        content,
		Timestamp:      now,
	}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (chat_id, sender_id, sender_username, content, timestamp)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			chatID, senderID, senderUsername, content, now).Scan(&msg.ID)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_reads (message_id, user_id, read_at)
			VALUES ($1, $2, $3)`,
			msg.ID, senderID, now)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// ListMessagesDescending returns a window of the chat's messages ordered
// by timestamp descending, id descending on ties, so offset 0 starts at
// the newest message.
func (db *DB) ListMessagesDescending(ctx context.Context, chatID int64, offset, limit uint64) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, sender_username, content, timestamp
		FROM messages
		WHERE chat_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderUsername, &m.Content, &m.Timestamp)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return messages, nil
}

// CountMessages returns the number of messages in the chat.
func (db *DB) CountMessages(ctx context.Context, chatID int64) (uint64, error) {
	var count uint64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindDatabase)
	}
	return count, nil
}

// ListMessageIDs returns every message id in the chat.
func (db *DB) ListMessageIDs(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM messages WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return ids, nil
}

// CountUnreadInChat counts the chat's messages lacking a read receipt for
// the user.
func (db *DB) CountUnreadInChat(ctx context.Context, chatID, userID int64) (uint64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		LEFT JOIN message_reads r ON r.message_id = m.id AND r.user_id = $2
		WHERE m.chat_id = $1 AND r.message_id IS NULL`

	var count uint64
	if err := db.QueryRowContext(ctx, query, chatID, userID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.KindDatabase)
	}
	return count, nil
}

// CountUnreadForUser counts unread messages across every chat the user
// belongs to.
func (db *DB) CountUnreadForUser(ctx context.Context, userID int64) (uint64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN chat_members cm ON cm.chat_id = m.chat_id AND cm.user_id = $1
		LEFT JOIN message_reads r ON r.message_id = m.id AND r.user_id = $1
		WHERE r.message_id IS NULL`

	var count uint64
	if err := db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.KindDatabase)
	}
	return count, nil
}

// InsertReads batch-inserts read receipts, skipping rows that already
// exist, so the call is idempotent.
func (db *DB) InsertReads(ctx context.Context, userID int64, messageIDs []int64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO message_reads (message_id, user_id, read_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (message_id, user_id) DO NOTHING`)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}
		defer stmt.Close()

		for _, id := range messageIDs {
			if _, err := stmt.ExecContext(ctx, id, userID, now); err != nil {
				return errors.Wrap(err, errors.KindDatabase)
			}
		}
		return nil
	})
}

// ListReadMessageIDs returns the subset of messageIDs the user has read.
func (db *DB) ListReadMessageIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error) {
	if len(messageIDs) == 0 {
		return []int64{}, nil
	}

	query := `
		SELECT message_id FROM message_reads
		WHERE user_id = $1 AND message_id IN (` + int64Placeholders(2, len(messageIDs)) + `)`

	args := append([]any{userID}, int64Args(messageIDs)...)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return ids, nil
}

// ReadExists reports whether the user has a read receipt for the message.
func (db *DB) ReadExists(ctx context.Context, userID, messageID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM message_reads WHERE user_id = $1 AND message_id = $2
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, userID, messageID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}
