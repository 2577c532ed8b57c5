package database

import (
	"context"
	"database/sql"
	"time"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// CreateChat inserts the chat row and one member row per id in a single
// transaction; a failed member insert rolls back the chat row.
func (db *DB) CreateChat(ctx context.Context, name *string, isGroup bool, memberIDs []int64, now time.Time) (*models.Chat, error) {
	chat := &models.Chat{IsGroup: isGroup, CreatedAt: now}
	if name != nil {
		chat.Name = *name
	}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO chats (name, is_group, created_at)
			VALUES ($1, $2, $3)
			RETURNING id`,
			nullableString(name), isGroup, now).Scan(&chat.ID)
		if err != nil {
			return errors.Wrap(err, errors.KindDatabase)
		}

		for _, uid := range memberIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`,
				chat.ID, uid)
			if err != nil {
				return errors.Wrap(err, errors.KindDatabase)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return chat, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GroupChatNameExists reports whether a group chat with the given name
// already exists.
func (db *DB) GroupChatNameExists(ctx context.Context, name string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM chats WHERE is_group = TRUE AND name = $1
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}

// OneOnOneExists reports whether a non-group chat whose members are exactly
// {a, b} exists.
func (db *DB) OneOnOneExists(ctx context.Context, a, b int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM chats c
			WHERE c.is_group = FALSE
			  AND EXISTS(SELECT 1 FROM chat_members WHERE chat_id = c.id AND user_id = $1)
			  AND EXISTS(SELECT 1 FROM chat_members WHERE chat_id = c.id AND user_id = $2)
			  AND (SELECT COUNT(*) FROM chat_members WHERE chat_id = c.id) = 2
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, a, b).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}

// ListChatsForUserPaged returns one page of the user's chats ordered by
// last activity: the latest message timestamp, or the chat's creation time
// for chats with no messages, descending, with chat id descending as the
// tie-break.
func (db *DB) ListChatsForUserPaged(ctx context.Context, userID int64, page, pageSize uint64) ([]models.Chat, error) {
	query := `
		SELECT c.id, c.name, c.is_group, c.created_at
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id
		LEFT JOIN (
			SELECT chat_id, MAX(timestamp) AS last_activity
			FROM messages
			GROUP BY chat_id
		) m ON m.chat_id = c.id
		WHERE cm.user_id = $1
		ORDER BY COALESCE(m.last_activity, c.created_at) DESC, c.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, userID, pageSize, page*pageSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		var chat models.Chat
		var name sql.NullString
		if err := rows.Scan(&chat.ID, &name, &chat.IsGroup, &chat.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		chat.Name = name.String
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return chats, nil
}

// CountChatsForUser returns the number of chats the user belongs to.
func (db *DB) CountChatsForUser(ctx context.Context, userID int64) (uint64, error) {
	var count uint64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_members WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindDatabase)
	}
	return count, nil
}

// IsChatMember reports whether the user belongs to the chat.
func (db *DB) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := db.QueryRowContext(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.KindDatabase)
	}
	return exists, nil
}

// ListChatMemberIDs returns every member id of the chat.
func (db *DB) ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY user_id ASC`, chatID)
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

// ListOtherUsernames returns the usernames of every member except
// currentUserID, ordered by user id ascending.
func (db *DB) ListOtherUsernames(ctx context.Context, chatID, currentUserID int64) ([]string, error) {
	query := `
		SELECT u.username
		FROM chat_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.chat_id = $1 AND cm.user_id <> $2
		ORDER BY cm.user_id ASC`

	rows, err := db.QueryContext(ctx, query, chatID, currentUserID)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return names, nil
}
