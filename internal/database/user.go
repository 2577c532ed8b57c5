package database

import (
	"context"
	"database/sql"
	"strings"

	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
)

// InsertUser creates a new user. Username uniqueness is enforced by the
// users_username_key index; a violation surfaces as KindUserAlreadyExists.
func (db *DB) InsertUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{Username: username, PasswordHash: passwordHash}

	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query, username, passwordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "users_username_key") {
			return nil, errors.New(errors.KindUserAlreadyExists)
		}
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return user, nil
}

// FindUserByUsername retrieves a user by username (case-sensitive).
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, created_at, last_login
		FROM users
		WHERE username = $1`

	return db.scanUser(db.QueryRowContext(ctx, query, username))
}

// FindUserByID retrieves a user by id.
func (db *DB) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, created_at, last_login
		FROM users
		WHERE id = $1`

	return db.scanUser(db.QueryRowContext(ctx, query, id))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &lastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.KindUserNotFound)
		}
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored hash for username.
func (db *DB) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE username = $1`

	result, err := db.ExecContext(ctx, query, username, passwordHash)
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

	return nil
}

// listUsersByQuery runs a query whose rows are (id, username) pairs.
func (db *DB) listUsersByQuery(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, errors.Wrap(err, errors.KindDatabase)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindDatabase)
	}

	return users, nil
}
