package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

const liteMessageColumns = `id, content, sender_id, receiver_id, created_at, is_read, sender_color`

// SQLiteStore implements Store on a database/sql handle backed by go-sqlite3.
// Timestamps are stored as unix microseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already migrated handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLiteMessage(row rowScanner) (message.Message, error) {
	var (
		m       message.Message
		created int64
		color   sql.NullString
	)

	if err := row.Scan(&m.ID, &m.Content, &m.SenderID, &m.ReceiverID, &created, &m.IsRead, &color); err != nil {
		return message.Message{}, err
	}

	m.CreatedAt = time.UnixMicro(created).UTC()
	m.SenderColor = message.SenderColorOrLegacy(color.String)
	return m, nil
}

func collectLiteMessages(rows *sql.Rows) ([]message.Message, error) {
	defer rows.Close()

	messages := make([]message.Message, 0)
	for rows.Next() {
		m, err := scanLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// SaveMessage inserts a message with the same monotonic created_at rule as the Postgres store.
func (s *SQLiteStore) SaveMessage(ctx context.Context, content, senderID, receiverID, senderColor string) (message.Message, error) {
	now := time.Now().UTC().UnixMicro()

	var color sql.NullString
	if senderColor != "" {
		color = sql.NullString{String: senderColor, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, content, sender_id, receiver_id, created_at, sender_color)
		SELECT ?1, ?2, ?3, ?4, MAX(?5, COALESCE(MAX(created_at), ?5)), ?6
		FROM messages
		WHERE (sender_id = ?3 AND receiver_id = ?4) OR (sender_id = ?4 AND receiver_id = ?3)
		RETURNING `+liteMessageColumns,
		uuid.NewString(), content, senderID, receiverID, now, color,
	)

	m, err := scanLiteMessage(row)
	if err != nil {
		return message.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return m, nil
}

// FindMessage returns the message with id or message.ErrNotFound.
func (s *SQLiteStore) FindMessage(ctx context.Context, id string) (message.Message, error) {
	m, err := scanLiteMessage(s.db.QueryRowContext(ctx,
		`SELECT `+liteMessageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, message.ErrNotFound
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("find message: %w", err)
	}

	return m, nil
}

// FindConversation returns both directions of the conversation, oldest first.
func (s *SQLiteStore) FindConversation(ctx context.Context, userA, userB string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+liteMessageColumns+`
		FROM messages
		WHERE (sender_id = ?1 AND receiver_id = ?2) OR (sender_id = ?2 AND receiver_id = ?1)
		ORDER BY created_at ASC, seq ASC`,
		userA, userB,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return collectLiteMessages(rows)
}

// FindUnread returns unread messages addressed to receiverID, newest first.
func (s *SQLiteStore) FindUnread(ctx context.Context, receiverID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+liteMessageColumns+`
		FROM messages
		WHERE receiver_id = ? AND is_read = 0
		ORDER BY created_at DESC, seq DESC`,
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}

	return collectLiteMessages(rows)
}

// FindReceived returns every message addressed to receiverID, read or not, newest first.
func (s *SQLiteStore) FindReceived(ctx context.Context, receiverID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+liteMessageColumns+`
		FROM messages
		WHERE receiver_id = ?
		ORDER BY created_at DESC, seq DESC`,
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query received: %w", err)
	}

	return collectLiteMessages(rows)
}

// SetRead flips is_read; it reports false when the row was already read or does not exist.
func (s *SQLiteStore) SetRead(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ? AND is_read = 0`, id)
	if err != nil {
		return false, fmt.Errorf("set read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set read: %w", err)
	}

	return n > 0, nil
}

// FindUser returns the user with id or user.ErrNotFound.
func (s *SQLiteStore) FindUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("find user: %w", err)
	}

	return u, nil
}

// ListUsers returns every account ordered by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Color); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// CreateAccount inserts a new account; a duplicate email surfaces as a unique violation.
func (s *SQLiteStore) CreateAccount(ctx context.Context, email, name, passwordHash, color string) (user.Account, error) {
	account := user.Account{
		User:         user.User{ID: uuid.NewString(), Name: name, Color: color},
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, color, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.Name, account.PasswordHash, account.Color, time.Now().UTC().UnixMicro(),
	)
	if err != nil {
		return user.Account{}, fmt.Errorf("insert user: %w", err)
	}

	return account, nil
}

// FindAccountByEmail returns the account for email or user.ErrNotFound.
func (s *SQLiteStore) FindAccountByEmail(ctx context.Context, email string) (user.Account, error) {
	var a user.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, color, email, password_hash FROM users WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&a.ID, &a.Name, &a.Color, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Account{}, user.ErrNotFound
	}
	if err != nil {
		return user.Account{}, fmt.Errorf("find account: %w", err)
	}

	return a, nil
}

// UpdateProfile changes display name and color.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id, name, color string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET name = ?, color = ? WHERE id = ? RETURNING id, name, color`,
		name, color, id,
	).Scan(&u.ID, &u.Name, &u.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}
