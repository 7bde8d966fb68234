package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

const pgMessageColumns = `id::text, content, sender_id::text, receiver_id::text, created_at, is_read, sender_color`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// isUUID guards queries against ids the uuid column type would reject;
// such ids cannot exist, so lookups report not-found rather than a driver error.
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}

func scanPgMessage(row pgx.Row) (message.Message, error) {
	var (
		m     message.Message
		color pgtype.Text
	)

	if err := row.Scan(&m.ID, &m.Content, &m.SenderID, &m.ReceiverID, &m.CreatedAt, &m.IsRead, &color); err != nil {
		return message.Message{}, err
	}

	m.CreatedAt = m.CreatedAt.UTC()
	m.SenderColor = message.SenderColorOrLegacy(color.String)
	return m, nil
}

func collectPgMessages(rows pgx.Rows) ([]message.Message, error) {
	defer rows.Close()

	messages := make([]message.Message, 0)
	for rows.Next() {
		m, err := scanPgMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// SaveMessage inserts a message. created_at never goes below the newest message already
// stored in the same conversation, so storage order and createdAt order agree.
func (s *PostgresStore) SaveMessage(ctx context.Context, content, senderID, receiverID, senderColor string) (message.Message, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, content, sender_id, receiver_id, created_at, sender_color)
		SELECT $1::uuid, $2::text, $3::uuid, $4::uuid,
		       GREATEST($5::timestamptz, COALESCE(MAX(created_at), $5::timestamptz)), $6::varchar
		FROM messages
		WHERE (sender_id = $3::uuid AND receiver_id = $4::uuid) OR (sender_id = $4::uuid AND receiver_id = $3::uuid)
		RETURNING `+pgMessageColumns,
		uuid.NewString(), content, senderID, receiverID, now,
		pgtype.Text{String: senderColor, Valid: senderColor != ""},
	)

	m, err := scanPgMessage(row)
	if err != nil {
		return message.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return m, nil
}

// FindMessage returns the message with id or message.ErrNotFound.
func (s *PostgresStore) FindMessage(ctx context.Context, id string) (message.Message, error) {
	if !isUUID(id) {
		return message.Message{}, message.ErrNotFound
	}

	m, err := scanPgMessage(s.pool.QueryRow(ctx,
		`SELECT `+pgMessageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return message.Message{}, message.ErrNotFound
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("find message: %w", err)
	}

	return m, nil
}

// FindConversation returns both directions of the conversation, oldest first.
func (s *PostgresStore) FindConversation(ctx context.Context, userA, userB string) ([]message.Message, error) {
	if !isUUID(userA) || !isUUID(userB) {
		return []message.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, seq ASC`,
		userA, userB,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return collectPgMessages(rows)
}

// FindUnread returns unread messages addressed to receiverID, newest first.
func (s *PostgresStore) FindUnread(ctx context.Context, receiverID string) ([]message.Message, error) {
	if !isUUID(receiverID) {
		return []message.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages
		WHERE receiver_id = $1 AND NOT is_read
		ORDER BY created_at DESC, seq DESC`,
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}

	return collectPgMessages(rows)
}

// FindReceived returns every message addressed to receiverID, read or not, newest first.
func (s *PostgresStore) FindReceived(ctx context.Context, receiverID string) ([]message.Message, error) {
	if !isUUID(receiverID) {
		return []message.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages
		WHERE receiver_id = $1
		ORDER BY created_at DESC, seq DESC`,
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query received: %w", err)
	}

	return collectPgMessages(rows)
}

// SetRead flips is_read; it reports false when the row was already read or does not exist.
func (s *PostgresStore) SetRead(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}

	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1 AND NOT is_read`, id)
	if err != nil {
		return false, fmt.Errorf("set read: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// FindUser returns the user with id or user.ErrNotFound.
func (s *PostgresStore) FindUser(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}

	var u user.User
	err := s.pool.QueryRow(ctx, `SELECT id::text, name, color FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("find user: %w", err)
	}

	return u, nil
}

// ListUsers returns every account ordered by name.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name, color FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.Name, &u.Color)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// CreateAccount inserts a new account; a duplicate email surfaces as a unique violation.
func (s *PostgresStore) CreateAccount(ctx context.Context, email, name, passwordHash, color string) (user.Account, error) {
	account := user.Account{
		User:         user.User{ID: uuid.NewString(), Name: name, Color: color},
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, color) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Email, account.Name, account.PasswordHash, account.Color,
	)
	if err != nil {
		return user.Account{}, fmt.Errorf("insert user: %w", err)
	}

	return account, nil
}

// FindAccountByEmail returns the account for email or user.ErrNotFound.
func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (user.Account, error) {
	var a user.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, color, email, password_hash FROM users WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&a.ID, &a.Name, &a.Color, &a.Email, &a.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.Account{}, user.ErrNotFound
	}
	if err != nil {
		return user.Account{}, fmt.Errorf("find account: %w", err)
	}

	return a, nil
}

// UpdateProfile changes display name and color. Stored messages keep their own sender_color.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id, name, color string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}

	var u user.User
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, color = $3 WHERE id = $1 RETURNING id::text, name, color`,
		id, name, color,
	).Scan(&u.ID, &u.Name, &u.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}
