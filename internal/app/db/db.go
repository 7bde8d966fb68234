/*
Package db implements the persistence collaborator for users and messages.

Two backends share one contract: PostgreSQL through a pgx connection pool for deployments,
and SQLite through go-sqlite3 for local development and tests. Both apply their embedded
goose migrations when opened.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/logx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// Store is the full repository used by the process: the message/user contract consumed by
// the chat core plus the account operations used by the REST handlers.
type Store interface {
	SaveMessage(ctx context.Context, content, senderID, receiverID, senderColor string) (message.Message, error)
	FindMessage(ctx context.Context, id string) (message.Message, error)
	FindConversation(ctx context.Context, userA, userB string) ([]message.Message, error)
	FindUnread(ctx context.Context, receiverID string) ([]message.Message, error)
	FindReceived(ctx context.Context, receiverID string) ([]message.Message, error)
	SetRead(ctx context.Context, id string) (bool, error)
	FindUser(ctx context.Context, id string) (user.User, error)

	ListUsers(ctx context.Context) ([]user.User, error)
	CreateAccount(ctx context.Context, email, name, passwordHash, color string) (user.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (user.Account, error)
	UpdateProfile(ctx context.Context, id, name, color string) (user.User, error)

	Close() error
}

// Open connects to the backend named by driver ("postgres" or "sqlite") and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil

	case "sqlite":
		sqlDB, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(sqlDB), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewPool initializes a PostgreSQL connection pool and executes database migrations.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path and migrates it.
// SQLite serializes writers, so the handle is limited to a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := runMigrations(ctx, sqlDB, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return sqlDB, nil
}

// runMigrations applies all pending migrations found under dir of the embedded file system.
func runMigrations(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, dir string) error {
	migrations, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations %s: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.", "dialect", string(dialect), "applied", len(results))
	return nil
}
