// Package postgres implements storage over a PostgreSQL pool, the driver
// used for shared deployments where the database lives behind a URL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worldrepublic/republic/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements the full storage surface over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database URL and applies migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT UNIQUE NOT NULL,
			name TEXT,
			email TEXT,
			email_verified TIMESTAMPTZ,
			image TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			provider TEXT NOT NULL,
			provider_account_id TEXT NOT NULL,
			UNIQUE (provider, provider_account_id)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS authenticators (
			credential_id TEXT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_handle TEXT NOT NULL DEFAULT '',
			public_key TEXT NOT NULL,
			counter BIGINT NOT NULL DEFAULT 0,
			device_type TEXT NOT NULL DEFAULT '',
			backed_up BOOLEAN NOT NULL DEFAULT FALSE,
			transports TEXT,
			PRIMARY KEY (user_id, credential_id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS authenticators_credential_id_idx
			ON authenticators (credential_id);`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			id TEXT PRIMARY KEY,
			auth_user_id BIGINT NOT NULL,
			wallet_balance NUMERIC(36,18) NOT NULL DEFAULT 0,
			username TEXT NOT NULL,
			self_verified_at TIMESTAMPTZ,
			self_nullifier TEXT,
			account_deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS user_profiles_username_idx
			ON user_profiles (LOWER(username));`,
		`CREATE UNIQUE INDEX IF NOT EXISTS user_profiles_nullifier_idx
			ON user_profiles (self_nullifier) WHERE self_nullifier IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC(36,18) NOT NULL,
			wallet_address TEXT,
			selected_chain TEXT,
			recipient_user_id TEXT,
			transaction_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS transactions_transaction_id_idx
			ON transactions (transaction_id) WHERE transaction_id IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS parties (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			website_url TEXT,
			founded_by TEXT NOT NULL,
			leader_username TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			dissolved_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS ceremonies (
			challenge TEXT NOT NULL,
			kind TEXT NOT NULL,
			temp_user_id TEXT,
			temp_email TEXT,
			display_name TEXT,
			session_json TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (challenge, kind)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// isUniqueViolation detects Postgres unique constraint failures.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func textOf(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	at := value.UTC()
	return &at
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
