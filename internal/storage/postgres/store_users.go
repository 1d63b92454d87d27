package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/worldrepublic/republic/internal/storage"
)

const userColumns = "id, uuid, name, email, email_verified, image"

func scanUser(row pgx.Row) (storage.User, error) {
	var u storage.User
	var name, email, image *string
	var verified *time.Time
	if err := row.Scan(&u.ID, &u.UUID, &name, &email, &verified, &image); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Name = textOf(name)
	u.Email = textOf(email)
	u.Image = textOf(image)
	u.EmailVerified = utcPtr(verified)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	if strings.TrimSpace(u.UUID) == "" {
		return storage.User{}, fmt.Errorf("user uuid is required")
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO users (uuid, name, email, email_verified, image)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		u.UUID, nullText(u.Name), nullText(u.Email), u.EmailVerified, nullText(u.Image))
	if err := row.Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrConflict
		}
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (storage.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *Store) GetUserByUUID(ctx context.Context, uuid string) (storage.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE uuid = $1", uuid)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1",
		strings.TrimSpace(email))
	return scanUser(row)
}

func (s *Store) LinkAccount(ctx context.Context, a storage.Account) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO accounts (user_id, type, provider, provider_account_id)
VALUES ($1, $2, $3, $4)`,
		a.UserID, a.Type, a.Provider, a.ProviderAccountID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (storage.User, error) {
	row := s.pool.QueryRow(ctx, `
SELECT u.id, u.uuid, u.name, u.email, u.email_verified, u.image
FROM users u
JOIN accounts a ON a.user_id = u.id
WHERE a.provider = $1 AND a.provider_account_id = $2`,
		provider, providerAccountID)
	return scanUser(row)
}

// CreateSession stores a session. Expires is surfaced as the native
// timestamp; the session adapter normalizes it.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expires time.Time) (storage.SessionRecord, error) {
	if _, err := s.pool.Exec(ctx, `
INSERT INTO sessions (session_token, user_id, expires) VALUES ($1, $2, $3)`,
		token, userID, expires.UTC()); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return storage.SessionRecord{Token: token, UserID: userID, Expires: expires.UTC()}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var expires time.Time
	row := s.pool.QueryRow(ctx,
		"SELECT session_token, user_id, expires FROM sessions WHERE session_token = $1", token)
	if err := row.Scan(&record.Token, &record.UserID, &expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.Expires = expires.UTC()
	return record, nil
}

func (s *Store) UpdateSession(ctx context.Context, token string, expires time.Time) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var stored time.Time
	row := s.pool.QueryRow(ctx, `
UPDATE sessions SET expires = $2 WHERE session_token = $1
RETURNING session_token, user_id, expires`,
		token, expires.UTC())
	if err := row.Scan(&record.Token, &record.UserID, &stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("update session: %w", err)
	}
	record.Expires = stored.UTC()
	return record, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM sessions WHERE session_token = $1", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
