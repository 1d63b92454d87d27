package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/worldrepublic/republic/internal/storage"
)

const userColumns = "id, uuid, name, email, email_verified, image"

func scanUser(row *sql.Row) (storage.User, error) {
	var u storage.User
	var name, email, image sql.NullString
	var verified sql.NullInt64
	if err := row.Scan(&u.ID, &u.UUID, &name, &email, &verified, &image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Name = name.String
	u.Email = email.String
	u.Image = image.String
	u.EmailVerified = millisPtr(verified)
	return u, nil
}

// CreateUser inserts a new user row and returns it with the generated id.
func (s *Store) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	if strings.TrimSpace(u.UUID) == "" {
		return storage.User{}, fmt.Errorf("user uuid is required")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (uuid, name, email, email_verified, image)
VALUES (?, ?, ?, ?, ?)`,
		u.UUID, nullString(u.Name), nullString(u.Email), nullMillis(u.EmailVerified), nullString(u.Image))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrConflict
		}
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.User{}, fmt.Errorf("create user id: %w", err)
	}
	u.ID = id
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (storage.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *Store) GetUserByUUID(ctx context.Context, uuid string) (storage.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE uuid = ?", uuid)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// LinkAccount records a provider account for a user.
func (s *Store) LinkAccount(ctx context.Context, a storage.Account) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (user_id, type, provider, provider_account_id)
VALUES (?, ?, ?, ?)`,
		a.UserID, a.Type, a.Provider, a.ProviderAccountID)
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

// GetUserByAccount resolves a user through a linked provider account.
func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (storage.User, error) {
	var userID int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id FROM accounts WHERE provider = ? AND provider_account_id = ?`,
		provider, providerAccountID)
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get account: %w", err)
	}
	return s.GetUserByID(ctx, userID)
}

// CreateSession stores a web session. Expiry is surfaced as millisecond
// integers, matching how this driver stores timestamps.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expires time.Time) (storage.SessionRecord, error) {
	if strings.TrimSpace(token) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session token is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (session_token, user_id, expires) VALUES (?, ?, ?)`,
		token, userID, toMillis(expires))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.SessionRecord{}, storage.ErrConflict
		}
		return storage.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return storage.SessionRecord{Token: token, UserID: userID, Expires: toMillis(expires)}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var expires int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_token, user_id, expires FROM sessions WHERE session_token = ?`, token)
	if err := row.Scan(&record.Token, &record.UserID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.Expires = expires
	return record, nil
}

func (s *Store) UpdateSession(ctx context.Context, token string, expires time.Time) (storage.SessionRecord, error) {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET expires = ? WHERE session_token = ?`, toMillis(expires), token)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return s.GetSession(ctx, token)
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions WHERE session_token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
