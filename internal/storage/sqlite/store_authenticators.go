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

const authenticatorColumns = `credential_id, user_id, user_handle, public_key,
counter, device_type, backed_up, transports`

type authenticatorScanner interface {
	Scan(dest ...any) error
}

func scanAuthenticator(row authenticatorScanner) (storage.Authenticator, error) {
	var a storage.Authenticator
	var transports sql.NullString
	var backedUp int
	if err := row.Scan(&a.CredentialID, &a.UserID, &a.UserHandle, &a.PublicKey,
		&a.Counter, &a.DeviceType, &backedUp, &transports); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Authenticator{}, storage.ErrNotFound
		}
		return storage.Authenticator{}, fmt.Errorf("scan authenticator: %w", err)
	}
	a.BackedUp = backedUp != 0
	a.Transports = transports.String
	return a, nil
}

// CreateAuthenticator inserts a credential unless its id already exists.
func (s *Store) CreateAuthenticator(ctx context.Context, a storage.Authenticator) error {
	if strings.TrimSpace(a.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	backedUp := 0
	if a.BackedUp {
		backedUp = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO authenticators (credential_id, user_id, user_handle, public_key,
	counter, device_type, backed_up, transports)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (credential_id) DO NOTHING`,
		a.CredentialID, a.UserID, a.UserHandle, a.PublicKey,
		a.Counter, a.DeviceType, backedUp, nullString(a.Transports))
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}
	return nil
}

func (s *Store) GetAuthenticator(ctx context.Context, credentialID string) (storage.Authenticator, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+authenticatorColumns+" FROM authenticators WHERE credential_id = ?", credentialID)
	return scanAuthenticator(row)
}

func (s *Store) ListAuthenticators(ctx context.Context) ([]storage.Authenticator, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+authenticatorColumns+" FROM authenticators")
	if err != nil {
		return nil, fmt.Errorf("list authenticators: %w", err)
	}
	defer rows.Close()
	return collectAuthenticators(rows)
}

func (s *Store) ListAuthenticatorsByUser(ctx context.Context, userID int64) ([]storage.Authenticator, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+authenticatorColumns+" FROM authenticators WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list authenticators by user: %w", err)
	}
	defer rows.Close()
	return collectAuthenticators(rows)
}

func collectAuthenticators(rows *sql.Rows) ([]storage.Authenticator, error) {
	var out []storage.Authenticator
	for rows.Next() {
		a, err := scanAuthenticator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authenticators: %w", err)
	}
	return out, nil
}

// UpdateAuthenticatorCounter advances the replay-protection counter.
func (s *Store) UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter uint32) error {
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE authenticators SET counter = ? WHERE credential_id = ?", counter, credentialID)
	if err != nil {
		return fmt.Errorf("update authenticator counter: %w", err)
	}
	return requireAffected(result)
}

// PutCeremony stores a pending WebAuthn challenge.
func (s *Store) PutCeremony(ctx context.Context, c storage.Ceremony) error {
	if strings.TrimSpace(c.Challenge) == "" {
		return fmt.Errorf("ceremony challenge is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ceremonies (challenge, kind, temp_user_id, temp_email, display_name, session_json, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Challenge, c.Kind, nullString(c.TempUserID), nullString(c.TempEmail),
		nullString(c.DisplayName), c.SessionJSON, toMillis(c.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put ceremony: %w", err)
	}
	return nil
}

// TakeCeremony deletes and returns a ceremony so challenges are single-use.
func (s *Store) TakeCeremony(ctx context.Context, challenge, kind string) (storage.Ceremony, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Ceremony{}, fmt.Errorf("begin take ceremony: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var c storage.Ceremony
	var tempUserID, tempEmail, displayName sql.NullString
	var expiresAt int64
	row := tx.QueryRowContext(ctx, `
SELECT challenge, kind, temp_user_id, temp_email, display_name, session_json, expires_at
FROM ceremonies WHERE challenge = ? AND kind = ?`, challenge, kind)
	if err := row.Scan(&c.Challenge, &c.Kind, &tempUserID, &tempEmail, &displayName,
		&c.SessionJSON, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Ceremony{}, storage.ErrNotFound
		}
		return storage.Ceremony{}, fmt.Errorf("take ceremony: %w", err)
	}
	c.TempUserID = tempUserID.String
	c.TempEmail = tempEmail.String
	c.DisplayName = displayName.String
	c.ExpiresAt = fromMillis(expiresAt)

	if _, err := tx.ExecContext(ctx, "DELETE FROM ceremonies WHERE challenge = ?", challenge); err != nil {
		return storage.Ceremony{}, fmt.Errorf("consume ceremony: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Ceremony{}, fmt.Errorf("commit take ceremony: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteExpiredCeremonies(ctx context.Context, now time.Time) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM ceremonies WHERE expires_at < ?", toMillis(now)); err != nil {
		return fmt.Errorf("delete expired ceremonies: %w", err)
	}
	return nil
}
