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

const authenticatorColumns = `credential_id, user_id, user_handle, public_key,
counter, device_type, backed_up, transports`

func scanAuthenticator(row pgx.Row) (storage.Authenticator, error) {
	var a storage.Authenticator
	var transports *string
	var counter int64
	if err := row.Scan(&a.CredentialID, &a.UserID, &a.UserHandle, &a.PublicKey,
		&counter, &a.DeviceType, &a.BackedUp, &transports); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Authenticator{}, storage.ErrNotFound
		}
		return storage.Authenticator{}, fmt.Errorf("scan authenticator: %w", err)
	}
	a.Counter = uint32(counter)
	a.Transports = textOf(transports)
	return a, nil
}

// CreateAuthenticator inserts a credential unless its id already exists.
func (s *Store) CreateAuthenticator(ctx context.Context, a storage.Authenticator) error {
	if strings.TrimSpace(a.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO authenticators (credential_id, user_id, user_handle, public_key,
	counter, device_type, backed_up, transports)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (credential_id) DO NOTHING`,
		a.CredentialID, a.UserID, a.UserHandle, a.PublicKey,
		int64(a.Counter), a.DeviceType, a.BackedUp, nullText(a.Transports))
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}
	return nil
}

func (s *Store) GetAuthenticator(ctx context.Context, credentialID string) (storage.Authenticator, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+authenticatorColumns+" FROM authenticators WHERE credential_id = $1", credentialID)
	return scanAuthenticator(row)
}

func (s *Store) ListAuthenticators(ctx context.Context) ([]storage.Authenticator, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+authenticatorColumns+" FROM authenticators")
	if err != nil {
		return nil, fmt.Errorf("list authenticators: %w", err)
	}
	defer rows.Close()
	return collectAuthenticators(rows)
}

func (s *Store) ListAuthenticatorsByUser(ctx context.Context, userID int64) ([]storage.Authenticator, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+authenticatorColumns+" FROM authenticators WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("list authenticators by user: %w", err)
	}
	defer rows.Close()
	return collectAuthenticators(rows)
}

func collectAuthenticators(rows pgx.Rows) ([]storage.Authenticator, error) {
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
	tag, err := s.pool.Exec(ctx,
		"UPDATE authenticators SET counter = $2 WHERE credential_id = $1",
		credentialID, int64(counter))
	if err != nil {
		return fmt.Errorf("update authenticator counter: %w", err)
	}
	return requireAffected(tag)
}

// PutCeremony stores a pending WebAuthn challenge.
func (s *Store) PutCeremony(ctx context.Context, c storage.Ceremony) error {
	if strings.TrimSpace(c.Challenge) == "" {
		return fmt.Errorf("ceremony challenge is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO ceremonies (challenge, kind, temp_user_id, temp_email, display_name, session_json, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.Challenge, c.Kind, nullText(c.TempUserID), nullText(c.TempEmail),
		nullText(c.DisplayName), c.SessionJSON, c.ExpiresAt.UTC())
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
	var c storage.Ceremony
	var tempUserID, tempEmail, displayName *string
	var expiresAt time.Time
	row := s.pool.QueryRow(ctx, `
DELETE FROM ceremonies WHERE challenge = $1 AND kind = $2
RETURNING challenge, kind, temp_user_id, temp_email, display_name, session_json, expires_at`,
		challenge, kind)
	if err := row.Scan(&c.Challenge, &c.Kind, &tempUserID, &tempEmail, &displayName,
		&c.SessionJSON, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Ceremony{}, storage.ErrNotFound
		}
		return storage.Ceremony{}, fmt.Errorf("take ceremony: %w", err)
	}
	c.TempUserID = textOf(tempUserID)
	c.TempEmail = textOf(tempEmail)
	c.DisplayName = textOf(displayName)
	c.ExpiresAt = expiresAt.UTC()
	return c, nil
}

func (s *Store) DeleteExpiredCeremonies(ctx context.Context, now time.Time) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM ceremonies WHERE expires_at < $1", now.UTC()); err != nil {
		return fmt.Errorf("delete expired ceremonies: %w", err)
	}
	return nil
}
