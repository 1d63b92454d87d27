package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/storage"
)

const profileColumns = `id, auth_user_id, wallet_balance::text, username,
self_verified_at, self_nullifier, account_deleted_at, created_at, updated_at`

func scanProfile(row pgx.Row) (storage.Profile, error) {
	var p storage.Profile
	var balance string
	var nullifier *string
	var verifiedAt, deletedAt *time.Time
	var createdAt, updatedAt time.Time
	if err := row.Scan(&p.UserUUID, &p.AuthUserID, &balance, &p.Username,
		&verifiedAt, &nullifier, &deletedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Profile{}, storage.ErrNotFound
		}
		return storage.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("parse stored balance: %w", err)
	}
	p.WalletBalance = parsed
	p.SelfNullifier = textOf(nullifier)
	p.SelfVerifiedAt = utcPtr(verifiedAt)
	p.AccountDeletedAt = utcPtr(deletedAt)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p storage.Profile) error {
	if strings.TrimSpace(p.UserUUID) == "" {
		return fmt.Errorf("profile uuid is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("profile username is required")
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO user_profiles (id, auth_user_id, wallet_balance, username,
	self_verified_at, self_nullifier, account_deleted_at, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $8)`,
		p.UserUUID, p.AuthUserID, money.Format18(p.WalletBalance), p.Username,
		p.SelfVerifiedAt, nullText(p.SelfNullifier), p.AccountDeletedAt, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userUUID string) (storage.Profile, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM user_profiles WHERE id = $1", userUUID)
	return scanProfile(row)
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (storage.Profile, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM user_profiles WHERE LOWER(username) = LOWER($1)",
		strings.TrimSpace(username))
	return scanProfile(row)
}

// RenameProfile claims a new username and keeps the denormalized party
// leader_username in sync, both inside one transaction so a founder can
// never end up with a stale leader name.
func (s *Store) RenameProfile(ctx context.Context, userUUID string, username string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("rename profile: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE user_profiles SET username = $2, updated_at = $3 WHERE id = $1`,
		userUUID, username, at.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update username: %w", err)
	}
	if err := requireAffected(tag); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE parties SET leader_username = $2, updated_at = $3 WHERE founded_by = $1`,
		userUUID, username, at.UTC()); err != nil {
		return fmt.Errorf("update leader username: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("rename profile: %w", err)
	}
	return nil
}

// SoftDeleteProfile stamps deletion and zeroes the balance. The
// verification timestamp survives so a re-registered identity cannot
// claim verification rewards twice.
func (s *Store) SoftDeleteProfile(ctx context.Context, userUUID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE user_profiles
SET account_deleted_at = $2, wallet_balance = 0, updated_at = $2
WHERE id = $1`,
		userUUID, at.UTC())
	if err != nil {
		return fmt.Errorf("soft delete profile: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) MarkVerified(ctx context.Context, userUUID string, nullifier string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE user_profiles
SET self_verified_at = $2, self_nullifier = $3, updated_at = $2
WHERE id = $1`,
		userUUID, at.UTC(), nullifier)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) FindNullifierOwner(ctx context.Context, nullifier string) (string, error) {
	var owner string
	row := s.pool.QueryRow(ctx,
		"SELECT id FROM user_profiles WHERE self_nullifier = $1", nullifier)
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("find nullifier owner: %w", err)
	}
	return owner, nil
}

// DebitBalance subtracts amount and returns the pre-debit value. The row
// lock from SELECT ... FOR UPDATE holds the balance stable across the
// read-then-write, so concurrent debits serialize instead of both
// observing the same balance.
func (s *Store) DebitBalance(ctx context.Context, userUUID string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance string
	row := tx.QueryRow(ctx,
		"SELECT wallet_balance::text FROM user_profiles WHERE id = $1 FOR UPDATE", userUUID)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, storage.ErrNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
	}
	previous, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse stored balance: %w", err)
	}
	if previous.LessThan(amount) {
		return decimal.Decimal{}, storage.ErrInsufficientBalance
	}

	next := previous.Sub(amount)
	if _, err := tx.Exec(ctx, `
UPDATE user_profiles SET wallet_balance = $2::numeric, updated_at = $3 WHERE id = $1`,
		userUUID, money.Format18(next), time.Now().UTC()); err != nil {
		return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
	}
	return previous, nil
}

// SetBalance overwrites the stored balance, used by the withdrawal
// reversal to restore the exact pre-debit value.
func (s *Store) SetBalance(ctx context.Context, userUUID string, balance decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE user_profiles SET wallet_balance = $2::numeric, updated_at = $3 WHERE id = $1`,
		userUUID, money.Format18(balance), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return requireAffected(tag)
}

// TransferBalance moves amount between two profiles inside one transaction.
// Rows lock in a stable order to avoid deadlock between crossed transfers.
func (s *Store) TransferBalance(ctx context.Context, fromUUID, toUUID string, amount decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("transfer balance: %w", err)
	}
	defer tx.Rollback(ctx)

	first, second := fromUUID, toUUID
	if second < first {
		first, second = second, first
	}
	balances := map[string]decimal.Decimal{}
	for _, id := range []string{first, second} {
		var balance string
		row := tx.QueryRow(ctx,
			"SELECT wallet_balance::text FROM user_profiles WHERE id = $1 FOR UPDATE", id)
		if err := row.Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("transfer balance: %w", err)
		}
		parsed, err := decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("parse stored balance: %w", err)
		}
		balances[id] = parsed
	}

	if balances[fromUUID].LessThan(amount) {
		return storage.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	for id, next := range map[string]decimal.Decimal{
		fromUUID: balances[fromUUID].Sub(amount),
		toUUID:   balances[toUUID].Add(amount),
	} {
		if _, err := tx.Exec(ctx, `
UPDATE user_profiles SET wallet_balance = $2::numeric, updated_at = $3 WHERE id = $1`,
			id, money.Format18(next), now); err != nil {
			return fmt.Errorf("transfer balance: %w", err)
		}
	}
	return tx.Commit(ctx)
}
