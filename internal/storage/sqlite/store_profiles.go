package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/storage"
)

const profileColumns = `id, auth_user_id, wallet_balance, username,
self_verified_at, self_nullifier, account_deleted_at, created_at, updated_at`

type profileScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row profileScanner) (storage.Profile, error) {
	var p storage.Profile
	var balance string
	var nullifier sql.NullString
	var verifiedAt, deletedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(&p.UserUUID, &p.AuthUserID, &balance, &p.Username,
		&verifiedAt, &nullifier, &deletedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Profile{}, storage.ErrNotFound
		}
		return storage.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("parse stored balance: %w", err)
	}
	p.WalletBalance = parsed
	p.SelfNullifier = nullifier.String
	p.SelfVerifiedAt = millisPtr(verifiedAt)
	p.AccountDeletedAt = millisPtr(deletedAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// CreateProfile inserts a profile row. The case-insensitive unique index on
// username is the authoritative uniqueness check.
func (s *Store) CreateProfile(ctx context.Context, p storage.Profile) error {
	if strings.TrimSpace(p.UserUUID) == "" {
		return fmt.Errorf("profile uuid is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("profile username is required")
	}
	now := toMillis(time.Now())
	createdAt := now
	if !p.CreatedAt.IsZero() {
		createdAt = toMillis(p.CreatedAt)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO user_profiles (id, auth_user_id, wallet_balance, username,
	self_verified_at, self_nullifier, account_deleted_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserUUID, p.AuthUserID, money.Format18(p.WalletBalance), p.Username,
		nullMillis(p.SelfVerifiedAt), nullString(p.SelfNullifier),
		nullMillis(p.AccountDeletedAt), createdAt, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userUUID string) (storage.Profile, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM user_profiles WHERE id = ?", userUUID)
	return scanProfile(row)
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (storage.Profile, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM user_profiles WHERE LOWER(username) = LOWER(?)",
		strings.TrimSpace(username))
	return scanProfile(row)
}

// RenameProfile claims a new username and keeps the denormalized party
// leader_username in sync, both inside one transaction so a founder can
// never end up with a stale leader name.
func (s *Store) RenameProfile(ctx context.Context, userUUID string, username string, at time.Time) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
UPDATE user_profiles SET username = ?, updated_at = ? WHERE id = ?`,
		username, toMillis(at), userUUID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update username: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE parties SET leader_username = ?, updated_at = ? WHERE founded_by = ?`,
		username, toMillis(at), userUUID); err != nil {
		return fmt.Errorf("update leader username: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// SoftDeleteProfile stamps deletion and zeroes the balance. The
// verification timestamp survives so a re-registered identity cannot
// claim verification rewards twice.
func (s *Store) SoftDeleteProfile(ctx context.Context, userUUID string, at time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE user_profiles
SET account_deleted_at = ?, wallet_balance = ?, updated_at = ?
WHERE id = ?`,
		toMillis(at), money.Format18(decimal.Zero), toMillis(at), userUUID)
	if err != nil {
		return fmt.Errorf("soft delete profile: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) MarkVerified(ctx context.Context, userUUID string, nullifier string, at time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE user_profiles
SET self_verified_at = ?, self_nullifier = ?, updated_at = ?
WHERE id = ?`,
		toMillis(at), nullifier, toMillis(at), userUUID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) FindNullifierOwner(ctx context.Context, nullifier string) (string, error) {
	var owner string
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id FROM user_profiles WHERE self_nullifier = ?", nullifier)
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("find nullifier owner: %w", err)
	}
	return owner, nil
}

// DebitBalance subtracts amount from the stored balance and returns the
// pre-debit value. The update is a compare-and-set against the exact
// stored balance string: if a concurrent debit won the race the update
// affects zero rows and the read retries, so two debits can never both
// consume the same balance.
func (s *Store) DebitBalance(ctx context.Context, userUUID string, amount decimal.Decimal) (decimal.Decimal, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		profile, err := s.GetProfile(ctx, userUUID)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if profile.WalletBalance.LessThan(amount) {
			return decimal.Decimal{}, storage.ErrInsufficientBalance
		}
		previous := profile.WalletBalance
		next := previous.Sub(amount)

		result, err := s.sqlDB.ExecContext(ctx, `
UPDATE user_profiles SET wallet_balance = ?, updated_at = ?
WHERE id = ? AND wallet_balance = ?`,
			money.Format18(next), toMillis(time.Now()), userUUID, money.Format18(previous))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
		}
		if affected == 1 {
			return previous, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("debit balance: too many concurrent updates")
}

// SetBalance overwrites the stored balance, used by the withdrawal
// reversal to restore the exact pre-debit value.
func (s *Store) SetBalance(ctx context.Context, userUUID string, balance decimal.Decimal) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE user_profiles SET wallet_balance = ?, updated_at = ? WHERE id = ?`,
		money.Format18(balance), toMillis(time.Now()), userUUID)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return requireAffected(result)
}

// TransferBalance moves amount between two profiles inside one transaction.
func (s *Store) TransferBalance(ctx context.Context, fromUUID, toUUID string, amount decimal.Decimal) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fromBalance, toBalance string
	if err := tx.QueryRowContext(ctx,
		"SELECT wallet_balance FROM user_profiles WHERE id = ?", fromUUID).Scan(&fromBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("transfer read sender: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT wallet_balance FROM user_profiles WHERE id = ?", toUUID).Scan(&toBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("transfer read recipient: %w", err)
	}

	from, err := decimal.NewFromString(fromBalance)
	if err != nil {
		return fmt.Errorf("parse sender balance: %w", err)
	}
	to, err := decimal.NewFromString(toBalance)
	if err != nil {
		return fmt.Errorf("parse recipient balance: %w", err)
	}
	if from.LessThan(amount) {
		return storage.ErrInsufficientBalance
	}

	now := toMillis(time.Now())
	if _, err := tx.ExecContext(ctx,
		"UPDATE user_profiles SET wallet_balance = ?, updated_at = ? WHERE id = ?",
		money.Format18(from.Sub(amount)), now, fromUUID); err != nil {
		return fmt.Errorf("transfer debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE user_profiles SET wallet_balance = ?, updated_at = ? WHERE id = ?",
		money.Format18(to.Add(amount)), now, toUUID); err != nil {
		return fmt.Errorf("transfer credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
