package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/storage"
)

// AppendTransaction writes an immutable history row.
func (s *Store) AppendTransaction(ctx context.Context, t storage.Transaction) (storage.Transaction, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO transactions (user_id, type, amount, wallet_address, selected_chain,
	recipient_user_id, transaction_id, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
RETURNING id`,
		t.UserUUID, t.Type, money.Format18(t.Amount), nullText(t.WalletAddress),
		nullText(t.Chain), nullText(t.RecipientUUID), nullText(t.TransactionID),
		createdAt)
	if err := row.Scan(&t.ID); err != nil {
		if isUniqueViolation(err) {
			return storage.Transaction{}, storage.ErrConflict
		}
		return storage.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	t.CreatedAt = createdAt
	return t, nil
}

// ListTransactions returns rows where the user is sender or recipient,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, userUUID string, limit int) ([]storage.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, type, amount::text, wallet_address, selected_chain,
	recipient_user_id, transaction_id, created_at
FROM transactions
WHERE user_id = $1 OR recipient_user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]storage.Transaction, error) {
	var out []storage.Transaction
	for rows.Next() {
		var t storage.Transaction
		var amount string
		var walletAddress, chain, recipient, transactionID *string
		var createdAt time.Time
		if err := rows.Scan(&t.ID, &t.UserUUID, &t.Type, &amount, &walletAddress,
			&chain, &recipient, &transactionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount: %w", err)
		}
		t.Amount = parsed
		t.WalletAddress = textOf(walletAddress)
		t.Chain = textOf(chain)
		t.RecipientUUID = textOf(recipient)
		t.TransactionID = textOf(transactionID)
		t.CreatedAt = createdAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
