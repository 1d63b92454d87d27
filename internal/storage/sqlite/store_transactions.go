package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO transactions (user_id, type, amount, wallet_address, selected_chain,
	recipient_user_id, transaction_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserUUID, t.Type, money.Format18(t.Amount), nullString(t.WalletAddress),
		nullString(t.Chain), nullString(t.RecipientUUID), nullString(t.TransactionID),
		toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Transaction{}, storage.ErrConflict
		}
		return storage.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.Transaction{}, fmt.Errorf("append transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = createdAt
	return t, nil
}

// ListTransactions returns rows where the user is sender or recipient,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, userUUID string, limit int) ([]storage.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, type, amount, wallet_address, selected_chain,
	recipient_user_id, transaction_id, created_at
FROM transactions
WHERE user_id = ? OR recipient_user_id = ?
ORDER BY created_at DESC
LIMIT ?`, userUUID, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []storage.Transaction
	for rows.Next() {
		var t storage.Transaction
		var amount string
		var walletAddress, chain, recipient, transactionID sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.UserUUID, &t.Type, &amount, &walletAddress,
			&chain, &recipient, &transactionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount: %w", err)
		}
		t.Amount = parsed
		t.WalletAddress = walletAddress.String
		t.Chain = chain.String
		t.RecipientUUID = recipient.String
		t.TransactionID = transactionID.String
		t.CreatedAt = fromMillis(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
