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

const partyColumns = `id, name, description, website_url, founded_by,
leader_username, created_at, updated_at, dissolved_at`

type partyScanner interface {
	Scan(dest ...any) error
}

func scanParty(row partyScanner) (storage.Party, error) {
	var p storage.Party
	var description, websiteURL sql.NullString
	var createdAt, updatedAt int64
	var dissolvedAt sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &description, &websiteURL, &p.FoundedBy,
		&p.LeaderUsername, &createdAt, &updatedAt, &dissolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Party{}, storage.ErrNotFound
		}
		return storage.Party{}, fmt.Errorf("scan party: %w", err)
	}
	p.Description = description.String
	p.WebsiteURL = websiteURL.String
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.DissolvedAt = millisPtr(dissolvedAt)
	return p, nil
}

func (s *Store) CreateParty(ctx context.Context, p storage.Party) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("party id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO parties (id, name, description, website_url, founded_by,
	leader_username, created_at, updated_at, dissolved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Description), nullString(p.WebsiteURL),
		p.FoundedBy, p.LeaderUsername, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
		nullMillis(p.DissolvedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

func (s *Store) GetParty(ctx context.Context, id string) (storage.Party, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE id = ?", id)
	return scanParty(row)
}

// GetPartyByFounder returns the founder's active party.
func (s *Store) GetPartyByFounder(ctx context.Context, founderUUID string) (storage.Party, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE founded_by = ? AND dissolved_at IS NULL",
		founderUUID)
	return scanParty(row)
}

func (s *Store) UpdateParty(ctx context.Context, p storage.Party) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE parties SET name = ?, description = ?, website_url = ?, updated_at = ?
WHERE id = ? AND dissolved_at IS NULL`,
		p.Name, nullString(p.Description), nullString(p.WebsiteURL),
		toMillis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) DissolveParty(ctx context.Context, id string, at time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE parties SET dissolved_at = ?, updated_at = ? WHERE id = ? AND dissolved_at IS NULL`,
		toMillis(at), toMillis(at), id)
	if err != nil {
		return fmt.Errorf("dissolve party: %w", err)
	}
	return requireAffected(result)
}

// ListParties returns active parties, newest first, with optional
// case-insensitive name search and limit/offset pagination.
func (s *Store) ListParties(ctx context.Context, filters storage.PartyFilters) ([]storage.Party, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + partyColumns + " FROM parties WHERE dissolved_at IS NULL"
	args := []any{}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query += " AND LOWER(name) LIKE ?"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var out []storage.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return out, nil
}
