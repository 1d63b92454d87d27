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

const partyColumns = `id, name, description, website_url, founded_by,
leader_username, created_at, updated_at, dissolved_at`

func scanParty(row pgx.Row) (storage.Party, error) {
	var p storage.Party
	var description, websiteURL *string
	var createdAt, updatedAt time.Time
	var dissolvedAt *time.Time
	if err := row.Scan(&p.ID, &p.Name, &description, &websiteURL, &p.FoundedBy,
		&p.LeaderUsername, &createdAt, &updatedAt, &dissolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Party{}, storage.ErrNotFound
		}
		return storage.Party{}, fmt.Errorf("scan party: %w", err)
	}
	p.Description = textOf(description)
	p.WebsiteURL = textOf(websiteURL)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	p.DissolvedAt = utcPtr(dissolvedAt)
	return p, nil
}

func (s *Store) CreateParty(ctx context.Context, p storage.Party) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("party id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO parties (id, name, description, website_url, founded_by,
	leader_username, created_at, updated_at, dissolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, nullText(p.Description), nullText(p.WebsiteURL),
		p.FoundedBy, p.LeaderUsername, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
		p.DissolvedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

func (s *Store) GetParty(ctx context.Context, id string) (storage.Party, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE id = $1", id)
	return scanParty(row)
}

// GetPartyByFounder returns the founder's active party.
func (s *Store) GetPartyByFounder(ctx context.Context, founderUUID string) (storage.Party, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE founded_by = $1 AND dissolved_at IS NULL",
		founderUUID)
	return scanParty(row)
}

func (s *Store) UpdateParty(ctx context.Context, p storage.Party) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE parties SET name = $2, description = $3, website_url = $4, updated_at = $5
WHERE id = $1 AND dissolved_at IS NULL`,
		p.ID, p.Name, nullText(p.Description), nullText(p.WebsiteURL), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) DissolveParty(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE parties SET dissolved_at = $2, updated_at = $2 WHERE id = $1 AND dissolved_at IS NULL`,
		id, at.UTC())
	if err != nil {
		return fmt.Errorf("dissolve party: %w", err)
	}
	return requireAffected(tag)
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
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+search+"%")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
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
