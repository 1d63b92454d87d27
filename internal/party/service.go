// Package party manages political parties: founding, updates,
// dissolution, and the public listing.
package party

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/storage"
)

// nameMaxLength bounds party names.
const nameMaxLength = 100

// ErrAlreadyFounded is returned when the founder already leads an
// active party.
var ErrAlreadyFounded = errors.New(errors.CodeDuplicateParty, "founder already has an active party")

// Store is the slice of the storage surface the service needs.
type Store interface {
	CreateParty(ctx context.Context, p storage.Party) error
	GetParty(ctx context.Context, id string) (storage.Party, error)
	GetPartyByFounder(ctx context.Context, founderUUID string) (storage.Party, error)
	UpdateParty(ctx context.Context, p storage.Party) error
	DissolveParty(ctx context.Context, id string, at time.Time) error
	ListParties(ctx context.Context, filters storage.PartyFilters) ([]storage.Party, error)
	GetProfile(ctx context.Context, userUUID string) (storage.Profile, error)
}

// Service implements party operations.
type Service struct {
	store  Store
	logger *log.Logger
	clock  func() time.Time
}

// NewService wires the party service.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger, clock: time.Now}
}

// Draft carries the caller-editable party fields.
type Draft struct {
	Name        string
	Description string
	WebsiteURL  string
}

func (d Draft) validate() (Draft, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.WebsiteURL = strings.TrimSpace(d.WebsiteURL)
	if d.Name == "" {
		return Draft{}, errors.New(errors.CodeInvalidArgument, "party name is required")
	}
	if len(d.Name) > nameMaxLength {
		return Draft{}, errors.New(errors.CodeInvalidArgument, fmt.Sprintf("party name exceeds %d characters", nameMaxLength))
	}
	return d, nil
}

// Create founds a new party. A citizen leads at most one active party
// at a time; the leader username is copied from the founder's profile.
func (s *Service) Create(ctx context.Context, founderUUID string, draft Draft) (storage.Party, error) {
	draft, err := draft.validate()
	if err != nil {
		return storage.Party{}, err
	}

	if _, err := s.store.GetPartyByFounder(ctx, founderUUID); err == nil {
		return storage.Party{}, ErrAlreadyFounded
	} else if errors.CodeOf(err) != errors.CodeNotFound {
		return storage.Party{}, fmt.Errorf("check existing party: %w", err)
	}

	profile, err := s.store.GetProfile(ctx, founderUUID)
	if err != nil {
		return storage.Party{}, fmt.Errorf("load founder profile: %w", err)
	}

	now := s.clock().UTC()
	p := storage.Party{
		ID:             uuid.NewString(),
		Name:           draft.Name,
		Description:    draft.Description,
		WebsiteURL:     draft.WebsiteURL,
		FoundedBy:      founderUUID,
		LeaderUsername: profile.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateParty(ctx, p); err != nil {
		if errors.CodeOf(err) == errors.CodeConflict {
			return storage.Party{}, ErrAlreadyFounded
		}
		return storage.Party{}, fmt.Errorf("create party: %w", err)
	}
	return p, nil
}

// Get returns one party by id, dissolved or not.
func (s *Service) Get(ctx context.Context, id string) (storage.Party, error) {
	return s.store.GetParty(ctx, id)
}

// Update edits an active party. Only the founder may edit.
func (s *Service) Update(ctx context.Context, callerUUID, id string, draft Draft) (storage.Party, error) {
	draft, err := draft.validate()
	if err != nil {
		return storage.Party{}, err
	}

	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return storage.Party{}, err
	}
	if p.FoundedBy != callerUUID {
		return storage.Party{}, errors.New(errors.CodeUnauthorized, "only the founder can edit a party")
	}
	if p.DissolvedAt != nil {
		return storage.Party{}, storage.ErrNotFound
	}

	p.Name = draft.Name
	p.Description = draft.Description
	p.WebsiteURL = draft.WebsiteURL
	p.UpdatedAt = s.clock().UTC()
	if err := s.store.UpdateParty(ctx, p); err != nil {
		return storage.Party{}, err
	}
	return p, nil
}

// Dissolve soft-deletes an active party. Only the founder may dissolve.
func (s *Service) Dissolve(ctx context.Context, callerUUID, id string) error {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return err
	}
	if p.FoundedBy != callerUUID {
		return errors.New(errors.CodeUnauthorized, "only the founder can dissolve a party")
	}
	if p.DissolvedAt != nil {
		return storage.ErrNotFound
	}
	return s.store.DissolveParty(ctx, id, s.clock().UTC())
}

// List returns active parties, newest first, optionally filtered by a
// case-insensitive name search.
func (s *Service) List(ctx context.Context, filters storage.PartyFilters) ([]storage.Party, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	return s.store.ListParties(ctx, filters)
}
