// Package member manages citizen profiles: lazy creation, usernames,
// search, and account deletion.
package member

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/storage"
)

// usernameAttempts bounds retries when a generated handle collides.
const usernameAttempts = 10

// ErrUsernameTaken is returned when another profile already owns the
// requested username.
var ErrUsernameTaken = errors.New(errors.CodeUsernameTaken, "username is already taken")

// Store is the slice of the storage surface the service needs.
type Store interface {
	CreateProfile(ctx context.Context, p storage.Profile) error
	GetProfile(ctx context.Context, userUUID string) (storage.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (storage.Profile, error)
	RenameProfile(ctx context.Context, userUUID string, username string, at time.Time) error
	SoftDeleteProfile(ctx context.Context, userUUID string, at time.Time) error
}

// Service implements member operations.
type Service struct {
	store  Store
	logger *log.Logger
	clock  func() time.Time
}

// NewService wires the member service.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger, clock: time.Now}
}

// EnsureProfile returns the user's profile, creating one with a generated
// username on first contact. Generated handles retry on collision; the
// insert's unique constraint is the authoritative check.
func (s *Service) EnsureProfile(ctx context.Context, user storage.User) (storage.Profile, error) {
	profile, err := s.store.GetProfile(ctx, user.UUID)
	if err == nil {
		return profile, nil
	}
	if errors.CodeOf(err) != errors.CodeNotFound {
		return storage.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	now := s.clock().UTC()
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		username, err := generateUsername()
		if err != nil {
			return storage.Profile{}, err
		}
		createErr := s.store.CreateProfile(ctx, storage.Profile{
			UserUUID:   user.UUID,
			AuthUserID: user.ID,
			Username:   username,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if createErr == nil {
			return s.store.GetProfile(ctx, user.UUID)
		}
		if errors.CodeOf(createErr) == errors.CodeConflict {
			// Either the handle collided or a concurrent request created
			// the profile first; re-read settles which.
			if profile, getErr := s.store.GetProfile(ctx, user.UUID); getErr == nil {
				return profile, nil
			}
			continue
		}
		return storage.Profile{}, fmt.Errorf("create profile: %w", createErr)
	}
	return storage.Profile{}, fmt.Errorf("create profile: exhausted %d username attempts", usernameAttempts)
}

// Profile loads a profile by user UUID.
func (s *Service) Profile(ctx context.Context, userUUID string) (storage.Profile, error) {
	return s.store.GetProfile(ctx, userUUID)
}

// SetUsername validates and claims a username, keeping the denormalized
// party leader_username in sync when the user founded a party.
func (s *Service) SetUsername(ctx context.Context, userUUID, username string) (storage.Profile, error) {
	normalized := NormalizeUsername(username)
	if err := ValidateUsername(normalized); err != nil {
		return storage.Profile{}, err
	}

	if owner, err := s.store.GetProfileByUsername(ctx, normalized); err == nil {
		if owner.UserUUID != userUUID {
			return storage.Profile{}, ErrUsernameTaken
		}
		return owner, nil
	} else if errors.CodeOf(err) != errors.CodeNotFound {
		return storage.Profile{}, fmt.Errorf("check username: %w", err)
	}

	if err := s.store.RenameProfile(ctx, userUUID, normalized, s.clock().UTC()); err != nil {
		if errors.CodeOf(err) == errors.CodeConflict {
			return storage.Profile{}, ErrUsernameTaken
		}
		return storage.Profile{}, fmt.Errorf("rename profile: %w", err)
	}
	return s.store.GetProfile(ctx, userUUID)
}

// SearchByUsername finds an active profile by exact username,
// case-insensitively. Soft-deleted accounts are invisible.
func (s *Service) SearchByUsername(ctx context.Context, username string) (storage.Profile, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return storage.Profile{}, errors.New(errors.CodeInvalidUsername, "username is required")
	}
	profile, err := s.store.GetProfileByUsername(ctx, normalized)
	if err != nil {
		return storage.Profile{}, err
	}
	if profile.AccountDeletedAt != nil {
		return storage.Profile{}, storage.ErrNotFound
	}
	return profile, nil
}

// DeleteAccount soft-deletes the profile: the deletion timestamp is
// stamped, the balance zeroed, and the verification state preserved.
func (s *Service) DeleteAccount(ctx context.Context, userUUID string) error {
	if err := s.store.SoftDeleteProfile(ctx, userUUID, s.clock().UTC()); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
