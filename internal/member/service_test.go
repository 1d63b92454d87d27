package member

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	platformerrors "github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/storage"
)

type fakeStore struct {
	profiles      map[string]storage.Profile
	conflictNext  int
	leaderUpdates []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]storage.Profile{}}
}

func (f *fakeStore) CreateProfile(_ context.Context, p storage.Profile) error {
	if f.conflictNext > 0 {
		f.conflictNext--
		return storage.ErrConflict
	}
	for _, existing := range f.profiles {
		if strings.EqualFold(existing.Username, p.Username) {
			return storage.ErrConflict
		}
	}
	if _, ok := f.profiles[p.UserUUID]; ok {
		return storage.ErrConflict
	}
	f.profiles[p.UserUUID] = p
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userUUID string) (storage.Profile, error) {
	profile, ok := f.profiles[userUUID]
	if !ok {
		return storage.Profile{}, storage.ErrNotFound
	}
	return profile, nil
}

func (f *fakeStore) GetProfileByUsername(_ context.Context, username string) (storage.Profile, error) {
	for _, profile := range f.profiles {
		if strings.EqualFold(profile.Username, username) {
			return profile, nil
		}
	}
	return storage.Profile{}, storage.ErrNotFound
}

func (f *fakeStore) RenameProfile(_ context.Context, userUUID string, username string, at time.Time) error {
	profile, ok := f.profiles[userUUID]
	if !ok {
		return storage.ErrNotFound
	}
	profile.Username = username
	profile.UpdatedAt = at
	f.profiles[userUUID] = profile
	f.leaderUpdates = append(f.leaderUpdates, userUUID+"="+username)
	return nil
}

func (f *fakeStore) SoftDeleteProfile(_ context.Context, userUUID string, at time.Time) error {
	profile, ok := f.profiles[userUUID]
	if !ok {
		return storage.ErrNotFound
	}
	profile.AccountDeletedAt = &at
	f.profiles[userUUID] = profile
	return nil
}

func newTestService(store Store) *Service {
	service := NewService(store, nil)
	service.clock = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }
	return service
}

func TestEnsureProfileCreatesWithGeneratedUsername(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	profile, err := service.EnsureProfile(context.Background(), storage.User{ID: 1, UUID: "uuid-1"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if !strings.HasPrefix(profile.Username, "citizen_") {
		t.Fatalf("unexpected username: %q", profile.Username)
	}
	if len(profile.Username) != len("citizen_")+8 {
		t.Fatalf("unexpected username length: %q", profile.Username)
	}
	if profile.AuthUserID != 1 {
		t.Fatalf("unexpected auth user id: %d", profile.AuthUserID)
	}
}

func TestEnsureProfileIdempotent(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	first, err := service.EnsureProfile(context.Background(), storage.User{ID: 1, UUID: "uuid-1"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	second, err := service.EnsureProfile(context.Background(), storage.User{ID: 1, UUID: "uuid-1"})
	if err != nil {
		t.Fatalf("ensure profile again: %v", err)
	}
	if first.Username != second.Username {
		t.Fatalf("profile recreated: %q != %q", first.Username, second.Username)
	}
	if len(store.profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(store.profiles))
	}
}

func TestEnsureProfileRetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	store.conflictNext = 3
	service := newTestService(store)

	profile, err := service.EnsureProfile(context.Background(), storage.User{ID: 1, UUID: "uuid-1"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.Username == "" {
		t.Fatal("expected generated username after retries")
	}
}

func TestEnsureProfileGivesUpAfterAttempts(t *testing.T) {
	store := newFakeStore()
	store.conflictNext = usernameAttempts + 1
	service := newTestService(store)

	if _, err := service.EnsureProfile(context.Background(), storage.User{ID: 1, UUID: "uuid-1"}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestSetUsername(t *testing.T) {
	store := newFakeStore()
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "citizen_aaaaaaaa"}
	service := newTestService(store)

	profile, err := service.SetUsername(context.Background(), "uuid-1", "  New_Name  ")
	if err != nil {
		t.Fatalf("set username: %v", err)
	}
	if profile.Username != "new_name" {
		t.Fatalf("unexpected username: %q", profile.Username)
	}
	if len(store.leaderUpdates) != 1 || store.leaderUpdates[0] != "uuid-1=new_name" {
		t.Fatalf("expected leader username sync, got %v", store.leaderUpdates)
	}
}

func TestSetUsernameTaken(t *testing.T) {
	store := newFakeStore()
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "citizen_aaaaaaaa"}
	store.profiles["uuid-2"] = storage.Profile{UserUUID: "uuid-2", Username: "taken_name"}
	service := newTestService(store)

	_, err := service.SetUsername(context.Background(), "uuid-1", "Taken_Name")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestSetUsernameOwnNameIsNoop(t *testing.T) {
	store := newFakeStore()
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "my_name"}
	service := newTestService(store)

	profile, err := service.SetUsername(context.Background(), "uuid-1", "My_Name")
	if err != nil {
		t.Fatalf("set username: %v", err)
	}
	if profile.Username != "my_name" {
		t.Fatalf("unexpected username: %q", profile.Username)
	}
	if len(store.leaderUpdates) != 0 {
		t.Fatalf("unexpected leader sync: %v", store.leaderUpdates)
	}
}

func TestSetUsernameInvalid(t *testing.T) {
	store := newFakeStore()
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "citizen_aaaaaaaa"}
	service := newTestService(store)

	cases := []string{
		"ab",
		strings.Repeat("a", 31),
		"_leading",
		"trailing-",
		"has space",
		"UPPER!",
		"admin",
		"api",
		"undefined",
	}
	for _, username := range cases {
		_, err := service.SetUsername(context.Background(), "uuid-1", username)
		if platformerrors.CodeOf(err) != platformerrors.CodeInvalidUsername {
			t.Fatalf("expected invalid username for %q, got %v", username, err)
		}
	}
}

func TestSearchByUsernameExcludesDeleted(t *testing.T) {
	store := newFakeStore()
	deletedAt := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "gone", AccountDeletedAt: &deletedAt}
	store.profiles["uuid-2"] = storage.Profile{UserUUID: "uuid-2", Username: "here"}
	service := newTestService(store)

	if _, err := service.SearchByUsername(context.Background(), "GONE"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for deleted profile, got %v", err)
	}
	profile, err := service.SearchByUsername(context.Background(), "HERE")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if profile.UserUUID != "uuid-2" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestDeleteAccount(t *testing.T) {
	store := newFakeStore()
	store.profiles["uuid-1"] = storage.Profile{UserUUID: "uuid-1", Username: "name"}
	service := newTestService(store)

	if err := service.DeleteAccount(context.Background(), "uuid-1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if store.profiles["uuid-1"].AccountDeletedAt == nil {
		t.Fatal("expected deletion stamp")
	}
}

func TestValidUsernamesAccepted(t *testing.T) {
	for _, username := range []string{"abc", "a-1", "citizen_1a2b3c4d", "one_two-three", "a__b", "000"} {
		if err := ValidateUsername(username); err != nil {
			t.Fatalf("expected %q valid, got %v", username, err)
		}
	}
}

func TestGenerateUsernameShape(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 32; i++ {
		username, err := generateUsername()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if err := ValidateUsername(username); err != nil {
			t.Fatalf("generated username %q invalid: %v", username, err)
		}
		seen[username] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatal("expected distinct generated usernames")
	}
}
