package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/worldrepublic/republic/internal/storage"
)

type fakeStore struct {
	sessions map[string]storage.SessionRecord
	users    map[int64]storage.User
	updated  int
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]storage.SessionRecord{},
		users:    map[int64]storage.User{},
	}
}

func (f *fakeStore) CreateSession(_ context.Context, token string, userID int64, expires time.Time) (storage.SessionRecord, error) {
	record := storage.SessionRecord{Token: token, UserID: userID, Expires: expires.UTC().UnixMilli()}
	f.sessions[token] = record
	return record, nil
}

func (f *fakeStore) GetSession(_ context.Context, token string) (storage.SessionRecord, error) {
	record, ok := f.sessions[token]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, token string, expires time.Time) (storage.SessionRecord, error) {
	record, ok := f.sessions[token]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	record.Expires = expires.UTC().UnixMilli()
	f.sessions[token] = record
	f.updated++
	return record, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, token string) error {
	delete(f.sessions, token)
	f.deleted = append(f.deleted, token)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (storage.User, error) {
	user, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func newTestAdapter(store Store, now time.Time) *Adapter {
	adapter := NewAdapter(store)
	adapter.now = func() time.Time { return now }
	return adapter
}

func TestCreateResolveRoundTrip(t *testing.T) {
	store := newFakeStore()
	store.users[7] = storage.User{ID: 7, UUID: "uuid-7"}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	adapter := newTestAdapter(store, now)

	created, err := adapter.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Token == "" {
		t.Fatal("expected session token")
	}
	if !created.Expires.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("unexpected expiry: %v", created.Expires)
	}

	sess, user, err := adapter.Resolve(context.Background(), created.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.UserID != 7 || user.UUID != "uuid-7" {
		t.Fatalf("unexpected resolution: %+v %+v", sess, user)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	adapter := newTestAdapter(newFakeStore(), time.Now())

	if _, _, err := adapter.Resolve(context.Background(), "missing"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, _, err := adapter.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for empty token, got %v", err)
	}
}

func TestResolveExpiredDeletes(t *testing.T) {
	store := newFakeStore()
	store.users[7] = storage.User{ID: 7}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.sessions["stale"] = storage.SessionRecord{
		Token:   "stale",
		UserID:  7,
		Expires: now.Add(-time.Minute).UnixMilli(),
	}
	adapter := newTestAdapter(store, now)

	if _, _, err := adapter.Resolve(context.Background(), "stale"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "stale" {
		t.Fatalf("expected stale session deleted, got %v", store.deleted)
	}
}

func TestResolveRenewsNearExpiry(t *testing.T) {
	store := newFakeStore()
	store.users[7] = storage.User{ID: 7}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.sessions["near"] = storage.SessionRecord{
		Token:   "near",
		UserID:  7,
		Expires: now.Add(time.Hour).UnixMilli(),
	}
	adapter := newTestAdapter(store, now)

	sess, _, err := adapter.Resolve(context.Background(), "near")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.updated != 1 {
		t.Fatalf("expected renewal, got %d updates", store.updated)
	}
	if !sess.Expires.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("unexpected renewed expiry: %v", sess.Expires)
	}
}

func TestResolveFreshSessionNotRenewed(t *testing.T) {
	store := newFakeStore()
	store.users[7] = storage.User{ID: 7}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.sessions["fresh"] = storage.SessionRecord{
		Token:   "fresh",
		UserID:  7,
		Expires: now.Add(DefaultTTL).UnixMilli(),
	}
	adapter := newTestAdapter(store, now)

	if _, _, err := adapter.Resolve(context.Background(), "fresh"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.updated != 0 {
		t.Fatalf("expected no renewal, got %d updates", store.updated)
	}
}

func TestResolveOrphanSessionDeleted(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.sessions["orphan"] = storage.SessionRecord{
		Token:   "orphan",
		UserID:  404,
		Expires: now.Add(DefaultTTL).UnixMilli(),
	}
	adapter := newTestAdapter(store, now)

	if _, _, err := adapter.Resolve(context.Background(), "orphan"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected orphan session deleted, got %v", store.deleted)
	}
}

func TestDestroyIgnoresEmptyToken(t *testing.T) {
	store := newFakeStore()
	adapter := NewAdapter(store)

	if err := adapter.Destroy(context.Background(), ""); err != nil {
		t.Fatalf("destroy empty: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("unexpected delete: %v", store.deleted)
	}
}

func TestNormalizeExpiryShapes(t *testing.T) {
	want := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
	}{
		{"time", want},
		{"pointer", &want},
		{"millis", want.UnixMilli()},
		{"float", float64(want.UnixMilli())},
		{"rfc3339", want.Format(time.RFC3339)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeExpiry(tc.value)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if !got.Equal(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestNormalizeExpiryRejectsUnknown(t *testing.T) {
	if _, err := normalizeExpiry(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if _, err := normalizeExpiry("not-a-time"); err == nil {
		t.Fatal("expected error for malformed string")
	}
	if _, err := normalizeExpiry((*time.Time)(nil)); err == nil {
		t.Fatal("expected error for nil pointer")
	}
}

func TestCookieRoundTrip(t *testing.T) {
	recorder := httptest.NewRecorder()
	expires := time.Now().Add(DefaultTTL)
	WriteCookie(recorder, CookiePolicy{}, "token-1", expires)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range recorder.Result().Cookies() {
		request.AddCookie(cookie)
	}

	token, ok := ReadCookie(request)
	if !ok || token != "token-1" {
		t.Fatalf("unexpected cookie read: %q %v", token, ok)
	}
}

func TestSecureCookieVariant(t *testing.T) {
	recorder := httptest.NewRecorder()
	WriteCookie(recorder, CookiePolicy{Secure: true}, "token-1", time.Now().Add(time.Hour))

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != SecureCookieName {
		t.Fatalf("unexpected cookie name: %q", cookies[0].Name)
	}
	if !cookies[0].Secure || !cookies[0].HttpOnly {
		t.Fatalf("expected secure http-only cookie: %+v", cookies[0])
	}
}

func TestClearCookie(t *testing.T) {
	recorder := httptest.NewRecorder()
	ClearCookie(recorder, CookiePolicy{})

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 || cookies[0].Value != "" {
		t.Fatalf("expected expired cookie: %+v", cookies[0])
	}
}

func TestReadCookiePrefersSecureVariant(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: CookieName, Value: "plain"})
	request.AddCookie(&http.Cookie{Name: SecureCookieName, Value: "secure"})

	token, ok := ReadCookie(request)
	if !ok || token != "secure" {
		t.Fatalf("unexpected cookie read: %q %v", token, ok)
	}
}
