// Package session mints and resolves web sessions on top of whichever
// storage driver the process opened at startup.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/platform/id"
	"github.com/worldrepublic/republic/internal/storage"
)

// DefaultTTL is how long a freshly minted session lives.
const DefaultTTL = 30 * 24 * time.Hour

// renewThreshold is how much lifetime may elapse before a resolved
// session gets its expiry pushed forward.
const renewThreshold = DefaultTTL / 2

// ErrUnauthenticated is returned when a token is missing, unknown, or
// expired.
var ErrUnauthenticated = errors.New(errors.CodeUnauthenticated, "not signed in")

// Session is a resolved web session with a concrete expiry.
type Session struct {
	Token   string
	UserID  int64
	Expires time.Time
}

// Store is the slice of the storage surface the adapter needs.
type Store interface {
	CreateSession(ctx context.Context, token string, userID int64, expires time.Time) (storage.SessionRecord, error)
	GetSession(ctx context.Context, token string) (storage.SessionRecord, error)
	UpdateSession(ctx context.Context, token string, expires time.Time) (storage.SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
	GetUserByID(ctx context.Context, id int64) (storage.User, error)
}

// Adapter normalizes driver-specific session records into Sessions.
// Drivers are free to persist expiry as millisecond integers, RFC 3339
// strings, or native timestamps; everything past this type works with
// time.Time only.
type Adapter struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewAdapter wires the adapter over a storage driver.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store, ttl: DefaultTTL, now: time.Now}
}

// Create mints a new session for the user.
func (a *Adapter) Create(ctx context.Context, userID int64) (Session, error) {
	token, err := id.NewID()
	if err != nil {
		return Session{}, fmt.Errorf("mint session token: %w", err)
	}
	expires := a.now().UTC().Add(a.ttl)
	record, err := a.store.CreateSession(ctx, token, userID, expires)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return a.normalize(record)
}

// Resolve returns the live session and its user. Expired sessions are
// deleted on sight; sessions past the renewal threshold get their expiry
// pushed forward.
func (a *Adapter) Resolve(ctx context.Context, token string) (Session, storage.User, error) {
	if token == "" {
		return Session{}, storage.User{}, ErrUnauthenticated
	}
	record, err := a.store.GetSession(ctx, token)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return Session{}, storage.User{}, ErrUnauthenticated
		}
		return Session{}, storage.User{}, fmt.Errorf("get session: %w", err)
	}
	sess, err := a.normalize(record)
	if err != nil {
		return Session{}, storage.User{}, err
	}

	now := a.now().UTC()
	if !sess.Expires.After(now) {
		_ = a.store.DeleteSession(ctx, token)
		return Session{}, storage.User{}, ErrUnauthenticated
	}
	if sess.Expires.Sub(now) < renewThreshold {
		renewed, err := a.store.UpdateSession(ctx, token, now.Add(a.ttl))
		if err == nil {
			if fresh, nErr := a.normalize(renewed); nErr == nil {
				sess = fresh
			}
		}
	}

	user, err := a.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			_ = a.store.DeleteSession(ctx, token)
			return Session{}, storage.User{}, ErrUnauthenticated
		}
		return Session{}, storage.User{}, fmt.Errorf("load session user: %w", err)
	}
	return sess, user, nil
}

// Destroy removes a session; unknown tokens are not an error.
func (a *Adapter) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.store.DeleteSession(ctx, token)
}

func (a *Adapter) normalize(record storage.SessionRecord) (Session, error) {
	expires, err := normalizeExpiry(record.Expires)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: record.Token, UserID: record.UserID, Expires: expires}, nil
}

// normalizeExpiry accepts every expiry shape the drivers produce.
func normalizeExpiry(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil session expiry")
		}
		return v.UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse session expiry %q: %w", v, err)
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported session expiry type %T", value)
	}
}
