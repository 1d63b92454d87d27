// Package storage defines the persistence interfaces shared by the SQLite
// and Postgres drivers.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/worldrepublic/republic/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrConflict indicates a unique constraint rejected a write. The
// application layer may pre-check uniqueness, but this error is the
// authoritative signal.
var ErrConflict = errors.New(errors.CodeConflict, "record already exists")

// ErrInsufficientBalance indicates a debit larger than the stored balance.
var ErrInsufficientBalance = errors.New(errors.CodeInsufficientBalance, "insufficient balance")

// User is an authentication identity: the integer id belongs to the auth
// layer, the UUID is the immutable key every application table references.
type User struct {
	ID            int64
	UUID          string
	Name          string
	Email         string
	EmailVerified *time.Time
	Image         string
}

// Profile holds application state for a user, keyed by the user UUID.
type Profile struct {
	UserUUID         string
	AuthUserID       int64
	Username         string
	WalletBalance    decimal.Decimal
	SelfVerifiedAt   *time.Time
	SelfNullifier    string
	AccountDeletedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Authenticator stores a WebAuthn credential. CredentialID is globally
// unique; Counter only moves forward.
type Authenticator struct {
	CredentialID string
	UserID       int64
	UserHandle   string
	PublicKey    string
	Counter      uint32
	DeviceType   string
	BackedUp     bool
	Transports   string
}

// SessionRecord is a session as the active driver returned it. Expires is
// deliberately untyped: drivers surface millisecond integers, RFC 3339
// strings, or native timestamps depending on the backend, and the session
// adapter owns normalizing it to a concrete time.
type SessionRecord struct {
	Token   string
	UserID  int64
	Expires any
}

// Account links an external provider identity to a user.
type Account struct {
	ID                int64
	UserID            int64
	Type              string
	Provider          string
	ProviderAccountID string
}

// Transaction types.
const (
	TransactionWithdrawal = "WITHDRAWAL"
	TransactionTransfer   = "TRANSFER"
)

// Transaction is an append-only ledger history row.
type Transaction struct {
	ID            int64
	UserUUID      string
	Type          string
	Amount        decimal.Decimal
	WalletAddress string
	Chain         string
	RecipientUUID string
	TransactionID string
	CreatedAt     time.Time
}

// Party is a political party record; DissolvedAt marks a soft delete.
type Party struct {
	ID             string
	Name           string
	Description    string
	WebsiteURL     string
	FoundedBy      string
	LeaderUsername string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DissolvedAt    *time.Time
}

// PartyFilters narrows a party listing.
type PartyFilters struct {
	Search string
	Limit  int
	Offset int
}

// Ceremony is a pending WebAuthn challenge, single-use and short-lived.
type Ceremony struct {
	Challenge   string
	Kind        string
	TempUserID  string
	TempEmail   string
	DisplayName string
	SessionJSON string
	ExpiresAt   time.Time
}

// UserStore persists auth user records.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByUUID(ctx context.Context, uuid string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, userUUID string) (Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (Profile, error)
	// RenameProfile updates the username and any party leader_username
	// denormalized from it in one transaction.
	RenameProfile(ctx context.Context, userUUID string, username string, at time.Time) error
	SoftDeleteProfile(ctx context.Context, userUUID string, at time.Time) error
	MarkVerified(ctx context.Context, userUUID string, nullifier string, at time.Time) error
	FindNullifierOwner(ctx context.Context, nullifier string) (string, error)
}

// WalletStore mutates ledger balances. Every method runs inside its own
// transaction; DebitBalance must hold a row-level lock (or equivalent)
// across the read-then-write so two concurrent debits cannot both observe
// the same pre-debit balance.
type WalletStore interface {
	DebitBalance(ctx context.Context, userUUID string, amount decimal.Decimal) (previous decimal.Decimal, err error)
	SetBalance(ctx context.Context, userUUID string, balance decimal.Decimal) error
	TransferBalance(ctx context.Context, fromUUID, toUUID string, amount decimal.Decimal) error
}

// TransactionStore appends and lists ledger history.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, t Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, userUUID string, limit int) ([]Transaction, error)
}

// AuthenticatorStore persists WebAuthn credentials.
type AuthenticatorStore interface {
	// CreateAuthenticator is idempotent against duplicate credential ids.
	CreateAuthenticator(ctx context.Context, a Authenticator) error
	GetAuthenticator(ctx context.Context, credentialID string) (Authenticator, error)
	ListAuthenticators(ctx context.Context) ([]Authenticator, error)
	ListAuthenticatorsByUser(ctx context.Context, userID int64) ([]Authenticator, error)
	// UpdateAuthenticatorCounter fails with ErrNotFound for unknown ids.
	UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter uint32) error
}

// SessionStore persists web sessions at the driver level. Callers should
// go through the session adapter, which normalizes expiry values.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expires time.Time) (SessionRecord, error)
	GetSession(ctx context.Context, token string) (SessionRecord, error)
	UpdateSession(ctx context.Context, token string, expires time.Time) (SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
}

// AccountStore persists provider account links.
type AccountStore interface {
	LinkAccount(ctx context.Context, a Account) error
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (User, error)
}

// CeremonyStore persists pending WebAuthn challenges.
type CeremonyStore interface {
	PutCeremony(ctx context.Context, c Ceremony) error
	// TakeCeremony removes and returns the ceremony, making every
	// challenge single-use.
	TakeCeremony(ctx context.Context, challenge, kind string) (Ceremony, error)
	DeleteExpiredCeremonies(ctx context.Context, now time.Time) error
}

// PartyStore persists political parties.
type PartyStore interface {
	CreateParty(ctx context.Context, p Party) error
	GetParty(ctx context.Context, id string) (Party, error)
	GetPartyByFounder(ctx context.Context, founderUUID string) (Party, error)
	UpdateParty(ctx context.Context, p Party) error
	DissolveParty(ctx context.Context, id string, at time.Time) error
	ListParties(ctx context.Context, filters PartyFilters) ([]Party, error)
}

// Store is the full persistence surface the application wires at startup.
type Store interface {
	UserStore
	ProfileStore
	WalletStore
	TransactionStore
	AuthenticatorStore
	SessionStore
	AccountStore
	CeremonyStore
	PartyStore

	Close() error
}
