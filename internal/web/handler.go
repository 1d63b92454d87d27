// Package web is the HTTP JSON surface: routing, session middleware,
// and handlers over the domain services.
package web

import (
	"context"
	"log"
	"net/http"

	"github.com/worldrepublic/republic/internal/auth/oauth"
	"github.com/worldrepublic/republic/internal/auth/passkey"
	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/identity"
	"github.com/worldrepublic/republic/internal/party"
	"github.com/worldrepublic/republic/internal/storage"
	"github.com/worldrepublic/republic/internal/wallet"
)

// SessionManager mints, resolves, and destroys web sessions.
type SessionManager interface {
	Create(ctx context.Context, userID int64) (session.Session, error)
	Resolve(ctx context.Context, token string) (session.Session, storage.User, error)
	Destroy(ctx context.Context, token string) error
}

// PasskeyService runs WebAuthn ceremonies.
type PasskeyService interface {
	BeginRegistration(ctx context.Context, email, displayName string) (passkey.RegistrationStart, error)
	FinishRegistration(ctx context.Context, responseJSON []byte) (passkey.Registration, error)
	BeginLogin(ctx context.Context) (passkey.LoginStart, error)
	FinishLogin(ctx context.Context, responseJSON []byte) (storage.User, error)
}

// MemberService manages citizen profiles.
type MemberService interface {
	EnsureProfile(ctx context.Context, user storage.User) (storage.Profile, error)
	Profile(ctx context.Context, userUUID string) (storage.Profile, error)
	SetUsername(ctx context.Context, userUUID, username string) (storage.Profile, error)
	SearchByUsername(ctx context.Context, username string) (storage.Profile, error)
	DeleteAccount(ctx context.Context, userUUID string) error
}

// WalletService moves tokens and lists history.
type WalletService interface {
	Withdraw(ctx context.Context, userUUID, walletAddress, chainID, rawAmount string) (storage.Transaction, error)
	Transfer(ctx context.Context, fromUUID, toUsername, rawAmount string) (storage.Transaction, error)
	History(ctx context.Context, userUUID string, limit int) ([]wallet.Entry, error)
}

// PartyService manages political parties.
type PartyService interface {
	Create(ctx context.Context, founderUUID string, draft party.Draft) (storage.Party, error)
	Get(ctx context.Context, id string) (storage.Party, error)
	Update(ctx context.Context, callerUUID, id string, draft party.Draft) (storage.Party, error)
	Dissolve(ctx context.Context, callerUUID, id string) error
	List(ctx context.Context, filters storage.PartyFilters) ([]storage.Party, error)
}

// IdentityService verifies personhood proofs.
type IdentityService interface {
	Verify(ctx context.Context, proof identity.Proof) identity.Outcome
}

// GoogleService performs the Google sign-in flow.
type GoogleService interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Identity, error)
	SignIn(ctx context.Context, identity oauth.Identity) (storage.User, error)
}

// AccountLinker records provider account rows.
type AccountLinker interface {
	LinkAccount(ctx context.Context, a storage.Account) error
}

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	sessions   SessionManager
	cookies    session.CookiePolicy
	passkeys   PasskeyService
	members    MemberService
	wallets    WalletService
	parties    PartyService
	identities IdentityService
	google     GoogleService
	accounts   AccountLinker
	logger     *log.Logger
}

// Deps carries everything the handler needs.
type Deps struct {
	Sessions   SessionManager
	Cookies    session.CookiePolicy
	Passkeys   PasskeyService
	Members    MemberService
	Wallets    WalletService
	Parties    PartyService
	Identities IdentityService
	Google     GoogleService
	Accounts   AccountLinker
	Logger     *log.Logger
}

// NewHandler builds the routed HTTP handler.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		sessions:   deps.Sessions,
		cookies:    deps.Cookies,
		passkeys:   deps.Passkeys,
		members:    deps.Members,
		wallets:    deps.Wallets,
		parties:    deps.Parties,
		identities: deps.Identities,
		google:     deps.Google,
		accounts:   deps.Accounts,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)

	mux.HandleFunc("POST /api/passkey/register/options", h.passkeyRegisterOptions)
	mux.HandleFunc("POST /api/passkey/register/verify", h.passkeyRegisterVerify)
	mux.HandleFunc("POST /api/passkey/login/options", h.passkeyLoginOptions)
	mux.HandleFunc("POST /api/passkey/login/verify", h.passkeyLoginVerify)

	mux.HandleFunc("GET /api/auth/google", h.googleRedirect)
	mux.HandleFunc("GET /api/auth/google/callback", h.googleCallback)
	mux.HandleFunc("POST /api/auth/signout", h.signOut)

	mux.HandleFunc("GET /api/me", requireSession(h.me))
	mux.HandleFunc("POST /api/me/username", requireSession(h.setUsername))
	mux.HandleFunc("DELETE /api/me", requireSession(h.deleteAccount))
	mux.HandleFunc("GET /api/users/search", requireSession(h.searchUsers))

	mux.HandleFunc("POST /api/wallet/withdraw", requireSession(h.withdraw))
	mux.HandleFunc("POST /api/wallet/transfer", requireSession(h.transfer))
	mux.HandleFunc("GET /api/wallet/transactions", requireSession(h.transactions))

	mux.HandleFunc("GET /api/parties", h.listParties)
	mux.HandleFunc("POST /api/parties", requireSession(h.createParty))
	mux.HandleFunc("GET /api/parties/{id}", h.getParty)
	mux.HandleFunc("PATCH /api/parties/{id}", requireSession(h.updateParty))
	mux.HandleFunc("DELETE /api/parties/{id}", requireSession(h.dissolveParty))

	mux.HandleFunc("POST /api/self/verify", h.selfVerify)

	return h.withSession(mux)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "ok", nil)
}
