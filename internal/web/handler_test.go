package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/worldrepublic/republic/internal/auth/oauth"
	"github.com/worldrepublic/republic/internal/auth/passkey"
	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/identity"
	"github.com/worldrepublic/republic/internal/party"
	platformerrors "github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/storage"
	"github.com/worldrepublic/republic/internal/wallet"
)

type fakeSessions struct {
	users    map[string]storage.User
	created  []int64
	destroys []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{users: map[string]storage.User{}}
}

func (f *fakeSessions) Create(_ context.Context, userID int64) (session.Session, error) {
	f.created = append(f.created, userID)
	token := "minted-token"
	f.users[token] = storage.User{ID: userID, UUID: "uuid-minted"}
	return session.Session{Token: token, UserID: userID, Expires: time.Now().Add(time.Hour)}, nil
}

func (f *fakeSessions) Resolve(_ context.Context, token string) (session.Session, storage.User, error) {
	user, ok := f.users[token]
	if !ok {
		return session.Session{}, storage.User{}, session.ErrUnauthenticated
	}
	return session.Session{Token: token, UserID: user.ID, Expires: time.Now().Add(time.Hour)}, user, nil
}

func (f *fakeSessions) Destroy(_ context.Context, token string) error {
	f.destroys = append(f.destroys, token)
	delete(f.users, token)
	return nil
}

type fakePasskeys struct {
	registration passkey.Registration
	loginUser    storage.User
	loginStart   passkey.LoginStart
	err          error
}

func (f *fakePasskeys) BeginRegistration(context.Context, string, string) (passkey.RegistrationStart, error) {
	if f.err != nil {
		return passkey.RegistrationStart{}, f.err
	}
	return passkey.RegistrationStart{Options: json.RawMessage(`{"challenge":"c1"}`), Challenge: "c1"}, nil
}

func (f *fakePasskeys) FinishRegistration(context.Context, []byte) (passkey.Registration, error) {
	if f.err != nil {
		return passkey.Registration{}, f.err
	}
	return f.registration, nil
}

func (f *fakePasskeys) BeginLogin(context.Context) (passkey.LoginStart, error) {
	if f.err != nil {
		return passkey.LoginStart{}, f.err
	}
	return f.loginStart, nil
}

func (f *fakePasskeys) FinishLogin(context.Context, []byte) (storage.User, error) {
	if f.err != nil {
		return storage.User{}, f.err
	}
	return f.loginUser, nil
}

type fakeMembers struct {
	profiles map[string]storage.Profile
	ensured  []string
	deleted  []string
	err      error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{profiles: map[string]storage.Profile{}}
}

func (f *fakeMembers) EnsureProfile(_ context.Context, user storage.User) (storage.Profile, error) {
	f.ensured = append(f.ensured, user.UUID)
	if f.err != nil {
		return storage.Profile{}, f.err
	}
	if p, ok := f.profiles[user.UUID]; ok {
		return p, nil
	}
	p := storage.Profile{UserUUID: user.UUID, Username: "citizen_test"}
	f.profiles[user.UUID] = p
	return p, nil
}

func (f *fakeMembers) Profile(_ context.Context, userUUID string) (storage.Profile, error) {
	p, ok := f.profiles[userUUID]
	if !ok {
		return storage.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeMembers) SetUsername(_ context.Context, userUUID, username string) (storage.Profile, error) {
	if f.err != nil {
		return storage.Profile{}, f.err
	}
	p := f.profiles[userUUID]
	p.UserUUID = userUUID
	p.Username = username
	f.profiles[userUUID] = p
	return p, nil
}

func (f *fakeMembers) SearchByUsername(_ context.Context, username string) (storage.Profile, error) {
	for _, p := range f.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return storage.Profile{}, storage.ErrNotFound
}

func (f *fakeMembers) DeleteAccount(_ context.Context, userUUID string) error {
	f.deleted = append(f.deleted, userUUID)
	return nil
}

type fakeWallets struct {
	record  storage.Transaction
	entries []wallet.Entry
	err     error
}

func (f *fakeWallets) Withdraw(context.Context, string, string, string, string) (storage.Transaction, error) {
	if f.err != nil {
		return storage.Transaction{}, f.err
	}
	return f.record, nil
}

func (f *fakeWallets) Transfer(context.Context, string, string, string) (storage.Transaction, error) {
	if f.err != nil {
		return storage.Transaction{}, f.err
	}
	return f.record, nil
}

func (f *fakeWallets) History(context.Context, string, int) ([]wallet.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakeParties struct {
	parties map[string]storage.Party
	err     error
}

func newFakeParties() *fakeParties {
	return &fakeParties{parties: map[string]storage.Party{}}
}

func (f *fakeParties) Create(_ context.Context, founderUUID string, draft party.Draft) (storage.Party, error) {
	if f.err != nil {
		return storage.Party{}, f.err
	}
	p := storage.Party{ID: "party-1", Name: draft.Name, FoundedBy: founderUUID}
	f.parties[p.ID] = p
	return p, nil
}

func (f *fakeParties) Get(_ context.Context, id string) (storage.Party, error) {
	p, ok := f.parties[id]
	if !ok {
		return storage.Party{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeParties) Update(_ context.Context, callerUUID, id string, draft party.Draft) (storage.Party, error) {
	if f.err != nil {
		return storage.Party{}, f.err
	}
	p, ok := f.parties[id]
	if !ok {
		return storage.Party{}, storage.ErrNotFound
	}
	if p.FoundedBy != callerUUID {
		return storage.Party{}, platformerrors.New(platformerrors.CodeUnauthorized, "only the founder can edit a party")
	}
	p.Name = draft.Name
	f.parties[id] = p
	return p, nil
}

func (f *fakeParties) Dissolve(_ context.Context, callerUUID, id string) error {
	p, ok := f.parties[id]
	if !ok {
		return storage.ErrNotFound
	}
	if p.FoundedBy != callerUUID {
		return platformerrors.New(platformerrors.CodeUnauthorized, "only the founder can dissolve a party")
	}
	delete(f.parties, id)
	return nil
}

func (f *fakeParties) List(context.Context, storage.PartyFilters) ([]storage.Party, error) {
	var out []storage.Party
	for _, p := range f.parties {
		out = append(out, p)
	}
	return out, nil
}

type fakeIdentities struct {
	outcome identity.Outcome
	proofs  []identity.Proof
}

func (f *fakeIdentities) Verify(_ context.Context, proof identity.Proof) identity.Outcome {
	f.proofs = append(f.proofs, proof)
	return f.outcome
}

type fakeGoogle struct {
	identity oauth.Identity
	user     storage.User
	err      error
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (f *fakeGoogle) Exchange(context.Context, string) (oauth.Identity, error) {
	if f.err != nil {
		return oauth.Identity{}, f.err
	}
	return f.identity, nil
}

func (f *fakeGoogle) SignIn(context.Context, oauth.Identity) (storage.User, error) {
	if f.err != nil {
		return storage.User{}, f.err
	}
	return f.user, nil
}

type fakeAccounts struct {
	linked []storage.Account
}

func (f *fakeAccounts) LinkAccount(_ context.Context, a storage.Account) error {
	f.linked = append(f.linked, a)
	return nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type testHarness struct {
	handler    http.Handler
	sessions   *fakeSessions
	passkeys   *fakePasskeys
	members    *fakeMembers
	wallets    *fakeWallets
	parties    *fakeParties
	identities *fakeIdentities
	google     *fakeGoogle
	accounts   *fakeAccounts
}

func newHarness() *testHarness {
	h := &testHarness{
		sessions:   newFakeSessions(),
		passkeys:   &fakePasskeys{},
		members:    newFakeMembers(),
		wallets:    &fakeWallets{},
		parties:    newFakeParties(),
		identities: &fakeIdentities{},
		google:     &fakeGoogle{},
		accounts:   &fakeAccounts{},
	}
	h.handler = NewHandler(Deps{
		Sessions:   h.sessions,
		Cookies:    session.CookiePolicy{},
		Passkeys:   h.passkeys,
		Members:    h.members,
		Wallets:    h.wallets,
		Parties:    h.parties,
		Identities: h.identities,
		Google:     h.google,
		Accounts:   h.accounts,
		Logger:     log.New(discard{}, "", 0),
	})
	return h
}

// signedIn registers a live session and returns the cookie to send.
func (h *testHarness) signedIn(user storage.User) *http.Cookie {
	h.sessions.users["tok-1"] = user
	return &http.Cookie{Name: session.CookieName, Value: "tok-1"}
}

func (h *testHarness) do(method, target string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthenticatedRoutesRejectAnonymous(t *testing.T) {
	h := newHarness()
	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/me/username"},
		{http.MethodDelete, "/api/me"},
		{http.MethodGet, "/api/users/search?username=bob"},
		{http.MethodPost, "/api/wallet/withdraw"},
		{http.MethodPost, "/api/wallet/transfer"},
		{http.MethodGet, "/api/wallet/transactions"},
		{http.MethodPost, "/api/parties"},
		{http.MethodPatch, "/api/parties/party-1"},
		{http.MethodDelete, "/api/parties/party-1"},
	}
	for _, route := range routes {
		rec := h.do(route.method, route.target, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", route.method, route.target, rec.Code)
		}
	}
}

func TestMeLazyCreatesProfile(t *testing.T) {
	h := newHarness()
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodGet, "/api/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(h.members.ensured) != 1 || h.members.ensured[0] != "uuid-1" {
		t.Fatalf("ensured = %v", h.members.ensured)
	}
}

func TestSetUsernameConflict(t *testing.T) {
	h := newHarness()
	h.members.err = platformerrors.New(platformerrors.CodeUsernameTaken, "username is already taken")
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/me/username", `{"username":"taken"}`, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDeleteAccountClearsSession(t *testing.T) {
	h := newHarness()
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodDelete, "/api/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(h.members.deleted) != 1 || h.members.deleted[0] != "uuid-1" {
		t.Fatalf("deleted = %v", h.members.deleted)
	}
	if len(h.sessions.destroys) != 1 {
		t.Fatalf("destroys = %v", h.sessions.destroys)
	}
}

func TestPasskeyRegisterVerifySignsIn(t *testing.T) {
	h := newHarness()
	h.passkeys.registration = passkey.Registration{
		User:         storage.User{ID: 7, UUID: "uuid-7", Email: "seven@example.com"},
		CredentialID: "cred-7",
	}

	rec := h.do(http.MethodPost, "/api/passkey/register/verify", `{"id":"cred-7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(h.sessions.created) != 1 || h.sessions.created[0] != 7 {
		t.Fatalf("sessions created = %v", h.sessions.created)
	}
	if len(h.members.ensured) != 1 || h.members.ensured[0] != "uuid-7" {
		t.Fatalf("ensured = %v", h.members.ensured)
	}
	if len(h.accounts.linked) != 1 {
		t.Fatalf("linked = %v", h.accounts.linked)
	}
	link := h.accounts.linked[0]
	if link.Provider != "passkey" || link.Type != "webauthn" || link.ProviderAccountID != "cred-7" {
		t.Fatalf("link = %+v", link)
	}
	var sawCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Fatalf("no session cookie set")
	}
}

func TestPasskeyRegisterVerifyProfileFailureStillSignsIn(t *testing.T) {
	h := newHarness()
	h.passkeys.registration = passkey.Registration{
		User:         storage.User{ID: 7, UUID: "uuid-7"},
		CredentialID: "cred-7",
	}
	h.members.err = storage.ErrConflict

	rec := h.do(http.MethodPost, "/api/passkey/register/verify", `{"id":"cred-7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want sign-in despite profile failure", rec.Code)
	}
	if len(h.sessions.created) != 1 {
		t.Fatalf("sessions created = %v", h.sessions.created)
	}
}

func TestPasskeyRegisterVerifyFailure(t *testing.T) {
	h := newHarness()
	h.passkeys.err = platformerrors.New(platformerrors.CodeVerificationFailed, "verification failed")

	rec := h.do(http.MethodPost, "/api/passkey/register/verify", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(h.sessions.created) != 0 {
		t.Fatalf("session minted for failed verification")
	}
}

func TestPasskeyLoginOptionsWithoutCredentials(t *testing.T) {
	h := newHarness()
	h.passkeys.loginStart = passkey.LoginStart{HasCredentials: false}

	rec := h.do(http.MethodPost, "/api/passkey/login/options", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]any)
	if !ok || data["hasCredentials"] != false {
		t.Fatalf("data = %+v", env.Data)
	}
}

func TestPasskeyLoginVerifySignsIn(t *testing.T) {
	h := newHarness()
	h.passkeys.loginUser = storage.User{ID: 3, UUID: "uuid-3"}

	rec := h.do(http.MethodPost, "/api/passkey/login/verify", `{"id":"cred-3"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(h.sessions.created) != 1 || h.sessions.created[0] != 3 {
		t.Fatalf("sessions created = %v", h.sessions.created)
	}
}

func TestSignOut(t *testing.T) {
	h := newHarness()
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/auth/signout", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(h.sessions.destroys) != 1 || h.sessions.destroys[0] != "tok-1" {
		t.Fatalf("destroys = %v", h.sessions.destroys)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("session cookie not cleared")
	}
}

func TestGoogleRedirectSetsState(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodGet, "/api/auth/google", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatalf("no state cookie set")
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, state) {
		t.Fatalf("redirect %q does not carry state %q", loc, state)
	}
}

func TestGoogleCallbackStateMismatch(t *testing.T) {
	h := newHarness()
	rec := h.do(http.MethodGet, "/api/auth/google/callback?state=other&code=c",
		"", &http.Cookie{Name: stateCookieName, Value: "expected"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(h.sessions.created) != 0 {
		t.Fatalf("session minted despite state mismatch")
	}
}

func TestGoogleCallbackSignsIn(t *testing.T) {
	h := newHarness()
	h.google.user = storage.User{ID: 9, UUID: "uuid-9"}

	rec := h.do(http.MethodGet, "/api/auth/google/callback?state=s1&code=c1",
		"", &http.Cookie{Name: stateCookieName, Value: "s1"})
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(h.sessions.created) != 1 || h.sessions.created[0] != 9 {
		t.Fatalf("sessions created = %v", h.sessions.created)
	}
	if len(h.members.ensured) != 1 {
		t.Fatalf("profile not ensured")
	}
}

func TestWithdrawResponse(t *testing.T) {
	h := newHarness()
	h.wallets.record = storage.Transaction{
		ID:            1,
		Type:          storage.TransactionWithdrawal,
		Amount:        decimal.RequireFromString("10.3"),
		WalletAddress: "0x1111111111111111111111111111111111111111",
		Chain:         "56",
		TransactionID: "engine-tx-1",
	}
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/wallet/withdraw",
		`{"walletAddress":"0x1111111111111111111111111111111111111111","chain":"56","amount":"10.3"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]any)
	if !ok || data["transactionId"] != "engine-tx-1" {
		t.Fatalf("data = %+v", env.Data)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	h := newHarness()
	h.wallets.err = storage.ErrInsufficientBalance
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/wallet/withdraw",
		`{"walletAddress":"0x1111111111111111111111111111111111111111","chain":"56","amount":"10.3"}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUncodedErrorHidesDetail(t *testing.T) {
	h := newHarness()
	h.wallets.err = fmt.Errorf("dial tcp 10.0.0.1:5432: connect: connection refused")
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/wallet/withdraw",
		`{"walletAddress":"0x1111111111111111111111111111111111111111","chain":"56","amount":"10.3"}`, cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "internal error" {
		t.Fatalf("message = %q, want generic internal error", env.Message)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.1") {
		t.Fatalf("internal detail leaked to client: %s", rec.Body.String())
	}
}

func TestTransactionsRejectsBadLimit(t *testing.T) {
	h := newHarness()
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodGet, "/api/wallet/transactions?limit=abc", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPartyLifecycleOverHTTP(t *testing.T) {
	h := newHarness()
	founder := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodPost, "/api/parties", `{"name":"Progress"}`, founder)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = h.do(http.MethodGet, "/api/parties/party-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	intruder := &http.Cookie{Name: session.CookieName, Value: "tok-2"}
	h.sessions.users["tok-2"] = storage.User{ID: 2, UUID: "uuid-2"}
	rec = h.do(http.MethodPatch, "/api/parties/party-1", `{"name":"Hijacked"}`, intruder)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("intruder patch status = %d, want 403", rec.Code)
	}

	rec = h.do(http.MethodDelete, "/api/parties/party-1", "", founder)
	if rec.Code != http.StatusOK {
		t.Fatalf("dissolve status = %d", rec.Code)
	}
}

func TestSelfVerifyAlways200(t *testing.T) {
	h := newHarness()
	h.identities.outcome = identity.Outcome{Status: "error", Result: false, Reason: "Verification failed"}

	rec := h.do(http.MethodPost, "/api/self/verify",
		`{"attestationId":1,"proof":{},"publicSignals":[],"userContextData":"c"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want always-200", rec.Code)
	}
	var outcome identity.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Status != "error" || outcome.Reason != "Verification failed" {
		t.Fatalf("outcome = %+v", outcome)
	}

	rec = h.do(http.MethodPost, "/api/self/verify", `not-json`)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed body status = %d, want 200", rec.Code)
	}
}

func TestSearchUsersRequiresQuery(t *testing.T) {
	h := newHarness()
	cookie := h.signedIn(storage.User{ID: 1, UUID: "uuid-1"})

	rec := h.do(http.MethodGet, "/api/users/search", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	h.members.profiles["uuid-2"] = storage.Profile{UserUUID: "uuid-2", Username: "bob"}
	rec = h.do(http.MethodGet, "/api/users/search?username=bob", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
}
