package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/platform/id"
	"github.com/worldrepublic/republic/internal/storage"
)

// ErrVerificationFailed is returned when a ceremony response does not
// verify. The HTTP layer reports it without detail so callers cannot
// learn why a credential was rejected.
var ErrVerificationFailed = errors.New(errors.CodeVerificationFailed, "verification failed")

// Store is the slice of the storage surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, u storage.User) (storage.User, error)
	GetUserByID(ctx context.Context, id int64) (storage.User, error)
	CreateAuthenticator(ctx context.Context, a storage.Authenticator) error
	GetAuthenticator(ctx context.Context, credentialID string) (storage.Authenticator, error)
	ListAuthenticators(ctx context.Context) ([]storage.Authenticator, error)
	ListAuthenticatorsByUser(ctx context.Context, userID int64) ([]storage.Authenticator, error)
	UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter uint32) error
	PutCeremony(ctx context.Context, c storage.Ceremony) error
	TakeCeremony(ctx context.Context, challenge, kind string) (storage.Ceremony, error)
	DeleteExpiredCeremonies(ctx context.Context, now time.Time) error
}

type webAuthnProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type responseParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultParser struct{}

func (defaultParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service runs WebAuthn ceremonies over the storage drivers. Pending
// challenges live in storage so any process in the deployment can finish
// a ceremony another process started.
type Service struct {
	store  Store
	web    webAuthnProvider
	parser responseParser
	cfg    Config
	tracer trace.Tracer
	clock  func() time.Time
}

// NewService builds the relying party from config.
func NewService(store Store, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	web, err := newWebAuthn(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Service{
		store:  store,
		web:    web,
		parser: defaultParser{},
		cfg:    cfg,
		tracer: otel.Tracer("github.com/worldrepublic/republic/internal/auth/passkey"),
		clock:  time.Now,
	}, nil
}

// RegistrationStart carries the creation options for the browser.
type RegistrationStart struct {
	Options   json.RawMessage
	Challenge string
}

// LoginStart carries the assertion options for the browser.
// HasCredentials is false when no passkey exists anywhere yet, so the
// client can route the visitor to registration instead.
type LoginStart struct {
	Options        json.RawMessage
	Challenge      string
	HasCredentials bool
}

// registrationAlgorithms restricts credentials to ES256 and RS256.
var registrationAlgorithms = []protocol.CredentialParameter{
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
}

// BeginRegistration mints creation options for a brand new credential.
// The WebAuthn user handle is synthesized from the email when one is
// given; the durable account is only created once the ceremony verifies.
func (s *Service) BeginRegistration(ctx context.Context, email, displayName string) (RegistrationStart, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	tempID, err := tempUserID(email)
	if err != nil {
		return RegistrationStart{}, err
	}
	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName = email
	}
	if displayName == "" {
		displayName = "Citizen"
	}

	candidate := &ceremonyUser{handle: []byte(tempID), name: tempID, displayName: displayName}
	creation, sessionData, err := s.web.BeginRegistration(candidate,
		webauthn.WithCredentialParameters(registrationAlgorithms),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		return RegistrationStart{}, fmt.Errorf("begin registration: %w", err)
	}

	challenge := creation.Response.Challenge.String()
	if err := s.putCeremony(ctx, challenge, CeremonyRegistration, storage.Ceremony{
		TempUserID:  tempID,
		TempEmail:   email,
		DisplayName: displayName,
	}, sessionData); err != nil {
		return RegistrationStart{}, err
	}

	optionsJSON, err := json.Marshal(creation)
	if err != nil {
		return RegistrationStart{}, fmt.Errorf("encode registration options: %w", err)
	}
	return RegistrationStart{Options: optionsJSON, Challenge: challenge}, nil
}

// Registration is the outcome of a verified attestation: the freshly
// minted user and the credential id the browser registered.
type Registration struct {
	User         storage.User
	CredentialID string
}

// FinishRegistration verifies the attestation response and creates a new
// account. Registration never signs into an existing account: the
// credential is bound to a freshly minted user even when the email was
// seen before.
func (s *Service) FinishRegistration(ctx context.Context, responseJSON []byte) (Registration, error) {
	ctx, span := s.tracer.Start(ctx, "passkey.finish_registration")
	defer span.End()

	reg, err := s.finishRegistration(ctx, responseJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return reg, err
}

func (s *Service) finishRegistration(ctx context.Context, responseJSON []byte) (Registration, error) {
	parsed, err := s.parser.ParseCredentialCreationResponseBytes(responseJSON)
	if err != nil {
		return Registration{}, errors.Wrap(errors.CodeVerificationFailed, "parse registration response", err)
	}

	ceremony, sessionData, err := s.takeCeremony(ctx, parsed.Response.CollectedClientData.Challenge, CeremonyRegistration)
	if err != nil {
		return Registration{}, err
	}

	candidate := &ceremonyUser{
		handle:      []byte(ceremony.TempUserID),
		name:        ceremony.TempUserID,
		displayName: ceremony.DisplayName,
	}
	credential, err := s.web.CreateCredential(candidate, sessionData, parsed)
	if err != nil {
		return Registration{}, errors.Wrap(errors.CodeVerificationFailed, "verify registration", err)
	}

	user, err := s.store.CreateUser(ctx, storage.User{
		UUID:  uuid.NewString(),
		Name:  ceremony.DisplayName,
		Email: ceremony.TempEmail,
	})
	if err != nil {
		return Registration{}, fmt.Errorf("create user: %w", err)
	}
	record := recordFromCredential(user.ID, ceremony.TempUserID, credential)
	if err := s.store.CreateAuthenticator(ctx, record); err != nil {
		return Registration{}, fmt.Errorf("store credential: %w", err)
	}
	return Registration{User: user, CredentialID: record.CredentialID}, nil
}

// BeginLogin mints assertion options for a discoverable login. When no
// credential exists anywhere, no ceremony is stored and HasCredentials
// reports false.
func (s *Service) BeginLogin(ctx context.Context) (LoginStart, error) {
	existing, err := s.store.ListAuthenticators(ctx)
	if err != nil {
		return LoginStart{}, fmt.Errorf("list credentials: %w", err)
	}
	if len(existing) == 0 {
		return LoginStart{HasCredentials: false}, nil
	}

	assertion, sessionData, err := s.web.BeginDiscoverableLogin()
	if err != nil {
		return LoginStart{}, fmt.Errorf("begin login: %w", err)
	}

	challenge := assertion.Response.Challenge.String()
	if err := s.putCeremony(ctx, challenge, CeremonyLogin, storage.Ceremony{}, sessionData); err != nil {
		return LoginStart{}, err
	}

	optionsJSON, err := json.Marshal(assertion)
	if err != nil {
		return LoginStart{}, fmt.Errorf("encode login options: %w", err)
	}
	return LoginStart{Options: optionsJSON, Challenge: challenge, HasCredentials: true}, nil
}

// FinishLogin verifies the assertion response and returns the owning
// user. The signature counter is persisted before the caller mints a web
// session; a counter regression reported by the authenticator fails the
// login outright.
func (s *Service) FinishLogin(ctx context.Context, responseJSON []byte) (storage.User, error) {
	ctx, span := s.tracer.Start(ctx, "passkey.finish_login")
	defer span.End()

	user, err := s.finishLogin(ctx, responseJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return user, err
}

func (s *Service) finishLogin(ctx context.Context, responseJSON []byte) (storage.User, error) {
	parsed, err := s.parser.ParseCredentialRequestResponseBytes(responseJSON)
	if err != nil {
		return storage.User{}, errors.Wrap(errors.CodeVerificationFailed, "parse login response", err)
	}

	_, sessionData, err := s.takeCeremony(ctx, parsed.Response.CollectedClientData.Challenge, CeremonyLogin)
	if err != nil {
		return storage.User{}, err
	}

	validated, credential, err := s.web.ValidatePasskeyLogin(s.lookupUser(ctx), sessionData, parsed)
	if err != nil {
		return storage.User{}, errors.Wrap(errors.CodeVerificationFailed, "verify login", err)
	}
	if credential.Authenticator.CloneWarning {
		return storage.User{}, errors.New(errors.CodeVerificationFailed, "credential counter regressed")
	}

	owner, ok := validated.(*ceremonyUser)
	if !ok {
		return storage.User{}, fmt.Errorf("unexpected webauthn user type %T", validated)
	}
	if err := s.store.UpdateAuthenticatorCounter(ctx, encodeCredentialID(credential.ID), credential.Authenticator.SignCount); err != nil {
		return storage.User{}, fmt.Errorf("persist credential counter: %w", err)
	}
	return owner.record, nil
}

// PruneCeremonies removes expired challenges, run periodically by the
// server.
func (s *Service) PruneCeremonies(ctx context.Context) error {
	return s.store.DeleteExpiredCeremonies(ctx, s.clock().UTC())
}

// lookupUser resolves the credential used in a discoverable assertion to
// its account. The stored user handle is echoed back as the WebAuthn ID
// so the library's handle check matches what the authenticator sends.
func (s *Service) lookupUser(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, _ []byte) (webauthn.User, error) {
		record, err := s.store.GetAuthenticator(ctx, encodeCredentialID(rawID))
		if err != nil {
			return nil, fmt.Errorf("unknown credential: %w", err)
		}
		user, err := s.store.GetUserByID(ctx, record.UserID)
		if err != nil {
			return nil, fmt.Errorf("load credential owner: %w", err)
		}
		siblings, err := s.store.ListAuthenticatorsByUser(ctx, record.UserID)
		if err != nil {
			return nil, fmt.Errorf("list owner credentials: %w", err)
		}
		credentials := make([]webauthn.Credential, 0, len(siblings))
		for _, sibling := range siblings {
			credential, err := credentialFromRecord(sibling)
			if err != nil {
				return nil, err
			}
			credentials = append(credentials, credential)
		}
		return &ceremonyUser{
			handle:      []byte(record.UserHandle),
			name:        user.Email,
			displayName: user.Name,
			record:      user,
			credentials: credentials,
		}, nil
	}
}

func (s *Service) putCeremony(ctx context.Context, challenge, kind string, base storage.Ceremony, sessionData *webauthn.SessionData) error {
	if sessionData == nil {
		return fmt.Errorf("session data is required")
	}
	payload, err := json.Marshal(sessionData)
	if err != nil {
		return fmt.Errorf("encode ceremony session: %w", err)
	}
	base.Challenge = challenge
	base.Kind = kind
	base.SessionJSON = string(payload)
	base.ExpiresAt = s.clock().UTC().Add(s.cfg.CeremonyTTL)
	if err := s.store.PutCeremony(ctx, base); err != nil {
		return fmt.Errorf("store ceremony: %w", err)
	}
	return nil
}

func (s *Service) takeCeremony(ctx context.Context, challenge, kind string) (storage.Ceremony, webauthn.SessionData, error) {
	ceremony, err := s.store.TakeCeremony(ctx, challenge, kind)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return storage.Ceremony{}, webauthn.SessionData{}, errors.New(errors.CodeVerificationFailed, "unknown or reused challenge")
		}
		return storage.Ceremony{}, webauthn.SessionData{}, fmt.Errorf("take ceremony: %w", err)
	}
	if ceremony.ExpiresAt.Before(s.clock().UTC()) {
		return storage.Ceremony{}, webauthn.SessionData{}, errors.New(errors.CodeVerificationFailed, "challenge expired")
	}
	var sessionData webauthn.SessionData
	if err := json.Unmarshal([]byte(ceremony.SessionJSON), &sessionData); err != nil {
		return storage.Ceremony{}, webauthn.SessionData{}, fmt.Errorf("decode ceremony session: %w", err)
	}
	return ceremony, sessionData, nil
}

// tempUserID derives a deterministic WebAuthn user handle from the email
// so re-registrations from the same address reuse one handle; anonymous
// registrations get a random one.
func tempUserID(email string) (string, error) {
	if email != "" {
		return "citizen_" + base64.RawURLEncoding.EncodeToString([]byte(email)), nil
	}
	random, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("mint user handle: %w", err)
	}
	return "citizen_" + random, nil
}

// ceremonyUser adapts account state to the webauthn.User interface.
type ceremonyUser struct {
	handle      []byte
	name        string
	displayName string
	record      storage.User
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte                         { return u.handle }
func (u *ceremonyUser) WebAuthnName() string                       { return u.name }
func (u *ceremonyUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *ceremonyUser) WebAuthnIcon() string                       { return "" }
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
