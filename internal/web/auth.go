package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/platform/id"
	"github.com/worldrepublic/republic/internal/storage"
)

// stateCookieName holds the anti-forgery state across the Google
// redirect.
const stateCookieName = "wr_oauth_state"

// stateTTL bounds how long a pending Google redirect stays valid.
const stateTTL = 10 * time.Minute

type registerOptionsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (h *Handler) passkeyRegisterOptions(w http.ResponseWriter, r *http.Request) {
	var req registerOptionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, err := h.passkeys.BeginRegistration(r.Context(), req.Email, req.DisplayName)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "registration options", json.RawMessage(start.Options))
}

func (h *Handler) passkeyRegisterVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reg, err := h.passkeys.FinishRegistration(r.Context(), body)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if _, err := h.members.EnsureProfile(r.Context(), reg.User); err != nil {
		// The account exists and can sign in; the profile is created
		// lazily on the next authenticated request.
		h.logger.Printf("web: profile creation failed for %s: %v", reg.User.UUID, err)
	}
	if err := h.accounts.LinkAccount(r.Context(), storage.Account{
		UserID:            reg.User.ID,
		Type:              "webauthn",
		Provider:          "passkey",
		ProviderAccountID: reg.CredentialID,
	}); err != nil {
		h.logger.Printf("web: account link failed for %s: %v", reg.User.UUID, err)
	}
	h.signIn(w, r, reg.User)
}

func (h *Handler) passkeyLoginOptions(w http.ResponseWriter, r *http.Request) {
	start, err := h.passkeys.BeginLogin(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !start.HasCredentials {
		respondJSON(w, http.StatusOK, "no credentials", map[string]any{"hasCredentials": false})
		return
	}
	respondJSON(w, http.StatusOK, "login options", map[string]any{
		"hasCredentials": true,
		"options":        json.RawMessage(start.Options),
	})
}

func (h *Handler) passkeyLoginVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.passkeys.FinishLogin(r.Context(), body)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.signIn(w, r, user)
}

func (h *Handler) googleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := id.NewID()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL.Seconds()),
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

func (h *Handler) googleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		respondError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing code")
		return
	}
	googleID, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	user, err := h.google.SignIn(r.Context(), googleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if _, err := h.members.EnsureProfile(r.Context(), user); err != nil {
		h.logger.Printf("web: profile creation failed for %s: %v", user.UUID, err)
	}
	sess, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	session.WriteCookie(w, h.cookies, sess.Token, sess.Expires)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := session.ReadCookie(r); ok {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			h.logger.Printf("web: sign-out failed: %v", err)
		}
	}
	session.ClearCookie(w, h.cookies)
	respondJSON(w, http.StatusOK, "signed out", nil)
}

// signIn mints a session for a freshly authenticated user and answers
// with the public identity.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, user storage.User) {
	sess, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	session.WriteCookie(w, h.cookies, sess.Token, sess.Expires)
	respondJSON(w, http.StatusOK, "signed in", map[string]any{
		"uuid":  user.UUID,
		"name":  user.Name,
		"email": user.Email,
	})
}
