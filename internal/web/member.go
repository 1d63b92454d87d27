package web

import (
	"net/http"
	"time"

	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/platform/requestctx"
	"github.com/worldrepublic/republic/internal/storage"
)

type profileView struct {
	UUID           string     `json:"uuid"`
	Username       string     `json:"username"`
	WalletBalance  string     `json:"walletBalance"`
	SelfVerifiedAt *time.Time `json:"selfVerifiedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func viewOfProfile(p storage.Profile) profileView {
	return profileView{
		UUID:           p.UserUUID,
		Username:       p.Username,
		WalletBalance:  money.Format18(p.WalletBalance),
		SelfVerifiedAt: p.SelfVerifiedAt,
		CreatedAt:      p.CreatedAt,
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	profile, err := h.members.EnsureProfile(r.Context(), storage.User{ID: who.UserID, UUID: who.UUID})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "profile", viewOfProfile(profile))
}

type setUsernameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) setUsername(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	var req setUsernameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := h.members.SetUsername(r.Context(), who.UUID, req.Username)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "username updated", viewOfProfile(profile))
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	if err := h.members.DeleteAccount(r.Context(), who.UUID); err != nil {
		respondDomainError(w, err)
		return
	}
	if token, ok := session.ReadCookie(r); ok {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			h.logger.Printf("web: session cleanup after delete failed: %v", err)
		}
	}
	session.ClearCookie(w, h.cookies)
	respondJSON(w, http.StatusOK, "account deleted", nil)
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	profile, err := h.members.SearchByUsername(r.Context(), username)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "user", map[string]string{
		"uuid":     profile.UserUUID,
		"username": profile.Username,
	})
}
