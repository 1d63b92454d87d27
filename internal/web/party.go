package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/worldrepublic/republic/internal/party"
	"github.com/worldrepublic/republic/internal/platform/requestctx"
	"github.com/worldrepublic/republic/internal/storage"
)

type partyView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	WebsiteURL     string     `json:"websiteUrl,omitempty"`
	LeaderUsername string     `json:"leaderUsername"`
	CreatedAt      time.Time  `json:"createdAt"`
	DissolvedAt    *time.Time `json:"dissolvedAt,omitempty"`
}

func viewOfParty(p storage.Party) partyView {
	return partyView{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		WebsiteURL:     p.WebsiteURL,
		LeaderUsername: p.LeaderUsername,
		CreatedAt:      p.CreatedAt,
		DissolvedAt:    p.DissolvedAt,
	}
}

type partyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	WebsiteURL  string `json:"websiteUrl"`
}

func (r partyRequest) draft() party.Draft {
	return party.Draft{Name: r.Name, Description: r.Description, WebsiteURL: r.WebsiteURL}
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	filters := storage.PartyFilters{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filters.Limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filters.Offset = parsed
	}
	parties, err := h.parties.List(r.Context(), filters)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]partyView, 0, len(parties))
	for _, p := range parties {
		views = append(views, viewOfParty(p))
	}
	respondJSON(w, http.StatusOK, "parties", views)
}

func (h *Handler) createParty(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	var req partyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.parties.Create(r.Context(), who.UUID, req.draft())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "party founded", viewOfParty(p))
}

func (h *Handler) getParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.parties.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "party", viewOfParty(p))
}

func (h *Handler) updateParty(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	var req partyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.parties.Update(r.Context(), who.UUID, r.PathValue("id"), req.draft())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "party updated", viewOfParty(p))
}

func (h *Handler) dissolveParty(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	if err := h.parties.Dissolve(r.Context(), who.UUID, r.PathValue("id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "party dissolved", nil)
}
