package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/platform/requestctx"
	"github.com/worldrepublic/republic/internal/storage"
)

type transactionView struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Chain         string    `json:"chain,omitempty"`
	RecipientUUID string    `json:"recipientUuid,omitempty"`
	TransactionID string    `json:"transactionId"`
	IsReceived    bool      `json:"isReceived"`
	CreatedAt     time.Time `json:"createdAt"`
}

func viewOfTransaction(t storage.Transaction, isReceived bool) transactionView {
	return transactionView{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        money.Format18(t.Amount),
		WalletAddress: t.WalletAddress,
		Chain:         t.Chain,
		RecipientUUID: t.RecipientUUID,
		TransactionID: t.TransactionID,
		IsReceived:    isReceived,
		CreatedAt:     t.CreatedAt,
	}
}

type withdrawRequest struct {
	WalletAddress string `json:"walletAddress"`
	Chain         string `json:"chain"`
	Amount        string `json:"amount"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	var req withdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := h.wallets.Withdraw(r.Context(), who.UUID, req.WalletAddress, req.Chain, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "withdrawal submitted", viewOfTransaction(record, false))
}

type transferRequest struct {
	Username string `json:"username"`
	Amount   string `json:"amount"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := h.wallets.Transfer(r.Context(), who.UUID, req.Username, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "transfer complete", viewOfTransaction(record, false))
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	who, _ := requestctx.IdentityFromContext(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := h.wallets.History(r.Context(), who.UUID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]transactionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOfTransaction(e.Transaction, e.IsReceived))
	}
	respondJSON(w, http.StatusOK, "transactions", views)
}
