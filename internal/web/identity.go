package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/worldrepublic/republic/internal/identity"
)

// selfVerify always answers 200; success or failure lives in the body
// so the verifying client can surface the reason verbatim.
func (h *Handler) selfVerify(w http.ResponseWriter, r *http.Request) {
	var proof identity.Proof
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		writeOutcome(w, identity.Outcome{Status: "error", Result: false, Reason: "invalid request body"})
		return
	}
	writeOutcome(w, h.identities.Verify(r.Context(), proof))
}

func writeOutcome(w http.ResponseWriter, outcome identity.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		log.Printf("web: encode verify outcome failed: %v", err)
	}
}
