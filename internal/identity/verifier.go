// Package identity binds zero-knowledge personhood proofs to citizen
// accounts. Proof checking itself happens in an external verifier; this
// package owns the nullifier bookkeeping that keeps one person to one
// account.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// verifierTimeout bounds one proof-verification round trip.
const verifierTimeout = 30 * time.Second

// Proof is the raw verification payload forwarded from the client. The
// fields are opaque to this service; only the verifier interprets them.
type Proof struct {
	AttestationID   json.RawMessage `json:"attestationId"`
	Proof           json.RawMessage `json:"proof"`
	PublicSignals   json.RawMessage `json:"publicSignals"`
	UserContextData json.RawMessage `json:"userContextData"`
}

// Complete reports whether every required payload field is present.
func (p Proof) Complete() bool {
	return len(p.AttestationID) > 0 && len(p.Proof) > 0 &&
		len(p.PublicSignals) > 0 && len(p.UserContextData) > 0
}

// Attestation is the verifier's judgement on a proof. Nullifier is the
// stable per-person scalar; UserUUID is the account the client embedded
// in the proof's context data.
type Attestation struct {
	Valid             bool
	Reason            string
	Nullifier         string
	UserUUID          string
	CredentialSubject map[string]any
}

// Verifier checks a personhood proof.
type Verifier interface {
	Verify(ctx context.Context, proof Proof) (Attestation, error)
}

// HTTPVerifier calls a remote proof-verification endpoint.
type HTTPVerifier struct {
	url    string
	scope  string
	client *http.Client
}

// NewHTTPVerifier creates a verifier that POSTs proofs to the given URL
// under the given scope.
func NewHTTPVerifier(url, scope string, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Timeout: verifierTimeout}
	}
	return &HTTPVerifier{url: url, scope: scope, client: client}
}

type verifyRequest struct {
	Scope           string          `json:"scope"`
	AttestationID   json.RawMessage `json:"attestationId"`
	Proof           json.RawMessage `json:"proof"`
	PublicSignals   json.RawMessage `json:"publicSignals"`
	UserContextData json.RawMessage `json:"userContextData"`
}

type verifyResponse struct {
	IsValidDetails struct {
		IsValid bool   `json:"isValid"`
		Reason  string `json:"reason"`
	} `json:"isValidDetails"`
	DiscloseOutput map[string]any `json:"discloseOutput"`
	UserData       struct {
		UserIdentifier string `json:"userIdentifier"`
	} `json:"userData"`
}

// Verify forwards the proof and maps the verifier's response.
func (h *HTTPVerifier) Verify(ctx context.Context, proof Proof) (Attestation, error) {
	payload, err := json.Marshal(verifyRequest{
		Scope:           h.scope,
		AttestationID:   proof.AttestationID,
		Proof:           proof.Proof,
		PublicSignals:   proof.PublicSignals,
		UserContextData: proof.UserContextData,
	})
	if err != nil {
		return Attestation{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return Attestation{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Attestation{}, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Attestation{}, fmt.Errorf("verifier returned %s", resp.Status)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Attestation{}, fmt.Errorf("decode verify response: %w", err)
	}

	nullifier, _ := result.DiscloseOutput["nullifier"].(string)
	return Attestation{
		Valid:             result.IsValidDetails.IsValid,
		Reason:            result.IsValidDetails.Reason,
		Nullifier:         nullifier,
		UserUUID:          result.UserData.UserIdentifier,
		CredentialSubject: result.DiscloseOutput,
	}, nil
}
