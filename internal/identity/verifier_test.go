package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPVerifierMapsResponse(t *testing.T) {
	var gotBody verifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, err := w.Write([]byte(`{
			"isValidDetails": {"isValid": true},
			"discloseOutput": {"nullifier": "null-1", "nationality": "FRA"},
			"userData": {"userIdentifier": "uuid-1"}
		}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	verifier := NewHTTPVerifier(server.URL, "world-republic", server.Client())
	attestation, err := verifier.Verify(context.Background(), completeProof())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !attestation.Valid {
		t.Fatalf("attestation not valid: %+v", attestation)
	}
	if attestation.Nullifier != "null-1" || attestation.UserUUID != "uuid-1" {
		t.Fatalf("attestation = %+v", attestation)
	}
	if gotBody.Scope != "world-republic" {
		t.Fatalf("scope = %q, want world-republic", gotBody.Scope)
	}
	if string(gotBody.Proof) != `{"pi_a":[]}` {
		t.Fatalf("proof not forwarded verbatim: %s", gotBody.Proof)
	}
}

func TestHTTPVerifierInvalidProof(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"isValidDetails": {"isValid": false, "reason": "expired"}}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	verifier := NewHTTPVerifier(server.URL, "world-republic", server.Client())
	attestation, err := verifier.Verify(context.Background(), completeProof())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if attestation.Valid {
		t.Fatalf("invalid proof came back valid")
	}
	if attestation.Reason != "expired" {
		t.Fatalf("reason = %q, want expired", attestation.Reason)
	}
}

func TestHTTPVerifierNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	verifier := NewHTTPVerifier(server.URL, "world-republic", server.Client())
	if _, err := verifier.Verify(context.Background(), completeProof()); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}
