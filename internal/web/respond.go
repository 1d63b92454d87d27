package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/worldrepublic/republic/internal/platform/errors"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// respondJSON writes a success response using the common envelope.
func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, status, Envelope{Code: status, Message: message, Data: data})
}

// respondError writes an error response with the shared envelope
// structure.
func respondError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, Envelope{Code: status, Message: message})
}

// respondDomainError maps a coded domain error onto an HTTP status.
// Errors without a domain code carry internal detail, so the client gets
// a generic message and the detail stays in the server log.
func respondDomainError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	if code == errors.CodeUnknown {
		log.Printf("web: internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondError(w, statusOf(code), err.Error())
}

func statusOf(code errors.Code) int {
	switch code {
	case errors.CodeInvalidAddress,
		errors.CodeInvalidChain,
		errors.CodeInvalidAmount,
		errors.CodeBelowMinimum,
		errors.CodeInvalidUsername,
		errors.CodeInvalidArgument,
		errors.CodeInsufficientBalance:
		return http.StatusBadRequest
	case errors.CodeUnauthenticated, errors.CodeVerificationFailed:
		return http.StatusUnauthorized
	case errors.CodeUnauthorized:
		return http.StatusForbidden
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeUsernameTaken,
		errors.CodeDuplicateNullifier,
		errors.CodeDuplicateParty,
		errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeProcessorFailure, errors.CodeProcessorNoID:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("web: encode payload failed: %v", err)
	}
}

// decodeBody decodes a JSON request body into dst with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
