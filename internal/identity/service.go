package identity

import (
	"context"
	"log"
	"time"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/storage"
)

// Outcome is the result the verify endpoint reports. The endpoint
// always answers HTTP 200; Status distinguishes success from the many
// ways a proof can fail.
type Outcome struct {
	Status            string         `json:"status"`
	Result            bool           `json:"result"`
	Reason            string         `json:"reason,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject,omitempty"`
}

func failure(reason string) Outcome {
	return Outcome{Status: "error", Result: false, Reason: reason}
}

// Store is the slice of the storage surface the service needs.
type Store interface {
	GetUserByUUID(ctx context.Context, uuid string) (storage.User, error)
	MarkVerified(ctx context.Context, userUUID string, nullifier string, at time.Time) error
	FindNullifierOwner(ctx context.Context, nullifier string) (string, error)
}

// Service implements proof-of-personhood verification.
type Service struct {
	store    Store
	verifier Verifier
	logger   *log.Logger
	clock    func() time.Time
}

// NewService wires the identity service.
func NewService(store Store, verifier Verifier, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, verifier: verifier, logger: logger, clock: time.Now}
}

// Verify checks the proof and, when it holds, stamps the account with
// the verification time and nullifier. Every failure mode comes back as
// an error Outcome rather than a Go error; callers translate nothing.
func (s *Service) Verify(ctx context.Context, proof Proof) Outcome {
	if !proof.Complete() {
		return failure("Proof, publicSignals, attestationId and userContextData are required")
	}

	attestation, err := s.verifier.Verify(ctx, proof)
	if err != nil {
		s.logger.Printf("identity: verifier call failed: %v", err)
		return failure(err.Error())
	}
	if !attestation.Valid {
		return failure("Verification failed")
	}
	if attestation.Nullifier == "" || attestation.UserUUID == "" {
		return failure("Missing nullifier or user identifier")
	}

	if _, err := s.store.GetUserByUUID(ctx, attestation.UserUUID); err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return failure("User not found for UUID")
		}
		s.logger.Printf("identity: user lookup failed: %v", err)
		return failure(err.Error())
	}

	owner, err := s.store.FindNullifierOwner(ctx, attestation.Nullifier)
	if err != nil && errors.CodeOf(err) != errors.CodeNotFound {
		s.logger.Printf("identity: nullifier lookup failed: %v", err)
		return failure(err.Error())
	}
	if err == nil && owner != attestation.UserUUID {
		return failure("Self ID already linked to another account")
	}

	if err := s.store.MarkVerified(ctx, attestation.UserUUID, attestation.Nullifier, s.clock().UTC()); err != nil {
		s.logger.Printf("identity: failed to stamp verification for %s: %v", attestation.UserUUID, err)
		return failure(err.Error())
	}

	return Outcome{
		Status:            "success",
		Result:            true,
		CredentialSubject: attestation.CredentialSubject,
	}
}
