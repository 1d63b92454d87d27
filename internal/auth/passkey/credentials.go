package passkey

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/worldrepublic/republic/internal/storage"
)

// Device types recorded for bookkeeping, mirroring the backup-eligible
// flag of the credential.
const (
	deviceTypeSingle = "singleDevice"
	deviceTypeMulti  = "multiDevice"
)

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// credentialFromRecord rebuilds a library credential from a stored row.
func credentialFromRecord(record storage.Authenticator) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(record.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id %q: %w", record.CredentialID, err)
	}
	publicKey, err := base64.StdEncoding.DecodeString(record.PublicKey)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode public key for %q: %w", record.CredentialID, err)
	}

	var transports []protocol.AuthenticatorTransport
	for _, value := range strings.Split(record.Transports, ",") {
		if value = strings.TrimSpace(value); value != "" {
			transports = append(transports, protocol.AuthenticatorTransport(value))
		}
	}

	return webauthn.Credential{
		ID:        rawID,
		PublicKey: publicKey,
		Transport: transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: record.DeviceType == deviceTypeMulti,
			BackupState:    record.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: record.Counter,
		},
	}, nil
}

// recordFromCredential flattens a verified credential into a stored row.
// UserHandle keeps the WebAuthn user handle minted at registration so
// discoverable logins can be mapped back to the account.
func recordFromCredential(userID int64, userHandle string, credential *webauthn.Credential) storage.Authenticator {
	transports := make([]string, 0, len(credential.Transport))
	for _, transport := range credential.Transport {
		transports = append(transports, string(transport))
	}
	deviceType := deviceTypeSingle
	if credential.Flags.BackupEligible {
		deviceType = deviceTypeMulti
	}
	return storage.Authenticator{
		CredentialID: encodeCredentialID(credential.ID),
		UserID:       userID,
		UserHandle:   userHandle,
		PublicKey:    base64.StdEncoding.EncodeToString(credential.PublicKey),
		Counter:      credential.Authenticator.SignCount,
		DeviceType:   deviceType,
		BackedUp:     credential.Flags.BackupState,
		Transports:   strings.Join(transports, ","),
	}
}
