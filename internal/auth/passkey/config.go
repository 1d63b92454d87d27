// Package passkey implements WebAuthn registration and login ceremonies.
package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Ceremony kinds. A challenge minted for one kind can never finish the
// other.
const (
	CeremonyRegistration = "registration"
	CeremonyLogin        = "login"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string        `env:"WORLD_REPUBLIC_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"World Republic"`
	RPID          string        `env:"WORLD_REPUBLIC_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"WORLD_REPUBLIC_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	CeremonyTTL   time.Duration `env:"WORLD_REPUBLIC_WEBAUTHN_CEREMONY_TTL"    envDefault:"5m"`
}

func (c Config) withDefaults() Config {
	if c.RPDisplayName == "" {
		c.RPDisplayName = "World Republic"
	}
	if c.RPID == "" {
		c.RPID = "localhost"
	}
	if len(c.RPOrigins) == 0 {
		c.RPOrigins = []string{"http://localhost:3000"}
	}
	if c.CeremonyTTL <= 0 {
		c.CeremonyTTL = 5 * time.Minute
	}
	return c
}

// newWebAuthn builds the relying party. Resident keys are required so
// every credential is discoverable; user verification stays preferred to
// keep platform authenticators without biometrics usable.
func newWebAuthn(c Config) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName: c.RPDisplayName,
		RPID:          c.RPID,
		RPOrigins:     c.RPOrigins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementRequired,
			UserVerification: protocol.VerificationPreferred,
		},
		AttestationPreference: protocol.PreferNoAttestation,
	})
}
