// Package oauth signs citizens in through Google. The exchange happens
// directly against Google's token endpoint over TLS, so ID-token claims
// are read from that trusted response rather than re-verified against
// Google's JWKS.
package oauth

// Config holds the Google OAuth client settings.
type Config struct {
	ClientID     string `env:"WORLD_REPUBLIC_GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"WORLD_REPUBLIC_GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"WORLD_REPUBLIC_GOOGLE_REDIRECT_URL"`
	AuthURL      string `env:"WORLD_REPUBLIC_GOOGLE_AUTH_URL"  envDefault:"https://accounts.google.com/o/oauth2/v2/auth"`
	TokenURL     string `env:"WORLD_REPUBLIC_GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
}

// Enabled reports whether a Google client is configured at all.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
