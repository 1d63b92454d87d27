// Package server wires storage, domain services, and the HTTP surface
// into a runnable process.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/worldrepublic/republic/internal/auth/oauth"
	"github.com/worldrepublic/republic/internal/auth/passkey"
	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/identity"
	"github.com/worldrepublic/republic/internal/member"
	"github.com/worldrepublic/republic/internal/party"
	"github.com/worldrepublic/republic/internal/storage"
	"github.com/worldrepublic/republic/internal/storage/postgres"
	"github.com/worldrepublic/republic/internal/storage/sqlite"
	"github.com/worldrepublic/republic/internal/wallet"
	"github.com/worldrepublic/republic/internal/web"
)

// Config holds the full process configuration, parsed from the
// environment.
type Config struct {
	HTTPAddr string `env:"WORLD_REPUBLIC_HTTP_ADDR" envDefault:":8080"`

	// DatabaseURL selects the Postgres driver when set; otherwise the
	// process runs on a local SQLite file.
	DatabaseURL string `env:"WORLD_REPUBLIC_DATABASE_URL"`
	SQLitePath  string `env:"WORLD_REPUBLIC_SQLITE_PATH" envDefault:"data/republic.db"`

	SecureCookies bool `env:"WORLD_REPUBLIC_SECURE_COOKIES" envDefault:"false"`

	EngineURL       string `env:"WORLD_REPUBLIC_ENGINE_URL" envDefault:"https://engine.thirdweb.com/v1/write/contract"`
	EngineSecretKey string `env:"WORLD_REPUBLIC_ENGINE_SECRET_KEY"`

	VerifierURL   string `env:"WORLD_REPUBLIC_VERIFIER_URL"`
	VerifierScope string `env:"WORLD_REPUBLIC_VERIFIER_SCOPE" envDefault:"world-republic"`

	PrunePeriod time.Duration `env:"WORLD_REPUBLIC_CEREMONY_PRUNE_PERIOD" envDefault:"5m"`

	Passkey passkey.Config
	Google  oauth.Config
}

// Validate rejects a configuration that would start a process unable to
// serve its core operations, so missing values surface at startup
// instead of on the first request.
func (c Config) Validate() error {
	if c.EngineSecretKey == "" {
		return fmt.Errorf("WORLD_REPUBLIC_ENGINE_SECRET_KEY is required")
	}
	if c.VerifierURL == "" {
		return fmt.Errorf("WORLD_REPUBLIC_VERIFIER_URL is required")
	}
	if c.Google.Enabled() {
		if c.Google.RedirectURL == "" {
			return fmt.Errorf("WORLD_REPUBLIC_GOOGLE_REDIRECT_URL is required when Google sign-in is configured")
		}
	} else if c.Google.ClientID != "" || c.Google.ClientSecret != "" {
		return fmt.Errorf("Google sign-in needs both WORLD_REPUBLIC_GOOGLE_CLIENT_ID and WORLD_REPUBLIC_GOOGLE_CLIENT_SECRET")
	}
	return nil
}

// OpenStore opens the storage driver the configuration selects.
func OpenStore(ctx context.Context, cfg Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		return postgres.Open(ctx, cfg.DatabaseURL)
	}
	return sqlite.Open(cfg.SQLitePath)
}

// Run opens storage, wires the services, and serves HTTP until the
// context ends.
func Run(ctx context.Context, cfg Config) error {
	logger := log.Default()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("close store: %v", err)
		}
	}()

	passkeys, err := passkey.NewService(store, cfg.Passkey)
	if err != nil {
		return fmt.Errorf("wire passkey service: %w", err)
	}

	sessions := session.NewAdapter(store)
	members := member.NewService(store, logger)
	processor := wallet.NewHTTPProcessor(cfg.EngineURL, cfg.EngineSecretKey, wallet.TokenContractAddress, nil)
	wallets := wallet.NewService(store, processor, logger)
	parties := party.NewService(store, logger)
	verifier := identity.NewHTTPVerifier(cfg.VerifierURL, cfg.VerifierScope, nil)
	identities := identity.NewService(store, verifier, logger)
	google := oauth.NewService(cfg.Google, store, nil, logger)

	handler := web.NewHandler(web.Deps{
		Sessions:   sessions,
		Cookies:    session.CookiePolicy{Secure: cfg.SecureCookies},
		Passkeys:   passkeys,
		Members:    members,
		Wallets:    wallets,
		Parties:    parties,
		Identities: identities,
		Google:     google,
		Accounts:   store,
		Logger:     logger,
	})

	httpServer, err := web.NewServer(cfg.HTTPAddr, handler)
	if err != nil {
		return err
	}

	go pruneCeremonies(ctx, passkeys, cfg.PrunePeriod, logger)

	return httpServer.Serve(ctx)
}

// pruneCeremonies sweeps expired WebAuthn challenges until the context
// ends.
func pruneCeremonies(ctx context.Context, passkeys *passkey.Service, period time.Duration, logger *log.Logger) {
	if period <= 0 {
		period = 5 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := passkeys.PruneCeremonies(ctx); err != nil {
				logger.Printf("prune ceremonies: %v", err)
			}
		}
	}
}
