// Package cli provides client wiring helpers shared by the commands.
package cli

import (
	"fmt"

	"github.com/shopclip/shopclip-cli/internal/api"
	"github.com/shopclip/shopclip-cli/internal/auth"
	"github.com/shopclip/shopclip-cli/internal/config"
	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/events"
	"github.com/shopclip/shopclip-cli/internal/store"
)

// app bundles the wired client stack a command needs: config, stores, the
// session manager, and both backend clients. The anonymous client carries no
// token source and serves the token endpoints; the authenticated one signs
// every request through the manager.
type app struct {
	cfg       *config.Config
	bus       *events.EventBus
	durable   *store.FileStore
	ephemeral *store.EphemeralStore
	manager   *auth.Manager
	anonAPI   *api.Client
	api       *api.Client
	flow      *auth.OAuthFlow
}

// loadConfig loads configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the full client stack from configuration.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := GetLogger()
	bus := events.NewEventBus(0)

	keysDir, err := config.KeysDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve keys directory: %w", err)
	}
	durable, err := store.NewFileStore(keysDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	ephemeral := store.NewEphemeralStore(constants.HandshakeTTL, constants.HandshakeCleanupInterval)

	anonAPI, err := api.NewClient(cfg, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	manager := auth.NewManager(durable, anonAPI, bus, log)

	authedAPI, err := api.NewClient(cfg, manager, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	manager.SetUserAPI(authedAPI)

	flow := auth.NewOAuthFlow(ephemeral, anonAPI, manager, cfg.RedirectURI, log)

	return &app{
		cfg:       cfg,
		bus:       bus,
		durable:   durable,
		ephemeral: ephemeral,
		manager:   manager,
		anonAPI:   anonAPI,
		api:       authedAPI,
		flow:      flow,
	}, nil
}

// requireSession restores the persisted session and fails with a sign-in
// hint when none exists.
func (a *app) requireSession() (auth.Session, error) {
	sess, err := a.manager.RestoreSession(GetContext())
	if err != nil {
		return auth.Session{}, fmt.Errorf("failed to restore session: %w", err)
	}
	if !sess.Authenticated {
		return auth.Session{}, fmt.Errorf("not signed in (run 'shopclip auth login' first)")
	}
	return sess, nil
}
