package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/store"
)

// Ephemeral store keys holding the in-flight handshake.
const (
	keyOAuthState        = "oauth.state"
	keyOAuthNonce        = "oauth.nonce"
	keyOAuthCodeVerifier = "oauth.code_verifier"
)

// Handshake phases, in order. Cleanup resets to idle.
const (
	PhaseIdle      = "idle"
	PhaseInitiated = "initiated"
	PhaseValidated = "validated"
	PhaseExchanged = "exchanged"
	PhaseCompleted = "completed"
)

var (
	// ErrStateMissing means no handshake is pending: nothing stored, or the
	// stored state outlived its TTL.
	ErrStateMissing = errors.New("no pending sign-in attempt (state missing or expired)")

	// ErrStateMismatch means the returned state does not match the stored
	// one. The callback cannot be trusted.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrMissingProvider is returned when the provider name is empty.
	ErrMissingProvider = errors.New("provider is required")
)

// OAuthAPI is the slice of the backend client the flow needs. *api.Client
// satisfies it.
type OAuthAPI interface {
	OAuthInit(ctx context.Context, provider, redirectURI string) (*models.OAuthInitResponse, error)
	OAuthCallback(ctx context.Context, req *models.OAuthCallbackRequest) (*models.AuthResult, error)
}

// Handshake carries the stored values Validate hands to the exchange step.
type Handshake struct {
	State        string
	Nonce        string
	CodeVerifier string
}

// OAuthFlow drives the backend-mediated OAuth handshake: initiate, validate
// the returned state, exchange the code, and hand the tokens to the session
// manager. Handshake values live in the ephemeral store and are single-use.
type OAuthFlow struct {
	store       store.Store
	oauthAPI    OAuthAPI
	manager     *Manager
	redirectURI string
	logger      *logging.Logger

	mu    sync.Mutex
	phase string
}

// NewOAuthFlow creates a flow over the ephemeral store and the
// unauthenticated client.
func NewOAuthFlow(st store.Store, oauthAPI OAuthAPI, manager *Manager, redirectURI string, logger *logging.Logger) *OAuthFlow {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return &OAuthFlow{
		store:       st,
		oauthAPI:    oauthAPI,
		manager:     manager,
		redirectURI: redirectURI,
		logger:      logger,
		phase:       PhaseIdle,
	}
}

// Phase returns the current handshake phase.
func (f *OAuthFlow) Phase() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *OAuthFlow) setPhase(p string) {
	f.mu.Lock()
	f.phase = p
	f.mu.Unlock()
}

// Initiate starts a handshake with the given provider and returns the
// authorization URL to open. The state, nonce, and PKCE verifier from the
// backend are stored for the callback. Initiating again replaces any
// previous handshake.
func (f *OAuthFlow) Initiate(ctx context.Context, provider string) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", ErrMissingProvider
	}

	resp, err := f.oauthAPI.OAuthInit(ctx, provider, f.redirectURI)
	if err != nil {
		return "", err
	}

	// Some backends return state as its own field, others only fold it into
	// the authorization URL.
	state := resp.State
	if state == "" {
		state = stateFromURL(resp.AuthorizationURL)
	}
	if state == "" {
		return "", errors.New("backend response carries no state parameter")
	}

	if err := f.store.Set(keyOAuthState, state); err != nil {
		return "", fmt.Errorf("failed to store handshake state: %w", err)
	}
	if err := f.store.Set(keyOAuthNonce, resp.Nonce); err != nil {
		return "", fmt.Errorf("failed to store handshake nonce: %w", err)
	}
	if resp.CodeVerifier != "" {
		if err := f.store.Set(keyOAuthCodeVerifier, resp.CodeVerifier); err != nil {
			return "", fmt.Errorf("failed to store code verifier: %w", err)
		}
	}

	f.setPhase(PhaseInitiated)
	f.logger.Debug().Str("provider", provider).Msg("oauth handshake initiated")
	return resp.AuthorizationURL, nil
}

// Validate checks a returned authorization state against the stored
// handshake. Checks fail closed. Stored values are never deleted here, so
// the caller may retry the same redirect after a transient mistake.
func (f *OAuthFlow) Validate(returnedState, provider string) (*Handshake, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, ErrMissingProvider
	}

	stored, err := f.store.Get(keyOAuthState)
	if err != nil {
		return nil, ErrStateMissing
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(returnedState)) != 1 {
		return nil, ErrStateMismatch
	}

	nonce, _ := f.store.Get(keyOAuthNonce)
	verifier, _ := f.store.Get(keyOAuthCodeVerifier)

	f.setPhase(PhaseValidated)
	return &Handshake{State: stored, Nonce: nonce, CodeVerifier: verifier}, nil
}

// Exchange trades the authorization code for tokens, forwarding the stored
// state, nonce, and PKCE verifier.
func (f *OAuthFlow) Exchange(ctx context.Context, code, provider string) (*models.AuthResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("authorization code is required")
	}
	if strings.TrimSpace(provider) == "" {
		return nil, ErrMissingProvider
	}

	state, err := f.store.Get(keyOAuthState)
	if err != nil {
		return nil, ErrStateMissing
	}
	nonce, _ := f.store.Get(keyOAuthNonce)
	verifier, _ := f.store.Get(keyOAuthCodeVerifier)

	result, err := f.oauthAPI.OAuthCallback(ctx, &models.OAuthCallbackRequest{
		Provider:     provider,
		Code:         code,
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		RedirectURI:  f.redirectURI,
	})
	if err != nil {
		return nil, err
	}

	f.setPhase(PhaseExchanged)
	return result, nil
}

// CompleteAndCleanup persists the exchanged tokens through the manager, then
// deletes all handshake values no matter how the sign-in went. The handshake
// is single-use: after cleanup a repeated Validate fails with
// ErrStateMissing.
func (f *OAuthFlow) CompleteAndCleanup(ctx context.Context, result *models.AuthResult) error {
	if result == nil {
		return errors.New("exchange result is required")
	}

	signInErr := f.manager.SignIn(ctx, result.TokenPair, result.User)

	for _, key := range []string{keyOAuthState, keyOAuthNonce, keyOAuthCodeVerifier} {
		if err := f.store.Delete(key); err != nil {
			f.logger.Warn().Str("key", key).Err(err).Msg("failed to delete handshake value")
		}
	}

	if signInErr != nil {
		f.setPhase(PhaseIdle)
		return signInErr
	}
	f.setPhase(PhaseCompleted)
	return nil
}

func stateFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}
