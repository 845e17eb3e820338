package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shopclip/shopclip-cli/internal/api"
	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/events"
	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/store"
)

// Durable store keys owned by the manager. Nothing else writes them.
const (
	keyAccessToken  = "auth.access_token"
	keyRefreshToken = "auth.refresh_token"
	keyUser         = "auth.user"
)

var (
	// ErrSignedOut is returned when an operation needs a session and none
	// exists.
	ErrSignedOut = errors.New("not signed in")

	// ErrSessionExpired is returned when the backend rejected the refresh
	// token and the local session was cleared.
	ErrSessionExpired = errors.New("session expired, sign in again")
)

// Session is a snapshot of the signed-in state. Mutations replace the whole
// snapshot under the manager's lock, never individual fields.
type Session struct {
	AccessToken   string
	RefreshToken  string
	User          *models.User
	Authenticated bool
}

// AuthAPI is the unauthenticated slice of the backend client used for the
// token endpoints. These must never run through the authenticated client:
// a refresh would recurse into itself.
type AuthAPI interface {
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// UserAPI is the authenticated slice used to fetch the profile. It is wired
// after construction because the authenticated client takes the manager
// itself as its token source.
type UserAPI interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Manager owns the session lifecycle. It implements api.TokenSource and
// api.RefreshableTokenSource for the authenticated client, deduplicates
// concurrent refreshes, and is the only writer of the durable auth keys.
//
// A valid session survives network and server trouble; only a confirmed
// rejection from the backend clears state.
type Manager struct {
	store   store.Store
	authAPI AuthAPI
	userAPI UserAPI
	bus     *events.EventBus
	logger  *logging.Logger

	mu      sync.RWMutex
	session Session

	refreshGroup singleflight.Group
}

// NewManager creates a session manager over the durable store and the
// unauthenticated auth client.
func NewManager(st store.Store, authAPI AuthAPI, bus *events.EventBus, logger *logging.Logger) *Manager {
	if bus == nil {
		bus = events.NewEventBus(0)
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return &Manager{
		store:   st,
		authAPI: authAPI,
		bus:     bus,
		logger:  logger,
	}
}

// SetUserAPI attaches the authenticated client used for profile fetches.
func (m *Manager) SetUserAPI(userAPI UserAPI) {
	m.userAPI = userAPI
}

// Session returns a copy of the current session snapshot.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) setSession(s Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

// RestoreSession loads persisted credentials and resumes the session. With a
// cached user present it resumes optimistically before confirming with the
// backend; transport trouble during confirmation keeps the session alive.
// Returning a zero Session with a nil error means signed out.
func (m *Manager) RestoreSession(ctx context.Context) (Session, error) {
	access, err := m.store.Get(keyAccessToken)
	if store.IsNotFound(err) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read stored session: %w", err)
	}

	refresh, err := m.store.Get(keyRefreshToken)
	if store.IsNotFound(err) {
		// Half a session is no session.
		m.clearSession("sign_out")
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read stored session: %w", err)
	}

	user := m.loadCachedUser()

	// Optimistic resume: trust the cached credentials immediately.
	m.setSession(Session{
		AccessToken:   access,
		RefreshToken:  refresh,
		User:          user,
		Authenticated: true,
	})
	if user != nil {
		m.bus.PublishSessionChange(true, user.Email, "restore")
		m.logger.Debug().Str("user", user.Email).Msg("resumed cached session")
	}

	// Refresh up front when the access token is expired or close to it.
	if TokenNeedsRefresh(access, constants.TokenExpiryBuffer) {
		if _, err := m.refresh(ctx); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return Session{}, err
			}
			m.logger.Warn().Err(err).Msg("token refresh failed, keeping cached session")
			m.publishDegraded(err)
			return m.Session(), nil
		}
	}

	// Confirm with the backend and update the cached profile.
	if m.userAPI != nil {
		freshUser, err := m.userAPI.CurrentUser(ctx)
		switch {
		case err == nil:
			m.storeUser(freshUser)
			m.bus.PublishSessionChange(true, freshUser.Email, "restore")
		case errors.Is(err, ErrSessionExpired):
			// The forced refresh inside the client already cleared state.
			return Session{}, ErrSessionExpired
		case api.IsUnauthorized(err):
			m.clearSession("rejected")
			return Session{}, ErrSessionExpired
		default:
			m.logger.Warn().Err(err).Msg("could not confirm session, keeping cached session")
			m.publishDegraded(err)
		}
	}

	return m.Session(), nil
}

// AccessToken implements api.TokenSource. It returns the current token when
// it has more than the expiry buffer of life left, otherwise it refreshes.
// Concurrent callers share a single in-flight refresh.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	s := m.Session()
	if !s.Authenticated || s.RefreshToken == "" {
		return "", ErrSignedOut
	}
	if s.AccessToken != "" && !TokenNeedsRefresh(s.AccessToken, constants.TokenExpiryBuffer) {
		return s.AccessToken, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh implements api.RefreshableTokenSource. The backend rejected
// the current access token, so its remaining lifetime is irrelevant.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	s := m.Session()
	if !s.Authenticated || s.RefreshToken == "" {
		return "", ErrSignedOut
	}
	return m.refresh(ctx)
}

// refresh deduplicates token refreshes. The shared flight clears when the
// call settles (success or failure); a later caller starts a fresh one.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	token, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (interface{}, error) {
	s := m.Session()
	if s.RefreshToken == "" {
		return nil, ErrSignedOut
	}

	pair, err := m.authAPI.RefreshToken(ctx, s.RefreshToken)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind == api.KindClient && !apiErr.Retryable() {
			// The backend rejected the refresh token. The session is over.
			m.logger.Info().Int("status", apiErr.Status).Msg("refresh token rejected, clearing session")
			m.clearSession("rejected")
			return nil, ErrSessionExpired
		}
		// Network, server, or timeout trouble never destroys the session.
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	// The backend rotates refresh tokens. Persist before returning so a
	// crash after this point cannot strand a revoked token on disk.
	if err := m.store.Set(keyAccessToken, pair.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}
	if pair.RefreshToken != "" {
		if err := m.store.Set(keyRefreshToken, pair.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to persist refresh token: %w", err)
		}
	}

	m.mu.Lock()
	next := m.session
	next.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		next.RefreshToken = pair.RefreshToken
	}
	next.Authenticated = true
	m.session = next
	m.mu.Unlock()

	m.logger.Debug().Msg("access token refreshed")
	m.bus.PublishSessionChange(true, userEmail(next.User), "refresh")
	return pair.AccessToken, nil
}

// SignIn installs a fresh token pair and user. Tokens are persisted before
// the snapshot flips to authenticated.
func (m *Manager) SignIn(ctx context.Context, tokens models.TokenPair, user *models.User) error {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return errors.New("sign in requires both an access and a refresh token")
	}
	if err := m.store.Set(keyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := m.store.Set(keyRefreshToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	if user != nil {
		if err := m.persistUser(user); err != nil {
			m.logger.Warn().Err(err).Msg("failed to cache user profile")
		}
	}

	m.setSession(Session{
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		User:          user,
		Authenticated: true,
	})
	m.bus.PublishSessionChange(true, userEmail(user), "sign_in")
	m.logger.Info().Str("user", userEmail(user)).Msg("signed in")
	return nil
}

// SignOut revokes the refresh token best-effort and always clears local
// state. Revocation failures are logged, never returned.
func (m *Manager) SignOut(ctx context.Context) error {
	s := m.Session()
	if s.RefreshToken != "" {
		if err := m.authAPI.Logout(ctx, s.RefreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("remote sign-out failed, clearing local session anyway")
		}
	}
	m.clearSession("sign_out")
	m.logger.Info().Msg("signed out")
	return nil
}

// RefreshUser re-fetches the profile through the authenticated client and
// updates the cached copy. A 401 that survives the client's single forced
// refresh ends the session.
func (m *Manager) RefreshUser(ctx context.Context) (*models.User, error) {
	if m.userAPI == nil {
		return nil, errors.New("user API not attached")
	}
	if !m.Session().Authenticated {
		return nil, ErrSignedOut
	}

	user, err := m.userAPI.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		if api.IsUnauthorized(err) {
			m.clearSession("rejected")
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	m.storeUser(user)
	return user, nil
}

// clearSession deletes the persisted keys and resets the snapshot. Deletes
// tolerate already-missing keys.
func (m *Manager) clearSession(reason string) {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyUser} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Warn().Str("key", key).Err(err).Msg("failed to delete stored credential")
		}
	}
	m.setSession(Session{})
	m.bus.PublishSessionChange(false, "", reason)
}

// loadCachedUser reads the cached profile. A missing or corrupt cache is not
// an error; the profile is re-fetched on confirmation anyway.
func (m *Manager) loadCachedUser() *models.User {
	raw, err := m.store.Get(keyUser)
	if err != nil {
		return nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn().Err(err).Msg("cached user profile is corrupt, ignoring")
		return nil
	}
	return &user
}

func (m *Manager) storeUser(user *models.User) {
	if err := m.persistUser(user); err != nil {
		m.logger.Warn().Err(err).Msg("failed to cache user profile")
	}
	m.mu.Lock()
	next := m.session
	next.User = user
	m.session = next
	m.mu.Unlock()
}

func (m *Manager) persistUser(user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.store.Set(keyUser, string(raw))
}

func (m *Manager) publishDegraded(err error) {
	m.bus.Publish(&events.ErrorEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventError, Time: time.Now()},
		Scope:     "auth",
		Err:       err,
	})
}

func userEmail(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
