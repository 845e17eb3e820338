package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopclip/shopclip-cli/internal/api"
	"github.com/shopclip/shopclip-cli/internal/events"
	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/store"
)

// fakeAuthAPI scripts the unauthenticated token endpoints.
type fakeAuthAPI struct {
	mu           sync.Mutex
	refreshCalls int
	refreshPair  *models.TokenPair
	refreshErr   error
	refreshDelay time.Duration
	logoutCalls  int
	logoutErr    error
	lastRefresh  string
}

func (f *fakeAuthAPI) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.lastRefresh = refreshToken
	delay := f.refreshDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshPair, nil
}

func (f *fakeAuthAPI) Logout(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAuthAPI) counts() (refreshes, logouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.logoutCalls
}

// fakeUserAPI scripts the authenticated profile endpoint.
type fakeUserAPI struct {
	mu    sync.Mutex
	calls int
	user  *models.User
	err   error
}

func (f *fakeUserAPI) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newTestManager(t *testing.T, authAPI *fakeAuthAPI) (*Manager, store.Store) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir(), logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v, want nil", err)
	}
	m := NewManager(st, authAPI, events.NewEventBus(0), logging.NewLogger(io.Discard))
	return m, st
}

// TestManagerAccessTokenSignedOut verifies the accessor fails without a
// session.
func TestManagerAccessTokenSignedOut(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuthAPI{})

	_, err := m.AccessToken(context.Background())
	if !errors.Is(err, ErrSignedOut) {
		t.Errorf("AccessToken() error = %v, want ErrSignedOut", err)
	}
}

// TestManagerAccessTokenFreshToken verifies a token outside the expiry
// buffer is returned without a refresh.
func TestManagerAccessTokenFreshToken(t *testing.T) {
	authAPI := &fakeAuthAPI{}
	m, _ := newTestManager(t, authAPI)

	access := signedToken(t, time.Hour)
	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: access, RefreshToken: "R1"}, nil); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	got, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v, want nil", err)
	}
	if got != access {
		t.Error("AccessToken() returned a different token than signed in")
	}
	if refreshes, _ := authAPI.counts(); refreshes != 0 {
		t.Errorf("refreshCalls = %d, want 0", refreshes)
	}
}

// TestManagerAccessTokenRefreshesNearExpiry verifies a token inside the
// buffer triggers a refresh and rotated tokens are persisted.
func TestManagerAccessTokenRefreshesNearExpiry(t *testing.T) {
	newAccess := signedToken(t, time.Hour)
	authAPI := &fakeAuthAPI{
		refreshPair: &models.TokenPair{AccessToken: newAccess, RefreshToken: "R2"},
	}
	m, st := newTestManager(t, authAPI)

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, 30*time.Second), RefreshToken: "R1"}, nil); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	got, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v, want nil", err)
	}
	if got != newAccess {
		t.Error("AccessToken() should return the refreshed token")
	}

	refreshes, _ := authAPI.counts()
	if refreshes != 1 {
		t.Errorf("refreshCalls = %d, want 1", refreshes)
	}

	// Rotation persisted before the call returned.
	if v, err := st.Get("auth.access_token"); err != nil || v != newAccess {
		t.Errorf("stored access token = (%q, %v), want rotated token", v, err)
	}
	if v, err := st.Get("auth.refresh_token"); err != nil || v != "R2" {
		t.Errorf("stored refresh token = (%q, %v), want %q", v, err, "R2")
	}
}

// TestManagerSingleFlightRefresh verifies concurrent callers share one
// in-flight refresh.
func TestManagerSingleFlightRefresh(t *testing.T) {
	newAccess := signedToken(t, time.Hour)
	authAPI := &fakeAuthAPI{
		refreshPair:  &models.TokenPair{AccessToken: newAccess, RefreshToken: "R2"},
		refreshDelay: 100 * time.Millisecond,
	}
	m, _ := newTestManager(t, authAPI)

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, 10*time.Second), RefreshToken: "R1"}, nil); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	const callers = 10
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: error = %v, want nil", i, errs[i])
		}
		if tokens[i] != newAccess {
			t.Errorf("caller %d got a different token", i)
		}
	}
	if refreshes, _ := authAPI.counts(); refreshes != 1 {
		t.Errorf("refreshCalls = %d, want 1 (deduplicated)", refreshes)
	}
}

// TestManagerRefreshRejectionClearsSession verifies a terminal 4xx on the
// refresh endpoint destroys the session.
func TestManagerRefreshRejectionClearsSession(t *testing.T) {
	authAPI := &fakeAuthAPI{
		refreshErr: &api.Error{Kind: api.KindClient, Status: 401, Message: "invalid refresh token"},
	}
	m, st := newTestManager(t, authAPI)

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, 10*time.Second), RefreshToken: "R1"}, nil); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	_, err := m.AccessToken(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("AccessToken() error = %v, want ErrSessionExpired", err)
	}

	if m.Session().Authenticated {
		t.Error("session should be cleared after refresh rejection")
	}
	if _, err := st.Get("auth.access_token"); !store.IsNotFound(err) {
		t.Errorf("access token still stored after rejection: %v", err)
	}
	if _, err := st.Get("auth.refresh_token"); !store.IsNotFound(err) {
		t.Errorf("refresh token still stored after rejection: %v", err)
	}
}

// TestManagerNetworkFailureKeepsSession verifies transport trouble during a
// refresh never destroys a valid session.
func TestManagerNetworkFailureKeepsSession(t *testing.T) {
	authAPI := &fakeAuthAPI{
		refreshErr: &api.Error{Kind: api.KindNetwork, Message: "could not reach the server"},
	}
	m, st := newTestManager(t, authAPI)

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, 10*time.Second), RefreshToken: "R1"}, nil); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	_, err := m.AccessToken(context.Background())
	if err == nil {
		t.Fatal("AccessToken() should fail when refresh cannot reach the server")
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("network failure must not be treated as session expiry")
	}

	if !m.Session().Authenticated {
		t.Error("session must survive a network failure")
	}
	if _, err := st.Get("auth.refresh_token"); err != nil {
		t.Errorf("refresh token should still be stored, got: %v", err)
	}
}

// TestManagerSignOutClearsDespiteRevocationFailure verifies local cleanup is
// unconditional.
func TestManagerSignOutClearsDespiteRevocationFailure(t *testing.T) {
	authAPI := &fakeAuthAPI{
		logoutErr: &api.Error{Kind: api.KindNetwork, Message: "could not reach the server"},
	}
	m, st := newTestManager(t, authAPI)

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, time.Hour), RefreshToken: "R1"}, &models.User{Email: "seller@example.com"}); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v, want nil (revocation failures are not returned)", err)
	}

	if _, logouts := authAPI.counts(); logouts != 1 {
		t.Errorf("logoutCalls = %d, want 1", logouts)
	}
	if m.Session().Authenticated {
		t.Error("session should be cleared after sign-out")
	}
	for _, key := range []string{"auth.access_token", "auth.refresh_token", "auth.user"} {
		if _, err := st.Get(key); !store.IsNotFound(err) {
			t.Errorf("key %q still stored after sign-out", key)
		}
	}
}

// TestManagerRestoreSessionEmptyStore verifies a missing session restores to
// signed-out without error.
func TestManagerRestoreSessionEmptyStore(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuthAPI{})

	session, err := m.RestoreSession(context.Background())
	if err != nil {
		t.Fatalf("RestoreSession() error = %v, want nil", err)
	}
	if session.Authenticated {
		t.Error("empty store should restore to signed-out")
	}
}

// TestManagerRestoreSessionOptimistic verifies a cached user is published
// before any backend round trip.
func TestManagerRestoreSessionOptimistic(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir(), logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v, want nil", err)
	}
	st.Set("auth.access_token", signedToken(t, time.Hour))
	st.Set("auth.refresh_token", "R1")
	st.Set("auth.user", `{"id":"u1","email":"seller@example.com"}`)

	bus := events.NewEventBus(0)
	sessionEvents := bus.Subscribe(events.EventSessionChange)

	m := NewManager(st, &fakeAuthAPI{}, bus, logging.NewLogger(io.Discard))

	session, err := m.RestoreSession(context.Background())
	if err != nil {
		t.Fatalf("RestoreSession() error = %v, want nil", err)
	}
	if !session.Authenticated {
		t.Fatal("session should be authenticated after restore")
	}
	if session.User == nil || session.User.Email != "seller@example.com" {
		t.Errorf("session.User = %+v, want cached user", session.User)
	}

	select {
	case ev := <-sessionEvents:
		change := ev.(*events.SessionChangeEvent)
		if !change.Authenticated || change.Reason != "restore" {
			t.Errorf("event = %+v, want authenticated restore", change)
		}
	default:
		t.Error("expected a session change event from the optimistic resume")
	}
}

// TestManagerRestoreSessionRefreshesExpiredToken verifies restore refreshes
// up front when the stored access token is stale.
func TestManagerRestoreSessionRefreshesExpiredToken(t *testing.T) {
	newAccess := signedToken(t, time.Hour)
	authAPI := &fakeAuthAPI{
		refreshPair: &models.TokenPair{AccessToken: newAccess, RefreshToken: "R2"},
	}
	m, st := newTestManager(t, authAPI)

	st.Set("auth.access_token", signedToken(t, -time.Minute))
	st.Set("auth.refresh_token", "R1")

	session, err := m.RestoreSession(context.Background())
	if err != nil {
		t.Fatalf("RestoreSession() error = %v, want nil", err)
	}
	if !session.Authenticated {
		t.Fatal("session should be authenticated after restore")
	}
	if session.AccessToken != newAccess {
		t.Error("restore should have refreshed the stale access token")
	}
	if refreshes, _ := authAPI.counts(); refreshes != 1 {
		t.Errorf("refreshCalls = %d, want 1", refreshes)
	}
}

// TestManagerRestoreConfirmRejectionClears verifies a 401 from the profile
// confirmation (after the client's forced refresh) ends the session.
func TestManagerRestoreConfirmRejectionClears(t *testing.T) {
	m, st := newTestManager(t, &fakeAuthAPI{})
	m.SetUserAPI(&fakeUserAPI{err: &api.Error{Kind: api.KindClient, Status: 401, Message: "unauthorized"}})

	st.Set("auth.access_token", signedToken(t, time.Hour))
	st.Set("auth.refresh_token", "R1")

	_, err := m.RestoreSession(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("RestoreSession() error = %v, want ErrSessionExpired", err)
	}
	if m.Session().Authenticated {
		t.Error("session should be cleared after confirmed rejection")
	}
	if _, err := st.Get("auth.refresh_token"); !store.IsNotFound(err) {
		t.Error("refresh token should be deleted after confirmed rejection")
	}
}

// TestManagerRestoreConfirmNetworkKeepsSession verifies transport trouble
// during confirmation stays optimistic.
func TestManagerRestoreConfirmNetworkKeepsSession(t *testing.T) {
	m, st := newTestManager(t, &fakeAuthAPI{})
	m.SetUserAPI(&fakeUserAPI{err: &api.Error{Kind: api.KindNetwork, Message: "could not reach the server"}})

	st.Set("auth.access_token", signedToken(t, time.Hour))
	st.Set("auth.refresh_token", "R1")
	st.Set("auth.user", `{"id":"u1","email":"seller@example.com"}`)

	session, err := m.RestoreSession(context.Background())
	if err != nil {
		t.Fatalf("RestoreSession() error = %v, want nil", err)
	}
	if !session.Authenticated {
		t.Error("session must survive an unreachable backend")
	}
	if session.User == nil || session.User.Email != "seller@example.com" {
		t.Error("cached user should be kept when confirmation fails")
	}
}

// TestManagerRefreshUserUpdatesCache verifies a successful profile fetch
// updates both the snapshot and the durable cache.
func TestManagerRefreshUserUpdatesCache(t *testing.T) {
	m, st := newTestManager(t, &fakeAuthAPI{})
	m.SetUserAPI(&fakeUserAPI{user: &models.User{ID: "u1", Email: "new@example.com", Plan: "pro"}})

	if err := m.SignIn(context.Background(), models.TokenPair{AccessToken: signedToken(t, time.Hour), RefreshToken: "R1"}, &models.User{ID: "u1", Email: "old@example.com"}); err != nil {
		t.Fatalf("SignIn() error = %v, want nil", err)
	}

	user, err := m.RefreshUser(context.Background())
	if err != nil {
		t.Fatalf("RefreshUser() error = %v, want nil", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "new@example.com")
	}
	if m.Session().User.Email != "new@example.com" {
		t.Error("session snapshot should carry the refreshed user")
	}

	cached, err := st.Get("auth.user")
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if !strings.Contains(cached, "new@example.com") {
		t.Errorf("stored user = %q, want refreshed profile", cached)
	}
}
