package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/routes"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/session/sessionfakes"
	"github.com/jrsteele09/go-auth-client/session/storefakes"
	"github.com/stretchr/testify/require"
)

const (
	testEmail     = "john.doe@example.com"
	testFirstName = "John"
	testLastName  = "Doe"
	testRefresh   = "refresh-token-1"
)

// testFixture holds all test dependencies
type testFixture struct {
	store   *storefakes.FakeSessionStore
	api     *sessionfakes.FakeIdentityAPI
	manager *session.Manager
	navs    *navRecorder
}

type navRecorder struct {
	mu      sync.Mutex
	targets []string
}

func (n *navRecorder) record(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, path)
}

func (n *navRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store := storefakes.NewFakeSessionStore()
	api := sessionfakes.NewFakeIdentityAPI()
	navs := &navRecorder{}

	manager, err := session.NewManager(store, api, session.WithNavigator(navs.record))
	require.NoError(t, err)

	return &testFixture{store: store, api: api, manager: manager, navs: navs}
}

// signedToken mints an HS256 token expiring at exp. The manager never
// verifies signatures, so the key is irrelevant.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	claims := jwtlib.MapClaims{
		"sub":         "user-1",
		"email":       testEmail,
		"given_name":  testFirstName,
		"family_name": testLastName,
		"iat":         time.Now().Unix(),
		"exp":         exp.Unix(),
	}
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func testIdentity(role string) identity.Identity {
	return identity.Identity{
		Email:     testEmail,
		FirstName: testFirstName,
		LastName:  testLastName,
		Role:      role,
	}
}

func (f *testFixture) loginWith(t *testing.T, accessToken, role string) {
	t.Helper()
	err := f.manager.Login(&identity.Credentials{
		AccessToken:  accessToken,
		RefreshToken: testRefresh,
		Identity:     testIdentity(role),
	})
	require.NoError(t, err)
}

func TestManager_Login(t *testing.T) {
	t.Run("persists all fields together", func(t *testing.T) {
		f := setupTestFixture(t)
		accessToken := signedToken(t, time.Now().Add(time.Hour))

		f.loginWith(t, accessToken, "user")

		stored, err := f.store.Get()
		require.NoError(t, err)
		require.Equal(t, accessToken, stored.AccessToken)
		require.Equal(t, testRefresh, stored.RefreshToken)
		require.Equal(t, testEmail, stored.Identity.Email)

		require.True(t, f.manager.IsAuthenticated())
		require.Equal(t, session.StateAuthenticated, f.manager.State())
		require.Equal(t, testEmail, f.manager.Identity().Email)
		require.Equal(t, []string{routes.LandingAuthenticated}, f.navs.all())
	})

	t.Run("rejects partial session", func(t *testing.T) {
		f := setupTestFixture(t)

		err := f.manager.Login(&identity.Credentials{AccessToken: "tok"})
		require.Error(t, err)
		require.False(t, f.manager.IsAuthenticated())

		err = f.manager.Login(&identity.Credentials{Identity: testIdentity("user")})
		require.Error(t, err)
		require.False(t, f.manager.IsAuthenticated())
	})
}

func TestManager_LogoutIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.loginWith(t, signedToken(t, time.Now().Add(time.Hour)), "user")

	require.NoError(t, f.manager.Logout(context.Background()))
	require.NoError(t, f.manager.Logout(context.Background()))

	require.Equal(t, session.StateAnonymous, f.manager.State())
	require.False(t, f.manager.IsAuthenticated())
	stored, err := f.store.Get()
	require.NoError(t, err)
	require.Nil(t, stored)

	// Server-side invalidation fires only while a token was held
	require.Equal(t, 1, f.api.LogoutCalls())
}

func TestManager_ValidAccessToken(t *testing.T) {
	t.Run("fresh token returned without refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		accessToken := signedToken(t, time.Now().Add(time.Hour))
		f.loginWith(t, accessToken, "user")

		got, err := f.manager.ValidAccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, accessToken, got)
		require.Zero(t, f.api.RefreshCalls())
	})

	t.Run("anonymous returns ErrNotAuthenticated", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.manager.ValidAccessToken(context.Background())
		require.ErrorIs(t, err, session.ErrNotAuthenticated)
		require.Zero(t, f.api.RefreshCalls())
	})

	t.Run("expired token triggers one refresh and rotates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loginWith(t, signedToken(t, time.Now().Add(-time.Minute)), "user")

		newToken := signedToken(t, time.Now().Add(time.Hour))
		f.api.RefreshCredentials = &identity.Credentials{
			AccessToken:  newToken,
			RefreshToken: "refresh-token-2",
		}

		got, err := f.manager.ValidAccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, newToken, got)
		require.Equal(t, 1, f.api.RefreshCalls())
		require.Equal(t, session.StateAuthenticated, f.manager.State())

		stored, err := f.store.Get()
		require.NoError(t, err)
		require.Equal(t, newToken, stored.AccessToken)
		require.Equal(t, "refresh-token-2", stored.RefreshToken)
		require.Equal(t, testEmail, stored.Identity.Email) // identity survives the refresh
	})

	t.Run("refresh without rotation keeps old refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loginWith(t, signedToken(t, time.Now().Add(-time.Minute)), "user")

		f.api.RefreshCredentials = &identity.Credentials{
			AccessToken: signedToken(t, time.Now().Add(time.Hour)),
		}

		_, err := f.manager.ValidAccessToken(context.Background())
		require.NoError(t, err)

		stored, err := f.store.Get()
		require.NoError(t, err)
		require.Equal(t, testRefresh, stored.RefreshToken)
	})

	t.Run("malformed token behaves like expired", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.manager.Login(&identity.Credentials{
			AccessToken:  "not-a-jwt",
			RefreshToken: testRefresh,
			Identity:     testIdentity("user"),
		})
		require.NoError(t, err)

		newToken := signedToken(t, time.Now().Add(time.Hour))
		f.api.RefreshCredentials = &identity.Credentials{AccessToken: newToken}

		got, err := f.manager.ValidAccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, newToken, got) // the malformed token is never returned
		require.Equal(t, 1, f.api.RefreshCalls())
	})

	t.Run("refresh failure forces logout", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loginWith(t, signedToken(t, time.Now().Add(-time.Minute)), "user")
		f.api.RefreshErr = &identity.Error{Kind: identity.KindUnauthorized, Message: "refresh token expired"}

		_, err := f.manager.ValidAccessToken(context.Background())
		require.ErrorIs(t, err, session.ErrNotAuthenticated)

		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.False(t, f.manager.RouteAuthorized(routes.RouteChat))
		stored, storeErr := f.store.Get()
		require.NoError(t, storeErr)
		require.Nil(t, stored)
	})
}

func TestManager_RefreshCoalescing(t *testing.T) {
	const callers = 8

	f := setupTestFixture(t)
	f.loginWith(t, signedToken(t, time.Now().Add(-time.Minute)), "user")

	newToken := signedToken(t, time.Now().Add(time.Hour))
	f.api.RefreshCredentials = &identity.Credentials{AccessToken: newToken}
	f.api.RefreshStarted = make(chan struct{})
	f.api.ReleaseRefresh = make(chan struct{})

	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.manager.ValidAccessToken(context.Background())
			require.NoError(t, err)
			results <- got
		}()
	}

	<-f.api.RefreshStarted
	// All callers are now either queued on the in-flight refresh or about to
	// be; give them a moment to pile up before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(f.api.ReleaseRefresh)
	wg.Wait()
	close(results)

	for got := range results {
		require.Equal(t, newToken, got)
	}
	require.Equal(t, 1, f.api.RefreshCalls())
}

func TestManager_StaleRefreshDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	f.loginWith(t, signedToken(t, time.Now().Add(-time.Minute)), "user")

	f.api.RefreshCredentials = &identity.Credentials{
		AccessToken: signedToken(t, time.Now().Add(time.Hour)),
	}
	f.api.RefreshStarted = make(chan struct{})
	f.api.ReleaseRefresh = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.ValidAccessToken(context.Background())
		errCh <- err
	}()

	<-f.api.RefreshStarted
	require.NoError(t, f.manager.Logout(context.Background()))
	close(f.api.ReleaseRefresh)

	require.ErrorIs(t, <-errCh, session.ErrNotAuthenticated)

	// The successful refresh result must not resurrect the session
	require.False(t, f.manager.IsAuthenticated())
	require.Equal(t, session.StateAnonymous, f.manager.State())
	stored, err := f.store.Get()
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestManager_RouteAuthorized(t *testing.T) {
	anonymous := func(t *testing.T) *testFixture {
		return setupTestFixture(t)
	}
	user := func(t *testing.T) *testFixture {
		f := setupTestFixture(t)
		f.loginWith(t, signedToken(t, time.Now().Add(time.Hour)), "user")
		return f
	}
	admin := func(t *testing.T) *testFixture {
		f := setupTestFixture(t)
		f.loginWith(t, signedToken(t, time.Now().Add(time.Hour)), identity.RoleAdmin)
		return f
	}

	tests := []struct {
		name    string
		fixture func(*testing.T) *testFixture
		path    string
		want    bool
	}{
		{"public anonymous", anonymous, routes.RouteHome, true},
		{"public user", user, routes.RouteFeatures, true},
		{"public admin", admin, routes.RouteShare, true},

		{"auth-only anonymous", anonymous, routes.RouteSignIn, true},
		{"auth-only user", user, routes.RouteSignIn, false},
		{"auth-only admin", admin, routes.RouteSignUp, false},

		{"user route anonymous", anonymous, routes.RouteChat, false},
		{"user route user", user, routes.RouteChat, true},
		{"user route admin", admin, routes.RouteDashboard, true},

		{"admin route anonymous", anonymous, routes.RouteAdmin, false},
		{"admin route user", user, routes.RouteAdminUsers, false},
		{"admin route admin", admin, routes.RouteAdminConfig, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.fixture(t)
			require.Equal(t, tc.want, f.manager.RouteAuthorized(tc.path))
		})
	}
}

func TestManager_NavigationFiresOncePerTransition(t *testing.T) {
	f := setupTestFixture(t)

	// Repeated denied checks while anonymous redirect once, not per check
	require.False(t, f.manager.RouteAuthorized(routes.RouteChat))
	require.False(t, f.manager.RouteAuthorized(routes.RouteDashboard))
	require.Equal(t, []string{routes.LandingAnonymous}, f.navs.all())

	// Login is a transition, so the landing signal fires
	f.loginWith(t, signedToken(t, time.Now().Add(time.Hour)), "user")
	require.Equal(t, []string{routes.LandingAnonymous, routes.LandingAuthenticated}, f.navs.all())

	// An authenticated non-admin hitting an admin route redirects to landing,
	// deduplicated against the login signal
	require.False(t, f.manager.RouteAuthorized(routes.RouteAdmin))
	require.False(t, f.manager.RouteAuthorized(routes.RouteAdmin))
	require.Equal(t, []string{routes.LandingAnonymous, routes.LandingAuthenticated}, f.navs.all())
}

func TestManager_HydratesFromStore(t *testing.T) {
	store := storefakes.NewFakeSessionStore()
	accessToken := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Put(&session.Session{
		AccessToken:  accessToken,
		RefreshToken: testRefresh,
		Identity:     testIdentity("user"),
	}))

	manager, err := session.NewManager(store, sessionfakes.NewFakeIdentityAPI())
	require.NoError(t, err)

	require.True(t, manager.IsAuthenticated())
	require.Equal(t, session.StateAuthenticated, manager.State())

	got, err := manager.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, accessToken, got)
}

func TestManager_TokenSource(t *testing.T) {
	f := setupTestFixture(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	accessToken := signedToken(t, exp)
	f.loginWith(t, accessToken, "user")

	got, err := f.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, accessToken, got.AccessToken)
	require.Equal(t, "Bearer", got.TokenType)
	require.Equal(t, exp.Unix(), got.Expiry.Unix())
}
