package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/routes"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned when no usable access token exists and none
// could be obtained by refreshing.
var ErrNotAuthenticated = errors.New("not authenticated")

// errStaleRefresh marks a refresh whose result arrived after a logout. The
// result is discarded so it cannot resurrect a logged-out session.
var errStaleRefresh = errors.New("refresh superseded by logout")

// IdentityAPI is the slice of the identity client the manager depends on.
type IdentityAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*identity.Credentials, error)
	Logout(ctx context.Context, accessToken string) error
}

// Navigator receives navigation targets when the session state demands a
// redirect (to the landing route after login, to sign-in after logout or a
// denied check). It fires at most once per state transition.
type Navigator func(path string)

// Manager is the single source of truth for who the current user is and
// whether their credential is usable right now. It hydrates from the Store on
// construction, re-syncs from it on every read, coalesces concurrent refreshes
// into one API call, and fails closed on anything it cannot decode.
type Manager struct {
	store    Store
	api      IdentityAPI
	navigate Navigator
	nowFunc  func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	current *Session
	state   State
	epoch   uint64 // bumped on login and logout; in-flight refreshes from older epochs are discarded
	lastNav string

	refreshGroup singleflight.Group
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNavigator sets the navigation callback.
func WithNavigator(nav Navigator) ManagerOption {
	return func(m *Manager) {
		m.navigate = nav
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the logger for refresh/logout events.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a session manager seeded from durable storage.
func NewManager(store Store, api IdentityAPI, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if api == nil {
		return nil, errors.New("[NewManager] identity API is required")
	}

	m := &Manager{
		store:   store,
		api:     api,
		nowFunc: time.Now,
		log:     zerolog.Nop(),
		state:   StateAnonymous,
	}

	for _, opt := range options {
		opt(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resyncLocked(); err != nil {
		return nil, errors.Wrap(err, "[NewManager] hydrating from store")
	}
	return m, nil
}

// Login persists the credentials and profile as one group, marks the session
// authenticated, and signals navigation to the authenticated landing route.
// The caller is responsible for having obtained the credentials from a
// successful identity API call; no validation happens here beyond rejecting a
// partial session.
func (m *Manager) Login(creds *identity.Credentials) error {
	if creds == nil || creds.AccessToken == "" || creds.Identity.Email == "" {
		return errors.New("[Manager.Login] partial session rejected")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A refresh still in flight belongs to the previous credentials; its
	// eventual result must not overwrite this login.
	m.epoch++

	session := &Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Identity:     creds.Identity,
	}
	if err := m.store.Put(session); err != nil {
		return errors.Wrap(err, "[Manager.Login] store.Put")
	}

	m.current = session
	m.setStateLocked(StateAuthenticated)
	m.signalLocked(routes.LandingAuthenticated)
	return nil
}

// Logout clears all persisted and in-memory session fields unconditionally and
// signals navigation to the sign-in route. Idempotent, and safe to call from a
// failed-refresh handler: it never triggers a refresh itself. A refresh in
// flight when Logout is called will have its result discarded.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	var accessToken string
	if m.current != nil {
		accessToken = m.current.AccessToken
	}
	clearErr := m.store.Clear()
	m.current = nil
	m.setStateLocked(StateAnonymous)
	m.signalLocked(routes.LandingAnonymous)
	m.mu.Unlock()

	// Best-effort server-side invalidation; client-side logout already happened.
	if accessToken != "" {
		if err := m.api.Logout(ctx, accessToken); err != nil {
			m.log.Debug().Err(err).Msg("server-side logout failed")
		}
	}

	if clearErr != nil {
		return errors.Wrap(clearErr, "[Manager.Logout] store.Clear")
	}
	return nil
}

// ValidAccessToken returns an access token that is usable right now. An
// expired or undecodable stored token triggers exactly one refresh cycle;
// concurrent callers share that refresh rather than issuing their own. Any
// refresh failure forces a logout and returns ErrNotAuthenticated.
func (m *Manager) ValidAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if err := m.resyncLocked(); err != nil {
		m.mu.Unlock()
		return "", errors.Wrap(err, "[Manager.ValidAccessToken] store.Get")
	}
	if !m.current.Complete() {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}

	accessToken := m.current.AccessToken
	if !m.expired(accessToken) {
		m.mu.Unlock()
		return accessToken, nil
	}

	// Decode failure or past expiry - either way the stored token is never
	// returned. Attempt one coalesced refresh.
	refreshToken := m.current.RefreshToken
	epoch := m.epoch
	m.setStateLocked(StateRefreshing)
	m.mu.Unlock()

	result, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx, refreshToken, epoch)
	})
	if err != nil {
		return "", ErrNotAuthenticated
	}
	return result.(string), nil
}

// doRefresh runs inside the singleflight slot: at most one instance is in
// flight at any time, and every concurrent caller receives its result.
func (m *Manager) doRefresh(ctx context.Context, refreshToken string, epoch uint64) (string, error) {
	creds, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		m.log.Info().Err(err).Msg("token refresh failed, logging out")
		if logoutErr := m.Logout(ctx); logoutErr != nil {
			m.log.Debug().Err(logoutErr).Msg("logout after failed refresh")
		}
		return "", errors.Wrap(err, "[Manager.doRefresh] api.Refresh")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		// A logout happened while the refresh was in flight.
		return "", errStaleRefresh
	}

	session := &Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: refreshToken,
		Identity:     m.currentIdentityLocked(),
	}
	if creds.RefreshToken != "" { // rotation: server issued a replacement
		session.RefreshToken = creds.RefreshToken
	}
	if creds.Identity.Email != "" {
		session.Identity = creds.Identity
	}

	if err := m.store.Put(session); err != nil {
		return "", errors.Wrap(err, "[Manager.doRefresh] store.Put")
	}
	m.current = session
	m.setStateLocked(StateAuthenticated)
	return session.AccessToken, nil
}

// RouteAuthorized classifies path against the static route table and the
// current session state. Denials are routing decisions, not errors: the
// appropriate redirect is signalled and false is returned.
func (m *Manager) RouteAuthorized(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.resyncLocked(); err != nil {
		m.log.Debug().Err(err).Msg("route check: store read failed")
	}
	authenticated := m.current.Complete()
	admin := authenticated && m.current.Identity.IsAdmin()

	switch routes.Classify(path) {
	case routes.ClassPublic:
		return true
	case routes.ClassAuthOnly:
		if authenticated {
			m.signalLocked(routes.LandingAuthenticated)
			return false
		}
		return true
	case routes.ClassUser:
		if !authenticated {
			m.signalLocked(routes.LandingAnonymous)
			return false
		}
		return true
	case routes.ClassAdmin:
		if !authenticated {
			m.signalLocked(routes.LandingAnonymous)
			return false
		}
		if !admin {
			m.signalLocked(routes.LandingAuthenticated)
			return false
		}
		return true
	}
	return false
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether a complete session is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resyncLocked(); err != nil {
		return false
	}
	return m.current.Complete()
}

// IsAdmin reports whether the current session carries the admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resyncLocked(); err != nil {
		return false
	}
	return m.current.Complete() && m.current.Identity.IsAdmin()
}

// Identity returns the cached profile of the current user, zero-valued when
// anonymous.
func (m *Manager) Identity() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentIdentityLocked()
}

// resyncLocked refreshes the in-memory cache from durable storage. The store
// is the source of truth; another process (or a cold start) may have changed
// it.
func (m *Manager) resyncLocked() error {
	stored, err := m.store.Get()
	if err != nil {
		return err
	}
	m.current = stored
	if m.state != StateRefreshing {
		if m.current.Complete() {
			m.setStateLocked(StateAuthenticated)
		} else {
			m.setStateLocked(StateAnonymous)
		}
	}
	return nil
}

// expired reports whether the access token is past its expiry claim against
// the manager's clock. A token that cannot be decoded is expired (fail closed).
func (m *Manager) expired(rawToken string) bool {
	introspection, err := token.Introspect(rawToken)
	if err != nil || introspection.Exp == nil {
		return true
	}
	return m.nowFunc().Unix() >= *introspection.Exp
}

func (m *Manager) currentIdentityLocked() identity.Identity {
	if m.current == nil {
		return identity.Identity{}
	}
	return m.current.Identity
}

func (m *Manager) setStateLocked(state State) {
	if m.state != state {
		m.state = state
		m.lastNav = "" // new transition, navigation may fire again
	}
}

// signalLocked fires the navigation callback, deduplicated so a repeated check
// in the same state does not redirect again.
func (m *Manager) signalLocked(target string) {
	if m.navigate == nil || m.lastNav == target {
		return
	}
	m.lastNav = target
	m.navigate(target)
}
