// Package session owns the supplier's bearer token and the identity derived from it.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/portal"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State of the session state machine.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

const loginFlight = "login"

// Authenticator exchanges credentials for a token. portal.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, creds portal.Credentials) (*portal.LoginResponse, error)
}

// Manager drives Anonymous -> Authenticating -> Authenticated and back.
// Network calls run outside the lock; each call ends with one atomic transition.
type Manager struct {
	store         storage.Store
	auth          Authenticator
	clearOnLogout []string
	nowTime       func() time.Time
	inflight      singleflight.Group

	lock        sync.RWMutex
	state       State
	token       string
	identity    *Identity
	lastErr     string
	generation  uint64
	logoutHooks []func()
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithClearOnLogout adds store keys that logout clears together with the token.
func WithClearOnLogout(keys ...string) ManagerOption {
	return func(m *Manager) {
		m.clearOnLogout = append(m.clearOnLogout, keys...)
	}
}

func NewManager(store storage.Store, auth Authenticator, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[session.NewManager] store is required")
	}
	if auth == nil {
		return nil, errors.New("[session.NewManager] authenticator is required")
	}

	m := &Manager{
		store:   store,
		auth:    auth,
		nowTime: time.Now,
		state:   Anonymous,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// OnLogout registers fn to run after every logout, outside the manager's lock.
func (m *Manager) OnLogout(fn func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.logoutHooks = append(m.logoutHooks, fn)
}

// Restore resumes the persisted session without a network call. A token whose claims
// cannot be decoded, or that has expired, is dropped through Logout.
func (m *Manager) Restore() State {
	raw, found, err := m.store.Get(storage.TokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("Restore: unreadable session token, starting anonymous")
		found = false
	}
	raw = strings.TrimSpace(raw)
	if !found || raw == "" {
		m.lock.Lock()
		m.resetLocked()
		m.generation++
		m.lock.Unlock()
		return Anonymous
	}

	identity, err := DecodeIdentity(raw, m.nowTime())
	if err != nil {
		log.Debug().Err(err).Msg("Restore: persisted session token rejected")
		m.Logout()
		return Anonymous
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.token = raw
	m.identity = identity
	m.state = Authenticated
	m.lastErr = ""
	m.generation++
	return Authenticated
}

// Login authenticates with the portal. Calls made while a login is in flight share
// its outcome instead of sending a second request. On failure the session stays
// Anonymous and Err() holds the message to show.
func (m *Manager) Login(ctx context.Context, creds portal.Credentials) error {
	_, err, _ := m.inflight.Do(loginFlight, func() (any, error) {
		return nil, m.login(ctx, creds)
	})
	return err
}

func (m *Manager) login(ctx context.Context, creds portal.Credentials) error {
	m.lock.Lock()
	if m.state == Authenticated {
		m.lock.Unlock()
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Manager.Login] already authenticated")
	}
	m.state = Authenticating
	m.lastErr = ""
	m.generation++
	started := m.generation
	m.lock.Unlock()

	resp, err := m.auth.Login(ctx, creds)

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.generation != started {
		log.Debug().Msg("Login: session changed while authenticating, response discarded")
		return apperrors.ErrStaleResponse
	}
	if err != nil {
		return m.failLocked(err)
	}

	identity, err := m.identityFor(resp)
	if err != nil {
		return m.failLocked(&portal.APIError{Message: portal.MsgLoginFailed, Err: err})
	}

	if err := m.store.Set(storage.TokenKey, resp.Token); err != nil {
		return m.failLocked(&portal.APIError{
			Message: portal.MsgLoginFailed,
			Err:     errors.Wrap(err, "[Manager.Login] persist token"),
		})
	}

	m.token = resp.Token
	m.identity = identity
	m.state = Authenticated
	m.generation++
	log.Info().Str("supplier", identity.DisplayName()).Msg("Logged in")
	return nil
}

// identityFor prefers the user payload; the token claims are the fallback.
func (m *Manager) identityFor(resp *portal.LoginResponse) (*Identity, error) {
	identity, err := identityFromPayload(resp.User)
	if err == nil {
		return identity, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		log.Debug().Err(err).Msg("Login: user payload unusable, decoding token claims")
	}
	return DecodeIdentity(resp.Token, m.nowTime())
}

func (m *Manager) failLocked(err error) error {
	m.state = Anonymous
	m.lastErr = portal.Message(err, portal.MsgLoginFailed)
	return err
}

// Logout drops the token, the identity and every key registered with WithClearOnLogout,
// then runs the logout hooks. It never fails; store errors are logged.
func (m *Manager) Logout() {
	m.lock.Lock()
	m.resetLocked()
	m.generation++
	for _, key := range append([]string{storage.TokenKey}, m.clearOnLogout...) {
		if err := m.store.Clear(key); err != nil {
			log.Err(err).Str("key", key).Msg("Logout: failed to clear persisted state")
		}
	}
	hooks := append([]func(){}, m.logoutHooks...)
	m.lock.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

func (m *Manager) resetLocked() {
	m.state = Anonymous
	m.token = ""
	m.identity = nil
	m.lastErr = ""
}

func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// Identity returns a copy of the current identity, nil when anonymous.
func (m *Manager) Identity() *Identity {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.identity.clone()
}

func (m *Manager) Token() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.token
}

// Err is the message of the last failed login. A new attempt clears it.
func (m *Manager) Err() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.lastErr
}

// Loading reports a login in flight, for disabling the triggering control.
func (m *Manager) Loading() bool {
	return m.State() == Authenticating
}

// Generation changes on every state transition.
func (m *Manager) Generation() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.generation
}
