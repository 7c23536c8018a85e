// Package session keeps the back-office credentials used by the sales desk.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var (
	// ErrNoSession is returned by a Store that holds no session.
	ErrNoSession = errors.New("no session")
	// ErrNoCredentials is returned when a token is needed, none is stored
	// and no service credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
)

// Credentials are the service account used to log in to the back office.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) empty() bool {
	return c.Email == "" || c.Password == ""
}

// State is the persisted login state.
type State struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// Store persists a State between restarts.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
	Clear(ctx context.Context) error
}

// Authenticator exchanges credentials for a State.
type Authenticator interface {
	Login(ctx context.Context, c Credentials) (State, error)
}

// Manager caches the session and logs in lazily. It is safe for concurrent
// use.
type Manager struct {
	store Store
	auth  Authenticator
	creds Credentials

	mu     sync.Mutex
	state  State
	loaded bool
}

// NewManager creates a Manager. auth may be nil when only stored sessions
// are used.
func NewManager(store Store, auth Authenticator, creds Credentials) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		creds: creds,
	}
}

// Load reads the stored session. A missing session yields an empty State.
func (m *Manager) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return State{}, err
	}
	return m.state, nil
}

// Token returns the bearer token, logging in when none is held.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return "", err
	}
	if m.state.Token != "" {
		return m.state.Token, nil
	}
	if m.auth == nil || m.creds.empty() {
		return "", ErrNoCredentials
	}

	s, err := m.auth.Login(ctx, m.creds)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	if s.Token == "" {
		return "", errors.New("login returned empty token")
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", errors.Wrap(err, "save session")
	}
	m.state = s
	zctx.From(ctx).Info("Logged in to back office", zap.String("email", m.creds.Email))
	return s.Token, nil
}

// Clear drops the cached and stored session.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = State{}
	m.loaded = true
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear session")
	}
	zctx.From(ctx).Info("Session cleared")
	return nil
}

func (m *Manager) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	s, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		s = State{}
	case err != nil:
		return errors.Wrap(err, "load session")
	}
	m.state = s
	m.loaded = true
	return nil
}
