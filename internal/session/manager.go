// Package session owns the authenticated driver's state and its transitions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sy1125/MyApp/internal/credstore"
	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

var (
	// ErrSessionExpired is returned by Bootstrap when the stored refresh
	// credential was rejected; the driver has to sign in again.
	ErrSessionExpired = errors.New("session expired, please sign in again")

	ErrMissingEmail    = errors.New("email is required")
	ErrMissingPassword = errors.New("password is required")

	// ErrIncomplete is returned by SignIn for a payload that would not yield
	// an active session.
	ErrIncomplete = errors.New("identity email and access credential are required")
)

// Backend is the part of the API the manager calls directly.
type Backend interface {
	Login(ctx context.Context, email, password string) (*domain.AuthData, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthData, error)
	RegisterPushToken(ctx context.Context, token string) error
}

// Listener observes session transitions. Calls are synchronous and made in
// registration order; SessionEnded is only called after SessionStarted.
type Listener interface {
	SessionStarted(ctx context.Context, s domain.Session)
	SessionEnded()
}

// Manager holds the single Session. Exactly one of active/inactive holds at
// any time and every transition bumps the generation, so results of calls
// started under an older session can be recognized and dropped.
type Manager struct {
	store   credstore.Store
	backend Backend
	log     *slog.Logger

	// transition serializes sign-in/sign-out including listener callbacks.
	transition sync.Mutex

	mu        sync.RWMutex
	sess      domain.Session
	pushToken string
	gen       uint64
	listeners []Listener
}

// NewManager creates an inactive Manager.
func NewManager(store credstore.Store, backend Backend, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   store,
		backend: backend,
		log:     log.With("component", "session"),
	}
}

// Subscribe registers l for future transitions. If a session is already
// active, l is started immediately.
func (m *Manager) Subscribe(ctx context.Context, l Listener) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	sess := m.snapshotLocked()
	m.mu.Unlock()

	if sess.Active() {
		l.SessionStarted(ctx, sess)
	}
}

// Snapshot returns a copy of the session and its generation.
func (m *Manager) Snapshot() (domain.Session, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), m.gen
}

func (m *Manager) snapshotLocked() domain.Session {
	s := m.sess
	s.PushToken = m.pushToken
	return s
}

// Active reports whether a session is active.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.Active()
}

// IsCurrent reports whether gen still names the current session.
func (m *Manager) IsCurrent(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen == gen && m.sess.Active()
}

// Credentials implements client.Credentials.
func (m *Manager) Credentials() (access, refresh string, gen uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.AccessToken, m.sess.RefreshToken, m.gen
}

// UpdateAccessCredential replaces the access credential in place. It is a
// no-op when gen is stale or no session is active.
func (m *Manager) UpdateAccessCredential(gen uint64, token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	if gen != m.gen || !m.sess.Active() {
		m.mu.Unlock()
		m.log.Debug("dropped stale access credential", "gen", gen)
		return false
	}
	m.sess.AccessToken = token
	m.mu.Unlock()

	m.logExpiry("access credential updated", token)
	return true
}

// Login validates the form input, authenticates and signs in.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" {
		return ErrMissingEmail
	}
	if password == "" {
		return ErrMissingPassword
	}
	data, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("session.Login: %w", err)
	}
	return m.SignIn(ctx, data.Identity(), data.AccessToken, data.RefreshToken)
}

// SignIn installs a new active session and persists its refresh credential.
func (m *Manager) SignIn(ctx context.Context, id domain.Identity, accessToken, refreshToken string) error {
	if id.Email == "" || accessToken == "" {
		return ErrIncomplete
	}
	m.transition.Lock()
	defer m.transition.Unlock()

	m.endLocked(ctx, false)
	m.start(ctx, domain.Session{Identity: id, AccessToken: accessToken, RefreshToken: refreshToken})
	if refreshToken != "" {
		m.store.Set(ctx, refreshToken)
	}
	return nil
}

// Bootstrap restores a session from the stored refresh credential. An absent
// credential makes no network call. A rejected credential is cleared and
// reported as ErrSessionExpired; a transient failure keeps it for the next
// start. The session stays inactive on any error.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.Active() {
		return nil
	}
	refresh, ok := m.store.Get(ctx)
	if !ok {
		m.log.Debug("no stored credential")
		return nil
	}

	data, err := m.backend.RefreshToken(ctx, refresh)
	if err != nil {
		if client.IsUnauthorized(err) {
			m.log.Info("stored credential rejected", "err", err)
			m.store.Clear(ctx)
			return ErrSessionExpired
		}
		m.log.Warn("bootstrap refresh failed, will retry next start", "err", err)
		return fmt.Errorf("session.Bootstrap: %w", err)
	}
	if data.Email == "" {
		return fmt.Errorf("session.Bootstrap: refresh response missing identity")
	}

	m.transition.Lock()
	defer m.transition.Unlock()
	if m.Active() {
		return nil
	}
	m.start(ctx, domain.Session{Identity: data.Identity(), AccessToken: data.AccessToken, RefreshToken: refresh})
	return nil
}

// SetPushToken records the device push token and reports it when a session
// is active. Reporting is idempotent; callers may retry on error.
func (m *Manager) SetPushToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.pushToken = token
	active := m.sess.Active()
	m.mu.Unlock()

	if !active || token == "" {
		return nil
	}
	if err := m.backend.RegisterPushToken(ctx, token); err != nil {
		return fmt.Errorf("session.SetPushToken: %w", err)
	}
	return nil
}

// SignOut clears the session, then the stored credential, then notifies
// listeners (channel close, registry clear) in registration order.
func (m *Manager) SignOut(ctx context.Context) {
	m.transition.Lock()
	defer m.transition.Unlock()
	m.endLocked(ctx, true)
}

// SignOutIfCurrent signs out only while gen still names the current session.
// It reports whether it did.
func (m *Manager) SignOutIfCurrent(ctx context.Context, gen uint64) bool {
	m.transition.Lock()
	defer m.transition.Unlock()
	if !m.IsCurrent(gen) {
		return false
	}
	m.endLocked(ctx, true)
	return true
}

func (m *Manager) start(ctx context.Context, s domain.Session) {
	m.mu.Lock()
	m.sess = s
	m.gen++
	snap := m.snapshotLocked()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.log.Info("session started", "email", s.Email)
	m.logExpiry("access credential installed", s.AccessToken)
	for _, l := range listeners {
		l.SessionStarted(ctx, snap)
	}
}

// endLocked must be called with m.transition held.
func (m *Manager) endLocked(ctx context.Context, clearStore bool) {
	m.mu.Lock()
	wasActive := m.sess.Active()
	m.sess = domain.Session{}
	m.gen++
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if clearStore {
		m.store.Clear(ctx)
	}
	if !wasActive {
		return
	}
	m.log.Info("session ended")
	for _, l := range listeners {
		l.SessionEnded()
	}
}

func (m *Manager) logExpiry(msg, token string) {
	if exp, ok := AccessExpiry(token); ok {
		m.log.Debug(msg, "expires_at", exp)
	}
}
