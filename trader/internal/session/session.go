// Package session establishes and re-establishes the authenticated
// trading session.
//
// The Manager is the sole writer of session state; every other component
// only reads the epoch and liveness. The epoch increments on every
// successful login, so callers that cached session-dependent state must
// treat a changed epoch as "everything since the last boundary is
// suspect".
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Placeholder is the credential value shipped in sample configs. Its
// presence must prevent any session-establishing call from running.
const Placeholder = "your_password_here"

// Credentials identify the trading account.
type Credentials struct {
	AccountID string
	Password  string
}

// Validate rejects absent or placeholder credentials before any remote
// call is attempted.
func (c Credentials) Validate() error {
	if c.AccountID == "" {
		return errors.New("session: account id is empty")
	}
	if c.Password == "" || c.Password == Placeholder {
		return errors.New("session: password is empty or still the placeholder")
	}
	return nil
}

// LoginDriver performs the concrete login interactions against the remote
// UI, including the wait for the post-login landmark.
type LoginDriver interface {
	Login(ctx context.Context, creds Credentials) error
}

// AliveProber optionally extends a LoginDriver with a cheap liveness
// probe. Best-effort only.
type AliveProber interface {
	Alive(ctx context.Context) bool
}

// ErrAuthentication is returned when the credential is rejected or the
// post-login landmark never appears.
type ErrAuthentication struct {
	AccountID string
	Cause     error
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("session: authentication failed for account %s: %v", e.AccountID, e.Cause)
}

func (e *ErrAuthentication) Unwrap() error { return e.Cause }

// Manager owns the session lifecycle.
type Manager struct {
	driver LoginDriver
	creds  Credentials
	log    *slog.Logger

	epoch atomic.Uint64
	alive atomic.Bool
}

// NewManager creates a Manager. It fails fast on invalid credentials so
// nothing downstream can attempt a login with a placeholder secret.
func NewManager(driver LoginDriver, creds Credentials, log *slog.Logger) (*Manager, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{driver: driver, creds: creds, log: log}, nil
}

// Login establishes a session. On success the epoch increments and the
// liveness flag is set.
func (m *Manager) Login(ctx context.Context) error {
	if err := m.driver.Login(ctx, m.creds); err != nil {
		m.alive.Store(false)
		m.log.Error("session: login failed", "account", m.creds.AccountID, "error", err)
		return &ErrAuthentication{AccountID: m.creds.AccountID, Cause: err}
	}
	epoch := m.epoch.Add(1)
	m.alive.Store(true)
	m.log.Info("session: login successful", "account", m.creds.AccountID, "epoch", epoch)
	return nil
}

// Recover re-runs login. A successful recovery lands on a new epoch;
// callers observing the change must discard cached session state.
func (m *Manager) Recover(ctx context.Context) error {
	m.log.Warn("session: recovering", "epoch", m.epoch.Load())
	return m.Login(ctx)
}

// Epoch returns the current session epoch. Zero means never logged in.
func (m *Manager) Epoch() uint64 {
	return m.epoch.Load()
}

// Alive is a best-effort, non-blocking liveness check. It must never be
// relied upon as a strong guarantee; only Login/Recover completing
// successfully is authoritative.
func (m *Manager) Alive(ctx context.Context) bool {
	if !m.alive.Load() {
		return false
	}
	if p, ok := m.driver.(AliveProber); ok {
		live := p.Alive(ctx)
		m.alive.Store(live)
		return live
	}
	return true
}
