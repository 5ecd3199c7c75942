package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// Login exchanges credentials for a token, persists the session and moves to
// PhaseAuthenticated. Empty fields fail with a Validation error before any request.
// A rejected login leaves the current state untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (Status, error) {
	if m == nil || m.client == nil {
		return Status{Phase: PhaseUnauthenticated}, ErrEngineNotReady
	}
	if _, err := m.runLogin(ctx, m.currentEpoch(), username, password); err != nil {
		return m.Status(), err
	}
	return m.Status(), nil
}

// Register creates an account and then logs in with the same credentials. If the
// account is created but the login fails, the login's error is returned and no
// session is established.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (Status, error) {
	if m == nil || m.client == nil {
		return Status{Phase: PhaseUnauthenticated}, ErrEngineNotReady
	}

	epoch := m.currentEpoch()
	deps := m.deps.Register
	deps.Login = func(ctx context.Context, username, password string) (*flows.LoginResult, error) {
		return m.runLogin(ctx, epoch, username, password)
	}

	_, err := flows.RunRegister(ctx, flows.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	}, deps)
	return m.Status(), err
}

func (m *Manager) runLogin(ctx context.Context, epoch uint64, username, password string) (*flows.LoginResult, error) {
	deps := m.deps.Login
	deps.Commit = m.commitSession(epoch)
	return flows.RunLogin(ctx, username, password, deps)
}

// commitSession installs a freshly issued session unless the caller is gone or the
// session moved since epoch was read.
func (m *Manager) commitSession(epoch uint64) func(context.Context, string, *session.Profile) error {
	return func(ctx context.Context, token string, profile *session.Profile) error {
		m.commitMu.Lock()
		defer m.commitMu.Unlock()

		m.mu.RLock()
		stale := m.staleLocked(ctx, epoch)
		m.mu.RUnlock()
		if stale {
			return m.discardStale(ctx, "login")
		}

		now := m.clock.Now()
		if err := m.store.Save(context.WithoutCancel(ctx), token, profile, now); err != nil {
			m.storageFailed("login", err)
		}

		m.mu.Lock()
		m.epoch++
		m.phase = PhaseAuthenticated
		m.token = token
		m.profile = profile.Clone()
		m.validatedAt = now
		m.validated = true
		m.tokenExpired = false
		m.expiryNotice = false
		m.mu.Unlock()

		m.logger.Info("session established",
			"user_id", profile.ID,
			"token_fp", internal.TokenFingerprint(token),
		)
		return nil
	}
}
