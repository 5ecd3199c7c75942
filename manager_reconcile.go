package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/flows"
)

const reconcileFlight = "reconcile"

// Reconcile validates the stored token against the server and settles the state:
//
//   - no stored session: PhaseUnauthenticated;
//   - server confirms: the cached profile is refreshed, PhaseAuthenticated;
//   - server answers 401/403: the store is cleared, PhaseUnauthenticated with
//     TokenExpired set and a one-time expiry notice;
//   - any other failure: the store is kept and the cached profile is used
//     unvalidated, unless an Offline rule refuses it (then as for 401/403).
//
// Concurrent callers share one in-flight validation. A caller whose ctx ends first
// gets the status as it stands.
func (m *Manager) Reconcile(ctx context.Context) Status {
	if m == nil || m.client == nil {
		return Status{Phase: PhaseUnauthenticated}
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(reconcileFlight, func() (any, error) {
		return m.reconcile(flightCtx), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		return m.Status()
	}
}

func (m *Manager) reconcile(ctx context.Context) Status {
	epoch := m.currentEpoch()
	res := flows.RunReconcile(ctx, m.deps.Reconcile)
	return m.applyReconcile(ctx, epoch, res)
}

// applyReconcile commits res and emits token_expired once commitMu is released.
func (m *Manager) applyReconcile(ctx context.Context, epoch uint64, res flows.ReconcileResult) Status {
	st, expired := m.commitReconcile(ctx, epoch, res)
	if expired {
		m.emit(ctx, EventTokenExpired, res.Record.Profile, map[string]string{"reason": res.Kind.String()})
	}
	return st
}

func (m *Manager) commitReconcile(ctx context.Context, epoch uint64, res flows.ReconcileResult) (Status, bool) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.RLock()
	stale := m.staleLocked(ctx, epoch)
	m.mu.RUnlock()
	if stale {
		m.metricInc(MetricStaleDiscarded)
		_ = m.discardStale(ctx, "reconcile")
		return m.Status(), false
	}

	switch res.Kind {
	case flows.ReconcileNoSession:
		m.mu.Lock()
		m.clearLocked()
		m.mu.Unlock()

	case flows.ReconcileValidated:
		now := m.clock.Now()
		if err := m.store.Save(ctx, res.Record.Token, res.Profile, now); err != nil {
			m.storageFailed("reconcile", err)
		}
		m.mu.Lock()
		m.phase = PhaseAuthenticated
		m.token = res.Record.Token
		m.profile = res.Profile.Clone()
		m.validatedAt = now
		m.validated = true
		m.tokenExpired = false
		m.mu.Unlock()

	case flows.ReconcileRejected, flows.ReconcileOfflineExpired:
		if err := m.store.Clear(ctx); err != nil {
			m.storageFailed("reconcile", err)
		}
		m.mu.Lock()
		m.epoch++
		m.clearLocked()
		m.tokenExpired = true
		m.expiryNotice = true
		m.mu.Unlock()

		m.logger.Info("stored session is no longer valid, cleared",
			"reason", res.Kind.String(),
			"token_fp", internal.TokenFingerprint(res.Record.Token),
			"error", res.Err,
		)
		return m.Status(), true

	case flows.ReconcileOffline:
		m.mu.Lock()
		m.phase = PhaseAuthenticated
		m.token = res.Record.Token
		m.profile = res.Profile.Clone()
		m.validatedAt = res.Record.ValidatedAt
		m.validated = false
		m.mu.Unlock()

		m.logger.Warn("identity service unavailable, using cached profile", "error", res.Err)
	}

	return m.Status(), false
}
