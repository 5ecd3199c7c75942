package goSession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/transport"
	"github.com/MrEthical07/goSession/session"
)

// Manager owns one session: the in-memory status, the persisted pair and the
// identity service calls that move between them. Methods are safe for concurrent use.
type Manager struct {
	config   Config
	store    *session.Store
	client   *transport.Client
	metrics  *Metrics
	events   *eventDispatcher
	logger   *slog.Logger
	clock    clockwork.Clock
	deps     flows.Deps
	profiles *ProfileService
	flights  singleflight.Group
	// storageErr is the most recent swallowed store failure.
	storageErr atomic.Pointer[Error]

	// commitMu orders session transitions with their store writes.
	commitMu sync.Mutex

	mu           sync.RWMutex
	phase        Phase
	token        string
	profile      *Profile
	validatedAt  time.Time
	validated    bool
	tokenExpired bool
	expiryNotice bool
	// epoch advances on every login, logout and expiry. Responses issued under an
	// older epoch are discarded.
	epoch uint64
}

// Close stops event delivery after flushing queued events.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.events.Close()
}

// Status returns a snapshot of the current state.
func (m *Manager) Status() Status {
	if m == nil {
		return Status{Phase: PhaseUnauthenticated}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	st := Status{
		Phase:        m.phase,
		TokenExpired: m.tokenExpired,
	}
	if m.phase == PhaseAuthenticated {
		st.Profile = m.profile.Clone()
		st.Validated = m.validated
	}
	return st
}

// Token returns the bearer token of the current session. It satisfies the
// transport's token source.
func (m *Manager) Token(context.Context) (string, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// ConsumeExpiryNotice reports, exactly once, that the session ended because the
// stored token was rejected.
func (m *Manager) ConsumeExpiryNotice() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	notice := m.expiryNotice
	m.expiryNotice = false
	return notice
}

// Profiles returns the profile mutation service bound to this session.
func (m *Manager) Profiles() *ProfileService {
	if m == nil {
		return nil
	}
	return m.profiles
}

// Logout clears the session locally. It never fails and is idempotent; the token is
// not revoked server-side.
func (m *Manager) Logout(ctx context.Context) {
	if m == nil {
		return
	}

	m.commitMu.Lock()
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.storageFailed("logout", err)
	}
	m.mu.Lock()
	previous := m.profile
	m.epoch++
	m.clearLocked()
	m.tokenExpired = false
	m.mu.Unlock()
	m.commitMu.Unlock()

	m.metricInc(MetricLogout)
	m.emit(ctx, EventLogout, previous, nil)
	m.logger.Info("session logged out")
}

// LastStorageError returns the most recent session store failure as a KindStorage
// error, or nil when the store never failed. Store failures never fail the
// operation that hit them; this is where they surface.
func (m *Manager) LastStorageError() error {
	if m == nil {
		return nil
	}
	if e := m.storageErr.Load(); e != nil {
		return e
	}
	return nil
}

// MetricsSnapshot copies the in-process metrics.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// EventsDropped returns how many events a full buffer discarded.
func (m *Manager) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.events.Dropped()
}

func (m *Manager) clearLocked() {
	m.phase = PhaseUnauthenticated
	m.token = ""
	m.profile = nil
	m.validatedAt = time.Time{}
	m.validated = false
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

func (m *Manager) session() (token string, epoch uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.epoch
}

// staleLocked reports whether a response issued under epoch must be discarded.
func (m *Manager) staleLocked(ctx context.Context, epoch uint64) bool {
	return ctx.Err() != nil || m.epoch != epoch
}

// discardStale logs a dropped response. Counting is left to the calling flow.
func (m *Manager) discardStale(ctx context.Context, op string) error {
	reason := "session changed"
	if ctx.Err() != nil {
		reason = "caller gone"
	}
	m.logger.Debug("discarding stale response", "op", op, "reason", reason)
	return ErrStaleResponse
}

func (m *Manager) storageFailed(op string, err error) {
	m.storageErr.Store(apierr.Storage("session storage failed during "+op, err))
	m.metricInc(MetricStorageFailure)
	m.logger.Warn("session storage failed, continuing in memory",
		"op", op,
		"key_prefix", m.config.Session.KeyPrefix,
		"error", err,
	)
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) observeRequest(method, path string, status int, elapsed time.Duration, err error) {
	m.metrics.Observe(MetricRequestLatency, elapsed)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("identity service call failed",
			"method", method,
			"path", path,
			"status", status,
			"elapsed", elapsed,
			"error", err,
		)
	}
}

func (m *Manager) emit(ctx context.Context, typ EventType, profile *Profile, meta map[string]string) {
	if m.events == nil {
		return
	}
	event := Event{
		Timestamp: m.clock.Now().UTC(),
		Type:      typ,
		Metadata:  meta,
	}
	if profile != nil {
		event.Profile = profile.Clone()
		event.UserID = profile.ID
		event.Username = profile.Username
	}
	m.events.Emit(context.WithoutCancel(ctx), event)
}

func (m *Manager) emitFlow(ctx context.Context, event string, profile *session.Profile, meta map[string]string) {
	m.emit(ctx, EventType(event), profile, meta)
}

func (m *Manager) metricIncFlow(id int) {
	m.metricInc(MetricID(id))
}
