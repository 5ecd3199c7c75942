package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/session"
)

// ReconcileKind classifies the reconciliation decision for the host state machine.
type ReconcileKind int

const (
	// ReconcileNoSession means the store holds no session.
	ReconcileNoSession ReconcileKind = iota
	// ReconcileValidated means the server confirmed the token.
	ReconcileValidated
	// ReconcileRejected means the server answered 401/403 for the stored token.
	ReconcileRejected
	// ReconcileOffline means validation failed for another reason and the cached
	// profile is trusted as is.
	ReconcileOffline
	// ReconcileOfflineExpired means validation failed and an offline rule refused
	// to trust the cached profile.
	ReconcileOfflineExpired
)

func (k ReconcileKind) String() string {
	switch k {
	case ReconcileNoSession:
		return "no_session"
	case ReconcileValidated:
		return "validated"
	case ReconcileRejected:
		return "rejected"
	case ReconcileOffline:
		return "offline"
	case ReconcileOfflineExpired:
		return "offline_expired"
	default:
		return "unknown"
	}
}

// ReconcileResult is the decision plus the inputs the host needs to apply it.
type ReconcileResult struct {
	Kind ReconcileKind
	// Record is the stored session that was checked; nil for ReconcileNoSession.
	Record *session.Record
	// Profile is the server profile (Validated) or the cached one (Offline).
	Profile *session.Profile
	// Err is the validation failure behind Rejected, Offline and OfflineExpired.
	Err error
}

// ReconcileMetrics carries metric IDs needed by the reconcile flow.
type ReconcileMetrics struct {
	Validated      int
	Rejected       int
	Offline        int
	OfflineExpired int
}

// ReconcileDeps captures reconcile dependencies.
//
// Load returns the stored session or nil. FetchProfile performs the authenticated
// "who am I" call with the given token. TokenExpired reports whether the token's own
// expiry has passed; it is only consulted when RejectExpiredTokens is set.
type ReconcileDeps struct {
	Load         func(ctx context.Context) *session.Record
	FetchProfile func(ctx context.Context, token string) (*session.Profile, error)
	TokenExpired func(token string, now time.Time) bool
	Now          func() time.Time

	MaxStaleness        time.Duration
	RejectExpiredTokens bool

	MetricInc func(int)
	Metrics   ReconcileMetrics
}

// RunReconcile validates the stored token against the server and decides the next
// state. It never mutates anything itself.
func RunReconcile(ctx context.Context, deps ReconcileDeps) ReconcileResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Load == nil || deps.FetchProfile == nil {
		return ReconcileResult{Kind: ReconcileNoSession}
	}

	rec := deps.Load(ctx)
	if rec == nil || rec.Token == "" || rec.Profile == nil {
		return ReconcileResult{Kind: ReconcileNoSession}
	}

	profile, err := deps.FetchProfile(ctx, rec.Token)
	if err == nil {
		deps.MetricInc(deps.Metrics.Validated)
		return ReconcileResult{Kind: ReconcileValidated, Record: rec, Profile: profile}
	}

	if apierr.IsAuthRejection(err) {
		deps.MetricInc(deps.Metrics.Rejected)
		return ReconcileResult{Kind: ReconcileRejected, Record: rec, Err: err}
	}

	if offlineExpired(rec, deps) {
		deps.MetricInc(deps.Metrics.OfflineExpired)
		return ReconcileResult{Kind: ReconcileOfflineExpired, Record: rec, Err: err}
	}

	deps.MetricInc(deps.Metrics.Offline)
	return ReconcileResult{Kind: ReconcileOffline, Record: rec, Profile: rec.Profile.Clone(), Err: err}
}

func offlineExpired(rec *session.Record, deps ReconcileDeps) bool {
	now := deps.Now()
	if deps.MaxStaleness > 0 {
		if rec.ValidatedAt.IsZero() || now.Sub(rec.ValidatedAt) > deps.MaxStaleness {
			return true
		}
	}
	if deps.RejectExpiredTokens && deps.TokenExpired != nil && deps.TokenExpired(rec.Token, now) {
		return true
	}
	return false
}
