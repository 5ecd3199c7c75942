package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

func (m *Manager) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Login: flows.LoginDeps{
			RequestToken: m.requestToken,
			MetricInc:    m.metricIncFlow,
			Emit:         m.emitFlow,
			Metrics: flows.LoginMetrics{
				LoginSuccess:   int(MetricLoginSuccess),
				LoginFailure:   int(MetricLoginFailure),
				LoginRejected:  int(MetricLoginRejected),
				StaleDiscarded: int(MetricStaleDiscarded),
			},
			Events: flows.LoginEvents{Login: string(EventLogin)},
			Errors: flows.LoginErrors{
				EngineNotReady: ErrEngineNotReady,
				StaleResponse:  ErrStaleResponse,
			},
		},
		Register: flows.RegisterDeps{
			CreateAccount: m.createAccount,
			MetricInc:     m.metricIncFlow,
			Emit:          m.emitFlow,
			Metrics: flows.RegisterMetrics{
				RegisterSuccess: int(MetricRegisterSuccess),
				RegisterFailure: int(MetricRegisterFailure),
			},
			Events: flows.RegisterEvents{Register: string(EventRegister)},
			Errors: flows.RegisterErrors{EngineNotReady: ErrEngineNotReady},
		},
		Reconcile: flows.ReconcileDeps{
			Load:                m.loadSession,
			FetchProfile:        m.fetchProfile,
			TokenExpired:        tokenExpired,
			Now:                 m.clock.Now,
			MaxStaleness:        m.config.Offline.MaxStaleness,
			RejectExpiredTokens: m.config.Offline.RejectExpiredTokens,
			MetricInc:           m.metricIncFlow,
			Metrics: flows.ReconcileMetrics{
				Validated:      int(MetricReconcileValidated),
				Rejected:       int(MetricReconcileRejected),
				Offline:        int(MetricReconcileOffline),
				OfflineExpired: int(MetricReconcileOfflineExpired),
			},
		},
		Profile: flows.ProfileDeps{
			MaxAvatarBytes: m.config.Profile.MaxAvatarBytes,
			MetricInc:      m.metricIncFlow,
			Emit:           m.emitFlow,
			Metrics: flows.ProfileMetrics{
				ProfileUpdateSuccess:  int(MetricProfileUpdateSuccess),
				ProfileUpdateFailure:  int(MetricProfileUpdateFailure),
				PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
				PasswordChangeFailure: int(MetricPasswordChangeFailure),
				AvatarUpdateSuccess:   int(MetricAvatarUpdateSuccess),
				AvatarUpdateFailure:   int(MetricAvatarUpdateFailure),
				StaleDiscarded:        int(MetricStaleDiscarded),
			},
			Events: flows.ProfileEvents{
				ProfileUpdated: string(EventProfileUpdated),
				AvatarUpdated:  string(EventAvatarUpdated),
			},
			Errors: flows.ProfileErrors{
				EngineNotReady: ErrEngineNotReady,
				StaleResponse:  ErrStaleResponse,
			},
		},
	}
}

// loadSession reads the stored pair. The in-memory session wins when the store is
// unreadable or empty, so a run that lost its storage keeps its session.
func (m *Manager) loadSession(ctx context.Context) *session.Record {
	rec, err := m.store.Load(ctx)
	if err != nil {
		m.storageFailed("load", err)
	}
	if rec != nil {
		return rec
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" || m.profile == nil {
		return nil
	}
	return &session.Record{
		Token:       m.token,
		Profile:     m.profile.Clone(),
		ValidatedAt: m.validatedAt,
	}
}

func tokenExpired(token string, now time.Time) bool {
	claims, err := jwt.Inspect(token)
	return err == nil && claims.Expired(now)
}
