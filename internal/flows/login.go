package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/session"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token   string
	Profile *session.Profile
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginRejected  int
	StaleDiscarded int
}

// LoginEvents carries event names emitted by the login flow.
type LoginEvents struct {
	Login string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady error
	StaleResponse  error
}

// LoginDeps captures login dependencies.
//
// Commit persists the pair and moves the host into the authenticated state. It
// returns Errors.StaleResponse when the result must be discarded.
type LoginDeps struct {
	RequestToken func(ctx context.Context, username, password string) (*TokenReply, error)
	Commit       func(ctx context.Context, token string, profile *session.Profile) error

	MetricInc func(int)
	Emit      func(ctx context.Context, event string, profile *session.Profile, meta map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin exchanges credentials for a token and commits the new session. Empty
// fields fail with a Validation error before any request is made.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Emit == nil {
		deps.Emit = noopEmit
	}
	if deps.RequestToken == nil || deps.Commit == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if strings.TrimSpace(username) == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, apierr.Validation("username and password are required")
	}

	reply, err := deps.RequestToken(ctx, username, password)
	if err != nil {
		if e, ok := apierr.As(err); ok && e.Kind == apierr.KindServer && e.Status >= 400 && e.Status < 500 {
			deps.MetricInc(deps.Metrics.LoginRejected)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, err
	}

	if err := deps.Commit(ctx, reply.AccessToken, reply.UserInfo); err != nil {
		if deps.Errors.StaleResponse != nil && errors.Is(err, deps.Errors.StaleResponse) {
			deps.MetricInc(deps.Metrics.StaleDiscarded)
		} else {
			deps.MetricInc(deps.Metrics.LoginFailure)
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.Emit(ctx, deps.Events.Login, reply.UserInfo, nil)

	return &LoginResult{
		Token:   reply.AccessToken,
		Profile: reply.UserInfo.Clone(),
	}, nil
}
