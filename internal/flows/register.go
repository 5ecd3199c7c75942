package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/goSession/session"
)

// RegisterRequest is the account creation body.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterMetrics carries metric IDs needed by the register flow.
type RegisterMetrics struct {
	RegisterSuccess int
	RegisterFailure int
}

// RegisterEvents carries event names emitted by the register flow.
type RegisterEvents struct {
	Register string
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady error
}

// RegisterDeps captures register dependencies. Login is the host's full login path,
// so the chained call behaves exactly like a direct Login.
type RegisterDeps struct {
	CreateAccount func(ctx context.Context, req RegisterRequest) (*session.Profile, error)
	Login         func(ctx context.Context, username, password string) (*LoginResult, error)

	MetricInc func(int)
	Emit      func(ctx context.Context, event string, profile *session.Profile, meta map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates the account and then logs in with the submitted credentials.
// When creation succeeds but the login fails, the login error is returned as is and
// no session exists.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Emit == nil {
		deps.Emit = noopEmit
	}
	if deps.CreateAccount == nil || deps.Login == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := checkInput(req); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return nil, err
	}
	if err := checkPassword("password", req.Password); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return nil, err
	}

	created, err := deps.CreateAccount(ctx, req)
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.Emit(ctx, deps.Events.Register, created, nil)

	return deps.Login(ctx, req.Username, req.Password)
}
