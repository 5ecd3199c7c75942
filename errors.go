package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/apierr"
)

// Error is the classified failure returned by every network-backed operation.
type Error = apierr.Error

// ErrorKind is the closed set of failure classes.
type ErrorKind = apierr.Kind

const (
	// KindValidation marks local input failures. The network is never touched.
	KindValidation = apierr.KindValidation
	// KindServer marks non-2xx replies and payloads that fail schema validation.
	KindServer = apierr.KindServer
	// KindUnreachable marks calls that obtained no response at all.
	KindUnreachable = apierr.KindUnreachable
	// KindStorage marks session store failures. They are logged, never fatal.
	KindStorage = apierr.KindStorage
)

var (
	// ErrValidation matches any KindValidation error.
	ErrValidation = apierr.ErrValidation
	// ErrServer matches any KindServer error.
	ErrServer = apierr.ErrServer
	// ErrUnreachable matches any KindUnreachable error.
	ErrUnreachable = apierr.ErrUnreachable
	// ErrStorage matches any KindStorage error.
	ErrStorage = apierr.ErrStorage

	// ErrOperationInFlight is returned when the same mutation is already running.
	ErrOperationInFlight = errors.New("operation already in flight")
	// ErrStaleResponse is returned when a response arrived after its caller's
	// context ended or after the session it was issued under was replaced.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrNotAuthenticated is returned by operations that need a session when
	// there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned when a Manager was not built through Builder.
	ErrEngineNotReady = errors.New("session manager not initialized")
)

// IsAuthRejection reports whether err is a 401/403 from the identity service.
func IsAuthRejection(err error) bool {
	return apierr.IsAuthRejection(err)
}
