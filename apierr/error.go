package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies where a failure originated.
type Kind uint8

const (
	// KindValidation is a local, pre-network rejection of caller input.
	KindValidation Kind = iota + 1
	// KindServer is a non-2xx (or malformed) reply from a reachable server.
	KindServer
	// KindUnreachable means no response was obtained at all.
	KindUnreachable
	// KindStorage is a failure of the local persistence layer.
	KindStorage
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindUnreachable:
		return "unreachable"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Kind sentinels, matched with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrServer      = errors.New("server rejected request")
	ErrUnreachable = errors.New("server unreachable")
	ErrStorage     = errors.New("session storage failure")
)

// Error is the classified failure returned by every session operation.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status for KindServer, zero otherwise.
	Status int
	// Details holds the raw error body when the server sent one.
	Details []byte
	Err     error
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == KindServer && e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is supports errors.Is against the kind sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrStorage:
		return e.Kind == KindStorage
	}
	return false
}

// IsAuthRejection reports whether the server refused the credentials or token
// (401 or 403).
func (e *Error) IsAuthRejection() bool {
	if e == nil || e.Kind != KindServer {
		return false
	}
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Validation builds a KindValidation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Server builds a KindServer error for the given status.
func Server(status int, message string, details []byte) *Error {
	return &Error{Kind: KindServer, Status: status, Message: message, Details: details}
}

// Unreachable builds a KindUnreachable error wrapping the transport failure.
func Unreachable(cause error) *Error {
	return &Error{Kind: KindUnreachable, Message: "unable to reach the server", Err: cause}
}

// Storage builds a KindStorage error wrapping the persistence failure.
func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: cause}
}

// As extracts a classified error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or zero when err is not one.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// IsAuthRejection reports whether err carries a 401/403 server rejection.
func IsAuthRejection(err error) bool {
	e, ok := As(err)
	return ok && e.IsAuthRejection()
}
