package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSentinelsMatchOnlyTheirKind(t *testing.T) {
	cases := []struct {
		err    *Error
		target error
	}{
		{Validation("username is required"), ErrValidation},
		{Server(http.StatusBadRequest, "bad", nil), ErrServer},
		{Unreachable(errors.New("dial tcp: refused")), ErrUnreachable},
		{Storage("write failed", errors.New("disk full")), ErrStorage},
	}

	all := []error{ErrValidation, ErrServer, ErrUnreachable, ErrStorage}
	for _, tc := range cases {
		t.Run(tc.err.Kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("op: %w", tc.err)
			for _, sentinel := range all {
				assert.Equal(t, sentinel == tc.target, errors.Is(wrapped, sentinel), "sentinel %v", sentinel)
			}
		})
	}
}

func TestIsAuthRejection(t *testing.T) {
	assert.True(t, Server(http.StatusUnauthorized, "no", nil).IsAuthRejection())
	assert.True(t, Server(http.StatusForbidden, "no", nil).IsAuthRejection())
	assert.False(t, Server(http.StatusInternalServerError, "boom", nil).IsAuthRejection())
	assert.False(t, Unreachable(nil).IsAuthRejection())
	assert.False(t, IsAuthRejection(errors.New("plain")))
	assert.True(t, IsAuthRejection(fmt.Errorf("reconcile: %w", Server(http.StatusForbidden, "x", nil))))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unreachable(cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "unable to reach the server", err.Error())

	srv := Server(http.StatusBadRequest, "Username already registered", []byte(`{"detail":"Username already registered"}`))
	assert.Equal(t, "Username already registered (status 400)", srv.Error())

	got, ok := As(fmt.Errorf("wrap: %w", srv))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, KindServer, KindOf(srv))
	assert.Equal(t, Kind(0), KindOf(cause))
}
