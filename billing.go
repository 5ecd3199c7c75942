package goSession

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/internal/transport"
)

// Balance reads the account balance. The value is returned as the server formats it.
func (m *Manager) Balance(ctx context.Context) (string, error) {
	if m == nil || m.client == nil {
		return "", ErrEngineNotReady
	}
	token, _ := m.session()
	if token == "" {
		return "", ErrNotAuthenticated
	}

	var reply balanceReply
	err := m.client.DoJSON(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   m.config.Routes.Balance,
		Token:  token,
	}, &reply)
	if err != nil {
		return "", err
	}
	return reply.Balance, nil
}
