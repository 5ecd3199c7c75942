package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

// Deps groups flow dependency sets. The root Manager builds this once and delegates
// each operation to the matching flow.
type Deps struct {
	Login     LoginDeps
	Register  RegisterDeps
	Reconcile ReconcileDeps
	Profile   ProfileDeps
}

// TokenReply is the password-grant response body.
type TokenReply struct {
	AccessToken string           `json:"access_token" validate:"required"`
	TokenType   string           `json:"token_type"`
	UserInfo    *session.Profile `json:"user_info" validate:"required"`
}

func noopInc(int) {}

func noopEmit(context.Context, string, *session.Profile, map[string]string) {}
