package goSession

import (
	"encoding/json"

	"github.com/MrEthical07/goSession/session"
)

// Profile is the cached user profile.
type Profile = session.Profile

// Phase is the session manager's state.
type Phase uint8

const (
	// PhaseReconciling is the initial state, before the first Reconcile settles.
	PhaseReconciling Phase = iota
	// PhaseUnauthenticated means there is no usable session.
	PhaseUnauthenticated
	// PhaseAuthenticated means a session exists and a profile is held in memory.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseReconciling:
		return "reconciling"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the session state. Profile is non-nil exactly when Phase
// is PhaseAuthenticated. TokenExpired is set when the last transition to
// PhaseUnauthenticated came from the server rejecting the stored token. Validated is
// false when an authenticated status rests on the cached profile alone because the
// server could not be asked.
type Status struct {
	Phase        Phase
	Profile      *Profile
	TokenExpired bool
	Validated    bool
}

// LoggedIn reports whether the status is authenticated.
func (s Status) LoggedIn() bool {
	return s.Phase == PhaseAuthenticated
}

type statusJSON struct {
	State        string   `json:"state"`
	IsLoggedIn   bool     `json:"is_logged_in"`
	TokenExpired bool     `json:"token_expired"`
	Validated    bool     `json:"validated"`
	UserInfo     *Profile `json:"user_info,omitempty"`
}

// MarshalJSON renders the status the way UI layers consume it.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{
		State:        s.Phase.String(),
		IsLoggedIn:   s.LoggedIn(),
		TokenExpired: s.TokenExpired,
		Validated:    s.Validated,
		UserInfo:     s.Profile,
	})
}

// RegisterInput is the account creation form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ProfileUpdate carries the editable profile fields. Email is left unchanged when
// empty.
type ProfileUpdate struct {
	Username string
	Email    string
}

// PasswordForm holds the password change inputs. A successful ChangePassword clears
// both fields.
type PasswordForm struct {
	Current string
	New     string
}

// Avatar is one image payload. ContentType is sniffed from Data when empty.
type Avatar struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Operation names one profile mutation.
type Operation uint8

const (
	// OpUpdateProfile is ProfileService.UpdateProfile.
	OpUpdateProfile Operation = iota
	// OpChangePassword is ProfileService.ChangePassword.
	OpChangePassword
	// OpUpdateAvatar is ProfileService.UpdateAvatar.
	OpUpdateAvatar
	opCount
)

func (o Operation) String() string {
	switch o {
	case OpUpdateProfile:
		return "update_profile"
	case OpChangePassword:
		return "change_password"
	case OpUpdateAvatar:
		return "update_avatar"
	default:
		return "unknown"
	}
}

// OperationState is the loading flag and error slot of one mutation.
type OperationState struct {
	Loading bool
	Err     error
}
