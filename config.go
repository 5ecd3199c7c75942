package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full Manager configuration. Start from DefaultConfig and override
// what differs.
type Config struct {
	API     APIConfig
	Routes  RoutesConfig
	Session SessionConfig
	Offline OfflineConfig
	Profile ProfileConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

// APIConfig locates the identity service.
type APIConfig struct {
	BaseURL   string        `validate:"required,url"`
	Timeout   time.Duration `validate:"gt=0"`
	UserAgent string
}

// RoutesConfig holds every REST path the manager calls.
type RoutesConfig struct {
	Register       string `validate:"required,startswith=/"`
	Token          string `validate:"required,startswith=/"`
	Me             string `validate:"required,startswith=/"`
	ChangePassword string `validate:"required,startswith=/"`
	UploadImage    string `validate:"required,startswith=/"`
	ProfilePicture string `validate:"required,startswith=/"`
	Balance        string `validate:"required,startswith=/"`
}

// SessionConfig controls the persisted pair.
type SessionConfig struct {
	// KeyPrefix namespaces the two store keys, for example per device profile.
	KeyPrefix string `validate:"required,excludesall= "`
}

// OfflineConfig bounds how long a cached profile is trusted when the server cannot
// be reached. The zero value trusts it indefinitely.
type OfflineConfig struct {
	// MaxStaleness is the longest time since the last successful validation that
	// an offline reconcile still accepts. Zero disables the rule.
	MaxStaleness time.Duration `validate:"gte=0"`
	// RejectExpiredTokens refuses an offline session whose token carries an exp
	// claim in the past.
	RejectExpiredTokens bool
}

// ProfileConfig limits profile mutations.
type ProfileConfig struct {
	MaxAvatarBytes int `validate:"gte=0"`
}

// EventsConfig controls asynchronous event delivery.
type EventsConfig struct {
	Enabled    bool
	BufferSize int `validate:"gte=0"`
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the routes of the reference identity service and a
// conservative client setup.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   30 * time.Second,
			UserAgent: "goSession/1",
		},
		Routes: RoutesConfig{
			Register:       "/api/auth/register",
			Token:          "/api/auth/token",
			Me:             "/api/auth/me",
			ChangePassword: "/api/auth/me/change-password",
			UploadImage:    "/api/upload_image",
			ProfilePicture: "/api/auth/me/profile-picture",
			Balance:        "/api/billing/getBalance",
		},
		Session: SessionConfig{
			KeyPrefix: "gosession",
		},
		Profile: ProfileConfig{
			MaxAvatarBytes: 5 << 20,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q validation", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		}
		return err
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when events are enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return errors.New("API BaseURL must use http or https")
	}
	return nil
}
