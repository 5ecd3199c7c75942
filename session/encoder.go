package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CurrentSchemaVersion is the leading byte written by Encode.
const CurrentSchemaVersion = 1

// ErrCorruptRecord is returned by Decode for any payload it cannot trust.
var ErrCorruptRecord = errors.New("session record corrupt")

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Profile     *Profile `json:"profile"`
	ValidatedAt int64    `json:"validated_at,omitempty"`
}

// Encode serializes the profile entry.
func Encode(p *Profile, validatedAt time.Time) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil profile")
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	env := envelope{Profile: p}
	if !validatedAt.IsZero() {
		env.ValidatedAt = validatedAt.UTC().UnixMilli()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 1)
	buf.WriteByte(CurrentSchemaVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses a profile entry written by Encode. Every failure wraps ErrCorruptRecord.
func Decode(data []byte) (*Profile, time.Time, error) {
	if len(data) < 2 {
		return nil, time.Time{}, fmt.Errorf("%w: short payload", ErrCorruptRecord)
	}
	if data[0] != CurrentSchemaVersion {
		return nil, time.Time{}, fmt.Errorf("%w: unsupported session schema version %d", ErrCorruptRecord, data[0])
	}

	dec := json.NewDecoder(bytes.NewReader(data[1:]))
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if dec.More() {
		return nil, time.Time{}, fmt.Errorf("%w: trailing data", ErrCorruptRecord)
	}
	if env.Profile == nil {
		return nil, time.Time{}, fmt.Errorf("%w: missing profile", ErrCorruptRecord)
	}
	if err := validate.Struct(env.Profile); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	var validatedAt time.Time
	if env.ValidatedAt > 0 {
		validatedAt = time.UnixMilli(env.ValidatedAt).UTC()
	}
	return env.Profile, validatedAt, nil
}
