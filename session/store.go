package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrBackendUnavailable wraps every failure reported by a Backend.
var ErrBackendUnavailable = errors.New("session backend unavailable")

// ErrNoSession is returned by MergeProfile when the store holds no session.
var ErrNoSession = errors.New("no stored session")

const (
	tokenKeySuffix   = "access_token"
	profileKeySuffix = "user_info"
)

// Entry is a single keyed value written by Backend.Set.
type Entry struct {
	Key   string
	Value []byte
}

// Backend is the persistence medium behind a Store.
//
// Set must write all entries or none where the medium allows it. Delete must succeed
// when the keys are already absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, keys ...string) error
}

// Store is the paired token/profile cache.
type Store struct {
	backend    Backend
	tokenKey   string
	profileKey string
	logger     *slog.Logger

	// mu serializes writers so read-modify-write merges are last-write-wins per call.
	mu sync.Mutex
	// cleared is set when a delete of the pair failed. Until a later delete or a
	// full Save succeeds, whatever the backend still holds reads as absent.
	cleared bool
}

// NewStore builds a Store over backend. prefix namespaces both keys (for example per
// device profile); a nil logger falls back to slog.Default.
func NewStore(backend Backend, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Store{
		backend:    backend,
		tokenKey:   prefix + tokenKeySuffix,
		profileKey: prefix + profileKeySuffix,
		logger:     logger,
	}
}

// Keys returns the token and profile keys used by the store.
func (s *Store) Keys() (tokenKey, profileKey string) {
	return s.tokenKey, s.profileKey
}

// Save persists the pair. If the backend fails, both entries are removed before the
// error is returned so the store reads as empty rather than half-written.
func (s *Store) Save(ctx context.Context, token string, profile *Profile, validatedAt time.Time) error {
	if token == "" {
		return errors.New("empty token")
	}
	blob, err := Encode(profile, validatedAt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, token, blob)
}

func (s *Store) saveLocked(ctx context.Context, token string, blob []byte) error {
	err := s.backend.Set(ctx,
		Entry{Key: s.tokenKey, Value: []byte(token)},
		Entry{Key: s.profileKey, Value: blob},
	)
	if err == nil {
		s.cleared = false
		return nil
	}

	s.logger.Warn("session save failed, discarding partial pair",
		"key", s.profileKey,
		"error", err,
	)
	s.discardLocked(ctx)
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// Load returns the stored session, or nil when none is stored. A lone entry or an
// undecodable profile clears the store and yields nil with no error. A non-nil error
// means the backend itself could not be read.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (*Record, error) {
	if s.cleared {
		s.discardLocked(ctx)
		return nil, nil
	}

	token, hasToken, err := s.backend.Get(ctx, s.tokenKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	blob, hasProfile, err := s.backend.Get(ctx, s.profileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if !hasToken && !hasProfile {
		return nil, nil
	}
	if !hasToken || !hasProfile || len(token) == 0 {
		s.logger.Warn("session pair inconsistent, clearing",
			"has_token", hasToken,
			"has_profile", hasProfile,
		)
		s.discardLocked(ctx)
		return nil, nil
	}

	profile, validatedAt, err := Decode(blob)
	if err != nil {
		s.logger.Warn("session profile corrupt, clearing", "error", err)
		s.discardLocked(ctx)
		return nil, nil
	}

	return &Record{
		Token:       string(token),
		Profile:     profile,
		ValidatedAt: validatedAt,
	}, nil
}

// discardLocked deletes the pair. On failure the store stays marked cleared and the
// delete is retried by the next read.
func (s *Store) discardLocked(ctx context.Context) {
	if err := s.deleteLocked(ctx); err != nil {
		s.logger.Warn("session clear failed, pair treated as absent", "error", err)
	}
}

func (s *Store) deleteLocked(ctx context.Context) error {
	if err := s.backend.Delete(context.WithoutCancel(ctx), s.tokenKey, s.profileKey); err != nil {
		s.cleared = true
		return err
	}
	s.cleared = false
	return nil
}

// Clear removes both entries. Clearing an empty store is not an error. When the
// backend fails the pair still reads as absent from this Store, and the delete is
// retried on the next read.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteLocked(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Token returns the stored bearer token.
func (s *Store) Token(ctx context.Context) (string, bool) {
	s.mu.Lock()
	cleared := s.cleared
	s.mu.Unlock()
	if cleared {
		return "", false
	}
	raw, ok, err := s.backend.Get(ctx, s.tokenKey)
	if err != nil || !ok || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// MergeProfile applies fn to a copy of the stored profile and writes the pair back
// with the same token and validation time. It returns the merged profile.
func (s *Store) MergeProfile(ctx context.Context, fn func(*Profile)) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoSession
	}

	merged := rec.Profile.Clone()
	fn(merged)

	blob, err := Encode(merged, rec.ValidatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.saveLocked(ctx, rec.Token, blob); err != nil {
		return nil, err
	}
	return merged, nil
}
