package goSession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// ProfileService runs the identity-mutating operations of the current session.
// Each operation has its own loading flag and error slot: a second call of the same
// operation while one is running fails with ErrOperationInFlight, but different
// operations run concurrently.
type ProfileService struct {
	m     *Manager
	slots [opCount]opSlot
}

type opSlot struct {
	loading atomic.Bool
	mu      sync.Mutex
	err     error
}

func newProfileService(m *Manager) *ProfileService {
	return &ProfileService{m: m}
}

// State returns the loading flag and last error of op.
func (p *ProfileService) State(op Operation) OperationState {
	if p == nil || op >= opCount {
		return OperationState{}
	}
	slot := &p.slots[op]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return OperationState{
		Loading: slot.loading.Load(),
		Err:     slot.err,
	}
}

// run guards op, records its outcome in the op's error slot and returns it.
func (p *ProfileService) run(op Operation, fn func(token string, epoch uint64) error) error {
	if p == nil || p.m == nil || p.m.client == nil {
		return ErrEngineNotReady
	}
	slot := &p.slots[op]
	if !slot.loading.CompareAndSwap(false, true) {
		p.m.metricInc(MetricOperationInFlight)
		return ErrOperationInFlight
	}
	defer slot.loading.Store(false)

	slot.mu.Lock()
	slot.err = nil
	slot.mu.Unlock()

	token, epoch := p.m.session()
	var err error
	if token == "" {
		err = ErrNotAuthenticated
	} else {
		err = fn(token, epoch)
	}

	slot.mu.Lock()
	slot.err = err
	slot.mu.Unlock()
	return err
}

// UpdateProfile changes username and email. The server's answer is merged into the
// cached profile in memory and in the store.
func (p *ProfileService) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var out *Profile
	err := p.run(OpUpdateProfile, func(token string, epoch uint64) error {
		deps := p.m.deps.Profile
		deps.PatchProfile = p.m.patchProfile(token)
		deps.MergeProfile = p.m.mergeProfile(epoch)

		merged, err := flows.RunUpdateProfile(ctx, flows.ProfileUpdateRequest{
			Username: update.Username,
			Email:    update.Email,
		}, deps)
		out = merged
		return err
	})
	return out, err
}

// ChangePassword changes the password. On success both fields of form are cleared.
// The session token is not affected.
func (p *ProfileService) ChangePassword(ctx context.Context, form *PasswordForm) error {
	if form == nil {
		form = &PasswordForm{}
	}
	return p.run(OpChangePassword, func(token string, _ uint64) error {
		deps := p.m.deps.Profile
		deps.ChangePassword = p.m.changePassword(token)

		err := flows.RunChangePassword(ctx, flows.PasswordChangeRequest{
			CurrentPassword: form.Current,
			NewPassword:     form.New,
		}, deps)
		if err != nil {
			return err
		}
		form.Current = ""
		form.New = ""
		return nil
	})
}

// UpdateAvatar uploads a new profile picture and merges the returned image URL into
// the cached profile.
func (p *ProfileService) UpdateAvatar(ctx context.Context, avatar Avatar) (*Profile, error) {
	var out *Profile
	err := p.run(OpUpdateAvatar, func(token string, epoch uint64) error {
		deps := p.m.deps.Profile
		deps.UploadImage = p.m.uploadImage(token)
		deps.SetProfilePicture = p.m.setProfilePicture(token)
		deps.MergeProfile = p.m.mergeProfile(epoch)

		merged, err := flows.RunUpdateAvatar(ctx, flows.AvatarUpload{
			Filename:    avatar.Filename,
			ContentType: avatar.ContentType,
			Data:        avatar.Data,
		}, deps)
		out = merged
		return err
	})
	return out, err
}

// mergeProfile applies fn to the in-memory profile and to the stored one. Overlapping
// concurrent merges are last-write-wins per field.
func (m *Manager) mergeProfile(epoch uint64) func(context.Context, func(*session.Profile)) (*session.Profile, error) {
	return func(ctx context.Context, fn func(*session.Profile)) (*session.Profile, error) {
		m.commitMu.Lock()
		defer m.commitMu.Unlock()

		m.mu.Lock()
		if m.staleLocked(ctx, epoch) {
			m.mu.Unlock()
			return nil, m.discardStale(ctx, "merge_profile")
		}
		if m.phase != PhaseAuthenticated || m.profile == nil {
			m.mu.Unlock()
			return nil, ErrNotAuthenticated
		}
		merged := m.profile.Clone()
		fn(merged)
		m.profile = merged
		token, validatedAt := m.token, m.validatedAt
		m.mu.Unlock()

		storeCtx := context.WithoutCancel(ctx)
		if _, err := m.store.MergeProfile(storeCtx, fn); err != nil {
			if errors.Is(err, session.ErrNoSession) {
				err = m.store.Save(storeCtx, token, merged, validatedAt)
			}
			if err != nil {
				m.storageFailed("merge_profile", err)
			}
		}
		return merged.Clone(), nil
	}
}
