package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/session"
)

// ProfileUpdateRequest is the PATCH body for the current user.
type ProfileUpdateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// PasswordChangeRequest is the password change body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AvatarUpload is one image payload.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProfileMetrics carries metric IDs needed by the profile mutation flows.
type ProfileMetrics struct {
	ProfileUpdateSuccess  int
	ProfileUpdateFailure  int
	PasswordChangeSuccess int
	PasswordChangeFailure int
	AvatarUpdateSuccess   int
	AvatarUpdateFailure   int
	StaleDiscarded        int
}

// ProfileEvents carries event names emitted by the profile mutation flows.
type ProfileEvents struct {
	ProfileUpdated string
	AvatarUpdated  string
}

// ProfileErrors carries host-level sentinel errors used by the profile flows.
type ProfileErrors struct {
	EngineNotReady error
	StaleResponse  error
}

// ProfileDeps captures profile mutation dependencies.
//
// MergeProfile applies fn to the cached profile in memory and in the store and
// returns the merged profile. It returns Errors.StaleResponse when the session the
// call started under is gone.
type ProfileDeps struct {
	PatchProfile      func(ctx context.Context, req ProfileUpdateRequest) (*session.Profile, error)
	ChangePassword    func(ctx context.Context, req PasswordChangeRequest) error
	UploadImage       func(ctx context.Context, upload AvatarUpload) (string, error)
	SetProfilePicture func(ctx context.Context, fileID string) (*session.Profile, error)
	MergeProfile      func(ctx context.Context, fn func(*session.Profile)) (*session.Profile, error)

	MaxAvatarBytes int

	MetricInc func(int)
	Emit      func(ctx context.Context, event string, profile *session.Profile, meta map[string]string)

	Metrics ProfileMetrics
	Events  ProfileEvents
	Errors  ProfileErrors
}

func (d *ProfileDeps) defaults() {
	if d.MetricInc == nil {
		d.MetricInc = noopInc
	}
	if d.Emit == nil {
		d.Emit = noopEmit
	}
}

func (d *ProfileDeps) mergeFailed(err error, failure int) {
	if d.Errors.StaleResponse != nil && errors.Is(err, d.Errors.StaleResponse) {
		d.MetricInc(d.Metrics.StaleDiscarded)
		return
	}
	d.MetricInc(failure)
}

// RunUpdateProfile sends the new username/email and merges the server's answer into
// the cached profile.
func RunUpdateProfile(ctx context.Context, req ProfileUpdateRequest, deps ProfileDeps) (*session.Profile, error) {
	deps.defaults()
	if deps.PatchProfile == nil || deps.MergeProfile == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		deps.MetricInc(deps.Metrics.ProfileUpdateFailure)
		return nil, apierr.Validation("username is required")
	}
	if req.Email != "" && !validEmail(req.Email) {
		deps.MetricInc(deps.Metrics.ProfileUpdateFailure)
		return nil, apierr.Validation("email address is invalid")
	}

	updated, err := deps.PatchProfile(ctx, req)
	if err != nil {
		deps.MetricInc(deps.Metrics.ProfileUpdateFailure)
		return nil, err
	}

	merged, err := deps.MergeProfile(ctx, func(p *session.Profile) {
		p.Username = updated.Username
		p.Email = updated.Email
	})
	if err != nil {
		deps.mergeFailed(err, deps.Metrics.ProfileUpdateFailure)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdateSuccess)
	deps.Emit(ctx, deps.Events.ProfileUpdated, merged, nil)
	return merged, nil
}

// RunChangePassword changes the password. The session token is left alone.
func RunChangePassword(ctx context.Context, req PasswordChangeRequest, deps ProfileDeps) error {
	deps.defaults()
	if deps.ChangePassword == nil {
		return deps.Errors.EngineNotReady
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return apierr.Validation("current and new password are required")
	}
	if err := checkPassword("new password", req.NewPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return err
	}

	if err := deps.ChangePassword(ctx, req); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return err
	}
	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	return nil
}

// RunUpdateAvatar uploads the image, points the profile picture at it and merges
// the returned image URL into the cached profile.
func RunUpdateAvatar(ctx context.Context, upload AvatarUpload, deps ProfileDeps) (*session.Profile, error) {
	deps.defaults()
	if deps.UploadImage == nil || deps.SetProfilePicture == nil || deps.MergeProfile == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := checkAvatar(&upload, deps.MaxAvatarBytes); err != nil {
		deps.MetricInc(deps.Metrics.AvatarUpdateFailure)
		return nil, err
	}

	fileID, err := deps.UploadImage(ctx, upload)
	if err != nil {
		deps.MetricInc(deps.Metrics.AvatarUpdateFailure)
		return nil, err
	}

	updated, err := deps.SetProfilePicture(ctx, fileID)
	if err != nil {
		deps.MetricInc(deps.Metrics.AvatarUpdateFailure)
		return nil, err
	}
	if updated.ImageURL == nil || *updated.ImageURL == "" {
		deps.MetricInc(deps.Metrics.AvatarUpdateFailure)
		return nil, apierr.Server(http.StatusOK, "server response is missing the image url", nil)
	}
	imageURL := *updated.ImageURL

	merged, err := deps.MergeProfile(ctx, func(p *session.Profile) {
		p.ImageURL = &imageURL
	})
	if err != nil {
		deps.mergeFailed(err, deps.Metrics.AvatarUpdateFailure)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.AvatarUpdateSuccess)
	deps.Emit(ctx, deps.Events.AvatarUpdated, merged, map[string]string{"file_id": fileID})
	return merged, nil
}

func checkAvatar(upload *AvatarUpload, maxBytes int) error {
	if len(upload.Data) == 0 {
		return apierr.Validation("an image file is required")
	}
	if maxBytes > 0 && len(upload.Data) > maxBytes {
		return apierr.Validation(fmt.Sprintf("image must not exceed %d bytes", maxBytes))
	}
	if upload.ContentType == "" {
		upload.ContentType = http.DetectContentType(upload.Data)
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return apierr.Validation("file must be an image")
	}
	if strings.TrimSpace(upload.Filename) == "" {
		upload.Filename = "avatar"
	}
	return nil
}
