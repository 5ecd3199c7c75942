package goSession

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/transport"
	"github.com/MrEthical07/goSession/session"
)

type fileUploadReply struct {
	FileID string `json:"file_id" validate:"required"`
	URL    string `json:"url,omitempty"`
}

type profilePictureBody struct {
	FileID string `json:"file_id"`
}

type balanceReply struct {
	Balance string `json:"balance" validate:"required"`
}

func (m *Manager) requestToken(ctx context.Context, username, password string) (*flows.TokenReply, error) {
	var reply flows.TokenReply
	err := m.client.DoJSON(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      m.config.Routes.Token,
		Anonymous: true,
		Form: url.Values{
			"grant_type": {"password"},
			"username":   {username},
			"password":   {password},
		},
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (m *Manager) createAccount(ctx context.Context, req flows.RegisterRequest) (*session.Profile, error) {
	var created session.Profile
	err := m.client.DoJSON(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      m.config.Routes.Register,
		Anonymous: true,
		JSON:      req,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (m *Manager) fetchProfile(ctx context.Context, token string) (*session.Profile, error) {
	var profile session.Profile
	err := m.client.DoJSON(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   m.config.Routes.Me,
		Token:  token,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (m *Manager) patchProfile(token string) func(context.Context, flows.ProfileUpdateRequest) (*session.Profile, error) {
	return func(ctx context.Context, req flows.ProfileUpdateRequest) (*session.Profile, error) {
		var profile session.Profile
		err := m.client.DoJSON(ctx, transport.Request{
			Method: http.MethodPatch,
			Path:   m.config.Routes.Me,
			Token:  token,
			JSON:   req,
		}, &profile)
		if err != nil {
			return nil, err
		}
		return &profile, nil
	}
}

func (m *Manager) changePassword(token string) func(context.Context, flows.PasswordChangeRequest) error {
	return func(ctx context.Context, req flows.PasswordChangeRequest) error {
		_, err := m.client.Do(ctx, transport.Request{
			Method: http.MethodPost,
			Path:   m.config.Routes.ChangePassword,
			Token:  token,
			JSON:   req,
		})
		return err
	}
}

func (m *Manager) uploadImage(token string) func(context.Context, flows.AvatarUpload) (string, error) {
	return func(ctx context.Context, upload flows.AvatarUpload) (string, error) {
		body, contentType, err := transport.MultipartFile("file", upload.Filename, upload.ContentType, bytes.NewReader(upload.Data))
		if err != nil {
			return "", apierr.Validation(fmt.Sprintf("could not encode image: %v", err))
		}
		var reply fileUploadReply
		err = m.client.DoJSON(ctx, transport.Request{
			Method:      http.MethodPost,
			Path:        m.config.Routes.UploadImage,
			Token:       token,
			Body:        body,
			ContentType: contentType,
		}, &reply)
		if err != nil {
			return "", err
		}
		return reply.FileID, nil
	}
}

func (m *Manager) setProfilePicture(token string) func(context.Context, string) (*session.Profile, error) {
	return func(ctx context.Context, fileID string) (*session.Profile, error) {
		var profile session.Profile
		err := m.client.DoJSON(ctx, transport.Request{
			Method: http.MethodPost,
			Path:   m.config.Routes.ProfilePicture,
			Token:  token,
			JSON:   profilePictureBody{FileID: fileID},
		}, &profile)
		if err != nil {
			return nil, err
		}
		return &profile, nil
	}
}
