package authtest

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s := NewServer(opts...)
	t.Cleanup(s.Close)
	_, err := s.AddUser("alice", "a@x.com", "password1")
	require.NoError(t, err)
	return s
}

func call(t *testing.T, s *Server, method, path, token string, body io.Reader, contentType string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL()+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func login(t *testing.T, s *Server, username, password string) (int, map[string]any) {
	form := url.Values{"grant_type": {"password"}, "username": {username}, "password": {password}}
	return call(t, s, http.MethodPost, RouteToken, "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func TestTokenIssuesBearerWithProfile(t *testing.T) {
	s := startServer(t)

	status, body := login(t, s, "alice", "password1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	info := body["user_info"].(map[string]any)
	assert.Equal(t, "alice", info["username"])
	assert.Equal(t, DefaultRole, info["role"])

	status, me := call(t, s, http.MethodGet, RouteMe, body["access_token"].(string), nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@x.com", me["email"])
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	s := startServer(t)

	status, body := login(t, s, "alice", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Incorrect username or password", body["detail"])

	status, _ = login(t, s, "nobody", "password1")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	s := startServer(t)

	status, body := call(t, s, http.MethodPost, RouteRegister, "",
		strings.NewReader(`{"username":"bob","email":"b@x.com","password":"short"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.IsType(t, []any{}, body["detail"])

	status, body = call(t, s, http.MethodPost, RouteRegister, "",
		strings.NewReader(`{"username":"alice","email":"new@x.com","password":"password1"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already registered", body["detail"])

	status, body = call(t, s, http.MethodPost, RouteRegister, "",
		strings.NewReader(`{"username":"bob","email":"A@X.com","password":"password1"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already registered", body["detail"])

	status, body = call(t, s, http.MethodPost, RouteRegister, "",
		strings.NewReader(`{"username":"bob","email":"b@x.com","password":"password1"}`), "application/json")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", body["username"])
	assert.Equal(t, float64(0), body["credits"])
}

func TestGuardedRoutesRequireValidToken(t *testing.T) {
	now := time.Now()
	s := startServer(t, WithClock(func() time.Time { return now }))

	status, body := call(t, s, http.MethodGet, RouteMe, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authenticated", body["detail"])

	expired, err := s.IssueToken("alice", -time.Minute)
	require.NoError(t, err)
	status, _ = call(t, s, http.MethodGet, RouteMe, expired, nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)
	s.Revoke(token)
	status, _ = call(t, s, http.MethodGet, RouteMe, token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUpdateMeAndChangePassword(t *testing.T) {
	s := startServer(t)
	_, err := s.AddUser("carol", "c@x.com", "password1")
	require.NoError(t, err)
	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	status, body := call(t, s, http.MethodPatch, RouteMe, token, strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No update data provided", body["detail"])

	status, _ = call(t, s, http.MethodPatch, RouteMe, token, strings.NewReader(`{"username":"carol"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, s, http.MethodPatch, RouteMe, token, strings.NewReader(`{"username":"alicia","email":"al@x.com"}`), "application/json")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alicia", body["username"])
	_, ok := s.User("alice")
	assert.False(t, ok)

	status, body = call(t, s, http.MethodPost, RouteChangePassword, token,
		strings.NewReader(`{"current_password":"nope","new_password":"password2"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Incorrect current password", body["detail"])

	status, body = call(t, s, http.MethodPost, RouteChangePassword, token,
		strings.NewReader(`{"current_password":"password1","new_password":"password2"}`), "application/json")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password updated successfully", body["message"])

	status, _ = login(t, s, "alicia", "password2")
	assert.Equal(t, http.StatusOK, status)
}

func TestUploadAndProfilePicture(t *testing.T) {
	s := startServer(t)
	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="a.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, mw.Close())

	status, body := call(t, s, http.MethodPost, RouteUploadImage, token, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, status)
	fileID := body["file_id"].(string)
	assert.Contains(t, body["url"], RouteFile+fileID)

	status, body = call(t, s, http.MethodPost, RouteProfilePicture, token,
		strings.NewReader(`{"file_id":"`+fileID+`"}`), "application/json")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasSuffix(body["image_url"].(string), RouteFile+fileID))

	resp, err := http.Get(s.URL() + RouteFile + fileID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestBalanceDefaultsAndOverrides(t *testing.T) {
	s := startServer(t)
	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	_, body := call(t, s, http.MethodGet, RouteBalance, token, nil, "")
	assert.Equal(t, "0.00", body["balance"])

	s.SetBalance("alice", "12.50")
	_, body = call(t, s, http.MethodGet, RouteBalance, token, nil, "")
	assert.Equal(t, "12.50", body["balance"])
}

func TestFaultInjection(t *testing.T) {
	s := startServer(t)
	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	s.FailNext(RouteMe, http.StatusForbidden, "Forbidden")
	status, body := call(t, s, http.MethodGet, RouteMe, token, nil, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Forbidden", body["detail"])

	status, _ = call(t, s, http.MethodGet, RouteMe, token, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, s.Calls(RouteMe))

	s.SetOffline(true)
	_, err = http.Get(s.URL() + RouteMe)
	assert.Error(t, err)
	s.SetOffline(false)
}

func TestHoldBlocksUntilReleased(t *testing.T) {
	s := startServer(t)
	token, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	gate := s.Hold(RouteBalance)
	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, s.URL()+RouteBalance, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	<-gate.Arrived()
	select {
	case <-done:
		t.Fatal("request finished before release")
	case <-time.After(20 * time.Millisecond):
	}
	gate.Release()
	assert.Equal(t, http.StatusOK, <-done)
}
