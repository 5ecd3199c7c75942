package flows

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/apierr"
	"github.com/MrEthical07/goSession/session"
)

var (
	errNotReady = errors.New("not ready")
	errStale    = errors.New("stale")
)

const (
	mSuccess = iota
	mFailure
	mRejected
	mStale
	mOffline
	mOfflineExpired
	mCount
)

type counters [mCount]int

func (c *counters) inc(id int) { c[id]++ }

func alice() *session.Profile {
	return &session.Profile{ID: 1, Username: "alice", Email: "a@x.com", Role: "user"}
}

func loginDeps(c *counters) LoginDeps {
	return LoginDeps{
		RequestToken: func(context.Context, string, string) (*TokenReply, error) {
			return &TokenReply{AccessToken: "abc", TokenType: "bearer", UserInfo: alice()}, nil
		},
		Commit:    func(context.Context, string, *session.Profile) error { return nil },
		MetricInc: c.inc,
		Metrics:   LoginMetrics{LoginSuccess: mSuccess, LoginFailure: mFailure, LoginRejected: mRejected, StaleDiscarded: mStale},
		Events:    LoginEvents{Login: "login"},
		Errors:    LoginErrors{EngineNotReady: errNotReady, StaleResponse: errStale},
	}
}

func TestRunLoginRejectsEmptyFieldsBeforeNetwork(t *testing.T) {
	var c counters
	deps := loginDeps(&c)
	called := false
	deps.RequestToken = func(context.Context, string, string) (*TokenReply, error) {
		called = true
		return nil, nil
	}

	for _, creds := range [][2]string{{"", "pw1"}, {"alice", ""}, {"   ", "pw1"}} {
		_, err := RunLogin(context.Background(), creds[0], creds[1], deps)
		require.ErrorIs(t, err, apierr.ErrValidation)
	}
	assert.False(t, called)
	assert.Equal(t, 3, c[mFailure])
}

func TestRunLoginCommitsAndEmitsOnce(t *testing.T) {
	var c counters
	deps := loginDeps(&c)
	var committed string
	var events []string
	deps.Commit = func(_ context.Context, token string, _ *session.Profile) error {
		committed = token
		return nil
	}
	deps.Emit = func(_ context.Context, event string, _ *session.Profile, _ map[string]string) {
		events = append(events, event)
	}

	res, err := RunLogin(context.Background(), "alice", "pw1", deps)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Token)
	assert.Equal(t, "alice", res.Profile.Username)
	assert.Equal(t, "abc", committed)
	assert.Equal(t, []string{"login"}, events)
	assert.Equal(t, 1, c[mSuccess])
}

func TestRunLoginServerRejection(t *testing.T) {
	var c counters
	deps := loginDeps(&c)
	deps.RequestToken = func(context.Context, string, string) (*TokenReply, error) {
		return nil, apierr.Server(http.StatusUnauthorized, "Incorrect username or password", nil)
	}
	deps.Commit = func(context.Context, string, *session.Profile) error {
		t.Fatal("commit must not run")
		return nil
	}

	_, err := RunLogin(context.Background(), "alice", "bad", deps)
	require.ErrorIs(t, err, apierr.ErrServer)
	assert.Equal(t, 1, c[mRejected])
	assert.Equal(t, 1, c[mFailure])
}

func TestRunLoginStaleCommitSkipsEvent(t *testing.T) {
	var c counters
	deps := loginDeps(&c)
	deps.Commit = func(context.Context, string, *session.Profile) error { return errStale }
	deps.Emit = func(context.Context, string, *session.Profile, map[string]string) {
		t.Fatal("no event for a discarded login")
	}

	_, err := RunLogin(context.Background(), "alice", "pw1", deps)
	require.ErrorIs(t, err, errStale)
	assert.Equal(t, 1, c[mStale])
	assert.Zero(t, c[mSuccess])
}

func TestRunLoginNotReady(t *testing.T) {
	_, err := RunLogin(context.Background(), "alice", "pw1", LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	require.ErrorIs(t, err, errNotReady)
}

func TestRunRegisterValidation(t *testing.T) {
	created := false
	deps := RegisterDeps{
		CreateAccount: func(context.Context, RegisterRequest) (*session.Profile, error) {
			created = true
			return alice(), nil
		},
		Login: func(context.Context, string, string) (*LoginResult, error) { return nil, nil },
	}

	cases := map[string]RegisterRequest{
		"no username":    {Email: "b@x.com", Password: "password1"},
		"no email":       {Username: "bob", Password: "password1"},
		"bad email":      {Username: "bob", Email: "bob", Password: "password1"},
		"short password": {Username: "bob", Email: "b@x.com", Password: "short"},
		"long password":  {Username: "bob", Email: "b@x.com", Password: string(make([]byte, 73))},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RunRegister(context.Background(), req, deps)
			require.ErrorIs(t, err, apierr.ErrValidation)
			e, _ := apierr.As(err)
			assert.NotEmpty(t, e.Message)
		})
	}
	assert.False(t, created)
}

func TestRunRegisterSurfacesChainedLoginFailure(t *testing.T) {
	var events []string
	var loginUser, loginPass string
	deps := RegisterDeps{
		CreateAccount: func(_ context.Context, req RegisterRequest) (*session.Profile, error) {
			return &session.Profile{ID: 2, Username: req.Username, Email: req.Email, Role: "user"}, nil
		},
		Login: func(_ context.Context, username, password string) (*LoginResult, error) {
			loginUser, loginPass = username, password
			return nil, apierr.Unreachable(errors.New("connection refused"))
		},
		Emit: func(_ context.Context, event string, _ *session.Profile, _ map[string]string) {
			events = append(events, event)
		},
		Events: RegisterEvents{Register: "register"},
	}

	_, err := RunRegister(context.Background(), RegisterRequest{Username: " bob ", Email: "b@x.com", Password: "password1"}, deps)
	require.ErrorIs(t, err, apierr.ErrUnreachable)
	assert.Equal(t, "bob", loginUser)
	assert.Equal(t, "password1", loginPass)
	assert.Equal(t, []string{"register"}, events)
}

func reconcileDeps(c *counters, rec *session.Record, fetch func() (*session.Profile, error)) ReconcileDeps {
	return ReconcileDeps{
		Load: func(context.Context) *session.Record { return rec },
		FetchProfile: func(context.Context, string) (*session.Profile, error) {
			return fetch()
		},
		MetricInc: c.inc,
		Metrics:   ReconcileMetrics{Validated: mSuccess, Rejected: mRejected, Offline: mOffline, OfflineExpired: mOfflineExpired},
	}
}

func TestRunReconcileDecisions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stored := &session.Record{Token: "old", Profile: alice(), ValidatedAt: now.Add(-time.Hour)}
	fresh := &session.Profile{ID: 1, Username: "alice2", Email: "a@x.com", Role: "user"}

	cases := []struct {
		name  string
		rec   *session.Record
		fetch func() (*session.Profile, error)
		tune  func(*ReconcileDeps)
		want  ReconcileKind
	}{
		{name: "no session", rec: nil, want: ReconcileNoSession},
		{name: "validated", rec: stored, fetch: func() (*session.Profile, error) { return fresh, nil }, want: ReconcileValidated},
		{name: "401", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Server(http.StatusUnauthorized, "Could not validate credentials", nil)
		}, want: ReconcileRejected},
		{name: "403", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Server(http.StatusForbidden, "forbidden", nil)
		}, want: ReconcileRejected},
		{name: "unreachable", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Unreachable(errors.New("dial tcp"))
		}, want: ReconcileOffline},
		{name: "5xx", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Server(http.StatusBadGateway, "bad gateway", nil)
		}, want: ReconcileOffline},
		{name: "too stale", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Unreachable(errors.New("dial tcp"))
		}, tune: func(d *ReconcileDeps) { d.MaxStaleness = 30 * time.Minute }, want: ReconcileOfflineExpired},
		{name: "within staleness", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Unreachable(errors.New("dial tcp"))
		}, tune: func(d *ReconcileDeps) { d.MaxStaleness = 2 * time.Hour }, want: ReconcileOffline},
		{name: "expired token", rec: stored, fetch: func() (*session.Profile, error) {
			return nil, apierr.Unreachable(errors.New("dial tcp"))
		}, tune: func(d *ReconcileDeps) {
			d.RejectExpiredTokens = true
			d.TokenExpired = func(string, time.Time) bool { return true }
		}, want: ReconcileOfflineExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var c counters
			deps := reconcileDeps(&c, tc.rec, tc.fetch)
			deps.Now = func() time.Time { return now }
			if tc.tune != nil {
				tc.tune(&deps)
			}
			res := RunReconcile(context.Background(), deps)
			assert.Equal(t, tc.want, res.Kind, res.Kind.String())
		})
	}
}

func TestRunReconcileOfflineKeepsCachedProfile(t *testing.T) {
	var c counters
	rec := &session.Record{Token: "old", Profile: alice(), ValidatedAt: time.Now()}
	res := RunReconcile(context.Background(), reconcileDeps(&c, rec, func() (*session.Profile, error) {
		return nil, apierr.Unreachable(errors.New("no route to host"))
	}))

	require.Equal(t, ReconcileOffline, res.Kind)
	assert.Equal(t, alice(), res.Profile)
	assert.ErrorIs(t, res.Err, apierr.ErrUnreachable)
	assert.Equal(t, 1, c[mOffline])
}

func profileDeps(c *counters, cached *session.Profile) ProfileDeps {
	return ProfileDeps{
		PatchProfile: func(_ context.Context, req ProfileUpdateRequest) (*session.Profile, error) {
			p := cached.Clone()
			p.Username = req.Username
			if req.Email != "" {
				p.Email = req.Email
			}
			return p, nil
		},
		ChangePassword: func(context.Context, PasswordChangeRequest) error { return nil },
		UploadImage:    func(context.Context, AvatarUpload) (string, error) { return "file-1", nil },
		SetProfilePicture: func(_ context.Context, fileID string) (*session.Profile, error) {
			p := cached.Clone()
			url := "http://localhost/api/file/" + fileID
			p.ImageURL = &url
			return p, nil
		},
		MergeProfile: func(_ context.Context, fn func(*session.Profile)) (*session.Profile, error) {
			fn(cached)
			return cached.Clone(), nil
		},
		MetricInc: c.inc,
		Metrics: ProfileMetrics{
			ProfileUpdateSuccess:  mSuccess,
			ProfileUpdateFailure:  mFailure,
			PasswordChangeSuccess: mSuccess,
			PasswordChangeFailure: mFailure,
			AvatarUpdateSuccess:   mSuccess,
			AvatarUpdateFailure:   mFailure,
			StaleDiscarded:        mStale,
		},
		Errors: ProfileErrors{EngineNotReady: errNotReady, StaleResponse: errStale},
	}
}

func TestRunUpdateProfileMergesNameAndEmail(t *testing.T) {
	var c counters
	cached := alice()
	img := "http://img/1"
	cached.ImageURL = &img

	merged, err := RunUpdateProfile(context.Background(), ProfileUpdateRequest{Username: "alicia", Email: "alicia@x.com"}, profileDeps(&c, cached))
	require.NoError(t, err)
	assert.Equal(t, "alicia", merged.Username)
	assert.Equal(t, "alicia@x.com", merged.Email)
	require.NotNil(t, merged.ImageURL)
	assert.Equal(t, img, *merged.ImageURL)
}

func TestRunUpdateProfileValidation(t *testing.T) {
	var c counters
	deps := profileDeps(&c, alice())
	deps.PatchProfile = func(context.Context, ProfileUpdateRequest) (*session.Profile, error) {
		t.Fatal("validation failures must not reach the network")
		return nil, nil
	}

	_, err := RunUpdateProfile(context.Background(), ProfileUpdateRequest{Username: "  "}, deps)
	require.ErrorIs(t, err, apierr.ErrValidation)
	_, err = RunUpdateProfile(context.Background(), ProfileUpdateRequest{Username: "alice", Email: "nope"}, deps)
	require.ErrorIs(t, err, apierr.ErrValidation)
	assert.Equal(t, 2, c[mFailure])
}

func TestRunUpdateProfileStaleMerge(t *testing.T) {
	var c counters
	deps := profileDeps(&c, alice())
	deps.MergeProfile = func(context.Context, func(*session.Profile)) (*session.Profile, error) { return nil, errStale }

	_, err := RunUpdateProfile(context.Background(), ProfileUpdateRequest{Username: "alicia"}, deps)
	require.ErrorIs(t, err, errStale)
	assert.Equal(t, 1, c[mStale])
	assert.Zero(t, c[mFailure])
}

func TestRunChangePassword(t *testing.T) {
	var c counters
	deps := profileDeps(&c, alice())

	require.ErrorIs(t, RunChangePassword(context.Background(), PasswordChangeRequest{NewPassword: "password2"}, deps), apierr.ErrValidation)
	require.ErrorIs(t, RunChangePassword(context.Background(), PasswordChangeRequest{CurrentPassword: "password1"}, deps), apierr.ErrValidation)
	require.ErrorIs(t, RunChangePassword(context.Background(), PasswordChangeRequest{CurrentPassword: "password1", NewPassword: "short"}, deps), apierr.ErrValidation)
	require.NoError(t, RunChangePassword(context.Background(), PasswordChangeRequest{CurrentPassword: "password1", NewPassword: "password2"}, deps))

	deps.ChangePassword = func(context.Context, PasswordChangeRequest) error {
		return apierr.Server(http.StatusBadRequest, "Incorrect current password", nil)
	}
	err := RunChangePassword(context.Background(), PasswordChangeRequest{CurrentPassword: "wrong", NewPassword: "password2"}, deps)
	require.ErrorIs(t, err, apierr.ErrServer)
	assert.Equal(t, 1, c[mSuccess])
	assert.Equal(t, 4, c[mFailure])
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestRunUpdateAvatarMergesImageURL(t *testing.T) {
	var c counters
	cached := alice()
	var uploaded AvatarUpload
	deps := profileDeps(&c, cached)
	deps.UploadImage = func(_ context.Context, u AvatarUpload) (string, error) {
		uploaded = u
		return "file-9", nil
	}

	merged, err := RunUpdateAvatar(context.Background(), AvatarUpload{Data: pngHeader}, deps)
	require.NoError(t, err)
	require.NotNil(t, merged.ImageURL)
	assert.Equal(t, "http://localhost/api/file/file-9", *merged.ImageURL)
	assert.Equal(t, "image/png", uploaded.ContentType)
	assert.Equal(t, "avatar", uploaded.Filename)
	assert.Equal(t, "alice", merged.Username)
}

func TestRunUpdateAvatarRejectsBadPayloads(t *testing.T) {
	var c counters
	deps := profileDeps(&c, alice())
	deps.MaxAvatarBytes = 8

	_, err := RunUpdateAvatar(context.Background(), AvatarUpload{}, deps)
	require.ErrorIs(t, err, apierr.ErrValidation)
	_, err = RunUpdateAvatar(context.Background(), AvatarUpload{Data: pngHeader}, deps)
	require.ErrorIs(t, err, apierr.ErrValidation)

	deps.MaxAvatarBytes = 0
	_, err = RunUpdateAvatar(context.Background(), AvatarUpload{Data: []byte("plain text, not an image")}, deps)
	require.ErrorIs(t, err, apierr.ErrValidation)
}

func TestRunUpdateAvatarMissingImageURL(t *testing.T) {
	var c counters
	deps := profileDeps(&c, alice())
	deps.SetProfilePicture = func(context.Context, string) (*session.Profile, error) { return alice(), nil }

	_, err := RunUpdateAvatar(context.Background(), AvatarUpload{Data: pngHeader, ContentType: "image/png"}, deps)
	require.ErrorIs(t, err, apierr.ErrServer)
	assert.Equal(t, 1, c[mFailure])
}
