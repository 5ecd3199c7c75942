package authtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/session"
)

const (
	minPasswordLen  = 8
	maxPasswordLen  = 72
	maxUploadBytes  = 10 << 20
	detailNoSuchUsr = "User not found"
)

var (
	errUsernameTaken = errors.New("Username already registered")
	errEmailTaken    = errors.New("Email already registered")
)

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) routes() http.Handler {
	guard := middleware.Bearer(middleware.VerifierFunc(s.verify))

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+RouteRegister, s.handleRegister)
	mux.HandleFunc("POST "+RouteToken, s.handleToken)
	mux.Handle("GET "+RouteMe, guard(http.HandlerFunc(s.handleMe)))
	mux.Handle("PATCH "+RouteMe, guard(http.HandlerFunc(s.handleUpdateMe)))
	mux.Handle("POST "+RouteChangePassword, guard(http.HandlerFunc(s.handleChangePassword)))
	mux.Handle("POST "+RouteProfilePicture, guard(http.HandlerFunc(s.handleProfilePicture)))
	mux.Handle("POST "+RouteUploadImage, guard(http.HandlerFunc(s.handleUpload)))
	mux.HandleFunc("GET "+RouteFile+"{id}", s.handleFile)
	mux.Handle("GET "+RouteBalance, guard(http.HandlerFunc(s.handleBalance)))
	return mux
}

// verify accepts signed, unexpired, unrevoked tokens of existing users.
func (s *Server) verify(token string) (string, error) {
	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		return "", errors.New("token revoked")
	}

	sub, err := s.signer.Verify(token)
	if err != nil {
		return "", err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return "", errors.New(detailNoSuchUsr)
	}
	return sub, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFieldErrors(w, fieldError{Loc: []string{"body"}, Msg: "Invalid JSON body", Type: "json_invalid"})
		return
	}

	var errs []fieldError
	if body.Username == "" {
		errs = append(errs, fieldError{Loc: []string{"body", "username"}, Msg: "Field required", Type: "missing"})
	}
	if _, err := mail.ParseAddress(body.Email); err != nil || body.Email == "" {
		errs = append(errs, fieldError{Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error"})
	}
	errs = append(errs, passwordErrors("password", body.Password)...)
	if len(errs) > 0 {
		writeFieldErrors(w, errs...)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.bcryptCost)
	if err != nil {
		middleware.Reject(w, http.StatusInternalServerError, "Could not hash password")
		return
	}

	s.mu.Lock()
	if err := s.checkUniqueLocked(0, body.Username, body.Email); err != nil {
		s.mu.Unlock()
		middleware.Reject(w, http.StatusBadRequest, err.Error())
		return
	}
	profile := s.insertLocked(body.Username, body.Email, hash)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeFieldErrors(w, fieldError{Loc: []string{"body"}, Msg: "Invalid form body", Type: "value_error"})
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeFieldErrors(w, fieldError{Loc: []string{"body", "username"}, Msg: "Field required", Type: "missing"})
		return
	}

	s.mu.Lock()
	id, ok := s.byName[username]
	var acct account
	if ok {
		acct = *s.accounts[id]
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		middleware.Reject(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := s.signer.Sign(strconv.FormatInt(id, 10))
	if err != nil {
		middleware.Reject(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user_info":    acct.profile,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, acct.profile)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		ImageURL *string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFieldErrors(w, fieldError{Loc: []string{"body"}, Msg: "Invalid JSON body", Type: "json_invalid"})
		return
	}
	if body.Username == nil && body.Email == nil && body.ImageURL == nil {
		middleware.Reject(w, http.StatusBadRequest, "No update data provided")
		return
	}
	if body.Email != nil {
		if _, err := mail.ParseAddress(*body.Email); err != nil {
			writeFieldErrors(w, fieldError{Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error"})
			return
		}
	}

	id, ok := subjectID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		middleware.Reject(w, http.StatusNotFound, detailNoSuchUsr)
		return
	}

	username, email := acct.profile.Username, acct.profile.Email
	if body.Username != nil {
		username = *body.Username
	}
	if body.Email != nil {
		email = *body.Email
	}
	if err := s.checkUniqueLocked(id, username, email); err != nil {
		detail := "Username already taken"
		if errors.Is(err, errEmailTaken) {
			detail = err.Error()
		}
		middleware.Reject(w, http.StatusBadRequest, detail)
		return
	}

	if username != acct.profile.Username {
		delete(s.byName, acct.profile.Username)
		s.byName[username] = id
	}
	acct.profile.Username = username
	acct.profile.Email = email
	if body.ImageURL != nil {
		v := *body.ImageURL
		acct.profile.ImageURL = &v
	}
	writeJSON(w, http.StatusOK, acct.profile)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFieldErrors(w, fieldError{Loc: []string{"body"}, Msg: "Invalid JSON body", Type: "json_invalid"})
		return
	}
	if errs := passwordErrors("new_password", body.NewPassword); len(errs) > 0 {
		writeFieldErrors(w, errs...)
		return
	}

	acct, ok := s.current(w, r)
	if !ok {
		return
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(body.CurrentPassword)) != nil {
		middleware.Reject(w, http.StatusBadRequest, "Incorrect current password")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), s.bcryptCost)
	if err != nil {
		middleware.Reject(w, http.StatusInternalServerError, "Could not hash password")
		return
	}
	s.mu.Lock()
	if live, ok := s.accounts[acct.profile.ID]; ok {
		live.hash = hash
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeFieldErrors(w, fieldError{Loc: []string{"body", "file"}, Msg: "Field required", Type: "missing"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.Reject(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		middleware.Reject(w, http.StatusBadRequest, "File must be an image")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.files[id] = storedFile{contentType: contentType, data: data}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"file_id": id,
		"url":     fileURL(r, id),
	})
}

func (s *Server) handleProfilePicture(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FileID == "" {
		writeFieldErrors(w, fieldError{Loc: []string{"body", "file_id"}, Msg: "Field required", Type: "missing"})
		return
	}

	id, ok := subjectID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		middleware.Reject(w, http.StatusInternalServerError, "Could not update profile picture")
		return
	}
	url := fileURL(r, body.FileID)
	acct.profile.ImageURL = &url
	writeJSON(w, http.StatusOK, acct.profile)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.files[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		middleware.Reject(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	_, _ = w.Write(f.data)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": acct.balance})
}

// current returns a copy of the authenticated account.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (account, bool) {
	id, ok := subjectID(w, r)
	if !ok {
		return account{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		middleware.Reject(w, http.StatusUnauthorized, middleware.DetailInvalidCredentials)
		return account{}, false
	}
	out := *acct
	out.profile = *acct.profile.Clone()
	return out, true
}

func subjectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sub, _ := middleware.SubjectFromContext(r.Context())
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		middleware.Reject(w, http.StatusUnauthorized, middleware.DetailInvalidCredentials)
		return 0, false
	}
	return id, true
}

func (s *Server) checkUniqueLocked(self int64, username, email string) error {
	for id, acct := range s.accounts {
		if id == self {
			continue
		}
		if acct.profile.Username == username {
			return errUsernameTaken
		}
		if strings.EqualFold(acct.profile.Email, email) {
			return errEmailTaken
		}
	}
	return nil
}

func (s *Server) insertLocked(username, email string, hash []byte) session.Profile {
	s.nextID++
	credits := int64(0)
	acct := &account{
		profile: session.Profile{
			ID:       s.nextID,
			Username: username,
			Email:    email,
			Role:     DefaultRole,
			Credits:  &credits,
		},
		hash:    hash,
		balance: "0.00",
	}
	s.accounts[acct.profile.ID] = acct
	s.byName[username] = acct.profile.ID
	return *acct.profile.Clone()
}

func passwordErrors(field, password string) []fieldError {
	switch {
	case len(password) < minPasswordLen:
		return []fieldError{{Loc: []string{"body", field}, Msg: "String should have at least 8 characters", Type: "string_too_short"}}
	case len(password) > maxPasswordLen:
		return []fieldError{{Loc: []string{"body", field}, Msg: "Password must not exceed 72 bytes.", Type: "value_error"}}
	}
	return nil
}

func fileURL(r *http.Request, id string) string {
	return "http://" + r.Host + RouteFile + id
}

func writeFieldErrors(w http.ResponseWriter, errs ...fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
