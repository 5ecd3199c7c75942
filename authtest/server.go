package authtest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/session"
)

// Default routes, as served by the reference identity service.
const (
	RouteRegister       = "/api/auth/register"
	RouteToken          = "/api/auth/token"
	RouteMe             = "/api/auth/me"
	RouteChangePassword = "/api/auth/me/change-password"
	RouteProfilePicture = "/api/auth/me/profile-picture"
	RouteUploadImage    = "/api/upload_image"
	RouteBalance        = "/api/billing/getBalance"
	RouteFile           = "/api/file/"
)

// DefaultRole is assigned to every registered user.
const DefaultRole = "user"

type account struct {
	profile session.Profile
	hash    []byte
	balance string
}

type fault struct {
	status int
	body   string
	drop   bool
}

// Server is the fake identity service. The zero value is not usable; call New or
// NewServer.
type Server struct {
	signer     *jwt.Signer
	bcryptCost int
	logger     *slog.Logger
	handler    http.Handler
	httpServer *httptest.Server

	mu       sync.Mutex
	accounts map[int64]*account
	byName   map[string]int64
	nextID   int64
	files    map[string]storedFile
	revoked  map[string]bool
	faults   map[string][]fault
	gates    map[string][]*Gate
	calls    map[string]int
	offline  bool
}

type storedFile struct {
	contentType string
	data        []byte
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	secret     []byte
	tokenTTL   time.Duration
	now        func() time.Time
	bcryptCost int
	logger     *slog.Logger
}

// WithSecret sets the HS256 signing secret. A random one is used otherwise.
func WithSecret(secret []byte) Option {
	return func(o *serverOptions) { o.secret = append([]byte(nil), secret...) }
}

// WithTokenTTL sets the access token lifetime (default jwt.DefaultTTL).
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *serverOptions) { o.tokenTTL = ttl }
}

// WithClock sets the time source used for token issue and verification.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) { o.now = now }
}

// WithBcryptCost sets the password hashing cost (default bcrypt.MinCost).
func WithBcryptCost(cost int) Option {
	return func(o *serverOptions) { o.bcryptCost = cost }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = logger }
}

// New builds a Server without a listener. Serve it through Handler.
func New(opts ...Option) (*Server, error) {
	o := serverOptions{
		bcryptCost: bcrypt.MinCost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.secret) == 0 {
		secret, err := internal.NewSecret(internal.DefaultSecretSize)
		if err != nil {
			return nil, fmt.Errorf("authtest: generate secret: %w", err)
		}
		o.secret = secret
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	signer, err := jwt.NewSigner(o.secret, o.tokenTTL, o.now)
	if err != nil {
		return nil, err
	}

	s := &Server{
		signer:     signer,
		bcryptCost: o.bcryptCost,
		logger:     o.logger,
		accounts:   make(map[int64]*account),
		byName:     make(map[string]int64),
		files:      make(map[string]storedFile),
		revoked:    make(map[string]bool),
		faults:     make(map[string][]fault),
		gates:      make(map[string][]*Gate),
		calls:      make(map[string]int),
	}
	s.handler = s.intercept(s.routes())
	return s, nil
}

// NewServer builds a Server and starts it on a loopback listener. It panics if the
// server cannot be built, like httptest.NewServer.
func NewServer(opts ...Option) *Server {
	s, err := New(opts...)
	if err != nil {
		panic(err)
	}
	s.httpServer = httptest.NewServer(s.handler)
	return s
}

// Handler returns the HTTP handler including fault injection.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// URL returns the base URL of a server started by NewServer.
func (s *Server) URL() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.URL
}

// Close stops the listener started by NewServer.
func (s *Server) Close() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// AddUser creates an account directly and returns its profile.
func (s *Server) AddUser(username, email, password string) (session.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return session.Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLocked(0, username, email); err != nil {
		return session.Profile{}, err
	}
	return s.insertLocked(username, email, hash), nil
}

// User returns the current server-side profile of username.
func (s *Server) User(username string) (session.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[username]
	if !ok {
		return session.Profile{}, false
	}
	return *s.accounts[id].profile.Clone(), true
}

// SetBalance sets the billing balance reported for username.
func (s *Server) SetBalance(username, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[username]; ok {
		s.accounts[id].balance = balance
	}
}

// IssueToken signs a token for username with an explicit lifetime. A negative ttl
// yields an already expired token.
func (s *Server) IssueToken(username string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	id, ok := s.byName[username]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("authtest: unknown user")
	}
	return s.signer.SignWithTTL(strconv.FormatInt(id, 10), ttl)
}

// Revoke makes token fail authentication from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// FailNext answers the next request to route with status and a `{"detail": ...}`
// body.
func (s *Server) FailNext(route string, status int, detail string) {
	s.RespondNext(route, status, fmt.Sprintf(`{"detail":%q}`, detail))
}

// RespondNext answers the next request to route with status and a raw body.
func (s *Server) RespondNext(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], fault{status: status, body: body})
}

// DropNext closes the connection of the next request to route without a response.
// The HTTP client may replay idempotent requests on a reused connection; use
// SetOffline for GET routes.
func (s *Server) DropNext(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], fault{drop: true})
}

// SetOffline drops every connection while on.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Hold blocks the next request to route until the returned gate is released.
func (s *Server) Hold(route string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[route] = append(s.gates[route], g)
	return g
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Gate is a held request.
type Gate struct {
	arrived     chan struct{}
	release     chan struct{}
	arriveOnce  sync.Once
	releaseOnce sync.Once
}

// Arrived is closed once the held request reached the server.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

// Release lets the held request continue. It is safe to call more than once.
func (g *Gate) Release() {
	g.releaseOnce.Do(func() { close(g.release) })
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path

		s.mu.Lock()
		s.calls[route]++
		offline := s.offline
		var f *fault
		if q := s.faults[route]; len(q) > 0 {
			f = &q[0]
			s.faults[route] = q[1:]
		}
		var gate *Gate
		if q := s.gates[route]; len(q) > 0 {
			gate = q[0]
			s.gates[route] = q[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			gate.arriveOnce.Do(func() { close(gate.arrived) })
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}

		if offline || (f != nil && f.drop) {
			dropConnection(w)
			return
		}
		if f != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}

		s.logger.Debug("authtest request", "method", r.Method, "path", route)
		next.ServeHTTP(w, r)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		middleware.Reject(w, http.StatusServiceUnavailable, "connection dropped")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
