package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/apierr"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	// HeaderRequestID carries a per-call correlation id.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 4 << 20
)

// TokenSource supplies the bearer token. The session Manager satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Observer is called once per request with the outcome. status is zero when no
// response was obtained.
type Observer func(method, path string, status int, elapsed time.Duration, err error)

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	UserAgent  string
	Observer   Observer
	Logger     *slog.Logger
}

// Client is the authenticated HTTP wrapper. It never mutates the token source.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
	observer   Observer
	logger     *slog.Logger
	validate   *validator.Validate
}

// Request describes one call. At most one of JSON, Form and Body is used, in that order.
type Request struct {
	Method string
	Path   string
	JSON   any
	Form   url.Values
	Body   io.Reader
	// ContentType overrides the default application/json.
	ContentType string
	Header      http.Header
	// Token, when set, is sent instead of the token source's token.
	Token string
	// Anonymous suppresses the Authorization header.
	Anonymous bool
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("transport: base url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("transport: invalid base url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		httpClient: cfg.HTTPClient,
		tokens:     cfg.Tokens,
		userAgent:  cfg.UserAgent,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Do performs req. Non-2xx replies become KindServer errors carrying the parsed
// message; a missing response becomes KindUnreachable.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.Status
		} else if e, ok := apierr.As(err); ok && e.Kind == apierr.KindServer {
			status = e.Status
		}
		c.observer(req.Method, req.Path, status, time.Since(start), err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, apierr.Validation(fmt.Sprintf("could not encode request: %v", err))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, apierr.Validation(fmt.Sprintf("could not build request: %v", err))
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentTypeJSON)
	if httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	token := req.Token
	if token == "" && c.tokens != nil && !req.Anonymous {
		token, _ = c.tokens.Token(ctx)
	}
	if token != "" && !req.Anonymous {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierr.Unreachable(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, apierr.Unreachable(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.Debug("identity service rejected request",
			"method", method,
			"path", req.Path,
			"status", httpResp.StatusCode,
			"request_id", httpReq.Header.Get(HeaderRequestID),
		)
		return nil, ParseError(httpResp.StatusCode, respBody)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// DoJSON performs req and decodes the reply into out, then validates out against its
// `validate` struct tags. A reply that does not decode or validate is a KindServer
// error: undefined fields never reach the caller.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.Decode(resp, out)
}

// Decode unmarshals and validates a successful response body.
func (c *Client) Decode(resp *Response, out any) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		e := apierr.Server(resp.Status, "malformed server response", resp.Body)
		e.Err = err
		return e
	}
	if err := c.validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		e := apierr.Server(resp.Status, "server response failed schema validation", resp.Body)
		e.Err = err
		return e
	}
	return nil
}

func encodeBody(req Request) (io.Reader, string, error) {
	contentType := contentTypeJSON
	var body io.Reader

	switch {
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", err
		}
		body = bytes.NewReader(raw)
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = contentTypeForm
	case req.Body != nil:
		body = req.Body
	}

	if req.ContentType != "" {
		contentType = req.ContentType
	}
	return body, contentType, nil
}
