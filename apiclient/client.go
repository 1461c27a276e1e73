// Package apiclient implements the HTTP client for the identity
// service. All status codes are converted to typed errors at this
// boundary; callers never see raw HTTP failures. Session continuity
// rides entirely on the service's own session cookie, held in the
// client's cookie jar - nothing is persisted locally.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/compareai/compare-client/identity"
	errs "github.com/compareai/compare-client/internal/errors"
)

// Identity service API paths
const (
	RouteAPIUser        = "/api/user"
	RouteAPILogin       = "/api/login"
	RouteAPIRegister    = "/api/register"
	RouteAPILogout      = "/api/logout"
	RouteAPILeaderboard = "/api/leaderboard"
)

const defaultTimeout = 15 * time.Second

// Client talks to the identity service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the identity service at baseURL.
// If httpClient is nil, a default client with a cookie jar and a 15s
// timeout is used. The cookie jar is required: the service's session
// cookie is the only session continuity mechanism.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "[apiclient.New] cookiejar.New")
		}
		httpClient = &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// CurrentIdentity requests the identity attached to the active session.
// Returns ErrNotAuthenticated when no session is active and
// ErrUnavailable when no definitive response was received.
func (c *Client) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	var ident identity.Identity
	if err := c.do(ctx, http.MethodGet, RouteAPIUser, nil, &ident, errs.ErrNotAuthenticated); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Login submits credentials and returns the authenticated identity.
// Invalid credentials map to ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	var ident identity.Identity
	if err := c.do(ctx, http.MethodPost, RouteAPILogin, creds, &ident, errs.ErrInvalidCredentials); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Register creates a new account and returns its identity. A taken
// username maps to ErrUsernameTaken.
func (c *Client) Register(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	var ident identity.Identity
	if err := c.do(ctx, http.MethodPost, RouteAPIRegister, creds, &ident, nil); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Logout ends the active session on the service side
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, RouteAPILogout, nil, nil, nil)
	if errs.Is(err, errs.ErrNotAuthenticated) {
		// Already logged out on the server - nothing to end
		return nil
	}
	return err
}

// Leaderboard returns the server-ordered identity list. The client
// never re-sorts it; ordering by score is server-determined.
func (c *Client) Leaderboard(ctx context.Context) ([]identity.Identity, error) {
	var idents []identity.Identity
	if err := c.do(ctx, http.MethodGet, RouteAPILeaderboard, nil, &idents, errs.ErrNotAuthenticated); err != nil {
		return nil, err
	}
	return idents, nil
}

// do issues one request and maps the response status to the typed
// error taxonomy. unauthorized is the sentinel returned for a 401 at
// this endpoint; when nil, 401 maps to ErrNotAuthenticated.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}, unauthorized error) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "[Client.do] marshal %s payload", path)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "[Client.do] new request %s %s", method, path)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("identity service unreachable")
		return errors.Wrapf(errs.ErrUnavailable, "[Client.do] %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().Str("method", method).Str("path", path).Str("request_id", requestID).Int("status", resp.StatusCode).Msg("identity service response")

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(errs.ErrInternal, "[Client.do] decode %s response: %v", path, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		if unauthorized != nil {
			return unauthorized
		}
		return errs.ErrNotAuthenticated
	case resp.StatusCode == http.StatusConflict:
		return errs.ErrUsernameTaken
	case resp.StatusCode >= http.StatusInternalServerError:
		// The server answered, but not definitively about the session
		return errors.Wrapf(errs.ErrUnavailable, "[Client.do] %s %s returned status %d", method, path, resp.StatusCode)
	default:
		return errors.Wrapf(errs.ErrInternal, "[Client.do] %s %s returned status %d: %s", method, path, resp.StatusCode, apiMessage(resp.Body))
	}
}

// apiMessage extracts the error payload's message field, falling back
// to the raw body
func apiMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 1024))
	if err != nil || len(raw) == 0 {
		return "no error payload"
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(raw)
}
