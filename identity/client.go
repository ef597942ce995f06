package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// Identity API endpoints.
const (
	EndpointLogin   = "/auth/login"
	EndpointRefresh = "/auth/refresh"
	EndpointMe      = "/auth/me"
	EndpointLogout  = "/auth/logout"
)

// Client talks to the identity API over HTTP/JSON. All failures are returned
// as *Error so callers can branch on the kind without inspecting bodies.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request-level events.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates an identity API client for the given base URL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair and the user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, EndpointLogin, loginRequest{Email: email, Password: password}, "", &creds)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, &Error{Kind: KindUnknown, Message: "login response missing access token"}
	}
	return &creds, nil
}

// Refresh mints a new access token from a refresh token. The response may
// carry a rotated refresh token; when it does not, the caller keeps the old
// one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "no refresh token"}
	}
	var creds Credentials
	err := c.do(ctx, http.MethodPost, EndpointRefresh, refreshRequest{RefreshToken: refreshToken}, "", &creds)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, &Error{Kind: KindUnknown, Message: "refresh response missing access token"}
	}
	return &creds, nil
}

// Me returns the profile of the user the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, EndpointMe, nil, accessToken, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Logout asks the server to invalidate the session. Best effort: the caller
// proceeds with client-side logout regardless of the outcome.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, EndpointLogout, nil, accessToken, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, accessToken string, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] marshal request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return errors.Wrap(err, "[Client.do] new request")
	}

	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Str("endpoint", endpoint).Str("request_id", requestID).Err(err).Msg("identity API request failed")
		return networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errorFromResponse(resp.StatusCode, respBody)
		c.log.Debug().
			Str("endpoint", endpoint).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("identity API error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: "malformed identity API response", cause: err}
	}
	return nil
}
