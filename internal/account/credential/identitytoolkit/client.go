// Package identitytoolkit implements the credential provider contract over
// an Identity-Toolkit-compatible REST API.
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/credential"
)

const (
	defaultEndpoint      = "https://identitytoolkit.googleapis.com"
	defaultTokenEndpoint = "https://securetoken.googleapis.com"

	defaultRequestTimeout = 15 * time.Second

	// defaultRequestsPerSecond throttles outbound calls so bursty callers do
	// not trip the provider's own rate limiting.
	defaultRequestsPerSecond = 10
	defaultBurst             = 5
)

// Config controls the Identity Toolkit client.
type Config struct {
	// APIKey authenticates requests to the provider.
	APIKey string
	// Endpoint overrides the accounts API base URL (tests, emulators).
	Endpoint string
	// TokenEndpoint overrides the secure-token API base URL.
	TokenEndpoint string
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
	// RequestsPerSecond caps outbound request rate; zero uses the default.
	RequestsPerSecond float64
	// Clock is injectable for tests.
	Clock func() time.Time
}

// Client is a credential.Provider backed by the Identity Toolkit REST API.
type Client struct {
	notifier credential.Notifier

	apiKey        string
	endpoint      string
	tokenEndpoint string
	httpClient    *http.Client
	limiter       *rate.Limiter
	clock         func() time.Time

	mu      sync.Mutex
	current *credential.Session
}

// New creates a configured Identity Toolkit client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	tokenEndpoint := strings.TrimRight(strings.TrimSpace(cfg.TokenEndpoint), "/")
	if tokenEndpoint == "" {
		tokenEndpoint = defaultTokenEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	perSecond := cfg.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRequestsPerSecond
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Client{
		apiKey:        cfg.APIKey,
		endpoint:      endpoint,
		tokenEndpoint: tokenEndpoint,
		httpClient:    httpClient,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), defaultBurst),
		clock:         clock,
	}, nil
}

type authPayload struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	IDToken           string `json:"idToken,omitempty"`
	RequestType       string `json:"requestType,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken,omitempty"`
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// CreateAccount registers a new email/password credential.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (credential.Session, error) {
	var resp authResponse
	payload := authPayload{Email: email, Password: password, ReturnSecureToken: true}
	if err := c.post(ctx, c.accountsURL("signUp"), payload, &resp); err != nil {
		return credential.Session{}, err
	}
	return c.adoptSession(resp)
}

// Authenticate signs in an existing credential.
func (c *Client) Authenticate(ctx context.Context, email, password string) (credential.Session, error) {
	var resp authResponse
	payload := authPayload{Email: email, Password: password, ReturnSecureToken: true}
	if err := c.post(ctx, c.accountsURL("signInWithPassword"), payload, &resp); err != nil {
		return credential.Session{}, err
	}
	return c.adoptSession(resp)
}

// CurrentSession returns the in-memory session, refreshing an expired token.
func (c *Client) CurrentSession(ctx context.Context) (credential.Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return credential.Session{}, credential.ErrNoCurrentIdentity
	}
	if current.Token.Expired(c.clock()) {
		if _, err := c.RefreshToken(ctx, true); err != nil {
			return credential.Session{}, err
		}
		c.mu.Lock()
		current = c.current
		c.mu.Unlock()
		if current == nil {
			return credential.Session{}, credential.ErrNoCurrentIdentity
		}
	}
	return *current, nil
}

// RefreshToken exchanges the refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, force bool) (account.TokenInfo, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return account.TokenInfo{}, credential.ErrNoCurrentIdentity
	}
	if !force && !current.Token.Expired(c.clock()) {
		return current.Token, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.Token.RefreshToken},
	}
	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := c.postForm(ctx, c.tokenEndpoint+"/v1/token?key="+url.QueryEscape(c.apiKey), form, &resp); err != nil {
		return account.TokenInfo{}, err
	}

	token := account.TokenInfo{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.expiryFrom(resp.ExpiresIn),
	}
	identity, err := identityFromToken(resp.IDToken, resp.UserID, current.Identity.Email)
	if err != nil {
		identity = current.Identity
	}

	c.mu.Lock()
	c.current = &credential.Session{Identity: identity, Token: token}
	c.mu.Unlock()
	return token, nil
}

// SendPasswordReset emails a password-reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	payload := authPayload{Email: email, RequestType: "PASSWORD_RESET"}
	return c.post(ctx, c.accountsURL("sendOobCode"), payload, nil)
}

// SignOut discards the in-memory session and notifies subscribers. The
// provider API has no server-side sign-out for password credentials.
func (c *Client) SignOut(_ context.Context) error {
	c.mu.Lock()
	hadSession := c.current != nil
	c.current = nil
	c.mu.Unlock()
	if hadSession {
		c.notifier.Notify(nil)
	}
	return nil
}

// DeleteAccount permanently deletes the current credential.
func (c *Client) DeleteAccount(ctx context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return credential.ErrNoCurrentIdentity
	}
	payload := authPayload{IDToken: current.Token.IDToken}
	if err := c.post(ctx, c.accountsURL("delete"), payload, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.notifier.Notify(nil)
	return nil
}

// Subscribe registers a channel for auth state push events.
func (c *Client) Subscribe(ch chan<- credential.StateChange) func() {
	return c.notifier.Subscribe(ch)
}

func (c *Client) adoptSession(resp authResponse) (credential.Session, error) {
	identity, err := identityFromToken(resp.IDToken, resp.LocalID, resp.Email)
	if err != nil {
		return credential.Session{}, fmt.Errorf("parse id token: %w", err)
	}
	session := credential.Session{
		Identity: identity,
		Token: account.TokenInfo{
			IDToken:      resp.IDToken,
			RefreshToken: resp.RefreshToken,
			ExpiresAt:    c.expiryFrom(resp.ExpiresIn),
		},
	}
	c.mu.Lock()
	c.current = &session
	c.mu.Unlock()
	c.notifier.Notify(&session.Identity)
	return session, nil
}

func (c *Client) expiryFrom(expiresIn string) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(expiresIn), 10, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return c.clock().UTC().Add(time.Duration(seconds) * time.Second)
}

func (c *Client) accountsURL(action string) string {
	return c.endpoint + "/v1/accounts:" + action + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(body), out)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.do(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return mapTransportError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return mapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
