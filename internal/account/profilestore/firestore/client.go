// Package firestore implements the profile store contract over a
// Firestore-compatible documents REST API.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
)

const (
	defaultEndpoint = "https://firestore.googleapis.com"
	defaultDatabase = "(default)"

	usersCollection   = "users"
	invitesCollection = "coach_invites"

	defaultRequestTimeout    = 15 * time.Second
	defaultRequestsPerSecond = 10
	defaultBurst             = 5
)

// TokenSource supplies the bearer token for document requests, normally the
// session's current ID token.
type TokenSource func(ctx context.Context) (string, error)

// Config controls the Firestore client.
type Config struct {
	// ProjectID names the Firestore project.
	ProjectID string
	// Database overrides the database id; defaults to (default).
	Database string
	// Endpoint overrides the API base URL (tests, emulators).
	Endpoint string
	// Token supplies bearer tokens; nil sends unauthenticated requests
	// (emulator use).
	Token TokenSource
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
	// RequestsPerSecond caps outbound request rate; zero uses the default.
	RequestsPerSecond float64
}

// Client is a profilestore.Store backed by the Firestore REST API.
type Client struct {
	projectID  string
	database   string
	endpoint   string
	token      TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a configured Firestore client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	database := strings.TrimSpace(cfg.Database)
	if database == "" {
		database = defaultDatabase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	perSecond := cfg.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRequestsPerSecond
	}

	return &Client{
		projectID:  cfg.ProjectID,
		database:   database,
		endpoint:   endpoint,
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), defaultBurst),
	}, nil
}

// GetProfile returns the profile document, or profilestore.ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, userID string) (account.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return account.Profile{}, account.ErrEmptyUserID
	}

	var doc document
	err := c.do(ctx, http.MethodGet, c.documentURL(usersCollection, userID), nil, &doc)
	if err != nil {
		return account.Profile{}, err
	}
	return profileFromDocument(userID, doc)
}

// CreateProfile writes a new document, failing with ErrAlreadyExists when
// one is present.
func (c *Client) CreateProfile(ctx context.Context, profile account.Profile) error {
	profile = normalizeProfile(profile)
	if profile.UserID == "" {
		return account.ErrEmptyUserID
	}

	// documentId create semantics: the API rejects the write with
	// ALREADY_EXISTS instead of overwriting.
	endpoint := c.collectionURL(usersCollection) + "?documentId=" + url.QueryEscape(profile.UserID)
	return c.do(ctx, http.MethodPost, endpoint, document{Fields: profileFields(profile)}, nil)
}

// UpdateProfile merges the named fields into the existing document.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update profilestore.ProfileUpdate) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return account.ErrEmptyUserID
	}

	fields := map[string]value{}
	var mask []string
	if update.Role != nil {
		fields["role"] = stringValue(update.Role.String())
		mask = append(mask, "role")
	}
	if update.DisplayName != nil {
		fields["displayName"] = stringValue(*update.DisplayName)
		mask = append(mask, "displayName")
	}
	if update.Premium != nil {
		fields["premium"] = boolValue(*update.Premium)
		mask = append(mask, "premium")
	}
	if len(mask) == 0 {
		return nil
	}
	fields["updatedAt"] = timestampValue(time.Now().UTC())
	mask = append(mask, "updatedAt")

	endpoint := c.documentURL(usersCollection, userID)
	query := url.Values{}
	for _, field := range mask {
		query.Add("updateMask.fieldPaths", field)
	}
	return c.do(ctx, http.MethodPatch, endpoint+"?"+query.Encode(), document{Fields: fields}, nil)
}

// DeleteProfile removes the document; deleting an absent document succeeds.
func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return account.ErrEmptyUserID
	}
	err := c.do(ctx, http.MethodDelete, c.documentURL(usersCollection, userID), nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// CountCoachInvites returns how many pending coach invitations are addressed
// to the email.
func (c *Client) CountCoachInvites(ctx context.Context, email string) (int, error) {
	normalized := account.NormalizeEmail(email)
	if normalized == "" {
		return 0, account.ErrEmptyEmail
	}

	query := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": invitesCollection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": "email"},
					"op":    "EQUAL",
					"value": map[string]any{"stringValue": normalized},
				},
			},
		},
	}

	var results []struct {
		Document *document `json:"document"`
	}
	endpoint := c.documentsRoot() + ":runQuery"
	if err := c.do(ctx, http.MethodPost, endpoint, query, &results); err != nil {
		return 0, err
	}

	count := 0
	for _, result := range results {
		if result.Document != nil {
			count++
		}
	}
	return count, nil
}

func (c *Client) documentsRoot() string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/%s/documents",
		c.endpoint, url.PathEscape(c.projectID), url.PathEscape(c.database))
}

func (c *Client) collectionURL(collection string) string {
	return c.documentsRoot() + "/" + url.PathEscape(collection)
}

func (c *Client) documentURL(collection, docID string) string {
	return c.collectionURL(collection) + "/" + url.PathEscape(docID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return mapTransportError(err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("token source: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

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

func normalizeProfile(profile account.Profile) account.Profile {
	profile.UserID = strings.TrimSpace(profile.UserID)
	profile.DisplayName = strings.TrimSpace(profile.DisplayName)
	if profile.Role == "" {
		profile.Role = account.DefaultRole
	}
	return profile
}
