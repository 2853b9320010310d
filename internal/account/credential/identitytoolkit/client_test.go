package identitytoolkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dugoutlabs/dugout/internal/account/credential"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

func mintIDToken(t *testing.T, uid, email string, verified bool) string {
	t.Helper()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	claims := jwt.MapClaims{
		"sub":            uid,
		"user_id":        uid,
		"email":          email,
		"email_verified": verified,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{
		APIKey:        "test-key",
		Endpoint:      server.URL,
		TokenEndpoint: server.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestCreateAccount_ParsesIdentityFromToken(t *testing.T) {
	idToken := mintIDToken(t, "uid-1", "athlete@x.com", true)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "accounts:signUp") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, got %q", r.URL.Query().Get("key"))
		}
		json.NewEncoder(w).Encode(map[string]string{
			"localId":      "uid-1",
			"email":        "athlete@x.com",
			"idToken":      idToken,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
		})
	}))

	events := make(chan credential.StateChange, 1)
	defer client.Subscribe(events)()

	session, err := client.CreateAccount(t.Context(), "athlete@x.com", "longenough")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if session.Identity.UID != "uid-1" {
		t.Fatalf("unexpected uid %q", session.Identity.UID)
	}
	if !session.Identity.EmailVerified {
		t.Fatal("expected email_verified claim to carry through")
	}
	if session.Token.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected refresh token %q", session.Token.RefreshToken)
	}

	select {
	case change := <-events:
		if change.Identity == nil || change.Identity.UID != "uid-1" {
			t.Fatalf("unexpected push event: %+v", change.Identity)
		}
	default:
		t.Fatal("expected a signed-in push event")
	}
}

func TestAuthenticate_MapsProviderErrors(t *testing.T) {
	cases := []struct {
		providerMessage string
		status          int
		wantCode        apperrors.Code
	}{
		{"EMAIL_EXISTS", 400, apperrors.CodeEmailInUse},
		{"INVALID_LOGIN_CREDENTIALS", 400, apperrors.CodeInvalidCredentials},
		{"INVALID_PASSWORD", 400, apperrors.CodeInvalidCredentials},
		{"WEAK_PASSWORD : Password should be at least 6 characters", 400, apperrors.CodeWeakPassword},
		{"USER_DISABLED", 400, apperrors.CodeAccountDisabled},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", 400, apperrors.CodeRateLimited},
		{"SOMETHING_NEW", 400, apperrors.CodeUnknown},
		{"", 503, apperrors.CodeNetworkUnavailable},
	}

	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": tc.status, "message": tc.providerMessage},
			})
		}))

		_, err := client.Authenticate(t.Context(), "a@x.com", "pw-long-enough")
		if err == nil {
			t.Fatalf("%s: expected error", tc.providerMessage)
		}
		if code := apperrors.CodeOf(err); code != tc.wantCode {
			t.Fatalf("%s: expected %v, got %v (%v)", tc.providerMessage, tc.wantCode, code, err)
		}
	}
}

func TestAuthenticate_NetworkFailureMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	client, err := New(Config{APIKey: "k", Endpoint: server.URL, TokenEndpoint: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Authenticate(t.Context(), "a@x.com", "pw-long-enough")
	if code := apperrors.CodeOf(err); code != apperrors.CodeNetworkUnavailable {
		t.Fatalf("expected NETWORK_UNAVAILABLE, got %v (%v)", code, err)
	}
}

func TestRefreshToken_ExchangesRefreshToken(t *testing.T) {
	firstToken := mintIDToken(t, "uid-1", "a@x.com", false)
	secondToken := mintIDToken(t, "uid-1", "a@x.com", false)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "accounts:signInWithPassword"):
			json.NewEncoder(w).Encode(map[string]string{
				"localId": "uid-1", "email": "a@x.com",
				"idToken": firstToken, "refreshToken": "refresh-1", "expiresIn": "3600",
			})
		case strings.Contains(r.URL.Path, "/v1/token"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "refresh_token" {
				t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
			}
			if r.PostForm.Get("refresh_token") != "refresh-1" {
				t.Errorf("unexpected refresh token %q", r.PostForm.Get("refresh_token"))
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id_token": secondToken, "refresh_token": "refresh-2",
				"expires_in": "3600", "user_id": "uid-1",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if _, err := client.Authenticate(t.Context(), "a@x.com", "pw-long-enough"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	token, err := client.RefreshToken(t.Context(), true)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token.RefreshToken != "refresh-2" {
		t.Fatalf("expected rotated refresh token, got %q", token.RefreshToken)
	}

	// Without force, a valid token is returned unchanged.
	again, err := client.RefreshToken(t.Context(), false)
	if err != nil {
		t.Fatalf("refresh without force: %v", err)
	}
	if again.RefreshToken != "refresh-2" {
		t.Fatalf("expected cached token, got %q", again.RefreshToken)
	}
}

func TestDeleteAccount_ClearsSessionAndNotifies(t *testing.T) {
	idToken := mintIDToken(t, "uid-1", "a@x.com", false)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "accounts:signInWithPassword"):
			json.NewEncoder(w).Encode(map[string]string{
				"localId": "uid-1", "email": "a@x.com",
				"idToken": idToken, "refreshToken": "refresh-1", "expiresIn": "3600",
			})
		case strings.Contains(r.URL.Path, "accounts:delete"):
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["idToken"] != idToken {
				t.Errorf("expected current id token in delete payload")
			}
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if _, err := client.Authenticate(t.Context(), "a@x.com", "pw-long-enough"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	events := make(chan credential.StateChange, 1)
	defer client.Subscribe(events)()

	if err := client.DeleteAccount(t.Context()); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := client.CurrentSession(t.Context()); !errors.Is(err, credential.ErrNoCurrentIdentity) {
		t.Fatalf("expected ErrNoCurrentIdentity, got %v", err)
	}

	select {
	case change := <-events:
		if change.Identity != nil {
			t.Fatalf("expected signed-out push event, got %+v", change.Identity)
		}
	default:
		t.Fatal("expected a signed-out push event")
	}
}

func TestSignOut_IsIdempotent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("sign out must not reach the network, got %s", r.URL.Path)
	}))

	events := make(chan credential.StateChange, 2)
	defer client.Subscribe(events)()

	if err := client.SignOut(t.Context()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if err := client.SignOut(t.Context()); err != nil {
		t.Fatalf("repeat sign out: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no push events for no-op sign out, got %d", len(events))
	}
}
