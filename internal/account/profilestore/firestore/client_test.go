package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

func mustClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{
		ProjectID: "dugout-test",
		Endpoint:  server.URL,
		Token: func(ctx context.Context) (string, error) {
			return "token-1", nil
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGetProfile_DecodesDocument(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		wantPath := "/v1/projects/dugout-test/databases/(default)/documents/users/uid-1"
		if r.URL.Path != wantPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected authorization %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name": "projects/dugout-test/databases/(default)/documents/users/uid-1",
			"fields": map[string]any{
				"role":        map[string]any{"stringValue": "coach"},
				"displayName": map[string]any{"stringValue": "Coach Casey"},
				"premium":     map[string]any{"booleanValue": true},
				"createdAt":   map[string]any{"timestampValue": "2026-04-01T12:00:00Z"},
			},
		})
	}))

	profile, err := client.GetProfile(t.Context(), "uid-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Role != account.RoleCoach {
		t.Fatalf("expected coach role, got %v", profile.Role)
	}
	if profile.DisplayName != "Coach Casey" {
		t.Fatalf("unexpected display name %q", profile.DisplayName)
	}
	if !profile.Premium {
		t.Fatal("expected premium flag")
	}
	want := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if !profile.CreatedAt.Equal(want) {
		t.Fatalf("unexpected createdAt %v", profile.CreatedAt)
	}
}

func TestGetProfile_CorruptRoleFallsBackToAthlete(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"fields": map[string]any{
				"role": map[string]any{"stringValue": "umpire"},
			},
		})
	}))

	profile, err := client.GetProfile(t.Context(), "uid-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Role != account.RoleAthlete {
		t.Fatalf("expected athlete fallback, got %v", profile.Role)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 404, "status": "NOT_FOUND", "message": "missing"},
		})
	}))

	_, err := client.GetProfile(t.Context(), "uid-1")
	if !errors.Is(err, profilestore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateProfile_UsesCreateSemantics(t *testing.T) {
	created := false
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.URL.Query().Get("documentId"); got != "uid-1" {
			t.Errorf("expected documentId=uid-1, got %q", got)
		}
		if created {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 409, "status": "ALREADY_EXISTS", "message": "exists"},
			})
			return
		}
		created = true
		var doc map[string]any
		json.NewDecoder(r.Body).Decode(&doc)
		fields, _ := doc["fields"].(map[string]any)
		role, _ := fields["role"].(map[string]any)
		if role["stringValue"] != "coach" {
			t.Errorf("expected role field coach, got %v", role)
		}
		w.Write([]byte("{}"))
	}))

	profile := account.Profile{
		UserID:      "uid-1",
		Role:        account.RoleCoach,
		DisplayName: "Coach Casey",
		CreatedAt:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := client.CreateProfile(t.Context(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	err := client.CreateProfile(t.Context(), profile)
	if !errors.Is(err, profilestore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on second create, got %v", err)
	}
}

func TestUpdateProfile_SendsFieldMask(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		masks := r.URL.Query()["updateMask.fieldPaths"]
		joined := strings.Join(masks, ",")
		if !strings.Contains(joined, "role") || !strings.Contains(joined, "updatedAt") {
			t.Errorf("unexpected field mask %v", masks)
		}
		if strings.Contains(joined, "displayName") {
			t.Errorf("unset fields must not appear in mask: %v", masks)
		}
		w.Write([]byte("{}"))
	}))

	role := account.RoleCoach
	err := client.UpdateProfile(t.Context(), "uid-1", profilestore.ProfileUpdate{Role: &role})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
}

func TestDeleteProfile_AbsentDocumentSucceeds(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 404, "status": "NOT_FOUND", "message": "missing"},
		})
	}))

	if err := client.DeleteProfile(t.Context(), "uid-1"); err != nil {
		t.Fatalf("expected absent delete to succeed, got %v", err)
	}
}

func TestCountCoachInvites_CountsQueryResults(t *testing.T) {
	client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":runQuery") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var query map[string]any
		json.NewDecoder(r.Body).Decode(&query)
		if _, ok := query["structuredQuery"]; !ok {
			t.Error("expected a structuredQuery payload")
		}
		// Firestore returns one result entry per match plus a trailing
		// read-time entry with no document.
		json.NewEncoder(w).Encode([]map[string]any{
			{"document": map[string]any{"name": "coach_invites/1"}},
			{"document": map[string]any{"name": "coach_invites/2"}},
			{"readTime": "2026-04-01T12:00:00Z"},
		})
	}))

	count, err := client.CountCoachInvites(t.Context(), "Coach@X.com")
	if err != nil {
		t.Fatalf("count invites: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 invites, got %d", count)
	}
}

func TestErrorMapping_RateLimitAndServerErrors(t *testing.T) {
	cases := []struct {
		status   int
		grpcCode string
		want     apperrors.Code
	}{
		{429, "RESOURCE_EXHAUSTED", apperrors.CodeRateLimited},
		{500, "INTERNAL", apperrors.CodeNetworkUnavailable},
		{403, "PERMISSION_DENIED", apperrors.CodeInvalidCredentials},
	}
	for _, tc := range cases {
		client := mustClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": tc.status, "status": tc.grpcCode, "message": "boom"},
			})
		}))
		_, err := client.GetProfile(t.Context(), "uid-1")
		if code := apperrors.CodeOf(err); code != tc.want {
			t.Fatalf("status %d: expected %v, got %v (%v)", tc.status, tc.want, code, err)
		}
	}
}
