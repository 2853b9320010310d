package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/mirror"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCachedProfileRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	profile := account.Profile{
		UserID:      "uid-1",
		Role:        account.RoleCoach,
		DisplayName: "Coach Casey",
		Premium:     true,
		CreatedAt:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := store.PutCachedProfile(ctx, profile); err != nil {
		t.Fatalf("put profile: %v", err)
	}

	got, err := store.GetCachedProfile(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got != profile {
		t.Fatalf("profile mismatch:\n got %+v\nwant %+v", got, profile)
	}
}

func TestCachedProfileUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	profile := account.Profile{UserID: "uid-1", Role: account.RoleAthlete, DisplayName: "Sam"}
	if err := store.PutCachedProfile(ctx, profile); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	profile.DisplayName = "Sam Ortiz"
	profile.Role = account.RoleCoach
	if err := store.PutCachedProfile(ctx, profile); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := store.GetCachedProfile(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.DisplayName != "Sam Ortiz" || got.Role != account.RoleCoach {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
}

func TestGetCachedProfileMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetCachedProfile(context.Background(), "uid-absent")
	if !errors.Is(err, mirror.ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestDeleteCachedProfileAbsent(t *testing.T) {
	store := openTestStore(t)

	if err := store.DeleteCachedProfile(context.Background(), "uid-absent"); err != nil {
		t.Fatalf("expected absent delete to succeed, got %v", err)
	}
}

func TestFlagsScopedPerIdentity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.PutFlags(ctx, "uid-1", mirror.Flags{Role: account.RoleCoach, OnboardingComplete: true})
	if err != nil {
		t.Fatalf("put flags: %v", err)
	}

	got, err := store.GetFlags(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get flags: %v", err)
	}
	if got.Role != account.RoleCoach || !got.OnboardingComplete {
		t.Fatalf("unexpected flags for uid-1: %+v", got)
	}

	// A different identity on the same device sees only defaults.
	other, err := store.GetFlags(ctx, "uid-2")
	if err != nil {
		t.Fatalf("get flags uid-2: %v", err)
	}
	if other != mirror.DefaultFlags() {
		t.Fatalf("flags leaked across identities: %+v", other)
	}
}

func TestClearIdentityRemovesProfileAndFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	profile := account.Profile{UserID: "uid-1", Role: account.RoleAthlete, DisplayName: "Sam"}
	if err := store.PutCachedProfile(ctx, profile); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	if err := store.PutFlags(ctx, "uid-1", mirror.Flags{Role: account.RoleAthlete, OnboardingComplete: true}); err != nil {
		t.Fatalf("put flags: %v", err)
	}
	if err := store.PutFlags(ctx, "uid-2", mirror.Flags{Role: account.RoleCoach}); err != nil {
		t.Fatalf("put flags uid-2: %v", err)
	}

	if err := store.ClearIdentity(ctx, "uid-1"); err != nil {
		t.Fatalf("clear identity: %v", err)
	}

	if _, err := store.GetCachedProfile(ctx, "uid-1"); !errors.Is(err, mirror.ErrNotCached) {
		t.Fatalf("expected profile cleared, got %v", err)
	}
	flags, err := store.GetFlags(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get flags: %v", err)
	}
	if flags != mirror.DefaultFlags() {
		t.Fatalf("expected default flags after clear, got %+v", flags)
	}

	// Other identities are untouched.
	other, err := store.GetFlags(ctx, "uid-2")
	if err != nil {
		t.Fatalf("get flags uid-2: %v", err)
	}
	if other.Role != account.RoleCoach {
		t.Fatalf("clear removed another identity's flags: %+v", other)
	}
}

func TestTelemetryEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := telemetry.Event{
		Kind:      "session.sign_in",
		Severity:  telemetry.SeverityInfo,
		UserID:    "uid-1",
		Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	second := telemetry.Event{
		Kind:      "session.sign_out",
		Severity:  telemetry.SeverityWarn,
		UserID:    "uid-1",
		Detail:    "provider push",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := store.AppendTelemetryEvent(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := store.AppendTelemetryEvent(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	events, err := store.ListTelemetryEvents(ctx, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "session.sign_out" {
		t.Fatalf("expected newest first, got %q", events[0].Kind)
	}
	if events[1] != first {
		t.Fatalf("first event mismatch: %+v", events[1])
	}
}
