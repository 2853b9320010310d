// Package sqlite implements the mirror store over a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/mirror"
	"github.com/dugoutlabs/dugout/internal/mirror/sqlite/migrations"
	sqlitemigrate "github.com/dugoutlabs/dugout/internal/platform/storage/sqlitemigrate"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

// Store is a mirror.Store backed by SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the mirror database at path, creating it and applying the
// schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutCachedProfile upserts the mirrored copy of a remote profile.
func (s *Store) PutCachedProfile(ctx context.Context, profile account.Profile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO cached_profiles (uid, role, display_name, premium, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name,
			premium = excluded.premium,
			updated_at = excluded.updated_at`,
		profile.UserID, string(profile.Role), profile.DisplayName,
		boolToInt(profile.Premium), toMillis(profile.CreatedAt), toMillis(profile.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put cached profile: %w", err)
	}
	return nil
}

// GetCachedProfile returns the mirrored profile or mirror.ErrNotCached.
func (s *Store) GetCachedProfile(ctx context.Context, userID string) (account.Profile, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT uid, role, display_name, premium, created_at, updated_at
		FROM cached_profiles WHERE uid = ?`, userID)

	var profile account.Profile
	var role string
	var premium int
	var createdAt, updatedAt int64
	err := row.Scan(&profile.UserID, &role, &profile.DisplayName, &premium, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Profile{}, mirror.ErrNotCached
	}
	if err != nil {
		return account.Profile{}, fmt.Errorf("get cached profile: %w", err)
	}
	profile.Role = account.ParseRoleOrDefault(role)
	profile.Premium = premium != 0
	profile.CreatedAt = fromMillis(createdAt)
	profile.UpdatedAt = fromMillis(updatedAt)
	return profile, nil
}

// DeleteCachedProfile removes the mirrored profile. Absence is not an error.
func (s *Store) DeleteCachedProfile(ctx context.Context, userID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cached_profiles WHERE uid = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete cached profile: %w", err)
	}
	return nil
}

// GetFlags returns the identity's flags, or mirror.DefaultFlags when no row
// exists.
func (s *Store) GetFlags(ctx context.Context, userID string) (mirror.Flags, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT role, onboarding_complete FROM identity_flags WHERE uid = ?`, userID)

	var role string
	var onboarding int
	err := row.Scan(&role, &onboarding)
	if errors.Is(err, sql.ErrNoRows) {
		return mirror.DefaultFlags(), nil
	}
	if err != nil {
		return mirror.Flags{}, fmt.Errorf("get flags: %w", err)
	}
	return mirror.Flags{
		Role:               account.ParseRoleOrDefault(role),
		OnboardingComplete: onboarding != 0,
	}, nil
}

// PutFlags upserts the identity's flags.
func (s *Store) PutFlags(ctx context.Context, userID string, flags mirror.Flags) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	role := flags.Role
	if !role.Valid() {
		role = account.DefaultRole
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO identity_flags (uid, role, onboarding_complete, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			role = excluded.role,
			onboarding_complete = excluded.onboarding_complete,
			updated_at = excluded.updated_at`,
		userID, string(role), boolToInt(flags.OnboardingComplete), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("put flags: %w", err)
	}
	return nil
}

// ClearIdentity removes the profile and flags for one identity in a single
// transaction.
func (s *Store) ClearIdentity(ctx context.Context, userID string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear identity: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_profiles WHERE uid = ?`, userID); err != nil {
		return fmt.Errorf("clear cached profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identity_flags WHERE uid = ?`, userID); err != nil {
		return fmt.Errorf("clear flags: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear identity: %w", err)
	}
	return nil
}

// AppendTelemetryEvent records one telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt telemetry.Event) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO telemetry_events (kind, severity, user_id, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		evt.Kind, string(evt.Severity), evt.UserID, evt.Detail, toMillis(evt.Timestamp))
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// ListTelemetryEvents returns the most recent events, newest first.
func (s *Store) ListTelemetryEvents(ctx context.Context, limit int) ([]telemetry.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT kind, severity, user_id, detail, timestamp
		FROM telemetry_events ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var evt telemetry.Event
		var severity string
		var stamp int64
		if err := rows.Scan(&evt.Kind, &severity, &evt.UserID, &evt.Detail, &stamp); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		evt.Severity = telemetry.Severity(severity)
		evt.Timestamp = fromMillis(stamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
