// Package local implements the credential provider contract against a local
// SQLite database. It exists for offline development and integration tests:
// bcrypt password hashes, HS256 ID tokens, and the same push contract as the
// remote provider.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/credential"
	"github.com/dugoutlabs/dugout/internal/account/credential/local/migrations"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
	"github.com/dugoutlabs/dugout/internal/platform/id"
	sqlitemigrate "github.com/dugoutlabs/dugout/internal/platform/storage/sqlitemigrate"
)

const (
	defaultIssuer   = "dugout-local"
	defaultTokenTTL = time.Hour

	// providerMinPasswordLength mirrors the remote provider's own floor so
	// offline behavior matches.
	providerMinPasswordLength = 6
)

// Config controls the local provider.
type Config struct {
	// Path locates the SQLite database file.
	Path string
	// Secret signs HS256 ID tokens.
	Secret string
	// Issuer names the token issuer; defaults to dugout-local.
	Issuer string
	// TokenTTL bounds ID token life; defaults to one hour.
	TokenTTL time.Duration
	// Clock is injectable for tests.
	Clock func() time.Time
}

// Provider is a credential.Provider backed by local SQLite state.
type Provider struct {
	notifier credential.Notifier

	sqlDB    *sql.DB
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	clock    func() time.Time

	mu      sync.Mutex
	current *credential.Session
}

type claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Open opens the local provider store and applies migrations.
func Open(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	dsn := filepath.Clean(cfg.Path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
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

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	p := &Provider{
		sqlDB:    sqlDB,
		secret:   []byte(cfg.Secret),
		issuer:   issuer,
		tokenTTL: tokenTTL,
		clock:    clock,
	}
	if err := p.restoreSession(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return p, nil
}

// restoreSession rebuilds the current session from the persisted marker so a
// new process picks up where the last one signed in.
func (p *Provider) restoreSession() error {
	var uid, email string
	err := p.sqlDB.QueryRow(`
		SELECT s.uid, c.email FROM local_session s
		JOIN local_credentials c ON c.uid = s.uid
		WHERE s.id = 1 AND c.disabled = 0`).Scan(&uid, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	identity, token, err := p.mint(uid, email)
	if err != nil {
		return err
	}
	p.current = &credential.Session{Identity: identity, Token: token}
	return nil
}

// Close releases the underlying database.
func (p *Provider) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// CreateAccount registers a new email/password credential.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (credential.Session, error) {
	normalized := account.NormalizeEmail(email)
	if err := account.ValidateEmail(normalized); err != nil {
		return credential.Session{}, apperrors.Wrap(apperrors.CodeInvalidCredentials, "invalid email", err)
	}
	if len(password) < providerMinPasswordLength {
		return credential.Session{}, apperrors.New(apperrors.CodeWeakPassword, "password rejected by provider")
	}

	var existing int
	err := p.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM local_credentials WHERE email = ?", normalized).Scan(&existing)
	if err != nil {
		return credential.Session{}, fmt.Errorf("check existing credential: %w", err)
	}
	if existing > 0 {
		return credential.Session{}, apperrors.WithMetadata(
			apperrors.CodeEmailInUse,
			"email already registered",
			map[string]string{"Email": normalized},
		)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return credential.Session{}, fmt.Errorf("hash password: %w", err)
	}
	uid, err := id.NewID()
	if err != nil {
		return credential.Session{}, fmt.Errorf("generate uid: %w", err)
	}

	now := p.clock().UTC()
	_, err = p.sqlDB.ExecContext(ctx, `
INSERT INTO local_credentials (uid, email, password_hash, disabled, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?)
`, uid, normalized, string(hash), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return credential.Session{}, fmt.Errorf("insert credential: %w", err)
	}

	return p.adoptSession(ctx, uid, normalized)
}

// Authenticate signs in an existing credential.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (credential.Session, error) {
	normalized := account.NormalizeEmail(email)

	var uid, hash string
	var disabled int
	err := p.sqlDB.QueryRowContext(ctx,
		"SELECT uid, password_hash, disabled FROM local_credentials WHERE email = ?", normalized,
	).Scan(&uid, &hash, &disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return credential.Session{}, apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return credential.Session{}, fmt.Errorf("lookup credential: %w", err)
	}
	if disabled != 0 {
		return credential.Session{}, apperrors.New(apperrors.CodeAccountDisabled, "account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return credential.Session{}, apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials")
	}

	return p.adoptSession(ctx, uid, normalized)
}

// CurrentSession returns the provider's in-memory session, refreshed when
// the token has expired.
func (p *Provider) CurrentSession(ctx context.Context) (credential.Session, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return credential.Session{}, credential.ErrNoCurrentIdentity
	}
	if current.Token.Expired(p.clock()) {
		if _, err := p.RefreshToken(ctx, true); err != nil {
			return credential.Session{}, err
		}
		p.mu.Lock()
		current = p.current
		p.mu.Unlock()
	}
	return *current, nil
}

// RefreshToken mints a fresh ID token for the current identity.
func (p *Provider) RefreshToken(_ context.Context, force bool) (account.TokenInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return account.TokenInfo{}, credential.ErrNoCurrentIdentity
	}
	if !force && !p.current.Token.Expired(p.clock()) {
		return p.current.Token, nil
	}

	identity, token, err := p.mint(p.current.Identity.UID, p.current.Identity.Email)
	if err != nil {
		return account.TokenInfo{}, err
	}
	p.current = &credential.Session{Identity: identity, Token: token}
	return token, nil
}

// SendPasswordReset is a no-op locally; there is no mail transport.
func (p *Provider) SendPasswordReset(_ context.Context, _ string) error {
	return nil
}

// SignOut discards the session, clears the persisted marker, and notifies
// subscribers.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	hadSession := p.current != nil
	p.current = nil
	p.mu.Unlock()
	if _, err := p.sqlDB.ExecContext(ctx, "DELETE FROM local_session WHERE id = 1"); err != nil {
		return fmt.Errorf("clear session marker: %w", err)
	}
	if hadSession {
		p.notifier.Notify(nil)
	}
	return nil
}

// DeleteAccount removes the current credential row permanently.
func (p *Provider) DeleteAccount(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return credential.ErrNoCurrentIdentity
	}

	if _, err := p.sqlDB.ExecContext(ctx, "DELETE FROM local_credentials WHERE uid = ?", current.Identity.UID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if _, err := p.sqlDB.ExecContext(ctx, "DELETE FROM local_session WHERE id = 1"); err != nil {
		return fmt.Errorf("clear session marker: %w", err)
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.notifier.Notify(nil)
	return nil
}

// Subscribe registers a channel for auth state push events.
func (p *Provider) Subscribe(ch chan<- credential.StateChange) func() {
	return p.notifier.Subscribe(ch)
}

// Disable marks a credential disabled. Test and admin hook; a disabled
// account fails Authenticate with ACCOUNT_DISABLED.
func (p *Provider) Disable(ctx context.Context, email string) error {
	normalized := account.NormalizeEmail(email)
	result, err := p.sqlDB.ExecContext(ctx,
		"UPDATE local_credentials SET disabled = 1, updated_at = ? WHERE email = ?",
		p.clock().UTC().UnixMilli(), normalized,
	)
	if err != nil {
		return fmt.Errorf("disable credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable credential: %w", err)
	}
	if affected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "credential not found")
	}
	return nil
}

func (p *Provider) adoptSession(ctx context.Context, uid, email string) (credential.Session, error) {
	identity, token, err := p.mint(uid, email)
	if err != nil {
		return credential.Session{}, err
	}
	session := credential.Session{Identity: identity, Token: token}

	_, err = p.sqlDB.ExecContext(ctx, `
		INSERT INTO local_session (id, uid, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET uid = excluded.uid, updated_at = excluded.updated_at`,
		uid, p.clock().UTC().UnixMilli())
	if err != nil {
		return credential.Session{}, fmt.Errorf("persist session marker: %w", err)
	}

	p.mu.Lock()
	p.current = &session
	p.mu.Unlock()
	p.notifier.Notify(&session.Identity)
	return session, nil
}

func (p *Provider) mint(uid, email string) (account.Identity, account.TokenInfo, error) {
	now := p.clock().UTC()
	expiresAt := now.Add(p.tokenTTL)

	tokenClaims := claims{
		Email:         email,
		EmailVerified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims).SignedString(p.secret)
	if err != nil {
		return account.Identity{}, account.TokenInfo{}, fmt.Errorf("sign id token: %w", err)
	}

	refresh, err := id.NewID()
	if err != nil {
		return account.Identity{}, account.TokenInfo{}, fmt.Errorf("generate refresh token: %w", err)
	}

	identity := account.Identity{
		UID:           uid,
		Email:         email,
		EmailVerified: true,
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
	}
	token := account.TokenInfo{
		IDToken:      signed,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
	return identity, token, nil
}
