package coordinator

import (
	"context"
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
	"github.com/dugoutlabs/dugout/internal/mirror"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
	"github.com/dugoutlabs/dugout/internal/session"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

// SignUp registers a new athlete account. The chosen role and IsNewSignup
// are published before any network round trip.
func (c *Coordinator) SignUp(ctx context.Context, email, password, displayName string) error {
	return c.dispatch(ctx, "session.sign_up", func(ctx context.Context) error {
		return c.signUp(ctx, email, password, displayName, account.RoleAthlete)
	})
}

// SignUpAsCoach registers a new coach account and caches the pending
// coach-invite count for the email.
func (c *Coordinator) SignUpAsCoach(ctx context.Context, email, password, displayName string) error {
	return c.dispatch(ctx, "session.sign_up_coach", func(ctx context.Context) error {
		return c.signUp(ctx, email, password, displayName, account.RoleCoach)
	})
}

// SignIn authenticates an existing account. The remote profile's role wins
// over any cached value.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) error {
	return c.dispatch(ctx, "session.sign_in", func(ctx context.Context) error {
		return c.signIn(ctx, email, password)
	})
}

// SignOut tears the session down. It is idempotent: signing out while
// signed out succeeds without provider calls.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.cancelLoads()
	return c.dispatch(ctx, "session.sign_out", c.signOut)
}

// DeleteAccount removes the account: scope cleaners, the remote profile,
// the mirror, and finally the credential. Earlier failures are logged and
// do not stop later steps; the operation succeeds iff the credential
// deletion succeeds.
func (c *Coordinator) DeleteAccount(ctx context.Context) error {
	c.cancelLoads()
	return c.dispatch(ctx, "session.delete_account", c.deleteAccount)
}

// CompleteOnboarding marks onboarding done for the current identity and
// moves the session out of the fresh-signup phase.
func (c *Coordinator) CompleteOnboarding(ctx context.Context) error {
	return c.dispatch(ctx, "session.complete_onboarding", func(ctx context.Context) error {
		return c.finishOnboarding(ctx, true)
	})
}

// SkipOnboarding leaves the fresh-signup phase without marking onboarding
// done, so the next sign-in offers it again.
func (c *Coordinator) SkipOnboarding(ctx context.Context) error {
	return c.dispatch(ctx, "session.skip_onboarding", func(ctx context.Context) error {
		return c.finishOnboarding(ctx, false)
	})
}

// SendPasswordReset emails a reset link. No session state changes.
func (c *Coordinator) SendPasswordReset(ctx context.Context, email string) error {
	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return err
	}
	return c.dispatch(ctx, "session.password_reset", func(ctx context.Context) error {
		return c.provider.SendPasswordReset(ctx, email)
	})
}

// LoadProfile re-fetches the current identity's remote profile with the
// usual retry schedule.
func (c *Coordinator) LoadProfile(ctx context.Context) error {
	return c.dispatch(ctx, "session.load_profile", func(ctx context.Context) error {
		if !c.state.SignedIn() {
			return apperrors.New(apperrors.CodeSessionNotSignedIn, "no active session")
		}
		c.loadProfile(ctx, c.state.UID(), c.signupFallback())
		return nil
	})
}

func (c *Coordinator) signUp(ctx context.Context, email, password, displayName string, role account.Role) error {
	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return err
	}
	if err := account.ValidatePassword(password); err != nil {
		return err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return account.ErrEmptyDisplayName
	}

	state, err := c.state.BeginSignUp(role)
	if err != nil {
		return err
	}
	c.setState(state)

	sess, err := c.provider.CreateAccount(ctx, email, password)
	if err != nil {
		c.abort()
		c.emit(ctx, telemetry.Event{
			Kind:     "session.sign_up_failed",
			Severity: telemetry.SeverityError,
			Detail:   string(apperrors.CodeOf(err)),
		})
		return err
	}

	state, err = c.state.CompleteSignUp(sess.Identity)
	if err != nil {
		return err
	}
	c.setState(state)

	uid := sess.Identity.UID
	persistCtx := context.WithoutCancel(ctx)
	if err := c.mirror.PutFlags(persistCtx, uid, mirror.Flags{Role: role}); err != nil {
		c.logger.Printf("signup mirror flags: %v", err)
	}

	profile, err := account.NewProfile(account.ProfileInput{
		UserID:      uid,
		Role:        role,
		DisplayName: displayName,
	}, c.clock)
	if err != nil {
		return err
	}
	if err := c.profiles.CreateProfile(ctx, profile); err != nil &&
		!errors.Is(err, profilestore.ErrAlreadyExists) {
		// The load below retries absence and synthesizes on exhaustion.
		c.logger.Printf("signup profile write: %v", err)
	}

	c.loadProfile(ctx, uid, &profile)

	if role == account.RoleCoach {
		if count, err := c.profiles.CountCoachInvites(ctx, email); err == nil {
			c.setState(c.state.WithCoachInvites(count))
		} else {
			c.logger.Printf("coach invite count: %v", err)
		}
	}

	c.emit(ctx, telemetry.Event{Kind: "session.signed_up", UserID: uid, Detail: string(role)})
	return nil
}

func (c *Coordinator) signIn(ctx context.Context, email, password string) error {
	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return err
	}
	if strings.TrimSpace(password) == "" {
		return apperrors.New(apperrors.CodeInvalidCredentials, "invalid email or password")
	}

	state, err := c.state.BeginSignIn()
	if err != nil {
		return err
	}
	c.setState(state)

	sess, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		c.abort()
		c.emit(ctx, telemetry.Event{
			Kind:     "session.sign_in_failed",
			Severity: telemetry.SeverityError,
			Detail:   string(apperrors.CodeOf(err)),
		})
		return err
	}

	uid := sess.Identity.UID
	flags, err := c.mirror.GetFlags(ctx, uid)
	if err != nil {
		c.logger.Printf("sign-in mirror flags: %v", err)
		flags = mirror.DefaultFlags()
	}

	state, err = c.state.CompleteSignIn(sess.Identity, flags.Role, flags.OnboardingComplete)
	if err != nil {
		return err
	}
	// Cached profile first for immediate state; the remote load below
	// overrides it.
	if cached, cacheErr := c.mirror.GetCachedProfile(ctx, uid); cacheErr == nil {
		if applied, applyErr := state.ApplyProfile(cached); applyErr == nil {
			state = applied
		}
	}
	c.setState(state)

	c.loadProfile(ctx, uid, nil)

	c.emit(ctx, telemetry.Event{Kind: "session.signed_in", UserID: uid})
	return nil
}

func (c *Coordinator) signOut(ctx context.Context) error {
	switch c.state.Phase {
	case session.PhaseSignedOut:
		return nil
	case session.PhaseSigningUp, session.PhaseSigningIn:
		c.abort()
		return nil
	}

	state, err := c.state.BeginSignOut()
	if err != nil {
		return err
	}
	c.setState(state)
	uid := state.UID()

	persistCtx := context.WithoutCancel(ctx)
	if err := c.mirror.ClearIdentity(persistCtx, uid); err != nil {
		c.logger.Printf("sign-out mirror clear: %v", err)
	}
	c.runCleaners(persistCtx, uid)
	if err := c.provider.SignOut(ctx); err != nil {
		// Local teardown still completes; the provider reconciles by push.
		c.logger.Printf("provider sign-out: %v", err)
	}

	// Published synchronously, ahead of the provider's own push event.
	c.setState(c.state.CompleteSignOut())
	c.emit(ctx, telemetry.Event{Kind: "session.signed_out", UserID: uid})
	return nil
}

func (c *Coordinator) deleteAccount(ctx context.Context) error {
	if !c.state.SignedIn() {
		return apperrors.New(apperrors.CodeSessionNotSignedIn, "no active session")
	}
	uid := c.state.UID()
	persistCtx := context.WithoutCancel(ctx)

	c.runCleaners(persistCtx, uid)
	if err := c.profiles.DeleteProfile(ctx, uid); err != nil {
		c.logger.Printf("delete remote profile: %v", err)
		c.emit(ctx, telemetry.Event{
			Kind:     "session.delete_profile_failed",
			Severity: telemetry.SeverityWarn,
			UserID:   uid,
			Detail:   string(apperrors.CodeOf(err)),
		})
	}

	if err := c.provider.DeleteAccount(ctx); err != nil {
		c.emit(ctx, telemetry.Event{
			Kind:     "session.delete_account_failed",
			Severity: telemetry.SeverityError,
			UserID:   uid,
			Detail:   string(apperrors.CodeOf(err)),
		})
		return err
	}

	if err := c.mirror.ClearIdentity(persistCtx, uid); err != nil {
		c.logger.Printf("delete mirror clear: %v", err)
	}
	c.setState(session.SignedOut())
	c.emit(ctx, telemetry.Event{Kind: "session.deleted", Severity: telemetry.SeverityWarn, UserID: uid})
	return nil
}

func (c *Coordinator) finishOnboarding(ctx context.Context, markDone bool) error {
	state, err := c.state.CompleteOnboarding(markDone)
	if err != nil {
		return err
	}
	c.setState(state)

	flags := mirror.Flags{Role: state.Role, OnboardingComplete: state.OnboardingComplete}
	if err := c.mirror.PutFlags(context.WithoutCancel(ctx), state.UID(), flags); err != nil {
		c.logger.Printf("onboarding mirror flags: %v", err)
	}
	c.emit(ctx, telemetry.Event{Kind: "session.onboarding", UserID: state.UID()})
	return nil
}

// abort unwinds an in-flight signup or sign-in to the ground state.
func (c *Coordinator) abort() {
	if state, err := c.state.Abort(); err == nil {
		c.setState(state)
	}
}

func (c *Coordinator) runCleaners(ctx context.Context, uid string) {
	for _, cleaner := range c.cleaners {
		if err := cleaner.ClearSessionScope(ctx, uid); err != nil {
			c.logger.Printf("session scope cleaner: %v", err)
		}
	}
}

// signupFallback builds the synthesized profile for the current state when
// it is a fresh signup, nil otherwise.
func (c *Coordinator) signupFallback() *account.Profile {
	if !c.state.IsNewSignup || c.state.Profile == nil {
		return nil
	}
	profile := *c.state.Profile
	return &profile
}

// loadProfile fetches the remote profile with exponential backoff. Only
// absence is retried; the delay doubles each attempt and the attempt count
// is bounded. Cancellation (caller context or a concurrent sign-out) stops
// the loop with no further remote writes and no surfaced error. On
// exhaustion the signup path synthesizes the profile with create-if-absent
// semantics; the sign-in path keeps whatever the state already holds.
func (c *Coordinator) loadProfile(ctx context.Context, uid string, fallback *account.Profile) {
	loadCtx, done := c.beginLoad(ctx)
	c.setState(c.state.WithLoading(true))
	defer func() {
		done()
		c.setState(c.state.WithLoading(false))
	}()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBase
	policy.RandomizationFactor = 0
	policy.Multiplier = 2

	profile, err := backoff.Retry(loadCtx, func() (account.Profile, error) {
		p, getErr := c.profiles.GetProfile(loadCtx, uid)
		if getErr == nil {
			return p, nil
		}
		if errors.Is(getErr, profilestore.ErrNotFound) {
			return account.Profile{}, getErr
		}
		return account.Profile{}, backoff.Permanent(getErr)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.retryAttempts)))

	if err == nil {
		c.applyLoadedProfile(loadCtx, profile)
		return
	}
	if loadCtx.Err() != nil {
		return
	}

	if fallback != nil {
		c.synthesizeProfile(loadCtx, *fallback)
		return
	}

	c.logger.Printf("profile load failed for %s: %v", uid, err)
	c.emit(ctx, telemetry.Event{
		Kind:     "session.profile_unavailable",
		Severity: telemetry.SeverityWarn,
		UserID:   uid,
		Detail:   string(apperrors.CodeOf(err)),
	})
}

// synthesizeProfile writes the fallback profile with create-if-absent
// semantics so a late-landing first write is never clobbered, then adopts
// whichever document won.
func (c *Coordinator) synthesizeProfile(ctx context.Context, fallback account.Profile) {
	err := c.profiles.CreateProfile(ctx, fallback)
	switch {
	case err == nil:
		c.applyLoadedProfile(ctx, fallback)
	case errors.Is(err, profilestore.ErrAlreadyExists):
		// The original write landed after all. Prefer it.
		if remote, getErr := c.profiles.GetProfile(ctx, fallback.UserID); getErr == nil {
			c.applyLoadedProfile(ctx, remote)
			return
		}
		c.applyLoadedProfile(ctx, fallback)
	default:
		c.logger.Printf("synthesize profile: %v", err)
		if applied, applyErr := c.state.ApplyProfile(fallback); applyErr == nil {
			c.setState(applied)
		}
	}
}

func (c *Coordinator) applyLoadedProfile(ctx context.Context, profile account.Profile) {
	applied, err := c.state.ApplyProfile(profile)
	if err != nil {
		// The session moved on (signed out mid-load). Drop the result.
		return
	}
	c.setState(applied)
	c.persistProfile(ctx, *applied.Profile)
	if applied.IsNewSignup && applied.Profile.Role != profile.Role {
		c.reconcileRemoteRole(ctx, applied.Profile.UserID, applied.Profile.Role)
	}
}

// reconcileRemoteRole pushes the signup-chosen role back to the remote
// document after it won over a stale remote read. Best effort; a later
// sign-in re-reads the remote either way.
func (c *Coordinator) reconcileRemoteRole(ctx context.Context, uid string, role account.Role) {
	update := profilestore.ProfileUpdate{Role: &role}
	if err := c.profiles.UpdateProfile(context.WithoutCancel(ctx), uid, update); err != nil {
		c.logger.Printf("reconcile remote role for %s: %v", uid, err)
	}
}

func (c *Coordinator) beginLoad(ctx context.Context) (context.Context, func()) {
	loadCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.loadCancel = cancel
	c.mu.Unlock()
	return loadCtx, func() {
		cancel()
		c.mu.Lock()
		c.loadCancel = nil
		c.mu.Unlock()
	}
}

// cancelLoads aborts any in-flight profile load so queued teardown commands
// are not stuck behind a retry schedule.
func (c *Coordinator) cancelLoads() {
	c.mu.Lock()
	cancel := c.loadCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
