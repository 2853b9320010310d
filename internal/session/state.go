// Package session holds the published session state and the pure transition
// rules between its phases. The coordinator owns a single State value and
// every mutation flows through one of the transition helpers here, so the
// legality of a phase change is decided in one place.
package session

import (
	"fmt"

	"github.com/dugoutlabs/dugout/internal/account"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

// Phase names the session lifecycle stage.
type Phase string

const (
	PhaseSignedOut        Phase = "SIGNED_OUT"
	PhaseSigningUp        Phase = "SIGNING_UP"
	PhaseSigningIn        Phase = "SIGNING_IN"
	PhaseSignedInNew      Phase = "SIGNED_IN_NEW"
	PhaseSignedInExisting Phase = "SIGNED_IN_EXISTING"
	PhaseSigningOut       Phase = "SIGNING_OUT"
)

// State is an immutable snapshot of the session. Transition helpers return
// new values; callers never mutate a published State.
type State struct {
	Phase               Phase
	Identity            *account.Identity
	Role                account.Role
	IsNewSignup         bool
	OnboardingComplete  bool
	Profile             *account.Profile
	PendingCoachInvites int
	// Loading reports an in-flight profile fetch. It is cleared on every
	// exit path, including cancellation.
	Loading bool
}

// SignedOut returns the ground state: default role, no identity, no profile.
func SignedOut() State {
	return State{Phase: PhaseSignedOut, Role: account.DefaultRole}
}

// SignedIn reports whether the state carries an authenticated identity.
func (s State) SignedIn() bool {
	return s.Phase == PhaseSignedInNew || s.Phase == PhaseSignedInExisting
}

// UID returns the identity's UID or the empty string when signed out.
func (s State) UID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}

func invalidTransition(from Phase, op string) error {
	return apperrors.WithMetadata(apperrors.CodeSessionInvalidTransition,
		fmt.Sprintf("cannot %s from %s", op, from),
		map[string]string{"Phase": string(from), "Operation": op})
}

// BeginSignUp enters the signup phase with the chosen role asserted locally
// before any network round trip.
func (s State) BeginSignUp(role account.Role) (State, error) {
	if s.Phase != PhaseSignedOut {
		return s, invalidTransition(s.Phase, "sign up")
	}
	if !role.Valid() {
		role = account.DefaultRole
	}
	next := SignedOut()
	next.Phase = PhaseSigningUp
	next.Role = role
	next.IsNewSignup = true
	return next, nil
}

// BeginSignIn enters the sign-in phase. IsNewSignup is cleared synchronously
// so a signup abandoned mid-flight never leaks into a later sign-in.
func (s State) BeginSignIn() (State, error) {
	if s.Phase != PhaseSignedOut {
		return s, invalidTransition(s.Phase, "sign in")
	}
	next := SignedOut()
	next.Phase = PhaseSigningIn
	return next, nil
}

// CompleteSignUp lands the new identity. The role chosen at BeginSignUp is
// preserved.
func (s State) CompleteSignUp(identity account.Identity) (State, error) {
	if s.Phase != PhaseSigningUp {
		return s, invalidTransition(s.Phase, "complete sign up")
	}
	next := s
	next.Phase = PhaseSignedInNew
	next.Identity = &identity
	return next, nil
}

// CompleteSignIn lands an existing identity with its mirrored flags.
func (s State) CompleteSignIn(identity account.Identity, role account.Role, onboardingComplete bool) (State, error) {
	if s.Phase != PhaseSigningIn {
		return s, invalidTransition(s.Phase, "complete sign in")
	}
	if !role.Valid() {
		role = account.DefaultRole
	}
	next := s
	next.Phase = PhaseSignedInExisting
	next.Identity = &identity
	next.Role = role
	next.OnboardingComplete = onboardingComplete
	return next, nil
}

// Abort unwinds a failed signup or sign-in back to the ground state.
func (s State) Abort() (State, error) {
	if s.Phase != PhaseSigningUp && s.Phase != PhaseSigningIn {
		return s, invalidTransition(s.Phase, "abort")
	}
	return SignedOut(), nil
}

// BeginSignOut enters the teardown phase.
func (s State) BeginSignOut() (State, error) {
	if !s.SignedIn() {
		return s, invalidTransition(s.Phase, "sign out")
	}
	next := s
	next.Phase = PhaseSigningOut
	return next, nil
}

// CompleteSignOut lands the ground state.
func (s State) CompleteSignOut() State {
	return SignedOut()
}

// ApplyProfile attaches a loaded remote profile. While IsNewSignup the role
// chosen at signup wins over any remote value, so a stale read cannot
// regress the role the user just picked.
func (s State) ApplyProfile(profile account.Profile) (State, error) {
	if !s.SignedIn() {
		return s, invalidTransition(s.Phase, "apply profile")
	}
	next := s
	p := profile
	if s.IsNewSignup {
		p.Role = s.Role
	} else {
		next.Role = p.Role
	}
	next.Profile = &p
	return next, nil
}

// WithLoading toggles the in-flight profile fetch indicator.
func (s State) WithLoading(loading bool) State {
	next := s
	next.Loading = loading
	return next
}

// WithCoachInvites caches the read-only pending invite count.
func (s State) WithCoachInvites(count int) State {
	next := s
	if count < 0 {
		count = 0
	}
	next.PendingCoachInvites = count
	return next
}

// CompleteOnboarding moves a fresh signup into the established phase and
// marks onboarding done. Skipping uses the same transition without the flag.
func (s State) CompleteOnboarding(markDone bool) (State, error) {
	if s.Phase != PhaseSignedInNew {
		return s, invalidTransition(s.Phase, "complete onboarding")
	}
	next := s
	next.Phase = PhaseSignedInExisting
	next.IsNewSignup = false
	if markDone {
		next.OnboardingComplete = true
	}
	return next, nil
}
