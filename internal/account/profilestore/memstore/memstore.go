// Package memstore provides an in-memory profile store for tests and
// offline use.
package memstore

import (
	"context"
	"sync"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
)

// Store is an in-memory profilestore.Store with injectable failures.
type Store struct {
	mu       sync.Mutex
	profiles map[string]account.Profile
	invites  map[string]int

	getAttempts int

	// NotFoundUntilAttempt makes GetProfile return ErrNotFound for the first
	// n-1 attempts, simulating remote propagation delay.
	NotFoundUntilAttempt int

	// Err fields inject a fixed error for the matching operation.
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
	InviteErr error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		profiles: map[string]account.Profile{},
		invites:  map[string]int{},
	}
}

// Seed inserts a profile without create semantics.
func (s *Store) Seed(profile account.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

// SeedInvites sets the pending coach invite count for an email.
func (s *Store) SeedInvites(email string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[account.NormalizeEmail(email)] = count
}

// GetAttempts reports how many GetProfile calls were made.
func (s *Store) GetAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAttempts
}

// GetProfile implements profilestore.Store.
func (s *Store) GetProfile(_ context.Context, userID string) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getAttempts++
	if s.GetErr != nil {
		return account.Profile{}, s.GetErr
	}
	if s.NotFoundUntilAttempt > 0 && s.getAttempts < s.NotFoundUntilAttempt {
		return account.Profile{}, profilestore.ErrNotFound
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return account.Profile{}, profilestore.ErrNotFound
	}
	return profile, nil
}

// CreateProfile implements profilestore.Store with create-if-absent
// semantics.
func (s *Store) CreateProfile(_ context.Context, profile account.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.profiles[profile.UserID]; ok {
		return profilestore.ErrAlreadyExists
	}
	s.profiles[profile.UserID] = profile
	return nil
}

// UpdateProfile implements profilestore.Store.
func (s *Store) UpdateProfile(_ context.Context, userID string, update profilestore.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return profilestore.ErrNotFound
	}
	if update.Role != nil {
		profile.Role = *update.Role
	}
	if update.DisplayName != nil {
		profile.DisplayName = *update.DisplayName
	}
	if update.Premium != nil {
		profile.Premium = *update.Premium
	}
	s.profiles[userID] = profile
	return nil
}

// DeleteProfile implements profilestore.Store; absent documents succeed.
func (s *Store) DeleteProfile(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.profiles, userID)
	return nil
}

// CountCoachInvites implements profilestore.Store.
func (s *Store) CountCoachInvites(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InviteErr != nil {
		return 0, s.InviteErr
	}
	return s.invites[account.NormalizeEmail(email)], nil
}
