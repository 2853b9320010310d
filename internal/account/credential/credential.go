// Package credential defines the contract for external credential providers.
package credential

import (
	"context"
	"sync"

	"github.com/dugoutlabs/dugout/internal/account"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

// ErrNoCurrentIdentity indicates no account is signed in with this provider.
var ErrNoCurrentIdentity = apperrors.New(apperrors.CodeSessionNotSignedIn, "no current identity")

// Session is an authenticated credential: the identity plus its token pair.
type Session struct {
	Identity account.Identity
	Token    account.TokenInfo
}

// StateChange is a push notification from the provider. Identity is nil when
// the provider transitioned to signed-out. Seq increases monotonically per
// provider so consumers can drop stale deliveries.
type StateChange struct {
	Seq      uint64
	Identity *account.Identity
}

// Provider issues and validates identities. Implementations map their native
// failures onto the platform error taxonomy before returning.
type Provider interface {
	// CreateAccount registers a new email/password credential and returns the
	// authenticated session for it.
	CreateAccount(ctx context.Context, email, password string) (Session, error)

	// Authenticate signs in an existing credential.
	Authenticate(ctx context.Context, email, password string) (Session, error)

	// CurrentSession returns the provider's persisted session, refreshed if
	// necessary, or ErrNoCurrentIdentity.
	CurrentSession(ctx context.Context) (Session, error)

	// RefreshToken obtains a fresh token pair. When force is false a still
	// valid token may be returned unchanged.
	RefreshToken(ctx context.Context, force bool) (account.TokenInfo, error)

	// SendPasswordReset emails a password-reset link.
	SendPasswordReset(ctx context.Context, email string) error

	// SignOut discards the provider's current session.
	SignOut(ctx context.Context) error

	// DeleteAccount permanently deletes the current credential.
	DeleteAccount(ctx context.Context) error

	// Subscribe registers a channel for auth state push events. The provider
	// must never block on a slow subscriber.
	Subscribe(ch chan<- StateChange) (unsubscribe func())
}

// Notifier is the reusable push-event fanout embedded by provider
// implementations.
type Notifier struct {
	mu   sync.Mutex
	seq  uint64
	subs map[chan<- StateChange]struct{}
}

// Subscribe registers a channel for push events.
func (n *Notifier) Subscribe(ch chan<- StateChange) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = map[chan<- StateChange]struct{}{}
	}
	n.subs[ch] = struct{}{}
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, ch)
	}
}

// Notify fans a state change out to all subscribers without blocking: a
// subscriber whose channel is full misses the event and is expected to
// reconcile from CurrentSession.
func (n *Notifier) Notify(identity *account.Identity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	change := StateChange{Seq: n.seq, Identity: identity}
	for ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
