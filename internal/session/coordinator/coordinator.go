// Package coordinator reconciles the credential provider, the remote profile
// store, and the local mirror into one published session state.
//
// A single goroutine owns the state. Operations and provider push events are
// commands on one mailbox channel, so a push-driven update can never
// interleave with a call-driven one.
package coordinator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/account/credential"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
	"github.com/dugoutlabs/dugout/internal/mirror"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
	"github.com/dugoutlabs/dugout/internal/session"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

const (
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryAttempts = 5

	tracerName = "dugout/session"
)

// ErrClosed reports an operation on a closed coordinator.
var ErrClosed = errors.New("coordinator: closed")

// ScopeCleaner clears per-identity caches owned by other subsystems when a
// session ends. Cleaner failures are logged and never block teardown.
type ScopeCleaner interface {
	ClearSessionScope(ctx context.Context, userID string) error
}

// Config wires the coordinator's collaborators.
type Config struct {
	Provider credential.Provider
	Profiles profilestore.Store
	Mirror   mirror.Store
	// Telemetry is optional; a nil emitter drops events.
	Telemetry *telemetry.Emitter
	// Logger defaults to the standard logger.
	Logger *log.Logger
	// Clock is injectable for tests.
	Clock func() time.Time
	// RetryBase is the first profile-load retry delay; it doubles each
	// attempt.
	RetryBase time.Duration
	// RetryAttempts bounds profile-load attempts.
	RetryAttempts int
	// Cleaners run on sign-out and account deletion.
	Cleaners []ScopeCleaner
}

// Coordinator owns the session state machine.
type Coordinator struct {
	provider credential.Provider
	profiles profilestore.Store
	mirror   mirror.Store
	emitter  *telemetry.Emitter
	logger   *log.Logger
	clock    func() time.Time
	tracer   trace.Tracer
	cleaners []ScopeCleaner

	retryBase     time.Duration
	retryAttempts int

	// state is owned by the run loop goroutine.
	state   session.State
	lastSeq uint64

	mailbox chan func()
	pushCh  chan credential.StateChange
	unsub   func()

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	current    session.State
	subs       map[chan session.State]struct{}
	loadCancel context.CancelFunc
	closed     bool

	wg sync.WaitGroup
}

// New builds the coordinator, restores any persisted identity for immediate
// offline state, and starts the run loop.
func New(ctx context.Context, cfg Config) (*Coordinator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("credential provider is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if cfg.Mirror == nil {
		return nil, errors.New("mirror store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Coordinator{
		provider:      cfg.Provider,
		profiles:      cfg.Profiles,
		mirror:        cfg.Mirror,
		emitter:       cfg.Telemetry,
		logger:        logger,
		clock:         clock,
		tracer:        otel.Tracer(tracerName),
		cleaners:      cfg.Cleaners,
		retryBase:     retryBase,
		retryAttempts: retryAttempts,
		state:         session.SignedOut(),
		mailbox:       make(chan func(), 16),
		pushCh:        make(chan credential.StateChange, 16),
		baseCtx:       baseCtx,
		cancel:        cancel,
		subs:          map[chan session.State]struct{}{},
	}

	c.restore(ctx)
	c.current = c.state

	c.unsub = c.provider.Subscribe(c.pushCh)
	c.wg.Add(1)
	go c.run()
	return c, nil
}

// restore rebuilds offline state from the provider's persisted session and
// the mirror. It runs before the loop starts, so no locking is needed.
func (c *Coordinator) restore(ctx context.Context) {
	sess, err := c.provider.CurrentSession(ctx)
	if err != nil {
		if !errors.Is(err, credential.ErrNoCurrentIdentity) {
			c.logger.Printf("session restore: %v", err)
		}
		return
	}

	flags, err := c.mirror.GetFlags(ctx, sess.Identity.UID)
	if err != nil {
		c.logger.Printf("session restore flags: %v", err)
		flags = mirror.DefaultFlags()
	}
	state, err := session.SignedOut().BeginSignIn()
	if err != nil {
		return
	}
	state, err = state.CompleteSignIn(sess.Identity, flags.Role, flags.OnboardingComplete)
	if err != nil {
		return
	}
	if cached, err := c.mirror.GetCachedProfile(ctx, sess.Identity.UID); err == nil {
		if applied, err := state.ApplyProfile(cached); err == nil {
			state = applied
		}
	} else if !errors.Is(err, mirror.ErrNotCached) {
		c.logger.Printf("session restore profile: %v", err)
	}
	c.state = state
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.baseCtx.Done():
			return
		case cmd := <-c.mailbox:
			cmd()
		case evt := <-c.pushCh:
			c.handlePush(evt)
		}
	}
}

// dispatch runs fn on the loop goroutine and waits for its result. fn must
// honor ctx so a canceled caller unblocks promptly.
func (c *Coordinator) dispatch(ctx context.Context, op string, fn func(context.Context) error) error {
	reply := make(chan error, 1)
	cmd := func() {
		opCtx, span := c.tracer.Start(ctx, op)
		err := fn(opCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		reply <- err
	}

	select {
	case c.mailbox <- cmd:
	case <-c.baseCtx.Done():
		return ErrClosed
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CodeOperationCanceled, "operation canceled", ctx.Err())
	}
	select {
	case err := <-reply:
		return err
	case <-c.baseCtx.Done():
		return ErrClosed
	}
}

// setState publishes a new snapshot. Loop goroutine only.
func (c *Coordinator) setState(next session.State) {
	c.state = next

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = next
	for ch := range c.subs {
		// Latest wins: drop the stale snapshot rather than block the loop.
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

// Current returns the latest published snapshot.
func (c *Coordinator) Current() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe returns a channel of state snapshots. Delivery is latest-wins;
// consumers that fall behind see the newest state, not every intermediate
// one. The returned function unsubscribes.
func (c *Coordinator) Subscribe() (<-chan session.State, func()) {
	ch := make(chan session.State, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.current
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, ch)
	}
}

// Close stops the run loop and detaches from the provider. In-flight
// operations receive ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.unsub != nil {
		c.unsub()
	}
	c.cancelLoads()
	c.cancel()
	c.wg.Wait()
}

// handlePush applies a provider push event. Loop goroutine only.
func (c *Coordinator) handlePush(evt credential.StateChange) {
	if evt.Seq <= c.lastSeq {
		return
	}
	c.lastSeq = evt.Seq

	switch {
	case evt.Identity == nil:
		if c.state.Phase == session.PhaseSignedOut {
			return
		}
		// External revocation or a sign-out we already published. Mirror
		// rows survive so a re-sign-in starts from cached state.
		uid := c.state.UID()
		c.setState(session.SignedOut())
		c.emit(c.baseCtx, telemetry.Event{
			Kind:     "session.push_signed_out",
			Severity: telemetry.SeverityWarn,
			UserID:   uid,
		})

	case c.state.SignedIn() && c.state.UID() == evt.Identity.UID:
		// Token refresh for the current identity.
		next := c.state
		identity := *evt.Identity
		next.Identity = &identity
		c.setState(next)

	case c.state.Phase == session.PhaseSignedOut:
		c.adoptIdentity(*evt.Identity)
	}
}

// adoptIdentity reconciles a provider-pushed identity the coordinator did
// not sign in itself (startup, or another surface authenticating the shared
// provider).
func (c *Coordinator) adoptIdentity(identity account.Identity) {
	ctx := c.baseCtx
	flags, err := c.mirror.GetFlags(ctx, identity.UID)
	if err != nil {
		c.logger.Printf("adopt identity flags: %v", err)
		flags = mirror.DefaultFlags()
	}
	state, err := session.SignedOut().BeginSignIn()
	if err != nil {
		return
	}
	state, err = state.CompleteSignIn(identity, flags.Role, flags.OnboardingComplete)
	if err != nil {
		return
	}
	if cached, err := c.mirror.GetCachedProfile(ctx, identity.UID); err == nil {
		if applied, err := state.ApplyProfile(cached); err == nil {
			state = applied
		}
	}
	c.setState(state)

	// One remote refresh, best effort. Absence here is not retried; the
	// surface that signed in owns the full load.
	if profile, err := c.profiles.GetProfile(ctx, identity.UID); err == nil {
		if applied, err := c.state.ApplyProfile(profile); err == nil {
			c.setState(applied)
			c.persistProfile(ctx, profile)
		}
	}
	c.emit(ctx, telemetry.Event{Kind: "session.adopted", UserID: identity.UID})
}

// persistProfile mirrors a remote profile and its role flag locally. Uses a
// non-cancelable context so teardown races cannot drop the write.
func (c *Coordinator) persistProfile(ctx context.Context, profile account.Profile) {
	persistCtx := context.WithoutCancel(ctx)
	if err := c.mirror.PutCachedProfile(persistCtx, profile); err != nil {
		c.logger.Printf("mirror profile: %v", err)
	}
	flags := mirror.Flags{Role: profile.Role, OnboardingComplete: c.state.OnboardingComplete}
	if err := c.mirror.PutFlags(persistCtx, profile.UserID, flags); err != nil {
		c.logger.Printf("mirror flags: %v", err)
	}
}

func (c *Coordinator) emit(ctx context.Context, evt telemetry.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = c.clock().UTC()
	}
	if err := c.emitter.Emit(context.WithoutCancel(ctx), evt); err != nil {
		c.logger.Printf("telemetry emit: %v", err)
	}
}
