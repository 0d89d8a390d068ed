package mailfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"

	"github.com/rbaliyan/mailfinder/store"
	"github.com/rbaliyan/mailfinder/syncer"
)

// Connection states for the finder.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// Finder resolves the mailbox of a given type for an account: it consults
// the local store first and falls back to a syncer-triggered refresh when
// the mailbox is not yet present locally.
//
// A Finder owns at most one in-flight resolution at a time. Starting a new
// resolution cancels any previous one; Cancel suppresses the terminal
// callback, including for a refresh that completes after cancellation.
// Start and Cancel are safe to call from one goroutine while lookups run on
// another; terminal callbacks arrive on the finder's background goroutine.
type Finder struct {
	store  store.Store
	syncer syncer.Syncer
	logger *slog.Logger
	opts   *options
	otel   *otelInstrumentation
	state  int32

	eventBus *event.Bus
	events   *FinderEvents

	mu       sync.Mutex
	task     *task
	listener syncer.Listener // last listener handed to the syncer
}

// task is one in-flight resolution.
type task struct {
	accountID   int64
	mailboxType store.MailboxType
	cb          Callback
	started     time.Time
	synced      bool // a refresh was triggered before the terminal decision

	ctx    context.Context
	cancel context.CancelFunc
	syncc  chan syncer.Result

	mu        sync.Mutex
	cancelled bool
	delivered bool
}

// markCancelled flags the task and cancels its context. Idempotent.
func (t *task) markCancelled() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

// isCancelled reports whether the task was abandoned, either through Cancel
// or through the context Start was given.
func (t *task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled || t.ctx.Err() != nil
}

// claimDelivery reserves the single terminal callback. It returns false when
// the task was cancelled or a callback was already delivered, in which case
// the caller must stay silent.
func (t *task) claimDelivery() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.ctx.Err() != nil || t.delivered {
		return false
	}
	t.delivered = true
	return true
}

// New creates a new Finder. Call Connect() before Start.
func New(opts ...Option) (*Finder, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}
	if o.syncer == nil {
		return nil, ErrSyncerRequired
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &Finder{
		store:  o.store,
		syncer: o.syncer,
		logger: o.logger,
		opts:   o,
		otel:   otelInstr,
	}, nil
}

// IsConnected returns true if the finder is connected and ready.
func (f *Finder) IsConnected() bool {
	return atomic.LoadInt32(&f.state) == stateConnected
}

// Connect establishes the store connection and initializes the event bus.
func (f *Finder) Connect(ctx context.Context) error {
	// Three states keep Start from observing partial initialization.
	if !atomic.CompareAndSwapInt32(&f.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&f.state, stateConnected)
		} else {
			atomic.StoreInt32(&f.state, stateDisconnected)
		}
	}()

	if err := f.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := f.initEventBus(ctx); err != nil {
		f.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	success = true
	f.logger.Info("mailfinder connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the per-finder event bus and registers events.
func (f *Finder) initEventBus(ctx context.Context) error {
	serviceName := f.opts.serviceName
	if serviceName == "" {
		serviceName = "mailfinder"
	}
	// Each bus needs a unique name, so append a counter suffix.
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case f.opts.eventTransport != nil:
		f.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(f.opts.eventTransport))
	case f.opts.redisClient != nil:
		f.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(f.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		f.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	f.eventBus = bus

	f.events = newFinderEvents(busName)
	if err := registerFinderEvents(ctx, bus, f.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register finder events: %w", err)
	}

	return nil
}

// Events returns per-finder event instances for subscribing and publishing.
func (f *Finder) Events() *FinderEvents {
	return f.events
}

// Close cancels any in-flight resolution and closes connections.
func (f *Finder) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&f.state, stateConnected, stateDisconnected) {
		return nil
	}

	f.Cancel()

	var errs []error

	// Close the event bus only when using a real transport; a noop bus
	// holds no resources.
	if f.eventBus != nil && (f.opts.eventTransport != nil || f.opts.redisClient != nil) {
		if err := f.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := f.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Start begins resolving the mailbox of the given type for the account and
// returns immediately; the outcome arrives through cb. Any resolution still
// in flight on this finder is cancelled first. Cancelling ctx is equivalent
// to calling Cancel.
func (f *Finder) Start(ctx context.Context, accountID int64, typ store.MailboxType, cb Callback) error {
	if atomic.LoadInt32(&f.state) != stateConnected {
		return ErrNotConnected
	}
	if cb == nil {
		return ErrCallbackRequired
	}
	if accountID <= 0 {
		return ErrInvalidAccountID
	}
	if !typ.Valid() {
		return ErrInvalidMailboxType
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		accountID:   accountID,
		mailboxType: typ,
		cb:          cb,
		started:     time.Now(),
		ctx:         tctx,
		cancel:      cancel,
		syncc:       make(chan syncer.Result, 1),
	}

	f.mu.Lock()
	if prev := f.task; prev != nil {
		prev.markCancelled()
	}
	f.task = t
	f.mu.Unlock()

	f.logger.Debug("resolution started", "account_id", accountID, "type", typ.String())
	go f.run(t)
	return nil
}

// Cancel abandons the in-flight resolution, if any. No callback fires
// afterward, even if a previously triggered refresh later completes.
// Idempotent.
func (f *Finder) Cancel() {
	f.mu.Lock()
	t := f.task
	f.task = nil
	f.mu.Unlock()

	if t != nil {
		t.markCancelled()
		f.logger.Debug("resolution cancelled",
			"account_id", t.accountID, "type", t.mailboxType.String())
	}
}

// SyncListenerForTest returns the listener the finder registered with the
// syncer for the current resolution, or nil when no refresh was triggered.
// It exists so a test harness can simulate sync completion deterministically;
// it is not part of the steady-state contract.
func (f *Finder) SyncListenerForTest() syncer.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

// run drives one resolution to its terminal outcome.
func (f *Finder) run(t *task) {
	ctx, endSpan := f.otel.startResolveSpan(t.ctx, t.accountID, t.mailboxType)

	res, ok := f.resolve(ctx, t)
	if !ok {
		endSpan("cancelled")
		f.clearTask(t)
		return
	}

	f.finish(t, res)
	endSpan(res.Outcome.String())
}

// resolve walks the state machine: account lookup, mailbox lookup, then a
// single refresh-and-recheck cycle. It returns ok=false when the task was
// cancelled, in which case nothing may be delivered.
func (f *Finder) resolve(ctx context.Context, t *task) (Result, bool) {
	lookupStart := time.Now()
	acct, err := f.store.GetAccount(ctx, t.accountID)
	f.otel.recordLookup(ctx, time.Since(lookupStart), "account")
	if t.isCancelled() {
		return Result{}, false
	}
	if err != nil {
		if !store.IsNotFound(err) {
			f.logger.Warn("account lookup failed",
				"account_id", t.accountID, "error", err)
		}
		return Result{Outcome: OutcomeAccountNotFound, AccountID: t.accountID}, true
	}
	if acct.SecurityHold {
		return Result{Outcome: OutcomeAccountSecurityHold, AccountID: t.accountID}, true
	}

	if mb, err := f.lookupMailbox(ctx, t); err == nil {
		return Result{Outcome: OutcomeMailboxFound, AccountID: t.accountID, MailboxID: mb.ID}, true
	} else if t.isCancelled() {
		return Result{}, false
	}

	// The mailbox is not present locally: trigger a refresh and suspend
	// until the syncer reports completion. There is no internal timeout;
	// Cancel is the only way to abandon a stalled refresh.
	listener := f.newSyncListener(t)
	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()

	t.synced = true
	f.otel.recordSyncTrigger(ctx)
	f.logger.Debug("mailbox absent, refreshing list",
		"account_id", t.accountID, "type", t.mailboxType.String())
	f.syncer.RefreshMailboxList(t.accountID, listener)

	select {
	case <-t.ctx.Done():
		return Result{}, false
	case sr := <-t.syncc:
		if t.isCancelled() {
			return Result{}, false
		}
		if sr.Err != nil {
			// A failed refresh reports the same outcome as a true miss;
			// callers handle one negative case.
			f.logger.Warn("mailbox list refresh failed",
				"account_id", t.accountID, "token", sr.Token, "error", sr.Err)
			return Result{Outcome: OutcomeMailboxNotFound, AccountID: t.accountID}, true
		}

		mb, err := f.lookupMailbox(ctx, t)
		if t.isCancelled() {
			return Result{}, false
		}
		if err == nil {
			return Result{Outcome: OutcomeMailboxFound, AccountID: t.accountID, MailboxID: mb.ID}, true
		}
		return Result{Outcome: OutcomeMailboxNotFound, AccountID: t.accountID}, true
	}
}

// lookupMailbox performs the exact-match (account, type) store read.
// Store failures are logged and treated as absence.
func (f *Finder) lookupMailbox(ctx context.Context, t *task) (*store.Mailbox, error) {
	start := time.Now()
	mb, err := f.store.GetMailbox(ctx, t.accountID, t.mailboxType)
	f.otel.recordLookup(ctx, time.Since(start), "mailbox")
	if err != nil {
		if !store.IsNotFound(err) {
			f.logger.Warn("mailbox lookup failed",
				"account_id", t.accountID, "type", t.mailboxType.String(), "error", err)
		}
		return nil, err
	}
	return mb, nil
}

// newSyncListener bridges the syncer's completion back into the task.
// Completions for other accounts are ignored; at most one completion is
// forwarded.
func (f *Finder) newSyncListener(t *task) syncer.Listener {
	return func(res syncer.Result) {
		if res.AccountID != t.accountID {
			return
		}
		if t.isCancelled() {
			return
		}
		select {
		case t.syncc <- res:
		default:
			// A completion was already forwarded for this task.
		}
	}
}

// finish delivers the terminal outcome exactly once and records telemetry.
func (f *Finder) finish(t *task, res Result) {
	f.clearTask(t)

	if !t.claimDelivery() {
		return
	}

	res.deliver(t.cb)
	f.otel.recordResolve(context.Background(), time.Since(t.started), res.Outcome)
	f.publishOutcome(t, res)
	f.logger.Debug("resolution finished",
		"account_id", t.accountID,
		"type", t.mailboxType.String(),
		"outcome", res.Outcome.String())
}

// clearTask drops the finder's reference to t if it is still current.
func (f *Finder) clearTask(t *task) {
	f.mu.Lock()
	if f.task == t {
		f.task = nil
	}
	f.mu.Unlock()
}

// publishOutcome emits the matching resolution event. Publish failures are
// logged, never fatal to a resolution.
func (f *Finder) publishOutcome(t *task, res Result) {
	if f.events == nil {
		return
	}

	ctx := context.Background()
	var err error
	switch res.Outcome {
	case OutcomeMailboxFound:
		err = f.events.MailboxResolved.Publish(ctx, MailboxResolvedEvent{
			AccountID:  res.AccountID,
			MailboxID:  res.MailboxID,
			Type:       t.mailboxType.String(),
			ResolvedAt: time.Now().UTC(),
		})
	case OutcomeMailboxNotFound:
		err = f.events.MailboxMissed.Publish(ctx, MailboxMissedEvent{
			AccountID: res.AccountID,
			Type:      t.mailboxType.String(),
			Synced:    t.synced,
			MissedAt:  time.Now().UTC(),
		})
	default:
		return
	}
	if err != nil {
		f.logger.Error("failed to publish event",
			"outcome", res.Outcome.String(), "error", err)
	}
}
