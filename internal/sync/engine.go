package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/roomsync/internal/model"
)

const (
	otelScope          = "roomsync/sync"
	metricApplied      = "roomsync.ops.applied"
	metricLocalOnly    = "roomsync.ops.local_only"
	metricRejected     = "roomsync.ops.rejected"
	metricDegradations = "roomsync.mode.degradations"
	metricEvents       = "roomsync.realtime.events"

	defaultCallTimeout  = 250 * time.Millisecond
	defaultProbeTimeout = 3 * time.Second
)

// ErrClosed is returned by operations issued after [Engine.Close].
var ErrClosed = errors.New("engine closed")

// Options wires an [Engine] to its collaborators. Local is required; every
// other collaborator is optional. A nil Remote pins the engine to local mode.
type Options struct {
	Remote     RemoteGateway
	Local      LocalStore
	Subscriber Subscriber
	Invoices   InvoiceSource

	// Rooms are provisioned when neither the cache nor the remote store
	// holds any room.
	Rooms []model.Room

	RetryAttempts int
	RetryDelay    time.Duration
	CallTimeout   time.Duration
	ProbeTimeout  time.Duration

	// OpTimeout bounds the whole remote phase of one operation, across all
	// of its calls and retries. Zero derives it from the retry settings.
	OpTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// mutation is one unit of work for the queue goroutine. txn sees the current
// state and returns the action to apply, or an error to reject the change
// without touching state.
type mutation struct {
	ctx   context.Context
	txn   func(State) (Action, error)
	reply chan mutationResult
}

type mutationResult struct {
	state State
	err   error
}

// Engine owns the canonical state. All writes, whether from business
// operations or realtime events, go through a single queue goroutine; reads
// return the latest published snapshot without blocking. Create one with
// [NewEngine], call [Engine.Start] once, and [Engine.Close] on shutdown.
type Engine struct {
	remote   RemoteGateway
	local    LocalStore
	sub      Subscriber
	invoices InvoiceSource
	rooms    []model.Room

	retryAttempts int
	retryDelay    time.Duration
	callTimeout   time.Duration
	probeTimeout  time.Duration
	opTimeout     time.Duration
	now           func() time.Time
	log           *slog.Logger

	snap      atomic.Pointer[State]
	mutations chan mutation
	persistCh chan State
	stop      chan struct{}
	loopDone  chan struct{}
	saveDone  chan struct{}
	closeOnce sync.Once

	// Owned by the queue goroutine. localWrites counts room and reservation
	// changes made by operations; refreshLogs collects the realtime
	// transitions seen by each refresh in flight.
	localWrites uint64
	refreshSeq  uint64
	refreshLogs map[uint64][]func(State) Action

	ingestMu     sync.Mutex
	ingestCancel context.CancelFunc
	ingestDone   chan struct{}

	// OTel instruments, never nil (no-op when telemetry is disabled).
	tracer          trace.Tracer
	cntApplied      metric.Int64Counter
	cntLocalOnly    metric.Int64Counter
	cntRejected     metric.Int64Counter
	cntDegradations metric.Int64Counter
	cntEvents       metric.Int64Counter
}

// NewEngine creates an Engine and starts its queue and persistence
// goroutines. The engine starts in local mode with empty state until
// [Engine.Start] rehydrates and probes.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	e := &Engine{
		remote:        opts.Remote,
		local:         opts.Local,
		sub:           opts.Subscriber,
		invoices:      opts.Invoices,
		rooms:         opts.Rooms,
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		callTimeout:   opts.CallTimeout,
		probeTimeout:  opts.ProbeTimeout,
		opTimeout:     opts.OpTimeout,
		now:           opts.Now,
		log:           logger,

		mutations: make(chan mutation),
		persistCh: make(chan State, 1),
		stop:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		saveDone:  make(chan struct{}),

		refreshLogs: make(map[uint64][]func(State) Action),

		tracer:          tracer,
		cntApplied:      mustCounter(metricApplied, "Operations applied locally and remotely"),
		cntLocalOnly:    mustCounter(metricLocalOnly, "Operations applied to local state only"),
		cntRejected:     mustCounter(metricRejected, "Operations rejected before any mutation"),
		cntDegradations: mustCounter(metricDegradations, "Switches from remote to local mode"),
		cntEvents:       mustCounter(metricEvents, "Realtime change events ingested"),
	}
	if e.retryAttempts <= 0 {
		e.retryAttempts = defaultMaxAttempts
	}
	if e.retryDelay <= 0 {
		e.retryDelay = defaultRetryDelay
	}
	if e.callTimeout <= 0 {
		e.callTimeout = defaultCallTimeout
	}
	if e.probeTimeout <= 0 {
		e.probeTimeout = defaultProbeTimeout
	}
	if e.opTimeout <= 0 {
		e.opTimeout = OpBudget(e.retryAttempts, e.retryDelay, e.callTimeout)
	}
	if e.now == nil {
		e.now = time.Now
	}

	initial := NewState(ModeLocal)
	e.snap.Store(&initial)

	go e.loop()
	go e.saveLoop()
	return e
}

// Start rehydrates state from the local cache, probes the remote store to
// choose the mode, loads remote data, provisions rooms if none exist and,
// in remote mode, starts realtime ingestion. Only invalid provisioning
// input is fatal; every remote failure just selects the degraded path.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.rehydrate(ctx); err != nil {
		e.log.Warn("local cache unreadable, starting empty", "error", err)
	}

	mode := e.Probe(ctx)
	if _, err := e.apply(ctx, SetMode{Mode: mode}); err != nil {
		return fmt.Errorf("seeding mode: %w", err)
	}
	e.log.Info("sync engine mode selected", "mode", mode)

	if mode == ModeRemote {
		if res := e.RefreshData(ctx); res.Warning {
			e.log.Warn("initial refresh incomplete", "error", res.Err)
		}
	}

	if err := e.provision(ctx); err != nil {
		return fmt.Errorf("provisioning rooms: %w", err)
	}

	if e.Mode() == ModeRemote {
		e.startIngest()
	}
	return nil
}

// Close stops realtime ingestion and the queue, then flushes the last
// snapshot to the local cache. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.stopIngest()
		close(e.stop)
		<-e.loopDone
		close(e.persistCh)
		<-e.saveDone
	})
	return nil
}

// --- mutation queue ----------------------------------------------------------

func (e *Engine) loop() {
	defer close(e.loopDone)
	for {
		select {
		case <-e.stop:
			return
		case m := <-e.mutations:
			m.reply <- e.run(m)
		}
	}
}

func (e *Engine) run(m mutation) mutationResult {
	cur := *e.snap.Load()
	if err := m.ctx.Err(); err != nil {
		return mutationResult{state: cur, err: err}
	}
	act, err := m.txn(cur)
	if err != nil || act == nil {
		return mutationResult{state: cur, err: err}
	}
	next := Apply(cur, act)
	e.snap.Store(&next)
	if persistent(act) {
		e.schedulePersist(next)
	}
	return mutationResult{state: next}
}

// dispatch runs txn on the queue goroutine and returns the resulting state.
// If ctx is done before the queue gets to it, nothing is applied.
func (e *Engine) dispatch(ctx context.Context, txn func(State) (Action, error)) (State, error) {
	m := mutation{ctx: ctx, txn: txn, reply: make(chan mutationResult, 1)}
	select {
	case e.mutations <- m:
	case <-ctx.Done():
		return e.Snapshot(), ctx.Err()
	case <-e.stop:
		return e.Snapshot(), ErrClosed
	}
	r := <-m.reply
	return r.state, r.err
}

// dispatchLocal is dispatch for room and reservation writes made by the
// engine's own operations, as opposed to realtime events.
func (e *Engine) dispatchLocal(ctx context.Context, txn func(State) (Action, error)) (State, error) {
	return e.dispatch(ctx, func(s State) (Action, error) {
		a, err := txn(s)
		if err == nil && a != nil {
			e.localWrites++
		}
		return a, err
	})
}

// apply dispatches a fixed action.
func (e *Engine) apply(ctx context.Context, a Action) (State, error) {
	return e.dispatch(ctx, func(State) (Action, error) { return a, nil })
}

// schedulePersist hands s to the save goroutine without blocking. An older
// snapshot still waiting in the buffer is replaced, since s supersedes it.
func (e *Engine) schedulePersist(s State) {
	select {
	case e.persistCh <- s:
		return
	default:
	}
	select {
	case <-e.persistCh:
	default:
	}
	e.persistCh <- s
}

func (e *Engine) saveLoop() {
	defer close(e.saveDone)
	for s := range e.persistCh {
		e.persist(s)
	}
}

// --- remote calls ------------------------------------------------------------

// OpBudget is the time one operation may spend on the remote store: every
// attempt running into its call timeout, plus the pauses between them.
func OpBudget(attempts int, delay, callTimeout time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*callTimeout + time.Duration(attempts-1)*delay
}

// errOutOfTime is the cause attached to an expired remote phase.
var errOutOfTime = errors.New("remote phase out of time")

// remotePhase derives the context shared by all remote calls of one
// operation. Once it expires the remaining calls are skipped.
func (e *Engine) remotePhase(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(ctx, e.opTimeout, errOutOfTime)
}

// budgetExceeded returns err marked as transient when it was caused by rctx
// running out of time, and nil otherwise.
func (e *Engine) budgetExceeded(rctx context.Context, err error) error {
	if err == nil || !errors.Is(context.Cause(rctx), errOutOfTime) {
		return nil
	}
	return fmt.Errorf("%w: remote store did not answer within %s: %w", model.ErrTransient, e.opTimeout, err)
}

// callRemote runs fn with a per-attempt timeout, retrying transient failures.
func (e *Engine) callRemote(ctx context.Context, fn func(context.Context) error) error {
	return Retry(ctx, e.retryAttempts, e.retryDelay, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		return fn(callCtx)
	})
}

// degrade switches to local mode. It is idempotent: only the first call in
// a session changes anything, and the engine never switches back on its own.
func (e *Engine) degrade(ctx context.Context, op string, cause error) {
	changed := false
	_, err := e.dispatch(context.WithoutCancel(ctx), func(s State) (Action, error) {
		if s.Mode == ModeLocal {
			return nil, nil
		}
		changed = true
		return Batch{SetMode{Mode: ModeLocal}, SetError{Err: cause.Error()}}, nil
	})
	if err != nil || !changed {
		return
	}
	e.cntDegradations.Add(ctx, 1)
	e.log.Warn("remote store denied access, switching to local mode", "op", op, "error", cause)
	e.stopIngest()
}

// --- reads -------------------------------------------------------------------

// Snapshot returns the current state. The maps are shared with the engine
// and must not be modified.
func (e *Engine) Snapshot() State {
	return *e.snap.Load()
}

// Mode returns the current operating mode.
func (e *Engine) Mode() Mode {
	return e.snap.Load().Mode
}

// Revenue returns the ledger total in cents.
func (e *Engine) Revenue() int64 {
	return e.snap.Load().RevenueCents
}

// Rooms returns the rooms matching filter, ordered by id.
func (e *Engine) Rooms(filter model.RoomFilter) []model.Room {
	s := e.snap.Load()
	out := make([]model.Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		if filter.Match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the room with the given id.
func (e *Engine) Room(id int64) (model.Room, bool) {
	r, ok := e.snap.Load().Rooms[id]
	return r.Clone(), ok
}

// Reservation returns the reservation with the given id.
func (e *Engine) Reservation(id string) (model.Reservation, bool) {
	r, ok := e.snap.Load().Reservations[id]
	return r, ok
}

// ReservationsForRoom returns every reservation of a room, oldest first.
func (e *Engine) ReservationsForRoom(roomID int64) []model.Reservation {
	return reservationsForRoom(*e.snap.Load(), roomID)
}

// ActiveReservationForRoom returns the reservation currently holding the
// room, if any. Checked-in reservations win over pending bookings.
func (e *Engine) ActiveReservationForRoom(roomID int64) (model.Reservation, bool) {
	return activeReservation(*e.snap.Load(), roomID)
}

func reservationsForRoom(s State, roomID int64) []model.Reservation {
	var out []model.Reservation
	for _, r := range s.Reservations {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func activeReservation(s State, roomID int64) (model.Reservation, bool) {
	var best model.Reservation
	found := false
	for _, r := range reservationsForRoom(s, roomID) {
		if !r.IsActive() {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		if r.Status == model.ReservationCheckedIn && best.Status != model.ReservationCheckedIn {
			best = r
			continue
		}
		if r.Status != model.ReservationCheckedIn && best.Status != model.ReservationCheckedIn &&
			r.CheckInDate.Before(best.CheckInDate.Time) {
			best = r
		}
	}
	return best, found
}

// --- telemetry ---------------------------------------------------------------

func (e *Engine) begin(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "roomsync."+op)
}

// finish records res on the span and counters and returns it unchanged.
func (e *Engine) finish(ctx context.Context, span trace.Span, op string, res Result) Result {
	defer span.End()
	attrs := metric.WithAttributes(attribute.String("op", op))
	switch res.Outcome {
	case Applied:
		e.cntApplied.Add(ctx, 1, attrs)
	case AppliedLocalOnly:
		e.cntLocalOnly.Add(ctx, 1, attrs)
	case Rejected:
		e.cntRejected.Add(ctx, 1, attrs)
	}
	span.SetAttributes(
		attribute.String("sync.outcome", res.Outcome.String()),
		attribute.Bool("sync.warning", res.Warning),
		attribute.String("sync.mode", string(e.Mode())),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	return res
}
