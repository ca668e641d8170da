package mutation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/mutation/echo"
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/join"
	"github.com/dshills/vtstate/internal/mutation/redirect"
	"github.com/dshills/vtstate/internal/mutation/report"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/terminal"
	"github.com/dshills/vtstate/internal/trigger"
)

type options struct {
	log           *zap.Logger
	arbiter       *join.Arbiter
	cols, rows    int
	scrollback    int
	reportCeiling int
	echoWindow    time.Duration
	echoPolicy    echo.Policy
	inbox         int
}

// Option configures a Coordinator.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithArbiter shares a join lane with other coordinators.
func WithArbiter(a *join.Arbiter) Option {
	return func(o *options) {
		if a != nil {
			o.arbiter = a
		}
	}
}

// WithSize sets the initial grid size.
func WithSize(cols, rows int) Option {
	return func(o *options) {
		o.cols, o.rows = cols, rows
	}
}

// WithScrollback sets the number of history lines kept.
func WithScrollback(n int) Option {
	return func(o *options) {
		o.scrollback = n
	}
}

// WithReportCeiling sets the number of unanswered reports allowed.
func WithReportCeiling(n int) Option {
	return func(o *options) {
		o.reportCeiling = n
	}
}

// WithEcho configures the echo probe.
func WithEcho(window time.Duration, policy echo.Policy) Option {
	return func(o *options) {
		o.echoWindow = window
		o.echoPolicy = policy
	}
}

// WithInboxSize sets how many submitted batches may wait for the mutation
// path before Submit blocks.
func WithInboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.inbox = n
		}
	}
}

// Coordinator serializes terminal mutation and feeds a consumer.
type Coordinator struct {
	id      uuid.UUID
	log     *zap.Logger
	arbiter *join.Arbiter

	state      *State
	queue      *sideeffect.Queue[Delegate]
	redirected *redirect.Buffer[*State]
	observers  *observerSet

	batches chan []terminal.Token
	wake    chan struct{}

	schedMu   sync.Mutex
	scheduled []func(*State)

	suspended atomic.Bool
	pauses    atomic.Int32
	running   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	batchCount atomic.Uint64
	tokenCount atomic.Uint64
}

// New creates a coordinator. Call Run to start the mutation path, or
// Process to apply batches synchronously.
func New(opts ...Option) *Coordinator {
	cfg := &options{
		log:           zap.NewNop(),
		cols:          80,
		rows:          24,
		scrollback:    terminal.DefaultScrollback,
		reportCeiling: report.DefaultCeiling,
		echoWindow:    echo.DefaultWindow,
		echoPolicy:    echo.DefaultPolicy(),
		inbox:         64,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.arbiter == nil {
		cfg.arbiter = join.NewArbiter()
	}

	c := &Coordinator{
		id:         uuid.New(),
		arbiter:    cfg.arbiter,
		redirected: redirect.New[*State](),
		observers:  newObserverSet(),
		batches:    make(chan []terminal.Token, cfg.inbox),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	c.log = cfg.log.Named("mutation").With(zap.Stringer("coordinator", c.id))
	cfg.log = c.log
	c.queue = sideeffect.New[Delegate](sideeffect.WithLogger[Delegate](c.log.Named("effects")))
	c.state = newState(c, cfg)
	return c
}

// ID identifies the coordinator in logs.
func (c *Coordinator) ID() uuid.UUID { return c.id }

// Arbiter returns the join arbiter, for sharing with other coordinators.
func (c *Coordinator) Arbiter() *join.Arbiter { return c.arbiter }

// Run is the mutation path. It applies submitted batches and scheduled
// callbacks until ctx is done or Close is called.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)

	c.log.Debug("mutation path started")
	defer c.log.Debug("mutation path stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case tokens := <-c.batches:
			if err := c.Process(ctx, tokens); err != nil {
				return err
			}
		case <-c.wake:
			if err := c.Process(ctx, nil); err != nil {
				return err
			}
		}
	}
}

// Process applies one batch while holding the join lane, then commits it.
// Scheduled callbacks run before the tokens.
func (c *Coordinator) Process(ctx context.Context, tokens []terminal.Token) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.arbiter.Exec(ctx, func() { c.batch(tokens) })
}

func (c *Coordinator) batch(tokens []terminal.Token) {
	s := c.state
	c.batchCount.Add(1)

	// Resume and Unpause arrive from other goroutines. Both are read once so
	// the whole batch sees one answer and held work stays ahead of new work.
	suspended := c.suspended.Load()
	paused := c.pauses.Load() > 0

	if !suspended {
		s.ExecuteRedirectedActions()
		if !paused {
			held := s.held
			s.held = nil
			c.apply(held)
		}
	}

	for _, fn := range c.takeScheduled() {
		if suspended {
			s.AddRedirectedAction(fn)
			continue
		}
		fn(s)
	}

	if suspended || paused || len(s.held) > 0 {
		s.held = append(s.held, tokens...)
	} else {
		c.apply(tokens)
	}

	s.commit()
}

// apply runs tokens in order. Once a Paused effect is queued, by a token
// or by a callback earlier in the batch, the remaining tokens are held until
// its Unpauser fires.
func (c *Coordinator) apply(tokens []terminal.Token) {
	for i, tok := range tokens {
		if c.pauses.Load() > 0 {
			c.state.held = append(c.state.held, tokens[i:]...)
			tokens = tokens[:i]
			break
		}
		c.state.ApplyToken(tok)
	}
	c.tokenCount.Add(uint64(len(tokens)))
}

// unpause releases one executor pause and wakes the mutation path to apply
// the tokens held behind it.
func (c *Coordinator) unpause() {
	if c.pauses.Add(-1) < 0 {
		panic("mutation: executor unpaused more often than paused")
	}
	c.signal()
}

// Submit hands a batch to the mutation path. It blocks while the inbox is
// full.
func (c *Coordinator) Submit(ctx context.Context, tokens []terminal.Token) error {
	if c.isClosed() {
		return ErrClosed
	}
	select {
	case c.batches <- tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Dispatch runs fn on the mutation path in a later batch. It never blocks
// and may be called from any goroutine, including the mutation path.
// While suspended, fn is redirected until Resume.
func (c *Coordinator) Dispatch(fn func(*State)) {
	if fn == nil || c.isClosed() {
		return
	}
	c.schedMu.Lock()
	c.scheduled = append(c.scheduled, fn)
	c.schedMu.Unlock()
	c.signal()
}

// Schedule runs fn on the mutation path in a later batch.
func (c *Coordinator) Schedule(fn func()) {
	if fn == nil {
		return
	}
	c.Dispatch(func(*State) { fn() })
}

func (c *Coordinator) takeScheduled() []func(*State) {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	fns := c.scheduled
	c.scheduled = nil
	return fns
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// PerformJoined runs fn from the consumer with the mutation path's
// guarantees: it waits for the batch in flight, runs fn, commits, and
// delivers the Joined effects at the head of the queue before returning.
// fn receives a context marking the join; a PerformJoined made with it, on
// any coordinator sharing the arbiter, runs immediately. Joins from other
// goroutines wait their turn.
func (c *Coordinator) PerformJoined(ctx context.Context, fn func(ctx context.Context, s *State)) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.arbiter.Join(ctx, func(ctx context.Context) {
		fn(ctx, c.state)
		c.state.commit()
		c.queue.Drain(sideeffect.DrainJoined)
	})
}

// PerformSideEffects delivers committed effects to the delegate. It is
// called by the consumer, usually after Ready fires, and returns the number
// delivered.
func (c *Coordinator) PerformSideEffects() int {
	return c.queue.Drain(sideeffect.DrainAll)
}

// Ready signals that committed effects may be waiting.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.queue.Ready()
}

// SetDelegate attaches the consumer.
func (c *Coordinator) SetDelegate(d Delegate) {
	if d == nil {
		c.queue.ClearDelegate()
		return
	}
	c.queue.SetDelegate(d)
}

// AddMarkObserver registers o and returns its ID, which may be used as an
// entry Owner to route notifications to o alone.
func (c *Coordinator) AddMarkObserver(o MarkObserver) uuid.UUID {
	return c.observers.add(o)
}

// RemoveMarkObserver unregisters an observer.
func (c *Coordinator) RemoveMarkObserver(id uuid.UUID) {
	c.observers.remove(id)
}

// Snapshot returns the published marks and annotations of the visible screen.
func (c *Coordinator) Snapshot() *intervaltree.Version {
	return c.state.marks.Snapshot()
}

// SendComposerCommand sends cmd to the shell and verifies its echo.
func (c *Coordinator) SendComposerCommand(cmd string) {
	c.Dispatch(func(s *State) { s.SendComposerCommand(cmd) })
}

// SetTriggers replaces the trigger set. The previous set is closed.
func (c *Coordinator) SetTriggers(triggers []*trigger.Trigger) {
	c.Dispatch(func(s *State) {
		old := s.triggers
		s.triggers = trigger.NewEvaluator(triggers, trigger.WithLogger(c.log))
		if err := old.Close(); err != nil {
			c.log.Warn("closing previous triggers", zap.Error(err))
		}
	})
}

// SetEcho changes the echo window and fallback policy.
func (c *Coordinator) SetEcho(window time.Duration, policy echo.Policy) {
	c.Dispatch(func(s *State) {
		s.probe.SetWindow(window)
		s.probe.SetPolicy(policy)
	})
}

// Resize changes the grid size.
func (c *Coordinator) Resize(cols, rows int) {
	c.Dispatch(func(s *State) { s.screen.Resize(cols, rows) })
}

// AllowNextReport lets one report through the throttle regardless of the
// ceiling. Hosts call it when the user types.
func (c *Coordinator) AllowNextReport() {
	c.state.throttle.AllowNext()
}

// DidSendReport records an answered report. It is safe from any goroutine.
func (c *Coordinator) DidSendReport() {
	c.state.throttle.DidSend()
}

// Suspend stops applying tokens. Batches submitted while suspended are
// held and scheduled callbacks are redirected.
func (c *Coordinator) Suspend() {
	if c.suspended.CompareAndSwap(false, true) {
		c.log.Info("token application suspended")
	}
}

// Resume restarts token application. Redirected callbacks run first, then
// held batches, then anything submitted afterwards.
func (c *Coordinator) Resume() {
	if c.suspended.CompareAndSwap(true, false) {
		c.log.Info("token application resumed")
		c.signal()
	}
}

// Paused reports whether a Paused effect is holding token application.
func (c *Coordinator) Paused() bool {
	return c.pauses.Load() > 0
}

// Suspended reports whether token application is suspended.
func (c *Coordinator) Suspended() bool {
	return c.suspended.Load()
}

// Close stops Run and releases trigger resources. It waits for the batch
// in flight.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.arbiter.Exec(context.Background(), func() {
			c.state.probe.Cancel()
			err = c.state.triggers.Close()
		})
	})
	return err
}

func (c *Coordinator) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Batches uint64
	Tokens  uint64
	Effects sideeffect.Stats
	Reports report.Stats
	Join    join.Stats
}

// Stats returns coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Batches: c.batchCount.Load(),
		Tokens:  c.tokenCount.Load(),
		Effects: c.queue.Stats(),
		Reports: c.state.throttle.Stats(),
		Join:    c.arbiter.Stats(),
	}
}

type observerSet struct {
	mu    sync.RWMutex
	order []uuid.UUID
	byID  map[uuid.UUID]MarkObserver
}

func newObserverSet() *observerSet {
	return &observerSet{byID: make(map[uuid.UUID]MarkObserver)}
}

func (s *observerSet) add(o MarkObserver) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.order = append(s.order, id)
	s.byID[id] = o
	s.mu.Unlock()
	return id
}

func (s *observerSet) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *observerSet) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID) == 0
}

// route returns the observers for an entry owned by owner.
func (s *observerSet) route(owner uuid.UUID) []MarkObserver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if owner != uuid.Nil {
		if o, ok := s.byID[owner]; ok {
			return []MarkObserver{o}
		}
		return nil
	}
	out := make([]MarkObserver, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
