package command

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/config"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
)

// State is the dispatcher state.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome summarizes one ProcessNext call.
type Outcome int

const (
	OutcomeNoWork Outcome = iota
	OutcomeCompleted
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoWork:
		return "noWork"
	case OutcomeCompleted:
		return "completed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result reports what a dispatch did.
type Result struct {
	Outcome Outcome  `json:"outcome"`
	OrderID string   `json:"orderId,omitempty"`
	Picks   int      `json:"picks"`
	Skipped []string `json:"skipped,omitempty"`
}

// Status is a snapshot of the dispatcher.
type Status struct {
	State          State   `json:"state"`
	CurrentOrderID string  `json:"currentOrderId,omitempty"`
	LastResult     *Result `json:"lastResult,omitempty"`
	LastError      string  `json:"lastError,omitempty"`
}

// RepeatCount converts a line quantity into a number of picks: round half
// to even, never negative. Non-finite quantities yield no picks.
func RepeatCount(quantity float64) int {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return 0
	}
	n := math.RoundToEven(quantity)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Dispatcher moves queued orders to the robot.
type Dispatcher struct {
	orders  OrderSource
	robot   adapter.IRobotAdapter
	events  EventSink
	audit   AuditLogger
	logger  *zap.Logger
	sleeper Sleeper
	pacing  time.Duration

	// run is held for the whole of a dispatch.
	run sync.Mutex

	mu         sync.RWMutex
	state      State
	current    string
	lastResult *Result
	lastErr    string

	wg sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEventSink sets where dispatch events go.
func WithEventSink(s EventSink) Option {
	return func(d *Dispatcher) { d.events = s }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l AuditLogger) Option {
	return func(d *Dispatcher) { d.audit = l }
}

// WithLogger sets the process logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSleeper replaces the pacing timer.
func WithSleeper(s Sleeper) Option {
	return func(d *Dispatcher) { d.sleeper = s }
}

// NewDispatcher creates a dispatcher. Pacing comes from timing.PacingInterval.
func NewDispatcher(orders OrderSource, robot adapter.IRobotAdapter, timing *config.TimingConfig, opts ...Option) *Dispatcher {
	if timing == nil {
		timing = config.LoadTimingBaseline()
	}
	d := &Dispatcher{
		orders:  orders,
		robot:   robot,
		logger:  zap.NewNop(),
		sleeper: TimerSleeper{},
		pacing:  timing.PacingInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessNext dispatches the next queued order and returns when it is done.
// An empty queue is not an error. Returns ErrBusy if a dispatch is running.
func (d *Dispatcher) ProcessNext(ctx context.Context) (*Result, error) {
	if !d.run.TryLock() {
		return nil, ErrBusy
	}
	defer d.run.Unlock()

	return d.processNext(ctx)
}

// StartNext runs ProcessNext in the background and returns immediately.
// ctx governs the background dispatch, so it must outlive the caller's request.
func (d *Dispatcher) StartNext(ctx context.Context) error {
	if !d.run.TryLock() {
		return ErrBusy
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.run.Unlock()

		_, _ = d.processNext(ctx)
	}()
	return nil
}

// Wait blocks until background dispatches started by StartNext finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Status returns the current state.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Status{
		State:          d.state,
		CurrentOrderID: d.current,
		LastError:      d.lastErr,
	}
	if d.lastResult != nil {
		r := *d.lastResult
		r.Skipped = append([]string(nil), d.lastResult.Skipped...)
		s.LastResult = &r
	}
	return s
}

func (d *Dispatcher) setState(state State, orderID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
	d.current = orderID
}

func (d *Dispatcher) finish(result *Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateIdle
	d.current = ""
	d.lastResult = result
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
	}
}

// processNext must be called with d.run held.
func (d *Dispatcher) processNext(ctx context.Context) (*Result, error) {
	start := time.Now()

	d.setState(StateFetching, "")
	order, ok := d.orders.ProcessNextOrder()
	if !ok {
		result := &Result{Outcome: OutcomeNoWork}
		d.finish(result, nil)
		d.publishNoWork()
		d.logAudit(ctx, "dispatch", "", "NO_WORK", time.Since(start))
		d.logger.Debug("no queued orders")
		return result, nil
	}

	d.setState(StateDispatching, order.ID)
	d.publishDispatchStarted(order.ID, order.Customer, len(order.Lines))
	d.logger.Info("dispatching order",
		zap.String("orderId", order.ID),
		zap.String("customer", order.Customer),
		zap.Int("lines", len(order.Lines)))

	result := &Result{Outcome: OutcomeCompleted, OrderID: order.ID}
	err := d.dispatchOrder(ctx, order, result)
	latency := time.Since(start)

	if err != nil {
		result.Outcome = OutcomeAborted
		if markErr := d.orders.MarkPartial(order, result.Picks, err); markErr != nil {
			d.logger.Error("failed to record partial fulfilment", zap.String("orderId", order.ID), zap.Error(markErr))
		}
		d.finish(result, err)
		d.publishFault(order.ID, result.Picks, err)
		d.logAudit(ctx, "dispatch", order.ID, adapter.Code(err), latency)
		d.logger.Error("dispatch aborted",
			zap.String("orderId", order.ID),
			zap.Int("picks", result.Picks),
			zap.Duration("latency", latency),
			zap.Error(err))
		return result, err
	}

	if markErr := d.orders.MarkFulfilled(order, result.Picks); markErr != nil {
		d.logger.Error("failed to record fulfilment", zap.String("orderId", order.ID), zap.Error(markErr))
	}
	d.finish(result, nil)
	d.publishOrderCompleted(order.ID, result.Picks)
	d.logAudit(ctx, "dispatch", order.ID, "SUCCESS", latency)
	d.logger.Info("order completed",
		zap.String("orderId", order.ID),
		zap.Int("picks", result.Picks),
		zap.Strings("skipped", result.Skipped),
		zap.Duration("latency", latency))
	return result, nil
}

// dispatchOrder walks the lines in order. The first error aborts the rest.
func (d *Dispatcher) dispatchOrder(ctx context.Context, order *ledger.Order, result *Result) error {
	for _, line := range order.Lines {
		item := line.Item
		if item == nil || !item.Pickable() {
			if item != nil {
				result.Skipped = append(result.Skipped, item.Name)
			}
			d.publishSkipped(order.ID, item)
			continue
		}

		repeats := RepeatCount(line.Quantity)
		for r := 1; r <= repeats; r++ {
			if err := ctx.Err(); err != nil {
				return adapter.Normalize(err, item.Location)
			}

			d.publishPicking(order.ID, item, r, repeats)
			if err := d.robot.Pick(ctx, item.Location); err != nil {
				return adapter.Normalize(err, item.Location)
			}
			result.Picks++

			if err := d.sleeper.Sleep(ctx, d.pacing); err != nil {
				return adapter.Normalize(err, item.Location)
			}
		}
	}
	return nil
}

func (d *Dispatcher) logAudit(ctx context.Context, action, orderID, result string, latency time.Duration) {
	if d.audit != nil {
		d.audit.LogAction(ctx, action, orderID, result, latency)
	}
}
