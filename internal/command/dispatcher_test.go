package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/fake"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/ur"
	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
	"github.com/cam-andersen/InventorySystemV3/internal/config"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
	"github.com/cam-andersen/InventorySystemV3/internal/telemetry"
	"github.com/cam-andersen/InventorySystemV3/internal/transport"
)

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *recordingSink) Publish(e telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) PublishOrder(orderID string, e telemetry.Event) error {
	e.Order = orderID
	return s.Publish(e)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *recordingSink) ofType(t string) []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []telemetry.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// recordingSleeper records pacing requests without waiting.
type recordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

type auditCall struct {
	action, orderID, result string
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (a *recordingAudit) LogAction(_ context.Context, action, orderID, result string, _ time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{action, orderID, result})
}

var (
	screw = catalog.NewUnitItem("M3 screw", decimal.RequireFromString("1"), 1)
	nut   = catalog.NewUnitItem("M3 nut", decimal.RequireFromString("1.5"), 2)
	pen   = catalog.NewUnitItem("pen", decimal.RequireFromString("1"), 3)
	oil   = catalog.NewBulkItem("oil", decimal.RequireFromString("0.02"), 3, "ml")
)

type harness struct {
	ledger  *ledger.Ledger
	robot   *fake.Robot
	sink    *recordingSink
	sleeper *recordingSleeper
	audit   *recordingAudit
	d       *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:  ledger.New(nil),
		robot:   fake.NewRobot("fake-1"),
		sink:    &recordingSink{},
		sleeper: &recordingSleeper{},
		audit:   &recordingAudit{},
	}
	h.d = NewDispatcher(h.ledger, h.robot, config.LoadTimingBaseline(),
		WithEventSink(h.sink),
		WithSleeper(h.sleeper),
		WithAuditLogger(h.audit))
	return h
}

func (h *harness) queue(lines ...ledger.OrderLine) *ledger.Order {
	o := h.ledger.NewOrder("alice", lines...)
	h.ledger.QueueOrder(o)
	return o
}

func TestRepeatCount(t *testing.T) {
	tests := []struct {
		quantity float64
		want     int
	}{
		{2.0, 2},
		{1.4, 1},
		{1.6, 2},
		{0, 0},
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{3.5, 4},
		{-1, 0},
		{-2.5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepeatCount(tt.quantity), "quantity %v", tt.quantity)
	}
}

func TestProcessNextEmptyQueue(t *testing.T) {
	h := newHarness(t)

	result, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoWork, result.Outcome)
	assert.Equal(t, []string{EventNoWork}, h.sink.types())
	assert.Empty(t, h.robot.Picks())
	assert.Equal(t, StateIdle, h.d.Status().State)
	assert.Equal(t, []auditCall{{"dispatch", "", "NO_WORK"}}, h.audit.calls)
}

func TestProcessNextScenario(t *testing.T) {
	h := newHarness(t)
	order := h.queue(
		ledger.NewOrderLine(screw, 1),
		ledger.NewOrderLine(nut, 2),
		ledger.NewOrderLine(oil, 250),
	)

	result, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, 3, result.Picks)
	assert.Equal(t, []string{"oil"}, result.Skipped)

	assert.Equal(t, []int{1, 2, 2}, h.robot.Picks())
	assert.Equal(t, 3, h.robot.BrakeReleases())

	assert.Equal(t, []string{
		EventDispatchStarted,
		EventPicking, EventPicking, EventPicking,
		EventSkipped,
		EventOrderCompleted,
	}, h.sink.types())

	picking := h.sink.ofType(EventPicking)
	assert.Equal(t, "M3 nut", picking[2].Data["item"])
	assert.Equal(t, 2, picking[2].Data["repeat"])
	assert.Equal(t, 2, picking[2].Data["of"])
	assert.Equal(t, order.ID, picking[0].Order)

	assert.Len(t, h.sleeper.calls, 3)
	for _, d := range h.sleeper.calls {
		assert.Equal(t, 9500*time.Millisecond, d)
	}

	// 1×1 + 2×1.5 + 250×0.02
	assert.Equal(t, "9", h.ledger.TotalRevenue().String())

	view, ok := h.ledger.Lookup(order.ID)
	require.True(t, ok)
	assert.Equal(t, ledger.FulfillmentFulfilled, view.Fulfillment)
	assert.Equal(t, 3, view.PicksDone)

	assert.Equal(t, []auditCall{{"dispatch", order.ID, "SUCCESS"}}, h.audit.calls)
}

func TestProcessNextFIFO(t *testing.T) {
	h := newHarness(t)
	first := h.queue(ledger.NewOrderLine(screw, 1))
	second := h.queue(ledger.NewOrderLine(pen, 1))

	r1, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)
	r2, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, r1.OrderID)
	assert.Equal(t, second.ID, r2.OrderID)
	assert.Equal(t, []int{1, 3}, h.robot.Picks())
}

func TestProcessNextRoundingAndNegative(t *testing.T) {
	h := newHarness(t)
	h.queue(
		ledger.NewOrderLine(screw, 1.4),
		ledger.NewOrderLine(nut, 0),
		ledger.NewOrderLine(pen, 2.5),
		ledger.NewOrderLine(nut, -3),
	)

	result, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Picks)
	assert.Equal(t, []int{1, 3, 3}, h.robot.Picks())
}

func TestProcessNextBulkOnlyOrder(t *testing.T) {
	h := newHarness(t)
	h.queue(ledger.NewOrderLine(oil, 10))

	result, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Picks)
	assert.Empty(t, h.robot.Picks())
	assert.Empty(t, h.sleeper.calls)
	assert.Equal(t, []string{EventDispatchStarted, EventSkipped, EventOrderCompleted}, h.sink.types())
}

func TestProcessNextInvalidLocationAborts(t *testing.T) {
	h := newHarness(t)
	shelf := catalog.NewUnitItem("shelf item", decimal.RequireFromString("4"), 7)
	order := h.queue(
		ledger.NewOrderLine(screw, 1),
		ledger.NewOrderLine(shelf, 1),
		ledger.NewOrderLine(pen, 1),
	)

	result, err := h.d.ProcessNext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrInvalidLocation)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.Equal(t, 1, result.Picks)
	assert.Equal(t, []int{1}, h.robot.Picks(), "remaining picks must be abandoned")

	faults := h.sink.ofType(EventFault)
	require.Len(t, faults, 1)
	assert.Equal(t, "INVALID_LOCATION", faults[0].Data["code"])

	// Revenue is booked at dequeue; the order is flagged instead.
	assert.Equal(t, "6", h.ledger.TotalRevenue().String())
	view, _ := h.ledger.Lookup(order.ID)
	assert.Equal(t, ledger.FulfillmentPartial, view.Fulfillment)
	assert.Equal(t, 1, view.PicksDone)
	assert.NotEmpty(t, view.Failure)

	status := h.d.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Contains(t, status.LastError, "INVALID_LOCATION")
	assert.Equal(t, []auditCall{{"dispatch", order.ID, "INVALID_LOCATION"}}, h.audit.calls)
}

func TestProcessNextRobotFailure(t *testing.T) {
	h := newHarness(t)
	h.robot.FailAfter(1, "UNAVAILABLE")
	h.queue(ledger.NewOrderLine(nut, 3))

	result, err := h.d.ProcessNext(context.Background())
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
	assert.Equal(t, 1, result.Picks)
	assert.Equal(t, 1, h.ledger.ProcessedLen())
}

func TestProcessNextCancelledBeforeRepeat(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.robot.OnPick(func(int) { cancel() })
	h.queue(ledger.NewOrderLine(screw, 3))

	result, err := h.d.ProcessNext(ctx)
	assert.ErrorIs(t, err, adapter.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Picks)
	assert.Equal(t, "CANCELLED", h.sink.ofType(EventFault)[0].Data["code"])
}

func TestPacingWaitHonoursCancellation(t *testing.T) {
	h := newHarness(t)
	h.d.sleeper = TimerSleeper{}
	h.d.pacing = time.Hour
	h.queue(ledger.NewOrderLine(screw, 2))

	ctx, cancel := context.WithCancel(context.Background())
	h.robot.OnPick(func(int) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.d.ProcessNext(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, adapter.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("pacing wait did not abort on cancellation")
	}
	assert.Equal(t, []int{1}, h.robot.Picks())
}

func TestProcessNextBusy(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.d.sleeper = SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		close(entered)
		<-release
		return nil
	})
	h.queue(ledger.NewOrderLine(screw, 1))

	require.NoError(t, h.d.StartNext(context.Background()))
	<-entered

	status := h.d.Status()
	assert.Equal(t, StateDispatching, status.State)
	assert.NotEmpty(t, status.CurrentOrderID)

	_, err := h.d.ProcessNext(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, h.d.StartNext(context.Background()), ErrBusy)

	close(release)
	h.d.Wait()

	status = h.d.Status()
	assert.Equal(t, StateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, OutcomeCompleted, status.LastResult.Outcome)

	// Free again once the background dispatch finished.
	result, err := h.d.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoWork, result.Outcome)
}

func TestStartNextReturnsImmediately(t *testing.T) {
	h := newHarness(t)
	block := make(chan struct{})
	h.d.sleeper = SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		<-block
		return nil
	})
	h.queue(ledger.NewOrderLine(screw, 1))

	start := time.Now()
	require.NoError(t, h.d.StartNext(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	close(block)
	h.d.Wait()
	assert.Equal(t, []int{1}, h.robot.Picks())
}

// sendRecorder is a transport.Sender that records the wire traffic.
type sendRecorder struct {
	mu   sync.Mutex
	sent []struct {
		port    int
		payload string
	}
}

func (s *sendRecorder) Send(_ context.Context, ep transport.Endpoint, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, struct {
		port    int
		payload string
	}{ep.Port, payload})
	return nil
}

func TestDispatchWireProtocol(t *testing.T) {
	rec := &sendRecorder{}
	l := ledger.New(nil)
	robot := ur.New("ur-1", ur.Config{}, ur.WithSender(rec))
	sleeper := &recordingSleeper{}
	d := NewDispatcher(l, robot, config.LoadTimingBaseline(), WithSleeper(sleeper))

	o := l.NewOrder("bob", ledger.NewOrderLine(screw, 1), ledger.NewOrderLine(nut, 2), ledger.NewOrderLine(oil, 1))
	l.QueueOrder(o)

	_, err := d.ProcessNext(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.sent, 6)
	wantLocations := []string{"ITEM_X = 1", "ITEM_X = 2", "ITEM_X = 2"}
	for i := 0; i < 3; i++ {
		control, program := rec.sent[2*i], rec.sent[2*i+1]
		assert.Equal(t, 29999, control.port)
		assert.Equal(t, "brake release\n", control.payload)
		assert.Equal(t, 30002, program.port)
		assert.Contains(t, program.payload, wantLocations[i])
		assert.True(t, strings.HasSuffix(program.payload, ")\n"))
	}
}

func TestDispatchTransportFailure(t *testing.T) {
	l := ledger.New(nil)
	refused := transport.SendFunc(func(_ context.Context, ep transport.Endpoint, _ string) error {
		return &transport.Error{Code: transport.ErrConnectionRefused, Endpoint: ep, Op: "dial", Err: errors.New("connection refused")}
	})
	robot := ur.New("ur-1", ur.Config{}, ur.WithSender(refused))
	sink := &recordingSink{}
	d := NewDispatcher(l, robot, nil, WithEventSink(sink), WithSleeper(&recordingSleeper{}))

	l.QueueOrder(l.NewOrder("bob", ledger.NewOrderLine(screw, 1)))

	_, err := d.ProcessNext(context.Background())
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
	assert.ErrorIs(t, err, transport.ErrConnectionRefused)
	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.Equal(t, "UNAVAILABLE", sink.ofType(EventFault)[0].Data["code"])
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "aborted", OutcomeAborted.String())
}
