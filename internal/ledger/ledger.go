package ledger

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownOrder indicates a fulfilment update for an order that was never processed.
var ErrUnknownOrder = errors.New("UNKNOWN_ORDER")

// ChangeKind identifies a ledger transition.
type ChangeKind string

const (
	OrderQueued    ChangeKind = "orderQueued"
	OrderProcessed ChangeKind = "orderProcessed"
	OrderFulfilled ChangeKind = "orderFulfilled"
	OrderPartial   ChangeKind = "orderPartial"
)

// ChangeFunc receives ledger transitions. It is called after the lock is released.
type ChangeFunc func(kind ChangeKind, order OrderView)

// Summary is a consistent snapshot of the ledger.
type Summary struct {
	Queued       []OrderView     `json:"queued"`
	Processed    []OrderView     `json:"processed"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// Ledger holds queued and processed orders and the revenue accumulator.
type Ledger struct {
	mu           sync.Mutex
	queued       []*Order
	processed    []*Order
	totalRevenue decimal.Decimal
	clock        Clock
	onChange     ChangeFunc
}

// New creates an empty ledger. A nil clock uses SystemClock.
func New(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{
		clock:        clock,
		totalRevenue: decimal.Zero,
	}
}

// SetChangeFunc registers a listener for ledger transitions.
func (l *Ledger) SetChangeFunc(fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// NewOrder builds an order stamped with the ledger clock and a fresh ID.
// The order is not queued.
func (l *Ledger) NewOrder(customer string, lines ...OrderLine) *Order {
	copied := make([]OrderLine, len(lines))
	copy(copied, lines)

	return &Order{
		ID:        uuid.NewString(),
		Customer:  customer,
		Lines:     copied,
		CreatedAt: l.clock.Now(),
	}
}

// QueueOrder appends order to the tail of the queue.
func (l *Ledger) QueueOrder(order *Order) {
	l.mu.Lock()
	l.queued = append(l.queued, order)
	view, notify := order.view(), l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(OrderQueued, view)
	}
}

// ProcessNextOrder moves the oldest queued order to processed and credits its
// total price to the revenue. It returns false when the queue is empty.
func (l *Ledger) ProcessNextOrder() (*Order, bool) {
	l.mu.Lock()
	if len(l.queued) == 0 {
		l.mu.Unlock()
		return nil, false
	}

	order := l.queued[0]
	l.queued[0] = nil
	l.queued = l.queued[1:]
	l.processed = append(l.processed, order)
	l.totalRevenue = l.totalRevenue.Add(order.TotalPrice())

	view, notify := order.view(), l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(OrderProcessed, view)
	}
	return order, true
}

// MarkFulfilled records that every pick of a processed order was issued.
func (l *Ledger) MarkFulfilled(order *Order, picks int) error {
	return l.setFulfillment(order, FulfillmentFulfilled, picks, "")
}

// MarkPartial records that dispatch of a processed order stopped after picks
// commands. Revenue already credited for the order is left unchanged.
func (l *Ledger) MarkPartial(order *Order, picks int, cause error) error {
	failure := ""
	if cause != nil {
		failure = cause.Error()
	}
	return l.setFulfillment(order, FulfillmentPartial, picks, failure)
}

func (l *Ledger) setFulfillment(order *Order, status Fulfillment, picks int, failure string) error {
	l.mu.Lock()
	if !l.isProcessed(order) {
		l.mu.Unlock()
		return ErrUnknownOrder
	}

	order.fulfillment = status
	order.picksDone = picks
	order.failure = failure

	view, notify := order.view(), l.onChange
	l.mu.Unlock()

	if notify != nil {
		kind := OrderFulfilled
		if status == FulfillmentPartial {
			kind = OrderPartial
		}
		notify(kind, view)
	}
	return nil
}

// isProcessed reports whether order is in the processed list. Caller holds l.mu.
func (l *Ledger) isProcessed(order *Order) bool {
	for i := len(l.processed) - 1; i >= 0; i-- {
		if l.processed[i] == order {
			return true
		}
	}
	return false
}

// TotalRevenue returns the revenue of all processed orders.
func (l *Ledger) TotalRevenue() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalRevenue
}

// QueuedLen returns the number of orders waiting.
func (l *Ledger) QueuedLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queued)
}

// ProcessedLen returns the number of processed orders.
func (l *Ledger) ProcessedLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

// Lookup returns a view of the order with the given ID from either list.
func (l *Ledger) Lookup(id string) (OrderView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range l.queued {
		if o.ID == id {
			return o.view(), true
		}
	}
	for _, o := range l.processed {
		if o.ID == id {
			return o.view(), true
		}
	}
	return OrderView{}, false
}

// Snapshot returns a consistent copy of both lists and the revenue.
func (l *Ledger) Snapshot() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		Queued:       make([]OrderView, 0, len(l.queued)),
		Processed:    make([]OrderView, 0, len(l.processed)),
		TotalRevenue: l.totalRevenue,
	}
	for _, o := range l.queued {
		s.Queued = append(s.Queued, o.view())
	}
	for _, o := range l.processed {
		s.Processed = append(s.Processed, o.view())
	}
	return s
}
