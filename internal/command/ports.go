package command

import (
	"context"
	"errors"
	"time"

	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
	"github.com/cam-andersen/InventorySystemV3/internal/telemetry"
)

// DispatcherPort defines the minimal interface the API needs from the dispatcher.
type DispatcherPort interface {
	StartNext(ctx context.Context) error
	Status() Status
}

// OrderSource is the part of the ledger the dispatcher consumes.
type OrderSource interface {
	ProcessNextOrder() (*ledger.Order, bool)
	MarkFulfilled(order *ledger.Order, picks int) error
	MarkPartial(order *ledger.Order, picks int, cause error) error
}

// EventSink receives dispatch events.
type EventSink interface {
	Publish(event telemetry.Event) error
	PublishOrder(orderID string, event telemetry.Event) error
}

// AuditLogger interface for writing audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, orderID string, result string, latency time.Duration)
}

// Compile-time assertions.
var (
	_ OrderSource    = (*ledger.Ledger)(nil)
	_ EventSink      = (*telemetry.Hub)(nil)
	_ DispatcherPort = (*Dispatcher)(nil)
)

// ErrBusy indicates a dispatch is already in progress.
var ErrBusy = errors.New("BUSY")

// ErrNotFound indicates a requested order, item or customer was not found.
var ErrNotFound = errors.New("NOT_FOUND")

// ErrInvalidParameter indicates a required parameter is missing or structurally invalid.
var ErrInvalidParameter = errors.New("BAD_REQUEST")
