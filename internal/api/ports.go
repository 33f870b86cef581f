package api

import (
	"context"
	"net/http"

	"github.com/cam-andersen/InventorySystemV3/internal/audit"
	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
	"github.com/cam-andersen/InventorySystemV3/internal/command"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
	"github.com/cam-andersen/InventorySystemV3/internal/telemetry"
)

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// CatalogPort is the read side of the item catalog.
type CatalogPort interface {
	Get(name string) (*catalog.Item, error)
	List() []*catalog.Item
}

// LedgerPort is the part of the ledger the API reads and writes.
type LedgerPort interface {
	NewOrder(customer string, lines ...ledger.OrderLine) *ledger.Order
	QueueOrder(order *ledger.Order)
	Lookup(id string) (ledger.OrderView, bool)
	Snapshot() ledger.Summary
}

// AuditPort records API-originated actions.
type AuditPort interface {
	LogOrderAction(ctx context.Context, action, orderID string, params map[string]interface{}, err error)
}

// Compile-time assertions for port conformance
var (
	_ TelemetryPort          = (*telemetry.Hub)(nil)
	_ CatalogPort            = (*catalog.Catalog)(nil)
	_ LedgerPort             = (*ledger.Ledger)(nil)
	_ AuditPort              = (*audit.Logger)(nil)
	_ command.DispatcherPort = (*command.Dispatcher)(nil)
)
