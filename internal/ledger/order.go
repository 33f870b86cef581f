package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
)

// Fulfillment describes how far the physical picking of a processed order got.
type Fulfillment int

const (
	// FulfillmentPending means the order has not been dispatched to the robot yet.
	FulfillmentPending Fulfillment = iota
	// FulfillmentFulfilled means every pick of the order was issued.
	FulfillmentFulfilled
	// FulfillmentPartial means dispatch stopped early; some picks never ran.
	FulfillmentPartial
)

func (f Fulfillment) String() string {
	switch f {
	case FulfillmentFulfilled:
		return "fulfilled"
	case FulfillmentPartial:
		return "partial"
	default:
		return "pending"
	}
}

// MarshalText encodes the fulfilment status by name.
func (f Fulfillment) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// OrderLine is one item and quantity of an order. The item is shared, not owned.
type OrderLine struct {
	Item     *catalog.Item
	Quantity float64
}

// NewOrderLine creates an order line.
func NewOrderLine(item *catalog.Item, quantity float64) OrderLine {
	return OrderLine{Item: item, Quantity: quantity}
}

// LinePrice returns quantity × unit price.
func (l OrderLine) LinePrice() decimal.Decimal {
	if l.Item == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(l.Quantity).Mul(l.Item.UnitPrice)
}

// Order is an ordered list of lines. Line order is the pick sequence.
//
// Lines, ID, Customer and CreatedAt never change after creation. The
// fulfilment fields are owned by the Ledger and only read through it.
type Order struct {
	ID        string
	Customer  string
	Lines     []OrderLine
	CreatedAt time.Time

	fulfillment Fulfillment
	picksDone   int
	failure     string
}

// TotalPrice returns the sum of all line prices.
func (o *Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.LinePrice())
	}
	return total
}

// LineView is the read model of an order line.
type LineView struct {
	Item      string          `json:"item"`
	Location  int             `json:"location"`
	Pickable  bool            `json:"pickable"`
	Quantity  float64         `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// OrderView is a point-in-time copy of an order, safe to hand to other goroutines.
type OrderView struct {
	ID          string          `json:"id"`
	Customer    string          `json:"customer,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Lines       []LineView      `json:"lines"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Fulfillment Fulfillment     `json:"fulfillment"`
	PicksDone   int             `json:"picksDone"`
	Failure     string          `json:"failure,omitempty"`
}

// view copies the order. Caller must hold the ledger lock.
func (o *Order) view() OrderView {
	lines := make([]LineView, 0, len(o.Lines))
	for _, l := range o.Lines {
		lv := LineView{Quantity: l.Quantity, LineTotal: l.LinePrice()}
		if l.Item != nil {
			lv.Item = l.Item.Name
			lv.Location = l.Item.Location
			lv.Pickable = l.Item.Pickable()
		}
		lines = append(lines, lv)
	}

	return OrderView{
		ID:          o.ID,
		Customer:    o.Customer,
		CreatedAt:   o.CreatedAt,
		Lines:       lines,
		TotalPrice:  o.TotalPrice(),
		Fulfillment: o.fulfillment,
		PicksDone:   o.picksDone,
		Failure:     o.failure,
	}
}
