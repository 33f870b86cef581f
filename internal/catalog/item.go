package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Capability tags what the robot can do with an item.
type Capability int

const (
	// Pickable items are discrete units the robot retrieves from a bin.
	Pickable Capability = iota
	// BulkOnly items are measured in a unit label and cannot be picked.
	BulkOnly
)

// String returns the capability name used in API payloads.
func (c Capability) String() string {
	switch c {
	case Pickable:
		return "pickable"
	case BulkOnly:
		return "bulk"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// MarshalText encodes the capability by name.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCapability parses a capability name ("pickable"/"unit" or "bulk").
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "pickable", "unit", "":
		return Pickable, nil
	case "bulk":
		return BulkOnly, nil
	default:
		return 0, fmt.Errorf("unknown item kind %q", s)
	}
}

// Item is a sellable product.
//
// Location is the physical bin the robot picks from (1=a, 2=b, 3=c). It is not
// validated here; the motion program encoder rejects locations outside the
// bin set.
type Item struct {
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Location        int             `json:"location"`
	Capability      Capability      `json:"capability"`
	MeasurementUnit string          `json:"measurementUnit,omitempty"`
	Weight          decimal.Decimal `json:"weight"`
}

// NewUnitItem creates a pickable item stored in the given bin.
func NewUnitItem(name string, unitPrice decimal.Decimal, location int) *Item {
	return &Item{
		Name:       name,
		UnitPrice:  unitPrice,
		Location:   location,
		Capability: Pickable,
	}
}

// NewBulkItem creates a bulk item sold per measurement unit ("L", "kg", "m").
func NewBulkItem(name string, unitPrice decimal.Decimal, location int, unit string) *Item {
	return &Item{
		Name:            name,
		UnitPrice:       unitPrice,
		Location:        location,
		Capability:      BulkOnly,
		MeasurementUnit: unit,
	}
}

// WithWeight returns a copy of the item with the given unit weight.
func (i *Item) WithWeight(weight decimal.Decimal) *Item {
	cp := *i
	cp.Weight = weight
	return &cp
}

// Pickable reports whether the robot can retrieve the item as a discrete unit.
func (i *Item) Pickable() bool {
	return i != nil && i.Capability == Pickable
}

func (i *Item) String() string {
	return fmt.Sprintf("%s (price: %s, location: %d)", i.Name, i.UnitPrice.String(), i.Location)
}
