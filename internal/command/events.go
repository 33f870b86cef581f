package command

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
	"github.com/cam-andersen/InventorySystemV3/internal/telemetry"
)

// Dispatch event types.
const (
	EventDispatchStarted = "dispatchStarted"
	EventPicking         = "picking"
	EventSkipped         = "skipped"
	EventOrderCompleted  = "orderCompleted"
	EventNoWork          = "noWork"
	EventFault           = "fault"
)

func (d *Dispatcher) publish(orderID string, event telemetry.Event) {
	if d.events == nil {
		return
	}

	var err error
	if orderID == "" {
		err = d.events.Publish(event)
	} else {
		err = d.events.PublishOrder(orderID, event)
	}
	if err != nil {
		d.logger.Warn("failed to publish dispatch event", zap.String("type", event.Type), zap.Error(err))
	}
}

func (d *Dispatcher) publishDispatchStarted(orderID, customer string, lines int) {
	d.publish(orderID, telemetry.Event{
		Type: EventDispatchStarted,
		Data: map[string]interface{}{
			"orderId":  orderID,
			"customer": customer,
			"lines":    lines,
		},
	})
}

func (d *Dispatcher) publishPicking(orderID string, item *catalog.Item, repeat, of int) {
	d.publish(orderID, telemetry.Event{
		Type: EventPicking,
		Data: map[string]interface{}{
			"orderId":  orderID,
			"item":     item.Name,
			"location": item.Location,
			"repeat":   repeat,
			"of":       of,
			"message":  fmt.Sprintf("Picking %s from box %d → S", item.Name, item.Location),
		},
	})
}

func (d *Dispatcher) publishSkipped(orderID string, item *catalog.Item) {
	name := ""
	if item != nil {
		name = item.Name
	}
	d.publish(orderID, telemetry.Event{
		Type: EventSkipped,
		Data: map[string]interface{}{
			"orderId": orderID,
			"item":    name,
			"message": fmt.Sprintf("Skipping bulk item '%s' (not pickable as units).", name),
		},
	})
}

func (d *Dispatcher) publishOrderCompleted(orderID string, picks int) {
	d.publish(orderID, telemetry.Event{
		Type: EventOrderCompleted,
		Data: map[string]interface{}{
			"orderId": orderID,
			"picks":   picks,
			"message": "Order completed. New empty S-box ready.",
		},
	})
}

func (d *Dispatcher) publishNoWork() {
	d.publish("", telemetry.Event{
		Type: EventNoWork,
		Data: map[string]interface{}{
			"message": "No queued orders.",
		},
	})
}

func (d *Dispatcher) publishFault(orderID string, picks int, err error) {
	d.publish(orderID, telemetry.Event{
		Type: EventFault,
		Data: map[string]interface{}{
			"orderId": orderID,
			"code":    adapter.Code(err),
			"message": err.Error(),
			"picks":   picks,
		},
	})
}
