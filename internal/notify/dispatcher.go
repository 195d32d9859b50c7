package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderline/orderline/internal/eventbus"
)

// Dispatcher listens for finalized orders and pushes a notification to every
// subscribed staff device.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("order notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("order notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.TypeOrderFinalized {
				d.handleOrderFinalized(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleOrderFinalized(ctx context.Context, event *eventbus.Event) {
	body := event.Payload
	if customer := event.Metadata["customer"]; customer != "" {
		body = fmt.Sprintf("%s for %s", event.Payload, customer)
	}
	if total := event.Metadata["total"]; total != "" {
		body = fmt.Sprintf("%s, $%s", body, total)
	}
	if event.Metadata["order_type"] == "delivery" {
		body += " (delivery)"
	}

	d.sender.SendToAll(ctx, &NotificationPayload{
		Title: "New Order",
		Body:  body,
		URL:   fmt.Sprintf("/sessions/%s", event.SessionID),
		Tag:   event.SessionID,
	})
}
