package host

import (
	"context"
	"fmt"

	"github.com/dukex/flowhost/pkg/eventbus"
	"github.com/dukex/flowhost/pkg/events"
)

// Listen consumes trigger.received events from the bus until ctx is done.
func (h *WorkflowHost) Listen(ctx context.Context, subscriber eventbus.EventSubscriber) error {
	if err := subscriber.Handle(events.TriggerReceivedEvent, h.HandleTriggerEvent); err != nil {
		return fmt.Errorf("failed to register trigger handler: %w", err)
	}

	return subscriber.Subscribe(ctx)
}

// HandleTriggerEvent runs Trigger for a received event. Failures are logged
// and the message is acknowledged: redelivering a trigger would start the
// matching definitions a second time.
func (h *WorkflowHost) HandleTriggerEvent(ctx context.Context, event any) error {
	trigger, ok := event.(*events.TriggerReceived)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_, err := h.Trigger(ctx, trigger.ActivityName, trigger.Arguments)
	if err != nil {
		h.logger.ErrorContext(ctx, "Trigger from event bus failed",
			"event_id", trigger.ID, "activity_name", trigger.ActivityName, "error", err)
	}

	return nil
}
