package service

import (
	"context"

	"slotify/internal/slots/events"
	"slotify/pkg/logger"
	otelx "slotify/pkg/otel"
)

var tracer = otelx.Tracer("slotify/internal/slots/service")

// publish emits event after the state change has been committed. Delivery
// failures are logged and never change the caller's outcome.
func publish(ctx context.Context, log *logger.Logger, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("Failed to publish slot event",
			"event_type", event.Type,
			"slot_id", event.SlotID,
			"date", event.Date,
			"error", err,
		)
	}
}
