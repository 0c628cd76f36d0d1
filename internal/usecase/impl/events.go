package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "idlink/internal/delivery/context"
	"idlink/internal/domain/service"
)

// publishEvent sends a committed identity transition to subscribers.
// Publishing is best effort: the transition has already been committed, so failures are only logged.
func publishEvent(ctx context.Context, publisher service.EventPublisher, logger *slog.Logger, event *service.IdentityEvent) {
	if publisher == nil {
		return
	}

	event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	event.OccurredAt = time.Now().UTC()

	if err := publisher.PublishIdentityEvent(ctx, event); err != nil {
		logger.Warn("Failed to publish identity event",
			slog.String("type", string(event.Type)),
			slog.String("account_id", event.AccountID),
			slog.Any("error", err),
		)
	}
}
