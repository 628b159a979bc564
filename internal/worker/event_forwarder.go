package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/events"
)

// StartEventForwarder subscribes handler to every lifecycle event. Handler
// errors are logged and swallowed so a broker outage never fails a case write.
func StartEventForwarder(dispatcher events.Dispatcher, handler events.EventHandler, logger *zap.Logger) {
	if dispatcher == nil || handler == nil {
		return
	}
	for _, eventType := range events.EventTypes {
		dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			if err := handler(ctx, event); err != nil {
				logger.Warn("event forwarding failed",
					zap.String("event_id", event.ID),
					zap.String("event", string(event.Type)),
					zap.String("case_id", event.CaseID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	logger.Info("event forwarder started", zap.Int("event_types", len(events.EventTypes)))
}
