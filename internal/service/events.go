package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
)

type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// publish hands a committed change to subscribers. Failures are logged only;
// the case change is already durable.
func (p eventPublisher) publish(ctx context.Context, actor *domain.User, c *domain.Case, eventType events.EventType, payload any) {
	if p.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    c.ID,
		CaseCode:  c.Code,
		Actor:     events.Actor{UserID: actor.ID, Role: actor.Role},
		Timestamp: c.UpdatedAt,
		Payload:   payload,
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event publication failed",
			zap.String("event", string(eventType)),
			zap.String("case_id", c.ID),
			zap.Error(err),
		)
	}
}
