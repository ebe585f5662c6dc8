package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
)

// ActivityService writes an activity log line for every ticket and user event.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("activity"),
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketNoteAdded, a.handleTicketNoteAdded)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
	a.dispatcher.Subscribe(events.EventUserRoleChanged, a.handleUserRoleChanged)
}

func (a *ActivityService) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	a.logger.Info("TicketCreated", append(eventFields(event),
		zap.String("customer_id", payload.CustomerID),
		zap.String("title", payload.Title))...)
	return nil
}

func (a *ActivityService) handleTicketNoteAdded(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketNoteAddedPayload)
	a.logger.Info("TicketNoteAdded", append(eventFields(event),
		zap.String("note_id", payload.NoteID),
		zap.Int("attachments", payload.AttachmentCount),
		zap.String("preview", payload.TextPreview))...)
	return nil
}

func (a *ActivityService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	a.logger.Info("TicketStatusChanged", append(eventFields(event),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))...)
	return nil
}

func (a *ActivityService) handleUserRoleChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.UserRoleChangedPayload)
	a.logger.Info("UserRoleChanged", append(eventFields(event),
		zap.String("user_id", payload.UserID),
		zap.String("old_role", string(payload.OldRole)),
		zap.String("new_role", string(payload.NewRole)))...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
	}
}
