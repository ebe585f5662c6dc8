package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// TicketService coordinates ticket workflows. Every call takes the acting
// user explicitly and is checked against the authorization policy before
// the store is touched.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	InitialNote string
}

// NoteInput describes a note to append.
type NoteInput struct {
	Text        string
	Attachments []domain.Attachment
}

// TicketListFilter describes listing filters. CustomerID narrows staff
// listings to one owner and is ignored for customers.
type TicketListFilter struct {
	CustomerID string
	Statuses   []domain.TicketStatus
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// CreateTicket opens a ticket owned by the actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (ticket *domain.Ticket, err error) {
	defer s.observe("create_ticket", &err)

	draft := &domain.Ticket{CustomerID: actor.ID}
	if decision := auth.Decide(actor, auth.ActionCreateTicket, draft); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	initial := domain.Note{Text: input.InitialNote, CreatedBy: actor.ID}
	ticket, err = s.tickets.Create(ctx, input.Title, actor.ID, initial)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// ListTickets returns the tickets visible to the actor, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if decision := auth.Decide(actor, auth.ActionListTickets, nil); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": string(status)})
		}
	}
	scope := auth.ListScope(actor)
	if scope == nil && filter.CustomerID != "" {
		scope = &filter.CustomerID
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		CustomerID: scope,
		Statuses:   filter.Statuses,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a single ticket the actor may read.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.authorizedTicket(ctx, actor, auth.ActionGetTicket, ticketID)
}

// AppendNote adds a note to the ticket thread. Closed tickets reject notes
// from every role.
func (s *TicketService) AppendNote(ctx context.Context, actor domain.Actor, ticketID string, input NoteInput) (ticket *domain.Ticket, err error) {
	defer s.observe("append_note", &err)

	current, err := s.authorizedTicket(ctx, actor, auth.ActionAppendNote, ticketID)
	if err != nil {
		return nil, err
	}
	if !current.Status.AcceptsNotes() {
		return nil, closedTicket(current.ID)
	}

	note := domain.Note{
		Text:        input.Text,
		Attachments: input.Attachments,
		CreatedBy:   actor.ID,
	}
	ticket, err = s.tickets.AppendNote(ctx, ticketID, note)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidState) {
			return nil, closedTicket(ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	added := ticket.Notes[len(ticket.Notes)-1]
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketNoteAdded,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketNoteAddedPayload{
			NoteID:          added.ID,
			AuthorID:        added.CreatedBy,
			AttachmentCount: len(added.Attachments),
			TextPreview:     stringPreview(added.Text, 120),
		},
	})
	return ticket, nil
}

// SetStatus moves a ticket to status. Only staff may change status.
func (s *TicketService) SetStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (ticket *domain.Ticket, err error) {
	defer s.observe("set_status", &err)

	// Status rights do not depend on the ticket, so deny before looking it up.
	if decision := auth.Decide(actor, auth.ActionSetStatus, nil); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status": "must be one of Active, Pending, Closed",
		})
	}

	ticket, previous, err := s.tickets.SetStatus(ctx, ticketID, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: previous,
			NewStatus: ticket.Status,
		},
	})
	return ticket, nil
}

// People resolves the owners and note authors of tickets for display.
func (s *TicketService) People(ctx context.Context, tickets ...*domain.Ticket) (People, error) {
	return resolvePeople(ctx, s.users, tickets...)
}

// authorizedTicket loads a ticket and applies the policy. Customers get
// Forbidden for tickets that do not exist, the same as for foreign tickets.
func (s *TicketService) authorizedTicket(ctx context.Context, actor domain.Actor, action auth.Action, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) && !actor.Role.IsStaff() {
			return nil, apperrors.NewForbidden(auth.ReasonForbidden)
		}
		return nil, apperrors.MapError(err)
	}
	if decision := auth.Decide(actor, action, ticket); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}
	return ticket, nil
}

func (s *TicketService) observe(operation string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = apperrors.ToDomainError(*errp).Code
	}
	s.metrics.RecordTicketOperation(operation, outcome)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func closedTicket(ticketID string) error {
	return apperrors.NewInvalidState("notes cannot be added to a closed ticket", map[string]any{
		"id":     ticketID,
		"status": string(domain.TicketStatusClosed),
	})
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
