package repository

import (
	"context"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	CustomerID *string
	Statuses   []domain.TicketStatus
	Limit      int
	Offset     int
}

// TicketRepository is the ticket store. It is the only writer of status,
// notes and updatedAt, and serializes mutations per ticket.
type TicketRepository interface {
	// Create stores a new Active ticket with its initial note.
	Create(ctx context.Context, title, customerID string, initial domain.Note) (*domain.Ticket, error)
	// AppendNote appends note to the ticket thread and bumps updatedAt.
	AppendNote(ctx context.Context, ticketID string, note domain.Note) (*domain.Ticket, error)
	// SetStatus assigns status and bumps updatedAt. The returned previous
	// status is read under the same lock as the write.
	SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, domain.TicketStatus, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns tickets ordered by updatedAt, newest first.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
}

// Clock supplies the current time to stores.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
