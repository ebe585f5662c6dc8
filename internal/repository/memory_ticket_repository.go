package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/ids"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

type ticketEntry struct {
	mu     sync.Mutex
	ticket *domain.Ticket
}

type memoryTicketRepository struct {
	mu      sync.RWMutex
	entries map[string]*ticketEntry
	order   []string
	clock   Clock
}

// NewMemoryTicketRepository returns a process-local ticket store.
// A nil clock uses time.Now.
func NewMemoryTicketRepository(clock Clock) TicketRepository {
	return &memoryTicketRepository{
		entries: make(map[string]*ticketEntry),
		clock:   clock,
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, title, customerID string, initial domain.Note) (*domain.Ticket, error) {
	if initial.ID == "" {
		initial.ID = ids.NewNoteID()
	}
	ticket, err := domain.NewTicket(ids.NewTicketID(), title, customerID, initial, r.clock.now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ticket.ID] = &ticketEntry{ticket: ticket}
	r.order = append(r.order, ticket.ID)
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) AppendNote(_ context.Context, ticketID string, note domain.Note) (*domain.Ticket, error) {
	entry, err := r.entry(ticketID)
	if err != nil {
		return nil, err
	}
	if note.ID == "" {
		note.ID = ids.NewNoteID()
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	// Mutate a copy so a rejected append leaves the stored ticket untouched.
	next := entry.ticket.Clone()
	if err := next.AppendNote(note, r.clock.now()); err != nil {
		return nil, err
	}
	entry.ticket = next
	return next.Clone(), nil
}

func (r *memoryTicketRepository) SetStatus(_ context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, domain.TicketStatus, error) {
	if !status.Valid() {
		return nil, "", invalidStatus(status)
	}
	entry, err := r.entry(ticketID)
	if err != nil {
		return nil, "", err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	previous := entry.ticket.Status
	if err := entry.ticket.SetStatus(status, r.clock.now()); err != nil {
		return nil, "", err
	}
	return entry.ticket.Clone(), previous, nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ticket.Clone(), nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	entries := make([]*ticketEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = struct{}{}
	}

	result := make([]domain.Ticket, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		ticket := entry.ticket.Clone()
		entry.mu.Unlock()

		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[ticket.Status]; !ok {
				continue
			}
		}
		result = append(result, *ticket)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *memoryTicketRepository) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	r.mu.RLock()
	entries := make([]*ticketEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	counts := make(map[domain.TicketStatus]int, len(domain.TicketStatuses))
	for _, entry := range entries {
		entry.mu.Lock()
		counts[entry.ticket.Status]++
		entry.mu.Unlock()
	}
	return counts, nil
}

func (r *memoryTicketRepository) entry(id string) (*ticketEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ticketNotFound(id)
	}
	return entry, nil
}

func paginate(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if offset > 0 {
		if offset >= len(tickets) {
			return []domain.Ticket{}
		}
		tickets = tickets[offset:]
	}
	if limit > 0 && limit < len(tickets) {
		tickets = tickets[:limit]
	}
	return tickets
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func invalidStatus(status domain.TicketStatus) error {
	return &domain.ValidationError{Fields: map[string]any{
		"status": "must be one of Active, Pending, Closed, got " + string(status),
	}}
}
