package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive  TicketStatus = "Active"
	TicketStatusPending TicketStatus = "Pending"
	TicketStatusClosed  TicketStatus = "Closed"
)

// TicketStatuses lists every valid status in display order.
var TicketStatuses = []TicketStatus{TicketStatusActive, TicketStatusPending, TicketStatusClosed}

// Valid reports whether s is one of the enumerated statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusActive, TicketStatusPending, TicketStatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether a ticket may move from s to next.
// Every status is reachable from every other, including itself; Closed is not terminal.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	return s.Valid() && next.Valid()
}

// AcceptsNotes reports whether notes may be appended in this status.
func (s TicketStatus) AcceptsNotes() bool {
	return s != TicketStatusClosed
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID         string
	Title      string
	Status     TicketStatus
	CustomerID string
	Notes      []Note
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTicket builds a validated Active ticket with its initial note.
func NewTicket(id, title, customerID string, initial Note, now time.Time) (*Ticket, error) {
	title = strings.TrimSpace(title)
	fields := map[string]any{}
	if title == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(customerID) == "" {
		fields["customer"] = "required"
	}
	if strings.TrimSpace(initial.Text) == "" {
		fields["initialNote"] = "required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	now = Timestamp(now)
	initial.Text = strings.TrimSpace(initial.Text)
	initial.CreatedBy = customerID
	initial.CreatedAt = now
	return &Ticket{
		ID:         id,
		Title:      title,
		Status:     TicketStatusActive,
		CustomerID: customerID,
		Notes:      []Note{initial},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Touch advances UpdatedAt to now, or one tick past the previous value when
// the clock has not moved, and returns the value written.
func (t *Ticket) Touch(now time.Time) time.Time {
	next := Timestamp(now)
	if !next.After(t.UpdatedAt) {
		next = t.UpdatedAt.Add(TimestampPrecision)
	}
	t.UpdatedAt = next
	return next
}

// AppendNote validates note and appends it, stamping both the note and the ticket.
// The ticket is left untouched when an error is returned.
func (t *Ticket) AppendNote(note Note, now time.Time) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if !t.Status.AcceptsNotes() {
		return ErrTicketClosed
	}
	note.Text = strings.TrimSpace(note.Text)
	note.CreatedAt = t.Touch(now)
	t.Notes = append(t.Notes, note)
	return nil
}

// SetStatus assigns status and bumps UpdatedAt, even when the status is unchanged.
func (t *Ticket) SetStatus(status TicketStatus, now time.Time) error {
	if !t.Status.CanTransition(status) {
		return &ValidationError{Fields: map[string]any{"status": "must be one of Active, Pending, Closed"}}
	}
	t.Status = status
	t.Touch(now)
	return nil
}

// Clone returns a deep copy safe to hand out of a store.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Notes = make([]Note, len(t.Notes))
	for i, n := range t.Notes {
		n.Attachments = append([]Attachment(nil), n.Attachments...)
		out.Notes[i] = n
	}
	return &out
}

// TimestampPrecision is the resolution ticket timestamps are stored at.
const TimestampPrecision = time.Microsecond

// Timestamp normalizes t to UTC at storage precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampPrecision)
}
