package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	InitialNote string `json:"initialNote"`
}

// AppendNoteRequest is the JSON form of a note. Multipart requests carry the
// same fields as a text part and file parts.
type AppendNoteRequest struct {
	Text        string              `json:"text"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AttachmentPayload is attachment metadata in both directions.
type AttachmentPayload struct {
	Filename  string `json:"filename"`
	Reference string `json:"reference"`
	MediaType string `json:"mediaType"`
}

// CustomerRef identifies a ticket owner.
type CustomerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthorRef identifies who wrote a note.
type AuthorRef struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

func newCustomerRef(p service.Person) CustomerRef {
	return CustomerRef{ID: p.ID, Name: p.Name, Email: p.Email}
}

func newAuthorRef(p service.Person) AuthorRef {
	return AuthorRef{ID: p.ID, Name: p.Name, Role: p.Role}
}

// NoteResponse represents one thread entry.
type NoteResponse struct {
	ID          string              `json:"id"`
	Text        string              `json:"text"`
	Attachments []AttachmentPayload `json:"attachments"`
	CreatedBy   AuthorRef           `json:"createdBy"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// TicketResponse is the full ticket with its thread.
type TicketResponse struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Status    domain.TicketStatus `json:"status"`
	Customer  CustomerRef         `json:"customer"`
	Notes     []NoteResponse      `json:"notes"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// TicketSummary is a list entry.
type TicketSummary struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Status    domain.TicketStatus `json:"status"`
	Customer  CustomerRef         `json:"customer"`
	NoteCount int                 `json:"noteCount"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// NewTicketResponse maps a ticket for the wire, filling owner and author
// details from people.
func NewTicketResponse(ticket *domain.Ticket, people service.People) TicketResponse {
	notes := make([]NoteResponse, 0, len(ticket.Notes))
	for _, note := range ticket.Notes {
		attachments := make([]AttachmentPayload, 0, len(note.Attachments))
		for _, att := range note.Attachments {
			attachments = append(attachments, AttachmentPayload{
				Filename:  att.Filename,
				Reference: att.Reference,
				MediaType: att.MediaType,
			})
		}
		notes = append(notes, NoteResponse{
			ID:          note.ID,
			Text:        note.Text,
			Attachments: attachments,
			CreatedBy:   newAuthorRef(people.Get(note.CreatedBy)),
			CreatedAt:   note.CreatedAt,
		})
	}
	return TicketResponse{
		ID:        ticket.ID,
		Title:     ticket.Title,
		Status:    ticket.Status,
		Customer:  newCustomerRef(people.Get(ticket.CustomerID)),
		Notes:     notes,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

// NewTicketSummary maps a ticket list entry.
func NewTicketSummary(ticket *domain.Ticket, people service.People) TicketSummary {
	return TicketSummary{
		ID:        ticket.ID,
		Title:     ticket.Title,
		Status:    ticket.Status,
		Customer:  newCustomerRef(people.Get(ticket.CustomerID)),
		NoteCount: len(ticket.Notes),
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}
