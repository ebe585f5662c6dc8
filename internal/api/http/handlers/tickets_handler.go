package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/ids"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		InitialNote: req.InitialNote,
	})
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, ticket)
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	refs := make([]*domain.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
	}
	people, err := h.service.People(c.UserContext(), refs...)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range refs {
		items = append(items, dto.NewTicketSummary(ticket, people))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// AppendNote POST /tickets/:id/notes. Accepts multipart with a text part and
// attachments file parts, or a JSON body.
func (h *TicketsHandler) AppendNote(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	input, err := parseNoteInput(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.AppendNote(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, ticket)
}

// SetStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SetStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

func (h *TicketsHandler) respond(c *fiber.Ctx, status int, ticket *domain.Ticket) error {
	people, err := h.service.People(c.UserContext(), ticket)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, people)})
}

func parseNoteInput(c *fiber.Ctx) (service.NoteInput, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var req dto.AppendNoteRequest
		if err := c.BodyParser(&req); err != nil {
			return service.NoteInput{}, apperrors.NewValidationError("invalid payload", nil)
		}
		input := service.NoteInput{Text: req.Text}
		for _, att := range req.Attachments {
			input.Attachments = append(input.Attachments, domain.Attachment{
				Filename:  att.Filename,
				Reference: att.Reference,
				MediaType: att.MediaType,
			})
		}
		return input, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return service.NoteInput{}, apperrors.NewValidationError("invalid multipart payload", nil)
	}
	input := service.NoteInput{}
	if texts := form.Value["text"]; len(texts) > 0 {
		input.Text = texts[0]
	}
	for _, file := range form.File["attachments"] {
		mediaType := file.Header.Get(fiber.HeaderContentType)
		if mediaType == "" {
			mediaType = fiber.MIMEOctetStream
		}
		input.Attachments = append(input.Attachments, domain.Attachment{
			Filename:  file.Filename,
			Reference: ids.NewStorageReference(file.Filename),
			MediaType: mediaType,
		})
	}
	return input, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{CustomerID: strings.TrimSpace(c.Query("customer"))}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}
