package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/ids"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the connection surface the Postgres stores need. *pgxpool.Pool
// satisfies it.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ticketRepository struct {
	db    DB
	clock Clock
}

// NewTicketRepository returns a Postgres-backed ticket store.
func NewTicketRepository(db DB, clock Clock) TicketRepository {
	return &ticketRepository{db: db, clock: clock}
}

const ticketColumns = `id, title, status, customer_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, title, customerID string, initial domain.Note) (*domain.Ticket, error) {
	if initial.ID == "" {
		initial.ID = ids.NewNoteID()
	}
	ticket, err := domain.NewTicket(ids.NewTicketID(), title, customerID, initial, r.clock.now())
	if err != nil {
		return nil, err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO tickets (id, title, status, customer_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
		if _, err := tx.Exec(ctx, query,
			ticket.ID,
			ticket.Title,
			ticket.Status,
			ticket.CustomerID,
			ticket.CreatedAt,
			ticket.UpdatedAt,
		); err != nil {
			return err
		}
		return insertNote(ctx, tx, ticket.ID, 1, ticket.Notes[0])
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) AppendNote(ctx context.Context, ticketID string, note domain.Note) (*domain.Ticket, error) {
	if note.ID == "" {
		note.ID = ids.NewNoteID()
	}

	var result *domain.Ticket
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := ticket.AppendNote(note, r.clock.now()); err != nil {
			return err
		}
		appended := ticket.Notes[len(ticket.Notes)-1]

		var seq int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM ticket_notes WHERE ticket_id=$1`, ticketID,
		).Scan(&seq); err != nil {
			return err
		}
		if err := insertNote(ctx, tx, ticketID, seq, appended); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, ticket.UpdatedAt, ticketID); err != nil {
			return err
		}
		result, err = loadTicket(ctx, tx, ticketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ticketRepository) SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, domain.TicketStatus, error) {
	if !status.Valid() {
		return nil, "", invalidStatus(status)
	}

	var (
		result   *domain.Ticket
		previous domain.TicketStatus
	)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		previous = ticket.Status
		if err := ticket.SetStatus(status, r.clock.now()); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE tickets SET status=$1, updated_at=$2 WHERE id=$3`,
			ticket.Status, ticket.UpdatedAt, ticketID,
		); err != nil {
			return err
		}
		result, err = loadTicket(ctx, tx, ticketID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return result, previous, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return loadTicket(ctx, r.db, id)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, created_at ASC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := attachNotes(ctx, r.db, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int, len(domain.TicketStatuses))
	for rows.Next() {
		var status domain.TicketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func lockTicket(ctx context.Context, tx pgx.Tx, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(id)
	}
	return ticket, err
}

func loadTicket(ctx context.Context, q querier, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	tickets := []domain.Ticket{*ticket}
	if err := attachNotes(ctx, q, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Status,
		&ticket.CustomerID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func insertNote(ctx context.Context, q querier, ticketID string, seq int, note domain.Note) error {
	const query = `
        INSERT INTO ticket_notes (id, ticket_id, seq, text, created_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := q.Exec(ctx, query,
		note.ID,
		ticketID,
		seq,
		note.Text,
		note.CreatedBy,
		note.CreatedAt,
	); err != nil {
		return err
	}
	for i, att := range note.Attachments {
		const attQuery = `
            INSERT INTO note_attachments (note_id, position, filename, reference, media_type)
            VALUES ($1,$2,$3,$4,$5)`
		if _, err := q.Exec(ctx, attQuery, note.ID, i, att.Filename, att.Reference, att.MediaType); err != nil {
			return err
		}
	}
	return nil
}

// attachNotes loads the threads of tickets in two queries.
func attachNotes(ctx context.Context, q querier, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ticketIDs := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ticketIDs[i] = tickets[i].ID
		index[tickets[i].ID] = i
	}

	rows, err := q.Query(ctx, `
        SELECT id, ticket_id, text, created_by, created_at
        FROM ticket_notes WHERE ticket_id = ANY($1) ORDER BY ticket_id, seq ASC`, ticketIDs)
	if err != nil {
		return err
	}
	type noteRef struct{ ticket, note int }
	noteIndex := map[string]noteRef{}
	noteIDs := []string{}
	for rows.Next() {
		var note domain.Note
		var ticketID string
		if err := rows.Scan(&note.ID, &ticketID, &note.Text, &note.CreatedBy, &note.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		note.CreatedAt = note.CreatedAt.UTC()
		ti := index[ticketID]
		tickets[ti].Notes = append(tickets[ti].Notes, note)
		noteIndex[note.ID] = noteRef{ticket: ti, note: len(tickets[ti].Notes) - 1}
		noteIDs = append(noteIDs, note.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(noteIDs) == 0 {
		return nil
	}
	attRows, err := q.Query(ctx, `
        SELECT note_id, filename, reference, media_type
        FROM note_attachments WHERE note_id = ANY($1) ORDER BY note_id, position ASC`, noteIDs)
	if err != nil {
		return err
	}
	defer attRows.Close()
	for attRows.Next() {
		var noteID string
		var att domain.Attachment
		if err := attRows.Scan(&noteID, &att.Filename, &att.Reference, &att.MediaType); err != nil {
			return err
		}
		ref, ok := noteIndex[noteID]
		if !ok {
			continue
		}
		n := &tickets[ref.ticket].Notes[ref.note]
		n.Attachments = append(n.Attachments, att)
	}
	return attRows.Err()
}
