package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

var (
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
)

const (
	lockTicketSQL   = `SELECT id, title, status, customer_id, created_at, updated_at FROM tickets WHERE id=\$1 FOR UPDATE`
	loadTicketSQL   = `SELECT id, title, status, customer_id, created_at, updated_at FROM tickets WHERE id=\$1`
	nextSeqSQL      = `SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM ticket_notes WHERE ticket_id=\$1`
	loadNotesSQL    = `FROM ticket_notes WHERE ticket_id = ANY\(\$1\) ORDER BY ticket_id, seq ASC`
	loadAttachSQL   = `FROM note_attachments WHERE note_id = ANY\(\$1\) ORDER BY note_id, position ASC`
	insertNoteSQL   = `INSERT INTO ticket_notes \(id, ticket_id, seq, text, created_by, created_at\)`
	insertAttachSQL = `INSERT INTO note_attachments \(note_id, position, filename, reference, media_type\)`
)

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func ticketRows(tickets ...domain.Ticket) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "title", "status", "customer_id", "created_at", "updated_at"})
	for _, ticket := range tickets {
		rows.AddRow(ticket.ID, ticket.Title, ticket.Status, ticket.CustomerID, ticket.CreatedAt, ticket.UpdatedAt)
	}
	return rows
}

func noteRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "ticket_id", "text", "created_by", "created_at"})
}

func attachmentRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"note_id", "filename", "reference", "media_type"})
}

// expectCommit covers the commit pgx.BeginFunc issues and the rollback it
// defers, which pgx ignores once the transaction is closed.
func expectCommit(mock pgxmock.PgxPoolIface) {
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)
}

// expectRollback covers the explicit and the deferred rollback of a failed
// pgx.BeginFunc.
func expectRollback(mock pgxmock.PgxPoolIface) {
	mock.ExpectRollback().Times(2)
}

func TestPostgresTicketCreateInsertsFirstNote(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t0))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets \(id, title, status, customer_id, created_at, updated_at\)`).
		WithArgs(pgxmock.AnyArg(), "Printer", domain.TicketStatusActive, "c1", t0, t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertNoteSQL).
		WithArgs("n1", pgxmock.AnyArg(), 1, "jammed", "c1", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectCommit(mock)

	ticket, err := repo.Create(context.Background(), " Printer ", "c1", domain.Note{ID: "n1", Text: " jammed "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.Status != domain.TicketStatusActive || ticket.Title != "Printer" || len(ticket.Notes) != 1 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestPostgresTicketAppendToClosedTicket(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t2))
	closed := domain.Ticket{ID: "t1", Title: "Refund", Status: domain.TicketStatusClosed, CustomerID: "c1", CreatedAt: t0, UpdatedAt: t1}

	mock.ExpectBegin()
	mock.ExpectQuery(lockTicketSQL).WithArgs("t1").WillReturnRows(ticketRows(closed))
	expectRollback(mock)

	_, err := repo.AppendNote(context.Background(), "t1", domain.Note{Text: "hello?", CreatedBy: "c1"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestPostgresTicketAppendRoundTrip(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t2))
	locked := domain.Ticket{ID: "t1", Title: "Crash", Status: domain.TicketStatusPending, CustomerID: "c1", CreatedAt: t0, UpdatedAt: t1}
	reloaded := locked
	reloaded.UpdatedAt = t2

	note := domain.Note{
		ID:        "n3",
		Text:      " logs attached ",
		CreatedBy: "a1",
		Attachments: []domain.Attachment{
			{Filename: "app.log", Reference: "attachments/1/app.log", MediaType: "text/plain"},
			{Filename: "shot.png", Reference: "attachments/2/shot.png", MediaType: "image/png"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(lockTicketSQL).WithArgs("t1").WillReturnRows(ticketRows(locked))
	mock.ExpectQuery(nextSeqSQL).WithArgs("t1").WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(3))
	mock.ExpectExec(insertNoteSQL).
		WithArgs("n3", "t1", 3, "logs attached", "a1", t2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertAttachSQL).
		WithArgs("n3", 0, "app.log", "attachments/1/app.log", "text/plain").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertAttachSQL).
		WithArgs("n3", 1, "shot.png", "attachments/2/shot.png", "image/png").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE tickets SET updated_at=\$1 WHERE id=\$2`).
		WithArgs(t2, "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(loadTicketSQL).WithArgs("t1").WillReturnRows(ticketRows(reloaded))
	mock.ExpectQuery(loadNotesSQL).WithArgs([]string{"t1"}).WillReturnRows(noteRows().
		AddRow("n1", "t1", "Crash on start", "c1", t0).
		AddRow("n2", "t1", "Which version?", "a1", t1).
		AddRow("n3", "t1", "logs attached", "a1", t2))
	mock.ExpectQuery(loadAttachSQL).WithArgs([]string{"n1", "n2", "n3"}).WillReturnRows(attachmentRows().
		AddRow("n1", "first.txt", "attachments/0/first.txt", "text/plain").
		AddRow("n3", "app.log", "attachments/1/app.log", "text/plain").
		AddRow("n3", "shot.png", "attachments/2/shot.png", "image/png"))
	expectCommit(mock)

	got, err := repo.AppendNote(context.Background(), "t1", note)
	if err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if !got.UpdatedAt.Equal(t2) || got.Status != domain.TicketStatusPending {
		t.Fatalf("unexpected ticket %+v", got)
	}

	wantNotes := []struct {
		id          string
		createdBy   string
		attachments []string
	}{
		{id: "n1", createdBy: "c1", attachments: []string{"first.txt"}},
		{id: "n2", createdBy: "a1"},
		{id: "n3", createdBy: "a1", attachments: []string{"app.log", "shot.png"}},
	}
	if len(got.Notes) != len(wantNotes) {
		t.Fatalf("expected %d notes, got %d", len(wantNotes), len(got.Notes))
	}
	for i, want := range wantNotes {
		n := got.Notes[i]
		if n.ID != want.id || n.CreatedBy != want.createdBy {
			t.Fatalf("note %d = %s by %s, want %s by %s", i, n.ID, n.CreatedBy, want.id, want.createdBy)
		}
		if len(n.Attachments) != len(want.attachments) {
			t.Fatalf("note %s has %d attachments, want %d", n.ID, len(n.Attachments), len(want.attachments))
		}
		for j, filename := range want.attachments {
			if n.Attachments[j].Filename != filename {
				t.Fatalf("note %s attachment %d = %s, want %s", n.ID, j, n.Attachments[j].Filename, filename)
			}
		}
	}
}

func TestPostgresTicketMissing(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock pgxmock.PgxPoolIface)
		call   func(repo TicketRepository) error
	}{
		{
			name: "get",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(loadTicketSQL).WithArgs("missing").WillReturnRows(ticketRows())
			},
			call: func(repo TicketRepository) error {
				_, err := repo.GetByID(context.Background(), "missing")
				return err
			},
		},
		{
			name: "append",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockTicketSQL).WithArgs("missing").WillReturnRows(ticketRows())
				expectRollback(mock)
			},
			call: func(repo TicketRepository) error {
				_, err := repo.AppendNote(context.Background(), "missing", domain.Note{Text: "hi", CreatedBy: "a1"})
				return err
			},
		},
		{
			name: "set status",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockTicketSQL).WithArgs("missing").WillReturnRows(ticketRows())
				expectRollback(mock)
			},
			call: func(repo TicketRepository) error {
				_, _, err := repo.SetStatus(context.Background(), "missing", domain.TicketStatusClosed)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			tt.expect(mock)
			err := tt.call(NewTicketRepository(mock, fixedClock(t2)))
			if !apperrors.HasCode(err, apperrors.CodeNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestPostgresTicketSetStatusReturnsPrevious(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t2))
	locked := domain.Ticket{ID: "t1", Title: "Crash", Status: domain.TicketStatusActive, CustomerID: "c1", CreatedAt: t0, UpdatedAt: t1}
	reloaded := locked
	reloaded.Status = domain.TicketStatusClosed
	reloaded.UpdatedAt = t2

	mock.ExpectBegin()
	mock.ExpectQuery(lockTicketSQL).WithArgs("t1").WillReturnRows(ticketRows(locked))
	mock.ExpectExec(`UPDATE tickets SET status=\$1, updated_at=\$2 WHERE id=\$3`).
		WithArgs(domain.TicketStatusClosed, t2, "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(loadTicketSQL).WithArgs("t1").WillReturnRows(ticketRows(reloaded))
	mock.ExpectQuery(loadNotesSQL).WithArgs([]string{"t1"}).WillReturnRows(noteRows().
		AddRow("n1", "t1", "Crash on start", "c1", t0))
	mock.ExpectQuery(loadAttachSQL).WithArgs([]string{"n1"}).WillReturnRows(attachmentRows())
	expectCommit(mock)

	got, previous, err := repo.SetStatus(context.Background(), "t1", domain.TicketStatusClosed)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if previous != domain.TicketStatusActive || got.Status != domain.TicketStatusClosed {
		t.Fatalf("previous %s, now %s", previous, got.Status)
	}
	if len(got.Notes) != 1 || got.Notes[0].Attachments != nil {
		t.Fatalf("unexpected notes %+v", got.Notes)
	}
}

func TestPostgresTicketSetStatusRejectsUnknownStatus(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t2))

	if _, _, err := repo.SetStatus(context.Background(), "t1", "Resolved"); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostgresTicketListQuery(t *testing.T) {
	customer := "c1"
	tests := []struct {
		name   string
		filter TicketFilter
		sql    string
		args   []any
	}{
		{
			name:   "unfiltered",
			filter: TicketFilter{},
			sql:    `SELECT id, title, status, customer_id, created_at, updated_at FROM tickets WHERE 1=1 ORDER BY updated_at DESC, created_at ASC`,
		},
		{
			name: "scoped page",
			filter: TicketFilter{
				CustomerID: &customer,
				Statuses:   []domain.TicketStatus{domain.TicketStatusActive, domain.TicketStatusPending},
				Limit:      10,
				Offset:     20,
			},
			sql: `SELECT id, title, status, customer_id, created_at, updated_at FROM tickets WHERE 1=1 AND customer_id=$1 AND status IN ($2,$3) ` +
				`ORDER BY updated_at DESC, created_at ASC LIMIT 10 OFFSET 20`,
			args: []any{"c1", domain.TicketStatusActive, domain.TicketStatusPending},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			repo := NewTicketRepository(mock, fixedClock(t2))
			newer := domain.Ticket{ID: "t2", Title: "b", Status: domain.TicketStatusActive, CustomerID: "c1", CreatedAt: t1, UpdatedAt: t2}
			older := domain.Ticket{ID: "t1", Title: "a", Status: domain.TicketStatusPending, CustomerID: "c1", CreatedAt: t0, UpdatedAt: t1}

			query := mock.ExpectQuery("^" + regexp.QuoteMeta(tt.sql) + "$")
			if len(tt.args) > 0 {
				query.WithArgs(tt.args...)
			}
			query.WillReturnRows(ticketRows(newer, older))
			mock.ExpectQuery(loadNotesSQL).WithArgs([]string{"t2", "t1"}).WillReturnRows(noteRows().
				AddRow("n1", "t1", "first", "c1", t0).
				AddRow("n2", "t2", "second", "c1", t1))
			mock.ExpectQuery(loadAttachSQL).WithArgs([]string{"n1", "n2"}).WillReturnRows(attachmentRows())

			got, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 || got[0].ID != "t2" || got[1].ID != "t1" {
				t.Fatalf("unexpected order %v", ticketIDs(got))
			}
			if len(got[0].Notes) != 1 || got[0].Notes[0].ID != "n2" || got[1].Notes[0].ID != "n1" {
				t.Fatal("notes attached to the wrong tickets")
			}
		})
	}
}

func TestPostgresTicketCountByStatus(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock, fixedClock(t2))

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM tickets GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(domain.TicketStatusActive, 4).
			AddRow(domain.TicketStatusClosed, 1))

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[domain.TicketStatusActive] != 4 || counts[domain.TicketStatusClosed] != 1 || counts[domain.TicketStatusPending] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
