package service

import (
	"context"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// RecentTicketLimit is how many tickets the dashboard lists.
const RecentTicketLimit = 5

// DashboardStats aggregates ticket and user counts.
type DashboardStats struct {
	TotalTickets   int
	ActiveTickets  int
	PendingTickets int
	ClosedTickets  int
	TotalCustomers int
	TotalAgents    int
	TotalAdmins    int
}

// RecentTicket is a ticket with its owner denormalized.
type RecentTicket struct {
	Ticket        domain.Ticket
	CustomerName  string
	CustomerEmail string
}

// Dashboard is the admin overview.
type Dashboard struct {
	Stats         DashboardStats
	RecentTickets []RecentTicket
	People        People
}

// DashboardService computes the admin overview on every call. The counts
// are read independently and need not describe a single instant.
type DashboardService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
}

// NewDashboardService constructs the service.
func NewDashboardService(tickets repository.TicketRepository, users repository.UserRepository) *DashboardService {
	return &DashboardService{tickets: tickets, users: users}
}

// Dashboard returns stats and the most recently updated tickets.
func (s *DashboardService) Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	if decision := auth.Decide(actor, auth.ActionViewDashboard, nil); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	ticketCounts, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	roleCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := DashboardStats{
		ActiveTickets:  ticketCounts[domain.TicketStatusActive],
		PendingTickets: ticketCounts[domain.TicketStatusPending],
		ClosedTickets:  ticketCounts[domain.TicketStatusClosed],
		TotalCustomers: roleCounts[domain.RoleCustomer],
		TotalAgents:    roleCounts[domain.RoleAgent],
		TotalAdmins:    roleCounts[domain.RoleAdmin],
	}
	for _, n := range ticketCounts {
		stats.TotalTickets += n
	}

	recent, err := s.tickets.List(ctx, repository.TicketFilter{Limit: RecentTicketLimit})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	refs := make([]*domain.Ticket, len(recent))
	for i := range recent {
		refs[i] = &recent[i]
	}
	people, err := resolvePeople(ctx, s.users, refs...)
	if err != nil {
		return nil, err
	}
	items := make([]RecentTicket, 0, len(recent))
	for _, ticket := range recent {
		owner := people.Get(ticket.CustomerID)
		items = append(items, RecentTicket{
			Ticket:        ticket,
			CustomerName:  owner.Name,
			CustomerEmail: owner.Email,
		})
	}

	return &Dashboard{Stats: stats, RecentTickets: items, People: people}, nil
}
