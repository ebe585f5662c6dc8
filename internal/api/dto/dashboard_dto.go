package dto

import "github.com/spec-kit/support-desk/internal/service"

// DashboardStats counts.
type DashboardStats struct {
	TotalTickets   int `json:"totalTickets"`
	ActiveTickets  int `json:"activeTickets"`
	PendingTickets int `json:"pendingTickets"`
	ClosedTickets  int `json:"closedTickets"`
	TotalCustomers int `json:"totalCustomers"`
	TotalAgents    int `json:"totalAgents"`
	TotalAdmins    int `json:"totalAdmins"`
}

// RecentTicket is a summary with the owner's contact details.
type RecentTicket struct {
	TicketSummary
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

// DashboardResponse is the body of GET /dashboard.
type DashboardResponse struct {
	Stats         DashboardStats `json:"stats"`
	RecentTickets []RecentTicket `json:"recentTickets"`
}

// NewDashboardResponse maps the aggregate.
func NewDashboardResponse(d *service.Dashboard) DashboardResponse {
	recent := make([]RecentTicket, 0, len(d.RecentTickets))
	for i := range d.RecentTickets {
		item := d.RecentTickets[i]
		recent = append(recent, RecentTicket{
			TicketSummary: NewTicketSummary(&item.Ticket, d.People),
			CustomerName:  item.CustomerName,
			CustomerEmail: item.CustomerEmail,
		})
	}
	return DashboardResponse{
		Stats:         DashboardStats(d.Stats),
		RecentTickets: recent,
	}
}
