package auth

import (
	"github.com/spec-kit/support-desk/internal/domain"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionListTickets   Action = "list-tickets"
	ActionGetTicket     Action = "get-ticket"
	ActionCreateTicket  Action = "create-ticket"
	ActionAppendNote    Action = "append-note"
	ActionSetStatus     Action = "set-status"
	ActionManageRoles   Action = "manage-roles"
	ActionViewDashboard Action = "view-dashboard"
)

// Deny reasons.
const (
	ReasonForbidden   = "Forbidden"
	ReasonUnknownRole = "unknown role"
	ReasonNotOwner    = "ticket belongs to another customer"
	ReasonStaffOnly   = "support staff only"
	ReasonAdminOnly   = "administrators only"
	ReasonNoTicket    = "ticket required"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Decide reports whether actor may perform action. ticket is the target for
// get-ticket, append-note and set-status, and the draft for create-ticket;
// it is ignored otherwise. Decide has no side effects.
func Decide(actor domain.Actor, action Action, ticket *domain.Ticket) Decision {
	switch actor.Role {
	case domain.RoleAdmin:
		return allow()
	case domain.RoleAgent:
		return decideAgent(actor, action, ticket)
	case domain.RoleCustomer:
		return decideCustomer(actor, action, ticket)
	default:
		return deny(ReasonUnknownRole)
	}
}

func decideAgent(actor domain.Actor, action Action, ticket *domain.Ticket) Decision {
	switch action {
	case ActionListTickets, ActionGetTicket, ActionAppendNote, ActionSetStatus:
		return allow()
	case ActionCreateTicket:
		return ownTicket(actor, ticket)
	case ActionViewDashboard, ActionManageRoles:
		return deny(ReasonAdminOnly)
	default:
		return deny(ReasonForbidden)
	}
}

func decideCustomer(actor domain.Actor, action Action, ticket *domain.Ticket) Decision {
	switch action {
	case ActionListTickets:
		// Always allowed; ListScope narrows the result to the actor's tickets.
		return allow()
	case ActionCreateTicket, ActionGetTicket, ActionAppendNote:
		return ownTicket(actor, ticket)
	case ActionSetStatus:
		return deny(ReasonStaffOnly)
	case ActionViewDashboard, ActionManageRoles:
		return deny(ReasonAdminOnly)
	default:
		return deny(ReasonForbidden)
	}
}

func ownTicket(actor domain.Actor, ticket *domain.Ticket) Decision {
	if ticket == nil {
		return deny(ReasonNoTicket)
	}
	if ticket.CustomerID != actor.ID {
		return deny(ReasonForbidden)
	}
	return allow()
}

// ListScope returns the customer id a ticket listing must be restricted to,
// or nil when the actor may see every ticket.
func ListScope(actor domain.Actor) *string {
	if actor.Role.IsStaff() {
		return nil
	}
	id := actor.ID
	return &id
}
