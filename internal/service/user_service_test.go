package service

import (
	"context"
	"testing"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin", domain.RoleAdmin)
	customer := f.addUser(t, "cust", domain.RoleCustomer)
	svc := NewUserService(f.users, f.dispatcher)

	var changed *events.UserRoleChangedPayload
	f.dispatcher.Subscribe(events.EventUserRoleChanged, func(_ context.Context, e events.Event) error {
		payload := e.Payload.(events.UserRoleChangedPayload)
		changed = &payload
		return nil
	})

	user, err := svc.UpdateRole(ctx, admin, customer.ID, domain.RoleAgent)
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if user.Role != domain.RoleAgent {
		t.Fatalf("expected agent, got %s", user.Role)
	}
	if changed == nil || changed.OldRole != domain.RoleCustomer || changed.NewRole != domain.RoleAgent {
		t.Fatalf("unexpected event payload %+v", changed)
	}

	stored, err := f.users.GetByID(ctx, customer.ID)
	if err != nil || stored.Role != domain.RoleAgent {
		t.Fatalf("role not persisted: %+v, %v", stored, err)
	}
}

func TestUpdateRoleErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin", domain.RoleAdmin)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	customer := f.addUser(t, "cust", domain.RoleCustomer)
	svc := NewUserService(f.users, nil)

	tests := []struct {
		name  string
		actor domain.Actor
		user  string
		role  domain.Role
		code  string
	}{
		{"agent denied", agent, customer.ID, domain.RoleAdmin, apperrors.CodeForbidden},
		{"customer denied", customer, customer.ID, domain.RoleAdmin, apperrors.CodeForbidden},
		{"unknown role", admin, customer.ID, "owner", apperrors.CodeValidation},
		{"unknown user", admin, "missing", domain.RoleAgent, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateRole(ctx, tt.actor, tt.user, tt.role)
			assertCode(t, err, tt.code)
		})
	}

	stored, _ := f.users.GetByID(ctx, customer.ID)
	if stored.Role != domain.RoleCustomer {
		t.Fatalf("rejected updates changed the role to %s", stored.Role)
	}
}

func TestListAndGetUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin", domain.RoleAdmin)
	customer := f.addUser(t, "cust", domain.RoleCustomer)
	svc := NewUserService(f.users, nil)

	users, err := svc.ListUsers(ctx, admin)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	user, err := svc.GetUser(ctx, admin, customer.ID)
	if err != nil || user.Name != "cust" {
		t.Fatalf("GetUser: %+v, %v", user, err)
	}

	_, err = svc.ListUsers(ctx, customer)
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = svc.GetUser(ctx, customer, admin.ID)
	assertCode(t, err, apperrors.CodeForbidden)
}
