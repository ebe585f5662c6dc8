package auth

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name   string
		actor  *domain.Actor
		action Action
		want   string
	}{
		{name: "anonymous", action: ActionViewDashboard, want: apperrors.CodeUnauthorized},
		{name: "agent on dashboard", actor: &domain.Actor{ID: "a1", Role: domain.RoleAgent}, action: ActionViewDashboard, want: apperrors.CodeForbidden},
		{name: "customer managing roles", actor: &domain.Actor{ID: "c1", Role: domain.RoleCustomer}, action: ActionManageRoles, want: apperrors.CodeForbidden},
		{name: "admin on dashboard", actor: &domain.Actor{ID: "root", Role: domain.RoleAdmin}, action: ActionViewDashboard, want: "ok"},
		{name: "admin managing roles", actor: &domain.Actor{ID: "root", Role: domain.RoleAdmin}, action: ActionManageRoles, want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					return c.SendString(apperrors.ToDomainError(err).Code)
				},
			})
			app.Get("/",
				func(c *fiber.Ctx) error {
					if tt.actor != nil {
						c.Locals(actorKey, *tt.actor)
					}
					return c.Next()
				},
				RequirePermission(tt.action),
				func(c *fiber.Ctx) error { return c.SendString("ok") },
			)

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.want {
				t.Fatalf("got %q, want %q", body, tt.want)
			}
		})
	}
}
