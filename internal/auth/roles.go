package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// RequirePermission rejects requests whose actor the policy denies for action.
// Only use it for actions that do not depend on a ticket.
func RequirePermission(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if decision := Decide(actor, action, nil); !decision.Allowed {
			return apperrors.NewForbidden(decision.Reason)
		}
		return c.Next()
	}
}
