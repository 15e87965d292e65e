package middleware

import (
	"github.com/gofiber/fiber/v2"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"
)

// Actor resolves the authenticated principal from the upstream gateway's
// identity headers and stashes it in request locals. Requests without an
// identity pass through; handlers that require one reject them.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := c.Get(actorIDHeader); id != "" {
			c.Locals("actor_id", id)
		}
		role := c.Get(actorRoleHeader)
		if role == "" {
			role = "buyer"
		}
		c.Locals("actor_role", role)

		return c.Next()
	}
}

// RequireRole rejects requests whose resolved role is not in the allow list.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("actor_role").(string)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient role")
	}
}
