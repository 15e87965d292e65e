package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/settlement"
)

// RegisterSettlementRoutes wires the fund-moving order operations. These are
// vertical-scoped so a caller cannot settle an order under the wrong policy.
func RegisterSettlementRoutes(r fiber.Router, h *settlement.Handler) {
	scoped := r.Group("/:vertical/orders/:id")
	scoped.Post("/pay", h.Pay)
	scoped.Post("/complete", h.Complete)
	scoped.Post("/refund", h.Refund)
}
