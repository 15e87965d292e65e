package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/order"
)

// RegisterOrderRoutes wires order creation, retrieval and the generic
// non-settling transition endpoint.
func RegisterOrderRoutes(r fiber.Router, h *order.Handler) {
	orders := r.Group("/orders")
	orders.Post("/", h.Create)
	orders.Get("/", h.List)
	orders.Get("/:id", h.Get)
	orders.Post("/:id/transition", h.Transition)
}
