package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/gateway"
	"github.com/sokopay/sokopay/internal/middleware"
)

// RegisterGatewayRoutes wires the payment processor boundary: the signed
// webhook plus the operator reconcile endpoint.
func RegisterGatewayRoutes(r fiber.Router, h *gateway.Handler) {
	payments := r.Group("/payments")
	payments.Post("/webhook", h.Webhook)
	payments.Post("/reconcile", middleware.RequireRole("admin"), h.Reconcile)
}
