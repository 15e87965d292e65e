package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/wallet"
)

// RegisterWalletRoutes wires the stored-value endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	wallets := r.Group("/wallets")
	wallets.Get("/me", h.Me)
	wallets.Get("/me/statement", h.Statement)
}
