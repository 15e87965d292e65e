package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/ledger"
)

// Handler exposes wallet endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Me returns (creating on first use) the caller's wallet.
func (h *Handler) Me(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	role, _ := c.Locals("actor_role").(string)
	if actorID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing actor")
	}

	w, err := h.service.GetOrCreate(c.UserContext(), OwnerKey(role, actorID))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(walletResponse(w))
}

// Statement returns the caller's wallet with its transaction history.
func (h *Handler) Statement(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	role, _ := c.Locals("actor_role").(string)
	if actorID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing actor")
	}

	w, entries, err := h.service.Statement(c.UserContext(), OwnerKey(role, actorID))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, tx := range entries {
		items = append(items, fiber.Map{
			"id":           tx.ID,
			"direction":    tx.Direction,
			"amount":       tx.Amount.StringFixed(2),
			"external_ref": tx.ExternalRef,
			"status":       tx.Status,
			"entity_type":  tx.Meta.EntityType,
			"entity_id":    tx.Meta.EntityID,
			"purpose":      tx.Meta.Purpose,
			"created_at":   tx.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"wallet":       walletResponse(w),
		"transactions": items,
	})
}

func walletResponse(w ledger.Wallet) fiber.Map {
	return fiber.Map{
		"id":         w.ID,
		"owner_key":  w.OwnerKey,
		"currency":   w.Currency,
		"balance":    w.Balance.StringFixed(2),
		"created_at": w.CreatedAt,
	}
}
