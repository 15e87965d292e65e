package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sokopay/sokopay/internal/order"
)

// Handler exposes the settling operations over HTTP: payment initiation,
// completion confirmation and refunds. Payment confirmation itself arrives
// through the webhook handler, not here.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a settlement handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func actorFrom(c *fiber.Ctx) Actor {
	id, _ := c.Locals("actor_id").(string)
	role, _ := c.Locals("actor_role").(string)
	return Actor{ID: id, Role: Role(role)}
}

type payRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	RedirectURL string `json:"redirect_url"`
}

// Pay asks the gateway to host a charge for the order.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	vertical, err := order.ParseVertical(c.Params("vertical"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unknown vertical")
	}

	charge, err := h.engine.InitiatePayment(c.UserContext(), vertical, c.Params("id"), Customer{
		Email: req.Email,
		Name:  req.Name,
	}, req.RedirectURL)
	if err != nil {
		return settlementError(err)
	}

	return c.JSON(fiber.Map{
		"reference":    charge.Reference,
		"payment_link": charge.PaymentLink,
	})
}

// Complete confirms fulfilment and releases the vendor share from escrow.
func (h *Handler) Complete(c *fiber.Ctx) error {
	vertical, err := order.ParseVertical(c.Params("vertical"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unknown vertical")
	}

	o, err := h.engine.ConfirmCompletion(c.UserContext(), vertical, c.Params("id"), actorFrom(c))
	if err != nil {
		return settlementError(err)
	}
	return c.JSON(settledResponse(o))
}

// Refund releases the escrowed gross back toward the buyer.
func (h *Handler) Refund(c *fiber.Ctx) error {
	vertical, err := order.ParseVertical(c.Params("vertical"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unknown vertical")
	}

	o, err := h.engine.Refund(c.UserContext(), vertical, c.Params("id"), actorFrom(c))
	if err != nil {
		return settlementError(err)
	}
	return c.JSON(settledResponse(o))
}

func settlementError(err error) error {
	var illegal *order.IllegalTransitionError
	switch {
	case errors.Is(err, order.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrNotAllowed):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.As(err, &illegal):
		return fiber.NewError(http.StatusUnprocessableEntity, illegal.Error())
	case errors.Is(err, order.ErrStaleStatus):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEscrowInsufficient):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func settledResponse(o order.Order) fiber.Map {
	return fiber.Map{
		"id":           o.ID,
		"vertical":     o.Vertical,
		"status":       o.Status,
		"amount":       o.Amount.StringFixed(2),
		"currency":     o.Currency,
		"completed_at": o.CompletedAt,
		"updated_at":   o.UpdatedAt,
	}
}
