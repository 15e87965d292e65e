package order

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes the order CRUD and non-settling transition endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Vertical string `json:"vertical"`
	VendorID string `json:"vendor_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Create opens a new order for the calling buyer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	buyerID, _ := c.Locals("actor_id").(string)
	if buyerID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing actor")
	}

	vertical, err := ParseVertical(req.Vertical)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unknown vertical")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}

	o, err := h.service.Create(c.UserContext(), CreateInput{
		Vertical: vertical,
		BuyerID:  buyerID,
		VendorID: req.VendorID,
		Amount:   amount,
		Currency: req.Currency,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(orderResponse(o))
}

// Get fetches a single order.
func (h *Handler) Get(c *fiber.Ctx) error {
	o, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "order not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(orderResponse(o))
}

// List returns the caller's orders.
func (h *Handler) List(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	role, _ := c.Locals("actor_role").(string)
	if actorID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing actor")
	}

	list, err := h.service.ListFor(c.UserContext(), actorID, role)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]fiber.Map, 0, len(list))
	for _, o := range list {
		items = append(items, orderResponse(o))
	}
	return c.JSON(fiber.Map{"orders": items})
}

type transitionRequest struct {
	To string `json:"to"`
}

// Transition applies a non-settling status change.
func (h *Handler) Transition(c *fiber.Ctx) error {
	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	actorID, _ := c.Locals("actor_id").(string)
	role, _ := c.Locals("actor_role").(string)

	o, err := h.service.Transition(c.UserContext(), c.Params("id"), Status(req.To), actorID, role)
	if err != nil {
		var illegal *IllegalTransitionError
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "order not found")
		case errors.Is(err, ErrNotParticipant):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrSettlingTransition):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &illegal):
			return fiber.NewError(http.StatusBadRequest, illegal.Error())
		case errors.Is(err, ErrStaleStatus):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(orderResponse(o))
}

func orderResponse(o Order) fiber.Map {
	return fiber.Map{
		"id":           o.ID,
		"vertical":     o.Vertical,
		"buyer_id":     o.BuyerID,
		"vendor_id":    o.VendorID,
		"amount":       o.Amount.StringFixed(2),
		"currency":     o.Currency,
		"status":       o.Status,
		"payment_ref":  o.PaymentRef,
		"paid_at":      o.PaidAt,
		"completed_at": o.CompletedAt,
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
	}
}
