package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sokopay/sokopay/internal/order"
	"github.com/sokopay/sokopay/internal/settlement"
)

const (
	dedupPrefix = "webhook:v1:"
	dedupTTL    = 48 * time.Hour
)

// Handler receives payment events from the gateway and from operators.
type Handler struct {
	engine *settlement.Engine
	secret string
	cache  *redis.Client
	logger *slog.Logger
}

// NewHandler constructs the payment event handler.
func NewHandler(engine *settlement.Engine, secret string, cache *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, secret: secret, cache: cache, logger: logger}
}

// Webhook handles the signed asynchronous callback from the payment gateway.
// Unroutable events are acknowledged with 200 so the gateway stops retrying.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	body := c.Body()

	if !VerifySignature(h.secret, body, c.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected")
		return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed payload")
	}

	if payload.Data.Status != eventStatusSuccess {
		h.logger.Info("non-success payment event acknowledged", "tx_ref", payload.Data.TxRef, "status", payload.Data.Status)
		return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": settlement.OutcomeIgnored})
	}

	vertical, err := order.ParseVertical(payload.Data.Meta.Vertical)
	if err != nil || payload.Data.Meta.OrderID == "" {
		h.logger.Warn("webhook with unroutable metadata", "tx_ref", payload.Data.TxRef, "vertical", payload.Data.Meta.Vertical)
		return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": settlement.OutcomeIgnored})
	}

	if replay := h.markDelivery(c.UserContext(), payload.Data.TxRef); replay {
		return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": settlement.OutcomeAlreadyProcessed})
	}

	outcome, err := h.engine.OnPaymentConfirmed(c.UserContext(), settlement.PaymentEvent{
		GatewayRef: payload.Data.TxRef,
		Vertical:   vertical,
		OrderID:    payload.Data.Meta.OrderID,
		Amount:     payload.Data.Amount,
		Currency:   payload.Data.Currency,
	})
	if err != nil {
		h.clearDelivery(payload.Data.TxRef)
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": outcome})
}

type reconcileRequest struct {
	TxRef    string          `json:"tx_ref"`
	Vertical string          `json:"vertical"`
	OrderID  string          `json:"order_id"`
	Amount   json.RawMessage `json:"amount"`
	Currency string          `json:"currency"`
}

// Reconcile is the authenticated manual retrigger for operators. It funnels
// through the exact entry point the webhook uses, so no idempotency check is
// bypassed.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	role, _ := c.Locals("actor_role").(string)
	if role != string(settlement.RoleAdmin) {
		return fiber.NewError(http.StatusForbidden, "admin only")
	}

	var req reconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	vertical, err := order.ParseVertical(req.Vertical)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unknown vertical")
	}

	var data webhookData
	if err := json.Unmarshal(req.Amount, &data.Amount); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}

	outcome, err := h.engine.OnPaymentConfirmed(c.UserContext(), settlement.PaymentEvent{
		GatewayRef: req.TxRef,
		Vertical:   vertical,
		OrderID:    req.OrderID,
		Amount:     data.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": outcome})
}

// markDelivery reserves the gateway reference in Redis so byte-identical
// redeliveries short-circuit cheaply. The engine's status and ledger guards
// remain the source of truth; a cache miss or failure just falls through.
func (h *Handler) markDelivery(ctx context.Context, txRef string) bool {
	if h.cache == nil || txRef == "" {
		return false
	}
	reserveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ok, err := h.cache.SetNX(reserveCtx, dedupPrefix+txRef, "1", dedupTTL).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("webhook dedup lookup failed", "tx_ref", txRef, "error", err)
		}
		return false
	}
	return !ok
}

func (h *Handler) clearDelivery(txRef string) {
	if h.cache == nil || txRef == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.cache.Del(cleanupCtx, dedupPrefix+txRef) // best effort cleanup
}
