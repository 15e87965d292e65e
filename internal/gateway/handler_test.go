package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sokopay/sokopay/internal/commission"
	"github.com/sokopay/sokopay/internal/ledger"
	"github.com/sokopay/sokopay/internal/logging"
	"github.com/sokopay/sokopay/internal/order"
	"github.com/sokopay/sokopay/internal/settlement"
)

const testSecret = "whsec_test"

type webhookFixture struct {
	app    *fiber.App
	store  ledger.Store
	orders order.Repository
}

func newWebhookFixture(t *testing.T, cache *redis.Client) *webhookFixture {
	t.Helper()
	store := ledger.NewInMemory()
	orders := order.NewMemoryRepository()
	engine := settlement.NewEngine(store, orders, commission.NewCalculator(commission.DefaultRates()), StaticGateway{}, nil, logging.Discard())
	handler := NewHandler(engine, testSecret, cache, logging.Discard())

	app := fiber.New()
	app.Post("/webhooks/payment", handler.Webhook)
	app.Post("/payments/reconcile", func(c *fiber.Ctx) error {
		c.Locals("actor_role", c.Get("X-Actor-Role"))
		return handler.Reconcile(c)
	})

	return &webhookFixture{app: app, store: store, orders: orders}
}

func (f *webhookFixture) createAwaitingOrder(t *testing.T, amount string) order.Order {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	o := order.Order{
		ID:        uuid.NewString(),
		Vertical:  order.VerticalEcommerce,
		BuyerID:   uuid.NewString(),
		VendorID:  uuid.NewString(),
		Amount:    amt,
		Currency:  "NGN",
		Status:    order.StatusAwaitingPayment,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.orders.Create(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func webhookBody(t *testing.T, txRef, vertical, orderID, amount string) []byte {
	t.Helper()
	body := fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":%q,"amount":%s,"currency":"NGN","status":"success","meta":{"vertical":%q,"order_id":%q}}}`,
		txRef, amount, vertical, orderID)
	return []byte(body)
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, respBody
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, nil)
	o := f.createAwaitingOrder(t, "5000.00")
	body := webhookBody(t, "tx_1", string(o.Vertical), o.ID, "5000.00")

	if code, _ := postWebhook(t, f.app, body, ""); code != fiber.StatusUnauthorized {
		t.Fatalf("missing signature: expected 401, got %d", code)
	}
	if code, _ := postWebhook(t, f.app, body, Sign("wrong_secret", body)); code != fiber.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", code)
	}

	// Nothing reached the engine.
	current, _ := f.orders.Get(context.Background(), o.ID)
	if current.Status != order.StatusAwaitingPayment {
		t.Fatalf("rejected webhook mutated order: %s", current.Status)
	}
}

func TestWebhookSettlesOrder(t *testing.T) {
	f := newWebhookFixture(t, nil)
	o := f.createAwaitingOrder(t, "5000.00")
	body := webhookBody(t, "tx_1", string(o.Vertical), o.ID, "5000.00")

	code, _ := postWebhook(t, f.app, body, Sign(testSecret, body))
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	current, _ := f.orders.Get(context.Background(), o.ID)
	if current.Status != order.StatusPaid {
		t.Fatalf("expected paid, got %s", current.Status)
	}
}

func TestWebhookUnroutableMetadataAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, nil)
	body := webhookBody(t, "tx_1", "ecommerce", "", "5000.00")

	code, respBody := postWebhook(t, f.app, body, Sign(testSecret, body))
	if code != fiber.StatusOK {
		t.Fatalf("unroutable events must be acknowledged, got %d", code)
	}
	if !bytes.Contains(respBody, []byte("ignored")) {
		t.Fatalf("expected ignored outcome, got %s", respBody)
	}
}

func TestWebhookFailedStatusAcknowledgedWithoutSettlement(t *testing.T) {
	f := newWebhookFixture(t, nil)
	o := f.createAwaitingOrder(t, "5000.00")
	body := []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":"tx_1","amount":5000.00,"currency":"NGN","status":"failed","meta":{"vertical":"ecommerce","order_id":%q}}}`, o.ID))

	code, _ := postWebhook(t, f.app, body, Sign(testSecret, body))
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	current, _ := f.orders.Get(context.Background(), o.ID)
	if current.Status != order.StatusAwaitingPayment {
		t.Fatalf("failed event mutated order: %s", current.Status)
	}
}

func TestWebhookRedeliveryShortCircuitsViaRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	f := newWebhookFixture(t, cache)
	o := f.createAwaitingOrder(t, "5000.00")
	body := webhookBody(t, "tx_1", string(o.Vertical), o.ID, "5000.00")
	sig := Sign(testSecret, body)

	if code, _ := postWebhook(t, f.app, body, sig); code != fiber.StatusOK {
		t.Fatalf("first delivery: %d", code)
	}
	code, respBody := postWebhook(t, f.app, body, sig)
	if code != fiber.StatusOK {
		t.Fatalf("redelivery: %d", code)
	}
	if !bytes.Contains(respBody, []byte("already_processed")) {
		t.Fatalf("expected already_processed, got %s", respBody)
	}
}

func TestReconcileRequiresAdminAndSettles(t *testing.T) {
	f := newWebhookFixture(t, nil)
	o := f.createAwaitingOrder(t, "5000.00")
	payload := fmt.Sprintf(`{"tx_ref":"tx_manual","vertical":"ecommerce","order_id":%q,"amount":"5000.00","currency":"NGN"}`, o.ID)

	req := httptest.NewRequest(fiber.MethodPost, "/payments/reconcile", bytes.NewReader([]byte(payload)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 without admin role, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodPost, "/payments/reconcile", bytes.NewReader([]byte(payload)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Actor-Role", "admin")
	resp, err = f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	current, _ := f.orders.Get(context.Background(), o.ID)
	if current.Status != order.StatusPaid {
		t.Fatalf("expected paid after reconcile, got %s", current.Status)
	}
}
