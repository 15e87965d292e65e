// Package settlement orchestrates fund movement tied to order lifecycle
// events. It is the only component allowed to call ledger mutations in
// connection with an order, and every operation is safe to replay: the order
// status compare-and-swap is the first idempotency line, the ledger's
// external-reference guard the second.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokopay/sokopay/internal/commission"
	"github.com/sokopay/sokopay/internal/ledger"
	"github.com/sokopay/sokopay/internal/notification"
	"github.com/sokopay/sokopay/internal/order"
)

var (
	// ErrEscrowInsufficient indicates the platform escrow wallet cannot cover
	// a payout or refund. This points at a bookkeeping defect upstream and is
	// surfaced as a fatal, manually resolved condition.
	ErrEscrowInsufficient = errors.New("platform escrow balance insufficient")

	// ErrNotAllowed indicates the actor may not trigger the operation.
	ErrNotAllowed = errors.New("actor not allowed")
)

// Role classifies who is invoking a settlement operation.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor is the authenticated principal behind a request.
type Actor struct {
	ID   string
	Role Role
}

// PaymentEvent is a normalized payment-success notification from the gateway
// boundary. GatewayRef doubles as the ledger idempotency key for escrow
// funding.
type PaymentEvent struct {
	GatewayRef string
	Vertical   order.Vertical
	OrderID    string
	Amount     decimal.Decimal
	Currency   string
}

// Outcome reports what a settlement operation did.
type Outcome string

const (
	OutcomeSettled          Outcome = "settled"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// escrowPolicy determines when buyer funds enter the platform wallet.
type escrowPolicy int

const (
	// escrowFullGross: the full gross amount is credited to the platform
	// wallet when the order is paid; the vendor share leaves it on
	// completion.
	escrowFullGross escrowPolicy = iota
	// escrowDeferred: the gateway holds the gross until fulfilment; vendor
	// share and commission are both credited on completion. Apartment
	// bookings settle this way.
	escrowDeferred
)

func policyFor(v order.Vertical) escrowPolicy {
	if v == order.VerticalApartmentBooking {
		return escrowDeferred
	}
	return escrowFullGross
}

// initiationStatus maps each vertical to the status payment initiation
// requires. Bookings additionally move pending -> processing once the charge
// is created.
var initiationStatus = map[order.Vertical]order.Status{
	order.VerticalApartmentBooking: order.StatusPending,
	order.VerticalServices:         order.StatusAwaitingPayment,
	order.VerticalEcommerce:        order.StatusAwaitingPayment,
	order.VerticalFoodDelivery:     order.StatusPendingPayment,
}

// Engine performs escrow settlement against the ledger and the order state
// machine.
type Engine struct {
	store    ledger.Store
	orders   order.Repository
	calc     *commission.Calculator
	gateway  Gateway
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewEngine wires the settlement engine.
func NewEngine(store ledger.Store, orders order.Repository, calc *commission.Calculator, gateway Gateway, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{store: store, orders: orders, calc: calc, gateway: gateway, notifier: notifier, logger: logger}
}

// InitiatePayment asks the gateway to host a charge for the order and records
// the returned reference as the order's pending payment marker. A gateway
// failure leaves the order untouched and the call retryable.
func (e *Engine) InitiatePayment(ctx context.Context, vertical order.Vertical, orderID string, customer Customer, redirectURL string) (Charge, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return Charge{}, err
	}
	if o.Vertical != vertical {
		return Charge{}, order.ErrNotFound
	}

	required := initiationStatus[o.Vertical]
	if o.Status != required {
		// Bookings stay initiable while the payment is in flight.
		if !(o.Vertical == order.VerticalApartmentBooking && o.Status == order.StatusProcessing) {
			return Charge{}, &order.IllegalTransitionError{Vertical: o.Vertical, From: o.Status, To: required}
		}
	}

	charge, err := e.gateway.CreateCharge(ctx, ChargeRequest{
		Amount:      o.Amount,
		Currency:    o.Currency,
		Customer:    customer,
		Vertical:    o.Vertical,
		OrderID:     o.ID,
		RedirectURL: redirectURL,
	})
	if err != nil {
		return Charge{}, fmt.Errorf("create charge: %w", err)
	}

	if o.Vertical == order.VerticalApartmentBooking && o.Status == order.StatusPending {
		if _, err := e.orders.TransitionStatus(ctx, o.ID, order.StatusPending, order.StatusProcessing, order.Stamp{}); err != nil && !errors.Is(err, order.ErrStaleStatus) {
			return Charge{}, err
		}
	}

	if err := e.orders.SetPaymentRef(ctx, o.ID, charge.Reference); err != nil {
		return Charge{}, err
	}
	return charge, nil
}

// OnPaymentConfirmed handles a verified payment-success event. Unroutable or
// out-of-order events are logged and ignored so webhook redeliveries are
// never retried forever. The ledger credit runs before the status swap: a
// replay that lost the status race still hits the external-reference guard
// and moves nothing.
func (e *Engine) OnPaymentConfirmed(ctx context.Context, ev PaymentEvent) (Outcome, error) {
	if ev.OrderID == "" || ev.GatewayRef == "" {
		e.logger.Warn("unroutable payment event", "gateway_ref", ev.GatewayRef)
		return OutcomeIgnored, nil
	}

	o, err := e.orders.Get(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			e.logger.Warn("payment event for unknown order", "order_id", ev.OrderID, "gateway_ref", ev.GatewayRef)
			return OutcomeIgnored, nil
		}
		return "", err
	}
	if o.Vertical != ev.Vertical {
		e.logger.Warn("payment event vertical mismatch", "order_id", o.ID, "want", o.Vertical, "got", ev.Vertical)
		return OutcomeIgnored, nil
	}
	if !ev.Amount.Equal(o.Amount) {
		e.logger.Error("payment event amount mismatch", "order_id", o.ID, "order_amount", o.Amount, "event_amount", ev.Amount)
		return OutcomeIgnored, nil
	}

	from, to := order.PaymentTransition(o.Vertical)
	if o.Status != from {
		if o.Status == to || o.PaidAt != nil {
			return OutcomeAlreadyProcessed, nil
		}
		e.logger.Warn("payment event arrived out of order", "order_id", o.ID, "status", o.Status)
		return OutcomeIgnored, nil
	}

	if policyFor(o.Vertical) == escrowFullGross {
		platform, err := e.store.GetOrCreateWallet(ctx, ledger.PlatformOwnerKey, o.Currency)
		if err != nil {
			return "", err
		}
		meta := ledger.Metadata{EntityType: string(o.Vertical), EntityID: o.ID, Purpose: "escrow_funding"}
		if _, err := e.store.Credit(ctx, platform.ID, o.Amount, ev.GatewayRef, meta); err != nil {
			if !errors.Is(err, ledger.ErrDuplicateReference) {
				return "", fmt.Errorf("escrow funding: %w", err)
			}
		}
	}

	now := time.Now().UTC()
	if _, err := e.orders.TransitionStatus(ctx, o.ID, from, to, order.Stamp{PaidAt: &now}); err != nil {
		if errors.Is(err, order.ErrStaleStatus) {
			// A concurrent delivery of the same event won the swap.
			return OutcomeAlreadyProcessed, nil
		}
		return "", err
	}

	if o.PaymentRef == "" {
		if err := e.orders.SetPaymentRef(ctx, o.ID, ev.GatewayRef); err != nil {
			e.logger.Warn("record payment ref", "order_id", o.ID, "error", err)
		}
	}

	e.logger.Info("payment settled", "order_id", o.ID, "vertical", o.Vertical, "gateway_ref", ev.GatewayRef)
	return OutcomeSettled, nil
}

// ConfirmCompletion releases escrow to the vendor and marks the order
// completed. Only the buyer, an admin, or the system (for delivery-confirmed
// food orders and apartment check-outs) may trigger it. A failed payout
// leaves the order in its prior status.
func (e *Engine) ConfirmCompletion(ctx context.Context, vertical order.Vertical, orderID string, actor Actor) (order.Order, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.Vertical != vertical {
		return order.Order{}, order.ErrNotFound
	}

	if err := e.authorizeCompletion(o, actor); err != nil {
		return order.Order{}, err
	}

	if o.Status == order.StatusCompleted {
		// Replayed confirmation: already processed.
		return o, nil
	}
	from := order.CompletionSource(o.Vertical)
	if o.Status != from {
		return order.Order{}, order.CheckTransition(o.Vertical, o.Status, order.StatusCompleted)
	}

	platformCut, vendorShare, err := e.calc.Split(string(o.Vertical), o.Amount)
	if err != nil {
		return order.Order{}, err
	}

	if err := e.payVendor(ctx, o, platformCut, vendorShare); err != nil {
		return order.Order{}, err
	}

	now := time.Now().UTC()
	updated, err := e.orders.TransitionStatus(ctx, o.ID, from, order.StatusCompleted, order.Stamp{CompletedAt: &now})
	if err != nil {
		if errors.Is(err, order.ErrStaleStatus) {
			current, getErr := e.orders.Get(ctx, o.ID)
			if getErr == nil && current.Status == order.StatusCompleted {
				return current, nil
			}
		}
		return order.Order{}, err
	}

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindVendorPayout,
			Destination: o.VendorID,
			Body:        fmt.Sprintf("You received %s for %s order %s", vendorShare.StringFixed(2), o.Vertical, o.ID),
		})
	}

	e.logger.Info("escrow released", "order_id", o.ID, "vertical", o.Vertical, "vendor_share", vendorShare, "platform_cut", platformCut)
	return updated, nil
}

// payVendor runs the vertical's payout policy. Every ledger call carries a
// deterministic reference, so a concurrent or replayed confirmation credits
// the vendor exactly once.
func (e *Engine) payVendor(ctx context.Context, o order.Order, platformCut, vendorShare decimal.Decimal) error {
	platform, err := e.store.GetOrCreateWallet(ctx, ledger.PlatformOwnerKey, o.Currency)
	if err != nil {
		return err
	}
	vendorWallet, err := e.store.GetOrCreateWallet(ctx, vendorOwnerKey(o.VendorID), o.Currency)
	if err != nil {
		return err
	}

	switch policyFor(o.Vertical) {
	case escrowFullGross:
		ref := payoutRef(o)
		meta := ledger.Metadata{EntityType: string(o.Vertical), EntityID: o.ID, Purpose: "vendor_payout"}
		if _, err := e.store.Transfer(ctx, platform.ID, vendorWallet.ID, vendorShare, ref, meta); err != nil {
			if errors.Is(err, ledger.ErrDuplicateReference) {
				return nil
			}
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				e.logger.Error("escrow cannot cover vendor payout", "order_id", o.ID, "vendor_share", vendorShare)
				return fmt.Errorf("%w: payout for order %s", ErrEscrowInsufficient, o.ID)
			}
			return err
		}
	case escrowDeferred:
		// The gateway held the gross until fulfilment; both parties are
		// credited now, commission included.
		ref := payoutRef(o)
		if _, err := e.store.Credit(ctx, vendorWallet.ID, vendorShare,
			ref, ledger.Metadata{EntityType: string(o.Vertical), EntityID: o.ID, Purpose: "vendor_payout"}); err != nil && !errors.Is(err, ledger.ErrDuplicateReference) {
			return err
		}
		if _, err := e.store.Credit(ctx, platform.ID, platformCut,
			ref, ledger.Metadata{EntityType: string(o.Vertical), EntityID: o.ID, Purpose: "commission"}); err != nil && !errors.Is(err, ledger.ErrDuplicateReference) {
			return err
		}
	}
	return nil
}

// Refund returns the full gross amount out of the platform wallet and marks
// the order refunded. Admin only; legal only from paid or disputed statuses.
func (e *Engine) Refund(ctx context.Context, vertical order.Vertical, orderID string, actor Actor) (order.Order, error) {
	if actor.Role != RoleAdmin {
		return order.Order{}, ErrNotAllowed
	}

	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.Vertical != vertical {
		return order.Order{}, order.ErrNotFound
	}

	if o.Status == order.StatusRefunded {
		return o, nil
	}
	if err := order.CheckTransition(o.Vertical, o.Status, order.StatusRefunded); err != nil {
		return order.Order{}, err
	}

	platform, err := e.store.GetOrCreateWallet(ctx, ledger.PlatformOwnerKey, o.Currency)
	if err != nil {
		return order.Order{}, err
	}

	ref := payoutRef(o) + "_refund"
	meta := ledger.Metadata{EntityType: string(o.Vertical), EntityID: o.ID, Purpose: "refund"}
	if _, err := e.store.Debit(ctx, platform.ID, o.Amount, ref, meta); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			e.logger.Error("escrow cannot cover refund", "order_id", o.ID, "amount", o.Amount)
			return order.Order{}, fmt.Errorf("%w: refund for order %s", ErrEscrowInsufficient, o.ID)
		}
		if !errors.Is(err, ledger.ErrDuplicateReference) {
			return order.Order{}, err
		}
	}

	updated, err := e.orders.TransitionStatus(ctx, o.ID, o.Status, order.StatusRefunded, order.Stamp{})
	if err != nil {
		if errors.Is(err, order.ErrStaleStatus) {
			current, getErr := e.orders.Get(ctx, o.ID)
			if getErr == nil && current.Status == order.StatusRefunded {
				return current, nil
			}
		}
		return order.Order{}, err
	}

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBuyerRefund,
			Destination: o.BuyerID,
			Body:        fmt.Sprintf("Your %s order %s was refunded %s", o.Vertical, o.ID, o.Amount.StringFixed(2)),
		})
	}

	e.logger.Info("order refunded", "order_id", o.ID, "vertical", o.Vertical, "amount", o.Amount)
	return updated, nil
}

func (e *Engine) authorizeCompletion(o order.Order, actor Actor) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSystem:
		// Delivery confirmations may complete food orders and check-outs may
		// complete bookings without a buyer action.
		if o.Vertical == order.VerticalFoodDelivery || o.Vertical == order.VerticalApartmentBooking {
			return nil
		}
		return ErrNotAllowed
	case RoleBuyer:
		if actor.ID == o.BuyerID {
			return nil
		}
		return ErrNotAllowed
	default:
		return ErrNotAllowed
	}
}

func vendorOwnerKey(vendorID string) string {
	return "vendor:" + vendorID
}

// payoutRef builds the deterministic settlement reference for an order, e.g.
// booking_42 or ecommerce_42.
func payoutRef(o order.Order) string {
	if o.Vertical == order.VerticalApartmentBooking {
		return "booking_" + o.ID
	}
	return string(o.Vertical) + "_" + o.ID
}
