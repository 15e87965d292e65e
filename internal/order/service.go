package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSettlingTransition rejects transitions with ledger side effects on
	// the generic transition API; those must go through the settlement
	// engine.
	ErrSettlingTransition = errors.New("transition moves funds and must go through settlement")

	// ErrInvalidAmount indicates a non-positive order amount.
	ErrInvalidAmount = errors.New("order amount must be positive")

	// ErrNotParticipant indicates the actor is neither a party to the order
	// nor privileged.
	ErrNotParticipant = errors.New("actor is not a party to this order")
)

// Service owns order creation and the non-settling status transitions.
type Service struct {
	repo Repository
}

// NewService builds an order service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to open an order.
type CreateInput struct {
	Vertical Vertical
	BuyerID  string
	VendorID string
	Amount   decimal.Decimal
	Currency string
}

// Create opens an order in the vertical's initial status.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	initial, err := InitialStatus(input.Vertical)
	if err != nil {
		return Order{}, err
	}
	if !input.Amount.IsPositive() {
		return Order{}, ErrInvalidAmount
	}
	if input.BuyerID == "" || input.VendorID == "" {
		return Order{}, errors.New("buyer and vendor are required")
	}

	now := time.Now().UTC()
	o := Order{
		ID:        uuid.NewString(),
		Vertical:  input.Vertical,
		BuyerID:   input.BuyerID,
		VendorID:  input.VendorID,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Status:    initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Get retrieves an order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.Get(ctx, id)
}

// Transition applies a non-settling status change requested by a party to
// the order (vendor acceptance, cancellation, dispute, fulfilment progress).
func (s *Service) Transition(ctx context.Context, id string, to Status, actorID, actorRole string) (Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}

	if actorRole != "admin" && actorRole != "system" && actorID != o.BuyerID && actorID != o.VendorID {
		return Order{}, ErrNotParticipant
	}

	if IsSettling(o.Vertical, o.Status, to) {
		return Order{}, ErrSettlingTransition
	}

	return s.repo.TransitionStatus(ctx, id, o.Status, to, Stamp{})
}

// ListFor returns the orders visible to the actor.
func (s *Service) ListFor(ctx context.Context, actorID, actorRole string) ([]Order, error) {
	if actorRole == "vendor" {
		return s.repo.ListByVendor(ctx, actorID)
	}
	return s.repo.ListByBuyer(ctx, actorID)
}
