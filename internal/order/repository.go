package order

import (
	"context"
	"time"
)

// Stamp carries the lifecycle timestamps set alongside specific transitions.
type Stamp struct {
	PaidAt      *time.Time
	CompletedAt *time.Time
}

// Repository persists payable entities. TransitionStatus is the only write
// path for the status column: it validates the transition against the
// vertical's allow-list and applies it as a compare-and-swap on the current
// status, so two concurrent callers cannot both move the same order.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)

	// SetPaymentRef records the gateway charge reference as the order's
	// pending payment marker.
	SetPaymentRef(ctx context.Context, id, ref string) error

	// TransitionStatus applies from -> to atomically. It returns an
	// IllegalTransitionError when the pair is not in the allow-list and
	// ErrStaleStatus when the order is no longer in the expected status.
	TransitionStatus(ctx context.Context, id string, from, to Status, stamp Stamp) (Order, error)

	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
}
