// Package order models the payable entities of every marketplace vertical
// and the status state machine that gates fund movement.
package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrStaleStatus indicates a compare-and-swap transition lost to a
	// concurrent writer: the order is no longer in the expected status.
	ErrStaleStatus = errors.New("order status changed concurrently")

	// ErrUnknownVertical indicates a vertical with no registered lifecycle.
	ErrUnknownVertical = errors.New("unknown order vertical")
)

// Vertical identifies a business line with its own order lifecycle.
type Vertical string

const (
	VerticalApartmentBooking Vertical = "apartment_booking"
	VerticalServices         Vertical = "services"
	VerticalEcommerce        Vertical = "ecommerce"
	VerticalFoodDelivery     Vertical = "food_delivery"
)

// Verticals lists every vertical with a payable-entity lifecycle.
func Verticals() []Vertical {
	return []Vertical{VerticalApartmentBooking, VerticalServices, VerticalEcommerce, VerticalFoodDelivery}
}

// ParseVertical validates a vertical name from an external source.
func ParseVertical(name string) (Vertical, error) {
	v := Vertical(name)
	if _, ok := transitions[v]; !ok {
		return "", ErrUnknownVertical
	}
	return v, nil
}

// Status is an order lifecycle state. Each vertical uses its own subset.
type Status string

const (
	// Apartment bookings.
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"

	// Service orders.
	StatusPendingVendorResponse Status = "pending_vendor_response"
	StatusAwaitingPayment       Status = "awaiting_payment"
	StatusDeclined              Status = "declined"
	StatusVendorBusy            Status = "vendor_busy"

	// E-commerce orders.
	StatusPendingVendor Status = "pending_vendor"
	StatusShipped       Status = "shipped"

	// Food orders.
	StatusPendingPayment Status = "pending_payment"
	StatusAwaitingVendor Status = "awaiting_vendor"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusAssigned       Status = "assigned"
	StatusPickedUp       Status = "picked_up"
	StatusOnTheWay       Status = "on_the_way"

	// Shared across verticals.
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
)

// Order is the shared shape of a payable entity. Status is mutated
// exclusively through Repository.TransitionStatus; orders are never deleted.
type Order struct {
	ID          string
	Vertical    Vertical
	BuyerID     string
	VendorID    string
	Amount      decimal.Decimal
	Currency    string
	Status      Status
	PaymentRef  string
	PaidAt      *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
