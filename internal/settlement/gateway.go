package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sokopay/sokopay/internal/order"
)

// Customer identifies the paying buyer to the gateway.
type Customer struct {
	Email string
	Name  string
}

// ChargeRequest asks the gateway to host a payment for an order.
type ChargeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Customer    Customer
	Vertical    order.Vertical
	OrderID     string
	RedirectURL string
}

// Charge is the gateway's answer: a hosted payment link plus the reference
// the asynchronous payment event will later carry.
type Charge struct {
	Reference   string
	PaymentLink string
}

// Gateway represents the external payment processor. Calls happen outside of
// any ledger transaction; a failed call leaves orders and wallets untouched.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
}
