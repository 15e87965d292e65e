package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/sokopay/sokopay/internal/settlement"
)

// StaticGateway simulates a successful payment processor integration. Used in
// development and tests; real deployments swap in an HTTP-backed connector.
type StaticGateway struct {
	BaseURL string
}

// CreateCharge approves the charge with a synthetic reference and a hosted
// payment link.
func (g StaticGateway) CreateCharge(_ context.Context, _ settlement.ChargeRequest) (settlement.Charge, error) {
	ref := "chg_" + uuid.NewString()
	base := g.BaseURL
	if base == "" {
		base = "https://checkout.example"
	}
	return settlement.Charge{Reference: ref, PaymentLink: base + "/" + ref}, nil
}
