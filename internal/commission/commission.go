// Package commission computes the platform's cut of a settled order.
package commission

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownVertical indicates no rate is configured for the vertical.
	// Settlement must block on this rather than default to 0%.
	ErrUnknownVertical = errors.New("unknown commission vertical")

	// ErrInvalidAmount indicates a non-positive gross amount.
	ErrInvalidAmount = errors.New("gross amount must be positive")
)

// Rates maps a vertical name to its commission percentage.
type Rates map[string]decimal.Decimal

// DefaultRates returns the built-in rate table. Config may override
// individual entries at process start.
func DefaultRates() Rates {
	return Rates{
		"ride_hailing":      decimal.NewFromInt(5),
		"food_delivery":     decimal.NewFromInt(5),
		"apartment_booking": decimal.NewFromInt(10),
		"ecommerce":         decimal.NewFromInt(5),
		"services":          decimal.NewFromInt(10),
	}
}

// Calculator splits gross order amounts between the platform and the vendor.
// The rate table is read-only after construction.
type Calculator struct {
	rates Rates
}

// NewCalculator builds a calculator over the provided rate table.
func NewCalculator(rates Rates) *Calculator {
	copied := make(Rates, len(rates))
	for vertical, rate := range rates {
		copied[vertical] = rate
	}
	return &Calculator{rates: copied}
}

var oneHundred = decimal.NewFromInt(100)

// Split divides gross into the platform cut and the vendor share. The cut is
// rounded half-up to 2 decimal places and the share is derived by
// subtraction, so the two always sum to gross exactly.
func (c *Calculator) Split(vertical string, gross decimal.Decimal) (platformCut, vendorShare decimal.Decimal, err error) {
	rate, ok := c.rates[vertical]
	if !ok {
		return decimal.Zero, decimal.Zero, ErrUnknownVertical
	}
	if !gross.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}

	platformCut = gross.Mul(rate).Div(oneHundred).Round(2)
	vendorShare = gross.Sub(platformCut)
	return platformCut, vendorShare, nil
}

// Rate reports the configured percentage for a vertical.
func (c *Calculator) Rate(vertical string) (decimal.Decimal, error) {
	rate, ok := c.rates[vertical]
	if !ok {
		return decimal.Zero, ErrUnknownVertical
	}
	return rate, nil
}
