package commission

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return d
}

func TestSplitConservesGrossAmount(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	for _, gross := range []string{"100.00", "99.99", "0.01", "123456.78"} {
		g := dec(t, gross)
		cut, share, err := calc.Split("ecommerce", g)
		if err != nil {
			t.Fatalf("split %s: %v", gross, err)
		}
		if !cut.Add(share).Equal(g) {
			t.Fatalf("gross %s: cut %s + share %s != gross", gross, cut, share)
		}
	}
}

func TestSplitKnownScenarios(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	cut, share, err := calc.Split("apartment_booking", dec(t, "20000.00"))
	if err != nil {
		t.Fatalf("split booking: %v", err)
	}
	if !cut.Equal(dec(t, "2000.00")) || !share.Equal(dec(t, "18000.00")) {
		t.Fatalf("booking split: cut=%s share=%s", cut, share)
	}

	cut, share, err = calc.Split("ecommerce", dec(t, "5000.00"))
	if err != nil {
		t.Fatalf("split ecommerce: %v", err)
	}
	if !cut.Equal(dec(t, "250.00")) || !share.Equal(dec(t, "4750.00")) {
		t.Fatalf("ecommerce split: cut=%s share=%s", cut, share)
	}
}

func TestSplitRoundsCutHalfUp(t *testing.T) {
	calc := NewCalculator(Rates{"ecommerce": decimal.NewFromInt(5)})

	// 5% of 0.10 is 0.005, which rounds up to 0.01.
	cut, share, err := calc.Split("ecommerce", dec(t, "0.10"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !cut.Equal(dec(t, "0.01")) {
		t.Fatalf("expected cut 0.01, got %s", cut)
	}
	if !share.Equal(dec(t, "0.09")) {
		t.Fatalf("expected share 0.09, got %s", share)
	}
}

func TestSplitUnknownVertical(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	if _, _, err := calc.Split("time_travel", dec(t, "100.00")); !errors.Is(err, ErrUnknownVertical) {
		t.Fatalf("expected ErrUnknownVertical, got %v", err)
	}
}

func TestSplitRejectsNonPositiveGross(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	if _, _, err := calc.Split("ecommerce", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
