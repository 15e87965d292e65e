package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func amt(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse amount %q: %v", value, err)
	}
	return d
}

func TestGetOrCreateWalletIsIdempotent(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	first, err := store.GetOrCreateWallet(ctx, "user:42", "NGN")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	second, err := store.GetOrCreateWallet(ctx, "user:42", "NGN")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one wallet for owner, got %s and %s", first.ID, second.ID)
	}
	if !second.Balance.IsZero() {
		t.Fatalf("expected zero starting balance, got %s", second.Balance)
	}
}

func TestCreditThenDuplicateReference(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w, _ := store.GetOrCreateWallet(ctx, "user:1", "NGN")

	tx, err := store.Credit(ctx, w.ID, amt(t, "250.00"), "tx_ref_1", Metadata{EntityType: "ecommerce", EntityID: "o1", Purpose: "escrow_funding"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	replay, err := store.Credit(ctx, w.ID, amt(t, "250.00"), "tx_ref_1", Metadata{})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if replay.ID != tx.ID {
		t.Fatalf("expected original transaction back on replay")
	}

	balance, _ := store.Balance(ctx, w.ID)
	if !balance.Equal(amt(t, "250.00")) {
		t.Fatalf("expected balance 250.00 after replay, got %s", balance)
	}
}

func TestDebitInsufficientBalanceLeavesBalanceUnchanged(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w, _ := store.GetOrCreateWallet(ctx, "user:1", "NGN")
	SeedBalance(store, w.ID, amt(t, "100.00"))

	if _, err := store.Debit(ctx, w.ID, amt(t, "100.01"), "ref_over", Metadata{}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, _ := store.Balance(ctx, w.ID)
	if !balance.Equal(amt(t, "100.00")) {
		t.Fatalf("balance changed on failed debit: %s", balance)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w, _ := store.GetOrCreateWallet(ctx, "user:1", "NGN")

	if _, err := store.Debit(ctx, w.ID, decimal.Zero, "ref_zero", Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferMovesBothLegsAtomically(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	platform, _ := store.GetOrCreateWallet(ctx, PlatformOwnerKey, "NGN")
	vendor, _ := store.GetOrCreateWallet(ctx, "vendor:9", "NGN")
	SeedBalance(store, platform.ID, amt(t, "5000.00"))

	res, err := store.Transfer(ctx, platform.ID, vendor.ID, amt(t, "4750.00"), "order_77", Metadata{EntityType: "ecommerce", EntityID: "77", Purpose: "vendor_payout"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.FromBalance.Equal(amt(t, "250.00")) || !res.ToBalance.Equal(amt(t, "4750.00")) {
		t.Fatalf("unexpected balances: from=%s to=%s", res.FromBalance, res.ToBalance)
	}
	if res.Debit.Direction != DirectionDebit || res.Credit.Direction != DirectionCredit {
		t.Fatalf("unexpected legs: %+v", res)
	}

	// Replay reports the original legs and moves nothing.
	if _, err := store.Transfer(ctx, platform.ID, vendor.ID, amt(t, "4750.00"), "order_77", Metadata{}); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference on replay, got %v", err)
	}
	balance, _ := store.Balance(ctx, vendor.ID)
	if !balance.Equal(amt(t, "4750.00")) {
		t.Fatalf("replay changed vendor balance: %s", balance)
	}
}

func TestTransferInsufficientBalanceMovesNothing(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	platform, _ := store.GetOrCreateWallet(ctx, PlatformOwnerKey, "NGN")
	vendor, _ := store.GetOrCreateWallet(ctx, "vendor:9", "NGN")
	SeedBalance(store, platform.ID, amt(t, "1000.00"))

	if _, err := store.Transfer(ctx, platform.ID, vendor.ID, amt(t, "3000.00"), "order_88", Metadata{}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	fromBal, _ := store.Balance(ctx, platform.ID)
	toBal, _ := store.Balance(ctx, vendor.ID)
	if !fromBal.Equal(amt(t, "1000.00")) || !toBal.IsZero() {
		t.Fatalf("failed transfer mutated balances: from=%s to=%s", fromBal, toBal)
	}
}

func TestConcurrentCreditsWithSameReferenceApplyOnce(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w, _ := store.GetOrCreateWallet(ctx, "user:1", "NGN")

	amount := amt(t, "500.00")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Credit(ctx, w.ID, amount, "tx_ref_race", Metadata{})
		}()
	}
	wg.Wait()

	balance, _ := store.Balance(ctx, w.ID)
	if !balance.Equal(amt(t, "500.00")) {
		t.Fatalf("expected single credit under concurrency, got balance %s", balance)
	}

	entries, _ := store.TransactionsForWallet(ctx, w.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(entries))
	}
}

func TestTransactionsForWalletNewestFirst(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w, _ := store.GetOrCreateWallet(ctx, "user:1", "NGN")
	_, _ = store.Credit(ctx, w.ID, amt(t, "10.00"), "ref_a", Metadata{})
	_, _ = store.Credit(ctx, w.ID, amt(t, "20.00"), "ref_b", Metadata{})

	entries, err := store.TransactionsForWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ExternalRef != "ref_b" {
		t.Fatalf("expected newest-first listing, got %+v", entries)
	}
}
