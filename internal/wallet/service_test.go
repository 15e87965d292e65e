package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokopay/sokopay/internal/ledger"
)

func TestGetOrCreateReturnsSameWallet(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, "NGN")

	ctx := context.Background()
	key := OwnerKey("buyer", uuid.NewString())

	first, err := svc.GetOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable wallet, got %s and %s", first.ID, second.ID)
	}
	if second.Currency != "NGN" {
		t.Fatalf("expected NGN wallet, got %s", second.Currency)
	}
}

func TestVendorAndBuyerWalletsAreSeparate(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, "NGN")
	ctx := context.Background()
	id := uuid.NewString()

	buyer, _ := svc.GetOrCreate(ctx, OwnerKey("buyer", id))
	vendor, _ := svc.GetOrCreate(ctx, OwnerKey("vendor", id))
	if buyer.ID == vendor.ID {
		t.Fatalf("vendor wallet must be distinct from buyer wallet")
	}
}

func TestStatementListsTransactions(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, "NGN")
	ctx := context.Background()
	key := OwnerKey("vendor", uuid.NewString())

	w, err := svc.GetOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := store.Credit(ctx, w.ID, decimal.NewFromInt(4750), "order_1", ledger.Metadata{Purpose: "vendor_payout"}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	got, entries, err := svc.Statement(ctx, key)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(4750)) {
		t.Fatalf("expected balance 4750, got %s", got.Balance)
	}
	if len(entries) != 1 || entries[0].ExternalRef != "order_1" {
		t.Fatalf("unexpected statement entries: %+v", entries)
	}
}
