// Package wallet exposes the stored-value API surface over the ledger store.
package wallet

import (
	"context"
	"fmt"

	"github.com/sokopay/sokopay/internal/ledger"
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	store    ledger.Store
	currency string
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, currency string) *Service {
	return &Service{store: store, currency: currency}
}

// OwnerKey derives the ledger owner key for an actor. Vendors hold a wallet
// separate from their buyer wallet.
func OwnerKey(role, id string) string {
	if role == "vendor" {
		return fmt.Sprintf("vendor:%s", id)
	}
	return fmt.Sprintf("user:%s", id)
}

// GetOrCreate provisions the actor's wallet on first use.
func (s *Service) GetOrCreate(ctx context.Context, ownerKey string) (ledger.Wallet, error) {
	return s.store.GetOrCreateWallet(ctx, ownerKey, s.currency)
}

// Statement returns the wallet together with its transaction history.
func (s *Service) Statement(ctx context.Context, ownerKey string) (ledger.Wallet, []ledger.Transaction, error) {
	w, err := s.store.GetOrCreateWallet(ctx, ownerKey, s.currency)
	if err != nil {
		return ledger.Wallet{}, nil, err
	}
	entries, err := s.store.TransactionsForWallet(ctx, w.ID)
	if err != nil {
		return ledger.Wallet{}, nil, err
	}
	return w, entries, nil
}
