package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu           sync.Mutex
	walletsByID  map[string]*Wallet
	walletsByKey map[string]string
	refs         map[string]Transaction
	transactions map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		walletsByID:  make(map[string]*Wallet),
		walletsByKey: make(map[string]string),
		refs:         make(map[string]Transaction),
		transactions: make(map[string][]Transaction),
	}
}

func refKey(walletID, externalRef string) string {
	return walletID + "|" + externalRef
}

func (s *inMemoryStore) GetOrCreateWallet(_ context.Context, ownerKey, currency string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.walletsByKey[ownerKey]; ok {
		return *s.walletsByID[id], nil
	}

	w := &Wallet{
		ID:        uuid.NewString(),
		OwnerKey:  ownerKey,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	s.walletsByID[w.ID] = w
	s.walletsByKey[ownerKey] = w.ID
	return *w, nil
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.walletsByID[walletID]
	if !ok {
		return decimal.Zero, ErrWalletNotFound
	}
	return w.Balance, nil
}

func (s *inMemoryStore) Credit(_ context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credit(walletID, amount, externalRef, meta)
}

func (s *inMemoryStore) Debit(_ context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debit(walletID, amount, externalRef, meta)
}

func (s *inMemoryStore) Transfer(_ context.Context, fromWalletID, toWalletID string, amount decimal.Decimal, externalRef string, meta Metadata) (TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}

	from, ok := s.walletsByID[fromWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	to, ok := s.walletsByID[toWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}

	if existing, ok := s.refs[refKey(fromWalletID, externalRef)]; ok {
		credit := s.refs[refKey(toWalletID, externalRef)]
		return TransferResult{
			Debit:       existing,
			Credit:      credit,
			FromBalance: from.Balance,
			ToBalance:   to.Balance,
		}, ErrDuplicateReference
	}

	if from.Balance.LessThan(amount) {
		return TransferResult{}, ErrInsufficientBalance
	}

	debit, err := s.debit(fromWalletID, amount, externalRef, meta)
	if err != nil {
		return TransferResult{}, err
	}
	credit, err := s.credit(toWalletID, amount, externalRef, meta)
	if err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		Debit:       debit,
		Credit:      credit,
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
	}, nil
}

func (s *inMemoryStore) TransactionsForWallet(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.walletsByID[walletID]; !ok {
		return nil, ErrWalletNotFound
	}

	entries := s.transactions[walletID]
	out := make([]Transaction, len(entries))
	for i, tx := range entries {
		out[len(entries)-1-i] = tx
	}
	return out, nil
}

// credit and debit assume the caller holds the mutex.

func (s *inMemoryStore) credit(walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	w, ok := s.walletsByID[walletID]
	if !ok {
		return Transaction{}, ErrWalletNotFound
	}

	if existing, ok := s.refs[refKey(walletID, externalRef)]; ok {
		return existing, ErrDuplicateReference
	}

	w.Balance = w.Balance.Add(amount)
	tx := s.record(walletID, DirectionCredit, amount, externalRef, meta)
	return tx, nil
}

func (s *inMemoryStore) debit(walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	w, ok := s.walletsByID[walletID]
	if !ok {
		return Transaction{}, ErrWalletNotFound
	}

	if existing, ok := s.refs[refKey(walletID, externalRef)]; ok {
		return existing, ErrDuplicateReference
	}

	if w.Balance.LessThan(amount) {
		return Transaction{}, ErrInsufficientBalance
	}

	w.Balance = w.Balance.Sub(amount)
	tx := s.record(walletID, DirectionDebit, amount, externalRef, meta)
	return tx, nil
}

func (s *inMemoryStore) record(walletID string, direction Direction, amount decimal.Decimal, externalRef string, meta Metadata) Transaction {
	tx := Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Direction:   direction,
		Amount:      amount,
		ExternalRef: externalRef,
		Status:      StatusSuccess,
		Meta:        meta,
		CreatedAt:   time.Now().UTC(),
	}
	s.refs[refKey(walletID, externalRef)] = tx
	s.transactions[walletID] = append(s.transactions[walletID], tx)
	return tx
}
