package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance occurs when a wallet lacks available balance to
	// cover a requested debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateReference indicates a successful transaction with the given
	// external reference already exists on the wallet. The store returns the
	// previously recorded transaction alongside this error so callers can
	// treat the replay as success.
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInvalidAmount indicates a non-positive amount was supplied.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Direction distinguishes balance increments from decrements.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Status tracks the lifecycle of a ledger transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// PlatformOwnerKey identifies the platform wallet that doubles as the escrow
// holding account. Commission credits land here and vendor payouts are drawn
// from here.
const PlatformOwnerKey = "platform:escrow"

// Wallet is a stored-value account. Balances are mutated exclusively through
// Credit, Debit and Transfer.
type Wallet struct {
	ID        string
	OwnerKey  string
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Metadata links a transaction back to the payable entity that caused it.
type Metadata struct {
	EntityType string
	EntityID   string
	Purpose    string
}

// Transaction is an immutable ledger entry. The pair (WalletID, ExternalRef)
// is unique for successful transactions; this is the idempotency guard
// against duplicate webhook delivery.
type Transaction struct {
	ID          string
	WalletID    string
	Direction   Direction
	Amount      decimal.Decimal
	ExternalRef string
	Status      Status
	Meta        Metadata
	CreatedAt   time.Time
}

// TransferResult captures both legs of an atomic wallet-to-wallet movement.
type TransferResult struct {
	Debit       Transaction
	Credit      Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// Every mutation updates the wallet balance and inserts the transaction
// record in one atomic unit.
type Store interface {
	// GetOrCreateWallet returns the wallet for ownerKey, creating it with a
	// zero balance on first use.
	GetOrCreateWallet(ctx context.Context, ownerKey, currency string) (Wallet, error)

	// Balance returns the current balance for the wallet.
	Balance(ctx context.Context, walletID string) (decimal.Decimal, error)

	// Credit increments the wallet balance. A replayed externalRef returns
	// the original transaction with ErrDuplicateReference.
	Credit(ctx context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error)

	// Debit decrements the wallet balance, failing with
	// ErrInsufficientBalance when the balance cannot cover the amount.
	Debit(ctx context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error)

	// Transfer moves amount between two wallets as an atomic debit+credit
	// pair sharing one external reference. Either both legs commit or
	// neither does.
	Transfer(ctx context.Context, fromWalletID, toWalletID string, amount decimal.Decimal, externalRef string, meta Metadata) (TransferResult, error)

	// TransactionsForWallet lists the wallet's entries, newest first.
	TransactionsForWallet(ctx context.Context, walletID string) ([]Transaction, error)
}
