package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets and ledger transactions in PostgreSQL.
// Balance mutation and transaction insertion share one database transaction
// with the wallet row locked FOR UPDATE.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetOrCreateWallet returns the wallet for the owner key, inserting a
// zero-balance row on first use.
func (s *PostgresStore) GetOrCreateWallet(ctx context.Context, ownerKey, currency string) (Wallet, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_key, currency, balance, created_at)
        VALUES ($1, $2, $3, 0, $4)
        ON CONFLICT (owner_key) DO NOTHING`, uuid.New(), ownerKey, currency, time.Now().UTC())
	if err != nil {
		return Wallet{}, err
	}

	row := s.db.QueryRow(ctx, `SELECT id, owner_key, currency, balance::text, created_at
        FROM wallets WHERE owner_key = $1`, ownerKey)
	return scanWallet(row)
}

// Balance returns the current wallet balance.
func (s *PostgresStore) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}

	var raw string
	if err := s.db.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Credit increments the wallet balance and records a success transaction.
func (s *PostgresStore) Credit(ctx context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	return s.mutate(ctx, walletID, DirectionCredit, amount, externalRef, meta)
}

// Debit decrements the wallet balance and records a success transaction.
func (s *PostgresStore) Debit(ctx context.Context, walletID string, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	return s.mutate(ctx, walletID, DirectionDebit, amount, externalRef, meta)
}

func (s *PostgresStore) mutate(ctx context.Context, walletID string, direction Direction, amount decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Transaction{}, err
	}

	if existing, err := existingTransaction(ctx, tx, walletID, externalRef); err == nil {
		return existing, ErrDuplicateReference
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, err
	}

	var updated decimal.Decimal
	switch direction {
	case DirectionCredit:
		updated = balance.Add(amount)
	case DirectionDebit:
		if balance.LessThan(amount) {
			return Transaction{}, ErrInsufficientBalance
		}
		updated = balance.Sub(amount)
	default:
		return Transaction{}, fmt.Errorf("unknown direction %q", direction)
	}

	record, err := insertTransaction(ctx, tx, walletID, direction, amount, updated, externalRef, meta)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

// Transfer debits the source wallet and credits the destination wallet inside
// one database transaction.
func (s *PostgresStore) Transfer(ctx context.Context, fromWalletID, toWalletID string, amount decimal.Decimal, externalRef string, meta Metadata) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock in a stable order to avoid deadlocks between concurrent transfers.
	first, second := fromWalletID, toWalletID
	if second < first {
		first, second = second, first
	}
	if _, err := lockWallet(ctx, tx, first); err != nil {
		return TransferResult{}, err
	}
	if _, err := lockWallet(ctx, tx, second); err != nil {
		return TransferResult{}, err
	}

	if existing, err := existingTransaction(ctx, tx, fromWalletID, externalRef); err == nil {
		credit, _ := existingTransaction(ctx, tx, toWalletID, externalRef)
		fromBal, _ := walletBalance(ctx, tx, fromWalletID)
		toBal, _ := walletBalance(ctx, tx, toWalletID)
		return TransferResult{Debit: existing, Credit: credit, FromBalance: fromBal, ToBalance: toBal}, ErrDuplicateReference
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}

	fromBalance, err := walletBalance(ctx, tx, fromWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	if fromBalance.LessThan(amount) {
		return TransferResult{}, ErrInsufficientBalance
	}
	toBalance, err := walletBalance(ctx, tx, toWalletID)
	if err != nil {
		return TransferResult{}, err
	}

	debit, err := insertTransaction(ctx, tx, fromWalletID, DirectionDebit, amount, fromBalance.Sub(amount), externalRef, meta)
	if err != nil {
		return TransferResult{}, err
	}
	credit, err := insertTransaction(ctx, tx, toWalletID, DirectionCredit, amount, toBalance.Add(amount), externalRef, meta)
	if err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		Debit:       debit,
		Credit:      credit,
		FromBalance: fromBalance.Sub(amount),
		ToBalance:   toBalance.Add(amount),
	}, nil
}

// TransactionsForWallet lists the wallet's ledger entries, newest first.
func (s *PostgresStore) TransactionsForWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}

	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, direction, amount::text, external_ref, status, entity_type, entity_id, purpose, created_at
        FROM ledger_transactions WHERE wallet_id = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}

	var raw string
	if err := tx.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func walletBalance(ctx context.Context, tx pgx.Tx, walletID string) (decimal.Decimal, error) {
	var raw string
	if err := tx.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, walletID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func existingTransaction(ctx context.Context, tx pgx.Tx, walletID, externalRef string) (Transaction, error) {
	row := tx.QueryRow(ctx, `SELECT id, wallet_id, direction, amount::text, external_ref, status, entity_type, entity_id, purpose, created_at
        FROM ledger_transactions WHERE wallet_id = $1 AND external_ref = $2 AND status = $3`, walletID, externalRef, StatusSuccess)
	return scanTransaction(row)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, walletID string, direction Direction, amount, newBalance decimal.Decimal, externalRef string, meta Metadata) (Transaction, error) {
	record := Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Direction:   direction,
		Amount:      amount,
		ExternalRef: externalRef,
		Status:      StatusSuccess,
		Meta:        meta,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`,
		newBalance.StringFixed(2), walletID); err != nil {
		return Transaction{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO ledger_transactions
        (id, wallet_id, direction, amount, external_ref, status, entity_type, entity_id, purpose, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, walletID, direction, amount.StringFixed(2), externalRef, record.Status,
		meta.EntityType, meta.EntityID, meta.Purpose, record.CreatedAt); err != nil {
		return Transaction{}, err
	}

	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var raw string
	if err := row.Scan(&id, &w.OwnerKey, &w.Currency, &raw, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.Balance = balance
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var record Transaction
	var id, walletID uuid.UUID
	var raw string
	if err := row.Scan(&id, &walletID, &record.Direction, &raw, &record.ExternalRef, &record.Status,
		&record.Meta.EntityType, &record.Meta.EntityID, &record.Meta.Purpose, &record.CreatedAt); err != nil {
		return Transaction{}, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return Transaction{}, err
	}
	record.ID = id.String()
	record.WalletID = walletID.String()
	record.Amount = amount
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}
