package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores orders in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `id, vertical, buyer_id, vendor_id, amount::text, currency, status, payment_ref, paid_at, completed_at, created_at, updated_at`

// Create inserts an order record.
func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO orders
        (id, vertical, buyer_id, vendor_id, amount, currency, status, payment_ref, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, o.Vertical, o.BuyerID, o.VendorID, o.Amount.StringFixed(2), o.Currency, o.Status,
		o.PaymentRef, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return err
}

// Get fetches an order by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return Order{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// SetPaymentRef records the gateway charge reference.
func (r *PostgresRepository) SetPaymentRef(ctx context.Context, id, ref string) error {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE orders SET payment_ref = $1, updated_at = $2 WHERE id = $3`,
		ref, time.Now().UTC(), orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves the order from -> to with a row lock so two
// concurrent transitions cannot both observe the prior status.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, id string, from, to Status, stamp Stamp) (Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return Order{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var vertical Vertical
	var current Status
	if err := tx.QueryRow(ctx, `SELECT vertical, status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&vertical, &current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}

	if err := CheckTransition(vertical, from, to); err != nil {
		return Order{}, err
	}
	if current != from {
		return Order{}, ErrStaleStatus
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE orders
        SET status = $1,
            paid_at = COALESCE($2, paid_at),
            completed_at = COALESCE($3, completed_at),
            updated_at = $4
        WHERE id = $5`, to, stamp.PaidAt, stamp.CompletedAt, now, orderID); err != nil {
		return Order{}, err
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *PostgresRepository) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.list(ctx, `buyer_id`, buyerID)
}

// ListByVendor returns the vendor's orders, newest first.
func (r *PostgresRepository) ListByVendor(ctx context.Context, vendorID string) ([]Order, error) {
	return r.list(ctx, `vendor_id`, vendorID)
}

func (r *PostgresRepository) list(ctx context.Context, column, value string) ([]Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1 ORDER BY created_at DESC`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var id uuid.UUID
	var raw string
	if err := row.Scan(&id, &o.Vertical, &o.BuyerID, &o.VendorID, &raw, &o.Currency, &o.Status,
		&o.PaymentRef, &o.PaidAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return Order{}, err
	}
	o.ID = id.String()
	o.Amount = amount
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}
