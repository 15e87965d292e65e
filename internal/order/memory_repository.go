package order

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.Mutex
	storage map[string]Order
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Order)}
}

func (r *memoryRepository) Create(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[o.ID]; exists {
		return errors.New("order exists")
	}
	r.storage[o.ID] = o
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.storage[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *memoryRepository) SetPaymentRef(_ context.Context, id, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentRef = ref
	o.UpdatedAt = time.Now().UTC()
	r.storage[id] = o
	return nil
}

func (r *memoryRepository) TransitionStatus(_ context.Context, id string, from, to Status, stamp Stamp) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.storage[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if err := CheckTransition(o.Vertical, from, to); err != nil {
		return Order{}, err
	}
	if o.Status != from {
		return Order{}, ErrStaleStatus
	}

	o.Status = to
	if stamp.PaidAt != nil {
		o.PaidAt = stamp.PaidAt
	}
	if stamp.CompletedAt != nil {
		o.CompletedAt = stamp.CompletedAt
	}
	o.UpdatedAt = time.Now().UTC()
	r.storage[id] = o
	return o, nil
}

func (r *memoryRepository) ListByBuyer(_ context.Context, buyerID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.storage {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepository) ListByVendor(_ context.Context, vendorID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.storage {
		if o.VendorID == vendorID {
			out = append(out, o)
		}
	}
	return out, nil
}
