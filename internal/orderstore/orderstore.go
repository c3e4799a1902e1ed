package orderstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/kv"
	"storefront-service/internal/models"

	"github.com/google/uuid"
)

// Store is the durable, append-only ledger of confirmed orders.
// Appends are serialized by a mutex and written through to the durable
// store before they become visible; a failed write leaves no partial
// order behind.
type Store struct {
	mu       sync.Mutex
	orders   []models.Order
	store    kv.Store
	lastTime time.Time
}

// New creates an order store over the given durable store. Call Load
// before serving requests.
func New(store kv.Store) *Store {
	return &Store{store: store}
}

// Load restores the order list from the durable store.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Get(ctx, kv.KeyOrders)
	if err != nil {
		return &models.PersistenceError{Op: "orders load", Err: err}
	}
	if raw == nil {
		s.orders = nil
		return nil
	}

	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return fmt.Errorf("corrupt order state: %w", err)
	}
	s.orders = orders
	if n := len(orders); n > 0 {
		s.lastTime = orders[n-1].CreatedAt
	}
	return nil
}

// Append assigns the order its id and creation time, durably persists
// it and returns the finalized record. The id combines a millisecond
// timestamp with a random suffix so two orders in the same millisecond
// never collide. CreatedAt is monotonically non-decreasing across
// successive appends even if the wall clock steps backwards.
func (s *Store) Append(ctx context.Context, order models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastTime) {
		now = s.lastTime
	}

	order.ID = newOrderID(now)
	order.CreatedAt = now
	order.Status = models.OrderStatusConfirmed

	next := make([]models.Order, len(s.orders), len(s.orders)+1)
	copy(next, s.orders)
	next = append(next, order)

	raw, err := json.Marshal(next)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to marshal orders: %w", err)
	}
	if err := s.store.Set(ctx, kv.KeyOrders, raw); err != nil {
		return models.Order{}, &models.PersistenceError{Op: "order append", Err: err}
	}

	s.orders = next
	s.lastTime = now
	return order, nil
}

// List returns all orders in insertion order.
func (s *Store) List() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Get returns the order with the given id.
func (s *Store) Get(orderID string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == orderID {
			return s.orders[i], nil
		}
	}
	return models.Order{}, fmt.Errorf("order %s: %w", orderID, models.ErrOrderNotFound)
}

// GetByIdempotencyKey returns the prior order created with the given
// idempotency key, or (zero, false) when none exists.
func (s *Store) GetByIdempotencyKey(key string) (models.Order, bool) {
	if key == "" {
		return models.Order{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].IdempotencyKey == key {
			return s.orders[i], true
		}
	}
	return models.Order{}, false
}

// Len returns the number of stored orders.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func newOrderID(now time.Time) string {
	return fmt.Sprintf("REC-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}
