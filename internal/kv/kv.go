package kv

import "context"

// Store is a flat durable key-value namespace with JSON values. The
// ledger and order store write through it: a mutation is only
// acknowledged to callers after Set returns nil.
type Store interface {
	// Get returns the raw value for key, or (nil, nil) when the key
	// has never been written.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set durably writes value under key, replacing any prior value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the underlying connection, if any.
	Close() error
}

// Durable keys used by the service.
const (
	KeyInventory = "inventory"
	KeyOrders    = "orders"
)
