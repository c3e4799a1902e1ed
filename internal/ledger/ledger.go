package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"storefront-service/internal/kv"
	"storefront-service/internal/models"
)

// Ledger is the single source of truth for per-product stock counts.
// All reads and mutations go through one mutex, which is what makes
// check-then-decrement atomic across concurrent checkouts and admin
// overrides. Mutations are written through to the durable store before
// they become visible; a failed write leaves the in-memory state
// untouched.
type Ledger struct {
	mu    sync.Mutex
	items models.Inventory
	store kv.Store
}

// New creates a ledger over the given durable store. Call Load before
// serving requests.
func New(store kv.Store) *Ledger {
	return &Ledger{
		items: models.Inventory{},
		store: store,
	}
}

// Load restores the stock map from the durable store. If no prior
// state exists the seed catalog is written exactly once; repeated cold
// starts never reset stock that has diverged from the seed.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.store.Get(ctx, kv.KeyInventory)
	if err != nil {
		return &models.PersistenceError{Op: "inventory load", Err: err}
	}

	if raw == nil {
		seed := SeedCatalog()
		if err := l.persistLocked(ctx, seed); err != nil {
			return err
		}
		l.items = seed
		return nil
	}

	var inv models.Inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return fmt.Errorf("corrupt inventory state: %w", err)
	}
	l.items = inv
	return nil
}

// GetAll returns a point-in-time snapshot of the stock map. No
// in-progress reservation is ever observed partially applied.
func (l *Ledger) GetAll() models.Inventory {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Get returns a single product record.
func (l *Ledger) Get(productID string) (models.ProductStock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.items[productID]
	if !ok {
		return models.ProductStock{}, models.ErrProductNotFound
	}
	return p, nil
}

// ReserveAll decrements stock for every requested product as one
// atomic unit. Either every line has sufficient stock and all
// decrements are applied and durably persisted together, or nothing is
// applied and the specific failure is returned: ErrProductNotFound for
// an unknown productId, InsufficientStockError for the first
// shortfall. Each line is checked against a running copy that already
// carries the decrements of earlier lines, so repeated lines for the
// same product can never drive stock below zero. On success it returns
// the order line items with the unit price captured under the same
// lock as the decrement.
func (l *Ledger) ReserveAll(ctx context.Context, reqs []models.Reservation) ([]models.OrderLineItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The live map is only replaced after a successful durable write;
	// on any failure the scratch copy is discarded untouched.
	next := l.snapshotLocked()
	items := make([]models.OrderLineItem, 0, len(reqs))
	for _, r := range reqs {
		p, ok := next[r.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", r.ProductID, models.ErrProductNotFound)
		}
		if p.Stock < r.Quantity {
			return nil, &models.InsufficientStockError{
				ProductID: r.ProductID,
				Available: p.Stock,
				Requested: r.Quantity,
			}
		}
		p.Stock -= r.Quantity
		next[r.ProductID] = p
		items = append(items, models.OrderLineItem{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: p.Price,
		})
	}

	if err := l.persistLocked(ctx, next); err != nil {
		return nil, err
	}
	l.items = next
	return items, nil
}

// Restore adds the given quantities back to stock. It is the
// compensation inverse of ReserveAll, used when the order append that
// should have accounted for a reservation fails. Unknown products are
// skipped: a product cannot disappear in scope, so a miss here means
// the restore was already applied against different state.
func (l *Ledger) Restore(ctx context.Context, items []models.OrderLineItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snapshotLocked()
	for _, it := range items {
		p, ok := next[it.ProductID]
		if !ok {
			continue
		}
		p.Stock += it.Quantity
		next[it.ProductID] = p
	}

	if err := l.persistLocked(ctx, next); err != nil {
		return err
	}
	l.items = next
	return nil
}

// SetStock is the administrative absolute override. It serializes with
// ReserveAll through the ledger mutex, so an admin write and a racing
// checkout always apply in some serial order. Returns the resulting
// snapshot.
func (l *Ledger) SetStock(ctx context.Context, productID string, stock int) (models.Inventory, error) {
	if stock < 0 {
		return nil, &models.InvalidRequestError{Reason: "stock must be non-negative"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.items[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, models.ErrProductNotFound)
	}

	next := l.snapshotLocked()
	p.Stock = stock
	next[productID] = p

	if err := l.persistLocked(ctx, next); err != nil {
		return nil, err
	}
	l.items = next
	return l.snapshotLocked(), nil
}

// snapshotLocked copies the stock map. Callers must hold l.mu.
func (l *Ledger) snapshotLocked() models.Inventory {
	out := make(models.Inventory, len(l.items))
	for id, p := range l.items {
		out[id] = p
	}
	return out
}

// persistLocked durably writes a candidate stock map. Callers must
// hold l.mu; on error the in-memory map must be left as it was.
func (l *Ledger) persistLocked(ctx context.Context, inv models.Inventory) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	if err := l.store.Set(ctx, kv.KeyInventory, raw); err != nil {
		return &models.PersistenceError{Op: "inventory write", Err: err}
	}
	return nil
}

// ProductIDs returns the known product ids in sorted order, mainly for
// deterministic logs.
func (l *Ledger) ProductIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.items))
	for id := range l.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
