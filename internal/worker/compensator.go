package worker

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/ledger"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Compensator retries stock restores whose durable write failed during
// checkout compensation. Entries stay queued until the ledger accepts
// them, so a reservation is never lost into the void just because the
// store was briefly unavailable.
type Compensator struct {
	ledger   *ledger.Ledger
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending [][]models.OrderLineItem
}

// NewCompensator creates a compensator retrying at the given interval.
func NewCompensator(l *ledger.Ledger, interval time.Duration) *Compensator {
	return &Compensator{
		ledger:   l,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Enqueue queues a failed restore for retry. Safe for concurrent use.
func (c *Compensator) Enqueue(items []models.OrderLineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, items)
}

// Pending returns the number of queued restores.
func (c *Compensator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start runs the retry loop until the context is cancelled.
func (c *Compensator) Start(ctx context.Context) error {
	c.logger.Info("Starting compensation worker",
		zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := c.Pending(); n > 0 {
				c.logger.Warn("Compensation worker stopping with restores still pending",
					zap.Int("pending", n))
			}
			return ctx.Err()
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

// Flush attempts every queued restore once, requeueing the ones that
// still fail.
func (c *Compensator) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, items := range batch {
		if err := c.ledger.Restore(ctx, items); err != nil {
			c.logger.Error("Compensation retry failed",
				zap.Int("items", len(items)),
				zap.Error(err))
			c.Enqueue(items)
			continue
		}
		util.CompensationsTotal.Inc()
		c.logger.Info("Queued compensation applied",
			zap.Int("items", len(items)))
	}
}
