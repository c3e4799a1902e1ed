package worker

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// AuditWorker consumes the domain event topic and writes an audit log
// line per event, giving operators a trail of confirmed orders and
// stock overrides independent of the request logs.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker.
func NewAuditWorker(consumer *broker.Consumer) *AuditWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderConfirmed(func(ctx context.Context, event *models.OrderConfirmedEvent) error {
		logger.Info("audit: order confirmed",
			zap.String("order_id", event.OrderID),
			zap.String("customer_email", event.CustomerEmail),
			zap.Int64("total", event.Total),
			zap.Int("items", len(event.Items)))
		return nil
	})
	eventHandler.OnStockAdjusted(func(ctx context.Context, event *models.StockAdjustedEvent) error {
		logger.Info("audit: stock adjusted",
			zap.String("product_id", event.ProductID),
			zap.Int("stock", event.Stock))
		return nil
	})

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
