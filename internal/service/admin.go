package service

import (
	"context"
	"time"

	"storefront-service/internal/ledger"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminService exposes the operator stock override. It is a thin
// pass-through to the ledger; serialization against concurrent
// checkouts happens inside the ledger itself.
type AdminService struct {
	ledger    *ledger.Ledger
	publisher Publisher
	logger    *zap.Logger
}

// NewAdminService creates a new admin service. publisher may be nil.
func NewAdminService(l *ledger.Ledger, publisher Publisher) *AdminService {
	return &AdminService{
		ledger:    l,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SetStock sets an absolute stock value for a product, bypassing
// reservation logic, and returns the resulting inventory snapshot.
func (s *AdminService) SetStock(ctx context.Context, productID string, stock int) (models.Inventory, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.SetStock")
	defer span.End()

	inv, err := s.ledger.SetStock(ctx, productID, stock)
	if err != nil {
		return nil, err
	}

	util.StockAdjustmentsTotal.Inc()
	s.logger.Info("Stock adjusted",
		zap.String("product_id", productID),
		zap.Int("stock", stock))

	if s.publisher != nil {
		event := &models.StockAdjustedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockAdjusted,
				Timestamp: time.Now(),
			},
			ProductID: productID,
			Stock:     stock,
		}
		if err := s.publisher.PublishStockAdjusted(ctx, event); err != nil {
			s.logger.Error("Failed to publish StockAdjusted event",
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}

	return inv, nil
}
