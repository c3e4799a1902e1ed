package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront-service/internal/ledger"
	"storefront-service/internal/models"
	"storefront-service/internal/orderstore"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher publishes domain events. Implemented by broker.EventPublisher;
// a nil Publisher disables publishing.
type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// CompensationQueue accepts stock restores whose durable write failed,
// for background retry. Implemented by worker.Compensator.
type CompensationQueue interface {
	Enqueue(items []models.OrderLineItem)
}

// CheckoutService couples ledger reservation to order creation as one
// logical transaction: reserve, append, and compensate the reservation
// if the append fails. It is the only entry point that mutates both
// stores.
type CheckoutService struct {
	ledger    *ledger.Ledger
	orders    *orderstore.Store
	publisher Publisher
	pending   CompensationQueue
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service. publisher and
// pending may be nil.
func NewCheckoutService(l *ledger.Ledger, o *orderstore.Store, publisher Publisher, pending CompensationQueue) *CheckoutService {
	return &CheckoutService{
		ledger:    l,
		orders:    o,
		publisher: publisher,
		pending:   pending,
		logger:    util.GetLogger(),
	}
}

// ProductID accepts both string and numeric JSON forms; the storefront
// client sends numeric ids.
type ProductID string

func (p *ProductID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = ProductID(n.String())
	return nil
}

// ItemRequest is one requested line of a checkout. Extra fields the
// client sends alongside (name, image, size) are ignored.
type ItemRequest struct {
	ID       ProductID `json:"id"`
	Quantity int       `json:"quantity"`
}

// PlaceOrderRequest is a validated order request from the checkout UI.
type PlaceOrderRequest struct {
	CustomerEmail   string         `json:"customerEmail"`
	CustomerName    string         `json:"customerName"`
	Items           []ItemRequest  `json:"items"`
	Total           int64          `json:"total"`
	PaymentMethod   string         `json:"paymentMethod"`
	ShippingAddress models.Address `json:"shippingAddress"`
	IdempotencyKey  string         `json:"idempotencyKey"`
}

// PlaceOrder runs one checkout. On any failure all state is left
// unchanged: validation errors and insufficient stock reserve nothing,
// and a failed order append restores whatever was reserved before the
// error is returned.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	if err := validate(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return models.Order{}, err
	}

	if prior, ok := s.orders.GetByIdempotencyKey(req.IdempotencyKey); ok {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", prior.ID))
		return prior, nil
	}

	reservations := make([]models.Reservation, len(req.Items))
	for i, it := range req.Items {
		reservations[i] = models.Reservation{ProductID: string(it.ID), Quantity: it.Quantity}
	}

	start := time.Now()
	items, err := s.ledger.ReserveAll(ctx, reservations)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.countReservationFailure(err)
		return models.Order{}, err
	}

	if subtotal := lineItemSubtotal(items); req.Total < subtotal {
		s.logger.Warn("Submitted total below line item subtotal",
			zap.Int64("total", req.Total),
			zap.Int64("subtotal", subtotal))
	}

	order := models.Order{
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Total:           req.Total,
		IdempotencyKey:  req.IdempotencyKey,
	}

	created, err := s.orders.Append(ctx, order)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("append_failed").Inc()
		s.compensate(ctx, items)
		return models.Order{}, err
	}

	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Order confirmed",
		zap.String("order_id", created.ID),
		zap.Int64("total", created.Total),
		zap.Int("items", len(created.Items)))

	s.publishOrderConfirmed(ctx, created)
	return created, nil
}

// GetOrder retrieves an order by id.
func (s *CheckoutService) GetOrder(orderID string) (models.Order, error) {
	return s.orders.Get(orderID)
}

// ListOrders returns all orders in insertion order.
func (s *CheckoutService) ListOrders() []models.Order {
	return s.orders.List()
}

// GetInventory returns a snapshot of current stock.
func (s *CheckoutService) GetInventory() models.Inventory {
	return s.ledger.GetAll()
}

// compensate restores reserved quantities after a failed append. If
// the restoring write itself fails, the restore is queued for
// background retry so the stock is never lost for good.
func (s *CheckoutService) compensate(ctx context.Context, items []models.OrderLineItem) {
	if err := s.ledger.Restore(ctx, items); err != nil {
		s.logger.Error("Compensating stock restore failed, queueing for retry",
			zap.Int("items", len(items)),
			zap.Error(err))
		util.CompensationsPendingTotal.Inc()
		if s.pending != nil {
			s.pending.Enqueue(items)
		}
		return
	}
	util.CompensationsTotal.Inc()
}

func (s *CheckoutService) publishOrderConfirmed(ctx context.Context, order models.Order) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
		Items:         order.Items,
	}
	if err := s.publisher.PublishOrderConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderConfirmed event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func (s *CheckoutService) countReservationFailure(err error) {
	var insufficient *models.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		util.StockReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
	case errors.Is(err, models.ErrProductNotFound):
		util.StockReservationsFailed.WithLabelValues("unknown_product").Inc()
		util.OrdersFailedTotal.WithLabelValues("unknown_product").Inc()
	default:
		util.StockReservationsFailed.WithLabelValues("error").Inc()
		util.OrdersFailedTotal.WithLabelValues("error").Inc()
	}
}

func validate(req *PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return &models.InvalidRequestError{Reason: "order has no items"}
	}
	for _, it := range req.Items {
		if it.ID == "" {
			return &models.InvalidRequestError{Reason: "item is missing a product id"}
		}
		if it.Quantity <= 0 {
			return &models.InvalidRequestError{Reason: "item quantity must be positive"}
		}
	}
	if req.CustomerEmail == "" {
		return &models.InvalidRequestError{Reason: "customerEmail is required"}
	}
	if req.CustomerName == "" {
		return &models.InvalidRequestError{Reason: "customerName is required"}
	}
	if req.Total < 0 {
		return &models.InvalidRequestError{Reason: "total must be non-negative"}
	}
	return nil
}

func lineItemSubtotal(items []models.OrderLineItem) int64 {
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPrice * int64(it.Quantity)
	}
	return subtotal
}
