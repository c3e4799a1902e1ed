package models

import "time"

// Event types
const (
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeStockAdjusted  = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderConfirmedEvent published after an order is durably appended
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Total         int64           `json:"total"`
	Items         []OrderLineItem `json:"items"`
}

// StockAdjustedEvent published after an admin stock override
type StockAdjustedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}
