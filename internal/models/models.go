package models

import "time"

// ProductStock is one sellable product with its current stock level.
// Products are keyed by their id in the inventory map; the id is not
// repeated inside the struct so the JSON shape matches the inventory
// endpoint (`{"1": {"name": ..., "stock": ..., "price": ...}}`).
type ProductStock struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
	Price int64  `json:"price"`
}

// Inventory maps productId to its stock record.
type Inventory map[string]ProductStock

// OrderLineItem is an immutable line of an order. UnitPrice is the
// catalog price captured at reservation time, independent of later
// price changes.
type OrderLineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// Address is the shipping address as submitted by the client. The
// fields are pass-through and not validated.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// Order is a finalized, immutable transaction record.
type Order struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"createdAt"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerName    string          `json:"customerName"`
	ShippingAddress Address         `json:"shippingAddress"`
	Items           []OrderLineItem `json:"items"`
	Total           int64           `json:"total"`
	Status          string          `json:"status"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
}

// Order statuses. Cancellation and refunds are out of scope, so
// Confirmed is the only status this service produces.
const (
	OrderStatusConfirmed = "Confirmed"
)

// Reservation is one requested decrement inside a ReserveAll call.
type Reservation struct {
	ProductID string
	Quantity  int
}
