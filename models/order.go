package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID            int         `json:"id"`
	UserID        int         `json:"user_id"`
	SubTotal      float64     `json:"sub_total"`
	Shipping      float64     `json:"shipping"`
	Tax           float64     `json:"tax"`
	Total         float64     `json:"total"`
	AppliedCoupon string      `json:"applied_coupon"`
	Status        OrderStatus `json:"status"`
	MerchantRef   string      `json:"merchant_ref"`
	CreatedAt     time.Time   `json:"created_at"`
}

type OrderItem struct {
	ID        int `json:"id"`
	OrderID   int `json:"order_id"`
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// CreateOrderRequest carries the monetary breakdown the storefront computed
// client-side. The caller is trusted on the arithmetic; only presence and
// type are validated here.
type CreateOrderRequest struct {
	UserID        int      `json:"user_id" binding:"required"`
	Total         *float64 `json:"total" binding:"required"`
	SubTotal      *float64 `json:"sub_total" binding:"required"`
	Shipping      *float64 `json:"shipping" binding:"required"`
	Tax           *float64 `json:"tax" binding:"required"`
	AppliedCoupon string   `json:"applied_coupon"`
}

type OrderEvent struct {
	OrderID     int         `json:"order_id"`
	UserID      int         `json:"user_id"`
	Total       float64     `json:"total"`
	Status      OrderStatus `json:"status"`
	MerchantRef string      `json:"merchant_ref"`
	EventType   string      `json:"event_type"` // order_created, order_paid, payment_failed
}
