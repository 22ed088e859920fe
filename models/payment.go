package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment is the audit record for a single payment attempt. The owning
// Order's status is the authoritative lifecycle field; this row mirrors it
// so the attempt history survives even if the order is ever purged.
type Payment struct {
	ID          int           `json:"id"`
	UserID      int           `json:"user_id"`
	OrderID     int           `json:"order_id"`
	Total       float64       `json:"total"`
	Status      PaymentStatus `json:"status"`
	MerchantRef string        `json:"merchant_ref"`
	CreatedAt   time.Time     `json:"created_at"`
}

// WebhookPayload is the callback body the payment gateway delivers after the
// customer completes (or abandons) the hosted checkout page.
type WebhookPayload struct {
	MerchantTxRef string `json:"merchant_tx_ref" binding:"required"`
	Status        string `json:"status" binding:"required"`
}
