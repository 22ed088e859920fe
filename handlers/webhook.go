package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"easicart-api/kafka"
	"easicart-api/middleware"
	"easicart-api/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SignatureHeader carries the gateway's HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Merchant-Signature"

type WebhookHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	secret   []byte
	logger   *zap.Logger
}

func NewWebhookHandler(db *sql.DB, producer sarama.SyncProducer, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		db:       db,
		producer: producer,
		secret:   []byte(secret),
		logger:   logger,
	}
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// mapGatewayStatus normalizes the gateway's free-form status string onto the
// order lifecycle. Anything that is not an unambiguous success is a failure.
func mapGatewayStatus(status string) models.OrderStatus {
	switch status {
	case "paid", "success", "successful":
		return models.OrderStatusPaid
	default:
		return models.OrderStatusFailed
	}
}

// HandlePaymentWebhook reconciles an order against the gateway's callback.
// Only the trusted gateway may transition order status, and terminal states
// are final: the update is conditional on the order still being pending, so
// duplicate or out-of-order deliveries degrade to observable no-ops. The
// gateway always receives {"status":"ok"} once authenticated, so its retry
// loop is never wedged by our internal state.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "HandlePaymentWebhook")
	defer span.End()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid body"})
		return
	}

	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		middleware.RecordPaymentWebhook("bad_signature")
		h.logger.Warn("Webhook signature verification failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.MerchantTxRef == "" || payload.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing fields"})
		return
	}

	newStatus := mapGatewayStatus(payload.Status)

	span.SetAttributes(
		attribute.String("merchant_tx_ref", payload.MerchantTxRef),
		attribute.String("gateway.status", payload.Status),
		attribute.String("order.status", string(newStatus)),
	)

	var orderID, userID int
	var total float64
	err = h.db.QueryRowContext(ctx,
		`UPDATE orders SET status = $1
		 WHERE merchant_ref = $2 AND status = 'pending'
		 RETURNING id, user_id, total`,
		newStatus, payload.MerchantTxRef,
	).Scan(&orderID, &userID, &total)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.recordMiss(ctx, payload.MerchantTxRef)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	// Mirror the transition onto the payment audit record.
	if _, err := h.db.ExecContext(ctx,
		"UPDATE payments SET status = $1 WHERE merchant_ref = $2 AND status = 'pending'",
		newStatus, payload.MerchantTxRef,
	); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update payment record", zap.Error(err))
	}

	middleware.RecordPaymentWebhook(string(newStatus))

	eventType := "order_paid"
	if newStatus == models.OrderStatusFailed {
		eventType = "payment_failed"
	}
	event := models.OrderEvent{
		OrderID:     orderID,
		UserID:      userID,
		Total:       total,
		Status:      newStatus,
		MerchantRef: payload.MerchantTxRef,
		EventType:   eventType,
	}
	if err := kafka.PublishOrderEvent(ctx, h.producer, "order_events", event, h.logger); err != nil {
		h.logger.Error("Failed to publish payment event", zap.Error(err))
	}

	h.logger.Info("Order status reconciled",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", orderID),
		zap.String("merchant_ref", payload.MerchantTxRef),
		zap.String("status", string(newStatus)),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// recordMiss distinguishes a callback for an unknown merchant_ref from a
// replay against an order that already reached a terminal state.
func (h *WebhookHandler) recordMiss(ctx context.Context, merchantRef string) {
	var status string
	err := h.db.QueryRowContext(ctx,
		"SELECT status FROM orders WHERE merchant_ref = $1", merchantRef,
	).Scan(&status)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		middleware.RecordPaymentWebhook("unknown_ref")
		h.logger.Warn("Webhook for unknown merchant_ref",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("merchant_ref", merchantRef),
		)
	case err != nil:
		h.logger.Error("Failed to look up order for webhook miss", zap.Error(err))
	default:
		middleware.RecordPaymentWebhook("replay")
		h.logger.Info("Webhook replay ignored, order already terminal",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("merchant_ref", merchantRef),
			zap.String("status", status),
		)
	}
}
