package handlers

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"easicart-api/gateway"
	"easicart-api/kafka"
	"easicart-api/middleware"
	"easicart-api/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentInitiator is the slice of the gateway client the checkout flow
// needs; an interface so tests can stub the external processor.
type PaymentInitiator interface {
	NewRequest(merchantRef, name, email, phone string, amountMinor int64) gateway.InitiateRequest
	InitiateTransaction(ctx context.Context, req gateway.InitiateRequest) (string, error)
}

type OrderHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	gateway  PaymentInitiator
	logger   *zap.Logger
}

func NewOrderHandler(
	db *sql.DB,
	producer sarama.SyncProducer,
	gw PaymentInitiator,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		db:       db,
		producer: producer,
		gateway:  gw,
		logger:   logger,
	}
}

func newMerchantRef() string {
	return "ORD_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateOrder converts the user's cart into a durable order plus a payment
// record and returns the gateway's hosted-checkout URL. All five storage
// mutations and the gateway call form one unit of work: the cart must keep
// its contents unless payment initiation definitively succeeds.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing fields"})
		return
	}

	coupon := req.AppliedCoupon
	if coupon == "" {
		coupon = "N/A"
	}
	merchantRef := newMerchantRef()

	span.SetAttributes(
		attribute.Int("user_id", req.UserID),
		attribute.Float64("order.total", *req.Total),
		attribute.String("merchant_ref", merchantRef),
	)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to create order"})
		return
	}
	// Rollback is a no-op once the transaction is committed.
	defer tx.Rollback()

	var order models.Order
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, sub_total, shipping, tax, total, applied_coupon, status, merchant_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		 RETURNING id, created_at`,
		req.UserID, *req.SubTotal, *req.Shipping, *req.Tax, *req.Total, coupon, merchantRef,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to create order"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", order.ID))

	// Freeze the cart into order items
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity)
		 SELECT $1, c.product_id, c.quantity FROM cart c WHERE c.user_id = $2`,
		order.ID, req.UserID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add order items", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to add order items"})
		return
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM cart WHERE user_id = $1", req.UserID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to clear cart", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to clear cart"})
		return
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO payments (user_id, order_id, total, status, merchant_ref) VALUES ($1, $2, $3, 'pending', $4)",
		req.UserID, order.ID, *req.Total, merchantRef,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create payment", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to create payment"})
		return
	}

	var fullName, email, phone string
	err = tx.QueryRowContext(ctx,
		"SELECT full_name, email, phone FROM users WHERE id = $1", req.UserID,
	).Scan(&fullName, &email, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "User not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch user", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to create order"})
		return
	}

	// Amount in minor currency units (kobo)
	amountMinor := int64(math.Round(*req.Total * 100))
	gwReq := h.gateway.NewRequest(merchantRef, fullName, email, phone, amountMinor)

	checkoutURL, err := h.gateway.InitiateTransaction(ctx, gwReq)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment initiation failed",
			zap.String("merchant_ref", merchantRef),
			zap.Error(err),
		)
		middleware.RecordOrderCreated("gateway_error")
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": "Error initiating payment"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit order", zap.Error(err))
		middleware.RecordOrderCreated("storage_error")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to create order"})
		return
	}

	middleware.RecordOrderCreated("success")

	event := models.OrderEvent{
		OrderID:     order.ID,
		UserID:      req.UserID,
		Total:       *req.Total,
		Status:      models.OrderStatusPending,
		MerchantRef: merchantRef,
		EventType:   "order_created",
	}
	if err := kafka.PublishOrderEvent(ctx, h.producer, "order_events", event, h.logger); err != nil {
		// Notification only; the order is already durable.
		h.logger.Error("Failed to publish order_created event", zap.Error(err))
	}

	h.logger.Info("Order created",
		zap.Int("order_id", order.ID),
		zap.String("merchant_ref", merchantRef),
	)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "url": checkoutURL})
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetOrders")
	defer span.End()

	userID := c.GetInt("user_id")
	span.SetAttributes(attribute.Int("user_id", userID))

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, user_id, sub_total, shipping, tax, total, applied_coupon, status, merchant_ref, created_at
		 FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.SubTotal, &o.Shipping, &o.Tax, &o.Total,
			&o.AppliedCoupon, &o.Status, &o.MerchantRef, &o.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": orders})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	userID := c.GetInt("user_id")
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid order ID"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	var o models.Order
	err = h.db.QueryRowContext(ctx,
		`SELECT id, user_id, sub_total, shipping, tax, total, applied_coupon, status, merchant_ref, created_at
		 FROM orders WHERE user_id = $1 AND id = $2`, userID, orderID,
	).Scan(&o.ID, &o.UserID, &o.SubTotal, &o.Shipping, &o.Tax, &o.Total,
		&o.AppliedCoupon, &o.Status, &o.MerchantRef, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": o})
}

func (h *OrderHandler) GetOrderItems(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetOrderItems")
	defer span.End()

	userID := c.GetInt("user_id")
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid order ID"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	rows, err := h.db.QueryContext(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity
		 FROM order_items oi
		 JOIN orders o ON oi.order_id = o.id
		 WHERE o.id = $1 AND o.user_id = $2
		 ORDER BY oi.id`, orderID, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch order items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": items})
}
