package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"easicart-api/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		db:     db,
		logger: logger,
	}
}

func (h *CartHandler) AddItem(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "AddCartItem")
	defer span.End()

	userID := c.GetInt("user_id")

	var req models.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing fields"})
		return
	}

	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.Int("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	_, err := h.db.ExecContext(ctx,
		"INSERT INTO cart (user_id, product_id, quantity) VALUES ($1, $2, $3)",
		userID, req.ProductID, req.Quantity,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add to cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to add to cart"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "Added to cart"})
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetCart")
	defer span.End()

	userID := c.GetInt("user_id")
	span.SetAttributes(attribute.Int("user_id", userID))

	items, err := h.listCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("cart.items", len(items)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": items})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "UpdateCartItem")
	defer span.End()

	userID := c.GetInt("user_id")

	var req models.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing fields"})
		return
	}

	_, err := h.db.ExecContext(ctx,
		"UPDATE cart SET quantity = $1 WHERE user_id = $2 AND product_id = $3",
		req.Quantity, userID, req.ProductID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to update cart"})
		return
	}

	items, err := h.listCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": items})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "RemoveCartItem")
	defer span.End()

	userID := c.GetInt("user_id")
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid product ID"})
		return
	}

	_, err = h.db.ExecContext(ctx,
		"DELETE FROM cart WHERE user_id = $1 AND product_id = $2",
		userID, productID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to remove item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Item removed from cart"})
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "ClearCart")
	defer span.End()

	userID := c.GetInt("user_id")

	_, err := h.db.ExecContext(ctx, "DELETE FROM cart WHERE user_id = $1", userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to clear cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to delete cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Cart cleared"})
}

func (h *CartHandler) listCart(ctx context.Context, userID int) ([]models.CartItem, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, p.name, p.price, p.image_url
		FROM cart c
		INNER JOIN products p ON c.product_id = p.id
		WHERE c.user_id = $1
		ORDER BY c.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.Name, &item.Price, &item.ImageURL); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
