package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"easicart-api/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type WishlistHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewWishlistHandler(db *sql.DB, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{
		db:     db,
		logger: logger,
	}
}

func (h *WishlistHandler) AddItem(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "AddWishlistItem")
	defer span.End()

	userID := c.GetInt("user_id")

	var req models.WishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing fields"})
		return
	}

	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.Int("product_id", req.ProductID),
	)

	// Re-adding an already wishlisted product is a no-op.
	_, err := h.db.ExecContext(ctx,
		"INSERT INTO wishlist (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, req.ProductID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add to wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to add to wishlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "Added to wishlist"})
}

func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetWishlist")
	defer span.End()

	userID := c.GetInt("user_id")
	span.SetAttributes(attribute.Int("user_id", userID))

	rows, err := h.db.QueryContext(ctx, `
		SELECT w.user_id, w.product_id, p.name, p.price, p.image_url
		FROM wishlist w
		JOIN products p ON w.product_id = p.id
		WHERE w.user_id = $1
		ORDER BY w.product_id`, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var item models.WishlistItem
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.Name, &item.Price, &item.ImageURL); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan wishlist item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	span.SetAttributes(attribute.Int("wishlist.items", len(items)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": items})
}

func (h *WishlistHandler) RemoveItem(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "RemoveWishlistItem")
	defer span.End()

	userID := c.GetInt("user_id")
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid product ID"})
		return
	}

	_, err = h.db.ExecContext(ctx,
		"DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2",
		userID, productID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to remove from wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to remove from wishlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Removed from wishlist"})
}
