package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"easicart-api/cache"
	"easicart-api/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewProductHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetProducts lists the catalog with a per-user wishlist flag, which is why
// the list itself is never cached.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	userID := c.GetInt("user_id")

	rows, err := h.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.price, p.image_url, p.description, p.created_at,
		       (w.product_id IS NOT NULL) AS in_wishlist
		FROM products p
		LEFT JOIN wishlist w ON p.id = w.product_id AND w.user_id = $1
		ORDER BY p.id`, userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Description, &p.CreatedAt, &p.InWishlist); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, p)
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": products})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	userID := c.GetInt("user_id")
	span.SetAttributes(attribute.String("product.id", id))

	// Try to get from cache first. Only the product row is cached; the
	// wishlist flag is per-user and resolved afterwards.
	var product models.Product
	cacheHit := false
	if cachedData, err := cache.GetProduct(ctx, h.redisClient, id); err == nil {
		if err := json.Unmarshal(cachedData, &product); err == nil {
			cacheHit = true
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", cacheHit))

	if !cacheHit {
		err := h.db.QueryRowContext(ctx,
			"SELECT id, name, price, image_url, description, created_at FROM products WHERE id = $1",
			id,
		).Scan(&product.ID, &product.Name, &product.Price, &product.ImageURL, &product.Description, &product.CreatedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return
			}
			span.RecordError(err)
			h.logger.Error("Failed to fetch product", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		// Cache the product for 5 minutes
		cache.SetProduct(ctx, h.redisClient, id, product, 5*time.Minute)
	}

	err := h.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM wishlist WHERE user_id = $1 AND product_id = $2)",
		userID, product.ID,
	).Scan(&product.InWishlist)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch wishlist flag", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": product})
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("easicart-api").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	err := h.db.QueryRowContext(ctx,
		"INSERT INTO products (name, price, image_url, description) VALUES ($1, $2, $3, $4) RETURNING id, name, price, image_url, description, created_at",
		req.Name, req.Price, req.ImageURL, req.Description,
	).Scan(&product.ID, &product.Name, &product.Price, &product.ImageURL, &product.Description, &product.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created", zap.Int("product_id", product.ID))
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": product})
}
