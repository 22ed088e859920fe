package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"easicart-api/cache"
	"easicart-api/database"
	"easicart-api/gateway"
	"easicart-api/handlers"
	"easicart-api/kafka"
	"easicart-api/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize Kafka consumer for notifications
	consumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	go func() {
		if err := kafka.StartConsumer(consumer, logger); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("easicart-api")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Payment gateway client
	gatewayCfg := gateway.LoadConfig()
	gatewayClient := gateway.NewClient(gatewayCfg, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("easicart-api"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db, logger)
	router.POST("/api/auth/signup", authHandler.Signup)
	router.POST("/api/auth/login", authHandler.Login)

	// Webhook endpoint, authenticated by signature rather than JWT
	webhookHandler := handlers.NewWebhookHandler(db, producer, gatewayCfg.WebhookSecret, logger)
	router.POST("/api/payments/webhook", webhookHandler.HandlePaymentWebhook)

	// Storefront endpoints
	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	cartHandler := handlers.NewCartHandler(db, logger)
	wishlistHandler := handlers.NewWishlistHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, producer, gatewayClient, logger)

	api := router.Group("/api", middleware.AuthRequired())
	{
		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/:id", productHandler.GetProduct)
		api.POST("/products", productHandler.CreateProduct)

		api.GET("/wishlist", wishlistHandler.GetWishlist)
		api.POST("/wishlist", wishlistHandler.AddItem)
		api.DELETE("/wishlist/:product_id", wishlistHandler.RemoveItem)

		api.GET("/cart", cartHandler.GetCart)
		api.POST("/cart", cartHandler.AddItem)
		api.PUT("/cart", cartHandler.UpdateItem)
		api.DELETE("/cart/:product_id", cartHandler.RemoveItem)
		api.DELETE("/cart", cartHandler.ClearCart)

		api.POST("/orders", orderHandler.CreateOrder)
		api.GET("/orders", orderHandler.GetOrders)
		api.GET("/orders/:id", orderHandler.GetOrder)
		api.GET("/orders/:id/items", orderHandler.GetOrderItems)
	}

	// Start REST server
	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Easicart API started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
