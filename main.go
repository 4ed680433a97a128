package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/detodounpoco/marketplace-api/config"
	"github.com/detodounpoco/marketplace-api/controllers"
	"github.com/detodounpoco/marketplace-api/logger"
	"github.com/detodounpoco/marketplace-api/middleware"
	"github.com/detodounpoco/marketplace-api/models"
	"github.com/detodounpoco/marketplace-api/services"
	"github.com/detodounpoco/marketplace-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The structured logger is not configured yet
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log, restoreLogger, err := logger.Install(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer restoreLogger()
	defer func() { _ = log.Sync() }()

	log.Info("starting marketplace API", zap.String("env", cfg.GoEnv))

	// Connect to database
	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	if err := models.AutoMigrate(config.GetDB()); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("database migration completed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initMediaStorage(ctx, cfg); err != nil {
		log.Fatal("failed to initialize media storage", zap.Error(err))
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, middleware.EnsureValidToken(cfg), ctx.Done())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// initMediaStorage selects S3 when a bucket is configured and the local
// upload directory otherwise
func initMediaStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.UsesS3() {
		s3Service, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			return err
		}
		services.InitMediaService(s3Service)
		zap.L().Info("media storage: s3", zap.String("bucket", cfg.AWSS3Bucket))
		return nil
	}

	utils.UploadDir = cfg.UploadDir
	services.InitMediaService(services.NewLocalStorage(cfg.UploadDir))
	zap.L().Info("media storage: local", zap.String("dir", cfg.UploadDir))
	return nil
}

// setupRouter builds the API router. requireAuth guards the authenticated
// routes; done stops the rate limiter's background sweep.
func setupRouter(cfg *config.Config, requireAuth gin.HandlerFunc, done <-chan struct{}) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zap.L()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader},
		ExposeHeaders:    []string{middleware.CorrelationIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limit := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, done).Limit()

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
		v1.GET("/uploads/:filename", controllers.GetUploadedMedia)

		products := v1.Group("/products")
		{
			products.GET("", controllers.BrowseProducts)
			products.GET("/by-user/:sellerId", controllers.ListProductsBySeller)
			products.GET("/:id", controllers.GetProduct)
			products.POST("/add", limit, requireAuth, controllers.PublishProduct)
			products.PUT("/sold/:id", limit, requireAuth, controllers.MarkProductSold)
			products.DELETE("/:id", limit, requireAuth, controllers.DeleteProduct)
		}

		messages := v1.Group("/messages")
		{
			messages.GET("/by-product/:id", controllers.ListProductMessages)
			messages.GET("/by-product/:id/thread", controllers.GetProductThread)
			messages.POST("", limit, requireAuth, controllers.PostMessage)
		}

		users := v1.Group("/users")
		{
			users.POST("", limit, requireAuth, controllers.CreateUser)
			users.GET("/me", requireAuth, controllers.GetMyProfile)
			users.PUT("/me", limit, requireAuth, controllers.UpdateMyProfile)
			users.GET("/:id", controllers.GetUser)
		}

		v1.POST("/billing/subscription-events",
			limit,
			middleware.RequireBillingSecret(cfg.BillingWebhookSecret),
			controllers.ApplySubscriptionEvent,
		)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Marketplace API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not connected",
			},
		})
		return
	}

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		zap.L().Warn("database ping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
