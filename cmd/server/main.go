package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/config"
	"github.com/voyago/booking-backend/internal/database"
	"github.com/voyago/booking-backend/internal/handlers"
	"github.com/voyago/booking-backend/internal/middleware"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/internal/services"
	"github.com/voyago/booking-backend/pkg/jwt"
	"github.com/voyago/booking-backend/pkg/notify"
	"github.com/voyago/booking-backend/pkg/provider"
	"github.com/voyago/booking-backend/pkg/validator"
	"github.com/voyago/booking-backend/pkg/voucher"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

const (
	permissionViewAuditLogs = "view-audit-logs"
	permissionManageJobs    = "manage-system-jobs"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Voyago Booking Lifecycle Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if err := validator.RegisterGinValidators(); err != nil {
		logger.Fatalf("Failed to register request validators: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	bookingRepository := database.NewBookingRepository(db.DB)
	statusLogRepository := database.NewStatusLogRepository(db.DB)
	auditLogRepository := database.NewAuditLogRepository(db.DB)
	outboxRepository := database.NewOutboxRepository(db.DB)

	// Notification transport
	var trigger services.NotificationTrigger
	if cfg.Redis.URL != "" {
		redisClient, err := notify.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		trigger = notify.NewRedisTrigger(redisClient, cfg.Redis.NotificationStream)
		logger.Infof("Notifications published to Redis stream %s", cfg.Redis.NotificationStream)
	} else {
		trigger = notify.NewLogTrigger(logger)
		logger.Warn("REDIS_URL not set, notifications will only be logged")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(auditLogRepository, logger)
	dispatcher := services.NewOutboxDispatcher(outboxRepository, trigger, logger, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)
	transitionService := services.NewTransitionService(
		bookingRepository,
		statusLogRepository,
		services.NewClaimsPermissionChecker(),
		auditService,
		dispatcher,
		logger,
	)

	if cfg.Provider.APIURL == "" {
		logger.Warn("HOTEL_PROVIDER_API_URL not set, reconciliation retries will fail")
	}
	hotelClient := provider.NewHotelClient(provider.HotelClientConfig{
		APIURL:  cfg.Provider.APIURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.RetryTimeout,
	})
	reconciliationService := services.NewReconciliationService(
		transitionService,
		hotelClient,
		auditService,
		logger,
		cfg.Provider.RetryTimeout,
		services.FullRefund,
	).WithRetryLimiter(services.NewRetryLimiter(auditLogRepository, services.RetryLimitConfig{
		MaxFailures: cfg.Provider.MaxRetryFailures,
		Window:      cfg.Provider.RetryWindow,
	}))
	voucherStore := voucher.NewHTTPStore(cfg.Voucher.StoreURL, cfg.Voucher.Timeout)

	// Initialize and start cron service
	consistencyService := services.NewConsistencyService(bookingRepository)
	cronService := services.NewCronService(dispatcher, consistencyService, logger, cfg.Outbox.DrainSchedule)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(transitionService, reconciliationService, voucherStore, logger)
	auditLogHandler := handlers.NewAuditLogHandler(auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	admin := v1.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		bookings := admin.Group("/bookings/:kind/:id")
		{
			bookings.GET("", bookingHandler.GetBooking)
			bookings.GET("/allowed-transitions", bookingHandler.AllowedTransitions)
			bookings.PATCH("/status", bookingHandler.ChangeStatus)
			bookings.POST("/reconcile", bookingHandler.Reconcile)
			bookings.GET("/status-logs", bookingHandler.ListStatusLogs)
			bookings.GET("/voucher", bookingHandler.DownloadVoucher)
		}

		admin.GET("/audit-logs", middleware.RequirePermission(permissionViewAuditLogs), auditLogHandler.ListAuditLogs)

		// Background job management
		jobs := admin.Group("/cron")
		jobs.Use(middleware.RequirePermission(permissionManageJobs))
		{
			jobs.POST("/drain-outbox", func(c *gin.Context) {
				cronService.RunDrainNow()
				c.JSON(http.StatusOK, gin.H{"message": "Outbox drain triggered"})
			})

			jobs.POST("/consistency-check", func(c *gin.Context) {
				cronService.RunConsistencyCheckNow()
				c.JSON(http.StatusOK, gin.H{"message": "Consistency check triggered"})
			})

			jobs.GET("/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
		}
	}

	logger.WithField("kinds", models.AllBookingKinds).Info("Booking routes registered")

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Provider.RetryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop cron service, then let in-flight notifications finish
	logger.Info("Stopping cron service...")
	cronService.Stop()
	dispatcher.Wait()

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		if actor, exists := middleware.ActorFromContext(c); exists {
			fields["user_id"] = actor.ID
			fields["user_name"] = actor.Name
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		// Log based on status code
		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
