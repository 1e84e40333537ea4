package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/config"
	"github.com/yourorg/taskboard/internal/events"
	"github.com/yourorg/taskboard/internal/handler"
	"github.com/yourorg/taskboard/internal/hub"
	"github.com/yourorg/taskboard/internal/middleware"
	"github.com/yourorg/taskboard/internal/repository"
	"github.com/yourorg/taskboard/internal/service"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis client (if enabled)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Connected to Redis", zap.String("address", cfg.Redis.Addr))
		}
	}

	// Create the push hub
	pushHub := hub.New(cfg.Hub, logger)

	// Create repositories
	userRepo := repository.NewUserRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)

	// Create services
	authService := service.NewAuthService(userRepo, cfg, logger)
	notificationService := service.NewNotificationService(
		notificationRepo,
		pushHub,
		redisClient,
		cfg.Redis.CountTTL,
		logger,
	)

	// Start the domain-event consumer (if enabled)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		consumer := events.NewConsumer(cfg.Kafka, notificationService, pushHub, logger)
		defer consumer.Close()
		go func() {
			logger.Info("Starting domain event consumer",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic))
			if err := consumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
				logger.Error("Domain event consumer stopped", zap.Error(err))
			}
		}()
	}

	// Create HTTP server
	router := setupRouter(authService, notificationService, pushHub, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	stopConsumer()
	pushHub.Close()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRouter(
	authService *service.AuthService,
	notificationService *service.NotificationService,
	pushHub *hub.Hub,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Push channel; authenticates its own token so browser clients can
	// connect with a query parameter
	hubHandler := handler.NewHubHandler(pushHub, authService, logger)
	router.GET("/notificationHub", hubHandler.Connect)

	api := router.Group("/api")
	{
		// ==================== AUTH ROUTES ====================
		auth := api.Group("/auth")
		{
			authHandler := handler.NewAuthHandler(authService, logger)
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// ==================== NOTIFICATION ROUTES ====================
		notifications := api.Group("/notification")
		{
			notifications.Use(middleware.AuthMiddleware(authService, logger))

			notifHandler := handler.NewNotificationHandler(notificationService, logger)
			notifications.GET("", notifHandler.GetNotifications)
			notifications.GET("/unread-count", notifHandler.GetUnreadCount)
			notifications.PATCH("/:id/read", notifHandler.MarkAsRead)
			notifications.PATCH("/mark-all-read", notifHandler.MarkAllAsRead)
			notifications.DELETE("/:id", notifHandler.DeleteNotification)
		}
	}

	return router
}
