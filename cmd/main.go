package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulseplan/go-nudge-service/internal/consumer"
	"github.com/pulseplan/go-nudge-service/internal/handler"
	"github.com/pulseplan/go-nudge-service/internal/middleware"
	"github.com/pulseplan/go-nudge-service/internal/push"
	"github.com/pulseplan/go-nudge-service/internal/repository"
	"github.com/pulseplan/go-nudge-service/internal/scheduler"
	"github.com/pulseplan/go-nudge-service/internal/service"
	"github.com/pulseplan/go-nudge-service/internal/shared/config"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"github.com/pulseplan/go-nudge-service/internal/shared/rabbitmq"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Nudge Service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize repositories
	jobRepo := repository.NewJobRepository(mongoClient)
	lockRepo := repository.NewDeviceLockRepository(mongoClient)
	nudgeRepo := repository.NewNudgeRepository(mongoClient)
	historyRepo := repository.NewHistoryRepository(mongoClient)
	preferencesRepo := repository.NewPreferencesRepository(mongoClient)
	goalRepo := repository.NewGoalRepository(mongoClient)
	statsRepo := repository.NewStatsRepository(mongoClient)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndexes()
	for name, ensure := range map[string]func(context.Context) error{
		"scheduled_jobs":       jobRepo.EnsureIndexes,
		"device_locks":         lockRepo.EnsureIndexes,
		"notification_history": historyRepo.EnsureIndexes,
		"user_preferences":     preferencesRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal("Failed to ensure indexes", "error", err, "collection", name)
		}
	}

	// Initialize push client and optional text generator
	pushClient := push.NewHTTPClient(cfg.Push.Endpoint, cfg.Push.APIKey, cfg.Push.Timeout)

	var generator service.TextGenerator
	if cfg.Generator.Endpoint != "" {
		generator = service.NewHTTPGenerator(cfg.Generator.Endpoint, cfg.Generator.APIKey, cfg.Generator.Model, cfg.Generator.Timeout)
	} else {
		log.Warn("No generator endpoint configured, using fallback messages only")
	}

	// Initialize scheduler
	nudgeScheduler := scheduler.NewNudgeScheduler(jobRepo, log, scheduler.Options{
		MisfireGrace: cfg.Scheduler.MisfireGrace,
		PollInterval: cfg.Scheduler.PollInterval,
	})

	// Initialize services
	accountResolver := service.NewAccountResolver(preferencesRepo, log)
	composer := service.NewComposer(generator, log)
	deliveryService := service.NewDeliveryService(preferencesRepo, pushClient, log)
	checkpointService := service.NewCheckpointService(
		preferencesRepo, accountResolver, lockRepo, statsRepo, historyRepo,
		composer, deliveryService, nudgeScheduler, log,
	)
	reminderService := service.NewReminderService(
		goalRepo, nudgeRepo, accountResolver, lockRepo, deliveryService,
		nudgeScheduler, cfg.Scheduler.ReminderBuffer, log,
	)

	// Handlers must be registered before the scheduler loads stored jobs.
	nudgeScheduler.RegisterHandler(service.HandlerCheckpoint, checkpointService.HandleCheckpointJob)
	nudgeScheduler.RegisterHandler(service.HandlerReminder, reminderService.HandleReminderJob)
	if err := nudgeScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}
	defer nudgeScheduler.Stop()

	// Initialize HTTP handlers
	preferencesHandler := handler.NewPreferencesHandler(checkpointService, log)
	checkpointHandler := handler.NewCheckpointHandler(checkpointService, log)
	nudgeHandler := handler.NewNudgeHandler(reminderService, nudgeRepo, log)
	historyHandler := handler.NewHistoryHandler(historyRepo, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewUserRateLimiter(cfg.Server.RateLimitPerUser, cfg.Server.RateLimitBurst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		preferences := v1.Group("/preferences")
		{
			preferences.PUT("/:email/notifications", preferencesHandler.UpdateNotifications)
			preferences.PUT("/:email/device-token", preferencesHandler.RegisterDeviceToken)
		}

		checkpoints := v1.Group("/checkpoints")
		{
			checkpoints.POST("/send", checkpointHandler.SendNow)
		}

		goals := v1.Group("/goals")
		{
			goals.POST("/:id/reminders", nudgeHandler.DeriveReminders)
		}

		nudges := v1.Group("/nudges")
		{
			nudges.GET("", nudgeHandler.GetNudges)
		}

		history := v1.Group("/history")
		{
			history.GET("", historyHandler.GetHistory)
		}
	}

	// Start RabbitMQ consumer
	eventConsumer := consumer.NewEventConsumer(rabbitMQClient, checkpointService, reminderService, preferencesRepo, nudgeScheduler, log)
	go func() {
		if err := eventConsumer.Start(context.Background()); err != nil {
			log.Error("Failed to start event consumer", "error", err)
		}
	}()

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Nudge Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Nudge Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Nudge Service stopped")
}
