package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resellhub-api/internal/amazon"
	"resellhub-api/internal/cache"
	"resellhub-api/internal/config"
	"resellhub-api/internal/handler"
	"resellhub-api/internal/middleware"
	"resellhub-api/internal/repository"
	"resellhub-api/internal/router"
	"resellhub-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting ResellHub API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize sync storage based on config
	var feedRepo repository.FeedRepository
	var queueRepo repository.QueueRepository
	switch cfg.SyncDB.Type {
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("Failed to ping MySQL: %v", err)
		}
		defer mysqlDB.Close()

		feedRepo, err = repository.NewMySQLFeedRepository(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL feed repository: %v", err)
		}
		queueRepo, err = repository.NewMySQLQueueRepository(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL queue repository: %v", err)
		}
		log.Println("MySQL sync repositories initialized")
	default: // sqlite
		sqliteFeeds, err := repository.NewSQLiteFeedRepository(cfg.SyncDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite feed repository: %v", err)
		}
		defer sqliteFeeds.Close()
		feedRepo = sqliteFeeds

		sqliteQueue, err := repository.NewSQLiteQueueRepository(cfg.SyncDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite queue repository: %v", err)
		}
		defer sqliteQueue.Close()
		queueRepo = sqliteQueue
		log.Println("SQLite sync repositories initialized")
	}

	// Initialize Redis mark buffer (optional; marks go straight to the
	// database when Redis is unavailable)
	var markBuffer *cache.RedisMarkBuffer
	bufferCfg := cache.RedisBufferConfig{
		Addr:          cfg.Cache.RedisAddress(),
		Password:      cfg.Cache.RedisPassword,
		DB:            cfg.Cache.RedisDB,
		FlushInterval: cfg.Cache.FlushInterval,
	}
	markBuffer, err := cache.NewRedisMarkBuffer(bufferCfg, service.CreateFlushFunc(queueRepo))
	if err != nil {
		log.Printf("Warning: Redis mark buffer initialization failed: %v", err)
		markBuffer = nil
	} else {
		log.Println("Redis mark buffer initialized")
	}

	// Initialize Amazon clients
	spapiClient := amazon.NewSPAPIClient(amazon.SPAPIConfig{
		BaseURL:       cfg.Amazon.BaseURL,
		AccessToken:   cfg.Amazon.AccessToken,
		SellerID:      cfg.Amazon.SellerID,
		MarketplaceID: cfg.Amazon.MarketplaceID,
		HTTPTimeout:   cfg.Amazon.HTTPTimeout,
		MaxRetries:    cfg.Amazon.MaxRetries,
	})
	dryRunClient := amazon.NewDryRunSimulator()

	// Initialize services
	queueService := service.NewQueueService(queueRepo)
	if markBuffer != nil {
		queueService.SetBuffer(markBuffer)
	}

	orchestrator := service.NewSyncOrchestrator(feedRepo, queueRepo, spapiClient, dryRunClient, service.PollerConfig{
		MaxPollAttempts:   cfg.Poller.MaxPollAttempts,
		ProcessingCeiling: cfg.Poller.ProcessingCeiling,
	})

	// Background poll scheduler
	var scheduler *service.PollScheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewPollScheduler(orchestrator, service.SchedulerConfig{
			TickInterval:       cfg.Scheduler.TickInterval,
			ProcessingInterval: cfg.Scheduler.ProcessingInterval,
			VerifyInitialDelay: cfg.Scheduler.VerifyInitialDelay,
			VerifyInterval:     cfg.Scheduler.VerifyInterval,
		})
		scheduler.Start()
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	queueHandler := handler.NewQueueHandler(queueService)
	feedHandler := handler.NewFeedHandler(orchestrator, queueService)
	adminHandler := handler.NewAdminHandler(feedRepo, queueService, cfg.SyncDB.Type)

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		QueueHandler:   queueHandler,
		FeedHandler:    feedHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop polling before the storage goes away
	if scheduler != nil {
		log.Println("Stopping poll scheduler...")
		scheduler.Stop()
	}

	// Close the mark buffer first (flushes pending marks)
	if markBuffer != nil {
		log.Println("Closing Redis mark buffer...")
		markBuffer.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
