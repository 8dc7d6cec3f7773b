package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-session-backend/config"
	"habit-session-backend/internal/api"
	"habit-session-backend/internal/budget"
	"habit-session-backend/internal/db"
	"habit-session-backend/internal/jobs"
	"habit-session-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "habit-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Background batch reassignment workers
	pool := jobs.NewReassignPool(cfg.WorkerPool.Size, appStore, cfg.Batch.OverflowThreshold)
	pool.Start(ctx)
	logger.Printf("reassignment pool started with %d workers", cfg.WorkerPool.Size)

	// Daily budget rollover purge
	rollover := jobs.NewRollover(appStore, budget.Config{
		DailyLimit:  time.Duration(cfg.Budget.DailyLimitSeconds) * time.Second,
		ResetHour:   cfg.Budget.ResetHour,
		ResetMinute: cfg.Budget.ResetMinute,
		Location:    cfg.Budget.Location,
	})
	if err := rollover.Start(); err != nil {
		logger.Fatalf("failed to start budget rollover: %v", err)
	}

	// Initialize router
	router := api.NewRouter(appStore, cfg, pool)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	rollover.Stop()

	logger.Println("Server gracefully stopped")
}
