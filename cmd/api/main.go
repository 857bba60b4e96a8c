package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/rules-engine/internal/config"
	"github.com/jwebster45206/rules-engine/internal/events"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/internal/lock"
	"github.com/jwebster45206/rules-engine/internal/logger"
	"github.com/jwebster45206/rules-engine/internal/middleware"
	"github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Rules Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment)

	redisClient, err := storage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}
	store := storage.NewRedisStorage(redisClient, log)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	broadcaster := events.NewBroadcaster(redisClient, log)
	actionQueue := queue.NewActionQueue(redisClient, cfg.ResultTTL, log)
	svc := service.New(
		store,
		service.NewRoller(cfg.DiceSeed),
		events.NewSink(redisClient, log),
		lock.NewEncounterLock(redisClient, cfg.LockTTL, log),
		"api",
		log,
	)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, actionQueue, log))
	mux.Handle("/v1/checks", handlers.NewCheckHandler(svc.Checks, log))

	encounterHandler := handlers.NewEncounterHandler(store, svc.Combat, actionQueue, broadcaster, log)
	mux.Handle("/v1/encounters/", encounterHandler)

	mux.Handle("/v1/actions/", handlers.NewResultHandler(actionQueue, log))
	mux.Handle("/v1/events/", handlers.NewEventsHandler(redisClient, log))

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events endpoint streams
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
