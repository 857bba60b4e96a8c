package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/config"
	"github.com/jwebster45206/rules-engine/internal/events"
	"github.com/jwebster45206/rules-engine/internal/lock"
	"github.com/jwebster45206/rules-engine/internal/logger"
	"github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Rules Engine Worker",
		"environment", cfg.Environment,
		"max_requeues", cfg.MaxRequeues)

	redisClient, err := storage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}
	store := storage.NewRedisStorage(redisClient, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	actionQueue := queue.NewActionQueue(redisClient, cfg.ResultTTL, log)

	// The worker ID doubles as the lock owner prefix
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	svc := service.New(
		store,
		service.NewRoller(cfg.DiceSeed),
		events.NewSink(redisClient, log),
		lock.NewEncounterLock(redisClient, cfg.LockTTL, log),
		workerID,
		log,
	)
	w := worker.New(actionQueue, svc.Combat, events.NewBroadcaster(redisClient, log), cfg.MaxRequeues, log, workerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give worker time to finish current request
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
