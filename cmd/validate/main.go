package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/internal/world"
)

func main() {
	load := flag.Bool("load", false, "write the world into Redis after it validates")
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL used with -load")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-load] [-redis url] <world.yaml|world.json>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	for _, filename := range flag.Args() {
		w, err := validateFile(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("World file %s is valid!\n", filename)

		if *load {
			if err := apply(w, *redisURL); err != nil {
				fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
				failed = true
				continue
			}
			fmt.Printf("Loaded tenant %s into %s\n", w.TenantID, *redisURL)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func validateFile(filename string) (*world.World, error) {
	fmt.Printf("Validating %s...\n", filename)

	w, err := world.LoadFile(filename)
	if err != nil {
		return nil, err
	}
	if errs := w.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(errs, "\n"))
	}
	return w, nil
}

func apply(w *world.World, redisURL string) error {
	client, err := storage.NewRedisClient(redisURL)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := storage.NewRedisStorage(client, logger)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return w.Apply(ctx, store)
}
