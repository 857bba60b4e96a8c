package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	queuePkg "github.com/jwebster45206/rules-engine/pkg/queue"
)

func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL")
	tenantID := flag.String("tenant", "demo", "tenant ID")
	encounterID := flag.String("encounter", "00000000-0000-0000-0000-000000000001", "encounter ID")
	actorID := flag.String("actor", "hero", "acting player ID")
	targetID := flag.String("target", "goblin", "target ID")
	targetType := flag.String("target-type", string(actor.TypeMonster), "target type")
	count := flag.Int("n", 1, "number of attacks to enqueue")
	wait := flag.Bool("wait", false, "poll for results after enqueueing")
	flag.Parse()

	encID, err := uuid.Parse(*encounterID)
	if err != nil {
		log.Fatal("Invalid encounter ID:", err)
	}

	client, err := storage.NewRedisClient(*redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	fmt.Println("Connected to Redis successfully!")

	q := queue.NewActionQueue(client, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var ids []string
	for range *count {
		req := queuePkg.NewCombatRequest(combat.Request{
			TenantID:    *tenantID,
			EncounterID: encID,
			Actor:       actor.Ref{ID: *actorID, Type: actor.TypePlayer},
			Action: combat.Action{
				Type:       combat.ActionAttack,
				TargetID:   *targetID,
				TargetType: actor.Type(*targetType),
			},
		})
		if err := q.Enqueue(ctx, req); err != nil {
			log.Fatal("Failed to enqueue request:", err)
		}
		ids = append(ids, req.RequestID)
		fmt.Printf("Enqueued attack %s -> %s: %s\n", *actorID, *targetID, req.RequestID)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}
	fmt.Printf("\nQueue depth: %d requests\n", depth)

	if !*wait {
		fmt.Println("Start the worker to process these requests: go run ./cmd/worker")
		return
	}

	deadline := time.Now().Add(30 * time.Second)
	for _, id := range ids {
		for {
			res, err := q.GetResult(ctx, id)
			if err != nil {
				log.Fatal("Failed to read result:", err)
			}
			if res != nil && res.Status != queuePkg.ResultStatusQueued {
				if res.Action != nil {
					fmt.Printf("%s [%s] %s\n", id, res.Status, res.Action.Description)
				} else {
					fmt.Printf("%s [%s] %s\n", id, res.Status, res.Error)
				}
				break
			}
			if time.Now().After(deadline) {
				log.Fatalf("Timed out waiting for %s", id)
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}
