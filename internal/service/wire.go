package service

import (
	"log/slog"
	"time"

	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/dice"
)

// Services bundles the engine-backed services a process runs.
type Services struct {
	Checks *CheckService
	Combat *CombatService
}

// New wires the check engine and combat processor onto one storage backend.
// events may be nil.
func New(store storage.Storage, roller dice.Roller, events combat.EventLogger, locker Locker, owner string, log *slog.Logger) *Services {
	engine := check.NewEngine(store, roller, store, store, log)
	processor := combat.NewProcessor(engine, store, roller, store, store, events, log)
	return &Services{
		Checks: NewCheckService(engine, log),
		Combat: NewCombatService(processor, store, locker, owner, log),
	}
}

// NewRoller returns a seeded roller when seed is non-zero and a time-seeded one otherwise.
func NewRoller(seed int64) dice.Roller {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return dice.NewRandomRoller(seed)
}
