package combat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"github.com/jwebster45206/rules-engine/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const tenant = "tenant-1"

var (
	hero   = actor.Ref{ID: "hero", Type: actor.TypePlayer}
	goblin = actor.Ref{ID: "goblin", Type: actor.TypeMonster}
)

type memLoader map[uuid.UUID]*encounter.Encounter

func (m memLoader) LoadEncounter(_ context.Context, tenantID string, id uuid.UUID) (*encounter.Encounter, error) {
	enc, ok := m[id]
	if !ok || enc.TenantID != tenantID {
		return nil, nil
	}
	return enc, nil
}

type failingLoader struct{}

func (failingLoader) LoadEncounter(context.Context, string, uuid.UUID) (*encounter.Encounter, error) {
	return nil, errors.New("connection refused")
}

type loggedEvent struct {
	tenantID  string
	eventType string
	details   map[string]any
	entityIDs []string
}

type recordingEvents struct {
	events []loggedEvent
}

func (r *recordingEvents) LogEvent(_ context.Context, tenantID, eventType string, details map[string]any, _ string, entityIDs []string) error {
	r.events = append(r.events, loggedEvent{tenantID, eventType, details, entityIDs})
	return nil
}

type fixture struct {
	provider *rules.MapProvider
	entities *actor.Registry
	events   *recordingEvents
	enc      *encounter.Encounter
	logOut   io.Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: rules.NewMapProvider(),
		entities: actor.NewRegistry(),
		events:   &recordingEvents{},
	}
	heroChar, err := actor.NewCharacter(&actor.CharacterSpec{
		ID: hero.ID, Type: hero.Type, Name: "Kara",
		Stats: map[string]int{"strength": 3},
		HP:    12, MaxHP: 12, AC: 14,
	})
	require.NoError(t, err)
	goblinChar, err := actor.NewCharacter(&actor.CharacterSpec{
		ID: goblin.ID, Type: goblin.Type, Name: "Goblin",
		Stats: map[string]int{"strength": 1},
		HP:    10, MaxHP: 10, AC: 12,
	})
	require.NoError(t, err)
	f.entities.Add(tenant, heroChar)
	f.entities.Add(tenant, goblinChar)

	f.enc = &encounter.Encounter{
		ID:         uuid.New(),
		TenantID:   tenant,
		Status:     encounter.StatusActive,
		TurnNumber: 3,
		Participants: []encounter.Participant{
			{ID: hero.ID, Type: hero.Type, CurrentHP: 12, MaxHP: 12, Team: "party"},
			{ID: goblin.ID, Type: goblin.Type, CurrentHP: 10, MaxHP: 10, Team: "monsters"},
		},
	}
	return f
}

func (f *fixture) processor(faces ...int) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	if f.logOut != nil {
		logger = slog.New(slog.NewTextHandler(f.logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	roller := dice.NewMockRoller(faces...)
	engine := check.NewEngine(f.provider, roller, relationship.NewMemoryStore(), f.entities, logger)
	p := NewProcessor(engine, f.provider, roller, f.entities, memLoader{f.enc.ID: f.enc}, f.events, logger)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func (f *fixture) attack() Request {
	return Request{
		TenantID:    tenant,
		EncounterID: f.enc.ID,
		Actor:       hero,
		Action:      Action{Type: ActionAttack, TargetID: goblin.ID, TargetType: goblin.Type},
	}
}

func (f *fixture) goblinHP() int {
	return f.enc.Participant(goblin).CurrentHP
}

func TestProcessAction_Hit(t *testing.T) {
	f := newFixture(t)

	// 15 + 3 strength beats AC 12; 1d6 rolls 4, +3 strength.
	res, err := f.processor(15, 4).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.NotNil(t, res.DamageDealt)
	assert.Equal(t, 7, *res.DamageDealt)
	assert.Equal(t, 3, f.goblinHP())
	assert.Equal(t, "Kara hits Goblin for 7 damage.", res.Description)
	require.NotNil(t, res.CheckResult)
	assert.Equal(t, 18, res.CheckResult.FinalValue)
	assert.Equal(t, 12, *res.CheckResult.Difficulty)
	assert.Equal(t, "attack_roll", res.CheckResult.CheckType)

	require.Len(t, f.enc.CombatLog, 1)
	entry := f.enc.CombatLog[0]
	assert.Equal(t, 3, entry.TurnNumber)
	assert.Equal(t, hero.ID, entry.ActorID)
	assert.Equal(t, ActionAttack, entry.ActionType)
	assert.NotContains(t, entry.Details, "actor_id")
	assert.NotContains(t, entry.Details, "actor_type")
	assert.Equal(t, goblin.ID, entry.Details["target_id"])
	assert.True(t, f.enc.Modified())

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, EventCombatAction, ev.eventType)
	assert.Equal(t, []string{hero.ID, goblin.ID}, ev.entityIDs)
	assert.Equal(t, hero.ID, ev.details["actor_id"])
	assert.Equal(t, f.enc.ID.String(), ev.details["encounter_id"])
}

func TestProcessAction_Miss(t *testing.T) {
	f := newFixture(t)

	res, err := f.processor(2).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.DamageDealt)
	assert.Equal(t, "Kara misses Goblin.", res.Description)
	assert.Equal(t, 10, f.goblinHP())
	assert.Len(t, f.enc.CombatLog, 1)
	assert.Len(t, f.events.events, 1)
}

func TestProcessAction_Fumble(t *testing.T) {
	f := newFixture(t)
	f.enc.Participants[1].Stats = map[string]int{"armor_class": 2}

	res, err := f.processor(1).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, check.StatusCriticalFailure, res.CheckResult.Outcome.Status)
	assert.Equal(t, "Kara fumbles the attack on Goblin.", res.Description)
}

func TestProcessAction_CriticalEffects(t *testing.T) {
	tests := []struct {
		name   string
		effect any
		mult   any
		faces  []int
		want   int
	}{
		{"default multiplies", nil, nil, []int{20, 4}, (4 + 3) * 2},
		{"configured multiplier", CritMultiplyTotalDamage, 3, []int{20, 2}, (2 + 3) * 3},
		{"double dice", CritDoubleDamageDice, nil, []int{20, 4, 5}, 4 + 3 + 5},
		{"maximize and add", CritMaximizeAndAddDice, nil, []int{20, 4, 5}, 6 + 3 + 5},
		{"unknown effect multiplies", "explode", nil, []int{20, 1}, (1 + 3) * 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.enc.Participants[1].CurrentHP = 100
			if tt.effect != nil {
				f.provider.Set(tenant, rules.CriticalHitEffect, tt.effect)
			}
			if tt.mult != nil {
				f.provider.Set(tenant, rules.CriticalHitMultiplier, tt.mult)
			}

			res, err := f.processor(tt.faces...).ProcessAction(context.Background(), f.attack())
			require.NoError(t, err)
			require.True(t, res.Success)
			assert.Equal(t, check.StatusCriticalSuccess, res.CheckResult.Outcome.Status)
			assert.Equal(t, tt.want, *res.DamageDealt)
			assert.Equal(t, 100-tt.want, f.goblinHP())
		})
	}
}

func TestProcessAction_MaximizeKeepsFlatModifier(t *testing.T) {
	f := newFixture(t)
	f.enc.Participants[1].CurrentHP = 100
	f.provider.Set(tenant, rules.CriticalHitEffect, CritMaximizeAndAddDice)
	f.provider.Set(tenant, rules.AttackDamageFormula, "2d6+2")

	res, err := f.processor(20, 1, 1, 3, 4).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.Equal(t, 12+2+3+(3+4), *res.DamageDealt)
}

func TestProcessAction_DefeatsTarget(t *testing.T) {
	f := newFixture(t)
	f.enc.Participants[1].CurrentHP = 5

	res, err := f.processor(15, 6).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.Equal(t, 9, *res.DamageDealt)
	assert.Equal(t, 0, f.goblinHP())
	assert.Equal(t, true, res.AdditionalDetails["target_defeated"])
	assert.Equal(t, "Kara hits Goblin for 9 damage. Goblin falls.", res.Description)
}

func TestProcessAction_CombatModifiersAddToHit(t *testing.T) {
	f := newFixture(t)
	blessed, err := actor.NewCharacter(&actor.CharacterSpec{
		ID: hero.ID, Type: hero.Type, Name: "Kara",
		Stats:           map[string]int{"strength": 3},
		HP:              12, MaxHP: 12, AC: 14,
		CombatModifiers: map[string]int{"bless": 2},
	})
	require.NoError(t, err)
	f.entities.Add(tenant, blessed)

	// 8 + 3 strength misses AC 12 on its own; bless makes it 13.
	res, err := f.processor(8, 4).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.NotNil(t, res.CheckResult)
	assert.Equal(t, 13, res.CheckResult.FinalValue)
	require.Len(t, res.CheckResult.ModifierDetails, 2)
	assert.Equal(t, "combat_modifier:bless", res.CheckResult.ModifierDetails[1].Source)
	assert.Equal(t, 2, res.CheckResult.ModifierDetails[1].Value)
}

func TestProcessAction_TargetAlreadyDefeated(t *testing.T) {
	f := newFixture(t)
	f.enc.Participants[1].CurrentHP = 0

	res, err := f.processor(15, 6).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Nil(t, res.DamageDealt)
	assert.Nil(t, res.CheckResult)
	assert.Empty(t, f.enc.CombatLog)
	assert.Empty(t, f.events.events)
	assert.False(t, f.enc.Modified())
}

func TestProcessAction_InactiveEncounter(t *testing.T) {
	for _, status := range []encounter.Status{encounter.StatusEnded, encounter.StatusPending} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			f.enc.Status = status
			participants := append([]encounter.Participant(nil), f.enc.Participants...)

			res, err := f.processor(15, 6).ProcessAction(context.Background(), f.attack())
			require.NoError(t, err)

			assert.False(t, res.Success)
			assert.Equal(t, "The encounter is not active.", res.Description)
			assert.Equal(t, participants, f.enc.Participants)
			assert.Empty(t, f.enc.CombatLog)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestProcessAction_Preconditions(t *testing.T) {
	stranger := actor.Ref{ID: "stranger", Type: actor.TypeNPC}

	tests := []struct {
		name   string
		mutate func(f *fixture, req *Request)
		want   string
	}{
		{"unknown action", func(_ *fixture, r *Request) { r.Action.Type = "cast_spell" }, `Unknown combat action "cast_spell".`},
		{"missing encounter", func(_ *fixture, r *Request) { r.EncounterID = uuid.New() }, "Encounter not found."},
		{"other tenant", func(f *fixture, r *Request) {
			f.enc.TenantID = "tenant-2"
		}, "Encounter not found."},
		{"unknown actor", func(_ *fixture, r *Request) { r.Actor = actor.Ref{ID: "ghost", Type: actor.TypePlayer} }, "Acting character ghost could not be found."},
		{"actor not participant", func(f *fixture, r *Request) {
			c, _ := actor.NewCharacter(&actor.CharacterSpec{ID: stranger.ID, Type: stranger.Type, Name: "Stranger"})
			f.entities.Add(tenant, c)
			r.Actor = stranger
		}, "Stranger is not taking part in this encounter."},
		{"no target", func(_ *fixture, r *Request) { r.Action.TargetID = "" }, "An attack needs a target."},
		{"unknown target", func(_ *fixture, r *Request) { r.Action.TargetID = "ghost" }, "Target ghost could not be found."},
		{"target not participant", func(f *fixture, r *Request) {
			c, _ := actor.NewCharacter(&actor.CharacterSpec{ID: stranger.ID, Type: stranger.Type, Name: "Stranger"})
			f.entities.Add(tenant, c)
			r.Action.TargetID = stranger.ID
			r.Action.TargetType = stranger.Type
		}, "Stranger is not taking part in this encounter."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.attack()
			tt.mutate(f, &req)

			res, err := f.processor(15, 6).ProcessAction(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Description)
			assert.Equal(t, 10, f.goblinHP())
			assert.Empty(t, f.enc.CombatLog)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestProcessAction_LoadFailure(t *testing.T) {
	f := newFixture(t)
	p := f.processor(15).WithEncounters(failingLoader{})

	res, err := p.ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "The action could not be resolved right now.", res.Description)
}

func TestProcessAction_ParticipantOverrides(t *testing.T) {
	f := newFixture(t)
	f.enc.Participants[1].Stats = map[string]int{"armor_class": 25}

	res, err := f.processor(15, 6).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 25, *res.CheckResult.Difficulty)

	f = newFixture(t)
	f.enc.Participants[0].Stats = map[string]int{"strength": 8}
	res, err = f.processor(5, 2).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2+8, *res.DamageDealt)
}

func TestProcessAction_DefenseDefaultsToTen(t *testing.T) {
	f := newFixture(t)
	f.provider.Set(tenant, rules.AttackDefenseAttribute, "ward")

	res, err := f.processor(7, 1).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.Equal(t, 10, *res.CheckResult.Difficulty)
	assert.True(t, res.Success)
}

func TestProcessAction_SnapshotRules(t *testing.T) {
	f := newFixture(t)
	f.provider.Set(tenant, rules.AttackDamageFormula, "1d12")
	f.enc.RulesConfigSnapshot = map[string]any{
		rules.AttackDamageFormula:   "2d4",
		rules.AttackDamageAttribute: "dexterity",
	}

	res, err := f.processor(15, 1, 3).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.Equal(t, 1+3, *res.DamageDealt)
	assert.Equal(t, "2d4", res.AdditionalDetails["damage_formula"])
}

func TestProcessAction_NegativeDamageClamped(t *testing.T) {
	f := newFixture(t)
	f.provider.Set(tenant, rules.AttackDamageFormula, "1d4-10")

	res, err := f.processor(15, 2).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.Equal(t, 0, *res.DamageDealt)
	assert.Equal(t, 10, f.goblinHP())
}

func TestProcessAction_InvalidDamageFormula(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	f.logOut = &logs
	f.provider.Set(tenant, rules.AttackDamageFormula, "lots")

	res, err := f.processor(15).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, *res.DamageDealt)
	assert.Contains(t, res.AdditionalDetails, "damage_error")
	assert.Contains(t, logs.String(), "Invalid damage formula")
	assert.Contains(t, logs.String(), "tenant_id="+tenant)
}

func TestProcessAction_CheckErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.enc.RulesConfigSnapshot = map[string]any{rules.CheckDiceNotation("attack_roll"): "d"}

	res, err := f.processor(15).ProcessAction(context.Background(), f.attack())
	assert.Nil(t, res)
	var checkErr *check.Error
	assert.True(t, errors.As(err, &checkErr))
	assert.Empty(t, f.enc.CombatLog)
}

func TestProcessAction_Localized(t *testing.T) {
	f := newFixture(t)
	f.enc.RulesConfigSnapshot = map[string]any{rules.LocalizationLanguageKey: "ru"}

	res, err := f.processor(2).ProcessAction(context.Background(), f.attack())
	require.NoError(t, err)
	assert.Equal(t, "Kara промахивается по Goblin.", res.Description)
}

func TestProcessAction_HPNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		hp := rapid.IntRange(0, 30).Draw(rt, "hp")
		f.enc.Participants[1].CurrentHP = hp
		faces := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 6).Draw(rt, "faces")
		formula := rapid.SampledFrom([]string{"1d6", "2d8+1", "1d4-6", "3"}).Draw(rt, "formula")
		f.provider.Set(tenant, rules.AttackDamageFormula, formula)
		f.provider.Set(tenant, rules.CriticalHitEffect,
			rapid.SampledFrom([]string{CritMultiplyTotalDamage, CritDoubleDamageDice, CritMaximizeAndAddDice}).Draw(rt, "effect"))

		res, err := f.processor(faces...).ProcessAction(context.Background(), f.attack())
		if err != nil {
			rt.Fatalf("ProcessAction() error = %v", err)
		}
		if res.DamageDealt != nil && *res.DamageDealt < 0 {
			rt.Fatalf("damage_dealt = %d", *res.DamageDealt)
		}
		if got := f.goblinHP(); got < 0 {
			rt.Fatalf("current_hp = %d", got)
		}
	})
}
