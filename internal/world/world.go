// Package world loads tenant fixtures: rules, entities, relationships and
// encounters, from JSON or YAML files.
package world

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"gopkg.in/yaml.v3"
)

// World is everything one tenant needs to resolve checks and run encounters.
type World struct {
	TenantID      string                      `json:"tenant_id"`
	Rules         map[string]any              `json:"rules,omitempty"`
	Entities      []actor.CharacterSpec       `json:"entities,omitempty"`
	Relationships []relationship.Relationship `json:"relationships,omitempty"`
	Encounters    []encounter.Encounter       `json:"encounters,omitempty"`
}

// LoadFile reads a world from a .json, .yaml or .yml file.
func LoadFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported file extension %q: use .json, .yaml or .yml", filepath.Ext(path))
	}
}

// ParseJSON decodes a world strictly: unknown fields are errors.
func ParseJSON(data []byte) (*World, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var w World
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed strict JSON unmarshaling: %w", err)
	}
	return &w, nil
}

// ParseYAML decodes a YAML world. The document is converted to JSON first so
// the same field names and strictness apply to both formats.
func ParseYAML(data []byte) (*World, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML document cannot be represented as JSON: %w", err)
	}
	return ParseJSON(converted)
}

// Apply writes the world into storage. Encounters are stamped with the world's tenant.
func (w *World) Apply(ctx context.Context, store storage.Storage) error {
	if err := store.SetRules(ctx, w.TenantID, w.Rules); err != nil {
		return err
	}
	for i := range w.Entities {
		if err := store.SaveEntity(ctx, w.TenantID, &w.Entities[i]); err != nil {
			return fmt.Errorf("entity %s: %w", w.Entities[i].ID, err)
		}
	}
	for i := range w.Relationships {
		if err := store.SaveRelationship(ctx, w.TenantID, &w.Relationships[i]); err != nil {
			return fmt.Errorf("relationship %s: %w", w.Relationships[i].ID, err)
		}
	}
	for i := range w.Encounters {
		enc := &w.Encounters[i]
		enc.TenantID = w.TenantID
		if enc.CombatLog == nil {
			enc.CombatLog = []encounter.LogEntry{}
		}
		if err := store.SaveEncounter(ctx, enc); err != nil {
			return fmt.Errorf("encounter %s: %w", enc.ID, err)
		}
	}
	return nil
}
