// Package rules resolves per-tenant rule values. Values are JSON-compatible:
// numbers, strings (dice notation or formulas), bools, maps and lists.
package rules

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// Provider looks up a rule value for a tenant, returning def when the key is unset.
type Provider interface {
	GetRule(ctx context.Context, tenantID, key string, def any) (any, error)
}

// Resolver reads rules for one tenant, preferring a frozen snapshot over the live
// provider. Every value it hands out is recorded so callers can attach an audit
// snapshot of exactly what was consulted.
//
// A Resolver is scoped to a single check or action and is not safe for concurrent use.
type Resolver struct {
	provider Provider
	tenantID string
	frozen   map[string]any
	logger   *slog.Logger

	consulted map[string]any
}

// NewResolver creates a resolver. frozen may be nil.
func NewResolver(provider Provider, tenantID string, frozen map[string]any, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:  provider,
		tenantID:  tenantID,
		frozen:    frozen,
		logger:    logger,
		consulted: make(map[string]any),
	}
}

// Value returns the rule value for key. The snapshot wins when it holds the key; the
// live provider is not queried in that case. Provider failures fall back to def.
func (r *Resolver) Value(ctx context.Context, key string, def any) any {
	if v, ok := r.consulted[key]; ok {
		return v
	}
	if v, ok := r.frozen[key]; ok {
		r.consulted[key] = v
		return v
	}

	v := def
	if r.provider != nil {
		got, err := r.provider.GetRule(ctx, r.tenantID, key, def)
		if err != nil {
			r.logger.Warn("Rule lookup failed, using default",
				"tenant_id", r.tenantID,
				"key", key,
				"error", err)
		} else {
			v = got
		}
	}
	r.consulted[key] = v
	return v
}

// Int returns the rule as an int, or def when unset or not numeric.
func (r *Resolver) Int(ctx context.Context, key string, def int) int {
	v := r.Value(ctx, key, def)
	n, ok := ToInt(v)
	if !ok {
		r.logger.Warn("Rule value is not an integer, using default", "key", key, "value", v)
		return def
	}
	return n
}

// String returns the rule as a string, or def when unset or not a string.
func (r *Resolver) String(ctx context.Context, key string, def string) string {
	v := r.Value(ctx, key, def)
	s, ok := v.(string)
	if !ok {
		r.logger.Warn("Rule value is not a string, using default", "key", key, "value", v)
		return def
	}
	return s
}

// Map returns the rule as a structured map. ok is false when unset or not a map.
func (r *Resolver) Map(ctx context.Context, key string) (map[string]any, bool) {
	m, ok := r.Value(ctx, key, nil).(map[string]any)
	return m, ok
}

// Record stores an extra audit entry, such as an evaluation error, in the snapshot.
func (r *Resolver) Record(key string, v any) {
	r.consulted[key] = v
}

// Consulted returns a copy of every rule value handed out so far.
func (r *Resolver) Consulted() map[string]any {
	return maps.Clone(r.consulted)
}

// MapProvider is an in-memory Provider keyed by tenant, then rule key.
type MapProvider struct {
	mu    sync.RWMutex
	rules map[string]map[string]any
}

var _ Provider = (*MapProvider)(nil)

// NewMapProvider creates an empty provider.
func NewMapProvider() *MapProvider {
	return &MapProvider{rules: make(map[string]map[string]any)}
}

// Set stores a rule value.
func (p *MapProvider) Set(tenantID, key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rules[tenantID] == nil {
		p.rules[tenantID] = make(map[string]any)
	}
	p.rules[tenantID][key] = value
}

// GetRule implements Provider.
func (p *MapProvider) GetRule(_ context.Context, tenantID, key string, def any) (any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.rules[tenantID][key]; ok {
		return v, nil
	}
	return def, nil
}
