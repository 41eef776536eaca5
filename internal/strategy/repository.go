package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"genstrat/internal/logger"
	"genstrat/internal/store"
)

const (
	strategyKeyPrefix = "strategy:"
	allSetName        = "strategies:all"
	activeSetName     = "strategies:active"
)

// Repository persists strategy definitions in the key-value store. Every
// write is schema-validated, so the monitor only ever sees definitions that
// passed validation.
type Repository struct {
	store store.Store
}

func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Save validates and stores one definition, maintaining the active set.
func (r *Repository) Save(ctx context.Context, def Definition) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("strategy repository not initialized")
	}
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return fmt.Errorf("strategy id is required")
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	if err := ValidateDefinitionJSON(raw); err != nil {
		return fmt.Errorf("strategy %s rejected: %w", def.ID, err)
	}
	if err := r.store.Set(ctx, strategyKeyPrefix+def.ID, string(raw)); err != nil {
		return err
	}
	if err := r.store.AddToSet(ctx, allSetName, def.ID); err != nil {
		return err
	}
	if def.Active {
		return r.store.AddToSet(ctx, activeSetName, def.ID)
	}
	return r.store.RemoveFromSet(ctx, activeSetName, def.ID)
}

// Get loads one definition by id.
func (r *Repository) Get(ctx context.Context, id string) (Definition, bool, error) {
	if r == nil || r.store == nil {
		return Definition{}, false, fmt.Errorf("strategy repository not initialized")
	}
	raw, ok, err := r.store.Get(ctx, strategyKeyPrefix+strings.TrimSpace(id))
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return Definition{}, false, err
	}
	var def Definition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return Definition{}, false, fmt.Errorf("strategy %s is corrupt: %w", id, err)
	}
	return def, true, nil
}

// Delete removes a definition and its set memberships.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("strategy repository not initialized")
	}
	id = strings.TrimSpace(id)
	if err := r.store.RemoveFromSet(ctx, activeSetName, id); err != nil {
		return err
	}
	if err := r.store.RemoveFromSet(ctx, allSetName, id); err != nil {
		return err
	}
	return r.store.Set(ctx, strategyKeyPrefix+id, "")
}

// ActiveDefinitions returns every definition in the active set. A member
// whose record is missing or corrupt is logged and skipped, never fatal to
// the pass.
func (r *Repository) ActiveDefinitions(ctx context.Context) ([]Definition, error) {
	return r.bySet(ctx, activeSetName)
}

// List returns every stored definition.
func (r *Repository) List(ctx context.Context) ([]Definition, error) {
	return r.bySet(ctx, allSetName)
}

func (r *Repository) bySet(ctx context.Context, set string) ([]Definition, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("strategy repository not initialized")
	}
	ids, err := r.store.SetMembers(ctx, set)
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(ids))
	for _, id := range ids {
		def, ok, err := r.Get(ctx, id)
		if err != nil || !ok {
			logger.Warnf("strategy %s in %s but unreadable (err=%v), skipping", id, set, err)
			continue
		}
		out = append(out, def)
	}
	return out, nil
}
