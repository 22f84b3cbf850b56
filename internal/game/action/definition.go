// Package action holds action definitions and the repositories that serve them.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gmtools/internal/game/attribute"
	"github.com/cory-johannsen/gmtools/internal/game/dice"
	"github.com/cory-johannsen/gmtools/internal/game/outcome"
)

// EffectType is what happens when an action succeeds.
type EffectType string

const (
	EffectNone           EffectType = "none"
	EffectDamage         EffectType = "damage"
	EffectApplyCondition EffectType = "apply_condition"
	// EffectTriggerAction resolves TriggeredActionID next in the same chain.
	EffectTriggerAction EffectType = "trigger_action"
)

// ObjectUsage is which carried objects contribute to the source side.
type ObjectUsage string

const (
	// UsageNone counts only the character and its conditions.
	UsageNone ObjectUsage = "none"
	// UsageEquipped adds equipped items.
	UsageEquipped ObjectUsage = "equipped"
	// UsageSelected adds equipped items and the selected carried item.
	UsageSelected ObjectUsage = "selected"
)

// Admits reports whether a contribution from kind counts toward the source
// side of an action declaring u. Character and condition contributions always
// count; an unrecognized usage admits no objects.
func (u ObjectUsage) Admits(kind attribute.SourceKind) bool {
	switch kind {
	case attribute.SourceEquipment:
		return u == UsageEquipped || u == UsageSelected
	case attribute.SourceSelectedItem:
		return u == UsageSelected
	default:
		return true
	}
}

// Definition is the static definition of an action, loaded from YAML or storage.
type Definition struct {
	ID                string          `yaml:"id"`
	Name              string          `yaml:"name"`
	SourceAttribute   string          `yaml:"source_attribute"`
	TargetAttribute   string          `yaml:"target_attribute"`
	Formula           outcome.Formula `yaml:"formula"`
	EffectType        EffectType      `yaml:"effect_type"`
	TriggeredActionID string          `yaml:"triggered_action_id"`
	ObjectUsage       ObjectUsage     `yaml:"object_usage"`
}

// Triggers reports whether resolving d continues the chain with another action.
func (d *Definition) Triggers() bool {
	return d.EffectType == EffectTriggerAction && d.TriggeredActionID != ""
}

// Validate checks that d names known attributes, formula, effect and usage.
// An attribute missing from the die table is reported as a
// *dice.ConfigurationError.
//
// Postcondition: Returns nil if d is valid, or an error describing all violations.
func (d *Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if _, err := dice.Classify(d.SourceAttribute); err != nil {
		errs = append(errs, fmt.Errorf("source_attribute: %w", err))
	}
	if _, err := dice.Classify(d.TargetAttribute); err != nil {
		errs = append(errs, fmt.Errorf("target_attribute: %w", err))
	}
	if !d.Formula.Valid() {
		errs = append(errs, fmt.Errorf("formula: %w %q", outcome.ErrUnknownFormula, d.Formula))
	}
	switch d.EffectType {
	case EffectNone, EffectDamage, EffectApplyCondition, EffectTriggerAction:
	default:
		errs = append(errs, fmt.Errorf("effect_type %q is not one of [none, damage, apply_condition, trigger_action]", d.EffectType))
	}
	if d.EffectType == EffectTriggerAction && d.TriggeredActionID == "" {
		errs = append(errs, errors.New("trigger_action requires triggered_action_id"))
	}
	switch d.ObjectUsage {
	case UsageNone, UsageEquipped, UsageSelected:
	default:
		errs = append(errs, fmt.Errorf("object_usage %q is not one of [none, equipped, selected]", d.ObjectUsage))
	}
	if len(errs) > 0 {
		return fmt.Errorf("action %q: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// Normalize fills defaults for optional fields and canonicalizes case.
// An empty ID is derived from Name.
func (d *Definition) Normalize() {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		d.ID = IDFromName(d.Name)
	}
	d.SourceAttribute = strings.ToLower(strings.TrimSpace(d.SourceAttribute))
	d.TargetAttribute = strings.ToLower(strings.TrimSpace(d.TargetAttribute))
	d.Formula = outcome.Formula(strings.ToLower(string(d.Formula)))
	if d.Formula == "" {
		d.Formula = outcome.Contest
	}
	if d.EffectType == "" {
		d.EffectType = EffectNone
	}
	if d.ObjectUsage == "" {
		d.ObjectUsage = UsageNone
	}
}

// IDFromName converts a display name to a stable snake_case identifier.
//
// Postcondition: result is lowercase, contains only [a-z0-9_], and is
// idempotent (IDFromName(IDFromName(s)) == IDFromName(s)).
func IDFromName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ErrNotFound is returned when an action ID has no definition.
var ErrNotFound = errors.New("action not found")

// Fetcher looks up action definitions by ID.
//
// Implementations MUST be safe for concurrent use.
type Fetcher interface {
	FetchAction(ctx context.Context, id string) (*Definition, error)
}

// Registry holds all known Definitions keyed by ID.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates def and adds it, overwriting any entry with the same ID.
//
// Precondition: def must not be nil.
// Postcondition: Get(def.ID) returns def, or an error is returned and the
// registry is unchanged.
func (r *Registry) Register(def *Definition) error {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

// Get returns the Definition for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot of all Definitions ordered by ID.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FetchAction implements Fetcher.
//
// Postcondition: Returns the Definition, or an error wrapping ErrNotFound.
func (r *Registry) FetchAction(ctx context.Context, id string) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("fetching action %q: %w", id, ErrNotFound)
	}
	return d, nil
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Definition,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to
// parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading action dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := reg.Register(&def); err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return reg, nil
}

// CheckTriggers reports every definition whose TriggeredActionID names an
// action missing from the registry. Dangling triggers are not fatal at
// resolution time; this is a content lint.
func (r *Registry) CheckTriggers() []string {
	var dangling []string
	for _, d := range r.All() {
		if !d.Triggers() {
			continue
		}
		if _, ok := r.Get(d.TriggeredActionID); !ok {
			dangling = append(dangling, fmt.Sprintf("%s -> %s", d.ID, d.TriggeredActionID))
		}
	}
	return dangling
}
