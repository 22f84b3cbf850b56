package attribute

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceDef is one contributing entity in an entity file.
type SourceDef struct {
	ID         string             `yaml:"id"`
	Attributes map[string]float64 `yaml:"attributes"`
	// Ungrouped lists attributes this source contributes outside grouping.
	Ungrouped []string `yaml:"ungrouped"`
}

// Grouped reports whether attr takes part in grouped aggregation.
func (s SourceDef) Grouped(attr string) bool {
	for _, a := range s.Ungrouped {
		if a == attr {
			return false
		}
	}
	return true
}

// EntityDef is a character with everything that contributes to its attributes.
type EntityDef struct {
	SourceDef  `yaml:",inline"`
	Equipment  []SourceDef `yaml:"equipment"`
	Selected   *SourceDef  `yaml:"selected"`
	Conditions []SourceDef `yaml:"conditions"`
}

// equips reports whether itemID is among the equipped items. A selected item
// that is also equipped contributes once, as equipment.
func (e EntityDef) equips(itemID string) bool {
	for _, eq := range e.Equipment {
		if eq.ID == itemID {
			return true
		}
	}
	return false
}

// MemoryStore is an in-process Fetcher keyed by entity ID and attribute.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string][]Contribution
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string][]Contribution)}
}

// Add records c as a contribution to attr for entityID.
func (m *MemoryStore) Add(entityID, attr string, c Contribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAttr, ok := m.entries[entityID]
	if !ok {
		byAttr = make(map[string][]Contribution)
		m.entries[entityID] = byAttr
	}
	byAttr[attr] = append(byAttr[attr], c)
}

// AddEntity records every contribution described by def.
//
// Precondition: def.ID must be non-empty.
func (m *MemoryStore) AddEntity(def EntityDef) error {
	if def.ID == "" {
		return fmt.Errorf("attribute: entity id must not be empty")
	}
	m.addSource(def.ID, def.SourceDef, SourceCharacter)
	for _, eq := range def.Equipment {
		m.addSource(def.ID, eq, SourceEquipment)
	}
	if def.Selected != nil && !def.equips(def.Selected.ID) {
		m.addSource(def.ID, *def.Selected, SourceSelectedItem)
	}
	for _, cond := range def.Conditions {
		m.addSource(def.ID, cond, SourceCondition)
	}
	return nil
}

func (m *MemoryStore) addSource(entityID string, src SourceDef, kind SourceKind) {
	// Sorted for a stable contribution order.
	attrs := make([]string, 0, len(src.Attributes))
	for a := range src.Attributes {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		m.Add(entityID, a, Contribution{
			Value:     src.Attributes[a],
			IsGrouped: src.Grouped(a),
			Source:    kind,
			EntityID:  src.ID,
		})
	}
}

// FetchContributions implements Fetcher. Unknown entities contribute nothing.
func (m *MemoryStore) FetchContributions(ctx context.Context, entityIDs []string, attr string) ([]Contribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Contribution
	for _, id := range entityIDs {
		out = append(out, m.entries[id][attr]...)
	}
	return out, nil
}

// LoadEntityDefs parses a YAML list of EntityDefs.
//
// Precondition: path must be a readable YAML file.
// Postcondition: Returns the parsed definitions or a non-nil error.
func LoadEntityDefs(path string) ([]EntityDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	var defs []EntityDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return defs, nil
}

// LoadEntityFile parses a YAML list of EntityDefs into a MemoryStore.
//
// Precondition: path must be a readable YAML file.
// Postcondition: Returns a populated MemoryStore or a non-nil error.
func LoadEntityFile(path string) (*MemoryStore, error) {
	defs, err := LoadEntityDefs(path)
	if err != nil {
		return nil, err
	}
	store := NewMemoryStore()
	for _, def := range defs {
		if err := store.AddEntity(def); err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return store, nil
}
