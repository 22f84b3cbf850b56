// Package importer copies action and entity content from files into the
// database the resolver reads from.
package importer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/attribute"
)

// ActionSaver persists action definitions.
type ActionSaver interface {
	Save(ctx context.Context, def *action.Definition) error
}

// EntitySaver persists an entity with its contributing sources.
type EntitySaver interface {
	SaveEntity(ctx context.Context, def attribute.EntityDef) error
}

// Summary counts what one Run wrote.
type Summary struct {
	Actions  int
	Entities int
	// DanglingTriggers lists "id -> triggered_id" pairs whose target was not
	// part of the import. They are written anyway.
	DanglingTriggers []string
}

// Importer orchestrates content import from a Source into storage.
type Importer struct {
	source   Source
	actions  ActionSaver
	entities EntitySaver
	logger   *zap.Logger
}

// New constructs an Importer.
//
// Precondition: source, actions and entities must be non-nil.
// Postcondition: returns a non-nil Importer.
func New(source Source, actions ActionSaver, entities EntitySaver, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{source: source, actions: actions, entities: entities, logger: logger}
}

// Run loads content from dir and saves every action and entity. It stops at
// the first failed write.
//
// Postcondition: every loaded item has been saved, or a non-nil error is
// returned and the Summary counts what was written before it.
func (imp *Importer) Run(ctx context.Context, dir string) (Summary, error) {
	overall := time.Now()
	var sum Summary

	t0 := time.Now()
	content, err := imp.source.Load(dir)
	if err != nil {
		return sum, fmt.Errorf("loading source: %w", err)
	}
	imp.logger.Info("content loaded",
		zap.Int("actions", len(content.Actions)),
		zap.Int("entities", len(content.Entities)),
		zap.Duration("duration", time.Since(t0)),
	)

	reg := action.NewRegistry()
	for _, def := range content.Actions {
		if err := reg.Register(def); err != nil {
			return sum, err
		}
	}
	sum.DanglingTriggers = reg.CheckTriggers()
	for _, d := range sum.DanglingTriggers {
		imp.logger.Warn("action triggers an action missing from the import", zap.String("trigger", d))
	}

	for _, def := range reg.All() {
		if err := imp.actions.Save(ctx, def); err != nil {
			return sum, fmt.Errorf("saving action %q: %w", def.ID, err)
		}
		sum.Actions++
	}
	for _, ent := range content.Entities {
		if err := imp.entities.SaveEntity(ctx, ent); err != nil {
			return sum, fmt.Errorf("saving entity %q: %w", ent.ID, err)
		}
		sum.Entities++
	}

	imp.logger.Info("import complete",
		zap.Int("actions", sum.Actions),
		zap.Int("entities", sum.Entities),
		zap.Duration("duration", time.Since(overall)),
	)
	return sum, nil
}
