package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/outcome"
)

// ActionRepository provides action definition persistence.
type ActionRepository struct {
	db *pgxpool.Pool
}

// NewActionRepository creates an ActionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewActionRepository(db *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{db: db}
}

// FetchAction implements action.Fetcher. Stored rows are normalized and
// validated the same way YAML definitions are.
//
// Postcondition: Returns a valid Definition, an error wrapping
// action.ErrNotFound, or another non-nil error.
func (r *ActionRepository) FetchAction(ctx context.Context, id string) (*action.Definition, error) {
	var (
		def       action.Definition
		formula   string
		effect    string
		usage     string
		triggered *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, source_attribute, target_attribute, formula,
		       effect_type, triggered_action_id, object_usage
		FROM actions WHERE id = $1`, id,
	).Scan(&def.ID, &def.Name, &def.SourceAttribute, &def.TargetAttribute,
		&formula, &effect, &triggered, &usage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("fetching action %q: %w", id, action.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching action %q: %w", id, err)
	}
	def.Formula = outcome.Formula(formula)
	def.EffectType = action.EffectType(effect)
	def.ObjectUsage = action.ObjectUsage(usage)
	if triggered != nil {
		def.TriggeredActionID = *triggered
	}
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Save inserts or replaces def.
//
// Precondition: def must be non-nil.
// Postcondition: FetchAction(def.ID) returns def, or a non-nil error is
// returned and nothing is written.
func (r *ActionRepository) Save(ctx context.Context, def *action.Definition) error {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}
	var triggered *string
	if def.TriggeredActionID != "" {
		triggered = &def.TriggeredActionID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO actions
			(id, name, source_attribute, target_attribute, formula,
			 effect_type, triggered_action_id, object_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			source_attribute = EXCLUDED.source_attribute,
			target_attribute = EXCLUDED.target_attribute,
			formula = EXCLUDED.formula,
			effect_type = EXCLUDED.effect_type,
			triggered_action_id = EXCLUDED.triggered_action_id,
			object_usage = EXCLUDED.object_usage`,
		def.ID, def.Name, def.SourceAttribute, def.TargetAttribute, string(def.Formula),
		string(def.EffectType), triggered, string(def.ObjectUsage),
	)
	if err != nil {
		return fmt.Errorf("saving action %q: %w", def.ID, err)
	}
	return nil
}

// List returns every stored action ID in ascending order.
func (r *ActionRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM actions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning action ids: %w", err)
	}
	return ids, nil
}
