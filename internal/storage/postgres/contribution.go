package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gmtools/internal/game/attribute"
)

// ErrDuplicateItem is returned when an entity lists the same item twice.
var ErrDuplicateItem = errors.New("item listed twice for entity")

// contributionsQuery gathers every contribution to one attribute for a set of
// characters. A selected item that is also equipped contributes once, as
// equipment. Rows come back in entity order, then character, equipment,
// selected item, condition.
const contributionsQuery = `
	SELECT c.source, c.entity_id, c.value, c.is_grouped
	FROM (
		SELECT 0 AS kind, 'character' AS source, ca.character_id AS owner,
		       ca.character_id AS entity_id, ca.value, ca.is_grouped
		FROM character_attributes ca
		WHERE ca.character_id = ANY($1) AND ca.attribute = $2
		UNION ALL
		SELECT 1, 'equipment', ci.character_id, ia.item_id, ia.value, ia.is_grouped
		FROM character_items ci
		JOIN item_attributes ia ON ia.item_id = ci.item_id
		WHERE ci.character_id = ANY($1) AND ci.equipped AND ia.attribute = $2
		UNION ALL
		SELECT 2, 'selected_item', ci.character_id, ia.item_id, ia.value, ia.is_grouped
		FROM character_items ci
		JOIN item_attributes ia ON ia.item_id = ci.item_id
		WHERE ci.character_id = ANY($1) AND ci.selected AND NOT ci.equipped AND ia.attribute = $2
		UNION ALL
		SELECT 3, 'condition', cc.character_id, xa.condition_id, xa.value, xa.is_grouped
		FROM character_conditions cc
		JOIN condition_attributes xa ON xa.condition_id = cc.condition_id
		WHERE cc.character_id = ANY($1) AND xa.attribute = $2
	) c
	ORDER BY array_position($1::text[], c.owner), c.kind, c.entity_id`

// ContributionRepository reads attribute contributions for characters.
type ContributionRepository struct {
	db *pgxpool.Pool
}

// NewContributionRepository creates a ContributionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewContributionRepository(db *pgxpool.Pool) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// FetchContributions implements attribute.Fetcher. Unknown character IDs
// contribute nothing.
//
// Postcondition: Returns contributions ordered by entityIDs, or a non-nil error.
func (r *ContributionRepository) FetchContributions(ctx context.Context, entityIDs []string, attr string) ([]attribute.Contribution, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, contributionsQuery, entityIDs, strings.ToLower(attr))
	if err != nil {
		return nil, fmt.Errorf("querying contributions for %q: %w", attr, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (attribute.Contribution, error) {
		var (
			c      attribute.Contribution
			source string
		)
		if err := row.Scan(&source, &c.EntityID, &c.Value, &c.IsGrouped); err != nil {
			return c, err
		}
		c.Source = attribute.SourceKind(source)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning contributions for %q: %w", attr, err)
	}
	return out, nil
}

// SaveEntity replaces the stored character described by def, together with
// its item and condition links, in one transaction. Item and condition
// definitions are shared between characters and are overwritten in place.
//
// Precondition: def.ID must be non-empty.
// Postcondition: FetchContributions for def.ID reflects def, or nothing changed
// and a non-nil error is returned.
func (r *ContributionRepository) SaveEntity(ctx context.Context, def attribute.EntityDef) error {
	if def.ID == "" {
		return errors.New("entity id must not be empty")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO characters (id, name) VALUES ($1, $1)
		ON CONFLICT (id) DO NOTHING`, def.ID); err != nil {
		return fmt.Errorf("upserting character %q: %w", def.ID, err)
	}
	for _, stmt := range []string{
		`DELETE FROM character_attributes WHERE character_id = $1`,
		`DELETE FROM character_items WHERE character_id = $1`,
		`DELETE FROM character_conditions WHERE character_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, def.ID); err != nil {
			return fmt.Errorf("clearing character %q: %w", def.ID, err)
		}
	}
	if err := insertAttributes(ctx, tx,
		`INSERT INTO character_attributes (character_id, attribute, value, is_grouped) VALUES ($1, $2, $3, $4)`,
		def.ID, def.SourceDef); err != nil {
		return err
	}

	for _, item := range def.Equipment {
		if err := saveSource(ctx, tx, "items", "item_attributes", "item_id", item); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO character_items (character_id, item_id, equipped) VALUES ($1, $2, TRUE)`,
			def.ID, item.ID)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("entity %q item %q: %w", def.ID, item.ID, ErrDuplicateItem)
			}
			return fmt.Errorf("equipping item %q: %w", item.ID, err)
		}
	}
	if def.Selected != nil {
		if err := saveSource(ctx, tx, "items", "item_attributes", "item_id", *def.Selected); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO character_items (character_id, item_id, selected) VALUES ($1, $2, TRUE)
			ON CONFLICT (character_id, item_id) DO UPDATE SET selected = TRUE`,
			def.ID, def.Selected.ID); err != nil {
			return fmt.Errorf("selecting item %q: %w", def.Selected.ID, err)
		}
	}
	for _, cond := range def.Conditions {
		if err := saveSource(ctx, tx, "conditions", "condition_attributes", "condition_id", cond); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO character_conditions (character_id, condition_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			def.ID, cond.ID); err != nil {
			return fmt.Errorf("applying condition %q: %w", cond.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing entity %q: %w", def.ID, err)
	}
	return nil
}

// saveSource upserts a shared item or condition and replaces its attributes.
// table and attrTable are compile-time constants, never caller input.
func saveSource(ctx context.Context, tx pgx.Tx, table, attrTable, fk string, src attribute.SourceDef) error {
	if src.ID == "" {
		return fmt.Errorf("%s: id must not be empty", table)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+table+` (id, name) VALUES ($1, $1) ON CONFLICT (id) DO NOTHING`,
		src.ID); err != nil {
		return fmt.Errorf("upserting %s %q: %w", table, src.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM `+attrTable+` WHERE `+fk+` = $1`, src.ID); err != nil {
		return fmt.Errorf("clearing %s %q: %w", attrTable, src.ID, err)
	}
	return insertAttributes(ctx, tx,
		`INSERT INTO `+attrTable+` (`+fk+`, attribute, value, is_grouped) VALUES ($1, $2, $3, $4)`,
		src.ID, src)
}

func insertAttributes(ctx context.Context, tx pgx.Tx, stmt, ownerID string, src attribute.SourceDef) error {
	attrs := make([]string, 0, len(src.Attributes))
	for a := range src.Attributes {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)

	batch := &pgx.Batch{}
	for _, a := range attrs {
		batch.Queue(stmt, ownerID, strings.ToLower(a), src.Attributes[a], src.Grouped(a))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting attributes for %q: %w", ownerID, err)
	}
	return nil
}
