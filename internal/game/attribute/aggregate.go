// Package attribute combines the raw attribute contributions of a character,
// its equipment, a selected carried item, and its conditions into a single
// effective value.
package attribute

import (
	"context"
	"math"
	"sort"
)

// SourceKind identifies which entity produced a Contribution.
type SourceKind string

const (
	// SourceCharacter is the character's own base value.
	SourceCharacter SourceKind = "character"
	// SourceEquipment is an equipped item.
	SourceEquipment SourceKind = "equipment"
	// SourceSelectedItem is the one carried item selected for the action.
	SourceSelectedItem SourceKind = "selected_item"
	// SourceCondition is an active condition.
	SourceCondition SourceKind = "condition"
)

// Contribution is one raw attribute value from one source entity.
type Contribution struct {
	Value     float64
	IsGrouped bool
	Source    SourceKind
	EntityID  string
}

// Fetcher returns the raw contributions to attr from the given entities.
//
// Implementations MUST be safe for concurrent use.
type Fetcher interface {
	FetchContributions(ctx context.Context, entityIDs []string, attr string) ([]Contribution, error)
}

// groupedBaseWeight is the share of a secondary value that always counts,
// before the value's strength relative to the largest value is added.
const groupedBaseWeight = 0.25

// Aggregate folds contributions into one effective value.
//
// Only grouped contributions are combined. With none grouped the first
// character contribution is returned as-is, or 0 when there is none. A single
// grouped value is returned unchanged. Several grouped values A1 >= A2 >= ...
// are combined as (A1 + Σ Ai*(0.25 + Ai/A1)) / n, using Ai*0.25 when A1 <= 0,
// and rounded half-up to 2 decimal places.
//
// Postcondition: Returns a finite number; never divides by zero.
func Aggregate(contribs []Contribution) float64 {
	grouped := make([]float64, 0, len(contribs))
	for _, c := range contribs {
		if c.IsGrouped {
			grouped = append(grouped, c.Value)
		}
	}

	switch len(grouped) {
	case 0:
		for _, c := range contribs {
			if c.Source == SourceCharacter {
				return c.Value
			}
		}
		return 0
	case 1:
		return grouped[0]
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(grouped)))
	top := grouped[0]
	sum := top
	for _, v := range grouped[1:] {
		if top > 0 {
			sum += v * (groupedBaseWeight + v/top)
		} else {
			sum += v * groupedBaseWeight
		}
	}
	return Round2(sum / float64(len(grouped)))
}

// Round2 rounds v half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Filter returns the contributions whose Source satisfies keep, preserving
// order. A nil keep returns contribs unchanged.
func Filter(contribs []Contribution, keep func(SourceKind) bool) []Contribution {
	if keep == nil {
		return contribs
	}
	out := make([]Contribution, 0, len(contribs))
	for _, c := range contribs {
		if keep(c.Source) {
			out = append(out, c)
		}
	}
	return out
}

// Effective fetches the contributions to attr for entityIDs and aggregates them.
//
// Postcondition: Returns Aggregate of the fetched contributions, or the fetch error.
func Effective(ctx context.Context, f Fetcher, entityIDs []string, attr string) (float64, error) {
	return EffectiveFiltered(ctx, f, entityIDs, attr, nil)
}

// EffectiveFiltered is Effective restricted to contributions whose Source
// satisfies keep. A nil keep admits every contribution.
func EffectiveFiltered(ctx context.Context, f Fetcher, entityIDs []string, attr string, keep func(SourceKind) bool) (float64, error) {
	contribs, err := f.FetchContributions(ctx, entityIDs, attr)
	if err != nil {
		return 0, err
	}
	return Aggregate(Filter(contribs, keep)), nil
}
