package outcome

import (
	"fmt"

	"github.com/cory-johannsen/gmtools/internal/game/dice"
)

// Request holds everything needed to resolve one action step.
type Request struct {
	SourceAttribute string
	SourceValue     float64
	TargetAttribute string
	TargetValue     float64
	Formula         Formula
	// SourceTargetValue is the source side's effective value of
	// TargetAttribute. Only Delta reads it.
	SourceTargetValue float64
}

// Guidance classifies each face of the source die by how it fares against
// every possible target total.
type Guidance struct {
	// GuaranteedWins are faces that beat every target total.
	GuaranteedWins []int
	// GuaranteedLosses are faces that beat no target total.
	GuaranteedLosses []int
	// Mixed are faces that beat some but not all target totals.
	Mixed []int
}

// Result is the immutable outcome of one resolved step.
//
// Invariant: exactly one of GuaranteedSuccess, GuaranteedFailure and
// PartialSuccess is true; 0 <= SuccessPercentage <= 100.
type Result struct {
	Formula           Formula
	SourceAttribute   dice.Attribute
	TargetAttribute   dice.Attribute
	SourceValue       float64
	TargetValue       float64
	SourceDie         dice.DieType
	TargetDie         dice.DieType
	SourceModifier    int
	TargetModifier    int
	SuccessPercentage float64
	SourceRange       dice.Range
	TargetRange       dice.Range
	GuaranteedSuccess bool
	GuaranteedFailure bool
	PartialSuccess    bool
	// Wins and Outcomes are the raw counts behind SuccessPercentage.
	Wins     int
	Outcomes int
	// Guidance is set only when the source rolls dice.
	Guidance *Guidance
	// MarginRange is set only for Subtract: how far the source total can
	// exceed the target total, floored at zero.
	MarginRange *dice.Range
}

// SuccessFraction returns SuccessPercentage / 100.
func (r Result) SuccessFraction() float64 {
	return r.SuccessPercentage / 100
}

// Resolve computes the exact success probability of req.
//
// A source total wins only when it strictly exceeds the target total; the
// target wins ties. Static sides contribute their rounded value as a single
// total; dice sides contribute face+modifier for every face.
//
// Precondition: both attributes must be in the die table; req.Formula must be valid.
// Postcondition: Returns a Result satisfying its invariant, or a
// *dice.ConfigurationError / ErrUnknownFormula error.
func Resolve(req Request) (Result, error) {
	if !req.Formula.Valid() {
		return Result{}, fmt.Errorf("outcome: %w %q", ErrUnknownFormula, req.Formula)
	}
	src, err := dice.Classify(req.SourceAttribute)
	if err != nil {
		return Result{}, fmt.Errorf("classifying source: %w", err)
	}
	tgt, err := dice.Classify(req.TargetAttribute)
	if err != nil {
		return Result{}, fmt.Errorf("classifying target: %w", err)
	}

	srcMod := dice.ModifierFor(req.SourceValue, src.DieType)
	tgtMod := dice.ModifierFor(req.TargetValue, tgt.DieType)
	if req.Formula == Delta {
		srcMod += dice.RoundHalfUp(req.TargetValue - req.SourceTargetValue)
	}

	srcTotals := totals(src.DieType, srcMod)
	tgtTotals := totals(tgt.DieType, tgtMod)

	var guidance *Guidance
	if src.UsesDice {
		guidance = &Guidance{}
	}

	wins := 0
	for i, s := range srcTotals {
		faceWins := 0
		for _, t := range tgtTotals {
			if s > t {
				faceWins++
			}
		}
		wins += faceWins
		if guidance == nil {
			continue
		}
		face := i + 1
		switch faceWins {
		case len(tgtTotals):
			guidance.GuaranteedWins = append(guidance.GuaranteedWins, face)
		case 0:
			guidance.GuaranteedLosses = append(guidance.GuaranteedLosses, face)
		default:
			guidance.Mixed = append(guidance.Mixed, face)
		}
	}
	outcomes := len(srcTotals) * len(tgtTotals)

	res := Result{
		Formula:           req.Formula,
		SourceAttribute:   src.Attribute,
		TargetAttribute:   tgt.Attribute,
		SourceValue:       req.SourceValue,
		TargetValue:       req.TargetValue,
		SourceDie:         src.DieType,
		TargetDie:         tgt.DieType,
		SourceModifier:    srcMod,
		TargetModifier:    tgtMod,
		SuccessPercentage: float64(wins) / float64(outcomes) * 100,
		SourceRange:       totalRange(srcTotals),
		TargetRange:       totalRange(tgtTotals),
		Wins:              wins,
		Outcomes:          outcomes,
		Guidance:          guidance,
	}
	switch wins {
	case outcomes:
		res.GuaranteedSuccess = true
	case 0:
		res.GuaranteedFailure = true
	default:
		res.PartialSuccess = true
	}

	if req.Formula == Subtract {
		res.MarginRange = &dice.Range{
			Min: max(0, res.SourceRange.Min-res.TargetRange.Max),
			Max: max(0, res.SourceRange.Max-res.TargetRange.Min),
		}
	}
	return res, nil
}

// totals lists every achievable total in face order: face+mod for each face
// of a die, or the single static value mod.
//
// Postcondition: len(result) >= 1.
func totals(die dice.DieType, mod int) []int {
	faces := die.Faces()
	if faces == 0 {
		return []int{mod}
	}
	out := make([]int, faces)
	for i := range out {
		out[i] = i + 1 + mod
	}
	return out
}

// totalRange returns [first, last] of an ascending totals slice.
func totalRange(ts []int) dice.Range {
	return dice.Range{Min: ts[0], Max: ts[len(ts)-1]}
}
