// Package dice classifies attributes onto die types and computes the flat
// modifiers used when resolving actions. It never rolls: outcome
// probabilities are computed over the full face space by package outcome.
package dice

import (
	"fmt"
	"math"
)

// DieType is the face count an attribute resolves against.
// The zero value (None) marks a static attribute with no probability spread.
type DieType int

const (
	None DieType = 0
	D4   DieType = 4
	D6   DieType = 6
	D8   DieType = 8
	D10  DieType = 10
	D12  DieType = 12
	D20  DieType = 20
)

// AllDieTypes lists every die type that carries faces, smallest first.
var AllDieTypes = []DieType{D4, D6, D8, D10, D12, D20}

// Faces returns the number of faces on the die, or 0 for None.
//
// Postcondition: Returns 0 iff d == None.
func (d DieType) Faces() int {
	if !d.Valid() {
		return 0
	}
	return int(d)
}

// Valid reports whether d is None or one of AllDieTypes.
func (d DieType) Valid() bool {
	if d == None {
		return true
	}
	for _, known := range AllDieTypes {
		if d == known {
			return true
		}
	}
	return false
}

// String returns "d<faces>" for dice and "static" for None.
func (d DieType) String() string {
	if d == None {
		return "static"
	}
	if !d.Valid() {
		return fmt.Sprintf("invalid(%d)", int(d))
	}
	return fmt.Sprintf("d%d", int(d))
}

// Range is an inclusive [Min, Max] interval of totals.
type Range struct {
	Min int
	Max int
}

// FaceRange returns [1, faces] for dice and [0, 0] for None.
func (d DieType) FaceRange() Range {
	if d.Faces() == 0 {
		return Range{}
	}
	return Range{Min: 1, Max: d.Faces()}
}

// ModifierFor returns the integer modifier added to a roll of die, or the
// static value itself when die is None. Both cases round half up.
//
// Postcondition: Returns RoundHalfUp(effective).
func ModifierFor(effective float64, die DieType) int {
	return RoundHalfUp(effective)
}

// MaxMagnitude bounds the values RoundHalfUp converts. Totals built from
// clamped modifiers and die faces always fit in an int.
const MaxMagnitude = 1e9

// RoundHalfUp rounds v to the nearest integer, with .5 rounding toward +Inf.
// v is clamped to [-MaxMagnitude, MaxMagnitude] first; NaN rounds to 0.
func RoundHalfUp(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	v = min(max(v, -MaxMagnitude), MaxMagnitude)
	return int(math.Floor(v + 0.5))
}
