// Package outcome computes the probability that a source beats a target when
// an action is resolved. Every face combination is enumerated; nothing is
// rolled, so results are exact and deterministic.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Formula selects how the source and target values are compared.
type Formula string

const (
	// Contest compares source total against target total.
	Contest Formula = "contest"
	// Subtract compares like Contest and also reports how far the source
	// beats the target.
	Subtract Formula = "subtract"
	// Delta shifts the source modifier by the difference between the
	// target's and the source's values of the target attribute.
	Delta Formula = "delta"
)

// ErrUnknownFormula is returned for a Formula outside Contest/Subtract/Delta.
var ErrUnknownFormula = errors.New("unknown formula")

// ParseFormula parses s case-insensitively.
//
// Postcondition: Returns a valid Formula or an error wrapping ErrUnknownFormula.
func ParseFormula(s string) (Formula, error) {
	f := Formula(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("outcome: %w %q", ErrUnknownFormula, s)
	}
	return f, nil
}

// Valid reports whether f is one of the known formulas.
func (f Formula) Valid() bool {
	switch f {
	case Contest, Subtract, Delta:
		return true
	default:
		return false
	}
}

// String returns the formula name.
func (f Formula) String() string { return string(f) }
