package chain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cory-johannsen/gmtools/internal/game/dice"
)

// Side selects the source or target half of a step.
type Side int

const (
	SideSource Side = iota
	SideTarget
)

// String returns "source" or "target".
func (s Side) String() string {
	if s == SideTarget {
		return "target"
	}
	return "source"
}

// Override replaces a computed attribute value for one side of one step.
// The zero value is inactive.
type Override struct {
	Active bool
	Value  float64
}

// StepKey identifies one step of a chain.
type StepKey struct {
	ActionID string
	Index    int
}

// RootKey addresses the first step of any chain, whatever its action ID.
// Callers use it for a manual difficulty on the root action that leaves the
// chain tail untouched.
var RootKey = StepKey{Index: -1}

// StepOverride holds both sides' overrides for one step.
type StepOverride struct {
	Source Override
	Target Override
}

func (s StepOverride) side(side Side) Override {
	if side == SideTarget {
		return s.Target
	}
	return s.Source
}

// Overrides is the caller-owned override map for one chain resolution.
// A nil Overrides overrides nothing. The executor only reads it.
type Overrides map[StepKey]StepOverride

// Resolve returns the override for side of the step at key. An active entry
// under the exact key wins; step 0 then falls back to RootKey. Anything else
// is inactive.
func (o Overrides) Resolve(key StepKey, side Side) Override {
	if so, ok := o[key]; ok {
		if ov := so.side(side); ov.Active {
			return ov
		}
	}
	if key.Index == 0 {
		if so, ok := o[RootKey]; ok {
			if ov := so.side(side); ov.Active {
				return ov
			}
		}
	}
	return Override{}
}

// ErrInvalidOverride is returned by ParseOverride for non-numeric or
// out-of-range input.
var ErrInvalidOverride = errors.New("invalid override value")

// ParseOverride builds an Override from form input. An inactive override
// ignores raw entirely.
//
// Postcondition: Returns an active Override with |Value| <= dice.MaxMagnitude,
// an inactive Override, or an error wrapping ErrInvalidOverride.
func ParseOverride(active bool, raw string) (Override, error) {
	if !active {
		return Override{}, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Override{}, fmt.Errorf("%w %q", ErrInvalidOverride, raw)
	}
	if math.Abs(v) > dice.MaxMagnitude {
		return Override{}, fmt.Errorf("%w %q: magnitude exceeds %g", ErrInvalidOverride, raw, dice.MaxMagnitude)
	}
	return Override{Active: true, Value: v}, nil
}
