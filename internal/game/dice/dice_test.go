package dice_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gmtools/internal/game/dice"
)

// TestDieTable_Exhaustive verifies every enumerated attribute classifies.
func TestDieTable_Exhaustive(t *testing.T) {
	for _, attr := range dice.AllAttributes {
		c, err := dice.Classify(string(attr))
		require.NoError(t, err, "attribute %q must have a die table entry", attr)
		assert.Equal(t, attr, c.Attribute)
		assert.True(t, c.DieType.Valid())
	}
}

func TestClassify_DiceAttribute(t *testing.T) {
	c, err := dice.Classify("strength")
	require.NoError(t, err)
	assert.True(t, c.UsesDice)
	assert.Equal(t, dice.D12, c.DieType)
	assert.Equal(t, dice.Range{Min: 1, Max: 12}, c.FaceRange)
}

func TestClassify_StaticAttribute(t *testing.T) {
	c, err := dice.Classify("armor")
	require.NoError(t, err)
	assert.False(t, c.UsesDice)
	assert.Equal(t, dice.None, c.DieType)
	assert.Equal(t, dice.Range{}, c.FaceRange)
}

func TestClassify_NormalizesCase(t *testing.T) {
	c, err := dice.Classify("  Luck ")
	require.NoError(t, err)
	assert.Equal(t, dice.Luck, c.Attribute)
	assert.Equal(t, dice.D20, c.DieType)
}

func TestClassify_UnknownIsConfigurationError(t *testing.T) {
	_, err := dice.Classify("telekinesis")
	require.Error(t, err)
	var cfgErr *dice.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "telekinesis", cfgErr.Attribute)
	assert.ErrorIs(t, err, dice.ErrUnknownAttribute)
}

func TestModifierFor_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{2.49, 2},
		{2.5, 3},
		{13.75, 14},
		{-2.5, -2},
		{-2.51, -3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, dice.ModifierFor(tc.in, dice.D6), "ModifierFor(%v)", tc.in)
		assert.Equal(t, tc.want, dice.ModifierFor(tc.in, dice.None), "static ModifierFor(%v)", tc.in)
	}
}

func TestRoundHalfUp_ClampsHugeMagnitudes(t *testing.T) {
	assert.Equal(t, int(dice.MaxMagnitude), dice.RoundHalfUp(1e300))
	assert.Equal(t, -int(dice.MaxMagnitude), dice.RoundHalfUp(-1e300))
	assert.Equal(t, int(dice.MaxMagnitude), dice.RoundHalfUp(math.Inf(1)))
	assert.Equal(t, 0, dice.RoundHalfUp(math.NaN()))
	assert.Equal(t, 1_000_000_000, dice.RoundHalfUp(999_999_999.5))
}

// TestRoundHalfUp_Property_Monotonic verifies a larger input never rounds to a
// smaller integer, across the whole float64 range.
func TestRoundHalfUp_Property_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Float64().Draw(rt, "a")
		b := rapid.Float64().Draw(rt, "b")
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(rt, dice.RoundHalfUp(a), dice.RoundHalfUp(b))
	})
}

func TestDieType_String(t *testing.T) {
	assert.Equal(t, "static", dice.None.String())
	assert.Equal(t, "d20", dice.D20.String())
	assert.Equal(t, "invalid(7)", dice.DieType(7).String())
	assert.Equal(t, 0, dice.DieType(7).Faces())
}

// TestModifierFor_Property verifies |ModifierFor(v) - v| <= 0.5.
func TestModifierFor_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(-1000, 1000).Draw(rt, "v")
		m := dice.ModifierFor(v, dice.D6)
		diff := float64(m) - v
		assert.LessOrEqual(rt, diff, 0.5)
		assert.Greater(rt, diff, -0.5)
	})
}
