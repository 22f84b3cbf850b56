package action_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/attribute"
	"github.com/cory-johannsen/gmtools/internal/game/dice"
	"github.com/cory-johannsen/gmtools/internal/game/outcome"
)

func validDef(id string) *action.Definition {
	return &action.Definition{
		ID:              id,
		Name:            "Shove",
		SourceAttribute: "strength",
		TargetAttribute: "endurance",
		Formula:         outcome.Contest,
		EffectType:      action.EffectNone,
		ObjectUsage:     action.UsageEquipped,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := action.NewRegistry()
	def := validDef("shove")
	require.NoError(t, reg.Register(def))
	got, ok := reg.Get("shove")
	require.True(t, ok)
	assert.Equal(t, def, got)
}

func TestRegistry_Register_FillsDefaults(t *testing.T) {
	reg := action.NewRegistry()
	def := &action.Definition{ID: "look", SourceAttribute: "Perception", TargetAttribute: "evasion"}
	require.NoError(t, reg.Register(def))
	assert.Equal(t, outcome.Contest, def.Formula)
	assert.Equal(t, action.EffectNone, def.EffectType)
	assert.Equal(t, action.UsageNone, def.ObjectUsage)
	assert.Equal(t, "perception", def.SourceAttribute)
}

func TestRegistry_Register_UnknownAttributeIsConfigurationError(t *testing.T) {
	reg := action.NewRegistry()
	def := validDef("psi")
	def.SourceAttribute = "telekinesis"
	err := reg.Register(def)
	require.Error(t, err)
	var cfgErr *dice.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	_, ok := reg.Get("psi")
	assert.False(t, ok, "invalid definitions must not be registered")
}

func TestDefinition_Validate_CollectsAllViolations(t *testing.T) {
	def := &action.Definition{
		SourceAttribute: "nope",
		TargetAttribute: "armor",
		Formula:         "divide",
		EffectType:      action.EffectTriggerAction,
		ObjectUsage:     "pocket",
	}
	err := def.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "id must not be empty")
	assert.Contains(t, msg, "source_attribute")
	assert.Contains(t, msg, "formula")
	assert.Contains(t, msg, "triggered_action_id")
	assert.Contains(t, msg, "object_usage")
	assert.ErrorIs(t, err, outcome.ErrUnknownFormula)
}

func TestDefinition_Triggers(t *testing.T) {
	def := validDef("a")
	assert.False(t, def.Triggers())
	def.EffectType = action.EffectTriggerAction
	def.TriggeredActionID = "b"
	assert.True(t, def.Triggers())
	def.EffectType = action.EffectDamage
	assert.False(t, def.Triggers(), "only trigger_action continues the chain")
}

func TestRegistry_FetchAction(t *testing.T) {
	reg := action.NewRegistry()
	require.NoError(t, reg.Register(validDef("shove")))
	ctx := context.Background()

	got, err := reg.FetchAction(ctx, "shove")
	require.NoError(t, err)
	assert.Equal(t, "shove", got.ID)

	_, err = reg.FetchAction(ctx, "missing")
	assert.ErrorIs(t, err, action.ErrNotFound)
}

func TestRegistry_All_SortedSnapshot(t *testing.T) {
	reg := action.NewRegistry()
	require.NoError(t, reg.Register(validDef("b")))
	require.NoError(t, reg.Register(validDef("a")))
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	all[0] = nil
	assert.NotNil(t, reg.All()[0])
}

func TestRegistry_CheckTriggers(t *testing.T) {
	reg := action.NewRegistry()
	a := validDef("a")
	a.EffectType = action.EffectTriggerAction
	a.TriggeredActionID = "b"
	c := validDef("c")
	c.EffectType = action.EffectTriggerAction
	c.TriggeredActionID = "ghost"
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(validDef("b")))
	require.NoError(t, reg.Register(c))
	assert.Equal(t, []string{"c -> ghost"}, reg.CheckTriggers())
}

func TestLoadDirectory_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	body := `
id: grapple
name: Grapple
source_attribute: strength
target_attribute: agility
formula: delta
effect_type: trigger_action
triggered_action_id: pin
object_usage: none
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grapple.yaml"), []byte(body), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	reg, err := action.LoadDirectory(dir)
	require.NoError(t, err)
	got, ok := reg.Get("grapple")
	require.True(t, ok)
	assert.Equal(t, outcome.Delta, got.Formula)
	assert.Equal(t, "pin", got.TriggeredActionID)
	assert.True(t, got.Triggers())
	assert.Len(t, reg.All(), 1)
}

func TestLoadDirectory_RejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("id: x\nsource_attribute: armor\ntarget_attribute: armor\ncolour: red\n"), 0644))
	_, err := action.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_RejectsUnknownAttribute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("id: x\nsource_attribute: mana\ntarget_attribute: armor\n"), 0644))
	_, err := action.LoadDirectory(dir)
	assert.ErrorIs(t, err, dice.ErrUnknownAttribute)
}

func TestLoadDirectory_MissingDir(t *testing.T) {
	_, err := action.LoadDirectory(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

// TestRegistry_Property_KnownAttributesRegister verifies any pairing of
// table attributes and formulas forms a valid definition.
func TestRegistry_Property_KnownAttributesRegister(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		def := &action.Definition{
			ID:              rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "id"),
			SourceAttribute: string(rapid.SampledFrom(dice.AllAttributes).Draw(rt, "src")),
			TargetAttribute: string(rapid.SampledFrom(dice.AllAttributes).Draw(rt, "tgt")),
			Formula:         rapid.SampledFrom([]outcome.Formula{outcome.Contest, outcome.Subtract, outcome.Delta}).Draw(rt, "formula"),
		}
		reg := action.NewRegistry()
		require.NoError(rt, reg.Register(def))
		_, ok := reg.Get(def.ID)
		assert.True(rt, ok)
	})
}

func TestIDFromName_KnownValues(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Shield Bash", "shield_bash"},
		{"Giant's Grip", "giants_grip"},
		{"Volley 2", "volley_2"},
		{"  Trip  ", "trip"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, action.IDFromName(tc.input))
		})
	}
}

func TestIDFromName_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringOf(rapid.RuneFrom(nil, unicode.Letter, unicode.Digit, unicode.Space)).Draw(t, "name")
		id := action.IDFromName(name)
		for _, r := range id {
			assert.True(t, r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'),
				"unexpected char %q in id %q", r, id)
		}
		assert.Equal(t, id, action.IDFromName(id))
	})
}

func TestRegistry_Register_DerivesIDFromName(t *testing.T) {
	reg := action.NewRegistry()
	require.NoError(t, reg.Register(&action.Definition{
		Name: "Shield Bash", SourceAttribute: "strength", TargetAttribute: "endurance",
	}))
	_, ok := reg.Get("shield_bash")
	assert.True(t, ok)
}

func TestObjectUsage_Admits(t *testing.T) {
	cases := []struct {
		usage               action.ObjectUsage
		equipment, selected bool
	}{
		{action.UsageNone, false, false},
		{action.UsageEquipped, true, false},
		{action.UsageSelected, true, true},
	}
	for _, tc := range cases {
		assert.True(t, tc.usage.Admits(attribute.SourceCharacter), "%s admits character", tc.usage)
		assert.True(t, tc.usage.Admits(attribute.SourceCondition), "%s admits condition", tc.usage)
		assert.Equal(t, tc.equipment, tc.usage.Admits(attribute.SourceEquipment), "%s equipment", tc.usage)
		assert.Equal(t, tc.selected, tc.usage.Admits(attribute.SourceSelectedItem), "%s selected item", tc.usage)
	}
}
