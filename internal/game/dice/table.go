package dice

import (
	"errors"
	"fmt"
	"strings"
)

// Attribute names an attribute that actions may resolve against.
type Attribute string

const (
	Strength   Attribute = "strength"
	Agility    Attribute = "agility"
	Endurance  Attribute = "endurance"
	Intellect  Attribute = "intellect"
	Perception Attribute = "perception"
	Willpower  Attribute = "willpower"
	Charisma   Attribute = "charisma"
	Evasion    Attribute = "evasion"
	Luck       Attribute = "luck"
	Armor      Attribute = "armor"
	Health     Attribute = "health"
	Stamina    Attribute = "stamina"
	Speed      Attribute = "speed"
	Load       Attribute = "load"
)

// AllAttributes enumerates every Attribute. Each must have a dieTable entry.
var AllAttributes = []Attribute{
	Strength, Agility, Endurance, Intellect, Perception, Willpower, Charisma,
	Evasion, Luck, Armor, Health, Stamina, Speed, Load,
}

// dieTable is the fixed attribute → die mapping. Attributes mapped to None
// always resolve as a flat number.
var dieTable = map[Attribute]DieType{
	Strength:   D12,
	Agility:    D12,
	Endurance:  D10,
	Intellect:  D10,
	Perception: D8,
	Willpower:  D8,
	Charisma:   D6,
	Evasion:    D6,
	Luck:       D20,
	Armor:      None,
	Health:     None,
	Stamina:    None,
	Speed:      None,
	Load:       None,
}

// ErrUnknownAttribute is wrapped by ConfigurationError when an attribute has
// no die table entry.
var ErrUnknownAttribute = errors.New("unknown attribute")

// ConfigurationError reports that action content names an attribute the die
// table does not know. It signals schema drift and must not be defaulted.
type ConfigurationError struct {
	Attribute string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dice: configuration error: attribute %q has no die table entry", e.Attribute)
}

// Unwrap returns ErrUnknownAttribute.
func (e *ConfigurationError) Unwrap() error { return ErrUnknownAttribute }

// Classification describes how an attribute resolves.
type Classification struct {
	Attribute Attribute
	UsesDice  bool
	DieType   DieType
	// FaceRange is [1, faces] for dice and [0, 0] for static attributes.
	FaceRange Range
}

// Classify looks up name in the die table. Names are matched
// case-insensitively after trimming whitespace.
//
// Postcondition: Returns a Classification, or a *ConfigurationError when name
// has no entry.
func Classify(name string) (Classification, error) {
	attr := Attribute(strings.ToLower(strings.TrimSpace(name)))
	die, ok := dieTable[attr]
	if !ok {
		return Classification{}, &ConfigurationError{Attribute: name}
	}
	return Classification{
		Attribute: attr,
		UsesDice:  die != None,
		DieType:   die,
		FaceRange: die.FaceRange(),
	}, nil
}
