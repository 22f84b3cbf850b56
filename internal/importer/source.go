package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/attribute"
)

// Content is the intermediate form produced by every Source.
type Content struct {
	Actions  []*action.Definition
	Entities []attribute.EntityDef
}

// Source loads content from a format-specific directory.
//
// Precondition: dir must exist and contain the expected layout for the format.
// Postcondition: returns validated Content, or a non-nil error.
type Source interface {
	Load(dir string) (*Content, error)
}

// YAMLSource reads the layout used by cmd/resolve:
//
//	<dir>/actions/*.yaml   one action definition per file
//	<dir>/entities.yaml    a list of entities with their equipment and conditions
//
// Either part may be absent, but not both.
type YAMLSource struct{}

// NewYAMLSource returns a YAMLSource.
func NewYAMLSource() *YAMLSource {
	return &YAMLSource{}
}

// Load implements Source.
func (YAMLSource) Load(dir string) (*Content, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("content dir %q: %w", dir, err)
	}
	content := &Content{}
	found := false

	actionsDir := filepath.Join(dir, "actions")
	if _, err := os.Stat(actionsDir); err == nil {
		reg, err := action.LoadDirectory(actionsDir)
		if err != nil {
			return nil, err
		}
		content.Actions = reg.All()
		found = true
	}

	entitiesFile := filepath.Join(dir, "entities.yaml")
	if _, err := os.Stat(entitiesFile); err == nil {
		defs, err := attribute.LoadEntityDefs(entitiesFile)
		if err != nil {
			return nil, err
		}
		content.Entities = defs
		found = true
	}

	if !found {
		return nil, errors.New("content dir has neither actions/ nor entities.yaml")
	}
	return content, nil
}
