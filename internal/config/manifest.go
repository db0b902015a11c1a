package config

import (
	"fmt"
	"os"

	"github.com/koustreak/sqlforge/internal/generator"
)

// manifestEntry is one selection line. Selected defaults to true.
type manifestEntry struct {
	Schema   string `yaml:"schema"`
	Name     string `yaml:"name"`
	Table    string `yaml:"table"`
	Selected *bool  `yaml:"selected"`
}

type manifest struct {
	Tables      []manifestEntry `yaml:"tables"`
	Enums       []manifestEntry `yaml:"enums"`
	Types       []manifestEntry `yaml:"types"`
	Functions   []manifestEntry `yaml:"functions"`
	Triggers    []manifestEntry `yaml:"triggers"`
	Indexes     []manifestEntry `yaml:"indexes"`
	ForeignKeys []manifestEntry `yaml:"foreign_keys"`
	Policies    []manifestEntry `yaml:"policies"`
}

// LoadManifest reads a selection manifest file.
func LoadManifest(path string) (generator.Selections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return generator.Selections{}, fmt.Errorf("read manifest: %w", err)
	}
	sel, err := ParseManifest(data)
	if err != nil {
		return generator.Selections{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return sel, nil
}

// ParseManifest decodes a manifest:
//
//	tables:
//	  - {schema: public, name: users}
//	  - {schema: public, name: audit_log, selected: false}
//	triggers:
//	  - {schema: public, name: on_signup, table: users}
func ParseManifest(data []byte) (generator.Selections, error) {
	var m manifest
	if err := decode(data, &m); err != nil {
		return generator.Selections{}, err
	}
	return generator.Selections{
		Tables:      convert(m.Tables),
		Enums:       convert(m.Enums),
		Types:       convert(m.Types),
		Functions:   convert(m.Functions),
		Triggers:    convert(m.Triggers),
		Indexes:     convert(m.Indexes),
		ForeignKeys: convert(m.ForeignKeys),
		Policies:    convert(m.Policies),
	}, nil
}

func convert(in []manifestEntry) []generator.Selection {
	if len(in) == 0 {
		return nil
	}
	out := make([]generator.Selection, len(in))
	for i, e := range in {
		out[i] = generator.Selection{
			Schema:   e.Schema,
			Name:     e.Name,
			Table:    e.Table,
			Selected: e.Selected == nil || *e.Selected,
		}
	}
	return out
}
