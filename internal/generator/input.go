package generator

import (
	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
)

// Category names a selectable object kind.
type Category string

const (
	CategoryTable      Category = "table"
	CategoryEnum       Category = "enum"
	CategoryType       Category = "type"
	CategoryFunction   Category = "function"
	CategoryTrigger    Category = "trigger"
	CategoryIndex      Category = "index"
	CategoryForeignKey Category = "foreignKey"
	CategoryPolicy     Category = "policy"
)

// Selection is one object offered for migration. Table is required for
// triggers, indexes and policies and ignored otherwise.
type Selection struct {
	Schema   string `json:"schema" yaml:"schema"`
	Name     string `json:"name" yaml:"name"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Selected bool   `json:"selected" yaml:"selected"`
}

// Key returns the canonical schema.name string.
func (s Selection) Key() string { return s.Schema + "." + s.Name }

// TableKey returns the canonical schema.table string of the owning table.
func (s Selection) TableKey() string { return s.Schema + "." + s.Table }

// Selections holds the raw, unfiltered selection list of every category.
type Selections struct {
	Tables      []Selection `json:"tables,omitempty" yaml:"tables,omitempty"`
	Enums       []Selection `json:"enums,omitempty" yaml:"enums,omitempty"`
	Types       []Selection `json:"types,omitempty" yaml:"types,omitempty"`
	Functions   []Selection `json:"functions,omitempty" yaml:"functions,omitempty"`
	Triggers    []Selection `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Indexes     []Selection `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	ForeignKeys []Selection `json:"foreignKeys,omitempty" yaml:"foreign_keys,omitempty"`
	Policies    []Selection `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// Options toggles optional script sections.
type Options struct {
	IncludeData     bool `json:"includeData" yaml:"include_data"`
	DropAndRecreate bool `json:"dropAndRecreate" yaml:"drop_and_recreate"`
}

// DefaultOptions enables both row data and the bulk cleanup pass.
func DefaultOptions() Options {
	return Options{IncludeData: true, DropAndRecreate: true}
}

// Input is everything one generation run needs. It is passed by value and
// never retained after Generate returns.
type Input struct {
	Credentials database.Config
	Selections  Selections
	Options     Options
}

// Validate rejects input that must not reach the database.
func (in Input) Validate() error {
	if err := in.Credentials.Validate(); err != nil {
		return err
	}
	_, err := resolve(in.Selections)
	return err
}

func errInput(format string, args ...any) error {
	return errs.Newf(errs.ErrKindInvalidInput, format, args...)
}
