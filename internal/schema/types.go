package schema

import "github.com/koustreak/sqlforge/internal/database"

// DataPage is one batch of table rows returned by a RowSession.
type DataPage = database.Page

// Routine identifies a user-defined function.
type Routine struct {
	Schema string `json:"function_schema"`
	Name   string `json:"function_name"`
}

// EnumType is an enum type together with its ordered labels.
type EnumType struct {
	Schema string   `json:"type_schema"`
	Name   string   `json:"type_name"`
	Labels []string `json:"labels"`
}

// Trigger identifies a trigger and the table it fires on.
type Trigger struct {
	Schema string `json:"trigger_schema"`
	Name   string `json:"trigger_name"`
	Table  string `json:"table_name"`
}

// Policy identifies a row-level-security policy on one table.
type Policy struct {
	Schema string `json:"policy_schema"`
	Table  string `json:"table_name"`
	Name   string `json:"policy_name"`
}

// Constraint is one table constraint as reported by pg_get_constraintdef.
type Constraint struct {
	Name       string `json:"constraint_name"`
	Definition string `json:"definition"`
}

// Index is one index of a schema as listed for the catalog.
type Index struct {
	Table      string `json:"tablename"`
	Name       string `json:"indexname"`
	Definition string `json:"indexdef"`
}

// ForeignKey describes a relationship between two tables.
type ForeignKey struct {
	Schema             string   `json:"fk_schema"`
	Name               string   `json:"fk_name"`
	TableSchema        string   `json:"table_schema"`
	Table              string   `json:"table_name"`
	Columns            []string `json:"column_names"`
	ForeignTableSchema string   `json:"foreign_table_schema"`
	ForeignTable       string   `json:"foreign_table_name"`
	ForeignColumns     []string `json:"foreign_column_names"`
}

// Owner returns the canonical schema.table key of the referencing table.
func (fk ForeignKey) Owner() string { return fk.TableSchema + "." + fk.Table }

// Target returns the canonical schema.table key of the referenced table.
func (fk ForeignKey) Target() string { return fk.ForeignTableSchema + "." + fk.ForeignTable }
