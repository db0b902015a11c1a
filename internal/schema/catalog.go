package schema

import (
	"context"
	"fmt"
)

// internalSchemas are platform-managed schemas hidden from listings.
var internalSchemas = map[string]bool{
	"pg_catalog":          true,
	"information_schema":  true,
	"pg_toast":            true,
	"realtime":            true,
	"graphql_public":      true,
	"storage":             true,
	"supabase_migrations": true,
	"graphql":             true,
	"vault":               true,
	"extensions":          true,
}

// IsInternalSchema reports whether name is a platform-managed schema.
func IsInternalSchema(name string) bool {
	return internalSchemas[name]
}

// SchemaTables pairs a schema with its base tables.
type SchemaTables struct {
	Schema string   `json:"schema"`
	Tables []string `json:"tables"`
}

// SchemaDetail is everything selectable inside one schema.
type SchemaDetail struct {
	Schema      string       `json:"schema"`
	Tables      []string     `json:"tables"`
	Enums       []EnumType   `json:"enums"`
	Functions   []Routine    `json:"functions"`
	Triggers    []Trigger    `json:"triggers"`
	Policies    []Policy     `json:"policies"`
	Indexes     []Index      `json:"indexes"`
	ForeignKeys []ForeignKey `json:"foreignKeys"`
}

// UserSchemas lists schema names with internal schemas removed.
func UserSchemas(ctx context.Context, in Introspector) ([]string, error) {
	all, err := in.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(all))
	for _, s := range all {
		if !IsInternalSchema(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListSchemaTables returns the tables of every user schema.
func ListSchemaTables(ctx context.Context, in Introspector) ([]SchemaTables, error) {
	schemas, err := UserSchemas(ctx, in)
	if err != nil {
		return nil, err
	}

	out := make([]SchemaTables, 0, len(schemas))
	for _, s := range schemas {
		tables, err := in.ListTables(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, SchemaTables{Schema: s, Tables: tables})
	}
	return out, nil
}

// Catalog returns the full selectable object listing of every user schema.
// Database-wide listings are fetched once and bucketed by schema.
func Catalog(ctx context.Context, in Introspector) ([]SchemaDetail, error) {
	schemas, err := UserSchemas(ctx, in)
	if err != nil {
		return nil, err
	}

	enums, err := in.ListEnumTypes(ctx)
	if err != nil {
		return nil, err
	}
	functions, err := in.ListFunctions(ctx, "")
	if err != nil {
		return nil, err
	}
	triggers, err := in.ListTriggers(ctx, "")
	if err != nil {
		return nil, err
	}
	policies, err := in.ListPolicies(ctx, "")
	if err != nil {
		return nil, err
	}
	fks, err := in.ListForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SchemaDetail, 0, len(schemas))
	for _, s := range schemas {
		d := SchemaDetail{
			Schema:      s,
			Enums:       make([]EnumType, 0),
			Functions:   make([]Routine, 0),
			Triggers:    make([]Trigger, 0),
			Policies:    make([]Policy, 0),
			ForeignKeys: make([]ForeignKey, 0),
		}

		if d.Tables, err = in.ListTables(ctx, s); err != nil {
			return nil, err
		}
		if d.Indexes, err = in.ListSchemaIndexes(ctx, s); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", s, err)
		}

		for _, e := range enums {
			if e.Schema == s {
				d.Enums = append(d.Enums, e)
			}
		}
		for _, f := range functions {
			if f.Schema == s {
				d.Functions = append(d.Functions, f)
			}
		}
		for _, t := range triggers {
			if t.Schema == s {
				d.Triggers = append(d.Triggers, t)
			}
		}
		for _, p := range policies {
			if p.Schema == s {
				d.Policies = append(d.Policies, p)
			}
		}
		for _, fk := range fks {
			if fk.Schema == s {
				d.ForeignKeys = append(d.ForeignKeys, fk)
			}
		}

		out = append(out, d)
	}
	return out, nil
}
