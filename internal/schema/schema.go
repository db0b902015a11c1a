// Package schema reads metadata and object definitions from a source
// database through a fixed set of introspection procedures.
package schema

import "context"

// Introspector is the read-only metadata surface the generator depends on.
// Every method performs one remote call; nothing is cached.
type Introspector interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListEnumTypes(ctx context.Context) ([]EnumType, error)
	ListUserTypes(ctx context.Context, schema string) ([]string, error)

	// ListFunctions, ListTriggers and ListPolicies return every object when
	// schema is empty.
	ListFunctions(ctx context.Context, schema string) ([]Routine, error)
	ListTriggers(ctx context.Context, schema string) ([]Trigger, error)
	ListPolicies(ctx context.Context, schema string) ([]Policy, error)
	ListSchemaIndexes(ctx context.Context, schema string) ([]Index, error)

	// Definition lookups return an errs not_found error when the procedure
	// yields no row.
	TableDefinition(ctx context.Context, schema, table string) (string, error)
	FunctionDefinition(ctx context.Context, schema, function string) (string, error)
	TriggerDefinition(ctx context.Context, schema, trigger string) (string, error)
	TypeDefinition(ctx context.Context, schema, typ string) (string, error)
	PolicyDefinition(ctx context.Context, schema, table, policy string) (string, error)

	ListConstraints(ctx context.Context, schema, table string) ([]Constraint, error)
	// ListIndexes returns the CREATE INDEX statements of one table.
	ListIndexes(ctx context.Context, schema, table string) ([]string, error)
	ListForeignKeys(ctx context.Context) ([]ForeignKey, error)

	// OpenSession reserves one session scoped to schema for paging a
	// table's rows. Callers must Close it.
	OpenSession(ctx context.Context, schema string) (RowSession, error)

	Close()
}

// RowSession pages through the rows of tables in one schema over a single
// connection.
type RowSession interface {
	FetchRows(ctx context.Context, table string, offset, limit int) (*DataPage, error)
	Close()
}
