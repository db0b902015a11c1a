package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
)

// ProcIntrospector implements Introspector by calling the pg_* procedures
// installed in procSchema (see ProcedureSQL).
type ProcIntrospector struct {
	db         database.DB
	procSchema string
}

// NewProcIntrospector creates an introspector over db. An empty procSchema
// means "public".
func NewProcIntrospector(db database.DB, procSchema string) *ProcIntrospector {
	if procSchema == "" {
		procSchema = "public"
	}
	return &ProcIntrospector{db: db, procSchema: procSchema}
}

// fn returns the qualified name of an introspection procedure.
func (p *ProcIntrospector) fn(name string) string {
	return database.QuoteIdent(p.procSchema) + "." + name
}

// ListSchemas returns every schema name, internal ones included.
func (p *ProcIntrospector) ListSchemas(ctx context.Context) ([]string, error) {
	q := `SELECT schema_name FROM ` + p.fn("pg_list_schemas()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return database.ScanStrings(rows)
}

// ListTables returns the base tables of schema.
func (p *ProcIntrospector) ListTables(ctx context.Context, schema string) ([]string, error) {
	q := `SELECT table_name FROM ` + p.fn("pg_list_tables(schemaname => $1)")

	rows, err := p.db.Query(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables %s: %w", schema, err)
	}
	return database.ScanStrings(rows)
}

// ListEnumTypes returns every enum type in the database.
func (p *ProcIntrospector) ListEnumTypes(ctx context.Context) ([]EnumType, error) {
	q := `SELECT type_schema, type_name, coalesce(array_to_json(labels)::text, '[]') FROM ` + p.fn("pg_list_enum_types()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list enum types: %w", err)
	}
	defer rows.Close()

	enums := make([]EnumType, 0)
	for rows.Next() {
		var e EnumType
		var labels string
		if err := rows.Scan(&e.Schema, &e.Name, &labels); err != nil {
			return nil, fmt.Errorf("scan enum type: %w", err)
		}
		if e.Labels, err = decodeArray(labels); err != nil {
			return nil, fmt.Errorf("enum %s.%s labels: %w", e.Schema, e.Name, err)
		}
		enums = append(enums, e)
	}
	return enums, rows.Err()
}

// ListUserTypes returns the names of user-defined composite and domain types
// in schema.
func (p *ProcIntrospector) ListUserTypes(ctx context.Context, schema string) ([]string, error) {
	q := `SELECT type_name FROM ` + p.fn("pg_list_user_types(schemaname => $1)")

	rows, err := p.db.Query(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("list user types %s: %w", schema, err)
	}
	return database.ScanStrings(rows)
}

func (p *ProcIntrospector) ListFunctions(ctx context.Context, schema string) ([]Routine, error) {
	q := `SELECT function_schema, function_name FROM ` + p.fn("pg_list_functions()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	defer rows.Close()

	fns := make([]Routine, 0)
	for rows.Next() {
		var r Routine
		if err := rows.Scan(&r.Schema, &r.Name); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		if schema == "" || r.Schema == schema {
			fns = append(fns, r)
		}
	}
	return fns, rows.Err()
}

func (p *ProcIntrospector) ListTriggers(ctx context.Context, schema string) ([]Trigger, error) {
	q := `SELECT trigger_schema, trigger_name, event_object_table FROM ` + p.fn("pg_list_triggers()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	triggers := make([]Trigger, 0)
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.Schema, &t.Name, &t.Table); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		if schema == "" || t.Schema == schema {
			triggers = append(triggers, t)
		}
	}
	return triggers, rows.Err()
}

func (p *ProcIntrospector) ListPolicies(ctx context.Context, schema string) ([]Policy, error) {
	q := `SELECT policy_schema, table_name, policy_name FROM ` + p.fn("pg_list_policies()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	policies := make([]Policy, 0)
	for rows.Next() {
		var pol Policy
		if err := rows.Scan(&pol.Schema, &pol.Table, &pol.Name); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if schema == "" || pol.Schema == schema {
			policies = append(policies, pol)
		}
	}
	return policies, rows.Err()
}

// ListSchemaIndexes returns every index of every table in schema.
func (p *ProcIntrospector) ListSchemaIndexes(ctx context.Context, schema string) ([]Index, error) {
	q := `SELECT tablename, indexname, indexdef FROM ` + p.fn("pg_list_schema_indexes(schemaname => $1)")

	rows, err := p.db.Query(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", schema, err)
	}
	defer rows.Close()

	indexes := make([]Index, 0)
	for rows.Next() {
		var ix Index
		if err := rows.Scan(&ix.Table, &ix.Name, &ix.Definition); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		indexes = append(indexes, ix)
	}
	return indexes, rows.Err()
}

// --- definitions ---

func (p *ProcIntrospector) TableDefinition(ctx context.Context, schema, table string) (string, error) {
	q := `SELECT ddl FROM ` + p.fn("pg_get_tabledef(schemaname => $1, tablename => $2)")
	return p.definition(ctx, "table "+schema+"."+table, q, schema, table)
}

func (p *ProcIntrospector) FunctionDefinition(ctx context.Context, schema, function string) (string, error) {
	q := `SELECT definition FROM ` + p.fn("pg_get_function_def(schemaname => $1, functionname => $2)")
	return p.definition(ctx, "function "+schema+"."+function, q, schema, function)
}

func (p *ProcIntrospector) TriggerDefinition(ctx context.Context, schema, trigger string) (string, error) {
	q := `SELECT definition FROM ` + p.fn("pg_get_trigger_def(schemaname => $1, triggername => $2)")
	return p.definition(ctx, "trigger "+schema+"."+trigger, q, schema, trigger)
}

func (p *ProcIntrospector) TypeDefinition(ctx context.Context, schema, typ string) (string, error) {
	q := `SELECT definition FROM ` + p.fn("pg_get_type_def(schemaname => $1, typename => $2)")
	return p.definition(ctx, "type "+schema+"."+typ, q, schema, typ)
}

func (p *ProcIntrospector) PolicyDefinition(ctx context.Context, schema, table, policy string) (string, error) {
	q := `SELECT definition FROM ` + p.fn("pg_get_policy_def(schemaname => $1, tablename => $2, policyname => $3)")
	return p.definition(ctx, "policy "+policy+" on "+schema+"."+table, q, schema, table, policy)
}

// definition reads the first column of the first row. A missing row or a
// NULL/empty value is reported as not_found.
func (p *ProcIntrospector) definition(ctx context.Context, what, q string, args ...any) (string, error) {
	row, err := p.db.QueryRow(ctx, q, args...)
	if err != nil {
		return "", fmt.Errorf("%s definition: %w", what, err)
	}

	var def *string
	if err := row.Scan(&def); err != nil {
		return "", fmt.Errorf("%s definition: %w", what, err)
	}
	if def == nil || *def == "" {
		return "", errs.Newf(errs.ErrKindNotFound, "%s definition: empty result", what)
	}
	return *def, nil
}

// --- table structure ---

func (p *ProcIntrospector) ListConstraints(ctx context.Context, schema, table string) ([]Constraint, error) {
	q := `SELECT constraint_name, definition FROM ` + p.fn("pg_list_constraints(schemaname => $1, tablename => $2)")

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list constraints %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	constraints := make([]Constraint, 0)
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.Name, &c.Definition); err != nil {
			return nil, fmt.Errorf("scan constraint: %w", err)
		}
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

func (p *ProcIntrospector) ListIndexes(ctx context.Context, schema, table string) ([]string, error) {
	q := `SELECT indexdef FROM ` + p.fn("pg_list_indexes(schemaname => $1, tablename => $2)")

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list indexes %s.%s: %w", schema, table, err)
	}
	return database.ScanStrings(rows)
}

// ListForeignKeys returns every foreign key in the database.
func (p *ProcIntrospector) ListForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	q := `SELECT fk_schema, fk_name, table_schema, table_name,
			coalesce(array_to_json(column_names)::text, '[]'),
			foreign_table_schema, foreign_table_name,
			coalesce(array_to_json(foreign_column_names)::text, '[]')
		FROM ` + p.fn("pg_list_foreign_keys()")

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	defer rows.Close()

	fks := make([]ForeignKey, 0)
	for rows.Next() {
		var fk ForeignKey
		var cols, fcols string
		if err := rows.Scan(
			&fk.Schema,
			&fk.Name,
			&fk.TableSchema,
			&fk.Table,
			&cols,
			&fk.ForeignTableSchema,
			&fk.ForeignTable,
			&fcols,
		); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if fk.Columns, err = decodeArray(cols); err != nil {
			return nil, fmt.Errorf("foreign key %s columns: %w", fk.Name, err)
		}
		if fk.ForeignColumns, err = decodeArray(fcols); err != nil {
			return nil, fmt.Errorf("foreign key %s referenced columns: %w", fk.Name, err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// --- row sessions ---

// OpenSession pins one pooled connection for paging rows out of schema.
func (p *ProcIntrospector) OpenSession(ctx context.Context, schema string) (RowSession, error) {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", schema, err)
	}
	return &rowSession{conn: conn, schema: schema}, nil
}

// Close releases the underlying connection pool.
func (p *ProcIntrospector) Close() { p.db.Close() }

type rowSession struct {
	conn   database.Conn
	schema string
}

func (s *rowSession) FetchRows(ctx context.Context, table string, offset, limit int) (*DataPage, error) {
	q, args, err := database.Select(s.schema, table).Limit(limit).Offset(offset).Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch rows %s.%s at %d: %w", s.schema, table, offset, err)
	}
	page, err := database.ScanPage(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch rows %s.%s at %d: %w", s.schema, table, offset, err)
	}
	return page, nil
}

func (s *rowSession) Close() { s.conn.Release() }

// decodeArray parses a text[] rendered with array_to_json.
func decodeArray(raw string) ([]string, error) {
	out := make([]string, 0)
	if raw == "" || raw == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed array column", err)
	}
	return out, nil
}
