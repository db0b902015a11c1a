package generator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/literal"
	"github.com/koustreak/sqlforge/internal/logger"
	"github.com/koustreak/sqlforge/internal/schema"
)

// selfContainedFunctions never need the placeholder users table.
var selfContainedFunctions = map[string]bool{
	"get_user_internal_id":         true,
	"get_or_create_user":           true,
	"set_user_context_by_clerk_id": true,
	"handle_new_user":              true,
	"handle_new_user_setup":        true,
}

const placeholderUsersTable = `CREATE TABLE IF NOT EXISTS public.users (
  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  clerk_user_id text UNIQUE,
  email text,
  first_name text,
  last_name text,
  created_at timestamptz DEFAULT now(),
  updated_at timestamptz DEFAULT now(),
  internal_id uuid DEFAULT gen_random_uuid()
);`

// indexNamePattern captures the index name following the INDEX keyword,
// quoted or bare.
var indexNamePattern = regexp.MustCompile(`(?i)INDEX\s+(?:"([^"]+)"|([^\s"]+))`)

// indexName extracts the index name from a CREATE INDEX statement.
func indexName(indexdef string) string {
	m := indexNamePattern.FindStringSubmatch(indexdef)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// emitter turns one plan into script sections. Methods returning an error
// abort the run; everything else degrades into per-object results.
type emitter struct {
	in   schema.Introspector
	plan *plan
	log  *logger.Logger
}

// objectLog tags the logger with an object label such as "function public.touch".
func (e *emitter) objectLog(object string) *logger.Logger {
	kind, name, _ := strings.Cut(object, " ")
	return e.log.Object(kind, name)
}

// soft records a non-fatal definition failure.
func (e *emitter) soft(object string, err error) Result {
	if errs.IsNotFound(err) {
		e.objectLog(object).Warn("definition not found")
		return Result{Object: object, Missing: true}
	}
	e.objectLog(object).WarnWith("definition retrieval failed", err, nil)
	return Result{Object: object, Err: err}
}

// --- cleanup ---

func (e *emitter) cleanup() section {
	sec := section{title: "CLEANUP: drop selected objects before recreating them"}
	p := e.plan

	if len(p.triggers) > 0 {
		var b strings.Builder
		for i, t := range p.triggers {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "DROP TRIGGER IF EXISTS %s ON %s CASCADE;", t.Name, t.TableKey())
		}
		sec.results = append(sec.results, Result{Comment: "Drop existing triggers", Body: b.String()})
	}
	if len(p.functions) > 0 {
		sec.results = append(sec.results, Result{Comment: "Drop existing functions", Body: drops("FUNCTION", p.functions)})
	}
	if len(p.tables) > 0 {
		sec.results = append(sec.results, Result{Comment: "Drop existing tables", Body: drops("TABLE", p.tables)})
	}
	if len(p.types)+len(p.enums) > 0 {
		types := append(append([]Selection{}, p.types...), p.enums...)
		sec.results = append(sec.results, Result{Comment: "Drop existing custom types", Body: drops("TYPE", types)})
	}
	return sec
}

func drops(kind string, objs []Selection) string {
	lines := make([]string, len(objs))
	for i, o := range objs {
		lines[i] = fmt.Sprintf("DROP %s IF EXISTS %s CASCADE;", kind, o.Key())
	}
	return strings.Join(lines, "\n")
}

// --- types ---

// enums covers every enum in a schema of a picked table plus explicitly
// picked enums. The listing call is fatal.
func (e *emitter) enums(ctx context.Context) (section, error) {
	sec := section{title: "ENUM TYPES"}
	p := e.plan
	if p.schemaSet.len() == 0 && len(p.enums) == 0 {
		return sec, nil
	}

	all, err := e.in.ListEnumTypes(ctx)
	if err != nil {
		return sec, fmt.Errorf("enum types: %w", err)
	}

	wanted := newOrderedSet()
	for _, en := range p.enums {
		wanted.add(en.Key())
	}

	emitted := newOrderedSet()
	for _, en := range all {
		key := en.Schema + "." + en.Name
		if !p.schemaSet.has(en.Schema) && !wanted.has(key) {
			continue
		}
		if !emitted.add(key) {
			continue
		}
		labels := make([]string, len(en.Labels))
		for i, l := range en.Labels {
			labels[i] = literal.Quote(l)
		}
		sec.results = append(sec.results, Result{
			Object:  "enum " + key,
			Comment: "Drop and recreate enum " + key,
			Drop:    fmt.Sprintf("DROP TYPE IF EXISTS %s CASCADE;", key),
			Body:    fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", key, strings.Join(labels, ", ")),
		})
	}

	for _, key := range wanted.items {
		if !emitted.has(key) {
			sec.results = append(sec.results, Result{Object: "enum " + key, Missing: true})
		}
	}
	return sec, nil
}

// customTypes covers picked types plus every user type in a schema of a
// picked table. Listing and definition failures both degrade.
func (e *emitter) customTypes(ctx context.Context) section {
	sec := section{title: "CUSTOM TYPES"}
	p := e.plan

	keys := newOrderedSet()
	var refs []tableRef
	for _, t := range p.types {
		if keys.add(t.Key()) {
			refs = append(refs, tableRef{schema: t.Schema, name: t.Name})
		}
	}
	for _, s := range p.schemaSet.items {
		names, err := e.in.ListUserTypes(ctx, s)
		if err != nil {
			e.log.WarnWith("could not list user types", err, map[string]interface{}{"schema": s})
			continue
		}
		for _, n := range names {
			ref := tableRef{schema: s, name: n}
			if keys.add(ref.key()) {
				refs = append(refs, ref)
			}
		}
	}

	for _, ref := range refs {
		key := ref.key()
		object := "type " + key
		def, err := e.in.TypeDefinition(ctx, ref.schema, ref.name)
		if err != nil {
			sec.results = append(sec.results, e.soft(object, err))
			continue
		}
		e.objectLog(object).Debug("fetched definition")
		sec.results = append(sec.results, Result{
			Object:  object,
			Comment: "Drop and recreate type " + key,
			Drop:    fmt.Sprintf("DROP TYPE IF EXISTS %s CASCADE;", key),
			Body:    statement(def),
		})
	}
	return sec
}

// --- tables ---

func (e *emitter) tables(ctx context.Context) (section, error) {
	sec := section{title: "TABLE DEFINITIONS"}
	for _, t := range e.plan.tables {
		r, err := e.table(ctx, tableRef{schema: t.Schema, name: t.Name}, "")
		if err != nil {
			return sec, err
		}
		sec.results = append(sec.results, r)
	}
	return sec, nil
}

func (e *emitter) dependencyTables(ctx context.Context, c *closure) (section, error) {
	sec := section{title: "ADDITIONAL TABLES FROM RELEVANT SCHEMAS (auto-detected for dependencies)"}
	for _, ref := range c.additional {
		r, err := e.table(ctx, ref, " (auto-detected)")
		if err != nil {
			return sec, err
		}
		sec.results = append(sec.results, r)
	}
	return sec, nil
}

// table fetches one table definition. Only a missing row degrades; any
// other failure is fatal.
func (e *emitter) table(ctx context.Context, ref tableRef, tag string) (Result, error) {
	key := ref.key()
	object := "table " + key
	def, err := e.in.TableDefinition(ctx, ref.schema, ref.name)
	if errs.IsNotFound(err) {
		return e.soft(object, err), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("table definition %s: %w", key, err)
	}
	e.objectLog(object).Debug("fetched definition")
	return Result{
		Object:  object,
		Comment: "Drop and recreate table " + key + tag,
		Drop:    fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", key),
		Body:    statement(def),
	}, nil
}

// placeholders emits the minimal public.users table when a picked function
// outside the self-contained allow-list may reference it.
func (e *emitter) placeholders() section {
	sec := section{title: "PLACEHOLDER AUTH TABLES (for function compatibility)"}
	if !e.plan.relevantSchemas.has("public") {
		return sec
	}

	needed := false
	for _, f := range e.plan.functions {
		if !selfContainedFunctions[f.Name] {
			needed = true
			break
		}
	}
	if !needed {
		return sec
	}

	sec.results = append(sec.results, Result{
		Comment: "WARNING: These are minimal placeholders. You may need to customize them.",
		Body:    placeholderUsersTable,
	})
	return sec
}

// --- functions and triggers ---

func (e *emitter) functions(ctx context.Context) section {
	sec := section{title: "USER-DEFINED FUNCTIONS"}
	for _, f := range e.plan.functions {
		key := f.Key()
		object := "function " + key
		def, err := e.in.FunctionDefinition(ctx, f.Schema, f.Name)
		if err != nil {
			sec.results = append(sec.results, e.soft(object, err))
			continue
		}
		e.objectLog(object).Debug("fetched definition")
		sec.results = append(sec.results, Result{
			Object:   object,
			Comment:  "Drop and recreate function " + key,
			Drop:     fmt.Sprintf("DROP FUNCTION IF EXISTS %s CASCADE;", key),
			Warnings: authWarning("Function", key, def),
			Body:     statement(def),
		})
	}
	return sec
}

func (e *emitter) triggers(ctx context.Context) section {
	sec := section{title: "TRIGGERS"}
	for _, t := range e.plan.triggers {
		object := fmt.Sprintf("trigger %s on %s", t.Key(), t.Table)
		def, err := e.in.TriggerDefinition(ctx, t.Schema, t.Name)
		if err != nil {
			sec.results = append(sec.results, e.soft(object, err))
			continue
		}
		e.objectLog(object).Debug("fetched definition")
		sec.results = append(sec.results, Result{
			Object:  object,
			Comment: fmt.Sprintf("Drop and recreate trigger %s on %s", t.Name, t.TableKey()),
			Drop:    fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s CASCADE;", t.Name, t.TableKey()),
			Body:    statement(def),
		})
	}
	return sec
}

// --- constraints, indexes and foreign keys ---

func (e *emitter) constraints(ctx context.Context) (section, error) {
	sec := section{title: "CONSTRAINTS"}
	for _, t := range e.plan.tables {
		key := t.Key()
		cons, err := e.in.ListConstraints(ctx, t.Schema, t.Name)
		if err != nil {
			return sec, fmt.Errorf("constraints %s: %w", key, err)
		}
		if len(cons) == 0 {
			continue
		}
		stmts := make([]string, len(cons))
		for i, c := range cons {
			stmts[i] = fmt.Sprintf("ALTER TABLE %s\n  ADD CONSTRAINT %s %s;", key, c.Name, c.Definition)
		}
		sec.results = append(sec.results, Result{
			Comment: "Constraints for " + key,
			Body:    strings.Join(stmts, "\n"),
		})
	}
	return sec, nil
}

// indexes emits every index of each picked table plus picked indexes on
// tables that were not picked, skipping indexes backing a constraint.
func (e *emitter) indexes(ctx context.Context) (section, error) {
	sec := section{title: "INDEXES"}

	// table key -> index names to keep; nil keeps all
	only := make(map[string]map[string]bool)
	order := newOrderedSet()
	var refs []tableRef
	for _, t := range e.plan.tables {
		if order.add(t.Key()) {
			refs = append(refs, tableRef{schema: t.Schema, name: t.Name})
		}
	}
	for _, ix := range e.plan.indexes {
		tk := ix.TableKey()
		if e.plan.tableSet.has(tk) {
			continue
		}
		if order.add(tk) {
			only[tk] = make(map[string]bool)
			refs = append(refs, tableRef{schema: ix.Schema, name: ix.Table})
		}
		only[tk][ix.Name] = true
	}

	for _, ref := range refs {
		tk := ref.key()
		cons, err := e.in.ListConstraints(ctx, ref.schema, ref.name)
		if err != nil {
			return sec, fmt.Errorf("indexes %s: %w", tk, err)
		}
		defs, err := e.in.ListIndexes(ctx, ref.schema, ref.name)
		if err != nil {
			return sec, fmt.Errorf("indexes %s: %w", tk, err)
		}

		constraintNames := make(map[string]bool, len(cons))
		for _, c := range cons {
			constraintNames[c.Name] = true
		}

		var stmts []string
		for _, def := range defs {
			name := indexName(def)
			if name == "" || constraintNames[name] {
				continue
			}
			if keep := only[tk]; keep != nil && !keep[name] {
				continue
			}
			stmts = append(stmts, statement(def))
		}
		if len(stmts) == 0 {
			continue
		}
		sec.results = append(sec.results, Result{
			Comment: "Indexes for " + tk,
			Body:    strings.Join(stmts, "\n"),
		})
	}
	return sec, nil
}

// foreignKeys emits every foreign key whose both endpoints are in the
// closure. Picked foreign keys that fall outside it are noted.
func (e *emitter) foreignKeys(ctx context.Context, c *closure) (section, error) {
	sec := section{title: "FOREIGN KEY CONSTRAINTS"}
	if c.tables.len() == 0 && len(e.plan.foreignKeys) == 0 {
		return sec, nil
	}

	fks, err := e.in.ListForeignKeys(ctx)
	if err != nil {
		return sec, fmt.Errorf("foreign keys: %w", err)
	}

	emitted := make(map[string]bool)
	for _, fk := range fks {
		if !c.tables.has(fk.Owner()) || !c.tables.has(fk.Target()) {
			continue
		}
		emitted[fk.Schema+"."+fk.Name] = true
		sec.results = append(sec.results, Result{
			Object: "foreign key " + fk.Name,
			Body: fmt.Sprintf("ALTER TABLE %s\n  ADD CONSTRAINT %s\n  FOREIGN KEY (%s) REFERENCES %s(%s);",
				fk.Owner(), fk.Name,
				strings.Join(fk.Columns, ", "),
				fk.Target(),
				strings.Join(fk.ForeignColumns, ", ")),
		})
	}

	for _, sel := range e.plan.foreignKeys {
		if !emitted[sel.Key()] {
			sec.results = append(sec.results, Result{
				Comment: fmt.Sprintf("Skipped foreign key %s: both tables must be part of the script", sel.Key()),
			})
		}
	}
	return sec, nil
}

// --- policies ---

// policies enables row-level security once per owning table, then drops and
// recreates each picked policy.
func (e *emitter) policies(ctx context.Context) section {
	sec := section{title: "ROW LEVEL SECURITY POLICIES"}
	if len(e.plan.policies) == 0 {
		return sec
	}

	owners := newOrderedSet()
	for _, p := range e.plan.policies {
		owners.add(p.TableKey())
	}
	enable := make([]string, 0, owners.len())
	for _, tk := range owners.items {
		enable = append(enable, fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", tk))
	}
	sec.results = append(sec.results, Result{
		Comment: "Enable row level security",
		Body:    strings.Join(enable, "\n"),
	})

	for _, p := range e.plan.policies {
		tk := p.TableKey()
		object := fmt.Sprintf("policy %s on %s", p.Name, tk)
		def, err := e.in.PolicyDefinition(ctx, p.Schema, p.Table, p.Name)
		if err != nil {
			sec.results = append(sec.results, e.soft(object, err))
			continue
		}
		e.objectLog(object).Debug("fetched definition")
		sec.results = append(sec.results, Result{
			Object:   object,
			Comment:  fmt.Sprintf("Drop and recreate policy %s on %s", p.Name, tk),
			Drop:     fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s CASCADE;", p.Name, tk),
			Warnings: authWarning("Policy", p.Name, policyPredicates(def)),
			Body:     statement(def),
		})
	}
	return sec
}
