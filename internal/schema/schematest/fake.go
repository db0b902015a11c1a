// Package schematest provides an in-memory schema.Introspector for tests.
package schematest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/schema"
)

// Fake is a scripted schema.Introspector. Every call is recorded in Calls as
// "Method arg1 arg2 ..."; Errors injects a failure for a call, keyed either
// by that full string or by the bare method name.
//
// Definitions are keyed "<kind> <schema>.<name>" where kind is table,
// function, trigger or type, and "policy <schema>.<table>.<name>" for
// policies. A missing key behaves like a procedure returning no row.
type Fake struct {
	Schemas       []string
	Tables        map[string][]string
	Enums         []schema.EnumType
	UserTypes     map[string][]string
	Functions     []schema.Routine
	Triggers      []schema.Trigger
	Policies      []schema.Policy
	SchemaIndexes map[string][]schema.Index
	Definitions   map[string]string
	Constraints   map[string][]schema.Constraint // keyed schema.table
	Indexes       map[string][]string            // keyed schema.table
	ForeignKeys   []schema.ForeignKey
	Rows          map[string]*schema.DataPage // keyed schema.table, sliced by FetchRows
	Errors        map[string]error

	mu     sync.Mutex
	calls  []string
	closed bool
}

// New returns an empty Fake with all maps allocated.
func New() *Fake {
	return &Fake{
		Tables:        map[string][]string{},
		UserTypes:     map[string][]string{},
		SchemaIndexes: map[string][]schema.Index{},
		Definitions:   map[string]string{},
		Constraints:   map[string][]schema.Constraint{},
		Indexes:       map[string][]string{},
		Rows:          map[string]*schema.DataPage{},
		Errors:        map[string]error{},
	}
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many recorded calls start with prefix.
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) record(method string, args ...any) error {
	call := method
	for _, a := range args {
		call += " " + fmt.Sprint(a)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if err, ok := f.Errors[call]; ok {
		return err
	}
	if err, ok := f.Errors[method]; ok {
		return err
	}
	return nil
}

func (f *Fake) ListSchemas(ctx context.Context) ([]string, error) {
	if err := f.record("ListSchemas"); err != nil {
		return nil, err
	}
	return f.Schemas, nil
}

func (f *Fake) ListTables(ctx context.Context, s string) ([]string, error) {
	if err := f.record("ListTables", s); err != nil {
		return nil, err
	}
	return f.Tables[s], nil
}

func (f *Fake) ListEnumTypes(ctx context.Context) ([]schema.EnumType, error) {
	if err := f.record("ListEnumTypes"); err != nil {
		return nil, err
	}
	return f.Enums, nil
}

func (f *Fake) ListUserTypes(ctx context.Context, s string) ([]string, error) {
	if err := f.record("ListUserTypes", s); err != nil {
		return nil, err
	}
	return f.UserTypes[s], nil
}

func (f *Fake) ListFunctions(ctx context.Context, s string) ([]schema.Routine, error) {
	if err := f.record("ListFunctions", s); err != nil {
		return nil, err
	}
	out := make([]schema.Routine, 0)
	for _, r := range f.Functions {
		if s == "" || r.Schema == s {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *Fake) ListTriggers(ctx context.Context, s string) ([]schema.Trigger, error) {
	if err := f.record("ListTriggers", s); err != nil {
		return nil, err
	}
	out := make([]schema.Trigger, 0)
	for _, t := range f.Triggers {
		if s == "" || t.Schema == s {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Fake) ListPolicies(ctx context.Context, s string) ([]schema.Policy, error) {
	if err := f.record("ListPolicies", s); err != nil {
		return nil, err
	}
	out := make([]schema.Policy, 0)
	for _, p := range f.Policies {
		if s == "" || p.Schema == s {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fake) ListSchemaIndexes(ctx context.Context, s string) ([]schema.Index, error) {
	if err := f.record("ListSchemaIndexes", s); err != nil {
		return nil, err
	}
	return f.SchemaIndexes[s], nil
}

func (f *Fake) definition(method, key string) (string, error) {
	if err := f.record(method, key); err != nil {
		return "", err
	}
	def, ok := f.Definitions[strings.ToLower(strings.TrimSuffix(method, "Definition"))+" "+key]
	if !ok {
		return "", errs.Newf(errs.ErrKindNotFound, "%s definition: empty result", key)
	}
	return def, nil
}

func (f *Fake) TableDefinition(ctx context.Context, s, table string) (string, error) {
	return f.definition("TableDefinition", s+"."+table)
}

func (f *Fake) FunctionDefinition(ctx context.Context, s, fn string) (string, error) {
	return f.definition("FunctionDefinition", s+"."+fn)
}

func (f *Fake) TriggerDefinition(ctx context.Context, s, trigger string) (string, error) {
	return f.definition("TriggerDefinition", s+"."+trigger)
}

func (f *Fake) TypeDefinition(ctx context.Context, s, typ string) (string, error) {
	return f.definition("TypeDefinition", s+"."+typ)
}

func (f *Fake) PolicyDefinition(ctx context.Context, s, table, policy string) (string, error) {
	return f.definition("PolicyDefinition", s+"."+table+"."+policy)
}

func (f *Fake) ListConstraints(ctx context.Context, s, table string) ([]schema.Constraint, error) {
	if err := f.record("ListConstraints", s+"."+table); err != nil {
		return nil, err
	}
	return f.Constraints[s+"."+table], nil
}

func (f *Fake) ListIndexes(ctx context.Context, s, table string) ([]string, error) {
	if err := f.record("ListIndexes", s+"."+table); err != nil {
		return nil, err
	}
	return f.Indexes[s+"."+table], nil
}

func (f *Fake) ListForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	if err := f.record("ListForeignKeys"); err != nil {
		return nil, err
	}
	return f.ForeignKeys, nil
}

func (f *Fake) OpenSession(ctx context.Context, s string) (schema.RowSession, error) {
	if err := f.record("OpenSession", s); err != nil {
		return nil, err
	}
	return &session{f: f, schema: s}, nil
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type session struct {
	f      *Fake
	schema string
}

func (s *session) FetchRows(ctx context.Context, table string, offset, limit int) (*schema.DataPage, error) {
	key := s.schema + "." + table
	if err := s.f.record("FetchRows", key, offset); err != nil {
		return nil, err
	}

	page := &schema.DataPage{Rows: make([][]any, 0)}
	all := s.f.Rows[key]
	if all == nil {
		return page, nil
	}
	page.Columns = all.Columns
	if offset >= len(all.Rows) {
		return page, nil
	}
	end := offset + limit
	if end > len(all.Rows) {
		end = len(all.Rows)
	}
	page.Rows = all.Rows[offset:end]
	return page, nil
}

func (s *session) Close() {
	_ = s.f.record("CloseSession", s.schema)
}
