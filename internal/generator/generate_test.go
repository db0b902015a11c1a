package generator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/schema"
	"github.com/koustreak/sqlforge/internal/schema/schematest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func pick(schemaName, name string) Selection {
	return Selection{Schema: schemaName, Name: name, Selected: true}
}

func pickOn(schemaName, name, table string) Selection {
	return Selection{Schema: schemaName, Name: name, Table: table, Selected: true}
}

func newInput(sel Selections, opts Options) Input {
	return Input{
		Credentials: database.DefaultConfig("postgres://postgres@localhost:5432/postgres"),
		Selections:  sel,
		Options:     opts,
	}
}

type countingDialer struct {
	fake  *schematest.Fake
	dials int
}

func (d *countingDialer) dial(ctx context.Context, cfg database.Config) (schema.Introspector, error) {
	d.dials++
	return d.fake, nil
}

func generate(t *testing.T, f *schematest.Fake, sel Selections, opts Options) string {
	t.Helper()
	d := &countingDialer{fake: f}
	script, err := New(d.dial).Generate(context.Background(), newInput(sel, opts))
	require.NoError(t, err)
	return script
}

func usersFake() *schematest.Fake {
	f := schematest.New()
	f.Tables["public"] = []string{"users"}
	f.Definitions["table public.users"] = "CREATE TABLE public.users (\n  id integer,\n  name text\n)"
	f.Rows["public.users"] = &schema.DataPage{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "a"}, {int64(2), "b'c"}},
	}
	return f
}

func rows(n int) *schema.DataPage {
	page := &schema.DataPage{Columns: []string{"id"}}
	for i := 0; i < n; i++ {
		page.Rows = append(page.Rows, []any{int64(i + 1)})
	}
	return page
}

// --- input errors ---

func TestGenerate_NothingSelected(t *testing.T) {
	d := &countingDialer{fake: schematest.New()}
	sel := Selections{
		Tables:    []Selection{{Schema: "public", Name: "users", Selected: false}},
		Functions: []Selection{{Schema: "public", Name: "f"}},
	}

	_, err := New(d.dial).Generate(context.Background(), newInput(sel, DefaultOptions()))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Zero(t, d.dials)
	assert.Empty(t, d.fake.Calls())
}

func TestGenerate_MissingCredentials(t *testing.T) {
	d := &countingDialer{fake: schematest.New()}
	in := newInput(Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions())
	in.Credentials.DSN = ""

	_, err := New(d.dial).Generate(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "missing credentials")
	assert.Zero(t, d.dials)
}

func TestGenerate_DialFailure(t *testing.T) {
	dial := func(ctx context.Context, cfg database.Config) (schema.Introspector, error) {
		return nil, errs.New(errs.ErrKindConnectionFailed, "connection refused")
	}
	_, err := New(dial).Generate(context.Background(), newInput(Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions()))
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.True(t, errs.IsRemote(err))
}

func TestGenerate_ClosesIntrospector(t *testing.T) {
	f := usersFake()
	generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions())
	assert.True(t, f.Closed())
}

// --- scenarios ---

func TestGenerate_UsersTableWithData(t *testing.T) {
	f := usersFake()
	script := generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions())

	assert.Contains(t, script, "DROP TABLE IF EXISTS public.users CASCADE;")
	assert.Contains(t, script, "CREATE TABLE public.users (\n  id integer,\n  name text\n);")
	assert.Contains(t, script, "-- Data for public.users\nINSERT INTO public.users (id, name) VALUES\n(1, 'a'),\n(2, 'b''c');\n")

	drop := strings.Index(script, "DROP TABLE IF EXISTS public.users CASCADE;")
	create := strings.Index(script, "CREATE TABLE public.users")
	insert := strings.Index(script, "INSERT INTO public.users")
	assert.Less(t, drop, create)
	assert.Less(t, create, insert)

	// one session for the table, closed after export
	assert.Equal(t, 1, f.CallCount("OpenSession public"))
	assert.Equal(t, 1, f.CallCount("CloseSession public"))
}

func TestGenerate_DataDisabled(t *testing.T) {
	f := usersFake()
	script := generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, Options{})

	assert.NotContains(t, script, "INSERT INTO")
	assert.NotContains(t, script, "-- CLEANUP")
	assert.Zero(t, f.CallCount("OpenSession"))
	// the per-object drop stays even without the cleanup pass
	assert.Contains(t, script, "DROP TABLE IF EXISTS public.users CASCADE;")
}

func TestGenerate_NoData(t *testing.T) {
	f := usersFake()
	delete(f.Rows, "public.users")

	script := generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions())
	assert.Contains(t, script, "-- No data found for public.users\n")
	assert.NotContains(t, script, "INSERT INTO public.users")
}

func TestGenerate_Paging(t *testing.T) {
	tests := []struct {
		rows    int
		fetches int
		inserts int
	}{
		{rows: 1, fetches: 1, inserts: 1},
		{rows: 500, fetches: 2, inserts: 1},
		{rows: 501, fetches: 2, inserts: 2},
		{rows: 1200, fetches: 3, inserts: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows", tt.rows), func(t *testing.T) {
			f := schematest.New()
			f.Tables["public"] = []string{"events"}
			f.Definitions["table public.events"] = "CREATE TABLE public.events (id bigint)"
			f.Rows["public.events"] = rows(tt.rows)

			script := generate(t, f, Selections{Tables: []Selection{pick("public", "events")}}, DefaultOptions())

			assert.Equal(t, tt.fetches, f.CallCount("FetchRows public.events"))
			assert.Equal(t, tt.inserts, strings.Count(script, "INSERT INTO public.events (id) VALUES"))
			assert.Equal(t, 1, strings.Count(script, "-- Data for public.events"))
			assert.NotContains(t, script, "VALUES\n;")
		})
	}

	f := schematest.New()
	f.Tables["public"] = []string{"events"}
	f.Definitions["table public.events"] = "CREATE TABLE public.events (id bigint)"
	f.Rows["public.events"] = rows(501)
	generate(t, f, Selections{Tables: []Selection{pick("public", "events")}}, DefaultOptions())

	var offsets []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, "FetchRows") {
			offsets = append(offsets, c)
		}
	}
	assert.Equal(t, []string{"FetchRows public.events 0", "FetchRows public.events 500"}, offsets)
}

func TestGenerate_AuthWarningBeforeFunctionBody(t *testing.T) {
	f := schematest.New()
	body := "CREATE OR REPLACE FUNCTION public.current_profile()\n RETURNS uuid\n LANGUAGE sql\nAS $function$ SELECT auth.uid() $function$\n"
	f.Definitions["function public.current_profile"] = body

	script := generate(t, f, Selections{Functions: []Selection{pick("public", "current_profile")}}, DefaultOptions())

	lines := strings.Split(script, "\n")
	bodyAt := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "CREATE OR REPLACE FUNCTION public.current_profile()") {
			bodyAt = i
			break
		}
	}
	require.Greater(t, bodyAt, 2)
	assert.Equal(t, "-- WARNING: Function public.current_profile references auth objects: auth.uid()", lines[bodyAt-2])
	assert.Equal(t, "-- You may need to modify this function for your target database", lines[bodyAt-1])
	assert.Equal(t, "DROP FUNCTION IF EXISTS public.current_profile CASCADE;", lines[bodyAt-3])
	assert.Contains(t, script, "AS $function$ SELECT auth.uid() $function$;\n")
}

func TestGenerate_NoWarningWithoutAuthReference(t *testing.T) {
	f := schematest.New()
	f.Definitions["function public.add"] = "CREATE FUNCTION public.add(a int, b int) RETURNS int AS $$ SELECT a + b $$ LANGUAGE sql;"

	script := generate(t, f, Selections{Functions: []Selection{pick("public", "add")}}, DefaultOptions())
	assert.NotContains(t, script, "-- WARNING: Function")
	assert.Contains(t, script, "LANGUAGE sql;\n")
	assert.NotContains(t, script, "LANGUAGE sql;;")
}

func TestGenerate_Placeholder(t *testing.T) {
	tests := []struct {
		name      string
		functions []Selection
		want      bool
	}{
		{"allow-listed only", []Selection{pick("public", "handle_new_user")}, false},
		{"unknown function", []Selection{pick("public", "sync_profiles")}, true},
		{"mixed", []Selection{pick("public", "handle_new_user"), pick("public", "sync_profiles")}, true},
		{"outside public", []Selection{pick("billing", "close_period")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := schematest.New()
			for _, fn := range tt.functions {
				f.Definitions["function "+fn.Key()] = "CREATE FUNCTION " + fn.Key() + "() RETURNS void AS $$ $$ LANGUAGE sql"
			}
			script := generate(t, f, Selections{Functions: tt.functions}, DefaultOptions())

			has := strings.Contains(script, "CREATE TABLE IF NOT EXISTS public.users (")
			assert.Equal(t, tt.want, has)
			if tt.want {
				assert.Contains(t, script, "-- PLACEHOLDER AUTH TABLES (for function compatibility)\n-- WARNING: These are minimal placeholders.")
				assert.Contains(t, script, "  clerk_user_id text UNIQUE,\n")
			}
		})
	}
}

func TestGenerate_DependencyClosure(t *testing.T) {
	f := schematest.New()
	f.Tables["public"] = []string{"orders", "users", "audit"}
	f.Tables["billing"] = []string{"invoices"}
	for _, key := range []string{"public.orders", "public.users", "public.audit", "billing.invoices"} {
		f.Definitions["table "+key] = "CREATE TABLE " + key + " (id int)"
		f.Rows[key] = &schema.DataPage{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}
	}
	f.Definitions["function billing.close_period"] = "CREATE FUNCTION billing.close_period() RETURNS void AS $$ $$ LANGUAGE sql"
	f.ForeignKeys = []schema.ForeignKey{
		{Schema: "public", Name: "orders_user_fk", TableSchema: "public", Table: "orders", Columns: []string{"user_id"},
			ForeignTableSchema: "public", ForeignTable: "users", ForeignColumns: []string{"id"}},
		{Schema: "billing", Name: "invoices_order_fk", TableSchema: "billing", Table: "invoices", Columns: []string{"order_id"},
			ForeignTableSchema: "public", ForeignTable: "orders", ForeignColumns: []string{"id"}},
		{Schema: "billing", Name: "invoices_ledger_fk", TableSchema: "billing", Table: "invoices", Columns: []string{"ledger_id"},
			ForeignTableSchema: "ledger", ForeignTable: "entries", ForeignColumns: []string{"id"}},
	}

	sel := Selections{
		Tables:    []Selection{pick("public", "orders")},
		Functions: []Selection{pick("billing", "close_period")},
	}
	script := generate(t, f, sel, Options{IncludeData: true})

	// explicit table first, then closure tables in schema/listing order
	orders := strings.Index(script, "CREATE TABLE public.orders")
	users := strings.Index(script, "CREATE TABLE public.users")
	audit := strings.Index(script, "CREATE TABLE public.audit")
	invoices := strings.Index(script, "CREATE TABLE billing.invoices")
	require.True(t, orders >= 0 && users >= 0 && audit >= 0 && invoices >= 0)
	assert.Less(t, orders, users)
	assert.Less(t, users, audit)
	assert.Less(t, audit, invoices)
	assert.Contains(t, script, "-- Drop and recreate table public.users (auto-detected)")
	assert.Equal(t, 1, strings.Count(script, "CREATE TABLE public.orders"))

	assert.Contains(t, script, "ALTER TABLE public.orders\n  ADD CONSTRAINT orders_user_fk\n  FOREIGN KEY (user_id) REFERENCES public.users(id);")
	assert.Contains(t, script, "ADD CONSTRAINT invoices_order_fk")
	assert.NotContains(t, script, "invoices_ledger_fk")

	// data is never exported for closure-only tables
	assert.Equal(t, 1, f.CallCount("OpenSession"))
	assert.Contains(t, script, "INSERT INTO public.orders")
	assert.NotContains(t, script, "INSERT INTO public.users")
	assert.NotContains(t, script, "INSERT INTO public.audit")
	assert.NotContains(t, script, "INSERT INTO billing.invoices")
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, "FetchRows") {
			assert.True(t, strings.HasPrefix(c, "FetchRows public.orders "), c)
		}
	}
	assert.Equal(t, 1, f.CallCount("ListForeignKeys"))
}

func TestGenerate_ClosureIsSupersetOfPicked(t *testing.T) {
	f := schematest.New()
	// listing omits a picked table; it must still be emitted
	f.Tables["public"] = []string{"profiles"}
	f.Definitions["table public.users"] = "CREATE TABLE public.users (id int)"
	f.Definitions["table public.profiles"] = "CREATE TABLE public.profiles (id int)"

	p, err := resolve(Selections{Tables: []Selection{pick("public", "users")}})
	require.NoError(t, err)
	c, err := expand(context.Background(), f, p)
	require.NoError(t, err)

	for _, key := range p.tableSet.items {
		assert.True(t, c.tables.has(key), key)
	}
	assert.Equal(t, []string{"public.users", "public.profiles"}, c.tables.items)
	assert.Equal(t, []tableRef{{schema: "public", name: "profiles"}}, c.additional)
}

func TestGenerate_IndexesSkipConstraintBacked(t *testing.T) {
	f := usersFake()
	f.Constraints["public.users"] = []schema.Constraint{
		{Name: "users_pkey", Definition: "PRIMARY KEY (id)"},
		{Name: "users_email_key", Definition: "UNIQUE (email)"},
	}
	f.Indexes["public.users"] = []string{
		"CREATE UNIQUE INDEX users_pkey ON public.users USING btree (id)",
		"CREATE UNIQUE INDEX users_email_key ON public.users USING btree (email)",
		"CREATE INDEX users_name_idx ON public.users USING btree (name)",
		`CREATE INDEX "Users Created" ON public.users USING btree (created_at)`,
	}

	script := generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, Options{})

	assert.Contains(t, script, "-- Constraints for public.users\nALTER TABLE public.users\n  ADD CONSTRAINT users_pkey PRIMARY KEY (id);\n")
	assert.Contains(t, script, "CREATE INDEX users_name_idx ON public.users USING btree (name);")
	assert.Contains(t, script, `CREATE INDEX "Users Created" ON public.users USING btree (created_at);`)
	assert.NotContains(t, script, "CREATE UNIQUE INDEX users_pkey")
	assert.NotContains(t, script, "CREATE UNIQUE INDEX users_email_key")
}

func TestGenerate_PickedIndexOnUnpickedTable(t *testing.T) {
	f := schematest.New()
	f.Constraints["public.events"] = []schema.Constraint{{Name: "events_pkey", Definition: "PRIMARY KEY (id)"}}
	f.Indexes["public.events"] = []string{
		"CREATE UNIQUE INDEX events_pkey ON public.events USING btree (id)",
		"CREATE INDEX events_ts_idx ON public.events USING btree (ts)",
		"CREATE INDEX events_kind_idx ON public.events USING btree (kind)",
	}

	script := generate(t, f, Selections{Indexes: []Selection{pickOn("public", "events_ts_idx", "events")}}, DefaultOptions())

	assert.Contains(t, script, "CREATE INDEX events_ts_idx ON public.events USING btree (ts);")
	assert.NotContains(t, script, "events_kind_idx")
	assert.NotContains(t, script, "-- CONSTRAINTS")
	assert.Zero(t, f.CallCount("ListTables"))
	assert.Zero(t, f.CallCount("ListForeignKeys"))
}

func TestGenerate_SoftFailuresBecomeSentinels(t *testing.T) {
	f := schematest.New()
	f.Definitions["function public.ok"] = "CREATE FUNCTION public.ok() RETURNS int AS $$ SELECT 1 $$ LANGUAGE sql"
	f.Errors["FunctionDefinition public.broken"] = errs.New(errs.ErrKindQueryFailed, "function pg_get_function_def does not exist")
	f.Errors["TriggerDefinition public.on_signup"] = errs.New(errs.ErrKindTimeout, "statement timeout")
	f.Errors["PolicyDefinition public.users.own_rows"] = errs.New(errs.ErrKindPermissionDenied, "denied")

	sel := Selections{
		Functions: []Selection{pick("public", "ok"), pick("public", "broken"), pick("public", "ghost")},
		Triggers:  []Selection{pickOn("public", "on_signup", "users")},
		Types:     []Selection{pick("public", "address")},
		Policies:  []Selection{pickOn("public", "own_rows", "users")},
	}
	script := generate(t, f, sel, DefaultOptions())

	assert.Contains(t, script, "CREATE FUNCTION public.ok() RETURNS int AS $$ SELECT 1 $$ LANGUAGE sql;")
	assert.Contains(t, script, "-- Error retrieving definition for function public.broken: [query_failed] function pg_get_function_def does not exist\n")
	assert.Contains(t, script, "-- Could not retrieve definition for function public.ghost\n")
	assert.Contains(t, script, "-- Error retrieving definition for trigger public.on_signup on users: [timeout] statement timeout\n")
	assert.Contains(t, script, "-- Could not retrieve definition for type public.address\n")
	assert.Contains(t, script, "-- Error retrieving definition for policy own_rows on public.users: [permission_denied] denied\n")
	assert.Len(t, Sentinels(script), 5)

	assert.NotContains(t, script, "DROP FUNCTION IF EXISTS public.broken CASCADE;\nCREATE")
}

func TestGenerate_FatalFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		kind errs.ErrKind
	}{
		{"table definition", "TableDefinition public.users", errs.ErrKindConnectionFailed},
		{"table listing", "ListTables public", errs.ErrKindPermissionDenied},
		{"enum listing", "ListEnumTypes", errs.ErrKindQueryFailed},
		{"row page", "FetchRows public.users 0", errs.ErrKindTimeout},
		{"session", "OpenSession public", errs.ErrKindConnectionFailed},
		{"constraints", "ListConstraints public.users", errs.ErrKindQueryFailed},
		{"indexes", "ListIndexes public.users", errs.ErrKindQueryFailed},
		{"foreign keys", "ListForeignKeys", errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := usersFake()
			f.Errors[tt.key] = errs.New(tt.kind, "injected")

			d := &countingDialer{fake: f}
			script, err := New(d.dial).Generate(context.Background(),
				newInput(Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions()))
			require.Error(t, err)
			assert.Empty(t, script)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.True(t, errs.IsRemote(err))
			assert.True(t, f.Closed())
		})
	}
}

func TestGenerate_UserTypeListingDegrades(t *testing.T) {
	f := usersFake()
	f.Errors["ListUserTypes public"] = errs.New(errs.ErrKindQueryFailed, "boom")

	script := generate(t, f, Selections{Tables: []Selection{pick("public", "users")}}, DefaultOptions())
	assert.Contains(t, script, "CREATE TABLE public.users")
}

func TestGenerate_Types(t *testing.T) {
	f := usersFake()
	f.Enums = []schema.EnumType{
		{Schema: "public", Name: "mood", Labels: []string{"happy", "it's fine"}},
		{Schema: "billing", Name: "currency", Labels: []string{"usd", "eur"}},
		{Schema: "ledger", Name: "side", Labels: []string{"debit"}},
	}
	f.UserTypes["public"] = []string{"address"}
	f.Definitions["type public.address"] = "CREATE TYPE public.address AS (street text, city text);"
	f.Definitions["type billing.money"] = "CREATE DOMAIN billing.money AS numeric(12,2)"

	sel := Selections{
		Tables: []Selection{pick("public", "users")},
		Enums:  []Selection{pick("billing", "currency")},
		Types:  []Selection{pick("billing", "money")},
	}
	script := generate(t, f, sel, DefaultOptions())

	assert.Contains(t, script, "DROP TYPE IF EXISTS public.mood CASCADE;\nCREATE TYPE public.mood AS ENUM ('happy', 'it''s fine');")
	assert.Contains(t, script, "CREATE TYPE billing.currency AS ENUM ('usd', 'eur');")
	assert.NotContains(t, script, "ledger.side")

	assert.Contains(t, script, "DROP TYPE IF EXISTS billing.money CASCADE;\nCREATE DOMAIN billing.money AS numeric(12,2);")
	assert.Contains(t, script, "DROP TYPE IF EXISTS public.address CASCADE;\nCREATE TYPE public.address AS (street text, city text);")
	// picked types come before discovered ones
	assert.Less(t, strings.Index(script, "CREATE DOMAIN billing.money"), strings.Index(script, "CREATE TYPE public.address"))
	// types before tables
	assert.Less(t, strings.Index(script, "CREATE TYPE public.address"), strings.Index(script, "CREATE TABLE public.users"))
}

func TestGenerate_Policies(t *testing.T) {
	f := schematest.New()
	f.Tables["public"] = []string{"users", "orders"}
	f.Definitions["table public.users"] = "CREATE TABLE public.users (id uuid)"
	f.Definitions["table public.orders"] = "CREATE TABLE public.orders (id uuid)"
	f.Definitions["policy public.users.own_rows"] = "CREATE POLICY own_rows ON public.users USING (id = auth.uid())"
	f.Definitions["policy public.users.admins"] = "CREATE POLICY admins ON public.users USING (true)"
	f.Definitions["policy public.orders.own_orders"] = "CREATE POLICY own_orders ON public.orders USING (true)"

	sel := Selections{Policies: []Selection{
		pickOn("public", "own_rows", "users"),
		pickOn("public", "admins", "users"),
		pickOn("public", "own_orders", "orders"),
	}}
	script := generate(t, f, sel, DefaultOptions())

	assert.Equal(t, 1, strings.Count(script, "ALTER TABLE public.users ENABLE ROW LEVEL SECURITY;"))
	assert.Equal(t, 1, strings.Count(script, "ALTER TABLE public.orders ENABLE ROW LEVEL SECURITY;"))
	assert.Contains(t, script,
		"DROP POLICY IF EXISTS own_rows ON public.users CASCADE;\n"+
			"-- WARNING: Policy own_rows references auth objects: auth.uid()\n"+
			"-- You may need to modify this policy for your target database\n"+
			"CREATE POLICY own_rows ON public.users USING (id = auth.uid());\n")
	assert.NotContains(t, script, "-- WARNING: Policy admins")
	assert.NotContains(t, script, "-- WARNING: Policy own_orders")

	// the policy's schema pulls its tables into the closure
	assert.Contains(t, script, "CREATE TABLE public.users (id uuid);")
	assert.Less(t, strings.Index(script, "CREATE TABLE public.users"), strings.Index(script, "CREATE POLICY own_rows"))
}

func TestGenerate_CleanupOrder(t *testing.T) {
	f := usersFake()
	sel := Selections{
		Tables:    []Selection{pick("public", "users")},
		Functions: []Selection{pick("public", "handle_new_user")},
		Triggers:  []Selection{pickOn("public", "on_signup", "users")},
		Types:     []Selection{pick("public", "address")},
	}
	script := generate(t, f, sel, DefaultOptions())

	cleanup := script[strings.Index(script, "-- CLEANUP"):strings.Index(script, "-- TABLE DEFINITIONS")]
	trig := strings.Index(cleanup, "DROP TRIGGER IF EXISTS on_signup ON public.users CASCADE;")
	fn := strings.Index(cleanup, "DROP FUNCTION IF EXISTS public.handle_new_user CASCADE;")
	tbl := strings.Index(cleanup, "DROP TABLE IF EXISTS public.users CASCADE;")
	typ := strings.Index(cleanup, "DROP TYPE IF EXISTS public.address CASCADE;")
	require.True(t, trig >= 0 && fn >= 0 && tbl >= 0 && typ >= 0, cleanup)
	assert.Less(t, trig, fn)
	assert.Less(t, fn, tbl)
	assert.Less(t, tbl, typ)
}

func fullFake() (*schematest.Fake, Selections) {
	f := usersFake()
	f.Tables["public"] = []string{"users", "orders"}
	f.Definitions["table public.orders"] = "CREATE TABLE public.orders (id int, user_id int)"
	f.Enums = []schema.EnumType{{Schema: "public", Name: "mood", Labels: []string{"ok"}}}
	f.UserTypes["public"] = []string{"address"}
	f.Definitions["type public.address"] = "CREATE TYPE public.address AS (street text)"
	f.Definitions["function public.sync_profiles"] = "CREATE FUNCTION public.sync_profiles() RETURNS trigger AS $$ BEGIN RETURN NEW; END $$ LANGUAGE plpgsql"
	f.Definitions["trigger public.on_signup"] = "CREATE TRIGGER on_signup AFTER INSERT ON public.users FOR EACH ROW EXECUTE FUNCTION public.sync_profiles()"
	f.Definitions["policy public.users.own_rows"] = "CREATE POLICY own_rows ON public.users USING (true)"
	f.Constraints["public.users"] = []schema.Constraint{{Name: "users_pkey", Definition: "PRIMARY KEY (id)"}}
	f.Indexes["public.users"] = []string{"CREATE INDEX users_name_idx ON public.users USING btree (name)"}
	f.ForeignKeys = []schema.ForeignKey{{Schema: "public", Name: "orders_user_fk", TableSchema: "public", Table: "orders",
		Columns: []string{"user_id"}, ForeignTableSchema: "public", ForeignTable: "users", ForeignColumns: []string{"id"}}}

	sel := Selections{
		Tables:    []Selection{pick("public", "users")},
		Functions: []Selection{pick("public", "sync_profiles")},
		Triggers:  []Selection{pickOn("public", "on_signup", "users")},
		Policies:  []Selection{pickOn("public", "own_rows", "users")},
	}
	return f, sel
}

func TestGenerate_SectionOrder(t *testing.T) {
	f, sel := fullFake()
	script := generate(t, f, sel, DefaultOptions())

	titles := []string{
		"-- sqlforge migration script",
		"-- CLEANUP",
		"-- ENUM TYPES",
		"-- CUSTOM TYPES",
		"-- TABLE DEFINITIONS",
		"-- ADDITIONAL TABLES FROM RELEVANT SCHEMAS",
		"-- PLACEHOLDER AUTH TABLES",
		"-- TABLE DATA",
		"-- USER-DEFINED FUNCTIONS",
		"-- TRIGGERS",
		"-- CONSTRAINTS",
		"-- INDEXES",
		"-- FOREIGN KEY CONSTRAINTS",
		"-- ROW LEVEL SECURITY POLICIES",
	}
	last := -1
	for _, title := range titles {
		at := strings.Index(script, title)
		require.GreaterOrEqual(t, at, 0, "missing %q", title)
		assert.Greater(t, at, last, "%q out of order", title)
		last = at
	}
}

func TestGenerate_DropPrecedesCreate(t *testing.T) {
	f, sel := fullFake()
	script := generate(t, f, sel, DefaultOptions())

	pairs := [][2]string{
		{"DROP TABLE IF EXISTS public.users CASCADE;", "CREATE TABLE public.users"},
		{"DROP TABLE IF EXISTS public.orders CASCADE;", "CREATE TABLE public.orders"},
		{"DROP TYPE IF EXISTS public.mood CASCADE;", "CREATE TYPE public.mood"},
		{"DROP TYPE IF EXISTS public.address CASCADE;", "CREATE TYPE public.address"},
		{"DROP FUNCTION IF EXISTS public.sync_profiles CASCADE;", "CREATE FUNCTION public.sync_profiles"},
		{"DROP TRIGGER IF EXISTS on_signup ON public.users CASCADE;", "CREATE TRIGGER on_signup"},
		{"DROP POLICY IF EXISTS own_rows ON public.users CASCADE;", "CREATE POLICY own_rows"},
	}
	for _, p := range pairs {
		drop, create := strings.Index(script, p[0]), strings.Index(script, p[1])
		require.GreaterOrEqual(t, drop, 0, p[0])
		require.GreaterOrEqual(t, create, 0, p[1])
		assert.Less(t, drop, create, p[1])
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	f1, sel := fullFake()
	f2, _ := fullFake()

	assert.Equal(t, generate(t, f1, sel, DefaultOptions()), generate(t, f2, sel, DefaultOptions()))
	assert.NotContains(t, generate(t, f1, sel, DefaultOptions()), "generated at")
}

func TestGenerateFrom_LeavesIntrospectorOpen(t *testing.T) {
	f := usersFake()
	script, err := New(nil).GenerateFrom(context.Background(), f, Selections{Tables: []Selection{pick("public", "users")}}, Options{})
	require.NoError(t, err)
	assert.Contains(t, script, "CREATE TABLE public.users")
	assert.False(t, f.Closed())
}

// refRecorder keeps the schema and name arguments of the per-object calls
// apart, which the joined keys of the fake cannot show.
type refRecorder struct {
	*schematest.Fake
	refs []tableRef
}

func (r *refRecorder) TypeDefinition(ctx context.Context, s, typ string) (string, error) {
	r.refs = append(r.refs, tableRef{schema: s, name: typ})
	return r.Fake.TypeDefinition(ctx, s, typ)
}

func (r *refRecorder) ListIndexes(ctx context.Context, s, table string) ([]string, error) {
	r.refs = append(r.refs, tableRef{schema: s, name: table})
	return r.Fake.ListIndexes(ctx, s, table)
}

func TestGenerate_DottedSchemaNames(t *testing.T) {
	f := schematest.New()
	f.Definitions["type tenant.v2.money"] = "CREATE DOMAIN \"tenant.v2\".money AS numeric(12,2)"
	f.Indexes["tenant.v2.events"] = []string{
		"CREATE INDEX events_ts_idx ON \"tenant.v2\".events USING btree (ts)",
	}
	rec := &refRecorder{Fake: f}
	dial := func(ctx context.Context, cfg database.Config) (schema.Introspector, error) { return rec, nil }

	sel := Selections{
		Types:   []Selection{pick("tenant.v2", "money")},
		Indexes: []Selection{pickOn("tenant.v2", "events_ts_idx", "events")},
	}
	script, err := New(dial).Generate(context.Background(), newInput(sel, DefaultOptions()))
	require.NoError(t, err)

	assert.Equal(t, []tableRef{
		{schema: "tenant.v2", name: "money"},
		{schema: "tenant.v2", name: "events"},
	}, rec.refs)
	assert.Contains(t, script, "CREATE DOMAIN \"tenant.v2\".money AS numeric(12,2);")
	assert.Contains(t, script, "CREATE INDEX events_ts_idx ON \"tenant.v2\".events USING btree (ts);")
}
