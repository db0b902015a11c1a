package generator

// orderedSet is an insertion-ordered set of strings.
type orderedSet struct {
	items []string
	index map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]bool)}
}

// add appends s unless present and reports whether it was added.
func (o *orderedSet) add(s string) bool {
	if o.index[s] {
		return false
	}
	o.index[s] = true
	o.items = append(o.items, s)
	return true
}

func (o *orderedSet) has(s string) bool { return o.index[s] }
func (o *orderedSet) len() int          { return len(o.items) }

// plan is the resolved, read-only view of one run's selections.
type plan struct {
	tables      []Selection
	enums       []Selection
	types       []Selection
	functions   []Selection
	triggers    []Selection
	indexes     []Selection
	foreignKeys []Selection
	policies    []Selection

	// tableSet holds schema.table keys of picked tables.
	tableSet *orderedSet
	// schemaSet holds schemas of picked tables.
	schemaSet *orderedSet
	// relevantSchemas holds schemas of picked tables, functions, types,
	// triggers and policies.
	relevantSchemas *orderedSet
}

func (p *plan) empty() bool {
	return len(p.tables)+len(p.enums)+len(p.types)+len(p.functions)+
		len(p.triggers)+len(p.indexes)+len(p.foreignKeys)+len(p.policies) == 0
}

// resolve filters every category down to its picked entries and derives the
// lookup sets. Duplicate picks collapse to their first occurrence.
func resolve(sel Selections) (*plan, error) {
	p := &plan{
		tableSet:        newOrderedSet(),
		schemaSet:       newOrderedSet(),
		relevantSchemas: newOrderedSet(),
	}

	var err error
	if p.tables, err = picked(CategoryTable, sel.Tables, false); err != nil {
		return nil, err
	}
	if p.enums, err = picked(CategoryEnum, sel.Enums, false); err != nil {
		return nil, err
	}
	if p.types, err = picked(CategoryType, sel.Types, false); err != nil {
		return nil, err
	}
	if p.functions, err = picked(CategoryFunction, sel.Functions, false); err != nil {
		return nil, err
	}
	if p.triggers, err = picked(CategoryTrigger, sel.Triggers, true); err != nil {
		return nil, err
	}
	if p.indexes, err = picked(CategoryIndex, sel.Indexes, true); err != nil {
		return nil, err
	}
	if p.foreignKeys, err = picked(CategoryForeignKey, sel.ForeignKeys, false); err != nil {
		return nil, err
	}
	if p.policies, err = picked(CategoryPolicy, sel.Policies, true); err != nil {
		return nil, err
	}

	if p.empty() {
		return nil, errInput("no objects selected: pick at least one table, enum, type, function, trigger, index, foreign key or policy")
	}

	for _, t := range p.tables {
		p.tableSet.add(t.Key())
		p.schemaSet.add(t.Schema)
	}
	for _, group := range [][]Selection{p.tables, p.functions, p.types, p.triggers, p.policies} {
		for _, s := range group {
			p.relevantSchemas.add(s.Schema)
		}
	}
	return p, nil
}

func picked(cat Category, in []Selection, needsTable bool) ([]Selection, error) {
	out := make([]Selection, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !s.Selected {
			continue
		}
		if s.Schema == "" || s.Name == "" {
			return nil, errInput("%s selection needs both schema and name (got %q.%q)", cat, s.Schema, s.Name)
		}
		if needsTable && s.Table == "" {
			return nil, errInput("%s selection %s needs its table", cat, s.Key())
		}
		key := s.Key() + "@" + s.Table
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out, nil
}
