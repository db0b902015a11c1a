package generator

import (
	"context"
	"fmt"

	"github.com/koustreak/sqlforge/internal/schema"
)

// closure is the table set a run must emit to be structurally complete.
type closure struct {
	// tables holds every schema.table key: picked tables first, then the
	// tables of each relevant schema in listing order.
	tables *orderedSet
	// additional holds the closure tables that were not picked, in order.
	additional []tableRef
}

type tableRef struct {
	schema string
	name   string
}

func (t tableRef) key() string { return t.schema + "." + t.name }

// expand lists every table of every relevant schema. A listing failure is
// fatal.
func expand(ctx context.Context, in schema.Introspector, p *plan) (*closure, error) {
	c := &closure{tables: newOrderedSet()}
	for _, key := range p.tableSet.items {
		c.tables.add(key)
	}

	for _, s := range p.relevantSchemas.items {
		tables, err := in.ListTables(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("dependency closure: %w", err)
		}
		for _, t := range tables {
			ref := tableRef{schema: s, name: t}
			if c.tables.add(ref.key()) {
				c.additional = append(c.additional, ref)
			}
		}
	}
	return c, nil
}
