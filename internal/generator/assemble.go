package generator

import (
	"fmt"
	"strings"
)

// header opens every script. It carries no timestamp so unchanged input
// renders byte-identical output.
func header(p *plan, opts Options) string {
	var b strings.Builder
	b.WriteString("-- sqlforge migration script\n")
	fmt.Fprintf(&b, "-- Selected: %d tables, %d enums, %d types, %d functions, %d triggers, %d indexes, %d foreign keys, %d policies\n",
		len(p.tables), len(p.enums), len(p.types), len(p.functions),
		len(p.triggers), len(p.indexes), len(p.foreignKeys), len(p.policies))
	fmt.Fprintf(&b, "-- Options: include_data=%t drop_and_recreate=%t\n", opts.IncludeData, opts.DropAndRecreate)
	b.WriteString("-- Review sentinel comments (\"-- Error retrieving\", \"-- Could not retrieve\") before applying.\n\n")
	return b.String()
}

// assemble renders sections in the given order, skipping empty ones.
func assemble(head string, sections []section) string {
	var b strings.Builder
	b.WriteString(head)
	for _, sec := range sections {
		if len(sec.results) == 0 {
			continue
		}
		b.WriteString("-- " + sec.title + "\n")
		for _, r := range sec.results {
			renderResult(&b, r)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderResult(b *strings.Builder, r Result) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(b, "-- Error retrieving definition for %s: %v\n", r.Object, r.Err)
		return
	case r.Missing:
		fmt.Fprintf(b, "-- Could not retrieve definition for %s\n", r.Object)
		return
	}

	if r.Comment != "" {
		b.WriteString("-- " + r.Comment + "\n")
	}
	if r.Drop != "" {
		b.WriteString(r.Drop + "\n")
	}
	for _, w := range r.Warnings {
		b.WriteString("-- " + w + "\n")
	}
	if r.Body != "" {
		b.WriteString(r.Body + "\n")
	}
	b.WriteString("\n")
}

// Sentinels returns the sentinel comment lines in script, i.e. the objects
// that degraded during generation.
func Sentinels(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "-- Error retrieving definition for ") ||
			strings.HasPrefix(line, "-- Could not retrieve definition for ") {
			out = append(out, line)
		}
	}
	return out
}
