package generator

import "strings"

// Result is the outcome of emitting one object. Exactly one of three shapes
// applies: a statement block, a missing definition, or a failed retrieval.
// Results are turned into text only by the assembler.
type Result struct {
	// Object names the object in sentinel comments, e.g. "function public.f".
	Object string
	// Comment is an optional leading comment line (without "-- ").
	Comment string
	// Drop precedes the warnings and the body.
	Drop string
	// Warnings are advisory comment lines rendered directly above Body.
	Warnings []string
	Body     string

	Missing bool
	Err     error
}

// Degraded reports whether the object ended up as a sentinel comment.
func (r Result) Degraded() bool { return r.Missing || r.Err != nil }

// section is one titled block of results.
type section struct {
	title   string
	results []Result
}

// statement trims trailing terminators from def and appends exactly one.
func statement(def string) string {
	def = strings.TrimRightFunc(def, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	return strings.TrimLeft(def, " \n\t\r") + ";"
}
