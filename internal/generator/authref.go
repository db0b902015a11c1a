package generator

import "strings"

// authMarkers are hosted-auth references that rarely exist on a plain
// Postgres destination.
var authMarkers = []string{
	"auth.uid()",
	"auth.jwt()",
	"auth.role()",
	"auth.users",
	"public.users",
}

// authReferences returns the markers found in body by plain substring match.
func authReferences(body string) []string {
	var found []string
	for _, m := range authMarkers {
		if strings.Contains(body, m) {
			found = append(found, m)
		}
	}
	return found
}

// authWarning builds the advisory comment lines for kind/object, or nil when
// body references nothing.
func authWarning(kind, object, body string) []string {
	refs := authReferences(body)
	if len(refs) == 0 {
		return nil
	}
	return []string{
		"WARNING: " + kind + " " + object + " references auth objects: " + strings.Join(refs, ", "),
		"You may need to modify this " + strings.ToLower(kind) + " for your target database",
	}
}

// policyPredicates returns the USING and WITH CHECK text of a policy
// definition, leaving out the ON target.
func policyPredicates(def string) string {
	start := -1
	for _, kw := range []string{" USING (", " WITH CHECK ("} {
		if i := strings.Index(def, kw); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return ""
	}
	return def[start:]
}
