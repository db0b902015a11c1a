package schema

import (
	_ "embed"
	"strings"

	"github.com/koustreak/sqlforge/internal/database"
)

//go:embed procedures.sql
var proceduresSQL string

// ProcedureSQL returns the script that installs every introspection
// procedure into schema ("public" when empty).
func ProcedureSQL(schema string) string {
	if schema == "" {
		schema = "public"
	}
	return strings.ReplaceAll(proceduresSQL, "__SCHEMA__", database.QuoteIdent(schema))
}
