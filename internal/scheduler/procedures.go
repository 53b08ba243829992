package scheduler

import (
	"github.com/lib/pq"

	"refreshd/internal/sqljob"
)

// ProcedureDefinition builds a recurring job around a stored procedure
// named in configuration (retention pruning, partition rollover). The
// identifier is quoted, the procedure body is opaque.
func ProcedureDefinition(name string, kind sqljob.Kind, procedure string) sqljob.Definition {
	return sqljob.Definition{
		Name:       name,
		Kind:       kind,
		ObjectName: procedure,
		RefreshSQL: "CALL " + pq.QuoteIdentifier(procedure) + "()",
		SourceFile: "config",
	}
}
