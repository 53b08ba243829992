package sqljob

import "fmt"

// Kind tags a definition with its maintenance class. The set is open:
// unknown values parse fine and schedule at the refresh tier.
type Kind string

const (
	KindMaterializedView  Kind = "materialized_view"
	KindIncrementalInsert Kind = "incremental_insert"
	KindSchema            Kind = "schema"
	KindAggregation       Kind = "aggregation"
	KindRetention         Kind = "retention"
	KindPartition         Kind = "partition"
	KindCustom            Kind = "custom"
)

// Definition is one parsed metadata block from a SQL job file.
type Definition struct {
	Name        string
	Kind        Kind
	ObjectName  string
	RefreshSQL  string
	Description string
	IndexSQL    []string
	SourceFile  string
}

// Recurring reports whether the definition carries a statement the
// scheduler can run periodically. Schema-only blocks (no refresh
// statement) are applied once by the migration applier and never
// scheduled.
func (d Definition) Recurring() bool {
	return d.RefreshSQL != ""
}

// File is one SQL source file: the ledger key, the raw text the
// applier executes, and the definitions found in its headers.
type File struct {
	Name        string
	Raw         string
	Definitions []Definition
}

// ParseError reports a malformed definition header. It is fatal for
// the file it names; the rest of the corpus keeps loading.
type ParseError struct {
	File    string
	Line    int
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sqljob: %s:%d: header block missing @%s", e.File, e.Line, e.Missing)
}
