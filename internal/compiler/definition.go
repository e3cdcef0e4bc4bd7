package compiler

import "cuelang.org/go/cue/token"

// Catalog is a set of table and query definitions loaded from CUE or YAML.
//
// Tables and queries keep their declaration order, so compiling a catalog
// twice yields the queries in the same order.
type Catalog struct {
	Tables  []TableDef
	Queries []QueryDef
}

// TableDef declares a base table. Columns may be empty, in which case they
// are read from the database when the catalog is bound to one.
type TableDef struct {
	Name    string
	Columns []string
	Pos     token.Pos
}

// QueryDef is a named query: a source and a chain of steps applied to it
// in order.
type QueryDef struct {
	Name string

	// From names a table or another query.
	From string

	Steps []Step
	Pos   token.Pos
}

// StepKind identifies the operation a step applies.
type StepKind string

const (
	StepWhere   StepKind = "where"
	StepProject StepKind = "project"
	StepOrder   StepKind = "order"
	StepGroup   StepKind = "group"
	StepTake    StepKind = "take"
	StepSkip    StepKind = "skip"
	StepJoin    StepKind = "join"
	StepAlias   StepKind = "alias"
)

// stepKinds lists the step kinds in the order they are looked up.
var stepKinds = []StepKind{
	StepWhere, StepProject, StepOrder, StepGroup,
	StepTake, StepSkip, StepJoin, StepAlias,
}

// Step is one operation of a query. Only the fields of its Kind are set.
type Step struct {
	Kind StepKind

	// Conditions of a where step, combined with AND.
	Conditions []Condition

	// Columns of a project, order or group step. Order columns prefixed
	// with "-" sort descending; project columns may be aggregates such as
	// "count(*)" or "sum(age) as total".
	Columns []string

	// N is the bound of a take or skip step.
	N int

	// Join is the target of a join step.
	Join *JoinDef

	Pos token.Pos
}

// Condition compares a column with a value, a list of values or another
// column.
type Condition struct {
	Column string
	Op     string

	// Value is the right operand. A nil Value compares with NULL.
	Value any

	// Values is the list for the "in" operator.
	Values []any

	// Ref names a column used as the right operand instead of Value.
	Ref string

	Pos token.Pos
}

// JoinDef joins a table or query.
type JoinDef struct {
	// Source names the joined table or query.
	Source string

	// As labels the joined relation for column references in On and in
	// later steps. Joining a source under a label always aliases it, so a
	// table can be joined with itself.
	As string

	On    []JoinOn
	Outer bool
}

// JoinOn equates a column of the left side with one of the right side.
type JoinOn struct {
	Left  string
	Right string
}

// validOps lists the comparison operators a condition may use.
var validOps = map[string]bool{
	"=": true, "!=": true, ">": true, ">=": true,
	"<": true, "<=": true, "like": true, "in": true,
}
