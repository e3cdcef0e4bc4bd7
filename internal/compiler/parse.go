package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"
)

// ParseCatalog parses a CUE value holding table and query definitions.
// Uses CUE SDK's Go API directly (not CLI subprocess). YAML sources are
// extracted to CUE first, so both formats share this parser.
//
// The expected shape is:
//
//	tables: users: columns: ["id", "name", "age"]
//	queries: adults: {
//		from: "users"
//		steps: [
//			{where: [{column: "age", op: ">=", value: 18}]},
//			{order: ["name"]},
//			{take: 10},
//		]
//	}
//
// Identifiers are normalized to Unicode NFC.
func ParseCatalog(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if tablesVal.Exists() {
		iter, err := tablesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			table, err := ParseTable(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			cat.Tables = append(cat.Tables, table)
		}
	}

	queriesVal := v.LookupPath(cue.ParsePath("queries"))
	if queriesVal.Exists() {
		iter, err := queriesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			query, err := ParseQuery(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			cat.Queries = append(cat.Queries, *query)
		}
	}

	if len(cat.Queries) == 0 {
		return nil, &CompileError{
			Field:   "queries",
			Message: "at least one query is required",
			Pos:     v.Pos(),
		}
	}

	return cat, nil
}

// ParseTable parses a table declaration. The value is either a struct with
// an optional columns list or a bare list of columns.
func ParseTable(name string, v cue.Value) (TableDef, error) {
	table := TableDef{Name: ident(name), Pos: v.Pos()}

	columnsVal := v
	if v.IncompleteKind() == cue.StructKind {
		columnsVal = v.LookupPath(cue.ParsePath("columns"))
		if !columnsVal.Exists() {
			return table, nil // columns are read from the database
		}
	}

	columns, err := parseStrings(columnsVal, fmt.Sprintf("tables.%s.columns", name))
	if err != nil {
		return TableDef{}, err
	}
	table.Columns = columns
	return table, nil
}

// ParseQuery parses a single query definition.
func ParseQuery(name string, v cue.Value) (*QueryDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	query := &QueryDef{Name: ident(name), Pos: v.Pos()}

	fromVal := v.LookupPath(cue.ParsePath("from"))
	if !fromVal.Exists() {
		return nil, &CompileError{
			Field:   "from",
			Message: fmt.Sprintf("query %q: from is required", name),
			Pos:     v.Pos(),
		}
	}
	from, err := fromVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	query.From = ident(from)

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return query, nil // a bare query selects its source
	}

	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		step, err := parseStep(iter.Value(), fmt.Sprintf("queries.%s.steps[%d]", name, i))
		if err != nil {
			return nil, err
		}
		query.Steps = append(query.Steps, step)
	}

	return query, nil
}

// parseStep parses a step: a struct with exactly one operation field.
func parseStep(v cue.Value, field string) (Step, error) {
	var found []StepKind
	for _, kind := range stepKinds {
		if v.LookupPath(cue.ParsePath(string(kind))).Exists() {
			found = append(found, kind)
		}
	}
	if len(found) != 1 {
		return Step{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("step must have exactly one of %v, found %d", stepKinds, len(found)),
			Pos:     v.Pos(),
		}
	}

	kind := found[0]
	val := v.LookupPath(cue.ParsePath(string(kind)))
	field = field + "." + string(kind)
	step := Step{Kind: kind, Pos: val.Pos()}

	var err error
	switch kind {
	case StepWhere:
		step.Conditions, err = parseConditions(val, field)
	case StepProject, StepOrder, StepGroup:
		step.Columns, err = parseStrings(val, field)
	case StepTake, StepSkip:
		var n int64
		n, err = val.Int64()
		if err != nil {
			return Step{}, formatCUEError(err)
		}
		step.N = int(n)
	case StepJoin:
		step.Join, err = parseJoin(val, field)
	case StepAlias:
		var alias bool
		alias, err = val.Bool()
		if err != nil {
			return Step{}, formatCUEError(err)
		}
		if !alias {
			return Step{}, &CompileError{Field: field, Message: "alias must be true", Pos: val.Pos()}
		}
	}
	if err != nil {
		return Step{}, err
	}

	return step, nil
}

// parseConditions parses a where step: a single condition or a list.
func parseConditions(v cue.Value, field string) ([]Condition, error) {
	if v.IncompleteKind() == cue.StructKind {
		cond, err := parseCondition(v, field)
		if err != nil {
			return nil, err
		}
		return []Condition{cond}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var conds []Condition
	for i := 0; iter.Next(); i++ {
		cond, err := parseCondition(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func parseCondition(v cue.Value, field string) (Condition, error) {
	cond := Condition{Op: "=", Pos: v.Pos()}

	column, err := v.LookupPath(cue.ParsePath("column")).String()
	if err != nil {
		return Condition{}, &CompileError{
			Field:   field + ".column",
			Message: "condition column is required",
			Pos:     v.Pos(),
		}
	}
	cond.Column = ident(column)

	if opVal := v.LookupPath(cue.ParsePath("op")); opVal.Exists() {
		op, err := opVal.String()
		if err != nil {
			return Condition{}, formatCUEError(err)
		}
		cond.Op = strings.ToLower(strings.TrimSpace(op))
	}

	if refVal := v.LookupPath(cue.ParsePath("ref")); refVal.Exists() {
		ref, err := refVal.String()
		if err != nil {
			return Condition{}, formatCUEError(err)
		}
		cond.Ref = ident(ref)
	}

	if valuesVal := v.LookupPath(cue.ParsePath("values")); valuesVal.Exists() {
		iter, err := valuesVal.List()
		if err != nil {
			return Condition{}, formatCUEError(err)
		}
		cond.Values = []any{}
		for iter.Next() {
			lit, err := literal(iter.Value(), field+".values")
			if err != nil {
				return Condition{}, err
			}
			cond.Values = append(cond.Values, lit)
		}
	}

	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		cond.Value, err = literal(valueVal, field+".value")
		if err != nil {
			return Condition{}, err
		}
	}

	return cond, nil
}

func parseJoin(v cue.Value, field string) (*JoinDef, error) {
	join := &JoinDef{}

	// Shorthand: join: "photos"
	if source, err := v.String(); err == nil {
		join.Source = ident(source)
		return join, nil
	}

	source, err := v.LookupPath(cue.ParsePath("source")).String()
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".source",
			Message: "join source is required",
			Pos:     v.Pos(),
		}
	}
	join.Source = ident(source)

	if asVal := v.LookupPath(cue.ParsePath("as")); asVal.Exists() {
		as, err := asVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		join.As = ident(as)
	}

	if outerVal := v.LookupPath(cue.ParsePath("outer")); outerVal.Exists() {
		join.Outer, err = outerVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}

	if onVal := v.LookupPath(cue.ParsePath("on")); onVal.Exists() {
		iter, err := onVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			on := iter.Value()
			left, lerr := on.LookupPath(cue.ParsePath("left")).String()
			right, rerr := on.LookupPath(cue.ParsePath("right")).String()
			if lerr != nil || rerr != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.on[%d]", field, i),
					Message: "join condition needs left and right columns",
					Pos:     on.Pos(),
				}
			}
			join.On = append(join.On, JoinOn{Left: ident(left), Right: ident(right)})
		}
	}

	return join, nil
}

// parseStrings parses a list of strings, or a single string as a list of
// one.
func parseStrings(v cue.Value, field string) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{ident(s)}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a string or a list of strings",
			Pos:     v.Pos(),
		}
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, ident(s))
	}
	return out, nil
}

// literal converts a concrete CUE scalar to a Go value.
func literal(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// ident normalizes an identifier to NFC, so visually identical names
// compare equal.
func ident(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
