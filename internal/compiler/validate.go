package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation error codes (E100-E199)
const (
	// Catalog errors (E100-E109)
	ErrNoQueries       = "E100" // catalog has no queries
	ErrDuplicateName   = "E101" // duplicate table, query or column name
	ErrEmptySource     = "E102" // from or join source is empty
	ErrCyclicReference = "E103" // queries select from each other

	// Step errors (E110-E119)
	ErrInvalidOperator  = "E110" // unknown comparison operator
	ErrNegativeBound    = "E111" // take or skip below zero
	ErrEmptyColumns     = "E112" // project, order or group without columns
	ErrInvalidColumnRef = "E113" // malformed column reference
	ErrInvalidValues    = "E114" // in without values, or values on another operator
	ErrJoinLabelTaken   = "E115" // join label already names a relation in scope
	ErrEmptyConditions  = "E116" // where without conditions
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// columnRefPattern matches "name", "label.name" and the "-" prefix of a
// descending order column.
var columnRefPattern = regexp.MustCompile(`^-?[\p{L}_][\p{L}\p{N}_]*(\.[\p{L}_][\p{L}\p{N}_]*)?$`)

// Validate checks a catalog against the definition rules.
// Returns all errors found (does not fail-fast).
//
// Sources that name neither a declared table nor a query are not errors:
// their columns are read from the database when the catalog is bound.
func Validate(cat *Catalog) []ValidationError {
	var errs []ValidationError

	// E100: at least one query required
	if len(cat.Queries) == 0 {
		errs = append(errs, ValidationError{
			Field:   "queries",
			Message: "at least one query is required",
			Code:    ErrNoQueries,
		})
	}

	tableNames := make(map[string]bool)
	for _, t := range cat.Tables {
		field := "tables." + t.Name

		// E101: duplicate table name
		if tableNames[t.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate table name: %q", t.Name),
				Code:    ErrDuplicateName,
				Line:    t.Pos.Line(),
			})
		}
		tableNames[t.Name] = true

		// E101: duplicate column name
		columns := make(map[string]bool)
		for i, c := range t.Columns {
			if columns[c] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.columns[%d]", field, i),
					Message: fmt.Sprintf("duplicate column name: %q", c),
					Code:    ErrDuplicateName,
					Line:    t.Pos.Line(),
				})
			}
			columns[c] = true
		}
	}

	queryNames := make(map[string]bool)
	for _, q := range cat.Queries {
		// E101: duplicate query name
		if queryNames[q.Name] {
			errs = append(errs, ValidationError{
				Field:   "queries." + q.Name,
				Message: fmt.Sprintf("duplicate query name: %q", q.Name),
				Code:    ErrDuplicateName,
				Line:    q.Pos.Line(),
			})
		}
		queryNames[q.Name] = true

		errs = append(errs, validateQuery(q)...)
	}

	// E103: cyclic query references
	for _, c := range AnalyzeCycles(cat) {
		errs = append(errs, ValidationError{
			Field:   "queries." + c.Path[0],
			Message: c.Message,
			Code:    ErrCyclicReference,
		})
	}

	return errs
}

// validateQuery validates a single query definition.
func validateQuery(q QueryDef) []ValidationError {
	var errs []ValidationError
	field := "queries." + q.Name

	// E102: from is required
	if strings.TrimSpace(q.From) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".from",
			Message: "from must name a table or query",
			Code:    ErrEmptySource,
			Line:    q.Pos.Line(),
		})
	}

	labels := map[string]bool{q.From: true, q.Name: true}
	for i, step := range q.Steps {
		errs = append(errs, validateStep(step, fmt.Sprintf("%s.steps[%d]", field, i), labels)...)
	}
	return errs
}

// validateStep validates a step. labels holds the relation names in scope
// and is extended by join steps.
func validateStep(step Step, field string, labels map[string]bool) []ValidationError {
	var errs []ValidationError
	line := step.Pos.Line()
	field = field + "." + string(step.Kind)

	switch step.Kind {
	case StepWhere:
		// E116: where needs a condition
		if len(step.Conditions) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "where requires at least one condition",
				Code:    ErrEmptyConditions,
				Line:    line,
			})
		}
		for i, c := range step.Conditions {
			errs = append(errs, validateCondition(c, fmt.Sprintf("%s[%d]", field, i))...)
		}

	case StepProject, StepOrder, StepGroup:
		// E112: columns required
		if len(step.Columns) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s requires at least one column", step.Kind),
				Code:    ErrEmptyColumns,
				Line:    line,
			})
		}
		for i, c := range step.Columns {
			ok := isValidColumnRef(c)
			if step.Kind == StepProject {
				ok = isValidProjection(c)
			}
			if step.Kind == StepGroup {
				ok = ok && !strings.HasPrefix(c, "-")
			}
			// E113: malformed column reference
			if !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: fmt.Sprintf("invalid column reference %q", c),
					Code:    ErrInvalidColumnRef,
					Line:    line,
				})
			}
		}

	case StepTake, StepSkip:
		// E111: bounds are non-negative
		if step.N < 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s must be zero or more, got %d", step.Kind, step.N),
				Code:    ErrNegativeBound,
				Line:    line,
			})
		}

	case StepJoin:
		errs = append(errs, validateJoin(step.Join, field, line, labels)...)
	}

	return errs
}

func validateCondition(c Condition, field string) []ValidationError {
	var errs []ValidationError
	line := c.Pos.Line()

	// E113: column references
	for _, ref := range []string{c.Column, c.Ref} {
		if ref != "" && (strings.HasPrefix(ref, "-") || !isValidColumnRef(ref)) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid column reference %q", ref),
				Code:    ErrInvalidColumnRef,
				Line:    line,
			})
		}
	}

	// E110: operator
	if !validOps[c.Op] {
		errs = append(errs, ValidationError{
			Field:   field + ".op",
			Message: fmt.Sprintf("invalid operator %q", c.Op),
			Code:    ErrInvalidOperator,
			Line:    line,
		})
		return errs
	}

	// E114: values belong to in, and in needs them
	switch {
	case c.Op == "in" && len(c.Values) == 0:
		errs = append(errs, ValidationError{
			Field:   field + ".values",
			Message: "in requires a non-empty values list",
			Code:    ErrInvalidValues,
			Line:    line,
		})
	case c.Op != "in" && c.Values != nil:
		errs = append(errs, ValidationError{
			Field:   field + ".values",
			Message: fmt.Sprintf("values is only valid with in, not %q", c.Op),
			Code:    ErrInvalidValues,
			Line:    line,
		})
	}

	return errs
}

func validateJoin(j *JoinDef, field string, line int, labels map[string]bool) []ValidationError {
	// E102: source required
	if j == nil || strings.TrimSpace(j.Source) == "" {
		return []ValidationError{{
			Field:   field + ".source",
			Message: "join must name a table or query",
			Code:    ErrEmptySource,
			Line:    line,
		}}
	}

	var errs []ValidationError
	label := j.Source
	if j.As != "" {
		label = j.As
	}

	// E115: label collision
	if labels[label] {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q already names a relation in this query, join it with as", label),
			Code:    ErrJoinLabelTaken,
			Line:    line,
		})
	}
	labels[label] = true

	for i, on := range j.On {
		for _, ref := range []string{on.Left, on.Right} {
			if strings.HasPrefix(ref, "-") || !isValidColumnRef(ref) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.on[%d]", field, i),
					Message: fmt.Sprintf("invalid column reference %q", ref),
					Code:    ErrInvalidColumnRef,
					Line:    line,
				})
			}
		}
	}

	return errs
}

// isValidColumnRef checks a column reference, optionally qualified and
// optionally prefixed with "-".
func isValidColumnRef(ref string) bool {
	return columnRefPattern.MatchString(ref)
}

// isValidProjection checks a project entry: a column, "column as alias" or
// an aggregate.
func isValidProjection(entry string) bool {
	if m := aggregatePattern.FindStringSubmatch(entry); m != nil {
		return m[2] == "*" || isPlainRef(m[2])
	}
	if m := aliasPattern.FindStringSubmatch(entry); m != nil {
		return isPlainRef(m[1]) && isPlainRef(m[2])
	}
	return isPlainRef(entry)
}

func isPlainRef(ref string) bool {
	return !strings.HasPrefix(ref, "-") && isValidColumnRef(ref)
}
