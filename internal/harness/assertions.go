package harness

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/arel/internal/session"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []session.Entry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", entry.Seq, entry.Kind, oneLine(entry.SQL))
		}
	}

	return buf.String()
}

// oneLine collapses multi-line SQL for trace listings.
func oneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// matches reports whether entry has the assertion's kind and contains its
// SQL fragment. Whitespace is normalized on both sides.
func matches(entry session.Entry, a Assertion) bool {
	if a.Kind != "" && string(entry.Kind) != a.Kind {
		return false
	}
	return strings.Contains(oneLine(entry.SQL), oneLine(a.SQL))
}

// assertTraceContains checks if the trace contains a statement matching
// the assertion's kind and SQL fragment.
func assertTraceContains(trace []session.Entry, assertion Assertion) error {
	for _, entry := range trace {
		if entry.Error == "" && matches(entry, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s statement containing %q", kindOrAny(assertion.Kind), assertion.SQL),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func kindOrAny(kind string) string {
	if kind == "" {
		return "any"
	}
	return kind
}

// assertTraceOrder checks that statements of the listed kinds appear in
// the listed order. Intervening statements are allowed.
func assertTraceOrder(trace []session.Entry, assertion Assertion) error {
	next := 0
	for _, entry := range trace {
		if next < len(assertion.Kinds) && string(entry.Kind) == assertion.Kinds[next] {
			next++
		}
	}

	if next < len(assertion.Kinds) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("statements in order: %v", assertion.Kinds),
			Actual:   fmt.Sprintf("no %s statement after position %d", assertion.Kinds[next], next),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceCount checks if the kind appears exactly the specified number of times.
func assertTraceCount(trace []session.Entry, assertion Assertion) error {
	count := 0
	for _, entry := range trace {
		if string(entry.Kind) == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s statements", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d %s statements", count, assertion.Kind),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState reads the table through the algebra and checks that
// exactly one row matches Where and that it carries the expected values.
// Only fields in Expect are validated.
func assertFinalState(ctx context.Context, eng *session.Engine, assertion Assertion) error {
	t, err := eng.Table(ctx, assertion.Table)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("table %s", assertion.Table),
			Actual:   err.Error(),
		}
	}

	r, err := restrict(t, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   err.Error(),
		}
	}

	rows, err := r.Take(2).Call(ctx, nil)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actual := rows[0].Named()
	for _, key := range slices.Sorted(maps.Keys(assertion.Expect)) {
		want := assertion.Expect[key]
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in columns: %v", key, slices.Sorted(maps.Keys(actual))),
			}
		}

		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}

	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := slices.Sorted(maps.Keys(where))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected scenario value with a value read
// from the database. YAML decodes integers as int while SQLite returns
// int64, and SQLite stores booleans as integers.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		return stateValuesEqual(int64(exp), actual)
	case int64:
		switch act := actual.(type) {
		case int64:
			return exp == act
		case int:
			return exp == int64(act)
		case float64:
			return float64(exp) == act
		}
		return false
	case float64:
		switch act := actual.(type) {
		case float64:
			return exp == act
		case int64:
			return exp == float64(act)
		}
		return false
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Engine *session.Engine
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Engine, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
