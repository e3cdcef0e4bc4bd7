package expr

import (
	"strings"

	"github.com/roach88/arel/internal/arel"
)

// Literal is a Go value rendered as a quoted SQL literal.
type Literal struct {
	Value any
}

// Value returns v as a Literal.
func Value(v any) Literal {
	return Literal{Value: v}
}

func (l Literal) ToSQL(*arel.Context) string {
	return arel.Quote(l.Value)
}

// operand returns v as an expression: expressions are kept, anything else
// becomes a literal.
func operand(v any) arel.Expression {
	if e, ok := v.(arel.Expression); ok {
		return e
	}
	return Literal{Value: v}
}

// isNull reports whether v renders as NULL.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	if l, ok := v.(Literal); ok {
		return l.Value == nil
	}
	return false
}

// Raw is a SQL fragment used verbatim. An empty fragment is blank.
type Raw string

// SQL returns s as a raw fragment.
func SQL(s string) Raw {
	return Raw(s)
}

func (r Raw) ToSQL(*arel.Context) string { return string(r) }

func (r Raw) Blank() bool { return strings.TrimSpace(string(r)) == "" }
