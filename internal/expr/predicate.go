package expr

import (
	"strings"

	"github.com/roach88/arel/internal/arel"
)

// Binary is a comparison of two operands.
type Binary struct {
	Operator string
	Left     arel.Expression
	Right    arel.Expression
}

func binary(op string, left, right any) *Binary {
	return &Binary{Operator: op, Left: operand(left), Right: operand(right)}
}

func (b *Binary) ToSQL(c *arel.Context) string {
	c = c.In(arel.ClauseWhere)
	return b.Left.ToSQL(c) + " " + b.Operator + " " + b.Right.ToSQL(c)
}

// Blank reports whether either operand is missing.
func (b *Binary) Blank() bool {
	return b == nil || b.Left == nil || b.Right == nil
}

// Equal compares left = right. Comparing with nil renders IS NULL.
func Equal(left, right any) *Binary {
	if isNull(right) {
		return binary("IS", left, nil)
	}
	return binary("=", left, right)
}

// NotEqual compares left != right. Comparing with nil renders IS NOT NULL.
func NotEqual(left, right any) *Binary {
	if isNull(right) {
		return binary("IS NOT", left, nil)
	}
	return binary("!=", left, right)
}

func GreaterThan(left, right any) *Binary        { return binary(">", left, right) }
func GreaterThanOrEqual(left, right any) *Binary { return binary(">=", left, right) }
func LessThan(left, right any) *Binary           { return binary("<", left, right) }
func LessThanOrEqual(left, right any) *Binary    { return binary("<=", left, right) }

// Like matches left against a LIKE pattern.
func Like(left, pattern any) *Binary { return binary("LIKE", left, pattern) }

// Membership tests an operand against a list of values.
type Membership struct {
	Operand arel.Expression
	Values  []arel.Expression
}

// In tests whether left is one of values.
func In(left any, values ...any) *Membership {
	m := &Membership{Operand: operand(left), Values: make([]arel.Expression, len(values))}
	for i, v := range values {
		m.Values[i] = operand(v)
	}
	return m
}

// ToSQL renders "x IN (a, b)". An empty list matches nothing.
func (m *Membership) ToSQL(c *arel.Context) string {
	c = c.In(arel.ClauseWhere)
	if len(m.Values) == 0 {
		return "1 = 0"
	}
	vals := make([]string, len(m.Values))
	for i, v := range m.Values {
		vals[i] = v.ToSQL(c)
	}
	return m.Operand.ToSQL(c) + " IN (" + strings.Join(vals, ", ") + ")"
}

// Junction joins predicates with AND or OR.
type Junction struct {
	Operator   string
	Predicates []arel.Expression
}

// And is true when every non-blank predicate is.
func And(predicates ...arel.Expression) *Junction {
	return &Junction{Operator: "AND", Predicates: predicates}
}

// Or is true when any non-blank predicate is.
func Or(predicates ...arel.Expression) *Junction {
	return &Junction{Operator: "OR", Predicates: predicates}
}

// Blank reports whether the junction has no non-blank predicate.
func (j *Junction) Blank() bool {
	if j == nil {
		return true
	}
	for _, p := range j.Predicates {
		if !arel.IsBlank(p) {
			return false
		}
	}
	return true
}

func (j *Junction) ToSQL(c *arel.Context) string {
	var parts []string
	for _, p := range j.Predicates {
		if !arel.IsBlank(p) {
			parts = append(parts, p.ToSQL(c))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+j.Operator+" ") + ")"
}

// Negation negates a predicate.
type Negation struct {
	Predicate arel.Expression
}

// Not negates p.
func Not(p arel.Expression) *Negation {
	return &Negation{Predicate: p}
}

func (n *Negation) Blank() bool { return n == nil || arel.IsBlank(n.Predicate) }

func (n *Negation) ToSQL(c *arel.Context) string {
	return "NOT (" + n.Predicate.ToSQL(c) + ")"
}
