package expr

import "github.com/roach88/arel/internal/arel"

// Ordering sorts by an expression in one direction.
type Ordering struct {
	Expression arel.Expression
	Direction  string
}

// Ascending sorts by e, smallest first.
func Ascending(e arel.Expression) *Ordering {
	return &Ordering{Expression: e, Direction: "ASC"}
}

// Descending sorts by e, largest first.
func Descending(e arel.Expression) *Ordering {
	return &Ordering{Expression: e, Direction: "DESC"}
}

func (o *Ordering) Blank() bool { return o == nil || arel.IsBlank(o.Expression) }

func (o *Ordering) ToSQL(c *arel.Context) string {
	return o.Expression.ToSQL(c.In(arel.ClauseOrder)) + " " + o.Direction
}
