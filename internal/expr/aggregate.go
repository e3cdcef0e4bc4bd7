package expr

import (
	"strings"

	"github.com/roach88/arel/internal/arel"
)

// Aggregate is an aggregate function over an attribute. Projecting an
// aggregate makes the relation an aggregation.
type Aggregate struct {
	Function  string
	Attribute arel.Attribute
	Distinct  bool
	alias     string
}

func aggregate(fn string, a arel.Attribute) *Aggregate {
	return &Aggregate{Function: fn, Attribute: a}
}

// Count counts rows; a nil attribute counts every row.
func Count(a arel.Attribute) *Aggregate   { return aggregate("COUNT", a) }
func Sum(a arel.Attribute) *Aggregate     { return aggregate("SUM", a) }
func Min(a arel.Attribute) *Aggregate     { return aggregate("MIN", a) }
func Max(a arel.Attribute) *Aggregate     { return aggregate("MAX", a) }
func Average(a arel.Attribute) *Aggregate { return aggregate("AVG", a) }

// As returns a copy of g output under alias.
func (g *Aggregate) As(alias string) *Aggregate {
	cp := *g
	cp.alias = alias
	return &cp
}

// OverDistinct returns a copy of g over distinct values only.
func (g *Aggregate) OverDistinct() *Aggregate {
	cp := *g
	cp.Distinct = true
	return &cp
}

func (g *Aggregate) Aggregation() bool { return true }

func (g *Aggregate) Blank() bool { return g == nil }

// AliasOrName returns the alias, or the function and column name joined
// by an underscore, e.g. "count_id".
func (g *Aggregate) AliasOrName() string {
	if g.alias != "" {
		return g.alias
	}
	name := strings.ToLower(g.Function)
	if !arel.IsBlank(g.Attribute) {
		name += "_" + g.Attribute.AliasOrName()
	}
	return name
}

// Match reports whether other is g itself.
func (g *Aggregate) Match(other arel.Attribute) bool {
	o, ok := other.(*Aggregate)
	return ok && o == g
}

func (g *Aggregate) Closeness(other arel.Attribute) float64 {
	if g.Match(other) {
		return 1
	}
	return 0
}

func (g *Aggregate) ToSQL(c *arel.Context) string {
	arg := "*"
	if !arel.IsBlank(g.Attribute) {
		arg = g.Attribute.ToSQL(c.In(arel.ClauseWhere))
	}
	if g.Distinct {
		arg = "DISTINCT " + arg
	}

	sql := g.Function + "(" + arg + ")"
	if c != nil && c.Clause == arel.ClauseSelect && g.alias != "" {
		sql += " AS " + g.alias
	}
	return sql
}
