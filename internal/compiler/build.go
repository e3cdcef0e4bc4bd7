package compiler

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/arel/internal/arel"
	"github.com/roach88/arel/internal/expr"
)

// Binder turns a table name into a base relation. session.Engine binds
// tables to a database; StaticBinder builds unbound tables for compiling
// only.
type Binder interface {
	Table(ctx context.Context, name string, columns ...string) (*arel.Table, error)
}

// StaticBinder binds tables to no engine. Every table must declare its
// columns.
type StaticBinder struct{}

// Table implements Binder.
func (StaticBinder) Table(_ context.Context, name string, columns ...string) (*arel.Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: no columns declared", name)
	}
	return arel.NewTable(name, nil, columns...), nil
}

// Compiled is a query definition compiled to a relation.
type Compiled struct {
	Name     string
	Relation arel.Relation
}

// aggregatePattern matches "count(*)", "sum(age)", "max(users.age) as oldest".
var aggregatePattern = regexp.MustCompile(`(?i)^(count|sum|min|max|avg)\(\s*(\*|[^)\s]+)\s*\)(?:\s+as\s+(\S+))?$`)

// aliasPattern matches "name as username".
var aliasPattern = regexp.MustCompile(`(?i)^(\S+)\s+as\s+(\S+)$`)

// Build compiles every query of the catalog to a relation, in declaration
// order. Tables are bound through binder; a query may select from another
// query, which is then built first.
//
// Build does not validate the catalog; run Validate first for complete
// error reports. Build stops at the first error.
func Build(ctx context.Context, cat *Catalog, binder Binder) ([]Compiled, error) {
	if cycles := AnalyzeCycles(cat); len(cycles) > 0 {
		return nil, &CompileError{Field: "queries", Message: cycles[0].Message}
	}

	b := &builder{
		ctx:     ctx,
		binder:  binder,
		tables:  make(map[string]TableDef),
		queries: make(map[string]*QueryDef),
		bound:   make(map[string]*arel.Table),
		built:   make(map[string]*scope),
	}
	for _, t := range cat.Tables {
		b.tables[t.Name] = t
	}
	for i := range cat.Queries {
		b.queries[cat.Queries[i].Name] = &cat.Queries[i]
	}

	out := make([]Compiled, 0, len(cat.Queries))
	for _, q := range cat.Queries {
		s, err := b.query(q.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Compiled{Name: q.Name, Relation: s.relation})
	}
	return out, nil
}

type builder struct {
	ctx     context.Context
	binder  Binder
	tables  map[string]TableDef
	queries map[string]*QueryDef
	bound   map[string]*arel.Table
	built   map[string]*scope
}

// scope is a relation under construction together with the labels its
// column references can be qualified with.
type scope struct {
	relation arel.Relation
	labels   map[string]arel.Relation
}

// source returns the scope for a table or query name. Queries shadow
// tables of the same name.
func (b *builder) source(name string) (*scope, error) {
	if _, ok := b.queries[name]; ok {
		return b.query(name)
	}

	t, ok := b.bound[name]
	if !ok {
		def, declared := b.tables[name]
		var columns []string
		if declared {
			columns = def.Columns
		}
		var err error
		t, err = b.binder.Table(b.ctx, name, columns...)
		if err != nil {
			return nil, &CompileError{Field: "from", Message: err.Error(), Pos: def.Pos}
		}
		b.bound[name] = t
	}
	return &scope{relation: t, labels: map[string]arel.Relation{name: t}}, nil
}

func (b *builder) query(name string) (*scope, error) {
	if s, ok := b.built[name]; ok {
		return s, nil
	}
	q := b.queries[name]

	s, err := b.source(q.From)
	if err != nil {
		return nil, err
	}
	s = s.with(q.Name, s.relation)

	for _, step := range q.Steps {
		s, err = b.apply(s, step)
		if err != nil {
			return nil, err
		}
	}

	b.built[name] = s
	return s, nil
}

func (b *builder) apply(s *scope, step Step) (*scope, error) {
	r := s.relation
	switch step.Kind {
	case StepWhere:
		preds := make([]arel.Expression, 0, len(step.Conditions))
		for _, c := range step.Conditions {
			p, err := s.condition(c)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return s.then(r.Select(preds...)), nil

	case StepProject:
		attrs := make([]arel.Attribute, 0, len(step.Columns))
		for _, col := range step.Columns {
			a, err := s.projection(col, step)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
		}
		return s.then(r.Project(attrs...)), nil

	case StepOrder:
		orders := make([]arel.Expression, 0, len(step.Columns))
		for _, col := range step.Columns {
			desc := strings.HasPrefix(col, "-")
			a, err := s.column(strings.TrimPrefix(col, "-"), step)
			if err != nil {
				return nil, err
			}
			if desc {
				orders = append(orders, expr.Descending(a))
			} else {
				orders = append(orders, a)
			}
		}
		return s.then(r.Order(orders...)), nil

	case StepGroup:
		groups := make([]arel.Expression, 0, len(step.Columns))
		for _, col := range step.Columns {
			a, err := s.column(col, step)
			if err != nil {
				return nil, err
			}
			groups = append(groups, a)
		}
		return s.then(r.Group(groups...)), nil

	case StepTake:
		return s.then(r.Take(step.N)), nil

	case StepSkip:
		return s.then(r.Skip(step.N)), nil

	case StepAlias:
		a := r.Alias()
		return &scope{relation: a, labels: map[string]arel.Relation{r.Name(): a}}, nil

	case StepJoin:
		return b.join(s, step)

	default:
		return nil, &CompileError{Field: "steps", Message: fmt.Sprintf("unknown step %q", step.Kind), Pos: step.Pos}
	}
}

func (b *builder) join(s *scope, step Step) (*scope, error) {
	j := step.Join
	target, err := b.source(j.Source)
	if err != nil {
		return nil, err
	}

	right := target.relation
	label := j.Source
	if j.As != "" {
		right = right.Alias()
		label = j.As
	}

	// References resolve against both sides while the ON clause is built.
	both := s.with(label, right)
	preds := make([]arel.Expression, 0, len(j.On))
	for _, on := range j.On {
		left, err := both.column(on.Left, step)
		if err != nil {
			return nil, err
		}
		r, err := both.column(on.Right, step)
		if err != nil {
			return nil, err
		}
		preds = append(preds, expr.Equal(left, r))
	}

	joinType := arel.InnerJoin
	if j.Outer {
		joinType = arel.LeftOuterJoin
	}
	op, ok := s.relation.JoinAs(joinType, arel.With(right)).(*arel.JoinOperation)
	if !ok {
		return nil, &CompileError{Field: "join", Message: "join source is empty", Pos: step.Pos}
	}
	return both.then(op.On(preds...)), nil
}

// then returns s with its relation replaced by r.
func (s *scope) then(r arel.Relation) *scope {
	return &scope{relation: r, labels: s.labels}
}

// with returns s with an extra label.
func (s *scope) with(label string, r arel.Relation) *scope {
	labels := maps.Clone(s.labels)
	labels[label] = r
	return &scope{relation: s.relation, labels: labels}
}

// column resolves a column reference, "name" or "label.name".
func (s *scope) column(ref string, step Step) (arel.Attribute, error) {
	if label, name, ok := strings.Cut(ref, "."); ok {
		src, known := s.labels[label]
		if !known {
			return nil, &CompileError{Field: string(step.Kind), Message: fmt.Sprintf("unknown relation %q in %q", label, ref), Pos: step.Pos}
		}
		a := src.Attr(name)
		if a == nil {
			return nil, &CompileError{Field: string(step.Kind), Message: fmt.Sprintf("unknown column %q", ref), Pos: step.Pos}
		}
		return a, nil
	}

	if a := s.relation.Attr(ref); a != nil {
		return a, nil
	}
	// Columns not exposed by a projection can still be filtered on.
	for _, label := range slices.Sorted(maps.Keys(s.labels)) {
		if a := s.labels[label].Attr(ref); a != nil {
			return a, nil
		}
	}
	return nil, &CompileError{Field: string(step.Kind), Message: fmt.Sprintf("unknown column %q", ref), Pos: step.Pos}
}

// projection resolves a project entry: a column, an aliased column or an
// aggregate.
func (s *scope) projection(entry string, step Step) (arel.Attribute, error) {
	if m := aggregatePattern.FindStringSubmatch(entry); m != nil {
		var arg arel.Attribute
		if m[2] != "*" {
			a, err := s.column(m[2], step)
			if err != nil {
				return nil, err
			}
			arg = a
		}
		agg := aggregateFor(strings.ToLower(m[1]), arg)
		if m[3] != "" {
			agg = agg.As(m[3])
		}
		return agg, nil
	}

	if m := aliasPattern.FindStringSubmatch(entry); m != nil {
		a, err := s.column(m[1], step)
		if err != nil {
			return nil, err
		}
		col, ok := a.(*arel.Column)
		if !ok {
			return nil, &CompileError{Field: "project", Message: fmt.Sprintf("cannot alias %q", m[1]), Pos: step.Pos}
		}
		return col.As(m[2]), nil
	}

	return s.column(entry, step)
}

func aggregateFor(fn string, a arel.Attribute) *expr.Aggregate {
	switch fn {
	case "sum":
		return expr.Sum(a)
	case "min":
		return expr.Min(a)
	case "max":
		return expr.Max(a)
	case "avg":
		return expr.Average(a)
	default:
		return expr.Count(a)
	}
}

// condition compiles a where condition to a predicate.
func (s *scope) condition(c Condition) (arel.Expression, error) {
	step := Step{Kind: StepWhere, Pos: c.Pos}
	left, err := s.column(c.Column, step)
	if err != nil {
		return nil, err
	}

	var right any = c.Value
	if c.Ref != "" {
		right, err = s.column(c.Ref, step)
		if err != nil {
			return nil, err
		}
	}

	switch c.Op {
	case "=":
		return expr.Equal(left, right), nil
	case "!=":
		return expr.NotEqual(left, right), nil
	case ">":
		return expr.GreaterThan(left, right), nil
	case ">=":
		return expr.GreaterThanOrEqual(left, right), nil
	case "<":
		return expr.LessThan(left, right), nil
	case "<=":
		return expr.LessThanOrEqual(left, right), nil
	case "like":
		return expr.Like(left, right), nil
	case "in":
		return expr.In(left, c.Values...), nil
	default:
		return nil, &CompileError{Field: "where.op", Message: fmt.Sprintf("unknown operator %q", c.Op), Pos: c.Pos}
	}
}
