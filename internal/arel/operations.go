package arel

import "slices"

// Selection restricts its input with predicates. Predicates accumulate:
// a selection of a selection carries both sets, outermost last.
type Selection struct {
	node
	unary
	predicates []Expression
}

func newSelection(input Relation, predicates []Expression) *Selection {
	s := &Selection{unary: unary{input}, predicates: predicates}
	s.self = s
	return s
}

func (s *Selection) Selects() []Expression {
	return concat(s.input.Selects(), s.predicates)
}

// Projection replaces the exposed attributes of its input.
type Projection struct {
	node
	unary
	attributes []Attribute
}

func newProjection(input Relation, attributes []Attribute) *Projection {
	p := &Projection{unary: unary{input}, attributes: attributes}
	p.self = p
	return p
}

func (p *Projection) Attributes() []Attribute {
	return slices.Clone(p.attributes)
}

// Aggregation reports whether any projected attribute aggregates rows.
func (p *Projection) Aggregation() bool {
	for _, a := range p.attributes {
		if agg, ok := a.(Aggregator); ok && agg.Aggregation() {
			return true
		}
	}
	return p.input.Aggregation()
}

// Order sorts its input. Orderings accumulate after the input's own.
type Order struct {
	node
	unary
	orderings []Expression
}

func newOrder(input Relation, orderings []Expression) *Order {
	o := &Order{unary: unary{input}, orderings: orderings}
	o.self = o
	return o
}

func (o *Order) Orders() []Expression {
	return concat(o.input.Orders(), o.orderings)
}

// Grouping groups its input. A grouping is always an aggregation.
type Grouping struct {
	node
	unary
	groupings []Expression
}

func newGrouping(input Relation, groupings []Expression) *Grouping {
	g := &Grouping{unary: unary{input}, groupings: groupings}
	g.self = g
	return g
}

func (g *Grouping) Groupings() []Expression {
	return concat(g.input.Groupings(), g.groupings)
}

func (g *Grouping) Aggregation() bool { return true }

// Take bounds the number of rows of its input.
type Take struct {
	node
	unary
	taken int
}

func newTake(input Relation, taken int) *Take {
	t := &Take{unary: unary{input}, taken: taken}
	t.self = t
	return t
}

func (t *Take) Taken() (int, bool) { return t.taken, true }

// Skip drops leading rows of its input.
type Skip struct {
	node
	unary
	skipped int
}

func newSkip(input Relation, skipped int) *Skip {
	s := &Skip{unary: unary{input}, skipped: skipped}
	s.self = s
	return s
}

func (s *Skip) Skipped() (int, bool) { return s.skipped, true }
