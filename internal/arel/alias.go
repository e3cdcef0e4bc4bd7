package arel

import "slices"

// Alias re-exposes its input under a distinct name, so a relation can be
// joined with itself or used as a derived table.
//
// Aliasing a table renders "users AS users_2". Aliasing any other relation
// renders its compiled statement as a parenthesized subquery; the input's
// clauses live inside the subquery and the alias itself carries none. The
// name is assigned by the christener of the statement being compiled.
type Alias struct {
	node
	unary
	attributes []Attribute
}

func newAlias(input Relation) *Alias {
	a := &Alias{unary: unary{input}}
	a.self = a

	attrs := input.Attributes()
	a.attributes = make([]Attribute, len(attrs))
	for i, attr := range attrs {
		a.attributes[i] = derive(a, attr)
	}
	return a
}

func (a *Alias) Attributes() []Attribute { return slices.Clone(a.attributes) }

func (a *Alias) derived() bool {
	_, ok := a.input.(*Table)
	return !ok
}

func (a *Alias) TableSQL(c *Context) (string, error) {
	name := c.NameFor(a)
	if !a.derived() {
		if name == a.input.Name() {
			return name, nil
		}
		return a.input.Name() + " AS " + name, nil
	}

	sql, err := a.input.ToSQL()
	if err != nil {
		return "", err
	}
	return "(" + sql + ") AS " + name, nil
}

func (a *Alias) Selects() []Expression {
	if a.derived() {
		return nil
	}
	return a.input.Selects()
}

func (a *Alias) Orders() []Expression {
	if a.derived() {
		return nil
	}
	return a.input.Orders()
}

func (a *Alias) Groupings() []Expression {
	if a.derived() {
		return nil
	}
	return a.input.Groupings()
}

func (a *Alias) Joins(c *Context) (string, error) {
	if a.derived() {
		return "", nil
	}
	return a.input.Joins(c)
}

func (a *Alias) Taken() (int, bool) {
	if a.derived() {
		return 0, false
	}
	return a.input.Taken()
}

func (a *Alias) Skipped() (int, bool) {
	if a.derived() {
		return 0, false
	}
	return a.input.Skipped()
}

func (a *Alias) Aggregation() bool {
	if a.derived() {
		return false
	}
	return a.input.Aggregation()
}
