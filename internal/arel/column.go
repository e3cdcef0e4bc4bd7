package arel

// Column is an attribute that names a column of a relation.
//
// Columns form a history: aliasing a column, or re-exposing it through a
// derived table, creates a new Column whose ancestor is the original. Two
// columns Match when their histories share a root; Closeness is the
// Jaccard index of the two histories.
type Column struct {
	relation Relation
	name     string
	alias    string
	ancestor *Column
}

// NewColumn returns a column named name belonging to r.
func NewColumn(r Relation, name string) *Column {
	return &Column{relation: r, name: name}
}

// Name returns the column's own name.
func (c *Column) Name() string { return c.name }

// Relation returns the relation the column belongs to.
func (c *Column) Relation() Relation { return c.relation }

// Ancestor returns the column this one was derived from, or nil.
func (c *Column) Ancestor() *Column { return c.ancestor }

// As returns a copy of c that is output under alias.
func (c *Column) As(alias string) *Column {
	if alias == "" || alias == c.alias {
		return c
	}
	return &Column{relation: c.relation, name: c.name, alias: alias, ancestor: c}
}

// AliasOrName implements Attribute.
func (c *Column) AliasOrName() string {
	if c.alias != "" {
		return c.alias
	}
	return c.name
}

// Blank implements Blanker; a nil column is blank.
func (c *Column) Blank() bool { return c == nil }

// History returns c followed by each of its ancestors.
func (c *Column) History() []*Column {
	var h []*Column
	for a := c; a != nil; a = a.ancestor {
		h = append(h, a)
	}
	return h
}

// Root returns the oldest ancestor of c.
func (c *Column) Root() *Column {
	a := c
	for a.ancestor != nil {
		a = a.ancestor
	}
	return a
}

// Match implements Attribute.
func (c *Column) Match(other Attribute) bool {
	o, ok := other.(*Column)
	if !ok || o == nil || c == nil {
		return false
	}
	return c.Root() == o.Root()
}

// Closeness implements Attribute.
func (c *Column) Closeness(other Attribute) float64 {
	o, ok := other.(*Column)
	if !ok || o == nil || c == nil {
		return 0
	}

	union := make(map[*Column]bool)
	for _, a := range c.History() {
		union[a] = true
	}
	shared := 0
	for _, a := range o.History() {
		if union[a] {
			shared++
			continue
		}
		union[a] = true
	}
	return float64(shared) / float64(len(union))
}

// ToSQL implements Expression. The column is first resolved against the
// relation being compiled, so a column of a table that was joined as a
// derived table renders as that derived table's column.
func (c *Column) ToSQL(ctx *Context) string {
	target := c
	if r, ok := ctx.Resolve(c).(*Column); ok && r != nil {
		target = r
	}

	ref := target.name
	if ctx.qualified() && target.relation != nil {
		ref = ctx.NameFor(target.relation) + "." + target.name
	}
	if ctx.clause() == ClauseSelect && c.alias != "" {
		ref += " AS " + c.alias
	}
	return ref
}

// derive returns a column of r that re-exposes a under its output name.
func derive(r Relation, a Attribute) *Column {
	col := &Column{relation: r, name: a.AliasOrName()}
	if anc, ok := a.(*Column); ok {
		col.ancestor = anc
	}
	return col
}
