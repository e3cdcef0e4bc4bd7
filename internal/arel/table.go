package arel

import "slices"

// bare answers every property with the empty value of a relation that adds
// nothing: no attributes, no clauses, no joins, no bounds.
type bare struct{}

func (bare) Attributes() []Attribute        { return nil }
func (bare) Selects() []Expression          { return nil }
func (bare) Orders() []Expression           { return nil }
func (bare) Groupings() []Expression        { return nil }
func (bare) Inserts() []Expression          { return nil }
func (bare) Joins(*Context) (string, error) { return "", nil }
func (bare) Taken() (int, bool)             { return 0, false }
func (bare) Skipped() (int, bool)           { return 0, false }
func (bare) Aggregation() bool              { return false }

// Table is a base relation: a named table and its columns.
type Table struct {
	node
	bare

	name    string
	engine  Engine
	columns []Attribute
}

// NewTable returns a base relation for the table name with the given
// columns. engine may be nil for relations that are only compiled.
func NewTable(name string, engine Engine, columns ...string) *Table {
	t := &Table{name: name, engine: engine}
	t.self = t
	t.columns = make([]Attribute, len(columns))
	for i, c := range columns {
		t.columns[i] = NewColumn(t, c)
	}
	return t
}

// Column returns the table's column named name, or nil.
func (t *Table) Column(name string) *Column {
	if c, ok := t.Attr(name).(*Column); ok {
		return c
	}
	return nil
}

func (t *Table) Name() string            { return t.name }
func (t *Table) Engine() Engine          { return t.engine }
func (t *Table) Attributes() []Attribute { return slices.Clone(t.columns) }

// TableSQL renders the table name, adding an alias when another relation
// of the statement already uses the name.
func (t *Table) TableSQL(c *Context) (string, error) {
	name := c.NameFor(t)
	if name == t.name {
		return t.name, nil
	}
	return t.name + " AS " + name, nil
}
