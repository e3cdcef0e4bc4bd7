package arel

// Clause identifies the part of a statement an expression is rendered for.
type Clause int

const (
	ClauseSelect Clause = iota
	ClauseTable
	ClauseWhere
	ClauseOrder
	ClauseGroup
)

func (c Clause) String() string {
	switch c {
	case ClauseSelect:
		return "select"
	case ClauseTable:
		return "table"
	case ClauseWhere:
		return "where"
	case ClauseOrder:
		return "order"
	case ClauseGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Context is the clause-rendering context passed to Expression.ToSQL.
//
// A fresh Context is built for every clause of a compilation and is never
// stored on a node. A nil *Context is valid and renders unqualified names.
type Context struct {
	// Clause is the clause being rendered.
	Clause Clause

	// Qualify is set when identifiers must carry their table name because
	// more than one table is in scope.
	Qualify bool

	relation   Relation
	christener *Christener
}

// newContext returns a context for compiling r. A nil r gives a context
// that neither resolves attributes nor renames tables.
func newContext(r Relation, clause Clause, qualify bool) *Context {
	c := &Context{Clause: clause, Qualify: qualify, relation: r}
	if r != nil {
		c.christener = r.base().Christener()
	}
	return c
}

// In returns a copy of c for a different clause. Composite expressions use
// it to render their operands, e.g. the column inside COUNT(...) in a
// SELECT list.
func (c *Context) In(clause Clause) *Context {
	if c == nil {
		return &Context{Clause: clause}
	}
	cp := *c
	cp.Clause = clause
	return &cp
}

// Resolve returns the attribute of the relation being compiled that a
// refers to, or nil when the relation does not expose it. Columns use it to
// render under the name and table the statement actually knows them by.
func (c *Context) Resolve(a Attribute) Attribute {
	if c == nil || c.relation == nil {
		return nil
	}
	return c.relation.AttrFor(a)
}

// NameFor returns the name r is referred to by in the statement being
// compiled. Distinct relations sharing a table name get distinct names.
func (c *Context) NameFor(r Relation) string {
	if r == nil {
		return ""
	}
	if c == nil || c.christener == nil {
		return r.Name()
	}
	return c.christener.NameFor(r)
}

func (c *Context) clause() Clause {
	if c == nil {
		return ClauseWhere
	}
	return c.Clause
}

func (c *Context) qualified() bool {
	return c != nil && c.Qualify
}
