package arel

import (
	"context"
	"iter"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// Relation is an immutable node of the query algebra.
//
// The concrete node kinds are closed to this package: Table, Selection,
// Projection, Join, JoinOperation, Order, Grouping, Take, Skip and Alias.
type Relation interface {
	Properties
	Operable
	Writable
	AttributeAccessor

	// ToSQL compiles the relation to a single SELECT statement.
	ToSQL() (string, error)

	// String returns the compiled SQL, or the compilation error text.
	String() string

	// Call executes the relation on conn and zips every returned tuple
	// against Attributes. A nil conn uses the engine's connection.
	Call(ctx context.Context, conn Connection) ([]Row, error)

	// All returns the relation's rows. Every iteration reads through a
	// fresh Session, so the sequence can be ranged over more than once.
	All(ctx context.Context) iter.Seq2[Row, error]

	// First returns the first row, or nil if there is none.
	First(ctx context.Context) (Row, error)

	base() *node
}

// Properties are the structural answers every node gives about the query
// it represents. A bare relation answers with empty values; wrappers
// override what they change and forward the rest to their input. Slice
// properties are fresh copies the caller may modify.
type Properties interface {
	// Name is the source table name the relation descends from.
	Name() string
	Engine() Engine

	Attributes() []Attribute
	Selects() []Expression
	Orders() []Expression
	Groupings() []Expression
	Inserts() []Expression

	// Joins renders the join fragment, or "" when the relation has none.
	Joins(c *Context) (string, error)

	// Taken and Skipped report the LIMIT and OFFSET bounds, if any.
	Taken() (int, bool)
	Skipped() (int, bool)

	// TableSQL renders the relation's source for the FROM clause.
	TableSQL(c *Context) (string, error)

	Aggregation() bool
}

// Operable is the algebra. Every method returns a new relation and leaves
// the receiver untouched; called with only blank arguments it returns the
// receiver itself.
type Operable interface {
	// Join, OuterJoin and JoinAs return a *JoinOperation for a relation
	// target; finish it with its On method or the On function. JoinOn
	// joins and completes in one call.
	Join(target JoinTarget) Relation
	OuterJoin(target JoinTarget) Relation
	JoinAs(joinType string, target JoinTarget) Relation
	JoinOn(other Relation, predicates ...Expression) Relation

	Select(predicates ...Expression) Relation
	Project(attributes ...Attribute) Relation
	Alias() Relation
	Order(orderings ...Expression) Relation
	Group(groupings ...Expression) Relation

	// Take and Skip set LIMIT and OFFSET; a negative bound is absent.
	Take(n int) Relation
	Skip(n int) Relation
}

// Writable hands write commands for the relation to a fresh Session. Unlike
// the algebra these have side effects; they return the receiver so calls
// can be chained.
type Writable interface {
	Insert(ctx context.Context, record Record) (Relation, error)
	Update(ctx context.Context, assignments Record) (Relation, error)
	Delete(ctx context.Context) (Relation, error)
}

// AttributeAccessor resolves names and attributes against a relation's
// exposed attributes. A lookup that finds nothing returns nil.
type AttributeAccessor interface {
	Attr(name string) Attribute
	AttrFor(attribute Attribute) Attribute
	Attrs(keys ...any) []Attribute
}

// Engine gives a relation access to the outside world.
type Engine interface {
	// Session returns a new Session. Sessions are not reused across calls.
	Session() Session
	Connection() Connection
}

// Session reads relations and applies write commands against a backing
// store.
type Session interface {
	Read(ctx context.Context, r Relation) iter.Seq2[Row, error]
	Create(ctx context.Context, insertion *Insertion) error
	Update(ctx context.Context, update *Update) error
	Delete(ctx context.Context, deletion *Deletion) error
}

// Connection executes SQL text and returns the raw row tuples.
type Connection interface {
	Execute(ctx context.Context, sql string) ([][]any, error)
}

// Row is one result row: the relation's attributes paired with their
// values, in attribute order. A join may expose several attributes with
// the same name; name lookups then take the first, as Attr does.
type Row []Field

// Field is one attribute of a Row and its value.
type Field struct {
	Attribute Attribute
	Value     any
}

// Value returns the value of a, or nil when the row does not carry it.
func (r Row) Value(a Attribute) any {
	for _, f := range r {
		if f.Attribute == a {
			return f.Value
		}
	}
	return nil
}

// Get returns the value of the first attribute named name.
func (r Row) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Attribute.AliasOrName() == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Values returns the row's values in attribute order.
func (r Row) Values() []any {
	values := make([]any, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// Named returns the row keyed by attribute output names. Where names
// collide the first attribute wins.
func (r Row) Named() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		name := f.Attribute.AliasOrName()
		if _, taken := m[name]; !taken {
			m[name] = f.Value
		}
	}
	return m
}

// zip pairs attributes with a tuple positionally. Missing values are nil;
// surplus values are dropped.
func zip(attrs []Attribute, tuple []any) Row {
	row := make(Row, len(attrs))
	for i, a := range attrs {
		row[i].Attribute = a
		if i < len(tuple) {
			row[i].Value = tuple[i]
		}
	}
	return row
}

// node carries the behavior shared by every relation kind: the algebra,
// compilation, execution and attribute resolution. self is the concrete
// relation embedding the node, so operations wrap the right value.
type node struct {
	self Relation

	resolveOnce sync.Once
	resolved    *xsync.Map[any, Attribute]

	christenOnce sync.Once
	christener   *Christener
}

func (n *node) base() *node { return n }

// Christener returns the relation's name allocator, creating it on first
// use. It names the tables of statements compiled from this relation.
func (n *node) Christener() *Christener {
	n.christenOnce.Do(func() {
		n.christener = NewChristener()
	})
	return n.christener
}

func (n *node) Join(target JoinTarget) Relation {
	return n.JoinAs(InnerJoin, target)
}

func (n *node) OuterJoin(target JoinTarget) Relation {
	return n.JoinAs(LeftOuterJoin, target)
}

func (n *node) JoinAs(joinType string, target JoinTarget) Relation {
	switch t := target.(type) {
	case RawJoin:
		if t.Blank() {
			return n.self
		}
		return newRawJoin(n.self, string(t))
	case RelationJoin:
		if t.Relation == nil {
			return n.self
		}
		return newJoinOperation(joinType, n.self, t.Relation)
	default:
		return n.self
	}
}

func (n *node) JoinOn(other Relation, predicates ...Expression) Relation {
	if other == nil {
		return n.self
	}
	return newJoinOperation(InnerJoin, n.self, other).On(predicates...)
}

func (n *node) Select(predicates ...Expression) Relation {
	if allBlank(predicates) {
		return n.self
	}
	return newSelection(n.self, present(predicates))
}

func (n *node) Project(attributes ...Attribute) Relation {
	if allBlank(attributes) {
		return n.self
	}
	return newProjection(n.self, present(attributes))
}

func (n *node) Alias() Relation {
	return newAlias(n.self)
}

func (n *node) Order(orderings ...Expression) Relation {
	if allBlank(orderings) {
		return n.self
	}
	return newOrder(n.self, present(orderings))
}

func (n *node) Group(groupings ...Expression) Relation {
	if allBlank(groupings) {
		return n.self
	}
	return newGrouping(n.self, present(groupings))
}

func (n *node) Take(limit int) Relation {
	if limit < 0 {
		return n.self
	}
	return newTake(n.self, limit)
}

func (n *node) Skip(offset int) Relation {
	if offset < 0 {
		return n.self
	}
	return newSkip(n.self, offset)
}

func (n *node) Insert(ctx context.Context, record Record) (Relation, error) {
	s, err := n.session()
	if err != nil {
		return n.self, err
	}
	return n.self, s.Create(ctx, &Insertion{Relation: n.self, Record: record})
}

func (n *node) Update(ctx context.Context, assignments Record) (Relation, error) {
	s, err := n.session()
	if err != nil {
		return n.self, err
	}
	return n.self, s.Update(ctx, &Update{Relation: n.self, Assignments: assignments})
}

func (n *node) Delete(ctx context.Context) (Relation, error) {
	s, err := n.session()
	if err != nil {
		return n.self, err
	}
	return n.self, s.Delete(ctx, &Deletion{Relation: n.self})
}

func (n *node) session() (Session, error) {
	e := n.self.Engine()
	if e == nil {
		return nil, ErrNoEngine
	}
	return e.Session(), nil
}

func (n *node) ToSQL() (string, error) {
	return compile(n.self)
}

func (n *node) String() string {
	sql, err := n.ToSQL()
	if err != nil {
		return err.Error()
	}
	return sql
}

func (n *node) Call(ctx context.Context, conn Connection) ([]Row, error) {
	if conn == nil {
		e := n.self.Engine()
		if e == nil {
			return nil, ErrNoEngine
		}
		conn = e.Connection()
	}

	sql, err := n.ToSQL()
	if err != nil {
		return nil, err
	}
	tuples, err := conn.Execute(ctx, sql)
	if err != nil {
		return nil, err
	}

	attrs := n.self.Attributes()
	rows := make([]Row, 0, len(tuples))
	for _, t := range tuples {
		rows = append(rows, zip(attrs, t))
	}
	return rows, nil
}

func (n *node) All(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		s, err := n.session()
		if err != nil {
			yield(nil, err)
			return
		}
		for row, err := range s.Read(ctx, n.self) {
			if !yield(row, err) {
				return
			}
		}
	}
}

func (n *node) First(ctx context.Context) (Row, error) {
	for row, err := range n.All(ctx) {
		return row, err
	}
	return nil, nil
}

// unary forwards every property to a single input relation. Wrapper nodes
// embed it and override only what they change.
type unary struct {
	input Relation
}

// Input returns the wrapped relation.
func (u unary) Input() Relation { return u.input }

func (u unary) Name() string                        { return u.input.Name() }
func (u unary) Engine() Engine                      { return u.input.Engine() }
func (u unary) Attributes() []Attribute             { return u.input.Attributes() }
func (u unary) Selects() []Expression               { return u.input.Selects() }
func (u unary) Orders() []Expression                { return u.input.Orders() }
func (u unary) Groupings() []Expression             { return u.input.Groupings() }
func (u unary) Inserts() []Expression               { return u.input.Inserts() }
func (u unary) Joins(c *Context) (string, error)    { return u.input.Joins(c) }
func (u unary) Taken() (int, bool)                  { return u.input.Taken() }
func (u unary) Skipped() (int, bool)                { return u.input.Skipped() }
func (u unary) TableSQL(c *Context) (string, error) { return u.input.TableSQL(c) }
func (u unary) Aggregation() bool                   { return u.input.Aggregation() }

// concat returns a new slice holding a followed by b.
func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
