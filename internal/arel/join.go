package arel

import (
	"fmt"
	"strings"
)

// Join keywords.
const (
	InnerJoin     = "INNER JOIN"
	LeftOuterJoin = "LEFT OUTER JOIN"
)

// JoinTarget is what a relation can be joined with: raw SQL text or another
// relation.
type JoinTarget interface {
	joinTarget()
}

// RawJoin is a join fragment given as SQL text, e.g.
// "INNER JOIN photos ON photos.user_id = users.id".
type RawJoin string

func (RawJoin) joinTarget() {}

// Blank reports whether the fragment is empty.
func (j RawJoin) Blank() bool { return strings.TrimSpace(string(j)) == "" }

// RelationJoin joins another relation. Joining a relation takes two steps:
// Join returns a JoinOperation which On completes.
type RelationJoin struct {
	Relation Relation
}

func (RelationJoin) joinTarget() {}

// With wraps r as a join target.
func With(r Relation) JoinTarget {
	return RelationJoin{Relation: r}
}

// JoinOperation is a join that still needs its ON predicates. It answers
// its left input's properties but refuses to compile.
type JoinOperation struct {
	node
	unary
	joinType string
	right    Relation
}

func newJoinOperation(joinType string, left, right Relation) *JoinOperation {
	j := &JoinOperation{unary: unary{left}, joinType: joinType, right: right}
	j.self = j
	return j
}

// On completes the join. Blank predicates are dropped; with none left the
// join has no ON clause.
func (j *JoinOperation) On(predicates ...Expression) Relation {
	return newJoin(j.joinType, j.input, j.right, present(predicates))
}

// On completes r when it is a JoinOperation, which Join, OuterJoin and
// JoinAs return for a relation target. Any other relation, including a
// join that was a no-op, is returned unchanged and the predicates are
// dropped.
//
//	r := arel.On(users.Join(arel.With(photos)), expr.Equal(users.Attr("id"), photos.Attr("user_id")))
func On(r Relation, predicates ...Expression) Relation {
	if op, ok := r.(*JoinOperation); ok {
		return op.On(predicates...)
	}
	return r
}

func (j *JoinOperation) Joins(*Context) (string, error) { return "", ErrIncompleteJoin }

func (j *JoinOperation) TableSQL(*Context) (string, error) { return "", ErrIncompleteJoin }

// Join is a completed join of two relations, or of a relation and a raw
// SQL join fragment.
//
// A table joined with itself needs an Alias on the right, e.g.
// users.JoinOn(users.Alias(), ...); otherwise compiling the join fails with
// ErrAmbiguousSelfJoin.
//
// The left input supplies the FROM table, orders, groupings and bounds.
// The right input contributes its attributes, and its selects are folded
// into the ON clause. A right input carrying clauses that cannot be folded
// (orders, groupings, bounds, its own joins) is joined as a derived table.
type Join struct {
	node
	joinType   string
	left       Relation
	right      Relation
	raw        string
	predicates []Expression
}

func newJoin(joinType string, left, right Relation, predicates []Expression) *Join {
	j := &Join{joinType: joinType, left: left, right: externalize(right), predicates: predicates}
	j.self = j
	return j
}

func newRawJoin(left Relation, raw string) *Join {
	j := &Join{left: left, raw: raw}
	j.self = j
	return j
}

// Left returns the left input.
func (j *Join) Left() Relation { return j.left }

// Right returns the right input, or nil for a raw join.
func (j *Join) Right() Relation { return j.right }

func (j *Join) Name() string   { return j.left.Name() }
func (j *Join) Engine() Engine { return j.left.Engine() }

func (j *Join) Attributes() []Attribute {
	if j.right == nil {
		return j.left.Attributes()
	}
	return concat(j.left.Attributes(), j.right.Attributes())
}

func (j *Join) Selects() []Expression   { return j.left.Selects() }
func (j *Join) Orders() []Expression    { return j.left.Orders() }
func (j *Join) Groupings() []Expression { return j.left.Groupings() }
func (j *Join) Inserts() []Expression   { return j.left.Inserts() }
func (j *Join) Taken() (int, bool)      { return j.left.Taken() }
func (j *Join) Skipped() (int, bool)    { return j.left.Skipped() }
func (j *Join) Aggregation() bool       { return j.left.Aggregation() }

func (j *Join) TableSQL(c *Context) (string, error) {
	return j.left.TableSQL(c)
}

// Joins renders the left input's joins followed by this one.
func (j *Join) Joins(c *Context) (string, error) {
	left, err := j.left.Joins(c)
	if err != nil {
		return "", err
	}

	this := j.raw
	if j.right != nil {
		this, err = j.join(c)
		if err != nil {
			return "", err
		}
	}

	if left == "" {
		return this, nil
	}
	return left + " " + this, nil
}

func (j *Join) join(c *Context) (string, error) {
	if t := baseTable(j.right); t != nil && reads(j.left, t) {
		return "", fmt.Errorf("%w: %s", ErrAmbiguousSelfJoin, t.Name())
	}
	table, err := j.right.TableSQL(c.In(ClauseTable))
	if err != nil {
		return "", err
	}

	parts := []string{j.joinType, table}
	on := concat(j.predicates, j.right.Selects())
	if len(on) > 0 {
		where := c.In(ClauseWhere)
		conds := make([]string, len(on))
		for i, p := range on {
			conds[i] = p.ToSQL(where)
		}
		parts = append(parts, "ON", strings.Join(conds, " AND "))
	}
	return strings.Join(parts, " "), nil
}

// externalize returns r, or r as a derived table when its clauses cannot
// be expressed inside a join.
func externalize(r Relation) Relation {
	if _, ok := r.(*Alias); ok {
		return r
	}
	_, taken := r.Taken()
	_, skipped := r.Skipped()
	if taken || skipped || r.Aggregation() ||
		len(r.Orders()) > 0 || len(r.Groupings()) > 0 || joined(r) {
		return r.Alias()
	}
	return r
}

// joined reports whether r has a join anywhere below it.
func joined(r Relation) bool {
	switch n := r.(type) {
	case *Join, *JoinOperation:
		return true
	case interface{ Input() Relation }:
		return joined(n.Input())
	default:
		return false
	}
}

// baseTable returns the table r reads under its own name, or nil when r is
// an alias or a join.
func baseTable(r Relation) *Table {
	switch n := r.(type) {
	case *Table:
		return n
	case *Alias, *Join:
		return nil
	case interface{ Input() Relation }:
		return baseTable(n.Input())
	default:
		return nil
	}
}

// reads reports whether r reads t under t's own name anywhere in its tree.
func reads(r Relation, t *Table) bool {
	switch n := r.(type) {
	case *Table:
		return n == t
	case *Alias:
		return false
	case *Join:
		return reads(n.left, t) || (n.right != nil && reads(n.right, t))
	case interface{ Input() Relation }:
		return reads(n.Input(), t)
	default:
		return false
	}
}
