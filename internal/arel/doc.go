// Package arel provides an immutable relational algebra that compiles to SQL.
//
// A query starts from a base relation (a Table) and is built by chaining
// algebra operations. Every operation returns a new node that wraps its
// input; nothing is ever mutated and nothing touches a database until the
// tree is rendered with ToSQL or handed to a Session for execution.
//
//	users := arel.NewTable("users", engine, "id", "name", "age")
//	adults := users.
//	    Select(expr.GreaterThan(users.Attr("age"), 18)).
//	    Order(users.Attr("name")).
//	    Take(10)
//	sql, err := adults.ToSQL()
//
// compiles to:
//
//	SELECT id, name, age
//	FROM users
//	WHERE age > 18
//	ORDER BY name
//	LIMIT 10
//
// # Node kinds
//
// The tree is made of a closed set of node kinds behind the Relation
// interface: Table, Selection, Projection, Join, JoinOperation, Order,
// Grouping, Take, Skip and Alias. Each node stores only what it introduces
// plus a reference to its input, and answers every relational property
// (attributes, selects, orders, groupings, joins, limits) by overriding the
// properties it changes and forwarding the rest to its input.
//
// # Blank arguments
//
// Calling an operation with only blank arguments (nil expressions, empty
// raw SQL, a negative bound) returns the receiver itself. Callers can chain
// optional filters without conditionals.
//
// # Joins
//
// Joining another relation is a two-step build: Join returns an unfinished
// JoinOperation that must be completed with On. Compiling an unfinished join
// fails with ErrIncompleteJoin.
//
// # Attribute resolution
//
// Attr and AttrFor resolve names and attributes against a relation's exposed
// attributes. Resolutions are memoized per relation instance; the cache is
// safe for concurrent use and computes each key at most once.
package arel
