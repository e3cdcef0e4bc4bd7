// Package expr provides the leaf expressions of the query algebra:
// literals, comparison and boolean predicates, orderings and aggregates.
//
// Every value here implements arel.Expression and renders itself for the
// clause named by the arel.Context it is given. Operands may be attributes,
// other expressions or plain Go values, which are quoted as literals.
package expr
