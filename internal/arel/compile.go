package arel

import (
	"strconv"
	"strings"
)

// compile assembles the SELECT statement for r. Clauses appear in a fixed
// order and empty ones are left out:
//
//	SELECT, FROM, joins, WHERE, ORDER BY, GROUP BY, LIMIT, OFFSET
//
// The FROM table and the joins are rendered first so the christener names
// tables in the order they are introduced.
func compile(r Relation) (string, error) {
	from, err := r.TableSQL(newContext(r, ClauseTable, false))
	if err != nil {
		return "", err
	}
	joins, err := r.Joins(newContext(r, ClauseTable, true))
	if err != nil {
		return "", err
	}
	qualify := joins != ""

	lines := []string{
		"SELECT " + selectList(r.Attributes(), newContext(r, ClauseSelect, qualify)),
		"FROM " + from,
	}
	if joins != "" {
		lines = append(lines, joins)
	}
	if selects := r.Selects(); len(selects) > 0 {
		lines = append(lines, "WHERE "+renderAll(selects, newContext(r, ClauseWhere, qualify), "\n\tAND "))
	}
	if orders := r.Orders(); len(orders) > 0 {
		lines = append(lines, "ORDER BY "+renderAll(orders, newContext(r, ClauseOrder, qualify), ", "))
	}
	if groupings := r.Groupings(); len(groupings) > 0 {
		lines = append(lines, "GROUP BY "+renderAll(groupings, newContext(r, ClauseGroup, qualify), ", "))
	}
	if n, ok := r.Taken(); ok {
		lines = append(lines, "LIMIT "+strconv.Itoa(n))
	}
	if n, ok := r.Skipped(); ok {
		lines = append(lines, "OFFSET "+strconv.Itoa(n))
	}

	return strings.Join(lines, "\n"), nil
}

// selectList renders the SELECT list; a relation exposing no attributes
// selects every column.
func selectList(attrs []Attribute, c *Context) string {
	if len(attrs) == 0 {
		return "*"
	}
	return renderAll(attrs, c, ", ")
}

func renderAll[T Expression](xs []T, c *Context, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.ToSQL(c)
	}
	return strings.Join(parts, sep)
}
