package arel

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Record maps attributes to values for inserts and updates. Values are
// plain Go values, quoted with Quote, or Expressions rendered in place.
type Record map[Attribute]any

// ordered returns the record's attributes in the relation's attribute
// order, followed by any others sorted by name.
func (rec Record) ordered(r Relation) []Attribute {
	keys := make([]Attribute, 0, len(rec))
	seen := make(map[Attribute]bool, len(rec))
	for _, a := range r.Attributes() {
		if _, ok := rec[a]; ok && !seen[a] {
			keys = append(keys, a)
			seen[a] = true
		}
	}

	var rest []Attribute
	for a := range rec {
		if !seen[a] {
			rest = append(rest, a)
		}
	}
	slices.SortFunc(rest, func(x, y Attribute) int {
		return cmp.Compare(x.AliasOrName(), y.AliasOrName())
	})
	return append(keys, rest...)
}

// Insertion inserts one record into a relation's table.
type Insertion struct {
	Relation Relation
	Record   Record
}

// ToSQL renders the INSERT statement.
func (i *Insertion) ToSQL() (string, error) {
	c := newContext(nil, ClauseTable, false)
	table, err := i.Relation.TableSQL(c)
	if err != nil {
		return "", err
	}

	keys := i.Record.ordered(i.Relation)
	columns := make([]string, len(keys))
	values := make([]string, len(keys))
	for n, a := range keys {
		columns[n] = a.ToSQL(c)
		values[n] = render(i.Record[a], c.In(ClauseWhere))
	}

	return "INSERT INTO " + table +
		" (" + strings.Join(columns, ", ") + ")" +
		" VALUES (" + strings.Join(values, ", ") + ")", nil
}

// Update assigns values to the rows a relation selects.
type Update struct {
	Relation    Relation
	Assignments Record
}

// ToSQL renders the UPDATE statement. The relation's selects become the
// WHERE clause; a bounded relation updates only the rows its bounds pick.
func (u *Update) ToSQL() (string, error) {
	c := newContext(nil, ClauseTable, false)
	table, err := u.Relation.TableSQL(c)
	if err != nil {
		return "", err
	}

	keys := u.Assignments.ordered(u.Relation)
	sets := make([]string, len(keys))
	for n, a := range keys {
		sets[n] = a.ToSQL(c) + " = " + render(u.Assignments[a], c.In(ClauseWhere))
	}

	lines := []string{
		"UPDATE " + table,
		"SET " + strings.Join(sets, ", "),
	}
	return strings.Join(append(lines, restriction(table, u.Relation)...), "\n"), nil
}

// Deletion deletes the rows a relation selects.
type Deletion struct {
	Relation Relation
}

// ToSQL renders the DELETE statement.
func (d *Deletion) ToSQL() (string, error) {
	table, err := d.Relation.TableSQL(newContext(nil, ClauseTable, false))
	if err != nil {
		return "", err
	}

	lines := []string{"DELETE", "FROM " + table}
	return strings.Join(append(lines, restriction(table, d.Relation)...), "\n"), nil
}

// restriction renders the WHERE line shared by updates and deletes. A
// relation with a take or skip bound is restricted by rowid through a
// subquery holding its selects, orders and bounds: SQLite rejects LIMIT on
// UPDATE and DELETE unless built with SQLITE_ENABLE_UPDATE_DELETE_LIMIT.
func restriction(table string, r Relation) []string {
	c := newContext(nil, ClauseWhere, false)
	selects := r.Selects()
	n, taken := r.Taken()
	m, skipped := r.Skipped()

	if !taken && !skipped {
		if len(selects) == 0 {
			return nil
		}
		return []string{"WHERE " + renderAll(selects, c, "\n\tAND ")}
	}

	sub := []string{"SELECT rowid FROM " + table}
	if len(selects) > 0 {
		sub = append(sub, "WHERE "+renderAll(selects, c, " AND "))
	}
	if orders := r.Orders(); len(orders) > 0 {
		sub = append(sub, "ORDER BY "+renderAll(orders, c.In(ClauseOrder), ", "))
	}
	if !taken {
		n = -1
	}
	sub = append(sub, "LIMIT "+strconv.Itoa(n))
	if skipped {
		sub = append(sub, "OFFSET "+strconv.Itoa(m))
	}
	return []string{"WHERE rowid IN (" + strings.Join(sub, " ") + ")"}
}
