package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// Cycle is a set of queries that select from each other. A query cannot be
// compiled while it depends on itself, so every cycle is an error.
type Cycle struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds queries that depend on themselves through their from
// source or a join source. Table references are leaves and never close a
// cycle.
//
// Strongly connected components of the query graph are found with
// Tarjan's algorithm; every component of two or more queries, and every
// query that references itself, is reported. Cycles are ordered by the
// first name of their path.
func AnalyzeCycles(cat *Catalog) []Cycle {
	if cat == nil || len(cat.Queries) == 0 {
		return []Cycle{}
	}

	g := newQueryGraph(cat)
	cycles := []Cycle{}
	for _, comp := range g.components() {
		if len(comp) == 1 && !slices.Contains(g.edges[comp[0]], comp[0]) {
			continue
		}
		cycles = append(cycles, g.cycle(comp))
	}

	slices.SortFunc(cycles, func(a, b Cycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// queryGraph holds, per query, the queries it reads from in declaration
// order.
type queryGraph struct {
	nodes []string // sorted
	edges map[string][]string
}

func newQueryGraph(cat *Catalog) *queryGraph {
	g := &queryGraph{edges: make(map[string][]string, len(cat.Queries))}
	for _, q := range cat.Queries {
		if _, ok := g.edges[q.Name]; !ok {
			g.nodes = append(g.nodes, q.Name)
			g.edges[q.Name] = nil
		}
	}
	slices.Sort(g.nodes)

	for _, q := range cat.Queries {
		for _, ref := range sources(q) {
			if _, isQuery := g.edges[ref]; isQuery {
				g.edges[q.Name] = append(g.edges[q.Name], ref)
			}
		}
	}
	return g
}

// sources lists what a query reads from: its from source, then every join
// source.
func sources(q QueryDef) []string {
	refs := []string{q.From}
	for _, step := range q.Steps {
		if step.Kind == StepJoin && step.Join != nil {
			refs = append(refs, step.Join.Source)
		}
	}
	return refs
}

// tarjan is the traversal state of one components call.
type tarjan struct {
	g       *queryGraph
	next    int
	index   map[string]int
	low     map[string]int
	stack   []string
	onStack map[string]bool
	out     [][]string
}

// components returns the strongly connected components of g. Roots are
// visited in sorted order so the result is deterministic.
func (g *queryGraph) components() [][]string {
	t := &tarjan{
		g:       g,
		index:   make(map[string]int, len(g.nodes)),
		low:     make(map[string]int, len(g.nodes)),
		onStack: make(map[string]bool, len(g.nodes)),
	}
	for _, n := range g.nodes {
		if _, seen := t.index[n]; !seen {
			t.visit(n)
		}
	}
	return t.out
}

func (t *tarjan) visit(v string) {
	t.index[v], t.low[v] = t.next, t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.edges[v] {
		if _, seen := t.index[w]; !seen {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var comp []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.out = append(t.out, comp)
}

// cycle describes a component as a closed path starting at its
// lexically first member.
func (g *queryGraph) cycle(comp []string) Cycle {
	if len(comp) == 1 {
		name := comp[0]
		return Cycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("query %s selects from itself", name),
		}
	}

	path := g.walk(comp)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("cyclic query references: %s", strings.Join(path, " → ")),
	}
}

// walk follows the first edge to an unvisited component member from the
// lowest-named member until the walk returns to it or gets stuck.
func (g *queryGraph) walk(comp []string) []string {
	start := slices.Min(comp)
	inComp := make(map[string]bool, len(comp))
	for _, n := range comp {
		inComp[n] = true
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, w := range g.edges[cur] {
			if inComp[w] && (w == start || !visited[w]) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
