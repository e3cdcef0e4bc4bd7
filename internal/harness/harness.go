package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/arel/internal/arel"
	"github.com/roach88/arel/internal/compiler"
	"github.com/roach88/arel/internal/expr"
	"github.com/roach88/arel/internal/session"
	"github.com/roach88/arel/internal/store"
)

// Harness is the test execution engine.
// It runs one scenario's flow against a fresh database with deterministic
// session ids, so traces are reproducible.
type Harness struct {
	engine  *session.Engine
	journal *session.Journal
	queries map[string]arel.Relation
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and run the setup SQL
// 2. Load, validate and build the catalog against the database
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions and return the result with its trace
//
// An error is returned only when the scenario cannot run at all. Failed
// expectations are reported through the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.ExecAll(ctx, scenario.Setup...); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	logger := slog.New(slog.DiscardHandler)
	journal := session.NewJournal()
	eng := session.New(st,
		session.WithLogger(logger),
		session.WithIDGenerator(session.NewSequenceGenerator(scenario.SessionPrefix)),
		session.WithJournal(journal),
	)

	queries, err := buildCatalog(ctx, scenario.Catalog, eng)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		engine:  eng,
		journal: journal,
		queries: queries,
		logger:  logger,
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)
	result.Trace = journal.Entries()

	// final_state reads go through an unjournaled engine so they stay out
	// of the trace.
	actx := &AssertionContext{
		Engine: session.New(st, session.WithLogger(logger)),
		Ctx:    ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// buildCatalog loads the catalog file and builds every query against eng.
// Validation problems are reported all at once.
func buildCatalog(ctx context.Context, path string, eng *session.Engine) (map[string]arel.Relation, error) {
	cat, err := compiler.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if errs := compiler.Validate(cat); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid catalog %s:\n%s", path, strings.Join(msgs, "\n"))
	}

	compiled, err := compiler.Build(ctx, cat, eng)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	queries := make(map[string]arel.Relation, len(compiled))
	for _, c := range compiled {
		queries[c.Name] = c.Relation
	}
	return queries, nil
}

// executeFlow runs every flow step in order. A failing step is recorded
// and the flow continues, so one run reports every mismatch.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		sr := StepResult{Step: i, Label: stepLabel(step)}

		var err error
		switch {
		case step.Query != "":
			sr.Rows, err = h.query(ctx, step.Query)
		case step.Insert != "":
			sr.Affected, err = h.write(ctx, step.Insert, func(r arel.Relation, t *arel.Table) (arel.Relation, error) {
				return r.Insert(ctx, record(t, step.Record))
			}, nil)
		case step.Update != "":
			sr.Affected, err = h.write(ctx, step.Update, func(r arel.Relation, t *arel.Table) (arel.Relation, error) {
				return r.Update(ctx, record(t, step.Record))
			}, step.Where)
		case step.Delete != "":
			sr.Affected, err = h.write(ctx, step.Delete, func(r arel.Relation, _ *arel.Table) (arel.Relation, error) {
				return r.Delete(ctx)
			}, step.Where)
		}
		if err != nil {
			sr.Error = err.Error()
		}

		h.logger.Debug("flow step executed", "step", i, "label", sr.Label, "error", sr.Error)

		for _, msg := range checkExpect(i, step.Expect, &sr) {
			result.AddError(msg)
		}
		result.Steps = append(result.Steps, sr)
	}
}

// query reads a catalog query and returns its rows keyed by column name.
func (h *Harness) query(ctx context.Context, name string) ([]map[string]any, error) {
	r, ok := h.queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", name)
	}

	rows, err := r.Call(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = row.Named()
	}
	return out, nil
}

// write applies a write command to table, restricted by where, and
// returns the number of rows it affected.
func (h *Harness) write(ctx context.Context, table string, apply func(arel.Relation, *arel.Table) (arel.Relation, error), where map[string]any) (int64, error) {
	t, err := h.engine.Table(ctx, table)
	if err != nil {
		return 0, err
	}

	r, err := restrict(t, where)
	if err != nil {
		return 0, err
	}

	if _, err := apply(r, t); err != nil {
		return 0, err
	}

	entries := h.journal.Entries()
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Rows, nil
}

// restrict selects the rows of t whose columns equal where's values.
// Keys are applied in sorted order so the SQL is deterministic.
func restrict(t *arel.Table, where map[string]any) (arel.Relation, error) {
	var r arel.Relation = t
	for _, key := range slices.Sorted(maps.Keys(where)) {
		a := t.Attr(key)
		if a == nil {
			return nil, fmt.Errorf("table %s has no column %q", t.Name(), key)
		}
		r = r.Select(expr.Equal(a, where[key]))
	}
	return r, nil
}

// record converts column-keyed values to an arel.Record of t. Unknown
// columns become bare columns of t, so the database reports them.
func record(t *arel.Table, values map[string]any) arel.Record {
	rec := make(arel.Record, len(values))
	for name, v := range values {
		a := t.Attr(name)
		if a == nil {
			a = arel.NewColumn(t, name)
		}
		rec[a] = v
	}
	return rec
}

func stepLabel(step FlowStep) string {
	switch {
	case step.Query != "":
		return "query " + step.Query
	case step.Insert != "":
		return "insert " + step.Insert
	case step.Update != "":
		return "update " + step.Update
	default:
		return "delete " + step.Delete
	}
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(index int, expect *ExpectClause, sr *StepResult) []string {
	if expect == nil {
		if sr.Error != "" {
			return []string{fmt.Sprintf("flow[%d] %s: unexpected error: %s", index, sr.Label, sr.Error)}
		}
		return nil
	}

	if expect.Error != "" {
		switch {
		case sr.Error == "":
			return []string{fmt.Sprintf("flow[%d] %s: expected error containing %q, step succeeded", index, sr.Label, expect.Error)}
		case !strings.Contains(sr.Error, expect.Error):
			return []string{fmt.Sprintf("flow[%d] %s: expected error containing %q, got %q", index, sr.Label, expect.Error, sr.Error)}
		}
		return nil
	}
	if sr.Error != "" {
		return []string{fmt.Sprintf("flow[%d] %s: unexpected error: %s", index, sr.Label, sr.Error)}
	}

	var errs []string
	if expect.Count != nil {
		got := sr.Affected
		if sr.Rows != nil {
			got = int64(len(sr.Rows))
		}
		if got != int64(*expect.Count) {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected count %d, got %d", index, sr.Label, *expect.Count, got))
		}
	}

	if len(expect.Rows) > len(sr.Rows) {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: expected at least %d rows, got %d", index, sr.Label, len(expect.Rows), len(sr.Rows)))
		return errs
	}
	for i, want := range expect.Rows {
		for _, key := range slices.Sorted(maps.Keys(want)) {
			got, ok := sr.Rows[i][key]
			if !ok {
				errs = append(errs, fmt.Sprintf("flow[%d] %s: row %d has no column %q", index, sr.Label, i, key))
				continue
			}
			if !stateValuesEqual(want[key], got) {
				errs = append(errs, fmt.Sprintf("flow[%d] %s: row %d column %q: expected %v (type %T), got %v (type %T)",
					index, sr.Label, i, key, want[key], want[key], got, got))
			}
		}
	}
	return errs
}
