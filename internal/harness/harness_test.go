package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arel/internal/session"
)

const usersTable = "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)"

func intp(n int) *int { return &n }

// catalogFile writes a catalog into a temp dir and returns its path.
func catalogFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const adultsCatalog = `
queries: adults: {
	from: "users"
	steps: [
		{where: {column: "age", op: ">=", value: 18}},
		{order: "name"},
		{project: ["name"]},
	]
}
`

func TestRun_QueryAfterInsert(t *testing.T) {
	scenario := &Scenario{
		Name:          "insert_then_read",
		Description:   "Inserted rows are visible to catalog queries",
		Catalog:       catalogFile(t, adultsCatalog),
		Setup:         []string{usersTable},
		SessionPrefix: "t",
		Flow: []FlowStep{
			{Insert: "users", Record: map[string]any{"id": 1, "name": "alice", "age": 30}},
			{Insert: "users", Record: map[string]any{"id": 2, "name": "bob", "age": 12}},
			{Query: "adults", Expect: &ExpectClause{Count: intp(1), Rows: []map[string]any{{"name": "alice"}}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, session.KindInsert, result.Trace[0].Kind)
	assert.Equal(t, "t-1", result.Trace[0].Session)
	assert.Equal(t, "INSERT INTO users (id, name, age) VALUES (1, 'alice', 30)", result.Trace[0].SQL)
	assert.Equal(t, session.KindRead, result.Trace[2].Kind)
	assert.Equal(t, "SELECT name\nFROM users\nWHERE age >= 18\nORDER BY name", result.Trace[2].SQL)
	assert.Equal(t, int64(1), result.Trace[2].Rows)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, "query adults", result.Steps[2].Label)
	assert.Equal(t, []map[string]any{{"name": "alice"}}, result.Steps[2].Rows)
}

func TestRun_UpdateAndDeleteWithWhere(t *testing.T) {
	scenario := &Scenario{
		Name:        "writes",
		Description: "Updates and deletes restrict by where",
		Catalog:     catalogFile(t, adultsCatalog),
		Setup: []string{
			usersTable,
			"INSERT INTO users (id, name, age) VALUES (1, 'alice', 30), (2, 'bob', 12), (3, 'carol', 12)",
		},
		Flow: []FlowStep{
			{Update: "users", Record: map[string]any{"age": 13}, Where: map[string]any{"age": 12}, Expect: &ExpectClause{Count: intp(2)}},
			{Delete: "users", Where: map[string]any{"name": "alice"}, Expect: &ExpectClause{Count: intp(1)}},
			{Query: "adults", Expect: &ExpectClause{Count: intp(0)}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Kind: "update", SQL: "WHERE age = 12"},
			{Type: AssertTraceContains, Kind: "delete", SQL: "WHERE name = 'alice'"},
			{Type: AssertFinalState, Table: "users", Where: map[string]any{"id": 3}, Expect: map[string]any{"age": 13}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, int64(2), result.Steps[0].Affected)
	assert.Equal(t, int64(1), result.Steps[1].Affected)
	assert.Empty(t, result.Steps[2].Rows)
}

func TestRun_FinalStateReadsStayOutOfTrace(t *testing.T) {
	scenario := &Scenario{
		Name:        "untraced",
		Description: "final_state does not add statements to the trace",
		Catalog:     catalogFile(t, adultsCatalog),
		Setup:       []string{usersTable},
		Flow: []FlowStep{
			{Insert: "users", Record: map[string]any{"id": 1, "name": "alice", "age": 30}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "users", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "alice"}},
			{Type: AssertTraceCount, Kind: "read", Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Trace, 1)
}

func TestRun_ExpectMismatchesFail(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Failed expectations are reported, not returned",
		Catalog:     catalogFile(t, adultsCatalog),
		Setup:       []string{usersTable},
		Flow: []FlowStep{
			{Insert: "users", Record: map[string]any{"id": 1, "name": "alice", "age": 30}},
			{Query: "adults", Expect: &ExpectClause{Count: intp(2)}},
			{Query: "adults", Expect: &ExpectClause{Rows: []map[string]any{{"name": "bob"}}}},
			{Query: "adults", Expect: &ExpectClause{Rows: []map[string]any{{"name": "alice"}, {"name": "bob"}}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "flow[1] query adults: expected count 2, got 1")
	assert.Contains(t, result.Errors[1], `flow[2] query adults: row 0 column "name": expected bob`)
	assert.Contains(t, result.Errors[2], "expected at least 2 rows, got 1")
}

func TestRun_ExpectedErrors(t *testing.T) {
	scenario := &Scenario{
		Name:        "errors",
		Description: "Step errors can be expected",
		Catalog:     catalogFile(t, adultsCatalog),
		Setup:       []string{usersTable},
		Flow: []FlowStep{
			{Insert: "users", Record: map[string]any{"id": 1, "name": "alice"}},
			{Insert: "users", Record: map[string]any{"id": 1, "name": "again"}, Expect: &ExpectClause{Error: "UNIQUE constraint failed"}},
			{Query: "missing", Expect: &ExpectClause{Error: `unknown query "missing"`}},
			{Delete: "users", Where: map[string]any{"height": 1}, Expect: &ExpectClause{Error: `no column "height"`}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Kind: "insert", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.NotEmpty(t, result.Trace[1].Error)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "A step without expect must succeed",
		Catalog:     catalogFile(t, adultsCatalog),
		Setup:       []string{usersTable},
		Flow: []FlowStep{
			{Insert: "users", Record: map[string]any{"id": 1}},
			{Insert: "users", Record: map[string]any{"id": 2, "name": "bob"}, Expect: &ExpectClause{Error: "constraint"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0] insert users: unexpected error")
	assert.Contains(t, result.Errors[1], "step succeeded")
}

func TestRun_ScenarioErrors(t *testing.T) {
	t.Run("setup failure", func(t *testing.T) {
		_, err := Run(&Scenario{
			Name:    "bad_setup",
			Catalog: catalogFile(t, adultsCatalog),
			Setup:   []string{"CREATE TABLE"},
			Flow:    []FlowStep{{Query: "adults"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute setup")
	})

	t.Run("invalid catalog", func(t *testing.T) {
		_, err := Run(&Scenario{
			Name:    "bad_catalog",
			Catalog: catalogFile(t, `queries: q: {from: "users", steps: [{take: -1}]}`),
			Setup:   []string{usersTable},
			Flow:    []FlowStep{{Query: "q"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid catalog")
		assert.Contains(t, err.Error(), "E111")
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := Run(&Scenario{
			Name:    "no_table",
			Catalog: catalogFile(t, adultsCatalog),
			Flow:    []FlowStep{{Query: "adults"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build catalog")
	})
}

func TestRun_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/user_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Steps, second.Steps)
}
