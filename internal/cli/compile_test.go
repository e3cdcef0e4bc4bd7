package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arel/internal/store"
)

const usersCatalog = `
package catalog

tables: users: ["id", "name", "age"]

queries: adults: {
	from: "users"
	steps: [
		{where: {column: "age", op: ">=", value: 18}},
		{order: "name"},
		{project: ["name"]},
	]
}

queries: youngest: {
	from: "users"
	steps: [
		{order: "age"},
		{take: 1},
	]
}
`

const (
	adultsSQL   = "SELECT name\nFROM users\nWHERE age >= 18\nORDER BY name"
	youngestSQL = "SELECT id, name, age\nFROM users\nORDER BY age\nLIMIT 1"
)

// writeCatalogDir writes each file into a fresh directory and returns it.
func writeCatalogDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// seedDatabase creates a SQLite file holding a users table.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.ExecAll(context.Background(),
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)",
		"INSERT INTO users (id, name, age) VALUES (1, 'alice', 30), (2, 'bob', 16), (3, 'carol', 41)",
	))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileValidCatalog(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "compile", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 query(s)")
	assert.Contains(t, out, "-- adults\n"+adultsSQL+";")
	assert.Contains(t, out, "-- youngest\n"+youngestSQL+";")
}

func TestCompileValidCatalogJSON(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "compile", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []CompiledQuery{
		{Name: "adults", SQL: adultsSQL},
		{Name: "youngest", SQL: youngestSQL},
	}, resp.Data.Queries)
}

func TestCompileYAMLFile(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.yaml": `
tables:
  users: [id, name, age]
queries:
  adults:
    from: users
    steps:
      - where: {column: age, op: ">=", value: 18}
      - order: name
      - project: [name]
`})

	out, err := execute(t, "compile", filepath.Join(dir, "catalog.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, adultsSQL)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})
	outputFile := filepath.Join(t.TempDir(), "queries.json")

	out, err := execute(t, "compile", dir, "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled queries to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Queries, 2)
	assert.Equal(t, "adults", result.Queries[0].Name)
	assert.Equal(t, adultsSQL, result.Queries[0].SQL)
}

func TestCompileReadsColumnsFromDatabase(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

queries: everyone: {from: "users"}
`})

	_, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "compile", dir, "--db", seedDatabase(t))
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT id, name, age\nFROM users;")
}

func TestCompileMissingDatabase(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "compile", dir, "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeDatabase)
	assert.Contains(t, out, "database not found")
}

func TestCompileNonExistentPath(t *testing.T) {
	out, err := execute(t, "compile", "/nonexistent/catalog")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestCompileInvalidCatalog(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

tables: users: ["id", "name", "age"]
queries: broken: {
	from: "users"
	steps: [{where: {column: "age", op: "~~", value: 18}}]
}
`})

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "E110")
}

func TestCompileInvalidCatalogJSON(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

queries: broken: {
	from: "users"
	steps: [{take: 1, skip: 2}]
}
`})

	out, err := execute(t, "compile", dir, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidStep, resp.Error.Code)
}

func TestCompileVerboseOutput(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"compile", dir, "-v"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Read 1 catalog file(s)")
	assert.Contains(t, errBuf.String(), "Compiling query: adults")
	assert.NotContains(t, buf.String(), "Compiling query")
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"a.cue":     "",
		"b.cue":     "",
		"notes.txt": "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.cue"), nil, 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue"), filepath.Join(dir, "b.cue")}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		code  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"file", ErrCodeUnsupported},
		{"from", ErrCodeMissingFrom},
		{"queries", ErrCodeNoQueries},
		{"tables.users.columns", ErrCodeInvalidTable},
		{"queries.adults.steps[0].where", ErrCodeInvalidStep},
		{"queries.adults", ErrCodeGeneric},
		{"", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.code, MapFieldToErrorCode(tt.field))
		})
	}
}
