package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileCUE(t *testing.T) {
	path := writeFile(t, "catalog.cue", `
tables: users: ["id", "name"]
queries: named: {
	from: "users"
	steps: [{order: ["name"]}]
}
`)

	cat, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cat.Queries, 1)
	assert.Equal(t, "named", cat.Queries[0].Name)
	assert.Equal(t, path, cat.Queries[0].Pos.Filename())
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
tables:
  users: [id, name, age]
queries:
  adults:
    from: users
    steps:
      - where: {column: age, op: ">=", value: 18}
      - take: 5
`)

	cat, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cat.Tables, 1)
	assert.Equal(t, []string{"id", "name", "age"}, cat.Tables[0].Columns)

	require.Len(t, cat.Queries, 1)
	q := cat.Queries[0]
	require.Len(t, q.Steps, 2)
	assert.Equal(t, int64(18), q.Steps[0].Conditions[0].Value)
	assert.Equal(t, 5, q.Steps[1].N)
}

func TestLoadFileYAMLAndCUEAgree(t *testing.T) {
	cuePath := writeFile(t, "catalog.cue", `
tables: users: ["id", "name", "age"]
queries: adults: {
	from: "users"
	steps: [{where: {column: "age", op: ">", value: 17}}, {project: ["name"]}]
}
`)
	yamlPath := writeFile(t, "catalog.yml", `
tables:
  users: [id, name, age]
queries:
  adults:
    from: users
    steps:
      - where: {column: age, op: ">", value: 17}
      - project: [name]
`)

	fromCUE, err := LoadFile(cuePath)
	require.NoError(t, err)
	fromYAML, err := LoadFile(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, sqlOf(t, fromCUE), sqlOf(t, fromYAML))
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "catalog.json", `{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported catalog file")
	})

	t.Run("CUE syntax error", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "broken.cue", `queries: {`))
		require.Error(t, err)
	})

	t.Run("YAML syntax error", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "broken.yaml", "queries:\n  - [unclosed"))
		require.Error(t, err)
	})
}

// sqlOf builds every query of cat statically and returns their SQL.
func sqlOf(t *testing.T, cat *Catalog) []string {
	t.Helper()
	compiled, err := Build(t.Context(), cat, StaticBinder{})
	require.NoError(t, err)

	out := make([]string, len(compiled))
	for i, c := range compiled {
		out[i] = sql(t, c.Relation)
	}
	return out
}
