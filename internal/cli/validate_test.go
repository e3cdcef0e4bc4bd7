package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arel/internal/compiler"
)

func TestValidateValidCatalog(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Catalog valid: 1 table(s), 2 query(s)")
}

func TestValidateValidCatalogJSON(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "validate", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Tables)
	assert.Equal(t, 2, resp.Data.Queries)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/catalog")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestValidateSemanticErrors(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

queries: recent: {
	from: "users"
	steps: [
		{take: -1},
		{where: {column: "age", op: "~~", value: 1}},
	]
}
`})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrNegativeBound)
	assert.Contains(t, out, compiler.ErrInvalidOperator)
}

func TestValidateCyclicQueries(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

queries: a: {from: "b"}
queries: b: {from: "a"}
`})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, compiler.ErrCyclicReference)
}

func TestValidateCollectsParseAndSemanticErrors(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": `
package catalog

queries: nosource: {steps: [{take: 1}]}
queries: negative: {
	from: "users"
	steps: [{skip: -5}]
}
`})

	out, err := execute(t, "validate", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	codes := make([]string, len(resp.Data.Errors))
	for i, e := range resp.Data.Errors {
		codes[i] = e.Code
	}
	assert.Contains(t, codes, ErrCodeMissingFrom)
	assert.Contains(t, codes, compiler.ErrNegativeBound)
}

func TestValidateUnsupportedFile(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.json": "{}"})

	out, err := execute(t, "validate", filepath.Join(dir, "catalog.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeUnsupported)
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"catalog.cue": usersCatalog})

	out, err := execute(t, "validate", dir, "--verbose")
	require.NoError(t, err)
	assert.NotContains(t, out, "Validating query")
}
