package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		tables: users: columns: ["id", "name", "age"]
		tables: photos: ["id", "user_id"]
		tables: accounts: {}

		queries: adults: {
			from: "users"
			steps: [
				{where: {column: "age", op: ">=", value: 18}},
				{order: ["name"]},
				{take: 10},
			]
		}
		queries: everyone: from: "users"
	`)
	require.NoError(t, v.Err())

	cat, err := ParseCatalog(v)
	require.NoError(t, err)

	require.Len(t, cat.Tables, 3)
	assert.Equal(t, "users", cat.Tables[0].Name)
	assert.Equal(t, []string{"id", "name", "age"}, cat.Tables[0].Columns)
	assert.Equal(t, []string{"id", "user_id"}, cat.Tables[1].Columns)
	assert.Empty(t, cat.Tables[2].Columns, "columns are read from the database")

	require.Len(t, cat.Queries, 2)
	adults := cat.Queries[0]
	assert.Equal(t, "adults", adults.Name)
	assert.Equal(t, "users", adults.From)
	require.Len(t, adults.Steps, 3)

	assert.Equal(t, StepWhere, adults.Steps[0].Kind)
	assert.Equal(t, []Condition{{Column: "age", Op: ">=", Value: int64(18), Pos: adults.Steps[0].Conditions[0].Pos}}, adults.Steps[0].Conditions)
	assert.Equal(t, StepOrder, adults.Steps[1].Kind)
	assert.Equal(t, []string{"name"}, adults.Steps[1].Columns)
	assert.Equal(t, StepTake, adults.Steps[2].Kind)
	assert.Equal(t, 10, adults.Steps[2].N)

	assert.Equal(t, "everyone", cat.Queries[1].Name)
	assert.Empty(t, cat.Queries[1].Steps)
}

func TestParseCatalogRequiresQueries(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`tables: users: ["id"]`)
	require.NoError(t, v.Err())

	_, err := ParseCatalog(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one query is required")
}

func TestParseQueryMissingFrom(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`steps: [{take: 1}]`)
	require.NoError(t, v.Err())

	_, err := ParseQuery("broken", v)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "from", cerr.Field)
	assert.Contains(t, err.Error(), `query "broken": from is required`)
}

func TestParseConditions(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		from: "users"
		steps: [{where: [
			{column: "name", value: "bob"},
			{column: "age", op: " LIKE ", value: "1%"},
			{column: "id", op: "in", values: [1, 2.5, "x", true, null]},
			{column: "age", value: null},
			{column: "users.id", op: "<", ref: "photos.user_id"},
		]}]
	`)
	require.NoError(t, v.Err())

	q, err := ParseQuery("q", v)
	require.NoError(t, err)
	require.Len(t, q.Steps, 1)

	conds := q.Steps[0].Conditions
	require.Len(t, conds, 5)

	assert.Equal(t, "=", conds[0].Op, "op defaults to equality")
	assert.Equal(t, "bob", conds[0].Value)

	assert.Equal(t, "like", conds[1].Op, "op is trimmed and lowercased")

	assert.Equal(t, "in", conds[2].Op)
	assert.Equal(t, []any{int64(1), 2.5, "x", true, nil}, conds[2].Values)

	assert.Nil(t, conds[3].Value)
	assert.Nil(t, conds[3].Values)

	assert.Equal(t, "users.id", conds[4].Column)
	assert.Equal(t, "photos.user_id", conds[4].Ref)
}

func TestParseConditionMissingColumn(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		from: "users"
		steps: [{where: {value: 1}}]
	`)
	require.NoError(t, v.Err())

	_, err := ParseQuery("q", v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queries.q.steps[0].where.column")
}

func TestParseJoin(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		from: "users"
		steps: [
			{join: "photos"},
			{join: {
				source: "users"
				as: "friends"
				outer: true
				on: [{left: "users.friend_id", right: "friends.id"}]
			}},
			{alias: true},
		]
	`)
	require.NoError(t, v.Err())

	q, err := ParseQuery("q", v)
	require.NoError(t, err)
	require.Len(t, q.Steps, 3)

	assert.Equal(t, &JoinDef{Source: "photos"}, q.Steps[0].Join)
	assert.Equal(t, &JoinDef{
		Source: "users",
		As:     "friends",
		Outer:  true,
		On:     []JoinOn{{Left: "users.friend_id", Right: "friends.id"}},
	}, q.Steps[1].Join)
	assert.Equal(t, StepAlias, q.Steps[2].Kind)
}

func TestParseJoinErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing source", `{join: {as: "x"}}`, "join source is required"},
		{"half condition", `{join: {source: "photos", on: [{left: "id"}]}}`, "join condition needs left and right columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(`from: "users", steps: [` + tt.src + `]`)
			require.NoError(t, v.Err())

			_, err := ParseQuery("q", v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseStepErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no kind", `{limit: 1}`, "step must have exactly one of"},
		{"two kinds", `{take: 1, skip: 2}`, "found 2"},
		{"alias false", `{alias: false}`, "alias must be true"},
		{"take not int", `{take: "ten"}`, "int"},
		{"project not strings", `{project: [1, 2]}`, "string"},
		{"order not a list", `{order: {name: true}}`, "must be a string or a list of strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(`from: "users", steps: [` + tt.src + `]`)
			require.NoError(t, v.Err())

			_, err := ParseQuery("q", v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseStringShorthand(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		from: "users"
		steps: [{group: "age"}, {project: ["age", "count(*) as n"]}, {skip: 5}]
	`)
	require.NoError(t, v.Err())

	q, err := ParseQuery("q", v)
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, q.Steps[0].Columns)
	assert.Equal(t, []string{"age", "count(*) as n"}, q.Steps[1].Columns)
	assert.Equal(t, 5, q.Steps[2].N)
}

func TestParseNormalizesIdentifiers(t *testing.T) {
	ctx := cuecontext.New()
	// "e" followed by a combining acute accent composes to U+00E9.
	v := ctx.CompileString("from: \" cafe\u0301 \"")
	require.NoError(t, v.Err())

	q, err := ParseQuery("q", v)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", q.From)
}

func TestParseCatalogCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		queries: q: from: "users"
		queries: q: from: "photos"
	`)

	_, err := ParseCatalog(v)
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "from", Message: "from is required"}
	assert.Equal(t, "from: from is required", err.Error())
}

func TestLiteralUnsupportedKind(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`x: {a: 1}`).LookupPath(cue.ParsePath("x"))

	_, err := literal(v, "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value kind")
}
