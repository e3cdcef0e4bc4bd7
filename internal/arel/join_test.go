package arel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arel/internal/arel"
	"github.com/roach88/arel/internal/expr"
	"github.com/roach88/arel/internal/testutil"
)

const userColumns = "users.id, users.name, users.age"
const photoColumns = "photos.id, photos.user_id, photos.camera_id"

func TestJoinCompletion(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)

	op, ok := users.Join(arel.With(photos)).(*arel.JoinOperation)
	require.True(t, ok, "joining a relation returns a JoinOperation")

	_, err := op.ToSQL()
	require.ErrorIs(t, err, arel.ErrIncompleteJoin)

	r := op.On(expr.Equal(users.Attr("id"), photos.Attr("user_id")))
	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", "+photoColumns+"\n"+
			"FROM users\n"+
			"INNER JOIN photos ON users.id = photos.user_id",
		sql)
}

func TestOnCompletesJoinWithoutAssertion(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)
	on := expr.Equal(users.Attr("id"), photos.Attr("user_id"))

	chained, err := arel.On(users.OuterJoin(arel.With(photos)), on).ToSQL()
	require.NoError(t, err)
	direct, err := users.OuterJoin(arel.With(photos)).(*arel.JoinOperation).On(on).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, direct, chained)

	raw := users.Join(arel.RawJoin("INNER JOIN photos ON photos.user_id = users.id"))
	assert.Same(t, raw, arel.On(raw, on))
	assert.Same(t, users, arel.On(users.Join(arel.With(nil)), on))
}

func TestJoinOperationAnswersForLeftInput(t *testing.T) {
	users := testutil.Users(nil)
	op := users.Join(arel.With(testutil.Photos(nil)))

	assert.Equal(t, "users", op.Name())
	assert.Equal(t, users.Attributes(), op.Attributes())
}

func TestIncompleteJoinFailsAnywhereInTree(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)
	cameras := testutil.Cameras(nil)

	tests := []struct {
		name     string
		relation arel.Relation
	}{
		{"wrapped", users.Join(arel.With(photos)).Select(expr.Equal(users.Attr("id"), 1)).Take(1)},
		{"right input", users.JoinOn(photos.Join(arel.With(cameras)), expr.Equal(users.Attr("id"), photos.Attr("user_id")))},
		{"aliased", users.Join(arel.With(photos)).Alias()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.relation.ToSQL()
			assert.ErrorIs(t, err, arel.ErrIncompleteJoin)
		})
	}
}

func TestOuterJoin(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)

	op, ok := users.OuterJoin(arel.With(photos)).(*arel.JoinOperation)
	require.True(t, ok)
	r := op.On(expr.Equal(users.Attr("id"), photos.Attr("user_id")))

	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", "+photoColumns+"\n"+
			"FROM users\n"+
			"LEFT OUTER JOIN photos ON users.id = photos.user_id",
		sql)
}

func TestRawJoin(t *testing.T) {
	users := testutil.Users(nil)

	r := users.Join(arel.RawJoin("INNER JOIN photos ON photos.user_id = users.id"))

	join, ok := r.(*arel.Join)
	require.True(t, ok)
	assert.Nil(t, join.Right())
	assert.Same(t, users, join.Left())

	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+"\n"+
			"FROM users\n"+
			"INNER JOIN photos ON photos.user_id = users.id",
		sql)
}

func TestJoinWithoutPredicates(t *testing.T) {
	users := testutil.Users(nil)
	cameras := testutil.Cameras(nil)

	sql, err := users.JoinOn(cameras).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", cameras.id, cameras.name\n"+
			"FROM users\n"+
			"INNER JOIN cameras",
		sql)
}

func TestJoinFoldsRightSelectsIntoOn(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)

	r := users.JoinOn(
		photos.Select(expr.Equal(photos.Attr("camera_id"), 7)),
		expr.Equal(users.Attr("id"), photos.Attr("user_id")),
	)

	assert.Empty(t, r.Selects())
	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", "+photoColumns+"\n"+
			"FROM users\n"+
			"INNER JOIN photos ON users.id = photos.user_id AND photos.camera_id = 7",
		sql)
}

func TestJoinTakesClausesFromLeft(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)

	left := users.Select(expr.GreaterThan(users.Attr("age"), 18)).Order(users.Attr("name")).Take(3)
	r := left.JoinOn(photos, expr.Equal(users.Attr("id"), photos.Attr("user_id")))

	assert.Len(t, r.Attributes(), 6)
	assert.Len(t, r.Selects(), 1)
	assert.Len(t, r.Orders(), 1)
	n, ok := r.Taken()
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestJoinRightWithBoundsIsDerivedTable(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)

	r := users.JoinOn(photos.Take(1), expr.Equal(users.Attr("id"), photos.Attr("user_id")))

	join, ok := r.(*arel.Join)
	require.True(t, ok)
	assert.IsType(t, &arel.Alias{}, join.Right())
	_, taken := r.Taken()
	assert.False(t, taken)

	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", "+photoColumns+"\n"+
			"FROM users\n"+
			"INNER JOIN (SELECT id, user_id, camera_id\nFROM photos\nLIMIT 1) AS photos ON users.id = photos.user_id",
		sql)
}

func TestSelfJoin(t *testing.T) {
	users := testutil.Users(nil)
	other := users.Alias()

	r := users.JoinOn(other, expr.Equal(users.Attr("id"), other.Attr("id")))

	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", users_2.id, users_2.name, users_2.age\n"+
			"FROM users\n"+
			"INNER JOIN users AS users_2 ON users.id = users_2.id",
		sql)
}

func TestSelfJoinWithoutAliasFails(t *testing.T) {
	users := testutil.Users(nil)
	photos := testutil.Photos(nil)
	adults := users.Select(expr.GreaterThan(users.Attr("age"), 18))
	on := expr.Equal(users.Attr("id"), users.Attr("age"))

	tests := []struct {
		name     string
		relation arel.Relation
	}{
		{"table", users.JoinOn(users, on)},
		{"selection on the right", users.JoinOn(adults, on)},
		{"selection on the left", adults.JoinOn(users, on)},
		{"table read by an earlier join", photos.
			JoinOn(users, expr.Equal(photos.Attr("user_id"), users.Attr("id"))).
			JoinOn(users.Project(users.Attr("id")), on)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.relation.ToSQL()
			require.ErrorIs(t, err, arel.ErrAmbiguousSelfJoin)
			assert.Contains(t, err.Error(), "users")
		})
	}
}

func TestSelfJoinOfSameNamedTables(t *testing.T) {
	users := testutil.Users(nil)
	others := testutil.Users(nil)

	r := users.JoinOn(others.Select(expr.GreaterThan(others.Attr("age"), 18)),
		expr.Equal(users.Attr("id"), others.Attr("id")))

	sql, err := r.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+userColumns+", users_2.id, users_2.name, users_2.age\n"+
			"FROM users\n"+
			"INNER JOIN users AS users_2 ON users.id = users_2.id AND users_2.age > 18",
		sql)
}

func TestAliasOfTable(t *testing.T) {
	users := testutil.Users(nil)
	a := users.Alias()

	assert.Equal(t, "users", a.Name())
	require.Len(t, a.Attributes(), 3)
	for i, attr := range a.Attributes() {
		assert.NotSame(t, users.Attributes()[i], attr)
		assert.True(t, attr.Match(users.Attributes()[i]))
	}

	sql, err := a.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, age\nFROM users", sql)
}

func TestAliasOfCompositeCarriesNoClauses(t *testing.T) {
	users := testutil.Users(nil)

	a := users.
		Select(expr.Equal(users.Attr("id"), 1)).
		Order(users.Attr("name")).
		Group(users.Attr("age")).
		Take(1).
		Skip(2).
		Alias()

	assert.Empty(t, a.Selects())
	assert.Empty(t, a.Orders())
	assert.Empty(t, a.Groupings())
	assert.False(t, a.Aggregation())
	_, ok := a.Taken()
	assert.False(t, ok)
	_, ok = a.Skipped()
	assert.False(t, ok)
}
