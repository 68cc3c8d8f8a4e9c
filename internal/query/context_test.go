package query

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryContext(t *testing.T) {
	m := testMapping(t)
	qc := NewQueryContext(m.Get("Building"))

	from := qc.FromTable()
	require.NotNil(t, from)
	assert.Equal(t, "t1", from.Alias)
	assert.Equal(t, "building", from.Name)
	assert.Same(t, from, qc.ToTable())
	assert.Same(t, from, qc.Select().From())

	root := qc.BuildContext()
	assert.Same(t, m.Get("Building"), root.Node().Element())
	assert.Same(t, from, root.Table())
	assert.Empty(t, root.TableContext())
	assert.False(t, root.HasSubContexts())

	_, ok := qc.TargetColumn()
	assert.False(t, ok)
	assert.False(t, qc.HasPredicates())
	assert.False(t, qc.RequiresDistinct())
}

func TestApplyPredicatesKeepsOrderAndClears(t *testing.T) {
	qc := NewQueryContext(testMapping(t).Get("Building"))

	a := sq.Eq{"a": 1}
	b := sq.Eq{"b": 2}
	c := sq.Eq{"c": 3}
	qc.AddPredicate(a)
	qc.AddPredicates(b, c)
	require.True(t, qc.HasPredicates())
	require.Len(t, qc.Predicates(), 3)

	qc.ApplyPredicates()
	assert.False(t, qc.HasPredicates())
	assert.Equal(t, []sq.Sqlizer{a, b, c}, qc.Select().Selections())

	qc.ApplyPredicates()
	assert.Len(t, qc.Select().Selections(), 3, "applying an empty buffer is a no-op")
}

func TestUnsetPredicatesLeavesSelectUntouched(t *testing.T) {
	qc := NewQueryContext(testMapping(t).Get("Building"))

	qc.AddPredicate(sq.Eq{"a": 1})
	qc.ApplyPredicates()
	qc.AddPredicates(sq.Eq{"b": 2}, sq.Eq{"c": 3})

	qc.UnsetPredicates()
	assert.False(t, qc.HasPredicates())
	assert.Len(t, qc.Select().Selections(), 1)
}

func TestTargetColumn(t *testing.T) {
	qc := NewQueryContext(testMapping(t).Get("Building"))
	col := qc.FromTable().Column("measured_height")

	qc.SetTargetColumn(col)
	got, ok := qc.TargetColumn()
	require.True(t, ok)
	assert.Equal(t, `"t1"."measured_height"`, got.String())
}
