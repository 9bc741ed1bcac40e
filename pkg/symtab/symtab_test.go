package symtab_test

import (
	"testing"

	"github.com/pictool/pictool/pkg/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndLookup(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Insert("foo", 42, nil)
	e, ok := tbl.Lookup("foo")
	require.True(t, ok)
	assert.EqualValues(t, 42, e.Value)
}

func TestCaseSensitiveByDefault(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Insert("Foo", 1, nil)
	_, ok := tbl.Lookup("foo")
	assert.False(t, ok)
}

func TestCaseInsensitiveFolding(t *testing.T) {
	tbl := symtab.New(true)
	tbl.Insert("Foo", 1, nil)
	e, ok := tbl.Lookup("foo")
	require.True(t, ok)
	assert.EqualValues(t, 1, e.Value)
}

func TestStackedLookupSearchesTopDown(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Insert("x", 1, nil)
	tbl.Push()
	tbl.Insert("x", 2, nil)

	e, ok := tbl.Lookup("x")
	require.True(t, ok)
	assert.EqualValues(t, 2, e.Value)

	tbl.Pop()
	e, ok = tbl.Lookup("x")
	require.True(t, ok)
	assert.EqualValues(t, 1, e.Value)
}

func TestInsertOnlyAffectsTopScope(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Push()
	tbl.Insert("y", 1, nil)
	tbl.Pop()
	_, ok := tbl.Lookup("y")
	assert.False(t, ok)
}

func TestPopLastScopePanics(t *testing.T) {
	tbl := symtab.New(false)
	assert.Panics(t, func() { tbl.Pop() })
}

func TestIterPreservesInsertionOrderWithinScope(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Insert("b", 1, nil)
	tbl.Insert("a", 2, nil)
	tbl.Insert("c", 3, nil)

	entries := tbl.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "a", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
}

func TestIterSkipsShadowedNames(t *testing.T) {
	tbl := symtab.New(false)
	tbl.Insert("x", 1, nil)
	tbl.Push()
	tbl.Insert("x", 2, nil)

	entries := tbl.Iter()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].Value)
}
