package memmap_test

import (
	"testing"

	"github.com/pictool/pictool/pkg/memmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOnUnusedByteIsZero(t *testing.T) {
	m := memmap.New()
	v, used, ann := m.Get(0x1234)
	assert.Equal(t, byte(0), v)
	assert.False(t, used)
	assert.Empty(t, ann.Section)
}

func TestPutMarksUsed(t *testing.T) {
	m := memmap.New()
	m.Put(10, 0xAB, ".text", "foo")
	v, used, ann := m.Get(10)
	require.True(t, used)
	assert.Equal(t, byte(0xAB), v)
	assert.Equal(t, ".text", ann.Section)
	assert.Equal(t, "foo", ann.Symbol)
}

func TestClearResetsByte(t *testing.T) {
	m := memmap.New()
	m.Put(10, 0xFF, "", "")
	m.Clear(10)
	v, used, _ := m.Get(10)
	assert.Equal(t, byte(0), v)
	assert.False(t, used)
}

func TestLE16RoundTrip(t *testing.T) {
	m := memmap.New()
	m.PutLE16(0, 0xBEEF, "", "")
	v, used := m.GetLE16(0)
	require.True(t, used)
	assert.Equal(t, uint16(0xBEEF), v)

	lo, _, _ := m.Get(0)
	hi, _, _ := m.Get(1)
	assert.Equal(t, byte(0xEF), lo)
	assert.Equal(t, byte(0xBE), hi)
}

func TestBE16RoundTrip(t *testing.T) {
	m := memmap.New()
	m.PutBE16(0, 0xBEEF, "", "")
	v, used := m.GetBE16(0)
	require.True(t, used)
	assert.Equal(t, uint16(0xBEEF), v)
}

func TestMovePreservesAnnotations(t *testing.T) {
	m := memmap.New()
	m.Put(0, 1, "sec", "sym")
	m.Put(1, 2, "sec", "sym")
	m.Move(0, 100, 2)

	v0, used0, ann0 := m.Get(100)
	v1, used1, _ := m.Get(101)
	assert.True(t, used0)
	assert.True(t, used1)
	assert.Equal(t, byte(1), v0)
	assert.Equal(t, byte(2), v1)
	assert.Equal(t, "sym", ann0.Symbol)
}

func TestDeleteAreaShiftsTail(t *testing.T) {
	m := memmap.New()
	m.Put(0, 0xAA, "", "")
	m.Put(2, 0xBB, "", "")
	m.Put(4, 0xCC, "", "")

	m.DeleteArea(2, 2) // remove the two bytes at [2,4)

	v0, used0, _ := m.Get(0)
	v2, used2, _ := m.Get(2)
	_, used4, _ := m.Get(4)

	assert.True(t, used0)
	assert.Equal(t, byte(0xAA), v0)
	assert.True(t, used2)
	assert.Equal(t, byte(0xCC), v2)
	assert.False(t, used4)
}

func TestUsedRangesCoalescesContiguous(t *testing.T) {
	m := memmap.New()
	m.Put(0, 1, "", "")
	m.Put(1, 1, "", "")
	m.Put(2, 1, "", "")
	m.Put(10, 1, "", "")

	ranges := m.UsedRanges()
	require.Len(t, ranges, 2)
	assert.Equal(t, memmap.Range{Start: 0, End: 3}, ranges[0])
	assert.Equal(t, memmap.Range{Start: 10, End: 11}, ranges[1])
}

func TestCountUsed(t *testing.T) {
	m := memmap.New()
	m.Put(0, 1, "", "")
	m.Put(1, 1, "", "")
	m.Put(5, 1, "", "")

	assert.Equal(t, 2, m.CountUsed(0, 4))
	assert.Equal(t, 3, m.CountUsed(0, 10))
}

func TestSetFlagOnUnusedByteIsNoop(t *testing.T) {
	m := memmap.New()
	m.SetFlag(5, true, true, memmap.AddrTypeLabel)
	_, used, _ := m.Get(5)
	assert.False(t, used)
}

func TestSetFlagMarksSecondWord(t *testing.T) {
	m := memmap.New()
	m.Put(5, 0, "", "")
	m.SetFlag(5, false, true, memmap.AddrTypeNone)
	_, _, ann := m.Get(5)
	assert.True(t, ann.SecondWord)
}
