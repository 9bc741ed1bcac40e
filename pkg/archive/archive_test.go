package archive_test

import (
	"bytes"
	"testing"

	"github.com/pictool/pictool/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	a := archive.New()
	a.AddMember("m.o", []byte{1, 2, 3})
	a.AddMember("n.o", []byte{4, 5})

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, a))

	got, err := archive.Read(&buf)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "m.o", got.Members[0].Name)
	assert.Equal(t, []byte{1, 2, 3}, got.Members[0].Data)
	assert.False(t, got.HasIndex())
}

func TestIndexRoundTrip(t *testing.T) {
	a := archive.New()
	a.AddMember("m.o", []byte{1})
	a.Index = map[string]int{"bar": 0}

	var full bytes.Buffer
	require.NoError(t, archive.WriteIndex(&full, a))
	require.NoError(t, archive.Write(&full, a))

	got, err := archive.Read(&full)
	require.NoError(t, err)
	require.True(t, got.HasIndex())
	idx, ok := got.Lookup("bar")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	require.Len(t, got.Members, 1)
}

func TestLookupWithoutIndex(t *testing.T) {
	a := archive.New()
	_, ok := a.Lookup("anything")
	assert.False(t, ok)
}
