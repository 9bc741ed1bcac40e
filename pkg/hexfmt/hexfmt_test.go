package hexfmt_test

import (
	"bytes"
	"testing"

	"github.com/pictool/pictool/pkg/hexfmt"
	"github.com/pictool/pictool/pkg/memmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	f, err := hexfmt.Lookup("INHX32")
	require.NoError(t, err)
	assert.Equal(t, hexfmt.Inhx32, f)

	_, err = hexfmt.Lookup("bogus")
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	mem := memmap.New()
	mem.Put(0, 0x30, "", "")
	mem.Put(1, 0x3F, "", "")
	mem.Put(0x20000, 0xAA, "", "") // forces an extended-linear-address record

	var buf bytes.Buffer
	require.NoError(t, hexfmt.Write(&buf, mem, hexfmt.Inhx32, hexfmt.LF))

	got := memmap.New()
	require.NoError(t, hexfmt.Read(bytes.NewReader(buf.Bytes()), got))

	for _, addr := range []uint32{0, 1, 0x20000} {
		wantByte, _, _ := mem.Get(addr)
		gotByte, used, _ := got.Get(addr)
		assert.True(t, used)
		assert.Equal(t, wantByte, gotByte)
	}
}

func TestWriteUsesCRLFWhenRequested(t *testing.T) {
	mem := memmap.New()
	mem.Put(0, 0x00, "", "")

	var buf bytes.Buffer
	require.NoError(t, hexfmt.Write(&buf, mem, hexfmt.Inhx16, hexfmt.CRLF))
	assert.Contains(t, buf.String(), "\r\n")
}
