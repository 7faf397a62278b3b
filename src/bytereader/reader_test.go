package bytereader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/clserr"
)

func TestPrimitives(t *testing.T) {
	buf := []byte{
		0xFF,       // u8 -> 255, i8 -> -1
		0xFF, 0xFE, // u16 -> 65534, i16 -> -2
		0x00, 0x00, 0x00, 0x01, // u32 -> 1
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, // u64 -> 2
	}
	r := New(buf)

	u8, err := r.U8()
	require.NoError(t, err)
	assert.EqualValues(t, 255, u8)

	i8, err := r.I8()
	require.NoError(t, err)
	assert.EqualValues(t, -1, i8)

	u16, err := r.U16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xFFFE, u16)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, u32)

	u64, err := r.U64()
	require.NoError(t, err)
	assert.EqualValues(t, 2, u64)

	assert.Equal(t, 0, r.Remaining())
}

func TestShortReadFailsIo(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	_, err := r.U32()
	require.Error(t, err)
	assert.True(t, clserr.Is(err, clserr.Io))
}

func TestSubReaderIsBounded(t *testing.T) {
	r := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	sub, err := r.Sub(3)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, 2, r.Remaining())

	_, err = sub.ReadExact(4)
	assert.Error(t, err)
}

func TestReadExactAdvancesCursor(t *testing.T) {
	r := New([]byte{1, 2, 3, 4})
	b, err := r.ReadExact(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
	assert.Equal(t, 2, r.Pos())
}
