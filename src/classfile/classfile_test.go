package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
)

func TestWrongMagic(t *testing.T) {
	_, err := Parse(bytereader.New([]byte{0x00, 0x00, 0x00, 0x00}))
	require.Error(t, err)
	assert.True(t, clserr.Is(err, clserr.WrongMagic))
}

func TestTruncatedAfterMagicFailsIo(t *testing.T) {
	_, err := Parse(bytereader.New([]byte{0xCA, 0xFE, 0xBA, 0xBE}))
	require.Error(t, err)
	assert.False(t, clserr.Is(err, clserr.WrongMagic))
	assert.True(t, clserr.Is(err, clserr.Io))
}

// minimalClass builds the smallest legal class file: magic, version,
// empty constant pool, access flags, this/super (both 0), no interfaces,
// no fields, no methods, no attributes.
func minimalClass() []byte {
	return []byte{
		0xCA, 0xFE, 0xBA, 0xBE,
		0x00, 0x00, // minor
		0x00, 0x34, // major = 52
		0x00, 0x01, // cp count = 1 -> 0 entries
		0x00, 0x20, // access flags
		0x00, 0x00, // this class
		0x00, 0x00, // super class
		0x00, 0x00, // interfaces count
		0x00, 0x00, // fields count
		0x00, 0x00, // methods count
		0x00, 0x00, // attributes count
	}
}

func TestParseMinimalClass(t *testing.T) {
	c, err := Parse(bytereader.New(minimalClass()))
	require.NoError(t, err)
	assert.EqualValues(t, 52, c.MajorVersion)
	assert.Equal(t, 1, c.Pool.Len())
	assert.Empty(t, c.Fields)
	assert.Empty(t, c.Methods)
}

func TestAccessFlagsTruncated(t *testing.T) {
	buf := minimalClass()
	// access flags field is at offset 10-11; set to 0xFFFF.
	buf[10] = 0xFF
	buf[11] = 0xFF
	c, err := Parse(bytereader.New(buf))
	require.NoError(t, err)
	assert.Equal(t, RecognisedAccessFlags, c.AccessFlags)
}
