package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/constpool"
)

func poolWithUTF8(names ...string) *constpool.Pool {
	p := &constpool.Pool{Entries: make([]*constpool.Entry, len(names)+1)}
	for i, n := range names {
		p.Entries[i+1] = &constpool.Entry{Tag: constpool.TagUTF8, UTF8: n}
	}
	return p
}

func TestConstantValueAttribute(t *testing.T) {
	pool := poolWithUTF8("ConstantValue")
	buf := []byte{
		0x00, 0x01, // name index -> "ConstantValue"
		0x00, 0x00, 0x00, 0x02, // length 2
		0xFE, 0xFE, // cp index 0xFEFE
	}
	a, err := ParseOne(bytereader.New(buf), pool)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, KindConstantValue, a.Kind)
	assert.EqualValues(t, 0xFEFE, a.ConstantValueIndex)
}

func TestUnknownAttributeSkippedExactly(t *testing.T) {
	pool := poolWithUTF8("Unknown")
	buf := []byte{
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x05,
		0x99, // trailing byte after the attribute, untouched
	}
	r := bytereader.New(buf)
	a, err := ParseOne(r, pool)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, 1, r.Remaining())
}

func TestZeroLengthUnknownAttributeConsumesNoPayload(t *testing.T) {
	pool := poolWithUTF8("Mystery")
	buf := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	r := bytereader.New(buf)
	a, err := ParseOne(r, pool)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, 0, r.Remaining())
}

func TestInvalidNameIndexFails(t *testing.T) {
	pool := poolWithUTF8("X")
	buf := []byte{0x00, 0x09, 0x00, 0x00, 0x00, 0x00}
	_, err := ParseOne(bytereader.New(buf), pool)
	require.Error(t, err)
}

func TestCodeAttribute(t *testing.T) {
	pool := poolWithUTF8("Code")
	code := []byte{0x03, 0x04, 0x60, 0xAC} // iconst_0, iconst_1, iadd, ireturn
	var payload []byte
	payload = append(payload, 0x00, 0x02) // max stack
	payload = append(payload, 0x00, 0x01) // max locals
	payload = append(payload, 0x00, 0x00, 0x00, byte(len(code)))
	payload = append(payload, code...)
	payload = append(payload, 0x00, 0x00) // exception table len 0
	payload = append(payload, 0x00, 0x00) // nested attribute count 0

	var buf []byte
	buf = append(buf, 0x00, 0x01)
	length := len(payload)
	buf = append(buf, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	buf = append(buf, payload...)

	a, err := ParseOne(bytereader.New(buf), pool)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, KindCode, a.Kind)
	assert.EqualValues(t, 2, a.Code.MaxStack)
	assert.EqualValues(t, 1, a.Code.MaxLocals)
	assert.Equal(t, code, a.Code.Code)
}

func TestParseArrayDropsUnknownEntries(t *testing.T) {
	pool := poolWithUTF8("Synthetic", "Unknown")
	var buf []byte
	buf = append(buf, 0x00, 0x02) // count = 2
	buf = append(buf, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00) // Synthetic, len 0
	buf = append(buf, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00) // Unknown, len 1

	attrs, err := ParseArray(bytereader.New(buf), pool)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, KindSynthetic, attrs[0].Kind)
}
