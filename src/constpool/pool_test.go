package constpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/bytereader"
)

func TestEmptyPool(t *testing.T) {
	// count = 1 means zero entries.
	r := bytereader.New([]byte{0x00, 0x01})
	p, err := Parse(r)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
	assert.Nil(t, p.Get(1))
}

func TestUTF8AndClassEntry(t *testing.T) {
	// count = 3: entry 1 = UTF8 "Foo", entry 2 = Class -> #1
	buf := []byte{
		0x00, 0x03,
		byte(TagUTF8), 0x00, 0x03, 'F', 'o', 'o',
		byte(TagClass), 0x00, 0x01,
	}
	p, err := Parse(bytereader.New(buf))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	s, ok := p.GetString(1)
	require.True(t, ok)
	assert.Equal(t, "Foo", s)

	name, ok := p.GetClassName(2)
	require.True(t, ok)
	assert.Equal(t, "Foo", name)

	// wrong-tag lookup returns absent.
	_, ok = p.GetClassName(1)
	assert.False(t, ok)
}

func TestUnknownTagFails(t *testing.T) {
	buf := []byte{0x00, 0x02, 0x7F}
	_, err := Parse(bytereader.New(buf))
	require.Error(t, err)
}

func TestInvalidUTF8Fails(t *testing.T) {
	buf := []byte{
		0x00, 0x02,
		byte(TagUTF8), 0x00, 0x01, 0xFF,
	}
	_, err := Parse(bytereader.New(buf))
	require.Error(t, err)
}

func TestMethodRefResolution(t *testing.T) {
	// 1: UTF8 "Main", 2: Class -> 1, 3: UTF8 "main", 4: UTF8 "()V",
	// 5: NameAndType(3,4), 6: MethodRef(2,5)
	buf := []byte{
		0x00, 0x07,
		byte(TagUTF8), 0x00, 0x04, 'M', 'a', 'i', 'n',
		byte(TagClass), 0x00, 0x01,
		byte(TagUTF8), 0x00, 0x04, 'm', 'a', 'i', 'n',
		byte(TagUTF8), 0x00, 0x03, '(', ')', 'V',
		byte(TagNameAndType), 0x00, 0x03, 0x00, 0x04,
		byte(TagMethodRef), 0x00, 0x02, 0x00, 0x05,
	}
	p, err := Parse(bytereader.New(buf))
	require.NoError(t, err)

	ref := p.GetAs(6, TagMethodRef)
	require.NotNil(t, ref)
	className, ok := p.GetClassName(int(ref.ClassIndex))
	require.True(t, ok)
	assert.Equal(t, "Main", className)

	name, desc, ok := p.GetNameAndType(int(ref.NameAndTypeIndex))
	require.True(t, ok)
	assert.Equal(t, "main", name)
	assert.Equal(t, "()V", desc)
}

func TestIntegerAndLongEntries(t *testing.T) {
	buf := []byte{
		0x00, 0x03,
		byte(TagInteger), 0x00, 0x00, 0x00, 0x2A,
		byte(TagLong), 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
	}
	p, err := Parse(bytereader.New(buf))
	require.NoError(t, err)
	assert.EqualValues(t, 42, p.GetAs(1, TagInteger).IntVal)
	assert.EqualValues(t, 1, p.GetAs(2, TagLong).LongVal)
}
