package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/bytereader"
)

func TestDecodeScenarios(t *testing.T) {
	// aload_0
	in, err := DecodeOne(bytereader.New([]byte{0x2A}))
	require.NoError(t, err)
	assert.Equal(t, OpALoad, in.Op)
	assert.EqualValues(t, 0, in.LocalSlot())
	assert.Equal(t, 1, in.ByteSize())

	// invokestatic #0x1234
	in, err = DecodeOne(bytereader.New([]byte{0xB8, 0x12, 0x34}))
	require.NoError(t, err)
	assert.Equal(t, OpInvokeStatic, in.Op)
	assert.Equal(t, 0x1234, in.CPIndex())
	assert.Equal(t, 3, in.ByteSize())

	// iconst_0
	in, err = DecodeOne(bytereader.New([]byte{0x03}))
	require.NoError(t, err)
	assert.Equal(t, OpIConst, in.Op)
	assert.EqualValues(t, 0, in.AsInt32())

	// unassigned opcode
	_, err = DecodeOne(bytereader.New([]byte{0xFD}))
	require.Error(t, err)
}

func TestByteSizeMatchesConsumedBytes(t *testing.T) {
	buf := []byte{0xB8, 0x00, 0x01, 0x2A, 0x60}
	r := bytereader.New(buf)
	first, err := DecodeOne(r)
	require.NoError(t, err)
	assert.Equal(t, 3, first.ByteSize())
	assert.Equal(t, 3, r.Pos())

	second, err := DecodeOne(r)
	require.NoError(t, err)
	assert.Equal(t, OpALoad, second.Op)
	assert.Equal(t, 1, second.ByteSize())
}

// Decoding a single instruction and inspecting ByteSize, then decoding
// again from the next byte, should agree with decoding the whole buffer
// sequentially.
func TestSequentialDecodeMatchesDecodeAll(t *testing.T) {
	buf := []byte{0x03, 0x04, 0x60, 0xAC} // iconst_0, iconst_1, iadd, ireturn
	all, err := DecodeAll(bytereader.New(buf), len(buf))
	require.NoError(t, err)
	require.Len(t, all, 4)

	r := bytereader.New(buf)
	for _, want := range all {
		got, err := DecodeOne(r)
		require.NoError(t, err)
		assert.Equal(t, want.Op, got.Op)
		assert.Equal(t, want.Operand, got.Operand)
	}
}

func TestCompressedConstsNormalise(t *testing.T) {
	in, err := DecodeOne(bytereader.New([]byte{0x02})) // iconst_m1
	require.NoError(t, err)
	assert.Equal(t, OpIConst, in.Op)
	assert.EqualValues(t, -1, in.AsInt32())

	in, err = DecodeOne(bytereader.New([]byte{0x0C})) // fconst_1
	require.NoError(t, err)
	assert.Equal(t, OpFConst, in.Op)
	assert.EqualValues(t, 1.0, in.AsFloat32())
}

func TestIincOperands(t *testing.T) {
	in, err := DecodeOne(bytereader.New([]byte{0x84, 0x01, 0xFF})) // iinc 1, -1
	require.NoError(t, err)
	assert.Equal(t, OpIInc, in.Op)
	assert.EqualValues(t, 1, in.LocalSlot())
	assert.EqualValues(t, -1, in.Delta())
}

func TestWideIincConsumesExactBytes(t *testing.T) {
	buf := []byte{0xC4, 0x84, 0x01, 0x00, 0xFF, 0xFF} // wide iinc #256, -1
	in, err := DecodeOne(bytereader.New(buf))
	require.NoError(t, err)
	assert.Equal(t, OpWideIInc, in.Op)
	assert.Equal(t, len(buf), in.ByteSize())
}

func TestTableSwitchCursorSafe(t *testing.T) {
	// tableswitch at offset 0: 3 bytes padding, default=0, low=0, high=1,
	// two 4-byte offsets, then a trailing nop to prove the cursor landed
	// exactly after the switch.
	buf := []byte{
		0xAA,
		0x00, 0x00, 0x00, // padding
		0x00, 0x00, 0x00, 0x00, // default
		0x00, 0x00, 0x00, 0x00, // low
		0x00, 0x00, 0x00, 0x01, // high
		0x00, 0x00, 0x00, 0x10, // offset for 0
		0x00, 0x00, 0x00, 0x20, // offset for 1
		0x00, // nop
	}
	all, err := DecodeAll(bytereader.New(buf), len(buf))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, OpTableSwitch, all[0].Op)
	assert.Equal(t, OpNop, all[1].Op)
}
