package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/bytecode"
	"github.com/jacobin-vm/classjit/src/bytereader"
)

func decodeAll(t *testing.T, buf []byte) []bytecode.Instruction {
	t.Helper()
	r := bytereader.New(buf)
	var out []bytecode.Instruction
	for r.Remaining() > 0 {
		in, err := bytecode.DecodeOne(r)
		require.NoError(t, err)
		out = append(out, in)
	}
	return out
}

func TestSplitPartitionsExactly(t *testing.T) {
	// iconst_0; ifeq +5; iconst_1; ireturn; iconst_2; ireturn
	// offsets:   0        1         4        5         6        7
	buf := []byte{
		0x03,             // 0: iconst_0
		0x99, 0x00, 0x05, // 1: ifeq +5 -> target 6
		0x04, // 4: iconst_1
		0xAC, // 5: ireturn
		0x05, // 6: iconst_2
		0xAC, // 7: ireturn
	}
	instrs := decodeAll(t, buf)
	blocks := Split(instrs, len(buf))

	starts := StartOffsets(blocks)
	assert.Equal(t, []int{0, 4, 6}, starts)

	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].End, blocks[i].Start)
	}
	assert.Equal(t, len(buf), blocks[len(blocks)-1].End)
}

func TestBackEdgeIsABoundary(t *testing.T) {
	// 0: iconst_0; 1: goto 0 (infinite loop, back edge)
	buf := []byte{0x03, 0xA7, 0xFF, 0xFF}
	instrs := decodeAll(t, buf)
	blocks := Split(instrs, len(buf))
	assert.Equal(t, []int{0}, StartOffsets(blocks))
}

func TestFindLocatesContainingBlock(t *testing.T) {
	blocks := []Block{{0, 4}, {4, 8}}
	b, ok := Find(blocks, 5)
	require.True(t, ok)
	assert.Equal(t, Block{4, 8}, b)

	_, ok = Find(blocks, 100)
	assert.False(t, ok)
}
