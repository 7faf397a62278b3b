/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package block splits a decoded method body into basic blocks: the
// minimal set of jump-target-bounded ranges such that the first
// instruction of a block is the only legal branch target within it.
package block

import (
	"sort"

	"github.com/jacobin-vm/classjit/src/bytecode"
)

// Block is a half-open byte range [Start, End) into a method's code.
type Block struct {
	Start int
	End   int
}

// Split computes the minimal partition of [0, codeLen): boundaries
// always include 0, the address after every conditional branch and jsr,
// and every branch target (forward or backward). The address after a
// goto is a boundary only when it is itself a branch target.
func Split(instructions []bytecode.Instruction, codeLen int) []Block {
	boundarySet := map[int]struct{}{0: {}}

	for _, in := range instructions {
		b := in.Offset
		length := in.ByteSize()

		switch {
		case in.Op.IsConditionalBranch():
			boundarySet[in.Target()] = struct{}{}
			boundarySet[b+length] = struct{}{}
		case in.Op.IsGoto():
			boundarySet[in.Target()] = struct{}{}
		case in.Op.IsJsr():
			boundarySet[in.Target()] = struct{}{}
			boundarySet[b+length] = struct{}{}
		}
	}

	boundaries := make([]int, 0, len(boundarySet))
	for b := range boundarySet {
		if b >= 0 && b < codeLen {
			boundaries = append(boundaries, b)
		}
	}
	sort.Ints(boundaries)

	blocks := make([]Block, 0, len(boundaries))
	for i, start := range boundaries {
		end := codeLen
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		blocks = append(blocks, Block{Start: start, End: end})
	}
	return blocks
}

// StartOffsets returns just the sorted block-start offsets, convenient for
// keying the lowering engine's per-block back-end blocks.
func StartOffsets(blocks []Block) []int {
	out := make([]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.Start
	}
	return out
}

// Find returns the block containing offset, or (Block{}, false) if offset
// falls outside every block.
func Find(blocks []Block, offset int) (Block, bool) {
	for _, b := range blocks {
		if offset >= b.Start && offset < b.End {
			return b, true
		}
	}
	return Block{}, false
}
