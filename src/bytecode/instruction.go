/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package bytecode

import "math"

// Instruction is one decoded opcode plus its operands. Compressed wire
// forms are normalised to their parametric Op at decode time; the two
// generic Operand fields carry whatever that Op needs, interpreted via the
// As* accessors below.
type Instruction struct {
	Op Op

	// Offset is this instruction's byte offset within the owning method's
	// code buffer.
	Offset int
	// size is the number of bytes this instruction occupies on the wire,
	// including the opcode byte itself.
	size int

	// Operand and Operand2 carry the instruction's scalar payload. Their
	// meaning is Op-dependent:
	//   - const-producers: Operand holds the value (bit-reinterpreted for
	//     float/double via AsFloat32/AsFloat64).
	//   - loads/stores/ret: Operand is the local slot index.
	//   - iinc: Operand is the slot index, Operand2 the signed delta.
	//   - branches (if*, goto*, jsr*): Operand is the signed offset,
	//     relative to this instruction's own Offset.
	//   - ldc/ldc_w/ldc2_w/getstatic/putstatic/getfield/putfield/invoke*/
	//     new/anewarray/checkcast/instanceof: Operand is the constant
	//     pool index.
	//   - invokeinterface: Operand2 is the argument count byte.
	//   - newarray: Operand is the atype code.
	//   - multianewarray: Operand is the cp index, Operand2 the dimension
	//     count.
	Operand  int64
	Operand2 int64
}

// ByteSize is the number of bytes this instruction's decoding consumed,
// including the opcode byte.
func (in Instruction) ByteSize() int { return in.size }

// End is the offset immediately following this instruction.
func (in Instruction) End() int { return in.Offset + in.size }

// Target returns the absolute branch target of a branch-shaped
// instruction (Operand interpreted as a signed offset from Offset).
func (in Instruction) Target() int { return in.Offset + int(in.Operand) }

func (in Instruction) AsInt32() int32     { return int32(in.Operand) }
func (in Instruction) AsInt64() int64     { return in.Operand }
func (in Instruction) AsFloat32() float32 { return math.Float32frombits(uint32(in.Operand)) }
func (in Instruction) AsFloat64() float64 { return math.Float64frombits(uint64(in.Operand)) }
func (in Instruction) CPIndex() int       { return int(in.Operand) }
func (in Instruction) LocalSlot() int     { return int(in.Operand) }
func (in Instruction) Delta() int32       { return int32(in.Operand2) }
func (in Instruction) AType() int         { return int(in.Operand) }
func (in Instruction) Dimensions() int    { return int(in.Operand2) }

func int32Bits(v float32) int64  { return int64(math.Float32bits(v)) }
func int64Bits(v float64) int64  { return int64(math.Float64bits(v)) }
