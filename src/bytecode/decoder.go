/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package bytecode

import (
	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
)

// DecodeOne decodes a single instruction starting at r's current position
// and advances r's cursor by exactly Instruction.ByteSize() bytes.
func DecodeOne(r *bytereader.Reader) (Instruction, error) {
	start := r.Pos()
	opByte, err := r.U8()
	if err != nil {
		return Instruction{}, err
	}

	in, err := decodeBody(opByte, r)
	if err != nil {
		return Instruction{}, err
	}
	in.Offset = start
	in.size = r.Pos() - start
	return in, nil
}

// DecodeAll decodes a bounded code buffer (exactly codeLen bytes) into an
// ordered instruction list. It must consume the window exactly; any
// decoding error aborts the whole decode.
func DecodeAll(r *bytereader.Reader, codeLen int) ([]Instruction, error) {
	sub, err := r.Sub(codeLen)
	if err != nil {
		return nil, err
	}
	var out []Instruction
	for sub.Remaining() > 0 {
		in, err := DecodeOne(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// decodeBody reads the operands (if any) of the instruction whose opcode
// byte is opByte, normalising compressed wire forms to their parametric Op.
func decodeBody(opByte uint8, r *bytereader.Reader) (Instruction, error) {
	switch opByte {
	case 0x00:
		return Instruction{Op: OpNop}, nil
	case 0x01:
		return Instruction{Op: OpAConstNull}, nil

	// iconst_m1 .. iconst_5
	case 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08:
		v := int32(opByte) - 0x03
		return Instruction{Op: OpIConst, Operand: int64(v)}, nil
	// lconst_0, lconst_1
	case 0x09, 0x0A:
		return Instruction{Op: OpLConst, Operand: int64(opByte - 0x09)}, nil
	// fconst_0, fconst_1, fconst_2
	case 0x0B, 0x0C, 0x0D:
		return Instruction{Op: OpFConst, Operand: int32Bits(float32(opByte - 0x0B))}, nil
	// dconst_0, dconst_1
	case 0x0E, 0x0F:
		return Instruction{Op: OpDConst, Operand: int64Bits(float64(opByte - 0x0E))}, nil

	case 0x10: // bipush
		v, err := r.I8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpBipush, Operand: int64(v)}, nil
	case 0x11: // sipush
		v, err := r.I16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpSipush, Operand: int64(v)}, nil

	case 0x12: // ldc
		v, err := r.U8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLdc, Operand: int64(v)}, nil
	case 0x13: // ldc_w
		return decodeU16Operand(OpLdcW, r)
	case 0x14: // ldc2_w
		return decodeU16Operand(OpLdc2W, r)

	case 0x15:
		return decodeU8Operand(OpILoad, r)
	case 0x16:
		return decodeU8Operand(OpLLoad, r)
	case 0x17:
		return decodeU8Operand(OpFLoad, r)
	case 0x18:
		return decodeU8Operand(OpDLoad, r)
	case 0x19:
		return decodeU8Operand(OpALoad, r)

	// iload_0..3, lload_0..3, fload_0..3, dload_0..3, aload_0..3
	case 0x1A, 0x1B, 0x1C, 0x1D:
		return Instruction{Op: OpILoad, Operand: int64(opByte - 0x1A)}, nil
	case 0x1E, 0x1F, 0x20, 0x21:
		return Instruction{Op: OpLLoad, Operand: int64(opByte - 0x1E)}, nil
	case 0x22, 0x23, 0x24, 0x25:
		return Instruction{Op: OpFLoad, Operand: int64(opByte - 0x22)}, nil
	case 0x26, 0x27, 0x28, 0x29:
		return Instruction{Op: OpDLoad, Operand: int64(opByte - 0x26)}, nil
	case 0x2A, 0x2B, 0x2C, 0x2D:
		return Instruction{Op: OpALoad, Operand: int64(opByte - 0x2A)}, nil

	case 0x2E:
		return Instruction{Op: OpIALoad}, nil
	case 0x2F:
		return Instruction{Op: OpLALoad}, nil
	case 0x30:
		return Instruction{Op: OpFALoad}, nil
	case 0x31:
		return Instruction{Op: OpDALoad}, nil
	case 0x32:
		return Instruction{Op: OpAALoad}, nil
	case 0x33:
		return Instruction{Op: OpBALoad}, nil
	case 0x34:
		return Instruction{Op: OpCALoad}, nil
	case 0x35:
		return Instruction{Op: OpSALoad}, nil

	case 0x36:
		return decodeU8Operand(OpIStore, r)
	case 0x37:
		return decodeU8Operand(OpLStore, r)
	case 0x38:
		return decodeU8Operand(OpFStore, r)
	case 0x39:
		return decodeU8Operand(OpDStore, r)
	case 0x3A:
		return decodeU8Operand(OpAStore, r)

	case 0x3B, 0x3C, 0x3D, 0x3E:
		return Instruction{Op: OpIStore, Operand: int64(opByte - 0x3B)}, nil
	case 0x3F, 0x40, 0x41, 0x42:
		return Instruction{Op: OpLStore, Operand: int64(opByte - 0x3F)}, nil
	case 0x43, 0x44, 0x45, 0x46:
		return Instruction{Op: OpFStore, Operand: int64(opByte - 0x43)}, nil
	case 0x47, 0x48, 0x49, 0x4A:
		return Instruction{Op: OpDStore, Operand: int64(opByte - 0x47)}, nil
	case 0x4B, 0x4C, 0x4D, 0x4E:
		return Instruction{Op: OpAStore, Operand: int64(opByte - 0x4B)}, nil

	case 0x4F:
		return Instruction{Op: OpIAStore}, nil
	case 0x50:
		return Instruction{Op: OpLAStore}, nil
	case 0x51:
		return Instruction{Op: OpFAStore}, nil
	case 0x52:
		return Instruction{Op: OpDAStore}, nil
	case 0x53:
		return Instruction{Op: OpAAStore}, nil
	case 0x54:
		return Instruction{Op: OpBAStore}, nil
	case 0x55:
		return Instruction{Op: OpCAStore}, nil
	case 0x56:
		return Instruction{Op: OpSAStore}, nil

	case 0x57:
		return Instruction{Op: OpPop}, nil
	case 0x58:
		return Instruction{Op: OpPop2}, nil
	case 0x59:
		return Instruction{Op: OpDup}, nil
	case 0x5A:
		return Instruction{Op: OpDupX1}, nil
	case 0x5B:
		return Instruction{Op: OpDupX2}, nil
	case 0x5C:
		return Instruction{Op: OpDup2}, nil
	case 0x5D:
		return Instruction{Op: OpDup2X1}, nil
	case 0x5E:
		return Instruction{Op: OpDup2X2}, nil
	case 0x5F:
		return Instruction{Op: OpSwap}, nil

	case 0x60:
		return Instruction{Op: OpIAdd}, nil
	case 0x61:
		return Instruction{Op: OpLAdd}, nil
	case 0x62:
		return Instruction{Op: OpFAdd}, nil
	case 0x63:
		return Instruction{Op: OpDAdd}, nil
	case 0x64:
		return Instruction{Op: OpISub}, nil
	case 0x65:
		return Instruction{Op: OpLSub}, nil
	case 0x66:
		return Instruction{Op: OpFSub}, nil
	case 0x67:
		return Instruction{Op: OpDSub}, nil
	case 0x68:
		return Instruction{Op: OpIMul}, nil
	case 0x69:
		return Instruction{Op: OpLMul}, nil
	case 0x6A:
		return Instruction{Op: OpFMul}, nil
	case 0x6B:
		return Instruction{Op: OpDMul}, nil
	case 0x6C:
		return Instruction{Op: OpIDiv}, nil
	case 0x6D:
		return Instruction{Op: OpLDiv}, nil
	case 0x6E:
		return Instruction{Op: OpFDiv}, nil
	case 0x6F:
		return Instruction{Op: OpDDiv}, nil
	case 0x70:
		return Instruction{Op: OpIRem}, nil
	case 0x71:
		return Instruction{Op: OpLRem}, nil
	case 0x72:
		return Instruction{Op: OpFRem}, nil
	case 0x73:
		return Instruction{Op: OpDRem}, nil
	case 0x74:
		return Instruction{Op: OpINeg}, nil
	case 0x75:
		return Instruction{Op: OpLNeg}, nil
	case 0x76:
		return Instruction{Op: OpFNeg}, nil
	case 0x77:
		return Instruction{Op: OpDNeg}, nil
	case 0x78:
		return Instruction{Op: OpIShl}, nil
	case 0x79:
		return Instruction{Op: OpLShl}, nil
	case 0x7A:
		return Instruction{Op: OpIShr}, nil
	case 0x7B:
		return Instruction{Op: OpLShr}, nil
	case 0x7C:
		return Instruction{Op: OpIUshr}, nil
	case 0x7D:
		return Instruction{Op: OpLUshr}, nil
	case 0x7E:
		return Instruction{Op: OpIAnd}, nil
	case 0x7F:
		return Instruction{Op: OpLAnd}, nil
	case 0x80:
		return Instruction{Op: OpIOr}, nil
	case 0x81:
		return Instruction{Op: OpLOr}, nil
	case 0x82:
		return Instruction{Op: OpIXor}, nil
	case 0x83:
		return Instruction{Op: OpLXor}, nil

	case 0x84: // iinc
		idx, err := r.U8()
		if err != nil {
			return Instruction{}, err
		}
		delta, err := r.I8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpIInc, Operand: int64(idx), Operand2: int64(delta)}, nil

	case 0x85:
		return Instruction{Op: OpI2L}, nil
	case 0x86:
		return Instruction{Op: OpI2F}, nil
	case 0x87:
		return Instruction{Op: OpI2D}, nil
	case 0x88:
		return Instruction{Op: OpL2I}, nil
	case 0x89:
		return Instruction{Op: OpL2F}, nil
	case 0x8A:
		return Instruction{Op: OpL2D}, nil
	case 0x8B:
		return Instruction{Op: OpF2I}, nil
	case 0x8C:
		return Instruction{Op: OpF2L}, nil
	case 0x8D:
		return Instruction{Op: OpF2D}, nil
	case 0x8E:
		return Instruction{Op: OpD2I}, nil
	case 0x8F:
		return Instruction{Op: OpD2L}, nil
	case 0x90:
		return Instruction{Op: OpD2F}, nil
	case 0x91:
		return Instruction{Op: OpI2B}, nil
	case 0x92:
		return Instruction{Op: OpI2C}, nil
	case 0x93:
		return Instruction{Op: OpI2S}, nil

	case 0x94:
		return Instruction{Op: OpLCmp}, nil
	case 0x95:
		return Instruction{Op: OpFCmpL}, nil
	case 0x96:
		return Instruction{Op: OpFCmpG}, nil
	case 0x97:
		return Instruction{Op: OpDCmpL}, nil
	case 0x98:
		return Instruction{Op: OpDCmpG}, nil

	case 0x99:
		return decodeBranch(OpIfEq, r)
	case 0x9A:
		return decodeBranch(OpIfNe, r)
	case 0x9B:
		return decodeBranch(OpIfLt, r)
	case 0x9C:
		return decodeBranch(OpIfGe, r)
	case 0x9D:
		return decodeBranch(OpIfGt, r)
	case 0x9E:
		return decodeBranch(OpIfLe, r)
	case 0x9F:
		return decodeBranch(OpIfICmpEq, r)
	case 0xA0:
		return decodeBranch(OpIfICmpNe, r)
	case 0xA1:
		return decodeBranch(OpIfICmpLt, r)
	case 0xA2:
		return decodeBranch(OpIfICmpGe, r)
	case 0xA3:
		return decodeBranch(OpIfICmpGt, r)
	case 0xA4:
		return decodeBranch(OpIfICmpLe, r)
	case 0xA5:
		return decodeBranch(OpIfACmpEq, r)
	case 0xA6:
		return decodeBranch(OpIfACmpNe, r)
	case 0xA7:
		return decodeBranch(OpGoto, r)
	case 0xA8:
		return decodeBranch(OpJsr, r)
	case 0xA9:
		return decodeU8Operand(OpRet, r)

	case 0xAA:
		return decodeTableSwitch(r)
	case 0xAB:
		return decodeLookupSwitch(r)

	case 0xAC:
		return Instruction{Op: OpIReturn}, nil
	case 0xAD:
		return Instruction{Op: OpLReturn}, nil
	case 0xAE:
		return Instruction{Op: OpFReturn}, nil
	case 0xAF:
		return Instruction{Op: OpDReturn}, nil
	case 0xB0:
		return Instruction{Op: OpAReturn}, nil
	case 0xB1:
		return Instruction{Op: OpReturn}, nil

	case 0xB2:
		return decodeU16Operand(OpGetStatic, r)
	case 0xB3:
		return decodeU16Operand(OpPutStatic, r)
	case 0xB4:
		return decodeU16Operand(OpGetField, r)
	case 0xB5:
		return decodeU16Operand(OpPutField, r)
	case 0xB6:
		return decodeU16Operand(OpInvokeVirtual, r)
	case 0xB7:
		return decodeU16Operand(OpInvokeSpecial, r)
	case 0xB8:
		return decodeU16Operand(OpInvokeStatic, r)
	case 0xB9: // invokeinterface: cp index u16, count u8, 0 u8
		idx, err := r.U16()
		if err != nil {
			return Instruction{}, err
		}
		count, err := r.U8()
		if err != nil {
			return Instruction{}, err
		}
		if _, err := r.U8(); err != nil { // reserved, must be 0
			return Instruction{}, err
		}
		return Instruction{Op: OpInvokeInterface, Operand: int64(idx), Operand2: int64(count)}, nil
	case 0xBA: // invokedynamic: cp index u16, 0 u16
		idx, err := r.U16()
		if err != nil {
			return Instruction{}, err
		}
		if _, err := r.U16(); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpInvokeDynamic, Operand: int64(idx)}, nil

	case 0xBB:
		return decodeU16Operand(OpNew, r)
	case 0xBC: // newarray: atype u8
		atype, err := r.U8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpNewArray, Operand: int64(atype)}, nil
	case 0xBD:
		return decodeU16Operand(OpANewArray, r)
	case 0xBE:
		return Instruction{Op: OpArrayLength}, nil
	case 0xBF:
		return Instruction{Op: OpAThrow}, nil
	case 0xC0:
		return decodeU16Operand(OpCheckCast, r)
	case 0xC1:
		return decodeU16Operand(OpInstanceOf, r)
	case 0xC2:
		return Instruction{Op: OpMonitorEnter}, nil
	case 0xC3:
		return Instruction{Op: OpMonitorExit}, nil

	case 0xC4:
		return decodeWide(r)

	case 0xC5: // multianewarray: cp index u16, dims u8
		idx, err := r.U16()
		if err != nil {
			return Instruction{}, err
		}
		dims, err := r.U8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpMultiANewArray, Operand: int64(idx), Operand2: int64(dims)}, nil

	case 0xC6:
		return decodeBranch(OpIfNull, r)
	case 0xC7:
		return decodeBranch(OpIfNonNull, r)

	case 0xC8: // goto_w
		v, err := r.I32()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpGotoW, Operand: int64(v)}, nil
	case 0xC9: // jsr_w
		v, err := r.I32()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpJsrW, Operand: int64(v)}, nil

	default:
		return Instruction{}, clserr.NewInvalidBytecode(opByte)
	}
}

func decodeU8Operand(op Op, r *bytereader.Reader) (Instruction, error) {
	v, err := r.U8()
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Operand: int64(v)}, nil
}

func decodeU16Operand(op Op, r *bytereader.Reader) (Instruction, error) {
	v, err := r.U16()
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Operand: int64(v)}, nil
}

// decodeBranch reads a signed 16-bit offset, relative to the branch
// instruction's own starting byte.
func decodeBranch(op Op, r *bytereader.Reader) (Instruction, error) {
	v, err := r.I16()
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Operand: int64(v)}, nil
}

// decodeWide reads the modifier opcode and dispatches to the wide-index
// form of iload/istore/fload/fstore/aload/astore/lload/lstore/ret (u16
// index), or iinc (u16 index + i16 delta).
func decodeWide(r *bytereader.Reader) (Instruction, error) {
	sub, err := r.U8()
	if err != nil {
		return Instruction{}, err
	}
	if sub == 0x84 { // wide iinc
		idx, err := r.U16()
		if err != nil {
			return Instruction{}, err
		}
		delta, err := r.I16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpWideIInc, Operand: int64(idx), Operand2: int64(delta)}, nil
	}

	var op Op
	switch sub {
	case 0x15:
		op = OpWideILoad
	case 0x16:
		op = OpWideLLoad
	case 0x17:
		op = OpWideFLoad
	case 0x18:
		op = OpWideDLoad
	case 0x19:
		op = OpWideALoad
	case 0x36:
		op = OpWideIStore
	case 0x37:
		op = OpWideLStore
	case 0x38:
		op = OpWideFStore
	case 0x39:
		op = OpWideDStore
	case 0x3A:
		op = OpWideAStore
	case 0xA9:
		op = OpWideRet
	default:
		return Instruction{}, clserr.NewInvalidBytecode(sub)
	}
	idx, err := r.U16()
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Operand: int64(idx)}, nil
}

// decodeTableSwitch and decodeLookupSwitch are cursor-safe but
// non-lowerable: the decoder must still consume their exact byte length
// so later instructions in the same method decode correctly, but the
// lowering engine treats them as an unsupported opcode, never silently.
func decodeTableSwitch(r *bytereader.Reader) (Instruction, error) {
	pad := padding(r.Pos())
	if _, err := r.ReadExact(pad); err != nil {
		return Instruction{}, err
	}
	if _, err := r.I32(); err != nil { // default
		return Instruction{}, err
	}
	low, err := r.I32()
	if err != nil {
		return Instruction{}, err
	}
	high, err := r.I32()
	if err != nil {
		return Instruction{}, err
	}
	n := int(high) - int(low) + 1
	if n < 0 {
		n = 0
	}
	if _, err := r.ReadExact(n * 4); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpTableSwitch}, nil
}

func decodeLookupSwitch(r *bytereader.Reader) (Instruction, error) {
	pad := padding(r.Pos())
	if _, err := r.ReadExact(pad); err != nil {
		return Instruction{}, err
	}
	if _, err := r.I32(); err != nil { // default
		return Instruction{}, err
	}
	npairs, err := r.I32()
	if err != nil {
		return Instruction{}, err
	}
	if _, err := r.ReadExact(int(npairs) * 8); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpLookupSwitch}, nil
}

// padding computes the number of zero bytes needed so that the next field
// read at absolute position pos starts on a 4-byte boundary.
func padding(pos int) int {
	return (4 - pos%4) % 4
}
