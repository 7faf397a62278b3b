/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package lower translates one method's decoded bytecode into a back-end
// function: basic blocks keyed by start offset, a per-(local,type) slot
// discipline, a transient per-block operand stack, and one case per
// opcode the engine understands. An opcode it can't translate is always
// a reported error, never a silent miscompilation.
package lower

import (
	"fmt"

	"github.com/jacobin-vm/classjit/src/attribute"
	"github.com/jacobin-vm/classjit/src/backend"
	"github.com/jacobin-vm/classjit/src/block"
	"github.com/jacobin-vm/classjit/src/bytecode"
	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
	"github.com/jacobin-vm/classjit/src/descriptor"
	"github.com/jacobin-vm/classjit/src/engtrace"
)

// headerSize is the number of bytes newarray reserves ahead of an
// array's elements; it stores the element count as an i32 in the first
// four bytes, leaving the rest unused (room for a future element-type
// tag, which nothing currently reads).
const headerSize = 8

func irType(k descriptor.Kind) backend.Type {
	switch k {
	case descriptor.KByte, descriptor.KBoolean:
		return backend.I8
	case descriptor.KChar, descriptor.KShort:
		return backend.I16
	case descriptor.KInt:
		return backend.I32
	case descriptor.KLong:
		return backend.I64
	case descriptor.KFloat:
		return backend.F32
	case descriptor.KDouble:
		return backend.F64
	case descriptor.KReference, descriptor.KArray:
		return backend.Ptr
	case descriptor.KVoid:
		return backend.Void
	}
	panic(fmt.Sprintf("lower: unhandled descriptor kind %d", k))
}

func atypeElemType(atype int) backend.Type {
	switch atype {
	case bytecode.ATypeBoolean, bytecode.ATypeByte:
		return backend.I8
	case bytecode.ATypeChar, bytecode.ATypeShort:
		return backend.I16
	case bytecode.ATypeFloat:
		return backend.F32
	case bytecode.ATypeDouble:
		return backend.F64
	case bytecode.ATypeInt:
		return backend.I32
	case bytecode.ATypeLong:
		return backend.I64
	default:
		return backend.I32
	}
}

func sizeOfElem(t backend.Type) int64 {
	switch t {
	case backend.I1, backend.I8:
		return 1
	case backend.I16:
		return 2
	case backend.I32, backend.F32:
		return 4
	default:
		return 8
	}
}

// BuildSignature converts a method signature into the backend's native
// function type, prepending a pointer parameter for instance methods.
func BuildSignature(sig descriptor.Signature, isStatic bool) backend.Signature {
	params := make([]backend.Type, 0, len(sig.Args)+1)
	if !isStatic {
		params = append(params, backend.Ptr)
	}
	for _, a := range sig.Args {
		params = append(params, irType(a.Kind))
	}
	return backend.Signature{Params: params, Result: irType(sig.Return.Kind)}
}

type stackItem struct {
	v backend.Value
	t backend.Type
}

type lowering struct {
	mod          backend.Module
	builder      backend.Builder
	entryBuilder backend.Builder // always positioned at entry; slotPtr emits allocas here
	f            backend.Func
	entry        backend.Block

	blocks    []block.Block
	blockAt   map[int]backend.Block
	instrsIdx []int // start index into instrs for each block, parallel to blocks

	slots map[int]map[backend.Type]backend.Value
	stack []stackItem
}

func (lw *lowering) push(v backend.Value, t backend.Type) {
	lw.stack = append(lw.stack, stackItem{v: v, t: t})
}

func (lw *lowering) pop() stackItem {
	n := len(lw.stack) - 1
	it := lw.stack[n]
	lw.stack = lw.stack[:n]
	return it
}

// slotPtr returns the per-(index,type) allocation for a local slot,
// allocating it in the entry block on first use regardless of which
// block is currently being lowered: a dedicated builder stays pinned to
// entry for exactly this purpose, so a local first assigned inside a
// loop body still gets a single allocation that survives every
// iteration.
func (lw *lowering) slotPtr(idx int, t backend.Type) backend.Value {
	byType, ok := lw.slots[idx]
	if !ok {
		byType = make(map[backend.Type]backend.Value)
		lw.slots[idx] = byType
	}
	if p, ok := byType[t]; ok {
		return p
	}
	p := lw.entryBuilder.Alloca(t)
	byType[t] = p
	return p
}

func (lw *lowering) loadLocal(idx int, t backend.Type) {
	v := lw.builder.Load(t, lw.slotPtr(idx, t))
	lw.push(v, t)
}

func (lw *lowering) storeLocal(idx int, t backend.Type) {
	v := lw.pop()
	lw.builder.Store(lw.slotPtr(idx, t), v.v)
}

func (lw *lowering) arithInt(op backend.BinOp, t backend.Type) {
	b := lw.pop()
	a := lw.pop()
	lw.push(lw.builder.Bin(op, t, a.v, b.v), t)
}

func (lw *lowering) neg(t backend.Type) {
	a := lw.pop()
	zero := lw.builder.ConstInt(t, 0)
	lw.push(lw.builder.Bin(backend.Sub, t, zero, a.v), t)
}

func (lw *lowering) fneg(t backend.Type) {
	a := lw.pop()
	zero := lw.builder.ConstFloat(t, 0)
	lw.push(lw.builder.Bin(backend.FSub, t, zero, a.v), t)
}

// threeWayCompare computes the JVM's -1/0/1 comparison result without a
// conditional branch: gt and lt are mutually exclusive 0/1 values, so
// gt - lt gives exactly the right answer in every case.
func (lw *lowering) threeWayCompare(lt, gt backend.Value) backend.Value {
	return lw.builder.Bin(backend.Sub, backend.I32,
		lw.builder.ZExt(gt, backend.I32),
		lw.builder.ZExt(lt, backend.I32))
}

func condTarget(lw *lowering, in bytecode.Instruction, ok bool) backend.Block {
	if ok {
		return lw.blockAt[in.Target()]
	}
	return lw.blockAt[in.End()]
}

// lowerOne lowers a single instruction, returning true if it terminated
// its block (return or unconditional/conditional branch).
func (lw *lowering) lowerOne(in bytecode.Instruction) (bool, error) {
	switch in.Op {
	case bytecode.OpNop:

	case bytecode.OpIConst, bytecode.OpBipush, bytecode.OpSipush:
		lw.push(lw.builder.ConstInt(backend.I32, int64(in.AsInt32())), backend.I32)
	case bytecode.OpLConst:
		lw.push(lw.builder.ConstInt(backend.I64, in.AsInt64()), backend.I64)
	case bytecode.OpFConst:
		lw.push(lw.builder.ConstFloat(backend.F32, float64(in.AsFloat32())), backend.F32)
	case bytecode.OpDConst:
		lw.push(lw.builder.ConstFloat(backend.F64, in.AsFloat64()), backend.F64)
	case bytecode.OpAConstNull:
		lw.push(lw.builder.ConstInt(backend.Ptr, 0), backend.Ptr)

	case bytecode.OpILoad, bytecode.OpWideILoad:
		lw.loadLocal(in.LocalSlot(), backend.I32)
	case bytecode.OpLLoad, bytecode.OpWideLLoad:
		lw.loadLocal(in.LocalSlot(), backend.I64)
	case bytecode.OpFLoad, bytecode.OpWideFLoad:
		lw.loadLocal(in.LocalSlot(), backend.F32)
	case bytecode.OpDLoad, bytecode.OpWideDLoad:
		lw.loadLocal(in.LocalSlot(), backend.F64)
	case bytecode.OpALoad, bytecode.OpWideALoad:
		lw.loadLocal(in.LocalSlot(), backend.Ptr)

	case bytecode.OpIStore, bytecode.OpWideIStore:
		lw.storeLocal(in.LocalSlot(), backend.I32)
	case bytecode.OpLStore, bytecode.OpWideLStore:
		lw.storeLocal(in.LocalSlot(), backend.I64)
	case bytecode.OpFStore, bytecode.OpWideFStore:
		lw.storeLocal(in.LocalSlot(), backend.F32)
	case bytecode.OpDStore, bytecode.OpWideDStore:
		lw.storeLocal(in.LocalSlot(), backend.F64)
	case bytecode.OpAStore, bytecode.OpWideAStore:
		lw.storeLocal(in.LocalSlot(), backend.Ptr)

	case bytecode.OpIAdd:
		lw.arithInt(backend.Add, backend.I32)
	case bytecode.OpLAdd:
		lw.arithInt(backend.Add, backend.I64)
	case bytecode.OpFAdd:
		lw.arithInt(backend.FAdd, backend.F32)
	case bytecode.OpDAdd:
		lw.arithInt(backend.FAdd, backend.F64)
	case bytecode.OpISub:
		lw.arithInt(backend.Sub, backend.I32)
	case bytecode.OpLSub:
		lw.arithInt(backend.Sub, backend.I64)
	case bytecode.OpFSub:
		lw.arithInt(backend.FSub, backend.F32)
	case bytecode.OpDSub:
		lw.arithInt(backend.FSub, backend.F64)
	case bytecode.OpIMul:
		lw.arithInt(backend.Mul, backend.I32)
	case bytecode.OpLMul:
		lw.arithInt(backend.Mul, backend.I64)
	case bytecode.OpFMul:
		lw.arithInt(backend.FMul, backend.F32)
	case bytecode.OpDMul:
		lw.arithInt(backend.FMul, backend.F64)
	case bytecode.OpIDiv:
		lw.arithInt(backend.SDiv, backend.I32)
	case bytecode.OpLDiv:
		lw.arithInt(backend.SDiv, backend.I64)
	case bytecode.OpFDiv:
		lw.arithInt(backend.FDiv, backend.F32)
	case bytecode.OpDDiv:
		lw.arithInt(backend.FDiv, backend.F64)
	case bytecode.OpIRem:
		lw.arithInt(backend.SRem, backend.I32)
	case bytecode.OpLRem:
		lw.arithInt(backend.SRem, backend.I64)
	case bytecode.OpFRem:
		lw.arithInt(backend.FRem, backend.F32)
	case bytecode.OpDRem:
		lw.arithInt(backend.FRem, backend.F64)

	case bytecode.OpINeg:
		lw.neg(backend.I32)
	case bytecode.OpLNeg:
		lw.neg(backend.I64)
	case bytecode.OpFNeg:
		lw.fneg(backend.F32)
	case bytecode.OpDNeg:
		lw.fneg(backend.F64)

	case bytecode.OpIShl:
		lw.arithInt(backend.Shl, backend.I32)
	case bytecode.OpLShl:
		lw.arithInt(backend.Shl, backend.I64)
	case bytecode.OpIShr:
		lw.arithInt(backend.AShr, backend.I32)
	case bytecode.OpLShr:
		lw.arithInt(backend.AShr, backend.I64)
	case bytecode.OpIUshr:
		lw.arithInt(backend.LShr, backend.I32)
	case bytecode.OpLUshr:
		lw.arithInt(backend.LShr, backend.I64)
	case bytecode.OpIAnd:
		lw.arithInt(backend.And, backend.I32)
	case bytecode.OpLAnd:
		lw.arithInt(backend.And, backend.I64)
	case bytecode.OpIOr:
		lw.arithInt(backend.Or, backend.I32)
	case bytecode.OpLOr:
		lw.arithInt(backend.Or, backend.I64)
	case bytecode.OpIXor:
		lw.arithInt(backend.Xor, backend.I32)
	case bytecode.OpLXor:
		lw.arithInt(backend.Xor, backend.I64)

	case bytecode.OpIInc, bytecode.OpWideIInc:
		idx := in.LocalSlot()
		ptr := lw.slotPtr(idx, backend.I32)
		v := lw.builder.Load(backend.I32, ptr)
		d := lw.builder.ConstInt(backend.I32, int64(in.Delta()))
		lw.builder.Store(ptr, lw.builder.Bin(backend.Add, backend.I32, v, d))

	case bytecode.OpI2L:
		a := lw.pop()
		lw.push(lw.builder.SExt(a.v, backend.I64), backend.I64)
	case bytecode.OpI2F:
		a := lw.pop()
		lw.push(lw.builder.SIToFP(a.v, backend.F32), backend.F32)
	case bytecode.OpI2D:
		a := lw.pop()
		lw.push(lw.builder.SIToFP(a.v, backend.F64), backend.F64)
	case bytecode.OpL2I:
		a := lw.pop()
		lw.push(lw.builder.Trunc(a.v, backend.I32), backend.I32)
	case bytecode.OpL2F:
		a := lw.pop()
		lw.push(lw.builder.SIToFP(a.v, backend.F32), backend.F32)
	case bytecode.OpL2D:
		a := lw.pop()
		lw.push(lw.builder.SIToFP(a.v, backend.F64), backend.F64)
	case bytecode.OpF2I:
		a := lw.pop()
		lw.push(lw.builder.FPToSI(a.v, backend.I32), backend.I32)
	case bytecode.OpF2L:
		a := lw.pop()
		lw.push(lw.builder.FPToSI(a.v, backend.I64), backend.I64)
	case bytecode.OpF2D:
		a := lw.pop()
		lw.push(lw.builder.FPCast(a.v, backend.F64), backend.F64)
	case bytecode.OpD2I:
		a := lw.pop()
		lw.push(lw.builder.FPToSI(a.v, backend.I32), backend.I32)
	case bytecode.OpD2L:
		a := lw.pop()
		lw.push(lw.builder.FPToSI(a.v, backend.I64), backend.I64)
	case bytecode.OpD2F:
		a := lw.pop()
		lw.push(lw.builder.FPCast(a.v, backend.F32), backend.F32)
	case bytecode.OpI2B, bytecode.OpI2C, bytecode.OpI2S:
		a := lw.pop()
		var narrow backend.Type
		if in.Op == bytecode.OpI2B {
			narrow = backend.I8
		} else {
			narrow = backend.I16
		}
		truncated := lw.builder.Trunc(a.v, narrow)
		lw.push(lw.builder.SExt(truncated, backend.I32), backend.I32)

	case bytecode.OpLCmp:
		b, a := lw.pop(), lw.pop()
		lt := lw.builder.ICmp(backend.PSLT, a.v, b.v)
		gt := lw.builder.ICmp(backend.PSGT, a.v, b.v)
		lw.push(lw.threeWayCompare(lt, gt), backend.I32)
	case bytecode.OpFCmpL, bytecode.OpDCmpL:
		b, a := lw.pop(), lw.pop()
		lt := lw.builder.FCmp(backend.PSLT, a.v, b.v)
		gt := lw.builder.FCmp(backend.PSGT, a.v, b.v)
		lw.push(lw.threeWayCompare(lt, gt), backend.I32)
	case bytecode.OpFCmpG, bytecode.OpDCmpG:
		b, a := lw.pop(), lw.pop()
		lt := lw.builder.FCmp(backend.PSLT, a.v, b.v)
		gt := lw.builder.FCmp(backend.PSGT, a.v, b.v)
		lw.push(lw.threeWayCompare(lt, gt), backend.I32)

	case bytecode.OpPop:
		lw.pop()
	case bytecode.OpPop2:
		lw.pop()
		lw.pop()
	case bytecode.OpDup:
		a := lw.pop()
		lw.push(a.v, a.t)
		lw.push(a.v, a.t)
	case bytecode.OpDupX1:
		b, a := lw.pop(), lw.pop()
		lw.push(b.v, b.t)
		lw.push(a.v, a.t)
		lw.push(b.v, b.t)
	case bytecode.OpDupX2:
		c, b, a := lw.pop(), lw.pop(), lw.pop()
		lw.push(c.v, c.t)
		lw.push(a.v, a.t)
		lw.push(b.v, b.t)
		lw.push(c.v, c.t)
	case bytecode.OpDup2:
		b, a := lw.pop(), lw.pop()
		lw.push(a.v, a.t)
		lw.push(b.v, b.t)
		lw.push(a.v, a.t)
		lw.push(b.v, b.t)
	case bytecode.OpDup2X1:
		v1, v2, v3 := lw.pop(), lw.pop(), lw.pop()
		lw.push(v2.v, v2.t)
		lw.push(v1.v, v1.t)
		lw.push(v3.v, v3.t)
		lw.push(v2.v, v2.t)
		lw.push(v1.v, v1.t)
	case bytecode.OpDup2X2:
		v1, v2, v3, v4 := lw.pop(), lw.pop(), lw.pop(), lw.pop()
		lw.push(v2.v, v2.t)
		lw.push(v1.v, v1.t)
		lw.push(v4.v, v4.t)
		lw.push(v3.v, v3.t)
		lw.push(v2.v, v2.t)
		lw.push(v1.v, v1.t)
	case bytecode.OpSwap:
		b, a := lw.pop(), lw.pop()
		lw.push(b.v, b.t)
		lw.push(a.v, a.t)

	case bytecode.OpNewArray:
		length := lw.pop()
		elemType := atypeElemType(in.AType())
		length64 := lw.builder.SExt(length.v, backend.I64)
		elemSize := lw.builder.ConstInt(backend.I64, sizeOfElem(elemType))
		payload := lw.builder.Bin(backend.Mul, backend.I64, elemSize, length64)
		total := lw.builder.Bin(backend.Add, backend.I64, lw.builder.ConstInt(backend.I64, headerSize), payload)
		arr := lw.builder.HeapAlloc(total)
		lw.builder.Store(arr, length.v)
		lw.push(arr, backend.Ptr)

	case bytecode.OpArrayLength:
		arr := lw.pop()
		lw.push(lw.builder.Load(backend.I32, arr.v), backend.I32)

	case bytecode.OpIALoad:
		lw.arrayLoad(backend.I32)
	case bytecode.OpLALoad:
		lw.arrayLoad(backend.I64)
	case bytecode.OpFALoad:
		lw.arrayLoad(backend.F32)
	case bytecode.OpDALoad:
		lw.arrayLoad(backend.F64)
	case bytecode.OpAALoad:
		lw.arrayLoad(backend.Ptr)
	case bytecode.OpBALoad:
		lw.arrayLoad(backend.I8)
	case bytecode.OpCALoad, bytecode.OpSALoad:
		lw.arrayLoad(backend.I16)

	case bytecode.OpIAStore:
		lw.arrayStore(backend.I32)
	case bytecode.OpLAStore:
		lw.arrayStore(backend.I64)
	case bytecode.OpFAStore:
		lw.arrayStore(backend.F32)
	case bytecode.OpDAStore:
		lw.arrayStore(backend.F64)
	case bytecode.OpAAStore:
		lw.arrayStore(backend.Ptr)
	case bytecode.OpBAStore:
		lw.arrayStore(backend.I8)
	case bytecode.OpCAStore, bytecode.OpSAStore:
		lw.arrayStore(backend.I16)

	case bytecode.OpIfEq, bytecode.OpIfNe, bytecode.OpIfLt, bytecode.OpIfGe, bytecode.OpIfGt, bytecode.OpIfLe:
		a := lw.pop()
		zero := lw.builder.ConstInt(backend.I32, 0)
		cond := lw.builder.ICmp(ifPred(in.Op), a.v, zero)
		lw.builder.CondBr(cond, condTarget(lw, in, true), condTarget(lw, in, false))
		return true, nil

	case bytecode.OpIfICmpEq, bytecode.OpIfICmpNe, bytecode.OpIfICmpLt,
		bytecode.OpIfICmpGe, bytecode.OpIfICmpGt, bytecode.OpIfICmpLe:
		b, a := lw.pop(), lw.pop()
		cond := lw.builder.ICmp(ifICmpPred(in.Op), a.v, b.v)
		lw.builder.CondBr(cond, condTarget(lw, in, true), condTarget(lw, in, false))
		return true, nil

	case bytecode.OpIfACmpEq, bytecode.OpIfACmpNe:
		b, a := lw.pop(), lw.pop()
		pred := backend.PEQ
		if in.Op == bytecode.OpIfACmpNe {
			pred = backend.PNE
		}
		cond := lw.builder.ICmp(pred, a.v, b.v)
		lw.builder.CondBr(cond, condTarget(lw, in, true), condTarget(lw, in, false))
		return true, nil

	case bytecode.OpIfNull, bytecode.OpIfNonNull:
		a := lw.pop()
		pred := backend.PEQ
		if in.Op == bytecode.OpIfNonNull {
			pred = backend.PNE
		}
		cond := lw.builder.ICmp(pred, a.v, lw.builder.ConstInt(backend.Ptr, 0))
		lw.builder.CondBr(cond, condTarget(lw, in, true), condTarget(lw, in, false))
		return true, nil

	case bytecode.OpGoto, bytecode.OpGotoW:
		lw.builder.Br(lw.blockAt[in.Target()])
		return true, nil

	case bytecode.OpIReturn, bytecode.OpFReturn, bytecode.OpDReturn,
		bytecode.OpLReturn, bytecode.OpAReturn:
		a := lw.pop()
		lw.builder.Ret(a.v)
		return true, nil
	case bytecode.OpReturn:
		lw.builder.RetVoid()
		return true, nil

	default:
		return false, clserr.NewUnsupportedOpcode(in.Op.String())
	}
	return false, nil
}

func (lw *lowering) arrayLoad(elemType backend.Type) {
	idx := lw.pop()
	arr := lw.pop()
	ptr := lw.elemPtr(arr.v, idx.v, elemType)
	lw.push(lw.builder.Load(elemType, ptr), elemType)
}

func (lw *lowering) arrayStore(elemType backend.Type) {
	v := lw.pop()
	idx := lw.pop()
	arr := lw.pop()
	ptr := lw.elemPtr(arr.v, idx.v, elemType)
	lw.builder.Store(ptr, v.v)
}

func (lw *lowering) elemPtr(arr, idx backend.Value, elemType backend.Type) backend.Value {
	idx64 := lw.builder.SExt(idx, backend.I64)
	elemSize := lw.builder.ConstInt(backend.I64, sizeOfElem(elemType))
	offset := lw.builder.Bin(backend.Mul, backend.I64, idx64, elemSize)
	total := lw.builder.Bin(backend.Add, backend.I64, lw.builder.ConstInt(backend.I64, headerSize), offset)
	return lw.builder.GEPByte(arr, total)
}

func ifPred(op bytecode.Op) backend.Pred {
	switch op {
	case bytecode.OpIfEq:
		return backend.PEQ
	case bytecode.OpIfNe:
		return backend.PNE
	case bytecode.OpIfLt:
		return backend.PSLT
	case bytecode.OpIfGe:
		return backend.PSGE
	case bytecode.OpIfGt:
		return backend.PSGT
	case bytecode.OpIfLe:
		return backend.PSLE
	}
	panic(fmt.Sprintf("lower: %s is not a zero-comparison branch", op))
}

func ifICmpPred(op bytecode.Op) backend.Pred {
	switch op {
	case bytecode.OpIfICmpEq:
		return backend.PEQ
	case bytecode.OpIfICmpNe:
		return backend.PNE
	case bytecode.OpIfICmpLt:
		return backend.PSLT
	case bytecode.OpIfICmpGe:
		return backend.PSGE
	case bytecode.OpIfICmpGt:
		return backend.PSGT
	case bytecode.OpIfICmpLe:
		return backend.PSLE
	}
	panic(fmt.Sprintf("lower: %s is not an if_icmp branch", op))
}

// Method lowers one method's Code attribute into a function on mod,
// returning the constructed backend.Func. maxBlocks of 0 means no limit.
func Method(mod backend.Module, name string, sig descriptor.Signature, isStatic bool, code *attribute.CodeAttribute, maxBlocks int) (backend.Func, error) {
	instrs, err := bytecode.DecodeAll(bytereader.New(code.Code), len(code.Code))
	if err != nil {
		return nil, clserr.WhileParsing("method code", err)
	}

	blocks := block.Split(instrs, len(code.Code))
	if maxBlocks > 0 && len(blocks) > maxBlocks {
		return nil, clserr.NewTooManyBasicBlocks(len(blocks), maxBlocks)
	}

	backendSig := BuildSignature(sig, isStatic)
	f := mod.NewFunc(name, backendSig)
	entry := f.EntryBlock()

	entryBuilder := mod.NewBuilder()
	entryBuilder.SetBlock(entry)

	lw := &lowering{
		mod:          mod,
		builder:      mod.NewBuilder(),
		entryBuilder: entryBuilder,
		f:            f,
		entry:        entry,
		blocks:       blocks,
		blockAt:      make(map[int]backend.Block, len(blocks)),
		slots:        make(map[int]map[backend.Type]backend.Value),
	}
	for _, b := range blocks {
		lw.blockAt[b.Start] = f.NewBlock(fmt.Sprintf("L%d", b.Start))
	}

	lw.builder.SetBlock(entry)
	if err := lw.bindParams(sig, isStatic); err != nil {
		return nil, err
	}
	firstBlock, ok := lw.blockAt[0]
	if !ok {
		return nil, clserr.NewUnsupportedOpcode("method has no code")
	}
	lw.builder.Br(firstBlock)

	idx := 0
	for _, b := range blocks {
		lw.builder.SetBlock(lw.blockAt[b.Start])
		lw.stack = lw.stack[:0]
		terminated := false
		for idx < len(instrs) && instrs[idx].Offset < b.End {
			in := instrs[idx]
			idx++
			t, err := lw.lowerOne(in)
			if err != nil {
				return nil, clserr.InAttribute("Code", err)
			}
			if t {
				terminated = true
				break
			}
		}
		if !terminated {
			next, ok := lw.blockAt[b.End]
			if !ok {
				return nil, clserr.NewUnsupportedOpcode("method falls off the end of its code without a return")
			}
			lw.builder.Br(next)
		}
	}

	engtrace.Sugar().Debugw("lowered method", "name", name, "blocks", len(blocks))
	return f, nil
}

// bindParams stores each incoming native parameter into the local slot
// convention: slot 0 is the receiver for instance methods, arguments
// occupy the following slots in order, one slot per argument regardless
// of its source width. Boolean, byte, char and short arguments are
// widened to I32 and stored in the I32 slot that iload/istore/iinc use.
func (lw *lowering) bindParams(sig descriptor.Signature, isStatic bool) error {
	slot := 0
	paramIdx := 0
	if !isStatic {
		ptr := lw.slotPtr(slot, backend.Ptr)
		lw.builder.Store(ptr, lw.f.Param(paramIdx))
		slot++
		paramIdx++
	}
	for _, arg := range sig.Args {
		t := irType(arg.Kind)
		v := lw.f.Param(paramIdx)
		switch arg.Kind {
		case descriptor.KBoolean, descriptor.KChar:
			v, t = lw.builder.ZExt(v, backend.I32), backend.I32
		case descriptor.KByte, descriptor.KShort:
			v, t = lw.builder.SExt(v, backend.I32), backend.I32
		}
		ptr := lw.slotPtr(slot, t)
		lw.builder.Store(ptr, v)
		slot++
		paramIdx++
	}
	return nil
}
