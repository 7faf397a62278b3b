/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package backend is the narrow contract between the lowering engine and
// a code generator: block management, typed arithmetic, memory, and
// function materialisation. Two independent implementations exist,
// backend/llvmir and backend/stackvm; lowering logic in package lower
// depends only on this interface.
package backend

// Type is an IR-level type. The lowering engine maps source descriptors
// onto these before ever touching a concrete backend.
type Type int

const (
	I1 Type = iota
	I8
	I16
	I32
	I64
	F32
	F64
	Ptr
	Void
)

// BinOp identifies a typed arithmetic operation.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	SDiv
	SRem
	And
	Or
	Xor
	Shl
	AShr
	LShr
	FAdd
	FSub
	FMul
	FDiv
	FRem
)

// Pred is a comparison predicate, shared between integer and float
// comparisons; FCmp implementations ignore the integer-only variants and
// vice versa.
type Pred int

const (
	PEQ Pred = iota
	PNE
	PSLT
	PSLE
	PSGT
	PSGE
)

// Signature is a function's native type: ordered parameter types plus a
// result type (Void for none).
type Signature struct {
	Params []Type
	Result Type
}

// Value is an opaque handle to a backend-level SSA value. Its concrete
// type is backend-specific; the lowering engine never inspects it.
type Value interface{}

// Block is an opaque handle to a basic block under construction.
type Block interface{}

// Func is a function under construction. NewBlock may be called at any
// point during lowering; EntryBlock always exists from Module.NewFunc.
type Func interface {
	EntryBlock() Block
	NewBlock(label string) Block
	Param(i int) Value
}

// Builder emits instructions into whichever block SetBlock last
// positioned it at. Allocas are only valid when positioned at a
// function's entry block; the lowering engine honours this by emitting
// every slot allocation through a second Builder that stays positioned
// at the entry block.
type Builder interface {
	SetBlock(b Block)

	Alloca(t Type) Value
	Load(t Type, ptr Value) Value
	Store(ptr Value, val Value)
	// GEPByte computes base + byteOffset, both in bytes; byteOffset may
	// be a runtime Value or a ConstInt.
	GEPByte(base Value, byteOffset Value) Value

	ConstInt(t Type, v int64) Value
	ConstFloat(t Type, v float64) Value

	Bin(op BinOp, t Type, a, b Value) Value
	ICmp(pred Pred, a, b Value) Value
	FCmp(pred Pred, a, b Value) Value

	Trunc(v Value, to Type) Value
	SExt(v Value, to Type) Value
	ZExt(v Value, to Type) Value
	SIToFP(v Value, to Type) Value
	FPToSI(v Value, to Type) Value
	FPCast(v Value, to Type) Value

	// HeapAlloc allocates a runtime-sized byte buffer and returns a
	// pointer to its first byte.
	HeapAlloc(size Value) Value

	Br(target Block)
	CondBr(cond Value, thenB, elseB Block)
	Ret(v Value)
	RetVoid()
}

// CompiledFunc is a materialised function: enough to call it in-process
// and to validate that its native signature matches a caller's
// expectation before handing out a typed wrapper.
type CompiledFunc interface {
	Signature() Signature
	Call(args []interface{}) (interface{}, error)
}

// Module groups functions sharing one compilation unit. Finalize performs
// whatever translation the backend needs (IR verification, scheduling,
// machine-code emission, or — for an in-process backend — nothing beyond
// bookkeeping) and returns each function keyed by the name it was
// declared with.
type Module interface {
	NewFunc(name string, sig Signature) Func
	NewBuilder() Builder
	Finalize() (map[string]CompiledFunc, error)
}
