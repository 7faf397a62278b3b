/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package stackvm is a closure-based, register-machine implementation of
// the backend contract. It never emits native code: every function is
// recorded as a sequence of typed operations over a byte arena and
// executed in-process at call time. It exists alongside backend/llvmir
// as the second, independent code generator the lowering engine can
// target without depending on either's internals.
package stackvm

import (
	"fmt"
	"math"

	"github.com/jacobin-vm/classjit/src/backend"
)

type val struct {
	ty backend.Type
	i  int64
	f  float64
}

func sizeOf(t backend.Type) int {
	switch t {
	case backend.I1, backend.I8:
		return 1
	case backend.I16:
		return 2
	case backend.I32, backend.F32:
		return 4
	case backend.I64, backend.F64, backend.Ptr:
		return 8
	default:
		return 0
	}
}

func isFloat(t backend.Type) bool { return t == backend.F32 || t == backend.F64 }

// valRef is the handle every Builder method returns; it indexes into an
// execCtx's results map once the owning function is called.
type valRef int

type execCtx struct {
	mem     []byte
	results map[valRef]val
}

func (c *execCtx) alloc(n int) int64 {
	off := int64(len(c.mem))
	c.mem = append(c.mem, make([]byte, n)...)
	return off
}

func (c *execCtx) read(t backend.Type, off int64) val {
	n := sizeOf(t)
	b := c.mem[off : off+int64(n)]
	switch t {
	case backend.F32:
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return val{ty: t, f: float64(math.Float32frombits(bits))}
	case backend.F64:
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(b[i]) << (8 * i)
		}
		return val{ty: t, f: math.Float64frombits(bits)}
	default:
		var v int64
		for i := 0; i < n; i++ {
			v |= int64(b[i]) << (8 * i)
		}
		return val{ty: t, i: v}
	}
}

func (c *execCtx) write(t backend.Type, off int64, v val) {
	n := sizeOf(t)
	switch t {
	case backend.F32:
		bits := math.Float32bits(float32(v.f))
		for i := 0; i < 4; i++ {
			c.mem[off+int64(i)] = byte(bits >> (8 * i))
		}
	case backend.F64:
		bits := math.Float64bits(v.f)
		for i := 0; i < 8; i++ {
			c.mem[off+int64(i)] = byte(bits >> (8 * i))
		}
	default:
		for i := 0; i < n; i++ {
			c.mem[off+int64(i)] = byte(v.i >> (8 * i))
		}
	}
}

func (c *execCtx) resolve(v backend.Value) val {
	return c.results[v.(valRef)]
}

type op func(ctx *execCtx)

type blockTerm struct {
	kind        int // 0=br, 1=condbr, 2=ret, 3=retvoid
	target      *block
	thenB, elseB *block
	retVal      backend.Value
}

type block struct {
	label string
	ops   []op
	term  *blockTerm
}

type fn struct {
	name      string
	sig       backend.Signature
	entry     *block
	blocks    []*block
	paramRefs []valRef
}

func (f *fn) EntryBlock() backend.Block { return f.entry }

func (f *fn) NewBlock(label string) backend.Block {
	b := &block{label: label}
	f.blocks = append(f.blocks, b)
	return b
}

func (f *fn) Param(i int) backend.Value { return f.paramRefs[i] }

// Module is a backend.Module recording every function as interpretable
// closures rather than machine code.
type Module struct {
	funcs    map[string]*fn
	order    []string
	nextRef  valRef
}

// New returns an empty Module.
func New() *Module {
	return &Module{funcs: make(map[string]*fn)}
}

func (m *Module) freshRef() valRef {
	m.nextRef++
	return m.nextRef
}

func (m *Module) NewFunc(name string, sig backend.Signature) backend.Func {
	f := &fn{name: name, sig: sig}
	f.entry = &block{label: "entry"}
	f.blocks = append(f.blocks, f.entry)
	f.paramRefs = make([]valRef, len(sig.Params))
	for i := range sig.Params {
		f.paramRefs[i] = m.freshRef()
	}
	m.funcs[name] = f
	m.order = append(m.order, name)
	return f
}

func (m *Module) NewBuilder() backend.Builder { return &builder{m: m} }

type builder struct {
	m   *Module
	cur *block
}

func (bu *builder) SetBlock(b backend.Block) { bu.cur = b.(*block) }

func (bu *builder) emit(produces bool, fn func(ctx *execCtx) val) backend.Value {
	ref := bu.m.freshRef()
	bu.cur.ops = append(bu.cur.ops, func(ctx *execCtx) {
		ctx.results[ref] = fn(ctx)
	})
	return ref
}

func (bu *builder) Alloca(t backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		return val{ty: backend.Ptr, i: ctx.alloc(sizeOf(t))}
	})
}

func (bu *builder) Load(t backend.Type, ptr backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		p := ctx.resolve(ptr)
		return ctx.read(t, p.i)
	})
}

func (bu *builder) Store(ptr backend.Value, v backend.Value) {
	bu.cur.ops = append(bu.cur.ops, func(ctx *execCtx) {
		p := ctx.resolve(ptr)
		val := ctx.resolve(v)
		ctx.write(val.ty, p.i, val)
	})
}

func (bu *builder) GEPByte(base backend.Value, byteOffset backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		b := ctx.resolve(base)
		o := ctx.resolve(byteOffset)
		return val{ty: backend.Ptr, i: b.i + o.i}
	})
}

func (bu *builder) ConstInt(t backend.Type, v int64) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val { return val{ty: t, i: v} })
}

func (bu *builder) ConstFloat(t backend.Type, v float64) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val { return val{ty: t, f: v} })
}

func (bu *builder) Bin(opKind backend.BinOp, t backend.Type, a, b backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		av, bv := ctx.resolve(a), ctx.resolve(b)
		if isFloat(t) {
			var r float64
			switch opKind {
			case backend.FAdd:
				r = av.f + bv.f
			case backend.FSub:
				r = av.f - bv.f
			case backend.FMul:
				r = av.f * bv.f
			case backend.FDiv:
				r = av.f / bv.f
			case backend.FRem:
				r = math.Mod(av.f, bv.f)
			default:
				panic(fmt.Sprintf("stackvm: non-float BinOp %d applied to float type", opKind))
			}
			return val{ty: t, f: r}
		}
		var r int64
		switch opKind {
		case backend.Add:
			r = av.i + bv.i
		case backend.Sub:
			r = av.i - bv.i
		case backend.Mul:
			r = av.i * bv.i
		case backend.SDiv:
			r = av.i / bv.i
		case backend.SRem:
			r = av.i % bv.i
		case backend.And:
			r = av.i & bv.i
		case backend.Or:
			r = av.i | bv.i
		case backend.Xor:
			r = av.i ^ bv.i
		case backend.Shl:
			r = av.i << uint(bv.i)
		case backend.AShr:
			r = av.i >> uint(bv.i)
		case backend.LShr:
			r = int64(uint64(av.i) >> uint(bv.i))
		default:
			panic(fmt.Sprintf("stackvm: float BinOp %d applied to integer type", opKind))
		}
		return val{ty: t, i: r}
	})
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (bu *builder) ICmp(pred backend.Pred, a, b backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		av, bv := ctx.resolve(a), ctx.resolve(b)
		var r bool
		switch pred {
		case backend.PEQ:
			r = av.i == bv.i
		case backend.PNE:
			r = av.i != bv.i
		case backend.PSLT:
			r = av.i < bv.i
		case backend.PSLE:
			r = av.i <= bv.i
		case backend.PSGT:
			r = av.i > bv.i
		case backend.PSGE:
			r = av.i >= bv.i
		}
		return val{ty: backend.I1, i: boolInt(r)}
	})
}

func (bu *builder) FCmp(pred backend.Pred, a, b backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		av, bv := ctx.resolve(a), ctx.resolve(b)
		var r bool
		switch pred {
		case backend.PEQ:
			r = av.f == bv.f
		case backend.PNE:
			r = av.f != bv.f
		case backend.PSLT:
			r = av.f < bv.f
		case backend.PSLE:
			r = av.f <= bv.f
		case backend.PSGT:
			r = av.f > bv.f
		case backend.PSGE:
			r = av.f >= bv.f
		}
		return val{ty: backend.I1, i: boolInt(r)}
	})
}

func maskWidth(v int64, bits uint) int64 {
	if bits >= 64 {
		return v
	}
	mask := int64(1)<<bits - 1
	return v & mask
}

func signExtend(v int64, bits uint) int64 {
	shift := 64 - bits
	return (v << shift) >> shift
}

func (bu *builder) Trunc(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		return val{ty: to, i: maskWidth(in.i, uint(sizeOf(to)*8))}
	})
}

func (bu *builder) SExt(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		return val{ty: to, i: signExtend(in.i, uint(sizeOf(in.ty)*8))}
	})
}

func (bu *builder) ZExt(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		return val{ty: to, i: maskWidth(in.i, uint(sizeOf(in.ty)*8))}
	})
}

func (bu *builder) SIToFP(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		return val{ty: to, f: float64(in.i)}
	})
}

func (bu *builder) FPToSI(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		return val{ty: to, i: int64(in.f)}
	})
}

func (bu *builder) FPCast(v backend.Value, to backend.Type) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		in := ctx.resolve(v)
		if to == backend.F32 {
			return val{ty: to, f: float64(float32(in.f))}
		}
		return val{ty: to, f: in.f}
	})
}

func (bu *builder) HeapAlloc(size backend.Value) backend.Value {
	return bu.emit(true, func(ctx *execCtx) val {
		n := ctx.resolve(size)
		return val{ty: backend.Ptr, i: ctx.alloc(int(n.i))}
	})
}

func (bu *builder) Br(target backend.Block) {
	bu.cur.term = &blockTerm{kind: 0, target: target.(*block)}
}

func (bu *builder) CondBr(cond backend.Value, thenB, elseB backend.Block) {
	bu.cur.term = &blockTerm{kind: 1, thenB: thenB.(*block), elseB: elseB.(*block), retVal: cond}
}

func (bu *builder) Ret(v backend.Value) {
	bu.cur.term = &blockTerm{kind: 2, retVal: v}
}

func (bu *builder) RetVoid() {
	bu.cur.term = &blockTerm{kind: 3}
}

// compiledFunc adapts an interpreted fn to backend.CompiledFunc.
type compiledFunc struct {
	f *fn
}

func (c *compiledFunc) Signature() backend.Signature { return c.f.sig }

func toVal(t backend.Type, arg interface{}) val {
	if isFloat(t) {
		switch x := arg.(type) {
		case float32:
			return val{ty: t, f: float64(x)}
		case float64:
			return val{ty: t, f: x}
		}
		panic(fmt.Sprintf("stackvm: argument %v is not a float for parameter type %v", arg, t))
	}
	switch x := arg.(type) {
	case int:
		return val{ty: t, i: int64(x)}
	case int32:
		return val{ty: t, i: int64(x)}
	case int64:
		return val{ty: t, i: x}
	case bool:
		return val{ty: t, i: boolInt(x)}
	}
	panic(fmt.Sprintf("stackvm: argument %v is not an integer for parameter type %v", arg, t))
}

func fromVal(t backend.Type, v val) interface{} {
	switch t {
	case backend.Void:
		return nil
	case backend.F32:
		return float32(v.f)
	case backend.F64:
		return v.f
	case backend.I64, backend.Ptr:
		return v.i
	default:
		return int32(v.i)
	}
}

func (c *compiledFunc) Call(args []interface{}) (interface{}, error) {
	if len(args) != len(c.f.sig.Params) {
		return nil, fmt.Errorf("stackvm: %s expects %d arguments, got %d", c.f.name, len(c.f.sig.Params), len(args))
	}
	ctx := &execCtx{results: make(map[valRef]val)}
	for i, a := range args {
		ctx.results[c.f.paramRefs[i]] = toVal(c.f.sig.Params[i], a)
	}

	cur := c.f.entry
	for {
		for _, op := range cur.ops {
			op(ctx)
		}
		if cur.term == nil {
			return nil, fmt.Errorf("stackvm: block %q has no terminator", cur.label)
		}
		switch cur.term.kind {
		case 0:
			cur = cur.term.target
		case 1:
			cond := ctx.resolve(cur.term.retVal)
			if cond.i != 0 {
				cur = cur.term.thenB
			} else {
				cur = cur.term.elseB
			}
		case 2:
			rv := ctx.resolve(cur.term.retVal)
			return fromVal(c.f.sig.Result, rv), nil
		case 3:
			return nil, nil
		}
	}
}

func (m *Module) Finalize() (map[string]backend.CompiledFunc, error) {
	out := make(map[string]backend.CompiledFunc, len(m.funcs))
	for name, f := range m.funcs {
		for _, b := range f.blocks {
			if b.term == nil {
				return nil, fmt.Errorf("stackvm: function %q has a block %q with no terminator", name, b.label)
			}
		}
		out[name] = &compiledFunc{f: f}
	}
	return out, nil
}
