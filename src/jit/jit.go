/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package jit is the engine's public facade: load a class, resolve a
// method by name and descriptor, and get back a callable, process-local
// function pointer for it. Everything upstream (parsing, lowering, code
// generation) is an implementation detail from here.
package jit

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/jacobin-vm/classjit/src/backend"
	"github.com/jacobin-vm/classjit/src/backend/llvmir"
	"github.com/jacobin-vm/classjit/src/backend/stackvm"
	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/classfile"
	"github.com/jacobin-vm/classjit/src/classstore"
	"github.com/jacobin-vm/classjit/src/clserr"
	"github.com/jacobin-vm/classjit/src/descriptor"
	"github.com/jacobin-vm/classjit/src/engconfig"
	"github.com/jacobin-vm/classjit/src/engtrace"
	"github.com/jacobin-vm/classjit/src/lower"
)

func newModule(kind engconfig.BackendKind) backend.Module {
	if kind == engconfig.BackendLLVMIR {
		return llvmir.New()
	}
	return stackvm.New()
}

// Engine owns the class store and the compiled-function cache. One
// Engine corresponds to one independent compilation universe; nothing
// is shared across Engines.
type Engine struct {
	cfg    engconfig.Config
	store  *classstore.Store
	mu     sync.Mutex
	cached map[classstore.MethodRef]backend.CompiledFunc
}

// New builds an Engine from cfg.
func New(cfg engconfig.Config) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  classstore.New(),
		cached: make(map[classstore.MethodRef]backend.CompiledFunc),
	}
}

// Load parses a class file from raw and stores it, returning a stable
// reference. raw is rejected up front if it exceeds the engine's
// configured size bound.
func (e *Engine) Load(raw []byte) (classstore.ClassRef, error) {
	if e.cfg.MaxClassFileBytes > 0 && len(raw) > e.cfg.MaxClassFileBytes {
		return 0, clserr.NewClassTooLarge(len(raw), e.cfg.MaxClassFileBytes)
	}
	class, err := classfile.Parse(bytereader.New(raw))
	if err != nil {
		return 0, err
	}
	ref := e.store.StoreClass(class)
	engtrace.Sugar().Debugw("loaded class into engine", "ref", ref)
	return ref, nil
}

// LoadParsed stores an already-decoded class directly, bypassing the
// byte-level parse and its size bound. Useful for embedding classes
// built in-process rather than read from a class file.
func (e *Engine) LoadParsed(class *classfile.ParsedClass) classstore.ClassRef {
	return e.store.StoreClass(class)
}

// Resolve looks up a method by name and descriptor within a loaded class.
func (e *Engine) Resolve(class classstore.ClassRef, name, desc string) (classstore.MethodRef, bool) {
	return e.store.Resolve(class, name, desc)
}

// compile lowers and finalises the method addressed by ref, or returns
// the already-compiled function if a previous call already did so.
func (e *Engine) compile(ref classstore.MethodRef) (backend.CompiledFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cf, ok := e.cached[ref]; ok {
		return cf, nil
	}

	class := e.store.Retrieve(ref.Class)
	if class == nil {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("class ref %d", ref.Class))
	}
	method := e.store.Method(ref)
	if method == nil {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("method index %d", ref.MethodIndex))
	}
	code := method.Code()
	if code == nil {
		return nil, clserr.NewUnsupportedOpcode("method has no Code attribute (abstract or native)")
	}
	descStr, ok := method.Descriptor(class.Pool)
	if !ok {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("descriptor index %d", method.DescriptorIndex))
	}
	sig := descriptor.ParseMethod(descStr)
	isStatic := method.AccessFlags&classfile.AccStatic != 0

	mod := newModule(e.cfg.Backend)
	fnName := fmt.Sprintf("m%d_%d", ref.Class, ref.MethodIndex)
	if _, err := lower.Method(mod, fnName, sig, isStatic, code, e.cfg.MaxBasicBlocksPerMethod); err != nil {
		return nil, err
	}
	funcs, err := mod.Finalize()
	if err != nil {
		return nil, err
	}
	cf, ok := funcs[fnName]
	if !ok {
		return nil, clserr.NewUnsupportedOpcode("backend did not materialise the requested function")
	}
	e.cached[ref] = cf
	engtrace.Sugar().Debugw("compiled method", "ref", ref, "backend", e.cfg.Backend)
	return cf, nil
}

// CompiledFunc exposes the untyped call surface plus a checked escape
// hatch to a real process-address function pointer.
type CompiledFunc struct {
	cf  backend.CompiledFunc
	sig descriptor.Signature
}

// GetFunctionPointer compiles (or reuses a cached compile of) the method
// ref addresses and returns it wrapped for calling.
func (e *Engine) GetFunctionPointer(ref classstore.MethodRef) (*CompiledFunc, error) {
	class := e.store.Retrieve(ref.Class)
	if class == nil {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("class ref %d", ref.Class))
	}
	method := e.store.Method(ref)
	if method == nil {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("method index %d", ref.MethodIndex))
	}
	descStr, ok := method.Descriptor(class.Pool)
	if !ok {
		return nil, clserr.NewInvalidReference(fmt.Sprintf("descriptor index %d", method.DescriptorIndex))
	}
	cf, err := e.compile(ref)
	if err != nil {
		return nil, err
	}
	return &CompiledFunc{cf: cf, sig: descriptor.ParseMethod(descStr)}, nil
}

// Call invokes the compiled function directly, without going through a
// typed Go function value.
func (c *CompiledFunc) Call(args []interface{}) (interface{}, error) {
	return c.cf.Call(args)
}

// Bind builds a typed Go function value (via reflect.MakeFunc) that
// invokes the compiled function, after checking that descriptorWant
// matches the method's actual descriptor. fnType's arity and the compiled
// function's parameter count (the descriptor's arguments, plus the
// receiver for an instance method) must agree, or Bind panics — this is a
// programmer error at the call site, not a runtime data condition.
func (c *CompiledFunc) Bind(descriptorWant string, fnType reflect.Type) (reflect.Value, error) {
	got := c.sig.String()
	if descriptorWant != got {
		return reflect.Value{}, clserr.NewSignatureMismatch(descriptorWant, got)
	}
	if fnType.Kind() != reflect.Func {
		panic("jit: Bind requires a func type")
	}
	if want := len(c.cf.Signature().Params); fnType.NumIn() != want {
		panic(fmt.Sprintf("jit: Bind func type takes %d arguments, compiled function takes %d", fnType.NumIn(), want))
	}
	wrapper := reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		args := make([]interface{}, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		result, err := c.cf.Call(args)
		if err != nil {
			panic(err)
		}
		if fnType.NumOut() == 0 {
			return nil
		}
		out := reflect.ValueOf(result)
		if !out.IsValid() {
			out = reflect.Zero(fnType.Out(0))
		}
		return []reflect.Value{out.Convert(fnType.Out(0))}
	})
	return wrapper, nil
}

// Pointer returns the function's genuine process address. It exists
// behind Bind's typed wrapper rather than on the raw compiled function:
// handing out an address only makes sense once the caller has a Go
// function value of the right shape to call through it.
func Pointer(fn reflect.Value) uintptr {
	return fn.Pointer()
}
