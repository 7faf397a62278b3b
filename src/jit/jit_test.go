package jit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/attribute"
	"github.com/jacobin-vm/classjit/src/classfile"
	"github.com/jacobin-vm/classjit/src/constpool"
	"github.com/jacobin-vm/classjit/src/engconfig"
	"github.com/jacobin-vm/classjit/src/jit"
)

// buildAddClass fabricates a one-method class whose sole method, "add",
// computes iconst_2; iconst_4; iadd; ireturn.
func buildAddClass() *classfile.ParsedClass {
	pool := &constpool.Pool{Entries: []*constpool.Entry{
		nil, // index 0, unused padding
		{Tag: constpool.TagUTF8, UTF8: "add"},    // 1: name
		{Tag: constpool.TagUTF8, UTF8: "()I"},    // 2: descriptor
	}}

	method := classfile.Member{
		AccessFlags:     classfile.AccStatic,
		NameIndex:       1,
		DescriptorIndex: 2,
		Attributes: []attribute.Attribute{
			{
				Kind: attribute.KindCode,
				Code: &attribute.CodeAttribute{
					MaxStack:  2,
					MaxLocals: 0,
					Code:      []byte{0x05, 0x07, 0x60, 0xAC},
				},
			},
		},
	}

	return &classfile.ParsedClass{
		Pool:    pool,
		Methods: []classfile.Member{method},
	}
}

func TestEngineResolveAndCall(t *testing.T) {
	eng := jit.New(engconfig.Default())
	ref := eng.LoadParsed(buildAddClass())

	methodRef, ok := eng.Resolve(ref, "add", "()I")
	require.True(t, ok)

	fn, err := eng.GetFunctionPointer(methodRef)
	require.NoError(t, err)

	result, err := fn.Call(nil)
	require.NoError(t, err)
	require.EqualValues(t, 6, result)
}

func TestEngineCachesCompiledFunction(t *testing.T) {
	eng := jit.New(engconfig.Default())
	ref := eng.LoadParsed(buildAddClass())
	methodRef, ok := eng.Resolve(ref, "add", "()I")
	require.True(t, ok)

	first, err := eng.GetFunctionPointer(methodRef)
	require.NoError(t, err)
	second, err := eng.GetFunctionPointer(methodRef)
	require.NoError(t, err)

	r1, err := first.Call(nil)
	require.NoError(t, err)
	r2, err := second.Call(nil)
	require.NoError(t, err)
	require.Equal(t, r1, r2)
}

func TestEngineResolveMissingMethodFails(t *testing.T) {
	eng := jit.New(engconfig.Default())
	ref := eng.LoadParsed(buildAddClass())
	_, ok := eng.Resolve(ref, "subtract", "()I")
	require.False(t, ok)
}

func TestBindRejectsDescriptorMismatch(t *testing.T) {
	eng := jit.New(engconfig.Default())
	ref := eng.LoadParsed(buildAddClass())
	methodRef, ok := eng.Resolve(ref, "add", "()I")
	require.True(t, ok)

	fn, err := eng.GetFunctionPointer(methodRef)
	require.NoError(t, err)

	_, err = fn.Bind("()J", nil)
	require.Error(t, err)
}
