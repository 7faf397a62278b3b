package lower_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/attribute"
	"github.com/jacobin-vm/classjit/src/backend"
	"github.com/jacobin-vm/classjit/src/backend/llvmir"
	"github.com/jacobin-vm/classjit/src/backend/stackvm"
	"github.com/jacobin-vm/classjit/src/descriptor"
	"github.com/jacobin-vm/classjit/src/lower"
)

func eachBackend(t *testing.T) []backend.Module {
	return []backend.Module{stackvm.New(), llvmir.New()}
}

// iconst_2; iconst_4; iadd; ireturn
func addCode() []byte {
	return []byte{0x05, 0x07, 0x60, 0xAC}
}

// iconst_0; ifeq +5; iconst_1; ireturn; iconst_2; ireturn
func branchCode() []byte {
	return []byte{
		0x03,       // iconst_0
		0x99, 0, 5, // ifeq +5 (from its own offset 1 -> target 6)
		0x04, // iconst_1
		0xAC, // ireturn
		0x05, // iconst_2
		0xAC, // ireturn
	}
}

// iconst_5; newarray T_INT(10); astore_1; aload_1; iconst_0; iconst_5;
// iastore; aload_1; iconst_0; iaload; ireturn
func arrayCode() []byte {
	return []byte{
		0x08,     // iconst_5
		0xBC, 10, // newarray int
		0x4C, // astore_1
		0x2B, // aload_1
		0x03, // iconst_0
		0x08, // iconst_5
		0x4F, // iastore
		0x2B, // aload_1
		0x03, // iconst_0
		0x2E, // iaload
		0xAC, // ireturn
	}
}

func TestLowerAndRunAddition(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: addCode()}

	for _, mod := range eachBackend(t) {
		_, err := lower.Method(mod, "add", sig, true, code, 0)
		require.NoError(t, err)
		funcs, err := mod.Finalize()
		require.NoError(t, err)
		fn, ok := funcs["add"]
		require.True(t, ok)
		result, err := fn.Call(nil)
		require.NoError(t, err)
		require.EqualValues(t, 6, result)
	}
}

func TestLowerAndRunBranch(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: branchCode()}

	for _, mod := range eachBackend(t) {
		_, err := lower.Method(mod, "branch", sig, true, code, 0)
		require.NoError(t, err)
		funcs, err := mod.Finalize()
		require.NoError(t, err)
		fn, ok := funcs["branch"]
		require.True(t, ok)
		result, err := fn.Call(nil)
		require.NoError(t, err)
		require.EqualValues(t, 2, result)
	}
}

func TestLowerAndRunIntArray(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 4, MaxLocals: 2, Code: arrayCode()}

	for _, mod := range eachBackend(t) {
		_, err := lower.Method(mod, "arr", sig, true, code, 0)
		require.NoError(t, err)
		funcs, err := mod.Finalize()
		require.NoError(t, err)
		fn, ok := funcs["arr"]
		require.True(t, ok)
		result, err := fn.Call(nil)
		require.NoError(t, err)
		require.EqualValues(t, 5, result)
	}
}

// aconst_null; ifnull +5 -> iconst_2; ireturn  (fallthrough: iconst_1; ireturn)
func nullCheckCode() []byte {
	return []byte{
		0x01,       // aconst_null
		0xC6, 0, 5, // ifnull +5 (from its own offset 1 -> target 6)
		0x04, // iconst_1
		0xAC, // ireturn
		0x05, // iconst_2
		0xAC, // ireturn
	}
}

// Sums i = 0..4 into a local whose only store is inside the loop body
// block, which runs five times; the loop counter's only store is inside
// the same block. Both locals rely on their entry-block allocation
// surviving every iteration:
//
//	L: iload_1; iload_0; iadd; istore_1   // sum += i
//	   iload_0; iconst_1; iadd; istore_0  // i++
//	   iload_0; bipush 5; if_icmplt L
//	   iload_1; ireturn
func loopSumCode() []byte {
	return []byte{
		0x1B,             // iload_1
		0x1A,             // iload_0
		0x60,             // iadd
		0x3C,             // istore_1
		0x1A,             // iload_0
		0x04,             // iconst_1
		0x60,             // iadd
		0x3B,             // istore_0
		0x1A,             // iload_0
		0x10, 5,          // bipush 5
		0xA1, 0xFF, 0xF5, // if_icmplt -11 (target 0)
		0x1B, // iload_1
		0xAC, // ireturn
	}
}

func TestLowerAndRunNullCheck(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 1, MaxLocals: 0, Code: nullCheckCode()}

	for _, mod := range eachBackend(t) {
		_, err := lower.Method(mod, "nullcheck", sig, true, code, 0)
		require.NoError(t, err)
		funcs, err := mod.Finalize()
		require.NoError(t, err)
		fn, ok := funcs["nullcheck"]
		require.True(t, ok)
		result, err := fn.Call(nil)
		require.NoError(t, err)
		require.EqualValues(t, 2, result)
	}
}

func TestLowerAndRunLoopLocalSurvivesIterations(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 2, MaxLocals: 2, Code: loopSumCode()}

	for _, mod := range eachBackend(t) {
		_, err := lower.Method(mod, "loopsum", sig, true, code, 0)
		require.NoError(t, err)
		funcs, err := mod.Finalize()
		require.NoError(t, err)
		fn, ok := funcs["loopsum"]
		require.True(t, ok)
		result, err := fn.Call(nil)
		require.NoError(t, err)
		require.EqualValues(t, 10, result)
	}
}

func TestLowerRejectsUnsupportedOpcode(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KVoid}}
	// new <cpidx> ; return -- object allocation is out of scope.
	code := &attribute.CodeAttribute{MaxStack: 1, MaxLocals: 0, Code: []byte{0xBB, 0, 1, 0xB1}}

	mod := stackvm.New()
	_, err := lower.Method(mod, "bad", sig, true, code, 0)
	require.Error(t, err)
}

func TestLowerRejectsTooManyBasicBlocks(t *testing.T) {
	sig := descriptor.Signature{Return: descriptor.Descriptor{Kind: descriptor.KInt}}
	code := &attribute.CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: branchCode()}

	mod := stackvm.New()
	_, err := lower.Method(mod, "branch", sig, true, code, 1)
	require.Error(t, err)
}
