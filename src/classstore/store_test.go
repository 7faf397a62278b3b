package classstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/classfile"
	"github.com/jacobin-vm/classjit/src/constpool"
)

func classWithMethod(name, descriptor string) *classfile.ParsedClass {
	pool := &constpool.Pool{Entries: []*constpool.Entry{
		nil,
		{Tag: constpool.TagUTF8, UTF8: name},
		{Tag: constpool.TagUTF8, UTF8: descriptor},
	}}
	return &classfile.ParsedClass{
		Pool: pool,
		Methods: []classfile.Member{
			{NameIndex: 1, DescriptorIndex: 2},
		},
	}
}

func TestStoreAppendOnlyAndStable(t *testing.T) {
	s := New()
	r1 := s.StoreClass(classWithMethod("foo", "()V"))
	r2 := s.StoreClass(classWithMethod("bar", "()V"))
	assert.NotEqual(t, r1, r2)
	assert.NotNil(t, s.Retrieve(r1))
	assert.NotNil(t, s.Retrieve(r2))
}

func TestResolveFindsMethod(t *testing.T) {
	s := New()
	ref := s.StoreClass(classWithMethod("main", "([Ljava/lang/String;)V"))
	mref, ok := s.Resolve(ref, "main", "([Ljava/lang/String;)V")
	require.True(t, ok)
	assert.Equal(t, ref, mref.Class)
	assert.Equal(t, 0, mref.MethodIndex)
}

func TestResolveIsStable(t *testing.T) {
	s := New()
	ref := s.StoreClass(classWithMethod("main", "()V"))
	a, _ := s.Resolve(ref, "main", "()V")
	b, _ := s.Resolve(ref, "main", "()V")
	assert.Equal(t, a, b)
}

func TestResolveMissingMethod(t *testing.T) {
	s := New()
	ref := s.StoreClass(classWithMethod("main", "()V"))
	_, ok := s.Resolve(ref, "other", "()V")
	assert.False(t, ok)
}

func TestRetrieveUnknownRef(t *testing.T) {
	s := New()
	assert.Nil(t, s.Retrieve(ClassRef(42)))
}
