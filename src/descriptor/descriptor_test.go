package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethodScenario(t *testing.T) {
	sig := ParseMethod("([Ljava/lang/String;DSZ)V")
	want := []Descriptor{
		{Kind: KArray, Elem: &Descriptor{Kind: KReference, ClassName: "java/lang/String"}},
		{Kind: KDouble},
		{Kind: KShort},
		{Kind: KBoolean},
	}
	assert.Equal(t, want, sig.Args)
	assert.Equal(t, Descriptor{Kind: KVoid}, sig.Return)
}

func TestParseMethodNoArgs(t *testing.T) {
	sig := ParseMethod("()I")
	assert.Empty(t, sig.Args)
	assert.Equal(t, Descriptor{Kind: KInt}, sig.Return)
}

func TestVoidArgumentPanics(t *testing.T) {
	assert.Panics(t, func() { ParseMethod("(V)V") })
}

func TestSizes(t *testing.T) {
	assert.Equal(t, 1, Descriptor{Kind: KByte}.Size())
	assert.Equal(t, 8, Descriptor{Kind: KDouble}.Size())
	assert.Equal(t, 0, Descriptor{Kind: KVoid}.Size())
	assert.Equal(t, -1, Descriptor{Kind: KReference}.Size())
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"I", "[I", "Ljava/lang/Object;", "[[D"} {
		d := ParseField(s)
		assert.Equal(t, s, d.String())
	}
}
