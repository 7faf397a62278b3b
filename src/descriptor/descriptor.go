/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package descriptor parses field and method descriptors into typed
// signatures.
package descriptor

import (
	"fmt"
	"strings"
)

// Kind is the sum type over primitive kinds plus Reference and Array.
type Kind int

const (
	KByte Kind = iota
	KChar
	KDouble
	KFloat
	KInt
	KLong
	KShort
	KBoolean
	KVoid
	KReference
	KArray
)

// Descriptor is one field/return/argument type.
type Descriptor struct {
	Kind Kind
	// ClassName is set when Kind == KReference: the internal (slash
	// separated) class name, without the leading 'L' or trailing ';'.
	ClassName string
	// Elem is set when Kind == KArray: the element descriptor.
	Elem *Descriptor
}

// Size returns the descriptor's concrete byte size for primitives; 0 for
// Void; -1 for Reference/Array, whose size is platform-pointer-sized and
// left to the back-end.
func (d Descriptor) Size() int {
	switch d.Kind {
	case KByte, KBoolean:
		return 1
	case KChar, KShort:
		return 2
	case KInt, KFloat:
		return 4
	case KLong, KDouble:
		return 8
	case KVoid:
		return 0
	default:
		return -1
	}
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KByte:
		return "B"
	case KChar:
		return "C"
	case KDouble:
		return "D"
	case KFloat:
		return "F"
	case KInt:
		return "I"
	case KLong:
		return "J"
	case KShort:
		return "S"
	case KBoolean:
		return "Z"
	case KVoid:
		return "V"
	case KReference:
		return "L" + d.ClassName + ";"
	case KArray:
		return "[" + d.Elem.String()
	}
	return "?"
}

// Signature is a method descriptor: its ordered argument descriptors and
// single return descriptor.
type Signature struct {
	Args   []Descriptor
	Return Descriptor
}

// String reconstructs the wire-format method descriptor this Signature
// was parsed from (or an equivalent one, for a Signature built by hand).
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range s.Args {
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	b.WriteString(s.Return.String())
	return b.String()
}

// ParseMethod parses a method descriptor of the shape
// "(<args>)<return>". Argument parsing is greedy; Void is forbidden as an
// argument and only legal as the return descriptor. Panics on malformed
// input: the caller is expected to have already validated the
// descriptor's UTF-8 entry during structural class-file decoding.
func ParseMethod(raw string) Signature {
	if !strings.HasPrefix(raw, "(") {
		panic(fmt.Sprintf("descriptor: method descriptor must start with '(': %q", raw))
	}
	pos := 1
	var args []Descriptor
	for pos < len(raw) && raw[pos] != ')' {
		d, next := parseOne(raw, pos)
		if d.Kind == KVoid {
			panic(fmt.Sprintf("descriptor: void is not a legal argument type: %q", raw))
		}
		args = append(args, d)
		pos = next
	}
	if pos >= len(raw) || raw[pos] != ')' {
		panic(fmt.Sprintf("descriptor: unterminated argument list: %q", raw))
	}
	pos++ // skip ')'

	ret, next := parseOne(raw, pos)
	if next != len(raw) {
		panic(fmt.Sprintf("descriptor: trailing data after return type: %q", raw))
	}
	return Signature{Args: args, Return: ret}
}

// ParseField parses a single field descriptor (no enclosing parens).
func ParseField(raw string) Descriptor {
	d, next := parseOne(raw, 0)
	if next != len(raw) {
		panic(fmt.Sprintf("descriptor: trailing data after field type: %q", raw))
	}
	return d
}

// parseOne parses exactly one descriptor starting at pos and returns it
// along with the position immediately following it.
func parseOne(raw string, pos int) (Descriptor, int) {
	if pos >= len(raw) {
		panic(fmt.Sprintf("descriptor: unexpected end of input: %q", raw))
	}
	switch raw[pos] {
	case 'B':
		return Descriptor{Kind: KByte}, pos + 1
	case 'C':
		return Descriptor{Kind: KChar}, pos + 1
	case 'D':
		return Descriptor{Kind: KDouble}, pos + 1
	case 'F':
		return Descriptor{Kind: KFloat}, pos + 1
	case 'I':
		return Descriptor{Kind: KInt}, pos + 1
	case 'J':
		return Descriptor{Kind: KLong}, pos + 1
	case 'S':
		return Descriptor{Kind: KShort}, pos + 1
	case 'Z':
		return Descriptor{Kind: KBoolean}, pos + 1
	case 'V':
		return Descriptor{Kind: KVoid}, pos + 1
	case 'L':
		end := strings.IndexByte(raw[pos:], ';')
		if end == -1 {
			panic(fmt.Sprintf("descriptor: unterminated reference type: %q", raw))
		}
		className := raw[pos+1 : pos+end]
		return Descriptor{Kind: KReference, ClassName: className}, pos + end + 1
	case '[':
		elem, next := parseOne(raw, pos+1)
		return Descriptor{Kind: KArray, Elem: &elem}, next
	default:
		panic(fmt.Sprintf("descriptor: invalid type character %q in %q", raw[pos], raw))
	}
}
