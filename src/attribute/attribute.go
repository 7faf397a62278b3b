/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package attribute decodes class-file attributes: name-dispatched,
// length-bounded records. Recognised names decode into a typed payload;
// unknown names are skipped by consuming exactly their declared length,
// and report as absent.
package attribute

import (
	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
	"github.com/jacobin-vm/classjit/src/constpool"
)

// Kind identifies which recognised attribute payload is present.
type Kind int

const (
	KindConstantValue Kind = iota
	KindCode
	KindExceptions
	KindLineNumberTable
	KindSynthetic
	KindDeprecated
)

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// CodeAttribute is the Code attribute's decoded payload. The code and
// exception-table bytes are opaque, owned byte slices; the bytecode
// package is responsible for interpreting Code.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []byte
	Attributes     []Attribute
}

// Attribute is one decoded, recognised attribute.
type Attribute struct {
	Kind Kind

	// KindConstantValue
	ConstantValueIndex uint16

	// KindCode
	Code *CodeAttribute

	// KindExceptions
	ExceptionIndexes []uint16

	// KindLineNumberTable
	LineNumbers []LineNumberEntry
}

// ParseArray decodes a u16 count followed by that many attribute records;
// unknown/absent entries are dropped silently, so the returned slice may be
// shorter than the wire count.
func ParseArray(r *bytereader.Reader, pool *constpool.Pool) ([]Attribute, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	var out []Attribute
	for i := 0; i < int(count); i++ {
		a, err := ParseOne(r, pool)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// ParseOne decodes one (name-index u16, length u32, payload) record. It
// returns (nil, nil) for an unrecognised name, having still consumed
// exactly the declared length from r.
func ParseOne(r *bytereader.Reader, pool *constpool.Pool) (*Attribute, error) {
	nameIdx, err := r.U16()
	if err != nil {
		return nil, err
	}
	length, err := r.U32()
	if err != nil {
		return nil, err
	}
	name, ok := pool.GetString(int(nameIdx))
	if !ok {
		return nil, clserr.NewInvalidConstantPoolIndex(int(nameIdx))
	}

	sub, err := r.Sub(int(length))
	if err != nil {
		return nil, err
	}

	switch name {
	case "ConstantValue":
		idx, err := sub.U16()
		if err != nil {
			return nil, clserr.InAttribute(name, err)
		}
		return &Attribute{Kind: KindConstantValue, ConstantValueIndex: idx}, nil

	case "Code":
		c, err := parseCode(sub, pool)
		if err != nil {
			return nil, clserr.InAttribute(name, err)
		}
		return &Attribute{Kind: KindCode, Code: c}, nil

	case "Exceptions":
		idxs, err := parseExceptions(sub)
		if err != nil {
			return nil, clserr.InAttribute(name, err)
		}
		return &Attribute{Kind: KindExceptions, ExceptionIndexes: idxs}, nil

	case "LineNumberTable":
		lines, err := parseLineNumberTable(sub)
		if err != nil {
			return nil, clserr.InAttribute(name, err)
		}
		return &Attribute{Kind: KindLineNumberTable, LineNumbers: lines}, nil

	case "Synthetic":
		return &Attribute{Kind: KindSynthetic}, nil

	case "Deprecated":
		return &Attribute{Kind: KindDeprecated}, nil

	default:
		// Unknown attribute: r.Sub already consumed exactly `length`
		// bytes, so the cursor is correctly positioned; report absent.
		return nil, nil
	}
}

func parseCode(r *bytereader.Reader, pool *constpool.Pool) (*CodeAttribute, error) {
	maxStack, err := r.U16()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.U16()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	code, err := r.ReadExact(int(codeLen))
	if err != nil {
		return nil, err
	}
	excTableLen, err := r.U16()
	if err != nil {
		return nil, err
	}
	excTable, err := r.ReadExact(int(excTableLen) * 8)
	if err != nil {
		return nil, err
	}
	attrs, err := ParseArray(r, pool)
	if err != nil {
		return nil, err
	}

	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)
	excCopy := make([]byte, len(excTable))
	copy(excCopy, excTable)

	return &CodeAttribute{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Code:           codeCopy,
		ExceptionTable: excCopy,
		Attributes:     attrs,
	}, nil
}

func parseExceptions(r *bytereader.Reader) ([]uint16, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseLineNumberTable(r *bytereader.Reader) ([]LineNumberEntry, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, count)
	for i := range out {
		startPC, err := r.U16()
		if err != nil {
			return nil, err
		}
		line, err := r.U16()
		if err != nil {
			return nil, err
		}
		out[i] = LineNumberEntry{StartPC: startPC, LineNumber: line}
	}
	return out, nil
}
