/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package constpool decodes and indexes a class file's constant pool: a
// tagged-union table of literals and symbolic cross-references, addressed
// by 1-based index.
package constpool

import (
	"unicode/utf8"

	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
)

// Tag identifies the wire-format type of a constant pool entry.
type Tag uint8

const (
	TagUTF8               Tag = 1
	TagInteger             Tag = 3
	TagFloat               Tag = 4
	TagLong                Tag = 5
	TagDouble              Tag = 6
	TagClass               Tag = 7
	TagString              Tag = 8
	TagFieldRef            Tag = 9
	TagMethodRef           Tag = 10
	TagInterfaceMethodRef  Tag = 11
	TagNameAndType         Tag = 12
	TagMethodHandle        Tag = 15
	TagMethodType          Tag = 16
	TagDynamic             Tag = 17
	TagInvokeDynamic       Tag = 18
	TagModule              Tag = 19
	TagPackage             Tag = 20
)

// Entry is the tagged-union payload of one constant pool slot. Exactly one
// of the typed fields below is meaningful, selected by Tag.
type Entry struct {
	Tag Tag

	// Class, String, MethodType, Module, Package: a single pool index.
	Index uint16

	// FieldRef, MethodRef, InterfaceMethodRef: class + name-and-type.
	ClassIndex       uint16
	NameAndTypeIndex uint16

	// NameAndType: name + descriptor.
	NameIndex       uint16
	DescriptorIndex uint16

	// Integer / Float / Long / Double: raw value.
	IntVal    int32
	FloatVal  float32
	LongVal   int64
	DoubleVal float64

	// UTF8: decoded string payload.
	UTF8 string

	// MethodHandle: reference kind + index into a Field/MethodRef entry.
	RefKind uint8

	// Dynamic / InvokeDynamic: bootstrap method attribute index + name-and-type.
	BootstrapMethodAttrIndex uint16
}

// Pool is the ordered, 1-indexed constant pool of a class file. Index 0 is
// always "absent"; Entries[0] is unused padding kept so 1-based indices map
// directly onto the slice.
type Pool struct {
	Entries []*Entry
}

// Parse reads a u16 count K, then decodes K-1 entries (the class file
// format's historical off-by-one: the count includes the reserved zero
// slot). Long and Double entries occupy a single slot here; no phantom
// slot is reserved after them.
func Parse(r *bytereader.Reader) (*Pool, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}

	p := &Pool{Entries: make([]*Entry, count)}
	for i := 1; i < int(count); i++ {
		e, err := parseEntry(r)
		if err != nil {
			return nil, clserr.WhileParsing("constant pool entry", err)
		}
		p.Entries[i] = e
	}
	return p, nil
}

func parseEntry(r *bytereader.Reader) (*Entry, error) {
	tagByte, err := r.U8()
	if err != nil {
		return nil, err
	}
	tag := Tag(tagByte)

	switch tag {
	case TagUTF8:
		length, err := r.U16()
		if err != nil {
			return nil, err
		}
		b, err := r.ReadExact(int(length))
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, clserr.NewUtf8Error()
		}
		return &Entry{Tag: tag, UTF8: string(b)}, nil

	case TagInteger:
		v, err := r.I32()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, IntVal: v}, nil

	case TagFloat:
		v, err := r.F32()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, FloatVal: v}, nil

	case TagLong:
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, LongVal: v}, nil

	case TagDouble:
		v, err := r.F64()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, DoubleVal: v}, nil

	case TagClass, TagMethodType, TagModule, TagPackage:
		idx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, Index: idx}, nil

	case TagString:
		idx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, Index: idx}, nil

	case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
		classIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		natIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, ClassIndex: classIdx, NameAndTypeIndex: natIdx}, nil

	case TagNameAndType:
		nameIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, NameIndex: nameIdx, DescriptorIndex: descIdx}, nil

	case TagMethodHandle:
		refKind, err := r.U8()
		if err != nil {
			return nil, err
		}
		refIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, RefKind: refKind, Index: refIdx}, nil

	case TagDynamic, TagInvokeDynamic:
		bootstrapIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		natIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &Entry{Tag: tag, BootstrapMethodAttrIndex: bootstrapIdx, NameAndTypeIndex: natIdx}, nil

	default:
		return nil, clserr.NewInvalidConstantTableEntry(uint8(tag))
	}
}

// Len returns the number of addressable slots (count - 1 from the wire,
// plus the reserved zero slot).
func (p *Pool) Len() int { return len(p.Entries) }

// Get returns the entry at 1-based index i, or nil if i is 0, out of range,
// or otherwise absent.
func (p *Pool) Get(i int) *Entry {
	if i <= 0 || i >= len(p.Entries) {
		return nil
	}
	return p.Entries[i]
}

// GetAs returns the entry at index i only if its tag matches want;
// otherwise it returns nil (absent).
func (p *Pool) GetAs(i int, want Tag) *Entry {
	e := p.Get(i)
	if e == nil || e.Tag != want {
		return nil
	}
	return e
}

// GetString returns the UTF-8 payload at index i, or "" with ok=false if i
// doesn't address a UTF8 entry.
func (p *Pool) GetString(i int) (string, bool) {
	e := p.GetAs(i, TagUTF8)
	if e == nil {
		return "", false
	}
	return e.UTF8, true
}

// GetClassName resolves a Class entry at index i to its UTF-8 name.
func (p *Pool) GetClassName(i int) (string, bool) {
	e := p.GetAs(i, TagClass)
	if e == nil {
		return "", false
	}
	return p.GetString(int(e.Index))
}

// GetNameAndType resolves a NameAndType entry at index i to its (name,
// descriptor) UTF-8 pair.
func (p *Pool) GetNameAndType(i int) (name, descriptor string, ok bool) {
	e := p.GetAs(i, TagNameAndType)
	if e == nil {
		return "", "", false
	}
	name, okN := p.GetString(int(e.NameIndex))
	descriptor, okD := p.GetString(int(e.DescriptorIndex))
	return name, descriptor, okN && okD
}
