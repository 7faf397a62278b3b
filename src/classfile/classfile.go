/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package classfile implements the top-level structural parse of a class
// file into a ParsedClass: magic check, version, constant pool, access
// flags, this/super class, interfaces, fields, methods and attributes.
package classfile

import (
	"github.com/jacobin-vm/classjit/src/attribute"
	"github.com/jacobin-vm/classjit/src/bytereader"
	"github.com/jacobin-vm/classjit/src/clserr"
	"github.com/jacobin-vm/classjit/src/constpool"
	"github.com/jacobin-vm/classjit/src/engtrace"
)

// Magic is the required first four bytes of a class file.
const Magic uint32 = 0xCAFEBABE

// RecognisedAccessFlags masks off any bits the format hasn't assigned a
// meaning to across class/field/method access-flag contexts.
const RecognisedAccessFlags uint16 = 0xFFFF

const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
)

// Member is a field or method record. Fields and methods share an
// identical wire shape; they're distinguished only by which slice of
// ParsedClass holds them.
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []attribute.Attribute
}

// Name resolves the member's name through the pool.
func (m Member) Name(pool *constpool.Pool) (string, bool) {
	return pool.GetString(int(m.NameIndex))
}

// Descriptor resolves the member's descriptor through the pool.
func (m Member) Descriptor(pool *constpool.Pool) (string, bool) {
	return pool.GetString(int(m.DescriptorIndex))
}

// Code returns the member's Code attribute, if it has one (methods only;
// abstract/native methods have none).
func (m Member) Code() *attribute.CodeAttribute {
	for _, a := range m.Attributes {
		if a.Kind == attribute.KindCode {
			return a.Code
		}
	}
	return nil
}

// ParsedClass is the fully decoded, immutable structural representation
// of one class file.
type ParsedClass struct {
	MinorVersion uint16
	MajorVersion uint16

	Pool *constpool.Pool

	AccessFlags uint16
	ThisClass   uint16
	SuperClass  uint16

	Interfaces []uint16
	Fields     []Member
	Methods    []Member
	Attributes []attribute.Attribute
}

// ThisClassName resolves the class's own name.
func (c *ParsedClass) ThisClassName() (string, bool) {
	return c.Pool.GetClassName(int(c.ThisClass))
}

// SuperClassName resolves the superclass's name. Returns ("", false) for
// java.lang.Object, whose SuperClass index is 0.
func (c *ParsedClass) SuperClassName() (string, bool) {
	if c.SuperClass == 0 {
		return "", false
	}
	return c.Pool.GetClassName(int(c.SuperClass))
}

// Parse decodes a class file from r: magic, version, constant pool,
// access flags, this/super, interfaces, fields, methods, attributes.
func Parse(r *bytereader.Reader) (*ParsedClass, error) {
	magic, err := r.U32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, clserr.NewWrongMagic(magic)
	}

	minor, err := r.U16()
	if err != nil {
		return nil, err
	}
	major, err := r.U16()
	if err != nil {
		return nil, err
	}

	pool, err := constpool.Parse(r)
	if err != nil {
		return nil, clserr.WhileParsing("constant pool", err)
	}

	accessRaw, err := r.U16()
	if err != nil {
		return nil, err
	}
	access := accessRaw & RecognisedAccessFlags

	thisClass, err := r.U16()
	if err != nil {
		return nil, err
	}
	superClass, err := r.U16()
	if err != nil {
		return nil, err
	}

	interfaceCount, err := r.U16()
	if err != nil {
		return nil, err
	}
	interfaces := make([]uint16, interfaceCount)
	for i := range interfaces {
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		interfaces[i] = v
	}

	fields, err := parseMembers(r, pool)
	if err != nil {
		return nil, clserr.WhileParsing("fields", err)
	}

	methods, err := parseMembers(r, pool)
	if err != nil {
		return nil, clserr.WhileParsing("methods", err)
	}

	classAttrs, err := attribute.ParseArray(r, pool)
	if err != nil {
		return nil, clserr.WhileParsing("class attributes", err)
	}

	engtrace.Sugar().Debugw("parsed class file",
		"major", major, "minor", minor,
		"fields", len(fields), "methods", len(methods))

	return &ParsedClass{
		MinorVersion: minor,
		MajorVersion: major,
		Pool:         pool,
		AccessFlags:  access,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Attributes:   classAttrs,
	}, nil
}

func parseMembers(r *bytereader.Reader, pool *constpool.Pool) ([]Member, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]Member, count)
	for i := range out {
		access, err := r.U16()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.U16()
		if err != nil {
			return nil, err
		}
		attrs, err := attribute.ParseArray(r, pool)
		if err != nil {
			return nil, err
		}
		out[i] = Member{
			AccessFlags:     access & RecognisedAccessFlags,
			NameIndex:       nameIdx,
			DescriptorIndex: descIdx,
			Attributes:      attrs,
		}
	}
	return out, nil
}
