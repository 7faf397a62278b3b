/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package clserr defines the error taxonomy shared by every decoding and
// lowering stage: one Kind per failure mode, plus two contextual wrappers
// (InAttribute, WhileParsing) that chain an inner error with a human
// description of where it happened.
package clserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a failure mode. It never carries data itself; the
// formatted Error.Msg string holds the specifics.
type Kind int

const (
	WrongMagic Kind = iota
	InvalidConstantTableEntry
	InvalidConstantPoolIndex
	InvalidBytecode
	Utf8Error
	Io
	SignatureMismatch
	UnsupportedOpcode
	ClassTooLarge
	TooManyBasicBlocks
	InAttributeKind
	WhileParsingKind
	InvalidConfig
	InvalidReference
)

// Error is the concrete type behind every error this module returns.
type Error struct {
	Kind Kind
	// Msg is a short human-readable description, already formatted with
	// whatever data the Kind needs (the opcode byte, the offending tag,
	// the index, ...).
	Msg string
	// Inner, when non-nil, is the wrapped cause (used by InAttribute and
	// WhileParsing).
	Inner error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Inner)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Inner }

func newErr(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewWrongMagic reports a class file whose first four bytes weren't CAFEBABE.
func NewWrongMagic(found uint32) error {
	return newErr(WrongMagic, "wrong magic number: found 0x%08X, want 0xCAFEBABE", found)
}

// NewInvalidConstantTableEntry reports an unassigned constant-pool tag.
func NewInvalidConstantTableEntry(tag uint8) error {
	return newErr(InvalidConstantTableEntry, "invalid constant pool entry tag: %d", tag)
}

// NewInvalidConstantPoolIndex reports an out-of-range or wrongly-typed index.
func NewInvalidConstantPoolIndex(i int) error {
	return newErr(InvalidConstantPoolIndex, "invalid constant pool index: %d", i)
}

// NewInvalidBytecode reports an unassigned opcode.
func NewInvalidBytecode(opcode uint8) error {
	return newErr(InvalidBytecode, "invalid bytecode opcode: 0x%02X", opcode)
}

// NewUtf8Error reports malformed UTF-8 in a UTF-8 constant pool entry.
func NewUtf8Error() error {
	return newErr(Utf8Error, "malformed UTF-8 in constant pool entry")
}

// NewIo reports a short read or other I/O failure during decoding.
func NewIo(cause error) error {
	return &Error{Kind: Io, Msg: "short read", Inner: cause}
}

// NewSignatureMismatch reports a typed function-pointer request whose
// descriptor does not match the method's actual descriptor.
func NewSignatureMismatch(want, got string) error {
	return newErr(SignatureMismatch, "signature mismatch: method descriptor is %q, requested %q", got, want)
}

// NewUnsupportedOpcode reports an opcode the lowering engine cannot translate.
func NewUnsupportedOpcode(mnemonic string) error {
	return newErr(UnsupportedOpcode, "unsupported opcode in lowering engine: %s", mnemonic)
}

// NewClassTooLarge reports a class file exceeding the configured size bound.
func NewClassTooLarge(size, max int) error {
	return newErr(ClassTooLarge, "class file of %d bytes exceeds configured maximum of %d", size, max)
}

// NewTooManyBasicBlocks reports a method whose block count exceeds the
// configured bound.
func NewTooManyBasicBlocks(count, max int) error {
	return newErr(TooManyBasicBlocks, "method has %d basic blocks, exceeding configured maximum of %d", count, max)
}

// NewInvalidConfig reports a configuration value outside its legal set,
// such as an unrecognised backend name.
func NewInvalidConfig(msg string) error {
	return newErr(InvalidConfig, "invalid configuration: %s", msg)
}

// NewInvalidReference reports a ClassRef/MethodRef that does not address
// anything in the engine's class store.
func NewInvalidReference(msg string) error {
	return newErr(InvalidReference, "invalid reference: %s", msg)
}

// InAttribute wraps inner with the name of the attribute being decoded when
// it failed.
func InAttribute(name string, inner error) error {
	if inner == nil {
		return nil
	}
	return &Error{
		Kind:  InAttributeKind,
		Msg:   fmt.Sprintf("in attribute %q", name),
		Inner: errors.WithStack(inner),
	}
}

// WhileParsing wraps inner with a description of the structural context
// being parsed (e.g. "method 3", "constant pool entry 12") when it failed.
func WhileParsing(context string, inner error) error {
	if inner == nil {
		return nil
	}
	return &Error{
		Kind:  WhileParsingKind,
		Msg:   fmt.Sprintf("while parsing %s", context),
		Inner: errors.WithStack(inner),
	}
}

// Is reports whether err (or any error in its chain) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Inner
			continue
		}
		return false
	}
	return false
}
