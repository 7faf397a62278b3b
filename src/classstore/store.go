/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package classstore holds stable references to loaded classes and their
// methods: an append-only table indexed by a numeric handle, plus
// name/descriptor resolution of methods within a class.
package classstore

import (
	"sync"

	"github.com/jacobin-vm/classjit/src/classfile"
)

// ClassRef is a stable numeric handle into a Store. Once returned from
// Store, it is valid for the store's entire lifetime: entries are never
// removed or relocated.
type ClassRef int

// MethodRef identifies one method within one loaded class.
type MethodRef struct {
	Class       ClassRef
	MethodIndex int
}

// Store is an append-only table of loaded classes.
type Store struct {
	mu      sync.RWMutex
	classes []*classfile.ParsedClass
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// StoreClass appends class and returns a stable reference to it.
func (s *Store) StoreClass(class *classfile.ParsedClass) ClassRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = append(s.classes, class)
	return ClassRef(len(s.classes) - 1)
}

// Retrieve returns the class referenced by ref, or nil if ref was never
// issued by this Store.
func (s *Store) Retrieve(ref ClassRef) *classfile.ParsedClass {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(ref) < 0 || int(ref) >= len(s.classes) {
		return nil
	}
	return s.classes[ref]
}

// Resolve linearly searches the referenced class's methods for one whose
// (name, descriptor) match exactly, returning the first match. Resolving
// the same (class, name, descriptor) twice returns an equal MethodRef
// every time, since the store is append-only and method order within a
// class never changes.
func (s *Store) Resolve(ref ClassRef, name, descriptor string) (MethodRef, bool) {
	class := s.Retrieve(ref)
	if class == nil {
		return MethodRef{}, false
	}
	for i, m := range class.Methods {
		mName, ok := m.Name(class.Pool)
		if !ok || mName != name {
			continue
		}
		mDesc, ok := m.Descriptor(class.Pool)
		if !ok || mDesc != descriptor {
			continue
		}
		return MethodRef{Class: ref, MethodIndex: i}, true
	}
	return MethodRef{}, false
}

// Method returns the Member record a MethodRef addresses, or nil if the
// reference is stale (which cannot happen for references this Store
// issued, since classes and their method slices are immutable once
// stored).
func (s *Store) Method(ref MethodRef) *classfile.Member {
	class := s.Retrieve(ref.Class)
	if class == nil || ref.MethodIndex < 0 || ref.MethodIndex >= len(class.Methods) {
		return nil
	}
	return &class.Methods[ref.MethodIndex]
}
