// Package wasmrepl evaluates a typed Python subset incrementally on a
// WebAssembly runtime and exposes the results as inspectable values.
package wasmrepl

import (
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// Kind enumerates the shapes a Value can take.
type Kind int

const (
	KindNone Kind = iota
	KindNum
	KindBool
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNum:
		return "num"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the result of an evaluation or a materialized field. Class and
// Address are only meaningful for KindObject.
type Value struct {
	Kind    Kind
	Num     int32
	Bool    bool
	Class   string
	Address uint32

	// epoch identifies the session memory an object address belongs to.
	epoch string
}

func Num(n int32) Value {
	return Value{Kind: KindNum, Num: n}
}

func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func None() Value { return Value{Kind: KindNone} }

// Object references an instance of class at a byte address.
func Object(class string, address uint32) Value {
	return Value{Kind: KindObject, Class: class, Address: address}
}

// IsObject reports whether v references a heap object.
func (v Value) IsObject() bool { return v.Kind == KindObject }

func (v Value) String() string { return RenderTop(v) }

// fromWord decodes a raw memory or return word of static type t.
func fromWord(t types.Type, word int32) Value {
	switch t.Tag {
	case types.TagNumber:
		return Num(word)
	case types.TagBool:
		return Bool(word != 0)
	case types.TagClass:
		if word == 0 {
			return None()
		}
		return Object(t.Name, uint32(word))
	default:
		return None()
	}
}
