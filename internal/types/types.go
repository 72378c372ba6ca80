// Package types holds the static type model shared by the checker, the
// code generator and the heap materializer.
package types

import "fmt"

// Tag enumerates the closed set of static types.
type Tag int

const (
	TagInvalid Tag = iota
	TagNumber
	TagBool
	TagNone
	TagClass
)

func (t Tag) String() string {
	switch t {
	case TagInvalid:
		return "invalid"
	case TagNumber:
		return "number"
	case TagBool:
		return "bool"
	case TagNone:
		return "none"
	case TagClass:
		return "class"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Type is a static type. Name is only set for TagClass. The zero Type is
// Invalid and marks an expression that failed to check.
type Type struct {
	Tag  Tag
	Name string
}

var (
	Invalid = Type{}
	Number  = Type{Tag: TagNumber}
	Bool    = Type{Tag: TagBool}
	None    = Type{Tag: TagNone}
)

// Class returns the type of instances of the named class.
func Class(name string) Type {
	return Type{Tag: TagClass, Name: name}
}

// Valid reports whether t is a real type.
func (t Type) Valid() bool { return t.Tag != TagInvalid }

// IsClass reports whether t is a class type.
func (t Type) IsClass() bool { return t.Tag == TagClass }

// String renders the type the way it is written in source.
func (t Type) String() string {
	switch t.Tag {
	case TagNumber:
		return "int"
	case TagBool:
		return "bool"
	case TagNone:
		return "<None>"
	case TagClass:
		return t.Name
	default:
		return t.Tag.String()
	}
}

// Assignable reports whether a value of type src may be stored in a
// location of type dst. None is assignable to every class type.
func Assignable(dst, src Type) bool {
	if dst == src {
		return true
	}
	return dst.Tag == TagClass && src.Tag == TagNone
}
