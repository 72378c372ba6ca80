package wasmrepl

import "github.com/xirelogy/go-wasmrepl/internal/types"

// Type is a static type: number, bool, none or a class.
type Type = types.Type

// TypeEnv maps class names to their ordered field layouts, together with
// the globals and functions of a session.
type TypeEnv = types.Env

// ClassLayout is the ordered field list of a class.
type ClassLayout = types.ClassLayout

// Field is one declared field of a class.
type Field = types.Field

var (
	NumberType = types.Number
	BoolType   = types.Bool
	NoneType   = types.None
)

// ClassType returns the static type of instances of the named class.
func ClassType(name string) Type { return types.Class(name) }

// NewTypeEnv returns an empty environment with the default global area.
// It is mostly useful for materializing memory images outside a session.
func NewTypeEnv() *TypeEnv {
	return types.NewEnv(globalBase, DefaultConfig().MaxGlobals)
}
