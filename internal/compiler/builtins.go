package compiler

import (
	"fmt"

	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/runtime"
	"github.com/xirelogy/go-wasmrepl/internal/types"
	"github.com/xirelogy/go-wasmrepl/internal/wasm"
)

// intrinsics are source-level builtins that map one to one onto a host
// import of the same name.
var intrinsics = map[string]bool{
	"abs": true,
	"min": true,
	"max": true,
	"pow": true,
}

func builtinName(call *ast.CallExpr) (string, bool) {
	if call.Name == "print" || intrinsics[call.Name] {
		return call.Name, true
	}
	return "", false
}

// printImport selects the print import for a value of type t.
func printImport(t types.Type) (string, error) {
	switch t.Tag {
	case types.TagNumber:
		return "print_num", nil
	case types.TagBool:
		return "print_bool", nil
	case types.TagNone:
		return "print_none", nil
	default:
		return "", fmt.Errorf("cannot print value of type %s", t)
	}
}

func (fc *funcCompiler) emitBuiltin(name string, call *ast.CallExpr) error {
	for _, arg := range call.Arguments {
		if err := fc.compileExpr(arg); err != nil {
			return err
		}
	}
	if name == "print" {
		imp, err := printImport(call.Arguments[0].Type())
		if err != nil {
			return err
		}
		fc.emitCallImport(imp)
		// print evaluates to None
		fc.w.Op(wasm.OP_DROP)
		fc.w.I32Const(0)
		return nil
	}
	spec, ok := runtime.LookupByName(name)
	if !ok {
		return fmt.Errorf("unknown builtin %s", name)
	}
	if len(call.Arguments) != spec.Arity {
		return errArgs(name, spec.Arity, len(call.Arguments))
	}
	fc.emitCallImport(name)
	return nil
}

func (fc *funcCompiler) emitCallImport(name string) {
	fc.w.Call(fc.c.hostFuncs[name])
}

func errArgs(name string, want, got int) error {
	return fmt.Errorf("builtin %s expects %d args, got %d", name, want, got)
}
