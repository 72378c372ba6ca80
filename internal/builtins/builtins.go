// Package builtins registers every host import with the runtime registry.
// Importing it for side effects is enough.
package builtins

import (
	_ "github.com/xirelogy/go-wasmrepl/internal/builtins/intmath"
	_ "github.com/xirelogy/go-wasmrepl/internal/builtins/nonecheck"
	_ "github.com/xirelogy/go-wasmrepl/internal/builtins/output"
)
