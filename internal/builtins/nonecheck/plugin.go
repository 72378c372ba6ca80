package nonecheck

import (
	"context"

	"github.com/xirelogy/go-wasmrepl/internal/runtime"
)

// Message is the text of the trap raised on a None dereference.
const Message = "RUNTIME ERROR: cannot perform operation on none"

func init() {
	runtime.Register(runtime.Spec{
		Name:    "assert_not_none",
		Arity:   1,
		Handler: assertNotNone,
	})
}

func assertNotNone(_ context.Context, _ runtime.Host, args []int32) (int32, error) {
	if args[0] == 0 {
		return 0, &runtime.Trap{Message: Message}
	}
	return args[0], nil
}
