package output

import (
	"context"

	"github.com/xirelogy/go-wasmrepl/internal/runtime"
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

func init() {
	runtime.Register(runtime.Spec{Name: "print_num", Arity: 1, Handler: printer(types.Number)})
	runtime.Register(runtime.Spec{Name: "print_bool", Arity: 1, Handler: printer(types.Bool)})
	runtime.Register(runtime.Spec{Name: "print_none", Arity: 1, Handler: printer(types.None)})
}

// printer returns a handler that prints its argument as t and passes it
// through unchanged.
func printer(t types.Type) runtime.Handler {
	return func(_ context.Context, host runtime.Host, args []int32) (int32, error) {
		host.Print(t, args[0])
		return args[0], nil
	}
}
