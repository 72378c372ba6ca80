package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// ModuleName is the wasm module name host imports are linked under.
const ModuleName = "imports"

// Host is the part of a session that import handlers act on.
type Host interface {
	// Print appends the rendering of word, read as type t, to the output log.
	Print(t types.Type, word int32)
	Logger() *zap.Logger
}

// Handler implements a host import. All arguments and the result are i32.
type Handler func(ctx context.Context, host Host, args []int32) (int32, error)

// Spec describes a host import.
type Spec struct {
	Name    string
	Arity   int
	Handler Handler
}

// Trap is an error raised by a host import to abort the running module.
type Trap struct {
	Message string
}

func (t *Trap) Error() string {
	return t.Message
}

var byName = map[string]Spec{}

// Register installs a host import. It panics on duplicates.
func Register(spec Spec) {
	if spec.Handler == nil {
		panic(fmt.Sprintf("import %s has nil handler", spec.Name))
	}
	if _, exists := byName[spec.Name]; exists {
		panic(fmt.Sprintf("import %s already registered", spec.Name))
	}
	byName[spec.Name] = spec
}

// LookupByName finds a host import by name.
func LookupByName(name string) (Spec, bool) {
	spec, ok := byName[name]
	return spec, ok
}

// All returns all registered imports ordered by name. The order is the
// function index order of the imports in every generated module.
func All() []Spec {
	out := make([]Spec, 0, len(byName))
	for _, spec := range byName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Instantiate links every registered import into r as the ModuleName
// module, bound to host. A handler error aborts the calling module; the
// error is recoverable from the call error with errors.As.
func Instantiate(ctx context.Context, r wazero.Runtime, host Host) (api.Module, error) {
	b := r.NewHostModuleBuilder(ModuleName)
	for _, spec := range All() {
		params := make([]api.ValueType, spec.Arity)
		for i := range params {
			params[i] = api.ValueTypeI32
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(goFunc(spec, host), params, []api.ValueType{api.ValueTypeI32}).
			WithName(spec.Name).
			Export(spec.Name)
	}
	return b.Instantiate(ctx)
}

func goFunc(spec Spec, host Host) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]int32, spec.Arity)
		for i := range args {
			args[i] = api.DecodeI32(stack[i])
		}
		res, err := spec.Handler(ctx, host, args)
		if err != nil {
			host.Logger().Debug("import failed", zap.String("import", spec.Name), zap.Error(err))
			panic(err)
		}
		stack[0] = api.EncodeI32(res)
	}
}
