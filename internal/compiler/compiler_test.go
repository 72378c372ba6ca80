package compiler

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	_ "github.com/xirelogy/go-wasmrepl/internal/builtins"
	"github.com/xirelogy/go-wasmrepl/internal/checker"
	"github.com/xirelogy/go-wasmrepl/internal/lexer"
	"github.com/xirelogy/go-wasmrepl/internal/parser"
	"github.com/xirelogy/go-wasmrepl/internal/runtime"
	"github.com/xirelogy/go-wasmrepl/internal/types"
	"github.com/xirelogy/go-wasmrepl/internal/wasm"
)

const testGlobals = 16

var testMemory = wasm.Limits{Min: 1, Max: 4, HasMax: true}

func compileSource(t *testing.T, env *types.Env, module, src string) (*Output, *checker.Info) {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	info, errs := checker.Check(prog, env, module)
	if len(errs) != 0 {
		t.Fatalf("checker errors: %v", errs)
	}
	out, err := Compile(prog, info, Options{Module: module, Memory: testMemory})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return out, info
}

func TestCompileSimpleFunction(t *testing.T) {
	src := `def add(a: int, b: int) -> int:
    return a + b
`
	out, _ := compileSource(t, types.NewEnv(GlobalBase, testGlobals), "repl-1", src)
	if len(out.Module.Funcs) != 3 {
		t.Fatalf("expected $alloc, add and run, got %d functions", len(out.Module.Funcs))
	}
	fn := out.Module.Funcs[1]
	if fn.Name != "add" {
		t.Fatalf("expected add, got %s", fn.Name)
	}
	expectedOps := []byte{
		wasm.OP_LOCAL_GET, 0x00,
		wasm.OP_LOCAL_GET, 0x01,
		wasm.OP_I32_ADD,
		wasm.OP_RETURN,
		wasm.OP_I32_CONST, 0x00,
	}
	if !bytes.Equal(fn.Body.Code, expectedOps) {
		t.Fatalf("expected % X, got % X", expectedOps, fn.Body.Code)
	}
}

func TestCompileImportOrder(t *testing.T) {
	out, _ := compileSource(t, types.NewEnv(GlobalBase, testGlobals), "repl-1", "abs(-1)\n")
	specs := runtime.All()
	for i, spec := range specs {
		imp := out.Module.Imports[i]
		if imp.Module != runtime.ModuleName || imp.Name != spec.Name {
			t.Fatalf("import %d: expected %s.%s, got %s.%s", i, runtime.ModuleName, spec.Name, imp.Module, imp.Name)
		}
	}
	last := out.Module.Imports[len(out.Module.Imports)-1]
	if last.Kind != wasm.EXT_MEMORY || last.Module != MemoryModule || last.Name != MemoryName {
		t.Fatalf("expected memory import last, got %+v", last)
	}
}

func TestCompileImportsEarlierIncrements(t *testing.T) {
	env := types.NewEnv(GlobalBase, testGlobals)
	_, info := compileSource(t, env, "repl-1", `class Box(object):
    v: int = 0
    def __init__(self: Box):
        self.v = 7
    def get(self: Box) -> int:
        return self.v
def twice(n: int) -> int:
    return n * 2
`)
	out, _ := compileSource(t, info.Env, "repl-2", "twice(Box().get())\n")
	var names []string
	for _, imp := range out.Module.Imports {
		if imp.Module == "repl-1" {
			names = append(names, imp.Name)
		}
	}
	if strings.Join(names, ",") != "Box$__init__,Box$get,twice" {
		t.Fatalf("unexpected cross-module imports %v", names)
	}
}

func TestCompiledModulesValidate(t *testing.T) {
	sources := []string{
		"x: int = 3\nwhile x > 0:\n    x = x - 1\nx\n",
		"if True and not False:\n    print(1)\nelif 1 < 2 or False:\n    print(True)\nelse:\n    print(None)\n",
		"class E(object):\n    pass\nE() is None\n",
		"def f(n: int) -> int:\n    if n <= 1:\n        return 1\n    return n * f(n - 1)\nf(5) // 3 % 4\n",
	}
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)
	for _, src := range sources {
		out, _ := compileSource(t, types.NewEnv(GlobalBase, testGlobals), "repl-1", src)
		if _, err := r.CompileModule(ctx, out.Binary); err != nil {
			t.Fatalf("module for %q does not validate: %v", src, err)
		}
	}
}

type nopHost struct{ out []string }

func (h *nopHost) Print(t types.Type, word int32) {
	h.out = append(h.out, t.String())
}

func (h *nopHost) Logger() *zap.Logger { return zap.NewNop() }

// execute runs a single increment in a fresh runtime and returns run's
// result word.
func execute(t *testing.T, src string) int32 {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	mem, err := r.InstantiateWithConfig(ctx, wasm.MemoryModule(MemoryName, testMemory),
		wazero.NewModuleConfig().WithName(MemoryModule))
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	mem.Memory().WriteUint32Le(HeapPointer, HeapStart(testGlobals))
	if _, err := runtime.Instantiate(ctx, r, &nopHost{}); err != nil {
		t.Fatalf("imports: %v", err)
	}
	out, _ := compileSource(t, types.NewEnv(GlobalBase, testGlobals), "repl-1", src)
	mod, err := r.InstantiateWithConfig(ctx, out.Binary, wazero.NewModuleConfig().WithName("repl-1"))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction(RunExport).Call(ctx)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return api.DecodeI32(res[0])
}

func TestFloorDivisionAndModulo(t *testing.T) {
	cases := []struct {
		src  string
		want int32
	}{
		{"7 // 2\n", 3},
		{"-7 // 2\n", -4},
		{"7 // -2\n", -4},
		{"-7 // -2\n", 3},
		{"-8 // 2\n", -4},
		{"7 % 3\n", 1},
		{"-7 % 3\n", 2},
		{"7 % -3\n", -2},
		{"-7 % -3\n", -1},
		{"-6 % 3\n", 0},
	}
	for _, tc := range cases {
		if got := execute(t, tc.src); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", strings.TrimSpace(tc.src), tc.want, got)
		}
	}
}

func TestShortCircuit(t *testing.T) {
	src := `class C(object):
    x: int = 0
c: C = None
c is None or c.x > 0
`
	if got := execute(t, src); got != 1 {
		t.Fatalf("expected True, got %d", got)
	}
	src = "False and 1 // 0 == 0\n"
	if got := execute(t, src); got != 0 {
		t.Fatalf("expected False, got %d", got)
	}
}

func TestConstructorAndLoop(t *testing.T) {
	src := `class Counter(object):
    n: int = 10
    def __init__(self: Counter):
        self.n = self.n + 5
    def drain(self: Counter) -> int:
        steps: int = 0
        while self.n > 0:
            self.n = self.n - 1
            steps = steps + 1
        return steps
Counter().drain()
`
	if got := execute(t, src); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestAllocGrowsMemory(t *testing.T) {
	src := `class Pair(object):
    a: int = 1
    b: int = 2
i: int = 0
p: Pair = None
while i < 10000:
    p = Pair()
    i = i + 1
p.b
`
	if got := execute(t, src); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
