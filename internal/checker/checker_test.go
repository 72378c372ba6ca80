package checker

import (
	"strings"
	"testing"

	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/lexer"
	"github.com/xirelogy/go-wasmrepl/internal/parser"
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

func parseSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return prog
}

func checkSource(t *testing.T, env *types.Env, src string) *Info {
	t.Helper()
	info, errs := Check(parseSource(t, src), env, "repl-1")
	if len(errs) != 0 {
		t.Fatalf("checker errors: %v", errs)
	}
	return info
}

func checkError(t *testing.T, env *types.Env, src, want string) {
	t.Helper()
	_, errs := Check(parseSource(t, src), env, "repl-1")
	if len(errs) == 0 {
		t.Fatalf("expected checker error for %q", src)
	}
	if !strings.Contains(strings.Join(errs, "\n"), want) {
		t.Fatalf("expected error containing %q, got %v", want, errs)
	}
}

func TestCheckClassLayout(t *testing.T) {
	env := types.NewEnv(8, 16)
	info := checkSource(t, env, `class Node(object):
    value: int = 0
    flag: bool = False
    next: Node = None
    def __init__(self: Node):
        self.value = 1
    def tail(self: Node) -> Node:
        return self.next
Node().tail()
`)
	layout, ok := info.Env.Class("Node")
	if !ok {
		t.Fatalf("expected Node in extended env")
	}
	want := []types.Field{
		{Name: "value", Type: types.Number},
		{Name: "flag", Type: types.Bool},
		{Name: "next", Type: types.Class("Node")},
	}
	if len(layout.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(layout.Fields))
	}
	for i, f := range want {
		if layout.Fields[i] != f {
			t.Fatalf("field %d: expected %+v, got %+v", i, f, layout.Fields[i])
		}
	}
	if sig := layout.Methods["tail"]; sig == nil || sig.Export != "Node$tail" || sig.Module != "repl-1" {
		t.Fatalf("unexpected method signature %+v", sig)
	}
	if !info.HasResult || info.Result != types.Class("Node") {
		t.Fatalf("expected Node result, got %s", info.Result)
	}
	if _, ok := env.Class("Node"); ok {
		t.Fatalf("base env was modified")
	}
}

func TestCheckGlobalsAndFunctions(t *testing.T) {
	env := types.NewEnv(8, 16)
	info := checkSource(t, env, `count: int = 0
def bump(n: int) -> int:
    global count
    count = count + n
    return count
bump(2) > 1
`)
	if len(info.Globals) != 1 || info.Globals[0].Global.Address != 8 {
		t.Fatalf("unexpected globals: %+v", info.Globals)
	}
	if len(info.Funcs) != 1 || info.Funcs[0].Export != "bump" {
		t.Fatalf("unexpected funcs: %+v", info.Funcs)
	}
	if info.Result != types.Bool {
		t.Fatalf("expected bool result, got %s", info.Result)
	}

	// later increments see earlier declarations
	next := checkSource(t, info.Env, "bump(count)\n")
	if next.Result != types.Number {
		t.Fatalf("expected int result, got %s", next.Result)
	}
	checkError(t, info.Env, "count: int = 5\n", "duplicate declaration of count")
	checkError(t, info.Env, "def bump() -> int:\n    return 1\n", "duplicate declaration of bump")
}

func TestCheckNoResult(t *testing.T) {
	info := checkSource(t, types.NewEnv(8, 16), "x: int = 1\nx = 2\n")
	if info.HasResult {
		t.Fatalf("expected no result for an assignment")
	}
}

func TestCheckErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"x: int = True\n", "expected int, got bool"},
		{"x: Missing = None\n", "unknown type Missing"},
		{"1 + True\n", "cannot apply + to int and bool"},
		{"if 1:\n    pass\n", "condition must be bool"},
		{"y\n", "undefined name y"},
		{"def print(x: int):\n    pass\n", "cannot redefine builtin print"},
		{"x: int = 0\ndef f():\n    x = 1\n", "without a global declaration"},
		{"def f() -> int:\n    pass\n", "missing return of type int"},
		{"def f(a: int) -> int:\n    return a\nf(True)\n", "argument 1: expected int, got bool"},
		{"def f(a: int) -> int:\n    return a\nf()\n", "f expects 1 arguments, got 0"},
		{"class A(object):\n    x: int = 0\nA().y\n", "class A has no field y"},
		{"class A(object):\n    x: int = 0\nprint(A())\n", "cannot print value of type A"},
		{"class A(object):\n    def m(self: int):\n        pass\n", "first parameter must be of type A"},
		{"class A(object):\n    def __init__(self: A, x: int):\n        pass\n", "must take only self"},
		{"class A(B):\n    pass\n", "superclass B is not supported"},
		{"return 1\n", "return outside of function"},
		{"1 is 2\n", "cannot apply is to int and int"},
		{"(1).x\n", "int has no attributes"},
	}
	for _, tc := range cases {
		checkError(t, types.NewEnv(8, 16), tc.src, tc.want)
	}
}

func TestCheckIfReturnsOnAllPaths(t *testing.T) {
	checkSource(t, types.NewEnv(8, 16), `def sign(n: int) -> int:
    if n < 0:
        return -1
    elif n == 0:
        return 0
    else:
        return 1
`)
}

func TestCheckNoneAssignableToClass(t *testing.T) {
	checkSource(t, types.NewEnv(8, 16), `class A(object):
    other: A = None
a: A = None
a = A()
a.other = None
a is None
`)
}

func TestCheckTooManyGlobals(t *testing.T) {
	checkError(t, types.NewEnv(8, 1), "a: int = 1\nb: int = 2\n", "too many global variables")
}
