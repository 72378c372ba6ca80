package compiler

import (
	"fmt"

	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/checker"
	"github.com/xirelogy/go-wasmrepl/internal/runtime"
	"github.com/xirelogy/go-wasmrepl/internal/token"
	"github.com/xirelogy/go-wasmrepl/internal/types"
	"github.com/xirelogy/go-wasmrepl/internal/wasm"
)

// Memory layout shared by every increment of a session.
const (
	// HeapPointer holds the address of the next free heap byte.
	HeapPointer = 4
	// GlobalBase is the address of the first global variable.
	GlobalBase = 8
	wordSize   = 4
)

// Names under which the shared memory is imported.
const (
	MemoryModule = "js"
	MemoryName   = "memory"
)

// RunExport is the export evaluating the top-level statements of an
// increment.
const RunExport = "run"

// Options configures code generation for one increment.
type Options struct {
	// Module is the instance name the increment will be instantiated under.
	Module string
	Memory wasm.Limits
}

// Output is a compiled increment.
type Output struct {
	Module *wasm.Module
	Binary []byte
}

// HeapStart is the first heap address for a global area of maxGlobals words.
func HeapStart(maxGlobals int) uint32 {
	return GlobalBase + uint32(wordSize*maxGlobals)
}

// Compile generates the wasm module for a checked increment.
func Compile(prog *ast.Program, info *checker.Info, opts Options) (*Output, error) {
	c := &compiler{
		env:       info.Env,
		info:      info,
		opts:      opts,
		module:    wasm.NewModule(),
		hostFuncs: make(map[string]uint32),
		funcs:     make(map[*types.FuncSig]uint32),
	}

	for _, spec := range runtime.All() {
		c.hostFuncs[spec.Name] = c.module.ImportFunc(runtime.ModuleName, spec.Name, spec.Arity, 1)
	}
	for _, sig := range c.externalRefs(prog) {
		c.funcs[sig] = c.module.ImportFunc(sig.Module, sig.Export, len(sig.Params), 1)
	}
	c.module.ImportMemory(MemoryModule, MemoryName, opts.Memory)

	c.allocIdx, c.allocFn = c.module.AddFunc("$alloc", 1, 1)

	type pending struct {
		def *ast.FuncDef
		sig *types.FuncSig
		fn  *wasm.Func
	}
	var bodies []pending
	for _, fn := range prog.Funcs {
		sig, _ := c.env.Func(fn.Name)
		idx, f := c.module.AddFunc(sig.Export, len(sig.Params), 1)
		c.funcs[sig] = idx
		c.module.Export(sig.Export, wasm.EXT_FUNC, idx)
		bodies = append(bodies, pending{def: fn, sig: sig, fn: f})
	}
	for _, cd := range prog.Classes {
		layout, _ := c.env.Class(cd.Name)
		for _, m := range cd.Methods {
			sig := layout.Methods[m.Name]
			idx, f := c.module.AddFunc(sig.Export, len(sig.Params), 1)
			c.funcs[sig] = idx
			c.module.Export(sig.Export, wasm.EXT_FUNC, idx)
			bodies = append(bodies, pending{def: m, sig: sig, fn: f})
		}
	}
	runIdx, runFn := c.module.AddFunc(RunExport, 0, 1)
	c.module.Export(RunExport, wasm.EXT_FUNC, runIdx)

	c.emitAlloc()
	for _, b := range bodies {
		if err := c.compileFunction(b.def, b.fn); err != nil {
			return nil, fmt.Errorf("%s: %w", b.sig.Export, err)
		}
	}
	if err := c.compileRun(prog, runFn); err != nil {
		return nil, fmt.Errorf("%s: %w", RunExport, err)
	}

	return &Output{Module: c.module, Binary: c.module.Encode()}, nil
}

type compiler struct {
	env       *types.Env
	info      *checker.Info
	opts      Options
	module    *wasm.Module
	hostFuncs map[string]uint32
	funcs     map[*types.FuncSig]uint32
	allocIdx  uint32
	allocFn   *wasm.Func
}

type funcCompiler struct {
	c     *compiler
	w     *wasm.CodeWriter
	scope *scope
	temp  int
	// result is the local receiving the value of the final top-level
	// expression statement; only used by run.
	result    uint32
	hasResult bool
}

func (c *compiler) newFuncCompiler(fn *wasm.Func) *funcCompiler {
	return &funcCompiler{
		c:     c,
		w:     fn.Body,
		scope: newScope(),
	}
}

// emitAlloc writes $alloc(words) -> address: bump the heap pointer, growing
// memory a page at a time; traps when memory cannot grow.
func (c *compiler) emitAlloc() {
	const (
		words = 0
		ptr   = 1
		end   = 2
	)
	c.allocFn.NumLocals = 2
	w := c.allocFn.Body

	w.I32Const(HeapPointer)
	w.Load(0)
	w.LocalSet(ptr)

	w.LocalGet(ptr)
	w.LocalGet(words)
	w.I32Const(2)
	w.Op(wasm.OP_I32_SHL)
	w.Op(wasm.OP_I32_ADD)
	w.LocalSet(end)

	w.Block(wasm.BLOCK_EMPTY)
	w.Loop(wasm.BLOCK_EMPTY)
	w.LocalGet(end)
	w.MemorySize()
	w.I32Const(16)
	w.Op(wasm.OP_I32_SHL)
	w.Op(wasm.OP_I32_LE_U)
	w.BrIf(1)
	w.I32Const(1)
	w.MemoryGrow()
	w.I32Const(-1)
	w.Op(wasm.OP_I32_EQ)
	w.If(wasm.BLOCK_EMPTY)
	w.Op(wasm.OP_UNREACHABLE)
	w.End()
	w.Br(0)
	w.End()
	w.End()

	w.I32Const(HeapPointer)
	w.LocalGet(end)
	w.Store(0)
	w.LocalGet(ptr)
}

func (c *compiler) compileFunction(def *ast.FuncDef, fn *wasm.Func) error {
	fc := c.newFuncCompiler(fn)
	for _, p := range def.Params {
		fc.scope.addLocal(p.Name)
	}
	for _, v := range def.Vars {
		fc.scope.addLocal(v.Name)
	}

	fc.w.SetLine(def.Pos().Line)
	for _, v := range def.Vars {
		slot, _ := fc.scope.resolveLocal(v.Name)
		fc.w.I32Const(checker.LiteralWord(v.Value))
		fc.w.LocalSet(slot)
	}
	if err := fc.compileBlock(def.Body, false); err != nil {
		return err
	}
	// falling off the end returns None
	fc.w.I32Const(0)
	fn.NumLocals = int(fc.scope.nextLoc) - len(def.Params)
	return nil
}

func (c *compiler) compileRun(prog *ast.Program, fn *wasm.Func) error {
	fc := c.newFuncCompiler(fn)
	fc.result = fc.newTemp()
	fc.hasResult = c.info.HasResult

	for _, g := range c.info.Globals {
		fc.w.SetLine(g.Value.Pos().Line)
		fc.w.I32Const(int32(g.Global.Address))
		fc.w.I32Const(checker.LiteralWord(g.Value))
		fc.w.Store(0)
	}
	if err := fc.compileBlock(prog.Stmts, true); err != nil {
		return err
	}
	fc.w.LocalGet(fc.result)
	fn.NumLocals = int(fc.scope.nextLoc)
	return nil
}

func (fc *funcCompiler) newTemp() uint32 {
	name := fmt.Sprintf("!t%d", fc.temp)
	fc.temp++
	return fc.scope.addLocal(name)
}

// compileBlock emits stmts. When top is set the final expression statement
// stores its value as the increment result.
func (fc *funcCompiler) compileBlock(stmts []ast.Statement, top bool) error {
	for i, stmt := range stmts {
		fc.w.SetLine(stmt.Pos().Line)
		switch s := stmt.(type) {
		case *ast.ExprStmt:
			if err := fc.compileExpr(s.Expression); err != nil {
				return err
			}
			if top && fc.hasResult && i == len(stmts)-1 {
				fc.w.LocalSet(fc.result)
			} else {
				fc.w.Op(wasm.OP_DROP)
			}
		case *ast.AssignStmt:
			if err := fc.compileAssign(s); err != nil {
				return err
			}
		case *ast.ReturnStmt:
			if s.Value != nil {
				if err := fc.compileExpr(s.Value); err != nil {
					return err
				}
			} else {
				fc.w.I32Const(0)
			}
			fc.w.Op(wasm.OP_RETURN)
		case *ast.PassStmt:
		case *ast.IfStmt:
			if err := fc.compileIf(s); err != nil {
				return err
			}
		case *ast.WhileStmt:
			if err := fc.compileWhile(s); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported statement type %T", stmt)
		}
	}
	return nil
}

func (fc *funcCompiler) compileIf(stmt *ast.IfStmt) error {
	if err := fc.compileExpr(stmt.Condition); err != nil {
		return err
	}
	fc.w.If(wasm.BLOCK_EMPTY)
	if err := fc.compileBlock(stmt.Conseq, false); err != nil {
		return err
	}
	if len(stmt.Alt) > 0 {
		fc.w.Else()
		if err := fc.compileBlock(stmt.Alt, false); err != nil {
			return err
		}
	}
	fc.w.End()
	return nil
}

func (fc *funcCompiler) compileWhile(stmt *ast.WhileStmt) error {
	fc.w.Block(wasm.BLOCK_EMPTY)
	fc.w.Loop(wasm.BLOCK_EMPTY)
	if err := fc.compileExpr(stmt.Condition); err != nil {
		return err
	}
	// leave the loop once the condition is false
	fc.w.Op(wasm.OP_I32_EQZ)
	fc.w.BrIf(1)
	if err := fc.compileBlock(stmt.Body, false); err != nil {
		return err
	}
	fc.w.Br(0)
	fc.w.End()
	fc.w.End()
	return nil
}

func (fc *funcCompiler) compileAssign(s *ast.AssignStmt) error {
	switch lhs := s.Target.(type) {
	case *ast.Identifier:
		if slot, ok := fc.scope.resolveLocal(lhs.Name); ok {
			if err := fc.compileExpr(s.Value); err != nil {
				return err
			}
			fc.w.LocalSet(slot)
			return nil
		}
		g, ok := fc.c.env.Global(lhs.Name)
		if !ok {
			return fmt.Errorf("undefined name %s", lhs.Name)
		}
		fc.w.I32Const(int32(g.Address))
		if err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.w.Store(0)
	case *ast.MemberExpr:
		offset, err := fc.fieldOffset(lhs)
		if err != nil {
			return err
		}
		if err := fc.compileExpr(lhs.Left); err != nil {
			return err
		}
		fc.emitCallImport("assert_not_none")
		if err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.w.Store(offset)
	default:
		return fmt.Errorf("invalid assignment target %T", s.Target)
	}
	return nil
}

func (fc *funcCompiler) compileExpr(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		fc.w.I32Const(e.Value)
	case *ast.BoolLiteral:
		if e.Value {
			fc.w.I32Const(1)
		} else {
			fc.w.I32Const(0)
		}
	case *ast.NoneLiteral:
		fc.w.I32Const(0)
	case *ast.Identifier:
		if slot, ok := fc.scope.resolveLocal(e.Name); ok {
			fc.w.LocalGet(slot)
			return nil
		}
		g, ok := fc.c.env.Global(e.Name)
		if !ok {
			return fmt.Errorf("undefined name %s", e.Name)
		}
		fc.w.I32Const(int32(g.Address))
		fc.w.Load(0)
	case *ast.UnaryExpr:
		switch e.Operator {
		case token.Minus:
			fc.w.I32Const(0)
			if err := fc.compileExpr(e.Right); err != nil {
				return err
			}
			fc.w.Op(wasm.OP_I32_SUB)
		case token.Not:
			if err := fc.compileExpr(e.Right); err != nil {
				return err
			}
			fc.w.Op(wasm.OP_I32_EQZ)
		default:
			return fmt.Errorf("unsupported unary op %s", e.Operator)
		}
	case *ast.BinaryExpr:
		return fc.compileBinary(e)
	case *ast.CallExpr:
		return fc.compileCall(e)
	case *ast.MemberExpr:
		offset, err := fc.fieldOffset(e)
		if err != nil {
			return err
		}
		if err := fc.compileExpr(e.Left); err != nil {
			return err
		}
		fc.emitCallImport("assert_not_none")
		fc.w.Load(offset)
	case *ast.MethodCallExpr:
		layout, ok := fc.c.env.Class(e.Receiver.Type().Name)
		if !ok {
			return fmt.Errorf("unknown class %s", e.Receiver.Type())
		}
		sig, ok := layout.Methods[e.Method]
		if !ok {
			return fmt.Errorf("class %s has no method %s", layout.Name, e.Method)
		}
		if err := fc.compileExpr(e.Receiver); err != nil {
			return err
		}
		fc.emitCallImport("assert_not_none")
		for _, arg := range e.Arguments {
			if err := fc.compileExpr(arg); err != nil {
				return err
			}
		}
		fc.w.Call(fc.c.funcs[sig])
	default:
		return fmt.Errorf("unsupported expression type %T", expr)
	}
	return nil
}

func (fc *funcCompiler) compileBinary(e *ast.BinaryExpr) error {
	switch e.Operator {
	case token.And, token.Or:
		return fc.compileLogical(e)
	case token.SlashSlash:
		return fc.compileFloorDiv(e)
	case token.Percent:
		return fc.compileFloorMod(e)
	}
	if err := fc.compileExpr(e.Left); err != nil {
		return err
	}
	if err := fc.compileExpr(e.Right); err != nil {
		return err
	}
	switch e.Operator {
	case token.Plus:
		fc.w.Op(wasm.OP_I32_ADD)
	case token.Minus:
		fc.w.Op(wasm.OP_I32_SUB)
	case token.Star:
		fc.w.Op(wasm.OP_I32_MUL)
	case token.Equal, token.Is:
		fc.w.Op(wasm.OP_I32_EQ)
	case token.NotEqual:
		fc.w.Op(wasm.OP_I32_NE)
	case token.Less:
		fc.w.Op(wasm.OP_I32_LT_S)
	case token.LessEqual:
		fc.w.Op(wasm.OP_I32_LE_S)
	case token.Greater:
		fc.w.Op(wasm.OP_I32_GT_S)
	case token.GreaterEqual:
		fc.w.Op(wasm.OP_I32_GE_S)
	default:
		return fmt.Errorf("unsupported binary op %s", e.Operator)
	}
	return nil
}

func (fc *funcCompiler) compileLogical(e *ast.BinaryExpr) error {
	if err := fc.compileExpr(e.Left); err != nil {
		return err
	}
	fc.w.If(wasm.TYPE_I32)
	switch e.Operator {
	case token.And:
		if err := fc.compileExpr(e.Right); err != nil {
			return err
		}
		fc.w.Else()
		fc.w.I32Const(0)
	case token.Or:
		fc.w.I32Const(1)
		fc.w.Else()
		if err := fc.compileExpr(e.Right); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported logical op %s", e.Operator)
	}
	fc.w.End()
	return nil
}

// operands evaluates both sides of e into fresh temporaries.
func (fc *funcCompiler) operands(e *ast.BinaryExpr) (uint32, uint32, error) {
	a, b := fc.newTemp(), fc.newTemp()
	if err := fc.compileExpr(e.Left); err != nil {
		return 0, 0, err
	}
	fc.w.LocalSet(a)
	if err := fc.compileExpr(e.Right); err != nil {
		return 0, 0, err
	}
	fc.w.LocalSet(b)
	return a, b, nil
}

// compileFloorDiv rounds the truncated quotient toward negative infinity:
// a // b == a/b - 1 when the division is inexact and the signs differ.
func (fc *funcCompiler) compileFloorDiv(e *ast.BinaryExpr) error {
	a, b, err := fc.operands(e)
	if err != nil {
		return err
	}
	w := fc.w
	w.LocalGet(a)
	w.LocalGet(b)
	w.Op(wasm.OP_I32_DIV_S)

	w.LocalGet(a)
	w.LocalGet(b)
	w.Op(wasm.OP_I32_REM_S)
	w.I32Const(0)
	w.Op(wasm.OP_I32_NE)
	w.LocalGet(a)
	w.LocalGet(b)
	w.Op(wasm.OP_I32_XOR)
	w.I32Const(0)
	w.Op(wasm.OP_I32_LT_S)
	w.Op(wasm.OP_I32_AND)

	w.Op(wasm.OP_I32_SUB)
	return nil
}

// compileFloorMod gives the remainder the sign of the divisor:
// r = a rem b; r + b when r is nonzero and its sign differs from b.
func (fc *funcCompiler) compileFloorMod(e *ast.BinaryExpr) error {
	a, b, err := fc.operands(e)
	if err != nil {
		return err
	}
	r := fc.newTemp()
	w := fc.w
	w.LocalGet(a)
	w.LocalGet(b)
	w.Op(wasm.OP_I32_REM_S)
	w.LocalTee(r)

	w.LocalGet(r)
	w.I32Const(0)
	w.Op(wasm.OP_I32_NE)
	w.LocalGet(r)
	w.LocalGet(b)
	w.Op(wasm.OP_I32_XOR)
	w.I32Const(0)
	w.Op(wasm.OP_I32_LT_S)
	w.Op(wasm.OP_I32_AND)
	w.If(wasm.TYPE_I32)
	w.LocalGet(b)
	w.Else()
	w.I32Const(0)
	w.End()

	w.Op(wasm.OP_I32_ADD)
	return nil
}

func (fc *funcCompiler) compileCall(e *ast.CallExpr) error {
	if name, ok := builtinName(e); ok {
		return fc.emitBuiltin(name, e)
	}
	if layout, ok := fc.c.env.Class(e.Name); ok {
		return fc.compileConstruct(layout)
	}
	sig, ok := fc.c.env.Func(e.Name)
	if !ok {
		return fmt.Errorf("undefined function %s", e.Name)
	}
	for _, arg := range e.Arguments {
		if err := fc.compileExpr(arg); err != nil {
			return err
		}
	}
	fc.w.Call(fc.c.funcs[sig])
	return nil
}

// compileConstruct allocates an instance, writes the field initialisers
// and runs __init__ when the class has one.
func (fc *funcCompiler) compileConstruct(layout *types.ClassLayout) error {
	obj := fc.newTemp()
	fc.w.I32Const(int32(layout.Words()))
	fc.w.Call(fc.c.allocIdx)
	fc.w.LocalSet(obj)
	for i, f := range layout.Fields {
		fc.w.LocalGet(obj)
		fc.w.I32Const(f.Init)
		fc.w.Store(uint32(wordSize * i))
	}
	if init, ok := layout.Methods[checker.InitName]; ok {
		fc.w.LocalGet(obj)
		fc.w.Call(fc.c.funcs[init])
		fc.w.Op(wasm.OP_DROP)
	}
	fc.w.LocalGet(obj)
	return nil
}

func (fc *funcCompiler) fieldOffset(e *ast.MemberExpr) (uint32, error) {
	t := e.Left.Type()
	layout, ok := fc.c.env.Class(t.Name)
	if !t.IsClass() || !ok {
		return 0, fmt.Errorf("%s has no attributes", t)
	}
	i, ok := layout.FieldIndex(e.Property)
	if !ok {
		return 0, fmt.Errorf("class %s has no field %s", layout.Name, e.Property)
	}
	return uint32(wordSize * i), nil
}
