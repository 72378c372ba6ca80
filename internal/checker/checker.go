// Package checker type-checks one parsed increment against the session's
// environment and produces the extended environment the code generator
// compiles against.
package checker

import (
	"fmt"

	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/token"
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// Builtin function names. They cannot be redefined.
var builtins = map[string]bool{
	"print":  true,
	"abs":    true,
	"min":    true,
	"max":    true,
	"pow":    true,
	"int":    true,
	"bool":   true,
	"object": true,
}

// InitName is the method run by a constructor after field initialisation.
const InitName = "__init__"

// GlobalInit pairs a newly declared global with its initial value.
type GlobalInit struct {
	Global *types.Global
	Value  ast.Literal
}

// Info is the outcome of checking one increment.
type Info struct {
	// Env is base extended with the increment's declarations.
	Env     *types.Env
	Globals []GlobalInit
	Classes []*types.ClassLayout
	// Funcs lists the new functions followed by the new methods, in
	// declaration order.
	Funcs []*types.FuncSig
	// Result is the type of the trailing expression statement.
	Result    types.Type
	HasResult bool
}

type checker struct {
	env    *types.Env
	module string
	errors []string
	fn     *funcScope
}

type funcScope struct {
	sig     *types.FuncSig
	locals  map[string]types.Type
	globals map[string]bool
}

// Check checks prog against base. New functions and methods are recorded as
// exports of module. base is never modified.
func Check(prog *ast.Program, base *types.Env, module string) (*Info, []string) {
	c := &checker{env: base.Extend(), module: module}
	info := &Info{Env: c.env, Result: types.None}

	c.declareNames(prog)
	if len(c.errors) > 0 {
		return nil, c.errors
	}

	for _, cd := range prog.Classes {
		info.Classes = append(info.Classes, c.declareClass(cd))
	}
	for _, cd := range prog.Classes {
		c.declareFields(cd)
	}
	for _, v := range prog.Vars {
		if g := c.declareGlobal(v); g != nil {
			info.Globals = append(info.Globals, GlobalInit{Global: g, Value: v.Value})
		}
	}
	for _, fn := range prog.Funcs {
		if sig := c.declareFunc(fn); sig != nil {
			c.env.AddFunc(sig)
			info.Funcs = append(info.Funcs, sig)
		}
	}
	for _, cd := range prog.Classes {
		layout, _ := c.env.Class(cd.Name)
		for _, m := range cd.Methods {
			if sig := c.declareMethod(layout, m); sig != nil {
				info.Funcs = append(info.Funcs, sig)
			}
		}
	}
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	if err := c.env.Validate(); err != nil {
		c.errorf(prog.Pos(), "%v", err)
		return nil, c.errors
	}

	for _, fn := range prog.Funcs {
		sig, _ := c.env.Func(fn.Name)
		c.checkFunc(fn, sig)
	}
	for _, cd := range prog.Classes {
		layout, _ := c.env.Class(cd.Name)
		for _, m := range cd.Methods {
			c.checkFunc(m, layout.Methods[m.Name])
		}
	}
	c.checkBlock(prog.Stmts)

	if n := len(prog.Stmts); n > 0 {
		if es, ok := prog.Stmts[n-1].(*ast.ExprStmt); ok && es.Expression.Type().Valid() {
			info.Result = es.Expression.Type()
			info.HasResult = true
		}
	}

	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return info, nil
}

// declareNames rejects names that are already bound, either by an earlier
// increment or earlier in this one.
func (c *checker) declareNames(prog *ast.Program) {
	seen := make(map[string]bool)
	claim := func(name string, pos token.Position) {
		switch {
		case builtins[name]:
			c.errorf(pos, "cannot redefine builtin %s", name)
		case c.env.Declared(name):
			c.errorf(pos, "duplicate declaration of %s", name)
		case seen[name]:
			c.errorf(pos, "duplicate declaration of %s", name)
		}
		seen[name] = true
	}
	for _, cd := range prog.Classes {
		claim(cd.Name, cd.Pos())
	}
	for _, v := range prog.Vars {
		claim(v.Name, v.Pos())
	}
	for _, fn := range prog.Funcs {
		claim(fn.Name, fn.Pos())
	}
}

func (c *checker) declareClass(cd *ast.ClassDef) *types.ClassLayout {
	if cd.Super != "object" {
		c.errorf(cd.Pos(), "class %s: superclass %s is not supported", cd.Name, cd.Super)
	}
	layout := &types.ClassLayout{Name: cd.Name, Methods: make(map[string]*types.FuncSig)}
	c.env.AddClass(layout)
	return layout
}

func (c *checker) declareFields(cd *ast.ClassDef) {
	layout, _ := c.env.Class(cd.Name)
	for _, f := range cd.Fields {
		if _, dup := layout.FieldIndex(f.Name); dup {
			c.errorf(f.Pos(), "class %s: duplicate field %s", cd.Name, f.Name)
			continue
		}
		t, ok := c.resolveType(f.Annot)
		if !ok {
			continue
		}
		c.checkLiteral(f.Value, t)
		layout.Fields = append(layout.Fields, types.Field{Name: f.Name, Type: t, Init: LiteralWord(f.Value)})
	}
}

func (c *checker) declareGlobal(v *ast.VarDef) *types.Global {
	t, ok := c.resolveType(v.Annot)
	if !ok {
		return nil
	}
	c.checkLiteral(v.Value, t)
	g, ok := c.env.AddGlobal(v.Name, t)
	if !ok {
		c.errorf(v.Pos(), "too many global variables")
		return nil
	}
	return g
}

func (c *checker) signature(fn *ast.FuncDef) (*types.FuncSig, bool) {
	sig := &types.FuncSig{Name: fn.Name, Class: fn.Class, Return: types.None, Module: c.module}
	ok := true
	seen := make(map[string]bool)
	for _, p := range fn.Params {
		if seen[p.Name] {
			c.errorf(p.Pos, "duplicate parameter %s", p.Name)
			ok = false
		}
		seen[p.Name] = true
		t, tok := c.resolveType(p.Annot)
		if !tok {
			ok = false
			continue
		}
		sig.Params = append(sig.Params, t)
	}
	if fn.Return != nil {
		t, tok := c.resolveType(*fn.Return)
		if !tok {
			ok = false
		}
		sig.Return = t
	}
	return sig, ok
}

func (c *checker) declareFunc(fn *ast.FuncDef) *types.FuncSig {
	sig, ok := c.signature(fn)
	if !ok {
		return nil
	}
	sig.Export = fn.Name
	return sig
}

func (c *checker) declareMethod(layout *types.ClassLayout, m *ast.FuncDef) *types.FuncSig {
	sig, ok := c.signature(m)
	if !ok {
		return nil
	}
	sig.Export = layout.Name + "$" + m.Name
	if len(sig.Params) == 0 || sig.Params[0] != types.Class(layout.Name) {
		c.errorf(m.Pos(), "method %s.%s: first parameter must be of type %s", layout.Name, m.Name, layout.Name)
		return nil
	}
	if _, dup := layout.Methods[m.Name]; dup {
		c.errorf(m.Pos(), "class %s: duplicate method %s", layout.Name, m.Name)
		return nil
	}
	if _, clash := layout.FieldIndex(m.Name); clash {
		c.errorf(m.Pos(), "class %s: method %s shadows a field", layout.Name, m.Name)
		return nil
	}
	if m.Name == InitName && (len(sig.Params) != 1 || sig.Return != types.None) {
		c.errorf(m.Pos(), "class %s: %s must take only self and return None", layout.Name, InitName)
		return nil
	}
	layout.Methods[m.Name] = sig
	return sig
}

func (c *checker) resolveType(a ast.TypeAnnotation) (types.Type, bool) {
	switch a.Name {
	case "int":
		return types.Number, true
	case "bool":
		return types.Bool, true
	case "None":
		return types.None, true
	}
	if _, ok := c.env.Class(a.Name); ok {
		return types.Class(a.Name), true
	}
	c.errorf(a.PosT, "unknown type %s", a.Name)
	return types.Invalid, false
}

func (c *checker) checkLiteral(lit ast.Literal, want types.Type) {
	got := c.checkExpr(lit)
	if !types.Assignable(want, got) {
		c.errorf(lit.Pos(), "expected %s, got %s", want, got)
	}
}

// LiteralWord is the i32 encoding of a literal.
func LiteralWord(lit ast.Literal) int32 {
	switch lit := lit.(type) {
	case *ast.NumberLiteral:
		return lit.Value
	case *ast.BoolLiteral:
		if lit.Value {
			return 1
		}
	}
	return 0
}

func (c *checker) checkFunc(fn *ast.FuncDef, sig *types.FuncSig) {
	if sig == nil {
		return
	}
	c.fn = &funcScope{
		sig:     sig,
		locals:  make(map[string]types.Type),
		globals: make(map[string]bool),
	}
	defer func() { c.fn = nil }()

	for i, p := range fn.Params {
		c.fn.locals[p.Name] = sig.Params[i]
	}
	for _, name := range fn.Globals {
		if _, ok := c.fn.locals[name]; ok {
			c.errorf(fn.Pos(), "%s: %s is a parameter and cannot be global", fn.Name, name)
			continue
		}
		if _, ok := c.env.Global(name); !ok {
			c.errorf(fn.Pos(), "%s: unknown global %s", fn.Name, name)
			continue
		}
		c.fn.globals[name] = true
	}
	for _, v := range fn.Vars {
		if _, dup := c.fn.locals[v.Name]; dup || c.fn.globals[v.Name] {
			c.errorf(v.Pos(), "duplicate declaration of %s", v.Name)
			continue
		}
		t, ok := c.resolveType(v.Annot)
		if !ok {
			continue
		}
		c.checkLiteral(v.Value, t)
		c.fn.locals[v.Name] = t
	}

	c.checkBlock(fn.Body)

	if sig.Return.Tag == types.TagNumber || sig.Return.Tag == types.TagBool {
		if !returns(fn.Body) {
			c.errorf(fn.Pos(), "%s: missing return of type %s", fn.Name, sig.Return)
		}
	}
}

// returns reports whether every path through stmts ends in a return.
func returns(stmts []ast.Statement) bool {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.IfStmt:
			if returns(s.Conseq) && returns(s.Alt) {
				return true
			}
		}
	}
	return false
}

func (c *checker) checkBlock(stmts []ast.Statement) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

func (c *checker) checkStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		c.checkExpr(s.Expression)
	case *ast.PassStmt:
	case *ast.AssignStmt:
		c.checkAssign(s)
	case *ast.ReturnStmt:
		if c.fn == nil {
			c.errorf(s.Pos(), "return outside of function")
			return
		}
		got := types.None
		if s.Value != nil {
			got = c.checkExpr(s.Value)
		}
		if got.Valid() && !types.Assignable(c.fn.sig.Return, got) {
			c.errorf(s.Pos(), "expected return type %s, got %s", c.fn.sig.Return, got)
		}
	case *ast.IfStmt:
		c.checkCondition(s.Condition)
		c.checkBlock(s.Conseq)
		c.checkBlock(s.Alt)
	case *ast.WhileStmt:
		c.checkCondition(s.Condition)
		c.checkBlock(s.Body)
	default:
		c.errorf(stmt.Pos(), "unsupported statement %T", stmt)
	}
}

func (c *checker) checkCondition(e ast.Expression) {
	if t := c.checkExpr(e); t.Valid() && t != types.Bool {
		c.errorf(e.Pos(), "condition must be bool, got %s", t)
	}
}

func (c *checker) checkAssign(s *ast.AssignStmt) {
	var want types.Type
	switch target := s.Target.(type) {
	case *ast.Identifier:
		t, ok := c.assignableName(target)
		if !ok {
			c.checkExpr(s.Value)
			return
		}
		want = t
		target.SetType(t)
	case *ast.MemberExpr:
		want = c.checkExpr(target)
		if !want.Valid() {
			c.checkExpr(s.Value)
			return
		}
	default:
		c.errorf(s.Pos(), "cannot assign to %T", s.Target)
		return
	}
	got := c.checkExpr(s.Value)
	if got.Valid() && !types.Assignable(want, got) {
		c.errorf(s.Pos(), "cannot assign %s to %s", got, want)
	}
}

func (c *checker) assignableName(id *ast.Identifier) (types.Type, bool) {
	if c.fn != nil {
		if t, ok := c.fn.locals[id.Name]; ok {
			return t, true
		}
		if !c.fn.globals[id.Name] {
			if _, ok := c.env.Global(id.Name); ok {
				c.errorf(id.Pos(), "cannot assign to global %s without a global declaration", id.Name)
			} else {
				c.errorf(id.Pos(), "undefined name %s", id.Name)
			}
			return types.Invalid, false
		}
	}
	g, ok := c.env.Global(id.Name)
	if !ok {
		c.errorf(id.Pos(), "undefined name %s", id.Name)
		return types.Invalid, false
	}
	return g.Type, true
}

// checkExpr annotates e with its type. The zero Type marks an expression
// that already failed to check; callers do not report it twice.
func (c *checker) checkExpr(e ast.Expression) types.Type {
	t := c.exprType(e)
	e.SetType(t)
	return t
}

func (c *checker) exprType(e ast.Expression) types.Type {
	switch e := e.(type) {
	case *ast.NumberLiteral:
		return types.Number
	case *ast.BoolLiteral:
		return types.Bool
	case *ast.NoneLiteral:
		return types.None
	case *ast.Identifier:
		if c.fn != nil {
			if t, ok := c.fn.locals[e.Name]; ok {
				return t
			}
		}
		if g, ok := c.env.Global(e.Name); ok {
			return g.Type
		}
		c.errorf(e.Pos(), "undefined name %s", e.Name)
		return types.Invalid
	case *ast.UnaryExpr:
		return c.unaryType(e)
	case *ast.BinaryExpr:
		return c.binaryType(e)
	case *ast.CallExpr:
		return c.callType(e)
	case *ast.MemberExpr:
		layout, ok := c.classOf(e.Left, e.Pos())
		if !ok {
			return types.Invalid
		}
		i, ok := layout.FieldIndex(e.Property)
		if !ok {
			c.errorf(e.Pos(), "class %s has no field %s", layout.Name, e.Property)
			return types.Invalid
		}
		return layout.Fields[i].Type
	case *ast.MethodCallExpr:
		layout, ok := c.classOf(e.Receiver, e.Pos())
		if !ok {
			c.checkArgs(e.Arguments)
			return types.Invalid
		}
		sig, ok := layout.Methods[e.Method]
		if !ok {
			c.errorf(e.Pos(), "class %s has no method %s", layout.Name, e.Method)
			c.checkArgs(e.Arguments)
			return types.Invalid
		}
		c.checkCall(layout.Name+"."+e.Method, sig.Params[1:], e.Arguments, e.Pos())
		return sig.Return
	default:
		c.errorf(e.Pos(), "unsupported expression %T", e)
		return types.Invalid
	}
}

func (c *checker) classOf(e ast.Expression, pos token.Position) (*types.ClassLayout, bool) {
	t := c.checkExpr(e)
	if !t.Valid() {
		return nil, false
	}
	if !t.IsClass() {
		c.errorf(pos, "%s has no attributes", t)
		return nil, false
	}
	layout, ok := c.env.Class(t.Name)
	if !ok {
		c.errorf(pos, "unknown class %s", t.Name)
	}
	return layout, ok
}

func (c *checker) unaryType(e *ast.UnaryExpr) types.Type {
	t := c.checkExpr(e.Right)
	if !t.Valid() {
		return t
	}
	switch e.Operator {
	case token.Minus:
		if t != types.Number {
			c.errorf(e.Pos(), "cannot negate %s", t)
			return types.Invalid
		}
		return types.Number
	case token.Not:
		if t != types.Bool {
			c.errorf(e.Pos(), "cannot apply not to %s", t)
			return types.Invalid
		}
		return types.Bool
	}
	c.errorf(e.Pos(), "unknown unary operator %s", e.Operator)
	return types.Invalid
}

func (c *checker) binaryType(e *ast.BinaryExpr) types.Type {
	l := c.checkExpr(e.Left)
	r := c.checkExpr(e.Right)
	if !l.Valid() || !r.Valid() {
		return types.Invalid
	}
	switch e.Operator {
	case token.Plus, token.Minus, token.Star, token.SlashSlash, token.Percent:
		if l == types.Number && r == types.Number {
			return types.Number
		}
	case token.Less, token.LessEqual, token.Greater, token.GreaterEqual:
		if l == types.Number && r == types.Number {
			return types.Bool
		}
	case token.Equal, token.NotEqual:
		if l == r && (l == types.Number || l == types.Bool) {
			return types.Bool
		}
	case token.And, token.Or:
		if l == types.Bool && r == types.Bool {
			return types.Bool
		}
	case token.Is:
		if isReference(l) && isReference(r) {
			return types.Bool
		}
	}
	c.errorf(e.Pos(), "cannot apply %s to %s and %s", operatorText(e.Operator), l, r)
	return types.Invalid
}

func isReference(t types.Type) bool {
	return t.IsClass() || t == types.None
}

func (c *checker) callType(e *ast.CallExpr) types.Type {
	switch e.Name {
	case "print":
		if len(e.Arguments) != 1 {
			c.errorf(e.Pos(), "print expects 1 argument, got %d", len(e.Arguments))
			c.checkArgs(e.Arguments)
			return types.Invalid
		}
		t := c.checkExpr(e.Arguments[0])
		if t.IsClass() {
			c.errorf(e.Pos(), "cannot print value of type %s", t)
			return types.Invalid
		}
		return types.None
	case "abs":
		c.checkCall(e.Name, []types.Type{types.Number}, e.Arguments, e.Pos())
		return types.Number
	case "min", "max", "pow":
		c.checkCall(e.Name, []types.Type{types.Number, types.Number}, e.Arguments, e.Pos())
		return types.Number
	}
	if _, ok := c.env.Class(e.Name); ok {
		c.checkCall(e.Name, nil, e.Arguments, e.Pos())
		return types.Class(e.Name)
	}
	if sig, ok := c.env.Func(e.Name); ok {
		c.checkCall(e.Name, sig.Params, e.Arguments, e.Pos())
		return sig.Return
	}
	c.errorf(e.Pos(), "undefined function %s", e.Name)
	c.checkArgs(e.Arguments)
	return types.Invalid
}

func (c *checker) checkCall(name string, params []types.Type, args []ast.Expression, pos token.Position) {
	if len(args) != len(params) {
		c.errorf(pos, "%s expects %d arguments, got %d", name, len(params), len(args))
		c.checkArgs(args)
		return
	}
	for i, arg := range args {
		got := c.checkExpr(arg)
		if got.Valid() && !types.Assignable(params[i], got) {
			c.errorf(arg.Pos(), "%s: argument %d: expected %s, got %s", name, i+1, params[i], got)
		}
	}
}

func (c *checker) checkArgs(args []ast.Expression) {
	for _, arg := range args {
		c.checkExpr(arg)
	}
}

func (c *checker) errorf(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.errors = append(c.errors, fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg))
}

func operatorText(t token.Type) string {
	switch t {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.SlashSlash:
		return "//"
	case token.Percent:
		return "%"
	case token.Less:
		return "<"
	case token.LessEqual:
		return "<="
	case token.Greater:
		return ">"
	case token.GreaterEqual:
		return ">="
	case token.Equal:
		return "=="
	case token.NotEqual:
		return "!="
	case token.And:
		return "and"
	case token.Or:
		return "or"
	case token.Is:
		return "is"
	}
	return string(t)
}
