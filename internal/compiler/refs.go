package compiler

import (
	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/checker"
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// externalRefs lists, in first-use order, the functions and methods of
// earlier increments that prog calls. Each becomes a function import.
func (c *compiler) externalRefs(prog *ast.Program) []*types.FuncSig {
	r := &refCollector{env: c.env, module: c.opts.Module, seen: make(map[*types.FuncSig]bool)}
	for _, fn := range prog.Funcs {
		r.stmts(fn.Body)
	}
	for _, cd := range prog.Classes {
		for _, m := range cd.Methods {
			r.stmts(m.Body)
		}
	}
	r.stmts(prog.Stmts)
	return r.out
}

type refCollector struct {
	env    *types.Env
	module string
	seen   map[*types.FuncSig]bool
	out    []*types.FuncSig
}

func (r *refCollector) add(sig *types.FuncSig) {
	if sig == nil || sig.Module == r.module || r.seen[sig] {
		return
	}
	r.seen[sig] = true
	r.out = append(r.out, sig)
}

func (r *refCollector) stmts(stmts []ast.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.ExprStmt:
			r.expr(s.Expression)
		case *ast.AssignStmt:
			r.expr(s.Target)
			r.expr(s.Value)
		case *ast.ReturnStmt:
			if s.Value != nil {
				r.expr(s.Value)
			}
		case *ast.IfStmt:
			r.expr(s.Condition)
			r.stmts(s.Conseq)
			r.stmts(s.Alt)
		case *ast.WhileStmt:
			r.expr(s.Condition)
			r.stmts(s.Body)
		}
	}
}

func (r *refCollector) expr(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.UnaryExpr:
		r.expr(e.Right)
	case *ast.BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *ast.MemberExpr:
		r.expr(e.Left)
	case *ast.CallExpr:
		for _, arg := range e.Arguments {
			r.expr(arg)
		}
		if layout, ok := r.env.Class(e.Name); ok {
			r.add(layout.Methods[checker.InitName])
		} else if sig, ok := r.env.Func(e.Name); ok {
			r.add(sig)
		}
	case *ast.MethodCallExpr:
		r.expr(e.Receiver)
		for _, arg := range e.Arguments {
			r.expr(arg)
		}
		if layout, ok := r.env.Class(e.Receiver.Type().Name); ok {
			r.add(layout.Methods[e.Method])
		}
	}
}
