package ast

import (
	"github.com/xirelogy/go-wasmrepl/internal/token"
	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// Node represents any AST node.
type Node interface {
	Pos() token.Position
}

// Statement is an executable node.
type Statement interface {
	Node
	stmtNode()
}

// Expression produces a value. The checker records the static type of
// every expression it accepts.
type Expression interface {
	Node
	exprNode()
	Type() types.Type
	SetType(types.Type)
}

// Program is the root node of one evaluated increment.
type Program struct {
	Vars     []*VarDef
	Classes  []*ClassDef
	Funcs    []*FuncDef
	Stmts    []Statement
	NodeSpan token.Span
}

func (p *Program) Pos() token.Position { return p.NodeSpan.Start }

// TypeAnnotation is a written type: int, bool, None or a class name.
type TypeAnnotation struct {
	Name string
	PosT token.Position
}

// Declarations

type VarDef struct {
	Name    string
	NamePos token.Position
	Annot   TypeAnnotation
	Value   Literal
}

func (v *VarDef) Pos() token.Position { return v.NamePos }

type Param struct {
	Name  string
	Annot TypeAnnotation
	Pos   token.Position
}

type FuncDef struct {
	DefPos  token.Position
	Name    string
	Params  []Param
	Return  *TypeAnnotation // nil when omitted (returns None)
	Globals []string
	Vars    []*VarDef
	Body    []Statement
	// Class is set for methods.
	Class string
}

func (f *FuncDef) Pos() token.Position { return f.DefPos }

type ClassDef struct {
	ClassPos token.Position
	Name     string
	Super    string
	Fields   []*VarDef
	Methods  []*FuncDef
}

func (c *ClassDef) Pos() token.Position { return c.ClassPos }

// Statements

type ExprStmt struct {
	Expression Expression
	Start      token.Position
}

func (e *ExprStmt) Pos() token.Position { return e.Start }
func (e *ExprStmt) stmtNode()           {}

type AssignStmt struct {
	Target Expression // *Identifier or *MemberExpr
	Value  Expression
	PosT   token.Position
}

func (a *AssignStmt) Pos() token.Position { return a.PosT }
func (a *AssignStmt) stmtNode()           {}

type ReturnStmt struct {
	Return token.Position
	Value  Expression
}

func (r *ReturnStmt) Pos() token.Position { return r.Return }
func (r *ReturnStmt) stmtNode()           {}

type PassStmt struct {
	PosT token.Position
}

func (p *PassStmt) Pos() token.Position { return p.PosT }
func (p *PassStmt) stmtNode()           {}

type IfStmt struct {
	IfPos     token.Position
	Condition Expression
	Conseq    []Statement
	Alt       []Statement // elif chains nest as a single IfStmt here
}

func (i *IfStmt) Pos() token.Position { return i.IfPos }
func (i *IfStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos  token.Position
	Condition Expression
	Body      []Statement
}

func (w *WhileStmt) Pos() token.Position { return w.WhilePos }
func (w *WhileStmt) stmtNode()           {}

// Expressions

type typed struct {
	typ types.Type
}

func (t *typed) Type() types.Type     { return t.typ }
func (t *typed) SetType(v types.Type) { t.typ = v }

// Literal is a constant usable as a variable initialiser.
type Literal interface {
	Expression
	literalNode()
}

type NumberLiteral struct {
	typed
	Value int32
	PosT  token.Position
}

func (n *NumberLiteral) Pos() token.Position { return n.PosT }
func (n *NumberLiteral) exprNode()           {}
func (n *NumberLiteral) literalNode()        {}

type BoolLiteral struct {
	typed
	Value bool
	PosT  token.Position
}

func (b *BoolLiteral) Pos() token.Position { return b.PosT }
func (b *BoolLiteral) exprNode()           {}
func (b *BoolLiteral) literalNode()        {}

type NoneLiteral struct {
	typed
	PosT token.Position
}

func (n *NoneLiteral) Pos() token.Position { return n.PosT }
func (n *NoneLiteral) exprNode()           {}
func (n *NoneLiteral) literalNode()        {}

type Identifier struct {
	typed
	Name string
	PosT token.Position
}

func (i *Identifier) Pos() token.Position { return i.PosT }
func (i *Identifier) exprNode()           {}

type UnaryExpr struct {
	typed
	Operator token.Type
	Right    Expression
	PosT     token.Position
}

func (u *UnaryExpr) Pos() token.Position { return u.PosT }
func (u *UnaryExpr) exprNode()           {}

type BinaryExpr struct {
	typed
	Left     Expression
	Operator token.Type
	Right    Expression
	PosT     token.Position
}

func (b *BinaryExpr) Pos() token.Position { return b.PosT }
func (b *BinaryExpr) exprNode()           {}

// CallExpr is a call of a named function, builtin or class constructor.
type CallExpr struct {
	typed
	Name      string
	Arguments []Expression
	PosT      token.Position
}

func (c *CallExpr) Pos() token.Position { return c.PosT }
func (c *CallExpr) exprNode()           {}

type MemberExpr struct {
	typed
	Left     Expression
	Property string
	PosT     token.Position
}

func (m *MemberExpr) Pos() token.Position { return m.PosT }
func (m *MemberExpr) exprNode()           {}

type MethodCallExpr struct {
	typed
	Receiver  Expression
	Method    string
	Arguments []Expression
	PosT      token.Position
}

func (m *MethodCallExpr) Pos() token.Position { return m.PosT }
func (m *MethodCallExpr) exprNode()           {}
