package compiler

import (
	"fmt"
	"strings"
)

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves exactly one value on the operand stack.
type Expr interface {
	exprNode()
	String() string
}

// Literal is a compile-time integer constant.
//
//	return 10;
//	       ^^  Literal{Value: 10}
type Literal struct {
	Value int64
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return fmt.Sprintf("%d", l.Value) }

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryExpr represents a prefix operation. Only MINUS is produced.
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) exprNode() {}
func (u *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", u.Op, u.Right)
}

// FunctionCall is a call to another function of the program.
//
//	return seven() * 6;
//	       ^^^^^^^  FunctionCall{Name: "seven"}
type FunctionCall struct {
	Name string
	Line int
}

func (*FunctionCall) exprNode()        {}
func (f *FunctionCall) String() string { return f.Name + "()" }

//  Statement nodes

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
	String() string
}

// ReturnStmt ends the function, leaving Expr's value on the operand stack.
type ReturnStmt struct {
	Expr Expr
}

func (*ReturnStmt) stmtNode()        {}
func (r *ReturnStmt) String() string { return fmt.Sprintf("return %s;", r.Expr) }

// ExprStmt evaluates an expression for its side effects and drops the value.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode()        {}
func (e *ExprStmt) String() string { return e.Expr.String() + ";" }

//  Top level

// FunctionDecl is an `int name() { ... }` definition.
type FunctionDecl struct {
	Name string
	Line int
	Body []Stmt
}

func (f *FunctionDecl) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "int %s() {", f.Name)
	for _, s := range f.Body {
		sb.WriteString(" ")
		sb.WriteString(s.String())
	}
	sb.WriteString(" }")
	return sb.String()
}

// Program is the root of the AST: every function in source order.
type Program struct {
	Functions []*FunctionDecl
}

func (p *Program) String() string {
	parts := make([]string, len(p.Functions))
	for i, f := range p.Functions {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\n")
}
