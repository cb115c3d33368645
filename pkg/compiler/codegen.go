package compiler

import (
	"fmt"
	"strings"
)

// CodeGen walks an AST and emits stack machine assembly source text.
type CodeGen struct {
	syms *SymbolTable
	out  strings.Builder
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{syms: syms}
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("; "+format, args...)
}

// genExpr emits code leaving the value of e on top of the operand stack.
// Operands are pushed left first, so the right operand is on top when the
// arithmetic instruction runs.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		cg.line("    push %d", n.Value)

	case *UnaryExpr:
		if n.Op != MINUS {
			return fmt.Errorf("unsupported unary operator %s", n.Op)
		}
		cg.line("    push 0")
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("    sub")

	case *BinaryExpr:
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		switch n.Op {
		case PLUS:
			cg.line("    add")
		case MINUS:
			cg.line("    sub")
		case STAR:
			cg.line("    mul")
		case SLASH:
			cg.line("    div")
		default:
			return fmt.Errorf("unsupported binary operator %s", n.Op)
		}

	case *FunctionCall:
		sym, ok := cg.syms.Lookup(n.Name)
		if !ok {
			return fmt.Errorf("line %d: call to undefined function %q", n.Line, n.Name)
		}
		cg.line("    push %s", sym.Label)
		cg.line("    call")

	default:
		return fmt.Errorf("unsupported expression %T", e)
	}
	return nil
}

// genFunction emits one function body. main ends the program with hlt and
// leaves its result on the stack; every other function returns with ret.
func (cg *CodeGen) genFunction(fn *FunctionDecl) error {
	sym, _ := cg.syms.Lookup(fn.Name)
	exit := "ret"
	if fn.Name == "main" {
		exit = "hlt"
	}

	cg.comment("int %s()", fn.Name)
	cg.line("%s:", sym.Label)

	for _, s := range fn.Body {
		switch n := s.(type) {
		case *ReturnStmt:
			if err := cg.genExpr(n.Expr); err != nil {
				return err
			}
			cg.line("    %s", exit)
			cg.line("")
			// Statements after a return are unreachable.
			return nil
		case *ExprStmt:
			if err := cg.genExpr(n.Expr); err != nil {
				return err
			}
			cg.line("    pop")
		default:
			return fmt.Errorf("unsupported statement %T", s)
		}
	}

	// Falling off the end returns 0.
	cg.line("    push 0")
	cg.line("    %s", exit)
	cg.line("")
	return nil
}

// Generate emits assembly for prog. main is placed first so that execution
// starting at address 0 enters it directly.
func Generate(prog *Program, syms *SymbolTable) (string, error) {
	for _, fn := range prog.Functions {
		if _, err := syms.Declare(fn.Name, fn.Line); err != nil {
			return "", err
		}
	}
	if _, ok := syms.Lookup("main"); !ok {
		return "", fmt.Errorf("no main function defined")
	}

	// Unused functions are dropped by optimize, so check them first.
	for _, fn := range prog.Functions {
		for _, s := range fn.Body {
			if c := undefinedCall(stmtExpr(s), syms); c != nil {
				return "", fmt.Errorf("function %q: line %d: call to undefined function %q", fn.Name, c.Line, c.Name)
			}
		}
	}

	prog = optimize(prog)
	cg := newCodeGen(syms)

	ordered := make([]*FunctionDecl, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		if fn.Name == "main" {
			ordered = append([]*FunctionDecl{fn}, ordered...)
		} else {
			ordered = append(ordered, fn)
		}
	}

	for _, fn := range ordered {
		if err := cg.genFunction(fn); err != nil {
			return "", fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	return cg.out.String(), nil
}

func stmtExpr(s Stmt) Expr {
	switch n := s.(type) {
	case *ReturnStmt:
		return n.Expr
	case *ExprStmt:
		return n.Expr
	}
	return nil
}

// undefinedCall returns the first call in e to a function syms does not know.
func undefinedCall(e Expr, syms *SymbolTable) *FunctionCall {
	switch n := e.(type) {
	case *FunctionCall:
		if _, ok := syms.Lookup(n.Name); !ok {
			return n
		}
	case *BinaryExpr:
		if c := undefinedCall(n.Left, syms); c != nil {
			return c
		}
		return undefinedCall(n.Right, syms)
	case *UnaryExpr:
		return undefinedCall(n.Right, syms)
	}
	return nil
}
