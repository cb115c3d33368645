package compiler

import "math"

// optimize folds constant expressions and drops functions unreachable from main.
func optimize(prog *Program) *Program {
	out := &Program{}
	for _, fn := range eliminateDeadFunctions(prog.Functions) {
		folded := &FunctionDecl{Name: fn.Name, Line: fn.Line}
		for _, s := range fn.Body {
			folded.Body = append(folded.Body, foldStmt(s))
		}
		out.Functions = append(out.Functions, folded)
	}
	return out
}

// eliminateDeadFunctions removes functions that main never reaches.
func eliminateDeadFunctions(funcs []*FunctionDecl) []*FunctionDecl {
	byName := make(map[string]*FunctionDecl)
	for _, f := range funcs {
		byName[f.Name] = f
	}

	reachable := make(map[string]bool)
	var worklist []string

	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}
	if _, ok := byName["main"]; ok {
		addReachable("main")
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		fDecl, exists := byName[curr]
		if !exists {
			// Undefined; reported by the code generator.
			continue
		}
		calls := make(map[string]bool)
		for _, s := range fDecl.Body {
			findCallsStmt(s, calls)
		}
		for call := range calls {
			addReachable(call)
		}
	}

	var kept []*FunctionDecl
	for _, f := range funcs {
		if reachable[f.Name] {
			kept = append(kept, f)
		}
	}
	return kept
}

// findCallsExpr recursively extracts function call names from an expression.
func findCallsExpr(e Expr, calls map[string]bool) {
	switch n := e.(type) {
	case *FunctionCall:
		calls[n.Name] = true
	case *BinaryExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *UnaryExpr:
		findCallsExpr(n.Right, calls)
	}
}

func findCallsStmt(s Stmt, calls map[string]bool) {
	switch n := s.(type) {
	case *ReturnStmt:
		findCallsExpr(n.Expr, calls)
	case *ExprStmt:
		findCallsExpr(n.Expr, calls)
	}
}

func foldStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *ReturnStmt:
		return &ReturnStmt{Expr: foldExpr(n.Expr)}
	case *ExprStmt:
		return &ExprStmt{Expr: foldExpr(n.Expr)}
	}
	return s
}

// foldExpr evaluates literal-only subtrees with the machine's wrapping
// arithmetic. Divisions that would fault at run time are left in place.
func foldExpr(e Expr) Expr {
	switch n := e.(type) {
	case *UnaryExpr:
		right := foldExpr(n.Right)
		if lit, ok := right.(*Literal); ok && n.Op == MINUS {
			return &Literal{Value: -lit.Value}
		}
		return &UnaryExpr{Op: n.Op, Right: right}

	case *BinaryExpr:
		left, right := foldExpr(n.Left), foldExpr(n.Right)
		l, lok := left.(*Literal)
		r, rok := right.(*Literal)
		if lok && rok {
			switch n.Op {
			case PLUS:
				return &Literal{Value: l.Value + r.Value}
			case MINUS:
				return &Literal{Value: l.Value - r.Value}
			case STAR:
				return &Literal{Value: l.Value * r.Value}
			case SLASH:
				if r.Value != 0 && !(l.Value == math.MinInt64 && r.Value == -1) {
					return &Literal{Value: l.Value / r.Value}
				}
			}
		}
		return &BinaryExpr{Op: n.Op, Left: left, Right: right}
	}
	return e
}
