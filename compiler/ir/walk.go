package ir

// WalkExpr calls f for x and its subexpressions, parents first, left to right.
// Returning false skips the children.
func WalkExpr(x Expr, f func(Expr) bool) {
	if x == nil || !f(x) {
		return
	}

	switch x := x.(type) {
	case *Operation:
		WalkExpr(x.L, f)
		WalkExpr(x.R, f)
	case *SelfOperation:
		WalkExpr(x.X, f)
	case *TypeCast:
		WalkExpr(x.X, f)
	case *Call:
		for _, a := range x.Args {
			WalkExpr(a, f)
		}
	}
}

// WalkStmt calls f for s and nested statements in program order.
func WalkStmt(s Stmt, f func(Stmt) bool) {
	if s == nil || !f(s) {
		return
	}

	switch s := s.(type) {
	case *Scope:
		for _, x := range s.Stmts {
			WalkStmt(x, f)
		}
	case *If:
		WalkStmt(s.Then, f)
		WalkStmt(s.Else, f)
	case *For:
		WalkStmt(s.Init, f)
		WalkStmt(s.Body, f)
		WalkStmt(s.Update, f)
	}
}

// Depth returns the height of the expression tree.
func Depth(x Expr) int {
	switch x := x.(type) {
	case *Operation:
		return 1 + max(Depth(x.L), Depth(x.R))
	case *SelfOperation:
		return 1 + Depth(x.X)
	case *TypeCast:
		return 1 + Depth(x.X)
	case *Call:
		d := 0

		for _, a := range x.Args {
			d = max(d, Depth(a))
		}

		return 1 + d
	}

	return 1
}
