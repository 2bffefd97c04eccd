package ir

import (
	"github.com/slowlang/slowc/compiler/tp"
)

type (
	Attr uint16

	Root struct {
		Funcs []*Function
	}

	Function struct {
		Name   string
		Attr   Attr
		Return tp.Type

		// Params is the number of leading Locals that are parameters.
		Params int
		Locals []Variable

		// Body is nil for declarations.
		Body *Scope

		// Filled by ABI classification.
		StackSize      int
		ParamStackSize int

		// FrameSize is the deepest byte below the frame base any variable,
		// nested scopes included, may occupy.
		FrameSize int
	}

	Variable struct {
		Name  string
		Type  tp.Type
		Attr  Attr
		Index int

		// Location is the frame offset relative to the frame base register.
		Location int
	}

	Stmt interface {
		stmt()
	}

	Expr interface {
		Type() tp.Type
	}

	Lvalue interface {
		Expr
		lvalue()
	}

	Scope struct {
		Stmts  []Stmt
		Locals []int

		StackSize int
	}

	If struct {
		Cond Expr
		Then Stmt
		Else Stmt
	}

	For struct {
		Init   Stmt
		Cond   Expr
		Update Stmt
		Body   Stmt

		// Locals declared by Init.
		Locals []int

		StackSize int
	}

	Assign struct {
		Dst Lvalue
		Src Expr
	}

	Return struct {
		X Expr
	}

	Int struct {
		Value uint64
		T     tp.Type
	}

	Float struct {
		Value float64
		T     tp.Type
	}

	Var struct {
		Index int
		T     tp.Type
	}

	// Call is both a statement and a value.
	Call struct {
		Callee int
		Args   []Expr
		T      tp.Type
	}

	// Deref loads through variable Var Count times.
	Deref struct {
		Var   int
		Count int
		T     tp.Type
	}

	Operation struct {
		Op   Op
		L, R Expr
	}

	SelfOperation struct {
		Op SelfOp
		X  Expr
		T  tp.Type
	}

	TypeCast struct {
		From, Into tp.Type
		X          Expr
	}
)

const (
	Global Attr = 1 << iota
	Extern
	Param
	StackParam
	SysV
)

func (*Scope) stmt()  {}
func (*If) stmt()     {}
func (*For) stmt()    {}
func (*Assign) stmt() {}
func (*Return) stmt() {}
func (*Call) stmt()   {}

func (*Var) lvalue()   {}
func (*Deref) lvalue() {}

func (x *Int) Type() tp.Type   { return x.T }
func (x *Float) Type() tp.Type { return x.T }
func (x *Var) Type() tp.Type   { return x.T }
func (x *Call) Type() tp.Type  { return x.T }
func (x *Deref) Type() tp.Type { return x.T }

func (x *Operation) Type() tp.Type {
	if x.Op.IsBoolean() {
		return tp.Bool
	}

	return x.L.Type()
}

func (x *SelfOperation) Type() tp.Type { return x.T }

func (x *TypeCast) Type() tp.Type { return x.Into }

func (f *Function) IsParam(i int) bool {
	return i < f.Params
}

func (f *Function) ParamVars() []Variable {
	return f.Locals[:f.Params]
}

func (a Attr) Has(x Attr) bool {
	return a&x == x
}

func (a Attr) String() (s string) {
	names := []string{"global", "extern", "param", "stack", "sysv"}

	for i, n := range names {
		if a&(1<<i) == 0 {
			continue
		}

		if s != "" {
			s += "|"
		}

		s += n
	}

	return s
}
