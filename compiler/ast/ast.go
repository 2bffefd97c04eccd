package ast

type (
	Node interface {
		Span() Base
	}

	// Base is a byte range in the concatenated source text.
	Base struct {
		Pos int
		End int
	}

	File struct {
		Base `tlog:",embed"`

		Funcs []*Func
	}

	Func struct {
		Base `tlog:",embed"`

		Name   *Ident
		Attrs  []*Ident
		Params []*Param
		Ret    *Type

		// Body is nil for declarations.
		Body *Block
	}

	Param struct {
		Base `tlog:",embed"`

		Name *Ident
		Type *Type
	}

	// Type is a scalar keyword behind Depth stars.
	Type struct {
		Base `tlog:",embed"`

		Name  string
		Depth int
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	Block struct {
		Base `tlog:",embed"`

		Stmts []Node
	}

	Let struct {
		Base `tlog:",embed"`

		Name  *Ident
		Type  *Type
		Value Node
	}

	// Assign is `Dst = Src` or a compound `Dst Op= Src`.
	Assign struct {
		Base `tlog:",embed"`

		Op  string
		Dst Node
		Src Node
	}

	Return struct {
		Base `tlog:",embed"`

		Value Node
	}

	If struct {
		Base `tlog:",embed"`

		Cond Node
		Then Node
		Else Node
	}

	For struct {
		Base `tlog:",embed"`

		Init   Node
		Cond   Node
		Update Node
		Body   Node
	}

	// ExprStmt is a call evaluated for its side effects.
	ExprStmt struct {
		Base `tlog:",embed"`

		X Node
	}

	Int struct {
		Base `tlog:",embed"`

		Value uint64
	}

	Float struct {
		Base `tlog:",embed"`

		Value float64
	}

	Binary struct {
		Base `tlog:",embed"`

		Op    string
		Left  Node
		Right Node
	}

	Unary struct {
		Base `tlog:",embed"`

		Op string
		X  Node
	}

	Call struct {
		Base `tlog:",embed"`

		Name *Ident
		Args []Node
	}

	Cast struct {
		Base `tlog:",embed"`

		X    Node
		Type *Type
	}
)

func (b Base) Span() Base { return b }
