package ir

type (
	Op     int
	SelfOp int
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
	BoolAnd
	BoolOr
	Eq
	Ne
	Gt
	Lt
	Ge
	Le
)

const (
	BitNot SelfOp = iota
	BoolNot
	AddrOf
	DerefOp
)

var opNames = [...]string{
	Add:     "+",
	Sub:     "-",
	Mul:     "*",
	Div:     "/",
	Mod:     "%",
	BitAnd:  "&",
	BitOr:   "|",
	BitXor:  "^",
	Shl:     "<<",
	Shr:     ">>",
	BoolAnd: "&&",
	BoolOr:  "||",
	Eq:      "==",
	Ne:      "!=",
	Gt:      ">",
	Lt:      "<",
	Ge:      ">=",
	Le:      "<=",
}

var selfOpNames = [...]string{
	BitNot:  "~",
	BoolNot: "!",
	AddrOf:  "&",
	DerefOp: "*",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}

	return "op?"
}

func (op Op) IsComparison() bool {
	return op >= Eq && op <= Le
}

// IsBoolean reports operators producing a 0/1 byte.
func (op Op) IsBoolean() bool {
	return op.IsComparison() || op == BoolAnd || op == BoolOr
}

func (op SelfOp) String() string {
	if int(op) < len(selfOpNames) {
		return selfOpNames[op]
	}

	return "op?"
}
