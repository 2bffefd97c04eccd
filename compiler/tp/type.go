package tp

import (
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	Kind uint8

	// Type is a scalar type or a pointer to a scalar with Depth levels of indirection.
	// Elem and Depth are zero for non-pointer kinds, so types compare with ==.
	Type struct {
		Kind  Kind
		Elem  Kind
		Depth int
	}
)

const (
	Void Kind = iota
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Pointer
)

var (
	TVoid = Type{Kind: Void}
	TI8   = Type{Kind: I8}
	TU8   = Type{Kind: U8}
	TI16  = Type{Kind: I16}
	TU16  = Type{Kind: U16}
	TI32  = Type{Kind: I32}
	TU32  = Type{Kind: U32}
	TI64  = Type{Kind: I64}
	TU64  = Type{Kind: U64}
	TF32  = Type{Kind: F32}
	TF64  = Type{Kind: F64}

	// Bool is the type of comparison results.
	Bool = TU8
)

var kindNames = [...]string{
	Void:    "void",
	I8:      "i8",
	U8:      "u8",
	I16:     "i16",
	U16:     "u16",
	I32:     "i32",
	U32:     "u32",
	I64:     "i64",
	U64:     "u64",
	F32:     "f32",
	F64:     "f64",
	Pointer: "ptr",
}

var kindSizes = [...]int{
	Void:    0,
	I8:      1,
	U8:      1,
	I16:     2,
	U16:     2,
	I32:     4,
	U32:     4,
	I64:     8,
	U64:     8,
	F32:     4,
	F64:     8,
	Pointer: 8,
}

func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// PointerTo returns the type one indirection level above t.
func PointerTo(t Type) Type {
	if t.Kind == Pointer {
		t.Depth++
		return t
	}

	return Type{Kind: Pointer, Elem: t.Kind, Depth: 1}
}

// Parse parses scalar type keywords.
func Parse(name string) (Type, bool) {
	for k, n := range kindNames {
		if Kind(k) != Pointer && n == name {
			return Type{Kind: Kind(k)}, true
		}
	}

	return Type{}, false
}

func (t Type) Size() int {
	if int(t.Kind) >= len(kindSizes) {
		return 0
	}

	return kindSizes[t.Kind]
}

func (t Type) IsSigned() bool {
	switch t.Kind {
	case I8, I16, I32, I64, F32, F64:
		return true
	}

	return false
}

// IsInteger reports integer kinds and pointers, which are integer-like for arithmetic.
func (t Type) IsInteger() bool {
	switch t.Kind {
	case I8, U8, I16, U16, I32, U32, I64, U64, Pointer:
		return true
	}

	return false
}

func (t Type) IsFloat() bool { return t.Kind == F32 || t.Kind == F64 }

func (t Type) IsPointer() bool { return t.Kind == Pointer }

func (t Type) IsVoid() bool { return t.Kind == Void }

// Deref removes n levels of indirection.
func (t Type) Deref(n int) (Type, error) {
	if t.Kind != Pointer {
		return Type{}, errors.New("dereference of non-pointer type %v", t)
	}

	if n <= 0 || n > t.Depth {
		return Type{}, errors.New("dereference %v by %d: depth is %d", t, n, t.Depth)
	}

	if n == t.Depth {
		return Type{Kind: t.Elem}, nil
	}

	return Type{Kind: Pointer, Elem: t.Elem, Depth: t.Depth - n}, nil
}

// Pointee is Deref(1) for types known to be pointers.
func (t Type) Pointee() Type {
	x, err := t.Deref(1)
	if err != nil {
		panic(err)
	}

	return x
}

// WithSize returns the integer kind of the given size keeping signedness.
func (t Type) WithSize(size int) Type {
	signed := t.IsSigned()

	switch size {
	case 1:
		return pick(signed, TI8, TU8)
	case 2:
		return pick(signed, TI16, TU16)
	case 4:
		return pick(signed, TI32, TU32)
	case 8:
		return pick(signed, TI64, TU64)
	}

	panic(size)
}

func (t Type) String() string {
	if t.Kind != Pointer {
		return t.Kind.String()
	}

	return strings.Repeat("*", t.Depth) + t.Elem.String()
}

func (t Type) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, t.String())
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func pick(c bool, a, b Type) Type {
	if c {
		return a
	}

	return b
}
