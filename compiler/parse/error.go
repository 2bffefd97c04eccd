package parse

import (
	"fmt"

	"tlog.app/go/errors"
)

type (
	// Kind classifies user facing diagnostics. The driver exits with 1+Kind.
	Kind int

	Error struct {
		Kind Kind
		Pos  int
		Msg  string
	}
)

const (
	Usage Kind = iota
	NoSuchFile
	UnexpectedEOF
	NoSuchOperator
	Syntax
	UnknownIdent
	TypeMismatch
	ArgCount
	BadInclude
)

var kindNames = [...]string{
	Usage:          "incorrect usage",
	NoSuchFile:     "no such file",
	UnexpectedEOF:  "unexpected eof",
	NoSuchOperator: "no such operator",
	Syntax:         "syntax error",
	UnknownIdent:   "unknown identifier",
	TypeMismatch:   "type mismatch",
	ArgCount:       "argument count",
	BadInclude:     "bad include",
}

func NewError(k Kind, pos int, format string, args ...any) *Error {
	return &Error{
		Kind: k,
		Pos:  pos,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// ExitCode returns the process status for err: 1+Kind for diagnostics, 1 otherwise.
func ExitCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return 1 + int(e.Kind)
	}

	return 1
}
