package amd64

import (
	"fmt"

	"tlog.app/go/loc"
)

// Fault is an internal invariant violation.
// It's raised with panic and recovered at the compilation boundary.
type Fault struct {
	Msg string
	PC  loc.PC
}

func Faultf(format string, args ...any) *Fault {
	return &Fault{
		Msg: fmt.Sprintf(format, args...),
		PC:  loc.Caller(1),
	}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("internal error: %s (at %v)", f.Msg, f.PC)
}
