package amd64

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/set"
	"github.com/slowlang/slowc/compiler/tp"
)

type (
	// Stacker saves and restores whole banks. The Emitter implements it.
	Stacker interface {
		Push(x Operand)
		Pop(x Operand)
	}

	// RegAlloc hands out register views.
	// A bank has three independent busy flags:
	// wide (64/32/16-bit view), low (low-8 view) and high (high-8 view).
	// wide excludes the other two.
	RegAlloc struct {
		st Stacker

		wide set.Bits[Bank]
		low  set.Bits[Bank]
		high set.Bits[Bank]

		// spills counts pending pops per bank.
		spills [NumBanks]int

		// touched collects banks handed out since the last ResetTouched.
		touched set.Bits[Bank]

		saved []saveFrame
	}

	saveFrame struct {
		banks []savedBank
	}

	savedBank struct {
		bank   Bank
		wide   bool
		low    bool
		high   bool
		spills int
	}
)

var (
	intPool = []Bank{
		BankRBX, BankRCX, BankRDX, BankRSI, BankRDI,
		BankR8, BankR9, BankR10, BankR11, BankR12, BankR13, BankR14, BankR15,
	}

	vecPool = []Bank{
		BankXMM8, BankXMM9, BankXMM10, BankXMM11, BankXMM12, BankXMM13, BankXMM14, BankXMM15,
		BankXMM1, BankXMM2, BankXMM3, BankXMM4, BankXMM5, BankXMM6, BankXMM7,
	}
)

func NewRegAlloc(st Stacker) *RegAlloc {
	return &RegAlloc{
		st:   st,
		wide: set.MakeBits[Bank](0),
		low:  set.MakeBits[Bank](0),
		high: set.MakeBits[Bank](0),

		touched: set.MakeBits[Bank](0),
	}
}

// Touched returns banks handed out since the last ResetTouched.
func (a *RegAlloc) Touched() set.Bits[Bank] { return a.touched }

func (a *RegAlloc) ResetTouched() {
	a.touched = set.MakeBits[Bank](0)
}

// Alloc returns a free view sized for t, scanning the pool in fixed order.
func (a *RegAlloc) Alloc(t tp.Type) (Reg, bool) {
	return a.alloc(t, nil)
}

func (a *RegAlloc) alloc(t tp.Type, skip func(Bank) bool) (Reg, bool) {
	pool := intPool
	if t.IsFloat() {
		pool = vecPool
	}

	size := t.Size()

	for _, b := range pool {
		if skip != nil && skip(b) {
			continue
		}

		if r := a.take(b, size); r != NoReg {
			tlog.V("regalloc").Printw("alloc", "reg", r, "type", t, "from", loc.Caller(2))

			return r, true
		}
	}

	return NoReg, false
}

// AllocOutsideSave is Alloc skipping banks the innermost SaveUsed frame will restore.
func (a *RegAlloc) AllocOutsideSave(t tp.Type) (Reg, bool) {
	if len(a.saved) == 0 {
		return a.alloc(t, nil)
	}

	fr := a.saved[len(a.saved)-1]

	return a.alloc(t, fr.has)
}

// Force takes exactly r. If r is busy its bank is pushed and popped back by Free.
func (a *RegAlloc) Force(r Reg) {
	b := r.Bank()

	if a.takeView(b, r.Width()) {
		tlog.V("regalloc").Printw("force", "reg", r, "from", loc.Caller(1))

		return
	}

	a.spills[b]++
	a.st.Push(bankOperand(b))

	tlog.V("regalloc").Printw("force spill", "reg", r, "spills", a.spills[b], "from", loc.Caller(1))
}

// Free releases r, popping the bank back if it was spilled by Force.
func (a *RegAlloc) Free(r Reg) {
	b := r.Bank()

	if a.spills[b] != 0 {
		a.spills[b]--
		a.st.Pop(bankOperand(b))

		tlog.V("regalloc").Printw("free unspill", "reg", r, "from", loc.Caller(1))

		return
	}

	switch {
	case b.IsVector():
		a.wide.Clear(b)
	case r.IsHigh8():
		a.high.Clear(b)
	default:
		a.wide.Clear(b)
		a.low.Clear(b)
	}

	tlog.V("regalloc").Printw("free", "reg", r, "from", loc.Caller(1))
}

// Resize switches an owned low view to size bytes in place.
// It fails if the high-8 view of the bank is in use by someone else.
func (a *RegAlloc) Resize(r Reg, size int) (Reg, bool) {
	b := r.Bank()

	if r.IsHigh8() || b.IsVector() {
		return NoReg, false
	}

	if size == 1 {
		return r.Sized(1), true
	}

	if a.high.IsSet(b) {
		return NoReg, false
	}

	a.low.Clear(b)
	a.wide.Set(b)

	return b.Sized(size), true
}

// Available counts pool banks able to serve t right now.
func (a *RegAlloc) Available(t tp.Type) (n int) {
	pool := intPool
	if t.IsFloat() {
		pool = vecPool
	}

	for _, b := range pool {
		if a.canTake(b, t.Size()) {
			n++
		}
	}

	return n
}

func (a *RegAlloc) canTake(b Bank, size int) bool {
	switch {
	case a.wide.IsSet(b):
		return false
	case b.IsVector():
		return true
	case size == 1:
		return !a.low.IsSet(b) || b.HasHigh8() && !a.high.IsSet(b)
	}

	return !a.low.IsSet(b) && !a.high.IsSet(b)
}

// IsBusy reports whether any view of b is in use.
func (a *RegAlloc) IsBusy(b Bank) bool {
	return a.wide.IsSet(b) || a.low.IsSet(b) || a.high.IsSet(b)
}

// SaveUsed pushes every busy bank and marks everything free.
// Calls nest: each SaveUsed is paired with a RestoreUsed.
func (a *RegAlloc) SaveUsed() {
	var fr saveFrame

	for b := Bank(0); b < NumBanks; b++ {
		if !a.IsBusy(b) {
			continue
		}

		a.st.Push(bankOperand(b))

		fr.banks = append(fr.banks, savedBank{
			bank:   b,
			wide:   a.wide.IsSet(b),
			low:    a.low.IsSet(b),
			high:   a.high.IsSet(b),
			spills: a.spills[b],
		})

		a.wide.Clear(b)
		a.low.Clear(b)
		a.high.Clear(b)
		a.spills[b] = 0
	}

	a.saved = append(a.saved, fr)

	tlog.V("regalloc").Printw("save used", "banks", len(fr.banks), "depth", len(a.saved), "from", loc.Caller(1))
}

// RestoreUsed pops the banks saved by the matching SaveUsed in reverse order.
func (a *RegAlloc) RestoreUsed() {
	if len(a.saved) == 0 {
		panic(Faultf("restore without save"))
	}

	fr := a.saved[len(a.saved)-1]
	a.saved = a.saved[:len(a.saved)-1]

	for i := len(fr.banks) - 1; i >= 0; i-- {
		s := fr.banks[i]

		a.st.Pop(bankOperand(s.bank))

		if s.wide {
			a.wide.Set(s.bank)
		}
		if s.low {
			a.low.Set(s.bank)
		}
		if s.high {
			a.high.Set(s.bank)
		}

		a.spills[s.bank] = s.spills
	}

	tlog.V("regalloc").Printw("restore used", "banks", len(fr.banks), "depth", len(a.saved), "from", loc.Caller(1))
}

// Leaks returns banks with a busy view or a pending spill.
func (a *RegAlloc) Leaks() (r set.Bits[Bank]) {
	r = set.MakeBits[Bank](0)

	r.Merge(a.wide)
	r.Merge(a.low)
	r.Merge(a.high)

	for b, n := range a.spills {
		if n != 0 {
			r.Set(Bank(b))
		}
	}

	return r
}

// CheckLeaks reports an allocate/free mismatch.
func (a *RegAlloc) CheckLeaks() error {
	if len(a.saved) != 0 {
		return Faultf("unbalanced save used: %d frames", len(a.saved))
	}

	l := a.Leaks()
	if l.Empty() {
		return nil
	}

	tlog.V("regalloc").Printw("leaked banks", "banks", l, "from", loc.Caller(1))

	return Faultf("registers leaked: %v", l.Slice())
}

// take allocates a view of b for size bytes.
func (a *RegAlloc) take(b Bank, size int) Reg {
	if b.IsVector() {
		if !a.takeView(b, W64) {
			return NoReg
		}

		return b.Reg(W64)
	}

	if size == 1 {
		if a.takeView(b, W8) {
			return b.Reg(W8)
		}

		if b.HasHigh8() && a.takeView(b, W8H) {
			return b.Reg(W8H)
		}

		return NoReg
	}

	if !a.takeView(b, W64) {
		return NoReg
	}

	return b.Sized(size)
}

func (a *RegAlloc) takeView(b Bank, w Width) bool {
	if a.wide.IsSet(b) {
		return false
	}

	switch {
	case b.IsVector():
		a.wide.Set(b)
	case w == W8H:
		if a.high.IsSet(b) {
			return false
		}

		a.high.Set(b)
	case w == W8:
		if a.low.IsSet(b) {
			return false
		}

		a.low.Set(b)
	default:
		if a.low.IsSet(b) || a.high.IsSet(b) {
			return false
		}

		a.wide.Set(b)
	}

	a.touched.Set(b)

	return true
}

func (fr saveFrame) has(b Bank) bool {
	for _, s := range fr.banks {
		if s.bank == b {
			return true
		}
	}

	return false
}

func bankOperand(b Bank) Operand {
	if b.IsVector() {
		return R(b.Reg(W64), tp.TF64)
	}

	return R(b.Reg(W64), tp.TU64)
}
