package amd64

import (
	"tlog.app/go/tlog/tlwire"
)

type (
	// Bank is one architectural register together with its narrower views.
	Bank uint8

	// Width selects a view of a bank.
	Width uint8

	Reg uint8

	regInfo struct {
		name  string
		bank  Bank
		width Width
	}
)

const (
	W64 Width = iota
	W32
	W16
	W8
	W8H

	numWidths
)

const (
	BankRAX Bank = iota
	BankRBX
	BankRCX
	BankRDX
	BankRSI
	BankRDI
	BankRSP
	BankRBP
	BankR8
	BankR9
	BankR10
	BankR11
	BankR12
	BankR13
	BankR14
	BankR15
	BankXMM0
	BankXMM1
	BankXMM2
	BankXMM3
	BankXMM4
	BankXMM5
	BankXMM6
	BankXMM7
	BankXMM8
	BankXMM9
	BankXMM10
	BankXMM11
	BankXMM12
	BankXMM13
	BankXMM14
	BankXMM15

	NumBanks
)

const (
	NoReg Reg = iota

	RAX
	EAX
	AX
	AL
	AH
	RBX
	EBX
	BX
	BL
	BH
	RCX
	ECX
	CX
	CL
	CH
	RDX
	EDX
	DX
	DL
	DH
	RSI
	ESI
	SI
	SIL
	RDI
	EDI
	DI
	DIL
	RSP
	ESP
	SP
	SPL
	RBP
	EBP
	BP
	BPL
	R8
	R8D
	R8W
	R8B
	R9
	R9D
	R9W
	R9B
	R10
	R10D
	R10W
	R10B
	R11
	R11D
	R11W
	R11B
	R12
	R12D
	R12W
	R12B
	R13
	R13D
	R13W
	R13B
	R14
	R14D
	R14W
	R14B
	R15
	R15D
	R15W
	R15B
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15

	numRegs
)

var regInfos = [numRegs]regInfo{
	RAX: {"rax", BankRAX, W64}, EAX: {"eax", BankRAX, W32}, AX: {"ax", BankRAX, W16}, AL: {"al", BankRAX, W8}, AH: {"ah", BankRAX, W8H},
	RBX: {"rbx", BankRBX, W64}, EBX: {"ebx", BankRBX, W32}, BX: {"bx", BankRBX, W16}, BL: {"bl", BankRBX, W8}, BH: {"bh", BankRBX, W8H},
	RCX: {"rcx", BankRCX, W64}, ECX: {"ecx", BankRCX, W32}, CX: {"cx", BankRCX, W16}, CL: {"cl", BankRCX, W8}, CH: {"ch", BankRCX, W8H},
	RDX: {"rdx", BankRDX, W64}, EDX: {"edx", BankRDX, W32}, DX: {"dx", BankRDX, W16}, DL: {"dl", BankRDX, W8}, DH: {"dh", BankRDX, W8H},

	RSI: {"rsi", BankRSI, W64}, ESI: {"esi", BankRSI, W32}, SI: {"si", BankRSI, W16}, SIL: {"sil", BankRSI, W8},
	RDI: {"rdi", BankRDI, W64}, EDI: {"edi", BankRDI, W32}, DI: {"di", BankRDI, W16}, DIL: {"dil", BankRDI, W8},
	RSP: {"rsp", BankRSP, W64}, ESP: {"esp", BankRSP, W32}, SP: {"sp", BankRSP, W16}, SPL: {"spl", BankRSP, W8},
	RBP: {"rbp", BankRBP, W64}, EBP: {"ebp", BankRBP, W32}, BP: {"bp", BankRBP, W16}, BPL: {"bpl", BankRBP, W8},

	R8: {"r8", BankR8, W64}, R8D: {"r8d", BankR8, W32}, R8W: {"r8w", BankR8, W16}, R8B: {"r8b", BankR8, W8},
	R9: {"r9", BankR9, W64}, R9D: {"r9d", BankR9, W32}, R9W: {"r9w", BankR9, W16}, R9B: {"r9b", BankR9, W8},
	R10: {"r10", BankR10, W64}, R10D: {"r10d", BankR10, W32}, R10W: {"r10w", BankR10, W16}, R10B: {"r10b", BankR10, W8},
	R11: {"r11", BankR11, W64}, R11D: {"r11d", BankR11, W32}, R11W: {"r11w", BankR11, W16}, R11B: {"r11b", BankR11, W8},
	R12: {"r12", BankR12, W64}, R12D: {"r12d", BankR12, W32}, R12W: {"r12w", BankR12, W16}, R12B: {"r12b", BankR12, W8},
	R13: {"r13", BankR13, W64}, R13D: {"r13d", BankR13, W32}, R13W: {"r13w", BankR13, W16}, R13B: {"r13b", BankR13, W8},
	R14: {"r14", BankR14, W64}, R14D: {"r14d", BankR14, W32}, R14W: {"r14w", BankR14, W16}, R14B: {"r14b", BankR14, W8},
	R15: {"r15", BankR15, W64}, R15D: {"r15d", BankR15, W32}, R15W: {"r15w", BankR15, W16}, R15B: {"r15b", BankR15, W8},

	XMM0: {"xmm0", BankXMM0, W64}, XMM1: {"xmm1", BankXMM1, W64}, XMM2: {"xmm2", BankXMM2, W64}, XMM3: {"xmm3", BankXMM3, W64},
	XMM4: {"xmm4", BankXMM4, W64}, XMM5: {"xmm5", BankXMM5, W64}, XMM6: {"xmm6", BankXMM6, W64}, XMM7: {"xmm7", BankXMM7, W64},
	XMM8: {"xmm8", BankXMM8, W64}, XMM9: {"xmm9", BankXMM9, W64}, XMM10: {"xmm10", BankXMM10, W64}, XMM11: {"xmm11", BankXMM11, W64},
	XMM12: {"xmm12", BankXMM12, W64}, XMM13: {"xmm13", BankXMM13, W64}, XMM14: {"xmm14", BankXMM14, W64}, XMM15: {"xmm15", BankXMM15, W64},
}

// views is the bank × width table. Missing views are NoReg.
var views [NumBanks][numWidths]Reg

var (
	// IntArgs are the SysV integer argument registers in order.
	IntArgs = []Bank{BankRDI, BankRSI, BankRDX, BankRCX, BankR8, BankR9}

	// FloatArgs are the SysV vector argument registers in order.
	FloatArgs = []Bank{BankXMM0, BankXMM1, BankXMM2, BankXMM3, BankXMM4, BankXMM5, BankXMM6, BankXMM7}

	// CalleeSaved are the allocatable banks a SysV function must preserve.
	CalleeSaved = []Bank{BankRBX, BankR12, BankR13, BankR14, BankR15}
)

func init() {
	for r := RAX; r < numRegs; r++ {
		ri := regInfos[r]

		if ri.name == "" || views[ri.bank][ri.width] != NoReg {
			panic(r)
		}

		views[ri.bank][ri.width] = r
	}
}

func (r Reg) Bank() Bank   { return regInfos[r].bank }
func (r Reg) Width() Width { return regInfos[r].width }

func (r Reg) String() string {
	if r == NoReg || r >= numRegs {
		return "noreg"
	}

	return regInfos[r].name
}

// Size is the number of bytes the view covers. Vector registers report 8.
func (r Reg) Size() int {
	return r.Width().Size()
}

func (r Reg) IsHigh8() bool { return r.Width() == W8H }

func (r Reg) IsVector() bool { return r != NoReg && r.Bank().IsVector() }

// NeedsREX reports registers only encodable with a REX prefix.
// Such a register can't share an instruction with a high-8 register.
func (r Reg) NeedsREX() bool {
	b := r.Bank()

	switch {
	case r == NoReg || b.IsVector():
		return false
	case b >= BankR8:
		return true
	case r == SIL || r == DIL || r == SPL || r == BPL:
		return true
	case r.Width() == W64:
		return true
	}

	return false
}

// Sized returns the view of the same bank covering size bytes.
// A high-8 register stays itself for size 1.
func (r Reg) Sized(size int) Reg {
	if size == 1 && r.IsHigh8() {
		return r
	}

	return r.Bank().Sized(size)
}

func (r Reg) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, r.String())
}

func (b Bank) Reg(w Width) Reg {
	return views[b][w]
}

func (b Bank) Sized(size int) Reg {
	if b.IsVector() {
		return views[b][W64]
	}

	switch size {
	case 1:
		return views[b][W8]
	case 2:
		return views[b][W16]
	case 4:
		return views[b][W32]
	case 8:
		return views[b][W64]
	}

	return NoReg
}

func (b Bank) IsVector() bool { return b >= BankXMM0 && b < NumBanks }

func (b Bank) HasHigh8() bool { return views[b][W8H] != NoReg }

func (b Bank) String() string { return views[b][W64].String() }

func (w Width) Size() int {
	switch w {
	case W64:
		return 8
	case W32:
		return 4
	case W16:
		return 2
	case W8, W8H:
		return 1
	}

	return 0
}
