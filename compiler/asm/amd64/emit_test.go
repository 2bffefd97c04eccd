package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/slowc/compiler/asm/amd64/x86sim"
	"github.com/slowlang/slowc/compiler/tp"
)

func TestMov(t *testing.T) {
	e := NewEmitter()

	x := M(RBP, -4, tp.TI32)
	y := M(RBP, -8, tp.TI32)

	e.Mov(x, x)
	e.Mov(x, y)
	e.Mov(M(RBP, -16, tp.TI64), Imm(1<<40, tp.TI64))
	e.Mov(M(RBP, -16, tp.TI64), Imm(5, tp.TI64))
	e.Mov(R(EBX, tp.TI32), Imm(0xffff_ffff_ffff_fffe, tp.TI64))

	assert.Equal(t, []string{
		"\tmov ebx, dword [rbp-8]",
		"\tmov dword [rbp-4], ebx",
		"\tmov rbx, 1099511627776",
		"\tmov qword [rbp-16], rbx",
		"\tmov qword [rbp-16], 5",
		"\tmov ebx, -2",
	}, textLines(e))

	assert.NoError(t, e.Regs().CheckLeaks())
}

func TestMovFloat(t *testing.T) {
	e := NewEmitter()

	c := e.Float(1.5, tp.TF64)
	s := e.Float(0.25, tp.TF32)

	e.Mov(R(XMM8, tp.TF64), c)
	e.Mov(M(RBP, -4, tp.TF32), s)

	assert.Equal(t, []string{
		"\tmovsd xmm8, qword [rel LD0]",
		"\tmovss xmm8, dword [rel LD1]",
		"\tmovss dword [rbp-4], xmm8",
	}, textLines(e))

	b := string(e.Bytes())
	assert.Contains(t, b, "segment .data\nLD0: dq 0x3ff8000000000000\nLD1: dd 0x3e800000\n")
	assert.NoError(t, e.Regs().CheckLeaks())
}

func TestArithSelection(t *testing.T) {
	e := NewEmitter()

	e.Add(R(EBX, tp.TI32), M(RBP, -4, tp.TI32))
	e.Sub(R(XMM8, tp.TF64), R(XMM9, tp.TF64))
	e.Mul(R(XMM8, tp.TF32), R(XMM9, tp.TF32))
	e.Mul(R(EBX, tp.TI32), Imm(4, tp.TI32))

	r, ok := e.Regs().Alloc(tp.TU64)
	require.True(t, ok)
	e.Add(R(r, tp.TU64), Imm(1<<33, tp.TU64))
	e.Regs().Free(r)

	assert.Equal(t, []string{
		"\tadd ebx, dword [rbp-4]",
		"\tsubsd xmm8, xmm9",
		"\tmulss xmm8, xmm9",
		"\timul ebx, 4",
		"\tmov rcx, 8589934592",
		"\tadd rbx, rcx",
	}, textLines(e))

	assert.Panics(t, func() { e.Xor(R(XMM8, tp.TF64), R(XMM9, tp.TF64)) })
}

func TestDiv(t *testing.T) {
	e := NewEmitter()

	dst := R(EBX, tp.TI32)
	e.Regs().Force(EBX)

	e.Div(dst, M(RBP, -4, tp.TI32), false)
	e.Div(dst, R(ECX, tp.TI32), true)

	u := R(RBX, tp.TU64)
	e.Div(u, R(RCX, tp.TU64), false)

	e.Regs().Free(EBX)

	assert.Equal(t, []string{
		"\tmov eax, ebx",
		"\tcdq",
		"\tidiv dword [rbp-4]",
		"\tmov ebx, eax",
		"\tmov eax, ebx",
		"\tcdq",
		"\tidiv ecx",
		"\tmov ebx, edx",
		"\tmov rax, rbx",
		"\txor edx, edx",
		"\tdiv rcx",
		"\tmov rbx, rax",
	}, textLines(e))

	assert.NoError(t, e.Regs().CheckLeaks())
}

func TestDivByte(t *testing.T) {
	e := NewEmitter()

	e.Div(R(BH, tp.TU8), R(BL, tp.TU8), true)
	e.Div(R(CL, tp.TI8), Imm(3, tp.TI8), false)

	assert.Equal(t, []string{
		"\tmov al, bh",
		"\tmovzx ax, al",
		"\tdiv bl",
		"\tmov al, ah",
		"\tmov bh, al",
		"\tmov bl, 3",
		"\tmov al, cl",
		"\tcbw",
		"\tidiv bl",
		"\tmov cl, al",
	}, textLines(e))

	assert.NoError(t, e.Regs().CheckLeaks())
}

func TestDivRelocatesRDX(t *testing.T) {
	e := NewEmitter()
	a := e.Regs()

	a.Force(EDX)
	e.Div(R(EDX, tp.TU32), R(ECX, tp.TU32), false)
	a.Free(EDX)

	assert.Equal(t, []string{
		"\tmov ebx, edx",
		"\tpush rdx",
		"\tmov eax, ebx",
		"\txor edx, edx",
		"\tdiv ecx",
		"\tmov ebx, eax",
		"\tpop rdx",
		"\tmov edx, ebx",
	}, textLines(e))

	assert.NoError(t, a.CheckLeaks())
}

func TestDivByteScarceRegisters(t *testing.T) {
	for _, rem := range []bool{false, true} {
		e := NewEmitter()
		a := e.Regs()

		e.Func("f")

		busy := []Reg{BL, CL, CH, DL, DH}
		for _, r := range busy {
			a.Force(r)
		}

		e.Div(R(DL, tp.TU8), R(DH, tp.TU8), rem)

		for i := len(busy) - 1; i >= 0; i-- {
			a.Free(busy[i])
		}

		e.Ret()

		assert.Equal(t, []string{
			"f:",
			"\tpush rbx",
			"\tmov bl, dl",
			"\tpush rcx",
			"\tmov cl, dh",
			"\tmov al, bl",
			"\tmovzx ax, al",
			"\tdiv cl",
		}, textLines(e)[:8])

		assert.NoError(t, a.CheckLeaks())

		m := x86sim.New()
		m.Set("rbx", 0x1111)
		m.Set("rcx", 0x2222)
		m.Set("dl", 200)
		m.Set("dh", 7)

		err := m.Run(string(e.Text()), "f")
		require.NoError(t, err)

		want := uint64(200 / 7)
		if rem {
			want = 200 % 7
		}

		assert.Equal(t, want, m.Get("dl"), "rem %v", rem)
		assert.Equal(t, uint64(7), m.Get("dh"))
		assert.Equal(t, uint64(0x1111), m.Get("rbx"))
		assert.Equal(t, uint64(0x2222), m.Get("rcx"))
	}
}

func TestDivExhaustedPool(t *testing.T) {
	e := NewEmitter()
	a := e.Regs()

	e.Func("f")

	var held []Reg

	for {
		r, ok := a.Alloc(tp.TU32)
		if !ok {
			break
		}

		held = append(held, r)
	}

	// dividend in edx, divisor in ebx, every pool register busy
	e.Div(R(EDX, tp.TU32), R(EBX, tp.TU32), false)

	for i := len(held) - 1; i >= 0; i-- {
		a.Free(held[i])
	}

	e.Ret()

	assert.NoError(t, a.CheckLeaks())

	m := x86sim.New()
	m.Set("rbx", 9)
	m.Set("rdx", 1000)
	m.Set("rcx", 0x3333)

	err := m.Run(string(e.Text()), "f")
	require.NoError(t, err)

	assert.Equal(t, uint64(111), m.Get("edx"))
	assert.Equal(t, uint64(9), m.Get("rbx"))
	assert.Equal(t, uint64(0x3333), m.Get("rcx"))
}

func TestShift(t *testing.T) {
	e := NewEmitter()

	e.Shl(R(EBX, tp.TI32), Imm(3, tp.TI32))
	e.Shr(R(EBX, tp.TI32), M(RBP, -4, tp.TI32))
	e.Shr(R(EBX, tp.TU32), R(ECX, tp.TU32))

	assert.Equal(t, []string{
		"\tshl ebx, 3",
		"\tmov cl, byte [rbp-4]",
		"\tsar ebx, cl",
		"\tshr ebx, cl",
	}, textLines(e))

	assert.NoError(t, e.Regs().CheckLeaks())
}

func TestCompare(t *testing.T) {
	e := NewEmitter()

	b := R(BL, tp.Bool)

	e.Compare(b, R(ECX, tp.TI32), Imm(1, tp.TI32), CondL)
	e.Compare(b, R(ECX, tp.TU32), Imm(1, tp.TU32), CondL)
	e.Compare(b, R(RCX, tp.PointerTo(tp.TI32)), R(RDX, tp.PointerTo(tp.TI32)), CondGE)
	e.Compare(b, R(XMM8, tp.TF64), R(XMM9, tp.TF64), CondG)
	e.Compare(b, R(ECX, tp.TI32), R(EDX, tp.TI32), CondE)

	assert.Equal(t, []string{
		"\tcmp ecx, 1",
		"\tsetl bl",
		"\tcmp ecx, 1",
		"\tsetb bl",
		"\tcmp rcx, rdx",
		"\tsetae bl",
		"\tucomisd xmm8, xmm9",
		"\tseta bl",
		"\tcmp ecx, edx",
		"\tsete bl",
	}, textLines(e))
}

func TestHigh8Staging(t *testing.T) {
	e := NewEmitter()
	a := e.Regs()

	a.Force(BL)

	e.Mov(R(SIL, tp.TU8), R(BH, tp.TU8))
	e.Add(R(BH, tp.TU8), R(R8B, tp.TU8))
	e.Movzx(R(RDI, tp.TU64), R(CH, tp.TU8))

	a.Free(BL)

	assert.Equal(t, []string{
		"\tmov cl, bh",
		"\tmov sil, cl",
		"\tmov cl, bh",
		"\tadd cl, r8b",
		"\tmov bh, cl",
		"\tmov dl, ch",
		"\tmovzx rdi, dl",
	}, textLines(e))

	assert.NoError(t, a.CheckLeaks())
}

func TestPushPopDepth(t *testing.T) {
	e := NewEmitter()

	e.Func("f")
	e.Prologue(16)
	e.Push(R(RBX, tp.TU64))
	e.Reserve(24)
	assert.Equal(t, 32, e.Depth())
	e.Release(24)
	e.Pop(R(RBX, tp.TU64))
	assert.Equal(t, 0, e.Depth())
	e.Epilogue()

	assert.Equal(t, []string{
		"f:",
		"\tpush rbp",
		"\tmov rbp, rsp",
		"\tsub rsp, 16",
		"\tpush rbx",
		"\tsub rsp, 24",
		"\tadd rsp, 24",
		"\tpop rbx",
		"\tmov rsp, rbp",
		"\tpop rbp",
		"\tret",
	}, textLines(e))
}

func TestFinishFuncSavesCalleeSaved(t *testing.T) {
	e := NewEmitter()
	a := e.Regs()

	e.Func("f")
	e.Prologue(16)

	a.Force(EBX)
	a.Force(R12D)
	e.Mov(R(EBX, tp.TI32), Imm(1, tp.TI32))
	e.Mov(R(R12D, tp.TI32), Imm(2, tp.TI32))
	e.Mov(R(EAX, tp.TI32), R(EBX, tp.TI32))
	e.Add(R(EAX, tp.TI32), R(R12D, tp.TI32))
	a.Free(R12D)
	a.Free(EBX)

	e.Epilogue()
	e.FinishFunc(32)

	assert.Equal(t, []string{
		"f:",
		"\tpush rbp",
		"\tmov rbp, rsp",
		"\tsub rsp, 16",
		"\tsub rsp, 16",
		"\tpush rbx",
		"\tpush r12",
		"\tmov ebx, 1",
		"\tmov r12d, 2",
		"\tmov eax, ebx",
		"\tadd eax, r12d",
		"\tlea rsp, [rbp-48]",
		"\tpop r12",
		"\tpop rbx",
		"\tmov rsp, rbp",
		"\tpop rbp",
		"\tret",
	}, textLines(e))

	m := x86sim.New()
	m.Set("rbx", 0x1234)
	m.Set("r12", 0x5678)
	m.Set("rbp", 0x9abc)

	err := m.Run(string(e.Text()), "f")
	require.NoError(t, err)

	assert.Equal(t, uint64(3), m.Get("eax"))
	assert.Equal(t, uint64(0x1234), m.Get("rbx"))
	assert.Equal(t, uint64(0x5678), m.Get("r12"))
	assert.Equal(t, uint64(0x9abc), m.Get("rbp"))
}

func TestFinishFuncPadsOddSaves(t *testing.T) {
	e := NewEmitter()
	a := e.Regs()

	e.Func("f")
	e.Prologue(0)

	r, ok := a.Alloc(tp.TI64)
	require.True(t, ok)
	assert.Equal(t, RBX, r)
	a.Free(r)

	e.Epilogue()
	e.FinishFunc(0)

	assert.Equal(t, []string{
		"f:",
		"\tpush rbp",
		"\tmov rbp, rsp",
		"\tpush rbx",
		"\tsub rsp, 8",
		"\tlea rsp, [rbp-8]",
		"\tpop rbx",
		"\tmov rsp, rbp",
		"\tpop rbp",
		"\tret",
	}, textLines(e))

	// caller-saved registers need no saving
	e.Func("g")
	e.Prologue(0)

	a.Force(ECX)
	a.Free(ECX)

	e.Epilogue()
	e.FinishFunc(0)

	assert.NotContains(t, string(e.Text()), "g:\n\tpush rbp\n\tmov rbp, rsp\n\tpush")
}

func TestSegments(t *testing.T) {
	e := NewEmitter()

	e.Global("main")
	e.Extern("puts")
	e.Func("main")
	l := e.NewLabel()
	e.Label(l)
	e.Jcc(CondZ, e.NewLabel())
	e.Call("puts")

	assert.Equal(t, "global main\nextern puts\n\nsegment .data\n\nsegment .text\nmain:\nLT0:\n\tjz LT1\n\tcall puts\n", string(e.Bytes()))
}
