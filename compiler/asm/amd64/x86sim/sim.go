// Package x86sim interprets the integer subset of the NASM text the
// amd64 emitter produces. It is used by tests to check the values
// generated code computes, not only its text.
package x86sim

import (
	"math/bits"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

type (
	Machine struct {
		R [16]uint64

		mem map[uint64]byte

		zf, sf, cf, of bool

		// Steps bounds the number of executed instructions.
		Steps int
	}

	view struct {
		reg  int
		size int
		high bool
	}

	operand struct {
		kind byte // 'r', 'm', 'i'

		view view

		base int
		disp int64
		size int

		imm uint64
	}

	insn struct {
		mn   string
		args []string
		line int
	}
)

const (
	rsp = 6
	rbp = 7

	stackTop = 0x100000
	retMark  = 0xdead_beef_0000
)

var views = map[string]view{}

func init() {
	// register numbers follow amd64.Bank order: rax rbx rcx rdx rsi rdi rsp rbp r8..r15
	for reg, n := range []string{"a", "b", "c", "d"} {
		views["r"+n+"x"] = view{reg: reg, size: 8}
		views["e"+n+"x"] = view{reg: reg, size: 4}
		views[n+"x"] = view{reg: reg, size: 2}
		views[n+"l"] = view{reg: reg, size: 1}
		views[n+"h"] = view{reg: reg, size: 1, high: true}
	}

	for i, n := range []string{"si", "di", "sp", "bp"} {
		reg := 4 + i

		views["r"+n] = view{reg: reg, size: 8}
		views["e"+n] = view{reg: reg, size: 4}
		views[n] = view{reg: reg, size: 2}
		views[n+"l"] = view{reg: reg, size: 1}
	}

	for reg := 8; reg < 16; reg++ {
		n := "r" + strconv.Itoa(reg)

		views[n] = view{reg: reg, size: 8}
		views[n+"d"] = view{reg: reg, size: 4}
		views[n+"w"] = view{reg: reg, size: 2}
		views[n+"b"] = view{reg: reg, size: 1}
	}
}

func New() *Machine {
	return &Machine{
		mem:   map[uint64]byte{},
		Steps: 100000,
	}
}

// Set writes a register view by name.
func (m *Machine) Set(name string, v uint64) {
	vw, ok := views[name]
	if !ok {
		panic(name)
	}

	m.setReg(vw, v)
}

// Get reads a register view by name, zero extended.
func (m *Machine) Get(name string) uint64 {
	vw, ok := views[name]
	if !ok {
		panic(name)
	}

	return m.getReg(vw)
}

// Run executes text from the label entry until it returns to the caller.
func (m *Machine) Run(text, entry string) (err error) {
	var prog []insn
	labels := map[string]int{}

	for i, l := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(l, "\t"):
			mn, rest, _ := strings.Cut(strings.TrimSpace(l), " ")

			var args []string
			if rest != "" {
				args = strings.Split(rest, ", ")
			}

			prog = append(prog, insn{mn: mn, args: args, line: i + 1})
		case strings.HasSuffix(l, ":"):
			labels[strings.TrimSuffix(l, ":")] = len(prog)
		}
	}

	pc, ok := labels[entry]
	if !ok {
		return errors.New("no label %v", entry)
	}

	m.R[rsp] = stackTop
	m.push(retMark)

	for step := 0; ; step++ {
		if step == m.Steps {
			return errors.New("step limit exceeded")
		}

		if pc >= len(prog) {
			return errors.New("ran off the end of text")
		}

		in := prog[pc]
		pc++

		next, done, err := m.exec(in, labels)
		if err != nil {
			return errors.Wrap(err, "line %d: %v %v", in.line, in.mn, strings.Join(in.args, ", "))
		}

		if done {
			return nil
		}

		if next >= 0 {
			pc = next
		}
	}
}

func (m *Machine) exec(in insn, labels map[string]int) (next int, done bool, err error) {
	next = -1

	jump := func(cond bool) (int, bool, error) {
		if !cond {
			return -1, false, nil
		}

		to, ok := labels[in.args[0]]
		if !ok {
			return 0, false, errors.New("no label %v", in.args[0])
		}

		return to, false, nil
	}

	switch {
	case in.mn == "jmp":
		return jump(true)
	case strings.HasPrefix(in.mn, "j"):
		c, err := m.cond(in.mn[1:])
		if err != nil {
			return 0, false, err
		}

		return jump(c)
	case in.mn == "ret":
		if m.pop() == retMark {
			return 0, true, nil
		}

		return 0, false, errors.New("return to unknown address")
	}

	ops := make([]operand, len(in.args))

	for i, a := range in.args {
		ops[i], err = parseOperand(a)
		if err != nil {
			return 0, false, err
		}
	}

	want := map[string]int{
		"cbw": 0, "cwd": 0, "cdq": 0, "cqo": 0, "cdqe": 0,
		"push": 1, "pop": 1, "neg": 1, "not": 1, "mul": 1, "div": 1, "idiv": 1,
		"mov": 2, "movzx": 2, "movsx": 2, "movsxd": 2, "lea": 2,
		"add": 2, "sub": 2, "and": 2, "or": 2, "xor": 2, "cmp": 2, "test": 2,
		"shl": 2, "shr": 2, "sar": 2,
	}

	if n, ok := want[in.mn]; ok && n != len(ops) {
		return 0, false, errors.New("want %d operands", n)
	}

	switch in.mn {
	case "mov", "movzx":
		m.write(ops[0], m.read(ops[1]))
	case "movsx", "movsxd":
		m.write(ops[0], sext(m.read(ops[1]), ops[1].width()))
	case "cdqe":
		m.R[0] = sext(m.R[0], 4)
	case "lea":
		if ops[1].kind != 'm' {
			return 0, false, errors.New("lea of %v", in.args[1])
		}

		m.write(ops[0], m.addr(ops[1]))
	case "push":
		m.push(m.read(ops[0]))
	case "pop":
		m.write(ops[0], m.pop())
	case "add", "sub", "cmp":
		m.arith(in.mn, ops[0], ops[1])
	case "and", "or", "xor", "test":
		m.logic(in.mn, ops[0], ops[1])
	case "neg":
		n := ops[0].width()
		x := m.read(ops[0])
		r := trunc(-x, n)
		m.write(ops[0], r)
		m.flags(r, n)
		m.cf = x != 0
	case "not":
		m.write(ops[0], ^m.read(ops[0]))
	case "shl", "shr", "sar":
		m.shift(in.mn, ops[0], ops[1])
	case "imul":
		switch len(ops) {
		case 1:
			return next, false, m.accumulate("imul", ops[0])
		case 2:
			m.write(ops[0], m.read(ops[0])*m.read(ops[1]))
		default:
			return 0, false, errors.New("imul with %d operands", len(ops))
		}
	case "mul", "div", "idiv":
		return next, false, m.accumulate(in.mn, ops[0])
	case "cbw":
		m.Set("ax", sext(m.Get("al"), 1))
	case "cwd":
		m.Set("dx", signFill(m.Get("ax"), 2))
	case "cdq":
		m.Set("edx", signFill(m.Get("eax"), 4))
	case "cqo":
		m.Set("rdx", signFill(m.Get("rax"), 8))
	default:
		if !strings.HasPrefix(in.mn, "set") || len(ops) != 1 {
			return 0, false, errors.New("unsupported instruction")
		}

		c, err := m.cond(in.mn[3:])
		if err != nil {
			return 0, false, err
		}

		var v uint64
		if c {
			v = 1
		}

		m.write(ops[0], v)
	}

	return next, false, nil
}

func (m *Machine) arith(mn string, d, s operand) {
	n := d.width()
	a, b := m.read(d), trunc(m.read(s), n)

	var r uint64

	if mn == "add" {
		r = trunc(a+b, n)
		m.cf = r < a
		m.of = sign(a, n) == sign(b, n) && sign(r, n) != sign(a, n)
	} else {
		r = trunc(a-b, n)
		m.cf = a < b
		m.of = sign(a, n) != sign(b, n) && sign(r, n) != sign(a, n)
	}

	m.zf = r == 0
	m.sf = sign(r, n)

	if mn != "cmp" {
		m.write(d, r)
	}
}

func (m *Machine) logic(mn string, d, s operand) {
	a, b := m.read(d), m.read(s)

	var r uint64

	switch mn {
	case "and", "test":
		r = a & b
	case "or":
		r = a | b
	case "xor":
		r = a ^ b
	}

	m.flags(r, d.width())
	m.cf, m.of = false, false

	if mn != "test" {
		m.write(d, r)
	}
}

func (m *Machine) shift(mn string, d, s operand) {
	n := d.width()
	x := m.read(d)

	mask := uint64(31)
	if n == 8 {
		mask = 63
	}

	c := m.read(s) & mask

	var r uint64

	switch mn {
	case "shl":
		r = x << c
	case "shr":
		r = x >> c
	case "sar":
		r = uint64(int64(sext(x, n)) >> c)
	}

	r = trunc(r, n)

	m.write(d, r)
	m.flags(r, n)
}

// accumulate runs one operand mul, imul, div and idiv on the rax:rdx pair.
func (m *Machine) accumulate(mn string, s operand) error {
	n := s.width()
	src := m.read(s)

	if n == 1 {
		switch mn {
		case "mul":
			m.Set("ax", m.Get("al")*src)
		case "imul":
			m.Set("ax", uint64(int64(sext(m.Get("al"), 1))*int64(sext(src, 1))))
		case "div", "idiv":
			if src == 0 {
				return errors.New("division by zero")
			}

			ax := m.Get("ax")

			var q, r uint64

			if mn == "div" {
				q, r = ax/src, ax%src
				if q > 0xff {
					return errors.New("quotient overflow")
				}
			} else {
				x, y := int64(sext(ax, 2)), int64(sext(src, 1))
				if x/y < -128 || x/y > 127 {
					return errors.New("quotient overflow")
				}

				q, r = uint64(x/y), uint64(x%y)
			}

			m.Set("al", q)
			m.Set("ah", r)
		}

		return nil
	}

	a := view{reg: 0, size: n}
	d := view{reg: 3, size: n}

	lo := m.getReg(a)
	hi := m.getReg(d)

	switch mn {
	case "mul":
		h, l := bits.Mul64(lo, src)
		if n < 8 {
			h = (l >> (8 * n)) & mask(n)
		}

		m.setReg(a, trunc(l, n))
		m.setReg(d, trunc(h, n))
	case "imul":
		r := int64(sext(lo, n)) * int64(sext(src, n))
		if n == 8 {
			h, l := bits.Mul64(lo, src)
			if int64(lo) < 0 {
				h -= src
			}

			if int64(src) < 0 {
				h -= lo
			}

			m.setReg(a, l)
			m.setReg(d, h)

			return nil
		}

		m.setReg(a, trunc(uint64(r), n))
		m.setReg(d, trunc(uint64(r)>>(8*n), n))
	case "div":
		if src == 0 {
			return errors.New("division by zero")
		}

		if hi >= src {
			return errors.New("quotient overflow")
		}

		var q, r uint64

		if n == 8 {
			q, r = bits.Div64(hi, lo, src)
		} else {
			x := hi<<(8*n) | lo
			q, r = x/src, x%src
		}

		m.setReg(a, q)
		m.setReg(d, r)
	case "idiv":
		if src == 0 {
			return errors.New("division by zero")
		}

		if hi != signFill(lo, n) {
			return errors.New("idiv dividend wider than %d bytes", n)
		}

		x, y := int64(sext(lo, n)), int64(sext(src, n))

		m.setReg(a, trunc(uint64(x/y), n))
		m.setReg(d, trunc(uint64(x%y), n))
	}

	return nil
}

func (m *Machine) cond(c string) (bool, error) {
	switch c {
	case "e", "z":
		return m.zf, nil
	case "ne", "nz":
		return !m.zf, nil
	case "l":
		return m.sf != m.of, nil
	case "le":
		return m.zf || m.sf != m.of, nil
	case "g":
		return !m.zf && m.sf == m.of, nil
	case "ge":
		return m.sf == m.of, nil
	case "b":
		return m.cf, nil
	case "be":
		return m.cf || m.zf, nil
	case "a":
		return !m.cf && !m.zf, nil
	case "ae":
		return !m.cf, nil
	case "s":
		return m.sf, nil
	case "ns":
		return !m.sf, nil
	}

	return false, errors.New("unsupported condition %v", c)
}

func (m *Machine) flags(r uint64, n int) {
	m.zf = trunc(r, n) == 0
	m.sf = sign(r, n)
}

func (m *Machine) read(o operand) uint64 {
	switch o.kind {
	case 'r':
		return m.getReg(o.view)
	case 'm':
		a := m.addr(o)

		var v uint64
		for i := o.size - 1; i >= 0; i-- {
			v = v<<8 | uint64(m.mem[a+uint64(i)])
		}

		return v
	}

	return o.imm
}

func (m *Machine) write(o operand, v uint64) {
	switch o.kind {
	case 'r':
		m.setReg(o.view, v)
	case 'm':
		a := m.addr(o)

		for i := 0; i < o.size; i++ {
			m.mem[a+uint64(i)] = byte(v >> (8 * i))
		}
	default:
		panic("write to immediate")
	}
}

func (m *Machine) addr(o operand) uint64 {
	return m.R[o.base] + uint64(o.disp)
}

func (m *Machine) push(v uint64) {
	m.R[rsp] -= 8
	m.write(operand{kind: 'm', base: rsp, size: 8}, v)
}

func (m *Machine) pop() uint64 {
	v := m.read(operand{kind: 'm', base: rsp, size: 8})
	m.R[rsp] += 8

	return v
}

func (m *Machine) getReg(v view) uint64 {
	x := m.R[v.reg]

	if v.high {
		return x >> 8 & 0xff
	}

	return trunc(x, v.size)
}

func (m *Machine) setReg(v view, x uint64) {
	r := &m.R[v.reg]

	switch {
	case v.high:
		*r = *r&^0xff00 | (x&0xff)<<8
	case v.size == 8:
		*r = x
	case v.size == 4:
		*r = x & 0xffff_ffff
	default:
		*r = *r&^mask(v.size) | x&mask(v.size)
	}
}

func parseOperand(s string) (o operand, err error) {
	if v, ok := views[s]; ok {
		return operand{kind: 'r', view: v}, nil
	}

	size := 0

	for i, kw := range []string{"byte ", "word ", "dword ", "qword "} {
		if strings.HasPrefix(s, kw) {
			size = 1 << i
			s = s[len(kw):]

			break
		}
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		e := s[1 : len(s)-1]

		i := strings.IndexAny(e, "+-")
		if i < 0 {
			i = len(e)
		}

		v, ok := views[e[:i]]
		if !ok || v.size != 8 {
			return o, errors.New("unsupported address %v", s)
		}

		o = operand{kind: 'm', base: v.reg, size: size}

		if i < len(e) {
			o.disp, err = strconv.ParseInt(e[i:], 10, 64)
			if err != nil {
				return o, errors.Wrap(err, "displacement")
			}
		}

		return o, nil
	}

	if size != 0 {
		return o, errors.New("unsupported operand %v", s)
	}

	if x, err := strconv.ParseInt(s, 10, 64); err == nil {
		return operand{kind: 'i', imm: uint64(x)}, nil
	}

	x, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return o, errors.New("unsupported operand %v", s)
	}

	return operand{kind: 'i', imm: x}, nil
}

func (o operand) width() int {
	switch o.kind {
	case 'r':
		return o.view.size
	case 'm':
		return o.size
	}

	return 8
}

func mask(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}

	return 1<<(8*n) - 1
}

func trunc(x uint64, n int) uint64 { return x & mask(n) }

func sign(x uint64, n int) bool { return x>>(8*n-1)&1 != 0 }

func sext(x uint64, n int) uint64 {
	if n >= 8 {
		return x
	}

	if sign(x, n) {
		return x | ^mask(n)
	}

	return trunc(x, n)
}

func signFill(x uint64, n int) uint64 {
	if sign(x, n) {
		return mask(n)
	}

	return 0
}
