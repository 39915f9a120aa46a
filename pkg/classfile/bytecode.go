package classfile

import (
	"encoding/binary"
	"fmt"
)

// ConstantKind distinguishes the constant pushes reported by Constants.
type ConstantKind int

const (
	StringConstant ConstantKind = iota + 1
	IntConstant
)

// Constant is a value pushed onto the operand stack by a method.
type Constant struct {
	Kind ConstantKind
	Str  string
	Int  int64
}

func (c Constant) String() string {
	if c.Kind == StringConstant {
		return fmt.Sprintf("%q", c.Str)
	}
	return fmt.Sprintf("%d", c.Int)
}

const (
	opIconstM1     = 0x02
	opIconst5      = 0x08
	opBipush       = 0x10
	opSipush       = 0x11
	opLdc          = 0x12
	opLdcW         = 0x13
	opLdc2W        = 0x14
	opIinc         = 0x84
	opTableswitch  = 0xaa
	opLookupswitch = 0xab
	opWide         = 0xc4
)

// opcodeLength holds the fixed length of every defined opcode including the
// opcode byte itself. Zero marks opcodes that are variable length or undefined.
var opcodeLength = buildOpcodeLengths()

func buildOpcodeLengths() [256]uint8 {
	var t [256]uint8
	set := func(from, to int, n uint8) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 1) // nop .. dconst_1
	t[0x10] = 2        // bipush
	t[0x11] = 3        // sipush
	t[0x12] = 2        // ldc
	set(0x13, 0x14, 3) // ldc_w, ldc2_w
	set(0x15, 0x19, 2) // iload .. aload
	set(0x1a, 0x35, 1) // iload_0 .. saload
	set(0x36, 0x3a, 2) // istore .. astore
	set(0x3b, 0x83, 1) // istore_0 .. lxor
	t[0x84] = 3        // iinc
	set(0x85, 0x98, 1) // conversions and compares
	set(0x99, 0xa8, 3) // if*, goto, jsr
	t[0xa9] = 2        // ret
	set(0xac, 0xb1, 1) // returns
	set(0xb2, 0xb8, 3) // field access, invokevirtual/special/static
	t[0xb9] = 5        // invokeinterface
	t[0xba] = 5        // invokedynamic
	t[0xbb] = 3        // new
	t[0xbc] = 2        // newarray
	t[0xbd] = 3        // anewarray
	set(0xbe, 0xbf, 1) // arraylength, athrow
	set(0xc0, 0xc1, 3) // checkcast, instanceof
	set(0xc2, 0xc3, 1) // monitorenter, monitorexit
	t[0xc5] = 4        // multianewarray
	set(0xc6, 0xc7, 3) // ifnull, ifnonnull
	set(0xc8, 0xc9, 5) // goto_w, jsr_w
	t[0xca] = 1        // breakpoint
	return t
}

// Constants decodes m's bytecode and returns every string or integer constant
// it pushes, in instruction order: ldc/ldc_w/ldc2_w of String, Integer and Long
// entries, bipush, sipush and iconst_m1..iconst_5. The bytecode is decoded
// instruction by instruction so operands are never mistaken for opcodes.
func (c *Class) Constants(m *Member) ([]Constant, error) {
	if m == nil || len(m.Code) == 0 {
		return nil, nil
	}
	code := m.Code
	var out []Constant
	for pc := 0; pc < len(code); {
		op := code[pc]
		n, err := instructionLength(code, pc)
		if err != nil {
			return out, fmt.Errorf("%w: %s.%s at pc %d: %w", ErrMalformedClass, c.Name, m.Name, pc, err)
		}

		switch {
		case op >= opIconstM1 && op <= opIconst5:
			out = append(out, Constant{Kind: IntConstant, Int: int64(op) - 0x03})
		case op == opBipush:
			out = append(out, Constant{Kind: IntConstant, Int: int64(int8(code[pc+1]))})
		case op == opSipush:
			out = append(out, Constant{Kind: IntConstant, Int: int64(int16(binary.BigEndian.Uint16(code[pc+1:])))})
		case op == opLdc:
			if k, ok := c.pool.loadable(uint16(code[pc+1])); ok {
				out = append(out, k)
			}
		case op == opLdcW || op == opLdc2W:
			if k, ok := c.pool.loadable(binary.BigEndian.Uint16(code[pc+1:])); ok {
				out = append(out, k)
			}
		}
		pc += n
	}
	return out, nil
}

// StringConstants is Constants filtered to string values.
func (c *Class) StringConstants(m *Member) ([]string, error) {
	consts, err := c.Constants(m)
	var out []string
	for _, k := range consts {
		if k.Kind == StringConstant {
			out = append(out, k.Str)
		}
	}
	return out, err
}

// instructionLength returns the length of the instruction at pc, validated
// against the end of the code array.
func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	var n int
	switch op {
	case opTableswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, ErrTruncated
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("tableswitch high %d < low %d", high, low)
		}
		entries := int64(high) - int64(low) + 1
		total := int64(1+pad+12) + entries*4
		if int64(pc)+total > int64(len(code)) {
			return 0, ErrTruncated
		}
		n = int(total)
	case opLookupswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+8 > len(code) {
			return 0, ErrTruncated
		}
		pairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if pairs < 0 {
			return 0, fmt.Errorf("lookupswitch with %d pairs", pairs)
		}
		total := int64(1+pad+8) + int64(pairs)*8
		if int64(pc)+total > int64(len(code)) {
			return 0, ErrTruncated
		}
		n = int(total)
	case opWide:
		if pc+1 >= len(code) {
			return 0, ErrTruncated
		}
		n = 4
		if code[pc+1] == opIinc {
			n = 6
		}
	default:
		n = int(opcodeLength[op])
		if n == 0 {
			return 0, fmt.Errorf("undefined opcode 0x%02x", op)
		}
	}
	if pc+n > len(code) {
		return 0, ErrTruncated
	}
	return n, nil
}
