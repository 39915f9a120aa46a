// Package classfiletest builds small, valid class files for tests.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Class describes a class to build. Names use the dotted Java form.
type Class struct {
	Name       string
	Super      string // defaults to java.lang.Object
	Root       bool   // no superclass at all
	Interfaces []string
	Access     uint16 // defaults to ACC_PUBLIC|ACC_SUPER
	Methods    []Method
}

// Method describes a method whose body pushes Pushes in order and returns.
// Pushes holds string and int values.
type Method struct {
	Name       string
	Descriptor string // defaults to ()Ljava/lang/Object;
	Access     uint16 // defaults to ACC_PUBLIC
	Pushes     []any
	Abstract   bool // no Code attribute
}

// PublicConstructor is the implicit no-arg constructor javac emits.
func PublicConstructor() Method {
	return Method{Name: "<init>", Descriptor: "()V"}
}

// Getter is a no-arg method returning the given pushes.
func Getter(name string, pushes ...any) Method {
	return Method{Name: name, Pushes: pushes}
}

// Build serializes c as a class file.
func Build(c Class) []byte {
	p := newPool()
	thisIdx := p.class(c.Name)
	var superIdx uint16
	if !c.Root {
		super := c.Super
		if super == "" {
			super = "java.lang.Object"
		}
		superIdx = p.class(super)
	}
	ifaceIdx := make([]uint16, 0, len(c.Interfaces))
	for _, name := range c.Interfaces {
		ifaceIdx = append(ifaceIdx, p.class(name))
	}

	var methods bytes.Buffer
	codeName := p.utf8("Code")
	for _, m := range c.Methods {
		access := m.Access
		if access == 0 {
			access = 0x0001
		}
		desc := m.Descriptor
		if desc == "" {
			desc = "()Ljava/lang/Object;"
		}
		if m.Abstract {
			access |= 0x0400
		}
		u2(&methods, access)
		u2(&methods, p.utf8(m.Name))
		u2(&methods, p.utf8(desc))
		if m.Abstract {
			u2(&methods, 0)
			continue
		}
		code := assemble(p, m.Pushes)
		u2(&methods, 1)
		u2(&methods, codeName)
		u4(&methods, uint32(12+len(code)))
		u2(&methods, 8) // max_stack
		u2(&methods, 4) // max_locals
		u4(&methods, uint32(len(code)))
		methods.Write(code)
		u2(&methods, 0) // exception table
		u2(&methods, 0) // attributes
	}

	var out bytes.Buffer
	u4(&out, 0xCAFEBABE)
	u2(&out, 0)
	u2(&out, 61)
	p.write(&out)
	access := c.Access
	if access == 0 {
		access = 0x0021
	}
	u2(&out, access)
	u2(&out, thisIdx)
	u2(&out, superIdx)
	u2(&out, uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		u2(&out, idx)
	}
	u2(&out, 0) // fields
	u2(&out, uint16(len(c.Methods)))
	out.Write(methods.Bytes())
	u2(&out, 0) // class attributes
	return out.Bytes()
}

func assemble(p *pool, pushes []any) []byte {
	var code bytes.Buffer
	for _, v := range pushes {
		switch x := v.(type) {
		case string:
			code.WriteByte(0x13) // ldc_w
			u2(&code, p.str(x))
		case int:
			switch {
			case x >= -1 && x <= 5:
				code.WriteByte(byte(0x03 + x))
			case x >= -128 && x <= 127:
				code.WriteByte(0x10)
				code.WriteByte(byte(int8(x)))
			case x >= -32768 && x <= 32767:
				code.WriteByte(0x11)
				u2(&code, uint16(int16(x)))
			default:
				code.WriteByte(0x13)
				u2(&code, p.integer(int32(x)))
			}
		}
	}
	code.WriteByte(0xb0) // areturn
	return code.Bytes()
}

type pool struct {
	entries [][]byte
	utf8s   map[string]uint16
	classes map[string]uint16
	strings map[string]uint16
}

func newPool() *pool {
	return &pool{
		utf8s:   map[string]uint16{},
		classes: map[string]uint16{},
		strings: map[string]uint16{},
	}
}

func (p *pool) add(entry []byte) uint16 {
	p.entries = append(p.entries, entry)
	return uint16(len(p.entries))
}

func (p *pool) utf8(s string) uint16 {
	if idx, ok := p.utf8s[s]; ok {
		return idx
	}
	var b bytes.Buffer
	b.WriteByte(1)
	u2(&b, uint16(len(s)))
	b.WriteString(s)
	idx := p.add(b.Bytes())
	p.utf8s[s] = idx
	return idx
}

func (p *pool) class(dotted string) uint16 {
	if idx, ok := p.classes[dotted]; ok {
		return idx
	}
	nameIdx := p.utf8(strings.ReplaceAll(dotted, ".", "/"))
	var b bytes.Buffer
	b.WriteByte(7)
	u2(&b, nameIdx)
	idx := p.add(b.Bytes())
	p.classes[dotted] = idx
	return idx
}

func (p *pool) str(s string) uint16 {
	if idx, ok := p.strings[s]; ok {
		return idx
	}
	utf := p.utf8(s)
	var b bytes.Buffer
	b.WriteByte(8)
	u2(&b, utf)
	idx := p.add(b.Bytes())
	p.strings[s] = idx
	return idx
}

func (p *pool) integer(v int32) uint16 {
	var b bytes.Buffer
	b.WriteByte(3)
	u4(&b, uint32(v))
	return p.add(b.Bytes())
}

func (p *pool) write(w *bytes.Buffer) {
	u2(w, uint16(len(p.entries)+1))
	for _, e := range p.entries {
		w.Write(e)
	}
}

func u2(w *bytes.Buffer, v uint16) {
	_ = binary.Write(w, binary.BigEndian, v)
}

func u4(w *bytes.Buffer, v uint32) {
	_ = binary.Write(w, binary.BigEndian, v)
}
