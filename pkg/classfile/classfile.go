// Package classfile reads the structural parts of JVM class files without loading them.
//
// Two entry points exist:
//
//   - ParseSignature reads the header only: magic, version, constant pool, access flags,
//     this/super class and the declared interfaces. Fields, methods and attributes are
//     never touched.
//   - Parse additionally reads the field and method tables, retaining the raw Code
//     attribute of each method so that constant pushes can be inspected with
//     (*Class).Constants. Other attributes are skipped by their declared length.
//
// Every declared length is checked against the remaining input before it is used, so a
// truncated or hostile file fails with ErrMalformedClass instead of hanging or panicking.
package classfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var classfileLog = logger.New("classfile:reader")

// Magic is the four byte marker that starts every class file.
const Magic uint32 = 0xCAFEBABE

// Access flags relevant for structural checks.
const (
	AccPublic    uint16 = 0x0001
	AccFinal     uint16 = 0x0010
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
)

var (
	// ErrMalformedClass is returned for any structurally invalid class file.
	ErrMalformedClass = errors.New("malformed class file")

	// ErrTruncated is wrapped by ErrMalformedClass when the input ends early.
	ErrTruncated = errors.New("unexpected end of class data")
)

// Signature is the supertype view of a class: who it is, what it extends and
// which interfaces it declares directly. Names use the dotted Java form.
type Signature struct {
	Name         string
	SuperName    string
	Interfaces   []string
	AccessFlags  uint16
	MajorVersion uint16
	MinorVersion uint16
}

// IsRoot reports whether the class declares no superclass (java.lang.Object and module-info).
func (s *Signature) IsRoot() bool {
	return s.SuperName == ""
}

// IsInterface reports whether the class is an interface.
func (s *Signature) IsInterface() bool {
	return s.AccessFlags&AccInterface != 0
}

// IsAbstract reports whether the class is abstract. Interfaces are always abstract.
func (s *Signature) IsAbstract() bool {
	return s.AccessFlags&AccAbstract != 0
}

// IsPublic reports whether the class is public.
func (s *Signature) IsPublic() bool {
	return s.AccessFlags&AccPublic != 0
}

// Member is a field or method entry.
type Member struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	// Code holds the bytecode of a method's Code attribute; nil for fields,
	// abstract and native methods.
	Code []byte
}

// IsPublic reports whether the member is public.
func (m *Member) IsPublic() bool {
	return m.AccessFlags&AccPublic != 0
}

// HasNoParameters reports whether a method descriptor takes no arguments.
func (m *Member) HasNoParameters() bool {
	return strings.HasPrefix(m.Descriptor, "()")
}

// Class is a parsed class file including its member tables.
type Class struct {
	Signature
	Fields  []Member
	Methods []Member

	pool constantPool
}

// Method returns the first method with the given name.
func (c *Class) Method(name string) (*Member, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// NoArgMethod returns the method with the given name that takes no parameters.
func (c *Class) NoArgMethod(name string) (*Member, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].HasNoParameters() {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// ParseSignature reads only the class header.
func ParseSignature(data []byte) (*Signature, error) {
	r := &reader{buf: data}
	sig, _, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	classfileLog.Printf("Parsed signature: class=%s super=%s interfaces=%d", sig.Name, sig.SuperName, len(sig.Interfaces))
	return sig, nil
}

// Parse reads the header plus the field and method tables.
func Parse(data []byte) (*Class, error) {
	r := &reader{buf: data}
	sig, pool, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	c := &Class{Signature: *sig, pool: pool}
	if c.Fields, err = parseMembers(r, pool, false); err != nil {
		return nil, fmt.Errorf("%w: fields of %s: %w", ErrMalformedClass, sig.Name, err)
	}
	if c.Methods, err = parseMembers(r, pool, true); err != nil {
		return nil, fmt.Errorf("%w: methods of %s: %w", ErrMalformedClass, sig.Name, err)
	}
	classfileLog.Printf("Parsed class: class=%s fields=%d methods=%d", c.Name, len(c.Fields), len(c.Methods))
	return c, nil
}

func parseHeader(r *reader) (*Signature, constantPool, error) {
	magic, err := r.u4()
	if err != nil {
		return nil, nil, malformed(err)
	}
	if magic != Magic {
		return nil, nil, fmt.Errorf("%w: bad magic 0x%08X", ErrMalformedClass, magic)
	}

	sig := &Signature{}
	if sig.MinorVersion, err = r.u2(); err != nil {
		return nil, nil, malformed(err)
	}
	if sig.MajorVersion, err = r.u2(); err != nil {
		return nil, nil, malformed(err)
	}

	pool, err := parseConstantPool(r)
	if err != nil {
		return nil, nil, malformed(err)
	}

	if sig.AccessFlags, err = r.u2(); err != nil {
		return nil, nil, malformed(err)
	}

	thisIndex, err := r.u2()
	if err != nil {
		return nil, nil, malformed(err)
	}
	if sig.Name, err = pool.className(thisIndex); err != nil {
		return nil, nil, fmt.Errorf("%w: this_class: %w", ErrMalformedClass, err)
	}

	superIndex, err := r.u2()
	if err != nil {
		return nil, nil, malformed(err)
	}
	if superIndex != 0 {
		if sig.SuperName, err = pool.className(superIndex); err != nil {
			return nil, nil, fmt.Errorf("%w: super_class: %w", ErrMalformedClass, err)
		}
	}

	count, err := r.u2()
	if err != nil {
		return nil, nil, malformed(err)
	}
	// Each interface index takes two bytes.
	if int(count)*2 > r.remaining() {
		return nil, nil, fmt.Errorf("%w: %d interfaces declared, %d bytes left", ErrMalformedClass, count, r.remaining())
	}
	sig.Interfaces = make([]string, 0, count)
	for range count {
		idx, _ := r.u2()
		name, err := pool.className(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: interface: %w", ErrMalformedClass, err)
		}
		sig.Interfaces = append(sig.Interfaces, name)
	}
	return sig, pool, nil
}

func parseMembers(r *reader, pool constantPool, keepCode bool) ([]Member, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	// A member entry is at least eight bytes.
	if int(count)*8 > r.remaining() {
		return nil, fmt.Errorf("%d members declared, %d bytes left", count, r.remaining())
	}

	members := make([]Member, 0, count)
	for range count {
		var m Member
		if m.AccessFlags, err = r.u2(); err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		if m.Name, err = pool.utf8(nameIdx); err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		if m.Descriptor, err = pool.utf8(descIdx); err != nil {
			return nil, err
		}
		if m.Code, err = parseAttributes(r, pool, keepCode); err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		members = append(members, m)
	}
	return members, nil
}

// parseAttributes skips an attribute table, returning the bytecode of a Code
// attribute when keepCode is set.
func parseAttributes(r *reader, pool constantPool, keepCode bool) ([]byte, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	var code []byte
	for range count {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		length, err := r.u4()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int64(length))
		if err != nil {
			return nil, err
		}
		if !keepCode || code != nil {
			continue
		}
		if name, err := pool.utf8(nameIdx); err == nil && name == "Code" {
			if code, err = codeBytes(body); err != nil {
				return nil, fmt.Errorf("code attribute: %w", err)
			}
		}
	}
	return code, nil
}

// codeBytes extracts the instruction array from a Code attribute body.
func codeBytes(body []byte) ([]byte, error) {
	r := &reader{buf: body}
	// max_stack, max_locals
	if _, err := r.bytes(4); err != nil {
		return nil, err
	}
	length, err := r.u4()
	if err != nil {
		return nil, err
	}
	return r.bytes(int64(length))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedClass, err)
}

// InternalToDotted converts "a/b/C" to "a.b.C".
func InternalToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// EntryName returns the archive entry path of a dotted class name.
func EntryName(className string) string {
	return strings.ReplaceAll(className, ".", "/") + ".class"
}
