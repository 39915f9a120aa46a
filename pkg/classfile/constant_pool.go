package classfile

import "fmt"

// Constant pool tags (JVMS §4.4).
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type constant struct {
	tag   uint8
	index uint16 // Class, String, MethodType, Module, Package
	str   string // Utf8
	value int64  // Integer, Long
}

// constantPool is indexed from 1; slot 0 and the second slot of
// Long/Double entries hold a zero constant.
type constantPool []constant

func parseConstantPool(r *reader) (constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant pool count is zero")
	}
	// Every entry is at least three bytes.
	if (int(count)-1)*3 > r.remaining() {
		return nil, fmt.Errorf("%w: constant pool of %d entries, %d bytes left", ErrTruncated, count, r.remaining())
	}

	pool := make(constantPool, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		c := constant{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int64(n))
			if err != nil {
				return nil, err
			}
			c.str = decodeModifiedUTF8(b)
		case tagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			c.value = int64(int32(v))
		case tagFloat:
			if _, err := r.bytes(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			hi, err := r.u4()
			if err != nil {
				return nil, err
			}
			lo, err := r.u4()
			if err != nil {
				return nil, err
			}
			if tag == tagLong {
				c.value = int64(uint64(hi)<<32 | uint64(lo))
			}
			pool[i] = c
			// Eight byte constants take two slots.
			i++
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			if c.index, err = r.u2(); err != nil {
				return nil, err
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if _, err := r.bytes(4); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if _, err := r.bytes(3); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		pool[i] = c
	}
	return pool, nil
}

func (p constantPool) entry(index uint16, tag uint8) (constant, error) {
	if index == 0 || int(index) >= len(p) {
		return constant{}, fmt.Errorf("constant pool index %d out of range [1,%d)", index, len(p))
	}
	c := p[index]
	if c.tag != tag {
		return constant{}, fmt.Errorf("constant pool index %d has tag %d, want %d", index, c.tag, tag)
	}
	return c, nil
}

func (p constantPool) utf8(index uint16) (string, error) {
	c, err := p.entry(index, tagUtf8)
	if err != nil {
		return "", err
	}
	return c.str, nil
}

func (p constantPool) className(index uint16) (string, error) {
	c, err := p.entry(index, tagClass)
	if err != nil {
		return "", err
	}
	name, err := p.utf8(c.index)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("empty class name at index %d", index)
	}
	return InternalToDotted(name), nil
}

// loadable resolves an ldc operand to a string or integer constant.
// Other loadable kinds (class literals, floats, method handles) report ok=false.
func (p constantPool) loadable(index uint16) (Constant, bool) {
	if index == 0 || int(index) >= len(p) {
		return Constant{}, false
	}
	c := p[index]
	switch c.tag {
	case tagString:
		s, err := p.utf8(c.index)
		if err != nil {
			return Constant{}, false
		}
		return Constant{Kind: StringConstant, Str: s}, true
	case tagInteger:
		return Constant{Kind: IntConstant, Int: c.value}, true
	case tagLong:
		return Constant{Kind: IntConstant, Int: c.value}, true
	}
	return Constant{}, false
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is encoded as
// 0xC0 0x80 and supplementary characters as surrogate pairs. Invalid
// sequences decode to U+FFFD rather than failing.
func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u < 0xDC00 && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] < 0xE000 {
			runes = append(runes, (rune(u)-0xD800)<<10+(rune(units[i+1])-0xDC00)+0x10000)
			i++
			continue
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
