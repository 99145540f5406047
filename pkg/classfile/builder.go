package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Builder assembles a class file in memory. Constant pool entries are
// de-duplicated; indexes returned by the *Ref helpers can be embedded in
// bytecode passed to AddMethod.
type Builder struct {
	name        string
	super       string
	accessFlags uint16
	interfaces  []uint16

	pool    []ConstantPoolEntry // 1-indexed, pool[0] is nil
	lookup  map[string]uint16
	fields  []builtMember
	methods []builtMember
}

type builtMember struct {
	access     uint16
	name       uint16
	descriptor uint16
	code       *CodeAttribute
}

// NewBuilder starts a public class named name extending super.
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		name:        name,
		super:       super,
		accessFlags: AccPublic | AccSuper,
		pool:        []ConstantPoolEntry{nil},
		lookup:      make(map[string]uint16),
	}
	b.ClassRef(name)
	if super != "" {
		b.ClassRef(super)
	}
	return b
}

// SetAccessFlags overrides the class access flags.
func (b *Builder) SetAccessFlags(flags uint16) *Builder {
	b.accessFlags = flags
	return b
}

// AddInterface declares an implemented interface.
func (b *Builder) AddInterface(name string) *Builder {
	b.interfaces = append(b.interfaces, b.ClassRef(name))
	return b
}

func (b *Builder) intern(key string, e ConstantPoolEntry) uint16 {
	if idx, ok := b.lookup[key]; ok {
		return idx
	}
	idx := uint16(len(b.pool))
	b.pool = append(b.pool, e)
	if e.Tag() == TagLong || e.Tag() == TagDouble {
		b.pool = append(b.pool, nil)
	}
	b.lookup[key] = idx
	return idx
}

// Utf8 interns a CONSTANT_Utf8.
func (b *Builder) Utf8(s string) uint16 {
	return b.intern("u:"+s, &ConstantUtf8{Value: s})
}

// ClassRef interns a CONSTANT_Class.
func (b *Builder) ClassRef(name string) uint16 {
	nameIdx := b.Utf8(name)
	return b.intern("c:"+name, &ConstantClass{NameIndex: nameIdx})
}

// StringConst interns a CONSTANT_String.
func (b *Builder) StringConst(s string) uint16 {
	idx := b.Utf8(s)
	return b.intern("s:"+s, &ConstantString{StringIndex: idx})
}

// IntConst interns a CONSTANT_Integer.
func (b *Builder) IntConst(v int32) uint16 {
	return b.intern(fmt.Sprintf("i:%d", v), &ConstantInteger{Value: v})
}

// FloatConst interns a CONSTANT_Float.
func (b *Builder) FloatConst(v float32) uint16 {
	return b.intern(fmt.Sprintf("f:%x", math.Float32bits(v)), &ConstantFloat{Value: v})
}

// LongConst interns a CONSTANT_Long (two slots).
func (b *Builder) LongConst(v int64) uint16 {
	return b.intern(fmt.Sprintf("j:%d", v), &ConstantLong{Value: v})
}

// DoubleConst interns a CONSTANT_Double (two slots).
func (b *Builder) DoubleConst(v float64) uint16 {
	return b.intern(fmt.Sprintf("d:%x", math.Float64bits(v)), &ConstantDouble{Value: v})
}

func (b *Builder) nameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.intern("nt:"+name+":"+desc, &ConstantNameAndType{NameIndex: n, DescriptorIndex: d})
}

// MethodRef interns a CONSTANT_Methodref.
func (b *Builder) MethodRef(class, name, desc string) uint16 {
	c, nt := b.ClassRef(class), b.nameAndType(name, desc)
	return b.intern("m:"+class+"."+name+":"+desc, &ConstantMethodref{ClassIndex: c, NameAndTypeIndex: nt})
}

// InterfaceMethodRef interns a CONSTANT_InterfaceMethodref.
func (b *Builder) InterfaceMethodRef(class, name, desc string) uint16 {
	c, nt := b.ClassRef(class), b.nameAndType(name, desc)
	return b.intern("im:"+class+"."+name+":"+desc, &ConstantInterfaceMethodref{ClassIndex: c, NameAndTypeIndex: nt})
}

// FieldRef interns a CONSTANT_Fieldref.
func (b *Builder) FieldRef(class, name, desc string) uint16 {
	c, nt := b.ClassRef(class), b.nameAndType(name, desc)
	return b.intern("fr:"+class+"."+name+":"+desc, &ConstantFieldref{ClassIndex: c, NameAndTypeIndex: nt})
}

// AddField declares a field.
func (b *Builder) AddField(access uint16, name, desc string) *Builder {
	b.fields = append(b.fields, builtMember{access: access, name: b.Utf8(name), descriptor: b.Utf8(desc)})
	return b
}

// AddMethod declares a method. A nil code declares an abstract or native method.
func (b *Builder) AddMethod(access uint16, name, desc string, code *CodeAttribute) *Builder {
	if code != nil {
		b.Utf8("Code")
	}
	b.methods = append(b.methods, builtMember{access: access, name: b.Utf8(name), descriptor: b.Utf8(desc), code: code})
	return b
}

// Bytes serializes the class file.
func (b *Builder) Bytes() ([]byte, error) {
	if len(b.pool) > math.MaxUint16 {
		return nil, fmt.Errorf("constant pool overflow: %d entries", len(b.pool))
	}
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }

	w(uint32(classMagic))
	w(uint16(0))  // minor
	w(uint16(52)) // major (Java 8)

	w(uint16(len(b.pool)))
	for _, e := range b.pool[1:] {
		if e == nil {
			continue // second slot of a long/double
		}
		w(e.Tag())
		switch c := e.(type) {
		case *ConstantUtf8:
			if len(c.Value) > math.MaxUint16 {
				return nil, fmt.Errorf("utf8 constant too long: %d bytes", len(c.Value))
			}
			w(uint16(len(c.Value)))
			buf.WriteString(c.Value)
		case *ConstantInteger:
			w(c.Value)
		case *ConstantFloat:
			w(math.Float32bits(c.Value))
		case *ConstantLong:
			w(c.Value)
		case *ConstantDouble:
			w(math.Float64bits(c.Value))
		case *ConstantClass:
			w(c.NameIndex)
		case *ConstantString:
			w(c.StringIndex)
		case *ConstantFieldref:
			w(c.ClassIndex)
			w(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w(c.ClassIndex)
			w(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w(c.ClassIndex)
			w(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w(c.NameIndex)
			w(c.DescriptorIndex)
		default:
			return nil, fmt.Errorf("cannot serialize constant tag %d", e.Tag())
		}
	}

	w(b.accessFlags)
	w(b.lookup["c:"+b.name])
	if b.super == "" {
		w(uint16(0))
	} else {
		w(b.lookup["c:"+b.super])
	}
	w(uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		w(i)
	}

	w(uint16(len(b.fields)))
	for _, f := range b.fields {
		w(f.access)
		w(f.name)
		w(f.descriptor)
		w(uint16(0))
	}

	codeName := b.lookup["u:Code"]
	w(uint16(len(b.methods)))
	for _, m := range b.methods {
		w(m.access)
		w(m.name)
		w(m.descriptor)
		if m.code == nil {
			w(uint16(0))
			continue
		}
		w(uint16(1))
		w(codeName)
		c := m.code
		w(uint32(2 + 2 + 4 + len(c.Code) + 2 + 8*len(c.ExceptionHandlers) + 2))
		w(c.MaxStack)
		w(c.MaxLocals)
		w(uint32(len(c.Code)))
		buf.Write(c.Code)
		w(uint16(len(c.ExceptionHandlers)))
		for _, h := range c.ExceptionHandlers {
			w(h.StartPC)
			w(h.EndPC)
			w(h.HandlerPC)
			w(h.CatchType)
		}
		w(uint16(0)) // code attributes
	}

	w(uint16(0)) // class attributes
	return buf.Bytes(), nil
}
