package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(in io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	r := reader{r: in}
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(in, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}
		at := func(what string) string { return fmt.Sprintf("%s at index %d", what, i) }

		switch tag {
		case TagUtf8:
			length, err := r.u16(at("Utf8 length"))
			if err != nil {
				return nil, err
			}
			data, err := r.bytes(int(length), at("Utf8 bytes"))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantUtf8{Value: string(data)}

		case TagInteger:
			v, err := r.u32(at("Integer"))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantInteger{Value: int32(v)}

		case TagFloat:
			v, err := r.u32(at("Float"))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(v)}

		case TagLong, TagDouble:
			hi, err := r.u32(at("8-byte constant"))
			if err != nil {
				return nil, err
			}
			lo, err := r.u32(at("8-byte constant"))
			if err != nil {
				return nil, err
			}
			bits := uint64(hi)<<32 | uint64(lo)
			if tag == TagLong {
				pool[i] = &ConstantLong{Value: int64(bits)}
			} else {
				pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			}
			i++ // 8-byte constants take 2 slots

		case TagClass:
			nameIndex, err := r.u16(at("Class"))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			stringIndex, err := r.u16(at("String"))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
			first, err := r.u16(at("reference first index"))
			if err != nil {
				return nil, err
			}
			second, err := r.u16(at("reference second index"))
			if err != nil {
				return nil, err
			}
			switch tag {
			case TagFieldref:
				pool[i] = &ConstantFieldref{ClassIndex: first, NameAndTypeIndex: second}
			case TagMethodref:
				pool[i] = &ConstantMethodref{ClassIndex: first, NameAndTypeIndex: second}
			case TagInterfaceMethodref:
				pool[i] = &ConstantInterfaceMethodref{ClassIndex: first, NameAndTypeIndex: second}
			default:
				pool[i] = &ConstantNameAndType{NameIndex: first, DescriptorIndex: second}
			}

		case TagMethodHandle:
			// reference_kind (u1) + reference_index (u2)
			if _, err := r.bytes(3, at("MethodHandle")); err != nil {
				return nil, err
			}
			pool[i] = &constantPlaceholder{tag: tag}

		case TagMethodType:
			if _, err := r.bytes(2, at("MethodType")); err != nil {
				return nil, err
			}
			pool[i] = &constantPlaceholder{tag: tag}

		case TagDynamic, TagInvokeDynamic:
			// bootstrap_method_attr_index (u2) + name_and_type_index (u2)
			if _, err := r.bytes(4, at("Dynamic/InvokeDynamic")); err != nil {
				return nil, err
			}
			pool[i] = &constantPlaceholder{tag: tag}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

func entryAt(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := entryAt(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, e.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	e, err := entryAt(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := e.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MemberRef holds a resolved field or method reference.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func resolveMember(pool []ConstantPoolEntry, classIndex, natIndex uint16) (*MemberRef, error) {
	className, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member class: %w", err)
	}
	e, err := entryAt(pool, natIndex)
	if err != nil {
		return nil, fmt.Errorf("invalid NameAndType index %d", natIndex)
	}
	nat, ok := e.(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", natIndex)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member name: %w", err)
	}
	descriptor, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member descriptor: %w", err)
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// ResolveMethodref resolves a CONSTANT_Methodref or CONSTANT_InterfaceMethodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	e, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	switch m := e.(type) {
	case *ConstantMethodref:
		return resolveMember(pool, m.ClassIndex, m.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		return resolveMember(pool, m.ClassIndex, m.NameAndTypeIndex)
	}
	return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	e, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	f, ok := e.(*ConstantFieldref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	return resolveMember(pool, f.ClassIndex, f.NameAndTypeIndex)
}
