package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory class file.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// reader wraps big-endian reads and labels failures with what was being read.
type reader struct {
	r io.Reader
}

func (r reader) u16(what string) (uint16, error) {
	var v uint16
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading %s: %w", what, err)
	}
	return v, nil
}

func (r reader) u32(what string) (uint32, error) {
	var v uint32
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading %s: %w", what, err)
	}
	return v, nil
}

func (r reader) bytes(n int, what string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	return buf, nil
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(in io.Reader) (*ClassFile, error) {
	r := reader{r: in}
	cf := &ClassFile{}

	magic, err := r.u32("magic number")
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if cf.MinorVersion, err = r.u16("minor version"); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.u16("major version"); err != nil {
		return nil, err
	}

	cpCount, err := r.u16("constant pool count")
	if err != nil {
		return nil, err
	}
	if cf.ConstantPool, err = parseConstantPool(in, cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	if cf.AccessFlags, err = r.u16("access flags"); err != nil {
		return nil, err
	}
	if cf.ThisClass, err = r.u16("this_class"); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = r.u16("super_class"); err != nil {
		return nil, err
	}

	interfacesCount, err := r.u16("interfaces count")
	if err != nil {
		return nil, err
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = r.u16(fmt.Sprintf("interface %d", i)); err != nil {
			return nil, err
		}
	}

	fieldsCount, err := r.u16("fields count")
	if err != nil {
		return nil, err
	}
	if cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	methodsCount, err := r.u16("methods count")
	if err != nil {
		return nil, err
	}
	if cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// Class-level attributes (parse BootstrapMethods, skip others)
	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

// member is the shared header of field_info and method_info.
type member struct {
	accessFlags uint16
	name        string
	descriptor  string
	attrs       []AttributeInfo
}

func parseMember(r reader, pool []ConstantPoolEntry, kind string, i uint16) (member, error) {
	var m member
	var err error
	if m.accessFlags, err = r.u16(fmt.Sprintf("%s %d access flags", kind, i)); err != nil {
		return m, err
	}
	nameIndex, err := r.u16(fmt.Sprintf("%s %d name index", kind, i))
	if err != nil {
		return m, err
	}
	descIndex, err := r.u16(fmt.Sprintf("%s %d descriptor index", kind, i))
	if err != nil {
		return m, err
	}
	attrCount, err := r.u16(fmt.Sprintf("%s %d attributes count", kind, i))
	if err != nil {
		return m, err
	}
	if m.name, err = GetUtf8(pool, nameIndex); err != nil {
		return m, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
	}
	if m.descriptor, err = GetUtf8(pool, descIndex); err != nil {
		return m, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
	}
	if m.attrs, err = parseAttributeInfos(r, pool, attrCount); err != nil {
		return m, fmt.Errorf("parsing %s %d attributes: %w", kind, i, err)
	}
	return m, nil
}

func parseFields(r reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		m, err := parseMember(r, pool, "field", i)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldInfo{
			AccessFlags: m.accessFlags,
			Name:        m.name,
			Descriptor:  m.descriptor,
			Attributes:  m.attrs,
		}
	}
	return fields, nil
}

func parseMethods(r reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		m, err := parseMember(r, pool, "method", i)
		if err != nil {
			return nil, err
		}
		mi := MethodInfo{
			AccessFlags: m.accessFlags,
			Name:        m.name,
			Descriptor:  m.descriptor,
			Attributes:  m.attrs,
		}
		for _, attr := range m.attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", m.name, err)
				}
				mi.Code = code
				break
			}
		}
		methods[i] = mi
	}
	return methods, nil
}

func parseAttributeInfos(r reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		nameIndex, err := r.u16(fmt.Sprintf("attribute %d name index", i))
		if err != nil {
			return nil, err
		}
		length, err := r.u32(fmt.Sprintf("attribute %d length", i))
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(length), fmt.Sprintf("attribute %d data", i))
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if len(data) < 8+int(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}

	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])

	offset := 8 + int(codeLength)
	var handlers []ExceptionHandler
	if offset+2 <= len(data) {
		exTableLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+8*exTableLen > len(data) {
			return nil, fmt.Errorf("exception table truncated: %d entries", exTableLen)
		}
		handlers = make([]ExceptionHandler, exTableLen)
		for i := range handlers {
			handlers[i] = ExceptionHandler{
				StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
				EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
				HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
				CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
			}
			offset += 8
		}
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
	}, nil
}

func (cf *ClassFile) parseClassAttributes(r reader) error {
	count, err := r.u16("class attributes count")
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		nameIndex, err := r.u16("class attribute name index")
		if err != nil {
			return err
		}
		length, err := r.u32("class attribute length")
		if err != nil {
			return err
		}
		data, err := r.bytes(int(length), "class attribute data")
		if err != nil {
			return err
		}
		name, err := GetUtf8(cf.ConstantPool, nameIndex)
		if err != nil {
			continue // skip unknown attributes
		}
		if name == "BootstrapMethods" {
			cf.BootstrapMethods, err = parseBootstrapMethods(data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name and descriptor.
func (cf *ClassFile) FindField(name, descriptor string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name && cf.Fields[i].Descriptor == descriptor {
			return &cf.Fields[i]
		}
	}
	return nil
}
