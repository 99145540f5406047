package vm

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/classfile"
)

func constantPool(frame *Frame) ([]classfile.ConstantPoolEntry, error) {
	c := frame.Class()
	if c == nil || c.File == nil {
		return nil, fmt.Errorf("frame has no constant pool")
	}
	return c.File.ConstantPool, nil
}

// executeLdc handles ldc and ldc_w.
func (t *Thread) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantFloat:
		frame.Push(FloatValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(RefValue(t.vm.intern(str)))
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(pool, c.NameIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving class: %w", err)
		}
		k, err := t.resolveClass(name)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(RefValue(t.vm.mirrorOf(k)))
	default:
		return Value{}, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, pool[index].Tag())
	}
	return Value{}, false, nil
}

func (t *Thread) executeLdc2W(frame *Frame, index uint16) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc2_w: invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantLong:
		frame.Push(LongValue(c.Value))
	case *classfile.ConstantDouble:
		frame.Push(DoubleValue(c.Value))
	default:
		return Value{}, false, fmt.Errorf("ldc2_w: unsupported type at index %d", index)
	}
	return Value{}, false, nil
}

// resolveStaticField resolves a Fieldref to a static field and initializes its class.
func (t *Thread) resolveStaticField(frame *Frame, op string) (*Field, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return nil, err
	}
	ref, err := classfile.ResolveFieldref(pool, frame.ReadU16())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := t.resolveClass(ref.ClassName)
	if err != nil {
		return nil, err
	}
	f := c.LookupField(ref.Name)
	if f == nil {
		return nil, t.throw("java/lang/NoSuchFieldError", ref.Name)
	}
	if !f.IsStatic() {
		return nil, t.throwf("java/lang/IncompatibleClassChangeError", "expected static field %s.%s", c.Name, ref.Name)
	}
	if err := t.initClass(f.Class); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *Thread) executeGetstatic(frame *Frame) (Value, bool, error) {
	f, err := t.resolveStaticField(frame, "getstatic")
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(f.Class.getStatic(f.Name))
	return Value{}, false, nil
}

func (t *Thread) executePutstatic(frame *Frame) (Value, bool, error) {
	f, err := t.resolveStaticField(frame, "putstatic")
	if err != nil {
		return Value{}, false, err
	}
	f.Class.setStatic(f.Name, frame.Pop())
	return Value{}, false, nil
}

func (t *Thread) executeGetfield(frame *Frame) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	ref, err := classfile.ResolveFieldref(pool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, t.throwf("java/lang/NullPointerException", "getfield %s", ref.Name)
	}
	val, ok := objectRef.Ref.Fields[ref.Name]
	if !ok {
		return Value{}, false, t.throw("java/lang/NoSuchFieldError", ref.Name)
	}
	frame.Push(val)
	return Value{}, false, nil
}

func (t *Thread) executePutfield(frame *Frame) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	ref, err := classfile.ResolveFieldref(pool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}
	value := frame.Pop()
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, t.throwf("java/lang/NullPointerException", "putfield %s", ref.Name)
	}
	objectRef.Ref.SetField(ref.Name, value)
	return Value{}, false, nil
}

// resolveMethod resolves a Methodref or InterfaceMethodref operand.
func (t *Thread) resolveMethod(frame *Frame, op string) (*Method, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return nil, err
	}
	ref, err := classfile.ResolveMethodref(pool, frame.ReadU16())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := t.resolveClass(ref.ClassName)
	if err != nil {
		return nil, err
	}
	var m *Method
	if ref.Name == "<init>" {
		m = c.DeclaredMethod(ref.Name, ref.Descriptor)
	} else {
		m = c.LookupMethod(ref.Name, ref.Descriptor)
	}
	if m == nil {
		return nil, t.throwf("java/lang/NoSuchMethodError", "%s.%s%s", ref.ClassName, ref.Name, ref.Descriptor)
	}
	return m, nil
}

func popArgs(frame *Frame, m *Method) []Value {
	args := make([]Value, len(m.params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args
}

func pushResult(frame *Frame, m *Method, v Value) {
	if m.ret != "V" {
		frame.Push(v)
	}
}

// executeInvokevirtual handles invokevirtual and invokeinterface. The method
// is selected from the receiver's runtime class.
func (t *Thread) executeInvokevirtual(frame *Frame, iface bool) (Value, bool, error) {
	m, err := t.resolveMethod(frame, "invokevirtual")
	if err != nil {
		return Value{}, false, err
	}
	if iface {
		frame.ReadU16() // count, 0
	}
	args := popArgs(frame, m)
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, t.throwf("java/lang/NullPointerException", "invoking %s on null", m.Name)
	}
	target := m
	if m.Flags&classfile.AccPrivate == 0 {
		if actual := objectRef.Ref.Class.LookupMethod(m.Name, m.Descriptor); actual != nil {
			target = actual
		}
	}
	retVal, err := t.invoke(target, objectRef.Ref, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, m, retVal)
	return Value{}, false, nil
}

// executeInvokespecial handles constructors, private methods and super calls.
func (t *Thread) executeInvokespecial(frame *Frame) (Value, bool, error) {
	m, err := t.resolveMethod(frame, "invokespecial")
	if err != nil {
		return Value{}, false, err
	}
	args := popArgs(frame, m)
	objectRef := frame.Pop() // this
	if objectRef.IsNull() {
		return Value{}, false, t.throwf("java/lang/NullPointerException", "invoking %s on null", m.Name)
	}
	retVal, err := t.invoke(m, objectRef.Ref, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, m, retVal)
	return Value{}, false, nil
}

func (t *Thread) executeInvokestatic(frame *Frame) (Value, bool, error) {
	m, err := t.resolveMethod(frame, "invokestatic")
	if err != nil {
		return Value{}, false, err
	}
	if !m.IsStatic() {
		return Value{}, false, t.throwf("java/lang/IncompatibleClassChangeError", "expected static method %s", m)
	}
	if err := t.initClass(m.Class); err != nil {
		return Value{}, false, err
	}
	retVal, err := t.invoke(m, nil, popArgs(frame, m))
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, m, retVal)
	return Value{}, false, nil
}

// instantiate allocates an instance of c after initializing it.
func (t *Thread) instantiate(c *Class) (*Object, error) {
	if c.IsAbstract() {
		return nil, t.throw("java/lang/InstantiationError", c.JavaName())
	}
	if err := t.initClass(c); err != nil {
		return nil, err
	}
	return newObject(c), nil
}

func (t *Thread) executeNew(frame *Frame) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	className, err := classfile.GetClassName(pool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	c, err := t.resolveClass(className)
	if err != nil {
		return Value{}, false, err
	}
	obj, err := t.instantiate(c)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(obj))
	return Value{}, false, nil
}

// newArrayOf allocates an array given its element descriptor.
func (t *Thread) newArrayOf(elem string, count int32) (*Object, error) {
	if count < 0 {
		return nil, t.throwf("java/lang/NegativeArraySizeException", "%d", count)
	}
	c, err := t.resolveClass("[" + elem)
	if err != nil {
		return nil, err
	}
	return newArray(c, count), nil
}

var newarrayTypes = map[uint8]string{4: "Z", 5: "C", 6: "F", 7: "D", 8: "B", 9: "S", 10: "I", 11: "J"}

func (t *Thread) executeNewarray(frame *Frame) (Value, bool, error) {
	atype := frame.ReadU8()
	elem, ok := newarrayTypes[atype]
	if !ok {
		return Value{}, false, fmt.Errorf("newarray: invalid atype %d", atype)
	}
	arr, err := t.newArrayOf(elem, frame.Pop().Int)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(arr))
	return Value{}, false, nil
}

// descriptorOf turns a CONSTANT_Class name into a field descriptor.
func descriptorOf(className string) string {
	if className[0] == '[' {
		return className
	}
	return "L" + className + ";"
}

func (t *Thread) executeAnewarray(frame *Frame) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	className, err := classfile.GetClassName(pool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("anewarray: %w", err)
	}
	arr, err := t.newArrayOf(descriptorOf(className), frame.Pop().Int)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(arr))
	return Value{}, false, nil
}

func (t *Thread) executeMultianewarray(frame *Frame) (Value, bool, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return Value{}, false, err
	}
	className, err := classfile.GetClassName(pool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("multianewarray: %w", err)
	}
	dims := make([]int32, frame.ReadU8())
	for i := len(dims) - 1; i >= 0; i-- {
		dims[i] = frame.Pop().Int
	}
	arr, err := t.newMultiArray(className, dims)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(arr))
	return Value{}, false, nil
}

func (t *Thread) newMultiArray(desc string, dims []int32) (*Object, error) {
	arr, err := t.newArrayOf(desc[1:], dims[0])
	if err != nil {
		return nil, err
	}
	if len(dims) > 1 {
		for i := range arr.Array {
			sub, err := t.newMultiArray(desc[1:], dims[1:])
			if err != nil {
				return nil, err
			}
			arr.Array[i] = RefValue(sub)
		}
	}
	return arr, nil
}

func (t *Thread) arrayOf(v Value) (*Object, error) {
	if v.IsNull() {
		return nil, t.throw("java/lang/NullPointerException", "array is null")
	}
	if !v.Ref.IsArray() {
		return nil, fmt.Errorf("reference to %s is not an array", v.Ref.Class.Name)
	}
	return v.Ref, nil
}

func (t *Thread) checkIndex(arr *Object, index int32) error {
	if index < 0 || int(index) >= len(arr.Array) {
		return t.throwf("java/lang/ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", index, len(arr.Array))
	}
	return nil
}

func (t *Thread) executeCheckcast(frame *Frame) (Value, bool, error) {
	target, err := t.operandClass(frame, "checkcast")
	if err != nil {
		return Value{}, false, err
	}
	val := frame.Peek()
	if !val.IsNull() && !val.Ref.Class.IsSubclassOf(target) {
		return Value{}, false, t.throwf("java/lang/ClassCastException", "class %s cannot be cast to class %s",
			val.Ref.Class.JavaName(), target.JavaName())
	}
	return Value{}, false, nil
}

func (t *Thread) executeInstanceof(frame *Frame) (Value, bool, error) {
	target, err := t.operandClass(frame, "instanceof")
	if err != nil {
		return Value{}, false, err
	}
	ref := frame.Pop()
	frame.Push(BoolValue(!ref.IsNull() && ref.Ref.Class.IsSubclassOf(target)))
	return Value{}, false, nil
}

func (t *Thread) operandClass(frame *Frame, op string) (*Class, error) {
	pool, err := constantPool(frame)
	if err != nil {
		return nil, err
	}
	className, err := classfile.GetClassName(pool, frame.ReadU16())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t.resolveClass(className)
}
