package vm

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/classfile"
)

// JValue is the argument and field value union of the thread surface. Only
// the member named by the corresponding descriptor is meaningful.
type JValue struct {
	Z bool
	B int8
	C uint16
	S int16
	I int32
	J int64
	F float32
	D float64
	L Ref
}

func (t *Thread) deref(r Ref) (*Object, error) {
	if r == 0 {
		return nil, nil
	}
	var (
		obj *Object
		ok  bool
	)
	if r.IsGlobal() {
		obj, ok = t.vm.globals.get(r)
	} else {
		obj, ok = t.locals.get(r)
	}
	if !ok {
		return nil, fmt.Errorf("invalid reference %#x", uint32(r))
	}
	return obj, nil
}

func (t *Thread) derefNonNull(r Ref) (*Object, error) {
	obj, err := t.deref(r)
	if err == nil && obj == nil {
		err = t.throw("java/lang/NullPointerException", "")
	}
	return obj, err
}

func (t *Thread) classOf(r Ref) (*Class, error) {
	obj, err := t.derefNonNull(r)
	if err != nil {
		return nil, err
	}
	c, ok := obj.Native.(*Class)
	if !ok || obj.Class != t.vm.classClass {
		return nil, fmt.Errorf("reference %#x is not a class", uint32(r))
	}
	return c, nil
}

func (t *Thread) newLocal(obj *Object) Ref { return t.locals.add(obj) }

func (t *Thread) toValue(desc string, jv JValue) (Value, error) {
	switch desc[0] {
	case 'Z':
		return BoolValue(jv.Z), nil
	case 'B':
		return IntValue(int32(jv.B)), nil
	case 'C':
		return IntValue(int32(jv.C)), nil
	case 'S':
		return IntValue(int32(jv.S)), nil
	case 'I':
		return IntValue(jv.I), nil
	case 'J':
		return LongValue(jv.J), nil
	case 'F':
		return FloatValue(jv.F), nil
	case 'D':
		return DoubleValue(jv.D), nil
	}
	obj, err := t.deref(jv.L)
	return RefValue(obj), err
}

func (t *Thread) toJValue(desc string, v Value) JValue {
	switch desc[0] {
	case 'Z':
		return JValue{Z: v.Int != 0}
	case 'B':
		return JValue{B: int8(v.Int)}
	case 'C':
		return JValue{C: uint16(v.Int)}
	case 'S':
		return JValue{S: int16(v.Int)}
	case 'I':
		return JValue{I: v.Int}
	case 'J':
		return JValue{J: v.Long}
	case 'F':
		return JValue{F: v.Float}
	case 'D':
		return JValue{D: v.Double}
	}
	return JValue{L: t.newLocal(v.Ref)}
}

func (t *Thread) argValues(m MethodID, args []JValue) ([]Value, error) {
	if len(args) != len(m.params) {
		return nil, t.throwf("java/lang/IllegalArgumentException", "%s takes %d arguments, got %d", m, len(m.params), len(args))
	}
	vals := make([]Value, len(args))
	for i, p := range m.params {
		v, err := t.toValue(p, args[i])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// FindClass loads and initializes the named class and returns a local
// reference to its mirror.
func (t *Thread) FindClass(name string) (ref Ref) {
	t.guard(func() error {
		c, err := t.resolveClass(name)
		if err != nil {
			return err
		}
		if err := t.initClass(c); err != nil {
			return err
		}
		ref = t.newLocal(t.vm.mirrorOf(c))
		return nil
	})
	return ref
}

// GetObjectClass returns the runtime class of obj.
func (t *Thread) GetObjectClass(obj Ref) (ref Ref) {
	t.guard(func() error {
		o, err := t.derefNonNull(obj)
		if err != nil {
			return err
		}
		ref = t.newLocal(t.vm.mirrorOf(o.Class))
		return nil
	})
	return ref
}

// GetSuperclass returns the super class of cls, or 0 for Object and
// interfaces.
func (t *Thread) GetSuperclass(cls Ref) (ref Ref) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		if c.Super != nil && !c.IsInterface() {
			ref = t.newLocal(t.vm.mirrorOf(c.Super))
		}
		return nil
	})
	return ref
}

// IsInstanceOf reports whether obj is assignable to cls. A null obj is an
// instance of every class.
func (t *Thread) IsInstanceOf(obj, cls Ref) (ok bool) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		o, err := t.deref(obj)
		if err != nil {
			return err
		}
		ok = o == nil || o.Class.IsSubclassOf(c)
		return nil
	})
	return ok
}

// IsSameObject reports whether a and b refer to the same object.
func (t *Thread) IsSameObject(a, b Ref) (same bool) {
	t.guard(func() error {
		x, err := t.deref(a)
		if err != nil {
			return err
		}
		y, err := t.deref(b)
		same = x == y
		return err
	})
	return same
}

func (t *Thread) methodID(cls Ref, name, sig string, static bool) (id MethodID) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		if err := t.initClass(c); err != nil {
			return err
		}
		var m *Method
		if name == "<init>" {
			m = c.DeclaredMethod(name, sig)
		} else {
			m = c.LookupMethod(name, sig)
		}
		if m == nil || m.IsStatic() != static {
			return t.throw("java/lang/NoSuchMethodError", name)
		}
		id = m
		return nil
	})
	return id
}

// GetMethodID resolves an instance method or constructor. It returns nil and
// leaves NoSuchMethodError pending when there is none.
func (t *Thread) GetMethodID(cls Ref, name, sig string) MethodID {
	return t.methodID(cls, name, sig, false)
}

// GetStaticMethodID resolves a static method.
func (t *Thread) GetStaticMethodID(cls Ref, name, sig string) MethodID {
	return t.methodID(cls, name, sig, true)
}

func (t *Thread) fieldID(cls Ref, name, sig string, static bool) (id FieldID) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		if err := t.initClass(c); err != nil {
			return err
		}
		f := c.LookupField(name)
		if f == nil || f.Descriptor != sig || f.IsStatic() != static {
			return t.throw("java/lang/NoSuchFieldError", name)
		}
		id = f
		return nil
	})
	return id
}

// GetFieldID resolves an instance field.
func (t *Thread) GetFieldID(cls Ref, name, sig string) FieldID {
	return t.fieldID(cls, name, sig, false)
}

// GetStaticFieldID resolves a static field.
func (t *Thread) GetStaticFieldID(cls Ref, name, sig string) FieldID {
	return t.fieldID(cls, name, sig, true)
}

// callInstance invokes m on obj, dispatching virtually unless m is private
// or a constructor.
func (t *Thread) callInstance(obj Ref, m MethodID, args []JValue) (ret Value) {
	t.guard(func() error {
		if m == nil {
			return fmt.Errorf("nil method id")
		}
		this, err := t.derefNonNull(obj)
		if err != nil {
			return err
		}
		vals, err := t.argValues(m, args)
		if err != nil {
			return err
		}
		target := m
		if m.Name != "<init>" && m.Flags&classfile.AccPrivate == 0 {
			if override := this.Class.LookupMethod(m.Name, m.Descriptor); override != nil {
				target = override
			}
		}
		ret, err = t.invoke(target, this, vals)
		return err
	})
	return ret
}

func (t *Thread) callStatic(cls Ref, m MethodID, args []JValue) (ret Value) {
	t.guard(func() error {
		if m == nil {
			return fmt.Errorf("nil method id")
		}
		if _, err := t.classOf(cls); err != nil {
			return err
		}
		vals, err := t.argValues(m, args)
		if err != nil {
			return err
		}
		if err := t.initClass(m.Class); err != nil {
			return err
		}
		ret, err = t.invoke(m, nil, vals)
		return err
	})
	return ret
}

func (t *Thread) CallBooleanMethodA(obj Ref, m MethodID, args []JValue) bool {
	return t.callInstance(obj, m, args).Int != 0
}

func (t *Thread) CallByteMethodA(obj Ref, m MethodID, args []JValue) int8 {
	return int8(t.callInstance(obj, m, args).Int)
}

func (t *Thread) CallCharMethodA(obj Ref, m MethodID, args []JValue) uint16 {
	return uint16(t.callInstance(obj, m, args).Int)
}

func (t *Thread) CallShortMethodA(obj Ref, m MethodID, args []JValue) int16 {
	return int16(t.callInstance(obj, m, args).Int)
}

func (t *Thread) CallIntMethodA(obj Ref, m MethodID, args []JValue) int32 {
	return t.callInstance(obj, m, args).Int
}

func (t *Thread) CallLongMethodA(obj Ref, m MethodID, args []JValue) int64 {
	return t.callInstance(obj, m, args).Long
}

func (t *Thread) CallFloatMethodA(obj Ref, m MethodID, args []JValue) float32 {
	return t.callInstance(obj, m, args).Float
}

func (t *Thread) CallDoubleMethodA(obj Ref, m MethodID, args []JValue) float64 {
	return t.callInstance(obj, m, args).Double
}

func (t *Thread) CallObjectMethodA(obj Ref, m MethodID, args []JValue) Ref {
	return t.newLocal(t.callInstance(obj, m, args).Ref)
}

func (t *Thread) CallVoidMethodA(obj Ref, m MethodID, args []JValue) {
	t.callInstance(obj, m, args)
}

func (t *Thread) CallStaticBooleanMethodA(cls Ref, m MethodID, args []JValue) bool {
	return t.callStatic(cls, m, args).Int != 0
}

func (t *Thread) CallStaticByteMethodA(cls Ref, m MethodID, args []JValue) int8 {
	return int8(t.callStatic(cls, m, args).Int)
}

func (t *Thread) CallStaticCharMethodA(cls Ref, m MethodID, args []JValue) uint16 {
	return uint16(t.callStatic(cls, m, args).Int)
}

func (t *Thread) CallStaticShortMethodA(cls Ref, m MethodID, args []JValue) int16 {
	return int16(t.callStatic(cls, m, args).Int)
}

func (t *Thread) CallStaticIntMethodA(cls Ref, m MethodID, args []JValue) int32 {
	return t.callStatic(cls, m, args).Int
}

func (t *Thread) CallStaticLongMethodA(cls Ref, m MethodID, args []JValue) int64 {
	return t.callStatic(cls, m, args).Long
}

func (t *Thread) CallStaticFloatMethodA(cls Ref, m MethodID, args []JValue) float32 {
	return t.callStatic(cls, m, args).Float
}

func (t *Thread) CallStaticDoubleMethodA(cls Ref, m MethodID, args []JValue) float64 {
	return t.callStatic(cls, m, args).Double
}

func (t *Thread) CallStaticObjectMethodA(cls Ref, m MethodID, args []JValue) Ref {
	return t.newLocal(t.callStatic(cls, m, args).Ref)
}

func (t *Thread) CallStaticVoidMethodA(cls Ref, m MethodID, args []JValue) {
	t.callStatic(cls, m, args)
}

// AllocObject allocates an instance of cls without running a constructor.
func (t *Thread) AllocObject(cls Ref) (ref Ref) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		obj, err := t.instantiate(c)
		if err != nil {
			return err
		}
		ref = t.newLocal(obj)
		return nil
	})
	return ref
}

// NewObjectA allocates an instance of cls and runs the constructor m.
func (t *Thread) NewObjectA(cls Ref, m MethodID, args []JValue) (ref Ref) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		if m == nil || m.Name != "<init>" {
			return fmt.Errorf("NewObjectA: %v is not a constructor", m)
		}
		vals, err := t.argValues(m, args)
		if err != nil {
			return err
		}
		obj, err := t.instantiate(c)
		if err != nil {
			return err
		}
		if _, err := t.invoke(m, obj, vals); err != nil {
			return err
		}
		ref = t.newLocal(obj)
		return nil
	})
	return ref
}

// GetFieldA reads an instance field.
func (t *Thread) GetFieldA(obj Ref, f FieldID) (jv JValue) {
	t.guard(func() error {
		o, err := t.derefNonNull(obj)
		if err != nil {
			return err
		}
		jv = t.toJValue(f.Descriptor, o.GetField(f.Name))
		return nil
	})
	return jv
}

// SetFieldA writes an instance field.
func (t *Thread) SetFieldA(obj Ref, f FieldID, jv JValue) {
	t.guard(func() error {
		o, err := t.derefNonNull(obj)
		if err != nil {
			return err
		}
		v, err := t.toValue(f.Descriptor, jv)
		if err != nil {
			return err
		}
		o.SetField(f.Name, v)
		return nil
	})
}

// GetStaticFieldA reads a static field of cls.
func (t *Thread) GetStaticFieldA(cls Ref, f FieldID) (jv JValue) {
	t.guard(func() error {
		if _, err := t.classOf(cls); err != nil {
			return err
		}
		if err := t.initClass(f.Class); err != nil {
			return err
		}
		jv = t.toJValue(f.Descriptor, f.Class.getStatic(f.Name))
		return nil
	})
	return jv
}

// SetStaticFieldA writes a static field of cls.
func (t *Thread) SetStaticFieldA(cls Ref, f FieldID, jv JValue) {
	t.guard(func() error {
		if _, err := t.classOf(cls); err != nil {
			return err
		}
		v, err := t.toValue(f.Descriptor, jv)
		if err != nil {
			return err
		}
		if err := t.initClass(f.Class); err != nil {
			return err
		}
		f.Class.setStatic(f.Name, v)
		return nil
	})
}

// NewGlobalRef promotes r to a global reference. It returns 0 with
// OutOfMemoryError pending when the global table is full.
func (t *Thread) NewGlobalRef(r Ref) (ref Ref) {
	t.guard(func() error {
		obj, err := t.deref(r)
		if err != nil || obj == nil {
			return err
		}
		if ref = t.vm.globals.add(obj); ref == 0 {
			return t.throwf("java/lang/OutOfMemoryError", "global reference table overflow (max %d)", t.vm.opts.MaxGlobalRefs)
		}
		return nil
	})
	return ref
}

// DeleteGlobalRef releases a global reference. It reports whether r was
// live; it may be called with an exception pending.
func (t *Thread) DeleteGlobalRef(r Ref) bool {
	return r.IsGlobal() && t.vm.globals.remove(r)
}

// NewLocalRef returns a new local reference to the object r names.
func (t *Thread) NewLocalRef(r Ref) (ref Ref) {
	t.guard(func() error {
		obj, err := t.deref(r)
		ref = t.newLocal(obj)
		return err
	})
	return ref
}

// DeleteLocalRef releases a local reference. It may be called with an
// exception pending.
func (t *Thread) DeleteLocalRef(r Ref) bool {
	return r != 0 && !r.IsGlobal() && t.locals.remove(r)
}

// PushLocalFrame opens a new local reference frame.
func (t *Thread) PushLocalFrame(capacity int32) int32 {
	if capacity < 0 {
		t.guard(func() error {
			return t.throwf("java/lang/OutOfMemoryError", "negative local frame capacity %d", capacity)
		})
		return -1
	}
	t.locals.push()
	return 0
}

// PopLocalFrame frees the top local frame and returns result as a local
// reference in the enclosing frame.
func (t *Thread) PopLocalFrame(result Ref) Ref {
	obj, err := t.deref(result)
	if err != nil {
		obj = nil
	}
	if !t.locals.pop() {
		return 0
	}
	return t.newLocal(obj)
}

// ExceptionOccurred returns a local reference to the pending exception, or 0.
func (t *Thread) ExceptionOccurred() Ref {
	if t.pending == nil {
		return 0
	}
	return t.newLocal(t.pending)
}

// ExceptionCheck reports whether an exception is pending.
func (t *Thread) ExceptionCheck() bool { return t.pending != nil }

// ExceptionClear drops the pending exception.
func (t *Thread) ExceptionClear() { t.pending = nil }

// ExceptionDescribe prints and clears the pending exception.
func (t *Thread) ExceptionDescribe() {
	exc := t.pending
	if exc == nil {
		return
	}
	t.pending = nil
	if err := t.printThrowable(t.vm.stderr, exc); err != nil {
		t.vm.stderr.Println(exc.Class.JavaName())
	}
}

// Throw makes the throwable r pending. It returns 0 on success.
func (t *Thread) Throw(r Ref) int32 {
	obj, err := t.deref(r)
	if err != nil || obj == nil {
		return -1
	}
	throwable, err := t.vm.loadClass("java/lang/Throwable")
	if err != nil || !obj.Class.IsSubclassOf(throwable) {
		return -1
	}
	t.pending = obj
	return 0
}

// ThrowNew constructs an instance of cls with message msg and makes it
// pending. It returns 0 on success.
func (t *Thread) ThrowNew(cls Ref, msg string) int32 {
	var exc *Object
	pending := t.pending
	t.pending = nil
	ok := t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		obj, err := t.instantiate(c)
		if err != nil {
			return err
		}
		m := c.DeclaredMethod("<init>", "(Ljava/lang/String;)V")
		if m == nil {
			return t.throw("java/lang/NoSuchMethodError", "<init>")
		}
		if _, err := t.invoke(m, obj, []Value{RefValue(t.vm.newString(msg))}); err != nil {
			return err
		}
		exc = obj
		return nil
	})
	if !ok {
		if t.pending == nil {
			t.pending = pending
		}
		return -1
	}
	t.pending = exc
	return 0
}

// NewStringUTF allocates a String.
func (t *Thread) NewStringUTF(s string) (ref Ref) {
	t.guard(func() error {
		ref = t.newLocal(t.vm.newString(s))
		return nil
	})
	return ref
}

// GetStringUTFChars returns the contents of the String r.
func (t *Thread) GetStringUTFChars(r Ref) (s string) {
	t.guard(func() error {
		obj, err := t.derefNonNull(r)
		if err != nil {
			return err
		}
		var ok bool
		if s, ok = obj.GoString(); !ok {
			return fmt.Errorf("reference %#x is a %s, not a String", uint32(r), obj.Class.Name)
		}
		return nil
	})
	return s
}

func (t *Thread) arrayRef(r Ref, class string) (*Object, error) {
	obj, err := t.derefNonNull(r)
	if err != nil {
		return nil, err
	}
	if !obj.IsArray() || (class != "" && obj.Class.Name != class) {
		return nil, fmt.Errorf("reference %#x is a %s, not %s", uint32(r), obj.Class.Name, class)
	}
	return obj, nil
}

func (t *Thread) checkRegion(arr *Object, start, n int32) error {
	if start < 0 || n < 0 || int64(start)+int64(n) > int64(len(arr.Array)) {
		return t.throwf("java/lang/ArrayIndexOutOfBoundsException", "Array region %d..%d out of bounds for length %d", start, int64(start)+int64(n), len(arr.Array))
	}
	return nil
}

// NewByteArray allocates a byte[] of length n.
func (t *Thread) NewByteArray(n int32) (ref Ref) {
	t.guard(func() error {
		arr, err := t.newArrayOf("B", n)
		if err != nil {
			return err
		}
		ref = t.newLocal(arr)
		return nil
	})
	return ref
}

// GetArrayLength returns the length of any array.
func (t *Thread) GetArrayLength(r Ref) (n int32) {
	t.guard(func() error {
		arr, err := t.arrayRef(r, "")
		if err != nil {
			return err
		}
		n = int32(len(arr.Array))
		return nil
	})
	return n
}

// GetByteArrayRegion copies len(buf) elements starting at start into buf.
func (t *Thread) GetByteArrayRegion(r Ref, start int32, buf []byte) {
	t.guard(func() error {
		arr, err := t.arrayRef(r, "[B")
		if err != nil {
			return err
		}
		if err := t.checkRegion(arr, start, int32(len(buf))); err != nil {
			return err
		}
		for i := range buf {
			buf[i] = byte(arr.Array[int(start)+i].Int)
		}
		return nil
	})
}

// SetByteArrayRegion copies buf into the array starting at start.
func (t *Thread) SetByteArrayRegion(r Ref, start int32, buf []byte) {
	t.guard(func() error {
		arr, err := t.arrayRef(r, "[B")
		if err != nil {
			return err
		}
		if err := t.checkRegion(arr, start, int32(len(buf))); err != nil {
			return err
		}
		for i, b := range buf {
			arr.Array[int(start)+i] = IntValue(int32(int8(b)))
		}
		return nil
	})
}

// NewObjectArray allocates an array of cls with every element set to init.
func (t *Thread) NewObjectArray(n int32, cls, init Ref) (ref Ref) {
	t.guard(func() error {
		c, err := t.classOf(cls)
		if err != nil {
			return err
		}
		fill, err := t.deref(init)
		if err != nil {
			return err
		}
		arr, err := t.newArrayOf(descriptorOf(c.Name), n)
		if err != nil {
			return err
		}
		if fill != nil {
			for i := range arr.Array {
				arr.Array[i] = RefValue(fill)
			}
		}
		ref = t.newLocal(arr)
		return nil
	})
	return ref
}

// GetObjectArrayElement reads element i of a reference array.
func (t *Thread) GetObjectArrayElement(r Ref, i int32) (ref Ref) {
	t.guard(func() error {
		arr, err := t.arrayRef(r, "")
		if err != nil {
			return err
		}
		if err := t.checkIndex(arr, i); err != nil {
			return err
		}
		ref = t.newLocal(arr.Array[i].Ref)
		return nil
	})
	return ref
}

// SetObjectArrayElement stores v at index i of a reference array.
func (t *Thread) SetObjectArrayElement(r Ref, i int32, v Ref) {
	t.guard(func() error {
		arr, err := t.arrayRef(r, "")
		if err != nil {
			return err
		}
		obj, err := t.deref(v)
		if err != nil {
			return err
		}
		if err := t.checkIndex(arr, i); err != nil {
			return err
		}
		if obj != nil && arr.Class.Component != nil && !obj.Class.IsSubclassOf(arr.Class.Component) {
			return t.throw("java/lang/ArrayStoreException", obj.Class.JavaName())
		}
		arr.Array[i] = RefValue(obj)
		return nil
	})
}
