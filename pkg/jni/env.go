package jni

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const unknown = "<unknown>"

// Class is a durable reference to a resolved class.
type Class struct {
	Ref  Ref
	Name string
}

// Env is the per-thread facade over a Native context. It is a small value
// and may be copied freely, but like the context it wraps it must only be
// used by the goroutine that attached it.
type Env struct {
	native Native
	cache  *ClassCache
	abort  func(error)
}

// NewEnv wraps n. Class resolutions are memoized in cache, which must
// belong to the runtime n is attached to.
func NewEnv(n Native, cache *ClassCache) Env {
	return Env{native: n, cache: cache, abort: Config{}.abort}
}

// Native returns the raw context.
func (e Env) Native() Native { return e.native }

// FindClass resolves name to a local reference without caching it.
func (e Env) FindClass(name string) (Ref, error) {
	cls := e.native.FindClass(name)
	if err := e.failIfPending(KindClassNotFound, name, "", "could not find class"); err != nil {
		return 0, err
	}
	if cls == 0 {
		return 0, newError(KindClassNotFound, name, "", "could not find class")
	}
	return cls, nil
}

// Resolve returns the cached durable reference of name.
func (e Env) Resolve(name string) (Class, error) {
	return e.cache.Resolve(e, name)
}

// GetMethodID resolves a method of className.
func (e Env) GetMethodID(className, name, sig string, static bool) (MethodID, error) {
	cls, err := e.Resolve(className)
	if err != nil {
		return nil, &Error{Kind: KindMethodNotFound, Class: className, Member: name, Detail: "class unavailable", Cause: err}
	}
	return e.methodID(cls.Ref, className, name, sig, static)
}

func (e Env) methodID(cls Ref, className, name, sig string, static bool) (MethodID, error) {
	var mid MethodID
	if static {
		mid = e.native.GetStaticMethodID(cls, name, sig)
	} else {
		mid = e.native.GetMethodID(cls, name, sig)
	}
	if err := e.failIfPending(KindMethodNotFound, className, name+sig, "could not find method"); err != nil {
		return nil, err
	}
	if mid == nil {
		return nil, newError(KindMethodNotFound, className, name+sig, "could not find method")
	}
	return mid, nil
}

// GetFieldID resolves a field of className.
func (e Env) GetFieldID(className, name, sig string, static bool) (FieldID, error) {
	_, fid, err := e.fieldID(className, name, sig, static)
	return fid, err
}

// fieldID resolves a field together with its declaring class.
func (e Env) fieldID(className, name, sig string, static bool) (Class, FieldID, error) {
	cls, err := e.Resolve(className)
	if err != nil {
		return Class{}, nil, &Error{Kind: KindFieldNotFound, Class: className, Member: name, Detail: "class unavailable", Cause: err}
	}
	var fid FieldID
	if static {
		fid = e.native.GetStaticFieldID(cls.Ref, name, sig)
	} else {
		fid = e.native.GetFieldID(cls.Ref, name, sig)
	}
	if err := e.failIfPending(KindFieldNotFound, className, name, "could not find field"); err != nil {
		return Class{}, nil, err
	}
	if fid == nil {
		return Class{}, nil, newError(KindFieldNotFound, className, name, "could not find field")
	}
	return cls, fid, nil
}

// NewGlobalRef promotes r to a durable reference.
func (e Env) NewGlobalRef(r Ref) (Ref, error) {
	g := e.native.NewGlobalRef(r)
	if g != 0 && !e.native.ExceptionCheck() {
		return g, nil
	}
	detail := ""
	if exc, ok := e.takeException(); ok {
		detail = exc.String()
		exc.Close()
	}
	return 0, &Error{Kind: KindReference, Class: e.internalName(r), Detail: strings.TrimSpace("could not create global reference " + detail)}
}

// DeleteGlobalRef releases a durable reference.
func (e Env) DeleteGlobalRef(r Ref) {
	if r != 0 && !e.native.DeleteGlobalRef(r) {
		Logger().Warn("jni: deleting unknown global reference", zap.Uint32("ref", uint32(r)))
	}
}

// DeleteLocalRef releases a local reference.
func (e Env) DeleteLocalRef(r Ref) {
	if r != 0 {
		e.native.DeleteLocalRef(r)
	}
}

// NewString converts s to a runtime String.
func (e Env) NewString(s string) (Ref, error) {
	r := e.native.NewStringUTF(s)
	if err := e.failIfPending(KindReference, "java/lang/String", "", "could not create string"); err != nil {
		return 0, err
	}
	return r, nil
}

// StringValue converts a runtime String to Go. null converts to "".
func (e Env) StringValue(r Ref) (string, error) {
	if r == 0 {
		return "", nil
	}
	s := e.native.GetStringUTFChars(r)
	if err := e.CheckExceptionAndClear(); err != nil {
		return "", err
	}
	return s, nil
}

// NewByteArray allocates a byte[] holding a copy of b.
func (e Env) NewByteArray(b []byte) (Ref, error) {
	arr := e.native.NewByteArray(int32(len(b)))
	if err := e.failIfPending(KindReference, "[B", "", "could not create byte array"); err != nil {
		return 0, err
	}
	if len(b) > 0 {
		e.native.SetByteArrayRegion(arr, 0, b)
		if err := e.CheckExceptionAndClear(); err != nil {
			e.native.DeleteLocalRef(arr)
			return 0, err
		}
	}
	return arr, nil
}

// ByteArrayRegion copies n bytes of arr starting at start.
func (e Env) ByteArrayRegion(arr Ref, start, n int) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindReference, "[B", "", fmt.Sprintf("negative region length %d", n))
	}
	buf := make([]byte, n)
	e.native.GetByteArrayRegion(arr, int32(start), buf)
	if err := e.CheckExceptionAndClear(); err != nil {
		return nil, err
	}
	return buf, nil
}

// SetByteArrayRegion copies b into arr starting at start.
func (e Env) SetByteArrayRegion(arr Ref, start int, b []byte) error {
	e.native.SetByteArrayRegion(arr, int32(start), b)
	return e.CheckExceptionAndClear()
}

// BytesValue copies the whole of arr.
func (e Env) BytesValue(arr Ref) ([]byte, error) {
	n, err := e.ArrayLength(arr)
	if err != nil {
		return nil, err
	}
	return e.ByteArrayRegion(arr, 0, n)
}

// ArrayLength returns the length of any array.
func (e Env) ArrayLength(arr Ref) (int, error) {
	n := e.native.GetArrayLength(arr)
	if err := e.CheckExceptionAndClear(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// NewObjectArray allocates an array of n elementClass references, each set
// to init.
func (e Env) NewObjectArray(n int, elementClass string, init Ref) (Ref, error) {
	cls, err := e.Resolve(elementClass)
	if err != nil {
		return 0, err
	}
	arr := e.native.NewObjectArray(int32(n), cls.Ref, init)
	if err := e.failIfPending(KindReference, "["+classDescriptor(elementClass), "", "could not create array"); err != nil {
		return 0, err
	}
	return arr, nil
}

// ObjectArrayElement returns element i of arr as a local reference.
func (e Env) ObjectArrayElement(arr Ref, i int) (Ref, error) {
	r := e.native.GetObjectArrayElement(arr, int32(i))
	if err := e.CheckExceptionAndClear(); err != nil {
		return 0, err
	}
	return r, nil
}

// SetObjectArrayElement stores v at index i of arr.
func (e Env) SetObjectArrayElement(arr Ref, i int, v Ref) error {
	e.native.SetObjectArrayElement(arr, int32(i), v)
	return e.CheckExceptionAndClear()
}

// NewObject constructs className with the constructor of signature
// ctorSig. The result is a local reference.
func (e Env) NewObject(className, ctorSig string, args ...Value) (Ref, error) {
	jargs, err := marshalArgs(ctorSig, args)
	if err != nil {
		return 0, annotate(err, className, "<init>")
	}
	cls, err := e.Resolve(className)
	if err != nil {
		return 0, &Error{Kind: KindNewObject, Class: className, Detail: "could not create object", Cause: err}
	}
	mid, err := e.methodID(cls.Ref, className, "<init>", ctorSig, false)
	if err != nil {
		return 0, &Error{Kind: KindNewObject, Class: className, Detail: "could not create object", Cause: err}
	}
	obj := e.native.NewObjectA(cls.Ref, mid, jargs)
	if err := e.CheckExceptionAndClear(); err != nil {
		return 0, err
	}
	if obj == 0 {
		return 0, newError(KindNewObject, className, "", "could not create object")
	}
	return obj, nil
}

// EnumValue returns the enum constant field of className, typed as the
// class itself.
func (e Env) EnumValue(className, field string) (Ref, error) {
	return e.StaticObject(className, field, classDescriptor(className))
}

// StaticObject reads a reference-typed static field with an explicit
// descriptor.
func (e Env) StaticObject(className, field, sig string) (Ref, error) {
	v, err := e.GetStaticField(className, field, sig)
	if err != nil {
		return 0, &Error{Kind: KindNewEnum, Class: className, Member: field, Detail: "could not get enum value", Cause: err}
	}
	if v.L == 0 {
		return 0, newError(KindNewEnum, className, field, "enum value is null")
	}
	return v.L, nil
}

// GetField reads an instance field of obj declared by className.
func (e Env) GetField(obj Ref, className, name, sig string) (Value, error) {
	fid, err := e.GetFieldID(className, name, sig, false)
	if err != nil {
		return Value{}, err
	}
	jv := e.native.GetFieldA(obj, fid)
	if err := e.failIfPending(KindFieldNotFound, className, name, "could not read field"); err != nil {
		return Value{}, err
	}
	return fromJValue(Tag(sig[0]), jv), nil
}

// GetStaticField reads a static field of className.
func (e Env) GetStaticField(className, name, sig string) (Value, error) {
	cls, fid, err := e.fieldID(className, name, sig, true)
	if err != nil {
		return Value{}, err
	}
	jv := e.native.GetStaticFieldA(cls.Ref, fid)
	if err := e.failIfPending(KindFieldNotFound, className, name, "could not read field"); err != nil {
		return Value{}, err
	}
	return fromJValue(Tag(sig[0]), jv), nil
}

// SetField writes an instance field of obj declared by className.
func (e Env) SetField(obj Ref, className, name, sig string, v Value) error {
	if _, err := marshalArgs("("+sig+")V", []Value{v}); err != nil {
		return annotate(err, className, name)
	}
	fid, err := e.GetFieldID(className, name, sig, false)
	if err != nil {
		return err
	}
	e.native.SetFieldA(obj, fid, v.jvalue())
	return e.CheckExceptionAndClear()
}

// SetStaticField writes a static field of className.
func (e Env) SetStaticField(className, name, sig string, v Value) error {
	if _, err := marshalArgs("("+sig+")V", []Value{v}); err != nil {
		return annotate(err, className, name)
	}
	cls, fid, err := e.fieldID(className, name, sig, true)
	if err != nil {
		return err
	}
	e.native.SetStaticFieldA(cls.Ref, fid, v.jvalue())
	return e.CheckExceptionAndClear()
}

// NewRuntimeException constructs a java.lang.RuntimeException carrying
// message. The result is a local reference.
func (e Env) NewRuntimeException(message string) (Ref, error) {
	msg, err := e.NewString(message)
	if err != nil {
		return 0, err
	}
	defer e.DeleteLocalRef(msg)
	return e.NewObject("java/lang/RuntimeException", "(Ljava/lang/String;)V", ObjectValue(msg))
}

// Throw makes r the pending exception of the thread.
func (e Env) Throw(r Ref) error {
	if e.native.Throw(r) != 0 {
		return &Error{Kind: KindReference, Class: e.internalName(r), Detail: "not a throwable"}
	}
	return nil
}

// HasException reports whether an exception is pending.
func (e Env) HasException() bool { return e.native.ExceptionCheck() }

// WithLocalFrame runs fn in a fresh local reference frame. Every local
// reference fn creates is released when it returns, except the one it
// returns, which survives in the enclosing frame.
func (e Env) WithLocalFrame(capacity int, fn func() (Ref, error)) (result Ref, err error) {
	if e.native.PushLocalFrame(int32(capacity)) != 0 {
		if err := e.CheckExceptionAndClear(); err != nil {
			return 0, err
		}
		return 0, newError(KindReference, "", "", fmt.Sprintf("could not push local frame of %d", capacity))
	}
	defer func() {
		keep := result
		if err != nil {
			keep = 0
		}
		result = e.native.PopLocalFrame(keep)
	}()
	return fn()
}

// ClassName returns the runtime class name of obj, as Class.getName does.
// Failures yield "<unknown>". A pending exception is preserved.
func (e Env) ClassName(obj Ref) string {
	if obj == 0 {
		return unknown
	}
	return e.diagnose(func() (string, bool) {
		return e.className(obj)
	})
}

// internalName is ClassName in internal form, as errors carry it.
func (e Env) internalName(obj Ref) string {
	return strings.ReplaceAll(e.ClassName(obj), ".", "/")
}

func (e Env) className(obj Ref) (string, bool) {
	objCls := e.native.GetObjectClass(obj)
	defer e.DeleteLocalRef(objCls)
	getClass := e.native.GetMethodID(objCls, "getClass", "()Ljava/lang/Class;")
	if getClass == nil {
		return "", false
	}
	mirror := e.native.CallObjectMethodA(obj, getClass, nil)
	if mirror == 0 {
		return "", false
	}
	defer e.DeleteLocalRef(mirror)
	mirrorCls := e.native.GetObjectClass(mirror)
	defer e.DeleteLocalRef(mirrorCls)
	getName := e.native.GetMethodID(mirrorCls, "getName", "()Ljava/lang/String;")
	if getName == nil {
		return "", false
	}
	name := e.native.CallObjectMethodA(mirror, getName, nil)
	if name == 0 {
		return "", false
	}
	defer e.DeleteLocalRef(name)
	s := e.native.GetStringUTFChars(name)
	return s, !e.native.ExceptionCheck()
}

// ThrowableString renders exc as "class: message", or just the class when
// the message is null. Failures yield "<unknown>".
func (e Env) ThrowableString(exc Ref) string {
	if exc == 0 {
		return unknown
	}
	return e.diagnose(func() (string, bool) {
		name, msg, ok := e.describeThrowable(exc)
		if !ok {
			return "", false
		}
		if msg == "" {
			return name, true
		}
		return name + ": " + msg, true
	})
}

func (e Env) describeThrowable(exc Ref) (name, msg string, ok bool) {
	if name, ok = e.className(exc); !ok {
		return "", "", false
	}
	cls := e.native.GetObjectClass(exc)
	defer e.DeleteLocalRef(cls)
	getMessage := e.native.GetMethodID(cls, "getMessage", "()Ljava/lang/String;")
	if getMessage == nil {
		return "", "", false
	}
	m := e.native.CallObjectMethodA(exc, getMessage, nil)
	if e.native.ExceptionCheck() {
		return "", "", false
	}
	if m != 0 {
		msg = e.native.GetStringUTFChars(m)
		e.DeleteLocalRef(m)
	}
	return name, msg, !e.native.ExceptionCheck()
}

// diagnose runs fn with no exception pending, restoring any exception
// that was pending on entry. Exceptions raised by fn are discarded.
func (e Env) diagnose(fn func() (string, bool)) string {
	saved := e.native.ExceptionOccurred()
	if saved != 0 {
		e.native.ExceptionClear()
		defer func() {
			e.native.Throw(saved)
			e.native.DeleteLocalRef(saved)
		}()
	}
	s, ok := fn()
	e.native.ExceptionClear()
	if !ok {
		return unknown
	}
	return s
}
