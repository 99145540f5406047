package jni

import "github.com/daimatz/gojni/pkg/vm"

type (
	// Ref is an opaque runtime reference. 0 is null.
	Ref = vm.Ref
	// MethodID identifies a resolved method. nil means not found.
	MethodID = vm.MethodID
	// FieldID identifies a resolved field. nil means not found.
	FieldID = vm.FieldID
)

// Native is the raw per-thread runtime context the bridge is built on.
// Operations follow the JNI convention: failures return a zero value and
// leave an exception pending, and nothing but the reference release and
// exception inspection calls may be made until it is cleared.
type Native interface {
	FindClass(name string) Ref
	GetObjectClass(obj Ref) Ref
	GetSuperclass(cls Ref) Ref
	IsInstanceOf(obj, cls Ref) bool
	IsSameObject(a, b Ref) bool

	GetMethodID(cls Ref, name, sig string) MethodID
	GetStaticMethodID(cls Ref, name, sig string) MethodID
	GetFieldID(cls Ref, name, sig string) FieldID
	GetStaticFieldID(cls Ref, name, sig string) FieldID

	CallBooleanMethodA(obj Ref, m MethodID, args []vm.JValue) bool
	CallByteMethodA(obj Ref, m MethodID, args []vm.JValue) int8
	CallCharMethodA(obj Ref, m MethodID, args []vm.JValue) uint16
	CallShortMethodA(obj Ref, m MethodID, args []vm.JValue) int16
	CallIntMethodA(obj Ref, m MethodID, args []vm.JValue) int32
	CallLongMethodA(obj Ref, m MethodID, args []vm.JValue) int64
	CallFloatMethodA(obj Ref, m MethodID, args []vm.JValue) float32
	CallDoubleMethodA(obj Ref, m MethodID, args []vm.JValue) float64
	CallObjectMethodA(obj Ref, m MethodID, args []vm.JValue) Ref
	CallVoidMethodA(obj Ref, m MethodID, args []vm.JValue)

	CallStaticBooleanMethodA(cls Ref, m MethodID, args []vm.JValue) bool
	CallStaticByteMethodA(cls Ref, m MethodID, args []vm.JValue) int8
	CallStaticCharMethodA(cls Ref, m MethodID, args []vm.JValue) uint16
	CallStaticShortMethodA(cls Ref, m MethodID, args []vm.JValue) int16
	CallStaticIntMethodA(cls Ref, m MethodID, args []vm.JValue) int32
	CallStaticLongMethodA(cls Ref, m MethodID, args []vm.JValue) int64
	CallStaticFloatMethodA(cls Ref, m MethodID, args []vm.JValue) float32
	CallStaticDoubleMethodA(cls Ref, m MethodID, args []vm.JValue) float64
	CallStaticObjectMethodA(cls Ref, m MethodID, args []vm.JValue) Ref
	CallStaticVoidMethodA(cls Ref, m MethodID, args []vm.JValue)

	NewObjectA(cls Ref, m MethodID, args []vm.JValue) Ref
	GetFieldA(obj Ref, f FieldID) vm.JValue
	SetFieldA(obj Ref, f FieldID, v vm.JValue)
	GetStaticFieldA(cls Ref, f FieldID) vm.JValue
	SetStaticFieldA(cls Ref, f FieldID, v vm.JValue)

	NewGlobalRef(r Ref) Ref
	DeleteGlobalRef(r Ref) bool
	NewLocalRef(r Ref) Ref
	DeleteLocalRef(r Ref) bool
	PushLocalFrame(capacity int32) int32
	PopLocalFrame(result Ref) Ref
	LocalRefCount() int

	ExceptionOccurred() Ref
	ExceptionCheck() bool
	ExceptionClear()
	Throw(r Ref) int32
	ThrowNew(cls Ref, msg string) int32

	NewStringUTF(s string) Ref
	GetStringUTFChars(r Ref) string
	NewByteArray(n int32) Ref
	GetArrayLength(r Ref) int32
	GetByteArrayRegion(r Ref, start int32, buf []byte)
	SetByteArrayRegion(r Ref, start int32, buf []byte)
	NewObjectArray(n int32, cls, init Ref) Ref
	GetObjectArrayElement(r Ref, i int32) Ref
	SetObjectArrayElement(r Ref, i int32, v Ref)
}

var _ Native = (*vm.Thread)(nil)
