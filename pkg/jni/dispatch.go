package jni

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/vm"
)

type invokeFunc func(n Native, target Ref, m MethodID, args []vm.JValue) Value

// invoker is the pair of typed runtime calls for one return tag.
type invoker struct {
	instance invokeFunc
	static   invokeFunc
}

// typed builds an invoker from a typed instance call, its static twin and
// the constructor that boxes the result.
func typed[T any](
	call func(Native, Ref, MethodID, []vm.JValue) T,
	callStatic func(Native, Ref, MethodID, []vm.JValue) T,
	box func(T) Value,
) invoker {
	return invoker{
		instance: func(n Native, obj Ref, m MethodID, args []vm.JValue) Value {
			return box(call(n, obj, m, args))
		},
		static: func(n Native, cls Ref, m MethodID, args []vm.JValue) Value {
			return box(callStatic(n, cls, m, args))
		},
	}
}

var dispatchTable = map[Tag]invoker{
	TagBoolean: typed(Native.CallBooleanMethodA, Native.CallStaticBooleanMethodA, Boolean),
	TagByte:    typed(Native.CallByteMethodA, Native.CallStaticByteMethodA, Byte),
	TagChar:    typed(Native.CallCharMethodA, Native.CallStaticCharMethodA, Char),
	TagShort:   typed(Native.CallShortMethodA, Native.CallStaticShortMethodA, Short),
	TagInt:     typed(Native.CallIntMethodA, Native.CallStaticIntMethodA, Int),
	TagLong:    typed(Native.CallLongMethodA, Native.CallStaticLongMethodA, Long),
	TagFloat:   typed(Native.CallFloatMethodA, Native.CallStaticFloatMethodA, Float),
	TagDouble:  typed(Native.CallDoubleMethodA, Native.CallStaticDoubleMethodA, Double),
	TagObject:  typed(Native.CallObjectMethodA, Native.CallStaticObjectMethodA, ObjectValue),
	TagVoid: {
		instance: func(n Native, obj Ref, m MethodID, args []vm.JValue) Value {
			n.CallVoidMethodA(obj, m, args)
			return Void()
		},
		static: func(n Native, cls Ref, m MethodID, args []vm.JValue) Value {
			n.CallStaticVoidMethodA(cls, m, args)
			return Void()
		},
	},
}

func init() {
	// arrays are references at the call boundary
	dispatchTable[TagArray] = dispatchTable[TagObject]
}

// CallMethod invokes methodName with signature sig. Instance calls run on
// target; static calls ignore it and use the class. The class is resolved
// through the cache by className, or taken from target when className is
// empty. The returned Value carries the tag read from sig; object and array
// results both come back as TagObject local references.
func (e Env) CallMethod(target Ref, className, methodName, sig string, static bool, args ...Value) (Value, error) {
	tag, err := ReturnTag(sig)
	if err != nil {
		return Value{}, annotate(err, className, methodName)
	}
	inv, ok := dispatchTable[tag]
	if !ok {
		return Value{}, &Error{Kind: KindDispatch, Class: className, Member: methodName,
			Detail: fmt.Sprintf("unrecognized return type %q in %q", byte(tag), sig)}
	}
	if !static && target == 0 {
		return Value{}, &Error{Kind: KindDispatch, Class: className, Member: methodName,
			Detail: "instance method called on null"}
	}
	jargs, err := marshalArgs(sig, args)
	if err != nil {
		return Value{}, annotate(err, className, methodName)
	}

	var cls Ref
	if className != "" {
		c, err := e.Resolve(className)
		if err != nil {
			return Value{}, err
		}
		cls = c.Ref
	} else {
		if target == 0 {
			return Value{}, &Error{Kind: KindDispatch, Member: methodName, Detail: "no class name and no target"}
		}
		cls = e.native.GetObjectClass(target)
		if err := e.CheckExceptionAndClear(); err != nil {
			return Value{}, err
		}
		defer e.native.DeleteLocalRef(cls)
		className = e.internalName(target)
	}

	mid, err := e.methodID(cls, className, methodName, sig, static)
	if err != nil {
		return Value{}, err
	}
	var ret Value
	if static {
		ret = inv.static(e.native, cls, mid, jargs)
	} else {
		ret = inv.instance(e.native, target, mid, jargs)
	}
	if err := e.CheckExceptionAndClear(); err != nil {
		return Value{}, err
	}
	return ret, nil
}

// CallStaticMethod invokes a static method of className.
func (e Env) CallStaticMethod(className, methodName, sig string, args ...Value) (Value, error) {
	return e.CallMethod(0, className, methodName, sig, true, args...)
}

// CallObjectMethod invokes an instance method on obj's runtime class.
func (e Env) CallObjectMethod(obj Ref, methodName, sig string, args ...Value) (Value, error) {
	return e.CallMethod(obj, "", methodName, sig, false, args...)
}

// annotate fills in the class and member of a signature error.
func annotate(err error, class, member string) error {
	if je, ok := err.(*Error); ok && je.Class == "" && je.Member == "" {
		je.Class, je.Member = class, member
	}
	return err
}
