package jni

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/vm"
)

// Value is a tagged union of every value that crosses the bridge. Only the
// field selected by Tag is meaningful. References of object and array kind
// both live in L.
type Value struct {
	Tag Tag
	Z   bool
	B   int8
	C   uint16
	S   int16
	I   int32
	J   int64
	F   float32
	D   float64
	L   Ref
}

// Boolean, Byte, Char, Short, Int, Long, Float and Double build tagged
// primitive values.
func Boolean(v bool) Value   { return Value{Tag: TagBoolean, Z: v} }
func Byte(v int8) Value      { return Value{Tag: TagByte, B: v} }
func Char(v uint16) Value    { return Value{Tag: TagChar, C: v} }
func Short(v int16) Value    { return Value{Tag: TagShort, S: v} }
func Int(v int32) Value      { return Value{Tag: TagInt, I: v} }
func Long(v int64) Value     { return Value{Tag: TagLong, J: v} }
func Float(v float32) Value  { return Value{Tag: TagFloat, F: v} }
func Double(v float64) Value { return Value{Tag: TagDouble, D: v} }

// ObjectValue wraps a reference, which may be 0, as an argument.
func ObjectValue(r Ref) Value { return Value{Tag: TagObject, L: r} }

// Void is the result of a V method.
func Void() Value { return Value{Tag: TagVoid} }

// Null is a null reference argument.
func Null() Value { return ObjectValue(0) }

// Interface returns the active field.
func (v Value) Interface() any {
	switch v.Tag {
	case TagBoolean:
		return v.Z
	case TagByte:
		return v.B
	case TagChar:
		return v.C
	case TagShort:
		return v.S
	case TagInt:
		return v.I
	case TagLong:
		return v.J
	case TagFloat:
		return v.F
	case TagDouble:
		return v.D
	case TagObject, TagArray:
		return v.L
	}
	return nil
}

func (v Value) String() string {
	switch v.Tag {
	case TagVoid:
		return "void"
	case TagChar:
		return string(rune(v.C))
	case TagObject, TagArray:
		return fmt.Sprintf("ref(%#x)", uint32(v.L))
	}
	return fmt.Sprint(v.Interface())
}

func (v Value) jvalue() vm.JValue {
	return vm.JValue{Z: v.Z, B: v.B, C: v.C, S: v.S, I: v.I, J: v.J, F: v.F, D: v.D, L: v.L}
}

func fromJValue(tag Tag, jv vm.JValue) Value {
	v := Value{Tag: tag}
	switch tag {
	case TagBoolean:
		v.Z = jv.Z
	case TagByte:
		v.B = jv.B
	case TagChar:
		v.C = jv.C
	case TagShort:
		v.S = jv.S
	case TagInt:
		v.I = jv.I
	case TagLong:
		v.J = jv.J
	case TagFloat:
		v.F = jv.F
	case TagDouble:
		v.D = jv.D
	case TagObject, TagArray:
		v.Tag = TagObject
		v.L = jv.L
	}
	return v
}

// marshalArgs checks args against the parameter types of sig and converts
// them to the runtime argument union.
func marshalArgs(sig string, args []Value) ([]vm.JValue, error) {
	params, err := ParamTypes(sig)
	if err != nil {
		return nil, err
	}
	if len(params) != len(args) {
		return nil, &Error{Kind: KindSignature, Detail: fmt.Sprintf("%s takes %d arguments, got %d", sig, len(params), len(args))}
	}
	out := make([]vm.JValue, len(args))
	for i, a := range args {
		want := Tag(params[i][0])
		if a.Tag != want && !(want.isRef() && a.Tag.isRef()) {
			return nil, &Error{Kind: KindSignature, Detail: fmt.Sprintf("argument %d of %s: got %s, want %s", i, sig, a.Tag, params[i])}
		}
		out[i] = a.jvalue()
	}
	return out, nil
}
