package vm

import (
	"sync/atomic"
	"unicode/utf16"
)

var objectSeq atomic.Uint32

// Object is a heap instance. Arrays keep their elements in Array; JDK value
// classes implemented in Go keep their state in Native (a Go string for
// java/lang/String, the primitive Value for boxes, *Class for mirrors).
type Object struct {
	Class  *Class
	Fields map[string]Value
	Array  []Value
	Native any
	hash   int32
}

func newObject(c *Class) *Object {
	obj := &Object{Class: c, hash: nextHash()}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.IsStatic() {
				continue
			}
			if obj.Fields == nil {
				obj.Fields = make(map[string]Value)
			}
			if _, shadowed := obj.Fields[f.Name]; !shadowed {
				obj.Fields[f.Name] = zeroValue(f.Descriptor)
			}
		}
	}
	return obj
}

func newArray(c *Class, length int32) *Object {
	elems := make([]Value, length)
	zero := zeroValue(c.Name[1:])
	for i := range elems {
		elems[i] = zero
	}
	return &Object{Class: c, Array: elems, hash: nextHash()}
}

// nextHash derives identity hash codes from an allocation counter.
func nextHash() int32 {
	return int32((objectSeq.Add(1) * 0x9E3779B1) >> 1)
}

// IdentityHash returns the identity hash code.
func (o *Object) IdentityHash() int32 { return o.hash }

// IsArray reports whether o is an array instance.
func (o *Object) IsArray() bool { return o.Class.IsArray() }

// GoString returns the contents of a java/lang/String instance.
func (o *Object) GoString() (string, bool) {
	s, ok := o.Native.(string)
	return s, ok
}

// GetField reads an instance field by name.
func (o *Object) GetField(name string) Value {
	if v, ok := o.Fields[name]; ok {
		return v
	}
	return NullValue()
}

// SetField writes an instance field by name.
func (o *Object) SetField(name string, v Value) {
	if o.Fields == nil {
		o.Fields = make(map[string]Value)
	}
	o.Fields[name] = v
}

// utf16Len returns the length of s in UTF-16 code units, which is what
// String.length() reports.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func fromUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

// javaStringHash implements String.hashCode.
func javaStringHash(s string) int32 {
	var h int32
	for _, u := range utf16Units(s) {
		h = 31*h + int32(u)
	}
	return h
}
