package jobject

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/jni"
)

const stringBuilderClass = "java/lang/StringBuilder"

// StringBuilder is a java.lang.StringBuilder.
type StringBuilder struct {
	*jni.Object
}

// NewStringBuilder constructs a builder holding initial.
func NewStringBuilder(env jni.Env, initial string) (*StringBuilder, error) {
	s, err := env.NewString(initial)
	if err != nil {
		return nil, err
	}
	defer env.DeleteLocalRef(s)
	local, err := env.NewObject(stringBuilderClass, "(Ljava/lang/String;)V", jni.ObjectValue(s))
	if err != nil {
		return nil, err
	}
	obj, err := jni.NewObject(env, local)
	if err != nil {
		return nil, err
	}
	return &StringBuilder{obj}, nil
}

// Append appends v, choosing the append overload from the tag of v.
// Reference values are appended with append(Object).
func (b *StringBuilder) Append(v jni.Value) error {
	var param string
	switch v.Tag {
	case jni.TagObject, jni.TagArray:
		param = "Ljava/lang/Object;"
	case jni.TagBoolean, jni.TagChar, jni.TagInt, jni.TagLong, jni.TagFloat, jni.TagDouble:
		param = v.Tag.String()
	case jni.TagByte, jni.TagShort:
		// widened like the Java compiler does
		param, v = "I", widen(v)
	default:
		return fmt.Errorf("jobject: cannot append a %s value", v.Tag)
	}
	r, err := b.Env().CallMethod(b.Ref(), stringBuilderClass, "append", "("+param+")L"+stringBuilderClass+";", false, v)
	b.Env().DeleteLocalRef(r.L)
	return err
}

func widen(v jni.Value) jni.Value {
	if v.Tag == jni.TagByte {
		return jni.Int(int32(v.B))
	}
	return jni.Int(int32(v.S))
}

// AppendString appends s.
func (b *StringBuilder) AppendString(s string) error {
	env := b.Env()
	r, err := env.NewString(s)
	if err != nil {
		return err
	}
	defer env.DeleteLocalRef(r)
	ret, err := env.CallMethod(b.Ref(), stringBuilderClass, "append", "(Ljava/lang/String;)L"+stringBuilderClass+";", false, jni.ObjectValue(r))
	env.DeleteLocalRef(ret.L)
	return err
}

func (b *StringBuilder) Len() (int, error) {
	v, err := b.Env().CallMethod(b.Ref(), stringBuilderClass, "length", "()I", false)
	return int(v.I), err
}

// Reverse reverses the contents in place.
func (b *StringBuilder) Reverse() error {
	v, err := b.Env().CallMethod(b.Ref(), stringBuilderClass, "reverse", "()L"+stringBuilderClass+";", false)
	b.Env().DeleteLocalRef(v.L)
	return err
}

// String returns the contents. Errors yield "".
func (b *StringBuilder) String() string {
	s, err := b.ToString()
	if err != nil {
		return ""
	}
	return s
}
