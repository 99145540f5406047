package jobject

import "github.com/daimatz/gojni/pkg/jni"

// Enum is a constant of a Java enum class.
type Enum struct {
	*jni.Object
	class   string
	name    string
	ordinal int
}

// LookupEnum returns the constant name of the enum class className.
func LookupEnum(env jni.Env, className, name string) (*Enum, error) {
	local, err := env.EnumValue(className, name)
	if err != nil {
		return nil, err
	}
	obj, err := jni.NewObject(env, local)
	if err != nil {
		return nil, err
	}
	ord, err := env.CallMethod(obj.Ref(), className, "ordinal", "()I", false)
	if err != nil {
		obj.Close()
		return nil, err
	}
	return &Enum{Object: obj, class: className, name: name, ordinal: int(ord.I)}, nil
}

// EnumValues returns every constant of className in declaration order.
func EnumValues(env jni.Env, className string) ([]*Enum, error) {
	arr, err := env.CallStaticMethod(className, "values", "()[L"+className+";")
	if err != nil {
		return nil, err
	}
	defer env.DeleteLocalRef(arr.L)
	n, err := env.ArrayLength(arr.L)
	if err != nil {
		return nil, err
	}
	out := make([]*Enum, 0, n)
	for i := range n {
		local, err := env.ObjectArrayElement(arr.L, i)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		obj, err := jni.NewObject(env, local)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		e := &Enum{Object: obj, class: className, ordinal: i}
		name, err := env.CallMethod(obj.Ref(), className, "name", "()Ljava/lang/String;", false)
		if err == nil {
			e.name, err = env.StringValue(name.L)
			env.DeleteLocalRef(name.L)
		}
		if err != nil {
			obj.Close()
			closeAll(out)
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func closeAll(es []*Enum) {
	for _, e := range es {
		e.Close()
	}
}

func (e *Enum) Name() string { return e.name }

func (e *Enum) Ordinal() int { return e.ordinal }

// Class returns the internal name of the enum class.
func (e *Enum) Class() string { return e.class }

func (e *Enum) String() string { return e.name }
