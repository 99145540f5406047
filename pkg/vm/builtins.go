package vm

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/classfile"
)

// builtin describes a JDK class implemented in Go. Built-in classes shadow
// any class of the same name on the class path.
type builtin struct {
	name       string
	super      string
	interfaces []string
	flags      uint16
	fields     []builtinField
	methods    []builtinMethod
	clinit     func(t *Thread, c *Class) error
}

type builtinField struct {
	name  string
	desc  string
	flags uint16
}

type builtinMethod struct {
	name  string
	desc  string
	flags uint16
	fn    NativeMethod
}

var builtins = map[string]*builtin{}

func register(b *builtin) {
	if _, dup := builtins[b.name]; dup {
		panic("vm: duplicate built-in class " + b.name)
	}
	if b.flags == 0 {
		b.flags = classfile.AccPublic | classfile.AccSuper
	}
	builtins[b.name] = b
}

func virtual(name, desc string, fn NativeMethod) builtinMethod {
	return builtinMethod{name: name, desc: desc, flags: classfile.AccPublic, fn: fn}
}

func static(name, desc string, fn NativeMethod) builtinMethod {
	return builtinMethod{name: name, desc: desc, flags: classfile.AccPublic | classfile.AccStatic, fn: fn}
}

func abstract(name, desc string) builtinMethod {
	return builtinMethod{name: name, desc: desc, flags: classfile.AccPublic | classfile.AccAbstract}
}

func constant(name, desc string) builtinField {
	return builtinField{name: name, desc: desc, flags: classfile.AccPublic | classfile.AccStatic | classfile.AccFinal}
}

func (vm *VM) defineBuiltin(b *builtin) (*Class, error) {
	c := newClass(b.name, nil, b.flags)
	if err := vm.linkSupers(c, b.super, b.interfaces); err != nil {
		return nil, err
	}
	for _, f := range b.fields {
		c.addField(f.name, f.desc, f.flags)
	}
	for _, m := range b.methods {
		if err := c.addMethod(m.name, m.desc, m.flags, nil, m.fn); err != nil {
			return nil, fmt.Errorf("built-in %w", err)
		}
	}
	c.clinit = b.clinit
	return c, nil
}

// noop serves constructors whose state is set up elsewhere.
func noop(*Thread, *Object, []Value) (Value, error) { return Value{}, nil }

// stringArg extracts a non-null String argument.
func (t *Thread) stringArg(v Value) (string, error) {
	if v.IsNull() {
		return "", t.throw("java/lang/NullPointerException", "")
	}
	s, ok := v.Ref.GoString()
	if !ok && v.Ref.Class != t.vm.stringClass {
		return "", t.throwf("java/lang/ClassCastException", "class %s cannot be cast to class java.lang.String", v.Ref.Class.JavaName())
	}
	return s, nil
}

func init() {
	register(&builtin{
		name: "java/lang/Object",
		methods: []builtinMethod{
			virtual("<init>", "()V", noop),
			virtual("hashCode", "()I", func(t *Thread, this *Object, _ []Value) (Value, error) {
				return IntValue(this.hash), nil
			}),
			virtual("equals", "(Ljava/lang/Object;)Z", func(t *Thread, this *Object, args []Value) (Value, error) {
				return BoolValue(args[0].Ref == this), nil
			}),
			virtual("getClass", "()Ljava/lang/Class;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				return RefValue(t.vm.mirrorOf(this.Class)), nil
			}),
			virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				h, err := t.callVirtual(this, "hashCode", "()I")
				if err != nil {
					return Value{}, err
				}
				return t.newStringValue(fmt.Sprintf("%s@%x", this.Class.JavaName(), uint32(h.Int))), nil
			}),
		},
	})

	register(&builtin{
		name:  "java/lang/Class",
		super: "java/lang/Object",
		flags: classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		methods: []builtinMethod{
			virtual("getName", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				return t.newStringValue(this.Native.(*Class).JavaName()), nil
			}),
			virtual("getSimpleName", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				name := this.Native.(*Class).Name
				for i := len(name) - 1; i >= 0; i-- {
					if name[i] == '/' || name[i] == '$' {
						name = name[i+1:]
						break
					}
				}
				return t.newStringValue(name), nil
			}),
			virtual("isInstance", "(Ljava/lang/Object;)Z", func(t *Thread, this *Object, args []Value) (Value, error) {
				return BoolValue(!args[0].IsNull() && args[0].Ref.Class.IsSubclassOf(this.Native.(*Class))), nil
			}),
			virtual("isInterface", "()Z", func(t *Thread, this *Object, _ []Value) (Value, error) {
				return BoolValue(this.Native.(*Class).IsInterface()), nil
			}),
			virtual("getSuperclass", "()Ljava/lang/Class;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				c := this.Native.(*Class)
				if c.Super == nil || c.IsInterface() {
					return NullValue(), nil
				}
				return RefValue(t.vm.mirrorOf(c.Super)), nil
			}),
			virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				c := this.Native.(*Class)
				kind := "class "
				if c.IsInterface() {
					kind = "interface "
				}
				return t.newStringValue(kind + c.JavaName()), nil
			}),
		},
	})

	register(&builtin{
		name:    "java/lang/Math",
		super:   "java/lang/Object",
		flags:   classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		fields:  []builtinField{constant("PI", "D"), constant("E", "D")},
		methods: mathMethods(),
		clinit: func(t *Thread, c *Class) error {
			c.setStatic("PI", DoubleValue(3.141592653589793))
			c.setStatic("E", DoubleValue(2.718281828459045))
			return nil
		},
	})

	register(&builtin{
		name:  "java/lang/System",
		super: "java/lang/Object",
		flags: classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		fields: []builtinField{
			constant("out", "Ljava/io/PrintStream;"),
			constant("err", "Ljava/io/PrintStream;"),
		},
		methods: systemMethods(),
		clinit: func(t *Thread, c *Class) error {
			ps, err := t.resolveClass("java/io/PrintStream")
			if err != nil {
				return err
			}
			out, errs := newObject(ps), newObject(ps)
			out.Native, errs.Native = t.vm.stdout, t.vm.stderr
			c.setStatic("out", RefValue(out))
			c.setStatic("err", RefValue(errs))
			return nil
		},
	})
}
