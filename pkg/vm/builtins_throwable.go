package vm

import (
	"fmt"

	"github.com/daimatz/gojni/pkg/native"
)

// throwableTree lists each built-in exception class after its super class.
var throwableTree = [][2]string{
	{"java/lang/Exception", "java/lang/Throwable"},
	{"java/lang/Error", "java/lang/Throwable"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/InstantiationException", "java/lang/Exception"},
	{"java/io/IOException", "java/lang/Exception"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException"},
	{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/ArrayStoreException", "java/lang/RuntimeException"},
	{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
	{"java/lang/ClassFormatError", "java/lang/LinkageError"},
	{"java/lang/ExceptionInInitializerError", "java/lang/LinkageError"},
	{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
	{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/AbstractMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/InstantiationError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/OutOfMemoryError", "java/lang/VirtualMachineError"},
	{"java/lang/StackOverflowError", "java/lang/VirtualMachineError"},
	{"java/lang/InternalError", "java/lang/VirtualMachineError"},
}

func init() {
	register(&builtin{
		name:  "java/lang/Throwable",
		super: "java/lang/Object",
		fields: []builtinField{
			{name: "detailMessage", desc: "Ljava/lang/String;"},
			{name: "cause", desc: "Ljava/lang/Throwable;"},
		},
		methods: append(throwableConstructors(), throwableMethods()...),
	})
	for _, e := range throwableTree {
		register(&builtin{name: e[0], super: e[1], methods: throwableConstructors()})
	}
}

// throwableConstructors are redeclared on every subclass since constructors
// are not inherited.
func throwableConstructors() []builtinMethod {
	return []builtinMethod{
		virtual("<init>", "()V", noop),
		virtual("<init>", "(Ljava/lang/String;)V", func(_ *Thread, this *Object, args []Value) (Value, error) {
			this.SetField("detailMessage", args[0])
			return Value{}, nil
		}),
		virtual("<init>", "(Ljava/lang/String;Ljava/lang/Throwable;)V", func(_ *Thread, this *Object, args []Value) (Value, error) {
			this.SetField("detailMessage", args[0])
			this.SetField("cause", args[1])
			return Value{}, nil
		}),
		virtual("<init>", "(Ljava/lang/Throwable;)V", func(t *Thread, this *Object, args []Value) (Value, error) {
			this.SetField("cause", args[0])
			if !args[0].IsNull() {
				s, err := t.stringOf(args[0].Ref)
				if err != nil {
					return Value{}, err
				}
				this.SetField("detailMessage", t.newStringValue(s))
			}
			return Value{}, nil
		}),
	}
}

func throwableMethods() []builtinMethod {
	getMessage := func(_ *Thread, this *Object, _ []Value) (Value, error) {
		return this.GetField("detailMessage"), nil
	}
	return []builtinMethod{
		virtual("getMessage", "()Ljava/lang/String;", getMessage),
		virtual("getLocalizedMessage", "()Ljava/lang/String;", getMessage),
		virtual("getCause", "()Ljava/lang/Throwable;", func(_ *Thread, this *Object, _ []Value) (Value, error) {
			if c := this.GetField("cause"); c.Ref != this {
				return c, nil
			}
			return NullValue(), nil
		}),
		virtual("initCause", "(Ljava/lang/Throwable;)Ljava/lang/Throwable;", func(t *Thread, this *Object, args []Value) (Value, error) {
			if args[0].Ref == this {
				return Value{}, t.throw("java/lang/IllegalArgumentException", "Self-causation not permitted")
			}
			if !this.GetField("cause").IsNull() {
				return Value{}, t.throw("java/lang/IllegalStateException", "Can't overwrite cause")
			}
			this.SetField("cause", args[0])
			return RefValue(this), nil
		}),
		virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
			msg, err := t.callVirtual(this, "getLocalizedMessage", "()Ljava/lang/String;")
			if err != nil {
				return Value{}, err
			}
			if msg.IsNull() {
				return t.newStringValue(this.Class.JavaName()), nil
			}
			return t.newStringValue(fmt.Sprintf("%s: %s", this.Class.JavaName(), goStr(msg.Ref))), nil
		}),
		virtual("printStackTrace", "()V", func(t *Thread, this *Object, _ []Value) (Value, error) {
			return Value{}, t.printThrowable(t.vm.stderr, this)
		}),
	}
}

// printThrowable writes obj and its cause chain the way printStackTrace
// does, without frames.
func (t *Thread) printThrowable(ps *native.PrintStream, obj *Object) error {
	seen := map[*Object]bool{}
	prefix := ""
	for obj != nil && !seen[obj] {
		seen[obj] = true
		s, err := t.stringOf(obj)
		if err != nil {
			return err
		}
		ps.Println(prefix + s)
		prefix = "Caused by: "
		obj = obj.GetField("cause").Ref
	}
	return nil
}
