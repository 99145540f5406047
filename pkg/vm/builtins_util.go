package vm

import (
	"strings"

	"github.com/daimatz/gojni/pkg/classfile"
	"github.com/daimatz/gojni/pkg/native"
)

// mapKey makes String and box keys compare by content. Other objects keep
// identity semantics.
func mapKey(k any) any {
	obj, ok := k.(*Object)
	if !ok || obj == nil {
		return k
	}
	if s, ok := obj.GoString(); ok {
		return "s:" + s
	}
	if v, ok := boxedValue(obj); ok {
		return struct {
			class *Class
			v     Value
		}{obj.Class, v}
	}
	return obj
}

func hashMapOf(o *Object) *native.HashMap {
	hm, ok := o.Native.(*native.HashMap)
	if !ok {
		hm = native.NewHashMap(mapKey)
		o.Native = hm
	}
	return hm
}

func builderOf(o *Object) *strings.Builder {
	sb, ok := o.Native.(*strings.Builder)
	if !ok {
		sb = &strings.Builder{}
		o.Native = sb
	}
	return sb
}

func refOf(v any) Value {
	obj, _ := v.(*Object)
	return RefValue(obj)
}

func init() {
	register(&builtin{
		name:       "java/lang/StringBuilder",
		super:      "java/lang/Object",
		interfaces: []string{"java/lang/CharSequence"},
		flags:      classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		methods:    stringBuilderMethods(),
	})

	mapMethods := []struct{ name, desc string }{
		{"get", "(Ljava/lang/Object;)Ljava/lang/Object;"},
		{"put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"},
		{"remove", "(Ljava/lang/Object;)Ljava/lang/Object;"},
		{"containsKey", "(Ljava/lang/Object;)Z"},
		{"size", "()I"},
		{"isEmpty", "()Z"},
		{"clear", "()V"},
	}
	iface := &builtin{
		name:  "java/util/Map",
		flags: classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
	}
	for _, m := range mapMethods {
		iface.methods = append(iface.methods, abstract(m.name, m.desc))
	}
	register(iface)

	register(&builtin{
		name:       "java/util/HashMap",
		super:      "java/lang/Object",
		interfaces: []string{"java/util/Map"},
		methods: []builtinMethod{
			virtual("<init>", "()V", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				hashMapOf(this)
				return Value{}, nil
			}),
			virtual("<init>", "(I)V", func(t *Thread, this *Object, args []Value) (Value, error) {
				if args[0].Int < 0 {
					return Value{}, t.throwf("java/lang/IllegalArgumentException", "Illegal initial capacity: %d", args[0].Int)
				}
				hashMapOf(this)
				return Value{}, nil
			}),
			virtual("get", mapMethods[0].desc, func(_ *Thread, this *Object, args []Value) (Value, error) {
				return refOf(hashMapOf(this).Get(args[0].Ref)), nil
			}),
			virtual("put", mapMethods[1].desc, func(_ *Thread, this *Object, args []Value) (Value, error) {
				return refOf(hashMapOf(this).Put(args[0].Ref, args[1].Ref)), nil
			}),
			virtual("remove", mapMethods[2].desc, func(_ *Thread, this *Object, args []Value) (Value, error) {
				return refOf(hashMapOf(this).Remove(args[0].Ref)), nil
			}),
			virtual("containsKey", mapMethods[3].desc, func(_ *Thread, this *Object, args []Value) (Value, error) {
				return BoolValue(hashMapOf(this).ContainsKey(args[0].Ref)), nil
			}),
			virtual("size", "()I", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return IntValue(int32(hashMapOf(this).Len())), nil
			}),
			virtual("isEmpty", "()Z", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return BoolValue(hashMapOf(this).Len() == 0), nil
			}),
			virtual("clear", "()V", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				hashMapOf(this).Clear()
				return Value{}, nil
			}),
		},
	})

	register(&builtin{
		name:  "java/lang/Enum",
		super: "java/lang/Object",
		flags: classfile.AccPublic | classfile.AccAbstract | classfile.AccSuper,
		fields: []builtinField{
			{name: "name", desc: "Ljava/lang/String;", flags: classfile.AccPrivate | classfile.AccFinal},
			{name: "ordinal", desc: "I", flags: classfile.AccPrivate | classfile.AccFinal},
		},
		methods: []builtinMethod{
			{name: "<init>", desc: "(Ljava/lang/String;I)V", flags: classfile.AccProtected, fn: func(_ *Thread, this *Object, args []Value) (Value, error) {
				this.SetField("name", args[0])
				this.SetField("ordinal", args[1])
				return Value{}, nil
			}},
			virtual("name", "()Ljava/lang/String;", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return this.GetField("name"), nil
			}),
			virtual("toString", "()Ljava/lang/String;", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return this.GetField("name"), nil
			}),
			virtual("ordinal", "()I", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return this.GetField("ordinal"), nil
			}),
		},
	})

	register(enumBuiltin("java/util/concurrent/TimeUnit",
		[]string{"NANOSECONDS", "MICROSECONDS", "MILLISECONDS", "SECONDS", "MINUTES", "HOURS", "DAYS"},
		timeUnitMethods()))
}

func stringBuilderMethods() []builtinMethod {
	appendOf := func(desc string) builtinMethod {
		return virtual("append", desc, func(t *Thread, this *Object, args []Value) (Value, error) {
			var s string
			switch desc[1] {
			case 'L':
				var err error
				if s, err = t.stringOf(args[0].Ref); err != nil {
					return Value{}, err
				}
			default:
				s = formatPrimitive(desc[1], args[0])
			}
			builderOf(this).WriteString(s)
			return RefValue(this), nil
		})
	}
	const self = ")Ljava/lang/StringBuilder;"
	return []builtinMethod{
		virtual("<init>", "()V", func(_ *Thread, this *Object, _ []Value) (Value, error) {
			builderOf(this)
			return Value{}, nil
		}),
		virtual("<init>", "(Ljava/lang/String;)V", func(t *Thread, this *Object, args []Value) (Value, error) {
			s, err := t.stringArg(args[0])
			builderOf(this).WriteString(s)
			return Value{}, err
		}),
		appendOf("(Ljava/lang/String;" + self),
		appendOf("(Ljava/lang/Object;" + self),
		appendOf("(Ljava/lang/CharSequence;" + self),
		appendOf("(I" + self),
		appendOf("(J" + self),
		appendOf("(Z" + self),
		appendOf("(C" + self),
		appendOf("(F" + self),
		appendOf("(D" + self),
		virtual("length", "()I", func(_ *Thread, this *Object, _ []Value) (Value, error) {
			return IntValue(int32(utf16Len(builderOf(this).String()))), nil
		}),
		virtual("charAt", "(I)C", func(t *Thread, this *Object, args []Value) (Value, error) {
			units := utf16Units(builderOf(this).String())
			if i := args[0].Int; i >= 0 && int(i) < len(units) {
				return IntValue(int32(units[i])), nil
			}
			return Value{}, t.throwf("java/lang/StringIndexOutOfBoundsException", "index %d,length %d", args[0].Int, len(units))
		}),
		virtual("reverse", "()Ljava/lang/StringBuilder;", func(_ *Thread, this *Object, _ []Value) (Value, error) {
			sb := builderOf(this)
			runes := []rune(sb.String())
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			sb.Reset()
			sb.WriteString(string(runes))
			return RefValue(this), nil
		}),
		virtual("setLength", "(I)V", func(t *Thread, this *Object, args []Value) (Value, error) {
			sb := builderOf(this)
			units := utf16Units(sb.String())
			n := int(args[0].Int)
			if n < 0 {
				return Value{}, t.throwf("java/lang/StringIndexOutOfBoundsException", "length %d", n)
			}
			for len(units) < n {
				units = append(units, 0)
			}
			sb.Reset()
			sb.WriteString(fromUTF16(units[:n]))
			return Value{}, nil
		}),
		virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
			return t.newStringValue(builderOf(this).String()), nil
		}),
	}
}

// enumBuiltin defines an enum class whose constants are created in
// declaration order by the static initializer.
func enumBuiltin(name string, constants []string, methods []builtinMethod) *builtin {
	self := "L" + name + ";"
	b := &builtin{
		name:    name,
		super:   "java/lang/Enum",
		flags:   classfile.AccPublic | classfile.AccFinal | classfile.AccSuper | classfile.AccEnum,
		fields:  []builtinField{{name: "$VALUES", desc: "[" + self, flags: classfile.AccPrivate | classfile.AccStatic | classfile.AccFinal}},
		methods: methods,
	}
	for _, c := range constants {
		b.fields = append(b.fields, builtinField{name: c, desc: self, flags: classfile.AccPublic | classfile.AccStatic | classfile.AccFinal | classfile.AccEnum})
	}
	b.methods = append(b.methods,
		static("values", "()["+self, func(t *Thread, _ *Object, _ []Value) (Value, error) {
			c, err := t.resolveClass(name)
			if err != nil {
				return Value{}, err
			}
			all := c.getStatic("$VALUES").Ref
			arr, err := t.newArrayOf(self, int32(len(all.Array)))
			if err != nil {
				return Value{}, err
			}
			copy(arr.Array, all.Array)
			return RefValue(arr), nil
		}),
		static("valueOf", "(Ljava/lang/String;)"+self, func(t *Thread, _ *Object, args []Value) (Value, error) {
			s, err := t.stringArg(args[0])
			if err != nil {
				return Value{}, err
			}
			c, err := t.resolveClass(name)
			if err != nil {
				return Value{}, err
			}
			if f := c.fields[s]; f != nil && f.Flags&classfile.AccEnum != 0 {
				return c.getStatic(s), nil
			}
			return Value{}, t.throwf("java/lang/IllegalArgumentException", "No enum constant %s.%s", c.JavaName(), s)
		}),
	)
	b.clinit = func(t *Thread, c *Class) error {
		values, err := t.newArrayOf(self, int32(len(constants)))
		if err != nil {
			return err
		}
		for i, name := range constants {
			obj := newObject(c)
			obj.SetField("name", RefValue(t.vm.intern(name)))
			obj.SetField("ordinal", IntValue(int32(i)))
			c.setStatic(name, RefValue(obj))
			values.Array[i] = RefValue(obj)
		}
		c.setStatic("$VALUES", RefValue(values))
		return nil
	}
	return b
}

func timeUnitMethods() []builtinMethod {
	// nanoseconds per unit, indexed by ordinal
	scale := []int64{1, 1e3, 1e6, 1e9, 60e9, 3600e9, 86400e9}
	convert := func(name string, target int) builtinMethod {
		return virtual(name, "(J)J", func(_ *Thread, this *Object, args []Value) (Value, error) {
			from := scale[this.GetField("ordinal").Int]
			return LongValue(args[0].Long * from / scale[target]), nil
		})
	}
	return []builtinMethod{
		convert("toNanos", 0),
		convert("toMicros", 1),
		convert("toMillis", 2),
		convert("toSeconds", 3),
		convert("toMinutes", 4),
		convert("toHours", 5),
		convert("toDays", 6),
	}
}
