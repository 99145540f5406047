package vm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/daimatz/gojni/pkg/classfile"
	"github.com/daimatz/gojni/pkg/native"
)

func goStr(o *Object) string {
	s, _ := o.GoString()
	return s
}

func init() {
	register(&builtin{
		name:  "java/lang/CharSequence",
		flags: classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
		methods: []builtinMethod{
			abstract("length", "()I"),
			abstract("charAt", "(I)C"),
			abstract("toString", "()Ljava/lang/String;"),
		},
	})

	register(&builtin{
		name:       "java/lang/String",
		super:      "java/lang/Object",
		interfaces: []string{"java/lang/CharSequence"},
		flags:      classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		methods:    stringMethods(),
	})

	register(&builtin{
		name:  "java/io/PrintStream",
		super: "java/lang/Object",
		methods: []builtinMethod{
			printMethod("println", "()V"),
			printMethod("println", "(Ljava/lang/String;)V"),
			printMethod("println", "(Ljava/lang/Object;)V"),
			printMethod("println", "(I)V"),
			printMethod("println", "(J)V"),
			printMethod("println", "(Z)V"),
			printMethod("println", "(C)V"),
			printMethod("println", "(F)V"),
			printMethod("println", "(D)V"),
			printMethod("print", "(Ljava/lang/String;)V"),
			printMethod("print", "(Ljava/lang/Object;)V"),
			printMethod("print", "(I)V"),
			printMethod("print", "(J)V"),
			printMethod("print", "(C)V"),
			virtual("flush", "()V", noop),
		},
	})
}

// formatPrimitive renders a primitive the way String.valueOf does.
func formatPrimitive(desc byte, v Value) string {
	switch desc {
	case 'Z':
		return strconv.FormatBool(v.Int != 0)
	case 'C':
		return fromUTF16([]uint16{uint16(v.Int)})
	case 'J':
		return strconv.FormatInt(v.Long, 10)
	case 'F':
		return formatJavaFloat(float64(v.Float), 32)
	case 'D':
		return formatJavaFloat(v.Double, 64)
	}
	return strconv.FormatInt(int64(v.Int), 10)
}

// formatJavaFloat approximates Double.toString: plain notation in
// [1e-3, 1e7) with at least one fractional digit, scientific otherwise.
func formatJavaFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	exp = strings.TrimPrefix(exp, "+")
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(strings.TrimPrefix(exp, "-"), "0")
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

func printMethod(name, desc string) builtinMethod {
	newline := name == "println"
	return virtual(name, desc, func(t *Thread, this *Object, args []Value) (Value, error) {
		ps, ok := this.Native.(*native.PrintStream)
		if !ok {
			ps = t.vm.stdout
		}
		var text string
		switch desc {
		case "()V":
			ps.Println()
			return Value{}, nil
		case "(Ljava/lang/String;)V", "(Ljava/lang/Object;)V":
			s, err := t.stringOf(args[0].Ref)
			if err != nil {
				return Value{}, err
			}
			text = s
		default:
			text = formatPrimitive(desc[1], args[0])
		}
		if newline {
			ps.Println(text)
		} else {
			ps.Print(text)
		}
		return Value{}, nil
	})
}

func stringMethods() []builtinMethod {
	str := func(fn func(t *Thread, s string, args []Value) (Value, error)) NativeMethod {
		return func(t *Thread, this *Object, args []Value) (Value, error) {
			return fn(t, goStr(this), args)
		}
	}
	strArg := func(fn func(t *Thread, s, arg string) (Value, error)) NativeMethod {
		return str(func(t *Thread, s string, args []Value) (Value, error) {
			arg, err := t.stringArg(args[0])
			if err != nil {
				return Value{}, err
			}
			return fn(t, s, arg)
		})
	}
	substring := func(t *Thread, s string, begin, end int32) (Value, error) {
		units := utf16Units(s)
		if begin < 0 || end > int32(len(units)) || begin > end {
			return Value{}, t.throwf("java/lang/StringIndexOutOfBoundsException", "begin %d, end %d, length %d", begin, end, len(units))
		}
		return t.newStringValue(fromUTF16(units[begin:end])), nil
	}
	valueOf := func(desc string) builtinMethod {
		return static("valueOf", desc, func(t *Thread, _ *Object, args []Value) (Value, error) {
			if desc == "(Ljava/lang/Object;)Ljava/lang/String;" {
				s, err := t.stringOf(args[0].Ref)
				if err != nil {
					return Value{}, err
				}
				return t.newStringValue(s), nil
			}
			return t.newStringValue(formatPrimitive(desc[1], args[0])), nil
		})
	}

	return []builtinMethod{
		virtual("<init>", "()V", func(t *Thread, this *Object, _ []Value) (Value, error) {
			this.Native = ""
			return Value{}, nil
		}),
		virtual("<init>", "(Ljava/lang/String;)V", func(t *Thread, this *Object, args []Value) (Value, error) {
			s, err := t.stringArg(args[0])
			this.Native = s
			return Value{}, err
		}),
		virtual("<init>", "([B)V", func(t *Thread, this *Object, args []Value) (Value, error) {
			arr, err := t.arrayOf(args[0])
			if err != nil {
				return Value{}, err
			}
			this.Native = string(bytesOf(arr))
			return Value{}, nil
		}),
		virtual("length", "()I", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return IntValue(int32(utf16Len(s))), nil
		})),
		virtual("isEmpty", "()Z", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return BoolValue(s == ""), nil
		})),
		virtual("charAt", "(I)C", str(func(t *Thread, s string, args []Value) (Value, error) {
			units := utf16Units(s)
			i := args[0].Int
			if i < 0 || int(i) >= len(units) {
				return Value{}, t.throwf("java/lang/StringIndexOutOfBoundsException", "index %d, length %d", i, len(units))
			}
			return IntValue(int32(units[i])), nil
		})),
		virtual("equals", "(Ljava/lang/Object;)Z", str(func(t *Thread, s string, args []Value) (Value, error) {
			if args[0].IsNull() {
				return BoolValue(false), nil
			}
			other, ok := args[0].Ref.GoString()
			return BoolValue(ok && other == s), nil
		})),
		virtual("equalsIgnoreCase", "(Ljava/lang/String;)Z", str(func(t *Thread, s string, args []Value) (Value, error) {
			if args[0].IsNull() {
				return BoolValue(false), nil
			}
			return BoolValue(strings.EqualFold(s, goStr(args[0].Ref))), nil
		})),
		virtual("hashCode", "()I", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return IntValue(javaStringHash(s)), nil
		})),
		virtual("compareTo", "(Ljava/lang/String;)I", strArg(func(t *Thread, s, other string) (Value, error) {
			a, b := utf16Units(s), utf16Units(other)
			for i := 0; i < len(a) && i < len(b); i++ {
				if a[i] != b[i] {
					return IntValue(int32(a[i]) - int32(b[i])), nil
				}
			}
			return IntValue(int32(len(a) - len(b))), nil
		})),
		virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
			return RefValue(this), nil
		}),
		virtual("intern", "()Ljava/lang/String;", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return RefValue(t.vm.intern(s)), nil
		})),
		virtual("concat", "(Ljava/lang/String;)Ljava/lang/String;", strArg(func(t *Thread, s, other string) (Value, error) {
			return t.newStringValue(s + other), nil
		})),
		virtual("contains", "(Ljava/lang/CharSequence;)Z", str(func(t *Thread, s string, args []Value) (Value, error) {
			if args[0].IsNull() {
				return Value{}, t.throw("java/lang/NullPointerException", "")
			}
			sub, err := t.stringOf(args[0].Ref)
			if err != nil {
				return Value{}, err
			}
			return BoolValue(strings.Contains(s, sub)), nil
		})),
		virtual("startsWith", "(Ljava/lang/String;)Z", strArg(func(t *Thread, s, prefix string) (Value, error) {
			return BoolValue(strings.HasPrefix(s, prefix)), nil
		})),
		virtual("endsWith", "(Ljava/lang/String;)Z", strArg(func(t *Thread, s, suffix string) (Value, error) {
			return BoolValue(strings.HasSuffix(s, suffix)), nil
		})),
		virtual("indexOf", "(Ljava/lang/String;)I", strArg(func(t *Thread, s, sub string) (Value, error) {
			i := strings.Index(s, sub)
			if i < 0 {
				return IntValue(-1), nil
			}
			return IntValue(int32(utf16Len(s[:i]))), nil
		})),
		virtual("substring", "(I)Ljava/lang/String;", str(func(t *Thread, s string, args []Value) (Value, error) {
			return substring(t, s, args[0].Int, int32(utf16Len(s)))
		})),
		virtual("substring", "(II)Ljava/lang/String;", str(func(t *Thread, s string, args []Value) (Value, error) {
			return substring(t, s, args[0].Int, args[1].Int)
		})),
		virtual("toUpperCase", "()Ljava/lang/String;", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return t.newStringValue(strings.ToUpper(s)), nil
		})),
		virtual("toLowerCase", "()Ljava/lang/String;", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return t.newStringValue(strings.ToLower(s)), nil
		})),
		virtual("trim", "()Ljava/lang/String;", str(func(t *Thread, s string, _ []Value) (Value, error) {
			return t.newStringValue(strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })), nil
		})),
		virtual("getBytes", "()[B", str(func(t *Thread, s string, _ []Value) (Value, error) {
			arr, err := t.newArrayOf("B", int32(len(s)))
			if err != nil {
				return Value{}, err
			}
			setBytes(arr, 0, []byte(s))
			return RefValue(arr), nil
		})),
		valueOf("(I)Ljava/lang/String;"),
		valueOf("(J)Ljava/lang/String;"),
		valueOf("(Z)Ljava/lang/String;"),
		valueOf("(C)Ljava/lang/String;"),
		valueOf("(F)Ljava/lang/String;"),
		valueOf("(D)Ljava/lang/String;"),
		valueOf("(Ljava/lang/Object;)Ljava/lang/String;"),
	}
}

func bytesOf(arr *Object) []byte {
	b := make([]byte, len(arr.Array))
	for i, v := range arr.Array {
		b[i] = byte(v.Int)
	}
	return b
}

func setBytes(arr *Object, start int, b []byte) {
	for i, v := range b {
		arr.Array[start+i] = IntValue(int32(int8(v)))
	}
}

func mathMethods() []builtinMethod {
	return []builtinMethod{
		static("abs", "(I)I", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			if a[0].Int < 0 {
				return IntValue(-a[0].Int), nil
			}
			return a[0], nil
		}),
		static("abs", "(J)J", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			if a[0].Long < 0 {
				return LongValue(-a[0].Long), nil
			}
			return a[0], nil
		}),
		static("abs", "(D)D", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return DoubleValue(math.Abs(a[0].Double)), nil
		}),
		static("max", "(II)I", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return IntValue(max(a[0].Int, a[1].Int)), nil
		}),
		static("max", "(JJ)J", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return LongValue(max(a[0].Long, a[1].Long)), nil
		}),
		static("min", "(II)I", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return IntValue(min(a[0].Int, a[1].Int)), nil
		}),
		static("min", "(JJ)J", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return LongValue(min(a[0].Long, a[1].Long)), nil
		}),
		static("sqrt", "(D)D", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return DoubleValue(math.Sqrt(a[0].Double)), nil
		}),
		static("pow", "(DD)D", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return DoubleValue(math.Pow(a[0].Double, a[1].Double)), nil
		}),
		static("floor", "(D)D", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			return DoubleValue(math.Floor(a[0].Double)), nil
		}),
		static("addExact", "(II)I", func(t *Thread, _ *Object, a []Value) (Value, error) {
			sum := int64(a[0].Int) + int64(a[1].Int)
			if sum > math.MaxInt32 || sum < math.MinInt32 {
				return Value{}, t.throw("java/lang/ArithmeticException", "integer overflow")
			}
			return IntValue(int32(sum)), nil
		}),
		static("floorDiv", "(II)I", func(t *Thread, _ *Object, a []Value) (Value, error) {
			x, y := a[0].Int, a[1].Int
			if y == 0 {
				return Value{}, t.throw("java/lang/ArithmeticException", "/ by zero")
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return IntValue(q), nil
		}),
	}
}

func systemMethods() []builtinMethod {
	return []builtinMethod{
		static("currentTimeMillis", "()J", func(*Thread, *Object, []Value) (Value, error) {
			return LongValue(time.Now().UnixMilli()), nil
		}),
		static("nanoTime", "()J", func(*Thread, *Object, []Value) (Value, error) {
			return LongValue(time.Now().UnixNano()), nil
		}),
		static("identityHashCode", "(Ljava/lang/Object;)I", func(_ *Thread, _ *Object, a []Value) (Value, error) {
			if a[0].IsNull() {
				return IntValue(0), nil
			}
			return IntValue(a[0].Ref.hash), nil
		}),
		static("lineSeparator", "()Ljava/lang/String;", func(t *Thread, _ *Object, _ []Value) (Value, error) {
			return RefValue(t.vm.intern("\n")), nil
		}),
		static("gc", "()V", noop),
		static("arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", func(t *Thread, _ *Object, a []Value) (Value, error) {
			src, err := t.arrayOf(a[0])
			if err != nil {
				return Value{}, err
			}
			dst, err := t.arrayOf(a[2])
			if err != nil {
				return Value{}, err
			}
			sp, dp, n := a[1].Int, a[3].Int, a[4].Int
			if sp < 0 || dp < 0 || n < 0 || int(sp+n) > len(src.Array) || int(dp+n) > len(dst.Array) {
				return Value{}, t.throwf("java/lang/ArrayIndexOutOfBoundsException", "arraycopy: last source index %d out of bounds for length %d", sp+n, len(src.Array))
			}
			if src.Class.Name != dst.Class.Name && (src.Class.Component == nil || dst.Class.Component == nil) {
				return Value{}, t.throw("java/lang/ArrayStoreException", "arraycopy: type mismatch")
			}
			copy(dst.Array[dp:dp+n], src.Array[sp:sp+n])
			return Value{}, nil
		}),
	}
}
