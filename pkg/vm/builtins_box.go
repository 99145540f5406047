package vm

import (
	"cmp"
	"math"
	"strconv"

	"github.com/daimatz/gojni/pkg/classfile"
)

// boxSpec describes a primitive wrapper class. Instances keep the primitive
// Value in Object.Native.
type boxSpec struct {
	name   string
	prim   string
	parse  string // name of the static parseX method, if any
	number bool
	min    Value
	max    Value
	hash   func(Value) int32
	parseF func(string) (Value, bool)
}

var primNames = map[string]string{
	"Z": "boolean", "B": "byte", "C": "char", "S": "short",
	"I": "int", "J": "long", "F": "float", "D": "double",
}

func parseIntBits(bits int) func(string) (Value, bool) {
	return func(s string) (Value, bool) {
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return Value{}, false
		}
		if bits == 64 {
			return LongValue(n), true
		}
		return IntValue(int32(n)), true
	}
}

func parseFloatBits(bits int) func(string) (Value, bool) {
	return func(s string) (Value, bool) {
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return Value{}, false
		}
		if bits == 32 {
			return FloatValue(float32(f)), true
		}
		return DoubleValue(f), true
	}
}

var boxSpecs = []boxSpec{
	{
		name: "java/lang/Integer", prim: "I", parse: "parseInt", number: true,
		min: IntValue(math.MinInt32), max: IntValue(math.MaxInt32),
		hash: func(v Value) int32 { return v.Int }, parseF: parseIntBits(32),
	},
	{
		name: "java/lang/Long", prim: "J", parse: "parseLong", number: true,
		min: LongValue(math.MinInt64), max: LongValue(math.MaxInt64),
		hash:   func(v Value) int32 { return int32(v.Long ^ int64(uint64(v.Long)>>32)) },
		parseF: parseIntBits(64),
	},
	{
		name: "java/lang/Short", prim: "S", parse: "parseShort", number: true,
		min: IntValue(math.MinInt16), max: IntValue(math.MaxInt16),
		hash: func(v Value) int32 { return v.Int }, parseF: parseIntBits(16),
	},
	{
		name: "java/lang/Byte", prim: "B", parse: "parseByte", number: true,
		min: IntValue(math.MinInt8), max: IntValue(math.MaxInt8),
		hash: func(v Value) int32 { return v.Int }, parseF: parseIntBits(8),
	},
	{
		name: "java/lang/Float", prim: "F", parse: "parseFloat", number: true,
		min: FloatValue(math.SmallestNonzeroFloat32), max: FloatValue(math.MaxFloat32),
		hash:   func(v Value) int32 { return int32(math.Float32bits(v.Float)) },
		parseF: parseFloatBits(32),
	},
	{
		name: "java/lang/Double", prim: "D", parse: "parseDouble", number: true,
		min: DoubleValue(math.SmallestNonzeroFloat64), max: DoubleValue(math.MaxFloat64),
		hash: func(v Value) int32 {
			bits := math.Float64bits(v.Double)
			return int32(bits ^ bits>>32)
		},
		parseF: parseFloatBits(64),
	},
	{
		name: "java/lang/Boolean", prim: "Z", parse: "parseBoolean",
		hash: func(v Value) int32 {
			if v.Int != 0 {
				return 1231
			}
			return 1237
		},
		parseF: func(s string) (Value, bool) {
			b, _ := strconv.ParseBool(s)
			return BoolValue(b), true
		},
	},
	{
		name: "java/lang/Character", prim: "C",
		min: IntValue(0), max: IntValue(math.MaxUint16),
		hash: func(v Value) int32 { return v.Int },
	},
}

func init() {
	register(&builtin{
		name:  "java/lang/Number",
		super: "java/lang/Object",
		flags: classfile.AccPublic | classfile.AccAbstract | classfile.AccSuper,
		methods: []builtinMethod{
			virtual("<init>", "()V", noop),
			abstract("intValue", "()I"),
			abstract("longValue", "()J"),
			abstract("floatValue", "()F"),
			abstract("doubleValue", "()D"),
			virtual("byteValue", "()B", func(t *Thread, this *Object, _ []Value) (Value, error) {
				v, err := t.callVirtual(this, "intValue", "()I")
				return IntValue(int32(int8(v.Int))), err
			}),
			virtual("shortValue", "()S", func(t *Thread, this *Object, _ []Value) (Value, error) {
				v, err := t.callVirtual(this, "intValue", "()I")
				return IntValue(int32(int16(v.Int))), err
			}),
		},
	})
	for _, spec := range boxSpecs {
		register(spec.builtin())
	}
}

// boxedValue returns the primitive held by a box, or false for other objects.
func boxedValue(o *Object) (Value, bool) {
	v, ok := o.Native.(Value)
	return v, ok
}

// convertPrim converts a primitive Value between Java primitive kinds.
func convertPrim(v Value, from, to string) Value {
	var (
		i int64
		f float64
	)
	switch from {
	case "J":
		i, f = v.Long, float64(v.Long)
	case "F":
		f = float64(v.Float)
		i = toInt64(f)
	case "D":
		f = v.Double
		i = toInt64(f)
	default:
		i, f = int64(v.Int), float64(v.Int)
	}
	isFloat := from == "F" || from == "D"
	switch to {
	case "J":
		return LongValue(i)
	case "F":
		return FloatValue(float32(f))
	case "D":
		return DoubleValue(f)
	case "I":
		if isFloat {
			return IntValue(toInt32(f))
		}
		return IntValue(int32(i))
	case "S":
		return IntValue(int32(int16(i)))
	case "B":
		return IntValue(int32(int8(i)))
	}
	return IntValue(int32(i))
}

func (spec boxSpec) box(t *Thread, v Value) (*Object, error) {
	c, err := t.resolveClass(spec.name)
	if err != nil {
		return nil, err
	}
	if spec.prim == "I" {
		if cached, ok := t.vm.integerCache(c).Get(v.Int); ok {
			return cached, nil
		}
	}
	obj := newObject(c)
	obj.Native = v
	return obj, nil
}

func (spec boxSpec) builtin() *builtin {
	self := "L" + spec.name + ";"
	prim := spec.prim
	value := func(this *Object) Value {
		v, _ := boxedValue(this)
		return v
	}
	parse := func(t *Thread, arg Value) (Value, error) {
		s, err := t.stringArg(arg)
		if err != nil {
			return Value{}, err
		}
		v, ok := spec.parseF(s)
		if !ok {
			return Value{}, t.throwf("java/lang/NumberFormatException", "For input string: \"%s\"", s)
		}
		return v, nil
	}

	b := &builtin{
		name:  spec.name,
		super: "java/lang/Object",
		flags: classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		methods: []builtinMethod{
			virtual("<init>", "("+prim+")V", func(_ *Thread, this *Object, args []Value) (Value, error) {
				this.Native = args[0]
				return Value{}, nil
			}),
			static("valueOf", "("+prim+")"+self, func(t *Thread, _ *Object, args []Value) (Value, error) {
				obj, err := spec.box(t, args[0])
				return RefValue(obj), err
			}),
			static("toString", "("+prim+")Ljava/lang/String;", func(t *Thread, _ *Object, args []Value) (Value, error) {
				return t.newStringValue(formatPrimitive(prim[0], args[0])), nil
			}),
			virtual(primNames[prim]+"Value", "()"+prim, func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return value(this), nil
			}),
			virtual("toString", "()Ljava/lang/String;", func(t *Thread, this *Object, _ []Value) (Value, error) {
				return t.newStringValue(formatPrimitive(prim[0], value(this))), nil
			}),
			virtual("hashCode", "()I", func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return IntValue(spec.hash(value(this))), nil
			}),
			virtual("equals", "(Ljava/lang/Object;)Z", func(_ *Thread, this *Object, args []Value) (Value, error) {
				if args[0].IsNull() || args[0].Ref.Class != this.Class {
					return BoolValue(false), nil
				}
				other, _ := boxedValue(args[0].Ref)
				return BoolValue(other == value(this)), nil
			}),
			virtual("compareTo", "("+self+")I", func(t *Thread, this *Object, args []Value) (Value, error) {
				if args[0].IsNull() {
					return Value{}, t.throw("java/lang/NullPointerException", "")
				}
				x, _ := boxedValue(args[0].Ref)
				v := value(this)
				switch prim {
				case "J":
					return IntValue(int32(cmp.Compare(v.Long, x.Long))), nil
				case "F", "D":
					a, b := convertPrim(v, prim, "D").Double, convertPrim(x, prim, "D").Double
					return IntValue(floatCompare(a, b, true)), nil
				}
				return IntValue(int32(cmp.Compare(v.Int, x.Int))), nil
			}),
		},
	}
	if spec.parseF != nil {
		b.methods = append(b.methods,
			static(spec.parse, "(Ljava/lang/String;)"+prim, func(t *Thread, _ *Object, args []Value) (Value, error) {
				return parse(t, args[0])
			}),
			static("valueOf", "(Ljava/lang/String;)"+self, func(t *Thread, _ *Object, args []Value) (Value, error) {
				v, err := parse(t, args[0])
				if err != nil {
					return Value{}, err
				}
				obj, err := spec.box(t, v)
				return RefValue(obj), err
			}),
		)
	}
	if spec.number {
		b.super = "java/lang/Number"
		for _, to := range []string{"I", "J", "F", "D", "S", "B"} {
			if to == prim {
				continue
			}
			b.methods = append(b.methods, virtual(primNames[to]+"Value", "()"+to, func(_ *Thread, this *Object, _ []Value) (Value, error) {
				return convertPrim(value(this), prim, to), nil
			}))
		}
	}
	if prim != "Z" {
		b.fields = []builtinField{constant("MIN_VALUE", prim), constant("MAX_VALUE", prim)}
		b.clinit = func(_ *Thread, c *Class) error {
			c.setStatic("MIN_VALUE", spec.min)
			c.setStatic("MAX_VALUE", spec.max)
			return nil
		}
	}
	if prim == "Z" {
		b.fields = []builtinField{constant("TRUE", self), constant("FALSE", self)}
		b.clinit = func(t *Thread, c *Class) error {
			for name, v := range map[string]bool{"TRUE": true, "FALSE": false} {
				obj := newObject(c)
				obj.Native = BoolValue(v)
				c.setStatic(name, RefValue(obj))
			}
			return nil
		}
	}
	return b
}
