package vm

import (
	"errors"
	"io"
	"math"
	"testing"
)

// newTestThread creates a VM with an empty class path and attaches a thread
// that is detached again when the test ends.
func newTestThread(t *testing.T, opts ...Options) *Thread {
	t.Helper()
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Stderr == nil {
		o.Stderr = io.Discard
	}
	v, err := Create(o)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	th, err := v.AttachCurrentThread()
	if err != nil {
		t.Fatalf("AttachCurrentThread: %v", err)
	}
	t.Cleanup(func() {
		if err := v.DetachCurrentThread(th); err != nil {
			t.Errorf("DetachCurrentThread: %v", err)
		}
		if err := v.Destroy(); err != nil {
			t.Errorf("Destroy: %v", err)
		}
	})
	return th
}

// execute runs raw bytecode that does not touch the constant pool.
func execute(t *testing.T, code []byte, locals ...Value) (Value, error) {
	t.Helper()
	th := newTestThread(t)
	frame := NewFrame(uint16(max(4, len(locals))), 10, code, nil)
	for i, v := range locals {
		frame.SetLocal(i, v)
	}
	return th.execute(frame)
}

func executeAndGetInt(t *testing.T, code []byte, locals ...int32) int32 {
	t.Helper()
	vals := make([]Value, len(locals))
	for i, l := range locals {
		vals[i] = IntValue(l)
	}
	v, err := execute(t, code, vals...)
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	return v.Int
}

func TestIconst(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		want   int32
	}{
		{"iconst_m1", 0x02, -1},
		{"iconst_0", 0x03, 0},
		{"iconst_3", 0x06, 3},
		{"iconst_5", 0x08, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, []byte{tt.opcode, 0xAC})
			if got != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestIntArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		a, b   int32
		want   int32
	}{
		{"iadd", 0x60, 3, 4, 7},
		{"isub", 0x64, 3, 4, -1},
		{"imul", 0x68, -3, 4, -12},
		{"idiv truncates", 0x6C, -7, 2, -3},
		{"irem sign of dividend", 0x70, -7, 2, -1},
		{"ishl masks count", 0x78, 1, 33, 2},
		{"ishr", 0x7A, -8, 1, -4},
		{"iushr", 0x7C, -1, 28, 15},
		{"iand", 0x7E, 6, 3, 2},
		{"ior", 0x80, 6, 3, 7},
		{"ixor", 0x82, 6, 3, 5},
		{"iadd overflow wraps", 0x60, math.MaxInt32, 1, math.MinInt32},
		{"idiv overflow", 0x6C, math.MinInt32, -1, math.MinInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := []byte{0x1A, 0x1B, tt.opcode, 0xAC} // iload_0, iload_1, op, ireturn
			if got := executeAndGetInt(t, code, tt.a, tt.b); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLongAndCategory2(t *testing.T) {
	t.Run("ladd from locals", func(t *testing.T) {
		// lload_0, lload_2, ladd, lreturn
		v, err := execute(t, []byte{0x1E, 0x20, 0x61, 0xAD}, LongValue(1<<40), Value{}, LongValue(5))
		if err != nil {
			t.Fatal(err)
		}
		if v.Long != 1<<40+5 {
			t.Errorf("got %d, want %d", v.Long, int64(1<<40+5))
		}
	})

	t.Run("dup2 duplicates one long", func(t *testing.T) {
		// lconst_1, dup2, ladd, lreturn
		v, err := execute(t, []byte{0x0A, 0x5C, 0x61, 0xAD})
		if err != nil {
			t.Fatal(err)
		}
		if v.Long != 2 {
			t.Errorf("got %d, want 2", v.Long)
		}
	})

	t.Run("pop2 drops one long", func(t *testing.T) {
		// iconst_4, lconst_1, pop2, ireturn
		if got := executeAndGetInt(t, []byte{0x07, 0x0A, 0x58, 0xAC}); got != 4 {
			t.Errorf("got %d, want 4", got)
		}
	})

	t.Run("lcmp", func(t *testing.T) {
		// lconst_0, lconst_1, lcmp, ireturn
		if got := executeAndGetInt(t, []byte{0x09, 0x0A, 0x94, 0xAC}); got != -1 {
			t.Errorf("got %d, want -1", got)
		}
	})
}

func TestConversions(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name  string
		code  []byte
		local Value
		want  int32
	}{
		{"i2b", []byte{0x1A, 0x91, 0xAC}, IntValue(200), -56},
		{"i2c", []byte{0x1A, 0x92, 0xAC}, IntValue(-1), 65535},
		{"i2s", []byte{0x1A, 0x93, 0xAC}, IntValue(70000), 4464},
		{"d2i NaN", []byte{0x26, 0x8E, 0xAC}, DoubleValue(nan), 0},
		{"d2i saturates", []byte{0x26, 0x8E, 0xAC}, DoubleValue(1e20), math.MaxInt32},
		{"f2i truncates", []byte{0x22, 0x8B, 0xAC}, FloatValue(-2.9), -2},
		{"fcmpg NaN", []byte{0x22, 0x22, 0x96, 0xAC}, FloatValue(float32(nan)), 1},
		{"fcmpl NaN", []byte{0x22, 0x22, 0x95, 0xAC}, FloatValue(float32(nan)), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := execute(t, tt.code, tt.local)
			if err != nil {
				t.Fatal(err)
			}
			if v.Int != tt.want {
				t.Errorf("got %d, want %d", v.Int, tt.want)
			}
		})
	}
}

func TestLoopAndBranch(t *testing.T) {
	// sum = 0; while (n > 0) { sum += n; n--; } return sum;
	code := []byte{
		0x03,             // 0: iconst_0
		0x3C,             // 1: istore_1
		0x1A,             // 2: iload_0
		0x9E, 0x00, 0x0D, // 3: ifle 16
		0x1B,             // 6: iload_1
		0x1A,             // 7: iload_0
		0x60,             // 8: iadd
		0x3C,             // 9: istore_1
		0x84, 0x00, 0xFF, // 10: iinc 0, -1
		0xA7, 0xFF, 0xF5, // 13: goto 2
		0x1B, // 16: iload_1
		0xAC, // 17: ireturn
	}
	tests := []struct{ n, want int32 }{{0, 0}, {1, 1}, {10, 55}}
	for _, tt := range tests {
		if got := executeAndGetInt(t, code, tt.n, 0); got != tt.want {
			t.Errorf("sum(%d): got %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestTableswitch(t *testing.T) {
	code := []byte{
		0x1A,       // 0: iload_0
		0xAA,       // 1: tableswitch
		0x00, 0x00, // padding
		0, 0, 0, 29, // default -> 30
		0, 0, 0, 0, // low
		0, 0, 0, 1, // high
		0, 0, 0, 23, // 0 -> 24
		0, 0, 0, 26, // 1 -> 27
		0x10, 10, 0xAC, // 24: bipush 10, ireturn
		0x10, 20, 0xAC, // 27: bipush 20, ireturn
		0x02, 0xAC, // 30: iconst_m1, ireturn
	}
	tests := []struct{ in, want int32 }{{0, 10}, {1, 20}, {2, -1}, {-5, -1}}
	for _, tt := range tests {
		if got := executeAndGetInt(t, code, tt.in); got != tt.want {
			t.Errorf("switch(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestArrays(t *testing.T) {
	t.Run("store and load", func(t *testing.T) {
		code := []byte{
			0x06,       // iconst_3
			0xBC, 10,   // newarray int
			0x59,       // dup
			0x04,       // iconst_1
			0x10, 7,    // bipush 7
			0x4F,       // iastore
			0x04,       // iconst_1
			0x2E,       // iaload
			0xAC,       // ireturn
		}
		if got := executeAndGetInt(t, code); got != 7 {
			t.Errorf("got %d, want 7", got)
		}
	})

	t.Run("bastore narrows", func(t *testing.T) {
		code := []byte{0x04, 0xBC, 8, 0x59, 0x03, 0x11, 0x01, 0x2C, 0x54, 0x03, 0x33, 0xAC}
		// iconst_1, newarray byte, dup, iconst_0, sipush 300, bastore, iconst_0, baload, ireturn
		if got := executeAndGetInt(t, code); got != 44 {
			t.Errorf("got %d, want 44", got)
		}
	})

	t.Run("index out of bounds", func(t *testing.T) {
		_, err := execute(t, []byte{0x04, 0xBC, 10, 0x08, 0x2E, 0xAC})
		assertJavaException(t, err, "java/lang/ArrayIndexOutOfBoundsException", "Index 5 out of bounds for length 1")
	})

	t.Run("negative size", func(t *testing.T) {
		_, err := execute(t, []byte{0x02, 0xBC, 10, 0xB0})
		assertJavaException(t, err, "java/lang/NegativeArraySizeException", "-1")
	})
}

func TestDivisionByZero(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"idiv", []byte{0x04, 0x03, 0x6C, 0xAC}},
		{"irem", []byte{0x04, 0x03, 0x70, 0xAC}},
		{"ldiv", []byte{0x0A, 0x09, 0x6D, 0xAD}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.code)
			assertJavaException(t, err, "java/lang/ArithmeticException", "/ by zero")
		})
	}

	t.Run("fdiv yields infinity", func(t *testing.T) {
		v, err := execute(t, []byte{0x0C, 0x0B, 0x6E, 0xAE}) // fconst_1, fconst_0, fdiv, freturn
		if err != nil {
			t.Fatal(err)
		}
		if !math.IsInf(float64(v.Float), 1) {
			t.Errorf("got %v, want +Inf", v.Float)
		}
	})
}

func TestAthrowNull(t *testing.T) {
	_, err := execute(t, []byte{0x01, 0xBF}) // aconst_null, athrow
	assertJavaException(t, err, "java/lang/NullPointerException", "")
}

func TestUnknownOpcode(t *testing.T) {
	_, err := execute(t, []byte{0xCB})
	if err == nil {
		t.Fatal("expected error")
	}
	var je *JavaException
	if errors.As(err, &je) {
		t.Errorf("unknown opcode should not be a Java exception: %v", err)
	}
}

func assertJavaException(t *testing.T, err error, class, msg string) {
	t.Helper()
	var je *JavaException
	if !errors.As(err, &je) {
		t.Fatalf("got error %v, want %s", err, class)
	}
	if je.ClassName() != class {
		t.Errorf("exception class: got %s, want %s", je.ClassName(), class)
	}
	if got := throwableMessage(je.Object); got != msg {
		t.Errorf("exception message: got %q, want %q", got, msg)
	}
}
