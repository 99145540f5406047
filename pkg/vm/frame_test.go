package vm

import (
	"testing"
)

func TestFramePushPop(t *testing.T) {
	t.Run("LIFO order", func(t *testing.T) {
		frame := NewFrame(0, 10, nil, nil)

		frame.Push(IntValue(10))
		frame.Push(LongValue(20))
		frame.Push(RefValue(nil))

		if v := frame.Pop(); !v.IsNull() {
			t.Errorf("first Pop: got %+v, want null", v)
		}
		if v := frame.Pop(); v.Type != TypeLong || v.Long != 20 {
			t.Errorf("second Pop: got %+v, want long 20", v)
		}
		if v := frame.Pop(); v.Int != 10 {
			t.Errorf("third Pop: got %d, want 10", v.Int)
		}
	})

	t.Run("peek does not pop", func(t *testing.T) {
		frame := NewFrame(0, 2, nil, nil)
		frame.Push(IntValue(7))
		if v := frame.Peek(); v.Int != 7 {
			t.Errorf("Peek: got %d, want 7", v.Int)
		}
		if frame.SP != 1 {
			t.Errorf("SP after Peek: got %d, want 1", frame.SP)
		}
	})

	t.Run("reset empties the stack", func(t *testing.T) {
		frame := NewFrame(0, 3, nil, nil)
		frame.Push(IntValue(1))
		frame.Push(IntValue(2))
		frame.Reset()
		frame.Push(IntValue(3))
		if v := frame.Pop(); v.Int != 3 {
			t.Errorf("got %d, want 3", v.Int)
		}
		if frame.SP != 0 {
			t.Errorf("SP: got %d, want 0", frame.SP)
		}
	})

	t.Run("overflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		frame.Push(IntValue(1))
		defer func() {
			if recover() == nil {
				t.Error("expected panic on overflow")
			}
		}()
		frame.Push(IntValue(2))
	})

	t.Run("underflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		defer func() {
			if recover() == nil {
				t.Error("expected panic on underflow")
			}
		}()
		frame.Pop()
	})
}

func TestFrameLocalVars(t *testing.T) {
	frame := NewFrame(4, 0, nil, nil)
	frame.SetLocal(0, IntValue(10))
	frame.SetLocal(1, DoubleValue(2.5))
	frame.SetLocal(3, IntValue(40))

	if v := frame.GetLocal(0); v.Int != 10 {
		t.Errorf("local 0: got %d, want 10", v.Int)
	}
	if v := frame.GetLocal(1); v.Double != 2.5 {
		t.Errorf("local 1: got %v, want 2.5", v.Double)
	}
	if v := frame.GetLocal(2); v.Int != 0 || v.Ref != nil {
		t.Errorf("local 2: got %+v, want zero", v)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range local")
		}
	}()
	frame.GetLocal(4)
}

func TestFrameOperands(t *testing.T) {
	code := []byte{0xFF, 0x12, 0x34, 0xFF, 0xFE, 0x80, 0x00, 0x00, 0x01}
	frame := NewFrame(0, 0, code, nil)

	if got := frame.ReadI8(); got != -1 {
		t.Errorf("ReadI8: got %d, want -1", got)
	}
	if got := frame.ReadU16(); got != 0x1234 {
		t.Errorf("ReadU16: got %#x, want 0x1234", got)
	}
	if got := frame.ReadI16(); got != -2 {
		t.Errorf("ReadI16: got %d, want -2", got)
	}
	if got := frame.ReadI32(); got != -2147483647 {
		t.Errorf("ReadI32: got %d, want -2147483647", got)
	}
	if frame.PC != len(code) {
		t.Errorf("PC: got %d, want %d", frame.PC, len(code))
	}
}

func TestZeroValue(t *testing.T) {
	tests := []struct {
		desc string
		want ValueType
	}{
		{"I", TypeInt},
		{"Z", TypeInt},
		{"J", TypeLong},
		{"F", TypeFloat},
		{"D", TypeDouble},
		{"Ljava/lang/String;", TypeNull},
		{"[I", TypeNull},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := zeroValue(tt.desc).Type; got != tt.want {
				t.Errorf("zeroValue(%q).Type = %d, want %d", tt.desc, got, tt.want)
			}
		})
	}
}
