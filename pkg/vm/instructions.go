package vm

import (
	"fmt"
	"math"
)

// Opcodes
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconstM1        = 0x02
	OpIconst0         = 0x03
	OpIconst1         = 0x04
	OpIconst2         = 0x05
	OpIconst3         = 0x06
	OpIconst4         = 0x07
	OpIconst5         = 0x08
	OpLconst0         = 0x09
	OpLconst1         = 0x0A
	OpFconst0         = 0x0B
	OpFconst1         = 0x0C
	OpFconst2         = 0x0D
	OpDconst0         = 0x0E
	OpDconst1         = 0x0F
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpLload           = 0x16
	OpFload           = 0x17
	OpDload           = 0x18
	OpAload           = 0x19
	OpIload0          = 0x1A
	OpAload3          = 0x2D
	OpIaload          = 0x2E
	OpLaload          = 0x2F
	OpFaload          = 0x30
	OpDaload          = 0x31
	OpAaload          = 0x32
	OpBaload          = 0x33
	OpCaload          = 0x34
	OpSaload          = 0x35
	OpIstore          = 0x36
	OpLstore          = 0x37
	OpFstore          = 0x38
	OpDstore          = 0x39
	OpAstore          = 0x3A
	OpIstore0         = 0x3B
	OpAstore3         = 0x4E
	OpIastore         = 0x4F
	OpLastore         = 0x50
	OpFastore         = 0x51
	OpDastore         = 0x52
	OpAastore         = 0x53
	OpBastore         = 0x54
	OpCastore         = 0x55
	OpSastore         = 0x56
	OpPop             = 0x57
	OpPop2            = 0x58
	OpDup             = 0x59
	OpDupX1           = 0x5A
	OpDupX2           = 0x5B
	OpDup2            = 0x5C
	OpSwap            = 0x5F
	OpIadd            = 0x60
	OpLadd            = 0x61
	OpFadd            = 0x62
	OpDadd            = 0x63
	OpIsub            = 0x64
	OpLsub            = 0x65
	OpFsub            = 0x66
	OpDsub            = 0x67
	OpImul            = 0x68
	OpLmul            = 0x69
	OpFmul            = 0x6A
	OpDmul            = 0x6B
	OpIdiv            = 0x6C
	OpLdiv            = 0x6D
	OpFdiv            = 0x6E
	OpDdiv            = 0x6F
	OpIrem            = 0x70
	OpLrem            = 0x71
	OpFrem            = 0x72
	OpDrem            = 0x73
	OpIneg            = 0x74
	OpLneg            = 0x75
	OpFneg            = 0x76
	OpDneg            = 0x77
	OpIshl            = 0x78
	OpLshl            = 0x79
	OpIshr            = 0x7A
	OpLshr            = 0x7B
	OpIushr           = 0x7C
	OpLushr           = 0x7D
	OpIand            = 0x7E
	OpLand            = 0x7F
	OpIor             = 0x80
	OpLor             = 0x81
	OpIxor            = 0x82
	OpLxor            = 0x83
	OpIinc            = 0x84
	OpI2l             = 0x85
	OpI2f             = 0x86
	OpI2d             = 0x87
	OpL2i             = 0x88
	OpL2f             = 0x89
	OpL2d             = 0x8A
	OpF2i             = 0x8B
	OpF2l             = 0x8C
	OpF2d             = 0x8D
	OpD2i             = 0x8E
	OpD2l             = 0x8F
	OpD2f             = 0x90
	OpI2b             = 0x91
	OpI2c             = 0x92
	OpI2s             = 0x93
	OpLcmp            = 0x94
	OpFcmpl           = 0x95
	OpFcmpg           = 0x96
	OpDcmpl           = 0x97
	OpDcmpg           = 0x98
	OpIfeq            = 0x99
	OpIfne            = 0x9A
	OpIflt            = 0x9B
	OpIfge            = 0x9C
	OpIfgt            = 0x9D
	OpIfle            = 0x9E
	OpIfIcmpeq        = 0x9F
	OpIfIcmpne        = 0xA0
	OpIfIcmplt        = 0xA1
	OpIfIcmpge        = 0xA2
	OpIfIcmpgt        = 0xA3
	OpIfIcmple        = 0xA4
	OpIfAcmpeq        = 0xA5
	OpIfAcmpne        = 0xA6
	OpGoto            = 0xA7
	OpTableswitch     = 0xAA
	OpLookupswitch    = 0xAB
	OpIreturn         = 0xAC
	OpLreturn         = 0xAD
	OpFreturn         = 0xAE
	OpDreturn         = 0xAF
	OpAreturn         = 0xB0
	OpReturn          = 0xB1
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpInvokedynamic   = 0xBA
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpArraylength     = 0xBE
	OpAthrow          = 0xBF
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpMonitorenter    = 0xC2
	OpMonitorexit     = 0xC3
	OpWide            = 0xC4
	OpMultianewarray  = 0xC5
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
	OpGotoW           = 0xC8
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (t *Thread) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	// xload_<n> and xstore_<n> come in runs of four per type.
	if opcode >= OpIload0 && opcode <= OpAload3 {
		frame.Push(frame.GetLocal(int(opcode-OpIload0) % 4))
		return Value{}, false, nil
	}
	if opcode >= OpIstore0 && opcode <= OpAstore3 {
		frame.SetLocal(int(opcode-OpIstore0)%4, frame.Pop())
		return Value{}, false, nil
	}

	switch opcode {
	case OpNop:
		// do nothing

	// --- Constant load instructions ---
	case OpAconstNull:
		frame.Push(NullValue())

	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		frame.Push(IntValue(int32(opcode) - OpIconst0))

	case OpLconst0, OpLconst1:
		frame.Push(LongValue(int64(opcode - OpLconst0)))

	case OpFconst0, OpFconst1, OpFconst2:
		frame.Push(FloatValue(float32(opcode - OpFconst0)))

	case OpDconst0, OpDconst1:
		frame.Push(DoubleValue(float64(opcode - OpDconst0)))

	case OpBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))

	case OpSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))

	case OpLdc:
		return t.executeLdc(frame, uint16(frame.ReadU8()))

	case OpLdcW:
		return t.executeLdc(frame, frame.ReadU16())

	case OpLdc2W:
		return t.executeLdc2W(frame, frame.ReadU16())

	// --- Local variables ---
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))

	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())

	case OpIinc:
		index := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))

	case OpWide:
		return t.executeWide(frame)

	// --- Arrays ---
	case OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload:
		index := frame.Pop().Int
		arr, err := t.arrayOf(frame.Pop())
		if err != nil {
			return Value{}, false, err
		}
		if err := t.checkIndex(arr, index); err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Array[index])

	case OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := t.arrayOf(frame.Pop())
		if err != nil {
			return Value{}, false, err
		}
		if err := t.checkIndex(arr, index); err != nil {
			return Value{}, false, err
		}
		switch opcode {
		case OpBastore:
			value = IntValue(int32(int8(value.Int)))
		case OpCastore:
			value = IntValue(int32(uint16(value.Int)))
		case OpSastore:
			value = IntValue(int32(int16(value.Int)))
		case OpAastore:
			if !value.IsNull() && arr.Class.Component != nil && !value.Ref.Class.IsSubclassOf(arr.Class.Component) {
				return Value{}, false, t.throw("java/lang/ArrayStoreException", value.Ref.Class.JavaName())
			}
		}
		arr.Array[index] = value

	case OpNewarray:
		return t.executeNewarray(frame)

	case OpAnewarray:
		return t.executeAnewarray(frame)

	case OpMultianewarray:
		return t.executeMultianewarray(frame)

	case OpArraylength:
		arr, err := t.arrayOf(frame.Pop())
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(IntValue(int32(len(arr.Array))))

	// --- Stack manipulation ---
	case OpPop:
		frame.Pop()

	case OpPop2:
		if v := frame.Pop(); !isCategory2(v) {
			frame.Pop()
		}

	case OpDup:
		frame.Push(frame.Peek())

	case OpDupX1:
		v1, v2 := frame.Pop(), frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case OpDupX2:
		v1, v2, v3 := frame.Pop(), frame.Pop(), frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)

	case OpDup2:
		v1 := frame.Pop()
		if isCategory2(v1) {
			frame.Push(v1)
			frame.Push(v1)
			break
		}
		v2 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case OpSwap:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case OpIadd:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int + v2.Int))
	case OpLadd:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long + v2.Long))
	case OpFadd:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(v1.Float + v2.Float))
	case OpDadd:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(DoubleValue(v1.Double + v2.Double))

	case OpIsub:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int - v2.Int))
	case OpLsub:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long - v2.Long))
	case OpFsub:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(v1.Float - v2.Float))
	case OpDsub:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(DoubleValue(v1.Double - v2.Double))

	case OpImul:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int * v2.Int))
	case OpLmul:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long * v2.Long))
	case OpFmul:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(v1.Float * v2.Float))
	case OpDmul:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(DoubleValue(v1.Double * v2.Double))

	case OpIdiv:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, t.throw("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(IntValue(v1.Int / v2.Int))
	case OpLdiv:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Long == 0 {
			return Value{}, false, t.throw("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(LongValue(v1.Long / v2.Long))
	case OpFdiv:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(v1.Float / v2.Float))
	case OpDdiv:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(DoubleValue(v1.Double / v2.Double))

	case OpIrem:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, t.throw("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(IntValue(v1.Int % v2.Int))
	case OpLrem:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Long == 0 {
			return Value{}, false, t.throw("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(LongValue(v1.Long % v2.Long))
	case OpFrem:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(float32(math.Mod(float64(v1.Float), float64(v2.Float)))))
	case OpDrem:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(DoubleValue(math.Mod(v1.Double, v2.Double)))

	case OpIneg:
		frame.Push(IntValue(-frame.Pop().Int))
	case OpLneg:
		frame.Push(LongValue(-frame.Pop().Long))
	case OpFneg:
		frame.Push(FloatValue(-frame.Pop().Float))
	case OpDneg:
		frame.Push(DoubleValue(-frame.Pop().Double))

	// --- Bit operations ---
	case OpIshl:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int << (uint(v2.Int) & 0x1f)))
	case OpLshl:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long << (uint(v2.Int) & 0x3f)))
	case OpIshr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int >> (uint(v2.Int) & 0x1f)))
	case OpLshr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long >> (uint(v2.Int) & 0x3f)))
	case OpIushr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(int32(uint32(v1.Int) >> (uint(v2.Int) & 0x1f))))
	case OpLushr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(int64(uint64(v1.Long) >> (uint(v2.Int) & 0x3f))))
	case OpIand:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int & v2.Int))
	case OpLand:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long & v2.Long))
	case OpIor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int | v2.Int))
	case OpLor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long | v2.Long))
	case OpIxor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int ^ v2.Int))
	case OpLxor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(LongValue(v1.Long ^ v2.Long))

	// --- Type conversions ---
	case OpI2l:
		frame.Push(LongValue(int64(frame.Pop().Int)))
	case OpI2f:
		frame.Push(FloatValue(float32(frame.Pop().Int)))
	case OpI2d:
		frame.Push(DoubleValue(float64(frame.Pop().Int)))
	case OpL2i:
		frame.Push(IntValue(int32(frame.Pop().Long)))
	case OpL2f:
		frame.Push(FloatValue(float32(frame.Pop().Long)))
	case OpL2d:
		frame.Push(DoubleValue(float64(frame.Pop().Long)))
	case OpF2i:
		frame.Push(IntValue(toInt32(float64(frame.Pop().Float))))
	case OpF2l:
		frame.Push(LongValue(toInt64(float64(frame.Pop().Float))))
	case OpF2d:
		frame.Push(DoubleValue(float64(frame.Pop().Float)))
	case OpD2i:
		frame.Push(IntValue(toInt32(frame.Pop().Double)))
	case OpD2l:
		frame.Push(LongValue(toInt64(frame.Pop().Double)))
	case OpD2f:
		frame.Push(FloatValue(float32(frame.Pop().Double)))
	case OpI2b:
		frame.Push(IntValue(int32(int8(frame.Pop().Int))))
	case OpI2c:
		frame.Push(IntValue(int32(uint16(frame.Pop().Int))))
	case OpI2s:
		frame.Push(IntValue(int32(int16(frame.Pop().Int))))

	// --- Comparisons ---
	case OpLcmp:
		v2, v1 := frame.Pop(), frame.Pop()
		switch {
		case v1.Long > v2.Long:
			frame.Push(IntValue(1))
		case v1.Long < v2.Long:
			frame.Push(IntValue(-1))
		default:
			frame.Push(IntValue(0))
		}
	case OpFcmpl, OpFcmpg:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(floatCompare(float64(v1.Float), float64(v2.Float), opcode == OpFcmpg)))
	case OpDcmpl, OpDcmpg:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(floatCompare(v1.Double, v2.Double, opcode == OpDcmpg)))

	// --- Comparison and branch ---
	case OpIfeq:
		return t.executeBranchUnary(frame, func(v int32) bool { return v == 0 })
	case OpIfne:
		return t.executeBranchUnary(frame, func(v int32) bool { return v != 0 })
	case OpIflt:
		return t.executeBranchUnary(frame, func(v int32) bool { return v < 0 })
	case OpIfge:
		return t.executeBranchUnary(frame, func(v int32) bool { return v >= 0 })
	case OpIfgt:
		return t.executeBranchUnary(frame, func(v int32) bool { return v > 0 })
	case OpIfle:
		return t.executeBranchUnary(frame, func(v int32) bool { return v <= 0 })

	case OpIfIcmpeq:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case OpIfIcmpne:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case OpIfIcmplt:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case OpIfIcmpge:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case OpIfIcmpgt:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case OpIfIcmple:
		return t.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case OpIfAcmpeq, OpIfAcmpne:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		v2, v1 := frame.Pop(), frame.Pop()
		if sameRef(v1, v2) == (opcode == OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case OpIfnull, OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		if frame.Pop().IsNull() == (opcode == OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case OpGotoW:
		branchPC := frame.PC - 1
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case OpTableswitch:
		// PC of the tableswitch opcode
		opcodePC := frame.PC - 1
		// Padding to align to 4-byte boundary
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		offsets := make([]int32, int(high-low+1))
		for i := range offsets {
			offsets[i] = frame.ReadI32()
		}
		index := frame.Pop().Int
		if index >= low && index <= high {
			frame.PC = opcodePC + int(offsets[index-low])
		} else {
			frame.PC = opcodePC + int(defaultOffset)
		}

	case OpLookupswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			matchVal := frame.ReadI32()
			offset := frame.ReadI32()
			if key == matchVal {
				target = opcodePC + int(offset)
			}
		}
		frame.PC = target

	// --- Return ---
	case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn:
		return frame.Pop(), true, nil

	case OpReturn:
		return Value{}, true, nil

	// --- Fields, invocation and objects ---
	case OpGetstatic:
		return t.executeGetstatic(frame)
	case OpPutstatic:
		return t.executePutstatic(frame)
	case OpGetfield:
		return t.executeGetfield(frame)
	case OpPutfield:
		return t.executePutfield(frame)
	case OpInvokevirtual:
		return t.executeInvokevirtual(frame, false)
	case OpInvokeinterface:
		return t.executeInvokevirtual(frame, true)
	case OpInvokespecial:
		return t.executeInvokespecial(frame)
	case OpInvokestatic:
		return t.executeInvokestatic(frame)
	case OpNew:
		return t.executeNew(frame)

	case OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, t.throw("java/lang/NullPointerException", "")
		}
		return Value{}, false, &JavaException{Object: excRef.Ref}

	case OpCheckcast:
		return t.executeCheckcast(frame)
	case OpInstanceof:
		return t.executeInstanceof(frame)

	case OpMonitorenter, OpMonitorexit:
		// Threads never share Java objects through this VM's surface, so
		// monitors only need the null check.
		if frame.Pop().IsNull() {
			return Value{}, false, t.throw("java/lang/NullPointerException", "")
		}

	case OpInvokedynamic:
		return Value{}, false, fmt.Errorf("invokedynamic is not supported at PC=%d", frame.PC-1)

	default:
		return Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at PC=%d", opcode, frame.PC-1)
	}

	return Value{}, false, nil
}

// executeWide handles the wide prefix for local variable access and iinc.
func (t *Thread) executeWide(frame *Frame) (Value, bool, error) {
	opcode := frame.ReadU8()
	index := int(frame.ReadU16())
	switch opcode {
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		frame.Push(frame.GetLocal(index))
	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		frame.SetLocal(index, frame.Pop())
	case OpIinc:
		delta := int32(frame.ReadI16())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))
	default:
		return Value{}, false, fmt.Errorf("wide: unsupported opcode 0x%02X", opcode)
	}
	return Value{}, false, nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (t *Thread) executeBranchUnary(frame *Frame, cond func(int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (t *Thread) executeBranchBinary(frame *Frame, cond func(int32, int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int, v2.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

func isCategory2(v Value) bool {
	return v.Type == TypeLong || v.Type == TypeDouble
}

func sameRef(v1, v2 Value) bool {
	if v1.IsNull() || v2.IsNull() {
		return v1.IsNull() && v2.IsNull()
	}
	return v1.Ref == v2.Ref
}

// floatCompare implements fcmp<op>/dcmp<op>; nanGreater selects the g variant.
func floatCompare(a, b float64, nanGreater bool) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		if nanGreater {
			return 1
		}
		return -1
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// toInt32 and toInt64 saturate like the JVM's f2i/d2l family.
func toInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func toInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
