package vm

import (
	"errors"
	"fmt"

	"github.com/daimatz/gojni/pkg/classfile"
)

// Thread is a VM execution context bound to one caller. It is not safe for
// concurrent use; attach one Thread per goroutine.
type Thread struct {
	vm       *VM
	locals   *localTable
	pending  *Object
	depth    int
	detached bool
}

// VM returns the VM the thread is attached to.
func (t *Thread) VM() *VM { return t.vm }

// LocalRefCount returns the number of live local references.
func (t *Thread) LocalRefCount() int { return t.locals.len() }

// guard runs fn and turns any failure, including a Go panic raised by
// malformed bytecode, into the pending exception. It reports success.
// Nothing runs while an exception is pending.
func (t *Thread) guard(fn func() error) (ok bool) {
	if t.detached || t.pending != nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			t.pending = t.asThrowable(fmt.Errorf("%v", r))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		t.pending = t.asThrowable(err)
		return false
	}
	return true
}

// resolveClass loads a class, reporting absence as NoClassDefFoundError.
func (t *Thread) resolveClass(name string) (*Class, error) {
	c, err := t.vm.loadClass(name)
	if err == nil {
		return c, nil
	}
	var je *JavaException
	if errors.As(err, &je) {
		return nil, err
	}
	if errors.Is(err, ErrClassNotFound) {
		return nil, t.throw("java/lang/NoClassDefFoundError", name)
	}
	return nil, t.throw("java/lang/ClassFormatError", err.Error())
}

// initClass runs static initialization of c once. A thread re-entering the
// initialization it is already running sees the class as initialized.
func (t *Thread) initClass(c *Class) error {
	c.initMu.Lock()
	for c.init == initRunning && c.initThread != t {
		c.initCond.Wait()
	}
	switch c.init {
	case initDone, initRunning:
		c.initMu.Unlock()
		return nil
	case initFailed:
		c.initMu.Unlock()
		return t.throwf("java/lang/NoClassDefFoundError", "Could not initialize class %s", c.JavaName())
	}
	c.init = initRunning
	c.initThread = t
	c.initMu.Unlock()

	err := t.runInitializers(c)

	c.initMu.Lock()
	if err != nil {
		c.init = initFailed
	} else {
		c.init = initDone
	}
	c.initThread = nil
	c.initCond.Broadcast()
	c.initMu.Unlock()

	if err != nil {
		return t.wrapInitError(err)
	}
	return nil
}

func (t *Thread) runInitializers(c *Class) error {
	if c.Super != nil {
		if err := t.initClass(c.Super); err != nil {
			return err
		}
	}
	if c.clinit != nil {
		if err := c.clinit(t, c); err != nil {
			return err
		}
	}
	if m := c.DeclaredMethod("<clinit>", "()V"); m != nil {
		if _, err := t.invoke(m, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// wrapInitError reports non-Error throwables from a static initializer as
// ExceptionInInitializerError.
func (t *Thread) wrapInitError(err error) error {
	var je *JavaException
	if !errors.As(err, &je) {
		return err
	}
	errClass, lerr := t.vm.loadClass("java/lang/Error")
	if lerr != nil || je.Object.Class.IsSubclassOf(errClass) {
		return err
	}
	wrapped, nerr := t.newThrowable("java/lang/ExceptionInInitializerError", "")
	if nerr != nil {
		return err
	}
	wrapped.SetField("cause", RefValue(je.Object))
	return &JavaException{Object: wrapped}
}

// invoke runs m with the given receiver and arguments.
func (t *Thread) invoke(m *Method, this *Object, args []Value) (Value, error) {
	t.depth++
	defer func() { t.depth-- }()
	if t.depth > maxFrameDepth {
		return Value{}, t.throw("java/lang/StackOverflowError", "")
	}
	if m.Native != nil {
		return m.Native(t, this, args)
	}
	if m.Code == nil {
		return Value{}, t.throw("java/lang/AbstractMethodError", m.String())
	}

	frame := NewFrame(m.Code.MaxLocals, m.Code.MaxStack, m.Code.Code, m)
	slot := 0
	if !m.IsStatic() {
		frame.SetLocal(0, RefValue(this))
		slot = 1
	}
	for i, arg := range args {
		frame.SetLocal(slot, arg)
		slot += classfile.SlotSize(m.params[i])
	}
	return t.execute(frame)
}

// execute runs the frame's bytecode until it returns or throws an exception
// no handler of the frame catches.
func (t *Thread) execute(frame *Frame) (Value, error) {
	for frame.PC < len(frame.Code) {
		pc := frame.PC
		opcode := frame.Code[pc]
		frame.PC++

		retVal, hasReturn, err := t.executeInstruction(frame, opcode)
		if err != nil {
			var je *JavaException
			if !errors.As(err, &je) {
				return Value{}, err
			}
			handler, ok, herr := t.findHandler(frame, pc, je.Object)
			if herr != nil {
				return Value{}, herr
			}
			if !ok {
				return Value{}, err
			}
			frame.Reset()
			frame.Push(RefValue(je.Object))
			frame.PC = handler
			continue
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

func (t *Thread) findHandler(frame *Frame, pc int, exc *Object) (int, bool, error) {
	if frame.Method == nil || frame.Method.Code == nil {
		return 0, false, nil
	}
	for _, h := range frame.Method.Code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true, nil
		}
		name, err := classfile.GetClassName(frame.Class().File.ConstantPool, h.CatchType)
		if err != nil {
			return 0, false, err
		}
		catch, err := t.resolveClass(name)
		if err != nil {
			return 0, false, err
		}
		if exc.Class.IsSubclassOf(catch) {
			return int(h.HandlerPC), true, nil
		}
	}
	return 0, false, nil
}

// callVirtual invokes name+desc on obj's runtime class.
func (t *Thread) callVirtual(obj *Object, name, desc string, args ...Value) (Value, error) {
	if obj == nil {
		return Value{}, t.throwf("java/lang/NullPointerException", "invoking %s on null", name)
	}
	m := obj.Class.LookupMethod(name, desc)
	if m == nil || m.IsStatic() {
		return Value{}, t.throwf("java/lang/NoSuchMethodError", "%s.%s%s", obj.Class.Name, name, desc)
	}
	return t.invoke(m, obj, args)
}

// stringOf returns String.valueOf(obj) as a Go string.
func (t *Thread) stringOf(obj *Object) (string, error) {
	if obj == nil {
		return "null", nil
	}
	if s, ok := obj.GoString(); ok {
		return s, nil
	}
	v, err := t.callVirtual(obj, "toString", "()Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		return "null", nil
	}
	s, _ := v.Ref.GoString()
	return s, nil
}

func (t *Thread) newStringValue(s string) Value {
	return RefValue(t.vm.newString(s))
}
