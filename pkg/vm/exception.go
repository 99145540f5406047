package vm

import (
	"errors"
	"fmt"
)

// JavaException carries a thrown Throwable through Go call stacks.
type JavaException struct {
	Object *Object
}

func (e *JavaException) Error() string {
	msg := throwableMessage(e.Object)
	if msg == "" {
		return e.Object.Class.JavaName()
	}
	return fmt.Sprintf("%s: %s", e.Object.Class.JavaName(), msg)
}

// ClassName returns the internal name of the thrown class.
func (e *JavaException) ClassName() string { return e.Object.Class.Name }

func throwableMessage(obj *Object) string {
	v := obj.GetField("detailMessage")
	if v.IsNull() {
		return ""
	}
	s, _ := v.Ref.GoString()
	return s
}

// newThrowable instantiates a Throwable subclass without running Java code.
func (t *Thread) newThrowable(className, msg string) (*Object, error) {
	c, err := t.vm.loadClass(className)
	if err != nil {
		return nil, err
	}
	obj := newObject(c)
	if msg != "" {
		obj.SetField("detailMessage", RefValue(t.vm.newString(msg)))
	}
	return obj, nil
}

// throw builds a JavaException for a JDK exception class. If even the
// exception class cannot be loaded the load failure is returned instead.
func (t *Thread) throw(className, msg string) error {
	obj, err := t.newThrowable(className, msg)
	if err != nil {
		return err
	}
	return &JavaException{Object: obj}
}

// throwf is throw with a formatted message.
func (t *Thread) throwf(className, format string, args ...any) error {
	return t.throw(className, fmt.Sprintf(format, args...))
}

// asThrowable converts any interpreter failure into a throwable object.
// Errors that are not Java exceptions surface as java/lang/InternalError.
func (t *Thread) asThrowable(err error) *Object {
	var je *JavaException
	if errors.As(err, &je) {
		return je.Object
	}
	obj, nerr := t.newThrowable("java/lang/InternalError", err.Error())
	if nerr != nil {
		// Throwable classes are built in, so this only happens on a
		// destroyed VM.
		panic(fmt.Sprintf("vm: cannot materialize InternalError: %v (for %v)", nerr, err))
	}
	return obj
}
