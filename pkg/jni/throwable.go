package jni

import "go.uber.org/zap"

// Throwable is a handle to a foreign exception. Its class name and message
// are captured when it is wrapped, so they can be read without calling
// into the runtime.
type Throwable struct {
	// Object is nil when the exception could not be retained.
	*Object
	className string
	message   string
}

// ClassName returns the Java class name of the exception.
func (t *Throwable) ClassName() string { return t.className }

// Message returns the exception message, or "" if it had none.
func (t *Throwable) Message() string { return t.message }

func (t *Throwable) String() string {
	if t.message == "" {
		return t.className
	}
	return t.className + ": " + t.message
}

// Close releases the retained exception, if any.
func (t *Throwable) Close() error {
	if t == nil || t.Object == nil {
		return nil
	}
	return t.Object.Close()
}

// takeException clears the pending exception and wraps it. It reports
// false when nothing was pending.
func (e Env) takeException() (*Throwable, bool) {
	exc := e.native.ExceptionOccurred()
	if exc == 0 {
		return nil, false
	}
	e.native.ExceptionClear()
	defer e.native.DeleteLocalRef(exc)

	t := &Throwable{className: unknown}
	if name, msg, ok := e.describeThrowable(exc); ok {
		t.className, t.message = name, msg
	}
	e.native.ExceptionClear()
	if g := e.native.NewGlobalRef(exc); g != 0 && !e.native.ExceptionCheck() {
		t.Object = &Object{env: e, ref: g}
	} else {
		e.native.ExceptionClear()
	}
	return t, true
}

// failIfPending converts a pending exception into an error of kind.
func (e Env) failIfPending(kind Kind, class, member, detail string) error {
	exc, ok := e.takeException()
	if !ok {
		return nil
	}
	return &Error{Kind: kind, Class: class, Member: member, Detail: detail, Exception: exc}
}

// CheckExceptionAndClear returns nil when no exception is pending.
// Otherwise it clears the exception and returns an *Error of KindException
// holding it. Calling it again without an intervening runtime call is a
// no-op.
func (e Env) CheckExceptionAndClear() error {
	exc, ok := e.takeException()
	if !ok {
		return nil
	}
	return &Error{Kind: KindException, Exception: exc}
}

// CheckExceptionAndAbort is the variant for unrecoverable failures: a
// pending exception is cleared and handed to the abort hook as a
// KindFatal error, which is returned if the hook returns.
func (e Env) CheckExceptionAndAbort() error {
	exc := e.native.ExceptionOccurred()
	if exc == 0 {
		return nil
	}
	e.native.ExceptionClear()
	desc := e.ThrowableString(exc)
	e.DeleteLocalRef(exc)
	err := &Error{Kind: KindFatal, Detail: "abort due to runtime exception " + desc}
	e.abort(err)
	return err
}

// CheckExceptionAndPrint clears and logs a pending exception. It reports
// whether one was pending.
func (e Env) CheckExceptionAndPrint() bool {
	exc := e.native.ExceptionOccurred()
	if exc == 0 {
		return false
	}
	e.native.ExceptionClear()
	Logger().Warn("jni: exception occurred in runtime", zap.String("exception", e.ThrowableString(exc)))
	e.DeleteLocalRef(exc)
	return true
}
