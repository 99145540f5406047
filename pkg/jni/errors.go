package jni

import "strings"

// Kind categorizes a bridge error.
type Kind string

const (
	KindClassNotFound  Kind = "class_not_found"
	KindMethodNotFound Kind = "method_not_found"
	KindFieldNotFound  Kind = "field_not_found"
	KindReference      Kind = "reference"
	KindNewObject      Kind = "new_object"
	KindNewEnum        Kind = "new_enum"
	KindSignature      Kind = "signature"
	KindDispatch       Kind = "dispatch"
	KindException      Kind = "exception"
	KindFatal          Kind = "fatal"
	KindAttach         Kind = "attach"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrClassNotFound  = &Error{Kind: KindClassNotFound}
	ErrMethodNotFound = &Error{Kind: KindMethodNotFound}
	ErrFieldNotFound  = &Error{Kind: KindFieldNotFound}
	ErrReference      = &Error{Kind: KindReference}
	ErrNewObject      = &Error{Kind: KindNewObject}
	ErrNewEnum        = &Error{Kind: KindNewEnum}
	ErrSignature      = &Error{Kind: KindSignature}
	ErrDispatch       = &Error{Kind: KindDispatch}
	ErrException      = &Error{Kind: KindException}
	ErrFatal          = &Error{Kind: KindFatal}
	ErrAttach         = &Error{Kind: KindAttach}
)

// Error is the structured error returned by every bridge operation.
type Error struct {
	Kind   Kind
	Class  string // internal class name involved, if any
	Member string // method or field name, if any
	Detail string
	// Exception is the foreign throwable that caused the error. The caller
	// owns it and should Close it when done.
	Exception *Throwable
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("jni: ")
	b.WriteString(string(e.Kind))
	if e.Class != "" || e.Member != "" {
		b.WriteByte(' ')
		b.WriteString(e.Class)
		if e.Member != "" {
			if e.Class != "" {
				b.WriteByte('.')
			}
			b.WriteString(e.Member)
		}
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Exception != nil {
		b.WriteString(" [")
		b.WriteString(e.Exception.String())
		b.WriteByte(']')
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, class, member, detail string) *Error {
	return &Error{Kind: kind, Class: class, Member: member, Detail: detail}
}
