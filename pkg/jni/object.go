package jni

// Object owns one durable reference to a foreign object. The reference is
// released by Close through the Env that created it. Copying an *Object
// shares ownership; use Clone for an independent handle.
type Object struct {
	env    Env
	ref    Ref
	closed bool
}

// NewObject takes ownership of the local reference local: it is promoted
// to a durable reference and released, whether or not promotion succeeds.
func NewObject(env Env, local Ref) (*Object, error) {
	if local == 0 {
		return nil, newError(KindReference, "", "", "null reference")
	}
	defer env.DeleteLocalRef(local)
	g, err := env.NewGlobalRef(local)
	if err != nil {
		return nil, err
	}
	return &Object{env: env, ref: g}, nil
}

// Ref returns the durable reference. It is 0 after Close and on a nil
// object.
func (o *Object) Ref() Ref {
	if o == nil {
		return 0
	}
	return o.ref
}

// Env returns the context the object is bound to.
func (o *Object) Env() Env {
	if o == nil {
		return Env{}
	}
	return o.env
}

// Close releases the reference. Only the first call has an effect.
func (o *Object) Close() error {
	if o == nil || o.closed {
		return nil
	}
	o.closed = true
	r := o.ref
	o.ref = 0
	if !o.env.native.DeleteGlobalRef(r) {
		return newError(KindReference, "", "", "global reference already released")
	}
	return nil
}

// Clone returns a new handle with its own durable reference.
func (o *Object) Clone() (*Object, error) {
	if o == nil || o.closed {
		return nil, newError(KindReference, "", "", "clone of closed object")
	}
	g, err := o.env.NewGlobalRef(o.ref)
	if err != nil {
		return nil, err
	}
	return &Object{env: o.env, ref: g}, nil
}

// Call invokes an instance method on the object's runtime class.
func (o *Object) Call(method, sig string, args ...Value) (Value, error) {
	if o == nil {
		return Value{}, newError(KindReference, "", method+sig, "call on a missing object")
	}
	return o.env.CallObjectMethod(o.ref, method, sig, args...)
}

// ClassName returns the runtime class name, or "<unknown>".
func (o *Object) ClassName() string {
	if o == nil {
		return unknown
	}
	return o.env.ClassName(o.ref)
}

// ToString calls toString on the object.
func (o *Object) ToString() (string, error) {
	v, err := o.Call("toString", "()Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	defer o.env.DeleteLocalRef(v.L)
	return o.env.StringValue(v.L)
}
