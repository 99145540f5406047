package vm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/daimatz/gojni/pkg/classfile"
)

// NativeMethod implements a method in Go. this is nil for static methods.
type NativeMethod func(t *Thread, this *Object, args []Value) (Value, error)

type initState int

const (
	initPending initState = iota
	initRunning
	initDone
	initFailed
)

// Class is a linked runtime class.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Flags      uint16
	File       *classfile.ClassFile // nil for built-in and array classes
	Component  *Class               // element class of reference arrays

	methods map[string]*Method // keyed by name+descriptor
	fields  map[string]*Field

	staticMu sync.RWMutex
	statics  map[string]Value

	initMu     sync.Mutex
	initCond   *sync.Cond
	init       initState
	initThread *Thread
	clinit     func(t *Thread, c *Class) error

	mirrorOnce sync.Once
	mirror     *Object
}

// Method is a resolved method of a class.
type Method struct {
	Class      *Class
	Name       string
	Descriptor string
	Flags      uint16
	Code       *classfile.CodeAttribute
	Native     NativeMethod

	params []string
	ret    string
}

// MethodID identifies a method across the thread surface.
type MethodID = *Method

// Field is a declared field of a class.
type Field struct {
	Class      *Class
	Name       string
	Descriptor string
	Flags      uint16
}

// FieldID identifies a field across the thread surface.
type FieldID = *Field

func (m *Method) IsStatic() bool   { return m.Flags&classfile.AccStatic != 0 }
func (m *Method) IsAbstract() bool { return m.Flags&classfile.AccAbstract != 0 }
func (f *Field) IsStatic() bool    { return f.Flags&classfile.AccStatic != 0 }

func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor
}

// Params returns the parameter field types.
func (m *Method) Params() []string { return m.params }

// Return returns the return field type, "V" for void.
func (m *Method) Return() string { return m.ret }

func newClass(name string, super *Class, flags uint16) *Class {
	c := &Class{
		Name:    name,
		Super:   super,
		Flags:   flags,
		methods: make(map[string]*Method),
		fields:  make(map[string]*Field),
		statics: make(map[string]Value),
	}
	c.initCond = sync.NewCond(&c.initMu)
	return c
}

func (c *Class) addMethod(name, desc string, flags uint16, code *classfile.CodeAttribute, fn NativeMethod) error {
	md, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.Name, name, err)
	}
	c.methods[name+desc] = &Method{
		Class:      c,
		Name:       name,
		Descriptor: desc,
		Flags:      flags,
		Code:       code,
		Native:     fn,
		params:     md.Params,
		ret:        md.Return,
	}
	return nil
}

func (c *Class) addField(name, desc string, flags uint16) {
	f := &Field{Class: c, Name: name, Descriptor: desc, Flags: flags}
	c.fields[name] = f
	if f.IsStatic() {
		c.statics[name] = zeroValue(desc)
	}
}

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.Flags&classfile.AccInterface != 0 }

// IsAbstract reports whether c cannot be instantiated.
func (c *Class) IsAbstract() bool { return c.Flags&(classfile.AccAbstract|classfile.AccInterface) != 0 }

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool { return strings.HasPrefix(c.Name, "[") }

// JavaName returns the binary name as reported by Class.getName.
func (c *Class) JavaName() string {
	return strings.ReplaceAll(c.Name, "/", ".")
}

// DeclaredMethod returns the method declared by c itself.
func (c *Class) DeclaredMethod(name, desc string) *Method {
	return c.methods[name+desc]
}

// LookupMethod finds a method by name and descriptor in c, its super classes
// and then its super interfaces.
func (c *Class) LookupMethod(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.methods[name+desc]; m != nil {
			return m
		}
	}
	return c.lookupInterfaceMethod(name, desc)
}

func (c *Class) lookupInterfaceMethod(name, desc string) *Method {
	var abstract *Method
	for k := c; k != nil; k = k.Super {
		for _, iface := range k.Interfaces {
			if m := iface.LookupMethod(name, desc); m != nil {
				if !m.IsAbstract() {
					return m
				}
				if abstract == nil {
					abstract = m
				}
			}
		}
	}
	return abstract
}

// LookupField finds a field by name in c, its interfaces and super classes.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		if f := k.fields[name]; f != nil {
			return f
		}
		for _, iface := range k.Interfaces {
			if f := iface.LookupField(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// IsSubclassOf reports whether an instance of c is assignable to target.
func (c *Class) IsSubclassOf(target *Class) bool {
	if c == target || target.Name == "java/lang/Object" {
		return true
	}
	if c.IsArray() {
		if !target.IsArray() {
			return false
		}
		if c.Component == nil || target.Component == nil {
			return c.Name == target.Name
		}
		return c.Component.IsSubclassOf(target.Component)
	}
	for k := c; k != nil; k = k.Super {
		if k == target {
			return true
		}
		for _, iface := range k.Interfaces {
			if iface.IsSubclassOf(target) {
				return true
			}
		}
	}
	return false
}

func (c *Class) getStatic(name string) Value {
	c.staticMu.RLock()
	defer c.staticMu.RUnlock()
	return c.statics[name]
}

func (c *Class) setStatic(name string, v Value) {
	c.staticMu.Lock()
	c.statics[name] = v
	c.staticMu.Unlock()
}
