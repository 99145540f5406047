package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/daimatz/gojni/pkg/classfile"
	"github.com/daimatz/gojni/pkg/native"
)

// maxFrameDepth is the maximum number of nested method calls per thread.
const maxFrameDepth = 1024

// ErrDestroyed is returned for operations on a destroyed VM.
var ErrDestroyed = errors.New("vm: destroyed")

// Options configures a VM.
type Options struct {
	// ClassPath lists directories and archives searched for user classes.
	ClassPath string
	// MaxGlobalRefs bounds the global reference table; 0 means unbounded.
	MaxGlobalRefs int
	Stdout        io.Writer
	Stderr        io.Writer
}

// VM hosts loaded classes, interned strings and global references shared by
// every attached thread.
type VM struct {
	opts   Options
	loader ClassLoader

	mu        sync.Mutex
	classes   map[string]*Class
	interned  map[string]*Object
	threads   map[*Thread]struct{}
	destroyed bool

	globals *globalTable

	stdout, stderr *native.PrintStream

	objectClass *Class
	classClass  *Class
	stringClass *Class

	intCacheOnce sync.Once
	intCache     *native.BoxCache[*Object]
}

// Create builds a VM. Every class path entry must exist.
func Create(opts Options) (*VM, error) {
	if opts.MaxGlobalRefs < 0 {
		return nil, fmt.Errorf("vm: negative MaxGlobalRefs %d", opts.MaxGlobalRefs)
	}
	loader, err := NewClassPathLoader(opts.ClassPath)
	if err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	vm := &VM{
		opts:     opts,
		loader:   loader,
		classes:  make(map[string]*Class),
		interned: make(map[string]*Object),
		threads:  make(map[*Thread]struct{}),
		globals:  newGlobalTable(opts.MaxGlobalRefs),
		stdout:   &native.PrintStream{Writer: opts.Stdout},
		stderr:   &native.PrintStream{Writer: opts.Stderr},
	}
	for _, bc := range []struct {
		name string
		dst  **Class
	}{
		{"java/lang/Object", &vm.objectClass},
		{"java/lang/Class", &vm.classClass},
		{"java/lang/String", &vm.stringClass},
	} {
		c, err := vm.loadClass(bc.name)
		if err != nil {
			return nil, fmt.Errorf("vm: bootstrapping %s: %w", bc.name, err)
		}
		*bc.dst = c
	}
	return vm, nil
}

// AttachCurrentThread registers a new thread with the VM.
func (vm *VM) AttachCurrentThread() (*Thread, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.destroyed {
		return nil, ErrDestroyed
	}
	t := &Thread{vm: vm, locals: newLocalTable()}
	vm.threads[t] = struct{}{}
	return t, nil
}

// DetachCurrentThread unregisters t and drops its local references.
func (vm *VM) DetachCurrentThread(t *Thread) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, ok := vm.threads[t]; !ok {
		return fmt.Errorf("vm: thread not attached")
	}
	delete(vm.threads, t)
	t.locals = newLocalTable()
	t.pending = nil
	t.detached = true
	return nil
}

// AttachedThreads returns the number of attached threads.
func (vm *VM) AttachedThreads() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.threads)
}

// Destroy tears the VM down. Every thread must be detached first.
func (vm *VM) Destroy() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.destroyed {
		return ErrDestroyed
	}
	if n := len(vm.threads); n > 0 {
		return fmt.Errorf("vm: %d threads still attached", n)
	}
	vm.destroyed = true
	vm.globals.clear()
	clear(vm.interned)
	return nil
}

// GlobalRefCount returns the number of live global references.
func (vm *VM) GlobalRefCount() int {
	return vm.globals.len()
}

// loadClass returns the linked class for an internal name, defining it on
// first use. vm.mu is not held while parsing or linking, so two threads may
// race to define the same class; the first insert wins.
func (vm *VM) loadClass(name string) (*Class, error) {
	vm.mu.Lock()
	if c, ok := vm.classes[name]; ok {
		vm.mu.Unlock()
		return c, nil
	}
	vm.mu.Unlock()

	var (
		c   *Class
		err error
	)
	switch {
	case name == "":
		return nil, fmt.Errorf("empty class name: %w", ErrClassNotFound)
	case name[0] == '[':
		c, err = vm.defineArrayClass(name)
	case builtins[name] != nil:
		c, err = vm.defineBuiltin(builtins[name])
	default:
		var cf *classfile.ClassFile
		cf, err = vm.loader.LoadClass(name)
		if err == nil {
			c, err = vm.defineClass(name, cf)
		}
	}
	if err != nil {
		return nil, err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if existing, ok := vm.classes[name]; ok {
		return existing, nil
	}
	vm.classes[name] = c
	return c, nil
}

func (vm *VM) linkSupers(c *Class, super string, interfaces []string) error {
	if super != "" {
		sc, err := vm.loadClass(super)
		if err != nil {
			return fmt.Errorf("linking %s: super class: %w", c.Name, err)
		}
		c.Super = sc
	}
	for _, name := range interfaces {
		ic, err := vm.loadClass(name)
		if err != nil {
			return fmt.Errorf("linking %s: interface: %w", c.Name, err)
		}
		c.Interfaces = append(c.Interfaces, ic)
	}
	return nil
}

func (vm *VM) defineClass(name string, cf *classfile.ClassFile) (*Class, error) {
	declared, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	if declared != name {
		return nil, fmt.Errorf("class file for %s declares %s", name, declared)
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}
	c := newClass(name, nil, cf.AccessFlags)
	c.File = cf
	if err := vm.linkSupers(c, cf.SuperClassName(), ifaces); err != nil {
		return nil, err
	}
	for _, f := range cf.Fields {
		c.addField(f.Name, f.Descriptor, f.AccessFlags)
	}
	for _, m := range cf.Methods {
		if err := c.addMethod(m.Name, m.Descriptor, m.AccessFlags, m.Code, nil); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (vm *VM) defineArrayClass(name string) (*Class, error) {
	elem := name[1:]
	if !classfile.ValidFieldType(elem) {
		return nil, fmt.Errorf("invalid array class %q: %w", name, ErrClassNotFound)
	}
	c := newClass(name, nil, classfile.AccPublic|classfile.AccFinal|classfile.AccAbstract)
	if err := vm.linkSupers(c, "java/lang/Object", nil); err != nil {
		return nil, err
	}
	switch elem[0] {
	case 'L':
		comp, err := vm.loadClass(elem[1 : len(elem)-1])
		if err != nil {
			return nil, err
		}
		c.Component = comp
	case '[':
		comp, err := vm.loadClass(elem)
		if err != nil {
			return nil, err
		}
		c.Component = comp
	}
	c.init = initDone
	return c, nil
}

// mirrorOf returns the java/lang/Class instance for c.
func (vm *VM) mirrorOf(c *Class) *Object {
	c.mirrorOnce.Do(func() {
		c.mirror = &Object{Class: vm.classClass, Native: c, hash: nextHash()}
	})
	return c.mirror
}

// newString allocates a java/lang/String.
func (vm *VM) newString(s string) *Object {
	return &Object{Class: vm.stringClass, Native: s, hash: nextHash()}
}

// intern returns the canonical String instance for s, used by ldc.
func (vm *VM) intern(s string) *Object {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if obj, ok := vm.interned[s]; ok {
		return obj
	}
	obj := vm.newString(s)
	vm.interned[s] = obj
	return obj
}

// integerCache holds the boxes Integer.valueOf must return for -128..127.
func (vm *VM) integerCache(c *Class) *native.BoxCache[*Object] {
	vm.intCacheOnce.Do(func() {
		vm.intCache = native.NewBoxCache(-128, 127, func(v int32) *Object {
			return &Object{Class: c, Native: IntValue(v), hash: nextHash()}
		})
	})
	return vm.intCache
}
