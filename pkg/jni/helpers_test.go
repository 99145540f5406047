package jni

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/gojni/pkg/classfile"
	"github.com/daimatz/gojni/pkg/vm"
)

func op(code []byte, opcode byte, idx uint16) []byte {
	return append(code, opcode, byte(idx>>8), byte(idx))
}

// probeMethod is a method of demo/Probe returning a constant. The class
// declares it twice: static as static<Name> and virtual as virtual<Name>.
type probeMethod struct {
	name     string
	desc     string
	maxStack uint16
	code     func(b *classfile.Builder) []byte
	want     Value
}

var probeMethods = []probeMethod{
	{"Flag", "()Z", 1, func(*classfile.Builder) []byte { return []byte{vm.OpIconst1, vm.OpIreturn} }, Boolean(true)},
	{"Octet", "()B", 1, func(*classfile.Builder) []byte { return []byte{vm.OpBipush, 7, vm.OpIreturn} }, Byte(7)},
	{"Letter", "()C", 1, func(*classfile.Builder) []byte { return []byte{vm.OpBipush, 'A', vm.OpIreturn} }, Char('A')},
	{"Small", "()S", 1, func(*classfile.Builder) []byte { return []byte{vm.OpSipush, 0x01, 0x2C, vm.OpIreturn} }, Short(300)},
	{"Answer", "()I", 1, func(*classfile.Builder) []byte { return []byte{vm.OpBipush, 42, vm.OpIreturn} }, Int(42)},
	{"Big", "()J", 2, func(b *classfile.Builder) []byte {
		return append(op(nil, vm.OpLdc2W, b.LongConst(1<<40)), vm.OpLreturn)
	}, Long(1 << 40)},
	{"Ratio", "()F", 1, func(*classfile.Builder) []byte { return []byte{vm.OpFconst2, vm.OpFreturn} }, Float(2)},
	{"Unit", "()D", 2, func(*classfile.Builder) []byte { return []byte{vm.OpDconst1, vm.OpDreturn} }, Double(1)},
	{"Nothing", "()V", 0, func(*classfile.Builder) []byte { return []byte{vm.OpReturn} }, Void()},
	{"Greeting", "()Ljava/lang/String;", 1, func(b *classfile.Builder) []byte {
		return append(op(nil, vm.OpLdcW, b.StringConst("hi")), vm.OpAreturn)
	}, Value{Tag: TagObject}},
	{"Bytes", "()[B", 1, func(*classfile.Builder) []byte {
		return []byte{vm.OpIconst3, vm.OpNewarray, 8, vm.OpAreturn}
	}, Value{Tag: TagObject}},
}

// probeClass assembles demo/Probe:
//
//	public class demo/Probe {
//	    public int count;
//	    public static long total;
//	    public Probe() {}
//	    static boolean staticFlag() { return true; } ... one per probeMethods entry
//	    boolean virtualFlag() { return true; } ...
//	    static long add(int a, long b) { return a + b; }
//	    static void fail() { throw new IllegalStateException("probe failure"); }
//	}
func probeClass() *classfile.Builder {
	b := classfile.NewBuilder("demo/Probe", "java/lang/Object")
	b.AddField(classfile.AccPublic, "count", "I")
	b.AddField(classfile.AccPublic|classfile.AccStatic, "total", "J")

	ctor := op([]byte{0x2A}, vm.OpInvokespecial, b.MethodRef("java/lang/Object", "<init>", "()V")) // aload_0
	b.AddMethod(classfile.AccPublic, "<init>", "()V", &classfile.CodeAttribute{MaxStack: 1, MaxLocals: 1, Code: append(ctor, vm.OpReturn)})

	for _, m := range probeMethods {
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "static"+m.name, m.desc,
			&classfile.CodeAttribute{MaxStack: m.maxStack, Code: m.code(b)})
		b.AddMethod(classfile.AccPublic, "virtual"+m.name, m.desc,
			&classfile.CodeAttribute{MaxStack: m.maxStack, MaxLocals: 1, Code: m.code(b)})
	}

	// iload_0, i2l, lload_1, ladd, lreturn
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "add", "(IJ)J", &classfile.CodeAttribute{
		MaxStack: 4, MaxLocals: 3, Code: []byte{vm.OpIload0, vm.OpI2l, 0x1F, vm.OpLadd, vm.OpLreturn},
	})

	ise := "java/lang/IllegalStateException"
	code := op(nil, vm.OpNew, b.ClassRef(ise))
	code = append(code, vm.OpDup)
	code = op(code, vm.OpLdcW, b.StringConst("probe failure"))
	code = op(code, vm.OpInvokespecial, b.MethodRef(ise, "<init>", "(Ljava/lang/String;)V"))
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "fail", "()V", &classfile.CodeAttribute{
		MaxStack: 3, Code: append(code, vm.OpAthrow),
	})
	return b
}

// writeProbe writes demo/Probe under a fresh class path directory.
func writeProbe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data, err := probeClass().Bytes()
	if err != nil {
		t.Fatalf("assembling demo/Probe: %v", err)
	}
	path := filepath.Join(dir, "demo", "Probe.class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// newTestProvider returns a provider over the probe class path. Abort
// records fatal errors instead of exiting.
func newTestProvider(t *testing.T, cfg ...Config) (*Provider, *[]error) {
	t.Helper()
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.ClassPath == "" {
		c.ClassPath = writeProbe(t)
	}
	if c.Stdout == nil {
		c.Stdout = io.Discard
	}
	if c.Stderr == nil {
		c.Stderr = io.Discard
	}
	var aborts []error
	c.Abort = func(err error) { aborts = append(aborts, err) }
	p := NewProvider(c)
	t.Cleanup(func() {
		if err := p.Shutdown(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return p, &aborts
}

// attach returns an Env whose scope closes at the end of the test.
func attach(t *testing.T, p *Provider) Env {
	t.Helper()
	_, s, err := p.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.Env()
}

// instrumented decorates a Native to observe and fail runtime calls.
type instrumented struct {
	Native
	findClassCalls int
	failGlobalRef  bool
}

func (n *instrumented) FindClass(name string) Ref {
	n.findClassCalls++
	return n.Native.FindClass(name)
}

func (n *instrumented) NewGlobalRef(r Ref) Ref {
	if n.failGlobalRef {
		return 0
	}
	return n.Native.NewGlobalRef(r)
}

func instrument(env Env) (Env, *instrumented) {
	n := &instrumented{Native: env.Native()}
	env.native = n
	return env, n
}

// asError extracts the *Error of err and checks its kind.
func asError(t *testing.T, err error, kind *Error) *Error {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error %v is not %s", err, kind.Kind)
	}
	var je *Error
	if !errors.As(err, &je) {
		t.Fatalf("error %v is not an *Error", err)
	}
	return je
}

func localRefs(env Env) int { return env.Native().LocalRefCount() }

func globalRefs(p *Provider) int { return p.VM().GlobalRefCount() }
