package vm

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/gojni/pkg/classfile"
)

func u16(idx uint16) (byte, byte) { return byte(idx >> 8), byte(idx) }

// op appends an instruction with a two-byte constant pool operand.
func op(code []byte, opcode byte, idx uint16) []byte {
	hi, lo := u16(idx)
	return append(code, opcode, hi, lo)
}

// calcClass assembles demo/Calc:
//
//	public class demo/Calc {
//	    static int counter;
//	    static { counter = 42; }
//	    static int safeDiv(int a, int b) { try { return a / b; } catch (ArithmeticException e) { return -1; } }
//	    static int down(int n) { return down(n + 1); }
//	    static String describe(int n) { return new StringBuilder().append("n=").append(n).toString(); }
//	    static void hello() { System.out.println("hello"); }
//	    static int getCounter() { return counter; }
//	}
func calcClass() *classfile.Builder {
	b := classfile.NewBuilder("demo/Calc", "java/lang/Object")
	b.AddField(classfile.AccStatic, "counter", "I")

	counter := b.FieldRef("demo/Calc", "counter", "I")
	b.AddMethod(classfile.AccStatic, "<clinit>", "()V", &classfile.CodeAttribute{
		MaxStack: 1,
		Code:     append(op([]byte{0x10, 42}, 0xB3, counter), 0xB1), // bipush 42, putstatic, return
	})

	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "safeDiv", "(II)I", &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 3,
		Code:      []byte{0x1A, 0x1B, 0x6C, 0xAC, 0x4D, 0x02, 0xAC},
		ExceptionHandlers: []classfile.ExceptionHandler{
			{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: b.ClassRef("java/lang/ArithmeticException")},
		},
	})

	down := b.MethodRef("demo/Calc", "down", "(I)I")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "down", "(I)I", &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 1,
		Code:      append(op([]byte{0x1A, 0x04, 0x60}, 0xB8, down), 0xAC), // iload_0, iconst_1, iadd, invokestatic, ireturn
	})

	sb := "java/lang/StringBuilder"
	var code []byte
	code = op(code, 0xBB, b.ClassRef(sb))                   // new
	code = append(code, 0x59)                               // dup
	code = op(code, 0xB7, b.MethodRef(sb, "<init>", "()V")) // invokespecial
	code = op(code, 0x13, b.StringConst("n="))              // ldc_w
	code = op(code, 0xB6, b.MethodRef(sb, "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;"))
	code = append(code, 0x1A) // iload_0
	code = op(code, 0xB6, b.MethodRef(sb, "append", "(I)Ljava/lang/StringBuilder;"))
	code = op(code, 0xB6, b.MethodRef(sb, "toString", "()Ljava/lang/String;"))
	code = append(code, 0xB0) // areturn
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "describe", "(I)Ljava/lang/String;", &classfile.CodeAttribute{
		MaxStack: 3, MaxLocals: 1, Code: code,
	})

	code = op(nil, 0xB2, b.FieldRef("java/lang/System", "out", "Ljava/io/PrintStream;"))
	code = op(code, 0x13, b.StringConst("hello"))
	code = op(code, 0xB6, b.MethodRef("java/io/PrintStream", "println", "(Ljava/lang/String;)V"))
	code = append(code, 0xB1)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "hello", "()V", &classfile.CodeAttribute{MaxStack: 2, Code: code})

	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "getCounter", "()I", &classfile.CodeAttribute{
		MaxStack: 1,
		Code:     append(op(nil, 0xB2, counter), 0xAC),
	})
	return b
}

// pointClass assembles demo/Point with int fields x and y, a (II)V
// constructor and an instance method sum()I.
func pointClass() *classfile.Builder {
	b := classfile.NewBuilder("demo/Point", "java/lang/Object")
	b.AddField(classfile.AccPublic, "x", "I")
	b.AddField(classfile.AccPublic, "y", "I")
	x := b.FieldRef("demo/Point", "x", "I")
	y := b.FieldRef("demo/Point", "y", "I")

	code := op([]byte{0x2A}, 0xB7, b.MethodRef("java/lang/Object", "<init>", "()V"))
	code = op(append(code, 0x2A, 0x1B), 0xB5, x) // aload_0, iload_1, putfield x
	code = op(append(code, 0x2A, 0x1C), 0xB5, y) // aload_0, iload_2, putfield y
	code = append(code, 0xB1)
	b.AddMethod(classfile.AccPublic, "<init>", "(II)V", &classfile.CodeAttribute{MaxStack: 2, MaxLocals: 3, Code: code})

	code = op([]byte{0x2A}, 0xB4, x)
	code = op(append(code, 0x2A), 0xB4, y)
	code = append(code, 0x60, 0xAC)
	b.AddMethod(classfile.AccPublic, "sum", "()I", &classfile.CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: code})
	return b
}

// boomClass assembles demo/Boom whose static initializer throws
// IllegalStateException("boom").
func boomClass() *classfile.Builder {
	b := classfile.NewBuilder("demo/Boom", "java/lang/Object")
	ise := "java/lang/IllegalStateException"
	code := op(nil, 0xBB, b.ClassRef(ise))
	code = append(code, 0x59)
	code = op(code, 0x13, b.StringConst("boom"))
	code = op(code, 0xB7, b.MethodRef(ise, "<init>", "(Ljava/lang/String;)V"))
	code = append(code, 0xBF)
	b.AddMethod(classfile.AccStatic, "<clinit>", "()V", &classfile.CodeAttribute{MaxStack: 3, Code: code})
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "noop", "()V", &classfile.CodeAttribute{Code: []byte{0xB1}})
	return b
}

func classBytes(t *testing.T, b *classfile.Builder) []byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("assembling class: %v", err)
	}
	return data
}

// writeClasses writes each class under dir following its package path.
func writeClasses(t *testing.T, dir string, classes map[string]*classfile.Builder) {
	t.Helper()
	for name, b := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, classBytes(t, b), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// writeArchive writes a jar, or a jmod when header is non-nil.
func writeArchive(t *testing.T, path string, header []byte, entryPrefix string, classes map[string]*classfile.Builder) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(header)
	zw := zip.NewWriter(&buf)
	for name, b := range classes {
		w, err := zw.Create(entryPrefix + name + ".class")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(classBytes(t, b)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// demoClassPath writes the demo classes into a temporary directory.
func demoClassPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeClasses(t, dir, map[string]*classfile.Builder{
		"demo/Calc":  calcClass(),
		"demo/Point": pointClass(),
		"demo/Boom":  boomClass(),
	})
	return dir
}
