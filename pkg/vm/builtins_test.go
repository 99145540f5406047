package vm

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// callMethod invokes an instance method through the thread surface and
// returns the raw interpreter value.
func callMethod(t *testing.T, th *Thread, obj Ref, name, sig string, args ...JValue) Value {
	t.Helper()
	mid := th.GetMethodID(th.GetObjectClass(obj), name, sig)
	if mid == nil {
		t.Fatalf("GetMethodID(%s%s): %s", name, sig, describePending(th))
	}
	return th.callInstance(obj, mid, args)
}

func callStaticMethod(t *testing.T, th *Thread, class, name, sig string, args ...JValue) Value {
	t.Helper()
	cls := findClass(t, th, class)
	mid := th.GetStaticMethodID(cls, name, sig)
	if mid == nil {
		t.Fatalf("GetStaticMethodID(%s.%s%s): %s", class, name, sig, describePending(th))
	}
	return th.callStatic(cls, mid, args)
}

func newObj(t *testing.T, th *Thread, class, sig string, args ...JValue) Ref {
	t.Helper()
	cls := findClass(t, th, class)
	obj := th.NewObjectA(cls, th.GetMethodID(cls, "<init>", sig), args)
	if obj == 0 {
		t.Fatalf("new %s%s: %s", class, sig, describePending(th))
	}
	return obj
}

func box(t *testing.T, th *Thread, v int32) Ref {
	t.Helper()
	return th.newLocal(callStaticMethod(t, th, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", JValue{I: v}).Ref)
}

func TestStringBuiltins(t *testing.T) {
	th := newTestThread(t)
	str := func(s string) JValue { return JValue{L: th.NewStringUTF(s)} }

	tests := []struct {
		recv string
		name string
		sig  string
		args []JValue
		want any
	}{
		{"héllo", "length", "()I", nil, int32(5)},
		{"", "isEmpty", "()Z", nil, true},
		{"abc", "equals", "(Ljava/lang/Object;)Z", []JValue{str("abc")}, true},
		{"abc", "equalsIgnoreCase", "(Ljava/lang/String;)Z", []JValue{str("ABC")}, true},
		{"hello", "hashCode", "()I", nil, int32(99162322)},
		{"apple", "compareTo", "(Ljava/lang/String;)I", []JValue{str("banana")}, int32(-1)},
		{"foobar", "indexOf", "(Ljava/lang/String;)I", []JValue{str("bar")}, int32(3)},
		{"foobar", "startsWith", "(Ljava/lang/String;)Z", []JValue{str("foo")}, true},
		{"foobar", "contains", "(Ljava/lang/CharSequence;)Z", []JValue{str("oba")}, true},
		{"foobar", "substring", "(II)Ljava/lang/String;", []JValue{{I: 1}, {I: 4}}, "oob"},
		{"  pad\t", "trim", "()Ljava/lang/String;", nil, "pad"},
		{"MiXed", "toLowerCase", "()Ljava/lang/String;", nil, "mixed"},
		{"a", "concat", "(Ljava/lang/String;)Ljava/lang/String;", []JValue{str("b")}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.recv+"."+tt.name, func(t *testing.T) {
			v := callMethod(t, th, th.NewStringUTF(tt.recv), tt.name, tt.sig, tt.args...)
			noException(t, th)
			var got any
			switch tt.want.(type) {
			case bool:
				got = v.Int != 0
			case int32:
				got = v.Int
			case string:
				got = goStr(v.Ref)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("substring out of range", func(t *testing.T) {
		callMethod(t, th, th.NewStringUTF("abc"), "substring", "(I)Ljava/lang/String;", JValue{I: 4})
		takeException(t, th, "java/lang/StringIndexOutOfBoundsException")
	})

	t.Run("valueOf", func(t *testing.T) {
		cases := []struct {
			sig  string
			arg  JValue
			want string
		}{
			{"(I)Ljava/lang/String;", JValue{I: -3}, "-3"},
			{"(Z)Ljava/lang/String;", JValue{Z: true}, "true"},
			{"(C)Ljava/lang/String;", JValue{C: 'x'}, "x"},
			{"(F)Ljava/lang/String;", JValue{F: 1}, "1.0"},
			{"(D)Ljava/lang/String;", JValue{D: 1e10}, "1.0E10"},
			{"(D)Ljava/lang/String;", JValue{D: math.Inf(-1)}, "-Infinity"},
			{"(Ljava/lang/Object;)Ljava/lang/String;", JValue{}, "null"},
		}
		for _, c := range cases {
			v := callStaticMethod(t, th, "java/lang/String", "valueOf", c.sig, c.arg)
			noException(t, th)
			if got := goStr(v.Ref); got != c.want {
				t.Errorf("valueOf%s: got %q, want %q", c.sig, got, c.want)
			}
		}
	})
}

func TestStringBuilderBuiltin(t *testing.T) {
	th := newTestThread(t)
	sb := newObj(t, th, "java/lang/StringBuilder", "(Ljava/lang/String;)V", JValue{L: th.NewStringUTF("ab")})

	callMethod(t, th, sb, "append", "(I)Ljava/lang/StringBuilder;", JValue{I: 12})
	callMethod(t, th, sb, "append", "(Z)Ljava/lang/StringBuilder;", JValue{Z: false})
	ret := callMethod(t, th, sb, "append", "(C)Ljava/lang/StringBuilder;", JValue{C: '!'})
	noException(t, th)
	if self, _ := th.deref(sb); ret.Ref != self {
		t.Error("append must return this")
	}
	if got := goStr(callMethod(t, th, sb, "toString", "()Ljava/lang/String;").Ref); got != "ab12false!" {
		t.Errorf("toString: got %q", got)
	}

	callMethod(t, th, sb, "setLength", "(I)V", JValue{I: 4})
	callMethod(t, th, sb, "reverse", "()Ljava/lang/StringBuilder;")
	if got := goStr(callMethod(t, th, sb, "toString", "()Ljava/lang/String;").Ref); got != "21ba" {
		t.Errorf("after setLength and reverse: got %q", got)
	}
	if got := callMethod(t, th, sb, "length", "()I").Int; got != 4 {
		t.Errorf("length: got %d, want 4", got)
	}
	callMethod(t, th, sb, "charAt", "(I)C", JValue{I: 9})
	takeException(t, th, "java/lang/StringIndexOutOfBoundsException")
}

func TestHashMapBuiltin(t *testing.T) {
	th := newTestThread(t)
	m := newObj(t, th, "java/util/HashMap", "()V")
	const (
		put = "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"
		get = "(Ljava/lang/Object;)Ljava/lang/Object;"
	)
	key := func(s string) JValue { return JValue{L: th.NewStringUTF(s)} }

	if prev := callMethod(t, th, m, "put", put, key("a"), JValue{L: box(t, th, 1)}); prev.Ref != nil {
		t.Errorf("first put returned %v", prev.Ref)
	}
	prev := callMethod(t, th, m, "put", put, key("a"), JValue{L: box(t, th, 2)})
	if v, _ := boxedValue(prev.Ref); v.Int != 1 {
		t.Errorf("second put returned %+v, want 1", v)
	}

	got := callMethod(t, th, m, "get", get, key("a"))
	if v, _ := boxedValue(got.Ref); v.Int != 2 {
		t.Errorf("get(\"a\"): got %+v, want 2", v)
	}

	callMethod(t, th, m, "put", put, JValue{L: box(t, th, 1000)}, key("big"))
	if got := goStr(callMethod(t, th, m, "get", get, JValue{L: box(t, th, 1000)}).Ref); got != "big" {
		t.Errorf("boxed keys compare by value: got %q", got)
	}

	obj := newObj(t, th, "java/lang/Object", "()V")
	callMethod(t, th, m, "put", put, JValue{L: obj}, key("identity"))
	other := newObj(t, th, "java/lang/Object", "()V")
	if callMethod(t, th, m, "containsKey", "(Ljava/lang/Object;)Z", JValue{L: other}).Int != 0 {
		t.Error("plain objects must compare by identity")
	}
	if got := callMethod(t, th, m, "size", "()I").Int; got != 3 {
		t.Errorf("size: got %d, want 3", got)
	}

	callMethod(t, th, m, "remove", get, key("a"))
	if callMethod(t, th, m, "containsKey", "(Ljava/lang/Object;)Z", key("a")).Int != 0 {
		t.Error("removed key still present")
	}
	callMethod(t, th, m, "clear", "()V")
	if callMethod(t, th, m, "isEmpty", "()Z").Int == 0 {
		t.Error("map not empty after clear")
	}
	noException(t, th)

	mapClass := findClass(t, th, "java/util/Map")
	if !th.IsInstanceOf(m, mapClass) {
		t.Error("HashMap is not a Map")
	}
	mid := th.GetMethodID(mapClass, "size", "()I")
	if got := th.CallIntMethodA(m, mid, nil); got != 0 {
		t.Errorf("size through the interface: got %d", got)
	}
}

func TestTimeUnitBuiltin(t *testing.T) {
	th := newTestThread(t)
	const tu = "java/util/concurrent/TimeUnit"
	cls := findClass(t, th, tu)

	seconds := th.GetStaticFieldA(cls, th.GetStaticFieldID(cls, "SECONDS", "L"+tu+";")).L
	noException(t, th)
	if got := callMethod(t, th, seconds, "toMillis", "(J)J", JValue{J: 3}).Long; got != 3000 {
		t.Errorf("SECONDS.toMillis(3): got %d, want 3000", got)
	}
	if got := goStr(callMethod(t, th, seconds, "name", "()Ljava/lang/String;").Ref); got != "SECONDS" {
		t.Errorf("name: got %q", got)
	}

	hours := th.newLocal(callStaticMethod(t, th, tu, "valueOf", "(Ljava/lang/String;)L"+tu+";", JValue{L: th.NewStringUTF("HOURS")}).Ref)
	if got := callMethod(t, th, hours, "ordinal", "()I").Int; got != 5 {
		t.Errorf("HOURS.ordinal: got %d, want 5", got)
	}
	if got := callMethod(t, th, hours, "toMinutes", "(J)J", JValue{J: 2}).Long; got != 120 {
		t.Errorf("HOURS.toMinutes(2): got %d, want 120", got)
	}

	values := callStaticMethod(t, th, tu, "values", "()[L"+tu+";")
	var names []string
	for _, v := range values.Ref.Array {
		names = append(names, goStr(v.Ref.GetField("name").Ref))
	}
	want := []string{"NANOSECONDS", "MICROSECONDS", "MILLISECONDS", "SECONDS", "MINUTES", "HOURS", "DAYS"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("values() (-want +got):\n%s", diff)
	}

	callStaticMethod(t, th, tu, "valueOf", "(Ljava/lang/String;)L"+tu+";", JValue{L: th.NewStringUTF("WEEKS")})
	if msg := takeException(t, th, "java/lang/IllegalArgumentException"); msg != "No enum constant java.util.concurrent.TimeUnit.WEEKS" {
		t.Errorf("message: got %q", msg)
	}
}

func TestThrowableBuiltins(t *testing.T) {
	var errOut bytes.Buffer
	th := newTestThread(t, Options{Stderr: &errOut})

	cause := newObj(t, th, "java/io/IOException", "(Ljava/lang/String;)V", JValue{L: th.NewStringUTF("io")})
	outer := newObj(t, th, "java/lang/RuntimeException", "(Ljava/lang/String;Ljava/lang/Throwable;)V",
		JValue{L: th.NewStringUTF("outer")}, JValue{L: cause})

	got := th.newLocal(callMethod(t, th, outer, "getCause", "()Ljava/lang/Throwable;").Ref)
	if !th.IsSameObject(got, cause) {
		t.Error("getCause did not return the cause")
	}
	callMethod(t, th, outer, "printStackTrace", "()V")
	noException(t, th)
	want := "java.lang.RuntimeException: outer\nCaused by: java.io.IOException: io\n"
	if diff := cmp.Diff(want, errOut.String()); diff != "" {
		t.Errorf("printStackTrace (-want +got):\n%s", diff)
	}

	wrapped := newObj(t, th, "java/lang/IllegalStateException", "(Ljava/lang/Throwable;)V", JValue{L: cause})
	if got := goStr(callMethod(t, th, wrapped, "getMessage", "()Ljava/lang/String;").Ref); got != "java.io.IOException: io" {
		t.Errorf("message from cause: got %q", got)
	}
	callMethod(t, th, wrapped, "initCause", "(Ljava/lang/Throwable;)Ljava/lang/Throwable;", JValue{L: outer})
	takeException(t, th, "java/lang/IllegalStateException")

	bare := newObj(t, th, "java/lang/Error", "()V")
	if got := goStr(callMethod(t, th, bare, "toString", "()Ljava/lang/String;").Ref); got != "java.lang.Error" {
		t.Errorf("toString without message: got %q", got)
	}
}

func TestBoxBuiltins(t *testing.T) {
	th := newTestThread(t)
	long5 := th.newLocal(callStaticMethod(t, th, "java/lang/Long", "valueOf", "(J)Ljava/lang/Long;", JValue{J: 5}).Ref)
	other5 := th.newLocal(callStaticMethod(t, th, "java/lang/Long", "valueOf", "(J)Ljava/lang/Long;", JValue{J: 5}).Ref)

	if callMethod(t, th, long5, "equals", "(Ljava/lang/Object;)Z", JValue{L: other5}).Int == 0 {
		t.Error("Long(5).equals(Long(5)) = false")
	}
	if callMethod(t, th, long5, "equals", "(Ljava/lang/Object;)Z", JValue{L: box(t, th, 5)}).Int != 0 {
		t.Error("Long(5).equals(Integer(5)) = true")
	}
	if got := callMethod(t, th, box(t, th, 3), "compareTo", "(Ljava/lang/Integer;)I", JValue{L: box(t, th, 9)}).Int; got != -1 {
		t.Errorf("compareTo: got %d, want -1", got)
	}
	if got := callStaticMethod(t, th, "java/lang/Double", "parseDouble", "(Ljava/lang/String;)D", JValue{L: th.NewStringUTF("2.5")}).Double; got != 2.5 {
		t.Errorf("parseDouble: got %v", got)
	}
	if got := callMethod(t, th, long5, "intValue", "()I").Int; got != 5 {
		t.Errorf("Long.intValue: got %d", got)
	}

	tests := []struct {
		class, field, desc string
		want               JValue
	}{
		{"java/lang/Integer", "MAX_VALUE", "I", JValue{I: math.MaxInt32}},
		{"java/lang/Long", "MIN_VALUE", "J", JValue{J: math.MinInt64}},
		{"java/lang/Character", "MAX_VALUE", "C", JValue{C: math.MaxUint16}},
		{"java/lang/Byte", "MIN_VALUE", "B", JValue{B: math.MinInt8}},
	}
	for _, tt := range tests {
		t.Run(tt.class+"."+tt.field, func(t *testing.T) {
			cls := findClass(t, th, tt.class)
			got := th.GetStaticFieldA(cls, th.GetStaticFieldID(cls, tt.field, tt.desc))
			noException(t, th)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	boolean := findClass(t, th, "java/lang/Boolean")
	truth := th.GetStaticFieldA(boolean, th.GetStaticFieldID(boolean, "TRUE", "Ljava/lang/Boolean;")).L
	if !th.CallBooleanMethodA(truth, th.GetMethodID(boolean, "booleanValue", "()Z"), nil) {
		t.Error("Boolean.TRUE.booleanValue() = false")
	}
}
