package jobject

import (
	"testing"

	"github.com/daimatz/gojni/pkg/jni"
)

func TestHashMapStrings(t *testing.T) {
	p, env := attach(t)
	if _, err := env.Resolve(hashMapClass); err != nil {
		t.Fatal(err)
	}
	before := p.VM().GlobalRefCount()

	m, err := NewHashMap(env)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.ClassName(); got != "java.util.HashMap" {
		t.Errorf("ClassName() = %q", got)
	}
	for k, v := range map[string]string{"a": "1", "b": "2"} {
		if err := m.PutString(k, v); err != nil {
			t.Fatalf("PutString(%q): %v", k, err)
		}
	}
	if err := m.PutString("a", "3"); err != nil {
		t.Fatal(err)
	}
	if n, err := m.Size(); err != nil || n != 2 {
		t.Errorf("Size() = %d, %v, want 2", n, err)
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"a", "3", true},
		{"b", "2", true},
		{"c", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok, err := m.GetString(tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetString(%q) = %q, %v, want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := m.Size(); n != 0 {
		t.Errorf("Size() after Clear = %d", n)
	}
	closeOrFail(t, m)
	if got := p.VM().GlobalRefCount(); got != before {
		t.Errorf("global refs = %d, want %d", got, before)
	}
}

func TestHashMapRefs(t *testing.T) {
	_, env := attach(t)
	m, err := NewHashMap(env)
	if err != nil {
		t.Fatal(err)
	}
	defer closeOrFail(t, m)

	key, err := env.CallStaticMethod("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", jni.Int(7))
	if err != nil {
		t.Fatal(err)
	}
	defer env.DeleteLocalRef(key.L)
	val, err := env.NewString("seven")
	if err != nil {
		t.Fatal(err)
	}
	defer env.DeleteLocalRef(val)

	if prev, err := m.Put(key.L, val); err != nil || prev != 0 {
		t.Fatalf("Put = %v, %v, want no previous value", prev, err)
	}
	if ok, err := m.ContainsKey(key.L); err != nil || !ok {
		t.Errorf("ContainsKey = %v, %v", ok, err)
	}
	removed, err := m.Remove(key.L)
	if err != nil {
		t.Fatal(err)
	}
	defer env.DeleteLocalRef(removed)
	if s, _ := env.StringValue(removed); s != "seven" {
		t.Errorf("Remove returned %q", s)
	}
	if ok, _ := m.ContainsKey(key.L); ok {
		t.Error("key still present after Remove")
	}
}
