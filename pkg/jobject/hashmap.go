package jobject

import "github.com/daimatz/gojni/pkg/jni"

const (
	hashMapClass = "java/util/HashMap"
	objectDesc   = "Ljava/lang/Object;"
)

// HashMap is a java.util.HashMap. Keys and values are runtime references.
type HashMap struct {
	*jni.Object
}

// NewHashMap constructs an empty map.
func NewHashMap(env jni.Env) (*HashMap, error) {
	local, err := env.NewObject(hashMapClass, "()V")
	if err != nil {
		return nil, err
	}
	obj, err := jni.NewObject(env, local)
	if err != nil {
		return nil, err
	}
	return &HashMap{obj}, nil
}

func (m *HashMap) call(name, sig string, args ...jni.Value) (jni.Value, error) {
	return m.Env().CallMethod(m.Ref(), hashMapClass, name, sig, false, args...)
}

// Put associates value with key and returns the previous value as a local
// reference, or 0.
func (m *HashMap) Put(key, value jni.Ref) (jni.Ref, error) {
	v, err := m.call("put", "("+objectDesc+objectDesc+")"+objectDesc, jni.ObjectValue(key), jni.ObjectValue(value))
	return v.L, err
}

// Get returns the value of key as a local reference, or 0.
func (m *HashMap) Get(key jni.Ref) (jni.Ref, error) {
	v, err := m.call("get", "("+objectDesc+")"+objectDesc, jni.ObjectValue(key))
	return v.L, err
}

// Remove deletes key and returns its value as a local reference, or 0.
func (m *HashMap) Remove(key jni.Ref) (jni.Ref, error) {
	v, err := m.call("remove", "("+objectDesc+")"+objectDesc, jni.ObjectValue(key))
	return v.L, err
}

func (m *HashMap) ContainsKey(key jni.Ref) (bool, error) {
	v, err := m.call("containsKey", "("+objectDesc+")Z", jni.ObjectValue(key))
	return v.Z, err
}

func (m *HashMap) Size() (int, error) {
	v, err := m.call("size", "()I")
	return int(v.I), err
}

func (m *HashMap) Clear() error {
	_, err := m.call("clear", "()V")
	return err
}

// PutString stores a String value under a String key.
func (m *HashMap) PutString(key, value string) error {
	env := m.Env()
	k, err := env.NewString(key)
	if err != nil {
		return err
	}
	defer env.DeleteLocalRef(k)
	v, err := env.NewString(value)
	if err != nil {
		return err
	}
	defer env.DeleteLocalRef(v)
	prev, err := m.Put(k, v)
	env.DeleteLocalRef(prev)
	return err
}

// GetString returns the String stored under key. ok is false when the key
// is absent.
func (m *HashMap) GetString(key string) (value string, ok bool, err error) {
	env := m.Env()
	k, err := env.NewString(key)
	if err != nil {
		return "", false, err
	}
	defer env.DeleteLocalRef(k)
	v, err := m.Get(k)
	if err != nil || v == 0 {
		return "", false, err
	}
	defer env.DeleteLocalRef(v)
	s, err := env.StringValue(v)
	return s, err == nil, err
}
