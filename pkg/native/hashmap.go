package native

// HashMap is the storage behind java.util.HashMap. Keys are compared through
// keyOf, which maps a key to a comparable Go value (String and Integer keys
// compare by content, other objects by identity).
type HashMap struct {
	keyOf   func(any) any
	entries map[any]mapEntry
}

type mapEntry struct {
	key   any
	value any
}

// NewHashMap creates an empty HashMap. A nil keyOf compares keys as-is.
func NewHashMap(keyOf func(any) any) *HashMap {
	if keyOf == nil {
		keyOf = func(k any) any { return k }
	}
	return &HashMap{keyOf: keyOf, entries: make(map[any]mapEntry)}
}

// Get returns the value for the given key, or nil.
func (m *HashMap) Get(key any) any {
	return m.entries[m.keyOf(key)].value
}

// ContainsKey reports whether key has a mapping.
func (m *HashMap) ContainsKey(key any) bool {
	_, ok := m.entries[m.keyOf(key)]
	return ok
}

// Put stores a key-value pair and returns the previous value.
func (m *HashMap) Put(key, value any) any {
	k := m.keyOf(key)
	old := m.entries[k].value
	m.entries[k] = mapEntry{key: key, value: value}
	return old
}

// Remove deletes the mapping for key and returns the previous value.
func (m *HashMap) Remove(key any) any {
	k := m.keyOf(key)
	old := m.entries[k].value
	delete(m.entries, k)
	return old
}

// Len returns the number of mappings.
func (m *HashMap) Len() int { return len(m.entries) }

// Clear removes every mapping.
func (m *HashMap) Clear() { clear(m.entries) }

// Keys returns the original key objects in unspecified order.
func (m *HashMap) Keys() []any {
	keys := make([]any, 0, len(m.entries))
	for _, e := range m.entries {
		keys = append(keys, e.key)
	}
	return keys
}
