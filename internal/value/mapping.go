package value

// Mapping is a string-keyed map that remembers insertion order. Re-setting an
// existing key keeps its original position.
type Mapping struct {
	keys   []string
	values map[string]Value
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: map[string]Value{}}
}

// MappingOf builds a mapping from alternating key/value pairs; it is mostly a
// convenience for tests and built-in defaults.
func MappingOf(pairs ...any) *Mapping {
	m := NewMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case Value:
			m.Set(key, v)
		case string:
			m.Set(key, Scalar(v))
		case []string:
			m.Set(key, Strings(v...))
		case *Mapping:
			m.Set(key, Map(v))
		}
	}
	return m
}

// Len returns the number of entries. A nil mapping is empty.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get looks up a key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores a value under key.
func (m *Mapping) Set(key string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key if present.
func (m *Mapping) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string{}, m.keys...)
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	out := NewMapping()
	if m == nil {
		return out
	}
	for _, key := range m.keys {
		out.Set(key, m.values[key].Clone())
	}
	return out
}

// Equal compares entries regardless of order.
func (m *Mapping) Equal(other *Mapping) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, key := range m.Keys() {
		a, _ := m.Get(key)
		b, ok := other.Get(key)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}
