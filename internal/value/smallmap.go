package value

import "go.starlark.net/starlark"

// SmallMap is an insertion-ordered string→value map. Evaluation order is
// observable in the schematic output (children, connections, properties,
// pad groupings), so every map the value model exposes preserves order.
type SmallMap struct {
	keys   []string
	values map[string]starlark.Value
}

// NewSmallMap returns an empty ordered map.
func NewSmallMap() *SmallMap {
	return &SmallMap{values: make(map[string]starlark.Value)}
}

// Set inserts or replaces a key. Replacing keeps the original position.
func (m *SmallMap) Set(key string, v starlark.Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key, if present.
func (m *SmallMap) Get(key string) (starlark.Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *SmallMap) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of entries.
func (m *SmallMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (m *SmallMap) Keys() []string { return m.keys }

// Each visits entries in insertion order until fn returns an error.
func (m *SmallMap) Each(fn func(key string, v starlark.Value) error) error {
	for _, k := range m.keys {
		if err := fn(k, m.values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a shallow copy preserving order.
func (m *SmallMap) Clone() *SmallMap {
	out := NewSmallMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// Freeze freezes every contained value.
func (m *SmallMap) Freeze() {
	for _, v := range m.values {
		v.Freeze()
	}
}

// FromDict builds a SmallMap from a starlark dict, requiring string keys.
func FromDict(d *starlark.Dict) (*SmallMap, error) {
	out := NewSmallMap()
	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, errNonStringKey
		}
		out.Set(key, item[1])
	}
	return out, nil
}
