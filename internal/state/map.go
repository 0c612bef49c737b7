package state

import "sort"

// Map is a keyed collection inside a Document.
// Values are stored by copy; use Update to mutate a record in place.
type Map[V any] struct {
	doc   *Document
	path  string
	items map[string]V
}

// NewMap registers a keyed collection at path.
// Panics if path is already registered on doc.
func NewMap[V any](doc *Document, path string) *Map[V] {
	m := &Map[V]{
		doc:   doc,
		path:  path,
		items: make(map[string]V),
	}
	doc.register(path, m)
	return m
}

// Set inserts or overwrites the record at key.
func (m *Map[V]) Set(key string, v V) {
	op := OpAdd
	if _, exists := m.items[key]; exists {
		op = OpReplace
	}
	m.items[key] = v
	m.doc.record(op, m.path, key, v)
}

// Get returns the record at key.
func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

// Update applies fn to the record at key and stores the result.
// Returns false (and does nothing) when key is absent.
func (m *Map[V]) Update(key string, fn func(v *V)) bool {
	v, ok := m.items[key]
	if !ok {
		return false
	}
	fn(&v)
	m.items[key] = v
	m.doc.record(OpReplace, m.path, key, v)
	return true
}

// Delete removes the record at key. Returns false if it was absent.
func (m *Map[V]) Delete(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	m.doc.record(OpRemove, m.path, key, nil)
	return true
}

// Len returns the number of records.
func (m *Map[V]) Len() int {
	return len(m.items)
}

// Keys returns all keys in sorted order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of every record in key order.
func (m *Map[V]) Values() []V {
	out := make([]V, 0, len(m.items))
	for _, k := range m.Keys() {
		out = append(out, m.items[k])
	}
	return out
}

func (m *Map[V]) snapshot() any {
	out := make(map[string]V, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out
}
