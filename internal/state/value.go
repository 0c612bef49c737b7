package state

// Value is a single record inside a Document.
type Value[V any] struct {
	doc  *Document
	path string
	v    V
}

// NewValue registers a single record at path with an initial value.
// The initial value is not reported as a change.
func NewValue[V any](doc *Document, path string, initial V) *Value[V] {
	val := &Value[V]{doc: doc, path: path, v: initial}
	doc.register(path, val)
	return val
}

// Get returns a copy of the current record.
func (s *Value[V]) Get() V {
	return s.v
}

// Set replaces the record.
func (s *Value[V]) Set(v V) {
	s.v = v
	s.doc.record(OpReplace, s.path, "", v)
}

// Update mutates the record in place.
func (s *Value[V]) Update(fn func(v *V)) {
	fn(&s.v)
	s.doc.record(OpReplace, s.path, "", s.v)
}

func (s *Value[V]) snapshot() any {
	return s.v
}
