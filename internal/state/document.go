// Package state implements the replicated state document owned by a room.
//
// A Document tracks keyed collections (Map) and single records (Value).
// Every mutation bumps the document version and queues a Change; the owning
// room drains pending changes with Flush and pushes the resulting Patch to
// its subscribers. A Document is not safe for concurrent use: it belongs to
// exactly one room actor.
package state

import "sort"

// Op describes the kind of mutation a Change records.
type Op int

const (
	OpAdd Op = iota
	OpReplace
	OpRemove
)

// String returns the wire name of the operation.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// MarshalText encodes the operation by name.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Change is a single mutation of one record.
type Change struct {
	Version uint64 `json:"version"`
	Op      Op     `json:"op"`
	Path    string `json:"path"`
	Key     string `json:"key,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// Patch is the batch of changes accumulated since the previous flush.
type Patch struct {
	Version uint64   `json:"version"`
	Changes []Change `json:"changes"`
}

// Document is the root of a room's replicated state.
type Document struct {
	version uint64
	pending []Change
	fields  map[string]snapshotter
	order   []string
}

type snapshotter interface {
	snapshot() any
}

// NewDocument creates an empty document at version 0.
func NewDocument() *Document {
	return &Document{
		fields: make(map[string]snapshotter),
	}
}

// Version returns the version of the most recent mutation.
func (d *Document) Version() uint64 {
	return d.version
}

// Flush drains the pending changes.
// The second return value is false when nothing changed since the last flush.
func (d *Document) Flush() (Patch, bool) {
	if len(d.pending) == 0 {
		return Patch{Version: d.version}, false
	}
	p := Patch{Version: d.version, Changes: d.pending}
	d.pending = nil
	return p, true
}

// Snapshot returns a full copy of every registered field, keyed by path.
func (d *Document) Snapshot() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, name := range d.order {
		out[name] = d.fields[name].snapshot()
	}
	return out
}

func (d *Document) register(path string, f snapshotter) {
	if _, exists := d.fields[path]; exists {
		panic("state: duplicate path " + path)
	}
	d.fields[path] = f
	d.order = append(d.order, path)
	sort.Strings(d.order)
}

func (d *Document) record(op Op, path, key string, value any) {
	d.version++
	d.pending = append(d.pending, Change{
		Version: d.version,
		Op:      op,
		Path:    path,
		Key:     key,
		Value:   value,
	})
}
