// Package registry provides a named factory registry.
// The session orchestrator registers one factory per session type
// ("matchmaking", "game") and instantiates rooms by name, without the
// orchestrator depending on concrete room types.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned by Create when no factory is registered under a name.
var ErrUnknown = errors.New("registry: unknown type")

// Factory builds a new instance from creation options.
type Factory[T any, O any] func(opts O) (T, error)

// Registry maps type names to factories. Safe for concurrent use.
type Registry[T any, O any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T, O]
}

// New creates an empty registry.
func New[T any, O any]() *Registry[T, O] {
	return &Registry[T, O]{
		factories: make(map[string]Factory[T, O]),
	}
}

// Register adds a factory under name.
// Panics if the name is already registered.
func (r *Registry[T, O]) Register(name string, f Factory[T, O]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("registry: type %q already registered", name))
	}
	r.factories[name] = f
}

// List returns the registered names, sorted.
func (r *Registry[T, O]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.factories))
	for name := range r.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Create instantiates the type registered under name.
func (r *Registry[T, O]) Create(name string, opts O) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, fmt.Errorf("%w %q", ErrUnknown, name)
	}
	return f(opts)
}
