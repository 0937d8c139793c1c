package transport

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"utfgrid/internal/grid"
	"utfgrid/internal/tile"
)

const callbackPrefix = "lu_"

// Registry holds the named callbacks a loaded script may invoke.
// Each registry has its own namespace; Reset moves to a fresh one so late
// invocations against dropped names are ignored.
type Registry struct {
	mu        sync.Mutex
	namespace string
	entries   map[string]func(*grid.Document)
}

func NewRegistry() *Registry {
	return &Registry{
		namespace: newNamespace(),
		entries:   make(map[string]func(*grid.Document)),
	}
}

func newNamespace() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return callbackPrefix + id[:12]
}

// Register stores fn under a name derived from the tile and returns the name.
func (r *Registry) Register(k tile.Key, fn func(*grid.Document)) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := fmt.Sprintf("%s.%s%d_%d_%d", r.namespace, callbackPrefix, k.X, k.Y, k.Z)
	r.entries[name] = fn
	return name
}

// Invoke removes the named callback and calls it with doc.
// It reports false when no such callback is registered.
func (r *Registry) Invoke(name string, doc *grid.Document) bool {
	r.mu.Lock()
	fn, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	fn(doc)
	return true
}

// Remove drops the named callback. It reports whether it was registered.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// Reset drops every callback and switches to a new namespace.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]func(*grid.Document))
	r.namespace = newNamespace()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
