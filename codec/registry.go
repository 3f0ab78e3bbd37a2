package codec

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Registry maps method name -> descriptor. The zero value is not ready for
// use; construct with NewRegistry or use Default.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*Method
}

// NewRegistry returns a fresh, empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]*Method)}
}

// Register adds desc to r. Re-registering an existing name is a no-op
// success; the existing descriptor is kept, not replaced.
func (r *Registry) Register(desc *Method) error {
	if desc == nil || desc.Name == "" {
		return newError(KindInvalidArg, "registry.register", "method descriptor must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[desc.Name]; exists {
		return nil
	}
	r.methods[desc.Name] = desc
	return nil
}

// Find looks up name. The returned bool is false if no such method is
// registered; Registry lookups are safe for concurrent readers once all
// registrations have settled.
func (r *Registry) Find(name string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}

// Names returns the registered method names in sorted order, useful for
// debugging/introspection and for deterministic test output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-global singleton registry. It is created on
// first access and never destroyed.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Destroy is a no-op for the default registry and a best-effort release of
// a non-default one's internal map. It exists for API symmetry with
// registry construction; Go's GC reclaims everything else.
func Destroy(r *Registry) {
	if r == nil || r == defaultRegistry {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = nil
}
