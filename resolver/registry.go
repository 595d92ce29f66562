package resolver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// Source is the loaded code unit targets are resolved against.
type Source interface {
	Lookup(name string) (functions.Factory, bool)
}

// Registry is the in-process code unit: named factories registered by compiled-in
// packages or by a loaded plugin. It is safe for concurrent use.
type Registry struct {
	factories map[string]functions.Factory
	mu        sync.RWMutex
}

var (
	_ Source              = (*Registry)(nil)
	_ functions.Registrar = (*Registry)(nil)
)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]functions.Factory),
	}
}

// Register adds a named factory. Names must be unique.
func (r *Registry) Register(name string, factory functions.Factory) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "name validation")
	}
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("function '%s' is already registered", name),
			"Registry",
			"Register",
			"duplicate name check",
		)
	}

	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name
func (r *Registry) Lookup(name string) (functions.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
