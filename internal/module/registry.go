package module

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a module instance from its params.
type Factory func(Params) (Module, error)

// Registry maintains known module factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a module factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("module: name is required")
	}
	if factory == nil {
		return fmt.Errorf("module: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs a module by name. Unknown names and invalid
// descriptors are configuration errors.
func (r *Registry) Resolve(name string, params Params) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Module: name, Err: ErrUnknownModule}
	}
	if params == nil {
		params = Params{}
	}
	mod, err := factory(params)
	if err != nil {
		return nil, &ConfigError{Module: name, Reason: "construct", Err: err}
	}
	if err := mod.Descriptor().Validate(); err != nil {
		return nil, err
	}
	return mod, nil
}

// Names returns a sorted list of registered module names.
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
