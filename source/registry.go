package source

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a configured source. Concrete backends register one
// under a short name from their package init.
type Factory func(cfg Config) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a source factory available under name. Registering
// the same name twice panics; this indicates conflicting backend
// packages linked into one binary.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("photofs: source %q registered twice", name))
	}

	registry[name] = factory
}

// Open creates the source registered under name. An unregistered name
// is a configuration error.
func Open(name string, cfg Config) (Source, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q is not a valid image source", ErrConfig, name)
	}

	return factory(cfg)
}

// Names returns the names of all registered sources, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
