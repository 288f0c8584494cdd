package providers

import (
	"fmt"
	"sync"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// Registry holds the configured research provider for each metered provider
type Registry struct {
	providers map[models.Provider]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a registry pre-populated with the given providers
func NewRegistry(list ...Provider) *Registry {
	r := &Registry{
		providers: make(map[models.Provider]Provider),
	}
	for _, p := range list {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its own name
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name models.Provider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

// Has checks if a provider is registered
func (r *Registry) Has(name models.Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[name]
	return exists
}

// Validate ensures every metered provider has an implementation
func (r *Registry) Validate() error {
	for _, name := range models.Providers {
		if !r.Has(name) {
			return fmt.Errorf("provider %q is not configured", name)
		}
	}
	return nil
}
