package auth

import "fmt"

// ProviderRegistry maps provider names to their single shared Provider
// instance. Providers are constructed exactly once, at registry construction,
// and the registry is the only owner of provider instances. The registry is
// immutable after construction and therefore safe for concurrent use.
type ProviderRegistry struct {
	providers map[string]Provider
}

// NewProviderRegistry creates a registry owning the given providers.
// Registering two providers with the same name is a programming error.
func NewProviderRegistry(providers ...Provider) (*ProviderRegistry, error) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if _, exists := m[p.Name()]; exists {
			return nil, fmt.Errorf("duplicate provider name %s", p.Name())
		}
		m[p.Name()] = p
	}
	return &ProviderRegistry{providers: m}, nil
}

// Get returns the provider registered under name, or a *ProviderNotFoundError
// if the name is unregistered.
func (r *ProviderRegistry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &ProviderNotFoundError{Name: name}
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
