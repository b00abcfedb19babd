package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/GridPilot/pkg/validation"
)

// ProviderFactory builds a client for a backend model identifier.
type ProviderFactory func(model string) (LLMClient, error)

type providerRoute struct {
	name    string
	matches func(model string) bool
	factory ProviderFactory
}

// Registry maps backend identifier shapes to provider factories. Routing
// is table-driven so new providers are added with Register, never by
// editing callers. Lookup walks routes in registration order and clients
// are cached per identifier.
type Registry struct {
	mu      sync.Mutex
	routes  []providerRoute
	clients map[string]LLMClient
}

// NewRegistry returns a registry with the two built-in providers:
// namespaced identifiers (containing "/") route to the OpenRouter cloud
// provider, bare identifiers to the local Ollama provider.
func NewRegistry() *Registry {
	r := &Registry{clients: make(map[string]LLMClient)}
	r.Register("openrouter",
		func(model string) bool { return strings.Contains(model, "/") },
		func(model string) (LLMClient, error) { return NewOpenRouterClient(model) })
	r.Register("ollama",
		func(model string) bool { return true },
		func(model string) (LLMClient, error) { return NewOllamaClient(model) })
	return r
}

// Register appends a route. Earlier routes win, so specific matchers must
// be registered before catch-alls.
func (r *Registry) Register(name string, matches func(string) bool, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, providerRoute{name: name, matches: matches, factory: factory})
}

// ForModel returns the client for a backend identifier, constructing and
// caching it on first use.
func (r *Registry) ForModel(model string) (LLMClient, error) {
	model = strings.TrimSpace(model)
	if err := validation.ValidateBackendID(model); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[model]; ok {
		return client, nil
	}
	for _, route := range r.routes {
		if !route.matches(model) {
			continue
		}
		client, err := route.factory(model)
		if err != nil {
			return nil, fmt.Errorf("provider %q for model %q: %w", route.name, model, err)
		}
		r.clients[model] = client
		return client, nil
	}
	return nil, fmt.Errorf("no provider matches model %q", model)
}

// ProviderName reports which route would serve an identifier without
// constructing a client. Used for logging and session summaries.
func (r *Registry) ProviderName(model string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, route := range r.routes {
		if route.matches(model) {
			return route.name
		}
	}
	return "unknown"
}
