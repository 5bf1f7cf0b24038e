package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/finchat/internal/config"
	"github.com/soyeahso/finchat/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry maps model names to provider clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model name → provider name
	fallback string
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias routes a model name to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the provider used for models with no alias.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for a model reference.
// Resolution order: exact provider name, then alias, then fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}
	if c, ok := r.clients[r.fallback]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig builds a Registry holding the configured provider,
// with the primary model and every fallback model routed to it.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	var client Client
	switch cfg.Provider {
	case "gemini", "":
		if cfg.APIKey == "" {
			return nil, &ProviderError{Provider: "gemini", Message: "no API key (set llm.apiKey or GOOGLE_API_KEY)"}
		}
		client = NewGeminiAPIClient(cfg.APIKey, cfg.Model, WithBaseURL(cfg.Endpoint))
	case "mock":
		client = &MockClient{ProviderName: "mock"}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	name := client.Name()
	reg.Register(name, client)
	reg.SetFallback(name)
	for _, model := range append([]string{cfg.Model}, cfg.Fallbacks...) {
		if model != "" {
			reg.Alias(model, name)
		}
	}
	return reg, nil
}
