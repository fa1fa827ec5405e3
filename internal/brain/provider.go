// Package brain abstracts the inference services the pipeline calls
// for text generation. Providers are constructed explicitly and passed
// into stages at construction time; there are no package-level client
// singletons.
package brain

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Provider is the interface for inference providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to an inference provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response is the inference provider's response
type Response struct {
	Content     string
	Model       string
	TokensUsed  int
	RawResponse string // The raw API response body for logging/debugging
}

// ProviderManager manages multiple inference providers with fallback
type ProviderManager struct {
	providers []Provider
	preferred string // Preferred provider name
}

// NewProviderManager creates a new provider manager
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		providers: make([]Provider, 0),
	}
}

// AddProvider adds a provider to the manager
func (pm *ProviderManager) AddProvider(p Provider) {
	pm.providers = append(pm.providers, p)
}

// SetPreferred sets the preferred provider by name
func (pm *ProviderManager) SetPreferred(name string) {
	pm.preferred = name
}

// GetAvailable returns the first available provider, preferring the preferred one
func (pm *ProviderManager) GetAvailable() Provider {
	if pm.preferred != "" {
		for _, p := range pm.providers {
			if p.Name() == pm.preferred && p.Available() {
				return p
			}
		}
	}

	for _, p := range pm.providers {
		if p.Available() {
			return p
		}
	}

	return nil
}

// GetByName returns a provider by name
func (pm *ProviderManager) GetByName(name string) Provider {
	for _, p := range pm.providers {
		if p.Name() == name && p.Available() {
			return p
		}
	}
	return nil
}

// ListAvailable returns names of all available providers
func (pm *ProviderManager) ListAvailable() []string {
	var names []string
	for _, p := range pm.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// throttledProvider enforces a minimum inter-call delay toward an
// upstream service. The limit is advisory: it spaces calls out, it does
// not cap concurrent outstanding work.
type throttledProvider struct {
	Provider
	limiter *rate.Limiter
}

// Throttle wraps a provider with a minimum delay between calls.
// A non-positive interval returns the provider unchanged.
func Throttle(p Provider, minInterval time.Duration) Provider {
	if minInterval <= 0 {
		return p
	}
	return &throttledProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (t *throttledProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return t.Provider.Generate(ctx, req)
}
