package payments

import (
	"fmt"
	"strings"
)

// Registry resolves adapters by payment method tag.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry over the supplied providers, keyed by their
// Name. Duplicate or anonymous providers are a wiring bug.
func NewRegistry(providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("payments: at least one provider is required")
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("payments: nil provider registration")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return nil, fmt.Errorf("payments: provider with empty name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("payments: duplicate provider %q", name)
		}
		byName[name] = p
	}
	return &Registry{providers: byName}, nil
}

// ForMethod returns the adapter registered under the given method tag.
func (r *Registry) ForMethod(method string) (Provider, error) {
	provider, ok := r.providers[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return provider, nil
}

// WebhookForMethod returns the adapter if it confirms payments via webhook.
func (r *Registry) WebhookForMethod(method string) (WebhookProvider, error) {
	provider, err := r.ForMethod(method)
	if err != nil {
		return nil, err
	}
	wp, ok := provider.(WebhookProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no webhook", ErrUnsupportedMethod, method)
	}
	return wp, nil
}

// CapturerForMethod returns the adapter if it confirms payments via redirect capture.
func (r *Registry) CapturerForMethod(method string) (Capturer, error) {
	provider, err := r.ForMethod(method)
	if err != nil {
		return nil, err
	}
	c, ok := provider.(Capturer)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no capture", ErrUnsupportedMethod, method)
	}
	return c, nil
}
