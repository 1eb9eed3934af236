package payments

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CreateCharge(context.Context, ChargeRequest) (Charge, error) {
	return Charge{}, nil
}

func TestRegistryResolvesByMethod(t *testing.T) {
	registry, err := NewRegistry(&stubProvider{name: "paypal"}, &stubProvider{name: "cryptomus"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if _, err := registry.ForMethod("paypal"); err != nil {
		t.Fatalf("resolve paypal: %v", err)
	}
	if _, err := registry.ForMethod("CRYPTOMUS"); err != nil {
		t.Fatalf("method lookup should be case-insensitive: %v", err)
	}
	if _, err := registry.ForMethod("yape"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("unknown method error = %v, want ErrUnsupportedMethod", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(&stubProvider{name: "whop"}, &stubProvider{name: "whop"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestRegistryGatesCapabilities(t *testing.T) {
	registry, err := NewRegistry(&stubProvider{name: "paypal"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := registry.WebhookForMethod("paypal"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("webhook lookup on non-webhook provider = %v, want ErrUnsupportedMethod", err)
	}
	if _, err := registry.CapturerForMethod("paypal"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("capture lookup on plain stub = %v, want ErrUnsupportedMethod", err)
	}
}
