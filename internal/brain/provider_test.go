package brain

import (
	"context"
	"testing"
	"time"
)

type fakeProvider struct {
	name      string
	available bool
	calls     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Generate(_ context.Context, _ Request) (Response, error) {
	f.calls++
	return Response{Content: f.name + " says hi"}, nil
}

func TestGetAvailableFallsThrough(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "down", available: false})
	up := &fakeProvider{name: "up", available: true}
	pm.AddProvider(up)

	got := pm.GetAvailable()
	if got == nil || got.Name() != "up" {
		t.Fatalf("expected the available provider, got %v", got)
	}
}

func TestGetAvailablePreferred(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "first", available: true})
	pm.AddProvider(&fakeProvider{name: "second", available: true})
	pm.SetPreferred("second")

	if got := pm.GetAvailable(); got.Name() != "second" {
		t.Errorf("expected preferred provider, got %q", got.Name())
	}

	// Preferred but unavailable falls back to the first available.
	pm2 := NewProviderManager()
	pm2.AddProvider(&fakeProvider{name: "first", available: true})
	pm2.AddProvider(&fakeProvider{name: "second", available: false})
	pm2.SetPreferred("second")
	if got := pm2.GetAvailable(); got.Name() != "first" {
		t.Errorf("expected fallback provider, got %q", got.Name())
	}
}

func TestGetAvailableNone(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "down", available: false})
	if got := pm.GetAvailable(); got != nil {
		t.Errorf("expected nil with no available providers, got %v", got)
	}
}

func TestListAvailable(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "a", available: true})
	pm.AddProvider(&fakeProvider{name: "b", available: false})
	pm.AddProvider(&fakeProvider{name: "c", available: true})

	names := pm.ListAvailable()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Errorf("unexpected available list: %v", names)
	}
}

func TestThrottleSpacesCalls(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true}
	throttled := Throttle(inner, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := throttled.Generate(context.Background(), Request{}); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First call is immediate; the next two wait ~50ms each.
	if elapsed < 90*time.Millisecond {
		t.Errorf("three calls finished in %v, throttle not applied", elapsed)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 inner calls, got %d", inner.calls)
	}
}

func TestThrottleZeroIntervalIsNoop(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true}
	if got := Throttle(inner, 0); got != Provider(inner) {
		t.Error("non-positive interval must return the provider unchanged")
	}
}

func TestThrottleHonoursCancellation(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true}
	throttled := Throttle(inner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := throttled.Generate(ctx, Request{}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	cancel()
	if _, err := throttled.Generate(ctx, Request{}); err == nil {
		t.Error("cancelled context must abort the throttled wait")
	}
}
