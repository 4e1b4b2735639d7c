package observability

import (
	"context"
	"testing"

	"github.com/oriys/rift/internal/config"
)

func TestInitWithDisabledConfigInstallsNoopTracer(t *testing.T) {
	if err := Init(context.Background(), config.TracingConfig{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Fatal("expected Enabled() false after disabled Init")
	}
	if Tracer() == nil {
		t.Fatal("Tracer() must never be nil")
	}
}

func TestTracerStartReturnsUsableSpanWhenDisabled(t *testing.T) {
	if err := Init(context.Background(), config.TracingConfig{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "test-span")
	defer span.End()
	if span == nil {
		t.Fatal("expected a non-nil span from the noop tracer")
	}
}

func TestShutdownWithoutInitIsANoop(t *testing.T) {
	if err := Init(context.Background(), config.TracingConfig{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on an uninitialized provider should be a no-op, got %v", err)
	}
}
