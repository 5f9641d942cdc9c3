package telemetry

import (
	"context"
	"testing"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource_DefaultServiceName(t *testing.T) {
	res, err := newResource(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := res.Set().Value(semconv.ServiceNameKey)
	if !ok || v.AsString() != DefaultServiceName {
		t.Errorf("service.name = %q, want %q", v.AsString(), DefaultServiceName)
	}
	if _, ok := res.Set().Value(semconv.ServiceVersionKey); ok {
		t.Error("service.version should be absent when not configured")
	}
}

func TestNewResource_Overrides(t *testing.T) {
	res, err := newResource(Config{ServiceName: "frontdesk", ServiceVersion: "1.4.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := res.Set().Value(semconv.ServiceNameKey); v.AsString() != "frontdesk" {
		t.Errorf("service.name = %q, want %q", v.AsString(), "frontdesk")
	}
	if v, _ := res.Set().Value(semconv.ServiceVersionKey); v.AsString() != "1.4.0" {
		t.Errorf("service.version = %q, want %q", v.AsString(), "1.4.0")
	}
}

func TestNoopShutdown(t *testing.T) {
	if err := noopShutdown(context.Background()); err != nil {
		t.Errorf("noopShutdown returned %v", err)
	}
}
