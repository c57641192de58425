package services_test

import (
	"errors"
	"fmt"
	"testing"

	"sluice/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := fmt.Errorf("boom")
	err := services.Wrap(services.ErrNotFound, "tracker", "check", "chunk file missing", base)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "worker", "process", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient fallback, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "partition", "split", "chunk size must be positive", nil)
	if !services.IsFatal(fatal) {
		t.Fatal("configuration errors should be fatal")
	}
	item := services.Wrap(services.ErrItemProcessing, "worker", "process", "upload failed", nil)
	if services.IsFatal(item) {
		t.Fatal("item errors should not be fatal")
	}
}
