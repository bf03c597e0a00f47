package status

import (
	"testing"
	"time"
)

func TestRegistry_SetAndGet(t *testing.T) {
	registry := NewRegistry(10 * time.Minute)
	defer registry.Close()

	registry.Set("sub-1", StatePending, "")

	rec, ok := registry.Get("sub-1")
	if !ok {
		t.Fatal("record not found")
	}
	if rec.State != StatePending {
		t.Errorf("State = %q, want %q", rec.State, StatePending)
	}
	if rec.SubmissionID != "sub-1" {
		t.Errorf("SubmissionID = %q, want %q", rec.SubmissionID, "sub-1")
	}

	registry.Set("sub-1", StateDelivered, "up-9")

	rec, ok = registry.Get("sub-1")
	if !ok {
		t.Fatal("record not found after update")
	}
	if rec.State != StateDelivered {
		t.Errorf("State = %q, want %q", rec.State, StateDelivered)
	}
	if rec.UpstreamID != "up-9" {
		t.Errorf("UpstreamID = %q, want %q", rec.UpstreamID, "up-9")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry(10 * time.Minute)
	defer registry.Close()

	if _, ok := registry.Get("nope"); ok {
		t.Error("Get() returned a record for an unknown id")
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	registry := NewRegistry(10 * time.Minute)
	defer registry.Close()

	registry.Set("sub-1", StatePending, "")
	rec, _ := registry.Get("sub-1")
	rec.State = StateFailed

	again, _ := registry.Get("sub-1")
	if again.State != StatePending {
		t.Error("mutating a returned record changed registry state")
	}
}

func TestRegistry_Pending(t *testing.T) {
	registry := NewRegistry(10 * time.Minute)
	defer registry.Close()

	registry.Set("a", StatePending, "")
	registry.Set("b", StatePending, "")
	registry.Set("c", StateDelivered, "up-1")
	registry.Set("d", StateFailed, "")

	if got := registry.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

func TestRegistry_CleanupRemovesExpired(t *testing.T) {
	registry := NewRegistry(50 * time.Millisecond)
	defer registry.Close()

	registry.Set("sub-1", StateDelivered, "")
	time.Sleep(80 * time.Millisecond)

	// Force a cleanup pass rather than waiting for the ticker.
	registry.cleanup()

	if _, ok := registry.Get("sub-1"); ok {
		t.Error("expired record survived cleanup")
	}
}
