package server

import (
	"errors"
	"testing"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(testLogger())

	if err := registry.Register(1, newOutbound()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := registry.Register(1, newOutbound()); !errors.Is(err, ErrDuplicateConnection) {
		t.Errorf("expected ErrDuplicateConnection, got %v", err)
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(testLogger())

	if err := registry.Register(7, newOutbound()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	registry.Unregister(7)
	// Disconnect races make a second unregister a no-op, not an error.
	registry.Unregister(7)
	registry.Unregister(42)

	if got := registry.Count(); got != 0 {
		t.Errorf("expected 0 registered connections, got %d", got)
	}
}

func TestRegistrySendEnqueues(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(testLogger())
	outbound := newOutbound()

	if err := registry.Register(3, outbound); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	registry.Send(3, []byte("hello"))

	select {
	case got := <-outbound:
		if string(got) != "hello" {
			t.Errorf("expected %q, got %q", "hello", got)
		}
	default:
		t.Fatal("expected a frame on the outbound channel")
	}
}

func TestRegistrySendToAbsentIDDropped(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(testLogger())

	// Must not panic or error; the connection already went away.
	registry.Send(99, []byte("gone"))
}

func TestRegistrySendFullBufferDropped(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(testLogger())
	outbound := make(chan []byte, 1)

	if err := registry.Register(5, outbound); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	registry.Send(5, []byte("first"))
	registry.Send(5, []byte("second")) // buffer full, dropped

	if got := len(outbound); got != 1 {
		t.Errorf("expected 1 queued frame, got %d", got)
	}
}
