package pipeline

import (
	"context"
	"errors"
	"testing"

	"tickd/internal/gsi"
)

func TestMemoryStoreOptimisticVersioning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.Session(ctx, subject)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	b, err := store.Session(ctx, subject)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	a.Kills = 5
	if err := store.SaveSession(ctx, a); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("expected version 1 after first save, got %d", a.Version)
	}

	// The second loader still holds version 0; its save must fail.
	b.Kills = 9
	if err := store.SaveSession(ctx, b); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}

	reloaded, err := store.Session(ctx, subject)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if reloaded.Kills != 5 {
		t.Fatalf("conflicting save leaked through: kills=%d", reloaded.Kills)
	}
}

func TestMemoryStoreSessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := store.Session(ctx, subject)
	s.LastStats = &gsi.Counters{Kills: 3}
	if err := store.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// Mutating the caller's copy after the save must not reach the store.
	s.LastStats.Kills = 99
	reloaded, _ := store.Session(ctx, subject)
	if reloaded.LastStats == nil || reloaded.LastStats.Kills != 3 {
		t.Fatalf("stored session shares memory with the caller: %+v", reloaded.LastStats)
	}
}
