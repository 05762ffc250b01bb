package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harmwatch/harmwatch/internal/harm"
)

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	agg := harm.NewAggregate("E1", "P1", now)
	if err := s.Put(ctx, agg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := s.Get(ctx, "E1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Pain.CurrentScore = 3

	second, err := s.Get(ctx, "E1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Pain.CurrentScore != harm.ScoreNotDocumented {
		t.Error("mutating a fetched aggregate must not affect the stored document")
	}
}

func TestMemoryStore_DeleteAndMiss(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if err := s.Put(ctx, harm.NewAggregate("E1", "P1", now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete(ctx, "E1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "E1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
