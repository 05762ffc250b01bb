// Package store persists the per-encounter harm evidence aggregate. The
// engine's per-encounter mutex already guarantees a single writer per key, so
// implementations only need plain per-key read-then-write semantics.
package store

import (
	"context"
	"errors"

	"github.com/harmwatch/harmwatch/internal/harm"
)

// ErrNotFound indicates no aggregate is stored for the encounter.
var ErrNotFound = errors.New("aggregate not found")

// AggregateStore persists harm evidence aggregates by encounter id.
type AggregateStore interface {
	Get(ctx context.Context, encounterID string) (*harm.Aggregate, error)
	Put(ctx context.Context, agg *harm.Aggregate) error
	Delete(ctx context.Context, encounterID string) error
	// ListEncounterIDs returns the ids of all stored aggregates; the timer
	// loop uses it to drive periodic recomputation.
	ListEncounterIDs(ctx context.Context) ([]string, error)
}
