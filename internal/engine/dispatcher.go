package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/harm"
	"github.com/harmwatch/harmwatch/internal/platform/keymutex"
	"github.com/harmwatch/harmwatch/internal/platform/metrics"
	"github.com/harmwatch/harmwatch/internal/store"
)

// Dispatcher runs the full read-recompute-write cycle for one event under the
// per-encounter lock. It is safe for concurrent use; events for distinct
// encounters proceed in parallel, events for the same encounter serialize.
type Dispatcher struct {
	locks *keymutex.KeyMutex
	store store.AggregateStore
	rules *Rules
	clock func() time.Time
	log   zerolog.Logger
}

func NewDispatcher(st store.AggregateStore, rules *Rules, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		locks: keymutex.New(),
		store: st,
		rules: rules,
		clock: time.Now,
		log:   log,
	}
}

// SetClock replaces the facility clock; tests use it for deterministic
// windows.
func (d *Dispatcher) SetClock(clock func() time.Time) { d.clock = clock }

// Dispatch consumes one event. Updater failures are contained per routine and
// never abort the remaining routines; the aggregate is persisted with
// whatever fields were successfully computed. Only aggregate store failure
// propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if ev.EncounterID == "" {
		return fmt.Errorf("event has no encounter id")
	}
	started := time.Now()
	metrics.EventDispatched(string(ev.Type))
	defer func() { metrics.ObserveDispatch(string(ev.Type), time.Since(started)) }()

	d.locks.Acquire(ev.EncounterID)
	defer d.locks.Release(ev.EncounterID)
	metrics.ObserveLockWait(time.Since(started))

	if ev.Type == EventDischarge {
		return d.discharge(ctx, ev)
	}

	now := d.clock()
	agg, err := d.loadOrSynthesize(ctx, ev, now)
	if err != nil {
		return err
	}

	hc := harm.Context{EncounterID: ev.EncounterID, PatientID: ev.PatientID, Now: now}
	if hc.PatientID == "" {
		hc.PatientID = agg.PatientID
	}

	for _, routine := range d.rules.RoutinesFor(ev) {
		d.runRoutine(ctx, routine, agg, hc, ev)
	}

	agg.UpdatedAt = now
	if err := d.store.Put(ctx, agg); err != nil {
		return fmt.Errorf("persist aggregate %s: %w", ev.EncounterID, err)
	}
	return nil
}

// loadOrSynthesize loads the current aggregate or creates a fresh default
// one. A miss is expected for admit events; for any other type it indicates
// an out-of-order event, which is tolerated but logged.
func (d *Dispatcher) loadOrSynthesize(ctx context.Context, ev Event, now time.Time) (*harm.Aggregate, error) {
	agg, err := d.store.Get(ctx, ev.EncounterID)
	if err == nil {
		return agg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load aggregate %s: %w", ev.EncounterID, err)
	}
	if ev.Type != EventAdmit {
		d.log.Warn().
			Str("encounter_id", ev.EncounterID).
			Str("event_type", string(ev.Type)).
			Msg("no aggregate for non-admit event, synthesizing default (out-of-order event)")
	}
	return harm.NewAggregate(ev.EncounterID, ev.PatientID, now), nil
}

// runRoutine executes one updater with panic and error containment. One
// malformed fact must not block unrelated sections from updating.
func (d *Dispatcher) runRoutine(ctx context.Context, routine Routine, agg *harm.Aggregate, hc harm.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.UpdaterFailed(routine.Name)
			d.log.Error().
				Str("routine", routine.Name).
				Str("encounter_id", hc.EncounterID).
				Interface("panic", r).
				Msg("updater panicked, remaining routines continue")
		}
	}()

	if err := routine.Run(ctx, agg, hc, ev.Facts); err != nil {
		metrics.UpdaterFailed(routine.Name)
		d.log.Error().
			Err(err).
			Str("routine", routine.Name).
			Str("encounter_id", hc.EncounterID).
			Msg("updater failed, remaining routines continue")
	}
}

// discharge persists a final snapshot of the aggregate, then removes it.
func (d *Dispatcher) discharge(ctx context.Context, ev Event) error {
	agg, err := d.store.Get(ctx, ev.EncounterID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		d.log.Warn().Str("encounter_id", ev.EncounterID).Msg("discharge for unknown encounter")
	case err != nil:
		return fmt.Errorf("load aggregate %s: %w", ev.EncounterID, err)
	default:
		agg.UpdatedAt = d.clock()
		if err := d.store.Put(ctx, agg); err != nil {
			return fmt.Errorf("final persist %s: %w", ev.EncounterID, err)
		}
	}
	if err := d.store.Delete(ctx, ev.EncounterID); err != nil {
		return fmt.Errorf("delete aggregate %s: %w", ev.EncounterID, err)
	}
	return nil
}
