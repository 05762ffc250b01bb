package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/engine"
	"github.com/harmwatch/harmwatch/internal/store"
)

// Timer periodically emits a timer event for every encounter with a stored
// aggregate so that purely time-window-dependent fields (shift boundaries,
// midnight rollover, lookback expiry) keep moving even when no facts arrive.
type Timer struct {
	dispatcher *engine.Dispatcher
	store      store.AggregateStore
	interval   time.Duration
	log        zerolog.Logger
}

func NewTimer(dispatcher *engine.Dispatcher, st store.AggregateStore, interval time.Duration, log zerolog.Logger) *Timer {
	return &Timer{dispatcher: dispatcher, store: st, interval: interval, log: log}
}

// Run blocks until ctx is done, ticking every interval. Each encounter gets
// its own dispatch goroutine; the per-encounter lock keeps overlap with
// inbound events safe.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Timer) tick(ctx context.Context) {
	ids, err := t.store.ListEncounterIDs(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("timer tick: list encounters failed")
		return
	}
	for _, id := range ids {
		go func(encounterID string) {
			ev := engine.Event{Type: engine.EventTimer, EncounterID: encounterID}
			if err := t.dispatcher.Dispatch(ctx, ev); err != nil {
				t.log.Error().Err(err).Str("encounter_id", encounterID).Msg("timer dispatch failed")
			}
		}(id)
	}
}
