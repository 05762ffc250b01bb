package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/clinical"
	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/harm"
	"github.com/harmwatch/harmwatch/internal/selector"
	"github.com/harmwatch/harmwatch/internal/store"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

type testRig struct {
	source     *clinical.MemorySource
	store      *store.MemoryStore
	dispatcher *Dispatcher
	now        time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	src := clinical.NewMemorySource()
	st := store.NewMemoryStore()
	updaters := harm.NewUpdaters(
		src,
		timewindow.NewCalculatorIn(time.UTC),
		selector.New(zerolog.Nop()),
		zerolog.Nop(),
	)
	d := NewDispatcher(st, NewRules(updaters), zerolog.Nop())

	rig := &testRig{
		source:     src,
		store:      st,
		dispatcher: d,
		now:        time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
	d.SetClock(func() time.Time { return rig.now })
	return rig
}

func (r *testRig) painObs(encounterID string, value float64, at time.Time) fact.Observation {
	v := value
	return fact.Observation{
		EncounterID:   encounterID,
		Code:          clinical.CodePainNumeric,
		ValueQuantity: &v,
		EffectiveTime: &at,
		Status:        "final",
	}
}

func TestDispatch_AdmitCreatesDefaultAggregate(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	err := rig.dispatcher.Dispatch(ctx, Event{Type: EventAdmit, EncounterID: "E1", PatientID: "P1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agg, err := rig.store.Get(ctx, "E1")
	if err != nil {
		t.Fatalf("expected a stored aggregate: %v", err)
	}
	if agg.Pain.CurrentScore != harm.ScoreNotDocumented {
		t.Errorf("fresh admit should chart pain %d, got %d", harm.ScoreNotDocumented, agg.Pain.CurrentScore)
	}
	if agg.Demographics.PatientID != "P1" {
		t.Errorf("expected demographics patient P1, got %q", agg.Demographics.PatientID)
	}
	if !agg.Demographics.AdmitTime.Equal(rig.now) {
		t.Errorf("expected admit time from facility clock")
	}
}

func TestDispatch_MissingEncounterID(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.dispatcher.Dispatch(context.Background(), Event{Type: EventAdmit}); err == nil {
		t.Error("expected error for event without encounter id")
	}
}

// End-to-end scenario: admit, then pain observations arriving over two events.
// The current score follows the freshest fact while the daily max keeps the
// day's high.
func TestDispatch_EndToEndPainScenario(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventAdmit, EncounterID: "E1", PatientID: "P1"}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	agg, _ := rig.store.Get(ctx, "E1")
	if agg.Pain.CurrentScore != 11 {
		t.Fatalf("expected not-documented sentinel 11, got %d", agg.Pain.CurrentScore)
	}

	// Window ends are exclusive, so the clock reads a tick after charting.
	chartedAt := rig.now
	rig.now = chartedAt.Add(time.Millisecond)
	obs4 := rig.painObs("E1", 4, chartedAt)
	rig.source.Add("E1", obs4)
	err := rig.dispatcher.Dispatch(ctx, Event{
		Type: EventFactsUpdated, EncounterID: "E1", PatientID: "P1",
		FactKind: fact.KindObservation, Facts: []fact.Fact{obs4},
	})
	if err != nil {
		t.Fatalf("facts-updated: %v", err)
	}
	agg, _ = rig.store.Get(ctx, "E1")
	if agg.Pain.CurrentScore != 4 {
		t.Errorf("expected current 4, got %d", agg.Pain.CurrentScore)
	}
	if agg.Pain.DailyMax != 4 {
		t.Errorf("expected daily max 4, got %d", agg.Pain.DailyMax)
	}

	chartedAt = chartedAt.Add(time.Second)
	rig.now = chartedAt.Add(time.Millisecond)
	obs2 := rig.painObs("E1", 2, chartedAt)
	rig.source.Add("E1", obs2)
	err = rig.dispatcher.Dispatch(ctx, Event{
		Type: EventFactsUpdated, EncounterID: "E1", PatientID: "P1",
		FactKind: fact.KindObservation, Facts: []fact.Fact{obs2},
	})
	if err != nil {
		t.Fatalf("facts-updated: %v", err)
	}
	agg, _ = rig.store.Get(ctx, "E1")
	if agg.Pain.CurrentScore != 2 {
		t.Errorf("expected current 2 after fresher observation, got %d", agg.Pain.CurrentScore)
	}
	if agg.Pain.DailyMax != 4 {
		t.Errorf("daily max must remain 4, got %d", agg.Pain.DailyMax)
	}
}

func TestDispatch_DischargeRemovesAggregate(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventAdmit, EncounterID: "E1", PatientID: "P1"}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventDischarge, EncounterID: "E1"}); err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if _, err := rig.store.Get(ctx, "E1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected aggregate removed after discharge, got %v", err)
	}
}

func TestDispatch_NonAdmitOnMissingAggregateSynthesizes(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	err := rig.dispatcher.Dispatch(ctx, Event{Type: EventTimer, EncounterID: "E9", PatientID: "P9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rig.store.Get(ctx, "E9"); err != nil {
		t.Errorf("out-of-order event should still leave a persisted default aggregate: %v", err)
	}
}

// A panicking routine must not block unrelated sections or persistence.
func TestDispatch_RoutinePanicIsolated(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventAdmit, EncounterID: "E1", PatientID: "P1"}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	obs := rig.painObs("E1", 5, rig.now.Add(-time.Minute))
	rig.source.Add("E1", obs)

	// Rebuild the timer rule list with a panicking VAE stand-in ahead of pain.
	painRoutine := Routine{
		Name: "pain",
		Run: harm.NewUpdaters(rig.source, timewindow.NewCalculatorIn(time.UTC),
			selector.New(zerolog.Nop()), zerolog.Nop()).UpdatePain,
	}
	rig.dispatcher.rules = &Rules{table: map[ruleKey][]Routine{
		{Type: EventTimer}: {
			{Name: "vae", Run: func(context.Context, *harm.Aggregate, harm.Context, []fact.Fact) error {
				panic("missing ventilator reference")
			}},
			painRoutine,
		},
	}}

	if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventTimer, EncounterID: "E1"}); err != nil {
		t.Fatalf("dispatch should survive a panicking routine: %v", err)
	}

	agg, err := rig.store.Get(ctx, "E1")
	if err != nil {
		t.Fatalf("aggregate must still be persisted: %v", err)
	}
	if agg.Pain.CurrentScore != 5 {
		t.Errorf("pain section must update despite vae panic, got %d", agg.Pain.CurrentScore)
	}
}

// N concurrent dispatches for one encounter never interleave read-modify-write
// cycles.
func TestDispatch_SameEncounterSerializes(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	var inFlight int32
	rig.dispatcher.rules = &Rules{table: map[ruleKey][]Routine{
		{Type: EventTimer}: {{
			Name: "probe",
			Run: func(context.Context, *harm.Aggregate, harm.Context, []fact.Fact) error {
				if v := atomic.AddInt32(&inFlight, 1); v != 1 {
					t.Errorf("%d recomputations in flight for one encounter", v)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			},
		}},
	}}

	const n = 30
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventTimer, EncounterID: "E1"}); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}()
	}
	wg.Wait()
}

// Dispatches for distinct encounters are not serialized against each other.
func TestDispatch_DistinctEncountersRunConcurrently(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	const hold = 40 * time.Millisecond

	rig.dispatcher.rules = &Rules{table: map[ruleKey][]Routine{
		{Type: EventTimer}: {{
			Name: "probe",
			Run: func(context.Context, *harm.Aggregate, harm.Context, []fact.Fact) error {
				time.Sleep(hold)
				return nil
			},
		}},
	}}

	const n = 10
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("E%d", i)
		go func(encounterID string) {
			defer wg.Done()
			if err := rig.dispatcher.Dispatch(ctx, Event{Type: EventTimer, EncounterID: encounterID}); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed > n*hold/2 {
		t.Errorf("distinct encounters appear serialized: %v elapsed", elapsed)
	}
}

func TestRules_TotalMapping(t *testing.T) {
	rules := NewRules(harm.NewUpdaters(
		clinical.NewMemorySource(),
		timewindow.NewCalculatorIn(time.UTC),
		selector.New(zerolog.Nop()),
		zerolog.Nop(),
	))

	if got := rules.RoutinesFor(Event{Type: EventAdmit}); len(got) != 9 {
		t.Errorf("admit should run all 9 routines, got %d", len(got))
	}
	if got := rules.RoutinesFor(Event{Type: EventFactsUpdated, FactKind: fact.KindFlag}); len(got) != 1 || got[0].Name != "goals-of-care" {
		t.Errorf("flag updates should run goals-of-care only, got %v", len(got))
	}
	if got := rules.RoutinesFor(Event{Type: EventFactsUpdated, FactKind: fact.KindProcedureRequest}); len(got) != 2 {
		t.Errorf("procedure request updates should run vte and delirium, got %d", len(got))
	}
	if got := rules.RoutinesFor(Event{Type: EventTimer}); len(got) != 8 {
		t.Errorf("timer should run all time-window-dependent routines, got %d", len(got))
	}
	// Discharge resolves to an empty list; its behavior lives in the dispatcher.
	if got := rules.RoutinesFor(Event{Type: EventDischarge}); got == nil {
		t.Log("discharge resolves to an empty routine list")
	}
}
