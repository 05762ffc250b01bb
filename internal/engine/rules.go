package engine

import (
	"context"

	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/harm"
)

// RoutineFunc recomputes one slice of the aggregate. Routines mutate the
// aggregate in place; the dispatcher guarantees single-threaded access per
// encounter.
type RoutineFunc func(ctx context.Context, agg *harm.Aggregate, hc harm.Context, facts []fact.Fact) error

// Routine is a named updater routine; the name appears in logs and metrics.
type Routine struct {
	Name string
	Run  RoutineFunc
}

// ruleKey selects a routine list: facts-updated events are keyed by the kind
// of the carried facts, every other event type by type alone.
type ruleKey struct {
	Type EventType
	Kind fact.Kind
}

// Rules is the static event-type to ordered-routine-list table. The mapping
// is total: every event type resolves to a defined list (discharge resolves
// to an empty one; its persist-then-delete behavior lives in the dispatcher).
type Rules struct {
	table map[ruleKey][]Routine
}

// NewRules builds the rule table over the given updaters.
func NewRules(u *harm.Updaters) *Rules {
	pain := Routine{Name: "pain", Run: u.UpdatePain}
	delirium := Routine{Name: "delirium", Run: u.UpdateDelirium}
	vae := Routine{Name: "vae", Run: u.UpdateVAE}
	vte := Routine{Name: "vte", Run: u.UpdateVTE}
	clabsi := Routine{Name: "clabsi", Run: u.UpdateCLABSI}
	mobility := Routine{Name: "mobility", Run: u.UpdateMobility}
	goals := Routine{Name: "goals-of-care", Run: u.UpdateGoalsOfCare}
	demographics := Routine{Name: "demographics", Run: u.UpdateDemographics}
	respect := Routine{Name: "respect-dignity", Run: u.UpdateRespectDignity}

	allSections := []Routine{demographics, pain, delirium, vae, vte, clabsi, mobility, goals, respect}
	timeDependent := []Routine{pain, delirium, vae, vte, clabsi, mobility, goals, respect}

	return &Rules{table: map[ruleKey][]Routine{
		{Type: EventAdmit}:     allSections,
		{Type: EventDischarge}: {},
		{Type: EventTimer}:     timeDependent,

		{Type: EventFactsUpdated, Kind: fact.KindObservation}:      {pain, delirium, vae, vte, clabsi, mobility, respect},
		{Type: EventFactsUpdated, Kind: fact.KindFlag}:             {goals},
		{Type: EventFactsUpdated, Kind: fact.KindProcedureRequest}: {vte, delirium},
		{Type: EventFactsUpdated, Kind: fact.KindMedicationOrder}:  {vte, pain},
	}}
}

// RoutinesFor returns the ordered routine list for an event. Unknown
// facts-updated kinds resolve to no routines.
func (r *Rules) RoutinesFor(ev Event) []Routine {
	key := ruleKey{Type: ev.Type}
	if ev.Type == EventFactsUpdated {
		key.Kind = ev.FactKind
	}
	return r.table[key]
}
