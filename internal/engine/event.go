// Package engine dispatches inbound encounter events to the harm updater
// routines that must run for them, serializing all recomputation per
// encounter.
package engine

import (
	"github.com/harmwatch/harmwatch/internal/fact"
)

// EventType names the inbound event variants.
type EventType string

const (
	EventAdmit        EventType = "admit"
	EventDischarge    EventType = "discharge"
	EventTimer        EventType = "timer"
	EventFactsUpdated EventType = "facts-updated"
)

// ValidEventType reports whether t names a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventAdmit, EventDischarge, EventTimer, EventFactsUpdated:
		return true
	}
	return false
}

// Event is one inbound unit of work produced by the ETL boundary and
// consumed exactly once by the dispatcher. EncounterID is the business
// identifier, not an internal surrogate key. FactKind is set only for
// facts-updated events and names the kind of the carried facts.
type Event struct {
	Type        EventType
	EncounterID string
	PatientID   string
	FactKind    fact.Kind
	Facts       []fact.Fact
}
