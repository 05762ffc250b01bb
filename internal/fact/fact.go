// Package fact holds the clinical fact variants consumed by the aggregation
// engine. Every variant exposes a single effective instant so that selection
// logic can treat a mixed stream uniformly; a period-valued fact reduces to
// its start instant.
package fact

import (
	"time"
)

// Kind discriminates the fact variants carried by events and returned by the
// clinical data access layer.
type Kind string

const (
	KindObservation      Kind = "observation"
	KindProcedureRequest Kind = "procedure-request"
	KindMedicationOrder  Kind = "medication-order"
	KindFlag             Kind = "flag"
)

// ValidKind reports whether k names a known fact variant.
func ValidKind(k Kind) bool {
	switch k {
	case KindObservation, KindProcedureRequest, KindMedicationOrder, KindFlag:
		return true
	}
	return false
}

// Period is a closed clinical time span.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Fact is any timestamped clinical datum the engine can select over.
type Fact interface {
	// Kind returns the variant discriminator.
	Kind() Kind
	// EffectiveInstant returns the instant used for temporal ordering.
	// ok is false when the fact carries no usable timestamp; such facts
	// sort oldest.
	EffectiveInstant() (t time.Time, ok bool)
	// NumericValue returns the decoded numeric value, if the fact has one.
	NumericValue() (v float64, ok bool)
	// Span returns the fact's period and true when the fact is
	// period-valued rather than instant-valued.
	Span() (p Period, ok bool)
}

// Observation is a lab or vital-sign measurement.
type Observation struct {
	ID              string     `json:"id"`
	EncounterID     string     `json:"encounterId"`
	Code            string     `json:"code"`
	ValueString     string     `json:"valueString,omitempty"`
	ValueQuantity   *float64   `json:"valueQuantity,omitempty"`
	EffectiveTime   *time.Time `json:"effectiveTime,omitempty"`
	EffectivePeriod *Period    `json:"effectivePeriod,omitempty"`
	Status          string     `json:"status"`
}

func (o Observation) Kind() Kind { return KindObservation }

func (o Observation) EffectiveInstant() (time.Time, bool) {
	if o.EffectiveTime != nil && !o.EffectiveTime.IsZero() {
		return *o.EffectiveTime, true
	}
	if o.EffectivePeriod != nil && !o.EffectivePeriod.Start.IsZero() {
		return o.EffectivePeriod.Start, true
	}
	return time.Time{}, false
}

func (o Observation) NumericValue() (float64, bool) {
	if o.ValueQuantity != nil {
		return *o.ValueQuantity, true
	}
	return decodeValueString(o.ValueString)
}

func (o Observation) Span() (Period, bool) {
	if o.EffectivePeriod != nil {
		return *o.EffectivePeriod, true
	}
	return Period{}, false
}

// ProcedureRequest is an order for a procedure (e.g. mechanical VTE
// prophylaxis, a RASS goal order).
type ProcedureRequest struct {
	ID            string     `json:"id"`
	EncounterID   string     `json:"encounterId"`
	Code          string     `json:"code"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	Status        string     `json:"status"`
}

func (p ProcedureRequest) Kind() Kind { return KindProcedureRequest }

func (p ProcedureRequest) EffectiveInstant() (time.Time, bool) {
	if p.ScheduledTime != nil && !p.ScheduledTime.IsZero() {
		return *p.ScheduledTime, true
	}
	return time.Time{}, false
}

func (p ProcedureRequest) NumericValue() (float64, bool) { return 0, false }

func (p ProcedureRequest) Span() (Period, bool) { return Period{}, false }

// MedicationOrder is a medication prescription.
type MedicationOrder struct {
	ID          string     `json:"id"`
	EncounterID string     `json:"encounterId"`
	Identifiers []string   `json:"identifiers"`
	Status      string     `json:"status"`
	DateWritten *time.Time `json:"dateWritten,omitempty"`
}

func (m MedicationOrder) Kind() Kind { return KindMedicationOrder }

func (m MedicationOrder) EffectiveInstant() (time.Time, bool) {
	if m.DateWritten != nil && !m.DateWritten.IsZero() {
		return *m.DateWritten, true
	}
	return time.Time{}, false
}

func (m MedicationOrder) NumericValue() (float64, bool) { return 0, false }

func (m MedicationOrder) Span() (Period, bool) { return Period{}, false }

// HasIdentifier reports whether the order carries the given identifier code.
func (m MedicationOrder) HasIdentifier(code string) bool {
	for _, id := range m.Identifiers {
		if id == code {
			return true
		}
	}
	return false
}

// Flag is a patient-level banner such as a care directive.
type Flag struct {
	ID          string  `json:"id"`
	EncounterID string  `json:"encounterId"`
	Code        string  `json:"code"`
	Period      *Period `json:"period,omitempty"`
	Status      string  `json:"status"`
}

func (f Flag) Kind() Kind { return KindFlag }

func (f Flag) EffectiveInstant() (time.Time, bool) {
	if f.Period != nil && !f.Period.Start.IsZero() {
		return f.Period.Start, true
	}
	return time.Time{}, false
}

func (f Flag) NumericValue() (float64, bool) { return 0, false }

func (f Flag) Span() (Period, bool) {
	if f.Period != nil {
		return *f.Period, true
	}
	return Period{}, false
}

// ActiveAt reports whether the flag's period covers t. A flag with no period
// is treated as active while its status is active.
func (f Flag) ActiveAt(t time.Time) bool {
	if f.Status != "active" {
		return false
	}
	if f.Period == nil {
		return true
	}
	if !f.Period.Start.IsZero() && t.Before(f.Period.Start) {
		return false
	}
	if !f.Period.End.IsZero() && !t.Before(f.Period.End) {
		return false
	}
	return true
}
