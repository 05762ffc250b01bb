package fact

import (
	"testing"
	"time"
)

func TestObservationEffectiveInstant_Time(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	obs := Observation{Code: "pain-numeric", EffectiveTime: &at}

	got, ok := obs.EffectiveInstant()
	if !ok {
		t.Fatal("expected an effective instant")
	}
	if !got.Equal(at) {
		t.Errorf("expected %v, got %v", at, got)
	}
}

func TestObservationEffectiveInstant_PeriodReducesToStart(t *testing.T) {
	p := Period{
		Start: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	obs := Observation{Code: "vent-status", EffectivePeriod: &p}

	got, ok := obs.EffectiveInstant()
	if !ok {
		t.Fatal("expected an effective instant")
	}
	if !got.Equal(p.Start) {
		t.Errorf("period-valued fact should reduce to its start, got %v", got)
	}
}

func TestObservationEffectiveInstant_Missing(t *testing.T) {
	obs := Observation{Code: "pain-numeric"}
	if _, ok := obs.EffectiveInstant(); ok {
		t.Error("expected no effective instant")
	}
}

func TestObservationNumericValue_Quantity(t *testing.T) {
	v := 7.0
	obs := Observation{ValueQuantity: &v}
	got, ok := obs.NumericValue()
	if !ok || got != 7 {
		t.Errorf("expected 7, got %v (ok=%v)", got, ok)
	}
}

func TestObservationNumericValue_NumericString(t *testing.T) {
	obs := Observation{ValueString: " 4 "}
	got, ok := obs.NumericValue()
	if !ok || got != 4 {
		t.Errorf("expected 4, got %v (ok=%v)", got, ok)
	}
}

func TestObservationNumericValue_Vocabulary(t *testing.T) {
	cases := map[string]float64{
		"None":             0,
		"Mild":             1,
		"Moderate":         5,
		"Severe":           7,
		"Unable to Assess": 11,
	}
	for in, want := range cases {
		obs := Observation{ValueString: in}
		got, ok := obs.NumericValue()
		if !ok || got != want {
			t.Errorf("%q: expected %v, got %v (ok=%v)", in, want, got, ok)
		}
	}
}

func TestObservationNumericValue_Undecodable(t *testing.T) {
	for _, in := range []string{"", "unremarkable", "n/a"} {
		obs := Observation{ValueString: in}
		if _, ok := obs.NumericValue(); ok {
			t.Errorf("%q: expected decode failure", in)
		}
	}
}

func TestMedicationOrderHasIdentifier(t *testing.T) {
	m := MedicationOrder{Identifiers: []string{"enoxaparin", "heparin"}}
	if !m.HasIdentifier("heparin") {
		t.Error("expected identifier match")
	}
	if m.HasIdentifier("warfarin") {
		t.Error("unexpected identifier match")
	}
}

func TestFlagActiveAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	f := Flag{Code: "dnr", Status: "active", Period: &Period{Start: start, End: end}}

	if !f.ActiveAt(start.Add(time.Hour)) {
		t.Error("expected active inside period")
	}
	if f.ActiveAt(end) {
		t.Error("expected inactive at period end")
	}
	if f.ActiveAt(start.Add(-time.Minute)) {
		t.Error("expected inactive before period start")
	}

	f.Status = "inactive"
	if f.ActiveAt(start.Add(time.Hour)) {
		t.Error("inactive flag should never be active")
	}
}
