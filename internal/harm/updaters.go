package harm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/clinical"
	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/selector"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

// How far back a charted pain score still counts as "current".
const currentPainLookbackHours = 7

// Updaters recomputes aggregate sections from facts. Every update method
// follows the same pattern: lazily create the section, recompute every field
// in scope (writing sentinels when no qualifying fact exists, never leaving
// stale values), and stamp the section's UpdateTime. Recomputation is a full
// replace of each field, not an incremental merge.
type Updaters struct {
	source  clinical.FactSource
	windows *timewindow.Calculator
	sel     *selector.Selector
	log     zerolog.Logger
}

func NewUpdaters(source clinical.FactSource, windows *timewindow.Calculator, sel *selector.Selector, log zerolog.Logger) *Updaters {
	return &Updaters{source: source, windows: windows, sel: sel, log: log}
}

// UpdatePain recomputes the current pain level from the trailing lookback
// window and the daily extremes from midnight to now.
func (u *Updaters) UpdatePain(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensurePain()
	sec.CurrentScore = ScoreNotDocumented
	sec.DailyMax = ScoreNotDocumented
	sec.DailyMin = ScoreNotDocumented
	sec.UpdateTime = hc.Now

	recent := u.windows.PastHoursToNow(hc.Now, currentPainLookbackHours)
	obs, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindObservation,
		[]string{clinical.CodePainNumeric}, &recent)
	if err != nil {
		return fmt.Errorf("list pain observations: %w", err)
	}
	if f, ok := u.sel.FreshestScored(obs); ok {
		if v, ok := u.score(f); ok {
			sec.CurrentScore = v
		}
	}

	day := u.windows.MidnightToNow(hc.Now)
	dayObs, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindObservation,
		[]string{clinical.CodePainNumeric}, &day)
	if err != nil {
		return fmt.Errorf("list daily pain observations: %w", err)
	}
	if f, ok := u.sel.WindowedExtremum(dayObs, day, selector.Max); ok {
		if v, ok := u.score(f); ok {
			sec.DailyMax = v
		}
	}
	if f, ok := u.sel.WindowedExtremum(dayObs, day, selector.Min); ok {
		if v, ok := u.score(f); ok {
			sec.DailyMin = v
		}
	}
	return nil
}

// UpdateDelirium recomputes the shift's CAM-ICU result, the current RASS and
// the ordered RASS goal.
func (u *Updaters) UpdateDelirium(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureDelirium()
	sec.CAMICUResult = TextNotDocumented
	sec.RASSCurrent = TextNotDocumented
	sec.RASSGoal = TextNotDocumented
	sec.UpdateTime = hc.Now

	shift := u.windows.ShiftToNow(hc.Now)

	cam, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindObservation,
		[]string{clinical.CodeCAMICU}, &shift)
	if err != nil {
		return fmt.Errorf("list cam-icu observations: %w", err)
	}
	if f, ok := u.sel.Freshest(cam); ok {
		if o, ok := f.(fact.Observation); ok && o.ValueString != "" {
			sec.CAMICUResult = o.ValueString
		}
	}

	rass, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindObservation,
		[]string{clinical.CodeRASS}, &shift)
	if err != nil {
		return fmt.Errorf("list rass observations: %w", err)
	}
	if f, ok := u.sel.Freshest(rass); ok {
		if o, ok := f.(fact.Observation); ok && o.ValueString != "" {
			sec.RASSCurrent = o.ValueString
		}
	}

	goals, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindProcedureRequest,
		[]string{clinical.CodeRASSGoal}, nil)
	if err != nil {
		return fmt.Errorf("list rass goal orders: %w", err)
	}
	if len(activeRequests(goals)) > 0 {
		sec.RASSGoal = "Ordered"
	}
	return nil
}

// UpdateVAE recomputes ventilator-associated-event prevention evidence for
// the current-or-prior shift.
func (u *Updaters) UpdateVAE(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureVAE()
	sec.VentilatorStatus = TextUnknown
	sec.HeadOfBedElevated = TextNotDocumented
	sec.SedationInterruption = TextNotDocumented
	sec.UpdateTime = hc.Now

	shift := u.windows.ShiftToNow(hc.Now)

	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeVentilatorStatus, &shift); ok {
		sec.VentilatorStatus = v
	}
	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeHeadOfBed, &shift); ok {
		sec.HeadOfBedElevated = v
	}
	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeSedationInterruption, &shift); ok {
		sec.SedationInterruption = v
	}
	return nil
}

// UpdateVTE recomputes prophylaxis evidence from medication orders, procedure
// requests and risk-assessment observations.
func (u *Updaters) UpdateVTE(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureVTE()
	sec.PharmacologicProphylaxis = TextNotDocumented
	sec.MechanicalProphylaxis = TextNotDocumented
	sec.RiskDocumented = TextNotDocumented
	sec.UpdateTime = hc.Now

	meds, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindMedicationOrder, nil, nil)
	if err != nil {
		return fmt.Errorf("list medication orders: %w", err)
	}
	for _, f := range meds {
		m, ok := f.(fact.MedicationOrder)
		if !ok || m.Status != "active" {
			continue
		}
		for _, id := range clinical.VTEMedicationIdentifiers {
			if m.HasIdentifier(id) {
				sec.PharmacologicProphylaxis = "Ordered"
			}
		}
	}

	mech, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindProcedureRequest,
		[]string{clinical.CodeMechanicalProphylaxis}, nil)
	if err != nil {
		return fmt.Errorf("list mechanical prophylaxis orders: %w", err)
	}
	if len(activeRequests(mech)) > 0 {
		sec.MechanicalProphylaxis = "Ordered"
	}

	day := u.windows.MidnightToNow(hc.Now)
	if _, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeVTERisk, &day); ok {
		sec.RiskDocumented = "Yes"
	}
	return nil
}

// UpdateCLABSI recomputes central-line infection prevention evidence.
func (u *Updaters) UpdateCLABSI(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureCLABSI()
	sec.CentralLineInPlace = TextUnknown
	sec.DressingStatus = TextNotDocumented
	sec.NecessityReviewed = TextNotDocumented
	sec.UpdateTime = hc.Now

	shift := u.windows.ShiftToNow(hc.Now)

	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeCentralLineStatus, &shift); ok {
		sec.CentralLineInPlace = v
	}
	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeLineDressing, &shift); ok {
		sec.DressingStatus = v
	}
	day := u.windows.MidnightToNow(hc.Now)
	if _, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeLineNecessity, &day); ok {
		sec.NecessityReviewed = "Yes"
	}
	return nil
}

// UpdateMobility recomputes the highest mobility level achieved this shift
// and the weakness screen result.
func (u *Updaters) UpdateMobility(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureMobility()
	sec.HighestLevelThisShift = ScoreNotDocumented
	sec.WeaknessScreen = TextNotDocumented
	sec.UpdateTime = hc.Now

	shift := u.windows.ShiftToNow(hc.Now)

	levels, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindObservation,
		[]string{clinical.CodeMobilityLevel}, &shift)
	if err != nil {
		return fmt.Errorf("list mobility observations: %w", err)
	}
	if f, ok := u.sel.WindowedExtremum(levels, shift, selector.Max); ok {
		if v, ok := u.score(f); ok {
			sec.HighestLevelThisShift = v
		}
	}

	if v, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodeWeaknessScreen, &shift); ok {
		sec.WeaknessScreen = v
	}
	return nil
}

// UpdateGoalsOfCare recomputes the care directive from flags. Flags carried
// by the triggering event are considered alongside the stored ones.
func (u *Updaters) UpdateGoalsOfCare(ctx context.Context, agg *Aggregate, hc Context, eventFacts []fact.Fact) error {
	sec := agg.ensureGoalsOfCare()
	sec.CareDirective = TextUnknown
	sec.DirectiveActive = TextUnknown
	sec.UpdateTime = hc.Now

	flags, err := u.source.ListFacts(ctx, hc.EncounterID, fact.KindFlag,
		clinical.CareDirectiveCodes, nil)
	if err != nil {
		return fmt.Errorf("list care directive flags: %w", err)
	}
	for _, f := range eventFacts {
		if f.Kind() == fact.KindFlag {
			flags = append(flags, f)
		}
	}

	f, ok := u.sel.Freshest(flags)
	if !ok {
		return nil
	}
	fl, ok := f.(fact.Flag)
	if !ok {
		return nil
	}
	sec.CareDirective = fl.Code
	if fl.ActiveAt(hc.Now) {
		sec.DirectiveActive = "Yes"
	} else {
		sec.DirectiveActive = "No"
	}
	return nil
}

// UpdateDemographics stamps the encounter-level identifiers. On admit the
// admit time is taken from the facility clock.
func (u *Updaters) UpdateDemographics(_ context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureDemographics()
	sec.PatientID = hc.PatientID
	if sec.AdmitTime.IsZero() {
		sec.AdmitTime = hc.Now
	}
	sec.UpdateTime = hc.Now
	return nil
}

// UpdateRespectDignity recomputes whether personal preferences were
// documented this shift.
func (u *Updaters) UpdateRespectDignity(ctx context.Context, agg *Aggregate, hc Context, _ []fact.Fact) error {
	sec := agg.ensureRespectDignity()
	sec.PreferencesDocumented = TextNotDocumented
	sec.UpdateTime = hc.Now

	shift := u.windows.ShiftToNow(hc.Now)
	if _, ok := u.freshestText(ctx, hc.EncounterID, clinical.CodePreferences, &shift); ok {
		sec.PreferencesDocumented = "Yes"
	}
	return nil
}

// freshestText returns the charted text of the freshest observation with the
// given code inside the window.
func (u *Updaters) freshestText(ctx context.Context, encounterID, code string, w *timewindow.Window) (string, bool) {
	obs, err := u.source.ListFacts(ctx, encounterID, fact.KindObservation, []string{code}, w)
	if err != nil {
		u.log.Warn().Err(err).Str("encounter_id", encounterID).Str("code", code).Msg("fact lookup failed, field skipped")
		return "", false
	}
	f, ok := u.sel.Freshest(obs)
	if !ok {
		return "", false
	}
	o, ok := f.(fact.Observation)
	if !ok || o.ValueString == "" {
		return "", false
	}
	return o.ValueString, true
}

// score converts a selected fact to a clamped integer scale score.
func (u *Updaters) score(f fact.Fact) (int, bool) {
	v, ok := f.NumericValue()
	if !ok {
		u.log.Debug().Str("kind", string(f.Kind())).Msg("score not decodable, discarded")
		return 0, false
	}
	if v < selector.ScoreFloor || v > selector.ScoreCeiling {
		u.log.Warn().Str("kind", string(f.Kind())).Float64("value", v).Msg("score outside 0-11, discarded")
		return 0, false
	}
	return int(v), true
}

func activeRequests(facts []fact.Fact) []fact.Fact {
	var out []fact.Fact
	for _, f := range facts {
		if p, ok := f.(fact.ProcedureRequest); ok && (p.Status == "active" || p.Status == "scheduled") {
			out = append(out, f)
		}
	}
	return out
}
