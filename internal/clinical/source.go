// Package clinical is the read-only data access collaborator the engine
// queries for facts. The engine treats it as eventually consistent and does
// not assume any caching on its behalf.
package clinical

import (
	"context"

	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/selector"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

// Observation codes the harm updaters consume.
const (
	CodePainNumeric          = "pain-numeric"
	CodeCAMICU               = "cam-icu"
	CodeRASS                 = "rass"
	CodeVentilatorStatus     = "ventilator-status"
	CodeHeadOfBed            = "head-of-bed"
	CodeSedationInterruption = "sedation-interruption"
	CodeCentralLineStatus    = "central-line-status"
	CodeLineDressing         = "central-line-dressing"
	CodeLineNecessity        = "central-line-necessity"
	CodeMobilityLevel        = "mobility-level"
	CodeWeaknessScreen       = "weakness-screen"
	CodePreferences          = "personal-preferences"
	CodeVTERisk              = "vte-risk-assessment"
)

// Procedure request codes.
const (
	CodeMechanicalProphylaxis = "vte-mechanical-prophylaxis"
	CodeRASSGoal              = "rass-goal"
)

// Flag codes for care directives.
var CareDirectiveCodes = []string{"dnr", "dni", "comfort-care", "full-code"}

// VTEMedicationIdentifiers name the pharmacologic prophylaxis agents a
// medication order may carry in its identifier set.
var VTEMedicationIdentifiers = []string{"enoxaparin", "heparin", "fondaparinux", "warfarin"}

// FactSource lists facts for an encounter. codes and w are optional filters;
// nil means unfiltered. Implementations return facts in no particular order.
type FactSource interface {
	ListFacts(ctx context.Context, encounterID string, kind fact.Kind, codes []string, w *timewindow.Window) ([]fact.Fact, error)
}

// filterWindow applies the exact boundary rule to facts coming from a backend
// whose own filtering is coarser than selector.InsideWindow. Every backend
// must attribute boundary facts to the same shift, so the selector rule is
// the only window predicate allowed to decide membership.
func filterWindow(facts []fact.Fact, w *timewindow.Window) []fact.Fact {
	if w == nil {
		return facts
	}
	out := make([]fact.Fact, 0, len(facts))
	for _, f := range facts {
		if selector.InsideWindow(f, *w) {
			out = append(out, f)
		}
	}
	return out
}
