// Package harm holds the per-encounter harm evidence aggregate document and
// the updater routines that recompute its sections. The JSON field names and
// the sentinel values are consumed by downstream dashboards and are part of
// the external contract.
package harm

import (
	"time"
)

// Sentinels for fields with no qualifying documentation. ScoreNotDocumented
// follows the domain convention that 0-10 clinical scales chart 11 for
// "not documented / not applicable".
const (
	ScoreNotDocumented = 11
	TextNotDocumented  = "Not Documented"
	TextUnknown        = "Unknown"
)

// Context is the immutable per-invocation encounter context supplied by the
// dispatcher. Now is the facility clock reading taken once at dispatch time;
// updaters never read the wall clock themselves.
type Context struct {
	EncounterID string
	PatientID   string
	Now         time.Time
}

// PainSection reports numeric pain scale documentation.
type PainSection struct {
	CurrentScore int       `json:"currentScore"`
	DailyMax     int       `json:"dailyMax"`
	DailyMin     int       `json:"dailyMin"`
	UpdateTime   time.Time `json:"updateTime"`
}

// DeliriumSection reports CAM-ICU and RASS documentation.
type DeliriumSection struct {
	CAMICUResult string    `json:"camIcuResult"`
	RASSCurrent  string    `json:"rassCurrent"`
	RASSGoal     string    `json:"rassGoal"`
	UpdateTime   time.Time `json:"updateTime"`
}

// VAESection reports ventilator-associated-event prevention documentation.
type VAESection struct {
	VentilatorStatus     string    `json:"ventilatorStatus"`
	HeadOfBedElevated    string    `json:"headOfBedElevated"`
	SedationInterruption string    `json:"sedationInterruption"`
	UpdateTime           time.Time `json:"updateTime"`
}

// VTESection reports venous-thromboembolism prophylaxis documentation.
type VTESection struct {
	PharmacologicProphylaxis string    `json:"pharmacologicProphylaxis"`
	MechanicalProphylaxis    string    `json:"mechanicalProphylaxis"`
	RiskDocumented           string    `json:"riskDocumented"`
	UpdateTime               time.Time `json:"updateTime"`
}

// CLABSISection reports central-line infection prevention documentation.
type CLABSISection struct {
	CentralLineInPlace string    `json:"centralLineInPlace"`
	DressingStatus     string    `json:"dressingStatus"`
	NecessityReviewed  string    `json:"necessityReviewed"`
	UpdateTime         time.Time `json:"updateTime"`
}

// MobilitySection reports early-mobility and ICU-acquired-weakness
// documentation.
type MobilitySection struct {
	HighestLevelThisShift int       `json:"highestLevelThisShift"`
	WeaknessScreen        string    `json:"weaknessScreen"`
	UpdateTime            time.Time `json:"updateTime"`
}

// GoalsOfCareSection reports care-directive documentation.
type GoalsOfCareSection struct {
	CareDirective   string    `json:"careDirective"`
	DirectiveActive string    `json:"directiveActive"`
	UpdateTime      time.Time `json:"updateTime"`
}

// DemographicsSection carries the encounter-level identifiers the dashboard
// labels rows with.
type DemographicsSection struct {
	PatientID  string    `json:"patientId"`
	AdmitTime  time.Time `json:"admitTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// RespectDignitySection reports whether personal preferences were documented.
type RespectDignitySection struct {
	PreferencesDocumented string    `json:"preferencesDocumented"`
	UpdateTime            time.Time `json:"updateTime"`
}

// Aggregate is the harm evidence document for one encounter. One instance
// exists per encounter and is only ever mutated while the per-encounter lock
// is held, so access is effectively single-threaded.
type Aggregate struct {
	EncounterID string    `json:"encounterId"`
	PatientID   string    `json:"patientId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Pain           *PainSection           `json:"pain,omitempty"`
	Delirium       *DeliriumSection       `json:"delirium,omitempty"`
	VAE            *VAESection            `json:"vae,omitempty"`
	VTE            *VTESection            `json:"vte,omitempty"`
	CLABSI         *CLABSISection         `json:"clabsi,omitempty"`
	Mobility       *MobilitySection       `json:"mobility,omitempty"`
	GoalsOfCare    *GoalsOfCareSection    `json:"goalsOfCare,omitempty"`
	Demographics   *DemographicsSection   `json:"demographics,omitempty"`
	RespectDignity *RespectDignitySection `json:"respectDignity,omitempty"`
}

// NewAggregate returns a fresh document with every section present and
// defaulted to its sentinel values.
func NewAggregate(encounterID, patientID string, now time.Time) *Aggregate {
	a := &Aggregate{
		EncounterID: encounterID,
		PatientID:   patientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.ensurePain()
	a.ensureDelirium()
	a.ensureVAE()
	a.ensureVTE()
	a.ensureCLABSI()
	a.ensureMobility()
	a.ensureGoalsOfCare()
	a.ensureDemographics()
	a.ensureRespectDignity()
	return a
}

func (a *Aggregate) ensurePain() *PainSection {
	if a.Pain == nil {
		a.Pain = &PainSection{
			CurrentScore: ScoreNotDocumented,
			DailyMax:     ScoreNotDocumented,
			DailyMin:     ScoreNotDocumented,
		}
	}
	return a.Pain
}

func (a *Aggregate) ensureDelirium() *DeliriumSection {
	if a.Delirium == nil {
		a.Delirium = &DeliriumSection{
			CAMICUResult: TextNotDocumented,
			RASSCurrent:  TextNotDocumented,
			RASSGoal:     TextNotDocumented,
		}
	}
	return a.Delirium
}

func (a *Aggregate) ensureVAE() *VAESection {
	if a.VAE == nil {
		a.VAE = &VAESection{
			VentilatorStatus:     TextUnknown,
			HeadOfBedElevated:    TextNotDocumented,
			SedationInterruption: TextNotDocumented,
		}
	}
	return a.VAE
}

func (a *Aggregate) ensureVTE() *VTESection {
	if a.VTE == nil {
		a.VTE = &VTESection{
			PharmacologicProphylaxis: TextNotDocumented,
			MechanicalProphylaxis:    TextNotDocumented,
			RiskDocumented:           TextNotDocumented,
		}
	}
	return a.VTE
}

func (a *Aggregate) ensureCLABSI() *CLABSISection {
	if a.CLABSI == nil {
		a.CLABSI = &CLABSISection{
			CentralLineInPlace: TextUnknown,
			DressingStatus:     TextNotDocumented,
			NecessityReviewed:  TextNotDocumented,
		}
	}
	return a.CLABSI
}

func (a *Aggregate) ensureMobility() *MobilitySection {
	if a.Mobility == nil {
		a.Mobility = &MobilitySection{
			HighestLevelThisShift: ScoreNotDocumented,
			WeaknessScreen:        TextNotDocumented,
		}
	}
	return a.Mobility
}

func (a *Aggregate) ensureGoalsOfCare() *GoalsOfCareSection {
	if a.GoalsOfCare == nil {
		a.GoalsOfCare = &GoalsOfCareSection{
			CareDirective:   TextUnknown,
			DirectiveActive: TextUnknown,
		}
	}
	return a.GoalsOfCare
}

func (a *Aggregate) ensureDemographics() *DemographicsSection {
	if a.Demographics == nil {
		a.Demographics = &DemographicsSection{PatientID: a.PatientID}
	}
	return a.Demographics
}

func (a *Aggregate) ensureRespectDignity() *RespectDignitySection {
	if a.RespectDignity == nil {
		a.RespectDignity = &RespectDignitySection{
			PreferencesDocumented: TextNotDocumented,
		}
	}
	return a.RespectDignity
}
