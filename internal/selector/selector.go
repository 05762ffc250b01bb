// Package selector picks the temporally-correct fact out of a noisy,
// multi-valued stream: the freshest fact under an explicit tie-break rule,
// and windowed minimum/maximum values.
package selector

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

// Extremum selects which end of the value range WindowedExtremum returns.
type Extremum int

const (
	Min Extremum = iota
	Max
)

// Clinical 0-10 scales chart the not-documented sentinel as 11; anything
// outside [0, 11] is a charting error and is excluded from selection.
const (
	ScoreFloor   = 0
	ScoreCeiling = 11
)

// Selector implements freshest/extremum selection. Decode failures are
// logged and excluded from candidates, never raised as errors.
type Selector struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Selector {
	return &Selector{log: log}
}

// Freshest returns the fact with the latest effective instant. Facts with no
// instant sort oldest. Facts sharing the maximal instant tie-break by highest
// decoded value; remaining ties resolve by input order (stable sort), so the
// result is deterministic for identical input order and independent of
// reordering when values differ.
func (s *Selector) Freshest(facts []fact.Fact) (fact.Fact, bool) {
	if len(facts) == 0 {
		return nil, false
	}

	sorted := make([]fact.Fact, len(facts))
	copy(sorted, facts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iok := sorted[i].EffectiveInstant()
		tj, jok := sorted[j].EffectiveInstant()
		switch {
		case !iok && !jok:
			return false
		case !iok:
			return true
		case !jok:
			return false
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		vi, _ := sorted[i].NumericValue()
		vj, _ := sorted[j].NumericValue()
		return vi < vj
	})

	return sorted[len(sorted)-1], true
}

// FreshestScored returns the freshest fact among those whose value decodes
// inside [ScoreFloor, ScoreCeiling]. Undecodable and out-of-range facts are
// excluded from candidacy entirely, so a malformed fresh fact falls back to
// the next freshest valid one instead of masking it.
func (s *Selector) FreshestScored(facts []fact.Fact) (fact.Fact, bool) {
	valid := make([]fact.Fact, 0, len(facts))
	for _, f := range facts {
		if _, ok := s.decode(f); ok {
			valid = append(valid, f)
		}
	}
	return s.Freshest(valid)
}

// WindowedExtremum filters facts to those inside the window, then returns the
// fact with the minimum or maximum decoded value. Facts whose value cannot be
// decoded, or decodes outside [0, 11], are excluded. The choice among equal
// values is stable in input order.
func (s *Selector) WindowedExtremum(facts []fact.Fact, w timewindow.Window, ext Extremum) (fact.Fact, bool) {
	var best fact.Fact
	var bestVal float64

	for _, f := range facts {
		if !InsideWindow(f, w) {
			continue
		}
		v, ok := s.decode(f)
		if !ok {
			continue
		}
		if best == nil {
			best, bestVal = f, v
			continue
		}
		if (ext == Max && v > bestVal) || (ext == Min && v < bestVal) {
			best, bestVal = f, v
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// decode returns the fact's numeric value, excluding undecodable and
// out-of-range values with a log line.
func (s *Selector) decode(f fact.Fact) (float64, bool) {
	v, ok := f.NumericValue()
	if !ok {
		s.log.Debug().Str("kind", string(f.Kind())).Msg("fact value not decodable, excluded")
		return 0, false
	}
	if v < ScoreFloor || v > ScoreCeiling {
		s.log.Warn().Str("kind", string(f.Kind())).Float64("value", v).Msg("fact value out of range, excluded")
		return 0, false
	}
	return v, true
}

// InsideWindow reports whether the fact falls inside the half-open window.
// Instant-valued facts require start <= t < end. Period-valued facts require
// the whole period inside: period.start >= start and period.end < end. The
// asymmetry (start inclusive, end exclusive) decides which shift a boundary
// observation is attributed to and must hold exactly.
func InsideWindow(f fact.Fact, w timewindow.Window) bool {
	if p, ok := f.Span(); ok {
		return !p.Start.Before(w.Start) && p.End.Before(w.End)
	}
	t, ok := f.EffectiveInstant()
	if !ok {
		return false
	}
	return !t.Before(w.Start) && t.Before(w.End)
}
