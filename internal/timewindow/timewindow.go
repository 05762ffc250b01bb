// Package timewindow computes the clinically meaningful time ranges used for
// harm recomputation: nursing shift boundaries, midnight-to-now, and trailing
// lookback windows.
//
// Every function is a pure function of a supplied instant; the package never
// reads the wall clock.
package timewindow

import (
	"fmt"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Shift is a Window aligned to one of the two 12-hour nursing shifts
// (07:00-19:00 day, 19:00-07:00 night) in the facility time zone.
type Shift = Window

// Nursing shift boundaries, local hours.
const (
	dayShiftStartHour   = 7
	nightShiftStartHour = 19
	shiftLength         = 12 * time.Hour

	// A shift's charting is considered incomplete in its first hours, so
	// current-or-prior shift selection looks back one shift until this
	// much of the shift has elapsed.
	shiftSettleDelay = 4 * time.Hour
)

// Calculator computes windows in a fixed facility time zone.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a Calculator for the named time zone.
func NewCalculator(tz string) (*Calculator, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	return &Calculator{loc: loc}, nil
}

// NewCalculatorIn returns a Calculator for an already-loaded location.
func NewCalculatorIn(loc *time.Location) *Calculator {
	return &Calculator{loc: loc}
}

// Location returns the facility time zone.
func (c *Calculator) Location() *time.Location { return c.loc }

// ShiftContaining returns the current shift once now is at least four hours
// past its start, and the previous shift before that. The night shift
// selected for early-morning hours starts at 19:00 the previous calendar day.
func (c *Calculator) ShiftContaining(now time.Time) Shift {
	local := now.In(c.loc)

	start := c.latestShiftStart(local)
	if local.Sub(start) < shiftSettleDelay {
		start = start.Add(-shiftLength)
	}
	return Shift{Start: start, End: start.Add(shiftLength)}
}

// latestShiftStart returns the most recent shift boundary at or before local.
func (c *Calculator) latestShiftStart(local time.Time) time.Time {
	y, m, d := local.Date()
	day := time.Date(y, m, d, dayShiftStartHour, 0, 0, 0, c.loc)
	night := time.Date(y, m, d, nightShiftStartHour, 0, 0, 0, c.loc)

	switch {
	case !local.Before(night):
		return night
	case !local.Before(day):
		return day
	default:
		// Before 07:00: inside the night shift that started yesterday.
		return night.AddDate(0, 0, -1)
	}
}

// ShiftToNow returns the window from the containing shift's start to now.
func (c *Calculator) ShiftToNow(now time.Time) Window {
	return Window{Start: c.ShiftContaining(now).Start, End: now}
}

// MidnightToNow returns the window from local midnight to now.
func (c *Calculator) MidnightToNow(now time.Time) Window {
	local := now.In(c.loc)
	y, m, d := local.Date()
	return Window{Start: time.Date(y, m, d, 0, 0, 0, 0, c.loc), End: now}
}

// PastHoursToNow returns the trailing window of h hours ending at now.
func (c *Calculator) PastHoursToNow(now time.Time, h int) Window {
	return Window{Start: now.Add(-time.Duration(h) * time.Hour), End: now}
}
