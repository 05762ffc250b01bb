package timewindow

import (
	"testing"
	"time"
)

func newTestCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator("America/New_York")
	if err != nil {
		t.Fatalf("load calculator: %v", err)
	}
	return c
}

func localTime(t *testing.T, c *Calculator, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 3, 10, hour, min, 0, 0, c.Location())
}

func TestShiftContaining_MidDayShift(t *testing.T) {
	c := newTestCalc(t)

	// 14:00 is 7h into the day shift: day shift is returned.
	s := c.ShiftContaining(localTime(t, c, 14, 0))
	if s.Start.Hour() != 7 || s.Start.Day() != 10 {
		t.Errorf("expected day shift starting 07:00 today, got %v", s.Start)
	}
	if s.End.Sub(s.Start) != 12*time.Hour {
		t.Errorf("expected a 12h shift, got %v", s.End.Sub(s.Start))
	}
}

func TestShiftContaining_EarlyDayShiftLooksBack(t *testing.T) {
	c := newTestCalc(t)

	// 09:00 is only 2h into the day shift: prior night shift is returned,
	// which started 19:00 the previous calendar day.
	s := c.ShiftContaining(localTime(t, c, 9, 0))
	if s.Start.Hour() != 19 || s.Start.Day() != 9 {
		t.Errorf("expected night shift starting 19:00 yesterday, got %v", s.Start)
	}
}

func TestShiftContaining_EarlyNightShiftLooksBack(t *testing.T) {
	c := newTestCalc(t)

	// 20:30 is only 1.5h into the night shift: today's day shift is returned.
	s := c.ShiftContaining(localTime(t, c, 20, 30))
	if s.Start.Hour() != 7 || s.Start.Day() != 10 {
		t.Errorf("expected day shift starting 07:00 today, got %v", s.Start)
	}
}

func TestShiftContaining_SettledNightShift(t *testing.T) {
	c := newTestCalc(t)

	// 23:30 is 4.5h into the night shift: that shift is returned.
	s := c.ShiftContaining(localTime(t, c, 23, 30))
	if s.Start.Hour() != 19 || s.Start.Day() != 10 {
		t.Errorf("expected night shift starting 19:00 today, got %v", s.Start)
	}
}

func TestShiftContaining_AfterMidnight(t *testing.T) {
	c := newTestCalc(t)

	// 02:00 is 7h into the night shift that started yesterday evening.
	s := c.ShiftContaining(localTime(t, c, 2, 0))
	if s.Start.Hour() != 19 || s.Start.Day() != 9 {
		t.Errorf("expected night shift starting 19:00 yesterday, got %v", s.Start)
	}
}

// Every returned shift is 12 hours wide and now-4h always falls inside the
// returned shift or its immediate predecessor.
func TestShiftContaining_NoGaps(t *testing.T) {
	c := newTestCalc(t)

	for min := 0; min < 24*60; min += 7 {
		now := localTime(t, c, 0, 0).Add(time.Duration(min) * time.Minute)
		s := c.ShiftContaining(now)

		if s.End.Sub(s.Start) != 12*time.Hour {
			t.Fatalf("%v: shift not 12h: %v", now, s)
		}

		ref := now.Add(-4 * time.Hour)
		inShift := !ref.Before(s.Start) && ref.Before(s.End)
		prevStart := s.Start.Add(-12 * time.Hour)
		inPrev := !ref.Before(prevStart) && ref.Before(s.Start)
		if !inShift && !inPrev {
			t.Fatalf("%v: now-4h=%v outside shift %v and its predecessor", now, ref, s)
		}
	}
}

func TestShiftToNow(t *testing.T) {
	c := newTestCalc(t)

	now := localTime(t, c, 14, 0)
	w := c.ShiftToNow(now)
	if w.Start.Hour() != 7 {
		t.Errorf("expected shift start 07:00, got %v", w.Start)
	}
	if !w.End.Equal(now) {
		t.Errorf("expected end=now, got %v", w.End)
	}
}

func TestMidnightToNow(t *testing.T) {
	c := newTestCalc(t)

	now := localTime(t, c, 14, 45)
	w := c.MidnightToNow(now)
	if w.Start.Hour() != 0 || w.Start.Minute() != 0 || w.Start.Day() != now.Day() {
		t.Errorf("expected local midnight today, got %v", w.Start)
	}
	if !w.End.Equal(now) {
		t.Errorf("expected end=now, got %v", w.End)
	}
}

func TestPastHoursToNow(t *testing.T) {
	c := newTestCalc(t)

	now := localTime(t, c, 14, 0)
	w := c.PastHoursToNow(now, 7)
	if now.Sub(w.Start) != 7*time.Hour {
		t.Errorf("expected a 7h window, got %v", now.Sub(w.Start))
	}
	if !w.End.Equal(now) {
		t.Errorf("expected end=now, got %v", w.End)
	}
}
