package calendar

import (
	"testing"
	"time"
)

func TestDecomposeRejectsPreEpoch(t *testing.T) {
	if _, err := Decompose(-1); err == nil {
		t.Fatal("expected error for negative timestamp")
	}
}

func TestDecomposeKnownDates(t *testing.T) {
	cases := []struct {
		ts   int64
		want Date
	}{
		{0, Date{1970, 1, 1}},
		{86399, Date{1970, 1, 1}},
		{86400, Date{1970, 1, 2}},
		{978307199, Date{2000, 12, 31}},  // second before year rollover
		{978307200, Date{2001, 1, 1}},    // Dec 31 -> Jan 1
		{1709164800, Date{2024, 2, 29}},  // leap day 2024
		{1709251200, Date{2024, 3, 1}},   // day after leap day
		{1456617600, Date{2016, 2, 28}},  // leap year, Feb 28
		{1772150400, Date{2026, 2, 27}},  // non-leap year
		{1775001600, Date{2026, 4, 1}},   // 31-day -> 30-day boundary
		{4102444800, Date{2100, 1, 1}},   // century non-leap year ahead
	}
	for _, c := range cases {
		got, err := Decompose(c.ts)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", c.ts, err)
		}
		if got != c.want {
			t.Fatalf("Decompose(%d) = %+v, want %+v", c.ts, got, c.want)
		}
	}
}

func TestDecomposeMatchesStdlib(t *testing.T) {
	// Sweep a century in uneven strides so month and year boundaries in
	// both leap and non-leap years get crossed.
	for ts := int64(0); ts < 100*365*SecondsPerDay; ts += 2611*3600 + 7 {
		got, err := Decompose(ts)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", ts, err)
		}
		y, m, d := time.Unix(ts, 0).UTC().Date()
		if got.Year != y || got.Month != int(m) || got.Day != d {
			t.Fatalf("Decompose(%d) = %+v, stdlib says %d-%d-%d", ts, got, y, m, d)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	for ts := int64(0); ts < 80*365*SecondsPerDay; ts += 1777*3600 + 13 {
		d, err := Decompose(ts)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", ts, err)
		}
		if back := Timestamp(d, ts%SecondsPerDay); back != ts {
			t.Fatalf("round trip of %d via %+v gave %d", ts, d, back)
		}
	}
}

func TestIsLeapYear(t *testing.T) {
	cases := map[int]bool{
		1972: true,
		2000: true,  // century divisible by 400
		2024: true,
		1900: false, // century not divisible by 400
		2100: false,
		2026: false,
		2023: false,
	}
	for year, want := range cases {
		if got := IsLeapYear(year); got != want {
			t.Fatalf("IsLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2024, 2); got != 29 {
		t.Fatalf("Feb 2024 should have 29 days, got %d", got)
	}
	if got := DaysInMonth(2026, 2); got != 28 {
		t.Fatalf("Feb 2026 should have 28 days, got %d", got)
	}
	if got := DaysInMonth(2026, 4); got != 30 {
		t.Fatalf("Apr should have 30 days, got %d", got)
	}
	if got := DaysInMonth(2026, 12); got != 31 {
		t.Fatalf("Dec should have 31 days, got %d", got)
	}
}
