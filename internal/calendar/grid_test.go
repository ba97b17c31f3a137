package calendar

import (
	"testing"
	"time"

	"repaircal/internal/holiday"
)

func TestBuildProperties(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	det := holiday.Default()

	// Every day from late 2025 through early 2027, at an awkward time of day.
	for now := time.Date(2025, 11, 1, 23, 30, 0, 0, jst); now.Before(time.Date(2027, 3, 1, 0, 0, 0, 0, jst)); now = now.AddDate(0, 0, 1) {
		g := Build(now, det)

		if len(g.Slots) != SlotCount {
			t.Fatalf("%s: got %d slots, want %d", now, len(g.Slots), SlotCount)
		}

		first := g.Slots[0].Date
		if first.Weekday() != time.Monday {
			t.Fatalf("%s: first slot is %s, want Monday", now, first.Weekday())
		}
		if now.Before(first) || !now.Before(first.AddDate(0, 0, 7)) {
			t.Fatalf("%s: first slot %s is not the Monday of now's week", now, first)
		}

		last := g.End()
		if last.Weekday() != time.Saturday {
			t.Fatalf("%s: last slot is %s, want Saturday", now, last.Weekday())
		}
		if want := first.AddDate(0, 0, 3*7+5); !last.Equal(want) {
			t.Fatalf("%s: last slot %s, want %s", now, last, want)
		}

		seen := make(map[string]bool)
		for i, s := range g.Slots {
			if s.Weekday == time.Sunday {
				t.Fatalf("%s: grid contains Sunday %s", now, s.Key)
			}
			if seen[s.Key] {
				t.Fatalf("%s: duplicate key %s", now, s.Key)
			}
			seen[s.Key] = true
			if i > 0 && g.Slots[i-1].Key >= s.Key {
				t.Fatalf("%s: keys not strictly increasing at %d (%s, %s)", now, i, g.Slots[i-1].Key, s.Key)
			}
			if s.Holiday != det.IsHoliday(s.Date) {
				t.Fatalf("%s: holiday flag mismatch for %s", now, s.Key)
			}
			if s.Items == nil || len(s.Items) != 0 {
				t.Fatalf("%s: new slot should have an empty item list", now)
			}
		}
	}
}

func TestBuildSundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2026, 1, 25, 10, 0, 0, 0, time.UTC)
	g := Build(sunday, nil)
	if g.Slots[0].Key != "2026-01-19" {
		t.Fatalf("first slot = %s, want 2026-01-19", g.Slots[0].Key)
	}
	if !g.Start.Equal(time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %s", g.Start)
	}
}

func TestBuildYearRollover(t *testing.T) {
	now := time.Date(2026, 12, 30, 8, 0, 0, 0, time.UTC)
	g := Build(now, holiday.Default())

	wantKeys := []string{"2026-12-28", "2026-12-29", "2026-12-30", "2026-12-31", "2027-01-01", "2027-01-02", "2027-01-04"}
	for i, want := range wantKeys {
		if g.Slots[i].Key != want {
			t.Fatalf("slot %d = %s, want %s", i, g.Slots[i].Key, want)
		}
	}

	ny, ok := g.Slot("2027-01-01")
	if !ok {
		t.Fatalf("2027-01-01 missing")
	}
	if ny.Label != "1/1" || !ny.Holiday {
		t.Fatalf("2027-01-01: label=%q holiday=%v", ny.Label, ny.Holiday)
	}
	if _, ok := g.Slot("2027-01-03"); ok {
		t.Fatalf("Sunday 2027-01-03 should not be in the grid")
	}
}

func TestBuildLabels(t *testing.T) {
	g := Build(time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC), holiday.Default())
	s, ok := g.Slot("2026-02-11")
	if !ok {
		t.Fatalf("2026-02-11 missing")
	}
	if s.Label != "2/11" {
		t.Fatalf("label = %q, want 2/11", s.Label)
	}
	if !s.Holiday {
		t.Fatalf("2026-02-11 should be flagged as holiday")
	}
	if s.Weekday != time.Wednesday {
		t.Fatalf("weekday = %s", s.Weekday)
	}
	if g.Slots[1].Holiday {
		t.Fatalf("2026-02-10 should not be a holiday")
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-03-02"},  // Monday
		{time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC), "2026-03-02"}, // Saturday
		{time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), "2026-03-02"},  // Sunday
		{time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), "2026-02-23"},  // Sunday across month end
		{time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), "2026-12-28"},  // Friday across year end
	}
	for _, tt := range tests {
		if got := WeekStart(tt.now).Format("2006-01-02"); got != tt.want {
			t.Fatalf("WeekStart(%s) = %s, want %s", tt.now, got, tt.want)
		}
	}
}
