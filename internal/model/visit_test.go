package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseVisit(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		in       string
		key      string
		label    string
		hasTime  bool
		wantWire string
	}{
		{"2026-01-20T10:30:00", "2026-01-20", "10:30", true, "2026-01-20T10:30:00"},
		{"2026-01-20T10:30", "2026-01-20", "10:30", true, "2026-01-20T10:30:00"},
		{"2026-01-20T14:30:00.000Z", "2026-01-20", "14:30", true, "2026-01-20T14:30:00"},
		{"2026-01-20T09:05:00+09:00", "2026-01-20", "09:05", true, "2026-01-20T09:05:00"},
		{"2026-02-11T00:00:00", "2026-02-11", NoTimeLabel, false, "2026-02-11T00:00:00"},
		{"2026-02-11T00:00", "2026-02-11", NoTimeLabel, false, "2026-02-11T00:00:00"},
		{"2026-02-11", "2026-02-11", NoTimeLabel, false, "2026-02-11T00:00:00"},
	}

	for _, tt := range tests {
		v, err := ParseVisit(tt.in, loc)
		if err != nil {
			t.Fatalf("ParseVisit(%q): %v", tt.in, err)
		}
		if v.Key() != tt.key {
			t.Fatalf("ParseVisit(%q) key = %q, want %q", tt.in, v.Key(), tt.key)
		}
		if v.Label() != tt.label {
			t.Fatalf("ParseVisit(%q) label = %q, want %q", tt.in, v.Label(), tt.label)
		}
		if v.HasTime() != tt.hasTime {
			t.Fatalf("ParseVisit(%q) HasTime = %v, want %v", tt.in, v.HasTime(), tt.hasTime)
		}
		if v.Wire() != tt.wantWire {
			t.Fatalf("ParseVisit(%q) wire = %q, want %q", tt.in, v.Wire(), tt.wantWire)
		}
		if v.Date().Location() != loc {
			t.Fatalf("ParseVisit(%q) location = %v, want %v", tt.in, v.Date().Location(), loc)
		}
	}
}

func TestParseVisitRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "2026-13-01T10:00", "2026-01-20T25:00", "2026-01-20Tnoon"} {
		if _, err := ParseVisit(in, time.UTC); err == nil {
			t.Fatalf("ParseVisit(%q): expected error", in)
		}
	}
}

func TestUnspecifiedRoundTripKeepsDate(t *testing.T) {
	day := time.Date(2026, 3, 31, 17, 45, 0, 0, time.UTC)
	v := Unspecified(day)

	back, err := ParseVisit(v.Wire(), time.UTC)
	if err != nil {
		t.Fatalf("ParseVisit: %v", err)
	}
	if back.HasTime() {
		t.Fatalf("expected unspecified visit after round trip")
	}
	if back.Key() != "2026-03-31" {
		t.Fatalf("date part changed: %s", back.Key())
	}
}

func TestTimedMidnightCollapses(t *testing.T) {
	v := Timed(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 0, 0)
	if v.HasTime() {
		t.Fatalf("midnight should collapse to unspecified")
	}
	if v.Label() != NoTimeLabel {
		t.Fatalf("label = %q", v.Label())
	}
}

func TestZeroVisit(t *testing.T) {
	var v Visit
	if !v.IsZero() || v.Key() != "" || v.Wire() != "" {
		t.Fatalf("zero visit should have empty key and wire form")
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "null" {
		t.Fatalf("zero visit json = %s", b)
	}
}

func TestVisitMarshalJSON(t *testing.T) {
	v := Timed(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), 10, 30)
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"date":"2026-01-20","time":"10:30","no_time":false,"label":"10:30"}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
}
