package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NoTimeLabel is shown instead of a clock time when the customer did not
// request a specific time.
const NoTimeLabel = "時間指定なし"

const (
	DateKeyLayout = "2006-01-02"
	wireLayout    = "2006-01-02T15:04:05"
)

// Visit is the requested visit date, either with a specific time of day
// (Timed) or without one (Unspecified).
//
// On the wire the service only knows a combined date-time, where 00:00 is
// reserved to mean "no time requested". That sentinel is produced and
// consumed only by Wire / ParseVisit. A genuine midnight visit cannot be
// expressed: Timed(d, 0, 0) collapses to Unspecified(d).
type Visit struct {
	date   time.Time
	hour   int
	minute int
	timed  bool
}

// Timed returns a visit on date's calendar day at hour:minute (local wall
// clock of date's location).
func Timed(date time.Time, hour, minute int) Visit {
	if hour == 0 && minute == 0 {
		return Unspecified(date)
	}
	return Visit{date: midnight(date), hour: hour, minute: minute, timed: true}
}

// Unspecified returns a visit on date's calendar day with no requested time.
func Unspecified(date time.Time) Visit {
	return Visit{date: midnight(date)}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsZero reports whether the visit carries no date at all.
func (v Visit) IsZero() bool { return v.date.IsZero() }

// Date returns the calendar day at local midnight.
func (v Visit) Date() time.Time { return v.date }

// HasTime reports whether a specific time of day was requested.
func (v Visit) HasTime() bool { return v.timed }

// Clock returns hour and minute; both are zero for unspecified visits.
func (v Visit) Clock() (hour, minute int) { return v.hour, v.minute }

// Time returns the combined local date-time. Unspecified visits map to
// midnight.
func (v Visit) Time() time.Time {
	if v.IsZero() {
		return time.Time{}
	}
	return time.Date(v.date.Year(), v.date.Month(), v.date.Day(), v.hour, v.minute, 0, 0, v.date.Location())
}

// Key is the canonical YYYY-MM-DD date key used to match calendar slots.
// The zero Visit has an empty key and matches nothing.
func (v Visit) Key() string {
	if v.IsZero() {
		return ""
	}
	return v.date.Format(DateKeyLayout)
}

// Label is the display time: zero-padded HH:MM or NoTimeLabel.
func (v Visit) Label() string {
	if !v.timed {
		return NoTimeLabel
	}
	return fmt.Sprintf("%02d:%02d", v.hour, v.minute)
}

// Wire renders the service representation (YYYY-MM-DDTHH:MM:SS), using
// 00:00:00 for unspecified visits.
func (v Visit) Wire() string {
	if v.IsZero() {
		return ""
	}
	return v.Time().Format(wireLayout)
}

func (v Visit) String() string {
	if v.IsZero() {
		return "<none>"
	}
	return v.Key() + " " + v.Label()
}

// ParseVisit reads a service date-time such as "2026-01-20T10:30:00".
// The literal wall-clock digits are used as-is in loc; a trailing "Z" or
// UTC offset is ignored rather than converted. A value without a time part
// or with time 00:00 yields an Unspecified visit.
func ParseVisit(s string, loc *time.Location) (Visit, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Visit{}, fmt.Errorf("model: empty visit date")
	}

	datePart, timePart, hasTime := strings.Cut(s, "T")
	date, err := time.ParseInLocation(DateKeyLayout, datePart, loc)
	if err != nil {
		return Visit{}, fmt.Errorf("model: invalid visit date %q: %w", s, err)
	}
	if !hasTime {
		return Unspecified(date), nil
	}

	clock := stripZone(timePart)
	if i := strings.IndexByte(clock, '.'); i >= 0 {
		clock = clock[:i]
	}

	var t time.Time
	switch strings.Count(clock, ":") {
	case 1:
		t, err = time.Parse("15:04", clock)
	case 2:
		t, err = time.Parse("15:04:05", clock)
	default:
		err = fmt.Errorf("unexpected clock format")
	}
	if err != nil {
		return Visit{}, fmt.Errorf("model: invalid visit time %q: %w", s, err)
	}
	return Timed(date, t.Hour(), t.Minute()), nil
}

func stripZone(clock string) string {
	clock = strings.TrimSuffix(clock, "Z")
	if i := strings.IndexAny(clock, "+-"); i >= 0 {
		clock = clock[:i]
	}
	return clock
}

// visitJSON is the shape used by this application's own JSON API.
type visitJSON struct {
	Date   string `json:"date"`
	Time   string `json:"time,omitempty"`
	NoTime bool   `json:"no_time"`
	Label  string `json:"label"`
}

func (v Visit) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	out := visitJSON{Date: v.Key(), NoTime: !v.timed, Label: v.Label()}
	if v.timed {
		out.Time = v.Label()
	}
	return json.Marshal(out)
}
