package holiday

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// MonthDay is a calendar day independent of year, written "MM-DD" in YAML.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) matches(d time.Time) bool {
	return d.Month() == md.Month && d.Day() == md.Day
}

func (md MonthDay) MarshalYAML() (any, error) {
	return md.String(), nil
}

func (md *MonthDay) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse("01-02", strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("holiday: invalid month-day %q (want MM-DD)", node.Value)
	}
	md.Month, md.Day = t.Month(), t.Day()
	return nil
}

// Date is a full calendar date written "YYYY-MM-DD" in YAML.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) matches(t time.Time) bool {
	y, m, dd := t.Date()
	return y == d.Year && m == d.Month && dd == d.Day
}

func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("holiday: invalid date %q (want YYYY-MM-DD)", node.Value)
	}
	d.Year, d.Month, d.Day = t.Date()
	return nil
}

// NthWeekday is a floating holiday such as "2nd Monday of January".
type NthWeekday struct {
	Month   time.Month
	Nth     int
	Weekday time.Weekday
}

type nthWeekdayYAML struct {
	Month   int    `yaml:"month"`
	Nth     int    `yaml:"nth"`
	Weekday string `yaml:"weekday"`
}

func (n NthWeekday) MarshalYAML() (any, error) {
	return nthWeekdayYAML{
		Month:   int(n.Month),
		Nth:     n.Nth,
		Weekday: strings.ToLower(n.Weekday.String()),
	}, nil
}

func (n *NthWeekday) UnmarshalYAML(node *yaml.Node) error {
	var raw nthWeekdayYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Month < 1 || raw.Month > 12 {
		return fmt.Errorf("holiday: floating rule month %d out of range", raw.Month)
	}
	if raw.Nth < 1 || raw.Nth > 5 {
		return fmt.Errorf("holiday: floating rule nth %d out of range", raw.Nth)
	}
	wd, ok := parseWeekday(raw.Weekday)
	if !ok {
		return fmt.Errorf("holiday: unknown weekday %q", raw.Weekday)
	}
	n.Month, n.Nth, n.Weekday = time.Month(raw.Month), raw.Nth, wd
	return nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, true
		}
	}
	return 0, false
}

// occurrence is the 1-based index of d's weekday within its month
// (the 1st..7th are occurrence 1, the 8th..14th occurrence 2, ...).
func occurrence(d time.Time) int {
	return (d.Day()-1)/7 + 1
}

func (n NthWeekday) matches(d time.Time) bool {
	return d.Month() == n.Month && d.Weekday() == n.Weekday && occurrence(d) == n.Nth
}

func (n NthWeekday) String() string {
	return fmt.Sprintf("#%d %s of %s", n.Nth, n.Weekday, n.Month)
}

// RuleSet is the holiday table for one year. It is a static table, not a
// general holiday algorithm: equinoxes and substitute holidays are listed
// explicitly and are only correct for Year.
type RuleSet struct {
	Year        int          `yaml:"year"`
	Fixed       []MonthDay   `yaml:"fixed"`
	Floating    []NthWeekday `yaml:"floating"`
	Substitutes []Date       `yaml:"substitutes"`
	Equinoxes   []MonthDay   `yaml:"equinoxes"`
}

// IsHoliday evaluates fixed, floating, substitute and equinox rules.
// Fixed, floating and equinox rules compare month and day only;
// substitutes compare the full date.
func (r RuleSet) IsHoliday(d time.Time) bool {
	holiday := false
	for _, md := range r.Fixed {
		if md.matches(d) {
			holiday = true
		}
	}
	for _, f := range r.Floating {
		if f.matches(d) {
			holiday = true
		}
	}
	for _, s := range r.Substitutes {
		if s.matches(d) {
			holiday = true
		}
	}
	for _, md := range r.Equinoxes {
		if md.matches(d) {
			holiday = true
		}
	}
	return holiday
}

// Validate checks that every rule names a real day of r.Year.
func (r RuleSet) Validate() error {
	if r.Year < 1 {
		return fmt.Errorf("holiday: rule set year %d is invalid", r.Year)
	}
	check := func(kind string, m time.Month, d int) error {
		t := time.Date(r.Year, m, d, 0, 0, 0, 0, time.UTC)
		if t.Month() != m || t.Day() != d {
			return fmt.Errorf("holiday: %s %02d-%02d does not exist in %d", kind, int(m), d, r.Year)
		}
		return nil
	}
	for _, md := range r.Fixed {
		if err := check("fixed date", md.Month, md.Day); err != nil {
			return err
		}
	}
	for _, md := range r.Equinoxes {
		if err := check("equinox", md.Month, md.Day); err != nil {
			return err
		}
	}
	for _, s := range r.Substitutes {
		if err := check("substitute", s.Month, s.Day); err != nil {
			return err
		}
	}
	return nil
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// floatingDates expands a floating rule for one year as
// FREQ=YEARLY;BYMONTH=m;BYDAY=+nWD.
func (n NthWeekday) floatingDates(year int, loc *time.Location) ([]time.Time, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.YEARLY,
		Dtstart:   time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		Until:     time.Date(year, time.December, 31, 23, 59, 59, 0, loc),
		Bymonth:   []int{int(n.Month)},
		Byweekday: []rrule.Weekday{rruleWeekdays[n.Weekday].Nth(n.Nth)},
	})
	if err != nil {
		return nil, fmt.Errorf("holiday: expand %s: %w", n, err)
	}
	return r.All(), nil
}

// Dates lists every holiday of the given year produced by this rule set,
// sorted and without duplicates. Substitutes outside year are skipped.
func (r RuleSet) Dates(year int, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	seen := make(map[string]bool)
	out := make([]time.Time, 0, len(r.Fixed)+len(r.Floating)+len(r.Substitutes)+len(r.Equinoxes))
	add := func(t time.Time) {
		key := t.Format("2006-01-02")
		// Skip Feb 29 style rules that rolled into the next month.
		if seen[key] || !r.IsHoliday(t) {
			return
		}
		seen[key] = true
		out = append(out, t)
	}

	for _, md := range r.Fixed {
		add(time.Date(year, md.Month, md.Day, 0, 0, 0, 0, loc))
	}
	for _, f := range r.Floating {
		dates, err := f.floatingDates(year, loc)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			add(d)
		}
	}
	for _, s := range r.Substitutes {
		if s.Year == year {
			add(time.Date(s.Year, s.Month, s.Day, 0, 0, 0, 0, loc))
		}
	}
	for _, md := range r.Equinoxes {
		add(time.Date(year, md.Month, md.Day, 0, 0, 0, 0, loc))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// DefaultRuleSet is the built-in 2026 Japanese national holiday table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Year: 2026,
		Fixed: []MonthDay{
			{time.January, 1},
			{time.February, 11},
			{time.February, 23},
			{time.April, 29},
			{time.May, 3},
			{time.May, 4},
			{time.May, 5},
			{time.August, 11},
			{time.November, 3},
			{time.November, 23},
		},
		Floating: []NthWeekday{
			{Month: time.January, Nth: 2, Weekday: time.Monday},
			{Month: time.July, Nth: 3, Weekday: time.Monday},
			{Month: time.September, Nth: 3, Weekday: time.Monday},
			{Month: time.October, Nth: 2, Weekday: time.Monday},
		},
		// Constitution Day (5/3) falls on a Sunday; 5/4 and 5/5 are already
		// holidays so the substitute lands on 5/6.
		Substitutes: []Date{{2026, time.May, 6}},
		Equinoxes: []MonthDay{
			{time.March, 20},
			{time.September, 23},
		},
	}
}
