package holiday

import (
	"fmt"
	"sort"
	"time"
)

// Determiner classifies dates as holidays using per-year rule sets.
//
// A year with its own rule set uses it. Any other year falls back to the
// default rule set: its month/day rules apply to every year, while its
// substitute dates only ever match within their own year. This mirrors
// a single static holiday table while allowing further years to be
// configured.
type Determiner struct {
	sets        map[int]RuleSet
	defaultYear int
}

// NewDeterminer builds a Determiner. defaultYear must be one of the given
// rule sets' years; zero selects the first set. With no rule sets,
// DefaultRuleSet is used.
func NewDeterminer(defaultYear int, sets ...RuleSet) (*Determiner, error) {
	if len(sets) == 0 {
		sets = []RuleSet{DefaultRuleSet()}
	}
	if defaultYear == 0 {
		defaultYear = sets[0].Year
	}

	d := &Determiner{
		sets:        make(map[int]RuleSet, len(sets)),
		defaultYear: defaultYear,
	}
	for _, rs := range sets {
		if err := rs.Validate(); err != nil {
			return nil, err
		}
		if _, dup := d.sets[rs.Year]; dup {
			return nil, fmt.Errorf("holiday: duplicate rule set for year %d", rs.Year)
		}
		d.sets[rs.Year] = rs
	}
	if _, ok := d.sets[defaultYear]; !ok {
		return nil, fmt.Errorf("holiday: default year %d has no rule set", defaultYear)
	}
	return d, nil
}

// Default returns a Determiner carrying only DefaultRuleSet.
func Default() *Determiner {
	def := DefaultRuleSet()
	return &Determiner{
		sets:        map[int]RuleSet{def.Year: def},
		defaultYear: def.Year,
	}
}

// RuleSetFor returns the rule set applied to dates in year.
func (d *Determiner) RuleSetFor(year int) RuleSet {
	if rs, ok := d.sets[year]; ok {
		return rs
	}
	return d.sets[d.defaultYear]
}

// IsHoliday reports whether the calendar day of t is a holiday.
// Only t's own year, month and day are inspected.
func (d *Determiner) IsHoliday(t time.Time) bool {
	return d.RuleSetFor(t.Year()).IsHoliday(t)
}

// Holidays lists every holiday in year, sorted.
func (d *Determiner) Holidays(year int, loc *time.Location) ([]time.Time, error) {
	return d.RuleSetFor(year).Dates(year, loc)
}

// Years lists the years that have an explicit rule set.
func (d *Determiner) Years() []int {
	out := make([]int, 0, len(d.sets))
	for y := range d.sets {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}
