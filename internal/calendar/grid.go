package calendar

import (
	"fmt"
	"time"

	"repaircal/internal/model"
)

// Grid geometry: four weeks of Monday..Saturday columns. Sundays are never
// shown.
const (
	Weeks       = 4
	DaysPerWeek = 6
	SlotCount   = Weeks * DaysPerWeek
)

// Holidays classifies calendar days.
type Holidays interface {
	IsHoliday(t time.Time) bool
}

// Slot is one calendar cell.
type Slot struct {
	Key     string       `json:"key"`
	Label   string       `json:"label"`
	Date    time.Time    `json:"date"`
	Weekday time.Weekday `json:"weekday"`
	Holiday bool         `json:"holiday"`
	Items   []Item       `json:"items"`
}

// Grid is the rolling display window. It is rebuilt on every refresh and
// never patched in place.
type Grid struct {
	Start time.Time `json:"start"`
	Slots []Slot    `json:"slots"`
}

// WeekStart returns local midnight of the Monday of now's week. Sunday is
// treated as the last day of the week, so it maps six days back.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	offset := (int(now.Weekday()) + 6) % 7
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}

// Build lays out SlotCount slots starting at the Monday of now's week.
// holidays may be nil, in which case no slot is flagged.
func Build(now time.Time, holidays Holidays) Grid {
	start := WeekStart(now)
	g := Grid{
		Start: start,
		Slots: make([]Slot, 0, SlotCount),
	}

	for week := 0; week < Weeks; week++ {
		for dow := 0; dow < DaysPerWeek; dow++ {
			// time.Date normalizes day overflow across month and year ends.
			date := time.Date(start.Year(), start.Month(), start.Day()+week*7+dow, 0, 0, 0, 0, start.Location())
			slot := Slot{
				Key:     date.Format(model.DateKeyLayout),
				Label:   fmt.Sprintf("%d/%d", int(date.Month()), date.Day()),
				Date:    date,
				Weekday: date.Weekday(),
				Items:   []Item{},
			}
			if holidays != nil {
				slot.Holiday = holidays.IsHoliday(date)
			}
			g.Slots = append(g.Slots, slot)
		}
	}

	return g
}

// End returns the date of the last slot, or the zero time for an empty grid.
func (g Grid) End() time.Time {
	if len(g.Slots) == 0 {
		return time.Time{}
	}
	return g.Slots[len(g.Slots)-1].Date
}

// Slot returns the slot with the given YYYY-MM-DD key.
func (g Grid) Slot(key string) (Slot, bool) {
	if i := g.index(key); i >= 0 {
		return g.Slots[i], true
	}
	return Slot{}, false
}

func (g Grid) index(key string) int {
	for i := range g.Slots {
		if g.Slots[i].Key == key {
			return i
		}
	}
	return -1
}

// Weekdays are the column headers in display order.
var Weekdays = [DaysPerWeek]string{"月", "火", "水", "木", "金", "土"}

// WeekdayLabel is the column header of the slot's weekday.
func (s Slot) WeekdayLabel() string {
	if s.Weekday == time.Sunday {
		return "日"
	}
	return Weekdays[int(s.Weekday)-1]
}
