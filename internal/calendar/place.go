package calendar

import (
	"repaircal/internal/model"
)

// StatusClassCompleted marks items whose appointment has been completed.
const StatusClassCompleted = "status-completed"

// Item is an appointment placed on the board together with its derived
// display fields.
type Item struct {
	Appointment model.Appointment `json:"appointment"`
	TimeLabel   string            `json:"time_label"`
	Completed   bool              `json:"completed"`
	StatusClass string            `json:"status_class"`
	Categories  []string          `json:"categories"`
}

// Present derives the display fields of a single appointment.
func Present(a model.Appointment) Item {
	it := Item{
		Appointment: a,
		TimeLabel:   a.Visit.Label(),
		Completed:   a.Completed(),
		Categories:  append([]string(nil), a.CauseCategories...),
	}
	if it.Completed {
		it.StatusClass = StatusClassCompleted
	}
	return it
}

// Place returns a copy of g whose slots hold the given appointments.
// Appointments keep their list order within a slot; they are not sorted by
// time. Appointments outside the window (or without a date) are dropped.
func Place(g Grid, appts []model.Appointment) Grid {
	out := Grid{
		Start: g.Start,
		Slots: make([]Slot, len(g.Slots)),
	}

	byKey := make(map[string]int, len(g.Slots))
	for i, s := range g.Slots {
		s.Items = append([]Item{}, s.Items...)
		out.Slots[i] = s
		byKey[s.Key] = i
	}

	for _, a := range appts {
		i, ok := byKey[a.Visit.Key()]
		if !ok {
			continue
		}
		out.Slots[i].Items = append(out.Slots[i].Items, Present(a))
	}

	return out
}

// Count returns the number of placed items.
func (g Grid) Count() int {
	n := 0
	for _, s := range g.Slots {
		n += len(s.Items)
	}
	return n
}
