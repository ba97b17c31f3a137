package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"repaircal/internal/calendar"
	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

// Uncategorized is the bucket for appointments without a cause category.
const Uncategorized = "未分類"

// Count is one row of a breakdown table.
type Count struct {
	Key       string `json:"key"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// AnalysisSnapshot is the last tally of all appointments.
type AnalysisSnapshot struct {
	Total       int
	ByStatus    map[model.Status]int
	ByCategory  []Count
	ByMachine   []Count
	ByMonth     []Count
	Err         error
	RefreshedAt time.Time
}

// Analysis tallies appointments per cause category, machine model, visit
// month and status.
type Analysis struct {
	repo Lister
	now  func() time.Time

	mu   sync.RWMutex
	snap *AnalysisSnapshot
}

func NewAnalysis(repo Lister, now func() time.Time) *Analysis {
	if now == nil {
		now = time.Now
	}
	return &Analysis{repo: repo, now: now}
}

func (a *Analysis) Refresh(ctx context.Context) error {
	now := a.now()

	appts, err := a.repo.List(ctx)
	if err != nil {
		appLog.Error("analysis refresh: list failed", err)
		a.mu.Lock()
		next := emptyAnalysis()
		if a.snap != nil {
			next = *a.snap
		}
		next.Err = err
		next.RefreshedAt = now
		a.snap = &next
		a.mu.Unlock()
		return err
	}

	next := Tally(appts)
	next.RefreshedAt = now

	a.mu.Lock()
	a.snap = &next
	a.mu.Unlock()
	return nil
}

// Snapshot returns the current tally. Before the first refresh every
// breakdown is empty.
func (a *Analysis) Snapshot() AnalysisSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap == nil {
		return emptyAnalysis()
	}
	return *a.snap
}

func emptyAnalysis() AnalysisSnapshot {
	return AnalysisSnapshot{
		ByStatus:   map[model.Status]int{model.StatusPending: 0, model.StatusCompleted: 0},
		ByCategory: []Count{},
		ByMachine:  []Count{},
		ByMonth:    []Count{},
	}
}

// Tally counts appointments. An appointment with several cause categories
// is counted once under each of them. Months are keyed "2006-01" by visit
// date and sorted ascending; undated appointments are left out of ByMonth.
// The other breakdowns are sorted by total, largest first.
func Tally(appts []model.Appointment) AnalysisSnapshot {
	out := emptyAnalysis()
	cats := map[string]*Count{}
	machines := map[string]*Count{}
	months := map[string]*Count{}

	bump := func(m map[string]*Count, key string, done bool) {
		c, ok := m[key]
		if !ok {
			c = &Count{Key: key}
			m[key] = c
		}
		c.Total++
		if done {
			c.Completed++
		}
	}

	for _, a := range appts {
		it := calendar.Present(a)
		out.Total++
		if it.Completed {
			out.ByStatus[model.StatusCompleted]++
		} else {
			out.ByStatus[model.StatusPending]++
		}

		if len(it.Categories) == 0 {
			bump(cats, Uncategorized, it.Completed)
		}
		for _, c := range it.Categories {
			bump(cats, c, it.Completed)
		}
		bump(machines, a.MachineModel, it.Completed)
		if !a.Visit.IsZero() {
			bump(months, a.Visit.Date().Format("2006-01"), it.Completed)
		}
	}

	out.ByCategory = byTotal(cats)
	out.ByMachine = byTotal(machines)
	out.ByMonth = flatten(months)
	sort.Slice(out.ByMonth, func(i, j int) bool { return out.ByMonth[i].Key < out.ByMonth[j].Key })
	return out
}

func flatten(m map[string]*Count) []Count {
	out := make([]Count, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	return out
}

func byTotal(m map[string]*Count) []Count {
	out := flatten(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	return out
}
