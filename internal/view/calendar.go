package view

import (
	"context"
	"sync"
	"time"

	"repaircal/internal/calendar"
	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

// Lister is the read side of the appointment repository.
type Lister interface {
	List(ctx context.Context) ([]model.Appointment, error)
}

// CalendarSnapshot is the last render of the calendar board.
type CalendarSnapshot struct {
	Grid        calendar.Grid
	Err         error
	RefreshedAt time.Time
}

// Calendar is the board view: build grid, list appointments, place them.
type Calendar struct {
	repo     Lister
	holidays calendar.Holidays
	now      func() time.Time

	mu   sync.RWMutex
	snap *CalendarSnapshot
}

// NewCalendar creates the board view. now supplies "today" in the display
// zone; nil means time.Now.
func NewCalendar(repo Lister, holidays calendar.Holidays, now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}
	return &Calendar{repo: repo, holidays: holidays, now: now}
}

// Refresh rebuilds the whole board. If listing fails, the previous render
// stays in place (or an empty grid is shown when there is none) and the
// error is kept in the snapshot.
func (c *Calendar) Refresh(ctx context.Context) error {
	now := c.now()
	grid := calendar.Build(now, c.holidays)

	appts, err := c.repo.List(ctx)
	if err != nil {
		appLog.Error("calendar refresh: list failed", err)
		c.mu.Lock()
		next := CalendarSnapshot{Grid: grid, Err: err, RefreshedAt: now}
		if c.snap != nil {
			next.Grid = c.snap.Grid
		}
		c.snap = &next
		c.mu.Unlock()
		return err
	}

	placed := calendar.Place(grid, appts)
	appLog.Debug("calendar refreshed", "start", placed.Start.Format(model.DateKeyLayout), "items", placed.Count(), "fetched", len(appts))

	c.mu.Lock()
	c.snap = &CalendarSnapshot{Grid: placed, RefreshedAt: now}
	c.mu.Unlock()
	return nil
}

// Snapshot returns the current render. Before the first refresh it is an
// empty grid for today.
func (c *Calendar) Snapshot() CalendarSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return CalendarSnapshot{Grid: calendar.Build(c.now(), c.holidays)}
	}
	return *c.snap
}
