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

// HistorySnapshot is the last render of the history listing.
type HistorySnapshot struct {
	Items       []calendar.Item
	Err         error
	RefreshedAt time.Time
}

// History lists every appointment, newest visit first.
type History struct {
	repo Lister
	now  func() time.Time

	mu   sync.RWMutex
	snap *HistorySnapshot
}

func NewHistory(repo Lister, now func() time.Time) *History {
	if now == nil {
		now = time.Now
	}
	return &History{repo: repo, now: now}
}

func (h *History) Refresh(ctx context.Context) error {
	now := h.now()

	appts, err := h.repo.List(ctx)
	if err != nil {
		appLog.Error("history refresh: list failed", err)
		h.mu.Lock()
		next := HistorySnapshot{Items: []calendar.Item{}, Err: err, RefreshedAt: now}
		if h.snap != nil {
			next.Items = h.snap.Items
		}
		h.snap = &next
		h.mu.Unlock()
		return err
	}

	items := make([]calendar.Item, 0, len(appts))
	for _, a := range appts {
		items = append(items, calendar.Present(a))
	}
	// Newest visit first; undated records sink to the bottom.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Appointment.Visit.Time().After(items[j].Appointment.Visit.Time())
	})

	h.mu.Lock()
	h.snap = &HistorySnapshot{Items: items, RefreshedAt: now}
	h.mu.Unlock()
	return nil
}

// Snapshot returns the current listing, optionally filtered by status.
func (h *History) Snapshot(status model.Status) HistorySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.snap == nil {
		return HistorySnapshot{Items: []calendar.Item{}}
	}
	out := *h.snap
	if status == "" {
		return out
	}
	out.Items = make([]calendar.Item, 0, len(h.snap.Items))
	for _, it := range h.snap.Items {
		if it.Appointment.Status == status {
			out.Items = append(out.Items, it)
		}
	}
	return out
}
