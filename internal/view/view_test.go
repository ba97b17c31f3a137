package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"repaircal/internal/calendar"
	"repaircal/internal/holiday"
	"repaircal/internal/model"
)

type stubLister struct {
	appts []model.Appointment
	err   error
}

func (s *stubLister) List(context.Context) ([]model.Appointment, error) {
	return s.appts, s.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func appt(id string, visit model.Visit, status model.Status) model.Appointment {
	return model.Appointment{ID: model.ID(id), CustomerName: "c" + id, MachineModel: "m", Visit: visit, Status: status}
}

func fixedClock() time.Time { return time.Date(2026, 1, 21, 8, 0, 0, 0, time.UTC) }

func TestCalendarSnapshotBeforeRefresh(t *testing.T) {
	c := NewCalendar(&stubLister{}, holiday.Default(), fixedClock)
	snap := c.Snapshot()
	if len(snap.Grid.Slots) != calendar.SlotCount || snap.Grid.Count() != 0 || snap.Err != nil {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
	if got := snap.Grid.Start.Format(model.DateKeyLayout); got != "2026-01-19" {
		t.Fatalf("start = %s", got)
	}
}

func TestCalendarFirstRefreshFailureShowsEmptyGrid(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewCalendar(&stubLister{err: boom}, holiday.Default(), fixedClock)

	if err := c.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Refresh err = %v", err)
	}
	snap := c.Snapshot()
	if !errors.Is(snap.Err, boom) {
		t.Fatalf("snapshot err = %v", snap.Err)
	}
	if len(snap.Grid.Slots) != calendar.SlotCount || snap.Grid.Count() != 0 {
		t.Fatalf("expected an empty grid")
	}
}

func TestCalendarRecoversAfterFailure(t *testing.T) {
	repo := &stubLister{appts: []model.Appointment{
		appt("1", model.Timed(day(2026, 1, 20), 10, 30), model.StatusPending),
	}}
	c := NewCalendar(repo, holiday.Default(), fixedClock)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	repo.err = errors.New("down")
	_ = c.Refresh(ctx)
	if c.Snapshot().Grid.Count() != 1 {
		t.Fatalf("prior render lost")
	}

	repo.err = nil
	repo.appts = nil
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := c.Snapshot()
	if snap.Err != nil || snap.Grid.Count() != 0 {
		t.Fatalf("error should clear on success: %+v", snap.Err)
	}
}

func TestHistoryOrderAndFilter(t *testing.T) {
	repo := &stubLister{appts: []model.Appointment{
		appt("1", model.Unspecified(day(2026, 1, 10)), model.StatusCompleted),
		appt("2", model.Timed(day(2026, 3, 2), 9, 0), model.StatusPending),
		appt("3", model.Visit{}, model.StatusPending),
		appt("4", model.Timed(day(2026, 1, 10), 13, 0), model.StatusCompleted),
	}}
	h := NewHistory(repo, fixedClock)
	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var ids []model.ID
	for _, it := range h.Snapshot("").Items {
		ids = append(ids, it.Appointment.ID)
	}
	want := []model.ID{"2", "4", "1", "3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	done := h.Snapshot(model.StatusCompleted).Items
	if len(done) != 2 || !done[0].Completed || done[0].StatusClass != calendar.StatusClassCompleted {
		t.Fatalf("completed filter = %+v", done)
	}
	if got := len(h.Snapshot(model.StatusPending).Items); got != 2 {
		t.Fatalf("pending filter = %d", got)
	}
}

func TestHistoryFailureKeepsItems(t *testing.T) {
	repo := &stubLister{appts: []model.Appointment{appt("1", model.Unspecified(day(2026, 1, 10)), model.StatusPending)}}
	h := NewHistory(repo, fixedClock)
	ctx := context.Background()
	_ = h.Refresh(ctx)

	repo.err = errors.New("down")
	if err := h.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}
	snap := h.Snapshot("")
	if snap.Err == nil || len(snap.Items) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}
