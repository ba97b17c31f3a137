package appointment_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"repaircal/internal/appointment"
	"repaircal/internal/backend"
	"repaircal/internal/backend/backendtest"
	"repaircal/internal/calendar"
	"repaircal/internal/holiday"
	"repaircal/internal/model"
	"repaircal/internal/view"
)

type fixture struct {
	srv      *backendtest.Server
	client   *backend.Client
	editor   *appointment.Editor
	board    *view.Calendar
	history  *view.History
	unmounts []func()
}

// newFixture wires the editor to a fake service with both views mounted,
// the board anchored at now.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 2*time.Second, time.UTC)
	clock := func() time.Time { return now }

	f := &fixture{
		srv:     srv,
		client:  client,
		board:   view.NewCalendar(client, holiday.Default(), clock),
		history: view.NewHistory(client, clock),
	}
	f.editor = appointment.NewEditor(client, nil, time.UTC)
	f.editor.SetClock(clock)
	f.unmounts = append(f.unmounts,
		f.editor.Views().Mount("calendar", f.board),
		f.editor.Views().Mount("history", f.history),
	)
	return f
}

func yes(context.Context, appointment.Session) bool { return true }
func no(context.Context, appointment.Session) bool  { return false }

// Scenario A: create 2026-01-20T10:30 Acme/X1 and see it on the board.
func TestScenarioCreateTimedAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	s := appointment.NewDraft(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Acme"
	s.Form.MachineModel = "X1"
	s.Form.NoTime = false
	s.Form.Time = "10:30"

	next, err := f.editor.Save(ctx, s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved, ok := next.Record()
	if !ok || saved.ID == "" || saved.Status != model.StatusPending {
		t.Fatalf("unexpected saved appointment: %+v", saved)
	}

	snap := f.board.Snapshot()
	if snap.Err != nil {
		t.Fatalf("board error: %v", snap.Err)
	}
	slot, ok := snap.Grid.Slot("2026-01-20")
	if !ok {
		t.Fatalf("slot 2026-01-20 missing")
	}
	if len(slot.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(slot.Items))
	}
	it := slot.Items[0]
	if it.TimeLabel != "10:30" || it.Appointment.CustomerName != "Acme" {
		t.Fatalf("item = %q %q", it.TimeLabel, it.Appointment.CustomerName)
	}

	if got := len(f.history.Snapshot("").Items); got != 1 {
		t.Fatalf("history should also be refreshed, has %d items", got)
	}
}

// Scenario B: no-time appointment on the 2026-02-11 holiday.
func TestScenarioNoTimeOnHoliday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC))

	s := appointment.NewDraft(time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Beta Construction"
	s.Form.MachineModel = "ZX200"

	if _, err := f.editor.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, ok := f.srv.Get(1)
	if !ok {
		t.Fatalf("record not stored")
	}
	if rec.AppointmentDate != "2026-02-11T00:00:00" {
		t.Fatalf("stored date = %q, want time part 00:00", rec.AppointmentDate)
	}

	slot, ok := f.board.Snapshot().Grid.Slot("2026-02-11")
	if !ok {
		t.Fatalf("slot missing")
	}
	if !slot.Holiday {
		t.Fatalf("2026-02-11 should be flagged as holiday")
	}
	if len(slot.Items) != 1 || slot.Items[0].TimeLabel != model.NoTimeLabel {
		t.Fatalf("expected one no-time item, got %+v", slot.Items)
	}
}

// Scenario C: clearing the worker of a completed appointment reverts it.
func TestScenarioRevertCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	completedAt := "2026-01-20T15:00:00"
	f.srv.Seed(backendtest.Record{
		CustomerName:    "Acme",
		MachineModel:    "X1",
		AppointmentDate: "2026-01-20T10:30:00",
		Status:          "completed",
		WorkerName:      "T.Sato",
		CompletionNotes: "done",
		CompletedAt:     &completedAt,
	})

	s, err := f.editor.Open(ctx, "1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.State() != appointment.StateCompleted {
		t.Fatalf("state = %s", s.State())
	}

	next, err := f.editor.Complete(ctx, s, "", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if next.State() != appointment.StatePending {
		t.Fatalf("state = %s, want pending", next.State())
	}

	slot, _ := f.board.Snapshot().Grid.Slot("2026-01-20")
	if len(slot.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(slot.Items))
	}
	if slot.Items[0].Completed || slot.Items[0].StatusClass != "" {
		t.Fatalf("item should no longer render as completed")
	}

	rec, _ := f.srv.Get(1)
	if rec.CompletedAt != nil || rec.WorkerName != "" {
		t.Fatalf("completion fields not cleared: %+v", rec)
	}

	if got := len(f.history.Snapshot(model.StatusCompleted).Items); got != 0 {
		t.Fatalf("history still lists %d completed items", got)
	}
}

func TestSaveDraftTwiceUpdatesSameRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	s := appointment.NewDraft(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Acme"
	s.Form.MachineModel = "X1"

	s, err := f.editor.Save(ctx, s)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if s.State() != appointment.StatePending || s.ID == "" {
		t.Fatalf("after create: state=%s id=%q", s.State(), s.ID)
	}

	s.Form.Location = "Yard 3"
	s, err = f.editor.Save(ctx, s)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if f.srv.Len() != 1 || f.srv.Calls(http.MethodPost) != 1 {
		t.Fatalf("records=%d posts=%d, want 1 and 1", f.srv.Len(), f.srv.Calls(http.MethodPost))
	}
	if s.State() != appointment.StatePending {
		t.Fatalf("state = %s, want pending", s.State())
	}
	if rec, _ := f.srv.Get(1); rec.Location != "Yard 3" {
		t.Fatalf("second save did not update the record: %+v", rec)
	}
}

func TestResaveCompletedKeepsCompletionTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.srv.Seed(backendtest.Record{CustomerName: "Acme", MachineModel: "X1", AppointmentDate: "2026-01-20T10:30:00"})

	s, err := f.editor.Open(ctx, "1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err = f.editor.Complete(ctx, s, "T.Sato", "replaced pump")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s.State() != appointment.StateCompleted {
		t.Fatalf("state = %s, want completed", s.State())
	}
	first, _ := f.srv.Get(1)
	if first.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}

	f.editor.SetClock(func() time.Time { return now.Add(48 * time.Hour) })
	s.Form.CompletionNotes = "replaced pump and hose"
	s, err = f.editor.Save(ctx, s)
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if s.State() != appointment.StateCompleted {
		t.Fatalf("state = %s, want completed", s.State())
	}
	again, _ := f.srv.Get(1)
	if again.CompletedAt == nil || *again.CompletedAt != *first.CompletedAt {
		t.Fatalf("completed_at moved from %v to %v", *first.CompletedAt, again.CompletedAt)
	}
	if again.CompletionNotes != "replaced pump and hose" {
		t.Fatalf("notes = %q", again.CompletionNotes)
	}
}

// Scenario D: a declined delete issues no DELETE call.
func TestScenarioDeleteWithoutConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))
	f.srv.Seed(backendtest.Record{CustomerName: "Acme", MachineModel: "X1", AppointmentDate: "2026-01-20T10:30:00"})

	s, err := f.editor.Open(ctx, "1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, confirm := range []appointment.Confirmer{nil, appointment.ConfirmFunc(no)} {
		deleted, err := f.editor.Delete(ctx, s, confirm)
		if err != nil || deleted {
			t.Fatalf("declined delete returned (%v, %v)", deleted, err)
		}
	}
	if calls := f.srv.Calls(http.MethodDelete); calls != 0 {
		t.Fatalf("expected no DELETE call, got %d", calls)
	}

	if err := f.board.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.board.Snapshot().Grid.Count() != 1 {
		t.Fatalf("appointment should still be on the board")
	}

	deleted, err := f.editor.Delete(ctx, s, appointment.ConfirmFunc(yes))
	if err != nil || !deleted {
		t.Fatalf("confirmed delete returned (%v, %v)", deleted, err)
	}
	if f.srv.Len() != 0 {
		t.Fatalf("record still stored")
	}
	if f.board.Snapshot().Grid.Count() != 0 {
		t.Fatalf("board not refreshed after delete")
	}
}

func TestDeleteDraftIsRejected(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))
	_, err := f.editor.Delete(context.Background(), appointment.NewDraft(time.Now()), appointment.ConfirmFunc(yes))
	if !errors.Is(err, appointment.ErrDraftDelete) {
		t.Fatalf("expected ErrDraftDelete, got %v", err)
	}
}

func TestSaveFailureSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	refreshed := 0
	f.editor.Views().Mount("counter", appointment.RefreshFunc(func(context.Context) error {
		refreshed++
		return nil
	}))

	s := appointment.NewDraft(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Acme"
	s.Form.MachineModel = "X1"

	f.srv.FailNext(http.StatusUnprocessableEntity, `{"detail": "duplicate visit"}`)
	_, err := f.editor.Save(ctx, s)
	if !backend.IsValidation(err) || backend.Message(err) != "duplicate visit" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if refreshed != 0 {
		t.Fatalf("views must not refresh after a failed save")
	}

	if _, err := f.editor.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("expected one refresh, got %d", refreshed)
	}
}

func TestRefreshFailureDoesNotFailSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	f.editor.Views().Mount("broken", appointment.RefreshFunc(func(context.Context) error {
		panic("render exploded")
	}))

	s := appointment.NewDraft(time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Acme"
	s.Form.MachineModel = "X1"
	if _, err := f.editor.Save(ctx, s); err != nil {
		t.Fatalf("Save should succeed despite a broken view: %v", err)
	}
	if f.board.Snapshot().Grid.Count() != 1 {
		t.Fatalf("other views still refresh")
	}
}

func TestUnmountedViewIsNotRefreshed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))

	f.unmounts[1]() // history
	if names := f.editor.Views().Mounted(); len(names) != 1 || names[0] != "calendar" {
		t.Fatalf("mounted = %v", names)
	}

	s := appointment.NewDraft(time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC))
	s.Form.CustomerName = "Acme"
	s.Form.MachineModel = "X1"
	if _, err := f.editor.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(f.history.Snapshot("").Items) != 0 {
		t.Fatalf("unmounted history view was refreshed")
	}
	if f.board.Snapshot().Grid.Count() != 1 {
		t.Fatalf("calendar view was not refreshed")
	}
}

func TestOpenUnknownID(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))
	if _, err := f.editor.Open(context.Background(), "42"); !backend.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBoardKeepsPriorRenderOnListFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC))
	f.srv.Seed(backendtest.Record{CustomerName: "Acme", MachineModel: "X1", AppointmentDate: "2026-01-20T10:30:00"})

	if err := f.board.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f.srv.FailNext(http.StatusBadGateway, "")
	if err := f.board.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}

	snap := f.board.Snapshot()
	if snap.Err == nil {
		t.Fatalf("error should be retrievable from the snapshot")
	}
	if snap.Grid.Count() != 1 || len(snap.Grid.Slots) != calendar.SlotCount {
		t.Fatalf("prior render should stay in place")
	}
}
