package appointment

import (
	"context"
	"errors"
	"time"

	"repaircal/internal/backend"
	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

// Repository is the persistence contract the editor needs.
type Repository interface {
	List(ctx context.Context) ([]model.Appointment, error)
	Create(ctx context.Context, in model.AppointmentInput) (model.Appointment, error)
	Update(ctx context.Context, id model.ID, in model.AppointmentInput) (model.Appointment, error)
	Delete(ctx context.Context, id model.ID) error
}

// Confirmer is asked before a destructive call. Returning false aborts.
type Confirmer interface {
	Confirm(ctx context.Context, s Session) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, s Session) bool

func (f ConfirmFunc) Confirm(ctx context.Context, s Session) bool { return f(ctx, s) }

// ErrDraftDelete is returned when deleting a session that was never created.
var ErrDraftDelete = errors.New("appointment: draft has not been created")

// Editor owns the create / edit / complete / delete lifecycle and keeps the
// mounted views in sync after each successful mutation.
//
// Saves are not serialized: two overlapping saves both reach the service
// and the later response wins.
type Editor struct {
	repo  Repository
	views *Views
	loc   *time.Location
	now   func() time.Time
}

// NewEditor builds an Editor. views may be nil.
func NewEditor(repo Repository, views *Views, loc *time.Location) *Editor {
	if views == nil {
		views = NewViews()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Editor{repo: repo, views: views, loc: loc, now: time.Now}
}

// SetClock overrides the time source used to stamp completions.
func (e *Editor) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Views returns the editor's view registry.
func (e *Editor) Views() *Views { return e.views }

// Open loads the appointment with the given id into a new session.
// The service has no single-record endpoint, so the full list is fetched.
func (e *Editor) Open(ctx context.Context, id model.ID) (Session, error) {
	list, err := e.repo.List(ctx)
	if err != nil {
		return Session{}, err
	}
	for _, a := range list {
		if a.ID == id {
			return Open(a), nil
		}
	}
	return Session{}, &backend.NotFoundError{Op: "open", ID: string(id)}
}

// Save creates a draft or fully replaces an existing appointment and
// returns the session advanced to the stored record. Callers must carry
// the returned session forward: saving it again updates the same record
// and keeps the original completion time.
func (e *Editor) Save(ctx context.Context, s Session) (Session, error) {
	in, err := s.Input(e.now(), e.loc)
	if err != nil {
		return s, err
	}

	var saved model.Appointment
	if s.State() == StateDraft {
		saved, err = e.repo.Create(ctx, in)
	} else {
		saved, err = e.repo.Update(ctx, s.ID, in)
	}
	if err != nil {
		appLog.Error("appointment save failed", err, "id", s.ID, "state", s.State())
		return s, err
	}

	next := Open(saved)
	appLog.Info("appointment saved",
		"id", saved.ID,
		"from", s.State(),
		"to", next.State(),
		"visit", saved.Visit.String(),
	)
	e.views.Refresh(ctx)
	return next, nil
}

// Complete files (or re-files) the completion report and saves. Passing
// an empty worker name reverts the appointment to pending.
func (e *Editor) Complete(ctx context.Context, s Session, worker, notes string) (Session, error) {
	s.Form.WorkerName = worker
	s.Form.CompletionNotes = notes
	return e.Save(ctx, s)
}

// Delete removes the appointment after confirm agrees. A nil confirmer or
// a declined confirmation returns (false, nil) without contacting the
// service.
func (e *Editor) Delete(ctx context.Context, s Session, confirm Confirmer) (bool, error) {
	if s.State() == StateDraft {
		return false, ErrDraftDelete
	}
	if confirm == nil || !confirm.Confirm(ctx, s) {
		appLog.Info("appointment delete declined", "id", s.ID)
		return false, nil
	}

	if err := e.repo.Delete(ctx, s.ID); err != nil {
		appLog.Error("appointment delete failed", err, "id", s.ID)
		return false, err
	}

	appLog.Info("appointment deleted", "id", s.ID)
	e.views.Refresh(ctx)
	return true, nil
}
