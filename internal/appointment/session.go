package appointment

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"repaircal/internal/model"
)

// Placeholder fills optional text fields left blank by the caller.
const Placeholder = "不明"

// State is the lifecycle state of the appointment under edit.
type State string

const (
	StateDraft     State = "draft"
	StatePending   State = "pending"
	StateCompleted State = "completed"
)

// Form holds the edit-form field values of one session.
type Form struct {
	CustomerName  string `json:"customer_name"`
	ContactPerson string `json:"contact_person"`
	PhoneNumber   string `json:"phone_number"`
	MachineModel  string `json:"machine_model"`
	SerialNumber  string `json:"serial_number"`

	// Date is the chosen calendar day (YYYY-MM-DD), Time the chosen HH:MM.
	// With NoTime set, Time is ignored.
	Date   string `json:"date"`
	Time   string `json:"time"`
	NoTime bool   `json:"no_time"`

	Location      string `json:"location"`
	IsOwnLease    bool   `json:"is_own_lease"`
	LeaseLocation string `json:"lease_location"`

	FailureSymptoms string   `json:"failure_symptoms"`
	Categories      []string `json:"cause_categories"`
	ReceivedBy      string   `json:"received_by"`

	WorkerName      string `json:"worker_name"`
	CompletionNotes string `json:"completion_notes"`
}

// Session is one edit session. A session without an ID is a draft that
// has not been created yet.
type Session struct {
	ID       model.ID
	Form     Form
	Original *model.Appointment
}

// NewDraft starts a draft for the given day with no time chosen.
func NewDraft(day time.Time) Session {
	return Session{
		Form: Form{
			Date:   day.Format(model.DateKeyLayout),
			NoTime: true,
		},
	}
}

// Open pre-fills a session from a stored appointment. An unspecified visit
// pre-sets NoTime and leaves Time blank.
func Open(a model.Appointment) Session {
	f := Form{
		CustomerName:    a.CustomerName,
		ContactPerson:   a.ContactPerson,
		PhoneNumber:     a.PhoneNumber,
		MachineModel:    a.MachineModel,
		SerialNumber:    a.SerialNumber,
		Location:        a.Location,
		IsOwnLease:      a.IsOwnLease,
		LeaseLocation:   a.LeaseLocation,
		FailureSymptoms: a.FailureSymptoms,
		Categories:      append([]string(nil), a.CauseCategories...),
		ReceivedBy:      a.ReceivedBy,
		WorkerName:      a.WorkerName,
		CompletionNotes: a.CompletionNotes,
	}
	if !a.Visit.IsZero() {
		f.Date = a.Visit.Key()
		if a.Visit.HasTime() {
			f.Time = a.Visit.Label()
		} else {
			f.NoTime = true
		}
	}

	orig := a
	return Session{ID: a.ID, Form: f, Original: &orig}
}

// State reports the session's current lifecycle state.
func (s Session) State() State {
	switch {
	case s.ID == "":
		return StateDraft
	case s.Original != nil && s.Original.Completed():
		return StateCompleted
	default:
		return StatePending
	}
}

// Record returns the stored appointment the session was opened from.
// A draft has none.
func (s Session) Record() (model.Appointment, bool) {
	if s.Original == nil {
		return model.Appointment{}, false
	}
	return *s.Original, true
}

// ErrInvalidForm wraps every form validation failure.
var ErrInvalidForm = errors.New("invalid appointment form")

// FormError lists the offending fields.
type FormError struct {
	Fields []string
	Reason string
}

func (e *FormError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%v: %s", ErrInvalidForm, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidForm, e.Reason, strings.Join(e.Fields, ", "))
}

func (e *FormError) Unwrap() error { return ErrInvalidForm }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Input turns the form into the record to submit. It is pure apart from
// reading now, which stamps a first completion.
//
//   - customer name and machine model are required; other blank text
//     fields become Placeholder
//   - NoTime keeps the date and drops the time
//   - lease location is sent only for own-lease equipment
//   - status is derived from the worker name
//
// Drafts never carry completion fields.
func (s Session) Input(now time.Time, loc *time.Location) (model.AppointmentInput, error) {
	if loc == nil {
		loc = time.Local
	}
	f := s.Form

	visit, err := f.visit(loc)
	if err != nil {
		return model.AppointmentInput{}, err
	}

	in := model.AppointmentInput{
		CustomerName:    strings.TrimSpace(f.CustomerName),
		ContactPerson:   orPlaceholder(f.ContactPerson),
		PhoneNumber:     orPlaceholder(f.PhoneNumber),
		MachineModel:    strings.TrimSpace(f.MachineModel),
		SerialNumber:    orPlaceholder(f.SerialNumber),
		Visit:           visit,
		Location:        strings.TrimSpace(f.Location),
		IsOwnLease:      f.IsOwnLease,
		FailureSymptoms: strings.TrimSpace(f.FailureSymptoms),
		CauseCategories: cleanCategories(f.Categories),
		ReceivedBy:      strings.TrimSpace(f.ReceivedBy),
	}
	if f.IsOwnLease {
		in.LeaseLocation = strings.TrimSpace(f.LeaseLocation)
	}

	if err := inputValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, jsonFieldName(fe.Field()))
			}
			return model.AppointmentInput{}, &FormError{Fields: fields, Reason: "required"}
		}
		return model.AppointmentInput{}, fmt.Errorf("appointment: validate: %w", err)
	}

	if s.State() == StateDraft {
		in.Status = model.StatusPending
		return in, nil
	}

	in.WorkerName = strings.TrimSpace(f.WorkerName)
	in.CompletionNotes = strings.TrimSpace(f.CompletionNotes)
	in.Status = model.DeriveStatus(in.WorkerName)

	if in.Status == model.StatusCompleted {
		if s.Original != nil && s.Original.Completed() && s.Original.CompletedAt != nil {
			t := *s.Original.CompletedAt
			in.CompletedAt = &t
		} else {
			t := now.In(loc)
			in.CompletedAt = &t
		}
	}
	return in, nil
}

func (f Form) visit(loc *time.Location) (model.Visit, error) {
	day, err := time.ParseInLocation(model.DateKeyLayout, strings.TrimSpace(f.Date), loc)
	if err != nil {
		return model.Visit{}, &FormError{Fields: []string{"date"}, Reason: "invalid date"}
	}
	if f.NoTime {
		return model.Unspecified(day), nil
	}

	clock := strings.TrimSpace(f.Time)
	if clock == "" {
		return model.Visit{}, &FormError{Fields: []string{"time"}, Reason: "time required unless no_time is set"}
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return model.Visit{}, &FormError{Fields: []string{"time"}, Reason: "invalid time"}
	}
	return model.Timed(day, t.Hour(), t.Minute()), nil
}

func orPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Placeholder
	}
	return s
}

func cleanCategories(cats []string) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		// A comma inside a tag would split into extra tags on the next load.
		c = strings.TrimSpace(strings.ReplaceAll(c, ",", " "))
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func jsonFieldName(goName string) string {
	switch goName {
	case "CustomerName":
		return "customer_name"
	case "MachineModel":
		return "machine_model"
	default:
		return strings.ToLower(goName)
	}
}
