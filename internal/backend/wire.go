package backend

import (
	"strings"
	"time"

	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

// appointmentDTO is the persistence service's JSON shape. Missing or null
// string columns decode as "".
type appointmentDTO struct {
	ID model.ID `json:"id"`

	CustomerName  string `json:"customer_name"`
	ContactPerson string `json:"contact_person"`
	PhoneNumber   string `json:"phone_number"`
	MachineModel  string `json:"machine_model"`
	SerialNumber  string `json:"serial_number"`

	AppointmentDate string `json:"appointment_date"`

	Location      string `json:"location"`
	IsOwnLease    bool   `json:"is_own_lease"`
	LeaseLocation string `json:"lease_location"`

	FailureSymptoms string `json:"failure_symptoms"`
	CauseCategories string `json:"cause_categories"`
	ReceivedBy      string `json:"received_by"`

	Status          string  `json:"status"`
	WorkerName      string  `json:"worker_name"`
	CompletionNotes string  `json:"completion_notes"`
	CompletedAt     *string `json:"completed_at"`
	CreatedAt       *string `json:"created_at"`
}

// createBody is the create-time subset: no completion report fields.
type createBody struct {
	CustomerName  string `json:"customer_name"`
	ContactPerson string `json:"contact_person"`
	PhoneNumber   string `json:"phone_number"`
	MachineModel  string `json:"machine_model"`
	SerialNumber  string `json:"serial_number"`

	AppointmentDate string `json:"appointment_date"`

	Location      string `json:"location"`
	IsOwnLease    bool   `json:"is_own_lease"`
	LeaseLocation string `json:"lease_location"`

	FailureSymptoms string `json:"failure_symptoms"`
	CauseCategories string `json:"cause_categories"`
	ReceivedBy      string `json:"received_by"`

	Status string `json:"status"`
}

// updateBody is the full field set; empty completion fields are sent
// explicitly so that clearing them is a real replacement.
type updateBody struct {
	createBody

	WorkerName      string  `json:"worker_name"`
	CompletionNotes string  `json:"completion_notes"`
	CompletedAt     *string `json:"completed_at"`
}

const timestampLayout = "2006-01-02T15:04:05"

func newCreateBody(in model.AppointmentInput) createBody {
	status := in.Status
	if status == "" {
		status = model.StatusPending
	}
	return createBody{
		CustomerName:    in.CustomerName,
		ContactPerson:   in.ContactPerson,
		PhoneNumber:     in.PhoneNumber,
		MachineModel:    in.MachineModel,
		SerialNumber:    in.SerialNumber,
		AppointmentDate: in.Visit.Wire(),
		Location:        in.Location,
		IsOwnLease:      in.IsOwnLease,
		LeaseLocation:   in.LeaseLocation,
		FailureSymptoms: in.FailureSymptoms,
		CauseCategories: model.EncodeCategories(in.CauseCategories),
		ReceivedBy:      in.ReceivedBy,
		Status:          string(status),
	}
}

func newUpdateBody(in model.AppointmentInput) updateBody {
	body := updateBody{
		createBody:      newCreateBody(in),
		WorkerName:      in.WorkerName,
		CompletionNotes: in.CompletionNotes,
	}
	if in.CompletedAt != nil {
		s := in.CompletedAt.Format(timestampLayout)
		body.CompletedAt = &s
	}
	return body
}

// toModel converts a wire record. A record whose date cannot be parsed is
// kept with a zero Visit so that it matches no calendar slot.
func (d appointmentDTO) toModel(loc *time.Location) model.Appointment {
	a := model.Appointment{
		ID:              d.ID,
		CustomerName:    d.CustomerName,
		ContactPerson:   d.ContactPerson,
		PhoneNumber:     d.PhoneNumber,
		MachineModel:    d.MachineModel,
		SerialNumber:    d.SerialNumber,
		Location:        d.Location,
		IsOwnLease:      d.IsOwnLease,
		LeaseLocation:   d.LeaseLocation,
		FailureSymptoms: d.FailureSymptoms,
		CauseCategories: model.SplitCategories(d.CauseCategories),
		ReceivedBy:      d.ReceivedBy,
		Status:          model.Status(strings.ToLower(strings.TrimSpace(d.Status))),
		WorkerName:      d.WorkerName,
		CompletionNotes: d.CompletionNotes,
		CompletedAt:     parseTimestamp(d.CompletedAt, loc),
		CreatedAt:       parseTimestamp(d.CreatedAt, loc),
	}
	if a.Status != model.StatusCompleted {
		a.Status = model.StatusPending
	}

	v, err := model.ParseVisit(d.AppointmentDate, loc)
	if err != nil {
		appLog.Error("backend: appointment has unusable date", err, "id", d.ID, "appointment_date", d.AppointmentDate)
	} else {
		a.Visit = v
	}
	return a
}

func parseTimestamp(s *string, loc *time.Location) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", timestampLayout, "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t
		}
	}
	return nil
}
