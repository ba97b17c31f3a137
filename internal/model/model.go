package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Status is the derived lifecycle status of an appointment as stored by the
// persistence service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// DeriveStatus computes the status from the worker name. An appointment is
// completed if and only if a worker name has been recorded.
func DeriveStatus(workerName string) Status {
	if strings.TrimSpace(workerName) != "" {
		return StatusCompleted
	}
	return StatusPending
}

// ID is the opaque identifier assigned by the persistence service.
// The service may encode it as a JSON number or string; both are accepted.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("model: id must be a string or number")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Appointment is the client-side copy of a repair visit record. The
// persistence service is the source of truth; values of this type are
// transient and possibly stale.
type Appointment struct {
	ID ID `json:"id"`

	CustomerName  string `json:"customer_name"`
	ContactPerson string `json:"contact_person"`
	PhoneNumber   string `json:"phone_number"`
	MachineModel  string `json:"machine_model"`
	SerialNumber  string `json:"serial_number"`

	Visit Visit `json:"visit"`

	Location      string `json:"location"`
	IsOwnLease    bool   `json:"is_own_lease"`
	LeaseLocation string `json:"lease_location"`

	FailureSymptoms string   `json:"failure_symptoms"`
	CauseCategories []string `json:"cause_categories"`
	ReceivedBy      string   `json:"received_by"`

	Status          Status     `json:"status"`
	WorkerName      string     `json:"worker_name"`
	CompletionNotes string     `json:"completion_notes"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	// CreatedAt is filled in by the service; it is never sent back.
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Completed reports whether the appointment carries the completed status.
func (a Appointment) Completed() bool {
	return a.Status == StatusCompleted
}

// AppointmentInput is the full field set submitted on create or update.
// Updates are full replacements: every field is resent.
type AppointmentInput struct {
	CustomerName  string `validate:"required"`
	ContactPerson string
	PhoneNumber   string
	MachineModel  string `validate:"required"`
	SerialNumber  string

	Visit Visit

	Location      string
	IsOwnLease    bool
	LeaseLocation string

	FailureSymptoms string
	CauseCategories []string
	ReceivedBy      string

	Status          Status
	WorkerName      string
	CompletionNotes string
	CompletedAt     *time.Time
}

const categorySeparator = ","

// EncodeCategories joins cause categories into the stored delimited form.
func EncodeCategories(cats []string) string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return strings.Join(out, categorySeparator)
}

// SplitCategories splits the stored delimited form. Order is preserved and
// duplicates are kept as stored.
func SplitCategories(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, categorySeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
