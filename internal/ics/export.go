// Package ics renders the appointment board as an iCalendar feed so the
// schedule can be subscribed to from ordinary calendar clients.
package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

const (
	// TimedDuration is the length given to visits with a concrete time.
	TimedDuration = time.Hour

	uidDomain   = "repaircal"
	productID   = "-//repaircal//repair visits//JA"
	defaultName = "修理予定"
)

// HolidaySource lists the holiday dates of a year.
type HolidaySource interface {
	Holidays(year int, loc *time.Location) ([]time.Time, error)
}

// Options controls the exported feed.
type Options struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Location is the display zone; nil means time.Local.
	Location *time.Location
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
	// HolidayYears selects which years' holidays are included.
	HolidayYears []int
}

// UID returns the stable iCalendar UID for an appointment.
func UID(id model.ID) string {
	return fmt.Sprintf("appointment-%s@%s", id, uidDomain)
}

func holidayUID(d time.Time) string {
	return fmt.Sprintf("holiday-%s@%s", d.Format("20060102"), uidDomain)
}

// Export builds an iCalendar document. Appointments with a concrete time
// become one-hour events; visits without a time and holidays become
// all-day events. Appointments without a usable date are skipped.
func Export(appts []model.Appointment, holidays HolidaySource, opts Options) ([]byte, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.Name
	if name == "" {
		name = defaultName
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	cal.SetXWRTimezone(loc.String())

	skipped := 0
	for _, a := range appts {
		if a.ID == "" || a.Visit.IsZero() {
			skipped++
			continue
		}
		addAppointment(cal, a, now)
	}

	if holidays != nil {
		for _, year := range opts.HolidayYears {
			days, err := holidays.Holidays(year, loc)
			if err != nil {
				return nil, fmt.Errorf("ics: holidays for %d: %w", year, err)
			}
			for _, d := range days {
				ev := cal.AddEvent(holidayUID(d))
				ev.SetDtStampTime(now)
				ev.SetAllDayStartAt(d)
				ev.SetAllDayEndAt(d.AddDate(0, 0, 1))
				ev.SetSummary("休日")
				ev.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
			}
		}
	}

	out := cal.Serialize()
	if out == "" {
		return nil, errors.New("ics: empty calendar output")
	}
	appLog.Debug("ics export", "appointments", len(appts)-skipped, "skipped", skipped, "holiday_years", len(opts.HolidayYears))
	return []byte(out), nil
}

func addAppointment(cal *ical.Calendar, a model.Appointment, now time.Time) {
	ev := cal.AddEvent(UID(a.ID))
	ev.SetDtStampTime(now)
	if a.CreatedAt != nil {
		ev.SetCreatedTime(*a.CreatedAt)
	}

	if a.Visit.HasTime() {
		start := a.Visit.Time()
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(TimedDuration))
	} else {
		day := a.Visit.Date()
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	ev.SetSummary(summary(a))
	if a.Location != "" {
		ev.SetLocation(a.Location)
	}
	ev.SetDescription(description(a))
	if len(a.CauseCategories) > 0 {
		ev.SetProperty(ical.ComponentPropertyCategories, strings.Join(a.CauseCategories, ","))
	}
	if a.Completed() {
		ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
	} else {
		ev.SetProperty(ical.ComponentPropertyStatus, "TENTATIVE")
	}
}

func summary(a model.Appointment) string {
	s := a.CustomerName + " / " + a.MachineModel
	if a.Completed() {
		s = "[完了] " + s
	}
	return s
}

func description(a model.Appointment) string {
	var b strings.Builder
	line := func(label, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	line("担当者", a.ContactPerson)
	line("電話番号", a.PhoneNumber)
	line("号機", a.SerialNumber)
	line("故障内容", a.FailureSymptoms)
	line("受付者", a.ReceivedBy)
	if a.IsOwnLease {
		line("リース先", a.LeaseLocation)
	}
	if a.Completed() {
		line("作業者", a.WorkerName)
		line("作業内容", a.CompletionNotes)
	}
	return strings.TrimRight(b.String(), "\n")
}
