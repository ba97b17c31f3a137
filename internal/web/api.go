package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"repaircal/internal/appointment"
	"repaircal/internal/backend"
	"repaircal/internal/calendar"
	"repaircal/internal/ics"
	appLog "repaircal/internal/log"
	"repaircal/internal/model"
	"repaircal/internal/view"
)

// ConfirmParam must be "yes" for DELETE to reach the service.
const ConfirmParam = "confirm"

type itemDTO struct {
	ID           model.ID     `json:"id"`
	TimeLabel    string       `json:"time_label"`
	CustomerName string       `json:"customer_name"`
	MachineModel string       `json:"machine_model"`
	Location     string       `json:"location,omitempty"`
	Status       model.Status `json:"status"`
	Completed    bool         `json:"completed"`
	StatusClass  string       `json:"status_class,omitempty"`
	Categories   []string     `json:"categories"`
	Visit        model.Visit  `json:"visit"`
}

type slotDTO struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Weekday string    `json:"weekday"`
	Holiday bool      `json:"holiday"`
	Items   []itemDTO `json:"items"`
}

type calendarResponse struct {
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Slots       []slotDTO `json:"slots"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Error       string    `json:"error,omitempty"`
}

type historyResponse struct {
	Items       []itemDTO `json:"items"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Error       string    `json:"error,omitempty"`
}

type sessionResponse struct {
	ID        model.ID          `json:"id,omitempty"`
	State     appointment.State `json:"state"`
	Form      appointment.Form  `json:"form"`
	CanDelete bool              `json:"can_delete"`
}

type analysisResponse struct {
	Total       int                  `json:"total"`
	Pending     int                  `json:"pending"`
	Completed   int                  `json:"completed"`
	ByStatus    map[model.Status]int `json:"by_status"`
	ByCategory  []view.Count         `json:"by_category"`
	ByMachine   []view.Count         `json:"by_machine"`
	ByMonth     []view.Count         `json:"by_month"`
	RefreshedAt time.Time            `json:"refreshed_at"`
	Error       string               `json:"error,omitempty"`
}

func toAnalysisResponse(snap view.AnalysisSnapshot) analysisResponse {
	return analysisResponse{
		Total:       snap.Total,
		Pending:     snap.ByStatus[model.StatusPending],
		Completed:   snap.ByStatus[model.StatusCompleted],
		ByStatus:    snap.ByStatus,
		ByCategory:  snap.ByCategory,
		ByMachine:   snap.ByMachine,
		ByMonth:     snap.ByMonth,
		RefreshedAt: snap.RefreshedAt,
		Error:       backend.Message(snap.Err),
	}
}

func toItemDTO(it calendar.Item) itemDTO {
	a := it.Appointment
	cats := it.Categories
	if cats == nil {
		cats = []string{}
	}
	return itemDTO{
		ID:           a.ID,
		TimeLabel:    it.TimeLabel,
		CustomerName: a.CustomerName,
		MachineModel: a.MachineModel,
		Location:     a.Location,
		Status:       a.Status,
		Completed:    it.Completed,
		StatusClass:  it.StatusClass,
		Categories:   cats,
		Visit:        a.Visit,
	}
}

func toCalendarResponse(g calendar.Grid, refreshed time.Time, err error) calendarResponse {
	resp := calendarResponse{
		Start:       g.Start.Format(model.DateKeyLayout),
		End:         g.End().Format(model.DateKeyLayout),
		Slots:       make([]slotDTO, 0, len(g.Slots)),
		RefreshedAt: refreshed,
		Error:       backend.Message(err),
	}
	for _, sl := range g.Slots {
		d := slotDTO{
			Key:     sl.Key,
			Label:   sl.Label,
			Weekday: sl.WeekdayLabel(),
			Holiday: sl.Holiday,
			Items:   make([]itemDTO, 0, len(sl.Items)),
		}
		for _, it := range sl.Items {
			d.Items = append(d.Items, toItemDTO(it))
		}
		resp.Slots = append(resp.Slots, d)
	}
	return resp
}

// handleCalendar refreshes the board and returns it. A failed refresh
// still answers 200 with the previous (or empty) board plus the error
// notification so the page can render.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	_ = s.deps.Board.Refresh(r.Context())
	snap := s.deps.Board.Snapshot()
	writeJSON(w, http.StatusOK, toCalendarResponse(snap.Grid, snap.RefreshedAt, snap.Err))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	switch status {
	case "", model.StatusPending, model.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending or completed")
		return
	}

	_ = s.deps.History.Refresh(r.Context())
	snap := s.deps.History.Snapshot(status)

	resp := historyResponse{
		Items:       make([]itemDTO, 0, len(snap.Items)),
		RefreshedAt: snap.RefreshedAt,
		Error:       backend.Message(snap.Err),
	}
	for _, it := range snap.Items {
		resp.Items = append(resp.Items, toItemDTO(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalysis answers 200 even when the service is down, like the
// calendar, carrying the last tally and the error notification.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	_ = s.deps.Analysis.Refresh(r.Context())
	writeJSON(w, http.StatusOK, toAnalysisResponse(s.deps.Analysis.Snapshot()))
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := s.deps.Now().In(s.deps.Location).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9999 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}

	days, err := s.deps.Holidays.Holidays(year, s.deps.Location)
	if err != nil {
		appLog.Error("holiday listing failed", err, "year", year)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(model.DateKeyLayout))
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "dates": out})
}

// handleForm returns the edit-form pre-fill for an existing appointment.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Editor.Open(r.Context(), model.ID(r.PathValue("id")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:        sess.ID,
		State:     sess.State(),
		Form:      sess.Form,
		CanDelete: roleOf(r) == RoleAdmin,
	})
}

func decodeForm(w http.ResponseWriter, r *http.Request) (appointment.Form, bool) {
	var f appointment.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return appointment.Form{}, false
	}
	return f, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeForm(w, r)
	if !ok {
		return
	}
	next, err := s.deps.Editor.Save(r.Context(), appointment.Session{Form: f})
	if err != nil {
		writeFailure(w, err)
		return
	}
	saved, _ := next.Record()
	writeJSON(w, http.StatusCreated, saved)
}

// handleUpdate replaces every form field of an existing appointment. The
// body is the complete form; a worker name completes the visit and an
// empty one reverts it to pending.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeForm(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Editor.Open(r.Context(), model.ID(r.PathValue("id")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess.Form = f
	next, err := s.deps.Editor.Save(r.Context(), sess)
	if err != nil {
		writeFailure(w, err)
		return
	}
	saved, _ := next.Record()
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	if roleOf(r) != RoleAdmin {
		appLog.Info("delete refused for non-admin", "id", id)
		writeError(w, http.StatusForbidden, "削除は管理者のみ可能です")
		return
	}
	confirmed := r.URL.Query().Get(ConfirmParam) == "yes"
	if !confirmed {
		appLog.Info("delete refused without confirmation", "id", id)
		writeError(w, http.StatusConflict, "削除するには確認が必要です")
		return
	}

	sess, err := s.deps.Editor.Open(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	deleted, err := s.deps.Editor.Delete(r.Context(), sess, appointment.ConfirmFunc(func(context.Context, appointment.Session) bool {
		return confirmed
	}))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": deleted})
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	appts, err := s.deps.Repo.List(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	now := s.deps.Now().In(s.deps.Location)
	grid := calendar.Build(now, nil)
	years := []int{grid.Start.Year()}
	if y := grid.End().Year(); y != years[0] {
		years = append(years, y)
	}

	body, err := ics.Export(appts, s.deps.Holidays, ics.Options{
		Location:     s.deps.Location,
		Now:          now,
		HolidayYears: years,
	})
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="repaircal.ics"`)
	_, _ = w.Write(body)
}
