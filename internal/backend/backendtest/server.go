// Package backendtest provides an in-memory stand-in for the appointment
// persistence service, speaking the same HTTP/JSON contract.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Record is a stored appointment in the service's JSON shape.
type Record struct {
	ID              int     `json:"id"`
	CustomerName    string  `json:"customer_name"`
	ContactPerson   string  `json:"contact_person"`
	PhoneNumber     string  `json:"phone_number"`
	MachineModel    string  `json:"machine_model"`
	SerialNumber    string  `json:"serial_number"`
	AppointmentDate string  `json:"appointment_date"`
	Location        string  `json:"location"`
	IsOwnLease      bool    `json:"is_own_lease"`
	LeaseLocation   string  `json:"lease_location"`
	FailureSymptoms string  `json:"failure_symptoms"`
	CauseCategories string  `json:"cause_categories"`
	ReceivedBy      string  `json:"received_by"`
	Status          string  `json:"status"`
	WorkerName      string  `json:"worker_name"`
	CompletionNotes string  `json:"completion_notes"`
	CompletedAt     *string `json:"completed_at"`
	CreatedAt       string  `json:"created_at"`
}

type failure struct {
	status int
	body   string
}

// Server is an httptest-backed fake. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	nextID  int
	records map[int]Record
	calls   map[string]int
	bodies  []map[string]any
	fail    *failure
}

// NewServer starts a fake service. Call Close when done.
func NewServer() *Server {
	s := &Server{
		nextID:  1,
		records: make(map[int]Record),
		calls:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /appointments", s.handleList)
	mux.HandleFunc("POST /appointments", s.handleCreate)
	mux.HandleFunc("PATCH /appointments/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /appointments/{id}", s.handleDelete)

	s.Server = httptest.NewServer(s.count(mux))
	return s
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method]++
		f := s.fail
		s.fail = nil
		s.mu.Unlock()

		if f != nil {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Seed stores records as-is (ids are assigned) and returns their ids.
func (s *Server) Seed(recs ...Record) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(recs))
	for _, r := range recs {
		r.ID = s.nextID
		s.nextID++
		if r.Status == "" {
			r.Status = "pending"
		}
		s.records[r.ID] = r
		ids = append(ids, r.ID)
	}
	return ids
}

// Get returns a stored record.
func (s *Server) Get(id int) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// Len is the number of stored records.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Calls returns how many requests with the given HTTP method were served.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// LastBody is the decoded JSON body of the most recent POST or PATCH.
func (s *Server) LastBody() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		return nil
	}
	return s.bodies[len(s.bodies)-1]
}

// FailNext makes the next request (any method) answer with status and body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = &failure{status: status, body: body}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, raw, ok := decode(w, r)
	if !ok {
		return
	}
	if msg := validate(rec); msg != nil {
		writeJSON(w, http.StatusUnprocessableEntity, msg)
		return
	}

	s.mu.Lock()
	s.bodies = append(s.bodies, raw)
	rec.ID = s.nextID
	s.nextID++
	if rec.Status == "" {
		rec.Status = "pending"
	}
	rec.CreatedAt = "2026-01-01T00:00:00"
	s.records[rec.ID] = rec
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}

	s.mu.Lock()
	existing, found := s.records[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}

	rec, raw, ok := decode(w, r)
	if !ok {
		return
	}
	if msg := validate(rec); msg != nil {
		writeJSON(w, http.StatusUnprocessableEntity, msg)
		return
	}

	rec.ID = id
	rec.CreatedAt = existing.CreatedAt

	s.mu.Lock()
	s.bodies = append(s.bodies, raw)
	s.records[id] = rec
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))

	s.mu.Lock()
	_, found := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decode(w http.ResponseWriter, r *http.Request) (Record, map[string]any, bool) {
	var buf json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&buf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return Record{}, nil, false
	}
	var rec Record
	var raw map[string]any
	if json.Unmarshal(buf, &rec) != nil || json.Unmarshal(buf, &raw) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return Record{}, nil, false
	}
	return rec, raw, true
}

// validate mimics FastAPI's 422 list-form detail.
func validate(rec Record) map[string]any {
	type item struct {
		Loc  []string `json:"loc"`
		Msg  string   `json:"msg"`
		Type string   `json:"type"`
	}
	var items []item
	if strings.TrimSpace(rec.CustomerName) == "" {
		items = append(items, item{Loc: []string{"body", "customer_name"}, Msg: "field required", Type: "value_error.missing"})
	}
	if strings.TrimSpace(rec.MachineModel) == "" {
		items = append(items, item{Loc: []string{"body", "machine_model"}, Msg: "field required", Type: "value_error.missing"})
	}
	if !strings.Contains(rec.AppointmentDate, "T") {
		items = append(items, item{Loc: []string{"body", "appointment_date"}, Msg: "invalid datetime format", Type: "value_error.datetime"})
	}
	if len(items) == 0 {
		return nil
	}
	return map[string]any{"detail": items}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
