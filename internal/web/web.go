package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"repaircal/internal/appointment"
	"repaircal/internal/backend"
	"repaircal/internal/config"
	"repaircal/internal/holiday"
	appLog "repaircal/internal/log"
	"repaircal/internal/view"
)

// Deps are the collaborators the HTTP layer drives. The board and history
// views are expected to be mounted into the editor's view registry.
type Deps struct {
	Repo     appointment.Repository
	Editor   *appointment.Editor
	Board    *view.Calendar
	History  *view.History
	// Analysis defaults to a view over Repo when nil.
	Analysis *view.Analysis
	Holidays *holiday.Determiner
	Location *time.Location
	// Now supplies "today"; nil means time.Now.
	Now func() time.Time
}

// Server provides the HTML board and the JSON API used by the edit form.
type Server struct {
	cfg   *config.Config
	deps  Deps
	debug bool
	mux   *http.ServeMux

	limiters *limiterStore
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps, debug bool) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Holidays == nil {
		deps.Holidays = holiday.Default()
	}
	if deps.Analysis == nil {
		deps.Analysis = view.NewAnalysis(deps.Repo, deps.Now)
	}
	s := &Server{
		cfg:   cfg,
		deps:  deps,
		debug: debug,
		mux:   http.NewServeMux(),
	}
	if cfg != nil && cfg.RateLimit.PerMinute > 0 {
		s.limiters = newLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := requestLogger(s.mux)
	if s.limiters != nil {
		h = rateLimit(s.limiters, h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
// Incomplete credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil {
		return false
	}
	return s.cfg.BasicAuth.Complete() || s.cfg.UserAuth.Complete()
}

// Role is what an authenticated caller may do.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type roleKey struct{}

// roleOf returns the caller's role. Requests that passed no auth check
// (auth disabled) act as admin.
func roleOf(r *http.Request) Role {
	if v, ok := r.Context().Value(roleKey{}).(Role); ok {
		return v
	}
	return RoleAdmin
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth
// and records the matched credential's role on the request context.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	type credential struct {
		username, password string
		role               Role
	}
	var creds []credential
	if a := s.cfg.BasicAuth; a.Complete() {
		creds = append(creds, credential{a.Username, a.Password, RoleAdmin})
	}
	if u := s.cfg.UserAuth; u.Complete() {
		creds = append(creds, credential{u.Username, u.Password, RoleUser})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if ok {
			for _, c := range creds {
				if secureCompare(u, c.username) && secureCompare(p, c.password) {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, c.role)))
					return
				}
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="RepairCal", charset="UTF-8"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start).String())
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("GET /api/analysis", s.handleAnalysis)

	s.mux.HandleFunc("GET /api/appointments/{id}/form", s.handleForm)
	s.mux.HandleFunc("POST /api/appointments", s.handleCreate)
	s.mux.HandleFunc("PATCH /api/appointments/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/appointments/{id}", s.handleDelete)

	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /calendar", s.handleBoard)
	s.mux.HandleFunc("GET /analysis", s.handleAnalysisPage)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeFailure maps editor and repository errors onto one notification.
func writeFailure(w http.ResponseWriter, err error) {
	var fe *appointment.FormError
	switch {
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fe.Error())
	case errors.Is(err, appointment.ErrDraftDelete):
		writeError(w, http.StatusBadRequest, err.Error())
	case backend.IsValidation(err):
		writeError(w, http.StatusBadRequest, backend.Message(err))
	case backend.IsNotFound(err):
		writeError(w, http.StatusNotFound, backend.Message(err))
	case backend.IsNetwork(err), backend.IsServer(err):
		writeError(w, http.StatusBadGateway, backend.Message(err))
	default:
		appLog.Error("unexpected handler error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
