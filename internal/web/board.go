package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"repaircal/internal/calendar"
	appLog "repaircal/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var boardTemplate = template.Must(
	template.New("calendar.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/calendar.html"),
)

var analysisTemplate = template.Must(
	template.New("analysis.html").ParseFS(templateFS, "templates/analysis.html"),
)

type boardPage struct {
	calendarResponse
	Weekdays []string
}

// handleBoard renders the board as HTML. The root element carries
// data-ready="true" once the page is complete, which the snapshot capture
// waits for.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	_ = s.deps.Board.Refresh(r.Context())
	snap := s.deps.Board.Snapshot()

	page := boardPage{
		calendarResponse: toCalendarResponse(snap.Grid, snap.RefreshedAt, snap.Err),
		Weekdays:         calendar.Weekdays[:],
	}

	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, page); err != nil {
		appLog.Error("board template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleAnalysisPage renders the tallies as HTML tables.
func (s *Server) handleAnalysisPage(w http.ResponseWriter, r *http.Request) {
	_ = s.deps.Analysis.Refresh(r.Context())
	page := toAnalysisResponse(s.deps.Analysis.Snapshot())

	var buf bytes.Buffer
	if err := analysisTemplate.Execute(&buf, page); err != nil {
		appLog.Error("analysis template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
