package web

import (
	"net/http"

	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/JonMunkholm/geoimport/internal/web/pages"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// render writes an HTML page. Errors after the first byte can only be logged.
func (s *Server) render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.Layout(title, body).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	history, err := s.store.RecentImports(ctx, store.DefaultHistoryLimit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	count, err := s.store.CountCaches(ctx, 0)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.render(w, r, "Geocache import", pages.Index(pages.IndexData{
		Status:        s.pool.Status(),
		History:       history,
		Caches:        count,
		DefaultListID: s.cfg.Import.DefaultListID,
	}))
}

func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	last, err := s.pool.Snapshot(jobID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}
	s.render(w, r, "Import "+jobID, pages.ImportProgress(jobID, last))
}
