package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/go-chi/chi/v5"
)

// CacheListResponse is a page of stored caches.
type CacheListResponse struct {
	ListID int              `json:"listId,omitempty"`
	Total  int              `json:"total"`
	Caches []geocache.Cache `json:"caches"`
}

// handleListCaches lists stored caches, optionally filtered by list_id.
func (s *Server) handleListCaches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	listID := 0
	if raw := q.Get("list_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.badRequest(w, r, "invalid list_id")
			return
		}
		listID = n
	}

	limit := store.ListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.badRequest(w, r, "invalid limit")
			return
		}
		limit = n
	}

	ctx := r.Context()
	caches, err := s.store.ListCaches(ctx, listID, limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	total, err := s.store.CountCaches(ctx, listID)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if caches == nil {
		caches = []geocache.Cache{}
	}

	writeJSON(w, CacheListResponse{ListID: listID, Total: total, Caches: caches})
}

// handleGetCache returns one cache with its waypoints.
func (s *Server) handleGetCache(w http.ResponseWriter, r *http.Request) {
	geocode := geocache.NormalizeGeocode(chi.URLParam(r, "geocode"))

	c, err := s.store.GetCache(r.Context(), geocode)
	if err != nil {
		s.respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}
	writeJSON(w, c)
}
