package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/go-chi/chi/v5"
)

// admissionTimeout bounds how long a request waits for a free import slot
// on top of the limiter's own wait.
const admissionTimeout = time.Minute

// SubmitResponse is returned when an import is accepted.
type SubmitResponse struct {
	JobID    string `json:"jobId"`
	Source   string `json:"source"`
	ListID   int    `json:"listId"`
	Progress string `json:"progressUrl"`
	Result   string `json:"resultUrl"`
}

// ImportResponse is the outcome of a finished import.
type ImportResponse struct {
	JobID   string            `json:"jobId"`
	Status  string            `json:"status"`
	Summary *importer.Summary `json:"summary,omitempty"`
	Error   *ErrorResponse    `json:"error,omitempty"`
}

// pathRequest asks the server to import a file from its import directory.
type pathRequest struct {
	Path   string `json:"path"`
	ListID int    `json:"list_id"`
}

// progressEvent is the SSE payload: the job event plus its percentage.
type progressEvent struct {
	importer.Event
	Percent int `json:"percent"`
}

// handleUpload imports a GPX or LOC file sent as multipart form data.
// The body is held in memory so the parser can reopen it for the GPX 1.1
// retry.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.badRequest(w, r, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, r, "no file provided")
		return
	}
	defer file.Close()

	listID, err := s.listID(r.FormValue("list_id"))
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.badRequest(w, r, "could not read uploaded file")
		return
	}

	name := filepath.Base(header.Filename)
	job := importer.NewAttachmentJob(name, importer.BytesOpener(data), listID)
	s.submit(w, r, job)
}

// handleImportPath imports a file that already lies in the import directory.
func (s *Server) handleImportPath(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid JSON body")
		return
	}

	path, err := s.resolveImportPath(req.Path)
	if err != nil {
		s.respondError(w, r, err, statusFor(err, http.StatusBadRequest))
		return
	}

	listID := req.ListID
	if listID <= 0 {
		listID = s.cfg.Import.DefaultListID
	}

	s.submit(w, r, importer.NewFileJob(path, listID))
}

// resolveImportPath maps a client path onto the import directory. Absolute
// paths and paths escaping the directory, including through symlinks, are
// rejected. A missing file resolves so the job reports it as a read error.
func (s *Server) resolveImportPath(rel string) (string, error) {
	dir := s.cfg.Import.Dir
	if dir == "" {
		return "", fmt.Errorf("%w: server has no import directory", importer.ErrInvalidPath)
	}
	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", importer.ErrInvalidPath, rel)
	}
	path := filepath.Join(dir, rel)

	target, err := filepath.EvalSymlinks(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", importer.ErrInvalidPath, rel, err)
	}
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("%w: import directory: %v", importer.ErrInvalidPath, err)
	}
	if inside, err := filepath.Rel(root, target); err != nil || !filepath.IsLocal(inside) {
		return "", fmt.Errorf("%w: %q leaves the import directory", importer.ErrInvalidPath, rel)
	}
	return path, nil
}

func (s *Server) listID(raw string) (int, error) {
	if raw == "" {
		return s.cfg.Import.DefaultListID, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid list_id %q", raw)
	}
	return id, nil
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, job *importer.Job) {
	ctx, cancel := context.WithTimeout(r.Context(), admissionTimeout)
	defer cancel()

	fut, err := s.pool.Submit(ctx, job)
	if err != nil {
		s.respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	logging.FromContext(r.Context()).Info("import submitted",
		"job_id", fut.JobID,
		"source", job.SourceName(),
		"kind", job.Kind.String(),
		"list_id", job.ListID,
	)

	writeJSONStatus(w, http.StatusAccepted, SubmitResponse{
		JobID:    fut.JobID,
		Source:   job.SourceName(),
		ListID:   job.ListID,
		Progress: "/api/imports/" + fut.JobID + "/progress",
		Result:   "/api/imports/" + fut.JobID + "/result",
	})
}

// handleImportStatus reports pool occupancy.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pool.Status())
}

// handleImportHistory lists finished imports, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.badRequest(w, r, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := s.store.RecentImports(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []store.ImportRecord{}
	}
	writeJSON(w, recs)
}

// handleImportProgress streams job events via Server-Sent Events. The
// stream ends with a "complete" event once the job has finished.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	events, unsubscribe, err := s.pool.Subscribe(jobID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	seq := 0
	for {
		select {
		case e, ok := <-events:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			seq++
			data, _ := json.Marshal(progressEvent{Event: e, Percent: e.Percent()})
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult blocks until the job finishes and returns its outcome.
// A failed import is still a successful lookup, so it is reported with
// status 200 and an error block.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	summary, err := s.pool.Result(ctx, jobID)
	switch {
	case err == nil:
		writeJSON(w, ImportResponse{JobID: jobID, Status: store.StatusFinished, Summary: &summary})
	case errors.Is(err, importer.ErrJobNotFound):
		s.respondError(w, r, err, http.StatusNotFound)
	case ctx.Err() != nil:
		s.respondError(w, r, err, http.StatusGatewayTimeout)
	default:
		resp := errorResponse(err)
		writeJSON(w, ImportResponse{JobID: jobID, Status: store.StatusFailed, Error: &resp})
	}
}
