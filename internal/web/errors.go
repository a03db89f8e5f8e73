package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via importer.MapError to a title, action and code
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered as JSON for API routes, plain text otherwise

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errorResponse builds the client view of err. The technical text is only
// included when it is safe to show.
func errorResponse(err error) ErrorResponse {
	msg := importer.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Title,
		Message: msg.Title,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var ie *importer.ImportError
	switch {
	case errors.As(err, &ie):
		resp.Message = ie.Message()
	case importer.IsUserFacing(err):
		resp.Message = err.Error()
	}
	return resp
}

// statusFor picks the HTTP status for errors returned by the pool and store.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, importer.ErrTooManyImports), errors.Is(err, importer.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, importer.ErrJobNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrInvalidPath):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

// respondError logs the technical error server-side and returns a
// user-friendly response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	resp := errorResponse(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", resp.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if wantsJSON(r) {
		writeJSONStatus(w, statusCode, resp)
		return
	}
	http.Error(w, resp.Message+" ("+resp.Code+")", statusCode)
}

// badRequest reports a malformed request that never reached the importer.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "reason", message)
	resp := ErrorResponse{Error: "Bad request", Message: message, Code: "REQ400"}
	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusBadRequest, resp)
		return
	}
	http.Error(w, message, http.StatusBadRequest)
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}

	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
