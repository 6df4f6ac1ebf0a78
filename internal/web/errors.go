package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request ID; the client receives the mapped user message,
// as JSON for API callers, as an alert fragment for HTMX, or as plain text.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/storage"
	"github.com/JonMunkholm/docmerge/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errFileTooLarge is returned when one uploaded file exceeds the size limit.
var errFileTooLarge = errors.New("uploaded file too large")

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrTooManyGenerations):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes),
		errors.Is(err, errFileTooLarge),
		errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}

	switch core.KindOf(err) {
	case core.KindMissingInput:
		return http.StatusBadRequest
	case core.KindDataRead, core.KindTemplateRead, core.KindEmptyArchive:
		return http.StatusUnprocessableEntity
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		respondErrorJSON(w, err, userMsg, status)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
	}
}

func respondErrorJSON(w http.ResponseWriter, err error, msg core.UserMessage, status int) {
	detail := core.Detail(err)
	if detail == "" {
		detail = msg.Message
	}

	resp := ErrorResponse{
		Error:   detail,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		resp.Kind = string(ce.Kind)
	}
	writeJSON(w, status, resp)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
