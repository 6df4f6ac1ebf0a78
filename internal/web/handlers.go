package web

import (
	"net/http"

	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/web/templates"
)

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.IndexPage(templates.PageData{
		Presets:     s.presets.List(),
		MaxFileSize: s.cfg.Upload.MaxFileSize,
	}).Render(r.Context(), w)
	if err != nil {
		logging.FromContext(r.Context()).Error("render index page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse reports generation capacity.
type StatusResponse struct {
	Generations core.LimiterStatus `json:"generations"`
	Storage     string             `json:"storage"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Generations: s.limiter.Status(),
		Storage:     s.cfg.Storage.Backend,
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": s.presets.List()})
}
