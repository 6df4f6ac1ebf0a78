package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/storage"
)

// FileResponse describes a stored file.
type FileResponse struct {
	ID   string       `json:"id"`
	Meta storage.Meta `json:"meta"`
}

// handleUploadFile stores the "file" form field and returns its ID, which
// generation requests may pass as template_id or data_id.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(formMemory); err != nil {
		s.respondError(w, r, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		s.respondError(w, r, &core.Error{Kind: core.KindMissingInput, Op: "validate", Msg: "a file is required"})
		return
	}
	fh := files[0]

	data, err := s.readFormFile(fh)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	id, err := s.store.Put(r.Context(), storage.Blob{
		Data: data,
		Meta: storage.Meta{OriginalName: fh.Filename, ContentType: contentType},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	blob, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("file stored",
		"blob_id", id,
		"name", fh.Filename,
		"size", blob.Meta.Size,
	)
	writeJSON(w, http.StatusCreated, FileResponse{ID: id, Meta: blob.Meta})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	blob, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	name := blob.Meta.OriginalName
	if name == "" {
		name = id
	}
	w.Header().Set("Content-Type", blob.Meta.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Write(blob.Data)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("file deleted", "blob_id", id)
	w.WriteHeader(http.StatusNoContent)
}
