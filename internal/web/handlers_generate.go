package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
)

// formMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const formMemory = 32 << 20

// Form field names. The second name of each pair is accepted as an alias.
var (
	templateFields = []string{"template", "word"}
	dataFields     = []string{"data", "excel"}
	startFields    = []string{"prefix", "start"}
	endFields      = []string{"suffix", "end"}
)

// handleGenerate merges an uploaded (or stored) spreadsheet into an uploaded
// (or stored) template and streams back the archive.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Two files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.Upload.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(formMemory); err != nil {
		s.respondError(w, r, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := core.GenerateRequest{UnwrapSingle: s.cfg.Render.UnwrapSingle}

	tmpl, _, err := s.loadInput(r, templateFields, "template_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, dataName, err := s.loadInput(r, dataFields, "data_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req.Template, req.Data, req.DataName = tmpl, data, dataName

	if req.Delimiters, err = s.resolveDelimiters(r.MultipartForm); err != nil {
		s.respondError(w, r, err)
		return
	}
	if v := formValue(r.MultipartForm, "unwrap_single"); v != "" {
		req.UnwrapSingle, _ = strconv.ParseBool(v)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	result, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("documents generated",
		"rows", result.Rows,
		"failed", result.Failed,
		"bytes", len(result.Body),
	)

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))
	w.Header().Set("X-Rows-Total", strconv.Itoa(result.Rows))
	w.Header().Set("X-Rows-Failed", strconv.Itoa(result.Failed))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

// loadInput returns the bytes of the first uploaded file among fields, or of
// the stored blob named by idField. A request with neither yields nil bytes,
// which the generator reports as missing input.
func (s *Server) loadInput(r *http.Request, fields []string, idField string) ([]byte, string, error) {
	for _, name := range fields {
		files := r.MultipartForm.File[name]
		if len(files) == 0 {
			continue
		}
		data, err := s.readFormFile(files[0])
		if err != nil {
			return nil, "", err
		}
		return data, files[0].Filename, nil
	}

	if id := formValue(r.MultipartForm, idField); id != "" {
		blob, err := s.store.Get(r.Context(), id)
		if err != nil {
			return nil, "", fmt.Errorf("load %s %s: %w", idField, id, err)
		}
		return blob.Data, blob.Meta.OriginalName, nil
	}
	return nil, "", nil
}

func (s *Server) readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.cfg.Upload.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", fh.Filename, errFileTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.Upload.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > s.cfg.Upload.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", fh.Filename, errFileTooLarge)
	}
	return data, nil
}

// resolveDelimiters picks the delimiter pair: a named preset wins, otherwise
// prefix and suffix each default to the curly-brace form independently.
func (s *Server) resolveDelimiters(form *multipart.Form) (core.Delimiters, error) {
	if name := formValue(form, "preset"); name != "" {
		d, ok := s.presets.Lookup(name)
		if !ok {
			return core.Delimiters{}, &core.Error{
				Kind: core.KindMissingInput,
				Op:   "validate",
				Msg:  fmt.Sprintf("unknown placeholder preset %q", name),
			}
		}
		return d, nil
	}

	d := core.DefaultDelimiters
	if v := formValue(form, startFields...); v != "" {
		d.Start = v
	}
	if v := formValue(form, endFields...); v != "" {
		d.End = v
	}
	return d, nil
}

// formValue returns the first non-empty value among names.
func formValue(form *multipart.Form, names ...string) string {
	for _, name := range names {
		if vs := form.Value[name]; len(vs) > 0 {
			if v := strings.TrimSpace(vs[0]); v != "" {
				return v
			}
		}
	}
	return ""
}

// formError classifies a multipart parse failure.
func formError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return fmt.Errorf("request body too large: %w", err)
	}
	return &core.Error{
		Kind: core.KindMissingInput,
		Op:   "validate",
		Msg:  "expected a multipart form with a template and a data file",
		Err:  err,
	}
}
