package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/docmerge/internal/config"
	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/storage"
)

const documentXMLHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

func testConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, deps Deps, vars map[string]string) *Server {
	t.Helper()
	s := NewServer(deps, testConfig(t, vars))
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// docx builds a minimal Word document whose body is one paragraph per line.
func docx(t *testing.T, lines ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, line := range lines {
		body.WriteString(`<w:p><w:r><w:t>`)
		xml.EscapeText(&body, []byte(line))
		body.WriteString(`</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   documentXMLHead + body.String() + `</w:body></w:document>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, files []formFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(f.data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, s *Server, path string, files []formFile, fields map[string]string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, method, path string, headers ...string) *httptest.ResponseRecorder {
	return serve(s, method, path, nil, headers...)
}

func serve(s *Server, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

// archiveTexts maps each member of a ZIP to its text, reading document.xml
// out of nested DOCX members.
func archiveTexts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		content, _ := io.ReadAll(rc)
		rc.Close()
		if strings.HasSuffix(f.Name, ".docx") {
			out[f.Name] = documentXML(t, content)
			continue
		}
		out[f.Name] = string(content)
	}
	return out
}

func documentXML(t *testing.T, doc []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		t.Fatalf("document is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, _ := f.Open()
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return string(b)
		}
	}
	t.Fatal("document.xml missing")
	return ""
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return resp
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, Deps{}, nil)
	rec := get(s, http.MethodGet, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`name="template"`, `name="data"`, `value="square"`, `data-start="{{"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %s", want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP header not set")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff header not set")
	}
}

func TestHealthAndStatus(t *testing.T) {
	limiter := core.NewGenerationLimiter(3, time.Second)
	s := newTestServer(t, Deps{Limiter: limiter}, map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "secret",
	})

	if rec := get(s, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without a key", rec.Code)
	}
	if rec := get(s, http.MethodGet, "/api/status"); rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	rec := get(s, http.MethodGet, "/api/status", "X-API-Key", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Generations.MaxConcurrent != 3 || resp.Generations.Available != 3 {
		t.Errorf("generations = %+v", resp.Generations)
	}
	if resp.Storage != config.BackendMemory {
		t.Errorf("storage = %q", resp.Storage)
	}
}

func TestPresets(t *testing.T) {
	s := newTestServer(t, Deps{}, nil)
	rec := get(s, http.MethodGet, "/api/presets")

	var resp struct {
		Presets []core.Preset `json:"presets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Presets) != 4 || resp.Presets[0].Name != "curly" || resp.Presets[0].Start != "{{" {
		t.Errorf("presets = %+v", resp.Presets)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.allow("1.2.3.4"); got != want {
			t.Errorf("request %d allowed = %v, want %v", i+1, got, want)
		}
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other client should have its own budget")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.allow("1.2.3.4") {
		t.Error("budget should reset after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, Deps{}, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "1"})

	if rec := get(s, http.MethodGet, "/api/presets"); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := get(s, http.MethodGet, "/api/presets")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing input", core.ErrMissingInput, http.StatusBadRequest},
		{"data read", &core.Error{Kind: core.KindDataRead, Msg: "x"}, http.StatusUnprocessableEntity},
		{"template read", core.ErrTemplateRead, http.StatusUnprocessableEntity},
		{"empty archive", core.ErrEmptyArchive, http.StatusUnprocessableEntity},
		{"busy", core.ErrTooManyGenerations, http.StatusServiceUnavailable},
		{"blob missing", storage.ErrNotFound, http.StatusNotFound},
		{"blob too large", storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"file too large", errFileTooLarge, http.StatusRequestEntityTooLarge},
		{"body too large", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRespondError_JSONKind(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "cancelled generation",
			err:        &core.Error{Kind: core.KindUnexpected, Msg: "generation cancelled", Err: context.Canceled},
			wantStatus: http.StatusInternalServerError,
			wantKind:   "unexpected",
		},
		{
			name:       "unreadable data",
			err:        &core.Error{Kind: core.KindDataRead, Op: "read data", Msg: "invalid spreadsheet"},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "data_read",
		},
		{
			name:       "unclassified storage error",
			err:        storage.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantKind:   "",
		},
	}

	s := newTestServer(t, Deps{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
			rec := httptest.NewRecorder()

			s.respondError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp := decodeError(t, rec); resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
		})
	}
}
