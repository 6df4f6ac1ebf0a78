package core

// template.go holds the template store: an immutable source plus
// single-use render instances derived from it.
//
// A TemplateSource never changes after OpenTemplate returns. Each call to
// Instantiate re-reads the container from the source bytes and decompresses
// the text parts into buffers owned by the new instance, so substitutions made
// while rendering one row can never be observed by another. Binary parts
// (images, fonts, themes) are not decompressed; they are copied verbatim from
// the source when the instance is serialized.

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

const documentPart = "word/document.xml"

// textPartPatterns are the parts whose text takes part in substitution.
var textPartPatterns = []string{
	documentPart,
	"word/header*.xml",
	"word/footer*.xml",
	"word/footnotes.xml",
	"word/endnotes.xml",
}

// ErrInstanceUsed is returned when an instance is rendered a second time.
var ErrInstanceUsed = errors.New("template instance already rendered")

// TemplateSource is a validated, immutable document template.
type TemplateSource struct {
	source    []byte
	textParts []string
	ext       string
}

// OpenTemplate validates a DOCX container and returns its immutable source.
// The input slice is copied; callers may reuse it.
func OpenTemplate(data []byte) (*TemplateSource, error) {
	if len(data) == 0 {
		return nil, templateReadError("empty template", nil)
	}

	src := &TemplateSource{source: bytes.Clone(data), ext: "docx"}

	zr, err := zip.NewReader(bytes.NewReader(src.source), int64(len(src.source)))
	if err != nil {
		return nil, templateReadError("invalid template container", err)
	}

	hasDocument := false
	for _, f := range zr.File {
		if !isTextPart(f.Name) {
			if f.Name == "[Content_Types].xml" {
				if ct, err := readZipFile(f); err == nil && bytes.Contains(ct, []byte("macroEnabled")) {
					src.ext = "docm"
				}
			}
			continue
		}
		if f.Name == documentPart {
			hasDocument = true
		}

		content, err := readZipFile(f)
		if err != nil {
			return nil, templateReadError(fmt.Sprintf("invalid template container: read %s", f.Name), err)
		}
		if err := checkWellFormed(content); err != nil {
			return nil, templateReadError(fmt.Sprintf("malformed XML in %s", f.Name), err)
		}
		src.textParts = append(src.textParts, f.Name)
	}

	if !hasDocument {
		return nil, templateReadError("invalid template container: missing "+documentPart, nil)
	}
	return src, nil
}

// Extension is the file extension of documents rendered from this template.
func (s *TemplateSource) Extension() string {
	return s.ext
}

// TextParts lists the parts that take part in substitution, in container order.
func (s *TemplateSource) TextParts() []string {
	out := make([]string, len(s.textParts))
	copy(out, s.textParts)
	return out
}

// Check scans every text part for placeholders that open but never close.
// The result depends only on the template and the delimiters, so it is
// evaluated once per request rather than once per row.
func (s *TemplateSource) Check(d Delimiters) error {
	inst, err := s.Instantiate()
	if err != nil {
		return err
	}
	for _, name := range inst.order {
		if err := checkPlaceholders(inst.parts[name], d); err != nil {
			return templateReadError(fmt.Sprintf("placeholder syntax error in %s", name), err)
		}
	}
	return nil
}

// Instantiate returns a fresh instance whose text parts are private copies.
func (s *TemplateSource) Instantiate() (*TemplateInstance, error) {
	zr, err := zip.NewReader(bytes.NewReader(s.source), int64(len(s.source)))
	if err != nil {
		return nil, templateReadError("invalid template container", err)
	}

	inst := &TemplateInstance{
		files: zr.File,
		parts: make(map[string][]byte, len(s.textParts)),
		order: s.textParts,
	}
	for _, f := range zr.File {
		if !isTextPart(f.Name) {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, templateReadError(fmt.Sprintf("invalid template container: read %s", f.Name), err)
		}
		inst.parts[f.Name] = content
	}
	return inst, nil
}

// TemplateInstance is a single-use render context.
type TemplateInstance struct {
	files    []*zip.File
	parts    map[string][]byte
	order    []string
	rendered bool
}

// Render substitutes placeholders in every text part using lookup and returns
// the serialized document. Keys that lookup cannot resolve are collected and
// returned together in a *MissingKeysError.
func (t *TemplateInstance) Render(d Delimiters, lookup func(name string) (string, bool)) ([]byte, error) {
	if t.rendered {
		return nil, ErrInstanceUsed
	}
	t.rendered = true

	var missing []string
	seen := make(map[string]bool)
	for _, name := range t.order {
		out, miss, err := substitute(t.parts[name], d, lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, k := range miss {
			if !seen[k] {
				seen[k] = true
				missing = append(missing, k)
			}
		}
		t.parts[name] = out
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Keys: missing, Delimiters: d}
	}

	return t.serialize()
}

// serialize writes the container back out, replacing text parts with their
// rendered content and copying every other entry unchanged.
func (t *TemplateInstance) serialize() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range t.files {
		content, isText := t.parts[f.Name]
		if !isText {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}
	return buf.Bytes(), nil
}

// MissingKeysError lists placeholders whose names are absent from the row.
type MissingKeysError struct {
	Keys       []string
	Delimiters Delimiters
}

func (e *MissingKeysError) Error() string {
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = e.Delimiters.Wrap(k)
	}
	noun := "placeholder"
	if len(e.Keys) > 1 {
		noun = "placeholders"
	}
	return fmt.Sprintf("no data for %s %s", noun, strings.Join(quoted, ", "))
}

func isTextPart(name string) bool {
	for _, pattern := range textPartPatterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
