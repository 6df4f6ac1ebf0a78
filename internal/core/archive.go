package core

// archive.go assembles rendered rows into the output ZIP.
//
// Members are named by 1-based row number: document_N.<ext> for a rendered
// row and error_document_N.txt for a failed one. Members are written in row
// order regardless of the order rows finished rendering.

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Assembler builds the output archive. It is not safe for concurrent use.
type Assembler struct {
	ext      string
	modified time.Time

	buf       bytes.Buffer
	zw        *zip.Writer
	members   []ArchiveMember
	succeeded int
	closed    bool
}

// NewAssembler starts an archive whose documents use extension ext.
// modified is stamped on every entry.
func NewAssembler(ext string, modified time.Time) *Assembler {
	if ext == "" {
		ext = "docx"
	}
	a := &Assembler{ext: ext, modified: modified}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

// Add writes one row outcome to the archive.
func (a *Assembler) Add(res RenderResult) error {
	if a.closed {
		return fmt.Errorf("add row %d: archive already finalized", res.Index+1)
	}

	name := DocumentName(res.Index, a.ext)
	content := res.Document
	if !res.OK() {
		name = FailureName(res.Index)
		content = []byte(FailureText(res))
	}

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modified,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	a.members = append(a.members, ArchiveMember{Name: name, Size: len(content), Failed: !res.OK()})
	if res.OK() {
		a.succeeded++
	}
	return nil
}

// Members lists the entries written so far.
func (a *Assembler) Members() []ArchiveMember {
	out := make([]ArchiveMember, len(a.members))
	copy(out, a.members)
	return out
}

// Finalize closes the archive and returns its bytes. An archive with no
// rendered document is an error even if failure notes were written.
func (a *Assembler) Finalize() ([]byte, error) {
	if a.closed {
		return nil, fmt.Errorf("archive already finalized")
	}
	a.closed = true

	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if a.succeeded == 0 {
		msg := "no documents were generated"
		if len(a.members) > 0 {
			msg = fmt.Sprintf("no documents were generated, all %d rows failed", len(a.members))
		}
		return nil, newError(KindEmptyArchive, "assemble", msg, nil)
	}
	return a.buf.Bytes(), nil
}

// DocumentName is the archive member name for a rendered row.
func DocumentName(index int, ext string) string {
	return fmt.Sprintf("document_%d.%s", index+1, ext)
}

// FailureName is the archive member name for a failed row.
func FailureName(index int) string {
	return fmt.Sprintf("error_document_%d.txt", index+1)
}

// FailureText describes a failed row along with a JSON snapshot of its data.
func FailureText(res RenderResult) string {
	msg := "unknown error"
	if res.Err != nil {
		msg = res.Err.Message
	}
	data, err := json.Marshal(res.Row)
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("Failed to generate document for row %d. Error: %s\nData: %s", res.Index+1, msg, data)
}
