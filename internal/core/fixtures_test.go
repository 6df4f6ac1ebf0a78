package core

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	documentOpen  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentClose = `</w:body></w:document>`
)

type zipEntry struct {
	name    string
	content string
}

// buildZip writes entries in order.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.content); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// paragraphXML renders one paragraph with each string in its own run.
func paragraphXML(runs ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, r := range runs {
		sb.WriteString(`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">`)
		xml.EscapeText(&sb, []byte(r))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// newDocx builds a minimal DOCX whose body holds the given paragraphs.
func newDocx(t *testing.T, paragraphs ...[]string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(paragraphXML(p...))
	}
	return buildZip(t,
		zipEntry{"[Content_Types].xml", contentTypesXML},
		zipEntry{"_rels/.rels", relsXML},
		zipEntry{"word/document.xml", documentOpen + body.String() + documentClose},
	)
}

// textDocx builds a DOCX with one single-run paragraph per line.
func textDocx(t *testing.T, lines ...string) []byte {
	t.Helper()
	paras := make([][]string, len(lines))
	for i, l := range lines {
		paras[i] = []string{l}
	}
	return newDocx(t, paras...)
}

// readZip returns entry names in order and their contents.
func readZip(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	contents := make(map[string][]byte)
	for _, f := range zr.File {
		b, err := readZipFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		contents[f.Name] = b
	}
	return names, contents
}

// documentText extracts the visible text of a DOCX, one line per paragraph.
func documentText(t *testing.T, docx []byte) string {
	t.Helper()
	_, parts := readZip(t, docx)
	doc, ok := parts[documentPart]
	if !ok {
		t.Fatalf("document has no %s", documentPart)
	}
	var lines []string
	for _, para := range scanParagraphs(doc) {
		text, _ := joinText(para)
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// newXLSX builds a workbook whose first sheet holds rows.
func newXLSX(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func record(kv ...any) RowRecord {
	rec := NewRowRecord(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Set(kv[i].(string), kv[i+1])
	}
	return rec
}
