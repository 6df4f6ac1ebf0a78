package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RowRecord is one data row keyed by column name. Keys keep the column order
// of the source sheet. Blank cells are absent, not empty strings.
type RowRecord struct {
	keys   []string
	values map[string]any
}

// NewRowRecord creates an empty record with room for n columns.
func NewRowRecord(n int) RowRecord {
	return RowRecord{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores a value. Setting an existing key keeps its position.
func (r *RowRecord) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key and whether it is present.
func (r RowRecord) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in source order.
func (r RowRecord) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of populated columns.
func (r RowRecord) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the record as an object with keys in column order.
// Dates are written in their display form.
func (r RowRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		v := r.values[k]
		if t, ok := v.(time.Time); ok {
			v = FormatValue(t)
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Delimiters defines placeholder syntax: Start + name + End.
type Delimiters struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// DefaultDelimiters is the curly-brace syntax used when a request names none.
var DefaultDelimiters = Delimiters{Start: "{{", End: "}}"}

// Validate checks that both delimiters are present.
func (d Delimiters) Validate() error {
	if strings.TrimSpace(d.Start) == "" {
		return missingInput("placeholder start delimiter is required")
	}
	if strings.TrimSpace(d.End) == "" {
		return missingInput("placeholder end delimiter is required")
	}
	return nil
}

// Wrap returns the placeholder text for name.
func (d Delimiters) Wrap(name string) string {
	return d.Start + name + d.End
}

// RenderResult is the outcome of rendering one row. Exactly one of Document
// and Err is set.
type RenderResult struct {
	Index    int
	Document []byte
	Err      *RowError
	Row      RowRecord
}

// OK reports whether the row rendered.
func (r RenderResult) OK() bool {
	return r.Err == nil
}

// ArchiveMember describes one entry written to the output archive.
type ArchiveMember struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Failed bool   `json:"failed"`
}

// GenerateRequest carries the inputs of one generation.
type GenerateRequest struct {
	Template   []byte
	Data       []byte
	DataName   string // used for format detection, e.g. "people.csv"
	Delimiters Delimiters

	// UnwrapSingle returns the bare document instead of an archive when the
	// source holds exactly one row and that row rendered.
	UnwrapSingle bool
}

// GenerateResult is the deliverable of a successful generation.
type GenerateResult struct {
	Body        []byte
	ContentType string
	FileName    string
	Rows        int
	Failed      int
	Members     []ArchiveMember
}

// Content types served for generated output.
const (
	ContentTypeZip  = "application/zip"
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
