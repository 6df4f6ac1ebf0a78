package core

// tabular.go turns an uploaded spreadsheet into ordered row records.
//
// XLSX workbooks are read with excelize; only the first sheet is used. CSV
// files go through the same hygiene the upload path has always applied: the
// UTF-8 BOM is dropped and invalid byte sequences become U+FFFD.
//
// The first row is the header. Header cells become record keys; an empty
// header is named __EMPTY (then __EMPTY_1, ...) and a repeated header gets a
// numeric suffix (Name, Name_1, ...). Blank cells are left out of the record
// and rows with no populated cell are skipped.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isoLayouts are accepted for cells stored with the ISO 8601 date type.
var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ReadRows parses a spreadsheet into records. name is only used to pick the
// format and may be empty; ZIP content is always treated as XLSX.
func ReadRows(data []byte, name string) ([]RowRecord, error) {
	if len(data) == 0 {
		return nil, dataReadError("empty file", nil)
	}

	ext := strings.ToLower(filepath.Ext(name))
	isZip := bytes.HasPrefix(data, zipMagic)
	if bytes.HasPrefix(data, oleMagic) || (ext == ".xls" && !isZip) {
		return nil, dataReadError("legacy .xls workbooks are not supported, save the file as .xlsx", nil)
	}
	if (ext == ".xlsx" || ext == ".xlsm") && !isZip {
		return nil, dataReadError("invalid spreadsheet", nil)
	}

	var (
		rows []RowRecord
		err  error
	)
	if isZip && ext != ".csv" {
		rows, err = readWorkbook(data)
	} else {
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, dataReadError("no data rows found in the first sheet", nil)
	}
	return rows, nil
}

// readWorkbook reads the first worksheet of an XLSX workbook.
func readWorkbook(data []byte) ([]RowRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, dataReadError("invalid spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, dataReadError("invalid spreadsheet: workbook has no sheets", nil)
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, dataReadError(fmt.Sprintf("invalid spreadsheet: read sheet %q", sheet), err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	cells := &cellTyper{file: f, sheet: sheet, date1904: date1904, styles: make(map[int]bool)}
	headers := uniqueHeaders(raw[0])

	var records []RowRecord
	for r := 1; r < len(raw); r++ {
		row := raw[r]
		if isEmptyRow(row) {
			continue
		}
		rec := NewRowRecord(len(headers))
		for c, value := range row {
			if c >= len(headers) || value == "" {
				continue
			}
			v, err := cells.value(c+1, r+1, value)
			if err != nil {
				return nil, dataReadError(fmt.Sprintf("invalid spreadsheet: row %d", r+1), err)
			}
			rec.Set(headers[c], v)
		}
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

// cellTyper coerces raw cell text to the scalar type the workbook declares.
type cellTyper struct {
	file     *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool // style index -> is a date format
}

func (ct *cellTyper) value(col, row int, raw string) (any, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := ct.file.GetCellType(ct.sheet, ref)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return raw, nil
	case excelize.CellTypeDate:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return raw, nil
	}

	// Number, or an untyped cell which the format stores as a number.
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, nil
	}
	if ct.isDate(ref) {
		if t, err := excelize.ExcelDateToTime(n, ct.date1904); err == nil {
			return t, nil
		}
	}
	return n, nil
}

func (ct *cellTyper) isDate(ref string) bool {
	idx, err := ct.file.GetCellStyle(ct.sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := ct.styles[idx]; ok {
		return isDate
	}

	isDate := false
	if style, err := ct.file.GetStyle(idx); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	ct.styles[idx] = isDate
	return isDate
}

// isBuiltinDateFormat reports whether a built-in number format id renders a
// date or time.
func isBuiltinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormat inspects a custom number format code for date tokens outside
// quoted literals and bracketed sections.
func isDateFormat(code string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case strings.ContainsRune("ydmhs", r):
			return true
		}
	}
	return false
}

// readCSV parses a comma-separated file. All values are strings.
func readCSV(data []byte) ([]RowRecord, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	raw, err := r.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, dataReadError(fmt.Sprintf("invalid csv at line %d", pe.Line), err)
		}
		return nil, dataReadError("invalid csv", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	headers := uniqueHeaders(raw[0])
	var records []RowRecord
	for _, row := range raw[1:] {
		if isEmptyRow(row) {
			continue
		}
		rec := NewRowRecord(len(headers))
		for c, value := range row {
			if c >= len(headers) || value == "" {
				continue
			}
			rec.Set(headers[c], value)
		}
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

// uniqueHeaders names every header column, filling blanks and suffixing
// repeats so each key is distinct.
func uniqueHeaders(row []string) []string {
	seen := make(map[string]int, len(row))
	out := make([]string, len(row))
	for i, h := range row {
		base := strings.TrimSpace(h)
		if base == "" {
			base = "__EMPTY"
		}
		name := base
		if n, dup := seen[base]; dup {
			for {
				name = base + "_" + strconv.Itoa(n)
				n++
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		} else {
			seen[base] = 1
		}
		seen[name] = max(seen[name], 1)
		out[i] = name
	}
	return out
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement
// character so that downstream XML stays well-formed.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteRune(r)
		}
		data = data[size:]
	}
	return buf.Bytes()
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
