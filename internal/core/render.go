package core

import (
	"errors"
)

// RenderRow renders one row into inst. Failures are captured in the result,
// never returned, so a bad row cannot stop the batch.
func RenderRow(inst *TemplateInstance, row RowRecord, index int, d Delimiters) RenderResult {
	result := RenderResult{Index: index, Row: row}

	doc, err := inst.Render(d, func(name string) (string, bool) {
		v, ok := row.Get(name)
		if !ok {
			return "", false
		}
		return FormatValue(v), true
	})
	if err != nil {
		result.Err = rowError(index, err)
		return result
	}

	result.Document = doc
	return result
}

func rowError(index int, err error) *RowError {
	re := &RowError{Index: index, Message: err.Error(), Err: err}

	var mk *MissingKeysError
	var pe *PlaceholderSyntaxError
	var ce *Error
	switch {
	case errors.As(err, &mk):
		re.MissingKeys = append([]string(nil), mk.Keys...)
	case errors.As(err, &pe):
		re.Message = "template syntax error: " + pe.Error()
	case errors.As(err, &ce):
		re.Message = ce.Msg
	case errors.Is(err, ErrInstanceUsed):
		re.Message = "internal error: template instance reused"
	}
	return re
}
