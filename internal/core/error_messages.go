// Error codes reference.
//
// Every failure shown to a user carries a code they can quote to support.
// Classified pipeline errors are mapped by kind first; anything else is
// matched against known message patterns.
//
// # Input Errors (IN001)
//
//	IN001 - Missing input: A template, data file or delimiter is missing
//	        Action: Select both files and fill in the placeholder format
//	        Kind: missing_input
//
// # Data Errors (DATA001-DATA099)
//
//	DATA001 - Unreadable data: The data file could not be read
//	          Action: Upload an .xlsx workbook or a comma-separated .csv file
//	          Kind: data_read
//
//	DATA002 - No rows: The data file has a header but no data rows
//	          Action: Add at least one row below the header row
//	          Kind: data_read, Patterns: "no data rows"
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Invalid template: The template is not a valid Word document
//	         Action: Upload a .docx file saved by Word or a compatible editor
//	         Kind: template_read
//
//	TPL002 - Damaged template: Part of the template could not be parsed
//	         Action: Open the template in Word and save it again
//	         Kind: template_read, Patterns: "malformed xml"
//
//	TPL003 - Unclosed placeholder: A placeholder opens but never closes
//	         Action: Check that every placeholder has both delimiters
//	         Kind: template_read, Patterns: "placeholder syntax"
//
// # Generation Errors (ROW001, GEN001)
//
//	ROW001 - Row failed: A row could not be rendered (recorded in the archive)
//	         Kind: row_render
//
//	GEN001 - Nothing generated: Every row failed to render
//	         Action: Check the error_document files; column names must match placeholders
//	         Kind: empty_archive
//
// # Request Errors
//
//	UPL002  - System busy: Too many generations running ("too many concurrent")
//	UPL004  - Request cancelled ("generation cancelled", "context canceled")
//	UPL005  - Request timeout ("generation timed out", "context deadline exceeded")
//	FILE001 - File too large ("too large")
//	BLOB001 - Stored file not found ("blob not found")
//	RATE001 - Rate limited ("rate limit")
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgMissingInput = UserMessage{
		Message: "A template, data file or delimiter is missing",
		Action:  "Select both files and fill in the placeholder format",
		Code:    "IN001",
	}
	msgDataRead = UserMessage{
		Message: "The data file could not be read",
		Action:  "Upload an .xlsx workbook or a comma-separated .csv file",
		Code:    "DATA001",
	}
	msgTemplateRead = UserMessage{
		Message: "The template is not a valid Word document",
		Action:  "Upload a .docx file saved by Word or a compatible editor",
		Code:    "TPL001",
	}
	msgRowRender = UserMessage{
		Message: "A row could not be rendered",
		Action:  "See the error document for that row in the archive",
		Code:    "ROW001",
	}
	msgEmptyArchive = UserMessage{
		Message: "No documents were generated because every row failed",
		Action:  "Check that the spreadsheet column names match the template placeholders",
		Code:    "GEN001",
	}
)

// kindPatterns refine the message for a kind. Checked before the kind default.
var kindPatterns = map[Kind][]errorPattern{
	KindDataRead: {
		{
			pattern: "no data rows",
			msg: UserMessage{
				Message: "The data file has a header but no data rows",
				Action:  "Add at least one row below the header row",
				Code:    "DATA002",
			},
		},
	},
	KindTemplateRead: {
		{
			pattern: "malformed xml",
			msg: UserMessage{
				Message: "Part of the template could not be parsed",
				Action:  "Open the template in Word and save it again",
				Code:    "TPL002",
			},
		},
		{
			pattern: "placeholder syntax",
			msg: UserMessage{
				Message: "A placeholder in the template opens but never closes",
				Action:  "Check that every placeholder has both delimiters",
				Code:    "TPL003",
			},
		},
	},
}

var kindMessages = map[Kind]UserMessage{
	KindMissingInput: msgMissingInput,
	KindDataRead:     msgDataRead,
	KindTemplateRead: msgTemplateRead,
	KindRowRender:    msgRowRender,
	KindEmptyArchive: msgEmptyArchive,
}

// errorPatterns map unclassified error text to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent",
		msg: UserMessage{
			Message: "System is busy generating other documents",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "generation cancelled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "generation timed out",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller data file or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller data file or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Upload a smaller file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "blob not found",
		msg: UserMessage{
			Message: "The stored file was not found",
			Action:  "Upload the file again",
			Code:    "BLOB001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
//
//	msg := MapError(err)
//	// msg.Code == "DATA002" for a header-only spreadsheet
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	kind := KindOf(err)

	for _, ep := range kindPatterns[kind] {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}

// Detail returns the message of a classified error, which is written for end
// users, or "" when err carries no such message.
func Detail(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind != KindUnexpected {
		return ce.Msg
	}
	return ""
}
