package importer

// errors.go classifies import failures and maps them to user messages.
//
// Every failure of a job belongs to exactly one tier:
//
//	IMP001 - I/O error: the source could not be opened or read
//	         Message: the original error text
//	IMP002 - Format error: no parser variant accepted the data
//	         Message: the original error text
//	ERR000 - Unexpected error: store failures, panics, anything else
//	         Message: generic; the technical error is logged with full detail
//
// Errors raised before a job runs use their own codes:
//
//	IMP003 - Too many imports in progress
//	IMP004 - Import job not found (expired or never existed)
//	IMP005 - Invalid import path
//	IMP006 - Request timed out
//	IMP007 - Cache not found
//	IMP008 - Server shutting down

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/geoimport/internal/gpx"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("import job not found")

// ErrInvalidPath is returned when a requested file lies outside the import
// directory.
var ErrInvalidPath = errors.New("invalid import path")

// ErrorKind is the failure tier of an import.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindIO
	KindFormat
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	default:
		return "unexpected"
	}
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Title  string // Short heading
	Action string // What to do about it
	Code   string // Error code for support reference
}

var kindMessages = map[ErrorKind]UserMessage{
	KindIO: {
		Title:  "Error reading data",
		Action: "Check that the file exists and is readable",
		Code:   "IMP001",
	},
	KindFormat: {
		Title:  "Data format error",
		Action: "Make sure the file is a GPX or LOC export",
		Code:   "IMP002",
	},
	KindUnexpected: {
		Title:  "Unexpected error",
		Action: "Please try again or contact support",
		Code:   "ERR000",
	},
}

// genericMessage is surfaced for unexpected failures instead of the
// technical error.
const genericMessage = "An unexpected error occurred"

// ImportError is the error returned by a failed job.
type ImportError struct {
	Kind  ErrorKind
	Err   error
	Stack []byte // set for recovered panics
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user: the original error for I/O and
// format failures, a generic text otherwise.
func (e *ImportError) Message() string {
	if e.Kind == KindUnexpected {
		return genericMessage
	}
	return e.Err.Error()
}

// User returns the title, action and support code for the error's tier.
func (e *ImportError) User() UserMessage {
	return kindMessages[e.Kind]
}

func ioError(err error) *ImportError {
	return &ImportError{Kind: KindIO, Err: err}
}

func unexpectedError(err error) *ImportError {
	return &ImportError{Kind: KindUnexpected, Err: err}
}

// classifyRead turns an error of the read stages into an ImportError.
// Parser errors are format errors; everything else came from the stream.
func classifyRead(err error) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	if isFormatError(err) {
		return &ImportError{Kind: KindFormat, Err: err}
	}
	return ioError(err)
}

func isFormatError(err error) bool {
	var pe *gpx.ParseError
	return errors.As(err, &pe)
}

// AsImportError returns err as an ImportError, treating anything
// unclassified as unexpected.
func AsImportError(err error) *ImportError {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	return unexpectedError(err)
}

// requestPatterns maps errors raised outside a job to user messages.
var requestPatterns = []struct {
	match func(error) bool
	msg   UserMessage
}{
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyImports) },
		msg: UserMessage{
			Title:  "Too many imports in progress",
			Action: "Please wait a moment and try again",
			Code:   "IMP003",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrJobNotFound) },
		msg: UserMessage{
			Title:  "Import not found",
			Action: "The import may have expired. Please start a new import",
			Code:   "IMP004",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrInvalidPath) },
		msg: UserMessage{
			Title:  "Invalid import path",
			Action: "Use a path relative to the import directory",
			Code:   "IMP005",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, store.ErrNotFound) },
		msg: UserMessage{
			Title:  "Cache not found",
			Action: "Check the geocode or import the cache first",
			Code:   "IMP007",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrPoolClosed) },
		msg: UserMessage{
			Title:  "Server is shutting down",
			Action: "Please try again in a moment",
			Code:   "IMP008",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		msg: UserMessage{
			Title:  "Request timed out",
			Action: "Try again with a smaller file",
			Code:   "IMP006",
		},
	},
}

// MapError converts any error to a user message. Import errors map by tier;
// request errors by pattern; anything else falls back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.User()
	}

	for _, p := range requestPatterns {
		if p.match(err) {
			return p.msg
		}
	}

	return kindMessages[KindUnexpected]
}

// IsUserFacing reports whether the original error text may be shown to users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != kindMessages[KindUnexpected].Code
}
