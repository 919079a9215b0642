// Package apperrors defines the error taxonomy shared by the ingestion,
// mapping, transformation and persistence layers.
//
// Every fatal condition is reachable through errors.Is against one of the
// sentinel values below, and KindOf classifies any wrapped error into a Kind
// so callers (CLI, HTTP API) can choose a response without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for presentation and control flow.
type Kind int

const (
	// KindUnknown is any error not produced by this module.
	KindUnknown Kind = iota
	// KindMalformedInput is an unparseable file container or unsupported format.
	KindMalformedInput
	// KindEmptyInput means the file carried zero data rows.
	KindEmptyInput
	// KindFileTooLarge is raised before any parsing starts.
	KindFileTooLarge
	// KindPartialFieldData is recovered locally and only ever reported as a warning.
	KindPartialFieldData
	// KindExternalServiceFailure covers the semantic-mapping service and the persistence API.
	KindExternalServiceFailure
	// KindLimitExceeded is the persistence quota error.
	KindLimitExceeded
	// KindNotFound is a missing saved mapping.
	KindNotFound
	// KindInvalidArgument is a caller error such as an unknown catalog field.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed_input"
	case KindEmptyInput:
		return "empty_input"
	case KindFileTooLarge:
		return "file_too_large"
	case KindPartialFieldData:
		return "partial_field_data"
	case KindExternalServiceFailure:
		return "external_service_failure"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Sentinel errors. Wrap them with fmt.Errorf("...: %w", err) or New.
var (
	ErrCorruptWorkbook    = errors.New("corrupt workbook")
	ErrEmptySheet         = errors.New("empty sheet")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrUnknownSheet       = errors.New("sheet not found in workbook")
	ErrEmptyInput         = errors.New("empty file")
	ErrFileTooLarge       = errors.New("file too large")
	ErrServiceUnavailable = errors.New("semantic mapping service unavailable")
	ErrLimitExceeded      = errors.New("saved mapping limit reached")
	ErrNotFound           = errors.New("saved mapping not found")
	ErrUnknownField       = errors.New("unknown catalog field")
	ErrUnknownHeader      = errors.New("unknown source header")
)

var kinds = map[error]Kind{
	ErrCorruptWorkbook:    KindMalformedInput,
	ErrEmptySheet:         KindEmptyInput,
	ErrUnsupportedFormat:  KindMalformedInput,
	ErrUnknownSheet:       KindMalformedInput,
	ErrEmptyInput:         KindEmptyInput,
	ErrFileTooLarge:       KindFileTooLarge,
	ErrServiceUnavailable: KindExternalServiceFailure,
	ErrLimitExceeded:      KindLimitExceeded,
	ErrNotFound:           KindNotFound,
	ErrUnknownField:       KindInvalidArgument,
	ErrUnknownHeader:      KindInvalidArgument,
}

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with an operation name and explicit kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// External marks err as an external service failure.
func External(op string, err error) *Error {
	return New(KindExternalServiceFailure, op, err)
}

// KindOf classifies err. A nil error is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindUnknown {
		return ae.Kind
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// IsFatal reports whether err must abort the current ingestion run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindMalformedInput, KindEmptyInput, KindFileTooLarge:
		return true
	}
	return false
}
