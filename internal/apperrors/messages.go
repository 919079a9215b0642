package apperrors

import (
	"context"
	"errors"
	"strings"
)

// # Error Codes Reference
//
//	MAP001 - Invalid file: the file could not be read as CSV or a workbook
//	MAP002 - Unsupported format: only .csv, .xlsx and .xls are accepted
//	MAP003 - Empty file: the file has no data rows
//	MAP004 - File too large: the file exceeds the configured maximum size
//	MAP005 - Sheet not found: the selected sheet does not exist
//	MAP010 - Mapping service unavailable: local auto-mapping was used instead
//	MAP020 - Limit reached: the free plan allows a fixed number of saved files
//	MAP021 - Not found: the saved mapping no longer exists
//	MAP030 - Invalid request: unknown catalog field or source header
//	MAP040 - Cancelled: the run was abandoned or timed out
//	ERR000 - Unknown error

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// Message maps err to a UserMessage. Sentinels are checked before the kind so
// that, for example, an unknown sheet and a corrupt workbook get distinct codes.
func Message(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return UserMessage{"Unsupported file format", "Upload a .csv, .xlsx or .xls file", "MAP002"}
	case errors.Is(err, ErrUnknownSheet):
		return UserMessage{"The selected sheet does not exist", "Pick one of the listed sheets", "MAP005"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return UserMessage{"Processing was cancelled", "Start again when ready", "MAP040"}
	}

	switch KindOf(err) {
	case KindMalformedInput:
		return UserMessage{"Invalid file", "Check that the file is a valid CSV or Excel workbook", "MAP001"}
	case KindEmptyInput:
		return UserMessage{"The file has no data rows", "Upload a file with a header row and at least one data row", "MAP003"}
	case KindFileTooLarge:
		return UserMessage{"File exceeds the maximum size", "Split the file into smaller parts", "MAP004"}
	case KindExternalServiceFailure:
		return UserMessage{"Mapping service unavailable", "Local auto-mapping was used; review the mapping", "MAP010"}
	case KindLimitExceeded:
		return UserMessage{"Saved file limit reached", "Upgrade to save more files", "MAP020"}
	case KindNotFound:
		return UserMessage{"Saved mapping not found", "Refresh the list of saved mappings", "MAP021"}
	case KindInvalidArgument:
		return UserMessage{"Invalid mapping request", "Use catalog field names and headers from the file", "MAP030"}
	}

	// Persistence backends report the quota through a trigger message.
	if IsQuotaMessage(err.Error()) {
		return UserMessage{"Saved file limit reached", "Upgrade to save more files", "MAP020"}
	}
	return defaultMessage
}

// IsQuotaMessage reports whether a backend error text signals the saved-file quota.
func IsQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "upgrade to save more files") || strings.Contains(lower, "limit reached")
}
