package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"corrupt workbook wrapped", fmt.Errorf("open: %w", ErrCorruptWorkbook), KindMalformedInput},
		{"empty sheet", ErrEmptySheet, KindEmptyInput},
		{"too large", fmt.Errorf("pre-flight: %w", ErrFileTooLarge), KindFileTooLarge},
		{"explicit kind wins", New(KindExternalServiceFailure, "save", errors.New("dial tcp")), KindExternalServiceFailure},
		{"explicit unknown falls through to sentinel", New(KindUnknown, "save", ErrLimitExceeded), KindLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrCorruptWorkbook))
	assert.True(t, IsFatal(ErrEmptyInput))
	assert.True(t, IsFatal(ErrFileTooLarge))
	assert.False(t, IsFatal(ErrServiceUnavailable))
	assert.False(t, IsFatal(ErrLimitExceeded))
	assert.False(t, IsFatal(nil))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"corrupt workbook", ErrCorruptWorkbook, "MAP001"},
		{"unsupported format beats malformed kind", fmt.Errorf("ingest: %w", ErrUnsupportedFormat), "MAP002"},
		{"empty input", ErrEmptyInput, "MAP003"},
		{"too large", ErrFileTooLarge, "MAP004"},
		{"unknown sheet", ErrUnknownSheet, "MAP005"},
		{"service failure", External("suggest", errors.New("503")), "MAP010"},
		{"quota sentinel", ErrLimitExceeded, "MAP020"},
		{"quota trigger text", errors.New("ERROR: Free users can only save 3 files. Please upgrade to save more files."), "MAP020"},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), "MAP040"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Message(tt.err).Code)
		})
	}
}

func TestErrorString(t *testing.T) {
	err := New(KindNotFound, "delete mapping", ErrNotFound)
	assert.Equal(t, "delete mapping: saved mapping not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	bare := &Error{Kind: KindNotFound, Err: ErrNotFound}
	assert.Equal(t, "saved mapping not found", bare.Error())
}
