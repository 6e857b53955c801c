package errors

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidReference, "bad reference: %s", "value")

	if err.Code != ErrCodeInvalidReference {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidReference)
	}

	if err.Message != "bad reference: value" {
		t.Errorf("Message = %v, want %v", err.Message, "bad reference: value")
	}

	expected := "INVALID_REFERENCE: bad reference: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeNetwork, cause, "failed to fetch")

	if err.Code != ErrCodeNetwork {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNetwork)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeChecksumMismatch, "test"),
			code:     ErrCodeChecksumMismatch,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeChecksumMismatch, "test"),
			code:     ErrCodeNetwork,
			expected: false,
		},
		{
			name:     "outer code",
			err:      Wrap(ErrCodeNetwork, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeNetwork,
			expected: true,
		},
		{
			name:     "inner code",
			err:      Wrap(ErrCodeArtifactMissing, New(ErrCodeDecode, "inner"), "outer"),
			code:     ErrCodeDecode,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeLoginFailed, "x")); got != ErrCodeLoginFailed {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeLoginFailed)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeNotFound, "package %s not found", "ZCore")); got != "package ZCore not found" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestBatch(t *testing.T) {
	b := NewBatch("add")
	b.Record(nil)
	if b.Err() != nil {
		t.Fatal("Err() should be nil when nothing failed")
	}

	b.Record(New(ErrCodeArtifactMissing, "ZCore_1.0.0.0.library missing"))
	b.Record(context.Canceled)
	b.Record(nil)

	err := b.Err()
	if err == nil {
		t.Fatal("Err() should report failures")
	}

	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("Err() type = %T, want *BatchError", err)
	}
	if be.Total != 4 || len(be.Errors) != 2 {
		t.Errorf("Total=%d failed=%d, want 4 and 2", be.Total, len(be.Errors))
	}
	if !strings.HasPrefix(err.Error(), "add: 2 of 4 items failed") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("BatchError should unwrap to its item errors")
	}
	if !Is(be.Errors[0], ErrCodeArtifactMissing) {
		t.Error("first item error lost its code")
	}
}

func TestBatch_RecordItem(t *testing.T) {
	b := NewBatch("remove")
	b.RecordItem("Plc: ZCore", nil)
	b.RecordItem("Plc: ZAux", New(ErrCodePackageNotFound, "not a package"))

	var be *BatchError
	if !errors.As(b.Err(), &be) {
		t.Fatalf("Err() = %v", b.Err())
	}
	if be.Total != 2 || len(be.Errors) != 1 {
		t.Fatalf("Total=%d failed=%d", be.Total, len(be.Errors))
	}
	if got := UserMessage(be.Errors[0]); got != "Plc: ZAux: not a package" {
		t.Errorf("UserMessage = %q", got)
	}
	if !Is(be.Errors[0], ErrCodePackageNotFound) {
		t.Error("item error lost its code")
	}
}
