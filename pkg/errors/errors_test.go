package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsErrCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrCode
		want bool
	}{
		{name: "nil", err: nil, code: ErrCodeInternal, want: false},
		{name: "direct", err: NewModelUnknownError("iris", "Production"), code: ErrCodeModelUnknown, want: true},
		{name: "wrapped", err: fmt.Errorf("predict: %w", NewConfigNotFoundError("config.yaml")), code: ErrCodeConfigNotFound, want: true},
		{name: "other code", err: NewConfigInvalidError("bad"), code: ErrCodeConfigNotFound, want: false},
		{name: "plain error", err: errors.New("boom"), code: ErrCodeInternal, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsErrCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsErrCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorageUnavailableUnwrap(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:9000: connection refused")
	err := NewStorageUnavailableError("127.0.0.1:9000", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if HintOf(fmt.Errorf("setup: %w", err)) == "" {
		t.Errorf("HintOf() is empty")
	}
}

func TestCommandFailedMessage(t *testing.T) {
	err := NewCommandFailedError("dvc push", 1, "ERROR: unexpected error\n")
	want := "COMMAND_FAILED: command failed (exit 1): dvc push\nERROR: unexpected error"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
