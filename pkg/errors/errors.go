package errors

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ErrCodeConfigNotFound     ErrCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      ErrCode = "CONFIG_INVALID"
	ErrCodeDataInvalid        ErrCode = "DATA_INVALID"
	ErrCodeStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"
	ErrCodeTrackingFailed     ErrCode = "TRACKING_FAILED"
	ErrCodeCommandFailed      ErrCode = "COMMAND_FAILED"
	ErrCodeModelUnknown       ErrCode = "MODEL_UNKNOWN"
	ErrCodeDigestInvalid      ErrCode = "DIGEST_INVALID"
	ErrCodeUnsupported        ErrCode = "UNSUPPORTED"
	ErrCodeInvalidParameter   ErrCode = "INVALID_PARAMETER"
	ErrCodeInternal           ErrCode = "INTERNAL"
)

type ErrCode string

type ErrorInfo struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Detail  string  `json:"detail,omitempty"`
	// Hint is a remediation shown to the operator after the message.
	Hint  string `json:"hint,omitempty"`
	cause error
}

func (e ErrorInfo) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += "\n" + strings.TrimRight(e.Detail, "\n")
	}
	return msg
}

func (e ErrorInfo) Unwrap() error {
	return e.cause
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

// HintOf returns the remediation attached to err, if any.
func HintOf(err error) string {
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Hint
	}
	return ""
}

func NewConfigNotFoundError(path string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeConfigNotFound, Message: fmt.Sprintf("configuration file not found at %s", path)}
}

func NewConfigInvalidError(msg string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeConfigInvalid, Message: msg}
}

func NewDataInvalidError(msg string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeDataInvalid, Message: msg}
}

func NewStorageUnavailableError(endpoint string, err error) ErrorInfo {
	return ErrorInfo{
		Code:    ErrCodeStorageUnavailable,
		Message: fmt.Sprintf("could not connect to object storage at %s: %v", endpoint, err),
		Hint:    "is the storage service running?",
		cause:   err,
	}
}

func NewTrackingFailedError(op string, err error) ErrorInfo {
	return ErrorInfo{
		Code:    ErrCodeTrackingFailed,
		Message: fmt.Sprintf("tracking %s: %v", op, err),
		Hint:    "is the tracking server reachable at MLFLOW_TRACKING_URI?",
		cause:   err,
	}
}

func NewCommandFailedError(command string, exitcode int, stderr string) ErrorInfo {
	return ErrorInfo{
		Code:    ErrCodeCommandFailed,
		Message: fmt.Sprintf("command failed (exit %d): %s", exitcode, command),
		Detail:  stderr,
	}
}

func NewModelUnknownError(name, stage string) ErrorInfo {
	return ErrorInfo{
		Code:    ErrCodeModelUnknown,
		Message: fmt.Sprintf("model: %s (stage %s) not found", name, stage),
		Hint:    "have you registered a model version first? run `mlops train`",
	}
}

func NewModelVersionUnknownError(name, version string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeModelUnknown, Message: fmt.Sprintf("model: %s version %s not found", name, version)}
}

func NewDigestInvalidError(want, got string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeDigestInvalid, Message: fmt.Sprintf("digest invalid: want %s got %s", want, got)}
}

func NewUnsupportedError(msg string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeUnsupported, Message: msg}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{Code: ErrCodeInvalidParameter, Message: msg}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{Code: ErrCodeInternal, Message: err.Error(), cause: err}
}
