package errors

import "errors"

// Codes shared by the domain services and the HTTP layer.
const (
	CodeNotFound           = "not_found"
	CodeInvalidInput       = "invalid_input"
	CodeInvalidState       = "invalid_state"
	CodeScoringUnavailable = "scoring_unavailable"
	CodeConflict           = "conflict"
	CodeForbidden          = "forbidden"
	CodeUnauthorized       = "unauthorized"
	CodeStorage            = "storage_error"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
	// Context identifies the records involved, e.g. interview_id or question_id.
	Context map[string]string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// WrapContext is Wrap plus key/value context pairs. A trailing key without a
// value is ignored.
func WrapContext(code, message string, err error, kv ...string) error {
	appErr := &AppError{Code: code, Message: message, Err: err}
	if len(kv) >= 2 {
		appErr.Context = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			appErr.Context[kv[i]] = kv[i+1]
		}
	}
	return appErr
}

// IsCode helps handler differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the outermost AppError code or an empty string.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ContextOf returns the context attached to the outermost AppError.
func ContextOf(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Context
	}
	return nil
}
