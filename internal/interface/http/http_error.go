package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Context map[string]string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

var statusByCode = map[string]int{
	apperrors.CodeNotFound:           http.StatusNotFound,
	apperrors.CodeInvalidInput:       http.StatusBadRequest,
	apperrors.CodeInvalidState:       http.StatusConflict,
	apperrors.CodeConflict:           http.StatusConflict,
	apperrors.CodeScoringUnavailable: http.StatusServiceUnavailable,
	apperrors.CodeForbidden:          http.StatusForbidden,
	apperrors.CodeUnauthorized:       http.StatusUnauthorized,
}

// fromAppError maps a domain error onto its HTTP representation. Unknown
// codes become 500.
func fromAppError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		return &HTTPError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "something went wrong", Err: err}
	}
	return &HTTPError{Status: status, Code: code, Message: errMessage(err), Context: apperrors.ContextOf(err), Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return fromAppError(err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
