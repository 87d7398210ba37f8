package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	apperrors "github.com/yanqian/horizon/pkg/errors"
)

// HTTPError is the response shape of a failed API call.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError builds an HTTPError for failures detected in the handler itself.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusByCode maps domain error codes to response statuses. Codes not
// listed here surface as 500 with their code intact.
var statusByCode = map[string]int{
	session.CodeInvalidInput:        http.StatusBadRequest,
	session.CodeNotFound:            http.StatusNotFound,
	session.CodeInvalidTransition:   http.StatusConflict,
	session.CodeRequestInFlight:     http.StatusConflict,
	sunreport.CodeAnalysisFailed:    http.StatusBadGateway,
	sunreport.CodeMalformedResponse: http.StatusBadGateway,
}

// asHTTPError resolves err into a response. An HTTPError passes through, an
// AppError is mapped by its code, and anything else is an opaque 500.
func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if code := apperrors.Code(err); code != "" {
		status, ok := statusByCode[code]
		if !ok {
			status = http.StatusInternalServerError
		}
		return &HTTPError{Status: status, Code: code, Message: apperrors.Message(err), Err: err}
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err error) {
	httpErr := asHTTPError(err)
	if httpErr == nil {
		return
	}
	_ = c.Error(httpErr)
	c.Abort()
}
