package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/containerd/errdefs"
)

// ErrSchemaMismatch is returned when a response body does not have the expected shape.
// It is never retried.
var ErrSchemaMismatch = errors.New("invalid server response")

// FieldError is a per-field validation message reported by the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HTTPError is a non-2xx answer from the backend. It unwraps to an errdefs
// category so callers can use errdefs.IsNotFound, errdefs.IsConflict and friends.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Fields  []FieldError
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

func (e *HTTPError) Unwrap() error {
	return categoryForStatus(e.Status)
}

func categoryForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return errdefs.ErrInvalidArgument
	case status == http.StatusUnauthorized:
		return errdefs.ErrUnauthenticated
	case status == http.StatusForbidden:
		return errdefs.ErrPermissionDenied
	case status == http.StatusNotFound:
		return errdefs.ErrNotFound
	case status == http.StatusConflict:
		return errdefs.ErrConflict
	case status == http.StatusTooManyRequests:
		return errdefs.ErrResourceExhausted
	case status >= 500:
		return errdefs.ErrUnavailable
	default:
		return errdefs.ErrUnknown
	}
}

// Message returns the text worth showing to a user for err: the backend's own
// message for HTTP errors, a fixed text for schema mismatches, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return "Invalid server response"
	}
	return err.Error()
}

// StatusCode maps err to the HTTP status a caller-facing API should answer with.
func StatusCode(err error) int {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrSchemaMismatch):
		return http.StatusBadGateway
	case errors.As(err, &httpErr) && httpErr.Status >= 400 && httpErr.Status < 500:
		return httpErr.Status
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsConflict(err):
		return http.StatusConflict
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errdefs.IsResourceExhausted(err):
		return http.StatusTooManyRequests
	case errdefs.IsFailedPrecondition(err):
		return http.StatusPreconditionFailed
	case errdefs.IsNotImplemented(err):
		return http.StatusMethodNotAllowed
	case errdefs.IsUnavailable(err):
		return http.StatusBadGateway
	case errdefs.IsCanceled(err), errdefs.IsDeadlineExceeded(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody covers the envelopes the backend uses for failures:
// {"error": {"message": ..., "validation_errors": [...]}}, {"error": "..."} and {"message": ...}.
type errorBody struct {
	Message          string          `json:"message"`
	Error            json.RawMessage `json:"error"`
	ValidationErrors []FieldError    `json:"validation_errors"`
}

type errorDetail struct {
	Message          string       `json:"message"`
	ValidationErrors []FieldError `json:"validation_errors"`
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	e := &HTTPError{Method: method, Path: path, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Message = strings.TrimSpace(string(truncate(body, 256)))
		return e
	}

	e.Message = eb.Message
	e.Fields = eb.ValidationErrors

	if len(eb.Error) > 0 {
		var detail errorDetail
		var text string
		switch {
		case json.Unmarshal(eb.Error, &detail) == nil:
			if detail.Message != "" {
				e.Message = detail.Message
			}
			if len(detail.ValidationErrors) > 0 {
				e.Fields = detail.ValidationErrors
			}
		case json.Unmarshal(eb.Error, &text) == nil && text != "":
			e.Message = text
		}
	}
	return e
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
