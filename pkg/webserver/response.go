package webserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/rapid/internal/logger"
)

// InternalErrorMessage is sent for 500 responses so internal details never
// leak to clients.
const InternalErrorMessage = "Internal server error."

// HTTPError carries a status code to the error-catching middleware.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// Error creates an HTTPError.
func Error(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

// Errorf creates an HTTPError with a formatted message.
func Errorf(status int, format string, args ...any) *HTTPError {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status to an underlying error.
func Wrap(status int, err error) *HTTPError {
	return &HTTPError{Status: status, Err: err}
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return http.StatusText(e.Status)
	}
}

func (e *HTTPError) Unwrap() error { return e.Err }

// ErrorBody is the JSON shape of failed responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// describe maps any error to a status code and client-facing message.
func describe(err error) (int, string) {
	var he *HTTPError
	if !errors.As(err, &he) || he.Status == 0 {
		return http.StatusInternalServerError, InternalErrorMessage
	}
	status := he.Status
	if status == http.StatusInternalServerError {
		return status, InternalErrorMessage
	}
	msg := he.Message
	if msg == "" && he.Err != nil && status < 500 {
		msg = he.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return status, msg
}

// Success writes data as JSON with the given status.
func Success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// Fail writes err as an error body. Errors that do not carry a status, and
// 500s, are logged and reported as a generic internal error.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := describe(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "request failed",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, status,
			logger.KeyError, err.Error())
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{StatusCode: status, Message: msg}})
}

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.HandlerFunc, writing returned errors with Fail.
func Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			Fail(w, r, err)
		}
	}
}

// DecodeJSON decodes the request body into v, limited to limit bytes.
// Failures are returned as 400 or 413 HTTPErrors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = DefaultConfig().BodyLimit
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return Errorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return Error(http.StatusBadRequest, "request body is empty")
		default:
			return Wrap(http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		}
	}
	return nil
}

// writeJSON buffers the encoding first so an encoding failure can still
// produce a clean 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode response", logger.Err(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"statusCode":500,"message":"Internal server error."}}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
