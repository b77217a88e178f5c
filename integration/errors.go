package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Code is the closed error taxonomy every transport, HTTP and body-shape
// outcome maps into.
type Code string

const (
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeAuthFailed    Code = "AUTH_FAILED"
	CodeUnreachable   Code = "SERVICE_UNREACHABLE"
	CodeNetwork       Code = "NETWORK_ERROR"
	CodeUnknown       Code = "UNKNOWN"
)

// ClassifiedError is an error with a taxonomy code and the instance context
// needed for logging and retry decisions.
type ClassifiedError struct {
	Code       Code
	Message    string
	InstanceID string
	Service    ServiceType
	// Status is the HTTP status code when one was observed, 0 otherwise.
	Status int
	Err    error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s [%s/%s, status %d]: %s", e.Code, e.Service, e.InstanceID, e.Status, e.Message)
	}
	return fmt.Sprintf("%s [%s/%s]: %s", e.Code, e.Service, e.InstanceID, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a ClassifiedError with the given code.
func IsCode(err error, code Code) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Code == code
}

// NewError builds a ClassifiedError for an instance.
func NewError(code Code, inst Instance, message string) *ClassifiedError {
	return &ClassifiedError{
		Code:       code,
		Message:    message,
		InstanceID: inst.ID,
		Service:    inst.Type,
	}
}

// Classify maps a raw transport error into the taxonomy. Already-classified
// errors pass through unchanged.
func Classify(err error, inst Instance) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	wrap := func(code Code) *ClassifiedError {
		e := NewError(code, inst, err.Error())
		e.Err = err
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(CodeNetwork)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(CodeNetwork)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return wrap(CodeUnreachable)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return wrap(CodeUnreachable)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return wrap(CodeUnreachable)
	}

	return wrap(CodeUnknown)
}

// ClassifyResponse inspects an HTTP response that reached the server. It
// returns nil when the response should be treated as success. A 200 whose
// body is an HTML page where JSON or text was expected is reclassified as
// an auth failure: several services answer unauthenticated requests with
// their login page instead of a status code.
func ClassifyResponse(status int, contentType string, body []byte, wantJSON bool, inst Instance) *ClassifiedError {
	var e *ClassifiedError

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = NewError(CodeAuthFailed, inst, "authentication rejected")
	case status >= 500:
		e = NewError(CodeUnreachable, inst, fmt.Sprintf("server error: %s", strings.TrimSpace(firstLine(body))))
	case status >= 400:
		e = NewError(CodeUnknown, inst, fmt.Sprintf("unexpected status %d", status))
	case wantJSON && looksLikeHTML(contentType, body):
		e = NewError(CodeAuthFailed, inst, "received an HTML page where JSON was expected (login redirect?)")
	default:
		return nil
	}

	e.Status = status
	return e
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) ||
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html"))
}

func firstLine(body []byte) string {
	s := string(body)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
