package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInstance = Instance{
	ID:   "test-1",
	Type: ServiceJellyfin,
	URL:  "http://localhost:8096",
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{
			name: "context deadline exceeded",
			err:  context.DeadlineExceeded,
			want: CodeNetwork,
		},
		{
			name: "wrapped deadline",
			err:  fmt.Errorf("fetching: %w", context.DeadlineExceeded),
			want: CodeNetwork,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			want: CodeUnreachable,
		},
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Err: syscall.ECONNRESET},
			want: CodeUnreachable,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "nas.local"},
			want: CodeUnreachable,
		},
		{
			name: "dns timeout maps to network",
			err:  &net.DNSError{Err: "timeout", Name: "nas.local", IsTimeout: true},
			want: CodeNetwork,
		},
		{
			name: "host unreachable",
			err:  &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH},
			want: CodeUnreachable,
		},
		{
			name: "anything else",
			err:  errors.New("something odd"),
			want: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(tt.err, testInstance)
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Code)
			assert.Equal(t, "test-1", ce.InstanceID)
			assert.Equal(t, ServiceJellyfin, ce.Service)
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	original := NewError(CodeAuthFailed, testInstance, "bad key")

	ce := Classify(original, testInstance)
	assert.Same(t, original, ce)

	// Wrapped classified errors keep their original code too.
	wrapped := fmt.Errorf("polling: %w", original)
	ce = Classify(wrapped, testInstance)
	assert.Equal(t, CodeAuthFailed, ce.Code)
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantJSON    bool
		want        Code
		wantNil     bool
	}{
		{
			name:     "200 json is fine",
			status:   http.StatusOK,
			body:     `{"ok":true}`,
			wantJSON: true,
			wantNil:  true,
		},
		{
			name:   "401 is auth",
			status: http.StatusUnauthorized,
			want:   CodeAuthFailed,
		},
		{
			name:   "403 is auth",
			status: http.StatusForbidden,
			want:   CodeAuthFailed,
		},
		{
			name:   "500 is unreachable",
			status: http.StatusInternalServerError,
			body:   "boom",
			want:   CodeUnreachable,
		},
		{
			name:   "502 is unreachable",
			status: http.StatusBadGateway,
			want:   CodeUnreachable,
		},
		{
			name:   "404 is unknown",
			status: http.StatusNotFound,
			want:   CodeUnknown,
		},
		{
			name:        "html login page where json expected",
			status:      http.StatusOK,
			contentType: "text/html; charset=utf-8",
			body:        "<!DOCTYPE html><html><body>Sign in</body></html>",
			wantJSON:    true,
			want:        CodeAuthFailed,
		},
		{
			name:     "html sniffed from body without content type",
			status:   http.StatusOK,
			body:     "\n  <html><head></head></html>",
			wantJSON: true,
			want:     CodeAuthFailed,
		},
		{
			name:     "plain text allowed when json not expected",
			status:   http.StatusOK,
			body:     "<html>looks like markup</html>",
			wantJSON: false,
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyResponse(tt.status, tt.contentType, []byte(tt.body), tt.wantJSON, testInstance)
			if tt.wantNil {
				assert.Nil(t, ce)
				return
			}
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Code)
			assert.Equal(t, tt.status, ce.Status)
		})
	}
}

func TestIsCode(t *testing.T) {
	err := NewError(CodeUnreachable, testInstance, "down")

	assert.True(t, IsCode(err, CodeUnreachable))
	assert.False(t, IsCode(err, CodeAuthFailed))
	assert.True(t, IsCode(fmt.Errorf("wrap: %w", err), CodeUnreachable))
	assert.False(t, IsCode(errors.New("plain"), CodeUnreachable))
	assert.False(t, IsCode(nil, CodeUnreachable))
}

func TestClassifiedErrorFormat(t *testing.T) {
	err := NewError(CodeAuthFailed, testInstance, "authentication rejected")
	assert.Contains(t, err.Error(), "AUTH_FAILED")
	assert.Contains(t, err.Error(), "test-1")

	err.Status = 401
	assert.Contains(t, err.Error(), "status 401")
}
