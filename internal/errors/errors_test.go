package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", stderrors.New("429 Too Many Requests"), true},
		{"gateway timeout", stderrors.New("post https://rpc: 502 Bad Gateway"), true},
		{"connection reset", stderrors.New("read tcp: connection reset by peer"), true},
		{"db deadlock", stderrors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{"per-call deadline", context.DeadlineExceeded, true},
		{"shutdown", context.Canceled, false},
		{"malformed request", stderrors.New("invalid argument 0: json: cannot unmarshal"), false},
		{"categorized transient", NewTransient("eth_getLogs", stderrors.New("boom")), true},
		{"categorized fatal", NewFatal("dial", stderrors.New("401 Unauthorized")), false},
		{"wrapped transient", fmt.Errorf("fetch logs: %w", NewTransient("eth_getLogs", nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsResultLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"geth result cap", stderrors.New("query returned more than 10000 results"), true},
		{"payload cap", stderrors.New("Log response size exceeded"), true},
		{"range cap", stderrors.New("eth_getLogs block range is too wide"), true},
		{"rate limited", stderrors.New("429 Too Many Requests"), false},
		{"malformed request", stderrors.New("invalid argument"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResultLimit(tt.err))
			if tt.want {
				// Shrink-and-retry only works if the range rejection is
				// neither retried in place nor treated as fatal.
				assert.False(t, IsTransient(tt.err))
				assert.False(t, IsFatal(tt.err))
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewFatal("dial", stderrors.New("bad url"))))
	assert.False(t, IsFatal(NewTransient("call", stderrors.New("timeout"))))
	assert.False(t, IsFatal(stderrors.New("some error")))
}

func TestCategorizedErrorUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := NewDatabaseError("insert transfers", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DATABASE_ERROR")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NewNotFound("snapshot")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("x")))
}
