package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrKindNotFound, "company 7 not found"),
			want: "[not_found] company 7 not found",
		},
		{
			name: "with cause",
			err:  Wrap(ErrKindTimeout, "query timed out", context.DeadlineExceeded),
			want: "[timeout] query timed out: context deadline exceeded",
		},
		{
			name: "formatted",
			err:  Newf(ErrKindInvalidInput, "unknown metric kind %q", "ozone"),
			want: `[invalid_input] unknown metric kind "ozone"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates_TraverseWrapping(t *testing.T) {
	base := Wrap(ErrKindUpstream, "completion failed", errors.New("529 overloaded"))
	wrapped := fmt.Errorf("synthesize: %w", base)

	assert.True(t, IsUpstream(wrapped))
	assert.False(t, IsTimeout(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{New(ErrKindNotFound, "x"), http.StatusNotFound},
		{New(ErrKindInvalidInput, "x"), http.StatusBadRequest},
		{New(ErrKindConflict, "x"), http.StatusConflict},
		{New(ErrKindConnectionFailed, "x"), http.StatusServiceUnavailable},
		{New(ErrKindUpstream, "x"), http.StatusBadGateway},
		{New(ErrKindTimeout, "x"), http.StatusGatewayTimeout},
		{New(ErrKindPermissionDenied, "x"), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
