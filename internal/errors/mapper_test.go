package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/muzz-connect/internal/errors"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", svcErr.NotFound("profile"), codes.NotFound},
		{"invalid action", svcErr.InvalidAction("cannot like yourself"), codes.FailedPrecondition},
		{"policy", svcErr.PolicyViolation("too young"), codes.FailedPrecondition},
		{"argument", svcErr.InvalidArgument("limit"), codes.InvalidArgument},
		{"unavailable", svcErr.Unavailable("find nearby", fmt.Errorf("dial tcp")), codes.Unavailable},
		{"gorm not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", fmt.Errorf("boom"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tc.err))
			assert.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
		})
	}

	assert.NoError(t, svcErr.Map(nil))
}

func TestMap_PassesThroughStatus(t *testing.T) {
	in := status.Error(codes.Aborted, "already mapped")
	assert.Equal(t, in, svcErr.Map(in))
}

func TestKindAndRetryable(t *testing.T) {
	wrapped := fmt.Errorf("discover: %w", svcErr.Unavailable("find nearby", fmt.Errorf("timeout")))

	assert.Equal(t, svcErr.KindUpstreamUnavailable, svcErr.KindOf(wrapped))
	assert.True(t, svcErr.IsRetryable(wrapped))
	assert.False(t, svcErr.IsRetryable(svcErr.NotFound("profile")))
	assert.Equal(t, svcErr.KindInternal, svcErr.KindOf(fmt.Errorf("plain")))
	assert.False(t, svcErr.Is(nil, svcErr.KindNotFound))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, svcErr.HTTPStatus(svcErr.NotFound("conversation")))
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus(svcErr.InvalidAction("self")))
	assert.Equal(t, http.StatusForbidden, svcErr.HTTPStatus(svcErr.PolicyViolation("age")))
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.HTTPStatus(svcErr.Unavailable("x", nil)))
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus(svcErr.InvalidArgument("x")))
	assert.Equal(t, http.StatusInternalServerError, svcErr.HTTPStatus(fmt.Errorf("x")))
}
