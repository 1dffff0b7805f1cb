package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kunay1/seal/pkg/errors"
)

func TestSealError_IsMatchesByCode(t *testing.T) {
	err := errors.ErrCertificateExpired.WithMetadata("expired_at", 1234)
	wrapped := fmt.Errorf("check failed: %w", err)

	assert.True(t, errors.Is(wrapped, errors.ErrCertificateExpired))
	assert.False(t, errors.Is(wrapped, errors.ErrCertificateNotYetValid))
	assert.Equal(t, errors.CodeCertificateExpired, errors.CodeOf(wrapped))
}

func TestSealError_CopiesDoNotMutateSentinel(t *testing.T) {
	_ = errors.ErrRateLimited.WithMetadata("retry_after", 5)
	assert.Nil(t, errors.ErrRateLimited.Metadata())

	cause := stderrors.New("dial tcp: refused")
	err := errors.ErrEvaluatorUnavailable.WithCause(cause)
	assert.Nil(t, errors.ErrEvaluatorUnavailable.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestCategories(t *testing.T) {
	tests := []struct {
		err       error
		category  errors.Category
		status    int
		retryable bool
	}{
		{errors.ErrInvalidSignature, errors.CategoryAuthentication, http.StatusForbidden, false},
		{errors.ErrMalformedIdentifier, errors.CategoryValidation, http.StatusBadRequest, false},
		{errors.ErrPolicyNotSatisfied, errors.CategoryAuthorization, http.StatusForbidden, false},
		{errors.ErrEvaluatorUnavailable, errors.CategoryResource, http.StatusServiceUnavailable, true},
		{errors.ErrKeyDerivationFailed, errors.CategoryResource, http.StatusServiceUnavailable, true},
		{errors.ErrRateLimited, errors.CategoryResource, http.StatusTooManyRequests, true},
		{stderrors.New("boom"), errors.CategoryInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(string(errors.CodeOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.category, errors.CategoryOf(tt.err))
			assert.Equal(t, tt.status, errors.HTTPStatusOf(tt.err))
			assert.Equal(t, tt.retryable, errors.IsRetryable(tt.err))
		})
	}
}

func TestToErrorResponse_HidesCauses(t *testing.T) {
	resp := errors.ToErrorResponse(stderrors.New("secret path /etc/master"))
	assert.Equal(t, errors.CodeInternal, resp.Error)
	assert.NotContains(t, resp.Message, "/etc/master")

	resp = errors.ToErrorResponse(errors.ErrKeyDerivationFailed.WithCause(stderrors.New("vault sealed")))
	assert.Equal(t, errors.CodeKeyDerivationFailed, resp.Error)
	assert.NotContains(t, resp.Message, "vault")
}
