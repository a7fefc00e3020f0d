package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/apimprobe/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "gateway.base_url",
		Value:      "not a url",
		Message:    "Invalid URL format",
		Suggestion: "Use format: https://apim-name.azure-api.net",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "gateway.base_url")
	assert.Contains(t, errMsg, "not a url")
	assert.Contains(t, errMsg, "Invalid URL format")
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("refresh wlrs: %w", errors.ErrFallbackDisabled)
	assert.ErrorIs(t, wrapped, errors.ErrFallbackDisabled)
	assert.NotErrorIs(t, wrapped, errors.ErrUnconfigured)
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantSugg   string
		wantSameAs bool
	}{
		{
			name:     "unknown tenant gets suggestion",
			err:      fmt.Errorf("get credential: %w", errors.ErrUnknownTenant),
			wantSugg: "APIM_TENANTS",
		},
		{
			name:     "poll timeout gets suggestion",
			err:      errors.ErrPollTimeout,
			wantSugg: "--max-wait",
		},
		{
			name:     "operation failure gets suggestion",
			err:      &errors.OperationFailedError{Location: "/ops/1", Detail: `{"status":"failed"}`},
			wantSugg: "operation detail",
		},
		{
			name:       "user error untouched",
			err:        errors.UserError{Message: "already friendly"},
			wantSameAs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := errors.SimplifyError(tt.err)
			if tt.wantSameAs {
				assert.Equal(t, tt.err, got)
				return
			}
			var ue errors.UserError
			require.ErrorAs(t, got, &ue)
			assert.Contains(t, ue.Suggestion, tt.wantSugg)
		})
	}
}

func TestSimplifyErrorYAML(t *testing.T) {
	t.Parallel()

	got := errors.SimplifyError(fmt.Errorf("load: %w", fmt.Errorf("yaml: line 3: did not find expected key")))
	var ce errors.ConfigError
	require.ErrorAs(t, got, &ce)
	assert.Equal(t, "Invalid YAML format", ce.Message)
}

func TestOperationFailedErrorMessage(t *testing.T) {
	t.Parallel()

	err := &errors.OperationFailedError{Detail: "boom"}
	assert.Equal(t, "operation failed: boom", err.Error())

	err = &errors.OperationFailedError{Location: "/jobs/7", Detail: "boom"}
	assert.Equal(t, "operation /jobs/7 failed: boom", err.Error())
}
