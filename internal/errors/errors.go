package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds surfaced by the credential store and the operation poller.
// Compare with errors.Is.
var (
	ErrUnknownTenant     = errors.New("unknown tenant")
	ErrFallbackDisabled  = errors.New("rotation fallback is disabled")
	ErrUnauthenticated   = errors.New("secret service session is not available")
	ErrUnconfigured      = errors.New("secret service instance is not configured")
	ErrVaultLookupFailed = errors.New("no rotated credential found in secret service")
	ErrPollTimeout       = errors.New("operation did not reach a terminal state before the deadline")
)

// OperationFailedError is returned when a long-running operation reports
// status "failed". Detail holds the raw response body.
type OperationFailedError struct {
	Location string
	Detail   string
}

func (e *OperationFailedError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("operation %s failed: %s", e.Location, e.Detail)
	}
	return "operation failed: " + e.Detail
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// Suggest returns a hint for the failure kinds above, or "" if err is not one of them.
func Suggest(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTenant):
		return "Add the tenant under 'tenants:' in apimprobe.yaml or list it in APIM_TENANTS"
	case errors.Is(err, ErrFallbackDisabled):
		return "Set ENABLE_ROTATION_FALLBACK=true to allow fetching rotated keys"
	case errors.Is(err, ErrUnauthenticated):
		return "Sign in to the secret service (e.g. 'az login') or configure a managed identity"
	case errors.Is(err, ErrUnconfigured):
		return "Set KEY_VAULT_NAME or rotation.vault_name in apimprobe.yaml"
	case errors.Is(err, ErrVaultLookupFailed):
		return "Verify the <tenant>-apim-primary-key and <tenant>-apim-secondary-key secrets exist and are non-empty"
	case errors.Is(err, ErrPollTimeout):
		return "Increase --max-wait or check the backend for stuck operations"
	}
	var opErr *OperationFailedError
	if errors.As(err, &opErr) {
		return "Inspect the operation detail above for the backend's failure reason"
	}
	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	if suggestion := Suggest(err); suggestion != "" {
		return UserError{
			Message:    err.Error(),
			Suggestion: suggestion,
			Err:        err,
		}
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
