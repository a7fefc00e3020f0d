package testutil

import (
	"os"
	"testing"
)

// EnvLookup returns a LookupEnv function backed by vars.
func EnvLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// SetupTestEnv sets process environment variables for the duration of a
// test and restores them with t.Cleanup.
//
// Prefer EnvLookup; this is for code paths that read os.Getenv directly,
// such as the cloud SDK credential chains.
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// UnsetTestEnv removes variables for the duration of a test.
func UnsetTestEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		orig, ok := os.LookupEnv(key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
		if ok {
			t.Cleanup(func() { _ = os.Setenv(key, orig) })
		}
	}
}
