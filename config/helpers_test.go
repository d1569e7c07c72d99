// ABOUTME: Test helpers for config tests
// ABOUTME: Provides utilities for environment variable management

package config

import (
	"os"
	"testing"
)

// withCleanEnv clears the environment, applies extra vars, moves into an empty
// working directory (so no stray .env is picked up) and returns a cleanup
// function that restores the original env. Use with t.Cleanup().
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(withCleanEnv(t, map[string]string{
//	        "COURIER_SESSION_BACKEND": "memory",
//	    }))
//	}
func withCleanEnv(t *testing.T, extra map[string]string) func() {
	t.Helper()

	originalEnv := os.Environ()
	os.Clearenv()

	// Keep the default session file inside the test sandbox
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for key, value := range extra {
		os.Setenv(key, value)
	}

	t.Chdir(t.TempDir())

	return func() {
		os.Clearenv()
		for _, env := range originalEnv {
			for i := 0; i < len(env); i++ {
				if env[i] == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}
}
