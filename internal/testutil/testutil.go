// Package testutil provides shared test helpers for creating config files.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig writes a minimal valid config file into tmpDir and returns
// its path.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := `evaluator:
  cache_ttl_seconds: 60
  cache_max_entries: 100
  similarity_threshold: 0.85
  attempt_timeout_ms: 100
  overall_timeout_ms: 500
  max_retries: 1
server:
  address: ":0"
`
	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}
