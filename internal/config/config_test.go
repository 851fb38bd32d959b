package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every GRADEDESK_ env var that Load() reads.
var allConfigKeys = []string{
	"GRADEDESK_DATA_DIR",
	"GRADEDESK_DB_PATH",
	"GRADEDESK_WORKSPACE_ROOT",
	"GRADEDESK_OPENAI_MODEL",
	"GRADEDESK_HTTP_TIMEOUT",
	"GRADEDESK_SCORER_TIMEOUT",
}

// isolateConfigEnv saves and unsets all GRADEDESK_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GRADEDESK_DATA_DIR", "/tmp/gradedesk-test")
	t.Setenv("GRADEDESK_DB_PATH", "/tmp/other/registry.db")
	t.Setenv("GRADEDESK_WORKSPACE_ROOT", "/tmp/work")
	t.Setenv("GRADEDESK_OPENAI_MODEL", "gpt-4o")
	t.Setenv("GRADEDESK_HTTP_TIMEOUT", "10s")
	t.Setenv("GRADEDESK_SCORER_TIMEOUT", "5m")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/gradedesk-test", cfg.DataDir)
	assert.Equal(t, "/tmp/other/registry.db", cfg.DBPath)
	assert.Equal(t, "/tmp/work", cfg.WorkspaceRoot)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ScorerTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".gradedesk"), cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "gradedesk.db"), cfg.DBPath)
	assert.Equal(t, ".", cfg.WorkspaceRoot)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Minute, cfg.ScorerTimeout)
}

func TestLoad_DBPathFollowsDataDir(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GRADEDESK_DATA_DIR", "/tmp/gradedesk-test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/gradedesk-test/gradedesk.db", cfg.DBPath)
}

func TestLoad_InvalidHTTPTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GRADEDESK_HTTP_TIMEOUT", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADEDESK_HTTP_TIMEOUT")
}

func TestLoad_InvalidScorerTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GRADEDESK_SCORER_TIMEOUT", "later")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADEDESK_SCORER_TIMEOUT")
}
