package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nSEARCH_LIMIT=7\nCHAT_MODEL=from-file\n"), 0o600))
	t.Setenv("CHAT_MODEL", "from-env")
	t.Cleanup(func() {
		_ = os.Unsetenv("HTTP_ADDR")
		_ = os.Unsetenv("SEARCH_LIMIT")
	})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, 7, c.SearchLimit)
	assert.Equal(t, "from-env", c.ChatModel, "real environment wins over the file")

	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, c.OrchestrationTimeout)
	assert.Equal(t, 0.7, c.SemanticThreshold)
	assert.Equal(t, uint(3), c.SearchRetryAttempts)
	assert.Equal(t, 500*time.Millisecond, c.SearchRetryDelay)
	assert.Equal(t, "it", c.SummaryLanguage)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestLoad_BadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=dev\n"), 0o600))
	t.Setenv("APP_ENV", "test")
	t.Setenv("ORCHESTRATION_TIMEOUT", "soon")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORCHESTRATION_TIMEOUT")
}
