package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("LAP_TEST_STRING", "value")
	t.Setenv("LAP_TEST_INT", "42")
	t.Setenv("LAP_TEST_BAD_INT", "x")
	t.Setenv("LAP_TEST_BOOL", "true")
	t.Setenv("LAP_TEST_DURATION", "90s")

	assert.Equal(t, "value", GetString("LAP_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetString("LAP_TEST_MISSING", "fallback"))
	assert.Equal(t, 42, GetInt("LAP_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("LAP_TEST_BAD_INT", 1))
	assert.True(t, GetBool("LAP_TEST_BOOL", false))
	assert.False(t, GetBool("LAP_TEST_MISSING", false))
	assert.Equal(t, 90*time.Second, GetDuration("LAP_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetDuration("LAP_TEST_MISSING", time.Second))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LAP_DOTENV_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LAP_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LAP_DOTENV_VALUE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
