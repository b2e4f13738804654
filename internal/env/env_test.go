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
	t.Setenv("CARTERA_TEST_INT", "12")
	t.Setenv("CARTERA_TEST_BAD_INT", "x")
	t.Setenv("CARTERA_TEST_BOOL", "true")
	t.Setenv("CARTERA_TEST_DUR", "90s")

	assert.Equal(t, 12, GetInt("CARTERA_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("CARTERA_TEST_BAD_INT", 1))
	assert.True(t, GetBool("CARTERA_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, GetDuration("CARTERA_TEST_DUR", time.Second))
	assert.Equal(t, "fb", GetString("CARTERA_TEST_UNSET", "fb"))
}

func TestLoadDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CARTERA_TEST_A=file\nCARTERA_TEST_B=file\n"), 0o644))
	t.Setenv("CARTERA_TEST_A", "process")
	t.Setenv("CARTERA_TEST_B", "")
	os.Unsetenv("CARTERA_TEST_B")

	require.NoError(t, Load(path))
	assert.Equal(t, "process", GetString("CARTERA_TEST_A", ""))
	assert.Equal(t, "file", GetString("CARTERA_TEST_B", ""))
	os.Unsetenv("CARTERA_TEST_B")

	assert.NoError(t, Load(filepath.Join(dir, "missing.env")))
}
