package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
addr: ":9090"
sync:
  dir: /data/feeds
  schedule: "0 */2 * * *"
persist:
  max_rows: 1000
views:
  rendimiento:
    remote_url: http://calc.local/rendimiento
    enabled: true
  cosecha:
    remote_url: http://calc.local/cosecha
    enabled: false
`

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/data/feeds", cfg.Sync.Dir)
	assert.Equal(t, "0 */2 * * *", cfg.Sync.Schedule)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 1000, cfg.Persist.MaxRows)
	assert.Equal(t, "15m", cfg.DB.MaxIdleTime)
	assert.Equal(t, map[string]string{"rendimiento": "http://calc.local/rendimiento"}, cfg.Remotes())
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	t.Setenv("ADDR", ":7070")
	t.Setenv("PERSIST_MAX_ROWS", "5")
	t.Setenv("REMOTE_LTV_EDAD_URL", "http://other/ltv")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 5, cfg.Persist.MaxRows)
	assert.Equal(t, []string{"ltv_edad", "rendimiento"}, cfg.RemoteViews())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250000, cfg.Persist.MaxRows)
	assert.Empty(t, cfg.Remotes())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("views: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
