package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("NEUROSCAN_BACKEND_URL", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, []string{"result"}, cfg.Chat.ContextKeywords)
	assert.Equal(t, []string{"no tumor", "no tumour"}, cfg.Result.AbsencePhrases)
	assert.Equal(t, ":8090", cfg.Addr())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := []byte(`
server:
  port: 9100
backend:
  baseUrl: http://inference:8000
  timeout: 5s
cache:
  ttl: 30s
chat:
  contextKeywords: [result, scan]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("NEUROSCAN_BACKEND_URL", "http://override:9000")
	t.Setenv("REDIS_ENABLED", "yes")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://override:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"result", "scan"}, cfg.Chat.ContextKeywords)
	assert.True(t, cfg.Redis.Enabled)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "neuroscan_session", cfg.Session.CookieName)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "  "
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Charts.Width = 0
	assert.Error(t, cfg.Validate())
}
