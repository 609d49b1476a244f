package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.EvalTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL())
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.LLM.Enabled)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alphagen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
engine:
  eval_timeout_ms: 250
cache:
  enabled: true
  addr: redis:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.EvalTimeout())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)

	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.Market.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLLMKeys_EnvOverride(t *testing.T) {
	cfg := LLMConfig{APIKeys: []string{"from-file"}}

	t.Setenv("GEMINI_API_KEY", "")
	assert.Equal(t, []string{"from-file"}, cfg.Keys())

	t.Setenv("GEMINI_API_KEY", "k1, k2 ,")
	assert.Equal(t, []string{"k1", "k2"}, cfg.Keys())
}
