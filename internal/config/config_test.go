package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.Server.Address)
	assert.Equal(t, "portal.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Avatar.PollInterval)
	assert.Equal(t, 30, cfg.Avatar.MaxAttempts)
	assert.Equal(t, "en-US-JennyNeural", cfg.Avatar.VoiceID)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
avatar:
  poll_interval: 500ms
  max_attempts: 10
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Avatar.PollInterval)
	assert.Equal(t, 10, cfg.Avatar.MaxAttempts)
	// Untouched values keep their defaults.
	assert.Equal(t, "portal.db", cfg.Database.Path)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORTAL_SERVER_ADDRESS", ":9999")
	t.Setenv("PORTAL_LLM_TOKEN", "sk-secret")
	t.Setenv("PORTAL_AVATAR_API_KEY", "did-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "sk-secret", cfg.LLM.Token)
	assert.Equal(t, "did-key", cfg.Avatar.APIKey)
}

func TestLoadRejectsBadPollingPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
avatar:
  max_attempts: 0
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
