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

	assert.Equal(t, ":5000", cfg.Server.Address)
	assert.False(t, cfg.Server.Production())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "bedrock", cfg.Chat.Provider)
	assert.Equal(t, 2000, cfg.Chat.MaxTokens)
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Sessions.IdleTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.CleanupInterval)
	assert.Equal(t, "ueSxRO0nLF1bj93J2hVt", cfg.Voice.VoiceID)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "8081")
	t.Setenv("BEDROCK_AGENT_ID", "AGENT123")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ELEVEN_VOICE_ID", "voice-x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Server.Production())
	assert.Equal(t, ":8081", cfg.Server.Address)
	assert.Equal(t, "AGENT123", cfg.Agent.AgentID)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "voice-x", cfg.Voice.VoiceID)
}

func TestLoadFileResolvesUploadDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"upload_dir": "files", "environment": "production"},
		"chat": {"provider": "OpenAI", "model": "gpt-4o-mini", "api_key": "k"},
		"rate_limit": {"backend": "redis"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "files"), cfg.Server.UploadDir)
	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 2000, cfg.Chat.MaxTokens)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
