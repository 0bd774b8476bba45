package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadOrInit_Bootstraps(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	cfg, err := mgr.LoadOrInit(Bootstrap{
		UpstreamBaseURL: "https://generativelanguage.googleapis.com/v1beta",
		UpstreamAPIKey:  "upstream-key",
		DefaultModel:    "gemini-1.5-pro",
		AdminPassword:   "bootstrap-password",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Len(t, cfg.LocalAPIKey, 64) // 32 bytes hex-encoded
	assert.False(t, cfg.AdminIsHashed)
	assert.Equal(t, "bootstrap-password", cfg.AdminSecret)
	assert.FileExists(t, filepath.Join(dir, DefaultConfigFilename))
}

func TestManager_LoadOrInit_ReusesExisting(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	first, err := mgr.LoadOrInit(Bootstrap{AdminPassword: "pw"})
	require.NoError(t, err)

	mgr2 := NewManager(dir)
	second, err := mgr2.LoadOrInit(Bootstrap{AdminPassword: "different"})
	require.NoError(t, err)

	assert.Equal(t, first.LocalAPIKey, second.LocalAPIKey)
	assert.Equal(t, "pw", second.AdminSecret)
}

func TestConfig_VerifyAdminPassword_PlaintextBootstrapThenUpgrade(t *testing.T) {
	cfg := &Config{AdminSecret: "bootstrap", AdminIsHashed: false}

	ok, rehash := cfg.VerifyAdminPassword("bootstrap")
	assert.True(t, ok)
	assert.True(t, rehash)

	require.NoError(t, cfg.SetAdminPassword("bootstrap"))
	assert.True(t, cfg.AdminIsHashed)

	ok, rehash = cfg.VerifyAdminPassword("bootstrap")
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _ = cfg.VerifyAdminPassword("wrong")
	assert.False(t, ok)
}

func TestConfig_WithoutSecret(t *testing.T) {
	cfg := Config{AdminSecret: "super-secret", LocalAPIKey: "abc"}
	sanitized := cfg.WithoutSecret()

	assert.Empty(t, sanitized.AdminSecret)
	assert.Equal(t, "abc", sanitized.LocalAPIKey)
}

func TestManager_Save_IsAtomic(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	cfg := &Config{Host: "127.0.0.1", Port: 1234, SchemaVersion: SchemaVersion}
	require.NoError(t, mgr.Save(cfg))

	entries, err := filepath.Glob(filepath.Join(dir, "config-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no leftover temp files after a successful save")

	reloaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, reloaded.Port)
}
