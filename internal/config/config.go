// Package config loads, persists and provides concurrent-safe access to the
// single process-wide Configuration record of spec.md §3. Persistence
// writes a temp file and renames it into place; reads use atomic.Value
// snapshotting for lock-free concurrent access.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"

	"github.com/Davincible/gemini-gateway/internal/idutil"
)

const (
	// DefaultPort is the listening port when none is configured.
	DefaultPort = 6970
	// DefaultConfigFilename is the persisted document's filename.
	DefaultConfigFilename = "config.json"
	// DefaultHost is the listening host when none is configured.
	DefaultHost = "127.0.0.1"
	// DefaultMaxBodyBytes is the inbound request body ceiling (200 MiB).
	DefaultMaxBodyBytes = 200 << 20
	// SchemaVersion is the current persisted-document schema version.
	SchemaVersion = "1"
	// BcryptCost is the hashing cost used for the admin password (>= 10).
	BcryptCost = 12
)

// Config is the persisted Configuration record, per spec.md §3.
type Config struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	UpstreamBaseURL string `json:"upstreamBaseURL"`
	UpstreamAPIKey  string `json:"upstreamApiKey"`
	DefaultModel    string `json:"defaultModel"`
	LocalAPIKey     string `json:"localApiKey"`
	// AdminSecret is a bcrypt hash once login has rehashed it, or a
	// plaintext bootstrap value before the first successful login.
	AdminSecret     string `json:"adminSecret"`
	AdminIsHashed   bool   `json:"adminIsHashed"`
	MaxBodyBytes    int64  `json:"maxBodyBytes"`
	SchemaVersion   string `json:"schemaVersion"`
}

// WithoutSecret returns a copy of cfg with AdminSecret cleared, suitable for
// GET /api/config responses (spec.md §4.J).
func (c Config) WithoutSecret() Config {
	c.AdminSecret = ""
	return c
}

// VerifyAdminPassword checks candidate against the stored admin secret. If
// the secret is still a plaintext bootstrap value and candidate matches, it
// reports ok=true and rehash=true so the caller can upgrade it to a bcrypt
// hash on this successful login.
func (c *Config) VerifyAdminPassword(candidate string) (ok, rehash bool) {
	if !c.AdminIsHashed {
		return candidate == c.AdminSecret, candidate == c.AdminSecret
	}

	err := bcrypt.CompareHashAndPassword([]byte(c.AdminSecret), []byte(candidate))

	return err == nil, false
}

// SetAdminPassword hashes and stores a new admin password.
func (c *Config) SetAdminPassword(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	c.AdminSecret = string(hash)
	c.AdminIsHashed = true

	return nil
}

// Manager owns the persisted Configuration: the single writer is the admin
// surface, serialised through its handlers; readers observe a
// snapshot-consistent copy via Get.
type Manager struct {
	configPath  string
	configValue atomic.Value // *Config
}

// NewManager returns a Manager persisting to baseDir/config.json.
func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

// Bootstrap is the set of environment-derived seed values used only when no
// persisted document yet exists.
type Bootstrap struct {
	Port            int
	AdminPassword   string
	UpstreamBaseURL string
	UpstreamAPIKey  string
	DefaultModel    string
	MaxBodyBytes    int64
}

// LoadOrInit loads the persisted document, or creates and persists one
// seeded from boot when none exists yet.
func (m *Manager) LoadOrInit(boot Bootstrap) (*Config, error) {
	if m.Exists() {
		return m.Load()
	}

	cfg := &Config{
		Host:            DefaultHost,
		Port:            firstNonZero(boot.Port, DefaultPort),
		UpstreamBaseURL: boot.UpstreamBaseURL,
		UpstreamAPIKey:  boot.UpstreamAPIKey,
		DefaultModel:    boot.DefaultModel,
		LocalAPIKey:     idutil.RandomHex(32),
		AdminSecret:     boot.AdminPassword,
		AdminIsHashed:   false,
		MaxBodyBytes:    firstNonZero64(boot.MaxBodyBytes, DefaultMaxBodyBytes),
		SchemaVersion:   SchemaVersion,
	}

	if cfg.AdminSecret == "" {
		cfg.AdminSecret = idutil.RandomHex(16)
	}

	if err := m.Save(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func firstNonZero(v, def int) int {
	if v == 0 {
		return def
	}

	return v
}

func firstNonZero64(v, def int64) int64 {
	if v == 0 {
		return def
	}

	return v
}

// Load reads and caches the persisted document.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	m.configValue.Store(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
}

// Get returns the last loaded/saved snapshot without touching disk.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		cfg := *v.(*Config)
		return &cfg
	}

	return &Config{Host: DefaultHost, Port: DefaultPort, MaxBodyBytes: DefaultMaxBodyBytes}
}

// Save persists cfg atomically (write temp file, then rename) and updates
// the in-memory snapshot.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.configPath), "config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("write temp config file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, m.configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

// GetPath returns the persisted document's path.
func (m *Manager) GetPath() string {
	return m.configPath
}

// Exists reports whether the persisted document is present on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}
