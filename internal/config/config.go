package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ghmirror.
type Config struct {
	UpstreamURL string         `toml:"upstream_url"`
	WorkingDir  string         `toml:"working_dir"`
	Workers     int            `toml:"workers"`
	BaseDir     string         `toml:"base_dir"`
	LogDir      string         `toml:"log_dir"`
	Database    DatabaseConfig `toml:"database"`
	Token       TokenConfig    `toml:"token"`
	Targets     []TargetConfig `toml:"targets"`
}

// TargetConfig is one manifest entry: a repository plus the ordered path
// segments leading to the blob to mirror. The first segment is the ref,
// the last is the blob name.
type TargetConfig struct {
	Repo string   `toml:"repo"`
	Path []string `toml:"path"`
}

// DatabaseConfig configures the sync history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// TokenConfig holds the paths used for at-rest GitHub token storage.
// The identity file is an age X25519 key; the token file is the token
// encrypted to that identity.
type TokenConfig struct {
	IdentityPath string `toml:"identity_path"`
	TokenPath    string `toml:"token_path"`
}

// NewConfig creates a Config with defaults rooted at baseDir. The working
// directory is deliberately left empty: it names the mirror output tree
// and must be chosen by the operator.
func NewConfig(baseDir string) *Config {
	return &Config{
		UpstreamURL: "https://api.github.com/repos/",
		Workers:     1,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Token: TokenConfig{
			IdentityPath: filepath.Join(baseDir, "keys", "ghmirror.key"),
			TokenPath:    filepath.Join(baseDir, "keys", "token.age"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
