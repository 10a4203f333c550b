// Package config loads and holds the user-level configuration file at
// ~/.config/olly/config.json, per spec §6. Reading uses titanous/json5 so
// the file stays forward-compatible with hand-edited comments and trailing
// commas, the same tolerant-parse posture the teacher's own config loader
// takes (internal/config/config_load.go) toward an operator-edited file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"

	"github.com/ollielabs/ollie/internal/safety"
)

const (
	DefaultModel = "llama3.2:latest"
	DefaultHost  = "http://127.0.0.1:11434"
)

// Config is the full set of user-editable settings. Autonomy lives solely
// under Safety.AutonomyLevel; there is no duplicate top-level copy.
type Config struct {
	Model  string              `json:"model"`
	Host   string              `json:"host"`
	Safety safety.SafetyConfig `json:"safety"`
}

// Default returns the cautious, single-user default configuration for a
// given project root.
func Default(projectRoot string) *Config {
	return &Config{
		Model:  DefaultModel,
		Host:   DefaultHost,
		Safety: safety.DefaultSafetyConfig(projectRoot),
	}
}

// Path returns ~/.config/olly/config.json, the fixed location spec §6 names.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "olly", "config.json"), nil
}

// Load reads the config file at path, falling back to Default(projectRoot)
// if the file does not exist. A malformed file is a hard error: silently
// ignoring it would mask operator mistakes in safety-relevant settings.
func Load(path, projectRoot string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(projectRoot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default(projectRoot)
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Safety.ProjectRoot == "" {
		cfg.Safety.ProjectRoot = projectRoot
	}
	return cfg, nil
}

// Save writes cfg back to path as indented, forward-compatible JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
