// Package config loads and saves browserlet's YAML configuration, with
// environment-variable and CLI-flag overrides layered on top of
// project-local and then home-directory defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig names the repair provider browserlet talks to when
// auto-repair or micro-prompt assist is enabled.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "claude", "ollama"
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// Config holds all browserlet configuration.
type Config struct {
	Headless       bool          `yaml:"headless"`
	GlobalTimeout  time.Duration `yaml:"global_timeout"`
	OutputDir      string        `yaml:"output_dir"`
	Threshold      float64       `yaml:"threshold"`
	Margin         float64       `yaml:"margin"`
	MicroPrompts   bool          `yaml:"micro_prompts"`
	AutoRepair     bool          `yaml:"auto_repair"`
	Interactive    bool          `yaml:"interactive"`
	DiagnosticJSON bool          `yaml:"diagnostic_json"`
	Workers        int           `yaml:"workers"`
	Bail           bool          `yaml:"bail"`
	Vault          VaultConfig   `yaml:"vault"`
	LLM            LLMConfig     `yaml:"llm"`
}

// VaultConfig controls the credential vault's storage location and
// localhost bridge.
type VaultConfig struct {
	Path        string `yaml:"path"`
	BridgeAddr  string `yaml:"bridge_addr"`
	BridgeTTL   time.Duration `yaml:"bridge_ttl"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns browserlet's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Headless:      true,
		GlobalTimeout: 5 * time.Minute,
		OutputDir:     "./browserlet-output",
		Threshold:     0.70,
		Margin:        0.05,
		MicroPrompts:  false,
		AutoRepair:    false,
		Interactive:   false,
		Workers:       1,
		Bail:          false,
		Vault: VaultConfig{
			Path:       defaultVaultPath(),
			BridgeAddr: "127.0.0.1:9876",
			BridgeTTL:  60 * time.Second,
			CacheTTL:   15 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: "claude",
			BaseURL:  "https://api.anthropic.com/v1",
			Model:    "claude-3-5-sonnet-latest",
		},
	}
}

func defaultVaultPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".browserlet/vault.json"
	}
	return filepath.Join(dir, ".browserlet", "vault.json")
}

// projectConfigPath and homeConfigPath are tried in that order by Load.
func projectConfigPath() string { return filepath.Join(".browserlet", "config.yaml") }

func homeConfigPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".browserlet", "config.yaml")
}

// Load reads configuration from the project-local .browserlet/config.yaml
// if present, else from $HOME/.browserlet/config.yaml, else returns
// defaults. Environment variables always override whatever was loaded.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := projectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if hp := homeConfigPath(); hp != "" {
			data, err = os.ReadFile(hp)
			if err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", hp, err)
			}
		}
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to the project-local config path,
// creating .browserlet/ if needed.
func (c *Config) Save() error {
	path := projectConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BROWSERLET_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("BROWSERLET_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("BROWSERLET_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("BROWSERLET_VAULT_PATH"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("BROWSERLET_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
}
