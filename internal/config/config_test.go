package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigThresholdMatchesResolverDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.70, cfg.Threshold)
	assert.Equal(t, 0.05, cfg.Margin)
}

func TestApplyEnvOverridesVaultPath(t *testing.T) {
	t.Setenv("BROWSERLET_VAULT_PATH", "/tmp/custom-vault.json")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, "/tmp/custom-vault.json", cfg.Vault.Path)
}
