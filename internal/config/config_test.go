// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "stepflow", cfg.Logger.ServiceName)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 60*time.Second, cfg.Browser.LaunchTimeout)

	assert.Equal(t, 5*time.Second, cfg.Engine.DefaultStepTimeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.NetworkDrainCeiling)
	assert.Equal(t, 256, cfg.Engine.EventBufferSize)
	assert.False(t, cfg.Engine.RecordVideo)

	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, "artifacts", cfg.Storage.ArtifactsDir)
	assert.Equal(t, "data/runs.db", cfg.Storage.RunsDB)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.default_step_timeout", "10s")
	v.Set("browser.channel", "chrome-beta")
	v.Set("storage.data_dir", "/var/lib/stepflow")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Engine.DefaultStepTimeout)
	assert.Equal(t, "chrome-beta", cfg.Browser.Channel)
	assert.Equal(t, "/var/lib/stepflow", cfg.Storage.DataDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step timeout", func(c *Config) { c.Engine.DefaultStepTimeout = 0 }},
		{"negative drain ceiling", func(c *Config) { c.Engine.NetworkDrainCeiling = -time.Second }},
		{"negative event buffer", func(c *Config) { c.Engine.EventBufferSize = -1 }},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"empty artifacts dir", func(c *Config) { c.Storage.ArtifactsDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
