// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for launched browser instances.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// Channel selects a non-default browser binary ("chrome", "chrome-beta",
	// "msedge"). Empty means whatever chromedp finds on the PATH.
	Channel string `mapstructure:"channel" yaml:"channel"`
	// UserDataDir enables a persistent profile when set.
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args        []string `mapstructure:"args" yaml:"args"`
	// LaunchTimeout bounds browser startup.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// EngineConfig configures scenario execution.
type EngineConfig struct {
	// DefaultStepTimeout applies to steps that do not carry their own timeout.
	DefaultStepTimeout time.Duration `mapstructure:"default_step_timeout" yaml:"default_step_timeout"`
	// NetworkDrainCeiling caps the post-action wait for in-flight requests.
	NetworkDrainCeiling time.Duration `mapstructure:"network_drain_ceiling" yaml:"network_drain_ceiling"`
	// EventBufferSize is the per-subscriber progress channel buffer.
	EventBufferSize int `mapstructure:"event_buffer_size" yaml:"event_buffer_size"`
	RecordVideo     bool `mapstructure:"record_video" yaml:"record_video"`
}

// StorageConfig locates the on-disk data areas.
type StorageConfig struct {
	// DataDir is the root for scenarios, ui_maps, resources and auth_states.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// ArtifactsDir is the root under which each run creates its directory.
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	// RunsDB is the sqlite database holding finalized run results.
	RunsDB string `mapstructure:"runs_db" yaml:"runs_db"`
}

// SetDefaults initializes default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stepflow")
	v.SetDefault("logger.log_file", "stepflow.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.launch_timeout", "60s")

	// -- Engine --
	v.SetDefault("engine.default_step_timeout", "5s")
	v.SetDefault("engine.network_drain_ceiling", "30s")
	v.SetDefault("engine.event_buffer_size", 256)
	v.SetDefault("engine.record_video", false)

	// -- Storage --
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.artifacts_dir", "artifacts")
	v.SetDefault("storage.runs_db", "data/runs.db")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Engine.DefaultStepTimeout <= 0 {
		return fmt.Errorf("engine.default_step_timeout must be a positive duration")
	}
	if c.Engine.NetworkDrainCeiling <= 0 {
		return fmt.Errorf("engine.network_drain_ceiling must be a positive duration")
	}
	if c.Engine.EventBufferSize < 0 {
		return fmt.Errorf("engine.event_buffer_size must not be negative")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.ArtifactsDir == "" {
		return fmt.Errorf("storage.artifacts_dir is required")
	}
	return nil
}
