// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Sections map 1:1 onto
// config file blocks; Run is populated from CLI flags and never read from
// the file.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	// Run gets its marching orders from CLI flags, not the config file.
	Run RunConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// DisableCache forces every replay to fetch fresh resources. Off by
	// default: a replayed workflow should see the page a returning user sees.
	DisableCache bool `mapstructure:"disable_cache" yaml:"disable_cache"`
	// Concurrency caps how many workflow files replay at once, one tab each.
	Concurrency int            `mapstructure:"concurrency" yaml:"concurrency"`
	Debug       bool           `mapstructure:"debug" yaml:"debug"`
	Args        []string       `mapstructure:"args" yaml:"args"`
	UserAgent   string         `mapstructure:"user_agent" yaml:"user_agent"`
	Viewport    ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportConfig fixes the tab size in CSS pixels. Recorded geometry only
// transfers when replay and recording agree on the viewport.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// NetworkConfig tunes navigation and the network-activity watcher attached
// to quiescence waits.
type NetworkConfig struct {
	// Watch attaches a request watcher to each tab so quiescence waits also
	// drain in-flight network activity.
	Watch             bool          `mapstructure:"watch" yaml:"watch"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// IdleQuiet is the no-activity window the post-navigation idle wait needs.
	IdleQuiet time.Duration `mapstructure:"idle_quiet" yaml:"idle_quiet"`
	// StaleAfter caps how long one request may count as in-flight; streaming
	// responses never finish and must not hold waits hostage.
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
}

// RunConfig holds settings populated from CLI flags for a specific replay job.
type RunConfig struct {
	Workflows         []string
	URL               string
	Vars              map[string]string
	ContinueOnFailure bool
	Timeout           time.Duration
	Out               string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autoflow")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	// All replay tuning lives in engine_config.go next to its struct.
	setEngineDefaults(v)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 768)

	// -- Network --
	v.SetDefault("network.watch", true)
	v.SetDefault("network.navigation_timeout", "45s")
	v.SetDefault("network.idle_quiet", "500ms")
	v.SetDefault("network.stale_after", "15s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
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

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have positive width and height")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.Network.Watch {
		if c.Network.IdleQuiet <= 0 {
			return fmt.Errorf("network.idle_quiet must be a positive duration")
		}
		if c.Network.StaleAfter <= 0 {
			return fmt.Errorf("network.stale_after must be a positive duration")
		}
	}
	return nil
}
