// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "autoflow", cfg.Logger.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.Engine.ResolveTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.ResolveInterval)
	assert.False(t, cfg.Engine.AutoPickBest)
	assert.Equal(t, 300*time.Millisecond, cfg.Engine.QuietWindow)
	assert.Equal(t, 20, cfg.Engine.ScrollAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.StepPause)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 4, cfg.Browser.Concurrency)
	assert.Equal(t, 1366, cfg.Browser.Viewport.Width)
	assert.True(t, cfg.Network.Watch)
	assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Network.StaleAfter)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate(), "the shipped defaults must pass validation")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		invalidBrowser := *cfg
		invalidBrowser.Browser.Concurrency = 0
		err := invalidBrowser.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")

		invalidViewport := *cfg
		invalidViewport.Browser.Viewport.Height = -1
		err = invalidViewport.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.viewport")

		invalidNav := *cfg
		invalidNav.Network.NavigationTimeout = 0
		err = invalidNav.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "network.navigation_timeout must be a positive duration")
	})

	t.Run("Watcher Validation Only When Enabled", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Network.Watch = false
		cfg.Network.IdleQuiet = 0
		cfg.Network.StaleAfter = 0
		assert.NoError(t, cfg.Validate(), "watcher settings are ignored when the watcher is off")

		cfg.Network.Watch = true
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "network.idle_quiet must be a positive duration")
	})

	t.Run("Engine Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Engine
		assert.NoError(t, valid.Validate())

		zeroTimeout := valid
		zeroTimeout.ResolveTimeout = 0
		err := zeroTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.resolve_timeout must be a positive duration")

		negativePause := valid
		negativePause.StepPause = -1 * time.Second
		err = negativePause.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.step_pause must be a positive duration")

		zeroScrolls := valid
		zeroScrolls.ScrollAttempts = 0
		err = zeroScrolls.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.scroll_attempts must be a positive integer")

		inverted := valid
		inverted.QuietWindow = 20 * time.Second
		err = inverted.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.quiet_window cannot exceed engine.quiesce_timeout")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
engine:
  resolve_timeout: 2s
  auto_pick_best: true
browser:
  concurrency: 2
  headless: false
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 2*time.Second, cfg.Engine.ResolveTimeout)
		assert.True(t, cfg.Engine.AutoPickBest)
		assert.Equal(t, 2, cfg.Browser.Concurrency)
		assert.False(t, cfg.Browser.Headless)
		// Untouched keys keep their defaults.
		assert.Equal(t, 250*time.Millisecond, cfg.Engine.ResolveInterval)
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("engine.scroll_attempts", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "engine.scroll_attempts must be a positive integer")
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/autoflow.log
  colors:
    info: green
engine:
  step_pause: 250ms
  menu_window: 1200ms
browser:
  viewport:
    width: 1920
    height: 1080
  args: ["--lang=en-US"]
network:
  stale_after: 30s
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/autoflow.log", cfg.Logger.LogFile)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.StepPause)
	assert.Equal(t, 1200*time.Millisecond, cfg.Engine.MenuWindow)
	assert.Equal(t, 1920, cfg.Browser.Viewport.Width)
	assert.Equal(t, 1080, cfg.Browser.Viewport.Height)
	assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser.Args)
	assert.Equal(t, 30*time.Second, cfg.Network.StaleAfter)
}

func TestRunConfigNeverReadFromFile(t *testing.T) {
	yamlInput := `
run:
  out: /tmp/should-not-load.json
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.Run.Out, "run settings come from flags only")
}
