// File: internal/config/engine_config.go
// This file defines the EngineConfig struct, the tunable parameters of the
// replay engine: resolution budgets, settle and verification windows,
// dropdown scroll limits and inter-step pacing. Every value here started as
// a hard-coded constant somewhere in the engine and was promoted once it
// proved worth tuning per target application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig configures the core replay engine.
type EngineConfig struct {
	// ResolveTimeout bounds one element resolution including retry rounds;
	// ResolveInterval paces the rounds.
	ResolveTimeout  time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
	ResolveInterval time.Duration `mapstructure:"resolve_interval" yaml:"resolve_interval"`
	// AutoPickBest takes the leading candidate instead of failing a step as
	// ambiguous. Off by default: acting on the wrong element is worse than
	// stopping.
	AutoPickBest bool `mapstructure:"auto_pick_best" yaml:"auto_pick_best"`
	// PollInterval paces every bounded wait (effect verification, expected
	// outcomes, render settling).
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// QuietWindow is how long the DOM must hold still to count as settled;
	// QuiesceTimeout caps the pre-step settle wait as a whole.
	QuietWindow    time.Duration `mapstructure:"quiet_window" yaml:"quiet_window"`
	QuiesceTimeout time.Duration `mapstructure:"quiesce_timeout" yaml:"quiesce_timeout"`
	// RenderWindow bounds the re-resolve retry when a found target still
	// reports zero area.
	RenderWindow time.Duration `mapstructure:"render_window" yaml:"render_window"`
	// ExpectWindow bounds each recorded expected-outcome check after an action.
	ExpectWindow time.Duration `mapstructure:"expect_window" yaml:"expect_window"`
	// StepPause is the fixed pause separating steps.
	StepPause time.Duration `mapstructure:"step_pause" yaml:"step_pause"`
	// VerifyWindow bounds each strategy's effect verification; MenuWindow
	// bounds menu and option-list appearance polls.
	VerifyWindow time.Duration `mapstructure:"verify_window" yaml:"verify_window"`
	MenuWindow   time.Duration `mapstructure:"menu_window" yaml:"menu_window"`
	// ScrollAttempts and ScrollPause bound option scanning in virtualized
	// lists, where options render only as they scroll into view.
	ScrollAttempts int           `mapstructure:"scroll_attempts" yaml:"scroll_attempts"`
	ScrollPause    time.Duration `mapstructure:"scroll_pause" yaml:"scroll_pause"`
}

// setEngineDefaults initializes the engine defaults. Called from SetDefaults.
func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("engine.resolve_timeout", "5s")
	v.SetDefault("engine.resolve_interval", "250ms")
	v.SetDefault("engine.auto_pick_best", false)
	v.SetDefault("engine.poll_interval", "50ms")
	v.SetDefault("engine.quiet_window", "300ms")
	v.SetDefault("engine.quiesce_timeout", "10s")
	v.SetDefault("engine.render_window", "1s")
	v.SetDefault("engine.expect_window", "1s")
	v.SetDefault("engine.step_pause", "500ms")
	v.SetDefault("engine.verify_window", "1s")
	v.SetDefault("engine.menu_window", "800ms")
	v.SetDefault("engine.scroll_attempts", 20)
	v.SetDefault("engine.scroll_pause", "100ms")
}

// Validate checks the engine settings for sane values.
func (e EngineConfig) Validate() error {
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"engine.resolve_timeout", e.ResolveTimeout},
		{"engine.resolve_interval", e.ResolveInterval},
		{"engine.poll_interval", e.PollInterval},
		{"engine.quiet_window", e.QuietWindow},
		{"engine.quiesce_timeout", e.QuiesceTimeout},
		{"engine.render_window", e.RenderWindow},
		{"engine.expect_window", e.ExpectWindow},
		{"engine.step_pause", e.StepPause},
		{"engine.verify_window", e.VerifyWindow},
		{"engine.menu_window", e.MenuWindow},
		{"engine.scroll_pause", e.ScrollPause},
	}
	for _, it := range durations {
		if it.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", it.key)
		}
	}
	if e.ScrollAttempts <= 0 {
		return fmt.Errorf("engine.scroll_attempts must be a positive integer")
	}
	if e.QuietWindow > e.QuiesceTimeout {
		return fmt.Errorf("engine.quiet_window cannot exceed engine.quiesce_timeout")
	}
	return nil
}
