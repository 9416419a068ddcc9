// Package config loads the YAML configuration shared by the CLI and the
// live engine. Defaults come from struct tags, validation from validator
// tags plus a few cross-field rules that tags cannot express.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/internal/logging"
	"github.com/rgould/quantrisk/monitor"
	"github.com/rgould/quantrisk/optimize"
	"github.com/rgould/quantrisk/trading"
)

// JournalConfig selects the audit store.
type JournalConfig struct {
	// Path of the SQLite database; empty disables journaling.
	Path string `yaml:"path" default:"./quantrisk.sqlite"`
}

// Config is the complete configuration tree.
type Config struct {
	Logging  logging.Config   `yaml:"logging"`
	Journal  JournalConfig    `yaml:"journal"`
	Trading  trading.Config   `yaml:"trading"`
	Backtest backtest.Config  `yaml:"backtest"`
	Optimize optimize.Options `yaml:"optimize"`
	Space    optimize.Space   `yaml:"space"`
	Monitor  monitor.Config   `yaml:"monitor"`
}

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate runs tag validation plus the cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Hysteresis must leave a real gap or the halt will flap.
	if r := c.Backtest.Risk; r.ResumeDrawdownPercent >= r.HaltDrawdownPercent {
		return fmt.Errorf("backtest.risk: resume_drawdown_percent (%.1f) must be below halt_drawdown_percent (%.1f)",
			r.ResumeDrawdownPercent, r.HaltDrawdownPercent)
	}
	if r := c.Trading.Risk; r.ResumeDrawdownPercent >= r.HaltDrawdownPercent {
		return fmt.Errorf("trading.risk: resume_drawdown_percent (%.1f) must be below halt_drawdown_percent (%.1f)",
			r.ResumeDrawdownPercent, r.HaltDrawdownPercent)
	}
	if s := c.Trading.Sizing; s.BaseRiskPercent > s.MaxRiskPercent {
		return fmt.Errorf("trading.sizing: base_risk_percent (%.2f) exceeds max_risk_percent (%.2f)",
			s.BaseRiskPercent, s.MaxRiskPercent)
	}
	return nil
}

// SaveToFile writes the config as YAML; handy for `config init`.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
