// CLAUDE:SUMMARY Defines engine config structs and parses YAML configuration files with defaults.
// Package config handles engine configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Close modes for the end-of-run position cleanup.
const (
	CloseIndividual = "individual"
	CloseBulk       = "bulk"
)

// Config is the top-level engine configuration.
type Config struct {
	BaseURL    string         `yaml:"base_url"`
	Instrument string         `yaml:"instrument"`
	CloseMode  string         `yaml:"close_mode"` // individual | bulk
	Order      OrderConfig    `yaml:"order"`
	Browser    BrowserConfig  `yaml:"browser"`
	Timeouts   TimeoutsConfig `yaml:"timeouts"`
	Attempts   AttemptsConfig `yaml:"attempts"`
	Diag       DiagConfig     `yaml:"diagnostics"`
}

// OrderConfig holds the ticket parameters for placed orders.
type OrderConfig struct {
	Size             string `yaml:"size"`
	StopLossPoints   string `yaml:"stop_loss_points"`
	TakeProfitPoints string `yaml:"take_profit_points"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote       string `yaml:"remote"`
	Headless     *bool  `yaml:"headless"`
	Stealth      *bool  `yaml:"stealth"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
}

// TimeoutsConfig bounds the engine's waits.
type TimeoutsConfig struct {
	// Element is the default wait for a single control.
	Element time.Duration `yaml:"element"`
	// Login covers the whole authentication flow.
	Login time.Duration `yaml:"login"`
	// FastSignal bounds the toast wait after an action.
	FastSignal time.Duration `yaml:"fast_signal"`
	// Authoritative bounds polling of the positions table.
	Authoritative time.Duration `yaml:"authoritative"`
	// TablePoll is the interval between table reads while verifying.
	TablePoll time.Duration `yaml:"table_poll"`
	// Navigation covers page loads and reloads.
	Navigation time.Duration `yaml:"navigation"`
}

// AttemptsConfig sets the retry budgets.
type AttemptsConfig struct {
	// Select is the budget for instrument selection.
	Select int `yaml:"select"`
	// FieldFill is the budget for order ticket fills and submits.
	FieldFill int `yaml:"field_fill"`
	// MaxCloseIterations bounds the individual-close loop.
	MaxCloseIterations int `yaml:"max_close_iterations"`
}

// DiagConfig controls the diagnostics sink and viewer.
type DiagConfig struct {
	Dir string `yaml:"dir"`
	// DB is the SQLite index path. Empty derives <dir>/run.db.
	DB string `yaml:"db"`
	// Viewer is the listen address for the HTTP viewer. Empty disables it.
	Viewer string `yaml:"viewer"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every zero field with its default.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://aqxtrader.aquariux.com"
	}
	if c.Instrument == "" {
		c.Instrument = "DASHUSD.std"
	}
	if c.CloseMode == "" {
		c.CloseMode = CloseIndividual
	}
	if c.Order.Size == "" {
		c.Order.Size = "0.01"
	}
	if c.Order.StopLossPoints == "" {
		c.Order.StopLossPoints = "2000"
	}
	if c.Order.TakeProfitPoints == "" {
		c.Order.TakeProfitPoints = "2000"
	}
	if c.Browser.Headless == nil {
		h := true
		c.Browser.Headless = &h
	}
	if c.Browser.Stealth == nil {
		s := true
		c.Browser.Stealth = &s
	}
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = 1280
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = 900
	}
	if c.Timeouts.Element <= 0 {
		c.Timeouts.Element = 15 * time.Second
	}
	if c.Timeouts.Login <= 0 {
		c.Timeouts.Login = 60 * time.Second
	}
	if c.Timeouts.FastSignal <= 0 {
		c.Timeouts.FastSignal = 15 * time.Second
	}
	if c.Timeouts.Authoritative <= 0 {
		c.Timeouts.Authoritative = 30 * time.Second
	}
	if c.Timeouts.TablePoll <= 0 {
		c.Timeouts.TablePoll = time.Second
	}
	if c.Timeouts.Navigation <= 0 {
		c.Timeouts.Navigation = 30 * time.Second
	}
	if c.Attempts.Select <= 0 {
		c.Attempts.Select = 3
	}
	if c.Attempts.FieldFill <= 0 {
		c.Attempts.FieldFill = 1
	}
	if c.Attempts.MaxCloseIterations <= 0 {
		c.Attempts.MaxCloseIterations = 25
	}
	if c.Diag.Dir == "" {
		c.Diag.Dir = "screenshots"
	}
	if c.Diag.DB == "" {
		c.Diag.DB = c.Diag.Dir + "/run.db"
	}
}

// Validate rejects values defaults cannot repair.
func (c *Config) Validate() error {
	if c.CloseMode != CloseIndividual && c.CloseMode != CloseBulk {
		return fmt.Errorf("config: close_mode %q must be %q or %q", c.CloseMode, CloseIndividual, CloseBulk)
	}
	return nil
}
